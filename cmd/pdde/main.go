package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sme-tools/pdde-ledger/internal/config"
	"github.com/sme-tools/pdde-ledger/internal/domain"
	"github.com/sme-tools/pdde-ledger/internal/handler"
	"github.com/sme-tools/pdde-ledger/internal/infra/cache"
	"github.com/sme-tools/pdde-ledger/internal/infra/memstore"
	"github.com/sme-tools/pdde-ledger/internal/infra/observability"
	"github.com/sme-tools/pdde-ledger/internal/infra/resilience"
	"github.com/sme-tools/pdde-ledger/internal/infra/sqlite"
	"github.com/sme-tools/pdde-ledger/internal/infra/supabase"
	"github.com/sme-tools/pdde-ledger/internal/port"
	"github.com/sme-tools/pdde-ledger/internal/service"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = godotenv.Load()

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("store_concurrency", cfg.StoreConcurrency),
		zap.Int("max_attachment_kb", cfg.MaxAttachmentKB),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "pdde-ledger")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	statementCache := cache.New[[]domain.StatementRow](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.StoreConcurrency,
	}
	bulkhead := resilience.NewBulkhead(cfg.StoreConcurrency)

	// --- Store ---
	var (
		ledgerStore     port.LedgerStore
		orderStore      port.PurchaseOrderStore
		attachmentStore port.AttachmentStore
	)
	switch cfg.StoreBackend {
	case config.BackendSupabase:
		logger.Info("using Supabase as document store", zap.String("supabase_url", cfg.SupabaseURL))
		httpClient := &http.Client{Timeout: cfg.RequestTimeout}
		cb := resilience.NewCircuitBreaker("supabase")
		client := supabase.NewClient(httpClient, cfg.SupabaseURL, cfg.SupabaseKey, cb, resilienceCfg, logger)
		ledgerStore, orderStore, attachmentStore = client, client, client
	case config.BackendSQLite:
		logger.Info("using SQLite as document store", zap.String("path", cfg.SQLitePath))
		store, err := sqlite.NewStore(cfg.SQLitePath, logger)
		if err != nil {
			logger.Fatal("failed to open sqlite store", zap.Error(err))
		}
		defer store.Close()
		ledgerStore, orderStore, attachmentStore = store, store, store
	default:
		logger.Warn("using in-memory store, data will not survive a restart")
		store := memstore.New()
		ledgerStore, orderStore, attachmentStore = store, store, store
	}

	// --- Services ---
	ledgerSvc := service.NewLedgerService(ledgerStore, statementCache, bulkhead, metrics, logger)
	orderSvc := service.NewPurchaseOrderService(orderStore, attachmentStore, ledgerSvc, bulkhead, cfg.MaxAttachmentBytes(), metrics, logger)

	// --- Hydrate registries ---
	// The loads are independent; a failure in one must not cancel the
	// other, so no shared-cancel errgroup here.
	var g errgroup.Group
	g.Go(func() error { return ledgerSvc.Load(context.Background()) })
	g.Go(func() error { return orderSvc.Load(context.Background()) })
	if err := g.Wait(); err != nil {
		logger.Warn("store hydration incomplete, continuing with in-memory registries", zap.Error(err))
	}

	// --- Router ---
	router := handler.NewRouter(ledgerSvc, orderSvc, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
