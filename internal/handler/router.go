package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/sme-tools/pdde-ledger/internal/domain"
	"github.com/sme-tools/pdde-ledger/internal/infra/observability"
	"github.com/sme-tools/pdde-ledger/internal/service"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Routes follow the API contract consumed by the school bookkeeping
// frontend.
func NewRouter(ledgerSvc *service.LedgerService, orderSvc *service.PurchaseOrderService, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.MetricsMiddleware(metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(ledgerSvc, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. Accounts & programs
		// =============================================
		r.Get("/accounts", listAccountsHandler(ledgerSvc, logger))
		r.Post("/accounts", createAccountHandler(ledgerSvc, logger))
		r.Get("/accounts/{account}", getAccountHandler(ledgerSvc, logger))
		r.Delete("/accounts/{account}", deleteAccountHandler(ledgerSvc, logger))
		r.Post("/accounts/{account}/rename", renameAccountHandler(ledgerSvc, logger))
		r.Post("/accounts/{account}/programs", addProgramHandler(ledgerSvc, logger))
		r.Put("/accounts/{account}/programs/{program}/opening-balance", setOpeningBalanceHandler(ledgerSvc, logger))

		// =============================================
		// 2. Balances & periods
		// GET /v1/accounts/{account}/balance?program=&kind=&month=&year=
		// PUT /v1/accounts/{account}/periods/{year}/{month}
		// =============================================
		r.Get("/accounts/{account}/balance", priorBalanceHandler(ledgerSvc, logger))
		r.Put("/accounts/{account}/periods/{year}/{month}", savePeriodHandler(ledgerSvc, logger))
		r.Get("/accounts/{account}/periods/{year}/{month}", getPeriodHandler(ledgerSvc, logger))
		r.Get("/years", yearsHandler(ledgerSvc, logger))

		// =============================================
		// 3. Statements
		// GET /v1/accounts/{account}/statement?year=&program=
		// =============================================
		r.Get("/accounts/{account}/statement", statementHandler(ledgerSvc, logger))

		// =============================================
		// 4. Metrics summary
		// =============================================
		r.Get("/metrics/summary", ledgerMetricsHandler(metrics, logger))

		// =============================================
		// 5. Purchase orders & receipts
		// =============================================
		r.Get("/purchase-orders", listPurchaseOrdersHandler(orderSvc, logger))
		r.Post("/purchase-orders", createPurchaseOrderHandler(orderSvc, logger))
		r.Get("/purchase-orders/{orderId}", getPurchaseOrderHandler(orderSvc, logger))
		r.Patch("/purchase-orders/{orderId}", updatePurchaseOrderHandler(orderSvc, logger))
		r.Delete("/purchase-orders/{orderId}", deletePurchaseOrderHandler(orderSvc, logger))
		r.Put("/purchase-orders/{orderId}/receipt", attachReceiptHandler(orderSvc, logger))
		r.Get("/purchase-orders/{orderId}/receipt", getReceiptHandler(orderSvc, logger))
		r.Delete("/purchase-orders/{orderId}/receipt", deleteReceiptHandler(orderSvc, logger))
	})

	return r
}

// ============================================================
// Operational endpoints
// ============================================================

func healthzHandler(ledgerSvc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "pdde-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if ledgerSvc != nil {
			start := time.Now()
			err := ledgerSvc.Ping(ctx)
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				status = "degraded"
				logger.Warn("store ping failed", zap.Error(err))
			}
			services = append(services, domain.ServiceHealth{
				Name: "store", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func ledgerMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := metrics.GetLedgerSnapshot()
		writeJSON(w, http.StatusOK, snapshot)
	}
}
