// Package service provides the business logic layer (use cases).
// LedgerService owns the in-memory working set of accounts and runs
// every ledger operation against it; PurchaseOrderService keeps the
// purchase order registry.
package service

import (
	"context"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sme-tools/pdde-ledger/internal/domain"
	"github.com/sme-tools/pdde-ledger/internal/infra/observability"
	"github.com/sme-tools/pdde-ledger/internal/infra/resilience"
	"github.com/sme-tools/pdde-ledger/internal/port"
)

var ledgerTracer = otel.Tracer("service/ledger")

// LedgerService keeps every account in memory and mirrors each change
// to the ledger store. The in-memory copy is authoritative: when a
// store write fails the operation still applies, the caller gets
// durable=false, and the document is written again wholesale on the
// next save that touches it. Writes hold the registry lock across the
// store call, so changes reach the store in the order they were
// applied.
type LedgerService struct {
	store    port.LedgerStore
	cache    port.Cache[[]domain.StatementRow]
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger

	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

// NewLedgerService creates a ledger service with an empty registry;
// call Load to hydrate it from the store.
func NewLedgerService(store port.LedgerStore, cache port.Cache[[]domain.StatementRow], bulkhead *resilience.Bulkhead, metrics *observability.Metrics, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		store:    store,
		cache:    cache,
		bulkhead: bulkhead,
		metrics:  metrics,
		logger:   logger,
		accounts: make(map[string]*domain.Account),
	}
}

// Load replaces the registry with the store's contents. On failure the
// current registry stands and the service keeps working session-only.
func (s *LedgerService) Load(ctx context.Context) error {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.Load")
	defer span.End()

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return err
	}
	defer s.bulkhead.Release()

	accounts, err := s.store.LoadAllAccounts(ctx)
	if err != nil {
		s.metrics.IncrStoreError("ledger")
		s.logger.Warn("ledger: load failed, keeping in-memory registry", zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.accounts = accounts
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("accounts.count", len(accounts)))
	s.logger.Info("ledger: registry hydrated", zap.Int("accounts", len(accounts)))
	return nil
}

// Ping reports whether the backing store is reachable.
func (s *LedgerService) Ping(ctx context.Context) error {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.Ping")
	defer span.End()

	return s.store.Ping(ctx)
}

// HasAccount reports whether an account is registered.
func (s *LedgerService) HasAccount(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.accounts[name]
	return ok
}

// HasAccountProgram reports whether an account tracks a program.
func (s *LedgerService) HasAccountProgram(account, program string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[account]
	return ok && acct.HasProgram(program)
}

// ListAccounts returns the registered account names, sorted.
func (s *LedgerService) ListAccounts(ctx context.Context) []string {
	_, span := ledgerTracer.Start(ctx, "LedgerService.ListAccounts")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.accounts))
	for name := range s.accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetAccount returns a copy of one account document.
func (s *LedgerService) GetAccount(ctx context.Context, name string) (*domain.Account, error) {
	_, span := ledgerTracer.Start(ctx, "LedgerService.GetAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.name", name))

	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[name]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: name}
	}
	return cloneAccount(acct), nil
}

// persist writes one account document to the store. The caller must
// hold the write lock. A false return means the change is in memory
// only.
func (s *LedgerService) persist(ctx context.Context, name string) bool {
	acct, ok := s.accounts[name]
	if !ok {
		return false
	}
	if err := s.bulkhead.Acquire(ctx); err != nil {
		s.metrics.IncrStoreError("ledger")
		s.logger.Error("ledger: account not durably saved", zap.String("account", name), zap.Error(err))
		return false
	}
	defer s.bulkhead.Release()

	if err := s.store.SaveAccount(ctx, name, acct); err != nil {
		s.metrics.IncrStoreError("ledger")
		s.logger.Error("ledger: account not durably saved", zap.String("account", name), zap.Error(err))
		return false
	}
	return true
}

// invalidateStatements drops every cached statement of an account.
func (s *LedgerService) invalidateStatements(account string) {
	s.cache.DeletePrefix("statement:" + account + ":")
}

// cloneAccount deep-copies an account document so callers can read it
// without holding the registry lock.
func cloneAccount(acct *domain.Account) *domain.Account {
	out := &domain.Account{
		Programs:        make([]string, len(acct.Programs)),
		OpeningBalances: make(map[string]domain.OpeningBalance, len(acct.OpeningBalances)),
		Movements:       make([]domain.Movement, len(acct.Movements)),
	}
	copy(out.Programs, acct.Programs)
	copy(out.Movements, acct.Movements)
	for prog, ob := range acct.OpeningBalances {
		out.OpeningBalances[prog] = ob
	}
	return out
}
