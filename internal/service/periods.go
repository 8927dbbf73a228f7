package service

import (
	"context"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sme-tools/pdde-ledger/internal/domain"
	"github.com/sme-tools/pdde-ledger/internal/infra/observability"
	"github.com/sme-tools/pdde-ledger/internal/ledger"
)

// ============================================================
// Period writes and balance reads
// ============================================================

// SavePeriod allocates the bank interest across the entered programs
// and replaces the whole (account, year, month) period with the
// resulting movements. Validation failures leave the account untouched;
// a store failure still applies the period in memory and reports
// durable=false.
func (s *LedgerService) SavePeriod(ctx context.Context, account string, month, year int, bankInterest float64, entries map[string]domain.MovementInput) (*domain.PeriodResult, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.SavePeriod")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.name", account),
		attribute.Int("period.month", month),
		attribute.Int("period.year", year),
	)

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("save_period", time.Since(start)) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[account]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: account}
	}

	movs, err := ledger.Allocate(acct, month, year, bankInterest, entries)
	if err != nil {
		return nil, err
	}

	if bankInterest != 0 && math.Abs(ledger.AllocatedInterest(movs)) < 1e-9 {
		s.metrics.IncrAllocation(observability.AllocationDropped)
		s.logger.Warn("ledger: interest dropped, no program has a positive base",
			zap.String("account", account),
			zap.Int("month", month),
			zap.Int("year", year),
			zap.Float64("bank_interest", bankInterest),
		)
	} else {
		s.metrics.IncrAllocation(observability.AllocationApplied)
	}

	ledger.ReplacePeriod(acct, year, month, movs)
	s.invalidateStatements(account)
	s.metrics.IncrPeriodSaved()

	durable := s.persist(ctx, account)
	s.logger.Info("ledger: period saved",
		zap.String("account", account),
		zap.Int("month", month),
		zap.Int("year", year),
		zap.Int("programs", len(movs)),
		zap.Bool("durable", durable),
	)
	return &domain.PeriodResult{Movements: movs, Durable: durable}, nil
}

// GetPeriod returns the stored movements of one (account, year, month)
// plus their interest total, for pre-filling the entry form.
func (s *LedgerService) GetPeriod(ctx context.Context, account string, month, year int) (*domain.PeriodSnapshot, error) {
	_, span := ledgerTracer.Start(ctx, "LedgerService.GetPeriod")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.name", account),
		attribute.Int("period.month", month),
		attribute.Int("period.year", year),
	)

	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[account]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: account}
	}

	snapshot := &domain.PeriodSnapshot{Movements: []domain.Movement{}}
	for _, m := range acct.Movements {
		if m.InPeriod(year, month) {
			snapshot.Movements = append(snapshot.Movements, m)
			snapshot.InterestTotal += m.TotalInterest
		}
	}
	sort.Slice(snapshot.Movements, func(i, j int) bool {
		return snapshot.Movements[i].Program < snapshot.Movements[j].Program
	})
	return snapshot, nil
}

// PriorBalance resolves the balance a program carries into
// (year, month).
func (s *LedgerService) PriorBalance(ctx context.Context, account, program string, kind domain.ResourceKind, month, year int) (float64, error) {
	_, span := ledgerTracer.Start(ctx, "LedgerService.PriorBalance")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.name", account),
		attribute.String("program", program),
		attribute.String("kind", string(kind)),
	)

	if month < 1 || month > 12 {
		return 0, &domain.ErrValidation{Field: "month", Message: "month must be between 1 and 12"}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[account]
	if !ok {
		return 0, &domain.ErrNotFound{Resource: "account", ID: account}
	}
	if !acct.HasProgram(program) {
		return 0, &domain.ErrNotFound{Resource: "program", ID: program}
	}
	return ledger.ResolveBalance(acct, program, kind, month, year), nil
}

// Years lists every year that has data in any account, plus the
// current year, ascending.
func (s *LedgerService) Years(ctx context.Context) []int {
	_, span := ledgerTracer.Start(ctx, "LedgerService.Years")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[int]bool{time.Now().Year(): true}
	for _, acct := range s.accounts {
		for _, m := range acct.Movements {
			seen[m.EffectiveYear()] = true
		}
	}

	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
