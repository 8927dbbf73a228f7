package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sme-tools/pdde-ledger/internal/domain"
	"github.com/sme-tools/pdde-ledger/internal/ledger"
)

// ============================================================
// Yearly statements
// ============================================================

// Statement builds the yearly statement of one program (or all of
// them, program == domain.AllPrograms). Results are cached per
// (account, year, program) until the account is written again.
func (s *LedgerService) Statement(ctx context.Context, account, program string, year int) ([]domain.StatementRow, error) {
	_, span := ledgerTracer.Start(ctx, "LedgerService.Statement")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.name", account),
		attribute.String("program", program),
		attribute.Int("year", year),
	)

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("statement", time.Since(start)) }()

	key := fmt.Sprintf("statement:%s:%d:%s", account, year, program)
	if rows, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit("statement")
		return rows, nil
	}
	s.metrics.IncrCacheMiss("statement")

	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[account]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: account}
	}
	if program != domain.AllPrograms && !acct.HasProgram(program) {
		return nil, &domain.ErrNotFound{Resource: "program", ID: program}
	}

	rows := ledger.BuildStatement(acct, program, year)
	s.cache.Set(key, rows)
	return rows, nil
}
