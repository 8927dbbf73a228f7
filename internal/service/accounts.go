package service

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sme-tools/pdde-ledger/internal/domain"
)

// ============================================================
// Account registry operations
// ============================================================

// RegisterAccount creates an empty account under name. The returned
// flag reports whether the document reached the store.
func (s *LedgerService) RegisterAccount(ctx context.Context, name string) (bool, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.RegisterAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.name", name))

	name = strings.TrimSpace(name)
	if name == "" {
		return false, &domain.ErrValidation{Field: "name", Message: "account name is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[name]; ok {
		return false, &domain.ErrConflict{Message: fmt.Sprintf("account %q already exists", name)}
	}
	s.accounts[name] = domain.NewAccount()

	durable := s.persist(ctx, name)
	s.logger.Info("ledger: account registered", zap.String("account", name), zap.Bool("durable", durable))
	return durable, nil
}

// DeleteAccount removes an account and its whole history.
func (s *LedgerService) DeleteAccount(ctx context.Context, name string) (bool, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.DeleteAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.name", name))

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[name]; !ok {
		return false, &domain.ErrNotFound{Resource: "account", ID: name}
	}
	delete(s.accounts, name)
	s.invalidateStatements(name)

	durable := true
	if err := s.store.DeleteAccount(ctx, name); err != nil {
		durable = false
		s.metrics.IncrStoreError("ledger")
		s.logger.Error("ledger: account removed in memory but not in store", zap.String("account", name), zap.Error(err))
	}
	s.logger.Info("ledger: account deleted", zap.String("account", name), zap.Bool("durable", durable))
	return durable, nil
}

// RenameAccount moves an account to a new name as copy-first,
// delete-second: the document is saved under the new name before the
// old one is removed, so a crash in between leaves a recoverable
// duplicate rather than a loss. When the copy-save fails the old
// document is kept in the store, so a durable copy always survives.
// Renaming onto an existing name fails without touching either
// account.
func (s *LedgerService) RenameAccount(ctx context.Context, oldName, newName string) (bool, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.RenameAccount")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.old", oldName),
		attribute.String("account.new", newName),
	)

	newName = strings.TrimSpace(newName)
	if newName == "" {
		return false, &domain.ErrValidation{Field: "new_name", Message: "new account name is required"}
	}
	if newName == oldName {
		return false, &domain.ErrValidation{Field: "new_name", Message: "new name equals the current name"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[oldName]
	if !ok {
		return false, &domain.ErrNotFound{Resource: "account", ID: oldName}
	}
	if _, ok := s.accounts[newName]; ok {
		return false, &domain.ErrConflict{Message: fmt.Sprintf("account %q already exists", newName)}
	}

	s.accounts[newName] = acct
	delete(s.accounts, oldName)
	s.invalidateStatements(oldName)
	s.invalidateStatements(newName)

	durable := s.persist(ctx, newName)
	if durable {
		if err := s.store.DeleteAccount(ctx, oldName); err != nil {
			durable = false
			s.metrics.IncrStoreError("ledger")
			s.logger.Error("ledger: stale copy left under old name", zap.String("account", oldName), zap.Error(err))
		}
	} else {
		// The copy never reached the store; deleting the old document
		// now would leave no durable copy at all.
		s.logger.Error("ledger: rename not durably saved, old document kept in store",
			zap.String("account", oldName),
			zap.String("new_name", newName),
		)
	}
	s.logger.Info("ledger: account renamed",
		zap.String("from", oldName),
		zap.String("to", newName),
		zap.Bool("durable", durable),
	)
	return durable, nil
}

// ============================================================
// Programs and opening balances
// ============================================================

// AddProgram starts tracking a funding program on an account, with a
// zero opening balance until one is entered.
func (s *LedgerService) AddProgram(ctx context.Context, account, program string) (bool, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.AddProgram")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.name", account),
		attribute.String("program", program),
	)

	program = strings.TrimSpace(program)
	if program == "" {
		return false, &domain.ErrValidation{Field: "name", Message: "program name is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[account]
	if !ok {
		return false, &domain.ErrNotFound{Resource: "account", ID: account}
	}
	if acct.HasProgram(program) {
		return false, &domain.ErrConflict{Message: fmt.Sprintf("program %q already tracked", program)}
	}
	acct.Programs = append(acct.Programs, program)
	acct.OpeningBalances[program] = domain.OpeningBalance{}
	s.invalidateStatements(account)

	durable := s.persist(ctx, account)
	s.logger.Info("ledger: program added",
		zap.String("account", account),
		zap.String("program", program),
		zap.Bool("durable", durable),
	)
	return durable, nil
}

// SetOpeningBalance records the manually entered starting position of
// a program. It rewrites history: every balance and statement derives
// from this value, whatever movements already exist.
func (s *LedgerService) SetOpeningBalance(ctx context.Context, account, program string, capital, custeio float64) (bool, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.SetOpeningBalance")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.name", account),
		attribute.String("program", program),
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[account]
	if !ok {
		return false, &domain.ErrNotFound{Resource: "account", ID: account}
	}
	if !acct.HasProgram(program) {
		return false, &domain.ErrNotFound{Resource: "program", ID: program}
	}
	acct.OpeningBalances[program] = domain.OpeningBalance{Capital: capital, Custeio: custeio}
	s.invalidateStatements(account)

	durable := s.persist(ctx, account)
	s.logger.Info("ledger: opening balance set",
		zap.String("account", account),
		zap.String("program", program),
		zap.Float64("capital", capital),
		zap.Float64("custeio", custeio),
		zap.Bool("durable", durable),
	)
	return durable, nil
}
