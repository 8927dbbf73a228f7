package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sme-tools/pdde-ledger/internal/domain"
	"github.com/sme-tools/pdde-ledger/internal/infra/cache"
	"github.com/sme-tools/pdde-ledger/internal/infra/memstore"
	"github.com/sme-tools/pdde-ledger/internal/infra/observability"
	"github.com/sme-tools/pdde-ledger/internal/infra/resilience"
	"github.com/sme-tools/pdde-ledger/internal/port"
	"github.com/sme-tools/pdde-ledger/internal/service"
)

// --- Mocks ---

// failingLedgerStore lets each operation be forced to fail, to check
// that the registry keeps working when the store does not. When
// saveErrOn is set, saves fail only for that account name; deleted
// records every delete call so tests can assert what reached the
// store.
type failingLedgerStore struct {
	loadErr   error
	saveErr   error
	saveErrOn string
	delErr    error
	deleted   []string
	accounts  map[string]*domain.Account
}

func (f *failingLedgerStore) LoadAllAccounts(_ context.Context) (map[string]*domain.Account, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.accounts == nil {
		return map[string]*domain.Account{}, nil
	}
	return f.accounts, nil
}

func (f *failingLedgerStore) SaveAccount(_ context.Context, name string, _ *domain.Account) error {
	if f.saveErrOn != "" && name != f.saveErrOn {
		return nil
	}
	return f.saveErr
}

func (f *failingLedgerStore) DeleteAccount(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return f.delErr
}

func (f *failingLedgerStore) Ping(_ context.Context) error { return nil }

// --- Helpers ---

func newLedger(t *testing.T) *service.LedgerService {
	t.Helper()
	return newLedgerWithStore(t, memstore.New())
}

func newLedgerWithStore(t *testing.T, store port.LedgerStore) *service.LedgerService {
	t.Helper()
	return service.NewLedgerService(
		store,
		cache.New[[]domain.StatementRow](time.Minute),
		resilience.NewBulkhead(2),
		observability.NewMetrics(),
		zap.NewNop(),
	)
}

func seedAccount(t *testing.T, svc *service.LedgerService, name string, openings map[string]domain.OpeningBalance) {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.RegisterAccount(ctx, name); err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	for prog, ob := range openings {
		if _, err := svc.AddProgram(ctx, name, prog); err != nil {
			t.Fatalf("add program %s: %v", prog, err)
		}
		if _, err := svc.SetOpeningBalance(ctx, name, prog, ob.Capital, ob.Custeio); err != nil {
			t.Fatalf("set opening balance %s: %v", prog, err)
		}
	}
}

// --- Tests ---

func TestRegisterAccount(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()

	durable, err := svc.RegisterAccount(ctx, "27.922-6")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !durable {
		t.Error("expected durable save with a healthy store")
	}
	if !svc.HasAccount("27.922-6") {
		t.Error("expected account to be registered")
	}

	names := svc.ListAccounts(ctx)
	if len(names) != 1 || names[0] != "27.922-6" {
		t.Errorf("expected ['27.922-6'], got %v", names)
	}
}

func TestRegisterAccount_Duplicate(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()

	if _, err := svc.RegisterAccount(ctx, "27.922-6"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	_, err := svc.RegisterAccount(ctx, "27.922-6")
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestRegisterAccount_EmptyName(t *testing.T) {
	svc := newLedger(t)

	_, err := svc.RegisterAccount(context.Background(), "   ")
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRegisterAccount_StoreDown(t *testing.T) {
	svc := newLedgerWithStore(t, &failingLedgerStore{saveErr: errors.New("store down")})
	ctx := context.Background()

	durable, err := svc.RegisterAccount(ctx, "27.922-6")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if durable {
		t.Error("expected durable=false when the store save fails")
	}
	if !svc.HasAccount("27.922-6") {
		t.Error("expected the in-memory registration to survive the store failure")
	}
}

func TestRenameAccount(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()
	seedAccount(t, svc, "27.922-6", map[string]domain.OpeningBalance{
		"PDDE": {Capital: 100, Custeio: 50},
	})

	durable, err := svc.RenameAccount(ctx, "27.922-6", "27.922-7")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !durable {
		t.Error("expected durable rename with a healthy store")
	}
	if svc.HasAccount("27.922-6") {
		t.Error("expected old name to be gone")
	}

	acct, err := svc.GetAccount(ctx, "27.922-7")
	if err != nil {
		t.Fatalf("expected renamed account, got %v", err)
	}
	if got := acct.OpeningBalances["PDDE"].Capital; got != 100 {
		t.Errorf("expected opening capital 100 to move with the rename, got %v", got)
	}
}

func TestRenameAccount_TargetExists(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()
	seedAccount(t, svc, "27.922-6", map[string]domain.OpeningBalance{
		"PDDE": {Capital: 100},
	})
	if _, err := svc.RegisterAccount(ctx, "27.922-7"); err != nil {
		t.Fatalf("register target: %v", err)
	}

	_, err := svc.RenameAccount(ctx, "27.922-6", "27.922-7")
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// Neither account may have been touched by the failed rename.
	acct, err := svc.GetAccount(ctx, "27.922-6")
	if err != nil {
		t.Fatalf("expected source account to survive, got %v", err)
	}
	if got := acct.OpeningBalances["PDDE"].Capital; got != 100 {
		t.Errorf("expected source untouched, got capital %v", got)
	}
	target, err := svc.GetAccount(ctx, "27.922-7")
	if err != nil {
		t.Fatalf("expected target account to survive, got %v", err)
	}
	if len(target.Programs) != 0 {
		t.Errorf("expected target untouched, got programs %v", target.Programs)
	}
}

func TestRenameAccount_CopyFailureKeepsOldDocument(t *testing.T) {
	// The store accepts every write except the copy under the new
	// name. The old document must then survive in the store: deleting
	// it after a failed copy would leave no durable copy at all.
	store := &failingLedgerStore{saveErr: errors.New("store down"), saveErrOn: "27.922-7"}
	svc := newLedgerWithStore(t, store)
	ctx := context.Background()
	seedAccount(t, svc, "27.922-6", map[string]domain.OpeningBalance{
		"PDDE": {Capital: 100},
	})

	durable, err := svc.RenameAccount(ctx, "27.922-6", "27.922-7")
	if err != nil {
		t.Fatalf("expected the rename to apply in memory, got %v", err)
	}
	if durable {
		t.Error("expected durable=false when the copy-save fails")
	}
	if len(store.deleted) != 0 {
		t.Errorf("expected no store delete after a failed copy, got deletes for %v", store.deleted)
	}

	// The in-memory rename still stands for the session.
	if svc.HasAccount("27.922-6") {
		t.Error("expected the old name to be gone from the registry")
	}
	acct, err := svc.GetAccount(ctx, "27.922-7")
	if err != nil {
		t.Fatalf("expected the renamed account in the registry, got %v", err)
	}
	if got := acct.OpeningBalances["PDDE"].Capital; got != 100 {
		t.Errorf("expected the document to move with the rename, got capital %v", got)
	}
}

func TestRenameAccount_Missing(t *testing.T) {
	svc := newLedger(t)

	_, err := svc.RenameAccount(context.Background(), "nope", "other")
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRenameAccount_SameName(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()
	if _, err := svc.RegisterAccount(ctx, "27.922-6"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := svc.RenameAccount(ctx, "27.922-6", "27.922-6")
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDeleteAccount(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()
	if _, err := svc.RegisterAccount(ctx, "27.922-6"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.DeleteAccount(ctx, "27.922-6"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if svc.HasAccount("27.922-6") {
		t.Error("expected account to be gone")
	}

	_, err := svc.DeleteAccount(ctx, "27.922-6")
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestAddProgram_Duplicate(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()
	seedAccount(t, svc, "27.922-6", map[string]domain.OpeningBalance{"PDDE": {}})

	_, err := svc.AddProgram(ctx, "27.922-6", "PDDE")
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestSetOpeningBalance_UnknownProgram(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()
	if _, err := svc.RegisterAccount(ctx, "27.922-6"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := svc.SetOpeningBalance(ctx, "27.922-6", "PDDE", 100, 0)
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetAccount_ReturnsCopy(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()
	seedAccount(t, svc, "27.922-6", map[string]domain.OpeningBalance{
		"PDDE": {Capital: 100},
	})

	acct, err := svc.GetAccount(ctx, "27.922-6")
	if err != nil {
		t.Fatalf("expected account, got %v", err)
	}
	acct.OpeningBalances["PDDE"] = domain.OpeningBalance{Capital: 999}
	acct.Programs = append(acct.Programs, "intruder")

	fresh, err := svc.GetAccount(ctx, "27.922-6")
	if err != nil {
		t.Fatalf("expected account, got %v", err)
	}
	if got := fresh.OpeningBalances["PDDE"].Capital; got != 100 {
		t.Errorf("expected registry to be isolated from returned copies, got capital %v", got)
	}
	if len(fresh.Programs) != 1 {
		t.Errorf("expected 1 program, got %v", fresh.Programs)
	}
}

func TestLoad_HydratesFromStore(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	acct := domain.NewAccount()
	acct.Programs = append(acct.Programs, "PDDE")
	acct.OpeningBalances["PDDE"] = domain.OpeningBalance{Capital: 100, Custeio: 50}
	if err := store.SaveAccount(ctx, "27.922-6", acct); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	svc := newLedgerWithStore(t, store)
	if err := svc.Load(ctx); err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}

	got, err := svc.PriorBalance(ctx, "27.922-6", "PDDE", domain.Capital, 1, 2025)
	if err != nil {
		t.Fatalf("expected balance, got %v", err)
	}
	if got != 100 {
		t.Errorf("expected opening capital 100, got %v", got)
	}
}

func TestLoad_StoreErrorKeepsRegistry(t *testing.T) {
	svc := newLedgerWithStore(t, &failingLedgerStore{loadErr: errors.New("store down")})
	ctx := context.Background()

	if _, err := svc.RegisterAccount(ctx, "27.922-6"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.Load(ctx); err == nil {
		t.Fatal("expected load error, got nil")
	}
	if !svc.HasAccount("27.922-6") {
		t.Error("expected failed load to keep the in-memory registry")
	}
}
