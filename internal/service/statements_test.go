package service_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sme-tools/pdde-ledger/internal/domain"
	"github.com/sme-tools/pdde-ledger/internal/infra/cache"
	"github.com/sme-tools/pdde-ledger/internal/infra/memstore"
	"github.com/sme-tools/pdde-ledger/internal/infra/observability"
	"github.com/sme-tools/pdde-ledger/internal/infra/resilience"
	"github.com/sme-tools/pdde-ledger/internal/service"
)

func TestStatement_RunningBalances(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()
	seedAccount(t, svc, "27.922-6", map[string]domain.OpeningBalance{
		"PDDE": {Capital: 100, Custeio: 50},
	})

	_, err := svc.SavePeriod(ctx, "27.922-6", 1, 2025, 10, map[string]domain.MovementInput{
		"PDDE": {CreditCapital: 50},
	})
	if err != nil {
		t.Fatalf("save period: %v", err)
	}

	rows, err := svc.Statement(ctx, "27.922-6", "PDDE", 2025)
	if err != nil {
		t.Fatalf("expected statement, got %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected a movement row and a TOTAL row, got %d rows", len(rows))
	}

	jan := rows[0]
	if jan.Month != 1 || jan.Credit != 50 || jan.Interest != 10 {
		t.Errorf("unexpected January row: %+v", jan)
	}
	if math.Abs(jan.RunningCapital-157.5) > 1e-9 || math.Abs(jan.RunningCusteio-52.5) > 1e-9 {
		t.Errorf("unexpected running balances: %+v", jan)
	}
	if math.Abs(jan.RunningTotal-210) > 1e-9 {
		t.Errorf("expected running total 210, got %v", jan.RunningTotal)
	}

	total := rows[1]
	if !total.IsTotal() {
		t.Fatalf("expected a TOTAL row, got %+v", total)
	}
	if total.RunningTotal != jan.RunningTotal {
		t.Errorf("expected TOTAL to carry the final running balance, got %+v", total)
	}
}

func TestStatement_AllPrograms(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()
	if _, err := svc.RegisterAccount(ctx, "27.922-6"); err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, prog := range []string{"PDDE", "PDDE Qualidade"} {
		if _, err := svc.AddProgram(ctx, "27.922-6", prog); err != nil {
			t.Fatalf("add program %s: %v", prog, err)
		}
	}

	_, err := svc.SavePeriod(ctx, "27.922-6", 2, 2025, 0, map[string]domain.MovementInput{
		"PDDE":           {CreditCapital: 10},
		"PDDE Qualidade": {CreditCusteio: 20},
	})
	if err != nil {
		t.Fatalf("save period: %v", err)
	}

	rows, err := svc.Statement(ctx, "27.922-6", domain.AllPrograms, 2025)
	if err != nil {
		t.Fatalf("expected statement, got %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected two series of movement+TOTAL, got %d rows", len(rows))
	}
	if rows[0].Program != "PDDE" || !rows[1].IsTotal() {
		t.Errorf("unexpected first series: %+v, %+v", rows[0], rows[1])
	}
	if rows[2].Program != "PDDE Qualidade" || !rows[3].IsTotal() {
		t.Errorf("unexpected second series: %+v, %+v", rows[2], rows[3])
	}
}

func TestStatement_CacheInvalidatedOnWrite(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()
	seedAccount(t, svc, "27.922-6", map[string]domain.OpeningBalance{"PDDE": {Capital: 100}})

	_, err := svc.SavePeriod(ctx, "27.922-6", 1, 2025, 0, map[string]domain.MovementInput{
		"PDDE": {CreditCapital: 10},
	})
	if err != nil {
		t.Fatalf("save period: %v", err)
	}

	rows, err := svc.Statement(ctx, "27.922-6", "PDDE", 2025)
	if err != nil {
		t.Fatalf("expected statement, got %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows before the second save, got %d", len(rows))
	}

	_, err = svc.SavePeriod(ctx, "27.922-6", 2, 2025, 0, map[string]domain.MovementInput{
		"PDDE": {CreditCapital: 10},
	})
	if err != nil {
		t.Fatalf("save period: %v", err)
	}

	rows, err = svc.Statement(ctx, "27.922-6", "PDDE", 2025)
	if err != nil {
		t.Fatalf("expected statement, got %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("expected the cached statement to be evicted by the save, got %d rows", len(rows))
	}
}

func TestStatement_CacheHitRecorded(t *testing.T) {
	metrics := observability.NewMetrics()
	svc := service.NewLedgerService(
		memstore.New(),
		cache.New[[]domain.StatementRow](time.Minute),
		resilience.NewBulkhead(2),
		metrics,
		zap.NewNop(),
	)
	ctx := context.Background()
	seedAccount(t, svc, "27.922-6", map[string]domain.OpeningBalance{"PDDE": {Capital: 100}})

	for i := 0; i < 2; i++ {
		if _, err := svc.Statement(ctx, "27.922-6", "PDDE", 2025); err != nil {
			t.Fatalf("statement call %d: %v", i, err)
		}
	}

	snap := metrics.GetLedgerSnapshot()
	if snap.CacheHitRate != 0.5 {
		t.Errorf("expected one miss then one hit, got hit rate %v", snap.CacheHitRate)
	}
}

func TestStatement_NotFound(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()
	seedAccount(t, svc, "27.922-6", map[string]domain.OpeningBalance{"PDDE": {}})

	var nf *domain.ErrNotFound

	_, err := svc.Statement(ctx, "nope", "PDDE", 2025)
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound for unknown account, got %v", err)
	}

	_, err = svc.Statement(ctx, "27.922-6", "intruder", 2025)
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound for unknown program, got %v", err)
	}
}
