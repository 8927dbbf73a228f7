package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sme-tools/pdde-ledger/internal/domain"
	"github.com/sme-tools/pdde-ledger/internal/handler"
	"github.com/sme-tools/pdde-ledger/internal/infra/cache"
	"github.com/sme-tools/pdde-ledger/internal/infra/memstore"
	"github.com/sme-tools/pdde-ledger/internal/infra/observability"
	"github.com/sme-tools/pdde-ledger/internal/infra/resilience"
	"github.com/sme-tools/pdde-ledger/internal/infra/supabase"
	"github.com/sme-tools/pdde-ledger/internal/service"
)

// newServer builds the full application over the in-memory store and
// serves it on a real listener.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memstore.New()
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	bulkhead := resilience.NewBulkhead(4)

	ledgerSvc := service.NewLedgerService(
		store,
		cache.New[[]domain.StatementRow](5*time.Minute),
		bulkhead,
		metrics,
		logger,
	)
	orderSvc := service.NewPurchaseOrderService(store, store, ledgerSvc, bulkhead, 1<<20, metrics, logger)

	srv := httptest.NewServer(handler.NewRouter(ledgerSvc, orderSvc, metrics, logger))
	t.Cleanup(srv.Close)
	return srv
}

func request(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func requireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("expected %d, got %d. Body: %s", want, resp.StatusCode, body)
	}
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// TestIntegration_LedgerFullFlow walks one account through the whole
// bookkeeping year: registration, programs, opening balances, a period
// save with interest allocation, balance and statement reads, and the
// rename conflict rule.
func TestIntegration_LedgerFullFlow(t *testing.T) {
	srv := newServer(t)

	resp := request(t, http.MethodPost, srv.URL+"/v1/accounts", map[string]string{"name": "28.001-4"})
	requireStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	for _, prog := range []string{"PDDE", "PDDE Qualidade"} {
		resp = request(t, http.MethodPost, srv.URL+"/v1/accounts/28.001-4/programs", map[string]string{"program": prog})
		requireStatus(t, resp, http.StatusCreated)
		resp.Body.Close()
	}

	resp = request(t, http.MethodPut, srv.URL+"/v1/accounts/28.001-4/programs/PDDE/opening-balance",
		map[string]float64{"Capital": 300})
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	resp = request(t, http.MethodPut, srv.URL+"/v1/accounts/28.001-4/programs/PDDE Qualidade/opening-balance",
		map[string]float64{"Capital": 100})
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// January: no manual movements, 40.00 of bank interest to split
	// 3:1 across the program bases.
	resp = request(t, http.MethodPut, srv.URL+"/v1/accounts/28.001-4/periods/2025/1", map[string]any{
		"bank_interest": 40,
		"entries": map[string]any{
			"PDDE":           map[string]float64{},
			"PDDE Qualidade": map[string]float64{},
		},
	})
	requireStatus(t, resp, http.StatusOK)
	var saved domain.PeriodResult
	decodeBody(t, resp, &saved)
	if !saved.Durable {
		t.Error("expected a durable period save")
	}
	if len(saved.Movements) != 2 {
		t.Fatalf("expected 2 movements, got %d", len(saved.Movements))
	}
	var allocated float64
	for _, m := range saved.Movements {
		allocated += m.TotalInterest
	}
	if math.Abs(allocated-40) > 1e-6 {
		t.Errorf("expected the allocation to conserve the bank figure, got %v", allocated)
	}

	resp = request(t, http.MethodGet,
		srv.URL+"/v1/accounts/28.001-4/balance?program=PDDE&kind=Capital&month=2&year=2025", nil)
	requireStatus(t, resp, http.StatusOK)
	var balance struct {
		Balance float64 `json:"balance"`
	}
	decodeBody(t, resp, &balance)
	if math.Abs(balance.Balance-330) > 1e-9 {
		t.Errorf("expected February balance 330, got %v", balance.Balance)
	}

	resp = request(t, http.MethodGet, srv.URL+"/v1/accounts/28.001-4/statement?year=2025", nil)
	requireStatus(t, resp, http.StatusOK)
	var stmt domain.ListResponse[domain.StatementRow]
	decodeBody(t, resp, &stmt)
	if stmt.Total != 4 {
		t.Fatalf("expected two program series of movement+TOTAL, got %d rows", stmt.Total)
	}

	// Renaming onto an existing account must fail without touching
	// either account.
	resp = request(t, http.MethodPost, srv.URL+"/v1/accounts", map[string]string{"name": "28.001-5"})
	requireStatus(t, resp, http.StatusCreated)
	resp.Body.Close()
	resp = request(t, http.MethodPost, srv.URL+"/v1/accounts/28.001-4/rename", map[string]string{"new_name": "28.001-5"})
	requireStatus(t, resp, http.StatusConflict)
	resp.Body.Close()
	resp = request(t, http.MethodGet, srv.URL+"/v1/accounts/28.001-4", nil)
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = request(t, http.MethodGet, srv.URL+"/v1/metrics/summary", nil)
	requireStatus(t, resp, http.StatusOK)
	var snap domain.LedgerMetrics
	decodeBody(t, resp, &snap)
	if snap.PeriodsSaved != 1 {
		t.Errorf("expected one period save recorded, got %d", snap.PeriodsSaved)
	}

	fmt.Println("✅ ledger full flow passed")
}

// TestIntegration_PurchaseOrderReceipts covers the purchase order
// registry with a real multipart upload and download round trip.
func TestIntegration_PurchaseOrderReceipts(t *testing.T) {
	srv := newServer(t)

	resp := request(t, http.MethodPost, srv.URL+"/v1/accounts", map[string]string{"name": "28.001-4"})
	requireStatus(t, resp, http.StatusCreated)
	resp.Body.Close()
	resp = request(t, http.MethodPost, srv.URL+"/v1/accounts/28.001-4/programs", map[string]string{"program": "PDDE"})
	requireStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = request(t, http.MethodPost, srv.URL+"/v1/purchase-orders", map[string]any{
		"account":       "28.001-4",
		"program":       "PDDE",
		"number":        "2025NE000077",
		"supplier":      "Livraria Saber",
		"amount":        980.00,
		"resource_kind": "Capital",
		"issue_date":    "2025-04-03",
	})
	requireStatus(t, resp, http.StatusCreated)
	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &created)
	if created.ID == "" {
		t.Fatal("expected an order id")
	}

	receipt := []byte("scanned invoice")
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "nota-77.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write(receipt)
	mw.Close()

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/v1/purchase-orders/"+created.ID+"/receipt", &buf)
	if err != nil {
		t.Fatalf("build upload: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	upResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	requireStatus(t, upResp, http.StatusOK)
	upResp.Body.Close()

	resp = request(t, http.MethodGet, srv.URL+"/v1/purchase-orders/"+created.ID+"/receipt", nil)
	requireStatus(t, resp, http.StatusOK)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read receipt: %v", err)
	}
	if !bytes.Equal(body, receipt) {
		t.Errorf("expected the uploaded bytes back, got %q", body)
	}

	resp = request(t, http.MethodDelete, srv.URL+"/v1/purchase-orders/"+created.ID+"/receipt", nil)
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	resp = request(t, http.MethodGet, srv.URL+"/v1/purchase-orders/"+created.ID+"/receipt", nil)
	requireStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

// ============================================================
// Supabase backend against a PostgREST stand-in
// ============================================================

type postgrestMock struct {
	mu         sync.Mutex
	docs       map[string]json.RawMessage
	lastPrefer string
}

type accountRow struct {
	Name string          `json:"name"`
	Doc  json.RawMessage `json:"doc"`
}

func (m *postgrestMock) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/pdde_accounts", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			rows := make([]accountRow, 0, len(m.docs))
			for name, doc := range m.docs {
				rows = append(rows, accountRow{Name: name, Doc: doc})
			}
			sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(rows)
		case http.MethodPost:
			m.lastPrefer = r.Header.Get("Prefer")
			var row accountRow
			if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			m.docs[row.Name] = row.Doc
			w.WriteHeader(http.StatusCreated)
		case http.MethodDelete:
			name := strings.TrimPrefix(r.URL.Query().Get("name"), "eq.")
			delete(m.docs, name)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	emptyList := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("[]"))
	}
	mux.HandleFunc("/rest/v1/pdde_purchase_orders", emptyList)
	mux.HandleFunc("/rest/v1/pdde_attachments", emptyList)
	return mux
}

// TestIntegration_SupabaseBackend hydrates the ledger from a PostgREST
// stand-in and checks that writes go back as upserts.
func TestIntegration_SupabaseBackend(t *testing.T) {
	seed := domain.NewAccount()
	seed.Programs = append(seed.Programs, "PDDE")
	seed.OpeningBalances["PDDE"] = domain.OpeningBalance{Capital: 100}
	seedDoc, err := json.Marshal(seed)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}

	mock := &postgrestMock{docs: map[string]json.RawMessage{"28.001-4": seedDoc}}
	pgSrv := httptest.NewServer(mock.handler())
	defer pgSrv.Close()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	cb := resilience.NewCircuitBreaker("supabase-test")
	resCfg := resilience.Config{MaxRetries: 1, InitialBackoff: 10 * time.Millisecond, MaxConcurrency: 4}
	httpClient := &http.Client{Timeout: 5 * time.Second}

	client := supabase.NewClient(httpClient, pgSrv.URL, "test-key", cb, resCfg, logger)
	ledgerSvc := service.NewLedgerService(
		client,
		cache.New[[]domain.StatementRow](time.Minute),
		resilience.NewBulkhead(4),
		metrics,
		logger,
	)

	ctx := context.Background()
	if err := ledgerSvc.Load(ctx); err != nil {
		t.Fatalf("expected load from PostgREST to succeed, got %v", err)
	}
	if !ledgerSvc.HasAccountProgram("28.001-4", "PDDE") {
		t.Fatal("expected the seeded account to be hydrated")
	}

	result, err := ledgerSvc.SavePeriod(ctx, "28.001-4", 1, 2025, 10, map[string]domain.MovementInput{
		"PDDE": {CreditCapital: 50},
	})
	if err != nil {
		t.Fatalf("save period: %v", err)
	}
	if !result.Durable {
		t.Error("expected the save to reach the PostgREST stand-in")
	}
	if !strings.Contains(mock.lastPrefer, "resolution=merge-duplicates") {
		t.Errorf("expected an upsert Prefer header, got %q", mock.lastPrefer)
	}

	mock.mu.Lock()
	var stored domain.Account
	if err := json.Unmarshal(mock.docs["28.001-4"], &stored); err != nil {
		t.Fatalf("decode stored doc: %v", err)
	}
	mock.mu.Unlock()
	if len(stored.Movements) != 1 || stored.Movements[0].CreditCapital != 50 {
		t.Errorf("expected the movement in the stored document, got %+v", stored.Movements)
	}
}
