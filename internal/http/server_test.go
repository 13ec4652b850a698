package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"contas/internal/cache"
	"contas/internal/core"
	"contas/internal/services"
	"contas/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "contas.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	projections := cache.NewLRUCache[[]core.ProjectionPoint](16, time.Minute)
	ledger := services.NewLedgerService(repo, nil, projections, 90)
	statements := services.NewStatementService(ledger, repo)
	reserves := services.NewReserveService(repo)

	srv := NewServer(":0", ledger, statements, reserves, repo, nil)
	srv.today = func() core.Date { return core.NewDate(2026, 3, 20) }
	t.Cleanup(srv.limiter.Stop)
	return srv
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func mustStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func createCategory(t *testing.T, srv *Server, name string) categoryResponse {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/categories", categoryRequest{Name: name, Type: "EXPENSE"})
	mustStatus(t, rec, http.StatusCreated)
	return decode[categoryResponse](t, rec)
}

func createCard(t *testing.T, srv *Server) cardResponse {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/cards", cardRequest{
		Name: "Nubank", Limit: "5000.00", ClosingDay: 5, DueDay: 15,
	})
	mustStatus(t, rec, http.StatusCreated)
	return decode[cardResponse](t, rec)
}

func TestEntryLifecycle(t *testing.T) {
	srv := newTestServer(t)
	cat := createCategory(t, srv, "Moradia")

	rec := do(t, srv, http.MethodPost, "/api/entries", entryRequest{
		CategoryID:  cat.ID,
		Amount:      "-125,50",
		Date:        "2026-03-10",
		Description: "Aluguel",
	})
	mustStatus(t, rec, http.StatusCreated)
	created := decode[entryResponse](t, rec)
	if created.ID == "" {
		t.Fatal("expected generated entry ID")
	}
	if created.AmountCents != -12550 {
		t.Errorf("AmountCents = %d, want -12550", created.AmountCents)
	}
	if created.Status != "PAID" {
		t.Errorf("Status = %q, want PAID default", created.Status)
	}

	rec = do(t, srv, http.MethodGet, "/api/entries/"+created.ID, nil)
	mustStatus(t, rec, http.StatusOK)
	got := decode[entryResponse](t, rec)
	if got.Description != "Aluguel" || got.Date != "2026-03-10" {
		t.Errorf("unexpected entry %+v", got)
	}

	rec = do(t, srv, http.MethodPut, "/api/entries/"+created.ID, entryRequest{
		CategoryID:  cat.ID,
		Amount:      "-130.00",
		Date:        "2026-03-10",
		Description: "Aluguel reajustado",
	})
	mustStatus(t, rec, http.StatusOK)
	updated := decode[entryResponse](t, rec)
	if updated.AmountCents != -13000 {
		t.Errorf("AmountCents after update = %d, want -13000", updated.AmountCents)
	}
	if updated.CreatedAt != created.CreatedAt {
		t.Errorf("update must preserve created_at: %q != %q", updated.CreatedAt, created.CreatedAt)
	}

	rec = do(t, srv, http.MethodDelete, "/api/entries/"+created.ID, nil)
	mustStatus(t, rec, http.StatusOK)

	rec = do(t, srv, http.MethodGet, "/api/entries/"+created.ID, nil)
	mustStatus(t, rec, http.StatusNotFound)
}

func TestCreateEntryRejectsBadInput(t *testing.T) {
	srv := newTestServer(t)
	cat := createCategory(t, srv, "Mercado")

	t.Run("zero amount", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/api/entries", entryRequest{
			CategoryID: cat.ID, Amount: "0", Date: "2026-03-10", Description: "x",
		})
		mustStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/api/entries", map[string]any{
			"category_id": cat.ID, "amount": "10.00", "date": "2026-03-10",
			"description": "x", "amount_cents": 1000,
		})
		mustStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("empty description", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/api/entries", entryRequest{
			CategoryID: cat.ID, Amount: "10.00", Date: "2026-03-10", Description: "   ",
		})
		mustStatus(t, rec, http.StatusUnprocessableEntity)
	})

	t.Run("bad date", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/api/entries", entryRequest{
			CategoryID: cat.ID, Amount: "10.00", Date: "10/03/2026", Description: "x",
		})
		mustStatus(t, rec, http.StatusBadRequest)
	})
}

func TestProjectionEndpoint(t *testing.T) {
	srv := newTestServer(t)
	cat := createCategory(t, srv, "Salario")

	for _, e := range []entryRequest{
		{CategoryID: cat.ID, Amount: "1000.00", Date: "2026-03-20", Description: "Salario"},
		{CategoryID: cat.ID, Amount: "-100.00", Date: "2026-03-22", Description: "Luz"},
	} {
		mustStatus(t, do(t, srv, http.MethodPost, "/api/entries", e), http.StatusCreated)
	}

	rec := do(t, srv, http.MethodGet, "/api/projection?days=3&date=2026-03-20", nil)
	mustStatus(t, rec, http.StatusOK)
	points := decode[[]projectionPoint](t, rec)

	want := []projectionPoint{
		{Date: "2026-03-20", BalanceCents: 100000},
		{Date: "2026-03-21", BalanceCents: 100000},
		{Date: "2026-03-22", BalanceCents: 90000},
		{Date: "2026-03-23", BalanceCents: 90000},
	}
	if len(points) != len(want) {
		t.Fatalf("got %d points, want %d", len(points), len(want))
	}
	for i, p := range points {
		if p != want[i] {
			t.Errorf("point %d = %+v, want %+v", i, p, want[i])
		}
	}
}

func TestProjectionRejectsNegativeDays(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/projection?days=-1", nil)
	mustStatus(t, rec, http.StatusBadRequest)
}

func TestStatementFlow(t *testing.T) {
	srv := newTestServer(t)
	cat := createCategory(t, srv, "Compras")
	card := createCard(t, srv)

	rec := do(t, srv, http.MethodPost, "/api/entries", entryRequest{
		CategoryID:  cat.ID,
		CardID:      card.ID,
		Amount:      "-200.00",
		Date:        "2026-03-10",
		Description: "Mercado",
		Status:      "PENDING",
	})
	mustStatus(t, rec, http.StatusCreated)

	rec = do(t, srv, http.MethodGet, "/api/cards/"+card.ID+"/statement?date=2026-03-20", nil)
	mustStatus(t, rec, http.StatusOK)
	stmt := decode[statementResponse](t, rec)

	if stmt.Period.Start != "2026-03-06" || stmt.Period.End != "2026-04-05" {
		t.Errorf("period = %+v, want 2026-03-06..2026-04-05", stmt.Period)
	}
	if stmt.TotalCents != -20000 {
		t.Errorf("TotalCents = %d, want -20000", stmt.TotalCents)
	}
	if stmt.Status != "OPEN" {
		t.Errorf("Status = %q, want OPEN", stmt.Status)
	}
	if stmt.DueDate != "2026-04-15" {
		t.Errorf("DueDate = %q, want 2026-04-15", stmt.DueDate)
	}
	if stmt.AvailableCreditCents != 480000 {
		t.Errorf("AvailableCreditCents = %d, want 480000", stmt.AvailableCreditCents)
	}

	rec = do(t, srv, http.MethodPost, "/api/cards/"+card.ID+"/pay?date=2026-03-20", nil)
	mustStatus(t, rec, http.StatusOK)
	paid := decode[map[string]int64](t, rec)
	if paid["settled_cents"] != -20000 {
		t.Errorf("settled_cents = %d, want -20000", paid["settled_cents"])
	}

	rec = do(t, srv, http.MethodGet, "/api/cards/"+card.ID+"/statement?date=2026-03-20", nil)
	mustStatus(t, rec, http.StatusOK)
	stmt = decode[statementResponse](t, rec)
	if stmt.Status != "PAID" {
		t.Errorf("Status after payment = %q, want PAID", stmt.Status)
	}
	if stmt.AvailableCreditCents != 500000 {
		t.Errorf("AvailableCreditCents after payment = %d, want 500000", stmt.AvailableCreditCents)
	}
}

func TestPayNamedStatementMonth(t *testing.T) {
	srv := newTestServer(t)
	cat := createCategory(t, srv, "Compras")
	card := createCard(t, srv)

	rec := do(t, srv, http.MethodPost, "/api/entries", entryRequest{
		CategoryID:  cat.ID,
		CardID:      card.ID,
		Amount:      "-150.00",
		Date:        "2026-03-10",
		Description: "Mercado",
		Status:      "PENDING",
	})
	mustStatus(t, rec, http.StatusCreated)

	// The charge belongs to the cycle closing 2026-04-05.
	rec = do(t, srv, http.MethodPost, "/api/cards/"+card.ID+"/pay?month=2026-04", nil)
	mustStatus(t, rec, http.StatusOK)
	paid := decode[map[string]int64](t, rec)
	if paid["settled_cents"] != -15000 {
		t.Errorf("settled_cents = %d, want -15000", paid["settled_cents"])
	}

	rec = do(t, srv, http.MethodPost, "/api/cards/"+card.ID+"/pay?month=march", nil)
	mustStatus(t, rec, http.StatusBadRequest)
}

func TestStatementUnknownCard(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/cards/nope/statement", nil)
	mustStatus(t, rec, http.StatusNotFound)
}

func TestFutureCyclesEndpoint(t *testing.T) {
	srv := newTestServer(t)
	cat := createCategory(t, srv, "Assinaturas")
	card := createCard(t, srv)

	rec := do(t, srv, http.MethodPost, "/api/rules", ruleRequest{
		CategoryID:  cat.ID,
		CardID:      card.ID,
		Amount:      "-49,90",
		Description: "Streaming",
		DayOfMonth:  10,
	})
	mustStatus(t, rec, http.StatusCreated)

	rec = do(t, srv, http.MethodGet, "/api/cards/"+card.ID+"/future?cycles=2&date=2026-03-20", nil)
	mustStatus(t, rec, http.StatusOK)
	cycles := decode[[]futureCycleResponse](t, rec)

	if len(cycles) != 2 {
		t.Fatalf("got %d cycles, want 2", len(cycles))
	}
	for i, c := range cycles {
		if c.TotalCents != -4990 {
			t.Errorf("cycle %d TotalCents = %d, want -4990", i, c.TotalCents)
		}
		if !c.Virtual {
			t.Errorf("cycle %d not marked virtual", i)
		}
	}
}

func TestRuleValidation(t *testing.T) {
	srv := newTestServer(t)
	cat := createCategory(t, srv, "Casa")

	t.Run("day out of range", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/api/rules", ruleRequest{
			CategoryID: cat.ID, Amount: "-10.00", Description: "x", DayOfMonth: 32,
		})
		mustStatus(t, rec, http.StatusUnprocessableEntity)
	})

	t.Run("day 31 accepted", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/api/rules", ruleRequest{
			CategoryID: cat.ID, Amount: "-10.00", Description: "Fatura", DayOfMonth: 31,
		})
		mustStatus(t, rec, http.StatusCreated)
		rule := decode[ruleResponse](t, rec)
		if rule.DayOfMonth != 31 || !rule.Active {
			t.Errorf("unexpected rule %+v", rule)
		}
	})
}

func TestReserveFlow(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/reserves", reserveRequest{
		Name: "Viagem", Target: "1200.00", Deadline: "2026-07-31",
	})
	mustStatus(t, rec, http.StatusCreated)
	reserve := decode[reserveResponse](t, rec)
	if reserve.TargetCents != 120000 || reserve.CurrentCents != 0 {
		t.Fatalf("unexpected reserve %+v", reserve)
	}

	rec = do(t, srv, http.MethodPost, "/api/reserves/"+reserve.ID+"/transactions",
		reserveTransactionRequest{Amount: "200.00", Kind: "deposit"})
	mustStatus(t, rec, http.StatusOK)
	after := decode[reserveResponse](t, rec)
	if after.CurrentCents != 20000 || len(after.History) != 1 {
		t.Fatalf("after deposit %+v", after)
	}

	rec = do(t, srv, http.MethodPost, "/api/reserves/"+reserve.ID+"/transactions",
		reserveTransactionRequest{Amount: "50.00", Kind: "WITHDRAW"})
	mustStatus(t, rec, http.StatusOK)
	after = decode[reserveResponse](t, rec)
	if after.CurrentCents != 15000 {
		t.Fatalf("after withdraw CurrentCents = %d, want 15000", after.CurrentCents)
	}

	rec = do(t, srv, http.MethodPost, "/api/reserves/"+reserve.ID+"/transactions",
		reserveTransactionRequest{Amount: "1000.00", Kind: "WITHDRAW"})
	mustStatus(t, rec, http.StatusConflict)

	// 4 whole months from the pinned 2026-03-20 to the July deadline.
	rec = do(t, srv, http.MethodGet, "/api/reserves/"+reserve.ID+"/plan", nil)
	mustStatus(t, rec, http.StatusOK)
	plan := decode[planResponse](t, rec)
	if plan.MonthsRemaining != 4 {
		t.Errorf("MonthsRemaining = %d, want 4", plan.MonthsRemaining)
	}
	if plan.MonthlyCents != 26250 {
		t.Errorf("MonthlyCents = %d, want 26250", plan.MonthlyCents)
	}
	if plan.Late {
		t.Error("plan unexpectedly late")
	}

	rec = do(t, srv, http.MethodDelete, "/api/reserves/"+reserve.ID, nil)
	mustStatus(t, rec, http.StatusOK)
	rec = do(t, srv, http.MethodGet, "/api/reserves/"+reserve.ID, nil)
	mustStatus(t, rec, http.StatusNotFound)
}

func TestCategoryValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/categories", categoryRequest{Name: "X", Type: "OTHER"})
	mustStatus(t, rec, http.StatusUnprocessableEntity)

	rec = do(t, srv, http.MethodPost, "/api/categories", categoryRequest{Name: "", Type: "INCOME"})
	mustStatus(t, rec, http.StatusUnprocessableEntity)
}

func TestCardValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/cards", cardRequest{
		Name: "Visa", Limit: "1000.00", ClosingDay: 15, DueDay: 10,
	})
	mustStatus(t, rec, http.StatusUnprocessableEntity)

	rec = do(t, srv, http.MethodPost, "/api/cards", cardRequest{
		Name: "Visa", Limit: "-1000.00", ClosingDay: 5, DueDay: 15,
	})
	mustStatus(t, rec, http.StatusBadRequest)
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/healthz", nil)
	mustStatus(t, rec, http.StatusOK)

	rec = do(t, srv, http.MethodGet, "/readyz", nil)
	mustStatus(t, rec, http.StatusOK)
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/healthz", nil)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t)

	var last *httptest.ResponseRecorder
	for i := 0; i < 61; i++ {
		last = do(t, srv, http.MethodGet, "/healthz", nil)
	}
	mustStatus(t, last, http.StatusTooManyRequests)
	if got := last.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded single", map[string]string{"X-Forwarded-For": "203.0.113.9"}, "10.0.0.1:1", "203.0.113.9"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.2"}, "10.0.0.1:1", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.1:1", "198.51.100.4"},
		{"remote addr", nil, "10.0.0.1:1234", "10.0.0.1:1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/nonsense", nil)
	mustStatus(t, rec, http.StatusNotFound)
}
