package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"paisable/internal/auth"
	"paisable/internal/core"
	"paisable/internal/middleware/ratelimit"
	"paisable/internal/services"
	"paisable/internal/storage/memory"
)

const testSecret = "test-secret-0123456789"

type fakeExtractor struct {
	draft core.ReceiptDraft
	err   error
}

func (f fakeExtractor) ExtractReceipt(context.Context, []byte, string) (core.ReceiptDraft, error) {
	return f.draft, f.err
}

type testEnv struct {
	srv   *Server
	store *memory.Store
	auth  *auth.Service
}

func newTestEnv(t *testing.T, extractor fakeExtractor, rl ratelimit.Config) *testEnv {
	t.Helper()
	store := memory.New()

	transactions := services.NewTransactionService(store, nil, nil)
	insights := services.NewInsightsService(store, services.WithCacheTTL(time.Minute))
	categories := services.NewCategoryService(store)
	transactions.OnChange(insights.Invalidate)
	categories.OnChange(insights.Invalidate)

	authSvc, err := auth.NewService(store, testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if rl.RequestsPerMinute == 0 {
		rl = ratelimit.Config{RequestsPerMinute: 100000, Burst: 10000}
	}

	srv := NewServer(":0", Services{
		Transactions: transactions,
		Insights:     insights,
		Categories:   categories,
		Receipts:     services.NewReceiptService(store, transactions, extractor, nil),
		Recurring:    services.NewRecurringService(store),
		Budgets:      services.NewBudgetService(store, store),
		Auth:         authSvc,
	}, Options{RateLimit: rl, Ready: store.Ping})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testEnv{srv: srv, store: store, auth: authSvc}
}

func (e *testEnv) token(t *testing.T, ownerID string) string {
	t.Helper()
	tok, err := e.auth.GenerateToken(ownerID)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, fakeExtractor{}, ratelimit.Config{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(t, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}
	if rr := env.do(t, http.MethodGet, "/healthz", "", nil); rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, fakeExtractor{}, ratelimit.Config{})
	for _, path := range []string{"/api/transactions", "/api/transactions/summary", "/api/receipts", "/api/recurring", "/api/budgets", "/api/auth/me"} {
		if rr := env.do(t, http.MethodGet, path, "", nil); rr.Code != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401", path, rr.Code)
		}
	}
	if rr := env.do(t, http.MethodGet, "/api/transactions", "not-a-jwt", nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", rr.Code)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	env := newTestEnv(t, fakeExtractor{}, ratelimit.Config{})
	tok := env.token(t, "owner-1")

	rr := env.do(t, http.MethodPost, "/api/transactions", tok, map[string]any{
		"name": "Salary", "category": "Salary", "cost": "2500.00", "addedOn": "2024-03-01", "isIncome": true,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body.String())
	}
	created := decode[core.Transaction](t, rr)
	if created.OwnerID != "owner-1" || !created.IsIncome || created.Cost.Cents != 250000 {
		t.Fatalf("created = %+v", created)
	}

	// an explicit false overwrites, an omitted field keeps the stored value
	rr = env.do(t, http.MethodPut, "/api/transactions/"+created.ID, tok, `{"isIncome": false}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rr.Code, rr.Body.String())
	}
	updated := decode[core.Transaction](t, rr)
	if updated.IsIncome || updated.Name != "Salary" || updated.Cost.Cents != 250000 {
		t.Errorf("updated = %+v", updated)
	}

	rr = env.do(t, http.MethodPut, "/api/transactions/"+created.ID, tok, `{"name": "Bonus"}`)
	if got := decode[core.Transaction](t, rr); got.IsIncome || got.Name != "Bonus" {
		t.Errorf("second update = %+v", got)
	}

	// an explicit zero cost is stored, an explicit empty name is rejected
	rr = env.do(t, http.MethodPut, "/api/transactions/"+created.ID, tok, `{"cost": 0}`)
	if got := decode[core.Transaction](t, rr); rr.Code != http.StatusOK || got.Cost.Cents != 0 || got.Name != "Bonus" {
		t.Errorf("zero cost update = %d %+v, want cost 0.00", rr.Code, got)
	}
	if rr := env.do(t, http.MethodPut, "/api/transactions/"+created.ID, tok, `{"name": ""}`); rr.Code != http.StatusBadRequest {
		t.Errorf("empty name update status = %d, want 400", rr.Code)
	}

	if rr := env.do(t, http.MethodDelete, "/api/transactions/"+created.ID, tok, nil); rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/transactions/"+created.ID, tok, nil)
	if got := decode[core.Transaction](t, rr); rr.Code != http.StatusOK || !got.IsDeleted {
		t.Errorf("get after delete = %d %+v, want the record flagged deleted", rr.Code, got)
	}

	page := decode[core.TransactionPage](t, env.do(t, http.MethodGet, "/api/transactions", tok, nil))
	if len(page.Transactions) != 0 || page.TotalPages != 0 {
		t.Errorf("list after delete = %+v, want empty", page)
	}

	if rr := env.do(t, http.MethodPut, "/api/transactions/"+created.ID, tok, `{"name": "x"}`); rr.Code != http.StatusNotFound {
		t.Errorf("update deleted status = %d, want 404", rr.Code)
	}
}

func TestTransactionOwnership(t *testing.T) {
	env := newTestEnv(t, fakeExtractor{}, ratelimit.Config{})
	owner, intruder := env.token(t, "owner-1"), env.token(t, "owner-2")

	rr := env.do(t, http.MethodPost, "/api/transactions", owner, map[string]any{
		"name": "Groceries", "category": "Groceries", "cost": 42.5,
	})
	created := decode[core.Transaction](t, rr)

	tests := []struct {
		method string
		path   string
		body   any
		want   int
	}{
		{http.MethodGet, "/api/transactions/" + created.ID, nil, http.StatusForbidden},
		{http.MethodPut, "/api/transactions/" + created.ID, `{"cost": 1}`, http.StatusForbidden},
		{http.MethodDelete, "/api/transactions/" + created.ID, nil, http.StatusForbidden},
		{http.MethodPut, "/api/transactions/unknown", `{"cost": 1}`, http.StatusNotFound},
		{http.MethodDelete, "/api/transactions/unknown", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if rr := env.do(t, tt.method, tt.path, intruder, tt.body); rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}

	got := decode[core.Transaction](t, env.do(t, http.MethodGet, "/api/transactions/"+created.ID, owner, nil))
	if got.Cost.Cents != 4250 || got.IsDeleted {
		t.Errorf("record changed by intruder: %+v", got)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	env := newTestEnv(t, fakeExtractor{}, ratelimit.Config{})
	tok := env.token(t, "owner-1")

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"category":"Food","cost":1}`},
		{"missing category", `{"name":"x","cost":1}`},
		{"negative cost", `{"name":"x","category":"Food","cost":-1}`},
		{"bad date", `{"name":"x","category":"Food","cost":1,"addedOn":"soon"}`},
		{"not json", `name=x`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := env.do(t, http.MethodPost, "/api/transactions", tok, tt.body); rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestListPagination(t *testing.T) {
	env := newTestEnv(t, fakeExtractor{}, ratelimit.Config{})
	tok := env.token(t, "owner-1")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 25 {
		rr := env.do(t, http.MethodPost, "/api/transactions", tok, map[string]any{
			"name": fmt.Sprintf("t%02d", i), "category": "Food", "cost": 1,
			"addedOn": base.AddDate(0, 0, i).Format(core.DayLayout),
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("seed %d: %d", i, rr.Code)
		}
	}

	page := decode[core.TransactionPage](t, env.do(t, http.MethodGet, "/api/transactions?page=2&limit=10", tok, nil))
	if len(page.Transactions) != 10 || page.TotalPages != 3 || page.CurrentPage != 2 {
		t.Fatalf("page = %d records, totalPages %d, currentPage %d", len(page.Transactions), page.TotalPages, page.CurrentPage)
	}
	// newest first: page two starts at the 11th most recent
	if page.Transactions[0].Name != "t14" {
		t.Errorf("first record of page 2 = %s, want t14", page.Transactions[0].Name)
	}

	filtered := decode[core.TransactionPage](t, env.do(t, http.MethodGet,
		"/api/transactions?startDate=2024-01-05&endDate=2024-01-07", tok, nil))
	if filtered.TotalCount != 3 {
		t.Errorf("date range count = %d, want 3 (inclusive bounds)", filtered.TotalCount)
	}

	if rr := env.do(t, http.MethodGet, "/api/transactions?page=abc", tok, nil); rr.Code != http.StatusBadRequest {
		t.Errorf("bad page status = %d, want 400", rr.Code)
	}
}

func TestSummaryAndCharts(t *testing.T) {
	env := newTestEnv(t, fakeExtractor{}, ratelimit.Config{})
	tok := env.token(t, "owner-1")
	today := time.Now().UTC().Format(core.DayLayout)

	for _, body := range []map[string]any{
		{"name": "Pay", "category": "Salary", "cost": "1000", "isIncome": true, "addedOn": today},
		{"name": "Rent", "category": "Bills", "cost": "700.25", "addedOn": today},
		{"name": "Lunch", "category": "Food", "cost": "12.10", "addedOn": today},
	} {
		if rr := env.do(t, http.MethodPost, "/api/transactions", tok, body); rr.Code != http.StatusCreated {
			t.Fatalf("seed: %d %s", rr.Code, rr.Body.String())
		}
	}

	summary := decode[map[string]any](t, env.do(t, http.MethodGet, "/api/transactions/summary", tok, nil))
	if fmt.Sprint(summary["totalIncome"]) != "1000" || fmt.Sprint(summary["balance"]) != "287.65" {
		t.Errorf("summary = %v", summary)
	}
	if recent, _ := summary["recentTransactions"].([]any); len(recent) != 3 {
		t.Errorf("recentTransactions = %v, want 3", summary["recentTransactions"])
	}

	charts := decode[core.ChartData](t, env.do(t, http.MethodGet, "/api/transactions/charts?days=7", tok, nil))
	if len(charts.ExpensesByCategory) != 2 || len(charts.ExpensesOverTime) != 1 || len(charts.IncomeOverTime) != 1 {
		t.Errorf("charts = %+v", charts)
	}
	if charts.ExpensesOverTime[0].Total.Cents != 71235 {
		t.Errorf("expenses today = %d, want 71235", charts.ExpensesOverTime[0].Total.Cents)
	}

	// a mutation invalidates the cached summary
	env.do(t, http.MethodPost, "/api/transactions", tok, map[string]any{"name": "Gift", "category": "Misc", "cost": "1", "isIncome": true})
	summary = decode[map[string]any](t, env.do(t, http.MethodGet, "/api/transactions/summary", tok, nil))
	if fmt.Sprint(summary["totalIncome"]) != "1001" {
		t.Errorf("totalIncome after create = %v, want 1001", summary["totalIncome"])
	}

	if rr := env.do(t, http.MethodGet, "/api/transactions/charts?days=-1", tok, nil); rr.Code != http.StatusBadRequest {
		t.Errorf("bad days status = %d, want 400", rr.Code)
	}
}

func TestCategories(t *testing.T) {
	env := newTestEnv(t, fakeExtractor{}, ratelimit.Config{})
	tok := env.token(t, "owner-1")
	for _, c := range []string{"Shopping", "Shopping", "Shopping", "Food", "Hobbies"} {
		env.do(t, http.MethodPost, "/api/transactions", tok, map[string]any{"name": "x", "category": c, "cost": 1})
	}

	cats := decode[[]string](t, env.do(t, http.MethodGet, "/api/transactions/categories", tok, nil))
	if len(cats) != len(core.DefaultCategories)+1 || cats[0] != "Bills" {
		t.Errorf("categories = %v", cats)
	}

	rr := env.do(t, http.MethodDelete, "/api/transactions/category", tok, map[string]string{"categoryToDelete": "Shopping"})
	if got := decode[deleteCategoryResponse](t, rr); rr.Code != http.StatusOK || got.Reassigned != 3 {
		t.Errorf("delete category = %d %+v, want 3 reassigned", rr.Code, got)
	}
	rr = env.do(t, http.MethodDelete, "/api/transactions/category", tok, map[string]string{"categoryToDelete": "Shopping"})
	if got := decode[deleteCategoryResponse](t, rr); got.Reassigned != 0 {
		t.Errorf("second delete reassigned %d, want 0", got.Reassigned)
	}

	misc := decode[core.TransactionPage](t, env.do(t, http.MethodGet, "/api/transactions?category=Miscellaneous", tok, nil))
	if misc.TotalCount != 3 {
		t.Errorf("Miscellaneous count = %d, want 3", misc.TotalCount)
	}

	if rr := env.do(t, http.MethodDelete, "/api/transactions/category", tok, `{}`); rr.Code != http.StatusBadRequest {
		t.Errorf("missing name status = %d, want 400", rr.Code)
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, fakeExtractor{}, ratelimit.Config{})
	tok := env.token(t, "owner-1")

	rr := env.do(t, http.MethodGet, "/api/transactions/export", tok, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="paisable_transactions.csv"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/csv") {
		t.Errorf("Content-Type = %q", rr.Header().Get("Content-Type"))
	}
	rows, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil || len(rows) != 1 {
		t.Fatalf("empty ledger export = %v rows (err %v), want header only", rows, err)
	}

	env.do(t, http.MethodPost, "/api/transactions", tok, map[string]any{"name": "Tea, green", "category": "Food", "cost": 2})
	rr = env.do(t, http.MethodGet, "/api/transactions/export", tok, nil)
	rows, _ = csv.NewReader(rr.Body).ReadAll()
	if len(rows) != 2 || rows[1][2] != "Tea, green" || rows[1][4] != "2.00" {
		t.Errorf("export rows = %v", rows)
	}
}

func uploadRequest(t *testing.T, token string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("receipt", "receipt.png")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(data)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/receipts/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

func TestReceiptFlow(t *testing.T) {
	date := time.Date(2024, 9, 13, 0, 0, 0, 0, time.UTC)
	env := newTestEnv(t, fakeExtractor{draft: core.ReceiptDraft{
		Merchant: "Walmart", Amount: core.Money{Cents: 4297}, Date: &date,
	}}, ratelimit.Config{})
	tok := env.token(t, "owner-1")

	rr := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, uploadRequest(t, tok, pngBytes))
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", rr.Code, rr.Body.String())
	}
	rc := decode[core.Receipt](t, rr)
	if rc.Extracted.Merchant != "Walmart" || rc.Extracted.Category != core.FallbackCategory {
		t.Errorf("extracted = %+v", rc.Extracted)
	}

	save := map[string]any{
		"receiptId": rc.ID,
		"transactionData": map[string]any{
			"name": "Walmart groceries", "category": "Groceries", "cost": "42.97", "addedOn": "2024-09-13",
		},
	}
	rr = env.do(t, http.MethodPost, "/api/receipts/save-transaction", tok, save)
	if rr.Code != http.StatusCreated {
		t.Fatalf("save status = %d: %s", rr.Code, rr.Body.String())
	}
	first := decode[saveReceiptResponse](t, rr)
	if first.Receipt.TransactionID != first.Transaction.ID || first.ReconciliationError != "" {
		t.Errorf("confirmation = %+v", first)
	}

	// the receipt id is the idempotency key
	second := decode[saveReceiptResponse](t, env.do(t, http.MethodPost, "/api/receipts/save-transaction", tok, save))
	if second.Transaction.ID != first.Transaction.ID {
		t.Errorf("retry created %s, want %s", second.Transaction.ID, first.Transaction.ID)
	}
	page := decode[core.TransactionPage](t, env.do(t, http.MethodGet, "/api/transactions", tok, nil))
	if page.TotalCount != 1 {
		t.Errorf("ledger has %d records, want 1", page.TotalCount)
	}

	list := decode[[]core.Receipt](t, env.do(t, http.MethodGet, "/api/receipts", tok, nil))
	if len(list) != 1 {
		t.Errorf("receipts = %d, want 1", len(list))
	}
	if rr := env.do(t, http.MethodGet, "/api/receipts/"+rc.ID, env.token(t, "owner-2"), nil); rr.Code != http.StatusForbidden {
		t.Errorf("foreign receipt status = %d, want 403", rr.Code)
	}
	if rr := env.do(t, http.MethodPost, "/api/receipts/save-transaction", tok, `{"transactionData":{}}`); rr.Code != http.StatusBadRequest {
		t.Errorf("missing receiptId status = %d, want 400", rr.Code)
	}
}

func TestReceiptUpload_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t, fakeExtractor{err: errors.New("model unavailable")}, ratelimit.Config{})
	tok := env.token(t, "owner-1")

	rr := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, uploadRequest(t, tok, pngBytes))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
	if list := decode[[]core.Receipt](t, env.do(t, http.MethodGet, "/api/receipts", tok, nil)); len(list) != 0 {
		t.Errorf("receipts after failure = %d, want 0", len(list))
	}

	rr = httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, uploadRequest(t, tok, []byte("plain text")))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("non-image status = %d, want 400", rr.Code)
	}
}

func TestRecurringRoutes(t *testing.T) {
	env := newTestEnv(t, fakeExtractor{}, ratelimit.Config{})
	tok := env.token(t, "owner-1")

	rr := env.do(t, http.MethodPost, "/api/recurring", tok, map[string]any{
		"name": "Netflix", "category": "Subscriptions", "cost": "15.99", "frequency": "monthly", "startDate": "2024-01-31",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body.String())
	}
	rule := decode[core.RecurringRule](t, rr)
	if want := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC); !rule.NextDueDate.Equal(want) {
		t.Errorf("NextDueDate = %v, want %v", rule.NextDueDate, want)
	}

	rr = env.do(t, http.MethodPut, "/api/recurring/"+rule.ID, tok, `{"frequency": "weekly"}`)
	updated := decode[core.RecurringRule](t, rr)
	if want := time.Date(2024, 2, 7, 0, 0, 0, 0, time.UTC); !updated.NextDueDate.Equal(want) {
		t.Errorf("NextDueDate after update = %v, want %v", updated.NextDueDate, want)
	}

	if rr := env.do(t, http.MethodPost, "/api/recurring", tok, map[string]any{
		"name": "x", "category": "y", "cost": 1, "frequency": "hourly", "startDate": "2024-01-01",
	}); rr.Code != http.StatusBadRequest {
		t.Errorf("unknown frequency status = %d, want 400", rr.Code)
	}

	if rr := env.do(t, http.MethodDelete, "/api/recurring/"+rule.ID, tok, nil); rr.Code != http.StatusOK {
		t.Errorf("delete status = %d", rr.Code)
	}
	rules := decode[[]core.RecurringRule](t, env.do(t, http.MethodGet, "/api/recurring", tok, nil))
	if len(rules) != 1 || rules[0].IsActive {
		t.Errorf("rules after delete = %+v, want one inactive", rules)
	}
}

func TestAuthRoutes(t *testing.T) {
	env := newTestEnv(t, fakeExtractor{}, ratelimit.Config{})
	creds := map[string]string{"name": "Ada", "email": "Ada@Example.com", "password": "correct horse"}

	rr := env.do(t, http.MethodPost, "/api/auth/register", "", creds)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rr.Code, rr.Body.String())
	}
	if rr := env.do(t, http.MethodPost, "/api/auth/register", "", creds); rr.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ada@example.com", "password": "correct horse"})
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d", rr.Code)
	}
	session := decode[auth.Session](t, rr)

	me := decode[core.User](t, env.do(t, http.MethodGet, "/api/auth/me", session.Token, nil))
	if me.Email != "ada@example.com" || me.ID != session.User.ID {
		t.Errorf("me = %+v", me)
	}

	if rr := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ada@example.com", "password": "wrong"}); rr.Code != http.StatusUnauthorized {
		t.Errorf("bad password status = %d, want 401", rr.Code)
	}
}

func TestCompleteSetupRoute(t *testing.T) {
	env := newTestEnv(t, fakeExtractor{}, ratelimit.Config{})
	rr := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "correct horse",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rr.Code, rr.Body.String())
	}
	session := decode[auth.Session](t, rr)
	if session.User.IsSetupComplete {
		t.Fatalf("registered user IsSetupComplete = true")
	}

	if rr := env.do(t, http.MethodPut, "/api/auth/setup", "", `{"defaultCurrency": "EUR"}`); rr.Code != http.StatusUnauthorized {
		t.Errorf("setup without token status = %d, want 401", rr.Code)
	}
	if rr := env.do(t, http.MethodPut, "/api/auth/setup", session.Token, `{}`); rr.Code != http.StatusBadRequest {
		t.Errorf("setup without currency status = %d, want 400", rr.Code)
	}

	rr = env.do(t, http.MethodPut, "/api/auth/setup", session.Token, `{"defaultCurrency": "usd"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("setup status = %d: %s", rr.Code, rr.Body.String())
	}
	if u := decode[core.User](t, rr); u.DefaultCurrency != "USD" || !u.IsSetupComplete {
		t.Errorf("setup = %+v, want USD and complete", u)
	}

	me := decode[core.User](t, env.do(t, http.MethodGet, "/api/auth/me", session.Token, nil))
	if me.DefaultCurrency != "USD" || !me.IsSetupComplete {
		t.Errorf("me after setup = %+v", me)
	}
}

type budgetRow struct {
	ID        string      `json:"id"`
	Category  string      `json:"category"`
	Limit     core.Money  `json:"limit"`
	Month     string      `json:"month"`
	Spent     core.Money  `json:"spent"`
	Remaining json.Number `json:"remaining"`
	OverLimit bool        `json:"overLimit"`
}

func TestBudgetRoutes(t *testing.T) {
	env := newTestEnv(t, fakeExtractor{}, ratelimit.Config{})
	tok := env.token(t, "owner-1")

	rr := env.do(t, http.MethodPost, "/api/budgets", tok, map[string]any{"category": "Food", "limit": "100"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body.String())
	}
	food := decode[core.Budget](t, rr)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"duplicate category", `{"category": "Food", "limit": 5}`, http.StatusConflict},
		{"missing limit", `{"category": "Bills"}`, http.StatusBadRequest},
		{"zero limit", `{"category": "Bills", "limit": 0}`, http.StatusBadRequest},
		{"missing category", `{"limit": 5}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rr := env.do(t, http.MethodPost, "/api/budgets", tok, tt.body); rr.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, rr.Code, tt.want)
		}
	}

	for _, body := range []map[string]any{
		{"name": "groceries", "category": "Food", "cost": "80", "addedOn": "2024-03-02"},
		{"name": "dinner", "category": "Food", "cost": "35.50", "addedOn": "2024-03-20"},
		{"name": "april", "category": "Food", "cost": "500", "addedOn": "2024-04-01"},
	} {
		if rr := env.do(t, http.MethodPost, "/api/transactions", tok, body); rr.Code != http.StatusCreated {
			t.Fatalf("create transaction status = %d: %s", rr.Code, rr.Body.String())
		}
	}

	rr = env.do(t, http.MethodGet, "/api/budgets?month=2024-03", tok, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d: %s", rr.Code, rr.Body.String())
	}
	rows := decode[[]budgetRow](t, rr)
	if len(rows) != 1 {
		t.Fatalf("list = %+v, want one budget", rows)
	}
	if got := rows[0]; got.Spent.String() != "115.50" || got.Remaining.String() != "-15.50" || !got.OverLimit || got.Month != "2024-03" {
		t.Errorf("March Food = %+v, want 115.50 spent and over limit", got)
	}

	if rr := env.do(t, http.MethodGet, "/api/budgets?month=March", tok, nil); rr.Code != http.StatusBadRequest {
		t.Errorf("bad month status = %d, want 400", rr.Code)
	}

	rr = env.do(t, http.MethodPut, "/api/budgets/"+food.ID, tok, `{"limit": 200}`)
	if got := decode[core.Budget](t, rr); rr.Code != http.StatusOK || got.Limit.String() != "200.00" || got.Category != "Food" {
		t.Errorf("update = %d %+v, want Food at 200.00", rr.Code, got)
	}
	rows = decode[[]budgetRow](t, env.do(t, http.MethodGet, "/api/budgets?month=2024-03", tok, nil))
	if len(rows) != 1 || rows[0].OverLimit || rows[0].Remaining.String() != "84.50" {
		t.Errorf("after raise = %+v, want 84.50 remaining", rows)
	}

	other := env.token(t, "owner-2")
	if rr := env.do(t, http.MethodPut, "/api/budgets/"+food.ID, other, `{"limit": 1}`); rr.Code != http.StatusForbidden {
		t.Errorf("foreign update status = %d, want 403", rr.Code)
	}
	if rows := decode[[]budgetRow](t, env.do(t, http.MethodGet, "/api/budgets", other, nil)); len(rows) != 0 {
		t.Errorf("foreign list = %+v, want empty", rows)
	}

	if rr := env.do(t, http.MethodDelete, "/api/budgets/"+food.ID, tok, nil); rr.Code != http.StatusOK {
		t.Errorf("delete status = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodDelete, "/api/budgets/"+food.ID, tok, nil); rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rr.Code)
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, fakeExtractor{}, ratelimit.Config{RequestsPerMinute: 1, Burst: 2})
	tok := env.token(t, "owner-1")

	var last *httptest.ResponseRecorder
	for range 3 {
		last = env.do(t, http.MethodGet, "/api/transactions", tok, nil)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header not set")
	}
	if rr := env.do(t, http.MethodGet, "/healthz", "", nil); rr.Code != http.StatusOK {
		t.Errorf("health check is rate limited: %d", rr.Code)
	}
}

func TestSecurityHeadersAndUnknownRoute(t *testing.T) {
	env := newTestEnv(t, fakeExtractor{}, ratelimit.Config{})
	rr := env.do(t, http.MethodGet, "/nope", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want 404", rr.Code)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}
