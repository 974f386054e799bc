package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cardapio/backend/internal/domain"
	"cardapio/backend/internal/ledger"
	"cardapio/backend/internal/service"
	"cardapio/backend/internal/store/memory"
)

const testTenant = "demo-restaurant"

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path. The
// business clock is pinned to 2024-03-15 14:00 in Sao Paulo.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded(testTenant)
	brt := time.FixedZone("BRT", -3*60*60)
	clock := ledger.FixedClock(brt, time.Date(2024, 3, 15, 14, 0, 0, 0, brt))
	svc := service.New(repo, nil, time.Minute, clock, testTenant)
	auth := NewAuthManager("test-secret-key", time.Hour, testTenant, repo)

	return New(svc, auth, "http://127.0.0.1:3000")
}

// doJSON sends a request with optional JSON body, bearer token and CSRF token.
func doJSON(t *testing.T, handler http.Handler, method string, path string, body any, token string, csrf string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, handler http.Handler, username string, password string) domain.LoginResponse {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", domain.LoginRequest{Username: username, Password: password}, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s failed: %d %s", username, rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodGet, "/healthz", nil, "", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_ReturnsTenantAndCashierFlag(t *testing.T) {
	api := newTestAPI(t)
	resp := login(t, api.Handler(), "cashier", "cashier123")

	if resp.AccessToken == "" {
		t.Fatal("expected access token")
	}
	if resp.TenantID != testTenant || !resp.IsCashier || resp.Role != domain.RoleStaff {
		t.Fatalf("unexpected login response %+v", resp)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/auth/login", domain.LoginRequest{Username: "admin", Password: "wrongpassword"}, "", "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestCashFlowRequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodGet, "/api/v1/cashflow/2024/3", nil, "", "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCashFlowForbiddenForStaff(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "waiter", "cashier123").AccessToken

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/cashflow/2024/3", nil, token, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestCashierShiftThroughHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	csrf := fetchCSRFToken(t, api)
	cashier := login(t, handler, "cashier", "cashier123").AccessToken
	owner := login(t, handler, "owner", "admin123").AccessToken

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/cashier/open", domain.SessionOpenRequest{StartingBalance: decimal.NewFromInt(100)}, cashier, csrf)
	if rec.Code != http.StatusCreated {
		t.Fatalf("open session: %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/cashier/open", domain.SessionOpenRequest{StartingBalance: decimal.NewFromInt(50)}, cashier, csrf)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second open expected 409, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders", domain.OrderCreateRequest{
		OrderType:     domain.OrderTypeDineIn,
		PaymentMethod: domain.PaymentCash,
		TableID:       "7",
		Items:         []domain.OrderLineRequest{{MenuItemID: "menu-pastel", Quantity: 2}},
	}, cashier, csrf)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/tables/7/close", domain.TableCloseRequest{PaymentMethod: domain.PaymentCash}, cashier, csrf)
	if rec.Code != http.StatusOK {
		t.Fatalf("close table: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/cashier/totals", nil, cashier, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("totals: %d %s", rec.Code, rec.Body.String())
	}
	var totals domain.ShiftTotals
	if err := json.NewDecoder(rec.Body).Decode(&totals); err != nil {
		t.Fatalf("decode totals: %v", err)
	}
	if !totals.Cash.Equal(decimal.NewFromInt(24)) || !totals.Final.Equal(decimal.NewFromInt(124)) {
		t.Fatalf("unexpected totals %+v", totals)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/cashier/close", nil, cashier, csrf)
	if rec.Code != http.StatusOK {
		t.Fatalf("close session: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/cashflow/2024/3", nil, owner, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cash flow: %d %s", rec.Code, rec.Body.String())
	}
	var view domain.MonthView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if len(view.Days) != 31 || view.Days[0].Date != "2024-03-31" {
		t.Fatalf("expected 31 days newest first, got %d starting %s", len(view.Days), view.Days[0].Date)
	}
	if !view.Summary.ClosingBalance.Equal(decimal.NewFromInt(124)) {
		t.Fatalf("expected closing balance 124, got %s", view.Summary.ClosingBalance)
	}
}

func TestCashFlowExportFormats(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	owner := login(t, handler, "owner", "admin123").AccessToken

	cases := []struct {
		format      string
		contentType string
		attachment  string
	}{
		{"csv", "text/csv; charset=utf-8", "fluxo-caixa-demo-restaurant-2024-03.csv"},
		{"xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "fluxo-caixa-demo-restaurant-2024-03.xlsx"},
		{"html", "text/html; charset=utf-8", ""},
	}
	for _, tc := range cases {
		t.Run(tc.format, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodGet, "/api/v1/cashflow/2024/3?format="+tc.format, nil, owner, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
			}
			if got := rec.Header().Get("Content-Type"); got != tc.contentType {
				t.Fatalf("unexpected content type %q", got)
			}
			if tc.attachment != "" && !strings.Contains(rec.Header().Get("Content-Disposition"), tc.attachment) {
				t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
			}
			if rec.Body.Len() == 0 {
				t.Fatal("expected a body")
			}
		})
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/cashflow/2024/3?format=pdf", nil, owner, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unsupported format expected 400, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/cashflow/2024/13", nil, owner, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("month 13 expected 400, got %d", rec.Code)
	}
}

func TestExpensePayDefaultsToTodayAndDelete(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	csrf := fetchCSRFToken(t, api)
	owner := login(t, handler, "owner", "admin123").AccessToken

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/expenses", domain.ExpenseCreateRequest{
		Category:    "fornecedor",
		Description: "Carvão",
		Amount:      decimal.RequireFromString("42.10"),
		DueDate:     "2024-03-20",
	}, owner, csrf)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create expense: %d %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Expense domain.Expense `json:"expense"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode expense: %v", err)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/expenses/"+created.Expense.ID+"/pay", nil, owner, csrf)
	if rec.Code != http.StatusOK {
		t.Fatalf("pay expense: %d %s", rec.Code, rec.Body.String())
	}
	var paid struct {
		Expense domain.Expense `json:"expense"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&paid); err != nil {
		t.Fatalf("decode paid expense: %v", err)
	}
	if paid.Expense.PaymentDate != "2024-03-15" {
		t.Fatalf("expected payment date 2024-03-15, got %q", paid.Expense.PaymentDate)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/expenses/"+created.Expense.ID, nil, owner, csrf)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete expense: %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/expenses/"+created.Expense.ID, nil, owner, csrf)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete expected 404, got %d", rec.Code)
	}
}

func TestOrderValidationErrorNamesField(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	csrf := fetchCSRFToken(t, api)
	waiter := login(t, handler, "waiter", "cashier123").AccessToken

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/orders", domain.OrderCreateRequest{
		OrderType:     domain.OrderTypeDineIn,
		PaymentMethod: domain.PaymentPix,
		Items:         []domain.OrderLineRequest{{MenuItemID: "menu-pastel", Quantity: 1}},
	}, waiter, csrf)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "table_id") {
		t.Fatalf("expected error to name table_id, got %s", rec.Body.String())
	}
}

func TestStaffEndpointsScopeToTenant(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	csrf := fetchCSRFToken(t, api)
	owner := login(t, handler, "owner", "admin123").AccessToken

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/staff", domain.StaffCreateRequest{
		Username:    "joana",
		DisplayName: "Joana",
		Password:    "senha123",
		IsCashier:   true,
	}, owner, csrf)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create staff: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/staff", nil, owner, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list staff: %d", rec.Code)
	}
	var body struct {
		Staff []domain.StaffUser `json:"staff"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode staff: %v", err)
	}
	names := make([]string, 0, len(body.Staff))
	for _, user := range body.Staff {
		names = append(names, user.Username)
	}
	if strings.Join(names, ",") != "cashier,joana,waiter" {
		t.Fatalf("unexpected staff list %v", names)
	}

	joana := login(t, handler, "joana", "senha123")
	if !joana.IsCashier || joana.TenantID != testTenant {
		t.Fatalf("unexpected login for new staff %+v", joana)
	}
}
