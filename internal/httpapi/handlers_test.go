package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"skycafe/backend/internal/domain"
	"skycafe/backend/internal/service"
	"skycafe/backend/internal/store/memory"
)

// newTestAPI builds a full API with the in-memory store, a real
// AuthManager and a real Service so handler tests exercise the complete
// request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, time.Minute, nil, "UTC")
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v (body: %s)", err, rec.Body.String())
	}
	return env
}

func loginToken(t *testing.T, handler http.Handler) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	env := decodeEnvelope(t, rec)
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode login data: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatalf("expected access token in login response")
	}
	return resp.AccessToken
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Fatalf("expected success envelope, got %s", rec.Body.String())
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrong",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Success || env.Message == "" {
		t.Fatalf("expected failure envelope with message, got %s", rec.Body.String())
	}
}

func TestHandleLogin_RateLimited(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrong",
	})
	var last *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on sixth attempt, got %d", last.Code)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	paths := []string{
		"/api/customers",
		"/api/products",
		"/api/invoices",
		"/api/stats/dashboard",
		"/api/export/excel",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s without token, got %d", path, rec.Code)
		}
	}
}

func TestListCustomersWithToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler)

	req := httptest.NewRequest(http.MethodGet, "/api/customers", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var customers []domain.Customer
	if err := json.Unmarshal(env.Data, &customers); err != nil {
		t.Fatalf("decode customers: %v", err)
	}
	if len(customers) != 2 {
		t.Fatalf("expected 2 seeded customers, got %d", len(customers))
	}
}

func TestCreateCustomerConflict(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler)

	payload, _ := json.Marshal(domain.CustomerCreateRequest{
		Name:  "Someone Else",
		Phone: "0900120123", // seeded number
	})
	req := httptest.NewRequest(http.MethodPost, "/api/customers", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestSaveInvoiceEndToEnd(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler)

	payload, _ := json.Marshal(domain.InvoiceCreateRequest{
		CustomerCode:  "Minh0123",
		CustomerName:  "Nguyễn Minh",
		CustomerPhone: "0900120123",
		LineItems: []domain.LineItem{
			{Name: "Trà Đào", Quantity: 1, Total: 30000},
		},
		Subtotal:      30000,
		Total:         30000,
		PaymentMethod: domain.PaymentTransfer,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/invoices", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var invoice domain.Invoice
	if err := json.Unmarshal(env.Data, &invoice); err != nil {
		t.Fatalf("decode invoice: %v", err)
	}
	if invoice.ID == "" || invoice.Timestamp == "" {
		t.Fatalf("expected generated id and timestamp, got %+v", invoice)
	}
}

func TestSaveInvoiceBadPaymentMethod(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler)

	payload, _ := json.Marshal(domain.InvoiceCreateRequest{
		Total:         1000,
		PaymentMethod: "iou",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/invoices", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestDashboardStatsEnvelope(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler)

	req := httptest.NewRequest(http.MethodGet, "/api/stats/dashboard?from=2024-03-01&to=2024-03-31", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var dashboard domain.DashboardStats
	if err := json.Unmarshal(env.Data, &dashboard); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if dashboard.TotalRevenue != 50000 || dashboard.TotalInvoices != 1 {
		t.Fatalf("unexpected dashboard from seed data: %+v", dashboard)
	}
	if dashboard.DateRange.From != "2024-03-01" || dashboard.DateRange.To != "2024-03-31" {
		t.Fatalf("expected echoed date range, got %+v", dashboard.DateRange)
	}
}

func TestRevenueStatsBadPeriod(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler)

	req := httptest.NewRequest(http.MethodGet, "/api/stats/revenue?period=quarter", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad period, got %d", rec.Code)
	}
}

func TestDeleteUnknownProductReturns404(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler)

	req := httptest.NewRequest(http.MethodDelete, "/api/products/NOPE", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestExportUnavailableWithoutSpreadsheet(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler)

	req := httptest.NewRequest(http.MethodGet, "/api/export/excel", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without exporter, got %d", rec.Code)
	}
}

func TestOptionsPreflight(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/customers", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS header, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}
