// Package httpapi exposes the back-office API. Every endpoint replies
// with the same envelope, {"success":true,"data":...} on success and
// {"success":false,"message":...} on failure, because the frontend
// has no other error channel; no handler lets an error escape.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"skycafe/backend/internal/domain"
	"skycafe/backend/internal/logger"
	"skycafe/backend/internal/service"
	"skycafe/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	log           zerolog.Logger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		log:           logger.WithComponent("httpapi"),
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", a.handleHealth)
	mux.HandleFunc("/api/auth/login", a.handleLogin)

	mux.HandleFunc("/api/customers", a.requireAuth(a.handleCustomers))
	mux.HandleFunc("/api/customers/", a.requireAuth(a.handleCustomerActions))
	mux.HandleFunc("/api/products", a.requireAuth(a.handleProducts))
	mux.HandleFunc("/api/products/", a.requireAuth(a.handleProductActions))
	mux.HandleFunc("/api/invoices", a.requireAuth(a.handleInvoices))

	mux.HandleFunc("/api/stats/dashboard", a.requireAuth(a.handleDashboardStats))
	mux.HandleFunc("/api/stats/products", a.requireAuth(a.handleProductStats))
	mux.HandleFunc("/api/stats/customers", a.requireAuth(a.handleCustomerStats))
	mux.HandleFunc("/api/stats/revenue", a.requireAuth(a.handleRevenueStats))

	mux.HandleFunc("/api/export/excel", a.requireAuth(a.handleExportExcel))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeFailure(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeFailure(w, http.StatusUnauthorized, err.Error())
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		a.log.Info().Str("method", r.Method).Str("path", r.URL.Path).Dur("elapsed", time.Since(startedAt)).Msg("request")
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"status": "ok",
		"at":     time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeFailure(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		customers, err := a.service.ListCustomers(r.Context())
		if err != nil {
			writeStoreFailure(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, customers)
	case http.MethodPost:
		var req domain.CustomerCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		customer, err := a.service.CreateCustomer(r.Context(), req)
		if err != nil {
			writeStoreFailure(w, err)
			return
		}
		writeSuccess(w, http.StatusCreated, customer)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCustomerActions(w http.ResponseWriter, r *http.Request) {
	code, ok := pathTail(r.URL.Path, "/api/customers/")
	if !ok {
		writeFailure(w, http.StatusBadRequest, "customer code is required")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var customer domain.Customer
		if err := decodeJSON(r, &customer); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		updated, err := a.service.UpdateCustomer(r.Context(), code, customer)
		if err != nil {
			writeStoreFailure(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.service.DeleteCustomer(r.Context(), code); err != nil {
			writeStoreFailure(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"deleted": code})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.service.ListProducts(r.Context())
		if err != nil {
			writeStoreFailure(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, products)
	case http.MethodPost:
		var product domain.Product
		if err := decodeJSON(r, &product); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		created, err := a.service.CreateProduct(r.Context(), product)
		if err != nil {
			writeStoreFailure(w, err)
			return
		}
		writeSuccess(w, http.StatusCreated, created)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	code, ok := pathTail(r.URL.Path, "/api/products/")
	if !ok {
		writeFailure(w, http.StatusBadRequest, "product code is required")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var product domain.Product
		if err := decodeJSON(r, &product); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		updated, err := a.service.UpdateProduct(r.Context(), code, product)
		if err != nil {
			writeStoreFailure(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.service.DeleteProduct(r.Context(), code); err != nil {
			writeStoreFailure(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"deleted": code})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleInvoices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		invoices, err := a.service.ListInvoices(r.Context())
		if err != nil {
			writeStoreFailure(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, invoices)
	case http.MethodPost:
		var req domain.InvoiceCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		invoice, err := a.service.SaveInvoice(r.Context(), req)
		if err != nil {
			writeStoreFailure(w, err)
			return
		}
		writeSuccess(w, http.StatusCreated, invoice)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	from, to := dateBounds(r)
	result, err := a.service.DashboardStats(r.Context(), from, to)
	if err != nil {
		writeStoreFailure(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

func (a *API) handleProductStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	from, to := dateBounds(r)
	result, err := a.service.ProductStats(r.Context(), from, to)
	if err != nil {
		writeStoreFailure(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

func (a *API) handleCustomerStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	from, to := dateBounds(r)
	result, err := a.service.CustomerStats(r.Context(), from, to)
	if err != nil {
		writeStoreFailure(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

func (a *API) handleRevenueStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	period := r.URL.Query().Get("period")
	if period == "" {
		period = domain.PeriodDay
	}
	from, to := dateBounds(r)
	result, err := a.service.RevenueStats(r.Context(), period, from, to)
	if err != nil {
		writeStoreFailure(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

func (a *API) handleExportExcel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	result, err := a.service.ExportExcel(r.Context())
	if err != nil {
		writeStoreFailure(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func pathTail(path, prefix string) (string, bool) {
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(path, prefix), "/"))
	if tail == "" || strings.Contains(tail, "/") {
		return "", false
	}
	return tail, true
}

func dateBounds(r *http.Request) (string, string) {
	query := r.URL.Query()
	return strings.TrimSpace(query.Get("from")), strings.TrimSpace(query.Get("to"))
}

func decodeJSON(r *http.Request, dest any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeFailure(w, http.StatusMethodNotAllowed, "method not allowed")
}

// writeStoreFailure maps repository errors onto the failure envelope.
func writeStoreFailure(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrDuplicate):
		status = http.StatusConflict
	}
	writeFailure(w, status, err.Error())
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"message": message,
	})
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{
		"success": true,
		"data":    data,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
