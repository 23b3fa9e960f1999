// Package memory is an in-memory Repository used by tests and by the
// server when no Google credentials are configured. It mimics the
// sheets implementation's observable behavior, including storing every
// cell as a raw display string.
package memory

import (
	"context"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"skycafe/backend/internal/domain"
	"skycafe/backend/internal/store"
)

type Store struct {
	mu         sync.RWMutex
	customers  []domain.Customer
	products   []domain.Product
	invoices   []domain.Invoice
	dailyStats []domain.DailyStat
	users      []domain.UserAccount
}

func New() *Store {
	return &Store{users: seedUsers()}
}

// NewSeeded returns a store pre-populated with a small demo data set.
func NewSeeded() *Store {
	s := New()
	s.customers = []domain.Customer{
		{
			Code:             "Minh0123",
			Name:             "Nguyễn Minh",
			Nickname:         "Minh",
			Phone:            "'0900120123",
			Last4:            "0123",
			RegistrationDate: "01/01/2024",
			TotalSpent:       "150,000 đ",
		},
		{
			Code:             "Lan 4567",
			Name:             "Trần Lan",
			Phone:            "'0900344567",
			Last4:            "4567",
			RegistrationDate: "15/01/2024",
			TotalSpent:       "0",
		},
	}
	s.products = []domain.Product{
		{Code: "SP001", Name: "Cà Phê Sữa", Category: "Đồ Uống", Price: "25000"},
		{Code: "SP002", Name: "Trà Đào", Category: "Đồ Uống", Price: "30000"},
		{Code: "SP003", Name: "Vé Board Game", Category: "Trò Chơi", Price: "50000"},
	}
	s.invoices = []domain.Invoice{
		{
			ID:            "HD0001",
			Timestamp:     "10/03/2024 14:30",
			CustomerCode:  "Minh0123",
			CustomerName:  "Nguyễn Minh",
			CustomerPhone: "'0900120123",
			LineItemsJSON: `[{"name":"Cà Phê Sữa","quantity":2,"total":50000}]`,
			Subtotal:      "50000",
			Total:         "50,000 đ",
			PaymentMethod: domain.PaymentCash,
		},
	}
	return s
}

// seedUsers builds the initial auth accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD;
// hardcoded dev defaults are used with a warning when unset.
func seedUsers() []domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Warn().Msg("memory store: using default dev credentials, set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override")
	}

	users := make([]domain.UserAccount, 0, 2)
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"staff", staffPwd, "staff"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal().Err(err).Str("username", u.username).Msg("memory store: failed to hash seed password")
		}
		users = append(users, domain.UserAccount{
			Username: u.username,
			Password: string(hash),
			Role:     u.role,
			Active:   true,
		})
	}
	return users
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Customer, len(s.customers))
	copy(out, s.customers)
	return out, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.customers {
		if existing.Code == customer.Code {
			return store.ErrDuplicate
		}
	}
	s.customers = append(s.customers, customer)
	return nil
}

func (s *Store) UpdateCustomer(_ context.Context, code string, customer domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.customers {
		if existing.Code == code {
			customer.Code = code
			s.customers[i] = customer
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) DeleteCustomer(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.customers {
		if existing.Code == code {
			s.customers = append(s.customers[:i], s.customers[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) UpdateCustomerSpent(_ context.Context, code string, display string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.customers {
		if s.customers[i].Code == code {
			s.customers[i].TotalSpent = display
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.products {
		if existing.Code == product.Code {
			return store.ErrDuplicate
		}
	}
	s.products = append(s.products, product)
	return nil
}

func (s *Store) UpdateProduct(_ context.Context, code string, product domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.products {
		if existing.Code == code {
			product.Code = code
			s.products[i] = product
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) DeleteProduct(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.products {
		if existing.Code == code {
			s.products = append(s.products[:i], s.products[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) ListInvoices(_ context.Context) ([]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Invoice, len(s.invoices))
	copy(out, s.invoices)
	return out, nil
}

func (s *Store) AppendInvoice(_ context.Context, invoice domain.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices = append(s.invoices, invoice)
	return nil
}

func (s *Store) AppendDailyStat(_ context.Context, stat domain.DailyStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dailyStats = append(s.dailyStats, stat)
	return nil
}

// DailyStats exposes the appended stat rows for tests.
func (s *Store) DailyStats() []domain.DailyStat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DailyStat, len(s.dailyStats))
	copy(out, s.dailyStats)
	return out
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserAccount, len(s.users))
	copy(out, s.users)
	return out, nil
}
