// Package store defines the row-store contract the rest of the backend
// programs against. The production implementation is a Google Sheets
// workbook (internal/store/sheets); tests and credential-less dev runs
// use the in-memory fake (internal/store/memory).
package store

import (
	"context"
	"errors"

	"skycafe/backend/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type Repository interface {
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) error
	UpdateCustomer(ctx context.Context, code string, customer domain.Customer) error
	DeleteCustomer(ctx context.Context, code string) error
	// UpdateCustomerSpent writes only the cached spend cell of the
	// customer row, leaving every other column untouched.
	UpdateCustomerSpent(ctx context.Context, code string, display string) error

	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) error
	UpdateProduct(ctx context.Context, code string, product domain.Product) error
	DeleteProduct(ctx context.Context, code string) error

	ListInvoices(ctx context.Context) ([]domain.Invoice, error)
	AppendInvoice(ctx context.Context, invoice domain.Invoice) error

	AppendDailyStat(ctx context.Context, stat domain.DailyStat) error
}

// UserStore is the credential lookup surface needed by the auth layer.
type UserStore interface {
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}
