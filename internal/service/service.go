package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"skycafe/backend/internal/cache"
	"skycafe/backend/internal/domain"
	"skycafe/backend/internal/logger"
	"skycafe/backend/internal/money"
	"skycafe/backend/internal/stats"
	"skycafe/backend/internal/store"
	"skycafe/backend/internal/xid"
)

// ErrInvalid marks request validation failures so the HTTP layer can
// report them as client errors instead of store failures.
var ErrInvalid = errors.New("invalid request")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Exporter renders the whole workbook as an .xlsx download. Only the
// sheets-backed repository can do this; in memory mode it stays nil.
type Exporter interface {
	ExportXLSX(ctx context.Context) ([]byte, error)
}

type Service struct {
	repo       store.Repository
	statsCache cache.StatsCache
	statsTTL   time.Duration
	exporter   Exporter
	loc        *time.Location
	log        zerolog.Logger
}

func New(repo store.Repository, statsCache cache.StatsCache, statsTTL time.Duration, exporter Exporter, timezone string) *Service {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	if statsCache == nil {
		statsCache = cache.NoopStatsCache{}
	}

	return &Service{
		repo:       repo,
		statsCache: statsCache,
		statsTTL:   statsTTL,
		exporter:   exporter,
		loc:        loc,
		log:        logger.WithComponent("service"),
	}
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	phone := strings.TrimSpace(req.Phone)
	if name == "" || phone == "" {
		return domain.Customer{}, fmt.Errorf("name and phone are required: %w", ErrInvalid)
	}

	existing, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return domain.Customer{}, err
	}

	normalized := NormalizePhone(phone)
	for _, customer := range existing {
		if NormalizePhone(customer.Phone) == normalized {
			return domain.Customer{}, fmt.Errorf("phone %s already belongs to customer %s: %w", phone, customer.Name, store.ErrDuplicate)
		}
	}

	customer := domain.Customer{
		Code:             customerCode(name, phone, len(existing)),
		Name:             name,
		Nickname:         strings.TrimSpace(req.Nickname),
		Phone:            quotePhone(phone),
		Last4:            phoneLast4(phone),
		RegistrationDate: s.registrationDate(req.RegistrationDate),
		TotalSpent:       "0",
	}

	if err := s.repo.CreateCustomer(ctx, customer); err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, code string, customer domain.Customer) (domain.Customer, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Customer{}, fmt.Errorf("customer code is required: %w", ErrInvalid)
	}

	phone := strings.TrimSpace(strings.TrimPrefix(customer.Phone, "'"))
	customer.Code = code
	customer.Phone = quotePhone(phone)
	customer.Last4 = phoneLast4(phone)

	if err := s.repo.UpdateCustomer(ctx, code, customer); err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("customer code is required: %w", ErrInvalid)
	}
	return s.repo.DeleteCustomer(ctx, code)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	product.Code = strings.TrimSpace(product.Code)
	product.Name = strings.TrimSpace(product.Name)
	if product.Code == "" || product.Name == "" {
		return domain.Product{}, fmt.Errorf("product code and name are required: %w", ErrInvalid)
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, code string, product domain.Product) (domain.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Product{}, fmt.Errorf("product code is required: %w", ErrInvalid)
	}
	product.Code = code
	if err := s.repo.UpdateProduct(ctx, code, product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (s *Service) DeleteProduct(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("product code is required: %w", ErrInvalid)
	}
	return s.repo.DeleteProduct(ctx, code)
}

func (s *Service) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	return s.repo.ListInvoices(ctx)
}

// SaveInvoice appends the invoice row, then runs the two best-effort
// side effects: bumping the customer's cached spend total and mirroring
// the day's numbers into the stats sheet. Side-effect failures are
// logged and swallowed so a flaky stats write never loses a sale.
func (s *Service) SaveInvoice(ctx context.Context, req domain.InvoiceCreateRequest) (domain.Invoice, error) {
	if req.PaymentMethod != domain.PaymentCash && req.PaymentMethod != domain.PaymentTransfer {
		return domain.Invoice{}, fmt.Errorf("unsupported payment method %q: %w", req.PaymentMethod, ErrInvalid)
	}
	if req.Total < 0 || req.Subtotal < 0 {
		return domain.Invoice{}, fmt.Errorf("invoice amounts must not be negative: %w", ErrInvalid)
	}

	items := req.LineItems
	if items == nil {
		items = []domain.LineItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("encoding line items: %w", err)
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = xid.New("HD")
	}

	invoice := domain.Invoice{
		ID:              id,
		Timestamp:       time.Now().In(s.loc).Format("02/01/2006 15:04"),
		CustomerCode:    strings.TrimSpace(req.CustomerCode),
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerPhone:   quotePhone(strings.TrimSpace(req.CustomerPhone)),
		LineItemsJSON:   string(itemsJSON),
		Subtotal:        strconv.FormatInt(req.Subtotal, 10),
		DiscountPercent: strconv.FormatFloat(req.DiscountPercent, 'f', -1, 64),
		DiscountAmount:  strconv.FormatInt(req.DiscountAmount, 10),
		Total:           strconv.FormatInt(req.Total, 10),
		PaymentMethod:   req.PaymentMethod,
	}

	if err := s.repo.AppendInvoice(ctx, invoice); err != nil {
		return domain.Invoice{}, err
	}

	if err := s.applyCustomerPayment(ctx, req.CustomerPhone, req.Total); err != nil {
		s.log.Warn().Err(err).Str("invoice_id", invoice.ID).Msg("failed to update customer spend cache")
	}
	if err := s.appendDailyStat(ctx, invoice, req.Total); err != nil {
		s.log.Warn().Err(err).Str("invoice_id", invoice.ID).Msg("failed to append daily stat row")
	}

	return invoice, nil
}

// applyCustomerPayment is the ledger updater: find the customer whose
// stored phone matches, add the sale amount to the cached spend total
// and write it back in display form. A customer-less sale is a normal
// no-op. This is a read-modify-write with no isolation; two concurrent
// sales for one customer can lose a cache update, which is acceptable
// because reporting re-sums invoices and never trusts this cell.
func (s *Service) applyCustomerPayment(ctx context.Context, phone string, amount int64) error {
	search := NormalizePhone(phone)
	if search == "" {
		return nil
	}

	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return err
	}

	for _, customer := range customers {
		if NormalizePhone(customer.Phone) != search {
			continue
		}
		current := money.ParseStrict(customer.TotalSpent)
		return s.repo.UpdateCustomerSpent(ctx, customer.Code, money.Format(current+amount))
	}

	s.log.Warn().Str("phone", phone).Msg("no customer found for spend update")
	return nil
}

func (s *Service) appendDailyStat(ctx context.Context, invoice domain.Invoice, total int64) error {
	cash, transfer := "0", "0"
	if invoice.PaymentMethod == domain.PaymentCash {
		cash = strconv.FormatInt(total, 10)
	} else {
		transfer = strconv.FormatInt(total, 10)
	}

	return s.repo.AppendDailyStat(ctx, domain.DailyStat{
		Date:            time.Now().In(s.loc).Format("02/01/2006"),
		CashRevenue:     cash,
		TransferRevenue: transfer,
		TotalRevenue:    strconv.FormatInt(total, 10),
		InvoiceID:       invoice.ID,
	})
}

func (s *Service) DashboardStats(ctx context.Context, from, to string) (domain.DashboardStats, error) {
	cacheKey := "stats:dashboard:" + from + ":" + to
	if cached, ok, err := s.statsCache.Get(ctx, cacheKey); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		s.log.Debug().Err(err).Msg("stats cache read failed")
	}

	invoices, err := s.repo.ListInvoices(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	result := stats.Dashboard(invoices, products, from, to, s.log)

	if err := s.statsCache.Set(ctx, cacheKey, &result, s.statsTTL); err != nil {
		s.log.Debug().Err(err).Msg("stats cache write failed")
	}
	return result, nil
}

func (s *Service) ProductStats(ctx context.Context, from, to string) ([]domain.ProductStat, error) {
	invoices, err := s.repo.ListInvoices(ctx)
	if err != nil {
		return nil, err
	}
	return stats.TopProducts(invoices, from, to, s.log), nil
}

func (s *Service) CustomerStats(ctx context.Context, from, to string) ([]domain.CustomerStat, error) {
	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	invoices, err := s.repo.ListInvoices(ctx)
	if err != nil {
		return nil, err
	}
	return stats.TopCustomers(customers, invoices, from, to, s.log), nil
}

func (s *Service) RevenueStats(ctx context.Context, period, from, to string) ([]domain.RevenuePoint, error) {
	switch period {
	case domain.PeriodDay, domain.PeriodWeek, domain.PeriodMonth:
	default:
		return nil, fmt.Errorf("unsupported period %q: %w", period, ErrInvalid)
	}

	invoices, err := s.repo.ListInvoices(ctx)
	if err != nil {
		return nil, err
	}
	return stats.RevenueByPeriod(invoices, period, from, to, s.log), nil
}

func (s *Service) ExportExcel(ctx context.Context) (domain.ExportResult, error) {
	if s.exporter == nil {
		return domain.ExportResult{}, fmt.Errorf("export is only available with the spreadsheet store")
	}

	data, err := s.exporter.ExportXLSX(ctx)
	if err != nil {
		return domain.ExportResult{}, err
	}

	name := "sky-cafe-" + time.Now().In(s.loc).Format("20060102-150405") + ".xlsx"
	return domain.ExportResult{FileName: name, Data: data}, nil
}

func (s *Service) registrationDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().In(s.loc).Format("02/01/2006")
	}
	// Accept canonical YYYY-MM-DD input and store it in display form;
	// anything else is kept verbatim, matching the sheet's tolerance.
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.Format("02/01/2006")
	}
	return raw
}

// customerCode derives the row key: first four runes of the
// space-stripped name plus the last four phone digits, with a
// sequential "KH0001"-style fallback when either part is missing.
func customerCode(name, phone string, existingCount int) string {
	nameClean := strings.ReplaceAll(name, " ", "")
	last4 := phoneLast4(phone)
	if nameClean != "" && phone != "" {
		runes := []rune(nameClean)
		if len(runes) > 4 {
			runes = runes[:4]
		}
		return string(runes) + last4
	}
	return fmt.Sprintf("KH%04d", existingCount+1)
}

func phoneLast4(phone string) string {
	if len(phone) >= 4 {
		return phone[len(phone)-4:]
	}
	return phone
}

// quotePhone prefixes the phone with a single quote so the sheet keeps
// the leading zero instead of coercing the cell to a number.
func quotePhone(phone string) string {
	if phone == "" {
		return ""
	}
	return "'" + phone
}

// NormalizePhone strips the sheet's text-format quote and common
// separators so stored and user-supplied numbers compare equal.
func NormalizePhone(phone string) string {
	replacer := strings.NewReplacer("'", "", " ", "", "-", "", "(", "", ")", "")
	return replacer.Replace(phone)
}
