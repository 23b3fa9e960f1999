package domain

import (
	"encoding/json"

	"skycafe/backend/internal/money"
)

// Customer mirrors one row of the KHACH_HANG worksheet. Every field is
// kept as the raw cell string: the sheet is hand-edited and amounts and
// dates arrive in display form ("1,234,567 đ", "05/03/2024"). Parsing
// happens at the point of use, never at the boundary.
type Customer struct {
	Code             string `json:"code"`
	Name             string `json:"name"`
	Nickname         string `json:"nickname"`
	Phone            string `json:"phone"`
	Last4            string `json:"last4"`
	RegistrationDate string `json:"registration_date"`
	// TotalSpent is a display-only cache updated after each invoice.
	// Reporting always re-sums invoice totals instead of reading it.
	TotalSpent string `json:"total_spent"`
	GameCount  string `json:"game_count"`
	DrinkCount string `json:"drink_count"`
	Freeroll   string `json:"freeroll"`
	Hyper      string `json:"hyper"`
	Turbo      string `json:"turbo"`
	Happy      string `json:"happy"`
	DeepStack  string `json:"deep_stack"`
	Highroller string `json:"highroller"`
	Points     string `json:"points"`
	Exchanged  string `json:"exchanged"`
	Remaining  string `json:"remaining"`
}

type CustomerCreateRequest struct {
	Name             string `json:"name"`
	Nickname         string `json:"nickname"`
	Phone            string `json:"phone"`
	RegistrationDate string `json:"registration_date,omitempty"`
}

// Product mirrors one row of the SAN_PHAM worksheet.
type Product struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    string `json:"price"`
}

// LineItem is one entry of the JSON array stored in an invoice's
// "Chi Tiết SP (JSON)" cell.
type LineItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Total    int64  `json:"total"`
}

// UnmarshalJSON tolerates hand-edited cells where quantity or total
// were written as display strings ("2", "40,000 đ") instead of
// numbers. New rows are always written with numeric fields.
func (li *LineItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name     string `json:"name"`
		Quantity any    `json:"quantity"`
		Total    any    `json:"total"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	li.Name = raw.Name
	li.Quantity = int(cellAmount(raw.Quantity))
	li.Total = cellAmount(raw.Total)
	return nil
}

// cellAmount reads a numeric cell value that may arrive as a JSON
// number or as a display string with separators and a currency marker.
func cellAmount(v any) int64 {
	switch val := v.(type) {
	case float64:
		return int64(val)
	case string:
		n, _ := money.Parse(val)
		return n
	}
	return 0
}

// Invoice mirrors one row of the HOA_DON worksheet. Rows are
// append-only; nothing in the system edits an invoice in place.
type Invoice struct {
	ID              string `json:"id"`
	Timestamp       string `json:"timestamp"` // "DD/MM/YYYY HH:MM"
	CustomerCode    string `json:"customer_code"`
	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone"`
	LineItemsJSON   string `json:"line_items_json"`
	Subtotal        string `json:"subtotal"`
	DiscountPercent string `json:"discount_percent"`
	DiscountAmount  string `json:"discount_amount"`
	Total           string `json:"total"`
	PaymentMethod   string `json:"payment_method"` // cash | transfer
}

type InvoiceCreateRequest struct {
	ID              string     `json:"id"`
	CustomerCode    string     `json:"customer_code"`
	CustomerName    string     `json:"customer_name"`
	CustomerPhone   string     `json:"customer_phone"`
	LineItems       []LineItem `json:"line_items"`
	Subtotal        int64      `json:"subtotal"`
	DiscountPercent float64    `json:"discount_percent"`
	DiscountAmount  int64      `json:"discount_amount"`
	Total           int64      `json:"total"`
	PaymentMethod   string     `json:"payment_method"`
}

// DailyStat mirrors one row of the THONG_KE worksheet, appended as a
// side effect of saving an invoice.
type DailyStat struct {
	Date            string `json:"date"`
	CashRevenue     string `json:"cash_revenue"`
	TransferRevenue string `json:"transfer_revenue"`
	TotalRevenue    string `json:"total_revenue"`
	InvoiceID       string `json:"invoice_id"`
}

// DashboardStats is the summary block for the dashboard, always
// derived from invoices inside the requested window.
type DashboardStats struct {
	TotalRevenue       int64     `json:"total_revenue"`
	TotalInvoices      int       `json:"total_invoices"`
	TotalCustomers     int       `json:"total_customers"`
	TotalProducts      int       `json:"total_products"`
	CashRevenue        int64     `json:"cash_revenue"`
	TransferRevenue    int64     `json:"transfer_revenue"`
	TotalCustomerSpent int64     `json:"total_customer_spent"`
	AvgCustomerSpent   float64   `json:"avg_customer_spent"`
	DateRange          DateRange `json:"date_range"`
}

type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type ProductStat struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Revenue  int64  `json:"revenue"`
}

type CustomerStat struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	TotalSpent   int64  `json:"total_spent"`
	InvoiceCount int    `json:"invoice_count"`
}

type RevenuePoint struct {
	Period  string `json:"period"`
	Revenue int64  `json:"revenue"`
}

// ExportResult carries a rendered .xlsx snapshot of the spreadsheet.
type ExportResult struct {
	FileName string `json:"file_name"`
	Data     []byte `json:"-"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username string
	Password string
	Role     string
	Active   bool
}

const (
	PaymentCash     = "cash"
	PaymentTransfer = "transfer"
)

const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)
