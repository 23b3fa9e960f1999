package stats

import (
	"testing"

	"github.com/rs/zerolog"

	"skycafe/backend/internal/domain"
)

func nopLog() zerolog.Logger {
	return zerolog.Nop()
}

func invoice(id, timestamp, customerCode, total, method string) domain.Invoice {
	return domain.Invoice{
		ID:            id,
		Timestamp:     timestamp,
		CustomerCode:  customerCode,
		Total:         total,
		PaymentMethod: method,
	}
}

func TestFilterByDateEmptyBoundsReturnEverything(t *testing.T) {
	invoices := []domain.Invoice{
		invoice("HD1", "10/03/2024 14:30", "C1", "50,000 đ", domain.PaymentCash),
		invoice("HD2", "not a date", "C2", "10,000 đ", domain.PaymentCash),
	}

	got := FilterByDate(invoices, "", "", nopLog())
	if len(got) != 2 {
		t.Fatalf("expected all %d invoices with empty bounds, got %d", len(invoices), len(got))
	}
	got = FilterByDate(invoices, "2024-01-01", "", nopLog())
	if len(got) != 2 {
		t.Fatalf("expected all invoices when only from is set, got %d", len(got))
	}
}

func TestFilterByDateInclusiveRange(t *testing.T) {
	invoices := []domain.Invoice{
		invoice("HD1", "15/01/2024 10:00", "C1", "500", domain.PaymentCash),
		invoice("HD2", "31/01/2024 23:59", "C1", "500", domain.PaymentCash),
		invoice("HD3", "05/02/2024 08:00", "C1", "500", domain.PaymentCash),
		invoice("HD4", "garbage", "C1", "500", domain.PaymentCash),
	}

	got := FilterByDate(invoices, "2024-01-01", "2024-01-31", nopLog())
	if len(got) != 2 {
		t.Fatalf("expected 2 invoices in January, got %d", len(got))
	}
	for _, inv := range got {
		if inv.ID == "HD3" || inv.ID == "HD4" {
			t.Fatalf("invoice %s should have been filtered out", inv.ID)
		}
	}
}

func TestDashboardEmptyWindow(t *testing.T) {
	got := Dashboard(nil, nil, "2024-01-01", "2024-01-31", nopLog())
	if got.TotalRevenue != 0 || got.TotalInvoices != 0 || got.TotalCustomers != 0 {
		t.Fatalf("expected zeroed dashboard, got %+v", got)
	}
	if got.AvgCustomerSpent != 0 {
		t.Fatalf("expected zero average with no customers, got %f", got.AvgCustomerSpent)
	}
}

func TestDashboardSplitsByPaymentMethod(t *testing.T) {
	invoices := []domain.Invoice{
		invoice("HD1", "10/03/2024 14:30", "Minh0123", "100,000 đ", domain.PaymentCash),
		invoice("HD2", "12/03/2024 09:00", "Lan 4567", "50,000 đ", domain.PaymentTransfer),
		invoice("HD3", "10/04/2024 10:00", "Minh0123", "999,999 đ", domain.PaymentCash), // outside window
	}
	products := []domain.Product{
		{Code: "SP001", Name: "Cà Phê Sữa"},
		{Code: "SP002", Name: "Trà Đào"},
	}

	got := Dashboard(invoices, products, "2024-03-01", "2024-03-31", nopLog())

	if got.TotalRevenue != 150000 {
		t.Fatalf("expected total 150000, got %d", got.TotalRevenue)
	}
	if got.CashRevenue != 100000 || got.TransferRevenue != 50000 {
		t.Fatalf("expected cash/transfer 100000/50000, got %d/%d", got.CashRevenue, got.TransferRevenue)
	}
	if got.TotalInvoices != 2 {
		t.Fatalf("expected 2 invoices, got %d", got.TotalInvoices)
	}
	if got.TotalCustomers != 2 {
		t.Fatalf("expected 2 distinct customers, got %d", got.TotalCustomers)
	}
	if got.TotalProducts != 2 {
		t.Fatalf("expected catalog size 2, got %d", got.TotalProducts)
	}
	if got.AvgCustomerSpent != 75000 {
		t.Fatalf("expected average 75000, got %f", got.AvgCustomerSpent)
	}
}

func TestDashboardCountsCustomersByCode(t *testing.T) {
	// Two invoices from the same code are one customer even if the
	// display names differ.
	invoices := []domain.Invoice{
		invoice("HD1", "10/03/2024 14:30", "Minh0123", "1,000 đ", domain.PaymentCash),
		invoice("HD2", "11/03/2024 14:30", "Minh0123", "1,000 đ", domain.PaymentCash),
		invoice("HD3", "12/03/2024 14:30", "", "1,000 đ", domain.PaymentCash), // walk-in
	}

	got := Dashboard(invoices, nil, "", "", nopLog())
	if got.TotalCustomers != 1 {
		t.Fatalf("expected 1 distinct customer, got %d", got.TotalCustomers)
	}
}

func TestTopProductsRanksByRevenue(t *testing.T) {
	invoices := []domain.Invoice{
		{
			ID:            "HD1",
			Timestamp:     "10/03/2024 14:30",
			LineItemsJSON: `[{"name":"Coffee","quantity":2,"total":50000},{"name":"Tea","quantity":1,"total":30000}]`,
			Total:         "80,000 đ",
			PaymentMethod: domain.PaymentCash,
		},
		{
			ID:            "HD2",
			Timestamp:     "11/03/2024 09:00",
			LineItemsJSON: `[{"name":"Coffee","quantity":2,"total":30000}]`,
			Total:         "30,000 đ",
			PaymentMethod: domain.PaymentCash,
		},
		{
			ID:            "HD3",
			Timestamp:     "12/03/2024 09:00",
			LineItemsJSON: `not json`,
			Total:         "10,000 đ",
			PaymentMethod: domain.PaymentCash,
		},
	}

	got := TopProducts(invoices, "", "", nopLog())
	if len(got) != 2 {
		t.Fatalf("expected 2 products, got %d", len(got))
	}
	if got[0].Name != "Coffee" {
		t.Fatalf("expected Coffee first, got %s", got[0].Name)
	}
	if got[0].Quantity != 4 || got[0].Revenue != 80000 {
		t.Fatalf("expected Coffee qty 4 revenue 80000, got qty %d revenue %d", got[0].Quantity, got[0].Revenue)
	}
	if got[1].Name != "Tea" || got[1].Revenue != 30000 {
		t.Fatalf("expected Tea revenue 30000, got %+v", got[1])
	}
}

func TestTopProductsToleratesStringAmounts(t *testing.T) {
	// Hand-edited rows sometimes carry item amounts as display strings
	// rather than numbers; they must still count toward the ranking.
	invoices := []domain.Invoice{
		{
			ID:            "HD1",
			Timestamp:     "10/03/2024 14:30",
			LineItemsJSON: `[{"name":"Coffee","quantity":"2","total":"40,000 đ"}]`,
			Total:         "40,000 đ",
			PaymentMethod: domain.PaymentCash,
		},
		{
			ID:            "HD2",
			Timestamp:     "11/03/2024 09:00",
			LineItemsJSON: `[{"name":"Coffee","quantity":1,"total":20000}]`,
			Total:         "20,000 đ",
			PaymentMethod: domain.PaymentCash,
		},
	}

	got := TopProducts(invoices, "", "", nopLog())
	if len(got) != 1 {
		t.Fatalf("expected 1 product, got %d", len(got))
	}
	if got[0].Quantity != 3 || got[0].Revenue != 60000 {
		t.Fatalf("expected Coffee qty 3 revenue 60000 across mixed encodings, got qty %d revenue %d",
			got[0].Quantity, got[0].Revenue)
	}
}

func TestTopProductsLimit(t *testing.T) {
	invoices := make([]domain.Invoice, 0, 12)
	for i := 0; i < 12; i++ {
		name := string(rune('A' + i))
		invoices = append(invoices, domain.Invoice{
			ID:            "HD" + name,
			Timestamp:     "10/03/2024 10:00",
			LineItemsJSON: `[{"name":"` + name + `","quantity":1,"total":1000}]`,
			PaymentMethod: domain.PaymentCash,
		})
	}

	got := TopProducts(invoices, "", "", nopLog())
	if len(got) != 10 {
		t.Fatalf("expected top list capped at 10, got %d", len(got))
	}
}

func TestTopCustomersIgnoresCachedTotals(t *testing.T) {
	customers := []domain.Customer{
		{Code: "Minh0123", Name: "Nguyễn Minh", TotalSpent: "150,000 đ"},
		{Code: "Lan 4567", Name: "Trần Lan", TotalSpent: "999,999,999 đ"}, // stale cache, no invoices
	}
	invoices := []domain.Invoice{
		invoice("HD1", "10/03/2024 14:30", "Minh0123", "50,000 đ", domain.PaymentCash),
		invoice("HD2", "11/03/2024 14:30", "Minh0123", "25,000 đ", domain.PaymentTransfer),
	}

	got := TopCustomers(customers, invoices, "", "", nopLog())
	if len(got) != 1 {
		t.Fatalf("expected only the customer with invoices, got %d entries", len(got))
	}
	if got[0].Code != "Minh0123" || got[0].TotalSpent != 75000 || got[0].InvoiceCount != 2 {
		t.Fatalf("unexpected top customer: %+v", got[0])
	}
}

func TestRevenueByPeriodBuckets(t *testing.T) {
	invoices := []domain.Invoice{
		invoice("HD1", "02/03/2024 09:00", "C1", "10,000 đ", domain.PaymentCash),
		invoice("HD2", "02/03/2024 17:00", "C1", "5,000 đ", domain.PaymentCash),
		invoice("HD3", "15/03/2024 12:00", "C2", "20,000 đ", domain.PaymentTransfer),
		invoice("HD4", "01/04/2024 12:00", "C2", "7,000 đ", domain.PaymentCash),
	}

	days := RevenueByPeriod(invoices, domain.PeriodDay, "", "", nopLog())
	if len(days) != 3 {
		t.Fatalf("expected 3 day buckets, got %d", len(days))
	}
	if days[0].Period != "01/04/2024" || days[0].Revenue != 7000 {
		t.Fatalf("unexpected first day bucket: %+v", days[0])
	}

	weeks := RevenueByPeriod(invoices, domain.PeriodWeek, "2024-03-01", "2024-03-31", nopLog())
	if len(weeks) != 2 {
		t.Fatalf("expected 2 week buckets in March, got %d", len(weeks))
	}
	if weeks[0].Period != "Week 1/03/2024" || weeks[0].Revenue != 15000 {
		t.Fatalf("unexpected week bucket: %+v", weeks[0])
	}
	if weeks[1].Period != "Week 3/03/2024" || weeks[1].Revenue != 20000 {
		t.Fatalf("unexpected week bucket: %+v", weeks[1])
	}

	months := RevenueByPeriod(invoices, domain.PeriodMonth, "", "", nopLog())
	if len(months) != 2 {
		t.Fatalf("expected 2 month buckets, got %d", len(months))
	}
	if months[0].Period != "03/2024" || months[0].Revenue != 35000 {
		t.Fatalf("unexpected month bucket: %+v", months[0])
	}

	if got := RevenueByPeriod(invoices, "year", "", "", nopLog()); len(got) != 0 {
		t.Fatalf("expected no buckets for unsupported period, got %d", len(got))
	}
}
