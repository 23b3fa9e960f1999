// Package stats is the reporting engine. Every aggregation takes the
// raw, unfiltered invoice rows plus the raw date bounds and applies the
// range filter itself, so callers never pass pre-filtered data. All
// functions are pure and tolerate dirty cells: an unparsable amount
// counts as zero, an unparsable timestamp drops the row from the
// filtered window.
package stats

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"skycafe/backend/internal/datekey"
	"skycafe/backend/internal/domain"
	"skycafe/backend/internal/money"
)

const topProductLimit = 10

// FilterByDate keeps invoices whose normalized timestamp falls inside
// the inclusive [from, to] range of canonical YYYY-MM-DD keys. If
// either bound is empty the input is returned unchanged. Rows whose
// timestamp cannot be normalized are dropped and logged, not surfaced.
func FilterByDate(invoices []domain.Invoice, from, to string, log zerolog.Logger) []domain.Invoice {
	if from == "" || to == "" {
		return invoices
	}

	filtered := make([]domain.Invoice, 0, len(invoices))
	dropped := 0
	for _, inv := range invoices {
		key, ok := datekey.Normalize(inv.Timestamp)
		if !ok {
			dropped++
			log.Debug().Str("invoice_id", inv.ID).Str("timestamp", inv.Timestamp).Msg("dropping invoice with unparsable date")
			continue
		}
		if from <= key && key <= to {
			filtered = append(filtered, inv)
		}
	}
	if dropped > 0 {
		log.Warn().Int("dropped", dropped).Str("from", from).Str("to", to).Msg("invoices skipped during date filtering")
	}
	return filtered
}

// Dashboard computes the summary block. Distinct customers are counted
// by customer code, not display name, so two customers who share a name
// do not collapse into one. TotalProducts is the catalog size and is
// not scoped by the date range.
func Dashboard(invoices []domain.Invoice, products []domain.Product, from, to string, log zerolog.Logger) domain.DashboardStats {
	filtered := FilterByDate(invoices, from, to, log)

	var totalRevenue, cashRevenue, transferRevenue int64
	codes := make(map[string]struct{})
	for _, inv := range filtered {
		total, _ := money.Parse(inv.Total)
		totalRevenue += total
		switch inv.PaymentMethod {
		case domain.PaymentCash:
			cashRevenue += total
		case domain.PaymentTransfer:
			transferRevenue += total
		}
		if code := inv.CustomerCode; code != "" {
			codes[code] = struct{}{}
		}
	}

	avg := float64(0)
	if len(codes) > 0 {
		avg = float64(totalRevenue) / float64(len(codes))
	}

	return domain.DashboardStats{
		TotalRevenue:       totalRevenue,
		TotalInvoices:      len(filtered),
		TotalCustomers:     len(codes),
		TotalProducts:      len(products),
		CashRevenue:        cashRevenue,
		TransferRevenue:    transferRevenue,
		TotalCustomerSpent: totalRevenue,
		AvgCustomerSpent:   avg,
		DateRange:          domain.DateRange{From: from, To: to},
	}
}

// TopProducts accumulates quantity and revenue per product name across
// the filtered invoices' line-item JSON and returns the ten best
// sellers by revenue. An invoice whose line-items cell fails to decode
// contributes nothing.
func TopProducts(invoices []domain.Invoice, from, to string, log zerolog.Logger) []domain.ProductStat {
	filtered := FilterByDate(invoices, from, to, log)

	byName := make(map[string]*domain.ProductStat)
	for _, inv := range filtered {
		var items []domain.LineItem
		if err := json.Unmarshal([]byte(inv.LineItemsJSON), &items); err != nil {
			log.Debug().Str("invoice_id", inv.ID).Err(err).Msg("skipping invoice with malformed line items")
			continue
		}
		for _, item := range items {
			entry, ok := byName[item.Name]
			if !ok {
				entry = &domain.ProductStat{Name: item.Name}
				byName[item.Name] = entry
			}
			entry.Quantity += item.Quantity
			entry.Revenue += item.Total
		}
	}

	ranked := make([]domain.ProductStat, 0, len(byName))
	for _, entry := range byName {
		ranked = append(ranked, *entry)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Revenue > ranked[j].Revenue
	})
	if len(ranked) > topProductLimit {
		ranked = ranked[:topProductLimit]
	}
	return ranked
}

// TopCustomers re-sums invoice totals per customer code inside the
// window, sorted by spend descending. The cached total on the customer
// row is never consulted, and customers without invoices in the window
// are left out entirely.
func TopCustomers(customers []domain.Customer, invoices []domain.Invoice, from, to string, log zerolog.Logger) []domain.CustomerStat {
	filtered := FilterByDate(invoices, from, to, log)

	ranked := make([]domain.CustomerStat, 0, len(customers))
	for _, customer := range customers {
		var spent int64
		count := 0
		for _, inv := range filtered {
			if inv.CustomerCode != customer.Code {
				continue
			}
			total, _ := money.Parse(inv.Total)
			spent += total
			count++
		}
		if count == 0 {
			continue
		}
		ranked = append(ranked, domain.CustomerStat{
			Code:         customer.Code,
			Name:         customer.Name,
			TotalSpent:   spent,
			InvoiceCount: count,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalSpent > ranked[j].TotalSpent
	})
	return ranked
}

// RevenueByPeriod buckets filtered invoices by day, week-of-month, or
// month and sums totals per bucket. Bucket keys reuse the date
// components exactly as stored in the cell (day "D/M/YYYY", week
// "Week N/M/YYYY", month "M/YYYY"); the week number is a plain
// day-of-month partition, floor((day-1)/7)+1, not an ISO week. The
// result is sorted by key as a string, which matches chronological
// order only while components stay zero-padded. Kept as-is so the
// output matches what the frontend has always shown.
func RevenueByPeriod(invoices []domain.Invoice, period, from, to string, log zerolog.Logger) []domain.RevenuePoint {
	filtered := FilterByDate(invoices, from, to, log)

	buckets := make(map[string]int64)
	for _, inv := range filtered {
		day, month, year, ok := datekey.SplitDisplay(inv.Timestamp)
		if !ok {
			continue
		}

		var key string
		switch period {
		case domain.PeriodDay:
			key = day + "/" + month + "/" + year
		case domain.PeriodWeek:
			d, err := strconv.Atoi(day)
			if err != nil {
				continue
			}
			week := (d-1)/7 + 1
			key = "Week " + strconv.Itoa(week) + "/" + month + "/" + year
		case domain.PeriodMonth:
			key = month + "/" + year
		default:
			continue
		}

		total, _ := money.Parse(inv.Total)
		buckets[key] += total
	}

	points := make([]domain.RevenuePoint, 0, len(buckets))
	for key, revenue := range buckets {
		points = append(points, domain.RevenuePoint{Period: key, Revenue: revenue})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Period < points[j].Period
	})
	return points
}
