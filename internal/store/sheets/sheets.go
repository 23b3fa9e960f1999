// Package sheets implements store.Repository on top of a Google Sheets
// workbook. Each logical table is one worksheet; rows are flat display
// strings and the header row is owned by this package. All translation
// between the Vietnamese sheet headers and the typed domain structs
// lives here so nothing above the store ever sees a column name.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"skycafe/backend/internal/domain"
	"skycafe/backend/internal/logger"
	"skycafe/backend/internal/store"
)

const (
	customerSheet  = "KHACH_HANG"
	productSheet   = "SAN_PHAM"
	invoiceSheet   = "HOA_DON"
	dailyStatSheet = "THONG_KE"
)

// customerHeaders is the canonical 18-column layout (A..R). Older
// workbooks with only the first seven columns are upgraded by
// MigrateCustomerColumns.
var customerHeaders = []string{
	"Mã KH", "Tên Khách Hàng", "Biệt Danh", "Số Điện Thoại", "4 Số Cuối",
	"Ngày Đăng Ký", "Tổng Chi Tiêu", "Lượt Chơi", "Nước", "Vé Freeroll",
	"Hyper", "Turbo", "Happy", "Deep Stack", "Highroller", "Tổng Điểm",
	"Đổi", "Còn Lại",
}

var productHeaders = []string{"Mã SP", "Tên Sản Phẩm", "Danh Mục", "Giá"}

var invoiceHeaders = []string{
	"Số HĐ", "Ngày Giờ", "Mã KH", "Tên Khách", "SĐT", "Chi Tiết SP (JSON)",
	"Tổng Tiền Hàng", "Chiết Khấu %", "Số Tiền Giảm", "Tổng Thanh Toán",
	"Hình Thức TT",
}

var dailyStatHeaders = []string{
	"Ngày", "Doanh Thu Tiền Mặt", "Doanh Thu Chuyển Khoản",
	"Tổng Doanh Thu", "Số Hóa Đơn",
}

// Service is a Repository backed by one spreadsheet.
type Service struct {
	sheets        *sheetsapi.Service
	drive         *drive.Service
	spreadsheetID string
	log           zerolog.Logger
}

// New builds the Sheets and Drive clients from service-account
// credentials. Credentials are read from GOOGLE_APPLICATION_CREDENTIALS
// (a file path) or GOOGLE_CREDENTIALS (inline JSON), in that order.
func New(ctx context.Context, spreadsheetID string) (*Service, error) {
	const op = "sheets.New"

	if spreadsheetID == "" {
		return nil, fmt.Errorf("%s: spreadsheet id is empty", op)
	}

	var creds []byte
	var err error
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(creds, sheetsapi.SpreadsheetsScope, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	client := config.Client(ctx)
	sheetsService, err := sheetsapi.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}
	driveService, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create drive service: %w", op, err)
	}

	return &Service{
		sheets:        sheetsService,
		drive:         driveService,
		spreadsheetID: spreadsheetID,
		log:           logger.WithComponent("sheets"),
	}, nil
}

// EnsureSchema creates any missing worksheet with its canonical header
// row. Existing worksheets are left untouched.
func (s *Service) EnsureSchema(ctx context.Context) error {
	const op = "EnsureSchema"

	spreadsheet, err := s.sheets.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	existing := make(map[string]bool, len(spreadsheet.Sheets))
	for _, sheet := range spreadsheet.Sheets {
		existing[sheet.Properties.Title] = true
	}

	for _, table := range []struct {
		name    string
		headers []string
	}{
		{customerSheet, customerHeaders},
		{productSheet, productHeaders},
		{invoiceSheet, invoiceHeaders},
		{dailyStatSheet, dailyStatHeaders},
	} {
		if existing[table.name] {
			continue
		}

		addReq := &sheetsapi.BatchUpdateSpreadsheetRequest{
			Requests: []*sheetsapi.Request{{
				AddSheet: &sheetsapi.AddSheetRequest{
					Properties: &sheetsapi.SheetProperties{Title: table.name},
				},
			}},
		}
		if _, err := s.sheets.Spreadsheets.BatchUpdate(s.spreadsheetID, addReq).Context(ctx).Do(); err != nil {
			return fmt.Errorf("%s: failed to create sheet %s: %w", op, table.name, err)
		}

		headerRow := make([]interface{}, len(table.headers))
		for i, h := range table.headers {
			headerRow[i] = h
		}
		valueRange := &sheetsapi.ValueRange{Values: [][]interface{}{headerRow}}
		_, err := s.sheets.Spreadsheets.Values.Update(s.spreadsheetID, table.name+"!A1", valueRange).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to write headers for %s: %w", op, table.name, err)
		}

		s.log.Info().Str("sheet", table.name).Msg("created worksheet with canonical headers")
	}

	return nil
}

// MigrateCustomerColumns upgrades an old KHACH_HANG layout to the full
// 18-column one. Existing columns are matched by header name and the
// whole grid is rewritten in canonical order, so legacy sheets whose
// columns sit in a different order come out correct for the positional
// reads and writes in this package. New columns get zero/empty
// defaults.
func (s *Service) MigrateCustomerColumns(ctx context.Context) ([]string, error) {
	const op = "MigrateCustomerColumns"

	rows, err := s.readRows(ctx, customerSheet)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %s has no header row", op, customerSheet)
	}

	rebuilt, added, changed := canonicalizeCustomerRows(rows)
	if !changed {
		return nil, nil
	}

	lastCol := columnLetter(len(customerHeaders) - 1)
	rangeSpec := fmt.Sprintf("%s!A1:%s%d", customerSheet, lastCol, len(rebuilt))
	valueRange := &sheetsapi.ValueRange{Values: rebuilt}
	if _, err := s.sheets.Spreadsheets.Values.Update(s.spreadsheetID, rangeSpec, valueRange).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return nil, fmt.Errorf("%s: rewrite failed: %w", op, err)
	}

	s.log.Info().Strs("columns", added).Msg("rewrote customer sheet in canonical column order")
	return added, nil
}

// canonicalizeCustomerRows rebuilds the customer grid in the canonical
// column order, carrying each existing cell to the column whose header
// matches its old one. added lists the headers that were not present;
// changed reports whether the stored grid differs from the result.
func canonicalizeCustomerRows(rows [][]interface{}) ([][]interface{}, []string, bool) {
	sourceCol := make(map[string]int, len(rows[0]))
	for i, cell := range rows[0] {
		sourceCol[cellString(cell)] = i
	}

	var added []string
	changed := len(rows[0]) != len(customerHeaders)
	for i, header := range customerHeaders {
		src, ok := sourceCol[header]
		if !ok {
			added = append(added, header)
			changed = true
			continue
		}
		if src != i {
			changed = true
		}
	}
	if !changed {
		return rows, nil, false
	}

	out := make([][]interface{}, len(rows))
	headerRow := make([]interface{}, len(customerHeaders))
	for i, header := range customerHeaders {
		headerRow[i] = header
	}
	out[0] = headerRow
	for r := 1; r < len(rows); r++ {
		row := make([]interface{}, len(customerHeaders))
		for i, header := range customerHeaders {
			if src, ok := sourceCol[header]; ok {
				row[i] = cellAt(rows[r], src)
			} else {
				row[i] = defaultForColumn(header)
			}
		}
		out[r] = row
	}
	return out, added, true
}

func defaultForColumn(header string) interface{} {
	if header == "Biệt Danh" {
		return ""
	}
	return 0
}

// columnLetter maps a zero-based column index to its A1 letter. The
// customer sheet tops out at column R, well inside the single-letter
// range.
func columnLetter(index int) string {
	return string(rune('A' + index))
}

// ExportXLSX downloads the whole workbook as an .xlsx file via the
// Drive export endpoint.
func (s *Service) ExportXLSX(ctx context.Context) ([]byte, error) {
	const op = "ExportXLSX"
	const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	resp, err := s.drive.Files.Export(s.spreadsheetID, xlsxMIME).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("%s: export failed: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: reading export body: %w", op, err)
	}
	return data, nil
}

func (s *Service) readRows(ctx context.Context, sheetName string) ([][]interface{}, error) {
	resp, err := s.sheets.Spreadsheets.Values.Get(s.spreadsheetID, sheetName).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheetName, err)
	}
	return resp.Values, nil
}

func (s *Service) appendRow(ctx context.Context, sheetName string, row []interface{}) error {
	valueRange := &sheetsapi.ValueRange{Values: [][]interface{}{row}}
	_, err := s.sheets.Spreadsheets.Values.Append(s.spreadsheetID, sheetName, valueRange).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", sheetName, err)
	}
	return nil
}

func (s *Service) updateRange(ctx context.Context, rangeSpec string, row []interface{}) error {
	valueRange := &sheetsapi.ValueRange{Values: [][]interface{}{row}}
	_, err := s.sheets.Spreadsheets.Values.Update(s.spreadsheetID, rangeSpec, valueRange).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", rangeSpec, err)
	}
	return nil
}

// deleteRow removes one data row. rowIndex is 1-based as shown in the
// sheet UI.
func (s *Service) deleteRow(ctx context.Context, sheetName string, rowIndex int) error {
	spreadsheet, err := s.sheets.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	var sheetID int64 = -1
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == sheetName {
			sheetID = sheet.Properties.SheetId
			break
		}
	}
	if sheetID < 0 {
		return fmt.Errorf("sheet %s not found", sheetName)
	}

	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			DeleteDimension: &sheetsapi.DeleteDimensionRequest{
				Range: &sheetsapi.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(rowIndex - 1),
					EndIndex:   int64(rowIndex),
				},
			},
		}},
	}
	if _, err := s.sheets.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete row %d from %s: %w", rowIndex, sheetName, err)
	}
	return nil
}

// findRowByKey returns the 1-based sheet row whose first cell equals
// key, skipping the header.
func (s *Service) findRowByKey(ctx context.Context, sheetName, key string) (int, [][]interface{}, error) {
	rows, err := s.readRows(ctx, sheetName)
	if err != nil {
		return 0, nil, err
	}
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) > 0 && cellString(rows[i][0]) == key {
			return i + 1, rows, nil
		}
	}
	return 0, rows, store.ErrNotFound
}

func cellString(cell interface{}) string {
	if cell == nil {
		return ""
	}
	if s, ok := cell.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", cell)
}

func cellAt(row []interface{}, index int) string {
	if index >= len(row) {
		return ""
	}
	return cellString(row[index])
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.readRows(ctx, customerSheet)
	if err != nil {
		return nil, err
	}

	customers := make([]domain.Customer, 0, max(0, len(rows)-1))
	for i := 1; i < len(rows); i++ {
		if cellAt(rows[i], 0) == "" {
			continue
		}
		customers = append(customers, customerFromRow(rows[i]))
	}
	return customers, nil
}

func (s *Service) CreateCustomer(ctx context.Context, customer domain.Customer) error {
	if _, _, err := s.findRowByKey(ctx, customerSheet, customer.Code); err == nil {
		return store.ErrDuplicate
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return s.appendRow(ctx, customerSheet, customerToRow(customer))
}

func (s *Service) UpdateCustomer(ctx context.Context, code string, customer domain.Customer) error {
	rowIndex, _, err := s.findRowByKey(ctx, customerSheet, code)
	if err != nil {
		return err
	}
	customer.Code = code
	rangeSpec := fmt.Sprintf("%s!A%d:R%d", customerSheet, rowIndex, rowIndex)
	return s.updateRange(ctx, rangeSpec, customerToRow(customer))
}

func (s *Service) DeleteCustomer(ctx context.Context, code string) error {
	rowIndex, _, err := s.findRowByKey(ctx, customerSheet, code)
	if err != nil {
		return err
	}
	return s.deleteRow(ctx, customerSheet, rowIndex)
}

// UpdateCustomerSpent rewrites only the cached spend cell (column G).
func (s *Service) UpdateCustomerSpent(ctx context.Context, code string, display string) error {
	rowIndex, _, err := s.findRowByKey(ctx, customerSheet, code)
	if err != nil {
		return err
	}
	rangeSpec := fmt.Sprintf("%s!G%d", customerSheet, rowIndex)
	return s.updateRange(ctx, rangeSpec, []interface{}{display})
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.readRows(ctx, productSheet)
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, max(0, len(rows)-1))
	for i := 1; i < len(rows); i++ {
		if cellAt(rows[i], 0) == "" {
			continue
		}
		products = append(products, domain.Product{
			Code:     cellAt(rows[i], 0),
			Name:     cellAt(rows[i], 1),
			Category: cellAt(rows[i], 2),
			Price:    cellAt(rows[i], 3),
		})
	}
	return products, nil
}

func (s *Service) CreateProduct(ctx context.Context, product domain.Product) error {
	if _, _, err := s.findRowByKey(ctx, productSheet, product.Code); err == nil {
		return store.ErrDuplicate
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return s.appendRow(ctx, productSheet, []interface{}{
		product.Code, product.Name, product.Category, product.Price,
	})
}

func (s *Service) UpdateProduct(ctx context.Context, code string, product domain.Product) error {
	rowIndex, _, err := s.findRowByKey(ctx, productSheet, code)
	if err != nil {
		return err
	}
	rangeSpec := fmt.Sprintf("%s!B%d:D%d", productSheet, rowIndex, rowIndex)
	return s.updateRange(ctx, rangeSpec, []interface{}{
		product.Name, product.Category, product.Price,
	})
}

func (s *Service) DeleteProduct(ctx context.Context, code string) error {
	rowIndex, _, err := s.findRowByKey(ctx, productSheet, code)
	if err != nil {
		return err
	}
	return s.deleteRow(ctx, productSheet, rowIndex)
}

func (s *Service) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	rows, err := s.readRows(ctx, invoiceSheet)
	if err != nil {
		return nil, err
	}

	invoices := make([]domain.Invoice, 0, max(0, len(rows)-1))
	for i := 1; i < len(rows); i++ {
		if cellAt(rows[i], 0) == "" {
			continue
		}
		invoices = append(invoices, domain.Invoice{
			ID:              cellAt(rows[i], 0),
			Timestamp:       cellAt(rows[i], 1),
			CustomerCode:    cellAt(rows[i], 2),
			CustomerName:    cellAt(rows[i], 3),
			CustomerPhone:   cellAt(rows[i], 4),
			LineItemsJSON:   cellAt(rows[i], 5),
			Subtotal:        cellAt(rows[i], 6),
			DiscountPercent: cellAt(rows[i], 7),
			DiscountAmount:  cellAt(rows[i], 8),
			Total:           cellAt(rows[i], 9),
			PaymentMethod:   cellAt(rows[i], 10),
		})
	}
	return invoices, nil
}

func (s *Service) AppendInvoice(ctx context.Context, invoice domain.Invoice) error {
	return s.appendRow(ctx, invoiceSheet, []interface{}{
		invoice.ID,
		invoice.Timestamp,
		invoice.CustomerCode,
		invoice.CustomerName,
		invoice.CustomerPhone,
		invoice.LineItemsJSON,
		invoice.Subtotal,
		invoice.DiscountPercent,
		invoice.DiscountAmount,
		invoice.Total,
		invoice.PaymentMethod,
	})
}

func (s *Service) AppendDailyStat(ctx context.Context, stat domain.DailyStat) error {
	return s.appendRow(ctx, dailyStatSheet, []interface{}{
		stat.Date,
		stat.CashRevenue,
		stat.TransferRevenue,
		stat.TotalRevenue,
		stat.InvoiceID,
	})
}

func customerFromRow(row []interface{}) domain.Customer {
	return domain.Customer{
		Code:             cellAt(row, 0),
		Name:             cellAt(row, 1),
		Nickname:         cellAt(row, 2),
		Phone:            cellAt(row, 3),
		Last4:            cellAt(row, 4),
		RegistrationDate: cellAt(row, 5),
		TotalSpent:       cellAt(row, 6),
		GameCount:        cellAt(row, 7),
		DrinkCount:       cellAt(row, 8),
		Freeroll:         cellAt(row, 9),
		Hyper:            cellAt(row, 10),
		Turbo:            cellAt(row, 11),
		Happy:            cellAt(row, 12),
		DeepStack:        cellAt(row, 13),
		Highroller:       cellAt(row, 14),
		Points:           cellAt(row, 15),
		Exchanged:        cellAt(row, 16),
		Remaining:        cellAt(row, 17),
	}
}

func customerToRow(c domain.Customer) []interface{} {
	return []interface{}{
		c.Code, c.Name, c.Nickname, c.Phone, c.Last4, c.RegistrationDate,
		c.TotalSpent, c.GameCount, c.DrinkCount, c.Freeroll, c.Hyper,
		c.Turbo, c.Happy, c.DeepStack, c.Highroller, c.Points,
		c.Exchanged, c.Remaining,
	}
}
