package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
)

// Header captions of the warehouse stock export.
const (
	headerName        = "Номенклатура"
	headerArticle     = "Артикул"
	headerBarcode     = "Штрих-код"
	headerQuantity    = "Кількість"
	headerPricePrefix = "У вибраному типі цін"
)

type columns struct {
	name, article, barcode, quantity, price int
}

// XLSXSource reads products from the stock spreadsheet.
type XLSXSource struct {
	path     string
	sheet    string
	skipRows int
	logger   *zap.Logger
}

func NewXLSXSource(path, sheet string, skipRows int, logger *zap.Logger) *XLSXSource {
	return &XLSXSource{path: path, sheet: sheet, skipRows: skipRows, logger: logger}
}

func (s *XLSXSource) Name() string {
	return "xlsx:" + s.path
}

func (s *XLSXSource) LoadProducts(ctx context.Context) ([]domain.Product, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open stock file: %w", err)
	}
	defer f.Close()

	sheet := s.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("stock file %s has no sheets", s.path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) <= s.skipRows {
		return nil, fmt.Errorf("sheet %q has no header after %d rows", sheet, s.skipRows)
	}

	cols, err := locateColumns(rows[s.skipRows])
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(rows)-s.skipRows-1)
	for i, row := range rows[s.skipRows+1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rowNum := s.skipRows + i + 2
		article := cell(row, cols.article)
		barcode := cell(row, cols.barcode)
		if article == "" && barcode == "" {
			continue
		}

		price, err := parseDecimal(cell(row, cols.price))
		if err != nil {
			s.logger.Warn("skipping stock row with bad price", zap.Int("row", rowNum), zap.String("article", article), zap.Error(err))
			continue
		}
		qty, err := parseDecimal(cell(row, cols.quantity))
		if err != nil {
			s.logger.Warn("skipping stock row with bad quantity", zap.Int("row", rowNum), zap.String("article", article), zap.Error(err))
			continue
		}

		products = append(products, domain.Product{
			Barcode:   barcode,
			Article:   article,
			Name:      cell(row, cols.name),
			UnitPrice: price,
			Available: int(qty.IntPart()),
		})
	}
	return products, nil
}

func locateColumns(header []string) (columns, error) {
	cols := columns{name: -1, article: -1, barcode: -1, quantity: -1, price: -1}
	for i, h := range header {
		h = strings.TrimSpace(h)
		switch {
		case h == headerName:
			cols.name = i
		case h == headerArticle:
			cols.article = i
		case h == headerBarcode:
			cols.barcode = i
		case h == headerQuantity:
			cols.quantity = i
		case strings.HasPrefix(h, headerPricePrefix):
			cols.price = i
		}
	}

	var missing []string
	if cols.name < 0 {
		missing = append(missing, headerName)
	}
	if cols.article < 0 {
		missing = append(missing, headerArticle)
	}
	if cols.quantity < 0 {
		missing = append(missing, headerQuantity)
	}
	if cols.price < 0 {
		missing = append(missing, headerPricePrefix)
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("stock header is missing columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseDecimal accepts spreadsheet numbers with a comma decimal separator
// and grouping spaces. An empty cell is zero.
func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
