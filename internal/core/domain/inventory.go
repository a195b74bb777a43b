package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	Barcode   string
	Article   string
	Name      string
	UnitPrice decimal.Decimal
	Available int
}

// CatalogSnapshot is an immutable index built from one catalog load.
type CatalogSnapshot struct {
	products  map[string]Product
	byArticle map[string][]string
	LoadedAt  time.Time
}

type SkippedRow struct {
	Row    int
	Key    string
	Reason string
}

// NewCatalogSnapshot indexes products by barcode. Rows without a barcode are keyed
// by article. Invalid rows and repeated barcodes are skipped; the first row wins.
func NewCatalogSnapshot(products []Product, loadedAt time.Time) (*CatalogSnapshot, []SkippedRow) {
	snap := &CatalogSnapshot{
		products:  make(map[string]Product, len(products)),
		byArticle: make(map[string][]string),
		LoadedAt:  loadedAt,
	}

	var skipped []SkippedRow
	for i, p := range products {
		if p.Barcode == "" {
			p.Barcode = p.Article
		}

		switch {
		case p.Barcode == "":
			skipped = append(skipped, SkippedRow{Row: i, Reason: "missing key"})
			continue
		case p.UnitPrice.IsNegative():
			skipped = append(skipped, SkippedRow{Row: i, Key: p.Barcode, Reason: "negative price"})
			continue
		case p.Available < 0:
			skipped = append(skipped, SkippedRow{Row: i, Key: p.Barcode, Reason: "negative quantity"})
			continue
		}

		if _, exists := snap.products[p.Barcode]; exists {
			skipped = append(skipped, SkippedRow{Row: i, Key: p.Barcode, Reason: "duplicate barcode"})
			continue
		}

		snap.products[p.Barcode] = p
		if p.Article != "" {
			snap.byArticle[p.Article] = append(snap.byArticle[p.Article], p.Barcode)
		}
	}

	return snap, skipped
}

func (s *CatalogSnapshot) Get(barcode string) (Product, bool) {
	p, ok := s.products[barcode]
	return p, ok
}

// ByArticle returns every variant sharing the article, in load order.
func (s *CatalogSnapshot) ByArticle(article string) []Product {
	barcodes := s.byArticle[article]
	if len(barcodes) == 0 {
		return nil
	}

	out := make([]Product, 0, len(barcodes))
	for _, bc := range barcodes {
		out = append(out, s.products[bc])
	}
	return out
}

func (s *CatalogSnapshot) Len() int {
	return len(s.products)
}
