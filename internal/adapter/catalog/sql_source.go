package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/rl1809/storefront/internal/core/domain"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLSource reads products from a table with barcode, article, name, price
// and quantity columns. Works with the sqlite and postgres drivers.
type SQLSource struct {
	db    *sql.DB
	query string
	name  string
}

func NewSQLSource(db *sql.DB, driver, table string) (*SQLSource, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid catalog table name %q", table)
	}

	return &SQLSource{
		db:    db,
		query: "SELECT barcode, article, name, price, quantity FROM " + table + " ORDER BY article, barcode",
		name:  driver + ":" + table,
	}, nil
}

// OpenSQLite opens a catalog database file in read-mostly mode.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	return db, nil
}

func (s *SQLSource) Close() error {
	return s.db.Close()
}

func (s *SQLSource) Name() string {
	return s.name
}

func (s *SQLSource) LoadProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var (
			p                domain.Product
			barcode, article sql.NullString
			price            decimal.Decimal
		)
		if err := rows.Scan(&barcode, &article, &p.Name, &price, &p.Available); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		p.Barcode, p.Article, p.UnitPrice = barcode.String, article.String, price
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog: %w", err)
	}
	return products, nil
}
