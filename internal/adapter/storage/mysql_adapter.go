package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/storefront/internal/core/domain"
)

const mysqlDuplicateEntry = 1062

const orderColumns = `id, checkout_id, user_id, items, recipient_name, phone, delivery, address,
	payment_method, comment, total_price, status, tracking_number, created_at, updated_at`

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// CreateOrder registers the user if needed and inserts the order in one transaction.
func (m *MySQLAdapter) CreateOrder(ctx context.Context, order *domain.Order) error {
	items, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("begin tx", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT IGNORE INTO users (id, created_at, updated_at) VALUES (?, ?, ?)`,
		order.UserID, order.CreatedAt, order.CreatedAt,
	)
	if err != nil {
		return storeError("ensure user", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO orders (checkout_id, user_id, items, recipient_name, phone, delivery, address,
			payment_method, comment, total_price, status, tracking_number, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.CheckoutID, order.UserID, items, order.RecipientName, order.Phone,
		string(order.DeliveryMethod), order.Address, order.PaymentMethod,
		nullString(order.Comment), order.TotalPrice, string(order.Status),
		nullString(order.TrackingNumber), order.CreatedAt, order.UpdatedAt,
	)
	if isDuplicateEntry(err) {
		return domain.ErrDuplicateCheckout
	}
	if err != nil {
		return storeError("insert order", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return storeError("order id", err)
	}

	if err := tx.Commit(); err != nil {
		return storeError("commit order", err)
	}

	order.ID = id
	return nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	return scanOrderRow(row)
}

func (m *MySQLAdapter) GetOrderByCheckoutID(ctx context.Context, checkoutID string) (*domain.Order, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE checkout_id = ?`, checkoutID)
	return scanOrderRow(row)
}

func (m *MySQLAdapter) ListOrdersByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, storeError("query user orders", err)
	}
	return scanOrders(rows)
}

func (m *MySQLAdapter) ListOrders(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = m.db.QueryContext(ctx, `
			SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC`)
	} else {
		rows, err = m.db.QueryContext(ctx, `
			SELECT `+orderColumns+` FROM orders
			WHERE status = ?
			ORDER BY created_at DESC, id DESC`, string(status))
	}
	if err != nil {
		return nil, storeError("query orders", err)
	}
	return scanOrders(rows)
}

func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus, trackingNumber *string) (*domain.Order, error) {
	var tracking sql.NullString
	if trackingNumber != nil {
		tracking = sql.NullString{String: *trackingNumber, Valid: true}
	}

	result, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, tracking_number = COALESCE(?, tracking_number), updated_at = ?
		WHERE id = ?`,
		string(status), tracking, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, storeError("update order status", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, nil
	}
	return m.GetOrder(ctx, id)
}

func (m *MySQLAdapter) EnsureUser(ctx context.Context, userID int64) error {
	now := time.Now().UTC()
	_, err := m.db.ExecContext(ctx, `
		INSERT IGNORE INTO users (id, created_at, updated_at) VALUES (?, ?, ?)`,
		userID, now, now,
	)
	if err != nil {
		return storeError("ensure user", err)
	}
	return nil
}

func (m *MySQLAdapter) UpdateUserContact(ctx context.Context, userID int64, name, phone string) error {
	now := time.Now().UTC()
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO users (id, name, phone, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), phone = VALUES(phone), updated_at = VALUES(updated_at)`,
		userID, name, phone, now, now,
	)
	if err != nil {
		return storeError("update user contact", err)
	}
	return nil
}

func (m *MySQLAdapter) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	var (
		u           domain.User
		name, phone sql.NullString
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, phone, created_at, updated_at FROM users WHERE id = ?`, userID,
	).Scan(&u.ID, &name, &phone, &u.CreatedAt, &u.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("query user", err)
	}

	u.Name, u.Phone = name.String, phone.String
	return &u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                 domain.Order
		items             []byte
		delivery, status  string
		comment, tracking sql.NullString
	)
	err := row.Scan(&o.ID, &o.CheckoutID, &o.UserID, &items, &o.RecipientName, &o.Phone,
		&delivery, &o.Address, &o.PaymentMethod, &comment, &o.TotalPrice, &status,
		&tracking, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &o.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal order %d items: %w: %w", o.ID, domain.ErrInternalInconsistency, err)
	}
	o.DeliveryMethod = domain.DeliveryMethod(delivery)
	o.Status = domain.OrderStatus(status)
	o.Comment = comment.String
	o.TrackingNumber = tracking.String
	return &o, nil
}

// scanError reports corrupt stored rows as an inconsistency rather than an
// unavailable store.
func scanError(op string, err error) error {
	if errors.Is(err, domain.ErrInternalInconsistency) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return storeError(op, err)
}

func scanOrderRow(row rowScanner) (*domain.Order, error) {
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, scanError("query order", err)
	}
	return o, nil
}

func scanOrders(rows *sql.Rows) ([]domain.Order, error) {
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, scanError("scan order", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate orders", err)
	}
	return orders, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
