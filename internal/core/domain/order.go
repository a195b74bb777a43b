package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusNew              OrderStatus = "new"
	OrderStatusConfirmed        OrderStatus = "confirmed"
	OrderStatusShipped          OrderStatus = "shipped"
	OrderStatusDelivered        OrderStatus = "delivered"
	OrderStatusCancelledByAdmin OrderStatus = "cancelled_by_admin"
	OrderStatusCancelledByUser  OrderStatus = "cancelled_by_user"
)

var statusDescriptions = map[OrderStatus]string{
	OrderStatusNew:              "В обробці",
	OrderStatusConfirmed:        "Підтверджено",
	OrderStatusShipped:          "Відправлено",
	OrderStatusDelivered:        "Доставлено",
	OrderStatusCancelledByAdmin: "Скасовано адміністратором",
	OrderStatusCancelledByUser:  "Скасовано користувачем",
}

func (s OrderStatus) Valid() bool {
	_, ok := statusDescriptions[s]
	return ok
}

// Description returns the localized status text shown to users and admins.
func (s OrderStatus) Description() string {
	if d, ok := statusDescriptions[s]; ok {
		return d
	}
	return string(s)
}

type OrderLine struct {
	Key       string          `json:"key"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type Order struct {
	ID             int64           `json:"id"`
	CheckoutID     string          `json:"checkout_id"`
	UserID         int64           `json:"user_id"`
	Lines          []OrderLine     `json:"lines"`
	RecipientName  string          `json:"recipient_name"`
	Phone          string          `json:"phone"`
	DeliveryMethod DeliveryMethod  `json:"delivery_method"`
	Address        string          `json:"address"`
	PaymentMethod  string          `json:"payment_method"`
	Comment        string          `json:"comment,omitempty"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	Status         OrderStatus     `json:"status"`
	TrackingNumber string          `json:"tracking_number,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CheckoutCompleted is emitted once an order is durably persisted.
type CheckoutCompleted struct {
	OrderID    int64           `json:"order_id"`
	UserID     int64           `json:"user_id"`
	CheckoutID string          `json:"checkout_id"`
	Total      decimal.Decimal `json:"total"`
	Recipient  string          `json:"recipient"`
	Phone      string          `json:"phone"`
	Delivery   string          `json:"delivery"`
	Address    string          `json:"address"`
	At         time.Time       `json:"at"`
}
