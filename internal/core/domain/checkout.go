package domain

import (
	"time"

	"github.com/google/uuid"
)

type Step string

const (
	StepDeliveryMethod   Step = "delivery_method"
	StepNovaPoshtaCity   Step = "nova_poshta_city"
	StepNovaPoshtaOffice Step = "nova_poshta_office"
	StepUkrPoshtaIndex   Step = "ukrposhta_index"
	StepRecipientName    Step = "recipient_name"
	StepPhoneNumber      Step = "phone_number"
	StepComment          Step = "comment"
	StepPaymentMethod    Step = "payment_method"
	StepConfirmation     Step = "confirmation"
)

// Steps lists every checkout step in sequence order.
var Steps = []Step{
	StepDeliveryMethod,
	StepNovaPoshtaCity,
	StepNovaPoshtaOffice,
	StepUkrPoshtaIndex,
	StepRecipientName,
	StepPhoneNumber,
	StepComment,
	StepPaymentMethod,
	StepConfirmation,
}

func (s Step) Valid() bool {
	for _, step := range Steps {
		if s == step {
			return true
		}
	}
	return false
}

type DeliveryMethod string

const (
	DeliveryNovaPoshta DeliveryMethod = "nova_poshta"
	DeliveryUkrPoshta  DeliveryMethod = "ukrposhta"
	DeliverySelfPickup DeliveryMethod = "self_pickup"
)

var deliveryNames = map[DeliveryMethod]string{
	DeliveryNovaPoshta: "Нова Пошта",
	DeliveryUkrPoshta:  "Укрпошта",
	DeliverySelfPickup: "Самовивіз",
}

func (d DeliveryMethod) Valid() bool {
	_, ok := deliveryNames[d]
	return ok
}

func (d DeliveryMethod) DisplayName() string {
	if name, ok := deliveryNames[d]; ok {
		return name
	}
	return string(d)
}

type PaymentMethod string

const (
	PaymentOnline PaymentMethod = "online"
	PaymentCash   PaymentMethod = "cash"
)

func (p PaymentMethod) DisplayName() string {
	switch p {
	case PaymentOnline:
		return "Онлайн оплата"
	case PaymentCash:
		return "Післяоплата"
	}
	return string(p)
}

// Keys of Session.Fields.
const (
	FieldDeliveryMethod = "delivery_method"
	FieldCity           = "city"
	FieldOffice         = "office"
	FieldPostalIndex    = "postal_index"
	FieldAddress        = "address"
	FieldRecipientName  = "recipient_name"
	FieldPhone          = "phone"
	FieldComment        = "comment"
	FieldPaymentMethod  = "payment_method"
)

type Session struct {
	ID        string            `json:"id"`
	UserID    int64             `json:"user_id"`
	Step      Step              `json:"step"`
	Fields    map[string]string `json:"fields"`
	StartedAt time.Time         `json:"started_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func NewSession(userID int64, now time.Time) *Session {
	return &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Step:      StepDeliveryMethod,
		Fields:    make(map[string]string),
		StartedAt: now,
		UpdatedAt: now,
	}
}

func (s *Session) Delivery() DeliveryMethod {
	return DeliveryMethod(s.Fields[FieldDeliveryMethod])
}

type EventKind string

const (
	EventText    EventKind = "text"
	EventSelect  EventKind = "select"
	EventContact EventKind = "contact"
	EventSkip    EventKind = "skip"
	EventBack    EventKind = "back"
	EventCancel  EventKind = "cancel"
	EventConfirm EventKind = "confirm"
	EventCommand EventKind = "command"
)

// Event is one user interaction delivered by the transport.
type Event struct {
	Kind  EventKind `json:"type"`
	Text  string    `json:"text,omitempty"`
	Value string    `json:"value,omitempty"`
	Phone string    `json:"phone,omitempty"`
}
