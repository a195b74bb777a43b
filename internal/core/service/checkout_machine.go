package service

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/rl1809/storefront/internal/core/domain"
)

var (
	phonePattern       = regexp.MustCompile(`^\+?3?8?(0\d{9})$`)
	postalIndexPattern = regexp.MustCompile(`^\d{5}$`)
	phoneSeparators    = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// Outcome describes what one event did to a session.
type Outcome int

const (
	OutcomeMoved Outcome = iota
	OutcomeCancelled
	OutcomeConfirmed
)

type stepInput func(s *domain.Session, ev domain.Event) (domain.Step, error)

type transition struct {
	input stepInput
	back  func(s *domain.Session) domain.Step
}

// Machine is the checkout transition table. Apply is pure over the session:
// a rejected event leaves the session exactly as it was.
type Machine struct {
	table map[domain.Step]transition
}

func NewMachine() *Machine {
	stay := func(step domain.Step) func(*domain.Session) domain.Step {
		return func(*domain.Session) domain.Step { return step }
	}

	return &Machine{table: map[domain.Step]transition{
		domain.StepDeliveryMethod:   {input: chooseDelivery, back: stay(domain.StepDeliveryMethod)},
		domain.StepNovaPoshtaCity:   {input: enterCity, back: stay(domain.StepDeliveryMethod)},
		domain.StepNovaPoshtaOffice: {input: enterOffice, back: stay(domain.StepNovaPoshtaCity)},
		domain.StepUkrPoshtaIndex:   {input: enterPostalIndex, back: stay(domain.StepDeliveryMethod)},
		domain.StepRecipientName:    {input: enterRecipient, back: addressStep},
		domain.StepPhoneNumber:      {input: enterPhone, back: stay(domain.StepRecipientName)},
		domain.StepComment:          {input: enterComment, back: stay(domain.StepPhoneNumber)},
		domain.StepPaymentMethod:    {input: choosePayment, back: stay(domain.StepComment)},
		domain.StepConfirmation:     {input: confirm, back: stay(domain.StepPaymentMethod)},
	}}
}

// Apply handles one event for the session's current step. On success the
// session holds the new step and fields. Validation failures return a
// *domain.ValidationError; online payment returns domain.ErrOnlinePaymentDisabled.
func (m *Machine) Apply(s *domain.Session, ev domain.Event) (Outcome, error) {
	t, ok := m.table[s.Step]
	if !ok {
		return OutcomeMoved, domain.ErrInternalInconsistency
	}

	switch ev.Kind {
	case domain.EventCancel:
		return OutcomeCancelled, nil
	case domain.EventBack:
		s.Step = t.back(s)
		return OutcomeMoved, nil
	}

	// Work on a copy so a rejected input never leaks into the session.
	draft := *s
	draft.Fields = make(map[string]string, len(s.Fields)+2)
	for k, v := range s.Fields {
		draft.Fields[k] = v
	}

	next, err := t.input(&draft, ev)
	if err != nil {
		return OutcomeMoved, err
	}
	if s.Step == domain.StepConfirmation && next == domain.StepConfirmation {
		return OutcomeConfirmed, nil
	}

	s.Fields = draft.Fields
	s.Step = next
	return OutcomeMoved, nil
}

func invalid(field, msg string) error {
	return &domain.ValidationError{Field: field, Message: msg}
}

func choice(ev domain.Event) string {
	if ev.Kind == domain.EventSelect {
		return strings.TrimSpace(ev.Value)
	}
	if ev.Kind == domain.EventText {
		return strings.TrimSpace(ev.Text)
	}
	return ""
}

func freeText(ev domain.Event) (string, bool) {
	if ev.Kind != domain.EventText {
		return "", false
	}
	text := strings.TrimSpace(ev.Text)
	return text, text != ""
}

func chooseDelivery(s *domain.Session, ev domain.Event) (domain.Step, error) {
	method := domain.DeliveryMethod(choice(ev))
	if !method.Valid() {
		return "", invalid(domain.FieldDeliveryMethod, "Невірний спосіб доставки. Оберіть один з варіантів.")
	}

	s.Fields[domain.FieldDeliveryMethod] = string(method)
	switch method {
	case domain.DeliveryNovaPoshta:
		return domain.StepNovaPoshtaCity, nil
	case domain.DeliveryUkrPoshta:
		return domain.StepUkrPoshtaIndex, nil
	default:
		s.Fields[domain.FieldAddress] = domain.DeliverySelfPickup.DisplayName()
		return domain.StepRecipientName, nil
	}
}

func enterCity(s *domain.Session, ev domain.Event) (domain.Step, error) {
	city, ok := freeText(ev)
	if !ok {
		return "", invalid(domain.FieldCity, "Введіть назву населеного пункту текстом.")
	}
	s.Fields[domain.FieldCity] = city
	return domain.StepNovaPoshtaOffice, nil
}

func enterOffice(s *domain.Session, ev domain.Event) (domain.Step, error) {
	office, ok := freeText(ev)
	if !ok || !strings.ContainsFunc(office, unicode.IsDigit) {
		return "", invalid(domain.FieldOffice, "Некоректний номер відділення. Введіть номер відділення:")
	}
	s.Fields[domain.FieldOffice] = office
	s.Fields[domain.FieldAddress] = s.Fields[domain.FieldCity] + ", Відділення " + office
	return domain.StepRecipientName, nil
}

func enterPostalIndex(s *domain.Session, ev domain.Event) (domain.Step, error) {
	index, _ := freeText(ev)
	if !postalIndexPattern.MatchString(index) {
		return "", invalid(domain.FieldPostalIndex, "Некоректний індекс. Будь ласка, введіть п'ятизначний індекс:")
	}
	s.Fields[domain.FieldPostalIndex] = index
	s.Fields[domain.FieldAddress] = "Індекс: " + index
	return domain.StepRecipientName, nil
}

// addressStep is where back from the recipient step lands: the step that
// produced the address for the chosen delivery method.
func addressStep(s *domain.Session) domain.Step {
	switch s.Delivery() {
	case domain.DeliveryNovaPoshta:
		return domain.StepNovaPoshtaOffice
	case domain.DeliveryUkrPoshta:
		return domain.StepUkrPoshtaIndex
	}
	return domain.StepDeliveryMethod
}

func enterRecipient(s *domain.Session, ev domain.Event) (domain.Step, error) {
	text, _ := freeText(ev)
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return "", invalid(domain.FieldRecipientName, "Будь ласка, введіть повне ПІБ (прізвище та ім'я обов'язково):")
	}
	s.Fields[domain.FieldRecipientName] = strings.Join(parts, " ")
	return domain.StepPhoneNumber, nil
}

// NormalizePhone validates a Ukrainian mobile number and returns it as +380XXXXXXXXX.
func NormalizePhone(raw string) (string, bool) {
	m := phonePattern.FindStringSubmatch(phoneSeparators.Replace(strings.TrimSpace(raw)))
	if m == nil {
		return "", false
	}
	return "+38" + m[1], true
}

func enterPhone(s *domain.Session, ev domain.Event) (domain.Step, error) {
	var raw string
	switch ev.Kind {
	case domain.EventContact:
		raw = ev.Phone
	case domain.EventText:
		raw = ev.Text
	}

	phone, ok := NormalizePhone(raw)
	if !ok {
		return "", invalid(domain.FieldPhone, "Некоректний номер телефону. Будь ласка, введіть номер у форматі +380XXXXXXXXX")
	}
	s.Fields[domain.FieldPhone] = phone
	return domain.StepComment, nil
}

func enterComment(s *domain.Session, ev domain.Event) (domain.Step, error) {
	switch ev.Kind {
	case domain.EventSkip:
		s.Fields[domain.FieldComment] = ""
	case domain.EventText:
		s.Fields[domain.FieldComment] = strings.TrimSpace(ev.Text)
	default:
		return "", invalid(domain.FieldComment, "Введіть коментар або натисніть «Пропустити».")
	}
	return domain.StepPaymentMethod, nil
}

func choosePayment(s *domain.Session, ev domain.Event) (domain.Step, error) {
	switch domain.PaymentMethod(choice(ev)) {
	case domain.PaymentOnline:
		return "", domain.ErrOnlinePaymentDisabled
	case domain.PaymentCash:
		s.Fields[domain.FieldPaymentMethod] = domain.PaymentCash.DisplayName()
		return domain.StepConfirmation, nil
	}
	return "", invalid(domain.FieldPaymentMethod, "Оберіть спосіб оплати з запропонованих варіантів.")
}

func confirm(s *domain.Session, ev domain.Event) (domain.Step, error) {
	if ev.Kind != domain.EventConfirm {
		return "", invalid("confirmation", "Підтвердіть або скасуйте замовлення.")
	}
	return domain.StepConfirmation, nil
}
