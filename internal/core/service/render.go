package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
)

// Conversation commands carried in Event.Value of command events. The
// argument, if any, is in Event.Text.
const (
	CmdStart    = "start"
	CmdMenu     = "menu"
	CmdProduct  = "product"
	CmdAdd      = "add"
	CmdCart     = "cart"
	CmdIncrease = "inc"
	CmdDecrease = "dec"
	CmdRemove   = "remove"
	CmdClear    = "clear"
	CmdCheckout = "checkout"
	CmdOrders   = "orders"
)

const separator = "➖➖➖➖➖➖➖➖➖➖"

func command(label, name, arg string) domain.Option {
	return domain.Option{Label: label, Event: domain.Event{Kind: domain.EventCommand, Value: name, Text: arg}}
}

func selectOption(label, value string) domain.Option {
	return domain.Option{Label: label, Event: domain.Event{Kind: domain.EventSelect, Value: value}}
}

var (
	backOption    = domain.Option{Label: "⬅️ Назад", Event: domain.Event{Kind: domain.EventBack}}
	cancelOption  = domain.Option{Label: "❌ Скасувати", Event: domain.Event{Kind: domain.EventCancel}}
	skipOption    = domain.Option{Label: "⏭ Пропустити", Event: domain.Event{Kind: domain.EventSkip}}
	confirmOption = domain.Option{Label: "✅ Підтвердити", Event: domain.Event{Kind: domain.EventConfirm}}
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2) + " грн."
}

func mainMenu(userID int64) domain.Message {
	return domain.Message{
		Text: fmt.Sprintf("👋 Вітаємо у нашому магазині!\n\n🆔 Ваш ID: %d\n\n"+
			"Надішліть артикул або штрих-код товару, щоб знайти його.\nОберіть потрібний розділ:", userID),
		Options: []domain.Option{
			command("🛒 Кошик", CmdCart, ""),
			command("📦 Мої замовлення", CmdOrders, "1"),
		},
	}
}

func productCard(p domain.Product, inCart int) domain.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 %s\nАртикул: %s\n", p.Name, p.Article)
	if p.Barcode != p.Article {
		fmt.Fprintf(&b, "Штрих-код: %s\n", p.Barcode)
	}
	fmt.Fprintf(&b, "💰 Ціна: %s\n📊 В наявності: %d шт.", money(p.UnitPrice), p.Available)
	if inCart > 0 {
		fmt.Fprintf(&b, "\n🛒 У кошику: %d шт.", inCart)
	}

	msg := domain.Message{Text: b.String()}
	if p.Available > 0 {
		msg.Options = append(msg.Options, command("➕ Додати до кошика", CmdAdd, p.Barcode))
	}
	msg.Options = append(msg.Options, command("🛒 Кошик", CmdCart, ""))
	return msg
}

func prunedNotice(pruned []domain.PrunedLine) domain.Message {
	var b strings.Builder
	b.WriteString("⚠️ Деякі товари виявились недоступні та були видалені з кошика:\n")
	for _, p := range pruned {
		switch p.Reason {
		case domain.PruneNotFound:
			fmt.Fprintf(&b, "• %s: товар більше не продається\n", p.Key)
		case domain.PruneInsufficientStock:
			fmt.Fprintf(&b, "• %s: у кошику %d шт., доступно %d шт.\n", p.Key, p.Quantity, p.Available)
		}
	}
	return domain.Message{Text: strings.TrimRight(b.String(), "\n")}
}

// cartMessages renders the reconciled cart, preceded by a pruning notice when
// lines were removed.
func cartMessages(rc *domain.ReconciledCart) []domain.Message {
	var msgs []domain.Message
	if len(rc.Pruned) > 0 {
		msgs = append(msgs, prunedNotice(rc.Pruned))
	}

	if rc.IsEmpty() {
		return append(msgs, domain.Message{
			Text:    "🛒 Ваш кошик порожній",
			Options: []domain.Option{command("🏠 Головне меню", CmdMenu, "")},
		})
	}

	var b strings.Builder
	b.WriteString("🛒 Ваш кошик:\n\n")
	var opts []domain.Option
	for _, l := range rc.Lines {
		p := l.Product
		fmt.Fprintf(&b, "📦 %s\nАртикул: %s\nШтрих-код: %s\nКількість: %d шт.\nЦіна: %s x %d = %s\nДоступно: %d шт.\n%s\n\n",
			p.Name, p.Article, p.Barcode, l.Quantity,
			money(p.UnitPrice), l.Quantity, money(l.Subtotal), p.Available, separator)
		opts = append(opts,
			command("➕ "+p.Article, CmdIncrease, p.Barcode),
			command("➖ "+p.Article, CmdDecrease, p.Barcode),
			command("🗑 "+p.Article, CmdRemove, p.Barcode),
		)
	}
	fmt.Fprintf(&b, "💰 Загальна сума: %s", money(rc.Total))
	if rc.Stale {
		b.WriteString("\n\n⚠️ Дані про наявність можуть бути застарілими.")
	}

	opts = append(opts,
		command("✅ Оформити замовлення", CmdCheckout, ""),
		command("🧹 Очистити кошик", CmdClear, ""),
	)
	return append(msgs, domain.Message{Text: b.String(), Options: opts})
}

// stepPrompt renders the question asked at a checkout step.
func stepPrompt(step domain.Step) domain.Message {
	nav := []domain.Option{backOption, cancelOption}

	switch step {
	case domain.StepDeliveryMethod:
		return domain.Message{
			Text: "Оберіть спосіб доставки:",
			Options: []domain.Option{
				selectOption("🚚 Нова Пошта", string(domain.DeliveryNovaPoshta)),
				selectOption("📬 Укрпошта", string(domain.DeliveryUkrPoshta)),
				selectOption("🏪 Самовивіз", string(domain.DeliverySelfPickup)),
				cancelOption,
			},
		}
	case domain.StepNovaPoshtaCity:
		return domain.Message{Text: "Введіть назву населеного пункту:", Options: nav}
	case domain.StepNovaPoshtaOffice:
		return domain.Message{Text: "Введіть номер відділення:", Options: nav}
	case domain.StepUkrPoshtaIndex:
		return domain.Message{Text: "Введіть п'ятизначний індекс відділення:", Options: nav}
	case domain.StepRecipientName:
		return domain.Message{Text: "Введіть ПІБ отримувача:", Options: nav}
	case domain.StepPhoneNumber:
		return domain.Message{
			Text:           "📱 Натисніть кнопку «Поділитися контактом» або введіть номер телефону вручну:",
			Options:        nav,
			RequestContact: true,
		}
	case domain.StepComment:
		return domain.Message{
			Text:    "Додайте коментар до замовлення або пропустіть цей крок:",
			Options: []domain.Option{skipOption, backOption, cancelOption},
		}
	case domain.StepPaymentMethod:
		return domain.Message{
			Text: "Оберіть спосіб оплати:",
			Options: []domain.Option{
				selectOption("💳 "+domain.PaymentOnline.DisplayName(), string(domain.PaymentOnline)),
				selectOption("💵 "+domain.PaymentCash.DisplayName(), string(domain.PaymentCash)),
				backOption,
				cancelOption,
			},
		}
	}
	return domain.Message{Text: "Підтвердіть оформлення замовлення:", Options: []domain.Option{confirmOption, backOption, cancelOption}}
}

func orderSummary(s *domain.Session, rc *domain.ReconciledCart) domain.Message {
	var b strings.Builder
	b.WriteString("📋 Ваше замовлення:\n\n")
	for _, l := range rc.Lines {
		fmt.Fprintf(&b, "- %s x%d = %s\n", l.Product.Name, l.Quantity, money(l.Subtotal))
	}
	fmt.Fprintf(&b, "\n💰 Загальна сума: %s\n", money(rc.Total))
	fmt.Fprintf(&b, "\n🚚 Спосіб доставки: %s\n", s.Delivery().DisplayName())
	fmt.Fprintf(&b, "📍 Адреса: %s\n", s.Fields[domain.FieldAddress])
	fmt.Fprintf(&b, "👤 Отримувач: %s\n", s.Fields[domain.FieldRecipientName])
	fmt.Fprintf(&b, "📱 Телефон: %s\n", s.Fields[domain.FieldPhone])
	if c := s.Fields[domain.FieldComment]; c != "" {
		fmt.Fprintf(&b, "💬 Коментар: %s\n", c)
	}
	fmt.Fprintf(&b, "💳 Спосіб оплати: %s\n\nПідтвердіть оформлення замовлення:", s.Fields[domain.FieldPaymentMethod])

	return domain.Message{Text: b.String(), Options: []domain.Option{confirmOption, backOption, cancelOption}}
}

func orderCreated(o *domain.Order) domain.Message {
	return domain.Message{
		Text: fmt.Sprintf("✅ Замовлення #%d успішно оформлено!\n\n"+
			"Ми зв'яжемося з вами найближчим часом для підтвердження замовлення.", o.ID),
		Options: []domain.Option{command("🏠 Головне меню", CmdMenu, "")},
	}
}

func checkoutCancelled() domain.Message {
	return domain.Message{
		Text:    "❌ Оформлення замовлення скасовано.",
		Options: []domain.Option{command("🛒 Кошик", CmdCart, ""), command("🏠 Головне меню", CmdMenu, "")},
	}
}

func orderDetails(o *domain.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 Замовлення #%d від %s\n", o.ID, o.CreatedAt.Format("02.01.2006 15:04"))
	fmt.Fprintf(&b, "Статус: %s\n", o.Status.Description())
	for _, l := range o.Lines {
		fmt.Fprintf(&b, "- %s x%d = %s\n", l.Name, l.Quantity, money(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))))
	}
	fmt.Fprintf(&b, "💰 Сума: %s\n🚚 %s: %s", money(o.TotalPrice), o.DeliveryMethod.DisplayName(), o.Address)
	if o.TrackingNumber != "" {
		fmt.Fprintf(&b, "\n🔎 ТТН: %s", o.TrackingNumber)
	}
	return b.String()
}

func ordersPage(p OrderPage) domain.Message {
	if p.Total == 0 {
		return domain.Message{
			Text:    "❌ Ви ще не маєте жодного замовлення.",
			Options: []domain.Option{command("🏠 Головне меню", CmdMenu, "")},
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📦 Ваші замовлення (сторінка %d з %d):\n\n", p.Page, p.TotalPages)
	for i := range p.Orders {
		b.WriteString(orderDetails(&p.Orders[i]))
		b.WriteString("\n" + separator + "\n")
	}

	var opts []domain.Option
	if p.Page > 1 {
		opts = append(opts, command("⬅️", CmdOrders, strconv.Itoa(p.Page-1)))
	}
	if p.Page < p.TotalPages {
		opts = append(opts, command("➡️", CmdOrders, strconv.Itoa(p.Page+1)))
	}
	opts = append(opts, command("🏠 Головне меню", CmdMenu, ""))
	return domain.Message{Text: strings.TrimRight(b.String(), "\n"), Options: opts}
}

func adminNewOrder(e domain.CheckoutCompleted) domain.Message {
	return domain.Message{Text: fmt.Sprintf(
		"🆕 Нове замовлення #%d\n👤 %s\n📱 %s\n🚚 %s: %s\n💰 %s",
		e.OrderID, e.Recipient, e.Phone, e.Delivery, e.Address, money(e.Total),
	)}
}

func statusChanged(o *domain.Order) domain.Message {
	text := fmt.Sprintf("ℹ️ Статус замовлення #%d змінено: %s", o.ID, o.Status.Description())
	if o.TrackingNumber != "" {
		text += "\n🔎 ТТН: " + o.TrackingNumber
	}
	return domain.Message{Text: text}
}

// explain turns a user-recoverable error into the text shown to the user.
func explain(err error) string {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return "❌ " + verr.Message
	case errors.Is(err, domain.ErrProductNotFound):
		return "❌ Товар не знайдено"
	case errors.Is(err, domain.ErrOutOfStock):
		return "❌ Неможливо додати більше: товару недостатньо на складі"
	case errors.Is(err, domain.ErrQuantityCeilingExceeded):
		return "❌ Досягнуто максимальної кількості одного товару в кошику"
	case errors.Is(err, domain.ErrItemNotInCart):
		return "❌ Товар не знайдено в кошику"
	case errors.Is(err, domain.ErrEmptyCart), errors.Is(err, domain.ErrEmptyCartAtCommit):
		return "🛒 Ваш кошик порожній. Додайте товари, щоб оформити замовлення."
	case errors.Is(err, domain.ErrCheckoutInProgress):
		return "ℹ️ Ви вже оформлюєте замовлення. Завершіть або скасуйте його."
	case errors.Is(err, domain.ErrNoActiveCheckout):
		return "ℹ️ Немає активного оформлення замовлення."
	case errors.Is(err, domain.ErrOnlinePaymentDisabled):
		return "На жаль, онлайн оплата тимчасово недоступна. Оберіть інший спосіб оплати."
	case errors.Is(err, domain.ErrOrderNotFound):
		return "❌ Замовлення не знайдено"
	}
	return "❌ Сталася помилка. Спробуйте пізніше."
}
