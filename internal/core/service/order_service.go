package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// CheckoutNotifier accepts completed checkouts for asynchronous fan-out.
type CheckoutNotifier interface {
	Enqueue(ctx context.Context, event domain.CheckoutCompleted) error
}

type OrderPage struct {
	Orders     []domain.Order `json:"orders"`
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
	Total      int            `json:"total"`
}

type OrderServiceConfig struct {
	PageSize      int
	AdminPageSize int
}

type OrderService struct {
	orders        port.OrderRepository
	users         port.UserRepository
	sessions      port.SessionRepository
	carts         *CartService
	reconciler    *Reconciler
	notifications CheckoutNotifier
	notifier      port.Notifier
	cfg           OrderServiceConfig
	logger        *zap.Logger
	now           func() time.Time
}

func NewOrderService(
	orders port.OrderRepository,
	users port.UserRepository,
	sessions port.SessionRepository,
	carts *CartService,
	reconciler *Reconciler,
	notifications CheckoutNotifier,
	notifier port.Notifier,
	cfg OrderServiceConfig,
	logger *zap.Logger,
) *OrderService {
	if cfg.PageSize < 1 {
		cfg.PageSize = 5
	}
	if cfg.AdminPageSize < 1 {
		cfg.AdminPageSize = 10
	}
	return &OrderService{
		orders:        orders,
		users:         users,
		sessions:      sessions,
		carts:         carts,
		reconciler:    reconciler,
		notifications: notifications,
		notifier:      notifier,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// Commit turns a confirmed session into an order exactly once. The cart is
// cleared only after the order is durable. A repeated commit for the same
// session returns the order created the first time.
//
// When everything was pruned the returned cart explains what was removed and
// the error is domain.ErrEmptyCartAtCommit.
func (s *OrderService) Commit(ctx context.Context, session *domain.Session) (*domain.Order, *domain.ReconciledCart, error) {
	log := s.logger.With(zap.Int64("user_id", session.UserID), zap.String("checkout_id", session.ID))

	order, err := s.orders.GetOrderByCheckoutID(ctx, session.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("check existing order: %w", err)
	}
	if order != nil {
		log.Info("checkout already committed", zap.Int64("order_id", order.ID))
		return order, nil, s.finalize(ctx, log, session, order)
	}

	rc, err := s.reconciler.Reconcile(ctx, session.UserID)
	if err != nil {
		return nil, nil, err
	}
	if rc.IsEmpty() {
		if err := s.sessions.DeleteSession(ctx, session.UserID); err != nil {
			log.Warn("failed to delete session after empty commit", zap.Error(err))
		}
		return nil, rc, domain.ErrEmptyCartAtCommit
	}

	order = s.buildOrder(session, rc)
	err = s.orders.CreateOrder(ctx, order)
	if errors.Is(err, domain.ErrDuplicateCheckout) {
		order, err = s.orders.GetOrderByCheckoutID(ctx, session.ID)
	}
	if err != nil {
		return nil, rc, fmt.Errorf("persist order: %w", err)
	}

	if err := s.finalize(ctx, log, session, order); err != nil {
		return nil, rc, err
	}
	log.Info("order created", zap.Int64("order_id", order.ID), zap.String("total", order.TotalPrice.String()))
	return order, rc, nil
}

func (s *OrderService) buildOrder(session *domain.Session, rc *domain.ReconciledCart) *domain.Order {
	now := s.now().UTC()

	lines := make([]domain.OrderLine, 0, len(rc.Lines))
	for _, l := range rc.Lines {
		lines = append(lines, domain.OrderLine{
			Key:       l.Product.Barcode,
			Name:      l.Product.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.Product.UnitPrice,
		})
	}

	return &domain.Order{
		CheckoutID:     session.ID,
		UserID:         session.UserID,
		Lines:          lines,
		RecipientName:  session.Fields[domain.FieldRecipientName],
		Phone:          session.Fields[domain.FieldPhone],
		DeliveryMethod: session.Delivery(),
		Address:        session.Fields[domain.FieldAddress],
		PaymentMethod:  session.Fields[domain.FieldPaymentMethod],
		Comment:        session.Fields[domain.FieldComment],
		TotalPrice:     rc.Total,
		Status:         domain.OrderStatusNew,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// finalize runs the steps that follow a durable order.
func (s *OrderService) finalize(ctx context.Context, log *zap.Logger, session *domain.Session, order *domain.Order) error {
	if order == nil || order.ID == 0 {
		log.Error("fatal inconsistency: clearing cart without a persisted order")
		return fmt.Errorf("commit checkout %s: %w", session.ID, domain.ErrInternalInconsistency)
	}

	if err := s.carts.Clear(ctx, session.UserID); err != nil {
		return fmt.Errorf("clear cart after order %d: %w", order.ID, err)
	}
	if err := s.sessions.DeleteSession(ctx, session.UserID); err != nil {
		log.Warn("failed to delete committed session", zap.Error(err))
	}

	if err := s.users.UpdateUserContact(ctx, order.UserID, order.RecipientName, order.Phone); err != nil {
		log.Warn("failed to store user contact", zap.Error(err))
	}

	event := domain.CheckoutCompleted{
		OrderID:    order.ID,
		UserID:     order.UserID,
		CheckoutID: order.CheckoutID,
		Total:      order.TotalPrice,
		Recipient:  order.RecipientName,
		Phone:      order.Phone,
		Delivery:   order.DeliveryMethod.DisplayName(),
		Address:    order.Address,
		At:         s.now(),
	}
	if err := s.notifications.Enqueue(ctx, event); err != nil {
		log.Warn("failed to enqueue checkout notification", zap.Int64("order_id", order.ID), zap.Error(err))
	}
	return nil
}

func paginate(orders []domain.Order, page, size int) OrderPage {
	total := len(orders)
	pages := (total + size - 1) / size
	if page < 1 {
		page = 1
	}
	if pages > 0 && page > pages {
		page = pages
	}

	start := (page - 1) * size
	end := min(start+size, total)

	return OrderPage{
		Orders:     orders[start:end],
		Page:       page,
		TotalPages: pages,
		Total:      total,
	}
}

// History returns one page of the user's orders, newest first.
func (s *OrderService) History(ctx context.Context, userID int64, page int) (OrderPage, error) {
	orders, err := s.orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		return OrderPage{}, err
	}
	return paginate(orders, page, s.cfg.PageSize), nil
}

// AdminOrders lists every order, or only those in one status.
func (s *OrderService) AdminOrders(ctx context.Context, status domain.OrderStatus, page int) (OrderPage, error) {
	if status != "" && !status.Valid() {
		return OrderPage{}, &domain.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}

	orders, err := s.orders.ListOrders(ctx, status)
	if err != nil {
		return OrderPage{}, err
	}
	return paginate(orders, page, s.cfg.AdminPageSize), nil
}

func (s *OrderService) Get(ctx context.Context, id int64) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// UpdateStatus is the order-management entry point. The customer is told
// about the new status.
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus, trackingNumber *string) (*domain.Order, error) {
	if !status.Valid() {
		return nil, &domain.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}

	order, err := s.orders.UpdateOrderStatus(ctx, id, status, trackingNumber)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	if err := s.notifier.Notify(ctx, order.UserID, statusChanged(order)); err != nil {
		s.logger.Warn("failed to notify status change", zap.Int64("order_id", id), zap.Error(err))
	}
	s.logger.Info("order status updated", zap.Int64("order_id", id), zap.String("status", string(status)))
	return order, nil
}
