package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// Conversation is the single entry point for user events. It serializes a
// user's actions, routes them to the active checkout or to browsing, and turns
// user-recoverable errors into replies.
type Conversation struct {
	locks    port.UserLocker
	users    port.UserRepository
	catalog  *Catalog
	carts    *CartService
	recon    *Reconciler
	checkout *CheckoutService
	orders   *OrderService
	lockTTL  time.Duration
	logger   *zap.Logger
}

func NewConversation(
	locks port.UserLocker,
	users port.UserRepository,
	catalog *Catalog,
	carts *CartService,
	recon *Reconciler,
	checkout *CheckoutService,
	orders *OrderService,
	lockTTL time.Duration,
	logger *zap.Logger,
) *Conversation {
	return &Conversation{
		locks:    locks,
		users:    users,
		catalog:  catalog,
		carts:    carts,
		recon:    recon,
		checkout: checkout,
		orders:   orders,
		lockTTL:  lockTTL,
		logger:   logger,
	}
}

// Handle processes one event. Returned errors are infrastructure failures or
// domain.ErrBusy; everything else is part of the reply.
func (c *Conversation) Handle(ctx context.Context, userID int64, ev domain.Event) (*domain.Reply, error) {
	release, err := c.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := c.users.EnsureUser(ctx, userID); err != nil {
		c.logger.Warn("failed to register user", zap.Int64("user_id", userID), zap.Error(err))
	}

	reply, err := c.dispatch(ctx, userID, ev)
	if err == nil {
		return reply, nil
	}

	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindDomainConstraint:
		if reply == nil {
			reply = domain.NewReply()
		}
		return reply.Add(domain.Message{Text: explain(err)}), nil
	}

	c.logger.Error("event failed",
		zap.Int64("user_id", userID),
		zap.String("event", string(ev.Kind)),
		zap.String("kind", domain.KindOf(err).String()),
		zap.Error(err),
	)
	return nil, err
}

// Cart reconciles the user's cart while holding the user's lock, so pruning
// never interleaves with a commit for the same user.
func (c *Conversation) Cart(ctx context.Context, userID int64) (*domain.ReconciledCart, error) {
	release, err := c.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	return c.recon.Reconcile(ctx, userID)
}

// acquire takes the per-user lock or fails with domain.ErrBusy.
func (c *Conversation) acquire(ctx context.Context, userID int64) (func(), error) {
	token, ok, err := c.locks.AcquireUserLock(ctx, userID, c.lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrBusy
	}

	return func() {
		if err := c.locks.ReleaseUserLock(context.WithoutCancel(ctx), userID, token); err != nil {
			c.logger.Warn("failed to release user lock", zap.Int64("user_id", userID), zap.Error(err))
		}
	}, nil
}

func (c *Conversation) dispatch(ctx context.Context, userID int64, ev domain.Event) (*domain.Reply, error) {
	session, err := c.checkout.Active(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session != nil {
		if ev.Kind == domain.EventCommand {
			return c.checkout.Prompt(ctx, session)
		}
		return c.checkout.Handle(ctx, session, ev)
	}

	switch ev.Kind {
	case domain.EventCommand:
		return c.command(ctx, userID, ev.Value, strings.TrimSpace(ev.Text))
	case domain.EventText:
		return c.search(ctx, userID, ev.Text)
	}
	return nil, domain.ErrNoActiveCheckout
}

func (c *Conversation) command(ctx context.Context, userID int64, name, arg string) (*domain.Reply, error) {
	switch name {
	case CmdStart:
		if arg != "" {
			return c.search(ctx, userID, arg)
		}
		return domain.NewReply(mainMenu(userID)), nil

	case CmdMenu:
		return domain.NewReply(mainMenu(userID)), nil

	case CmdProduct:
		return c.search(ctx, userID, arg)

	case CmdAdd:
		p, qty, err := c.carts.AddProduct(ctx, userID, arg)
		if err != nil {
			return nil, err
		}
		return domain.NewReply(
			domain.Message{Text: "✅ Товар додано до кошика"},
			productCard(p, qty),
		), nil

	case CmdCart:
		return c.cart(ctx, userID)

	case CmdIncrease:
		if _, err := c.carts.Increase(ctx, userID, arg); err != nil {
			return nil, err
		}
		return c.cart(ctx, userID)

	case CmdDecrease:
		if _, err := c.carts.Decrease(ctx, userID, arg); err != nil {
			return nil, err
		}
		return c.cart(ctx, userID)

	case CmdRemove:
		if err := c.carts.Remove(ctx, userID, arg); err != nil {
			return nil, err
		}
		return c.cart(ctx, userID)

	case CmdClear:
		if err := c.carts.Clear(ctx, userID); err != nil {
			return nil, err
		}
		return domain.NewReply(domain.Message{
			Text:    "🧹 Кошик очищено",
			Options: []domain.Option{command("🏠 Головне меню", CmdMenu, "")},
		}), nil

	case CmdCheckout:
		return c.checkout.Start(ctx, userID)

	case CmdOrders:
		page, err := strconv.Atoi(arg)
		if err != nil {
			page = 1
		}
		history, err := c.orders.History(ctx, userID, page)
		if err != nil {
			return nil, err
		}
		return domain.NewReply(ordersPage(history)), nil
	}

	return domain.NewReply(mainMenu(userID)), nil
}

// search answers free text with the products matching it as a barcode or an
// article.
func (c *Conversation) search(ctx context.Context, userID int64, text string) (*domain.Reply, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return domain.NewReply(mainMenu(userID)), nil
	}

	found, err := c.catalog.Find(query)
	if err != nil {
		return nil, err
	}
	cart, err := c.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	reply := domain.NewReply()
	for _, p := range found {
		reply.Add(productCard(p, cart[p.Barcode]))
	}
	return reply, nil
}

func (c *Conversation) cart(ctx context.Context, userID int64) (*domain.Reply, error) {
	rc, err := c.recon.Reconcile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return domain.NewReply(cartMessages(rc)...), nil
}
