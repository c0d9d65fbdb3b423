package command

import (
	"context"
	"errors"

	"github.com/example/ec-storefront/internal/domain/account"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PlaceOrder validates the request against the account and the catalog and,
// in one transaction, persists the order, decrements stock for every line,
// clears the cart and records an OrderPlaced event. It returns the order ID.
func (h *Handler) PlaceOrder(ctx context.Context, cmd PlaceOrder) (orderID string, err error) {
	ctx, logger, done := h.begin(ctx, useCaseOrderCreate,
		attribute.String("account.id", cmd.AccountID),
		attribute.Int("order.requested_lines", len(cmd.Items)),
	)
	defer func() { done(err) }()

	var (
		placed   *order.Order
		replayed bool
	)
	err = h.store.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		if cmd.IdempotencyKey != "" {
			existing, found, err := tx.IdempotencyKeys().Get(ctx, cmd.AccountID, cmd.IdempotencyKey)
			if err != nil {
				return err
			}
			if found {
				orderID, replayed = existing, true
				return nil
			}
		}

		acct, err := tx.Accounts().GetByID(ctx, cmd.AccountID)
		if err != nil {
			return err
		}

		shipTo, ok := acct.FindAddress(cmd.ShippingAddressID)
		if !ok {
			return account.ErrAddressNotFound
		}
		if err := shipTo.Validate(); err != nil {
			return err
		}

		requests := cmd.Items
		if len(requests) == 0 {
			requests = cartRequests(acct.Cart)
		}
		lines, err := h.snapshotLines(ctx, tx, requests)
		if err != nil {
			return err
		}

		o, err := order.New(acct.ID, shipTo, lines, h.now())
		if err != nil {
			return err
		}
		if err := tx.Orders().Create(ctx, o); err != nil {
			return err
		}

		for _, l := range o.Lines {
			if err := tx.Products().AdjustStock(ctx, l.ProductID, -l.Quantity); err != nil {
				return err
			}
		}

		if err := tx.Accounts().ClearCart(ctx, acct.ID); err != nil {
			return err
		}

		event, err := store.NewEvent(o.ID, order.AggregateType, order.EventOrderPlaced, order.OrderPlaced{
			OrderID:      o.ID,
			AccountID:    acct.ID,
			AccountEmail: acct.Email,
			Lines:        o.Lines,
			Total:        o.Total,
			PlacedAt:     o.CreatedAt,
		})
		if err != nil {
			return err
		}
		if err := tx.Outbox().Append(ctx, event); err != nil {
			return err
		}

		if cmd.IdempotencyKey != "" {
			if err := tx.IdempotencyKeys().Put(ctx, acct.ID, cmd.IdempotencyKey, o.ID); err != nil {
				return err
			}
		}

		placed = o
		orderID = o.ID
		return nil
	})

	// A concurrent request with the same key may have committed first. Its
	// insert, or the stock it consumed, is what failed this transaction, so
	// hand back its order instead of the error.
	if err != nil && cmd.IdempotencyKey != "" {
		existing, found, getErr := h.store.IdempotencyKeys().Get(ctx, cmd.AccountID, cmd.IdempotencyKey)
		if getErr == nil && found {
			logger.Info("order_create_replayed", zap.String("order_id", existing))
			return existing, nil
		}
	}
	if err != nil {
		return "", err
	}

	if replayed {
		logger.Info("order_create_replayed", zap.String("order_id", orderID))
		return orderID, nil
	}

	h.metrics.OrdersPlaced.Inc()
	logger.Info("order_placed",
		zap.String("order_id", placed.ID),
		zap.String("account_id", placed.AccountID),
		zap.Int("lines", len(placed.Lines)),
		zap.String("total", placed.Total.StringFixed(2)),
	)
	return orderID, nil
}

func cartRequests(cart []account.CartItem) []LineRequest {
	out := make([]LineRequest, 0, len(cart))
	for _, item := range cart {
		out = append(out, LineRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}

// snapshotLines resolves every requested product and captures its current
// name, price and primary image. Line order follows the request.
func (h *Handler) snapshotLines(ctx context.Context, tx store.Repositories, requests []LineRequest) ([]order.Line, error) {
	if len(requests) == 0 {
		return nil, order.ErrEmptyOrder
	}

	lines := make([]order.Line, 0, len(requests))
	for _, req := range requests {
		if req.Quantity < 1 {
			return nil, order.ErrInvalidQuantity
		}
		if req.Quantity > account.MaxCartQuantity {
			return nil, account.ErrQuantityLimit
		}
		p, err := tx.Products().GetByID(ctx, req.ProductID)
		if err != nil {
			return nil, err
		}
		if p.Stock < req.Quantity {
			return nil, &product.InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   req.Quantity,
				Available:   p.Stock,
			}
		}
		lines = append(lines, order.Line{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  req.Quantity,
			UnitPrice: p.Price,
			Image:     p.PrimaryImage(),
		})
	}
	return lines, nil
}

// CancelOrder cancels a Processing order owned by the caller and returns
// every line's quantity to stock in the same transaction.
func (h *Handler) CancelOrder(ctx context.Context, cmd CancelOrder) (cancelled *order.Order, err error) {
	ctx, logger, done := h.begin(ctx, useCaseOrderCancel,
		attribute.String("account.id", cmd.AccountID),
		attribute.String("order.id", cmd.OrderID),
	)
	defer func() { done(err) }()

	err = h.store.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		o, err := tx.Orders().GetByID(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if o.AccountID != cmd.AccountID {
			return order.ErrOrderNotFound
		}

		from := o.Status
		if err := o.Cancel(cmd.Reason, h.now()); err != nil {
			return err
		}
		if err := tx.Orders().UpdateStatus(ctx, o, from); err != nil {
			return err
		}

		for _, l := range o.Lines {
			err := tx.Products().AdjustStock(ctx, l.ProductID, l.Quantity)
			if errors.Is(err, product.ErrProductNotFound) {
				logger.Warn("restock_skipped_missing_product",
					zap.String("order_id", o.ID),
					zap.String("product_id", l.ProductID),
					zap.Int("quantity", l.Quantity),
				)
				continue
			}
			if err != nil {
				return err
			}
		}

		acct, err := tx.Accounts().GetByID(ctx, o.AccountID)
		if err != nil {
			return err
		}
		event, err := store.NewEvent(o.ID, order.AggregateType, order.EventOrderCancelled, order.OrderCancelled{
			OrderID:      o.ID,
			AccountID:    o.AccountID,
			AccountEmail: acct.Email,
			Reason:       o.CancelReason,
			Lines:        o.Lines,
			Total:        o.Total,
			CancelledAt:  *o.CancelledAt,
		})
		if err != nil {
			return err
		}
		if err := tx.Outbox().Append(ctx, event); err != nil {
			return err
		}

		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.metrics.OrdersCancelled.Inc()
	logger.Info("order_cancelled",
		zap.String("order_id", cancelled.ID),
		zap.String("reason", cancelled.CancelReason),
	)
	return cancelled, nil
}

// ShipOrder moves a Processing order to Shipped.
func (h *Handler) ShipOrder(ctx context.Context, cmd AdvanceOrder) (*order.Order, error) {
	return h.advance(ctx, useCaseOrderShip, cmd.OrderID, order.StatusShipped)
}

// DeliverOrder moves a Shipped order to Delivered.
func (h *Handler) DeliverOrder(ctx context.Context, cmd AdvanceOrder) (*order.Order, error) {
	return h.advance(ctx, useCaseOrderDeliver, cmd.OrderID, order.StatusDelivered)
}

func (h *Handler) advance(ctx context.Context, useCase, orderID string, target order.Status) (advanced *order.Order, err error) {
	ctx, logger, done := h.begin(ctx, useCase, attribute.String("order.id", orderID))
	defer func() { done(err) }()

	err = h.store.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		o, err := tx.Orders().GetByID(ctx, orderID)
		if err != nil {
			return err
		}

		from := o.Status
		now := h.now()
		if err := o.TransitionTo(target, now); err != nil {
			return err
		}
		if err := tx.Orders().UpdateStatus(ctx, o, from); err != nil {
			return err
		}

		var (
			eventType string
			payload   any
		)
		switch target {
		case order.StatusShipped:
			eventType = order.EventOrderShipped
			payload = order.OrderShipped{OrderID: o.ID, AccountID: o.AccountID, ShippedAt: now}
		case order.StatusDelivered:
			eventType = order.EventOrderDelivered
			payload = order.OrderDelivered{OrderID: o.ID, AccountID: o.AccountID, DeliveredAt: now}
		}
		event, err := store.NewEvent(o.ID, order.AggregateType, eventType, payload)
		if err != nil {
			return err
		}
		if err := tx.Outbox().Append(ctx, event); err != nil {
			return err
		}

		advanced = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("order_status_changed",
		zap.String("order_id", advanced.ID),
		zap.String("status", string(advanced.Status)),
	)
	return advanced, nil
}
