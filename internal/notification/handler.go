// Package notification turns order events consumed from the broker into
// customer emails.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/email"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/logging"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Mailer sends the order emails.
type Mailer interface {
	SendOrderConfirmation(to string, summary email.OrderSummary) error
	SendOrderCancellation(to string, summary email.OrderSummary) error
}

// Handler processes events for sending notifications
type Handler struct {
	mailer Mailer
	logger *zap.Logger
}

// NewHandler creates a new notification handler
func NewHandler(mailer Mailer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{mailer: mailer, logger: logger}
}

// HandleEvent processes one event from Kafka. Event types without a
// notification are ignored.
func (h *Handler) HandleEvent(ctx context.Context, event store.Event) error {
	logger := logging.FromContextOr(ctx, h.logger).With(
		zap.String("event_id", event.ID),
		zap.String("event_type", event.EventType),
	)

	switch event.EventType {
	case order.EventOrderPlaced:
		var e order.OrderPlaced
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		return h.notify(logger, e.AccountEmail, summarize(e.OrderID, e.Lines, e.Total, ""), h.mailer.SendOrderConfirmation)

	case order.EventOrderCancelled:
		var e order.OrderCancelled
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		return h.notify(logger, e.AccountEmail, summarize(e.OrderID, e.Lines, e.Total, e.Reason), h.mailer.SendOrderCancellation)

	default:
		logger.Debug("notification_skipped")
		return nil
	}
}

func (h *Handler) notify(logger *zap.Logger, to string, summary email.OrderSummary, send func(string, email.OrderSummary) error) error {
	logger = logger.With(zap.String("order_id", summary.OrderID))
	if to == "" {
		logger.Warn("notification_missing_recipient")
		return nil
	}
	if err := send(to, summary); err != nil {
		return fmt.Errorf("send email for order %s: %w", summary.OrderID, err)
	}
	logger.Info("notification_sent", zap.String("to", to))
	return nil
}

func summarize(orderID string, lines []order.Line, total decimal.Decimal, reason string) email.OrderSummary {
	items := make([]email.OrderItem, 0, len(lines))
	for _, l := range lines {
		name := l.Name
		if name == "" {
			name = l.ProductID
		}
		items = append(items, email.OrderItem{
			Name:      name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	return email.OrderSummary{
		OrderID: orderID,
		Items:   items,
		Total:   total,
		Reason:  reason,
	}
}
