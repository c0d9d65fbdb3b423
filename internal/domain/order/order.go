package order

import (
	"fmt"
	"time"

	"github.com/example/ec-storefront/internal/apperr"
	"github.com/example/ec-storefront/internal/domain/account"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const AggregateType = "Order"

type Status string

const (
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

var (
	ErrOrderNotFound     = apperr.New(apperr.KindNotFound, "order not found")
	ErrEmptyOrder        = apperr.New(apperr.KindValidation, "order must have at least one item")
	ErrInvalidQuantity   = apperr.New(apperr.KindValidation, "item quantity must be positive")
	ErrInvalidStatus     = apperr.New(apperr.KindInvalidTransition, "invalid order status transition")
	ErrOrderShipped      = apperr.New(apperr.KindInvalidTransition, "order has already been shipped")
	ErrOrderDelivered    = apperr.New(apperr.KindInvalidTransition, "order has already been delivered")
	ErrOrderCancelled    = apperr.New(apperr.KindInvalidTransition, "order is already cancelled")
	ErrOrderNotShipped   = apperr.New(apperr.KindInvalidTransition, "order must be shipped before delivery")
	ErrStatusChanged     = apperr.New(apperr.KindConflict, "order status changed concurrently")
	ErrDuplicateOrderKey = apperr.New(apperr.KindConflict, "idempotency key already used")
)

// validTransitions defines allowed state transitions
var validTransitions = map[Status][]Status{
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {}, // terminal state
	StatusCancelled:  {}, // terminal state
}

// Line is a snapshot of one product taken when the order was placed.
type Line struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
}

// Subtotal is unit price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Order struct {
	ID              string          `json:"id"`
	AccountID       string          `json:"account_id"`
	Lines           []Line          `json:"items"`
	ShippingAddress account.Address `json:"shipping_address"`
	Total           decimal.Decimal `json:"total_amount"`
	Status          Status          `json:"status"`
	CancelReason    string          `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	ShippedAt       *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
}

// ComputeTotal sums unit price times quantity over the lines.
func ComputeTotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// New creates a Processing order. The total is always computed from the
// line snapshots.
func New(accountID string, shipTo account.Address, lines []Line, now time.Time) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		if l.Quantity > account.MaxCartQuantity {
			return nil, account.ErrQuantityLimit
		}
	}

	return &Order{
		ID:              uuid.New().String(),
		AccountID:       accountID,
		Lines:           append([]Line{}, lines...),
		ShippingAddress: shipTo,
		Total:           ComputeTotal(lines),
		Status:          StatusProcessing,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[o.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// transitionError returns an appropriate error for an invalid transition
func (o *Order) transitionError(target Status) error {
	switch {
	case o.Status == StatusCancelled:
		return ErrOrderCancelled
	case o.Status == StatusDelivered:
		return ErrOrderDelivered
	case o.Status == StatusShipped && target != StatusDelivered:
		return ErrOrderShipped
	case o.Status == StatusProcessing && target == StatusDelivered:
		return ErrOrderNotShipped
	default:
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, o.Status, target)
	}
}

// TransitionTo moves the order to target, stamping the matching timestamp.
func (o *Order) TransitionTo(target Status, now time.Time) error {
	if !o.CanTransitionTo(target) {
		return o.transitionError(target)
	}
	o.Status = target
	o.UpdatedAt = now
	switch target {
	case StatusShipped:
		o.ShippedAt = &now
	case StatusDelivered:
		o.DeliveredAt = &now
	case StatusCancelled:
		o.CancelledAt = &now
	}
	return nil
}

// Cancel moves a Processing order to Cancelled.
func (o *Order) Cancel(reason string, now time.Time) error {
	if err := o.TransitionTo(StatusCancelled, now); err != nil {
		return err
	}
	o.CancelReason = reason
	return nil
}

// IsTerminal reports whether no further transitions are possible.
func (o *Order) IsTerminal() bool {
	return len(validTransitions[o.Status]) == 0
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Lines = append([]Line{}, o.Lines...)
	return &c
}
