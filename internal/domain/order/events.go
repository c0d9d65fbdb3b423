package order

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderCancelled = "OrderCancelled"
	EventOrderShipped   = "OrderShipped"
	EventOrderDelivered = "OrderDelivered"
)

type OrderPlaced struct {
	OrderID      string          `json:"order_id"`
	AccountID    string          `json:"account_id"`
	AccountEmail string          `json:"account_email"`
	Lines        []Line          `json:"items"`
	Total        decimal.Decimal `json:"total"`
	PlacedAt     time.Time       `json:"placed_at"`
}

type OrderCancelled struct {
	OrderID      string          `json:"order_id"`
	AccountID    string          `json:"account_id"`
	AccountEmail string          `json:"account_email"`
	Reason       string          `json:"reason"`
	Lines        []Line          `json:"items"`
	Total        decimal.Decimal `json:"total"`
	CancelledAt  time.Time       `json:"cancelled_at"`
}

type OrderShipped struct {
	OrderID   string    `json:"order_id"`
	AccountID string    `json:"account_id"`
	ShippedAt time.Time `json:"shipped_at"`
}

type OrderDelivered struct {
	OrderID     string    `json:"order_id"`
	AccountID   string    `json:"account_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}
