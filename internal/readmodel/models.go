package readmodel

import (
	"time"

	"github.com/example/ec-storefront/internal/domain/account"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/shopspring/decimal"
)

// AccountReadModel is the profile view of an account. It never carries the
// password credential.
type AccountReadModel struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Name      string            `json:"name"`
	Role      string            `json:"role"`
	Addresses []account.Address `json:"addresses"`
	CreatedAt time.Time         `json:"created_at"`
}

// CartItemReadModel represents an item in the cart populated with current
// product data. Available is false once the product has been deleted.
type CartItemReadModel struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Image     string          `json:"image,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Available bool            `json:"available"`
}

// CartReadModel is the read model for shopping cart
type CartReadModel struct {
	AccountID string              `json:"account_id"`
	Items     []CartItemReadModel `json:"items"`
	Total     decimal.Decimal     `json:"total"`
}

// ProductSummary is the current catalog data shown next to an order line.
type ProductSummary struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Images      []string        `json:"images"`
}

// OrderItemReadModel is an order line snapshot plus the product as it is
// now, when it still exists.
type OrderItemReadModel struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Product   *ProductSummary `json:"product,omitempty"`
}

// OrderReadModel is the read model for orders
type OrderReadModel struct {
	ID              string               `json:"id"`
	AccountID       string               `json:"account_id"`
	Items           []OrderItemReadModel `json:"items"`
	ShippingAddress account.Address      `json:"shipping_address"`
	Total           decimal.Decimal      `json:"total_amount"`
	Status          order.Status         `json:"status"`
	CancelReason    string               `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	ShippedAt       *time.Time           `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time           `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time           `json:"cancelled_at,omitempty"`
}

// NewAccountReadModel strips the credential and cart from an account.
func NewAccountReadModel(a *account.Account) *AccountReadModel {
	addresses := a.Addresses
	if addresses == nil {
		addresses = []account.Address{}
	}
	return &AccountReadModel{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		Role:      a.Role,
		Addresses: addresses,
		CreatedAt: a.CreatedAt,
	}
}

// NewOrderReadModel copies the order and its line snapshots.
func NewOrderReadModel(o *order.Order) *OrderReadModel {
	items := make([]OrderItemReadModel, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, OrderItemReadModel{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			Price:     l.UnitPrice,
			Image:     l.Image,
			Subtotal:  l.Subtotal(),
		})
	}
	return &OrderReadModel{
		ID:              o.ID,
		AccountID:       o.AccountID,
		Items:           items,
		ShippingAddress: o.ShippingAddress,
		Total:           o.Total,
		Status:          o.Status,
		CancelReason:    o.CancelReason,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		ShippedAt:       o.ShippedAt,
		DeliveredAt:     o.DeliveredAt,
		CancelledAt:     o.CancelledAt,
	}
}
