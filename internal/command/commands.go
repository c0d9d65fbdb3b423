package command

import (
	"github.com/example/ec-storefront/internal/domain/account"
	"github.com/example/ec-storefront/internal/domain/product"
)

// Account Commands
type Register struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type AddAddress struct {
	AccountID string          `json:"-"`
	Address   account.Address `json:"address"`
}

type RemoveAddress struct {
	AccountID string `json:"-"`
	AddressID string `json:"address_id"`
}

// Product Commands
type CreateProduct struct {
	OwnerID string `json:"-"`
	product.Fields
}

type UpdateProduct struct {
	OwnerID   string `json:"-"`
	ProductID string `json:"-"`
	product.Patch
}

type DeleteProduct struct {
	OwnerID   string `json:"-"`
	ProductID string `json:"-"`
}

type AdjustStock struct {
	OwnerID   string `json:"-"`
	ProductID string `json:"-"`
	Delta     int    `json:"delta"`
}

// Cart Commands
type AddToCart struct {
	AccountID string `json:"-"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CartItem addresses one cart entry for increase, decrease and remove.
type CartItem struct {
	AccountID string `json:"-"`
	ProductID string `json:"-"`
}

type ClearCart struct {
	AccountID string `json:"-"`
}

// Order Commands
type LineRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// PlaceOrder creates an order from Items, or from the account's cart when
// Items is empty. Totals are always computed from current product prices.
type PlaceOrder struct {
	AccountID         string        `json:"-"`
	ShippingAddressID string        `json:"shippingAddressId"`
	Items             []LineRequest `json:"items"`
	IdempotencyKey    string        `json:"-"`
}

type CancelOrder struct {
	AccountID string `json:"-"`
	OrderID   string `json:"-"`
	Reason    string `json:"reason"`
}

// AdvanceOrder moves an order along the fulfilment path (ship, deliver).
type AdvanceOrder struct {
	OrderID string `json:"-"`
}
