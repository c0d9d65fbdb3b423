package store

import (
	"context"
	"time"

	"github.com/example/ec-storefront/internal/domain/account"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/product"
)

// AccountRepository persists accounts together with their embedded
// addresses and cart. Every mutation is applied atomically per account.
type AccountRepository interface {
	Create(ctx context.Context, a *account.Account) error
	GetByID(ctx context.Context, id string) (*account.Account, error)
	GetByEmail(ctx context.Context, email string) (*account.Account, error)

	AddAddress(ctx context.Context, accountID string, addr account.Address) error
	// RemoveAddress is a no-op when the address does not exist.
	RemoveAddress(ctx context.Context, accountID, addressID string) error

	// AddCartItem accumulates onto an existing entry or inserts a new one.
	AddCartItem(ctx context.Context, accountID, productID string, quantity int) error
	IncreaseCartItem(ctx context.Context, accountID, productID string) error
	// DecreaseCartItem removes the entry when its quantity is 1.
	DecreaseCartItem(ctx context.Context, accountID, productID string) error
	RemoveCartItem(ctx context.Context, accountID, productID string) error
	ClearCart(ctx context.Context, accountID string) error
}

type ProductRepository interface {
	Create(ctx context.Context, p *product.Product) error
	GetByID(ctx context.Context, id string) (*product.Product, error)
	// GetMany returns the products that exist among ids, keyed by id.
	GetMany(ctx context.Context, ids []string) (map[string]*product.Product, error)
	List(ctx context.Context) ([]*product.Product, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*product.Product, error)
	Update(ctx context.Context, p *product.Product) error
	Delete(ctx context.Context, id string) error
	// AdjustStock applies delta in a single conditional update. It fails with
	// *product.InsufficientStockError when the result would be negative.
	AdjustStock(ctx context.Context, id string, delta int) error
}

type OrderRepository interface {
	Create(ctx context.Context, o *order.Order) error
	GetByID(ctx context.Context, id string) (*order.Order, error)
	// ListByAccount returns the account's orders, newest first.
	ListByAccount(ctx context.Context, accountID string) ([]*order.Order, error)
	// UpdateStatus persists o only if the stored status still equals from.
	// It fails with order.ErrStatusChanged otherwise.
	UpdateStatus(ctx context.Context, o *order.Order, from order.Status) error
}

// OutboxRepository stores events written in the same transaction as the
// state change they describe, until the relay publishes them.
type OutboxRepository interface {
	Append(ctx context.Context, e Event) error
	Pending(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

// IdempotencyRepository maps a client supplied key to the order it created.
type IdempotencyRepository interface {
	Get(ctx context.Context, accountID, key string) (orderID string, found bool, err error)
	// Put fails with order.ErrDuplicateOrderKey when the key already exists.
	Put(ctx context.Context, accountID, key, orderID string) error
}

// Repositories is the set of repositories bound to one connection or
// transaction.
type Repositories interface {
	Accounts() AccountRepository
	Products() ProductRepository
	Orders() OrderRepository
	Outbox() OutboxRepository
	IdempotencyKeys() IdempotencyRepository
}

// Store is a storage backend. WithinTx runs fn so that every write made
// through tx commits or rolls back together; fn must use the ctx it is given.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
	Close(ctx context.Context) error
}
