// Package query serves read-only views: catalog, cart, addresses, profile
// and order history populated with current product data.
package query

import (
	"context"

	"github.com/example/ec-storefront/internal/domain/account"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/logging"
	"github.com/example/ec-storefront/internal/readmodel"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Handler struct {
	repos  store.Repositories
	logger *zap.Logger
}

func NewHandler(repos store.Repositories, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repos: repos, logger: logger}
}

// Products
func (h *Handler) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	return h.repos.Products().GetByID(ctx, id)
}

func (h *Handler) ListProducts(ctx context.Context) ([]*product.Product, error) {
	products, err := h.repos.Products().List(ctx)
	if err != nil {
		return nil, err
	}
	return nonNil(products), nil
}

func (h *Handler) ListProductsByOwner(ctx context.Context, ownerID string) ([]*product.Product, error) {
	products, err := h.repos.Products().ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return nonNil(products), nil
}

// Account
func (h *Handler) GetAccount(ctx context.Context, accountID string) (*readmodel.AccountReadModel, error) {
	a, err := h.repos.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return readmodel.NewAccountReadModel(a), nil
}

func (h *Handler) ListAddresses(ctx context.Context, accountID string) ([]account.Address, error) {
	a, err := h.repos.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a.Addresses == nil {
		return []account.Address{}, nil
	}
	return a.Addresses, nil
}

// Cart

// GetCart populates every cart entry with the product's current name, price
// and primary image. Entries whose product is gone are kept with
// Available=false and do not count towards the total.
func (h *Handler) GetCart(ctx context.Context, accountID string) (*readmodel.CartReadModel, error) {
	a, err := h.repos.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(a.Cart))
	for _, item := range a.Cart {
		ids = append(ids, item.ProductID)
	}
	products, err := h.repos.Products().GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	cart := &readmodel.CartReadModel{
		AccountID: a.ID,
		Items:     make([]readmodel.CartItemReadModel, 0, len(a.Cart)),
		Total:     decimal.Zero,
	}
	for _, item := range a.Cart {
		line := readmodel.CartItemReadModel{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     decimal.Zero,
			Subtotal:  decimal.Zero,
		}
		if p, ok := products[item.ProductID]; ok {
			line.Name = p.Name
			line.Image = p.PrimaryImage()
			line.Price = p.Price
			line.Stock = p.Stock
			line.Subtotal = p.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			line.Available = true
			cart.Total = cart.Total.Add(line.Subtotal)
		}
		cart.Items = append(cart.Items, line)
	}
	return cart, nil
}

// Orders

// ListOrders returns the account's orders newest first. The account must
// exist; products deleted since the order was placed are simply left
// unresolved.
func (h *Handler) ListOrders(ctx context.Context, accountID string) ([]*readmodel.OrderReadModel, error) {
	if _, err := h.repos.Accounts().GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	orders, err := h.repos.Orders().ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	views := make([]*readmodel.OrderReadModel, 0, len(orders))
	for _, o := range orders {
		views = append(views, readmodel.NewOrderReadModel(o))
	}
	h.resolveProducts(ctx, views, false)
	return views, nil
}

// GetOrder returns one order of the account. Orders of other accounts are
// reported as not found.
func (h *Handler) GetOrder(ctx context.Context, accountID, orderID string) (*readmodel.OrderReadModel, error) {
	o, err := h.repos.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.AccountID != accountID {
		return nil, order.ErrOrderNotFound
	}

	view := readmodel.NewOrderReadModel(o)
	h.resolveProducts(ctx, []*readmodel.OrderReadModel{view}, true)
	return view, nil
}

// resolveProducts attaches current product data to every line. A lookup
// failure degrades to snapshot-only lines.
func (h *Handler) resolveProducts(ctx context.Context, views []*readmodel.OrderReadModel, withDescription bool) {
	seen := make(map[string]struct{})
	var ids []string
	for _, v := range views {
		for _, item := range v.Items {
			if _, ok := seen[item.ProductID]; ok {
				continue
			}
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}
	if len(ids) == 0 {
		return
	}

	products, err := h.repos.Products().GetMany(ctx, ids)
	if err != nil {
		logging.FromContextOr(ctx, h.logger).Warn("order_products_unresolved",
			zap.Int("products", len(ids)),
			zap.Error(err),
		)
		return
	}

	for _, v := range views {
		for i := range v.Items {
			p, ok := products[v.Items[i].ProductID]
			if !ok {
				continue
			}
			summary := &readmodel.ProductSummary{
				Name:   p.Name,
				Price:  p.Price,
				Images: append([]string{}, p.Images...),
			}
			if withDescription {
				summary.Description = p.Description
			}
			v.Items[i].Product = summary
		}
	}
}

func nonNil(products []*product.Product) []*product.Product {
	if products == nil {
		return []*product.Product{}
	}
	return products
}
