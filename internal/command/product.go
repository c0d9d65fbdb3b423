package command

import (
	"context"

	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CreateProduct validates the fields and stores a product owned by the caller.
func (h *Handler) CreateProduct(ctx context.Context, cmd CreateProduct) (p *product.Product, err error) {
	ctx, logger, done := h.begin(ctx, useCaseProductCreate, attribute.String("account.id", cmd.OwnerID))
	defer func() { done(err) }()

	p, err = product.New(cmd.OwnerID, cmd.Fields)
	if err != nil {
		return nil, err
	}
	if err := h.store.Products().Create(ctx, p); err != nil {
		return nil, err
	}

	logger.Info("product_created", zap.String("product_id", p.ID))
	return p, nil
}

// ownedProduct loads a product and hides it from anyone but its owner.
func ownedProduct(ctx context.Context, repos store.Repositories, ownerID, productID string) (*product.Product, error) {
	p, err := repos.Products().GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != ownerID {
		return nil, product.ErrProductNotFound
	}
	return p, nil
}

// UpdateProduct merges the patch into the caller's product and re-validates.
func (h *Handler) UpdateProduct(ctx context.Context, cmd UpdateProduct) (p *product.Product, err error) {
	ctx, _, done := h.begin(ctx, useCaseProductUpdate, attribute.String("product.id", cmd.ProductID))
	defer func() { done(err) }()

	err = h.store.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		current, err := ownedProduct(ctx, tx, cmd.OwnerID, cmd.ProductID)
		if err != nil {
			return err
		}
		if err := current.Apply(cmd.Patch, h.now()); err != nil {
			return err
		}
		if err := tx.Products().Update(ctx, current); err != nil {
			return err
		}
		p = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProduct removes the caller's product. Orders keep their snapshots.
func (h *Handler) DeleteProduct(ctx context.Context, cmd DeleteProduct) (err error) {
	ctx, logger, done := h.begin(ctx, useCaseProductDelete, attribute.String("product.id", cmd.ProductID))
	defer func() { done(err) }()

	err = h.store.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		if _, err := ownedProduct(ctx, tx, cmd.OwnerID, cmd.ProductID); err != nil {
			return err
		}
		return tx.Products().Delete(ctx, cmd.ProductID)
	})
	if err != nil {
		return err
	}

	logger.Info("product_deleted", zap.String("product_id", cmd.ProductID))
	return nil
}

// AdjustStock applies delta to the caller's product; stock never goes negative.
func (h *Handler) AdjustStock(ctx context.Context, cmd AdjustStock) (p *product.Product, err error) {
	ctx, _, done := h.begin(ctx, useCaseProductStock,
		attribute.String("product.id", cmd.ProductID),
		attribute.Int("stock.delta", cmd.Delta),
	)
	defer func() { done(err) }()

	if err := product.ValidateStockDelta(cmd.Delta); err != nil {
		return nil, err
	}
	err = h.store.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		if _, err := ownedProduct(ctx, tx, cmd.OwnerID, cmd.ProductID); err != nil {
			return err
		}
		if err := tx.Products().AdjustStock(ctx, cmd.ProductID, cmd.Delta); err != nil {
			return err
		}
		updated, err := tx.Products().GetByID(ctx, cmd.ProductID)
		if err != nil {
			return err
		}
		p = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
