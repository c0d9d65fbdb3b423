package command

import (
	"context"
	"errors"

	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/domain/account"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Register creates a customer account with a hashed password.
func (h *Handler) Register(ctx context.Context, cmd Register) (acct *account.Account, err error) {
	ctx, logger, done := h.begin(ctx, useCaseRegister)
	defer func() { done(err) }()

	hash, err := auth.HashPassword(cmd.Password)
	if err != nil {
		return nil, err
	}
	acct, err = account.New(cmd.Email, cmd.Name, hash)
	if err != nil {
		return nil, err
	}
	if err := h.store.Accounts().Create(ctx, acct); err != nil {
		return nil, err
	}

	logger.Info("account_registered", zap.String("account_id", acct.ID))
	return acct, nil
}

// Authenticate resolves an account by credentials. Unknown emails and wrong
// passwords fail the same way.
func (h *Handler) Authenticate(ctx context.Context, email, password string) (acct *account.Account, err error) {
	ctx, _, done := h.begin(ctx, useCaseAuthenticate)
	defer func() { done(err) }()

	acct, err = h.store.Accounts().GetByEmail(ctx, email)
	if errors.Is(err, account.ErrAccountNotFound) {
		return nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(password, acct.PasswordHash) {
		return nil, auth.ErrInvalidCredentials
	}
	return acct, nil
}

// AddAddress validates the address, assigns it an identifier and appends it.
func (h *Handler) AddAddress(ctx context.Context, cmd AddAddress) (addr account.Address, err error) {
	ctx, _, done := h.begin(ctx, useCaseAddAddress, attribute.String("account.id", cmd.AccountID))
	defer func() { done(err) }()

	addr, err = account.NewAddress(cmd.Address)
	if err != nil {
		return account.Address{}, err
	}
	if err := h.store.Accounts().AddAddress(ctx, cmd.AccountID, addr); err != nil {
		return account.Address{}, err
	}
	return addr, nil
}

// RemoveAddress is a no-op when the address does not exist.
func (h *Handler) RemoveAddress(ctx context.Context, cmd RemoveAddress) (err error) {
	ctx, _, done := h.begin(ctx, useCaseRemoveAddress, attribute.String("account.id", cmd.AccountID))
	defer func() { done(err) }()

	return h.store.Accounts().RemoveAddress(ctx, cmd.AccountID, cmd.AddressID)
}

// AddToCart accumulates quantity onto the cart entry for an existing product.
func (h *Handler) AddToCart(ctx context.Context, cmd AddToCart) (err error) {
	ctx, _, done := h.begin(ctx, useCaseCartAdd,
		attribute.String("account.id", cmd.AccountID),
		attribute.String("product.id", cmd.ProductID),
	)
	defer func() { done(err) }()

	if cmd.ProductID == "" {
		return account.ErrInvalidProduct
	}
	if err := account.ValidateQuantity(cmd.Quantity); err != nil {
		return err
	}
	if _, err := h.store.Products().GetByID(ctx, cmd.ProductID); err != nil {
		return err
	}
	return h.store.Accounts().AddCartItem(ctx, cmd.AccountID, cmd.ProductID, cmd.Quantity)
}

func (h *Handler) IncreaseCartItem(ctx context.Context, cmd CartItem) (err error) {
	ctx, _, done := h.begin(ctx, useCaseCartIncrease, attribute.String("account.id", cmd.AccountID))
	defer func() { done(err) }()

	if _, err := h.store.Products().GetByID(ctx, cmd.ProductID); err != nil {
		return err
	}
	return h.store.Accounts().IncreaseCartItem(ctx, cmd.AccountID, cmd.ProductID)
}

// DecreaseCartItem removes the entry once its quantity would drop below one.
func (h *Handler) DecreaseCartItem(ctx context.Context, cmd CartItem) (err error) {
	ctx, _, done := h.begin(ctx, useCaseCartDecrease, attribute.String("account.id", cmd.AccountID))
	defer func() { done(err) }()

	return h.store.Accounts().DecreaseCartItem(ctx, cmd.AccountID, cmd.ProductID)
}

func (h *Handler) RemoveCartItem(ctx context.Context, cmd CartItem) (err error) {
	ctx, _, done := h.begin(ctx, useCaseCartRemove, attribute.String("account.id", cmd.AccountID))
	defer func() { done(err) }()

	return h.store.Accounts().RemoveCartItem(ctx, cmd.AccountID, cmd.ProductID)
}

func (h *Handler) ClearCart(ctx context.Context, cmd ClearCart) (err error) {
	ctx, _, done := h.begin(ctx, useCaseCartClear, attribute.String("account.id", cmd.AccountID))
	defer func() { done(err) }()

	return h.store.Accounts().ClearCart(ctx, cmd.AccountID)
}
