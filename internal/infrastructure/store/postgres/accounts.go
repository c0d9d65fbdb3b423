package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/example/ec-storefront/internal/domain/account"
)

type accountRepo struct {
	q dbtx
}

func (r accountRepo) Create(ctx context.Context, a *account.Account) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO accounts (id, email, name, password_hash, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Email, a.Name, a.PasswordHash, a.Role, a.CreatedAt, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return account.ErrEmailTaken
	}
	return err
}

func (r accountRepo) GetByID(ctx context.Context, id string) (*account.Account, error) {
	return r.load(ctx, r.q.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, role, created_at, updated_at
		 FROM accounts WHERE id = $1`, id))
}

func (r accountRepo) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	return r.load(ctx, r.q.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, role, created_at, updated_at
		 FROM accounts WHERE email = $1`, account.NormalizeEmail(email)))
}

func (r accountRepo) load(ctx context.Context, row rowScanner) (*account.Account, error) {
	var a account.Account
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	if a.Addresses, err = r.addresses(ctx, a.ID); err != nil {
		return nil, err
	}
	if a.Cart, err = r.cart(ctx, a.ID); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r accountRepo) addresses(ctx context.Context, accountID string) ([]account.Address, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, country, city, line1, line2, postal_code, type
		 FROM addresses WHERE account_id = $1 ORDER BY position ASC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []account.Address{}
	for rows.Next() {
		var addr account.Address
		var typ string
		if err := rows.Scan(&addr.ID, &addr.Country, &addr.City, &addr.Line1, &addr.Line2, &addr.PostalCode, &typ); err != nil {
			return nil, err
		}
		addr.Type = account.AddressType(typ)
		out = append(out, addr)
	}
	return out, rows.Err()
}

func (r accountRepo) cart(ctx context.Context, accountID string) ([]account.CartItem, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT product_id, quantity, added_at
		 FROM cart_items WHERE account_id = $1 ORDER BY added_at ASC, product_id ASC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []account.CartItem{}
	for rows.Next() {
		var item account.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.AddedAt); err != nil {
			return nil, err
		}
		item.AddedAt = item.AddedAt.UTC()
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r accountRepo) exists(ctx context.Context, id string) error {
	var one int
	err := r.q.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return account.ErrAccountNotFound
	}
	return err
}

func (r accountRepo) AddAddress(ctx context.Context, accountID string, addr account.Address) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO addresses (id, account_id, country, city, line1, line2, postal_code, type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		addr.ID, accountID, addr.Country, addr.City, addr.Line1, addr.Line2, addr.PostalCode, string(addr.Type),
	)
	if isForeignKeyViolation(err) {
		return account.ErrAccountNotFound
	}
	return err
}

func (r accountRepo) RemoveAddress(ctx context.Context, accountID, addressID string) error {
	if err := r.exists(ctx, accountID); err != nil {
		return err
	}
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM addresses WHERE account_id = $1 AND id = $2`, accountID, addressID)
	return err
}

// AddCartItem inserts the entry or accumulates onto it. The conflict update
// is skipped when the sum would pass MaxCartQuantity.
func (r accountRepo) AddCartItem(ctx context.Context, accountID, productID string, quantity int) error {
	if productID == "" {
		return account.ErrInvalidProduct
	}
	if err := account.ValidateQuantity(quantity); err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO cart_items (account_id, product_id, quantity, added_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (account_id, product_id)
		 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		 WHERE cart_items.quantity + EXCLUDED.quantity <= $5`,
		accountID, productID, quantity, time.Now().UTC(), account.MaxCartQuantity,
	)
	if isForeignKeyViolation(err) {
		return account.ErrAccountNotFound
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return account.ErrQuantityLimit
	}
	return nil
}

func (r accountRepo) IncreaseCartItem(ctx context.Context, accountID, productID string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE cart_items SET quantity = quantity + 1
		 WHERE account_id = $1 AND product_id = $2 AND quantity < $3`,
		accountID, productID, account.MaxCartQuantity)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}

	var quantity int
	err = r.q.QueryRowContext(ctx,
		`SELECT quantity FROM cart_items WHERE account_id = $1 AND product_id = $2`,
		accountID, productID).Scan(&quantity)
	if errors.Is(err, sql.ErrNoRows) {
		if err := r.exists(ctx, accountID); err != nil {
			return err
		}
		return account.ErrCartItemNotFound
	}
	if err != nil {
		return err
	}
	return account.ErrQuantityLimit
}

func (r accountRepo) DecreaseCartItem(ctx context.Context, accountID, productID string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE cart_items SET quantity = quantity - 1
		 WHERE account_id = $1 AND product_id = $2 AND quantity > 1`, accountID, productID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}

	res, err = r.q.ExecContext(ctx,
		`DELETE FROM cart_items WHERE account_id = $1 AND product_id = $2`, accountID, productID)
	if err != nil {
		return err
	}
	return r.requireAffected(ctx, res, accountID)
}

// requireAffected turns a zero-row cart update into the matching not-found error.
func (r accountRepo) requireAffected(ctx context.Context, res sql.Result, accountID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if err := r.exists(ctx, accountID); err != nil {
		return err
	}
	return account.ErrCartItemNotFound
}

func (r accountRepo) RemoveCartItem(ctx context.Context, accountID, productID string) error {
	if err := r.exists(ctx, accountID); err != nil {
		return err
	}
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM cart_items WHERE account_id = $1 AND product_id = $2`, accountID, productID)
	return err
}

func (r accountRepo) ClearCart(ctx context.Context, accountID string) error {
	if err := r.exists(ctx, accountID); err != nil {
		return err
	}
	_, err := r.q.ExecContext(ctx, `DELETE FROM cart_items WHERE account_id = $1`, accountID)
	return err
}
