package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/lib/pq"
)

const productColumns = `id, owner_id, name, description, price, category, stock, images, created_at, updated_at`

type productRepo struct {
	q dbtx
}

func encodeImages(images []string) ([]byte, error) {
	if images == nil {
		images = []string{}
	}
	return json.Marshal(images)
}

func decodeImages(raw []byte) ([]string, error) {
	images := []string{}
	if len(raw) == 0 {
		return images, nil
	}
	if err := json.Unmarshal(raw, &images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	return images, nil
}

func scanProduct(row rowScanner) (*product.Product, error) {
	var (
		p      product.Product
		images []byte
	)
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Stock, &images, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if p.Images, err = decodeImages(images); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (r productRepo) Create(ctx context.Context, p *product.Product) error {
	images, err := encodeImages(p.Images)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.OwnerID, p.Name, p.Description, p.Price, p.Category, p.Stock, images, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r productRepo) GetByID(ctx context.Context, id string) (*product.Product, error) {
	p, err := scanProduct(r.q.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, product.ErrProductNotFound
	}
	return p, err
}

func (r productRepo) GetMany(ctx context.Context, ids []string) (map[string]*product.Product, error) {
	out := make(map[string]*product.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	list, err := r.query(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		out[p.ID] = p
	}
	return out, nil
}

func (r productRepo) List(ctx context.Context) ([]*product.Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM products ORDER BY seq ASC`)
}

func (r productRepo) ListByOwner(ctx context.Context, ownerID string) ([]*product.Product, error) {
	return r.query(ctx,
		`SELECT `+productColumns+` FROM products WHERE owner_id = $1 ORDER BY seq ASC`, ownerID)
}

func (r productRepo) query(ctx context.Context, query string, args ...any) ([]*product.Product, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*product.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r productRepo) Update(ctx context.Context, p *product.Product) error {
	images, err := encodeImages(p.Images)
	if err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx,
		`UPDATE products
		 SET name = $2, description = $3, price = $4, category = $5, stock = $6, images = $7, updated_at = $8
		 WHERE id = $1`,
		p.ID, p.Name, p.Description, p.Price, p.Category, p.Stock, images, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireRow(res, product.ErrProductNotFound)
}

func (r productRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, product.ErrProductNotFound)
}

// AdjustStock relies on the row lock taken by UPDATE: concurrent callers
// re-evaluate the stock predicate after the first one commits.
func (r productRepo) AdjustStock(ctx context.Context, id string, delta int) error {
	if err := product.ValidateStockDelta(delta); err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = $3
		 WHERE id = $1 AND stock + $2 >= 0 AND stock + $2 <= $4`,
		id, delta, time.Now().UTC(), product.MaxStock,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var (
		name  string
		stock int
	)
	err = r.q.QueryRowContext(ctx, `SELECT name, stock FROM products WHERE id = $1`, id).Scan(&name, &stock)
	if errors.Is(err, sql.ErrNoRows) {
		return product.ErrProductNotFound
	}
	if err != nil {
		return err
	}
	if stock+delta > product.MaxStock {
		return product.ErrStockLimit
	}
	return &product.InsufficientStockError{
		ProductID:   id,
		ProductName: name,
		Requested:   -delta,
		Available:   stock,
	}
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
