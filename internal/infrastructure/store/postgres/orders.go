package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/ec-storefront/internal/domain/order"
)

const orderColumns = `id, account_id, lines, shipping_address, total, status, cancel_reason,
	created_at, updated_at, shipped_at, delivered_at, cancelled_at`

type orderRepo struct {
	q dbtx
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o                                order.Order
		lines, shipTo                    []byte
		status                           string
		shippedAt, deliveredAt, cancelAt sql.NullTime
	)
	err := row.Scan(&o.ID, &o.AccountID, &lines, &shipTo, &o.Total, &status, &o.CancelReason,
		&o.CreatedAt, &o.UpdatedAt, &shippedAt, &deliveredAt, &cancelAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return nil, fmt.Errorf("decode order lines: %w", err)
	}
	if err := json.Unmarshal(shipTo, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode shipping address: %w", err)
	}
	o.Status = order.Status(status)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	o.ShippedAt = nullTime(shippedAt)
	o.DeliveredAt = nullTime(deliveredAt)
	o.CancelledAt = nullTime(cancelAt)
	return &o, nil
}

func (r orderRepo) Create(ctx context.Context, o *order.Order) error {
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return err
	}
	shipTo, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.ID, o.AccountID, lines, shipTo, o.Total, string(o.Status), o.CancelReason,
		o.CreatedAt, o.UpdatedAt, o.ShippedAt, o.DeliveredAt, o.CancelledAt,
	)
	return err
}

func (r orderRepo) GetByID(ctx context.Context, id string) (*order.Order, error) {
	o, err := scanOrder(r.q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	return o, err
}

func (r orderRepo) ListByAccount(ctx context.Context, accountID string) ([]*order.Order, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE account_id = $1
		 ORDER BY created_at DESC, seq DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*order.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r orderRepo) UpdateStatus(ctx context.Context, o *order.Order, from order.Status) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE orders
		 SET status = $3, cancel_reason = $4, updated_at = $5,
		     shipped_at = $6, delivered_at = $7, cancelled_at = $8
		 WHERE id = $1 AND status = $2`,
		o.ID, string(from), string(o.Status), o.CancelReason, o.UpdatedAt,
		o.ShippedAt, o.DeliveredAt, o.CancelledAt,
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
	if _, err := r.GetByID(ctx, o.ID); err != nil {
		return err
	}
	return order.ErrStatusChanged
}
