package postgres

import (
	"context"
	"time"

	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/lib/pq"
)

type outboxRepo struct {
	q dbtx
}

func (r outboxRepo) Append(ctx context.Context, e store.Event) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO outbox_events (id, aggregate_id, aggregate_type, event_type, data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.AggregateID, e.AggregateType, e.EventType, []byte(e.Data), e.Timestamp,
	)
	return err
}

func (r outboxRepo) Pending(ctx context.Context, limit int) ([]store.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, aggregate_id, aggregate_type, event_type, data, created_at
		 FROM outbox_events
		 WHERE published_at IS NULL
		 ORDER BY seq ASC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.Event
	for rows.Next() {
		var (
			e    store.Event
			data []byte
		)
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &data, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Data = data
		e.Timestamp = e.Timestamp.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r outboxRepo) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.q.ExecContext(ctx,
		`UPDATE outbox_events SET published_at = $2 WHERE id = ANY($1)`, pq.Array(ids), at)
	return err
}

type idemRepo struct {
	q dbtx
}

func (r idemRepo) Get(ctx context.Context, accountID, key string) (string, bool, error) {
	var orderID string
	err := r.q.QueryRowContext(ctx,
		`SELECT order_id FROM idempotency_keys WHERE account_id = $1 AND key = $2`,
		accountID, key).Scan(&orderID)
	if err != nil {
		if isNoRows(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return orderID, true, nil
}

func (r idemRepo) Put(ctx context.Context, accountID, key, orderID string) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO idempotency_keys (account_id, key, order_id) VALUES ($1, $2, $3)`,
		accountID, key, orderID)
	if isUniqueViolation(err) {
		return order.ErrDuplicateOrderKey
	}
	return err
}
