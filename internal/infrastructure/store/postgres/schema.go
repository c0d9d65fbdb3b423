package postgres

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS addresses (
		id          TEXT PRIMARY KEY,
		account_id  TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		position    BIGSERIAL,
		country     TEXT NOT NULL,
		city        TEXT NOT NULL,
		line1       TEXT NOT NULL,
		line2       TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL,
		type        TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_addresses_account ON addresses(account_id, position)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL,
		quantity   INTEGER NOT NULL CHECK (quantity > 0),
		added_at   TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (account_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id          TEXT PRIMARY KEY,
		seq         BIGSERIAL,
		owner_id    TEXT NOT NULL,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price       NUMERIC(14, 2) NOT NULL CHECK (price >= 0),
		category    TEXT NOT NULL DEFAULT '',
		stock       INTEGER NOT NULL CHECK (stock >= 0),
		images      JSONB NOT NULL DEFAULT '[]',
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_owner ON products(owner_id)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id               TEXT PRIMARY KEY,
		seq              BIGSERIAL,
		account_id       TEXT NOT NULL,
		lines            JSONB NOT NULL,
		shipping_address JSONB NOT NULL,
		total            NUMERIC(14, 2) NOT NULL,
		status           TEXT NOT NULL,
		cancel_reason    TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL,
		shipped_at       TIMESTAMPTZ,
		delivered_at     TIMESTAMPTZ,
		cancelled_at     TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_account ON orders(account_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id             TEXT PRIMARY KEY,
		seq            BIGSERIAL,
		aggregate_id   TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		event_type     TEXT NOT NULL,
		data           JSONB NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		published_at   TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox_events(seq) WHERE published_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS idempotency_keys (
		account_id TEXT NOT NULL,
		key        TEXT NOT NULL,
		order_id   TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (account_id, key)
	)`,
}

// Migrate creates any missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}
