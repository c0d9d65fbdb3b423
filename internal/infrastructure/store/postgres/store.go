// Package postgres is the PostgreSQL storage backend.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/lib/pq"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Store implements store.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Connect opens a pooled connection and verifies it.
func Connect(ctx context.Context, connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

type repos struct {
	q dbtx
}

func (r repos) Accounts() store.AccountRepository            { return accountRepo{r.q} }
func (r repos) Products() store.ProductRepository            { return productRepo{r.q} }
func (r repos) Orders() store.OrderRepository                { return orderRepo{r.q} }
func (r repos) Outbox() store.OutboxRepository               { return outboxRepo{r.q} }
func (r repos) IdempotencyKeys() store.IdempotencyRepository { return idemRepo{r.q} }

func (s *Store) Accounts() store.AccountRepository            { return repos{s.db}.Accounts() }
func (s *Store) Products() store.ProductRepository            { return repos{s.db}.Products() }
func (s *Store) Orders() store.OrderRepository                { return repos{s.db}.Orders() }
func (s *Store) Outbox() store.OutboxRepository               { return repos{s.db}.Outbox() }
func (s *Store) IdempotencyKeys() store.IdempotencyRepository { return repos{s.db}.IdempotencyKeys() }

// WithinTx runs fn in a single database transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(ctx, repos{tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func hasCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

func isUniqueViolation(err error) bool { return hasCode(err, codeUniqueViolation) }

func isForeignKeyViolation(err error) bool { return hasCode(err, codeForeignKeyViolation) }

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

// nullTime maps a nullable timestamp column onto *time.Time.
func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
