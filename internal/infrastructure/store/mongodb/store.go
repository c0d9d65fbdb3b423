// Package mongodb is the MongoDB storage backend. Accounts embed their
// addresses and cart; WithinTx requires a replica set or sharded cluster.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/example/ec-storefront/internal/infrastructure/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	colAccounts    = "accounts"
	colProducts    = "products"
	colOrders      = "orders"
	colOutbox      = "outbox_events"
	colIdempotency = "idempotency_keys"
)

// Store implements store.Store on MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ store.Store = (*Store)(nil)

// Connect dials uri and verifies the connection.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

type repos struct {
	db *mongo.Database
}

func (r repos) Accounts() store.AccountRepository {
	return accountRepo{col: r.db.Collection(colAccounts)}
}

func (r repos) Products() store.ProductRepository {
	return productRepo{col: r.db.Collection(colProducts)}
}

func (r repos) Orders() store.OrderRepository {
	return orderRepo{col: r.db.Collection(colOrders)}
}

func (r repos) Outbox() store.OutboxRepository {
	return outboxRepo{col: r.db.Collection(colOutbox)}
}

func (r repos) IdempotencyKeys() store.IdempotencyRepository {
	return idemRepo{col: r.db.Collection(colIdempotency)}
}

func (s *Store) Accounts() store.AccountRepository            { return repos{s.db}.Accounts() }
func (s *Store) Products() store.ProductRepository            { return repos{s.db}.Products() }
func (s *Store) Orders() store.OrderRepository                { return repos{s.db}.Orders() }
func (s *Store) Outbox() store.OutboxRepository               { return repos{s.db}.Outbox() }
func (s *Store) IdempotencyKeys() store.IdempotencyRepository { return repos{s.db}.IdempotencyKeys() }

// WithinTx runs fn inside a multi-document transaction. The driver binds
// operations to the session through the context passed to fn.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Repositories) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, repos{s.db})
	})
	return err
}

// EnsureIndexes creates the unique and lookup indexes the repositories rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colAccounts: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colProducts: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}},
		},
		colOrders: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colOutbox: {
			{Keys: bson.D{{Key: "published_at", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colIdempotency: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for col, models := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", col, err)
		}
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
