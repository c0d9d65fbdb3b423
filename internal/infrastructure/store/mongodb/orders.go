package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type orderRepo struct {
	col *mongo.Collection
}

func (r orderRepo) Create(ctx context.Context, o *order.Order) error {
	doc, err := toOrderDoc(o)
	if err != nil {
		return err
	}
	_, err = r.col.InsertOne(ctx, doc)
	return err
}

func (r orderRepo) GetByID(ctx context.Context, id string) (*order.Order, error) {
	var doc orderDoc
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain()
}

func (r orderRepo) ListByAccount(ctx context.Context, accountID string) ([]*order.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"account_id": accountID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]*order.Order, 0)
	for cur.Next(ctx) {
		var doc orderDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		o, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, cur.Err()
}

func (r orderRepo) UpdateStatus(ctx context.Context, o *order.Order, from order.Status) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": o.ID, "status": string(from)},
		bson.M{"$set": bson.M{
			"status":        string(o.Status),
			"cancel_reason": o.CancelReason,
			"updated_at":    o.UpdatedAt,
			"shipped_at":    o.ShippedAt,
			"delivered_at":  o.DeliveredAt,
			"cancelled_at":  o.CancelledAt,
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, o.ID); err != nil {
		return err
	}
	return order.ErrStatusChanged
}

type outboxRepo struct {
	col *mongo.Collection
}

func (r outboxRepo) Append(ctx context.Context, e store.Event) error {
	_, err := r.col.InsertOne(ctx, toEventDoc(e))
	return err
}

func (r outboxRepo) Pending(ctx context.Context, limit int) ([]store.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	cur, err := r.col.Find(ctx, bson.M{"published_at": nil}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var events []store.Event
	for cur.Next(ctx) {
		var doc eventDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		events = append(events, doc.toDomain())
	}
	return events, cur.Err()
}

func (r outboxRepo) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.col.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"published_at": at}})
	return err
}

type idemRepo struct {
	col *mongo.Collection
}

type idempotencyDoc struct {
	AccountID string    `bson:"account_id"`
	Key       string    `bson:"key"`
	OrderID   string    `bson:"order_id"`
	CreatedAt time.Time `bson:"created_at"`
}

func (r idemRepo) Get(ctx context.Context, accountID, key string) (string, bool, error) {
	var doc idempotencyDoc
	err := r.col.FindOne(ctx, bson.M{"account_id": accountID, "key": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return doc.OrderID, true, nil
}

func (r idemRepo) Put(ctx context.Context, accountID, key, orderID string) error {
	_, err := r.col.InsertOne(ctx, idempotencyDoc{
		AccountID: accountID,
		Key:       key,
		OrderID:   orderID,
		CreatedAt: time.Now().UTC(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return order.ErrDuplicateOrderKey
	}
	return err
}
