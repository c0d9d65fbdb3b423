package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/example/ec-storefront/internal/domain/product"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type productRepo struct {
	col *mongo.Collection
}

func (r productRepo) Create(ctx context.Context, p *product.Product) error {
	doc, err := toProductDoc(p)
	if err != nil {
		return err
	}
	_, err = r.col.InsertOne(ctx, doc)
	return err
}

func (r productRepo) GetByID(ctx context.Context, id string) (*product.Product, error) {
	var doc productDoc
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, product.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain()
}

func (r productRepo) GetMany(ctx context.Context, ids []string) (map[string]*product.Product, error) {
	out := make(map[string]*product.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	list, err := r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		out[p.ID] = p
	}
	return out, nil
}

func (r productRepo) List(ctx context.Context) ([]*product.Product, error) {
	return r.find(ctx, bson.M{})
}

func (r productRepo) ListByOwner(ctx context.Context, ownerID string) ([]*product.Product, error) {
	return r.find(ctx, bson.M{"owner_id": ownerID})
}

func (r productRepo) find(ctx context.Context, filter bson.M) ([]*product.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]*product.Product, 0)
	for cur.Next(ctx) {
		var doc productDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		p, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, cur.Err()
}

func (r productRepo) Update(ctx context.Context, p *product.Product) error {
	doc, err := toProductDoc(p)
	if err != nil {
		return err
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": bson.M{
		"name":        doc.Name,
		"description": doc.Description,
		"price":       doc.Price,
		"category":    doc.Category,
		"stock":       doc.Stock,
		"images":      doc.Images,
		"updated_at":  doc.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return product.ErrProductNotFound
	}
	return nil
}

func (r productRepo) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return product.ErrProductNotFound
	}
	return nil
}

// AdjustStock matches only documents whose stock covers the decrement and
// stays within MaxStock, so the check and the update happen in one
// server-side operation.
func (r productRepo) AdjustStock(ctx context.Context, id string, delta int) error {
	if err := product.ValidateStockDelta(delta); err != nil {
		return err
	}
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "stock": bson.M{"$gte": -delta, "$lte": product.MaxStock - delta}},
		bson.M{
			"$inc": bson.M{"stock": delta},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	p, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.Stock+delta > product.MaxStock {
		return product.ErrStockLimit
	}
	return &product.InsufficientStockError{
		ProductID:   id,
		ProductName: p.Name,
		Requested:   -delta,
		Available:   p.Stock,
	}
}
