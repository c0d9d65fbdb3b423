package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/example/ec-storefront/internal/domain/account"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type accountRepo struct {
	col *mongo.Collection
}

func (r accountRepo) Create(ctx context.Context, a *account.Account) error {
	_, err := r.col.InsertOne(ctx, toAccountDoc(a))
	if mongo.IsDuplicateKeyError(err) {
		return account.ErrEmailTaken
	}
	return err
}

func (r accountRepo) GetByID(ctx context.Context, id string) (*account.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r accountRepo) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	return r.findOne(ctx, bson.M{"email": account.NormalizeEmail(email)})
}

func (r accountRepo) findOne(ctx context.Context, filter bson.M) (*account.Account, error) {
	var doc accountDoc
	err := r.col.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r accountRepo) exists(ctx context.Context, id string) error {
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return account.ErrAccountNotFound
	}
	return nil
}

// update applies change to the account matching filter and reports whether
// a document matched.
func (r accountRepo) update(ctx context.Context, filter bson.M, change bson.M) (bool, error) {
	if set, ok := change["$set"].(bson.M); ok {
		set["updated_at"] = time.Now().UTC()
	} else {
		change["$set"] = bson.M{"updated_at": time.Now().UTC()}
	}
	res, err := r.col.UpdateOne(ctx, filter, change)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r accountRepo) mustMatch(ctx context.Context, filter, change bson.M) error {
	matched, err := r.update(ctx, filter, change)
	if err != nil {
		return err
	}
	if !matched {
		return account.ErrAccountNotFound
	}
	return nil
}

func (r accountRepo) AddAddress(ctx context.Context, accountID string, addr account.Address) error {
	return r.mustMatch(ctx,
		bson.M{"_id": accountID},
		bson.M{"$push": bson.M{"addresses": toAddressDoc(addr)}})
}

func (r accountRepo) RemoveAddress(ctx context.Context, accountID, addressID string) error {
	return r.mustMatch(ctx,
		bson.M{"_id": accountID},
		bson.M{"$pull": bson.M{"addresses": bson.M{"id": addressID}}})
}

// AddCartItem increments an existing entry in place while the sum stays
// within MaxCartQuantity, or pushes a new one guarded by the absence of the
// product. A lost race between the two steps is retried.
func (r accountRepo) AddCartItem(ctx context.Context, accountID, productID string, quantity int) error {
	if productID == "" {
		return account.ErrInvalidProduct
	}
	if err := account.ValidateQuantity(quantity); err != nil {
		return err
	}

	for attempt := 0; attempt < 3; attempt++ {
		matched, err := r.update(ctx,
			bson.M{"_id": accountID, "cart": bson.M{"$elemMatch": bson.M{
				"product_id": productID,
				"quantity":   bson.M{"$lte": account.MaxCartQuantity - quantity},
			}}},
			bson.M{"$inc": bson.M{"cart.$.quantity": quantity}})
		if err != nil || matched {
			return err
		}

		item := cartItemDoc{ProductID: productID, Quantity: quantity, AddedAt: time.Now().UTC()}
		matched, err = r.update(ctx,
			bson.M{"_id": accountID, "cart.product_id": bson.M{"$ne": productID}},
			bson.M{"$push": bson.M{"cart": item}})
		if err != nil || matched {
			return err
		}

		full, err := r.cartItemAbove(ctx, accountID, productID, account.MaxCartQuantity-quantity)
		if err != nil {
			return err
		}
		if full {
			return account.ErrQuantityLimit
		}
		if err := r.exists(ctx, accountID); err != nil {
			return err
		}
	}
	return errors.New("cart item add conflicted repeatedly")
}

// cartItemAbove reports whether the account holds productID with a quantity
// greater than limit.
func (r accountRepo) cartItemAbove(ctx context.Context, accountID, productID string, limit int) (bool, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": accountID, "cart": bson.M{"$elemMatch": bson.M{
		"product_id": productID,
		"quantity":   bson.M{"$gt": limit},
	}}})
	return n > 0, err
}

func (r accountRepo) IncreaseCartItem(ctx context.Context, accountID, productID string) error {
	matched, err := r.update(ctx,
		bson.M{"_id": accountID, "cart": bson.M{"$elemMatch": bson.M{
			"product_id": productID,
			"quantity":   bson.M{"$lt": account.MaxCartQuantity},
		}}},
		bson.M{"$inc": bson.M{"cart.$.quantity": 1}})
	if err != nil || matched {
		return err
	}

	full, err := r.cartItemAbove(ctx, accountID, productID, account.MaxCartQuantity-1)
	if err != nil {
		return err
	}
	if full {
		return account.ErrQuantityLimit
	}
	return r.missingItem(ctx, accountID)
}

func (r accountRepo) DecreaseCartItem(ctx context.Context, accountID, productID string) error {
	matched, err := r.update(ctx,
		bson.M{"_id": accountID, "cart": bson.M{"$elemMatch": bson.M{
			"product_id": productID,
			"quantity":   bson.M{"$gt": 1},
		}}},
		bson.M{"$inc": bson.M{"cart.$.quantity": -1}})
	if err != nil || matched {
		return err
	}

	matched, err = r.update(ctx,
		bson.M{"_id": accountID, "cart.product_id": productID},
		bson.M{"$pull": bson.M{"cart": bson.M{"product_id": productID}}})
	if err != nil || matched {
		return err
	}
	return r.missingItem(ctx, accountID)
}

func (r accountRepo) missingItem(ctx context.Context, accountID string) error {
	if err := r.exists(ctx, accountID); err != nil {
		return err
	}
	return account.ErrCartItemNotFound
}

func (r accountRepo) RemoveCartItem(ctx context.Context, accountID, productID string) error {
	return r.mustMatch(ctx,
		bson.M{"_id": accountID},
		bson.M{"$pull": bson.M{"cart": bson.M{"product_id": productID}}})
}

func (r accountRepo) ClearCart(ctx context.Context, accountID string) error {
	return r.mustMatch(ctx,
		bson.M{"_id": accountID},
		bson.M{"$set": bson.M{"cart": bson.A{}}})
}
