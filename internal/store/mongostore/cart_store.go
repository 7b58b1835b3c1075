package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront_back_end/internal/models"
	"storefront_back_end/internal/repository"
)

const CartsCollection = "carts"

// CartStore keeps one document per user. All mutations are single filtered updates;
// the unique index on user_id turns racing upserts into duplicate key errors.
type CartStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ repository.CartStore = (*CartStore)(nil)

func NewCartStore(db *mongo.Database) *CartStore {
	return &CartStore{coll: db.Collection(CartsCollection), now: time.Now}
}

func (s *CartStore) Get(ctx context.Context, userID string) (*models.Cart, error) {
	var cart models.Cart
	err := s.coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find cart: %w", err)
	}
	return &cart, nil
}

func (s *CartStore) IncrementItem(ctx context.Context, userID, productID, color string, delta, maxQuantity int) (*models.Cart, error) {
	update := bson.M{
		"$inc": bson.M{"items.$.quantity": delta},
		"$set": bson.M{"updated_at": s.now()},
	}
	return s.findOneAndUpdate(ctx, incrementFilter(userID, productID, color, delta, maxQuantity), update, false)
}

func (s *CartStore) HasItem(ctx context.Context, userID, productID, color string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, itemFilter(userID, productID, color), options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count cart item: %w", err)
	}
	return n > 0, nil
}

func (s *CartStore) PushItem(ctx context.Context, userID string, item models.CartItem, maxItems int) (*models.Cart, error) {
	now := s.now()
	update := bson.M{
		"$push":        bson.M{"items": item},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}
	cart, err := s.findOneAndUpdate(ctx, pushFilter(userID, item.ProductID, item.Color, maxItems), update, true)
	if mongo.IsDuplicateKeyError(err) {
		return nil, repository.ErrDuplicateKey
	}
	return cart, err
}

func (s *CartStore) RemoveItem(ctx context.Context, userID, productID string, color *string) (*models.Cart, error) {
	update := bson.M{
		"$pull": bson.M{"items": pullCondition(productID, color)},
		"$set":  bson.M{"updated_at": s.now()},
	}
	return s.findOneAndUpdate(ctx, bson.M{"user_id": userID}, update, false)
}

func (s *CartStore) Clear(ctx context.Context, userID string) (*models.Cart, error) {
	update := bson.M{"$set": bson.M{"items": []models.CartItem{}, "updated_at": s.now()}}
	return s.findOneAndUpdate(ctx, bson.M{"user_id": userID}, update, false)
}

func (s *CartStore) findOneAndUpdate(ctx context.Context, filter, update bson.M, upsert bool) (*models.Cart, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After).SetUpsert(upsert)

	var cart models.Cart
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("update cart: %w", err)
	}
	return &cart, nil
}

func itemMatch(productID, color string) bson.M {
	return bson.M{"product_id": productID, "color": color}
}

func itemFilter(userID, productID, color string) bson.M {
	return bson.M{"user_id": userID, "items": bson.M{"$elemMatch": itemMatch(productID, color)}}
}

// incrementFilter matches the cart only when one element carries the pair and has room for delta.
func incrementFilter(userID, productID, color string, delta, maxQuantity int) bson.M {
	match := itemMatch(productID, color)
	match["quantity"] = bson.M{"$lte": maxQuantity - delta}
	return bson.M{"user_id": userID, "items": bson.M{"$elemMatch": match}}
}

// pushFilter requires that index maxItems-1 is empty and the pair is not present yet.
// Neither condition is an equality, so an upsert only copies user_id into the new document.
func pushFilter(userID, productID, color string, maxItems int) bson.M {
	return bson.M{
		"user_id": userID,
		fmt.Sprintf("items.%d", maxItems-1): bson.M{"$exists": false},
		"items": bson.M{"$not": bson.M{"$elemMatch": itemMatch(productID, color)}},
	}
}

func pullCondition(productID string, color *string) bson.M {
	if color == nil {
		return bson.M{"product_id": productID}
	}
	return itemMatch(productID, *color)
}
