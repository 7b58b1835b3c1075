package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront_back_end/internal/models"
	"storefront_back_end/internal/repository"
)

const OrdersCollection = "orders"

type OrderStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ repository.OrderStore = (*OrderStore)(nil)

func NewOrderStore(db *mongo.Database) *OrderStore {
	return &OrderStore{coll: db.Collection(OrdersCollection), now: time.Now}
}

func (s *OrderStore) Create(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	if _, err := s.coll.InsertOne(ctx, order); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *OrderStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *OrderStore) FindOwned(ctx context.Context, userID string, id primitive.ObjectID) (*models.Order, error) {
	return s.findOne(ctx, bson.M{"_id": id, "user_id": userID})
}

func (s *OrderStore) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}

func (s *OrderStore) CancelPending(ctx context.Context, userID string) (int64, error) {
	res, err := s.coll.UpdateMany(ctx,
		bson.M{"user_id": userID, "status": models.OrderPending},
		bson.M{"$set": bson.M{"status": models.OrderCancelled, "updated_at": s.now()}},
	)
	if err != nil {
		return 0, fmt.Errorf("cancel pending orders: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *OrderStore) TransitionStatus(ctx context.Context, userID string, id primitive.ObjectID, from, to models.OrderStatus) (bool, error) {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": s.now()}},
	)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (s *OrderStore) ConfirmPayment(ctx context.Context, userID string, id primitive.ObjectID, sessionID string) (bool, error) {
	res, err := s.coll.UpdateOne(ctx, confirmFilter(userID, id), bson.M{"$set": bson.M{
		"status":            models.OrderConfirmed,
		"stripe_session_id": sessionID,
		"updated_at":        s.now(),
	}})
	if err != nil {
		return false, fmt.Errorf("confirm order: %w", err)
	}
	return res.MatchedCount == 1, nil
}

// confirmFilter matches a pending order whose session id is missing or null.
func confirmFilter(userID string, id primitive.ObjectID) bson.M {
	return bson.M{
		"_id":               id,
		"user_id":           userID,
		"status":            models.OrderPending,
		"stripe_session_id": nil,
	}
}

func (s *OrderStore) findOne(ctx context.Context, filter bson.M) (*models.Order, error) {
	var order models.Order
	err := s.coll.FindOne(ctx, filter).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return &order, nil
}
