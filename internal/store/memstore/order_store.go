package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront_back_end/internal/models"
	"storefront_back_end/internal/repository"
)

type OrderStore struct {
	mu     sync.RWMutex
	orders map[primitive.ObjectID]*storedOrder
	seq    int64
	now    func() time.Time
}

type storedOrder struct {
	order models.Order
	seq   int64
}

var _ repository.OrderStore = (*OrderStore)(nil)

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[primitive.ObjectID]*storedOrder), now: time.Now}
}

func (s *OrderStore) Create(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	s.seq++
	s.orders[order.ID] = &storedOrder{order: cloneOrder(*order), seq: s.seq}
	return nil
}

func (s *OrderStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	so, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	o := cloneOrder(so.order)
	return &o, nil
}

func (s *OrderStore) FindOwned(ctx context.Context, userID string, id primitive.ObjectID) (*models.Order, error) {
	o, err := s.FindByID(ctx, id)
	if err != nil || o == nil || o.UserID != userID {
		return nil, err
	}
	return o, nil
}

func (s *OrderStore) ListByUser(_ context.Context, userID string) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*storedOrder
	for _, so := range s.orders {
		if so.order.UserID == userID {
			matched = append(matched, so)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.order.CreatedAt.Equal(b.order.CreatedAt) {
			return a.order.CreatedAt.After(b.order.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]models.Order, 0, len(matched))
	for _, so := range matched {
		out = append(out, cloneOrder(so.order))
	}
	return out, nil
}

func (s *OrderStore) CancelPending(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, so := range s.orders {
		if so.order.UserID == userID && so.order.Status == models.OrderPending {
			so.order.Status = models.OrderCancelled
			so.order.UpdatedAt = s.now()
			n++
		}
	}
	return n, nil
}

func (s *OrderStore) TransitionStatus(_ context.Context, userID string, id primitive.ObjectID, from, to models.OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	so, ok := s.orders[id]
	if !ok || so.order.UserID != userID || so.order.Status != from {
		return false, nil
	}
	so.order.Status = to
	so.order.UpdatedAt = s.now()
	return true, nil
}

func (s *OrderStore) ConfirmPayment(_ context.Context, userID string, id primitive.ObjectID, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	so, ok := s.orders[id]
	if !ok || so.order.UserID != userID || so.order.Status != models.OrderPending || so.order.StripeSessionID != "" {
		return false, nil
	}
	so.order.Status = models.OrderConfirmed
	so.order.StripeSessionID = sessionID
	so.order.UpdatedAt = s.now()
	return true, nil
}

func cloneOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	o.LineItems = append([]models.LineItem(nil), o.LineItems...)
	return o
}
