// Package memstore provides in-process stores with the same conditional-update semantics
// as the MongoDB stores. A single mutex stands in for document-level atomicity.
package memstore

import (
	"context"
	"sync"
	"time"

	"storefront_back_end/internal/models"
	"storefront_back_end/internal/repository"
)

type CartStore struct {
	mu    sync.Mutex
	carts map[string]*models.Cart
}

var _ repository.CartStore = (*CartStore)(nil)

func NewCartStore() *CartStore {
	return &CartStore{carts: make(map[string]*models.Cart)}
}

func (s *CartStore) Get(_ context.Context, userID string) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneCart(s.carts[userID]), nil
}

func (s *CartStore) IncrementItem(_ context.Context, userID, productID, color string, delta, maxQuantity int) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.carts[userID]
	if cart == nil {
		return nil, nil
	}
	for i := range cart.Items {
		it := &cart.Items[i]
		if it.ProductID == productID && it.Color == color && it.Quantity <= maxQuantity-delta {
			it.Quantity += delta
			cart.UpdatedAt = time.Now()
			return cloneCart(cart), nil
		}
	}
	return nil, nil
}

func (s *CartStore) HasItem(_ context.Context, userID, productID, color string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.carts[userID]
	return cart != nil && indexOf(cart, productID, color) >= 0, nil
}

func (s *CartStore) PushItem(_ context.Context, userID string, item models.CartItem, maxItems int) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cart := s.carts[userID]
	if cart == nil {
		cart = &models.Cart{UserID: userID, Items: []models.CartItem{}, CreatedAt: now}
		s.carts[userID] = cart
	} else if len(cart.Items) >= maxItems || indexOf(cart, item.ProductID, item.Color) >= 0 {
		// the filter misses, so the upsert collides with the existing document
		return nil, repository.ErrDuplicateKey
	}
	cart.Items = append(cart.Items, item)
	cart.UpdatedAt = now
	return cloneCart(cart), nil
}

func (s *CartStore) RemoveItem(_ context.Context, userID, productID string, color *string) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.carts[userID]
	if cart == nil {
		return nil, nil
	}
	kept := cart.Items[:0]
	for _, it := range cart.Items {
		if it.ProductID == productID && (color == nil || it.Color == *color) {
			continue
		}
		kept = append(kept, it)
	}
	cart.Items = kept
	cart.UpdatedAt = time.Now()
	return cloneCart(cart), nil
}

func (s *CartStore) Clear(_ context.Context, userID string) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.carts[userID]
	if cart == nil {
		return nil, nil
	}
	cart.Items = []models.CartItem{}
	cart.UpdatedAt = time.Now()
	return cloneCart(cart), nil
}

func indexOf(cart *models.Cart, productID, color string) int {
	for i, it := range cart.Items {
		if it.ProductID == productID && it.Color == color {
			return i
		}
	}
	return -1
}

func cloneCart(c *models.Cart) *models.Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = append([]models.CartItem{}, c.Items...)
	return &out
}
