// Package repository declares the persistence contracts the order flow is built on.
// Every mutation is a single conditional update; implementations must not read-modify-write.
package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront_back_end/internal/models"
)

// ErrDuplicateKey is returned when creating a cart document collides with an existing one.
var ErrDuplicateKey = errors.New("repository: duplicate key")

type CartStore interface {
	// Get returns nil when the user has no cart document.
	Get(ctx context.Context, userID string) (*models.Cart, error)

	// IncrementItem adds delta to the (productID, color) item only if the result stays <= maxQuantity.
	// It returns nil when nothing matched.
	IncrementItem(ctx context.Context, userID, productID, color string, delta, maxQuantity int) (*models.Cart, error)

	HasItem(ctx context.Context, userID, productID, color string) (bool, error)

	// PushItem appends item while the cart holds fewer than maxItems entries and does not
	// already contain the (productID, color) pair, creating the cart when absent.
	// A precondition failure surfaces as ErrDuplicateKey.
	PushItem(ctx context.Context, userID string, item models.CartItem, maxItems int) (*models.Cart, error)

	// RemoveItem pulls every item for productID, or only the given color when color is non-nil.
	// It returns nil when the user has no cart.
	RemoveItem(ctx context.Context, userID, productID string, color *string) (*models.Cart, error)

	// Clear empties the cart. It returns nil when the user has no cart.
	Clear(ctx context.Context, userID string) (*models.Cart, error)
}

type OrderStore interface {
	// Create assigns the order an id when it has none.
	Create(ctx context.Context, order *models.Order) error

	// FindByID and FindOwned return nil when no order matches.
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindOwned(ctx context.Context, userID string, id primitive.ObjectID) (*models.Order, error)

	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)

	// CancelPending marks every pending order of the user cancelled and returns how many changed.
	CancelPending(ctx context.Context, userID string) (int64, error)

	// TransitionStatus moves an owned order from one status to another and reports whether it did.
	TransitionStatus(ctx context.Context, userID string, id primitive.ObjectID, from, to models.OrderStatus) (bool, error)

	// ConfirmPayment sets status=confirmed and the session id on a pending order whose
	// session id is unset, in one update. It reports whether the update applied.
	ConfirmPayment(ctx context.Context, userID string, id primitive.ObjectID, sessionID string) (bool, error)
}

type ProductCatalog interface {
	// FindByID returns nil when the product does not exist.
	FindByID(ctx context.Context, id string) (*models.Product, error)

	// FindManyByIDs returns the products that exist, in no particular order.
	FindManyByIDs(ctx context.Context, ids []string) ([]models.Product, error)
}
