package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront_back_end/internal/apperr"
	"storefront_back_end/internal/cache"
	"storefront_back_end/internal/logger"
	"storefront_back_end/internal/metrics"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/repository"
)

type CartConfig struct {
	MaxItems        int
	MaxItemQuantity int
}

type CartDeps struct {
	Carts    repository.CartStore
	Catalog  repository.ProductCatalog
	Notifier CartNotifier
	Log      *zap.Logger
	Metrics  *metrics.Metrics
}

type CartService struct {
	carts    repository.CartStore
	catalog  repository.ProductCatalog
	notifier CartNotifier
	cfg      CartConfig
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func NewCartService(d CartDeps, cfg CartConfig) *CartService {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &CartService{
		carts:    d.Carts,
		catalog:  d.Catalog,
		notifier: d.Notifier,
		cfg:      cfg,
		log:      d.Log,
		metrics:  d.Metrics,
	}
}

func (s *CartService) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return normalizeCart(cart, userID), nil
}

// AddItem increments an existing (productID, color) line or appends a new one. Both paths
// are conditional updates, so concurrent adds never exceed the quantity or item caps.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int, color string) (*models.Cart, error) {
	ctx, span := tracer.Start(ctx, "CartService.AddItem", trace.WithAttributes(
		attribute.String("product_id", productID),
		attribute.Int("quantity", quantity),
	))
	defer span.End()

	cart, outcome, err := s.addItem(ctx, userID, productID, quantity, color)
	s.metrics.CartOperation("add", outcome)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}

	logger.FromContext(ctx, s.log).Debug("cart item added",
		zap.String("user_id", userID),
		zap.String("product_id", productID),
		zap.String("color", color),
		zap.Int("quantity", quantity),
	)
	s.notify(ctx, userID, cache.CartUpdated)
	return normalizeCart(cart, userID), nil
}

func (s *CartService) addItem(ctx context.Context, userID, productID string, quantity int, color string) (*models.Cart, string, error) {
	if quantity < 1 || quantity > s.cfg.MaxItemQuantity {
		return nil, "invalid", apperr.InvalidArgument(fmt.Sprintf("quantity must be between 1 and %d", s.cfg.MaxItemQuantity))
	}

	product, err := s.catalog.FindByID(ctx, productID)
	if err != nil {
		return nil, "error", err
	}
	if product == nil {
		return nil, "not_found", apperr.NotFound(fmt.Sprintf("product %q not found", productID))
	}
	if color != "" && !product.HasColor(color) {
		return nil, "invalid", apperr.InvalidArgument(fmt.Sprintf("invalid color %q for this product", color))
	}
	// lines are keyed on the catalog's canonical id, not the caller's spelling of it
	productID = product.ID

	cart, err := s.carts.IncrementItem(ctx, userID, productID, color, quantity, s.cfg.MaxItemQuantity)
	if err != nil {
		return nil, "error", err
	}
	if cart != nil {
		return cart, "incremented", nil
	}

	// nothing matched: either the pair is absent or the increment would pass the cap
	exists, err := s.carts.HasItem(ctx, userID, productID, color)
	if err != nil {
		return nil, "error", err
	}
	if exists {
		return nil, "max_quantity", apperr.InvalidArgument(fmt.Sprintf("cannot exceed %d of the same item", s.cfg.MaxItemQuantity))
	}

	cart, err = s.carts.PushItem(ctx, userID, models.CartItem{
		ProductID: productID,
		Name:      product.Name,
		Price:     product.Price,
		Image:     product.Image,
		Quantity:  quantity,
		Color:     color,
	}, s.cfg.MaxItems)
	if errors.Is(err, repository.ErrDuplicateKey) {
		return nil, "cart_full", apperr.InvalidArgument(fmt.Sprintf("cart cannot have more than %d items", s.cfg.MaxItems))
	}
	if err != nil {
		return nil, "error", err
	}
	return cart, "pushed", nil
}

// RemoveItem drops every variant of productID when color is nil, otherwise only that variant.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string, color *string) (*models.Cart, error) {
	cart, err := s.carts.RemoveItem(ctx, userID, canonicalProductID(productID), color)
	if err != nil {
		s.metrics.CartOperation("remove", "error")
		return nil, err
	}
	s.metrics.CartOperation("remove", "ok")
	if cart != nil {
		s.notify(ctx, userID, cache.CartUpdated)
	}
	return normalizeCart(cart, userID), nil
}

func (s *CartService) ClearCart(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := s.carts.Clear(ctx, userID)
	if err != nil {
		s.metrics.CartOperation("clear", "error")
		return nil, err
	}
	s.metrics.CartOperation("clear", "ok")
	if cart != nil {
		s.notify(ctx, userID, cache.CartCleared)
	}
	return normalizeCart(cart, userID), nil
}

// canonicalProductID spells a uuid the way the catalog stores it; other ids pass through.
func canonicalProductID(id string) string {
	if pid, err := uuid.Parse(id); err == nil {
		return pid.String()
	}
	return id
}

func (s *CartService) notify(ctx context.Context, userID, change string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, userID, change); err != nil {
		logger.FromContext(ctx, s.log).Warn("cart change publish failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func normalizeCart(cart *models.Cart, userID string) *models.Cart {
	if cart == nil {
		return models.EmptyCart(userID)
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return cart
}
