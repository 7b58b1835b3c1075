package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront_back_end/internal/apperr"
	"storefront_back_end/internal/logger"
	"storefront_back_end/internal/metrics"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/repository"
)

type CheckoutConfig struct {
	// ClientURL is the storefront origin the payment page redirects back to.
	ClientURL string
}

type CheckoutDeps struct {
	Carts    repository.CartStore
	Orders   repository.OrderStore
	Catalog  repository.ProductCatalog
	Gateway  PaymentGateway
	Events   OrderEventPublisher
	Receipts ReceiptStore
	Log      *zap.Logger
	Metrics  *metrics.Metrics
}

type CheckoutService struct {
	carts    repository.CartStore
	orders   repository.OrderStore
	catalog  repository.ProductCatalog
	gateway  PaymentGateway
	events   OrderEventPublisher
	receipts ReceiptStore
	cfg      CheckoutConfig
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewCheckoutService(d CheckoutDeps, cfg CheckoutConfig) *CheckoutService {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &CheckoutService{
		carts:    d.Carts,
		orders:   d.Orders,
		catalog:  d.Catalog,
		gateway:  d.Gateway,
		events:   d.Events,
		receipts: d.Receipts,
		cfg:      cfg,
		log:      d.Log,
		metrics:  d.Metrics,
		now:      time.Now,
	}
}

type CheckoutResult struct {
	Order       *models.Order `json:"order"`
	CheckoutURL string        `json:"checkout_url"`
}

// Checkout turns the user's cart into a pending order priced from the live catalog and opens
// a payment session for it. The cart is left as is until the payment is confirmed.
func (s *CheckoutService) Checkout(ctx context.Context, userID string, lineItems []models.LineItem) (*CheckoutResult, error) {
	ctx, span := tracer.Start(ctx, "CheckoutService.Checkout", trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	res, outcome, err := s.checkout(ctx, userID, lineItems)
	s.metrics.Checkout(outcome)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	span.SetAttributes(attribute.String("order_id", res.Order.ID.Hex()), attribute.Int64("total", res.Order.Total))
	return res, nil
}

func (s *CheckoutService) checkout(ctx context.Context, userID string, lineItems []models.LineItem) (*CheckoutResult, string, error) {
	log := logger.FromContext(ctx, s.log).With(zap.String("user_id", userID))

	for _, li := range lineItems {
		if li.Name == "" || li.Amount < 1 {
			return nil, "invalid", apperr.InvalidArgument("line items need a name and a positive amount")
		}
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, "error", err
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, "empty_cart", apperr.InvalidArgument("cart is empty")
	}

	// one active checkout per user; not atomic with the insert below
	cancelled, err := s.orders.CancelPending(ctx, userID)
	if err != nil {
		return nil, "error", err
	}
	if cancelled > 0 {
		log.Info("superseded pending orders", zap.Int64("cancelled", cancelled))
	}

	ids := make([]string, len(cart.Items))
	for i, it := range cart.Items {
		ids[i] = it.ProductID
	}
	products, err := s.catalog.FindManyByIDs(ctx, ids)
	if err != nil {
		return nil, "error", err
	}
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]models.OrderItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		p, ok := byID[it.ProductID]
		if !ok || p.Stock < it.Quantity {
			return nil, "insufficient_stock", apperr.InvalidArgument(fmt.Sprintf("insufficient stock for %q", it.Name))
		}
		items = append(items, models.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Image:     p.Image,
			Quantity:  it.Quantity,
			Color:     it.Color,
		})
	}
	if lineItems == nil {
		lineItems = []models.LineItem{}
	}

	now := s.now().UTC()
	order := &models.Order{
		UserID:    userID,
		Items:     items,
		LineItems: lineItems,
		Total:     models.ComputeTotal(items, lineItems),
		Status:    models.OrderPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, "error", err
	}
	log = log.With(zap.String("order_id", order.ID.Hex()))
	s.publish(ctx, orderEvent(models.EventOrderCreated, order))

	sess, err := s.gateway.CreateCheckoutSession(ctx, models.CheckoutSessionRequest{
		Items:     items,
		LineItems: lineItems,
		Metadata: map[string]string{
			models.MetadataOrderID: order.ID.Hex(),
			models.MetadataUserID:  userID,
		},
		SuccessURL: s.cfg.ClientURL + "/orders?success=true",
		CancelURL:  s.cfg.ClientURL + "/cart?cancelled=true",
	})
	if err != nil {
		log.Error("checkout session failed", zap.Error(err))
		return nil, "gateway_error", err
	}

	log.Info("checkout session created", zap.String("session_id", sess.ID), zap.Int64("total", order.Total))
	return &CheckoutResult{Order: order, CheckoutURL: sess.URL}, "created", nil
}

func (s *CheckoutService) GetOrders(ctx context.Context, userID string) ([]models.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

func (s *CheckoutService) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	id, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return nil, orderNotFound(orderID)
	}
	order, err := s.orders.FindOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderNotFound(orderID)
	}
	return order, nil
}

// CancelOrder moves a pending order to cancelled. The transition is conditional on the
// status still being pending, so it cannot overwrite a concurrent payment confirmation.
func (s *CheckoutService) CancelOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderPending {
		return nil, cannotCancel(order.Status)
	}

	ok, err := s.orders.TransitionStatus(ctx, userID, order.ID, models.OrderPending, models.OrderCancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.GetOrder(ctx, userID, orderID)
		if err != nil {
			return nil, err
		}
		return nil, cannotCancel(current.Status)
	}

	order.Status = models.OrderCancelled
	order.UpdatedAt = s.now().UTC()
	logger.FromContext(ctx, s.log).Info("order cancelled", zap.String("user_id", userID), zap.String("order_id", orderID))
	s.publish(ctx, orderEvent(models.EventOrderCancelled, order))
	return order, nil
}

// ReceiptURL returns a short-lived download link for a confirmed order's receipt.
func (s *CheckoutService) ReceiptURL(ctx context.Context, userID, orderID string) (string, error) {
	if s.receipts == nil {
		return "", apperr.Unavailable("receipts are not enabled")
	}
	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return "", err
	}
	if order.Status != models.OrderConfirmed && order.Status != models.OrderDelivered {
		return "", apperr.InvalidArgument("receipt is available once the order is paid")
	}
	return s.receipts.URL(ctx, *order)
}

func (s *CheckoutService) publish(ctx context.Context, ev models.OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		logger.FromContext(ctx, s.log).Warn("order event publish failed",
			zap.String("type", ev.Type), zap.String("order_id", ev.OrderID), zap.Error(err))
	}
}

func orderNotFound(orderID string) error {
	return apperr.NotFound(fmt.Sprintf("order %q not found", orderID))
}

func cannotCancel(status models.OrderStatus) error {
	return apperr.InvalidArgument(fmt.Sprintf("cannot cancel order with status %q", status))
}
