package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront_back_end/internal/apperr"
	"storefront_back_end/internal/cache"
	"storefront_back_end/internal/logger"
	"storefront_back_end/internal/metrics"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/payment"
	"storefront_back_end/internal/repository"
)

type PaymentDeps struct {
	Carts    repository.CartStore
	Orders   repository.OrderStore
	Gateway  PaymentGateway
	Notifier CartNotifier
	Events   OrderEventPublisher
	Mailer   ConfirmationMailer
	Receipts ReceiptStore
	Log      *zap.Logger
	Metrics  *metrics.Metrics
}

type PaymentService struct {
	carts         repository.CartStore
	orders        repository.OrderStore
	gateway       PaymentGateway
	notifier      CartNotifier
	events        OrderEventPublisher
	mailer        ConfirmationMailer
	receipts      ReceiptStore
	webhookSecret string
	log           *zap.Logger
	metrics       *metrics.Metrics

	// goAsync runs post-confirmation side effects off the request path.
	goAsync func(func())
}

func NewPaymentService(d PaymentDeps, webhookSecret string) *PaymentService {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &PaymentService{
		carts:         d.Carts,
		orders:        d.Orders,
		gateway:       d.Gateway,
		notifier:      d.Notifier,
		events:        d.Events,
		mailer:        d.Mailer,
		receipts:      d.Receipts,
		webhookSecret: webhookSecret,
		log:           d.Log,
		metrics:       d.Metrics,
		goAsync:       func(f func()) { go f() },
	}
}

// HandleWebhook verifies a payment provider callback and confirms the order it refers to.
// Only a bad signature is reported to the caller; every other reason not to act is logged
// and acknowledged so the provider stops redelivering.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ctx, span := tracer.Start(ctx, "PaymentService.HandleWebhook")
	defer span.End()

	outcome, err := s.handleWebhook(ctx, payload, signature)
	s.metrics.WebhookEvent(outcome)
	span.SetAttributes(attribute.String("outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	return err
}

func (s *PaymentService) handleWebhook(ctx context.Context, payload []byte, signature string) (string, error) {
	log := logger.FromContext(ctx, s.log)

	if signature == "" {
		return "missing_signature", apperr.InvalidArgument("missing stripe-signature header")
	}
	event, err := s.gateway.ParseEvent(payload, signature, s.webhookSecret)
	if errors.Is(err, payment.ErrMalformedEvent) {
		log.Warn("signed webhook event could not be decoded", zap.Error(err))
		return "malformed", nil
	}
	if err != nil {
		log.Warn("webhook signature rejected", zap.Error(err))
		return "invalid_signature", apperr.InvalidArgument("invalid webhook signature")
	}

	log = log.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))
	if event.Type != models.EventCheckoutSessionCompleted {
		log.Debug("webhook event ignored")
		return "ignored", nil
	}

	orderID := event.Metadata[models.MetadataOrderID]
	userID := event.Metadata[models.MetadataUserID]
	if orderID == "" || userID == "" {
		log.Warn("checkout session without order metadata", zap.String("session_id", event.SessionID))
		return "malformed", nil
	}
	log = log.With(zap.String("order_id", orderID), zap.String("user_id", userID))
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("order_id", orderID))

	id, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		log.Warn("checkout session with invalid order id")
		return "malformed", nil
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return "error", err
	}
	if order == nil {
		log.Warn("checkout session for unknown order")
		return "unknown_order", nil
	}
	if order.UserID != userID {
		log.Warn("checkout session user does not own order", zap.String("owner_id", order.UserID))
		return "user_mismatch", nil
	}
	if order.StripeSessionID != "" {
		log.Info("checkout session already processed", zap.String("session_id", order.StripeSessionID))
		return "duplicate", nil
	}

	applied, err := s.orders.ConfirmPayment(ctx, userID, id, event.SessionID)
	if err != nil {
		return "error", err
	}
	if !applied {
		outcome := "not_pending"
		if current, err := s.orders.FindByID(ctx, id); err == nil && current != nil && current.StripeSessionID != "" {
			outcome = "duplicate"
		}
		log.Info("order not confirmed", zap.String("reason", outcome), zap.String("status", string(order.Status)))
		return outcome, nil
	}

	order.Status = models.OrderConfirmed
	order.StripeSessionID = event.SessionID
	order.UpdatedAt = time.Now().UTC()
	log.Info("order confirmed", zap.String("session_id", event.SessionID), zap.Int64("total", order.Total))

	if _, err := s.carts.Clear(ctx, userID); err != nil {
		log.Error("cart clear after confirmation failed", zap.Error(err))
	} else if s.notifier != nil {
		if err := s.notifier.Publish(ctx, userID, cache.CartCleared); err != nil {
			log.Warn("cart change publish failed", zap.Error(err))
		}
	}

	s.afterConfirm(context.WithoutCancel(ctx), *order, event.CustomerEmail)
	return "confirmed", nil
}

func (s *PaymentService) afterConfirm(ctx context.Context, order models.Order, email string) {
	log := logger.FromContext(ctx, s.log)

	if s.events != nil {
		if err := s.events.Publish(ctx, orderEvent(models.EventOrderConfirmed, &order)); err != nil {
			log.Warn("order event publish failed", zap.Error(err))
		}
	}
	if s.receipts == nil && (s.mailer == nil || email == "") {
		return
	}

	s.goAsync(func() {
		var errs []error
		if s.receipts != nil {
			if err := s.receipts.Archive(ctx, order); err != nil {
				errs = append(errs, err)
			}
		}
		if s.mailer != nil && email != "" {
			if err := s.mailer.SendOrderConfirmation(ctx, email, order); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			log.Error("post-confirmation side effect failed", zap.String("order_id", order.ID.Hex()), zap.Error(err))
		}
	})
}
