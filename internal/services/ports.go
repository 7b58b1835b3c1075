package services

import (
	"context"

	"go.opentelemetry.io/otel"

	"storefront_back_end/internal/models"
)

var tracer = otel.Tracer("storefront_back_end/internal/services")

type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req models.CheckoutSessionRequest) (*models.CheckoutSession, error)
	ParseEvent(payload []byte, signature, secret string) (*models.PaymentEvent, error)
}

// CartNotifier tells connected clients that a user's cart changed.
type CartNotifier interface {
	Publish(ctx context.Context, userID, change string) error
}

type OrderEventPublisher interface {
	Publish(ctx context.Context, ev models.OrderEvent) error
}

type ConfirmationMailer interface {
	SendOrderConfirmation(ctx context.Context, to string, order models.Order) error
}

type ReceiptStore interface {
	Archive(ctx context.Context, order models.Order) error
	URL(ctx context.Context, order models.Order) (string, error)
}

func orderEvent(typ string, o *models.Order) models.OrderEvent {
	return models.OrderEvent{
		Type:    typ,
		OrderID: o.ID.Hex(),
		UserID:  o.UserID,
		Status:  o.Status,
		Total:   o.Total,
	}
}
