package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/checkout/session"
	"github.com/stripe/stripe-go/v83/webhook"

	"storefront_back_end/internal/models"
)

var (
	ErrNoRedirectURL = errors.New("payment: checkout session has no redirect url")
	// ErrMalformedEvent marks a correctly signed event whose object cannot be decoded.
	ErrMalformedEvent = errors.New("payment: malformed event")
)

// StripeGateway creates hosted Checkout Sessions and verifies webhook deliveries.
// The API key is read from stripe.Key, which main sets once at startup.
type StripeGateway struct {
	currency string
	create   func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func NewStripeGateway(currency string) *StripeGateway {
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &StripeGateway{currency: currency, create: session.New}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req models.CheckoutSessionRequest) (*models.CheckoutSession, error) {
	params := g.sessionParams(req)
	params.Context = ctx

	s, err := g.create(params)
	if err != nil {
		return nil, err
	}
	if s.URL == "" {
		return nil, ErrNoRedirectURL
	}
	return &models.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) sessionParams(req models.CheckoutSessionRequest) *stripe.CheckoutSessionParams {
	lines := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items)+len(req.LineItems))
	for _, it := range req.Items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(it.Name),
		}
		if it.Image != "" {
			product.Images = stripe.StringSlice([]string{it.Image})
		}
		if it.Color != "" {
			product.Description = stripe.String("Color: " + it.Color)
		}
		lines = append(lines, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(g.currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(it.Price),
			},
			Quantity: stripe.Int64(int64(it.Quantity)),
		})
	}
	for _, li := range req.LineItems {
		lines = append(lines, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(g.currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(li.Name),
				},
				UnitAmount: stripe.Int64(li.Amount),
			},
			Quantity: stripe.Int64(1),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  lines,
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	return params
}

// ParseEvent verifies the Stripe-Signature header over the raw payload and decodes the event.
func (g *StripeGateway) ParseEvent(payload []byte, signature, secret string) (*models.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}

	out := &models.PaymentEvent{ID: event.ID, Type: string(event.Type)}
	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return out, nil
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("%w: decode checkout session %s: %v", ErrMalformedEvent, event.ID, err)
	}
	out.SessionID = s.ID
	out.Metadata = s.Metadata
	if s.CustomerDetails != nil {
		out.CustomerEmail = s.CustomerDetails.Email
	}
	if out.CustomerEmail == "" {
		out.CustomerEmail = s.CustomerEmail
	}
	return out, nil
}
