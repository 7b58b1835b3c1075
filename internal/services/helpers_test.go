package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stripe/stripe-go/v83/webhook"

	"storefront_back_end/internal/apperr"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/payment"
	"storefront_back_end/internal/store/memstore"
)

const webhookSecret = "whsec_services_test"

// fakeGateway verifies webhooks with the real Stripe code and records checkout sessions.
type fakeGateway struct {
	*payment.StripeGateway

	mu       sync.Mutex
	requests []models.CheckoutSessionRequest
	err      error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{StripeGateway: payment.NewStripeGateway("usd")}
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req models.CheckoutSessionRequest) (*models.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.requests = append(g.requests, req)
	n := len(g.requests)
	return &models.CheckoutSession{
		ID:  fmt.Sprintf("cs_test_%d", n),
		URL: fmt.Sprintf("https://checkout.stripe.test/c/pay/cs_test_%d", n),
	}, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []string
}

func (n *recordingNotifier) Publish(_ context.Context, userID, change string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, userID+":"+change)
	return nil
}

func (n *recordingNotifier) list() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.changes...)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []models.OrderEvent
}

func (e *recordingEvents) Publish(_ context.Context, ev models.OrderEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *recordingEvents) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *recordingMailer) SendOrderConfirmation(_ context.Context, to string, order models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+":"+order.ID.Hex())
	return nil
}

type fakeReceipts struct {
	mu       sync.Mutex
	archived []models.Order
}

func (r *fakeReceipts) Archive(_ context.Context, order models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.archived = append(r.archived, order)
	return nil
}

func (r *fakeReceipts) URL(_ context.Context, order models.Order) (string, error) {
	return "https://receipts.test/" + order.ID.Hex(), nil
}

var testProducts = []models.Product{
	{ID: "p1", Name: "Mug", Price: 1200, Image: "mug.png", Colors: []string{"red", "blue"}, Stock: 20},
	{ID: "p2", Name: "Poster", Price: 2500, Image: "poster.png", Stock: 1},
	{ID: "p3", Name: "Sticker", Price: 300, Stock: 100},
	{ID: "p4", Name: "Tote", Price: 1800, Stock: 100},
	{ID: "p5", Name: "Cap", Price: 2200, Stock: 100},
	{ID: "p6", Name: "Pin", Price: 500, Stock: 100},
}

type fixture struct {
	carts    *memstore.CartStore
	orders   *memstore.OrderStore
	catalog  *memstore.Catalog
	gateway  *fakeGateway
	notifier *recordingNotifier
	events   *recordingEvents
	mailer   *recordingMailer
	receipts *fakeReceipts

	cart     *CartService
	checkout *CheckoutService
	payment  *PaymentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		carts:    memstore.NewCartStore(),
		orders:   memstore.NewOrderStore(),
		catalog:  memstore.NewCatalog(testProducts...),
		gateway:  newFakeGateway(),
		notifier: &recordingNotifier{},
		events:   &recordingEvents{},
		mailer:   &recordingMailer{},
		receipts: &fakeReceipts{},
	}
	f.cart = NewCartService(CartDeps{
		Carts:    f.carts,
		Catalog:  f.catalog,
		Notifier: f.notifier,
	}, CartConfig{MaxItems: 5, MaxItemQuantity: 10})
	f.checkout = NewCheckoutService(CheckoutDeps{
		Carts:    f.carts,
		Orders:   f.orders,
		Catalog:  f.catalog,
		Gateway:  f.gateway,
		Events:   f.events,
		Receipts: f.receipts,
	}, CheckoutConfig{ClientURL: "https://shop.test"})
	f.payment = NewPaymentService(PaymentDeps{
		Carts:    f.carts,
		Orders:   f.orders,
		Gateway:  f.gateway,
		Notifier: f.notifier,
		Events:   f.events,
		Mailer:   f.mailer,
		Receipts: f.receipts,
	}, webhookSecret)
	f.payment.goAsync = func(fn func()) { fn() }
	return f
}

func (f *fixture) mustAdd(t *testing.T, userID, productID string, qty int, color string) {
	t.Helper()
	if _, err := f.cart.AddItem(context.Background(), userID, productID, qty, color); err != nil {
		t.Fatalf("AddItem(%s, %d, %q): %v", productID, qty, color, err)
	}
}

func sessionCompleted(orderID, userID, sessionID string) string {
	return fmt.Sprintf(`{
  "id": "evt_%s",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {"object": {
    "id": %q,
    "object": "checkout.session",
    "metadata": {"orderId": %q, "userId": %q},
    "customer_details": {"email": "buyer@example.com"}
  }}
}`, sessionID, sessionID, orderID, userID)
}

func sign(payload string) ([]byte, string) {
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(payload),
		Secret:  webhookSecret,
	})
	return sp.Payload, sp.Header
}

func wantKind(t *testing.T, err error, kind apperr.Kind, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error %q, got nil", kind, msg)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("kind = %s, want %s (err: %v)", got, kind, err)
	}
	if msg != "" && err.Error() != msg {
		t.Fatalf("message = %q, want %q", err.Error(), msg)
	}
}

var errGateway = errors.New("stripe: connection reset")
