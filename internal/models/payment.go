package models

const EventCheckoutSessionCompleted = "checkout.session.completed"

// Metadata keys attached to every checkout session.
const (
	MetadataOrderID = "orderId"
	MetadataUserID  = "userId"
)

type CheckoutSessionRequest struct {
	Items      []OrderItem
	LineItems  []LineItem
	Metadata   map[string]string
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// PaymentEvent is a verified provider callback reduced to the fields the order flow reads.
type PaymentEvent struct {
	ID            string
	Type          string
	SessionID     string
	Metadata      map[string]string
	CustomerEmail string
}
