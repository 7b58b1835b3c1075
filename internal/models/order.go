package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          string             `bson:"user_id" json:"user_id"`
	Items           []OrderItem        `bson:"items" json:"items"`
	LineItems       []LineItem         `bson:"line_items" json:"line_items"`
	Total           int64              `bson:"total" json:"total"`
	Status          OrderStatus        `bson:"status" json:"status"`
	StripeSessionID string             `bson:"stripe_session_id,omitempty" json:"stripe_session_id,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}

type OrderItem struct {
	ProductID string `bson:"product_id" json:"product_id"`
	Name      string `bson:"name" json:"name"`
	Price     int64  `bson:"price" json:"price"`
	Image     string `bson:"image" json:"image"`
	Quantity  int    `bson:"quantity" json:"quantity"`
	Color     string `bson:"color" json:"color"`
}

// LineItem is an extra non-catalog charge such as shipping.
type LineItem struct {
	Name   string `bson:"name" json:"name"`
	Amount int64  `bson:"amount" json:"amount"`
}

// ComputeTotal sums price*quantity over items plus every line item amount.
func ComputeTotal(items []OrderItem, lineItems []LineItem) int64 {
	var total int64
	for _, it := range items {
		total += it.Price * int64(it.Quantity)
	}
	for _, li := range lineItems {
		total += li.Amount
	}
	return total
}
