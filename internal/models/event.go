package models

import "time"

const (
	EventOrderCreated   = "order.created"
	EventOrderCancelled = "order.cancelled"
	EventOrderConfirmed = "order.confirmed"
)

type OrderEvent struct {
	EventID   string      `json:"event_id"`
	Type      string      `json:"type"`
	OrderID   string      `json:"order_id"`
	UserID    string      `json:"user_id"`
	Status    OrderStatus `json:"status"`
	Total     int64       `json:"total"`
	CreatedAt time.Time   `json:"created_at"`
}
