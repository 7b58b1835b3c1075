package models

import "time"

type Cart struct {
	UserID    string     `bson:"user_id" json:"user_id"`
	Items     []CartItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt time.Time  `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// CartItem is keyed by (ProductID, Color). An empty Color means no variant was selected.
type CartItem struct {
	ProductID string `bson:"product_id" json:"product_id"`
	Name      string `bson:"name" json:"name"`
	Price     int64  `bson:"price" json:"price"`
	Image     string `bson:"image" json:"image"`
	Quantity  int    `bson:"quantity" json:"quantity"`
	Color     string `bson:"color" json:"color"`
}

func EmptyCart(userID string) *Cart {
	return &Cart{UserID: userID, Items: []CartItem{}}
}

func (c *Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) Subtotal() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.Price * int64(it.Quantity)
	}
	return total
}
