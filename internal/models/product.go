package models

import "time"

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Image       string    `json:"image"`
	Colors      []string  `json:"colors"`
	Category    string    `json:"category"`
	Company     string    `json:"company"`
	Featured    bool      `json:"featured"`
	Shipping    bool      `json:"shipping"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProductFilter narrows a catalog listing. A nil Featured lists everything.
type ProductFilter struct {
	Limit    int
	Featured *bool
}

func (f ProductFilter) Match(p Product) bool {
	return f.Featured == nil || p.Featured == *f.Featured
}

func (p *Product) HasColor(color string) bool {
	for _, c := range p.Colors {
		if c == color {
			return true
		}
	}
	return false
}
