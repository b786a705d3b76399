package cart

import "time"

// Item is one cart line for a user. Quantity is the only client-owned
// value; price and name are joined in from the live catalog at read time,
// never stored here.
type Item struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"-"`
	ProductID uint      `json:"productId"`
	VariantID *string   `json:"variantId,omitempty"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Line is a cart item enriched with catalog data for display.
type Line struct {
	Item
	Name           string `json:"name"`
	UnitPricePaise int64  `json:"unitPrice"`
	Stock          int    `json:"stock"`
	LineTotalPaise int64  `json:"lineTotal"`
}
