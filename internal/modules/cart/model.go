// Package cart stores the per-user shopping cart that checkout snapshots
// into an order. Cart rows are transient; the authoritative stock check
// happens at reservation time, not here.
package cart

import (
	"time"

	"github.com/google/uuid"
)

// Item is one product line in a user's cart.
type Item struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Color     string    `json:"color,omitempty"`
	Size      string    `json:"size,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ItemView is a cart line joined with its live catalog snapshot, as shown to
// the customer before checkout.
type ItemView struct {
	Item
	ProductName string `json:"product_name"`
	SKU         string `json:"sku"`
	UnitPrice   int64  `json:"unit_price"`
	LineTotal   int64  `json:"line_total"`
	InStock     bool   `json:"in_stock"`
}

// AddItemRequest is the payload for adding a product to the cart.
type AddItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
}

// UpdateItemRequest changes the quantity of an existing cart line.
type UpdateItemRequest struct {
	Quantity int `json:"quantity"`
}
