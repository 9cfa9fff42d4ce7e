// Package catalog is the narrow contract this backend holds against the
// product catalog: price/stock/active-flag lookup plus the stock ledger that
// order transactions reserve and restore inventory through. Catalog
// management itself (products, categories, brands) lives elsewhere.
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Product is the catalog snapshot consumed at checkout time. Monetary values
// are integer minor units.
type Product struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Price     int64     `json:"price"`
	SalePrice *int64    `json:"sale_price,omitempty"`
	Stock     int       `json:"stock"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectivePrice returns the sale price when one is set, the list price
// otherwise.
func (p *Product) EffectivePrice() int64 {
	if p.SalePrice != nil && *p.SalePrice > 0 && *p.SalePrice < p.Price {
		return *p.SalePrice
	}
	return p.Price
}
