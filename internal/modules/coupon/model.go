// Package coupon implements the promotional-coupon ledger: validation,
// discount computation, and the usage counter + per-order usage record pair
// that keeps a coupon from being applied beyond its configured limit.
package coupon

import (
	"time"

	"github.com/google/uuid"
)

// DiscountType distinguishes percentage coupons from flat-amount ones.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Coupon is a promotional code definition. DiscountValue is a percentage
// (0-100) for percentage coupons and an amount in minor units for fixed
// ones. UsedCount is mutated only through the ledger's atomic
// increment/decrement.
type Coupon struct {
	ID             uuid.UUID    `json:"id"`
	Code           string       `json:"code"`
	DiscountType   DiscountType `json:"discount_type"`
	DiscountValue  int64        `json:"discount_value"`
	MinOrderAmount *int64       `json:"min_order_amount,omitempty"`
	MaxDiscount    *int64       `json:"max_discount,omitempty"`
	UsageLimit     *int         `json:"usage_limit,omitempty"`
	UsedCount      int          `json:"used_count"`
	IsActive       bool         `json:"is_active"`
	StartsAt       time.Time    `json:"starts_at"`
	ExpiresAt      time.Time    `json:"expires_at"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Usage is the per-order record of an applied coupon. One row per order;
// removed (with the counter decremented) when that order is cancelled.
type Usage struct {
	ID             uuid.UUID `json:"id"`
	CouponID       uuid.UUID `json:"coupon_id"`
	UserID         uuid.UUID `json:"user_id"`
	OrderID        uuid.UUID `json:"order_id"`
	DiscountAmount int64     `json:"discount_amount"`
	CreatedAt      time.Time `json:"created_at"`
}

// Discount is the outcome of a successful validation.
type Discount struct {
	CouponID uuid.UUID `json:"coupon_id"`
	Code     string    `json:"code"`
	Amount   int64     `json:"amount"`
}
