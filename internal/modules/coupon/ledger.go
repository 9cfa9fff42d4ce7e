package coupon

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/minhvo/storefront-backend/internal/modules/apperr"
)

// Ledger is the coupon business logic consumed by checkout and cancellation.
type Ledger interface {
	// Validate checks a code against the acting user and subtotal and
	// returns the discount that would apply.
	Validate(ctx context.Context, code string, subtotal int64, userID uuid.UUID) (*Discount, error)

	// RecordUsage increments the coupon counter and inserts the usage row
	// atomically within the caller's transaction.
	RecordUsage(ctx context.Context, q Querier, d *Discount, userID, orderID uuid.UUID) error

	// ReverseUsage undoes RecordUsage for an order. Reversing an order with
	// no coupon usage is a no-op, which also makes the call idempotent.
	ReverseUsage(ctx context.Context, q Querier, orderID uuid.UUID) error
}

type ledger struct {
	repo Repository
	now  func() time.Time
}

// NewLedger creates the coupon ledger.
func NewLedger(repo Repository) Ledger {
	return &ledger{repo: repo, now: time.Now}
}

func (l *ledger) Validate(ctx context.Context, code string, subtotal int64, userID uuid.UUID) (*Discount, error) {
	c, err := l.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, apperr.Validation("coupon %s is not active", c.Code)
	}

	now := l.now()
	if now.Before(c.StartsAt) || now.After(c.ExpiresAt) {
		return nil, apperr.Validation("coupon %s is outside its validity window", c.Code)
	}
	if c.MinOrderAmount != nil && subtotal < *c.MinOrderAmount {
		return nil, apperr.Validation("order subtotal below coupon minimum of %d", *c.MinOrderAmount)
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return nil, apperr.Conflict("coupon %s usage limit reached", c.Code)
	}

	used, err := l.repo.HasUserUsage(ctx, c.ID, userID)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, apperr.Conflict("coupon %s already used by this account", c.Code)
	}

	return &Discount{CouponID: c.ID, Code: c.Code, Amount: computeDiscount(c, subtotal)}, nil
}

// computeDiscount applies the coupon's discount rule. The result is clamped
// to the subtotal, which keeps the order total non-negative by construction.
func computeDiscount(c *Coupon, subtotal int64) int64 {
	var amount int64
	switch c.DiscountType {
	case DiscountPercentage:
		amount = subtotal * c.DiscountValue / 100
		if c.MaxDiscount != nil && amount > *c.MaxDiscount {
			amount = *c.MaxDiscount
		}
	case DiscountFixed:
		amount = c.DiscountValue
	}
	if amount > subtotal {
		amount = subtotal
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}

func (l *ledger) RecordUsage(ctx context.Context, q Querier, d *Discount, userID, orderID uuid.UUID) error {
	if err := l.repo.IncrementUsage(ctx, q, d.CouponID); err != nil {
		return err
	}
	return l.repo.InsertUsage(ctx, q, &Usage{
		ID:             uuid.New(),
		CouponID:       d.CouponID,
		UserID:         userID,
		OrderID:        orderID,
		DiscountAmount: d.Amount,
	})
}

func (l *ledger) ReverseUsage(ctx context.Context, q Querier, orderID uuid.UUID) error {
	couponID, found, err := l.repo.DeleteUsageByOrder(ctx, q, orderID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	return l.repo.DecrementUsage(ctx, q, couponID)
}
