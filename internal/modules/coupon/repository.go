package coupon

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// Querier is the subset of *sql.DB / *sql.Tx the usage mutations need, so
// they can join the order transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Repository defines data access for coupons and their usage records.
type Repository interface {
	// GetByCode fetches a coupon by its case-normalised code.
	GetByCode(ctx context.Context, code string) (*Coupon, error)

	// HasUserUsage reports whether the user has already redeemed the coupon.
	HasUserUsage(ctx context.Context, couponID, userID uuid.UUID) (bool, error)

	// IncrementUsage bumps used_count, failing with a conflict error when
	// the usage limit is exhausted. The guard and the increment are one
	// statement so racing checkouts cannot overshoot the limit.
	IncrementUsage(ctx context.Context, q Querier, couponID uuid.UUID) error

	// InsertUsage records the per-order usage row.
	InsertUsage(ctx context.Context, q Querier, u *Usage) error

	// DeleteUsageByOrder removes the usage row for an order, returning the
	// coupon it referenced. found is false when the order used no coupon.
	DeleteUsageByOrder(ctx context.Context, q Querier, orderID uuid.UUID) (couponID uuid.UUID, found bool, err error)

	// DecrementUsage reverses one use on the counter.
	DecrementUsage(ctx context.Context, q Querier, couponID uuid.UUID) error
}
