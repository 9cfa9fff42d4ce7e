package coupon

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/minhvo/storefront-backend/internal/modules/apperr"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) GetByCode(ctx context.Context, code string) (*Coupon, error) {
	c := &Coupon{}
	var minAmount, maxDiscount sql.NullInt64
	var usageLimit sql.NullInt32
	err := r.db.QueryRowContext(ctx, `
		SELECT id, code, discount_type, discount_value, min_order_amount, max_discount,
		       usage_limit, used_count, is_active, starts_at, expires_at, created_at, updated_at
		FROM coupons WHERE code=$1`, strings.ToUpper(strings.TrimSpace(code))).
		Scan(&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &minAmount, &maxDiscount,
			&usageLimit, &c.UsedCount, &c.IsActive, &c.StartsAt, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("coupon %s not found", code)
	}
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	if minAmount.Valid {
		c.MinOrderAmount = &minAmount.Int64
	}
	if maxDiscount.Valid {
		c.MaxDiscount = &maxDiscount.Int64
	}
	if usageLimit.Valid {
		limit := int(usageLimit.Int32)
		c.UsageLimit = &limit
	}
	return c, nil
}

func (r *postgresRepo) HasUserUsage(ctx context.Context, couponID, userID uuid.UUID) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM coupon_usage WHERE coupon_id=$1 AND user_id=$2`,
		couponID, userID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count coupon usage: %w", err)
	}
	return count > 0, nil
}

func (r *postgresRepo) IncrementUsage(ctx context.Context, q Querier, couponID uuid.UUID) error {
	res, err := q.ExecContext(ctx, `
		UPDATE coupons SET used_count = used_count + 1, updated_at = NOW()
		WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`, couponID)
	if err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}
	if affected == 0 {
		return apperr.Conflict("coupon usage limit reached")
	}
	return nil
}

func (r *postgresRepo) InsertUsage(ctx context.Context, q Querier, u *Usage) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO coupon_usage (id, coupon_id, user_id, order_id, discount_amount)
		VALUES ($1,$2,$3,$4,$5)`,
		u.ID, u.CouponID, u.UserID, u.OrderID, u.DiscountAmount)
	if err != nil {
		return fmt.Errorf("insert coupon usage: %w", err)
	}
	return nil
}

func (r *postgresRepo) DeleteUsageByOrder(ctx context.Context, q Querier, orderID uuid.UUID) (uuid.UUID, bool, error) {
	var couponID uuid.UUID
	err := q.QueryRowContext(ctx, `
		DELETE FROM coupon_usage WHERE order_id=$1 RETURNING coupon_id`, orderID).
		Scan(&couponID)
	if err == sql.ErrNoRows {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("delete coupon usage: %w", err)
	}
	return couponID, true, nil
}

func (r *postgresRepo) DecrementUsage(ctx context.Context, q Querier, couponID uuid.UUID) error {
	_, err := q.ExecContext(ctx, `
		UPDATE coupons SET used_count = GREATEST(used_count - 1, 0), updated_at = NOW()
		WHERE id = $1`, couponID)
	if err != nil {
		return fmt.Errorf("decrement coupon usage: %w", err)
	}
	return nil
}
