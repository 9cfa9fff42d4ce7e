package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvo/storefront-backend/internal/modules/apperr"
)

type fakeRepo struct {
	coupons    map[string]*Coupon
	userUsed   bool
	increments int
	decrements int
	inserted   []*Usage
	usageOrder map[uuid.UUID]uuid.UUID // orderID -> couponID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{coupons: map[string]*Coupon{}, usageOrder: map[uuid.UUID]uuid.UUID{}}
}

func (f *fakeRepo) GetByCode(_ context.Context, code string) (*Coupon, error) {
	c, ok := f.coupons[code]
	if !ok {
		return nil, apperr.NotFound("coupon %s not found", code)
	}
	return c, nil
}

func (f *fakeRepo) HasUserUsage(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return f.userUsed, nil
}

func (f *fakeRepo) IncrementUsage(_ context.Context, _ Querier, couponID uuid.UUID) error {
	for _, c := range f.coupons {
		if c.ID == couponID {
			if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
				return apperr.Conflict("coupon usage limit reached")
			}
			c.UsedCount++
		}
	}
	f.increments++
	return nil
}

func (f *fakeRepo) InsertUsage(_ context.Context, _ Querier, u *Usage) error {
	f.inserted = append(f.inserted, u)
	f.usageOrder[u.OrderID] = u.CouponID
	return nil
}

func (f *fakeRepo) DeleteUsageByOrder(_ context.Context, _ Querier, orderID uuid.UUID) (uuid.UUID, bool, error) {
	couponID, ok := f.usageOrder[orderID]
	if !ok {
		return uuid.Nil, false, nil
	}
	delete(f.usageOrder, orderID)
	return couponID, true, nil
}

func (f *fakeRepo) DecrementUsage(_ context.Context, _ Querier, _ uuid.UUID) error {
	f.decrements++
	return nil
}

func testCoupon(code string) *Coupon {
	return &Coupon{
		ID:            uuid.New(),
		Code:          code,
		DiscountType:  DiscountPercentage,
		DiscountValue: 10,
		IsActive:      true,
		StartsAt:      time.Now().Add(-24 * time.Hour),
		ExpiresAt:     time.Now().Add(24 * time.Hour),
	}
}

func newTestLedger(repo *fakeRepo) *ledger {
	return &ledger{repo: repo, now: time.Now}
}

func TestValidate_PercentageClampedToCap(t *testing.T) {
	repo := newFakeRepo()
	c := testCoupon("SAVE10")
	cap := int64(50_000)
	c.MaxDiscount = &cap
	repo.coupons["SAVE10"] = c

	d, err := newTestLedger(repo).Validate(context.Background(), "SAVE10", 1_000_000, uuid.New())

	require.NoError(t, err)
	assert.Equal(t, int64(50_000), d.Amount) // 10% of 1,000,000 clamped to the cap
	assert.Equal(t, c.ID, d.CouponID)
}

func TestValidate_FixedNeverExceedsSubtotal(t *testing.T) {
	repo := newFakeRepo()
	c := testCoupon("FLAT200")
	c.DiscountType = DiscountFixed
	c.DiscountValue = 200_000
	repo.coupons["FLAT200"] = c

	d, err := newTestLedger(repo).Validate(context.Background(), "FLAT200", 150_000, uuid.New())

	require.NoError(t, err)
	assert.Equal(t, int64(150_000), d.Amount)
}

func TestValidate_UnknownCode(t *testing.T) {
	_, err := newTestLedger(newFakeRepo()).Validate(context.Background(), "NOPE", 100_000, uuid.New())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestValidate_Inactive(t *testing.T) {
	repo := newFakeRepo()
	c := testCoupon("OFF")
	c.IsActive = false
	repo.coupons["OFF"] = c

	_, err := newTestLedger(repo).Validate(context.Background(), "OFF", 100_000, uuid.New())
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestValidate_OutsideWindow(t *testing.T) {
	repo := newFakeRepo()
	c := testCoupon("EXPIRED")
	c.ExpiresAt = time.Now().Add(-time.Hour)
	repo.coupons["EXPIRED"] = c

	_, err := newTestLedger(repo).Validate(context.Background(), "EXPIRED", 100_000, uuid.New())
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestValidate_BelowMinimum(t *testing.T) {
	repo := newFakeRepo()
	c := testCoupon("MIN")
	min := int64(500_000)
	c.MinOrderAmount = &min
	repo.coupons["MIN"] = c

	_, err := newTestLedger(repo).Validate(context.Background(), "MIN", 100_000, uuid.New())
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestValidate_UsageLimitExhausted(t *testing.T) {
	repo := newFakeRepo()
	c := testCoupon("LIMITED")
	limit := 3
	c.UsageLimit = &limit
	c.UsedCount = 3
	repo.coupons["LIMITED"] = c

	_, err := newTestLedger(repo).Validate(context.Background(), "LIMITED", 100_000, uuid.New())
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestValidate_AlreadyUsedByUser(t *testing.T) {
	repo := newFakeRepo()
	repo.coupons["ONCE"] = testCoupon("ONCE")
	repo.userUsed = true

	_, err := newTestLedger(repo).Validate(context.Background(), "ONCE", 100_000, uuid.New())
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestRecordUsage_LimitRace(t *testing.T) {
	repo := newFakeRepo()
	c := testCoupon("LAST")
	limit := 1
	c.UsageLimit = &limit
	c.UsedCount = 1 // another checkout grabbed the last use after Validate
	repo.coupons["LAST"] = c

	err := newTestLedger(repo).RecordUsage(context.Background(), nil,
		&Discount{CouponID: c.ID, Code: c.Code, Amount: 10_000}, uuid.New(), uuid.New())

	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Empty(t, repo.inserted)
}

func TestReverseUsage_Idempotent(t *testing.T) {
	repo := newFakeRepo()
	c := testCoupon("REV")
	repo.coupons["REV"] = c
	l := newTestLedger(repo)
	orderID := uuid.New()

	err := l.RecordUsage(context.Background(), nil,
		&Discount{CouponID: c.ID, Code: c.Code, Amount: 10_000}, uuid.New(), orderID)
	require.NoError(t, err)

	require.NoError(t, l.ReverseUsage(context.Background(), nil, orderID))
	assert.Equal(t, 1, repo.decrements)

	// Second reversal finds no usage row and must be a no-op.
	require.NoError(t, l.ReverseUsage(context.Background(), nil, orderID))
	assert.Equal(t, 1, repo.decrements)
}

func TestComputeDiscount_NegativeValueFloored(t *testing.T) {
	c := testCoupon("NEG")
	c.DiscountType = DiscountFixed
	c.DiscountValue = -500
	assert.Equal(t, int64(0), computeDiscount(c, 100_000))
}
