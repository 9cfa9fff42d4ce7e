package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeQuote_FreeShippingAndTax(t *testing.T) {
	// One item priced 500,000 x2: subtotal 1,000,000, free shipping, 10% tax.
	q := ComputeQuote([]PricedLine{{UnitPrice: 500_000, Quantity: 2}}, 0, DefaultPricingConfig())

	assert.Equal(t, int64(1_000_000), q.Subtotal)
	assert.Equal(t, int64(0), q.Shipping)
	assert.Equal(t, int64(100_000), q.Tax)
	assert.Equal(t, int64(1_100_000), q.Total)
}

func TestComputeQuote_FlatShippingBelowThreshold(t *testing.T) {
	q := ComputeQuote([]PricedLine{{UnitPrice: 100_000, Quantity: 1}}, 0, DefaultPricingConfig())

	assert.Equal(t, int64(100_000), q.Subtotal)
	assert.Equal(t, int64(30_000), q.Shipping)
	assert.Equal(t, int64(10_000), q.Tax)
	assert.Equal(t, int64(140_000), q.Total)
}

func TestComputeQuote_DiscountClampedToSubtotal(t *testing.T) {
	q := ComputeQuote([]PricedLine{{UnitPrice: 50_000, Quantity: 1}}, 200_000, DefaultPricingConfig())

	assert.Equal(t, int64(50_000), q.Discount)
	assert.Equal(t, int64(50_000+5_000+30_000-50_000), q.Total)
	assert.GreaterOrEqual(t, q.Total, int64(0))
}

func TestComputeQuote_NegativeDiscountIgnored(t *testing.T) {
	q := ComputeQuote([]PricedLine{{UnitPrice: 10_000, Quantity: 3}}, -5_000, DefaultPricingConfig())
	assert.Equal(t, int64(0), q.Discount)
}

func TestComputeQuote_TotalIdentity(t *testing.T) {
	lines := []PricedLine{
		{UnitPrice: 123_456, Quantity: 3},
		{UnitPrice: 9_999, Quantity: 7},
	}
	for _, discount := range []int64{0, 10_000, 999_999_999} {
		q := ComputeQuote(lines, discount, DefaultPricingConfig())
		assert.Equal(t, q.Subtotal+q.Tax+q.Shipping-q.Discount, q.Total)
		assert.GreaterOrEqual(t, q.Total, int64(0))
	}
}

func TestComputeQuote_EmptyLines(t *testing.T) {
	q := ComputeQuote(nil, 10_000, DefaultPricingConfig())
	assert.Equal(t, int64(0), q.Subtotal)
	assert.Equal(t, int64(0), q.Discount)
	assert.Equal(t, int64(30_000), q.Total) // only the shipping fee remains
}
