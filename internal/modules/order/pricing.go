package order

// PricingConfig holds the storefront-wide pricing knobs. Values are integer
// minor units except the tax rate, expressed in basis points to keep the
// arithmetic integral.
type PricingConfig struct {
	TaxRateBasisPoints    int64 // e.g. 1000 = 10%
	FreeShippingThreshold int64 // subtotal at or above this ships free
	FlatShippingFee       int64
}

// DefaultPricingConfig mirrors the storefront defaults: 10% tax, free
// shipping from 500,000, flat 30,000 fee below that.
func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		TaxRateBasisPoints:    1000,
		FreeShippingThreshold: 500_000,
		FlatShippingFee:       30_000,
	}
}

// PricedLine is one (unit price, quantity) pair fed into the quote.
type PricedLine struct {
	UnitPrice int64
	Quantity  int
}

// Quote is the computed monetary breakdown of an order.
type Quote struct {
	Subtotal int64 `json:"subtotal"`
	Tax      int64 `json:"tax"`
	Shipping int64 `json:"shipping"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

// ComputeQuote prices an order: subtotal is the sum of the lines, tax applies
// to the subtotal, shipping is waived at the free-shipping threshold, and the
// discount is clamped to the subtotal so the total can never go negative.
// Pure function, no side effects.
func ComputeQuote(lines []PricedLine, discount int64, cfg PricingConfig) Quote {
	var subtotal int64
	for _, l := range lines {
		subtotal += l.UnitPrice * int64(l.Quantity)
	}

	if discount < 0 {
		discount = 0
	}
	if discount > subtotal {
		discount = subtotal
	}

	tax := subtotal * cfg.TaxRateBasisPoints / 10_000

	shipping := cfg.FlatShippingFee
	if subtotal >= cfg.FreeShippingThreshold {
		shipping = 0
	}

	return Quote{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Discount: discount,
		Total:    subtotal + tax + shipping - discount,
	}
}
