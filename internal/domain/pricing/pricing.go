// Package pricing holds the derived-value formulas for cart and order
// totals. Totals are always recomputed from live inputs, never stored,
// so they cannot go stale against catalog price changes.
package pricing

import "github.com/shopspring/decimal"

var (
	// TaxRate is the flat sales-tax multiplier applied to the subtotal.
	TaxRate = decimal.NewFromFloat(0.08)

	// FlatShipping is charged when the subtotal does not exceed
	// FreeShippingThreshold.
	FlatShipping = decimal.NewFromFloat(5.99)

	// FreeShippingThreshold is the exclusive subtotal bound above which
	// shipping is free.
	FreeShippingThreshold = decimal.NewFromInt(30)
)

type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// PricedLine is the minimal shape Compute needs: a quantity and the unit
// price in effect for it.
type PricedLine struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// Compute derives subtotal, tax, shipping, and total for the given
// lines. An empty input yields all-zero totals.
func Compute(lines []PricedLine) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	tax := subtotal.Mul(TaxRate)

	shipping := decimal.Zero
	if subtotal.IsPositive() && subtotal.Cmp(FreeShippingThreshold) <= 0 {
		shipping = FlatShipping
	}

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}
}
