// Package pricing derives the monetary totals of an order from its line items.
package pricing

import (
	"github.com/shopspring/decimal"
)

// Config holds the pricing constants. They are fixed for the lifetime of the
// process.
type Config struct {
	// TaxRate is applied to the items price (Colombian IVA).
	TaxRate decimal.Decimal
	// FreeShippingOver is the items price above which shipping is free.
	FreeShippingOver decimal.Decimal
	// ShippingFee is the flat fee charged at or below FreeShippingOver.
	ShippingFee decimal.Decimal
}

// DefaultConfig returns the marketplace defaults: 19% tax, free shipping over
// 100000, otherwise 10000.
func DefaultConfig() Config {
	return Config{
		TaxRate:          decimal.RequireFromString("0.19"),
		FreeShippingOver: decimal.NewFromInt(100000),
		ShippingFee:      decimal.NewFromInt(10000),
	}
}

// Line is a priced quantity.
type Line struct {
	Price    decimal.Decimal
	Quantity int
}

// Totals are the derived prices of an order.
// TotalPrice always equals ItemsPrice + TaxPrice + ShippingPrice.
type Totals struct {
	ItemsPrice    decimal.Decimal
	TaxPrice      decimal.Decimal
	ShippingPrice decimal.Decimal
	TotalPrice    decimal.Decimal
}

// Calculator computes Totals with a fixed Config.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a Calculator.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Calculate returns the totals for lines.
func (c *Calculator) Calculate(lines []Line) Totals {
	items := subtotal(lines)

	// Whole currency units, no fractional cents.
	tax := items.Mul(c.cfg.TaxRate).Round(0)

	shipping := c.cfg.ShippingFee
	if items.GreaterThan(c.cfg.FreeShippingOver) {
		shipping = decimal.Zero
	}

	return Totals{
		ItemsPrice:    items,
		TaxPrice:      tax,
		ShippingPrice: shipping,
		TotalPrice:    items.Add(tax).Add(shipping),
	}
}

// subtotal returns the sum of price * quantity across all lines.
func subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}
