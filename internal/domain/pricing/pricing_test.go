package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculator_Calculate(t *testing.T) {
	tests := []struct {
		name         string
		lines        []Line
		wantItems    string
		wantTax      string
		wantShipping string
		wantTotal    string
	}{
		{
			name:         "under free shipping threshold",
			lines:        []Line{{Price: dec("45000"), Quantity: 2}},
			wantItems:    "90000",
			wantTax:      "17100",
			wantShipping: "10000",
			wantTotal:    "117100",
		},
		{
			name: "over free shipping threshold",
			lines: []Line{
				{Price: dec("100000"), Quantity: 1},
				{Price: dec("25000"), Quantity: 2},
			},
			wantItems:    "150000",
			wantTax:      "28500",
			wantShipping: "0",
			wantTotal:    "178500",
		},
		{
			name:         "exactly at threshold still pays shipping",
			lines:        []Line{{Price: dec("100000"), Quantity: 1}},
			wantItems:    "100000",
			wantTax:      "19000",
			wantShipping: "10000",
			wantTotal:    "129000",
		},
		{
			name:         "tax rounded to whole units",
			lines:        []Line{{Price: dec("12345"), Quantity: 1}},
			wantItems:    "12345",
			wantTax:      "2346",
			wantShipping: "10000",
			wantTotal:    "24691",
		},
		{
			name:         "no lines",
			wantItems:    "0",
			wantTax:      "0",
			wantShipping: "10000",
			wantTotal:    "10000",
		},
	}

	calc := NewCalculator(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Calculate(tt.lines)

			assert.True(t, dec(tt.wantItems).Equal(got.ItemsPrice), "items: got %s", got.ItemsPrice)
			assert.True(t, dec(tt.wantTax).Equal(got.TaxPrice), "tax: got %s", got.TaxPrice)
			assert.True(t, dec(tt.wantShipping).Equal(got.ShippingPrice), "shipping: got %s", got.ShippingPrice)
			assert.True(t, dec(tt.wantTotal).Equal(got.TotalPrice), "total: got %s", got.TotalPrice)
		})
	}
}

func TestCalculator_TotalIsSumOfParts(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	for qty := 1; qty <= 40; qty++ {
		got := calc.Calculate([]Line{
			{Price: dec("7999"), Quantity: qty},
			{Price: dec("1234.5"), Quantity: 1},
		})
		sum := got.ItemsPrice.Add(got.TaxPrice).Add(got.ShippingPrice)
		assert.True(t, sum.Equal(got.TotalPrice), "qty %d: %s != %s", qty, sum, got.TotalPrice)
	}
}

func TestCalculator_CustomConfig(t *testing.T) {
	calc := NewCalculator(Config{
		TaxRate:          dec("0.10"),
		FreeShippingOver: dec("50"),
		ShippingFee:      dec("5"),
	})

	got := calc.Calculate([]Line{{Price: dec("60"), Quantity: 1}})
	assert.True(t, dec("6").Equal(got.TaxPrice))
	assert.True(t, decimal.Zero.Equal(got.ShippingPrice))
	assert.True(t, dec("66").Equal(got.TotalPrice))
}
