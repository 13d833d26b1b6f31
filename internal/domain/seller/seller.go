package seller

import (
	"context"

	"github.com/shopspring/decimal"
)

// Stats are the aggregate sales counters of a seller.
type Stats struct {
	SellerID      string
	ProductsSold  int
	TotalEarnings decimal.Decimal
}

// Repository persists seller statistics.
type Repository interface {
	// AddSale increments the seller's counters, creating them on first use.
	AddSale(ctx context.Context, sellerID string, quantity int, earnings decimal.Decimal) error
	// Get returns the seller's counters; unknown sellers have zero stats.
	Get(ctx context.Context, sellerID string) (*Stats, error)
}
