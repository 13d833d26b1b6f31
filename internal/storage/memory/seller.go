package memory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/streetwear-market/internal/domain/seller"
)

// Sellers implements seller.Repository on a Store.
type Sellers struct{ store *Store }

// NewSellers returns the seller statistics view of store.
func NewSellers(store *Store) *Sellers { return &Sellers{store: store} }

var _ seller.Repository = (*Sellers)(nil)

// AddSale increments the seller's counters.
func (r *Sellers) AddSale(ctx context.Context, sellerID string, quantity int, earnings decimal.Decimal) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	st, ok := r.store.sellers[sellerID]
	if !ok {
		st = seller.Stats{SellerID: sellerID, TotalEarnings: decimal.Zero}
	}
	st.ProductsSold += quantity
	st.TotalEarnings = st.TotalEarnings.Add(earnings)
	r.store.sellers[sellerID] = st
	return nil
}

// Get returns the seller's counters, zero for unknown sellers.
func (r *Sellers) Get(ctx context.Context, sellerID string) (*seller.Stats, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	st, ok := r.store.sellers[sellerID]
	if !ok {
		st = seller.Stats{SellerID: sellerID, TotalEarnings: decimal.Zero}
	}
	return &st, nil
}
