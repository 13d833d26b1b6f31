package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/streetwear-market/internal/domain/seller"
)

const (
	addSellerSaleSQL = `INSERT INTO seller_stats (seller_id, products_sold, total_earnings)
		VALUES ($1, $2, $3)
		ON CONFLICT (seller_id) DO UPDATE SET
			products_sold = seller_stats.products_sold + EXCLUDED.products_sold,
			total_earnings = seller_stats.total_earnings + EXCLUDED.total_earnings`

	getSellerStatsSQL = `SELECT products_sold, total_earnings FROM seller_stats WHERE seller_id = $1`
)

var _ seller.Repository = (*SellerRepository)(nil)

// SellerRepository stores seller sales counters in PostgreSQL.
type SellerRepository struct {
	pool *pgxpool.Pool
}

// NewSellerRepository returns a SellerRepository that uses the given pool.
func NewSellerRepository(pool *pgxpool.Pool) *SellerRepository {
	return &SellerRepository{pool: pool}
}

// AddSale increments the counters, creating the row on first sale.
func (r *SellerRepository) AddSale(ctx context.Context, sellerID string, quantity int, earnings decimal.Decimal) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, addSellerSaleSQL, sellerID, quantity, earnings); err != nil {
		return errors.Wrapf(err, "adding sale of seller %q", sellerID)
	}
	return nil
}

// Get returns the counters; sellers without sales get zero stats.
func (r *SellerRepository) Get(ctx context.Context, sellerID string) (*seller.Stats, error) {
	st := seller.Stats{SellerID: sellerID, TotalEarnings: decimal.Zero}
	err := conn(ctx, r.pool).QueryRow(ctx, getSellerStatsSQL, sellerID).Scan(&st.ProductsSold, &st.TotalEarnings)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(err, "getting seller %q", sellerID)
	}
	return &st, nil
}
