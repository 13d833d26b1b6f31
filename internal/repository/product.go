package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/streetwear-market/internal/domain/product"
)

const productColumns = `id, name, description, price, original_price, category, size, condition,
	brand, color, sku, images, stock, active, seller_id,
	views, favorites, sales, average_rating, review_count, created_at, updated_at`

const (
	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	createProductSQL = `INSERT INTO products (id, name, description, price, original_price, category,
		size, condition, brand, color, sku, images, stock, active, seller_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)`

	deactivateProductSQL = `UPDATE products SET active = FALSE, updated_at = now() WHERE id = $1`

	decrementStockSQL = `UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND active AND stock >= $2
		RETURNING stock`

	incrementStockSQL = `UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1
		RETURNING stock`

	setStockSQL = `UPDATE products SET stock = $2, updated_at = now() WHERE id = $1`

	incrementSalesSQL = `UPDATE products SET sales = sales + $2, updated_at = now() WHERE id = $1`

	updateRatingSQL = `UPDATE products SET average_rating = $2, review_count = $3, updated_at = now()
		WHERE id = $1`

	incrementViewsSQL = `UPDATE products SET views = views + 1 WHERE id = $1 AND active`

	// The counter moves by the number of rows the CTE touched, so repeated
	// adds or removes by the same user leave it alone.
	addFavoriteSQL = `WITH added AS (
			INSERT INTO product_favorites (product_id, user_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
			RETURNING product_id
		)
		UPDATE products SET favorites = favorites + (SELECT count(*) FROM added)
		WHERE id = $1
		RETURNING favorites`

	removeFavoriteSQL = `WITH removed AS (
			DELETE FROM product_favorites WHERE product_id = $1 AND user_id = $2
			RETURNING product_id
		)
		UPDATE products SET favorites = favorites - (SELECT count(*) FROM removed)
		WHERE id = $1
		RETURNING favorites`

	favoritesSQL = `SELECT ` + productColumns + ` FROM products
		JOIN (SELECT product_id, created_at AS favorited_at FROM product_favorites WHERE user_id = $1) f
			ON f.product_id = products.id
		WHERE active
		ORDER BY f.favorited_at DESC, id`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns products matching f, newest first.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.SellerID != "" {
		where = append(where, "seller_id = "+arg(f.SellerID))
	}
	if f.Category != "" {
		where = append(where, "category = "+arg(string(f.Category)))
	}
	if f.ActiveOnly {
		where = append(where, "active")
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + productColumns + ` FROM products`)
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC, id")
	if f.Limit > 0 {
		sb.WriteString(" LIMIT " + arg(f.Limit))
	}
	if f.Offset > 0 {
		sb.WriteString(" OFFSET " + arg(f.Offset))
	}

	rows, err := conn(ctx, r.pool).Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "listing products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting product %q", id)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "getting products by ids")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create inserts a new listing.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	var sku *string
	if p.SKU != "" {
		sku = &p.SKU
	}
	images := p.Images
	if images == nil {
		images = []string{}
	}
	_, err := conn(ctx, r.pool).Exec(ctx, createProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.OriginalPrice, string(p.Category),
		string(p.Size), string(p.Condition), p.Brand, p.Color, sku, images,
		p.Stock, p.Active, p.SellerID, p.CreatedAt,
	)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return errors.Wrapf(product.ErrDuplicateSKU, "sku %s", p.SKU)
		}
		return errors.Wrapf(err, "creating product %q", p.ID)
	}
	p.UpdatedAt = p.CreatedAt
	return nil
}

// Deactivate soft-deletes a product.
func (r *ProductRepository) Deactivate(ctx context.Context, id string) error {
	return r.execOne(ctx, "deactivating product", deactivateProductSQL, id)
}

// DecrementStock runs a single conditional UPDATE, so concurrent callers are
// serialised by the row lock.
func (r *ProductRepository) DecrementStock(ctx context.Context, id string, quantity int) (int, bool, error) {
	var remaining int
	err := conn(ctx, r.pool).QueryRow(ctx, decrementStockSQL, id, quantity).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, errors.Wrapf(err, "decrementing stock of %q", id)
	}
	return remaining, true, nil
}

// IncrementStock adds quantity to the stock.
func (r *ProductRepository) IncrementStock(ctx context.Context, id string, quantity int) (int, error) {
	var stock int
	err := conn(ctx, r.pool).QueryRow(ctx, incrementStockSQL, id, quantity).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, product.ErrNotFound
		}
		return 0, errors.Wrapf(err, "incrementing stock of %q", id)
	}
	return stock, nil
}

// SetStock overwrites the stock.
func (r *ProductRepository) SetStock(ctx context.Context, id string, stock int) error {
	return r.execOne(ctx, "setting stock", setStockSQL, id, stock)
}

// IncrementSales bumps the sales counter.
func (r *ProductRepository) IncrementSales(ctx context.Context, id string, quantity int) error {
	return r.execOne(ctx, "incrementing sales", incrementSalesSQL, id, quantity)
}

// UpdateRating sets the rating statistics.
func (r *ProductRepository) UpdateRating(ctx context.Context, id string, average float64, count int) error {
	return r.execOne(ctx, "updating rating", updateRatingSQL, id, decimal.NewFromFloat(average).Round(1), count)
}

// IncrementViews counts a view of an active product.
func (r *ProductRepository) IncrementViews(ctx context.Context, id string) error {
	return r.execOne(ctx, "counting view", incrementViewsSQL, id)
}

// AddFavorite adds id to the user's favorites.
func (r *ProductRepository) AddFavorite(ctx context.Context, id, userID string) (int, error) {
	return r.favorite(ctx, addFavoriteSQL, id, userID)
}

// RemoveFavorite drops id from the user's favorites.
func (r *ProductRepository) RemoveFavorite(ctx context.Context, id, userID string) (int, error) {
	return r.favorite(ctx, removeFavoriteSQL, id, userID)
}

func (r *ProductRepository) favorite(ctx context.Context, sql, id, userID string) (int, error) {
	var n int
	if err := conn(ctx, r.pool).QueryRow(ctx, sql, id, userID).Scan(&n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == codeForeignKeyViolation {
			return 0, product.ErrNotFound
		}
		return 0, errors.Wrapf(err, "updating favorites of %q", id)
	}
	return n, nil
}

// Favorites returns the user's active favorites, latest first.
func (r *ProductRepository) Favorites(ctx context.Context, userID string) ([]product.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, favoritesSQL, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "listing favorites of %q", userID)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// execOne runs a statement that must touch exactly the product row.
func (r *ProductRepository) execOne(ctx context.Context, what, sql string, id string, args ...any) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		return errors.Wrapf(err, "%s of %q", what, id)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p         product.Product
		sku       *string
		avgRating decimal.Decimal
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.OriginalPrice,
		&p.Category, &p.Size, &p.Condition, &p.Brand, &p.Color, &sku, &p.Images,
		&p.Stock, &p.Active, &p.SellerID,
		&p.Stats.Views, &p.Stats.Favorites, &p.Stats.Sales, &avgRating, &p.Stats.ReviewCount,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if sku != nil {
		p.SKU = *sku
	}
	p.Stats.AverageRating = avgRating.InexactFloat64()
	return p, err
}
