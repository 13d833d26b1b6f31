package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/streetwear-market/internal/domain/review"
)

const reviewColumns = `r.id, r.product_id, r.user_id, r.order_id, r.rating,
	r.size_accuracy, r.quality, r.shipping_speed, r.seller_communication,
	r.title, r.comment, r.images,
	ARRAY(SELECT h.user_id FROM review_helpful h WHERE h.review_id = r.id ORDER BY h.user_id),
	r.verified_purchase, r.status, r.created_at, r.updated_at`

const (
	createReviewSQL = `INSERT INTO reviews (id, product_id, user_id, order_id, rating,
		size_accuracy, quality, shipping_speed, seller_communication,
		title, comment, images, verified_purchase, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)`

	getReviewByIDSQL = `SELECT ` + reviewColumns + ` FROM reviews r WHERE r.id = $1`

	getReviewByProductUserSQL = `SELECT ` + reviewColumns + ` FROM reviews r
		WHERE r.product_id = $1 AND r.user_id = $2`

	updateReviewSQL = `UPDATE reviews SET
			rating = $2, size_accuracy = $3, quality = $4, shipping_speed = $5,
			seller_communication = $6, title = $7, comment = $8, images = $9,
			updated_at = now()
		WHERE id = $1`

	deleteReviewSQL = `DELETE FROM reviews WHERE id = $1`

	setReviewStatusSQL = `UPDATE reviews SET status = $2, updated_at = now() WHERE id = $1`

	addHelpfulSQL = `INSERT INTO review_helpful (review_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	removeHelpfulSQL = `DELETE FROM review_helpful WHERE review_id = $1 AND user_id = $2`

	countHelpfulSQL = `SELECT count(*) FROM review_helpful WHERE review_id = $1`

	reviewExistsSQL = `SELECT EXISTS (SELECT 1 FROM reviews WHERE id = $1)`

	ratingDistributionSQL = `SELECT rating, count(*) FROM reviews
		WHERE product_id = $1 AND status = 'approved'
		GROUP BY rating`
)

var _ review.Repository = (*ReviewRepository)(nil)

// ReviewRepository implements review.Repository backed by PostgreSQL.
type ReviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository returns a ReviewRepository that uses the given pool.
func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts r. The (product_id, user_id) unique constraint rejects a
// second review of the same product by the same user.
func (r *ReviewRepository) Create(ctx context.Context, rv *review.Review) error {
	images := rv.Images
	if images == nil {
		images = []string{}
	}
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = time.Now().UTC()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, createReviewSQL,
		rv.ID, rv.ProductID, rv.UserID, rv.OrderID, rv.Rating,
		rv.SizeAccuracy, rv.Quality, rv.ShippingSpeed, rv.SellerCommunication,
		rv.Title, rv.Comment, images, rv.VerifiedPurchase, string(rv.Status), rv.CreatedAt,
	)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return review.ErrDuplicateReview
		}
		return errors.Wrapf(err, "creating review %q", rv.ID)
	}
	rv.UpdatedAt = rv.CreatedAt
	return nil
}

// GetByID returns a single review.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*review.Review, error) {
	return r.getOne(ctx, getReviewByIDSQL, id)
}

// FindByProductUser returns the user's review of a product.
func (r *ReviewRepository) FindByProductUser(ctx context.Context, productID, userID string) (*review.Review, error) {
	return r.getOne(ctx, getReviewByProductUserSQL, productID, userID)
}

func (r *ReviewRepository) getOne(ctx context.Context, sql string, args ...any) (*review.Review, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "getting review")
	}
	rv, err := pgx.CollectExactlyOneRow(rows, scanReview)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, review.ErrNotFound
		}
		return nil, errors.Wrap(err, "getting review")
	}
	return &rv, nil
}

// Update overwrites the editable fields. Helpful marks and the moderation
// status are left alone.
func (r *ReviewRepository) Update(ctx context.Context, rv *review.Review) error {
	images := rv.Images
	if images == nil {
		images = []string{}
	}
	tag, err := conn(ctx, r.pool).Exec(ctx, updateReviewSQL,
		rv.ID, rv.Rating, rv.SizeAccuracy, rv.Quality, rv.ShippingSpeed,
		rv.SellerCommunication, rv.Title, rv.Comment, images,
	)
	if err != nil {
		return errors.Wrapf(err, "updating review %q", rv.ID)
	}
	if tag.RowsAffected() == 0 {
		return review.ErrNotFound
	}
	return nil
}

// Delete removes a review together with its helpful marks.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, deleteReviewSQL, id)
	if err != nil {
		return errors.Wrapf(err, "deleting review %q", id)
	}
	if tag.RowsAffected() == 0 {
		return review.ErrNotFound
	}
	return nil
}

// SetStatus changes the moderation status.
func (r *ReviewRepository) SetStatus(ctx context.Context, id string, status review.Status) (*review.Review, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, setReviewStatusSQL, id, string(status))
	if err != nil {
		return nil, errors.Wrapf(err, "setting status of review %q", id)
	}
	if tag.RowsAffected() == 0 {
		return nil, review.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// AddHelpful records userID in the helpful set of the review.
func (r *ReviewRepository) AddHelpful(ctx context.Context, id, userID string) (int, error) {
	if _, err := conn(ctx, r.pool).Exec(ctx, addHelpfulSQL, id, userID); err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return 0, review.ErrNotFound
		}
		return 0, errors.Wrapf(err, "marking review %q helpful", id)
	}
	return r.helpfulCount(ctx, id)
}

// RemoveHelpful drops userID from the helpful set of the review.
func (r *ReviewRepository) RemoveHelpful(ctx context.Context, id, userID string) (int, error) {
	var exists bool
	if err := conn(ctx, r.pool).QueryRow(ctx, reviewExistsSQL, id).Scan(&exists); err != nil {
		return 0, errors.Wrapf(err, "checking review %q", id)
	}
	if !exists {
		return 0, review.ErrNotFound
	}
	if _, err := conn(ctx, r.pool).Exec(ctx, removeHelpfulSQL, id, userID); err != nil {
		return 0, errors.Wrapf(err, "unmarking review %q helpful", id)
	}
	return r.helpfulCount(ctx, id)
}

func (r *ReviewRepository) helpfulCount(ctx context.Context, id string) (int, error) {
	var n int
	if err := conn(ctx, r.pool).QueryRow(ctx, countHelpfulSQL, id).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "counting helpful marks of review %q", id)
	}
	return n, nil
}

// List returns reviews matching f, newest first.
func (r *ReviewRepository) List(ctx context.Context, f review.ListFilter) ([]review.Review, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.ProductID != "" {
		where = append(where, "r.product_id = "+arg(f.ProductID))
	}
	if f.Status != "" {
		where = append(where, "r.status = "+arg(string(f.Status)))
	}
	if f.Rating != 0 {
		where = append(where, "r.rating = "+arg(f.Rating))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + reviewColumns + ` FROM reviews r`)
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY r.created_at DESC, r.id")
	if f.Limit > 0 {
		sb.WriteString(" LIMIT " + arg(f.Limit))
	}
	if f.Offset > 0 {
		sb.WriteString(" OFFSET " + arg(f.Offset))
	}

	rows, err := conn(ctx, r.pool).Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "listing reviews")
	}
	return pgx.CollectRows(rows, scanReview)
}

// Distribution counts approved reviews of a product per rating.
func (r *ReviewRepository) Distribution(ctx context.Context, productID string) (map[int]int, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, ratingDistributionSQL, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "rating distribution of %q", productID)
	}
	dist := make(map[int]int)
	var rating, count int
	_, err = pgx.ForEachRow(rows, []any{&rating, &count}, func() error {
		dist[rating] = count
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "rating distribution of %q", productID)
	}
	return dist, nil
}

func scanReview(row pgx.CollectableRow) (review.Review, error) {
	var rv review.Review
	err := row.Scan(
		&rv.ID, &rv.ProductID, &rv.UserID, &rv.OrderID, &rv.Rating,
		&rv.SizeAccuracy, &rv.Quality, &rv.ShippingSpeed, &rv.SellerCommunication,
		&rv.Title, &rv.Comment, &rv.Images, &rv.Helpful,
		&rv.VerifiedPurchase, &rv.Status, &rv.CreatedAt, &rv.UpdatedAt,
	)
	return rv, err
}
