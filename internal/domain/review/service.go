package review

import (
	"context"
	"math"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/streetwear-market/internal/domain/auth"
	"github.com/xenking/streetwear-market/internal/domain/order"
	"github.com/xenking/streetwear-market/internal/domain/product"
	"github.com/xenking/streetwear-market/internal/domain/validation"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// Orders is the order lookup used for proof of purchase.
type Orders interface {
	GetByID(ctx context.Context, id string) (*order.Order, error)
	List(ctx context.Context, f order.Filter) ([]order.Order, error)
}

// CreateRequest holds the input of a new review. OrderID is optional: without
// it any delivered order of the reviewer containing the product qualifies.
type CreateRequest struct {
	ProductID           string
	OrderID             string
	Rating              int
	SizeAccuracy        *int
	Quality             *int
	ShippingSpeed       *int
	SellerCommunication *int
	Title               string
	Comment             string
	Images              []string
}

// Patch holds the fields an author may change. Nil fields are left as is.
type Patch struct {
	Rating              *int
	SizeAccuracy        *int
	Quality             *int
	ShippingSpeed       *int
	SellerCommunication *int
	Title               *string
	Comment             *string
	Images              []string
}

// ListOptions paginates a product's approved reviews.
type ListOptions struct {
	Page   int
	Limit  int
	Rating int
}

// RatingStats summarises the approved reviews of a product.
type RatingStats struct {
	Total   int
	Average float64
	// Distribution maps every rating 1..5 to its review count.
	Distribution map[int]int
}

// Service is the review aggregator.
type Service struct {
	reviews     Repository
	products    product.Repository
	orders      Orders
	autoApprove bool
	now         func() time.Time
}

// NewService creates a review Service. With autoApprove new reviews are
// published immediately instead of waiting for moderation.
func NewService(reviews Repository, products product.Repository, orders Orders, autoApprove bool) *Service {
	return &Service{
		reviews:     reviews,
		products:    products,
		orders:      orders,
		autoApprove: autoApprove,
		now:         time.Now,
	}
}

// Create stores a review by userID after checking that the user received the
// product and has not reviewed it yet.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (*Review, error) {
	if err := validation.Required("product", req.ProductID); err != nil {
		return nil, err
	}

	now := s.now()
	r := &Review{
		ID:                  uuid.New().String(),
		ProductID:           req.ProductID,
		UserID:              userID,
		Rating:              req.Rating,
		SizeAccuracy:        req.SizeAccuracy,
		Quality:             req.Quality,
		ShippingSpeed:       req.ShippingSpeed,
		SellerCommunication: req.SellerCommunication,
		Title:               req.Title,
		Comment:             req.Comment,
		Images:              req.Images,
		Status:              StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if s.autoApprove {
		r.Status = StatusApproved
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.products.GetByID(ctx, req.ProductID); err != nil {
		return nil, err
	}
	orderID, err := s.proofOfPurchase(ctx, userID, req.ProductID, req.OrderID)
	if err != nil {
		return nil, err
	}
	r.OrderID = orderID
	r.VerifiedPurchase = true

	switch _, err := s.reviews.FindByProductUser(ctx, req.ProductID, userID); {
	case err == nil:
		return nil, ErrDuplicateReview
	case !errors.Is(err, ErrNotFound):
		return nil, errors.Wrap(err, "find existing review")
	}

	// The unique index still catches a concurrent duplicate here.
	if err := s.reviews.Create(ctx, r); err != nil {
		return nil, err
	}
	if err := s.recompute(ctx, r.ProductID); err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Review created",
		zap.String("review_id", r.ID),
		zap.String("product_id", r.ProductID),
		zap.Int("rating", r.Rating),
	)
	return r, nil
}

// proofOfPurchase returns the delivered order of userID that contains
// productID, or ErrNoProofOfPurchase.
func (s *Service) proofOfPurchase(ctx context.Context, userID, productID, orderID string) (string, error) {
	delivered := func(o *order.Order) bool {
		return o.UserID == userID && o.Status == order.StatusDelivered && o.Contains(productID)
	}

	if orderID != "" {
		o, err := s.orders.GetByID(ctx, orderID)
		switch {
		case errors.Is(err, order.ErrNotFound):
			return "", ErrNoProofOfPurchase
		case err != nil:
			return "", errors.Wrap(err, "get order")
		case !delivered(o):
			return "", ErrNoProofOfPurchase
		}
		return o.ID, nil
	}

	orders, err := s.orders.List(ctx, order.Filter{UserID: userID, Status: order.StatusDelivered})
	if err != nil {
		return "", errors.Wrap(err, "list delivered orders")
	}
	for i := range orders {
		if delivered(&orders[i]) {
			return orders[i].ID, nil
		}
	}
	return "", ErrNoProofOfPurchase
}

// Get returns a single review.
func (s *Service) Get(ctx context.Context, id string) (*Review, error) {
	return s.reviews.GetByID(ctx, id)
}

// Update applies patch to a review written by who.
func (s *Service) Update(ctx context.Context, id string, who auth.Identity, patch Patch) (*Review, error) {
	r, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !who.Owns(r.UserID) {
		return nil, auth.ErrForbidden
	}

	if patch.Rating != nil {
		r.Rating = *patch.Rating
	}
	if patch.SizeAccuracy != nil {
		r.SizeAccuracy = patch.SizeAccuracy
	}
	if patch.Quality != nil {
		r.Quality = patch.Quality
	}
	if patch.ShippingSpeed != nil {
		r.ShippingSpeed = patch.ShippingSpeed
	}
	if patch.SellerCommunication != nil {
		r.SellerCommunication = patch.SellerCommunication
	}
	if patch.Title != nil {
		r.Title = *patch.Title
	}
	if patch.Comment != nil {
		r.Comment = *patch.Comment
	}
	if patch.Images != nil {
		r.Images = patch.Images
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	r.UpdatedAt = s.now()

	if err := s.reviews.Update(ctx, r); err != nil {
		return nil, err
	}
	if err := s.recompute(ctx, r.ProductID); err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes a review written by who, or any review for an admin.
func (s *Service) Delete(ctx context.Context, id string, who auth.Identity) error {
	r, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !who.Owns(r.UserID) {
		return auth.ErrForbidden
	}
	if err := s.reviews.Delete(ctx, id); err != nil {
		return err
	}
	return s.recompute(ctx, r.ProductID)
}

// Moderate sets the moderation status of a review.
func (s *Service) Moderate(ctx context.Context, id string, status Status) (*Review, error) {
	if !status.Valid() {
		return nil, validation.Errorf("status", "unknown status %q", status)
	}
	r, err := s.reviews.SetStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if err := s.recompute(ctx, r.ProductID); err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Review moderated",
		zap.String("review_id", id),
		zap.String("status", string(status)),
	)
	return r, nil
}

// MarkHelpful records that userID found the review helpful. Marking twice
// counts once.
func (s *Service) MarkHelpful(ctx context.Context, id, userID string) (int, error) {
	return s.reviews.AddHelpful(ctx, id, userID)
}

// UnmarkHelpful withdraws a helpful mark.
func (s *Service) UnmarkHelpful(ctx context.Context, id, userID string) (int, error) {
	return s.reviews.RemoveHelpful(ctx, id, userID)
}

// ListForProduct returns a page of a product's approved reviews.
func (s *Service) ListForProduct(ctx context.Context, productID string, opts ListOptions) ([]Review, error) {
	if opts.Rating != 0 {
		if err := validation.Range("rating", opts.Rating, MinRating, MaxRating); err != nil {
			return nil, err
		}
	}
	limit := opts.Limit
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	page := max(opts.Page, 1)

	return s.reviews.List(ctx, ListFilter{
		ProductID: productID,
		Status:    StatusApproved,
		Rating:    opts.Rating,
		Limit:     limit,
		Offset:    (page - 1) * limit,
	})
}

// RatingStats returns the rating distribution of a product's approved reviews.
func (s *Service) RatingStats(ctx context.Context, productID string) (*RatingStats, error) {
	dist, err := s.reviews.Distribution(ctx, productID)
	if err != nil {
		return nil, errors.Wrap(err, "rating distribution")
	}
	return summarize(dist), nil
}

func summarize(dist map[int]int) *RatingStats {
	st := &RatingStats{Distribution: make(map[int]int, MaxRating)}
	sum := 0
	for rating := MinRating; rating <= MaxRating; rating++ {
		n := dist[rating]
		st.Distribution[rating] = n
		st.Total += n
		sum += rating * n
	}
	if st.Total > 0 {
		st.Average = math.Round(float64(sum)/float64(st.Total)*10) / 10
	}
	return st
}

// recompute refreshes the product's average rating and review count from its
// approved reviews. A product with no approved reviews is reset to 0/0.
func (s *Service) recompute(ctx context.Context, productID string) error {
	st, err := s.RatingStats(ctx, productID)
	if err != nil {
		return err
	}
	if err := s.products.UpdateRating(ctx, productID, st.Average, st.Total); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "update product rating")
	}
	return nil
}
