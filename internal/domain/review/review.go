// Package review stores buyer reviews and keeps the rating statistics of the
// reviewed products in sync.
package review

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/streetwear-market/internal/domain/validation"
)

// Sentinel errors of the review aggregator.
var (
	ErrNotFound          = errors.New("review not found")
	ErrDuplicateReview   = errors.New("product already reviewed by this user")
	ErrNoProofOfPurchase = errors.New("only delivered purchases can be reviewed")
)

// Status is the moderation state of a review.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known moderation status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

const (
	MinRating        = 1
	MaxRating        = 5
	MaxTitleLength   = 100
	MaxCommentLength = 1000
)

// Review is a buyer's opinion on a purchased product.
type Review struct {
	ID        string
	ProductID string
	UserID    string
	OrderID   string
	Rating    int
	// Optional sub-ratings, nil when not given.
	SizeAccuracy        *int
	Quality             *int
	ShippingSpeed       *int
	SellerCommunication *int
	Title               string
	Comment             string
	Images              []string
	// Helpful holds the IDs of users who found the review helpful.
	Helpful          []string
	VerifiedPurchase bool
	Status           Status
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HelpfulCount returns the number of distinct users who marked the review.
func (r *Review) HelpfulCount() int { return len(r.Helpful) }

// Validate checks rating bounds and text lengths.
func (r *Review) Validate() error {
	errs := []error{
		validation.Range("rating", r.Rating, MinRating, MaxRating),
		validation.Required("title", r.Title),
		validation.MaxLen("title", r.Title, MaxTitleLength),
		validation.Required("comment", r.Comment),
		validation.MaxLen("comment", r.Comment, MaxCommentLength),
	}
	for _, sub := range []struct {
		field string
		v     *int
	}{
		{"sizeAccuracy", r.SizeAccuracy},
		{"quality", r.Quality},
		{"shippingSpeed", r.ShippingSpeed},
		{"sellerCommunication", r.SellerCommunication},
	} {
		if sub.v != nil {
			errs = append(errs, validation.Range(sub.field, *sub.v, MinRating, MaxRating))
		}
	}
	return validation.First(errs...)
}

// ListFilter narrows a review listing. Results are ordered newest first.
type ListFilter struct {
	ProductID string
	Status    Status
	// Rating keeps only reviews with exactly this rating when non-zero.
	Rating int
	Limit  int
	Offset int
}

// Repository persists reviews.
type Repository interface {
	// Create stores a new review and returns ErrDuplicateReview when the user
	// already reviewed the product.
	Create(ctx context.Context, r *Review) error
	GetByID(ctx context.Context, id string) (*Review, error)
	// FindByProductUser returns ErrNotFound when the user has no review for
	// the product.
	FindByProductUser(ctx context.Context, productID, userID string) (*Review, error)
	Update(ctx context.Context, r *Review) error
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status Status) (*Review, error)
	// AddHelpful and RemoveHelpful are set operations; they return the
	// resulting helpful count.
	AddHelpful(ctx context.Context, id, userID string) (int, error)
	RemoveHelpful(ctx context.Context, id, userID string) (int, error)
	List(ctx context.Context, f ListFilter) ([]Review, error)
	// Distribution counts the approved reviews of a product per rating.
	Distribution(ctx context.Context, productID string) (map[int]int, error)
}
