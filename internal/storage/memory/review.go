package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/xenking/streetwear-market/internal/domain/review"
)

// Reviews implements review.Repository on a Store.
type Reviews struct{ store *Store }

// NewReviews returns the review view of store.
func NewReviews(store *Store) *Reviews { return &Reviews{store: store} }

var _ review.Repository = (*Reviews)(nil)

func cloneReview(r review.Review) review.Review {
	r.Images = cloneStrings(r.Images)
	r.Helpful = cloneStrings(r.Helpful)
	return r
}

// Create stores r unless the user already reviewed the product.
func (r *Reviews) Create(ctx context.Context, rv *review.Review) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	for _, other := range r.store.reviews {
		if other.ProductID == rv.ProductID && other.UserID == rv.UserID {
			return review.ErrDuplicateReview
		}
	}
	r.store.reviews[rv.ID] = cloneReview(*rv)
	return nil
}

// GetByID returns a copy of the review.
func (r *Reviews) GetByID(ctx context.Context, id string) (*review.Review, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	rv, ok := r.store.reviews[id]
	if !ok {
		return nil, review.ErrNotFound
	}
	cp := cloneReview(rv)
	return &cp, nil
}

// FindByProductUser returns the user's review of a product.
func (r *Reviews) FindByProductUser(ctx context.Context, productID, userID string) (*review.Review, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	for _, rv := range r.store.reviews {
		if rv.ProductID == productID && rv.UserID == userID {
			cp := cloneReview(rv)
			return &cp, nil
		}
	}
	return nil, review.ErrNotFound
}

// Update overwrites the editable fields of a review. Helpful marks and the
// moderation status are kept.
func (r *Reviews) Update(ctx context.Context, rv *review.Review) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	cur, ok := r.store.reviews[rv.ID]
	if !ok {
		return review.ErrNotFound
	}
	next := cloneReview(*rv)
	next.Helpful = cur.Helpful
	next.Status = cur.Status
	r.store.reviews[rv.ID] = next
	return nil
}

// Delete removes a review.
func (r *Reviews) Delete(ctx context.Context, id string) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	if _, ok := r.store.reviews[id]; !ok {
		return review.ErrNotFound
	}
	delete(r.store.reviews, id)
	return nil
}

func (r *Reviews) modify(ctx context.Context, id string, fn func(rv *review.Review)) (review.Review, error) {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	rv, ok := r.store.reviews[id]
	if !ok {
		return review.Review{}, review.ErrNotFound
	}
	fn(&rv)
	rv.UpdatedAt = time.Now().UTC()
	r.store.reviews[id] = rv
	return cloneReview(rv), nil
}

// SetStatus changes the moderation status.
func (r *Reviews) SetStatus(ctx context.Context, id string, status review.Status) (*review.Review, error) {
	rv, err := r.modify(ctx, id, func(rv *review.Review) { rv.Status = status })
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

// AddHelpful adds userID to the helpful set.
func (r *Reviews) AddHelpful(ctx context.Context, id, userID string) (int, error) {
	rv, err := r.modify(ctx, id, func(rv *review.Review) {
		if !slices.Contains(rv.Helpful, userID) {
			rv.Helpful = append(rv.Helpful, userID)
		}
	})
	return len(rv.Helpful), err
}

// RemoveHelpful removes userID from the helpful set.
func (r *Reviews) RemoveHelpful(ctx context.Context, id, userID string) (int, error) {
	rv, err := r.modify(ctx, id, func(rv *review.Review) {
		rv.Helpful = slices.DeleteFunc(rv.Helpful, func(u string) bool { return u == userID })
	})
	return len(rv.Helpful), err
}

// List returns matching reviews, newest first.
func (r *Reviews) List(ctx context.Context, f review.ListFilter) ([]review.Review, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	out := make([]review.Review, 0)
	for _, rv := range r.store.reviews {
		if f.ProductID != "" && rv.ProductID != f.ProductID {
			continue
		}
		if f.Status != "" && rv.Status != f.Status {
			continue
		}
		if f.Rating != 0 && rv.Rating != f.Rating {
			continue
		}
		out = append(out, cloneReview(rv))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, f.Offset, f.Limit), nil
}

// Distribution counts approved reviews of a product per rating.
func (r *Reviews) Distribution(ctx context.Context, productID string) (map[int]int, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	dist := make(map[int]int)
	for _, rv := range r.store.reviews {
		if rv.ProductID == productID && rv.Status == review.StatusApproved {
			dist[rv.Rating]++
		}
	}
	return dist, nil
}
