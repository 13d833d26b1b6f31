package memory

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/streetwear-market/internal/domain/product"
)

// Products implements product.Repository on a Store.
type Products struct{ store *Store }

// NewProducts returns the catalog view of store.
func NewProducts(store *Store) *Products { return &Products{store: store} }

var _ product.Repository = (*Products)(nil)

func cloneProduct(p product.Product) product.Product {
	p.Images = cloneStrings(p.Images)
	return p
}

// List returns matching products, newest first.
func (r *Products) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	out := make([]product.Product, 0)
	for _, p := range r.store.products {
		if f.SellerID != "" && p.SellerID != f.SellerID {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.ActiveOnly && !p.Active {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, f.Offset, f.Limit), nil
}

// GetByID returns a copy of the product.
func (r *Products) GetByID(ctx context.Context, id string) (*product.Product, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	p, ok := r.store.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := cloneProduct(p)
	return &cp, nil
}

// GetByIDs returns the products found among ids, in the order of ids.
func (r *Products) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.store.products[id]; ok {
			out = append(out, cloneProduct(p))
		}
	}
	return out, nil
}

// Create stores p, assigning an ID and timestamps when missing.
func (r *Products) Create(ctx context.Context, p *product.Product) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.SKU != "" {
		for _, other := range r.store.products {
			if other.SKU == p.SKU && other.ID != p.ID {
				return errors.Wrapf(product.ErrDuplicateSKU, "sku %s", p.SKU)
			}
		}
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	r.store.products[p.ID] = cloneProduct(*p)
	return nil
}

// update applies fn to the stored product under the write lock.
func (r *Products) update(ctx context.Context, id string, fn func(p *product.Product)) (product.Product, error) {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	p, ok := r.store.products[id]
	if !ok {
		return product.Product{}, product.ErrNotFound
	}
	fn(&p)
	p.UpdatedAt = time.Now().UTC()
	r.store.products[id] = p
	return p, nil
}

// Deactivate soft-deletes a product.
func (r *Products) Deactivate(ctx context.Context, id string) error {
	_, err := r.update(ctx, id, func(p *product.Product) { p.Active = false })
	return err
}

// DecrementStock is a compare-and-decrement under the write lock.
func (r *Products) DecrementStock(ctx context.Context, id string, quantity int) (int, bool, error) {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	p, ok := r.store.products[id]
	if !ok || !p.Active || p.Stock < quantity {
		return 0, false, nil
	}
	p.Stock -= quantity
	p.UpdatedAt = time.Now().UTC()
	r.store.products[id] = p
	return p.Stock, true, nil
}

// IncrementStock adds quantity to the stock.
func (r *Products) IncrementStock(ctx context.Context, id string, quantity int) (int, error) {
	p, err := r.update(ctx, id, func(p *product.Product) { p.Stock += quantity })
	return p.Stock, err
}

// SetStock overwrites the stock.
func (r *Products) SetStock(ctx context.Context, id string, stock int) error {
	_, err := r.update(ctx, id, func(p *product.Product) { p.Stock = stock })
	return err
}

// IncrementSales bumps the sales counter.
func (r *Products) IncrementSales(ctx context.Context, id string, quantity int) error {
	_, err := r.update(ctx, id, func(p *product.Product) { p.Stats.Sales += quantity })
	return err
}

// UpdateRating sets the rating statistics.
func (r *Products) UpdateRating(ctx context.Context, id string, average float64, count int) error {
	_, err := r.update(ctx, id, func(p *product.Product) {
		p.Stats.AverageRating = average
		p.Stats.ReviewCount = count
	})
	return err
}

// IncrementViews counts a view of an active product.
func (r *Products) IncrementViews(ctx context.Context, id string) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	p, ok := r.store.products[id]
	if !ok || !p.Active {
		return product.ErrNotFound
	}
	p.Stats.Views++
	r.store.products[id] = p
	return nil
}

// AddFavorite adds id to the user's favorites.
func (r *Products) AddFavorite(ctx context.Context, id, userID string) (int, error) {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	p, ok := r.store.products[id]
	if !ok {
		return 0, product.ErrNotFound
	}
	marks := r.store.favorites[userID]
	if marks == nil {
		marks = make(map[string]time.Time)
		r.store.favorites[userID] = marks
	}
	if _, dup := marks[id]; !dup {
		marks[id] = time.Now().UTC()
		p.Stats.Favorites++
		r.store.products[id] = p
	}
	return p.Stats.Favorites, nil
}

// RemoveFavorite drops id from the user's favorites.
func (r *Products) RemoveFavorite(ctx context.Context, id, userID string) (int, error) {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	p, ok := r.store.products[id]
	if !ok {
		return 0, product.ErrNotFound
	}
	if _, marked := r.store.favorites[userID][id]; marked {
		delete(r.store.favorites[userID], id)
		p.Stats.Favorites--
		r.store.products[id] = p
	}
	return p.Stats.Favorites, nil
}

// Favorites returns the user's active favorites, latest first.
func (r *Products) Favorites(ctx context.Context, userID string) ([]product.Product, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	marks := r.store.favorites[userID]
	out := make([]product.Product, 0, len(marks))
	for id := range marks {
		if p, ok := r.store.products[id]; ok && p.Active {
			out = append(out, cloneProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := marks[out[i].ID], marks[out[j].ID]
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
