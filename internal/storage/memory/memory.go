// Package memory is an in-process implementation of every marketplace
// repository. All repositories share one Store and one lock; a transaction
// holds the write lock for its whole duration, so the repositories skip
// their own locking when called with a transaction context.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/xenking/streetwear-market/internal/domain/auth"
	"github.com/xenking/streetwear-market/internal/domain/order"
	"github.com/xenking/streetwear-market/internal/domain/product"
	"github.com/xenking/streetwear-market/internal/domain/review"
	"github.com/xenking/streetwear-market/internal/domain/seller"
)

// Store holds all marketplace state.
type Store struct {
	mu       sync.RWMutex
	products map[string]product.Product
	orders   map[string]order.Order
	reviews  map[string]review.Review
	sellers  map[string]seller.Stats
	apiKeys  map[string]auth.APIKeyInfo // by hash

	// favorites maps user ID to product ID to the time it was added.
	favorites map[string]map[string]time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		products: make(map[string]product.Product),
		orders:   make(map[string]order.Order),
		reviews:  make(map[string]review.Review),
		sellers:  make(map[string]seller.Stats),
		apiKeys:  make(map[string]auth.APIKeyInfo),

		favorites: make(map[string]map[string]time.Time),
	}
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	v, ok := ctx.Value(txKey{}).(bool)
	return ok && v
}

func (s *Store) rlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.RLock()
	}
}

func (s *Store) runlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.RUnlock()
	}
}

func (s *Store) wlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.Lock()
	}
}

func (s *Store) wunlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.Unlock()
	}
}

// snapshot is a deep copy of the store contents.
type snapshot struct {
	products  map[string]product.Product
	orders    map[string]order.Order
	reviews   map[string]review.Review
	sellers   map[string]seller.Stats
	apiKeys   map[string]auth.APIKeyInfo
	favorites map[string]map[string]time.Time
}

func cloneMap[K comparable, V any](m map[K]V, clone func(V) V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = clone(v)
	}
	return out
}

// snapshot must be called with the write lock held.
func (s *Store) snapshot() snapshot {
	return snapshot{
		products:  cloneMap(s.products, cloneProduct),
		orders:    cloneMap(s.orders, cloneOrder),
		reviews:   cloneMap(s.reviews, cloneReview),
		sellers:   maps.Clone(s.sellers),
		apiKeys:   maps.Clone(s.apiKeys),
		favorites: cloneMap(s.favorites, maps.Clone[map[string]time.Time]),
	}
}

// restore must be called with the write lock held.
func (s *Store) restore(sn snapshot) {
	s.products = sn.products
	s.orders = sn.orders
	s.reviews = sn.reviews
	s.sellers = sn.sellers
	s.apiKeys = sn.apiKeys
	s.favorites = sn.favorites
}

// TxManager serialises transactions on the store lock. When fn fails the
// store is restored to its state before the transaction.
type TxManager struct{ store *Store }

// NewTxManager returns a TxManager for store.
func NewTxManager(store *Store) *TxManager { return &TxManager{store: store} }

// WithTransaction runs fn while holding the store's write lock. Nested calls
// reuse the outer transaction.
func (t *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	sn := t.store.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		t.store.restore(sn)
		return err
	}
	return nil
}

// page applies offset and limit to a sorted slice. A non-positive limit
// returns everything after offset.
func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s)
}
