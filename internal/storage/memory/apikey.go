package memory

import (
	"context"

	"github.com/xenking/streetwear-market/internal/domain/auth"
)

// APIKeys implements auth.Repository on a Store.
type APIKeys struct{ store *Store }

// NewAPIKeys returns the API key view of store.
func NewAPIKeys(store *Store) *APIKeys { return &APIKeys{store: store} }

var _ auth.Repository = (*APIKeys)(nil)

// FindByHash returns auth.ErrUnauthenticated for unknown hashes.
func (r *APIKeys) FindByHash(ctx context.Context, hash string) (*auth.APIKeyInfo, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	info, ok := r.store.apiKeys[hash]
	if !ok {
		return nil, auth.ErrUnauthenticated
	}
	return &info, nil
}

// Upsert stores info keyed by its hash.
func (r *APIKeys) Upsert(ctx context.Context, info auth.APIKeyInfo) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	r.store.apiKeys[info.KeyHash] = info
	return nil
}
