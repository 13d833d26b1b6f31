package app

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/streetwear-market/internal/domain/auth"
	"github.com/xenking/streetwear-market/internal/domain/order"
	"github.com/xenking/streetwear-market/internal/domain/product"
	"github.com/xenking/streetwear-market/internal/domain/review"
	"github.com/xenking/streetwear-market/internal/domain/seller"
	"github.com/xenking/streetwear-market/internal/repository"
	"github.com/xenking/streetwear-market/internal/storage/memory"
	"github.com/xenking/streetwear-market/pkg/health"
)

// stores bundles the repositories of one storage backend.
type stores struct {
	products product.Repository
	orders   order.Repository
	reviews  review.Repository
	sellers  seller.Repository
	apiKeys  auth.Repository
	tx       order.TxManager

	// ping is nil for backends without a remote dependency.
	ping  health.Pinger
	close func()
}

func openStores(ctx context.Context, cfg *Config) (*stores, error) {
	if cfg.Storage == StorageMemory {
		store := memory.NewStore()
		return &stores{
			products: memory.NewProducts(store),
			orders:   memory.NewOrders(store),
			reviews:  memory.NewReviews(store),
			sellers:  memory.NewSellers(store),
			apiKeys:  memory.NewAPIKeys(store),
			tx:       memory.NewTxManager(store),
			close:    func() {},
		}, nil
	}

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := repository.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	return &stores{
		products: repository.NewProductRepository(pool),
		orders:   repository.NewOrderRepository(pool),
		reviews:  repository.NewReviewRepository(pool),
		sellers:  repository.NewSellerRepository(pool),
		apiKeys:  repository.NewAPIKeyRepository(pool),
		tx:       repository.NewTxManager(pool),
		ping:     pool,
		close:    pool.Close,
	}, nil
}

// registerAdminKey stores the configured admin API key so a fresh
// deployment can be administered.
func registerAdminKey(ctx context.Context, keys auth.Repository, pepper []byte, key string) error {
	if key == "" {
		return nil
	}
	hash := auth.HashKeyHex(pepper, key)
	return keys.Upsert(ctx, auth.APIKeyInfo{
		ID:      "admin-" + hash[:12],
		KeyHash: hash,
		Name:    "bootstrap admin",
		UserID:  "admin",
		Role:    auth.RoleAdmin,
	})
}
