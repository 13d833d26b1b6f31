package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/streetwear-market/internal/domain/auth"
	"github.com/xenking/streetwear-market/internal/domain/product"
	"github.com/xenking/streetwear-market/internal/repository"
)

type productJSON struct {
	ID            string           `json:"id"`
	SKU           string           `json:"sku"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice"`
	Category      string           `json:"category"`
	Size          string           `json:"size"`
	Condition     string           `json:"condition"`
	Brand         string           `json:"brand"`
	Color         string           `json:"color"`
	Images        []string         `json:"images"`
	Stock         int              `json:"stock"`
}

// seedKey is an API key bound to a user and role.
type seedKey struct {
	key    string
	userID string
	role   auth.Role
}

func main() {
	var (
		databaseURL  string
		productsFile string
		sellerID     string
		buyerKey     string
		sellerKey    string
		adminKey     string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&sellerID, "seller-id", "seller-1", "user ID owning the seeded listings")
	flag.StringVar(&buyerKey, "buyer-key", os.Getenv("MARKET_SEED_BUYER_KEY"), "API key of the demo buyer")
	flag.StringVar(&sellerKey, "seller-key", os.Getenv("MARKET_SEED_SELLER_KEY"), "API key of the demo seller")
	flag.StringVar(&adminKey, "admin-key", os.Getenv("MARKET_SEED_ADMIN_KEY"), "API key of the admin")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", os.Getenv("MARKET_API_KEY_PEPPER"), "HMAC pepper for API key hashing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	keys := []seedKey{
		{key: buyerKey, userID: "buyer-1", role: auth.RoleUser},
		{key: sellerKey, userID: sellerID, role: auth.RoleSeller},
		{key: adminKey, userID: "admin", role: auth.RoleAdmin},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, sellerID, keys, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, sellerID string, keys []seedKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, repository.NewProductRepository(pool), productsFile, sellerID); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedAPIKeys(ctx, repository.NewAPIKeyRepository(pool), keys, pepper); err != nil {
		return errors.Wrap(err, "seed api keys")
	}

	return nil
}

// seedProducts creates the listings of productsFile that do not exist yet.
func seedProducts(ctx context.Context, products product.Repository, productsFile, sellerID string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var items []productJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("creating products", slog.Int("count", len(items)))

	now := time.Now().UTC()
	for _, it := range items {
		switch _, err := products.GetByID(ctx, it.ID); {
		case err == nil:
			slog.Info("product exists", slog.String("id", it.ID))
			continue
		case !errors.Is(err, product.ErrNotFound):
			return errors.Wrapf(err, "get product %s", it.ID)
		}

		p := product.Product{
			ID:          it.ID,
			Name:        it.Name,
			Description: it.Description,
			Price:       it.Price,
			Category:    product.Category(it.Category),
			Size:        product.Size(it.Size),
			Condition:   product.Condition(it.Condition),
			Brand:       it.Brand,
			Color:       it.Color,
			SKU:         it.SKU,
			Images:      it.Images,
			Stock:       it.Stock,
			Active:      true,
			SellerID:    sellerID,
			CreatedAt:   now,
		}
		if it.OriginalPrice != nil {
			p.OriginalPrice = decimal.NewNullDecimal(*it.OriginalPrice)
		}
		if err := p.Validate(); err != nil {
			return errors.Wrapf(err, "product %s", it.ID)
		}
		if err := products.Create(ctx, &p); err != nil {
			return errors.Wrapf(err, "create product %s", it.ID)
		}

		slog.Info("created product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedAPIKeys(ctx context.Context, repo auth.Repository, keys []seedKey, pepper string) error {
	for _, k := range keys {
		if k.key == "" {
			slog.Info("skipping api key without value", slog.String("role", string(k.role)))
			continue
		}
		hash := auth.HashKeyHex([]byte(pepper), k.key)
		if err := repo.Upsert(ctx, auth.APIKeyInfo{
			ID:      string(k.role) + "-" + hash[:12],
			KeyHash: hash,
			Name:    "seed " + string(k.role),
			UserID:  k.userID,
			Role:    k.role,
		}); err != nil {
			return errors.Wrapf(err, "upsert %s api key", k.role)
		}

		slog.Info("upserted api key", slog.String("user", k.userID), slog.String("role", string(k.role)))
	}

	return nil
}
