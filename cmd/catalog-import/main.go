// Command catalog-import loads gzip-compressed NDJSON product feeds into the
// catalog. A SKU listed by more than one feed is ambiguous and is skipped.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/streetwear-market/internal/domain/product"
	"github.com/xenking/streetwear-market/internal/repository"
)

const (
	bloomCapacity = 2_000_000
	bloomFPR      = 0.001
	maxFeeds      = 64
	progressEvery = 10_000
	maxLineBytes  = 1 << 20
)

// feedProduct is one line of a product feed.
type feedProduct struct {
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
	Seller        string           `json:"seller"`
}

func (f feedProduct) toProduct(defaultSeller string, now time.Time) product.Product {
	p := product.Product{
		ID:          uuid.NewString(),
		Name:        f.Name,
		Description: f.Description,
		Price:       f.Price,
		Category:    product.Category(f.Category),
		Size:        product.Size(f.Size),
		Condition:   product.Condition(f.Condition),
		Brand:       f.Brand,
		Color:       f.Color,
		SKU:         f.SKU,
		Images:      f.Images,
		Stock:       f.Stock,
		Active:      true,
		SellerID:    f.Seller,
		CreatedAt:   now,
	}
	if p.SellerID == "" {
		p.SellerID = defaultSeller
	}
	if f.OriginalPrice != nil {
		p.OriginalPrice = decimal.NewNullDecimal(*f.OriginalPrice)
	}
	return p
}

// importStats summarises an import run.
type importStats struct {
	Imported  int
	Conflicts int
	Existing  int
	Invalid   int
}

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		seller      string
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing product feeds")
	flag.StringVar(&pattern, "pattern", "*.ndjson.gz", "glob of feed files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seller, "seller", "", "seller ID for feed lines without one")
	flag.BoolVar(&dryRun, "dry-run", false, "only report cross-feed SKU conflicts")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, filepath.Join(dataDir, pattern), databaseURL, seller, dryRun); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, glob, databaseURL, seller string, dryRun bool) error {
	files, err := filepath.Glob(glob)
	if err != nil {
		return errors.Wrapf(err, "glob %s", glob)
	}
	if len(files) == 0 {
		return errors.Errorf("no feeds match %s", glob)
	}
	if len(files) > maxFeeds {
		return errors.Errorf("too many feeds: %d > %d", len(files), maxFeeds)
	}
	sort.Strings(files)

	conflicts, err := findConflicts(ctx, files)
	if err != nil {
		return err
	}
	slog.Info("cross-feed sku conflicts", slog.Int("count", len(conflicts)))

	if dryRun {
		for sku := range conflicts {
			slog.Info("conflict", slog.String("sku", sku))
		}
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	stats, err := importFeeds(ctx, repository.NewProductRepository(pool), files, conflicts, seller)
	if err != nil {
		return err
	}
	slog.Info("import summary",
		slog.Int("imported", stats.Imported),
		slog.Int("conflicts", stats.Conflicts),
		slog.Int("existing", stats.Existing),
		slog.Int("invalid", stats.Invalid),
	)
	return nil
}

// findConflicts returns the SKUs present in two or more feeds. Pass 1 builds
// one bloom filter per feed; pass 2 confirms exact membership for SKUs that
// hit another feed's filter.
func findConflicts(ctx context.Context, files []string) (map[string]struct{}, error) {
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: finding candidate skus")

	results := make([]map[string]uint64, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			candidates, err := findCandidates(gctx, i, f, filters)
			if err != nil {
				return errors.Wrapf(err, "scan feed %s", f)
			}
			results[i] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Bloom hits may be false positives; a SKU is a conflict only when two
	// feeds actually reported it.
	merged := make(map[string]uint64)
	for _, r := range results {
		for sku, mask := range r {
			merged[sku] |= mask
		}
	}
	conflicts := make(map[string]struct{})
	for sku, mask := range merged {
		if bits.OnesCount64(mask) >= 2 {
			conflicts[sku] = struct{}{}
		}
	}
	return conflicts, nil
}

func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			var count int
			if err := streamFeed(ctx, f, func(p feedProduct) error {
				if p.SKU != "" {
					filter.AddString(p.SKU)
					count++
				}
				return nil
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", f)
			}
			slog.Info("pass 1 complete", slog.String("file", f), slog.Int("skus", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func findCandidates(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) (map[string]uint64, error) {
	candidates := make(map[string]uint64)
	fileBit := uint64(1) << uint(idx)

	err := streamFeed(ctx, path, func(p feedProduct) error {
		if p.SKU == "" {
			return nil
		}
		for j, f := range filters {
			if j != idx && f.TestString(p.SKU) {
				candidates[p.SKU] |= fileBit
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("pass 2 complete", slog.String("file", path), slog.Int("candidates", len(candidates)))
	return candidates, nil
}

// importFeeds creates a listing for every valid feed line whose SKU is not in
// conflicts. SKUs already in the catalog are left untouched.
func importFeeds(
	ctx context.Context,
	products product.Repository,
	files []string,
	conflicts map[string]struct{},
	seller string,
) (importStats, error) {
	var stats importStats
	now := time.Now().UTC()

	for _, f := range files {
		slog.Info("importing feed", slog.String("file", f))

		err := streamFeed(ctx, f, func(fp feedProduct) error {
			if _, ok := conflicts[fp.SKU]; ok && fp.SKU != "" {
				stats.Conflicts++
				return nil
			}
			p := fp.toProduct(seller, now)
			if err := p.Validate(); err != nil {
				stats.Invalid++
				slog.Warn("invalid feed line", slog.String("sku", fp.SKU), slog.String("error", err.Error()))
				return nil
			}
			if err := products.Create(ctx, &p); err != nil {
				if errors.Is(err, product.ErrDuplicateSKU) {
					stats.Existing++
					return nil
				}
				return errors.Wrapf(err, "create product %s", fp.SKU)
			}
			stats.Imported++
			if stats.Imported%progressEvery == 0 {
				slog.Info("import progress", slog.Int("imported", stats.Imported))
			}
			return nil
		})
		if err != nil {
			return stats, errors.Wrapf(err, "import %s", f)
		}
	}
	return stats, nil
}

// streamFeed opens a gzip-compressed NDJSON feed and calls fn for each
// product line. Blank lines are skipped.
func streamFeed(ctx context.Context, path string, fn func(p feedProduct) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		var p feedProduct
		if err := json.Unmarshal(data, &p); err != nil {
			return errors.Wrapf(err, "%s:%d", path, line)
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
