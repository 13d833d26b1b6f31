package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/streetwear-market/internal/domain/product"
	"github.com/xenking/streetwear-market/internal/storage/memory"
)

func line(sku string) feedProduct {
	return feedProduct{
		SKU:         sku,
		Name:        "Tee " + sku,
		Description: "Vintage tee",
		Price:       decimal.NewFromInt(35000),
		Category:    string(product.CategoryShirts),
		Size:        string(product.SizeM),
		Condition:   string(product.ConditionGood),
		Brand:       "Stüssy",
		Color:       "White",
		Stock:       1,
	}
}

func writeFeed(t *testing.T, dir, name string, lines ...feedProduct) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	gz := pgzip.NewWriter(f)
	enc := json.NewEncoder(gz)
	for _, l := range lines {
		require.NoError(t, enc.Encode(l))
	}
	require.NoError(t, gz.Close())
	return path
}

func TestFindConflicts(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeFeed(t, dir, "a.ndjson.gz", line("A-1"), line("SHARED-1"), line("SHARED-2")),
		writeFeed(t, dir, "b.ndjson.gz", line("B-1"), line("SHARED-1")),
		writeFeed(t, dir, "c.ndjson.gz", line("C-1"), line("SHARED-2"), line("")),
	}

	conflicts, err := findConflicts(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"SHARED-1": {}, "SHARED-2": {}}, conflicts)
}

func TestImportFeeds(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	invalid := line("BAD-1")
	invalid.Category = "Sombreros"
	withSeller := line("B-1")
	withSeller.Seller = "seller-b"

	files := []string{
		writeFeed(t, dir, "a.ndjson.gz", line("A-1"), line("SHARED"), invalid),
		writeFeed(t, dir, "b.ndjson.gz", withSeller, line("SHARED"), line("A-1")),
	}
	conflicts, err := findConflicts(ctx, files)
	require.NoError(t, err)
	// A-1 is in both feeds as well.
	assert.Len(t, conflicts, 2)

	products := memory.NewProducts(memory.NewStore())
	require.NoError(t, products.Create(ctx, &product.Product{ID: "existing", SKU: "B-1"}))

	stats, err := importFeeds(ctx, products, files, conflicts, "seller-default")
	require.NoError(t, err)
	assert.Equal(t, importStats{Imported: 0, Conflicts: 4, Existing: 1, Invalid: 1}, stats)

	files = append(files, writeFeed(t, dir, "c.ndjson.gz", line("C-1")))
	stats, err = importFeeds(ctx, products, files[2:], nil, "seller-default")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Imported)

	list, err := products.List(ctx, product.Filter{SellerID: "seller-default"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "C-1", list[0].SKU)
	assert.True(t, list[0].Active)
}

func TestStreamFeedRejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.ndjson.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte("{\"sku\":\"A\"}\n\nnot json\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	var seen []string
	err = streamFeed(context.Background(), path, func(p feedProduct) error {
		seen = append(seen, p.SKU)
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":3")
	assert.Equal(t, []string{"A"}, seen)
}
