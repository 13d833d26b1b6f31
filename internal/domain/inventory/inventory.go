// Package inventory reserves and releases product stock and reports on a
// seller's stock levels.
package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/streetwear-market/internal/domain/product"
	"github.com/xenking/streetwear-market/internal/domain/validation"
)

// DefaultLowStockThreshold is used when a caller passes a non-positive threshold.
const DefaultLowStockThreshold = 5

// InsufficientStockError indicates a product cannot cover the requested quantity.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// Availability is the result of a successful availability check.
type Availability struct {
	Product *product.Product
	Stock   int
}

// Alerts partitions a seller's active products by stock level.
type Alerts struct {
	Threshold  int
	LowStock   []product.Product
	OutOfStock []product.Product
}

// Total returns the number of products needing attention.
func (a *Alerts) Total() int { return len(a.LowStock) + len(a.OutOfStock) }

// CategoryStats aggregates stock for one category.
type CategoryStats struct {
	Category   product.Category
	Count      int
	TotalStock int
	TotalValue decimal.Decimal
}

// Stats is an overview of a seller's active inventory.
type Stats struct {
	TotalProducts   int
	TotalStock      int
	TotalValue      decimal.Decimal
	AveragePrice    decimal.Decimal
	LowStockCount   int
	OutOfStockCount int
	ByCategory      []CategoryStats
}

// StockUpdate sets the absolute stock of a product.
type StockUpdate struct {
	ProductID string
	Stock     int
}

// StockUpdateResult reports the outcome of one StockUpdate.
type StockUpdateResult struct {
	ProductID     string
	PreviousStock int
	Stock         int
	Err           error
}

// Manager is the only component allowed to mutate product stock.
type Manager struct {
	products product.Repository
}

// NewManager creates a Manager backed by the catalog store.
func NewManager(products product.Repository) *Manager {
	return &Manager{products: products}
}

func checkQuantity(quantity int) error {
	return validation.Range("quantity", quantity, 1, product.MaxStock)
}

// CheckAvailability reports whether quantity units of a product can be
// ordered. Inactive products are reported as not found.
func (m *Manager) CheckAvailability(ctx context.Context, productID string, quantity int) (*Availability, error) {
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}
	p, err := m.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, product.ErrNotFound
	}
	if p.Stock < quantity {
		return nil, &InsufficientStockError{ProductID: productID, Requested: quantity, Available: p.Stock}
	}
	return &Availability{Product: p, Stock: p.Stock}, nil
}

// Reserve decrements the stock of a product by quantity. The decrement is a
// single conditional update in the store, so concurrent reservations of the
// same product can never drive stock below zero.
func (m *Manager) Reserve(ctx context.Context, productID string, quantity int) (int, error) {
	if err := checkQuantity(quantity); err != nil {
		return 0, err
	}
	remaining, ok, err := m.products.DecrementStock(ctx, productID, quantity)
	if err != nil {
		return 0, errors.Wrapf(err, "decrement stock %s", productID)
	}
	if !ok {
		return 0, m.reserveFailure(ctx, productID, quantity)
	}

	zctx.From(ctx).Debug("Stock reserved",
		zap.String("product_id", productID),
		zap.Int("quantity", quantity),
		zap.Int("remaining", remaining),
	)
	return remaining, nil
}

// reserveFailure explains why a conditional decrement matched no row.
func (m *Manager) reserveFailure(ctx context.Context, productID string, quantity int) error {
	p, err := m.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if !p.Active {
		return product.ErrNotFound
	}
	return &InsufficientStockError{ProductID: productID, Requested: quantity, Available: p.Stock}
}

// Release returns quantity units to a product's stock. No upper bound is
// enforced.
func (m *Manager) Release(ctx context.Context, productID string, quantity int) (int, error) {
	if err := checkQuantity(quantity); err != nil {
		return 0, err
	}
	stock, err := m.products.IncrementStock(ctx, productID, quantity)
	if err != nil {
		return 0, err
	}

	zctx.From(ctx).Debug("Stock released",
		zap.String("product_id", productID),
		zap.Int("quantity", quantity),
		zap.Int("stock", stock),
	)
	return stock, nil
}

// RecordSale increments the sales counter of a product. Stock is untouched:
// it was already decremented by Reserve.
func (m *Manager) RecordSale(ctx context.Context, productID string, quantity int) error {
	if err := checkQuantity(quantity); err != nil {
		return err
	}
	return m.products.IncrementSales(ctx, productID, quantity)
}

// LowStockAlerts returns the seller's active products with
// 0 < stock <= threshold and those with no stock left.
func (m *Manager) LowStockAlerts(ctx context.Context, sellerID string, threshold int) (*Alerts, error) {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	products, err := m.sellerProducts(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	alerts := &Alerts{Threshold: threshold}
	for _, p := range products {
		switch {
		case p.Stock == 0:
			alerts.OutOfStock = append(alerts.OutOfStock, p)
		case p.Stock <= threshold:
			alerts.LowStock = append(alerts.LowStock, p)
		}
	}
	return alerts, nil
}

// Stats summarises the seller's active inventory.
func (m *Manager) Stats(ctx context.Context, sellerID string) (*Stats, error) {
	products, err := m.sellerProducts(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	s := &Stats{TotalValue: decimal.Zero, AveragePrice: decimal.Zero}
	byCategory := make(map[product.Category]*CategoryStats)
	priceSum := decimal.Zero
	for _, p := range products {
		value := p.Price.Mul(decimal.NewFromInt(int64(p.Stock)))

		s.TotalProducts++
		s.TotalStock += p.Stock
		s.TotalValue = s.TotalValue.Add(value)
		priceSum = priceSum.Add(p.Price)
		if p.Stock <= DefaultLowStockThreshold {
			s.LowStockCount++
		}
		if p.Stock == 0 {
			s.OutOfStockCount++
		}

		cs, ok := byCategory[p.Category]
		if !ok {
			cs = &CategoryStats{Category: p.Category, TotalValue: decimal.Zero}
			byCategory[p.Category] = cs
		}
		cs.Count++
		cs.TotalStock += p.Stock
		cs.TotalValue = cs.TotalValue.Add(value)
	}
	if s.TotalProducts > 0 {
		s.AveragePrice = priceSum.Div(decimal.NewFromInt(int64(s.TotalProducts))).Round(2)
	}

	for _, cs := range byCategory {
		s.ByCategory = append(s.ByCategory, *cs)
	}
	sort.Slice(s.ByCategory, func(i, j int) bool {
		if s.ByCategory[i].Count != s.ByCategory[j].Count {
			return s.ByCategory[i].Count > s.ByCategory[j].Count
		}
		return s.ByCategory[i].Category < s.ByCategory[j].Category
	})
	return s, nil
}

// BulkSetStock applies each update independently; a failure of one update
// does not stop the others.
func (m *Manager) BulkSetStock(ctx context.Context, updates []StockUpdate) []StockUpdateResult {
	results := make([]StockUpdateResult, len(updates))
	for i, u := range updates {
		results[i] = m.setStock(ctx, u)
	}
	return results
}

func (m *Manager) setStock(ctx context.Context, u StockUpdate) StockUpdateResult {
	res := StockUpdateResult{ProductID: u.ProductID, Stock: u.Stock}
	if err := validation.Range("stock", u.Stock, 0, product.MaxStock); err != nil {
		res.Err = err
		return res
	}
	p, err := m.products.GetByID(ctx, u.ProductID)
	if err != nil {
		res.Err = err
		return res
	}
	res.PreviousStock = p.Stock
	if err := m.products.SetStock(ctx, u.ProductID, u.Stock); err != nil {
		res.Err = err
	}
	return res
}

func (m *Manager) sellerProducts(ctx context.Context, sellerID string) ([]product.Product, error) {
	products, err := m.products.List(ctx, product.Filter{SellerID: sellerID, ActiveOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "list seller products")
	}
	return products, nil
}
