package product

import (
	"context"
	"math"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/streetwear-market/internal/domain/validation"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrDuplicateSKU is returned when a product reuses another product's SKU.
	ErrDuplicateSKU = errors.New("duplicate sku")
)

// MaxStock bounds stock levels and per-item quantities so they fit the
// 32-bit stock column.
const MaxStock = math.MaxInt32

// Category is the closed set of catalog categories.
type Category string

const (
	CategoryShirts      Category = "Camisetas"
	CategoryPants       Category = "Pantalones"
	CategoryJackets     Category = "Chaquetas"
	CategoryShoes       Category = "Zapatos"
	CategoryAccessories Category = "Accesorios"
	CategoryHoodies     Category = "Sudaderas"
)

// Categories lists every valid Category.
var Categories = []Category{
	CategoryShirts, CategoryPants, CategoryJackets,
	CategoryShoes, CategoryAccessories, CategoryHoodies,
}

// Size is the garment size.
type Size string

const (
	SizeXS      Size = "XS"
	SizeS       Size = "S"
	SizeM       Size = "M"
	SizeL       Size = "L"
	SizeXL      Size = "XL"
	SizeXXL     Size = "XXL"
	SizeOneSize Size = "Única"
)

// Sizes lists every valid Size.
var Sizes = []Size{SizeXS, SizeS, SizeM, SizeL, SizeXL, SizeXXL, SizeOneSize}

// Condition describes the wear of a second-hand item.
type Condition string

const (
	ConditionNew     Condition = "Nuevo"
	ConditionLikeNew Condition = "Como nuevo"
	ConditionGood    Condition = "Buen estado"
	ConditionWorn    Condition = "Desgastado"
)

// Conditions lists every valid Condition.
var Conditions = []Condition{ConditionNew, ConditionLikeNew, ConditionGood, ConditionWorn}

// Valid reports whether c is a known category.
func (c Category) Valid() bool { return oneOf(c, Categories) }

// Valid reports whether s is a known size.
func (s Size) Valid() bool { return oneOf(s, Sizes) }

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool { return oneOf(c, Conditions) }

func oneOf[T comparable](v T, set []T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Stats holds the aggregate counters of a product.
type Stats struct {
	Views         int
	Favorites     int
	Sales         int
	AverageRating float64
	ReviewCount   int
}

// Product is a catalog listing owned by a seller.
type Product struct {
	ID            string
	Name          string
	Description   string
	Price         decimal.Decimal
	OriginalPrice decimal.NullDecimal
	Category      Category
	Size          Size
	Condition     Condition
	Brand         string
	Color         string
	SKU           string
	Images        []string
	Stock         int
	Active        bool
	SellerID      string
	Stats         Stats
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Purchasable reports whether the product can currently be ordered.
func (p *Product) Purchasable() bool {
	return p.Active && p.Stock > 0
}

// PrimaryImage returns the first image URL or an empty string.
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Validate checks the schema constraints of a product listing.
func (p *Product) Validate() error {
	if err := validation.First(
		validation.Required("name", p.Name),
		validation.MaxLen("name", p.Name, 100),
		validation.Required("description", p.Description),
		validation.MaxLen("description", p.Description, 1000),
		validation.Required("brand", p.Brand),
		validation.Required("color", p.Color),
		validation.Required("seller", p.SellerID),
	); err != nil {
		return err
	}
	if p.Price.IsNegative() {
		return validation.Errorf("price", "must not be negative")
	}
	if p.OriginalPrice.Valid && p.OriginalPrice.Decimal.IsNegative() {
		return validation.Errorf("originalPrice", "must not be negative")
	}
	if !p.Category.Valid() {
		return validation.Errorf("category", "unknown category %q", p.Category)
	}
	if !p.Size.Valid() {
		return validation.Errorf("size", "unknown size %q", p.Size)
	}
	if !p.Condition.Valid() {
		return validation.Errorf("condition", "unknown condition %q", p.Condition)
	}
	if err := validation.Range("stock", p.Stock, 0, MaxStock); err != nil {
		return err
	}
	return nil
}

// Filter narrows a product listing.
type Filter struct {
	SellerID   string
	Category   Category
	ActiveOnly bool
	Limit      int
	Offset     int
}

// Repository is the Catalog Store. The stock methods are reserved for the
// inventory manager.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Deactivate(ctx context.Context, id string) error

	// DecrementStock atomically subtracts quantity from an active product's
	// stock if at least quantity is on hand and returns the remaining stock.
	// ok is false when the product is missing, inactive or short of stock.
	DecrementStock(ctx context.Context, id string, quantity int) (remaining int, ok bool, err error)
	// IncrementStock adds quantity to the stock and returns the new value.
	IncrementStock(ctx context.Context, id string, quantity int) (int, error)
	// SetStock overwrites the stock of a product.
	SetStock(ctx context.Context, id string, stock int) error
	IncrementSales(ctx context.Context, id string, quantity int) error
	UpdateRating(ctx context.Context, id string, average float64, count int) error

	// IncrementViews counts one view of an active product.
	IncrementViews(ctx context.Context, id string) error
	// AddFavorite adds the product to the user's favorites and returns the
	// product's favorites count. Adding twice counts once.
	AddFavorite(ctx context.Context, id, userID string) (int, error)
	// RemoveFavorite undoes AddFavorite.
	RemoveFavorite(ctx context.Context, id, userID string) (int, error)
	// Favorites returns the user's active favorite products, latest first.
	Favorites(ctx context.Context, userID string) ([]Product, error)
}
