package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/streetwear-market/internal/domain/payment"
	"github.com/xenking/streetwear-market/internal/domain/pricing"
	"github.com/xenking/streetwear-market/internal/domain/product"
	"github.com/xenking/streetwear-market/internal/domain/validation"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// progression is the forward chain of non-terminal statuses.
var progression = map[Status]int{
	StatusPending:    0,
	StatusConfirmed:  1,
	StatusProcessing: 2,
	StatusShipped:    3,
	StatusDelivered:  4,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := progression[s]
	return ok || s == StatusCancelled || s == StatusRefunded
}

// Cancellable reports whether an order in status s may still be cancelled.
func (s Status) Cancellable() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusRefunded:
		return false
	default:
		return true
	}
}

// Closed reports whether the order was cancelled or refunded. Closed orders
// accept no payment or delivery.
func (s Status) Closed() bool {
	return s == StatusCancelled || s == StatusRefunded
}

// CanTransition reports whether status may move from s to next. Forward moves
// along pending→confirmed→processing→shipped→delivered are allowed (steps may
// be skipped), cancelled is reachable from any cancellable status and refunded
// only from delivered.
func (s Status) CanTransition(next Status) bool {
	switch next {
	case StatusCancelled:
		return s.Cancellable()
	case StatusRefunded:
		return s == StatusDelivered
	}
	from, ok := progression[s]
	if !ok {
		return false
	}
	to, ok := progression[next]
	return ok && to > from
}

// PaymentMethod is how the buyer pays.
type PaymentMethod string

const (
	PaymentCard      PaymentMethod = "card"
	PaymentPayPal    PaymentMethod = "paypal"
	PaymentNequi     PaymentMethod = "nequi"
	PaymentDaviplata PaymentMethod = "daviplata"
	PaymentCash      PaymentMethod = "cash"
	PaymentTransfer  PaymentMethod = "transfer"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentPayPal, PaymentNequi, PaymentDaviplata, PaymentCash, PaymentTransfer:
		return true
	default:
		return false
	}
}

// DefaultCountry is used when a shipping address omits the country.
const DefaultCountry = "Colombia"

// ShippingAddress is the delivery destination of an order.
type ShippingAddress struct {
	Address      string `json:"address"`
	City         string `json:"city"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
	Phone        string `json:"phone,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// Validate checks the required address fields.
func (a ShippingAddress) Validate() error {
	return validation.First(
		validation.Required("shippingAddress.address", a.Address),
		validation.Required("shippingAddress.city", a.City),
		validation.Required("shippingAddress.postalCode", a.PostalCode),
		validation.Required("shippingAddress.country", a.Country),
		validation.MaxLen("shippingAddress.instructions", a.Instructions, 500),
	)
}

// Item is a line item. Price is the catalog price at creation time and never
// changes afterwards.
type Item struct {
	ProductID string          `json:"product"`
	SellerID  string          `json:"seller"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size"`
	Condition string          `json:"condition"`
}

// Order is a purchase of one or more line items by a user.
type Order struct {
	ID              string
	UserID          string
	Items           []Item
	ShippingAddress ShippingAddress
	PaymentMethod   PaymentMethod
	PaymentResult   *payment.Result
	ItemsPrice      decimal.Decimal
	TaxPrice        decimal.Decimal
	ShippingPrice   decimal.Decimal
	TotalPrice      decimal.Decimal
	IsPaid          bool
	PaidAt          *time.Time
	IsDelivered     bool
	DeliveredAt     *time.Time
	Status          Status
	TrackingNumber  string
	Carrier         string
	Notes           string
	// StatsApplied marks that payment side effects were applied.
	StatsApplied bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Lines returns the pricing lines of the order.
func (o *Order) Lines() []pricing.Line {
	lines := make([]pricing.Line, len(o.Items))
	for i, it := range o.Items {
		lines[i] = pricing.Line{Price: it.Price, Quantity: it.Quantity}
	}
	return lines
}

// ApplyTotals sets the derived prices.
func (o *Order) ApplyTotals(t pricing.Totals) {
	o.ItemsPrice = t.ItemsPrice
	o.TaxPrice = t.TaxPrice
	o.ShippingPrice = t.ShippingPrice
	o.TotalPrice = t.TotalPrice
}

// Contains reports whether the order has a line for productID.
func (o *Order) Contains(productID string) bool {
	for _, it := range o.Items {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}

// HasSeller reports whether any line is sold by sellerID.
func (o *Order) HasSeller(sellerID string) bool {
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			return true
		}
	}
	return false
}

// Sentinel errors of the order lifecycle.
var (
	ErrNotFound   = errors.New("order not found")
	ErrEmptyOrder = errors.New("order has no items")
)

// ItemError wraps the failure of one line item and names its product.
type ItemError struct {
	ProductID string
	Err       error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %s: %v", e.ProductID, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// InvalidTransitionError is returned for a change the lifecycle forbids in
// the order's current status.
type InvalidTransitionError struct {
	Status Status
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order in status %s: cannot %s", e.Status, e.Action)
}

// Filter narrows an order listing. Zero values match everything. Results are
// ordered newest first.
type Filter struct {
	UserID   string
	SellerID string
	Status   Status
	// CreatedFrom and CreatedTo bound CreatedAt inclusively when set.
	CreatedFrom time.Time
	CreatedTo   time.Time
	Limit       int
	Offset      int
}

// SalesStats aggregates a seller's delivered sales over a period.
type SalesStats struct {
	TotalSales        int
	TotalRevenue      decimal.Decimal
	AverageOrderValue decimal.Decimal
	OrderCount        int
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, f Filter) ([]Order, error)

	// MarkPaid records the payment and claims the stats marker in one atomic
	// step, moving a pending order to confirmed. claimed is true only for the
	// call that flipped StatsApplied. Closed orders are returned unchanged.
	MarkPaid(ctx context.Context, id string, result payment.Result, at time.Time) (o *Order, claimed bool, err error)
	// MarkDelivered sets the delivery flags and the delivered status. Closed
	// orders are returned unchanged.
	MarkDelivered(ctx context.Context, id string, at time.Time) (*Order, error)
	// TransitionStatus moves the order to next only if its current status is
	// one of from. changed is false when the current status did not match; o
	// is the current order either way.
	TransitionStatus(ctx context.Context, id string, from []Status, next Status) (o *Order, changed bool, err error)
	SetTracking(ctx context.Context, id, trackingNumber, carrier string) error
}

// snapshot copies the catalog fields of p onto a new line item.
func snapshot(p *product.Product, quantity int) Item {
	return Item{
		ProductID: p.ID,
		SellerID:  p.SellerID,
		Name:      p.Name,
		Image:     p.PrimaryImage(),
		Price:     p.Price,
		Quantity:  quantity,
		Size:      string(p.Size),
		Condition: string(p.Condition),
	}
}
