package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/streetwear-market/internal/domain/auth"
	"github.com/xenking/streetwear-market/internal/domain/payment"
	"github.com/xenking/streetwear-market/internal/domain/pricing"
	"github.com/xenking/streetwear-market/internal/domain/product"
	"github.com/xenking/streetwear-market/internal/domain/seller"
	"github.com/xenking/streetwear-market/internal/domain/validation"
)

const instrumentationName = "github.com/xenking/streetwear-market/internal/domain/order"

// MaxNotesLength bounds Order.Notes.
const MaxNotesLength = 1000

// cancellable lists the statuses from which Cancel may proceed.
var cancellable = []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped}

// Inventory is the subset of the inventory manager the order lifecycle needs.
type Inventory interface {
	Reserve(ctx context.Context, productID string, quantity int) (int, error)
	Release(ctx context.Context, productID string, quantity int) (int, error)
	RecordSale(ctx context.Context, productID string, quantity int) error
}

// TxManager runs fn inside a store transaction. Stores without transactions
// call fn directly.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// CreateItem is one requested line of a new order.
type CreateItem struct {
	ProductID string
	Quantity  int
}

// CreateRequest holds the input for placing an order.
type CreateRequest struct {
	Items           []CreateItem
	ShippingAddress ShippingAddress
	PaymentMethod   PaymentMethod
	Notes           string
}

// CreateResult holds the output of a successfully placed order.
type CreateResult struct {
	Order    *Order
	Products []product.Product
}

// Tracking is optional shipment data attached on a status update.
type Tracking struct {
	Number  string
	Carrier string
}

// Service owns the order lifecycle: creation with stock reservation, payment,
// delivery, cancellation and status progression.
type Service struct {
	products  product.Repository
	orders    Repository
	sellers   seller.Repository
	inventory Inventory
	pricing   *pricing.Calculator
	tx        TxManager
	now       func() time.Time

	tracer    trace.Tracer
	created   metric.Int64Counter
	rejected  metric.Int64Counter
	paid      metric.Int64Counter
	cancelled metric.Int64Counter
}

type options struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	now            func() time.Time
}

// Option configures a Service.
type Option func(*options)

// WithMeterProvider sets the meter provider for order metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithTracerProvider sets the tracer provider for order spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	orders Repository,
	sellers seller.Repository,
	inventory Inventory,
	calc *pricing.Calculator,
	tx TxManager,
	opts ...Option,
) (*Service, error) {
	o := options{
		meterProvider:  metricnoop.NewMeterProvider(),
		tracerProvider: tracenoop.NewTracerProvider(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service{
		products:  products,
		orders:    orders,
		sellers:   sellers,
		inventory: inventory,
		pricing:   calc,
		tx:        tx,
		now:       o.now,
		tracer:    o.tracerProvider.Tracer(instrumentationName),
	}

	meter := o.meterProvider.Meter(instrumentationName)
	var err error
	if s.created, err = meter.Int64Counter("market.orders.created",
		metric.WithDescription("Orders successfully placed"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.created counter")
	}
	if s.rejected, err = meter.Int64Counter("market.orders.rejected",
		metric.WithDescription("Order placements rolled back"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.rejected counter")
	}
	if s.paid, err = meter.Int64Counter("market.orders.paid",
		metric.WithDescription("Orders marked as paid for the first time"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.paid counter")
	}
	if s.cancelled, err = meter.Int64Counter("market.orders.cancelled",
		metric.WithDescription("Orders cancelled with stock released"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.cancelled counter")
	}
	return s, nil
}

func (s *Service) startSpan(ctx context.Context, name, orderID string) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, name)
	if orderID != "" {
		span.SetAttributes(attribute.String("order.id", orderID))
	}
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func validateCreate(req CreateRequest) error {
	if len(req.Items) == 0 {
		return ErrEmptyOrder
	}
	for _, it := range req.Items {
		if err := validation.Required("items.product", it.ProductID); err != nil {
			return err
		}
		if err := validation.Range("items.quantity", it.Quantity, 1, product.MaxStock); err != nil {
			return &ItemError{ProductID: it.ProductID, Err: err}
		}
	}
	if !req.PaymentMethod.Valid() {
		return validation.Errorf("paymentMethod", "unsupported payment method %q", req.PaymentMethod)
	}
	if err := req.ShippingAddress.Validate(); err != nil {
		return err
	}
	return validation.MaxLen("notes", req.Notes, MaxNotesLength)
}

// Create places an order for userID. Stock is reserved item by item in the
// requested order. If any reservation or the final persist fails, every
// reservation made so far is released and the original error is returned.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (_ *CreateResult, err error) {
	ctx, span := s.startSpan(ctx, "order.Create", "")
	defer func() { endSpan(span, err) }()

	if req.ShippingAddress.Country == "" {
		req.ShippingAddress.Country = DefaultCountry
	}
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	var result *CreateResult
	if err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		r, err := s.create(ctx, userID, req)
		if err != nil {
			return err
		}
		result = r
		return nil
	}); err != nil {
		s.rejected.Add(ctx, 1)
		return nil, err
	}

	s.created.Add(ctx, 1)
	zctx.From(ctx).Info("Order created",
		zap.String("order_id", result.Order.ID),
		zap.String("user_id", userID),
		zap.Int("items", len(result.Order.Items)),
		zap.String("total", result.Order.TotalPrice.String()),
	)
	return result, nil
}

func (s *Service) create(ctx context.Context, userID string, req CreateRequest) (*CreateResult, error) {
	items := make([]Item, 0, len(req.Items))
	products := make([]product.Product, 0, len(req.Items))
	reserved := make([]CreateItem, 0, len(req.Items))

	for _, it := range req.Items {
		if _, err := s.inventory.Reserve(ctx, it.ProductID, it.Quantity); err != nil {
			s.release(ctx, reserved)
			return nil, &ItemError{ProductID: it.ProductID, Err: err}
		}
		reserved = append(reserved, it)

		p, err := s.products.GetByID(ctx, it.ProductID)
		if err != nil {
			s.release(ctx, reserved)
			return nil, &ItemError{ProductID: it.ProductID, Err: err}
		}
		items = append(items, snapshot(p, it.Quantity))
		products = append(products, *p)
	}

	now := s.now()
	o := &Order{
		ID:              uuid.New().String(),
		UserID:          userID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Status:          StatusPending,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	o.ApplyTotals(s.pricing.Calculate(o.Lines()))

	if err := s.orders.Create(ctx, o); err != nil {
		s.release(ctx, reserved)
		return nil, errors.Wrap(err, "create order")
	}
	return &CreateResult{Order: o, Products: products}, nil
}

// release undoes reservations in reverse order. Failures are logged and do
// not stop the remaining releases.
func (s *Service) release(ctx context.Context, items []CreateItem) {
	lg := zctx.From(ctx)
	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]
		if _, err := s.inventory.Release(ctx, it.ProductID, it.Quantity); err != nil {
			lg.Error("Release reserved stock",
				zap.String("product_id", it.ProductID),
				zap.Int("quantity", it.Quantity),
				zap.Error(err),
			)
		}
	}
}

// MarkPaid records the gateway confirmation. The first successful call also
// credits every seller and bumps product sales; repeated calls only refresh
// the payment result.
func (s *Service) MarkPaid(ctx context.Context, id string, result payment.Result) (_ *Order, err error) {
	ctx, span := s.startSpan(ctx, "order.MarkPaid", id)
	defer func() { endSpan(span, err) }()

	var (
		o       *Order
		claimed bool
	)
	if err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var (
			updated *Order
			err     error
		)
		updated, claimed, err = s.orders.MarkPaid(ctx, id, result, s.now())
		if err != nil {
			return err
		}
		if updated.Status.Closed() {
			return &InvalidTransitionError{Status: updated.Status, Action: "pay"}
		}
		if claimed {
			if err := s.applySale(ctx, updated); err != nil {
				return err
			}
		}
		o = updated
		return nil
	}); err != nil {
		return nil, err
	}

	if claimed {
		s.paid.Add(ctx, 1)
		zctx.From(ctx).Info("Order paid",
			zap.String("order_id", o.ID),
			zap.String("payment_id", result.ID),
		)
	}
	return o, nil
}

// applySale credits sellers and product sales for every line of o.
func (s *Service) applySale(ctx context.Context, o *Order) error {
	for _, it := range o.Items {
		earnings := it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		if err := s.sellers.AddSale(ctx, it.SellerID, it.Quantity, earnings); err != nil {
			return errors.Wrapf(err, "seller %s stats", it.SellerID)
		}
		if err := s.inventory.RecordSale(ctx, it.ProductID, it.Quantity); err != nil {
			if errors.Is(err, product.ErrNotFound) {
				zctx.From(ctx).Warn("Sold product no longer exists",
					zap.String("order_id", o.ID),
					zap.String("product_id", it.ProductID),
				)
				continue
			}
			return errors.Wrapf(err, "product %s sales", it.ProductID)
		}
	}
	return nil
}

// MarkDelivered flags the order as delivered and moves it to the delivered
// status. Payment is not required: cash orders are paid on delivery.
func (s *Service) MarkDelivered(ctx context.Context, id string) (_ *Order, err error) {
	ctx, span := s.startSpan(ctx, "order.MarkDelivered", id)
	defer func() { endSpan(span, err) }()

	o, err := s.orders.MarkDelivered(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	if o.Status != StatusDelivered {
		return nil, &InvalidTransitionError{Status: o.Status, Action: "deliver"}
	}
	return o, nil
}

// Cancel cancels the order on behalf of who and returns its stock. Only the
// buyer or an admin may cancel. Stock is released only by the call that
// actually moved the order to cancelled, so repeated cancels are no-ops.
func (s *Service) Cancel(ctx context.Context, id string, who auth.Identity) (_ *Order, err error) {
	ctx, span := s.startSpan(ctx, "order.Cancel", id)
	defer func() { endSpan(span, err) }()

	cur, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !who.Owns(cur.UserID) {
		return nil, auth.ErrForbidden
	}
	return s.cancel(ctx, cur)
}

func (s *Service) cancel(ctx context.Context, cur *Order) (*Order, error) {
	if cur.Status == StatusCancelled {
		return cur, nil
	}
	if !cur.Status.Cancellable() {
		return nil, &InvalidTransitionError{Status: cur.Status, Action: "cancel"}
	}

	var (
		o       *Order
		changed bool
	)
	if err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		o, changed, err = s.orders.TransitionStatus(ctx, cur.ID, cancellable, StatusCancelled)
		if err != nil || !changed {
			return err
		}
		for _, it := range o.Items {
			if _, err := s.inventory.Release(ctx, it.ProductID, it.Quantity); err != nil {
				return &ItemError{ProductID: it.ProductID, Err: err}
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if !changed {
		// Lost a race: another request changed the status first.
		if o.Status == StatusCancelled {
			return o, nil
		}
		return nil, &InvalidTransitionError{Status: o.Status, Action: "cancel"}
	}

	s.cancelled.Add(ctx, 1)
	zctx.From(ctx).Info("Order cancelled",
		zap.String("order_id", o.ID),
		zap.Int("items", len(o.Items)),
	)
	return o, nil
}

// UpdateStatus moves the order forward in its lifecycle. Moving to delivered
// or cancelled has the same effects as MarkDelivered and Cancel.
func (s *Service) UpdateStatus(ctx context.Context, id string, next Status, tracking Tracking) (_ *Order, err error) {
	ctx, span := s.startSpan(ctx, "order.UpdateStatus", id)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("order.status", string(next)))

	if !next.Valid() {
		return nil, validation.Errorf("status", "unknown status %q", next)
	}
	if err := validation.First(
		validation.MaxLen("trackingNumber", tracking.Number, 100),
		validation.MaxLen("carrier", tracking.Carrier, 100),
	); err != nil {
		return nil, err
	}

	cur, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cur.Status.CanTransition(next) {
		return nil, &InvalidTransitionError{Status: cur.Status, Action: "move to " + string(next)}
	}

	var o *Order
	if err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		switch next {
		case StatusCancelled:
			o, err = s.cancel(ctx, cur)
		case StatusDelivered:
			o, err = s.MarkDelivered(ctx, id)
		default:
			o, err = s.transition(ctx, cur, next)
		}
		if err != nil {
			return err
		}
		return s.setTracking(ctx, o, tracking)
	}); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) transition(ctx context.Context, cur *Order, next Status) (*Order, error) {
	o, changed, err := s.orders.TransitionStatus(ctx, cur.ID, []Status{cur.Status}, next)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, &InvalidTransitionError{Status: o.Status, Action: "move to " + string(next)}
	}
	return o, nil
}

// setTracking stores the non-empty tracking fields on an order that has
// already moved.
func (s *Service) setTracking(ctx context.Context, o *Order, t Tracking) error {
	if t.Number == "" && t.Carrier == "" {
		return nil
	}
	if err := s.orders.SetTracking(ctx, o.ID, t.Number, t.Carrier); err != nil {
		return errors.Wrap(err, "set tracking")
	}
	if t.Number != "" {
		o.TrackingNumber = t.Number
	}
	if t.Carrier != "" {
		o.Carrier = t.Carrier
	}
	return nil
}

// Get returns the order if who is its buyer, a seller of one of its lines or
// an admin.
func (s *Service) Get(ctx context.Context, id string, who auth.Identity) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if who.Owns(o.UserID) || o.HasSeller(who.UserID) {
		return o, nil
	}
	return nil, auth.ErrForbidden
}

// ListMine returns the buyer's orders, newest first.
func (s *Service) ListMine(ctx context.Context, userID string, f Filter) ([]Order, error) {
	f.UserID = userID
	f.SellerID = ""
	return s.list(ctx, f)
}

// ListForSeller returns orders containing at least one line sold by sellerID.
func (s *Service) ListForSeller(ctx context.Context, sellerID string, f Filter) ([]Order, error) {
	f.SellerID = sellerID
	f.UserID = ""
	return s.list(ctx, f)
}

// List returns all orders matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Order, error) {
	return s.list(ctx, f)
}

func (s *Service) list(ctx context.Context, f Filter) ([]Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, validation.Errorf("status", "unknown status %q", f.Status)
	}
	orders, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// SalesStats aggregates the seller's lines of delivered orders created
// within [from, to].
func (s *Service) SalesStats(ctx context.Context, sellerID string, from, to time.Time) (*SalesStats, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, validation.Errorf("endDate", "must not be before startDate")
	}
	orders, err := s.orders.List(ctx, Filter{
		SellerID:    sellerID,
		Status:      StatusDelivered,
		CreatedFrom: from,
		CreatedTo:   to,
	})
	if err != nil {
		return nil, errors.Wrap(err, "list delivered orders")
	}

	st := &SalesStats{TotalRevenue: decimal.Zero, AverageOrderValue: decimal.Zero}
	for _, o := range orders {
		counted := false
		for _, it := range o.Items {
			if it.SellerID != sellerID {
				continue
			}
			st.TotalSales += it.Quantity
			st.TotalRevenue = st.TotalRevenue.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
			counted = true
		}
		if counted {
			st.OrderCount++
		}
	}
	if st.OrderCount > 0 {
		st.AverageOrderValue = st.TotalRevenue.Div(decimal.NewFromInt(int64(st.OrderCount))).Round(2)
	}
	return st, nil
}
