package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/streetwear-market/internal/domain/order"
	"github.com/xenking/streetwear-market/internal/domain/payment"
)

const orderColumns = `id, user_id, items, shipping_address, payment_method, payment_result,
	items_price, tax_price, shipping_price, total_price,
	is_paid, paid_at, is_delivered, delivered_at, status,
	tracking_number, carrier, notes, stats_applied, created_at, updated_at`

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, items, seller_ids, shipping_address, payment_method,
		items_price, tax_price, shipping_price, total_price, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	// The row lock taken by prev serialises concurrent payments, so exactly
	// one of them sees stats_applied = FALSE.
	markOrderPaidSQL = `WITH prev AS (
			SELECT id, stats_applied FROM orders WHERE id = $1 FOR UPDATE
		)
		UPDATE orders o SET
			is_paid = TRUE,
			paid_at = COALESCE(o.paid_at, $3),
			payment_result = $2,
			status = CASE WHEN o.status = 'pending' THEN 'confirmed' ELSE o.status END,
			stats_applied = TRUE,
			updated_at = now()
		FROM prev
		WHERE o.id = prev.id AND o.status NOT IN ('cancelled', 'refunded')
		RETURNING NOT prev.stats_applied`

	markOrderDeliveredSQL = `UPDATE orders SET
			is_delivered = TRUE,
			delivered_at = COALESCE(delivered_at, $2),
			status = 'delivered',
			updated_at = now()
		WHERE id = $1 AND status NOT IN ('cancelled', 'refunded')`

	transitionOrderSQL = `UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = ANY($2)`

	setTrackingSQL = `UPDATE orders SET
			tracking_number = COALESCE(NULLIF($2, ''), tracking_number),
			carrier = COALESCE(NULLIF($3, ''), carrier),
			updated_at = now()
		WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Line items and the shipping address are
// stored as JSONB; the distinct seller IDs are denormalised for seller
// queries.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshaling order items")
	}
	addrJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return errors.Wrap(err, "marshaling shipping address")
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if o.Status == "" {
		o.Status = order.StatusPending
	}

	_, err = conn(ctx, r.pool).Exec(ctx, createOrderSQL,
		o.ID, o.UserID, itemsJSON, sellerIDs(o.Items), addrJSON, string(o.PaymentMethod),
		o.ItemsPrice, o.TaxPrice, o.ShippingPrice, o.TotalPrice,
		string(o.Status), o.Notes, o.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "creating order %q", o.ID)
	}
	o.UpdatedAt = o.CreatedAt
	return nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting order %q", id)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting order %q", id)
	}
	return &o, nil
}

// List returns orders matching f, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.UserID != "" {
		where = append(where, "user_id = "+arg(f.UserID))
	}
	if f.SellerID != "" {
		where = append(where, arg(f.SellerID)+" = ANY(seller_ids)")
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if !f.CreatedFrom.IsZero() {
		where = append(where, "created_at >= "+arg(f.CreatedFrom))
	}
	if !f.CreatedTo.IsZero() {
		where = append(where, "created_at <= "+arg(f.CreatedTo))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + orderColumns + ` FROM orders`)
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC, id")
	if f.Limit > 0 {
		sb.WriteString(" LIMIT " + arg(f.Limit))
	}
	if f.Offset > 0 {
		sb.WriteString(" OFFSET " + arg(f.Offset))
	}

	rows, err := conn(ctx, r.pool).Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "listing orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

// MarkPaid records the payment and claims the stats marker atomically.
func (r *OrderRepository) MarkPaid(ctx context.Context, id string, result payment.Result, at time.Time) (*order.Order, bool, error) {
	resultJSON, err := result.MarshalJSON()
	if err != nil {
		return nil, false, errors.Wrap(err, "marshaling payment result")
	}

	var claimed bool
	err = conn(ctx, r.pool).QueryRow(ctx, markOrderPaidSQL, id, resultJSON, at).Scan(&claimed)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, errors.Wrapf(err, "marking order %q paid", id)
	}

	// No row means the order is missing or closed; GetByID tells which.
	o, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return o, claimed, nil
}

// MarkDelivered sets the delivery flags unless the order is closed.
func (r *OrderRepository) MarkDelivered(ctx context.Context, id string, at time.Time) (*order.Order, error) {
	if _, err := conn(ctx, r.pool).Exec(ctx, markOrderDeliveredSQL, id, at); err != nil {
		return nil, errors.Wrapf(err, "marking order %q delivered", id)
	}
	return r.GetByID(ctx, id)
}

// TransitionStatus moves the order to next when its status is one of from.
func (r *OrderRepository) TransitionStatus(ctx context.Context, id string, from []order.Status, next order.Status) (*order.Order, bool, error) {
	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}

	tag, err := conn(ctx, r.pool).Exec(ctx, transitionOrderSQL, id, statuses, string(next))
	if err != nil {
		return nil, false, errors.Wrapf(err, "moving order %q to %s", id, next)
	}
	o, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return o, tag.RowsAffected() > 0, nil
}

// SetTracking stores shipment tracking data. Empty values keep the stored
// ones.
func (r *OrderRepository) SetTracking(ctx context.Context, id, trackingNumber, carrier string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, setTrackingSQL, id, trackingNumber, carrier)
	if err != nil {
		return errors.Wrapf(err, "setting tracking of order %q", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func sellerIDs(items []order.Item) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.SellerID]; ok {
			continue
		}
		seen[it.SellerID] = struct{}{}
		out = append(out, it.SellerID)
	}
	return out
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o          order.Order
		itemsJSON  []byte
		addrJSON   []byte
		resultJSON []byte
	)
	err := row.Scan(
		&o.ID, &o.UserID, &itemsJSON, &addrJSON, &o.PaymentMethod, &resultJSON,
		&o.ItemsPrice, &o.TaxPrice, &o.ShippingPrice, &o.TotalPrice,
		&o.IsPaid, &o.PaidAt, &o.IsDelivered, &o.DeliveredAt, &o.Status,
		&o.TrackingNumber, &o.Carrier, &o.Notes, &o.StatsApplied, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return order.Order{}, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return order.Order{}, errors.Wrapf(err, "unmarshaling items of order %q", o.ID)
	}
	if err := json.Unmarshal(addrJSON, &o.ShippingAddress); err != nil {
		return order.Order{}, errors.Wrapf(err, "unmarshaling address of order %q", o.ID)
	}
	if resultJSON != nil {
		res, err := payment.DecodeBytes(resultJSON)
		if err != nil {
			return order.Order{}, err
		}
		o.PaymentResult = &res
	}
	return o, nil
}
