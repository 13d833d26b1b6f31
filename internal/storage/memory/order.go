package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/xenking/streetwear-market/internal/domain/order"
	"github.com/xenking/streetwear-market/internal/domain/payment"
)

// Orders implements order.Repository on a Store.
type Orders struct{ store *Store }

// NewOrders returns the order view of store.
func NewOrders(store *Store) *Orders { return &Orders{store: store} }

var _ order.Repository = (*Orders)(nil)

func cloneOrder(o order.Order) order.Order {
	o.Items = slices.Clone(o.Items)
	if o.PaymentResult != nil {
		pr := *o.PaymentResult
		pr.Raw = slices.Clone(pr.Raw)
		o.PaymentResult = &pr
	}
	if o.PaidAt != nil {
		t := *o.PaidAt
		o.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		o.DeliveredAt = &t
	}
	return o
}

// Create stores a new order.
func (r *Orders) Create(ctx context.Context, o *order.Order) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	r.store.orders[o.ID] = cloneOrder(*o)
	return nil
}

// GetByID returns a copy of the order.
func (r *Orders) GetByID(ctx context.Context, id string) (*order.Order, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	o, ok := r.store.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := cloneOrder(o)
	return &cp, nil
}

func matches(o *order.Order, f order.Filter) bool {
	switch {
	case f.UserID != "" && o.UserID != f.UserID:
		return false
	case f.SellerID != "" && !o.HasSeller(f.SellerID):
		return false
	case f.Status != "" && o.Status != f.Status:
		return false
	case !f.CreatedFrom.IsZero() && o.CreatedAt.Before(f.CreatedFrom):
		return false
	case !f.CreatedTo.IsZero() && o.CreatedAt.After(f.CreatedTo):
		return false
	}
	return true
}

// List returns matching orders, newest first.
func (r *Orders) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	out := make([]order.Order, 0)
	for _, o := range r.store.orders {
		if matches(&o, f) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, f.Offset, f.Limit), nil
}

// modify applies fn to the stored order under the write lock. fn reports
// whether it changed the order.
func (r *Orders) modify(ctx context.Context, id string, fn func(o *order.Order) bool) (*order.Order, bool, error) {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	o, ok := r.store.orders[id]
	if !ok {
		return nil, false, order.ErrNotFound
	}
	changed := fn(&o)
	if changed {
		o.UpdatedAt = time.Now().UTC()
		r.store.orders[id] = o
	}
	cp := cloneOrder(o)
	return &cp, changed, nil
}

// MarkPaid records the payment and claims StatsApplied.
func (r *Orders) MarkPaid(ctx context.Context, id string, result payment.Result, at time.Time) (*order.Order, bool, error) {
	claimed := false
	o, _, err := r.modify(ctx, id, func(o *order.Order) bool {
		if o.Status.Closed() {
			return false
		}
		if !o.IsPaid {
			o.IsPaid = true
			o.PaidAt = &at
		}
		pr := result
		pr.Raw = slices.Clone(pr.Raw)
		o.PaymentResult = &pr
		if o.Status == order.StatusPending {
			o.Status = order.StatusConfirmed
		}
		if !o.StatsApplied {
			o.StatsApplied = true
			claimed = true
		}
		return true
	})
	return o, claimed, err
}

// MarkDelivered sets the delivery flags.
func (r *Orders) MarkDelivered(ctx context.Context, id string, at time.Time) (*order.Order, error) {
	o, _, err := r.modify(ctx, id, func(o *order.Order) bool {
		if o.Status.Closed() {
			return false
		}
		if !o.IsDelivered {
			o.IsDelivered = true
			o.DeliveredAt = &at
		}
		o.Status = order.StatusDelivered
		return true
	})
	return o, err
}

// TransitionStatus moves the order to next when its status is one of from.
func (r *Orders) TransitionStatus(ctx context.Context, id string, from []order.Status, next order.Status) (*order.Order, bool, error) {
	return r.modify(ctx, id, func(o *order.Order) bool {
		if !slices.Contains(from, o.Status) {
			return false
		}
		o.Status = next
		return true
	})
}

// SetTracking stores shipment tracking data.
func (r *Orders) SetTracking(ctx context.Context, id, trackingNumber, carrier string) error {
	_, _, err := r.modify(ctx, id, func(o *order.Order) bool {
		if trackingNumber != "" {
			o.TrackingNumber = trackingNumber
		}
		if carrier != "" {
			o.Carrier = carrier
		}
		return true
	})
	return err
}
