package handler

import (
	"net/http"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/streetwear-market/internal/domain/auth"
	"github.com/xenking/streetwear-market/internal/domain/inventory"
	"github.com/xenking/streetwear-market/internal/domain/order"
	"github.com/xenking/streetwear-market/internal/domain/product"
	"github.com/xenking/streetwear-market/internal/domain/review"
	"github.com/xenking/streetwear-market/internal/domain/validation"
)

func TestStatusOf(t *testing.T) {
	for _, tt := range []struct {
		name string
		err  error
		want int
	}{
		{"Unauthenticated", auth.ErrUnauthenticated, http.StatusUnauthorized},
		{"Forbidden", auth.ErrForbidden, http.StatusForbidden},
		{"ProductNotFound", errors.Wrap(product.ErrNotFound, "get"), http.StatusNotFound},
		{"OrderNotFound", order.ErrNotFound, http.StatusNotFound},
		{"ReviewNotFound", review.ErrNotFound, http.StatusNotFound},
		{"ItemNotFound", &order.ItemError{ProductID: "p1", Err: product.ErrNotFound}, http.StatusNotFound},
		{"InsufficientStock", &order.ItemError{ProductID: "p1", Err: &inventory.InsufficientStockError{}}, http.StatusBadRequest},
		{"Validation", validation.Errorf("rating", "out of range"), http.StatusBadRequest},
		{"Transition", &order.InvalidTransitionError{Status: order.StatusCancelled, Action: "pay"}, http.StatusBadRequest},
		{"EmptyOrder", order.ErrEmptyOrder, http.StatusBadRequest},
		{"DuplicateSKU", errors.Wrapf(product.ErrDuplicateSKU, "sku %s", "A"), http.StatusBadRequest},
		{"DuplicateReview", review.ErrDuplicateReview, http.StatusBadRequest},
		{"NoProofOfPurchase", review.ErrNoProofOfPurchase, http.StatusBadRequest},
		{"Internal", errors.New("connection reset"), http.StatusInternalServerError},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(tt.err))
		})
	}
}
