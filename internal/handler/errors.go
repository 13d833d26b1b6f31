package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/streetwear-market/internal/domain/auth"
	"github.com/xenking/streetwear-market/internal/domain/inventory"
	"github.com/xenking/streetwear-market/internal/domain/order"
	"github.com/xenking/streetwear-market/internal/domain/product"
	"github.com/xenking/streetwear-market/internal/domain/review"
	"github.com/xenking/streetwear-market/internal/domain/validation"
)

// statusOf maps a domain error to its HTTP status.
func statusOf(err error) int {
	var (
		stockErr      *inventory.InsufficientStockError
		validationErr *validation.Error
		transitionErr *order.InvalidTransitionError
	)
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, review.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &stockErr),
		errors.As(err, &validationErr),
		errors.As(err, &transitionErr),
		errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, product.ErrDuplicateSKU),
		errors.Is(err, review.ErrDuplicateReview),
		errors.Is(err, review.ErrNoProofOfPurchase):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error response for err. Internal errors are logged and
// their message is not exposed.
func (h *Handler) fail(c *gin.Context, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		zctx.From(c.Request.Context()).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		writeError(c, code, "internal error")
		return
	}
	writeError(c, code, err.Error())
}

func writeError(c *gin.Context, code int, msg string) {
	c.JSON(code, errorResponse{Code: code, Message: msg})
}

func badRequest(c *gin.Context, msg string) {
	writeError(c, http.StatusBadRequest, msg)
}
