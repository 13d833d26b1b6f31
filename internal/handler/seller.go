package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) sellerStats(c *gin.Context) {
	st, err := h.sellers.Get(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toSellerStats(st, nil))
}

// sellerSales reports lifetime totals and the delivered sales between
// startDate and endDate.
func (h *Handler) sellerSales(c *gin.Context) {
	from, ok := queryDate(c, "startDate", false)
	if !ok {
		return
	}
	to, ok := queryDate(c, "endDate", true)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	sellerID := identity(c).UserID

	sales, err := h.orders.SalesStats(ctx, sellerID, from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	st, err := h.sellers.Get(ctx, sellerID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toSellerStats(st, sales))
}
