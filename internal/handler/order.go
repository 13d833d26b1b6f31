package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xenking/streetwear-market/internal/domain/auth"
	"github.com/xenking/streetwear-market/internal/domain/order"
	"github.com/xenking/streetwear-market/internal/domain/payment"
)

// maxPaymentPayload bounds the gateway payload accepted by payOrder.
const maxPaymentPayload = 64 << 10

// createOrder places an order. Prices are always taken from the catalog;
// any totals sent by the client are ignored.
func (h *Handler) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	items := make([]order.CreateItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.CreateItem{ProductID: it.Product, Quantity: it.Quantity}
	}

	res, err := h.orders.Create(c.Request.Context(), identity(c).UserID, order.CreateRequest{
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   order.PaymentMethod(req.PaymentMethod),
		Notes:           req.Notes,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrder(res.Order))
}

func (h *Handler) getOrder(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), c.Param("id"), identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrder(o))
}

// orderFilter reads status, page and limit.
func orderFilter(c *gin.Context) (order.Filter, bool) {
	limit, offset, ok := pagination(c)
	if !ok {
		return order.Filter{}, false
	}
	return order.Filter{
		Status: order.Status(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	}, true
}

func (h *Handler) listMyOrders(c *gin.Context) {
	f, ok := orderFilter(c)
	if !ok {
		return
	}
	h.respondOrders(c)(h.orders.ListMine(c.Request.Context(), identity(c).UserID, f))
}

func (h *Handler) listSellerOrders(c *gin.Context) {
	f, ok := orderFilter(c)
	if !ok {
		return
	}
	h.respondOrders(c)(h.orders.ListForSeller(c.Request.Context(), identity(c).UserID, f))
}

func (h *Handler) listOrders(c *gin.Context) {
	f, ok := orderFilter(c)
	if !ok {
		return
	}
	h.respondOrders(c)(h.orders.List(c.Request.Context(), f))
}

func (h *Handler) respondOrders(c *gin.Context) func([]order.Order, error) {
	return func(list []order.Order, err error) {
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, toOrders(list))
	}
}

// payOrder records the payment gateway confirmation. The body is the
// gateway's own payload; it is stored as received in payment.Result.Raw.
func (h *Handler) payOrder(c *gin.Context) {
	ctx := c.Request.Context()
	who := identity(c)

	cur, err := h.orders.Get(ctx, c.Param("id"), who)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !who.Owns(cur.UserID) {
		h.fail(c, auth.ErrForbidden)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPaymentPayload))
	if err != nil {
		badRequest(c, "invalid body")
		return
	}
	result, err := payment.DecodeBytes(body)
	if err != nil {
		badRequest(c, "invalid payment payload")
		return
	}

	o, err := h.orders.MarkPaid(ctx, cur.ID, result)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrder(o))
}

func (h *Handler) deliverOrder(c *gin.Context) {
	o, err := h.orders.MarkDelivered(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrder(o))
}

func (h *Handler) cancelOrder(c *gin.Context) {
	o, err := h.orders.Cancel(c.Request.Context(), c.Param("id"), identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrder(o))
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	o, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), order.Status(req.Status), order.Tracking{
		Number:  req.TrackingNumber,
		Carrier: req.Carrier,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrder(o))
}

// queryDate parses an optional date given as RFC 3339 or YYYY-MM-DD. A bare
// end date covers the whole day.
func queryDate(c *gin.Context, name string, endOfDay bool) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		badRequest(c, "invalid "+name)
		return time.Time{}, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, true
}
