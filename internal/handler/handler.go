// Package handler exposes the marketplace services as a JSON API on gin.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xenking/streetwear-market/internal/domain/inventory"
	"github.com/xenking/streetwear-market/internal/domain/order"
	"github.com/xenking/streetwear-market/internal/domain/product"
	"github.com/xenking/streetwear-market/internal/domain/review"
	"github.com/xenking/streetwear-market/internal/domain/seller"
	"github.com/xenking/streetwear-market/pkg/httpmiddleware"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handler implements the /api routes.
type Handler struct {
	products  product.Repository
	inventory *inventory.Manager
	orders    *order.Service
	reviews   *review.Service
	sellers   seller.Repository
	auth      *Authenticator
}

// New creates a Handler.
func New(
	products product.Repository,
	inv *inventory.Manager,
	orders *order.Service,
	reviews *review.Service,
	sellers seller.Repository,
	authenticator *Authenticator,
) *Handler {
	return &Handler{
		products:  products,
		inventory: inv,
		orders:    orders,
		reviews:   reviews,
		sellers:   sellers,
		auth:      authenticator,
	}
}

// NewEngine returns a gin engine serving h under /api. Logging and recovery
// are left to the surrounding net/http middleware.
func NewEngine(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(routeLabel)
	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "route not found")
	})
	h.Register(r.Group("/api"))
	return r
}

// routeLabel reports the matched route template to the telemetry middleware.
func routeLabel(c *gin.Context) {
	httpmiddleware.SetRoute(c.Request.Context(), c.Request.Method, c.FullPath())
	c.Next()
}

// Register mounts all routes on r.
func (h *Handler) Register(r gin.IRouter) {
	authed := h.requireAuth
	sellerOnly := requireRole(canSell)
	adminOnly := requireRole(isAdmin)

	products := r.Group("/products")
	products.GET("", h.listProducts)
	products.GET("/:id", h.getProduct)
	products.GET("/:id/availability", h.checkAvailability)
	products.POST("", authed, sellerOnly, h.createProduct)
	products.DELETE("/:id", authed, h.deleteProduct)
	products.POST("/:id/favorite", authed, h.addFavorite)
	products.DELETE("/:id/favorite", authed, h.removeFavorite)

	inv := r.Group("/inventory", authed)
	inv.GET("/alerts", sellerOnly, h.lowStockAlerts)
	inv.GET("/stats", sellerOnly, h.inventoryStats)
	inv.PUT("/stock", adminOnly, h.bulkSetStock)

	orders := r.Group("/orders", authed)
	orders.POST("", h.createOrder)
	orders.GET("", adminOnly, h.listOrders)
	orders.GET("/mine", h.listMyOrders)
	orders.GET("/seller", sellerOnly, h.listSellerOrders)
	orders.GET("/:id", h.getOrder)
	orders.PUT("/:id/pay", h.payOrder)
	orders.PUT("/:id/deliver", adminOnly, h.deliverOrder)
	orders.PUT("/:id/cancel", h.cancelOrder)
	orders.PUT("/:id/status", adminOnly, h.updateOrderStatus)

	reviews := r.Group("/reviews")
	reviews.GET("/product/:productId", h.listProductReviews)
	reviews.GET("/product/:productId/stats", h.productRatingStats)
	reviews.GET("/:id", h.getReview)
	reviews.POST("", authed, h.createReview)
	reviews.PUT("/:id", authed, h.updateReview)
	reviews.DELETE("/:id", authed, h.deleteReview)
	reviews.PUT("/:id/status", authed, adminOnly, h.moderateReview)
	reviews.POST("/:id/helpful", authed, h.markHelpful)
	reviews.DELETE("/:id/helpful", authed, h.unmarkHelpful)

	r.GET("/users/me/favorites", authed, h.listFavorites)

	sellers := r.Group("/sellers/me", authed, sellerOnly)
	sellers.GET("/stats", h.sellerStats)
	sellers.GET("/sales", h.sellerSales)
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

// pagination reads page and limit, returning limit and offset.
func pagination(c *gin.Context) (limit, offset int, ok bool) {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return 0, 0, false
	}
	limit, ok = queryInt(c, "limit", defaultPageSize)
	if !ok {
		return 0, 0, false
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)
	page = max(page, 1)
	return limit, (page - 1) * limit, true
}
