package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/streetwear-market/internal/domain/auth"
	"github.com/xenking/streetwear-market/internal/domain/inventory"
	"github.com/xenking/streetwear-market/internal/domain/product"
)

func (h *Handler) listProducts(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}
	list, err := h.products.List(c.Request.Context(), product.Filter{
		SellerID:   c.Query("seller"),
		Category:   product.Category(c.Query("category")),
		ActiveOnly: true,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toProducts(list))
}

// getProduct counts a view and returns the listing. Inactive listings are
// not found.
func (h *Handler) getProduct(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.products.IncrementViews(ctx, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	p, err := h.products.GetByID(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toProduct(p))
}

func (h *Handler) createProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	p := &product.Product{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    product.Category(req.Category),
		Size:        product.Size(req.Size),
		Condition:   product.Condition(req.Condition),
		Brand:       req.Brand,
		Color:       req.Color,
		SKU:         req.SKU,
		Images:      req.Images,
		Stock:       req.Stock,
		Active:      true,
		SellerID:    identity(c).UserID,
		CreatedAt:   time.Now().UTC(),
	}
	if req.OriginalPrice != nil {
		p.OriginalPrice = decimal.NewNullDecimal(*req.OriginalPrice)
	}
	if err := p.Validate(); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.products.Create(c.Request.Context(), p); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProduct(p))
}

// deleteProduct deactivates the listing; orders keep their snapshots.
func (h *Handler) deleteProduct(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.products.GetByID(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !identity(c).Owns(p.SellerID) {
		h.fail(c, auth.ErrForbidden)
		return
	}
	if err := h.products.Deactivate(ctx, p.ID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// checkAvailability answers 200 with available=false when stock is short.
func (h *Handler) checkAvailability(c *gin.Context) {
	quantity, ok := queryInt(c, "quantity", 1)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	av, err := h.inventory.CheckAvailability(ctx, c.Param("id"), quantity)
	if err != nil {
		var short *inventory.InsufficientStockError
		if !errors.As(err, &short) {
			h.fail(c, err)
			return
		}
		p, err := h.products.GetByID(ctx, c.Param("id"))
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, availabilityResponse{Available: false, Stock: short.Available, Product: toProduct(p)})
		return
	}
	c.JSON(http.StatusOK, availabilityResponse{Available: true, Stock: av.Stock, Product: toProduct(av.Product)})
}

func (h *Handler) addFavorite(c *gin.Context) {
	n, err := h.products.AddFavorite(c.Request.Context(), c.Param("id"), identity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, favoritesResponse{Favorites: n})
}

func (h *Handler) removeFavorite(c *gin.Context) {
	n, err := h.products.RemoveFavorite(c.Request.Context(), c.Param("id"), identity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, favoritesResponse{Favorites: n})
}

func (h *Handler) listFavorites(c *gin.Context) {
	list, err := h.products.Favorites(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toProducts(list))
}
