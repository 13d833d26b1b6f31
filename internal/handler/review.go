package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xenking/streetwear-market/internal/domain/review"
)

func (h *Handler) createReview(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	in := review.CreateRequest{
		ProductID:           req.Product,
		OrderID:             req.Order,
		SizeAccuracy:        req.SizeAccuracy,
		Quality:             req.Quality,
		ShippingSpeed:       req.ShippingSpeed,
		SellerCommunication: req.SellerCommunication,
		Images:              req.Images,
	}
	if req.Rating != nil {
		in.Rating = *req.Rating
	}
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.Comment != nil {
		in.Comment = *req.Comment
	}

	rv, err := h.reviews.Create(c.Request.Context(), identity(c).UserID, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toReview(rv))
}

func (h *Handler) getReview(c *gin.Context) {
	rv, err := h.reviews.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toReview(rv))
}

func (h *Handler) updateReview(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	rv, err := h.reviews.Update(c.Request.Context(), c.Param("id"), identity(c), review.Patch{
		Rating:              req.Rating,
		SizeAccuracy:        req.SizeAccuracy,
		Quality:             req.Quality,
		ShippingSpeed:       req.ShippingSpeed,
		SellerCommunication: req.SellerCommunication,
		Title:               req.Title,
		Comment:             req.Comment,
		Images:              req.Images,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toReview(rv))
}

func (h *Handler) deleteReview(c *gin.Context) {
	if err := h.reviews.Delete(c.Request.Context(), c.Param("id"), identity(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) moderateReview(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	rv, err := h.reviews.Moderate(c.Request.Context(), c.Param("id"), review.Status(req.Status))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toReview(rv))
}

func (h *Handler) markHelpful(c *gin.Context) {
	n, err := h.reviews.MarkHelpful(c.Request.Context(), c.Param("id"), identity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, helpfulResponse{Helpful: n})
}

func (h *Handler) unmarkHelpful(c *gin.Context) {
	n, err := h.reviews.UnmarkHelpful(c.Request.Context(), c.Param("id"), identity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, helpfulResponse{Helpful: n})
}

// listProductReviews returns approved reviews, optionally of one rating.
func (h *Handler) listProductReviews(c *gin.Context) {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", review.DefaultPageSize)
	if !ok {
		return
	}
	rating, ok := queryInt(c, "rating", 0)
	if !ok {
		return
	}
	list, err := h.reviews.ListForProduct(c.Request.Context(), c.Param("productId"), review.ListOptions{
		Page:   page,
		Limit:  limit,
		Rating: rating,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := make([]reviewResponse, len(list))
	for i := range list {
		resp[i] = toReview(&list[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) productRatingStats(c *gin.Context) {
	st, err := h.reviews.RatingStats(c.Request.Context(), c.Param("productId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	dist := make(map[string]int, len(st.Distribution))
	for rating, n := range st.Distribution {
		dist[strconv.Itoa(rating)] = n
	}
	c.JSON(http.StatusOK, ratingStatsResponse{Total: st.Total, Average: st.Average, Distribution: dist})
}
