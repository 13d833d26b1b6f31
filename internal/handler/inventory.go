package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xenking/streetwear-market/internal/domain/inventory"
)

func (h *Handler) lowStockAlerts(c *gin.Context) {
	threshold, ok := queryInt(c, "threshold", inventory.DefaultLowStockThreshold)
	if !ok {
		return
	}
	alerts, err := h.inventory.LowStockAlerts(c.Request.Context(), identity(c).UserID, threshold)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toAlerts(alerts))
}

func (h *Handler) inventoryStats(c *gin.Context) {
	st, err := h.inventory.Stats(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toInventoryStats(st))
}

// bulkSetStock applies every update independently and reports each outcome.
func (h *Handler) bulkSetStock(c *gin.Context) {
	var req stockUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if len(req.Updates) == 0 {
		badRequest(c, "updates: must not be empty")
		return
	}
	updates := make([]inventory.StockUpdate, len(req.Updates))
	for i, u := range req.Updates {
		updates[i] = inventory.StockUpdate{ProductID: u.ProductID, Stock: u.Stock}
	}

	results := h.inventory.BulkSetStock(c.Request.Context(), updates)
	resp := make([]stockUpdateResponse, len(results))
	for i, r := range results {
		resp[i] = stockUpdateResponse{ProductID: r.ProductID, Success: r.Err == nil}
		if r.Err != nil {
			resp[i].Error = r.Err.Error()
			continue
		}
		resp[i].PreviousStock = r.PreviousStock
		resp[i].Stock = r.Stock
	}
	c.JSON(http.StatusOK, gin.H{"results": resp})
}
