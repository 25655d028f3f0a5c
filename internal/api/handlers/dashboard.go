package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetDashboard 获取客户车队概览
// GET /api/dashboard/:customerId
func (h *Handler) GetDashboard(c *gin.Context) {
	customerID := c.Param("customerId")
	if customerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid customer id"})
		return
	}

	summary, err := h.dashboard.Summary(c.Request.Context(), customerID)
	if err != nil {
		h.logger.Error("Dashboard fetch failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to load dashboard"})
		return
	}

	c.JSON(http.StatusOK, summary)
}
