package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RunNotificationJob 手动触发一轮故障码通知
// POST /api/dtc/run-notifications
func (h *Handler) RunNotificationJob(c *gin.Context) {
	processed, err := h.notify.RunWeeklyNotification(c.Request.Context())
	if err != nil {
		h.logger.Error("Manual notification job failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to execute notification job"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"processed": processed})
}
