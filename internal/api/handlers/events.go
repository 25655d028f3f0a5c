package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/fleethealth/internal/models"
	"github.com/langchou/fleethealth/internal/service"
)

// deviceEventRequest 设备事件上报请求
type deviceEventRequest struct {
	VehicleID string         `json:"vehicleId" binding:"required"`
	EventType string         `json:"eventType" binding:"required"`
	Timestamp string         `json:"timestamp" binding:"required"`
	Payload   map[string]any `json:"payload"`
}

// CreateDeviceEvent 接入一条遥测事件
// POST /api/events
func (h *Handler) CreateDeviceEvent(c *gin.Context) {
	var req deviceEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	eventType, err := models.ParseEventType(req.EventType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	timestamp, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid timestamp, expected RFC3339"})
		return
	}

	event, err := h.ingest.Ingest(c.Request.Context(), service.DeviceEventInput{
		VehicleID: req.VehicleID,
		EventType: eventType,
		Timestamp: timestamp,
		Payload:   req.Payload,
	})
	if err != nil {
		if errors.Is(err, models.ErrTripAlreadyOpen) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Event ingestion failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to ingest event"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"event": event})
}

// GetRecentEvents 获取最近遥测事件
// GET /api/events/recent?limit=10&customerId=xxx
func (h *Handler) GetRecentEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 || limit > 100 {
		limit = 10
	}
	customerID := c.Query("customerId")

	events, err := h.store.Events().ListRecent(c.Request.Context(), limit, customerID)
	if err != nil {
		h.logger.Error("Failed to list events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to load events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}
