package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/fleethealth/internal/service"
	"github.com/langchou/fleethealth/internal/store"
	"github.com/langchou/fleethealth/pkg/ws"
)

// Handler HTTP 处理器
type Handler struct {
	logger    *zap.Logger
	store     store.Store
	ingest    *service.IngestService
	notify    *service.NotificationService
	dashboard *service.DashboardService
	wsHub     *ws.Hub
	upgrader  websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	st store.Store,
	ingest *service.IngestService,
	notify *service.NotificationService,
	dashboard *service.DashboardService,
	wsHub *ws.Hub,
) *Handler {
	return &Handler{
		logger:    logger,
		store:     st,
		ingest:    ingest,
		notify:    notify,
		dashboard: dashboard,
		wsHub:     wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		// 遥测事件
		api.POST("/events", h.CreateDeviceEvent)
		api.GET("/events/recent", h.GetRecentEvents)

		// 故障码通知（手动触发入口，与调度器走同一条路径）
		api.POST("/dtc/run-notifications", h.RunNotificationJob)

		// 概览
		api.GET("/dashboard/:customerId", h.GetDashboard)
	}

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// 健康检查
	r.GET("/api/health", h.HealthCheck)
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"ws_clients": h.wsHub.ClientCount(),
	})
}
