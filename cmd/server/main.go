package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/fleethealth/internal/api/amap"
	"github.com/langchou/fleethealth/internal/api/booking"
	"github.com/langchou/fleethealth/internal/api/handlers"
	"github.com/langchou/fleethealth/internal/api/mailer"
	"github.com/langchou/fleethealth/internal/api/push"
	"github.com/langchou/fleethealth/internal/config"
	"github.com/langchou/fleethealth/internal/jobs"
	"github.com/langchou/fleethealth/internal/repository"
	"github.com/langchou/fleethealth/internal/service"
	"github.com/langchou/fleethealth/internal/state"
	"github.com/langchou/fleethealth/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting FleetHealth", zap.String("port", cfg.ServerPort))

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接数据库
	db, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	defer db.Close()

	// 执行数据库迁移
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database migrated successfully")

	// 创建持久层
	st := repository.NewStore(db)

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run()

	// 车辆实时状态管理器（派生视图，随进程重启重建）
	stateManager := state.NewManager(nil)
	wsHub.SetInitDataProvider(func() interface{} {
		return stateManager.GetAllStates()
	})

	// 外部服务客户端
	bookingClient := booking.NewClient(cfg.BookingAPIURL, logger)
	pushClient := push.NewClient(cfg.PushAPIURL, logger)

	mailClient, err := mailer.New(cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPass, cfg.NotificationsFrom, logger)
	if err != nil {
		logger.Fatal("Failed to create mailer", zap.Error(err))
	}

	var geocoder service.Geocoder
	if cfg.AmapAPIKey != "" {
		geocoder = amap.NewGeocoderClient(cfg.AmapAPIKey, logger)
	}

	// 业务服务
	ingestService := service.NewIngestService(
		st,
		logger,
		cfg.TripPolicy,
		geocoder,
		stateManager,
		func(vehicleState *state.VehicleState) {
			wsHub.BroadcastStateUpdate(vehicleState)
		},
	)
	bookingResolver := service.NewBookingResolver(bookingClient, st, cfg.BaseClientURL, logger)
	notifyService := service.NewNotificationService(st, bookingResolver, mailClient, pushClient, logger)
	dashboardService := service.NewDashboardService(st)

	// 周期通知触发器
	weeklyRunner := jobs.NewWeeklyRunner(notifyService, cfg.NotifyInterval, logger)
	weeklyRunner.Start(ctx)

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(
		logger,
		st,
		ingestService,
		notifyService,
		dashboardService,
		wsHub,
	)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// 注册路由
	handler.RegisterRoutes(router)

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 停止周期任务
	weeklyRunner.Stop()

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}

// corsMiddleware CORS 中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
