// Package jobs 周期任务触发器
// 只负责按节奏调用编排器的公开入口，不包含任何业务逻辑
package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Notifier 通知编排器入口
type Notifier interface {
	RunWeeklyNotification(ctx context.Context) (int, error)
}

// WeeklyRunner 周期通知触发器
type WeeklyRunner struct {
	notifier Notifier
	interval time.Duration
	logger   *zap.Logger
	stop     chan struct{}
}

// NewWeeklyRunner 创建触发器
func NewWeeklyRunner(notifier Notifier, interval time.Duration, logger *zap.Logger) *WeeklyRunner {
	return &WeeklyRunner{
		notifier: notifier,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start 启动触发循环
func (r *WeeklyRunner) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop 停止触发循环
func (r *WeeklyRunner) Stop() {
	close(r.stop)
}

func (r *WeeklyRunner) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.logger.Info("Running scheduled notification job")
			processed, err := r.notifier.RunWeeklyNotification(ctx)
			if err != nil {
				r.logger.Error("Scheduled notification job failed", zap.Error(err))
				continue
			}
			r.logger.Info("Scheduled notification job finished", zap.Int("processed", processed))
		case <-r.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}
