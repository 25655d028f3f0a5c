package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/fleethealth/internal/models"
)

// NotificationLogRepository 通知审计记录仓库（只追加）
type NotificationLogRepository struct {
	q Querier
}

// Create 追加一条通知记录
func (r *NotificationLogRepository) Create(ctx context.Context, log *models.NotificationLog) error {
	query := `
		INSERT INTO notification_logs (id, fault_code_id, channel, success, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	log.CreatedAt = time.Now()
	_, err := r.q.Exec(ctx, query,
		log.ID,
		log.FaultCodeID,
		log.Channel,
		log.Success,
		log.Message,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification log: %w", err)
	}
	return nil
}

// ListByFaultCode 获取某个故障码的全部通知记录
func (r *NotificationLogRepository) ListByFaultCode(ctx context.Context, faultCodeID string) ([]*models.NotificationLog, error) {
	query := `
		SELECT id, fault_code_id, channel, success, message, created_at
		FROM notification_logs WHERE fault_code_id = $1
		ORDER BY created_at
	`
	rows, err := r.q.Query(ctx, query, faultCodeID)
	if err != nil {
		return nil, fmt.Errorf("list notification logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.NotificationLog
	for rows.Next() {
		log := &models.NotificationLog{}
		err := rows.Scan(
			&log.ID,
			&log.FaultCodeID,
			&log.Channel,
			&log.Success,
			&log.Message,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification log: %w", err)
		}
		logs = append(logs, log)
	}

	return logs, nil
}
