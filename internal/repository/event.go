package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/fleethealth/internal/models"
)

// DeviceEventRepository 遥测事件数据仓库
type DeviceEventRepository struct {
	q Querier
}

// Create 追加事件记录，payload 以 JSONB 存储
func (r *DeviceEventRepository) Create(ctx context.Context, event *models.DeviceEvent) error {
	query := `
		INSERT INTO device_events (id, vehicle_id, event_type, payload, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	event.CreatedAt = time.Now()
	_, err := r.q.Exec(ctx, query,
		event.ID,
		event.VehicleID,
		string(event.EventType),
		event.Payload,
		event.OccurredAt,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert device event: %w", err)
	}
	return nil
}

// ListRecent 按发生时间倒序获取最近事件，customerID 为空时不过滤
func (r *DeviceEventRepository) ListRecent(ctx context.Context, limit int, customerID string) ([]*models.DeviceEvent, error) {
	query := `
		SELECT e.id, e.vehicle_id, e.event_type, e.payload, e.occurred_at, e.created_at
		FROM device_events e
		JOIN vehicles v ON v.id = e.vehicle_id
		WHERE $2 = '' OR v.customer_id = $2
		ORDER BY e.occurred_at DESC
		LIMIT $1
	`
	rows, err := r.q.Query(ctx, query, limit, customerID)
	if err != nil {
		return nil, fmt.Errorf("list recent events: %w", err)
	}
	defer rows.Close()

	var events []*models.DeviceEvent
	for rows.Next() {
		event := &models.DeviceEvent{}
		var eventType string
		err := rows.Scan(
			&event.ID,
			&event.VehicleID,
			&eventType,
			&event.Payload,
			&event.OccurredAt,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan device event: %w", err)
		}
		event.EventType = models.EventType(eventType)
		events = append(events, event)
	}

	return events, nil
}
