package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/fleethealth/internal/models"
)

// FaultCodeRepository 故障码数据仓库
type FaultCodeRepository struct {
	q Querier
}

// Create 创建故障码记录
func (r *FaultCodeRepository) Create(ctx context.Context, fault *models.FaultCode) error {
	query := `
		INSERT INTO fault_codes (id, vehicle_id, trip_id, code, description, severity, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.Exec(ctx, query,
		fault.ID,
		fault.VehicleID,
		fault.TripID,
		fault.Code,
		fault.Description,
		fault.Severity,
		fault.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fault code: %w", err)
	}
	return nil
}

// ListUnnotified 获取 since 之后检测到、且指定渠道没有任何通知记录的故障码
// 通知记录无论成败都算“已尝试”
func (r *FaultCodeRepository) ListUnnotified(ctx context.Context, since time.Time, channel string) ([]*models.FaultCode, error) {
	query := `
		SELECT f.id, f.vehicle_id, f.trip_id, f.code, f.description, f.severity, f.detected_at
		FROM fault_codes f
		WHERE f.detected_at >= $1
		AND NOT EXISTS (
			SELECT 1 FROM notification_logs n
			WHERE n.fault_code_id = f.id AND n.channel = $2
		)
		ORDER BY f.detected_at
	`
	rows, err := r.q.Query(ctx, query, since, channel)
	if err != nil {
		return nil, fmt.Errorf("list unnotified fault codes: %w", err)
	}
	defer rows.Close()

	var faults []*models.FaultCode
	for rows.Next() {
		fault := &models.FaultCode{}
		err := rows.Scan(
			&fault.ID,
			&fault.VehicleID,
			&fault.TripID,
			&fault.Code,
			&fault.Description,
			&fault.Severity,
			&fault.DetectedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fault code: %w", err)
		}
		faults = append(faults, fault)
	}

	return faults, nil
}

// CountVehiclesWithFaults 统计窗口内上报过故障码的去重车辆数
func (r *FaultCodeRepository) CountVehiclesWithFaults(ctx context.Context, customerID string, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(DISTINCT f.vehicle_id)
		FROM fault_codes f
		JOIN vehicles v ON v.id = f.vehicle_id
		WHERE v.customer_id = $1 AND f.detected_at >= $2
	`
	var count int64
	err := r.q.QueryRow(ctx, query, customerID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count fault vehicles: %w", err)
	}
	return count, nil
}
