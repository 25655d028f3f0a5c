package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/fleethealth/internal/models"
)

// VehicleRepository 车辆数据仓库
type VehicleRepository struct {
	q Querier
}

// Find 查找车辆，不存在时返回 (nil, nil)
func (r *VehicleRepository) Find(ctx context.Context, id string) (*models.Vehicle, error) {
	query := `
		SELECT id, vin, label, driver_name, driver_push_id, customer_id, created_at
		FROM vehicles WHERE id = $1
	`
	vehicle := &models.Vehicle{}
	err := r.q.QueryRow(ctx, query, id).Scan(
		&vehicle.ID,
		&vehicle.VIN,
		&vehicle.Label,
		&vehicle.DriverName,
		&vehicle.DriverPushID,
		&vehicle.CustomerID,
		&vehicle.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find vehicle: %w", err)
	}
	return vehicle, nil
}

// Create 创建车辆
func (r *VehicleRepository) Create(ctx context.Context, vehicle *models.Vehicle) error {
	query := `
		INSERT INTO vehicles (id, vin, label, driver_name, driver_push_id, customer_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	vehicle.CreatedAt = time.Now()
	_, err := r.q.Exec(ctx, query,
		vehicle.ID,
		vehicle.VIN,
		vehicle.Label,
		vehicle.DriverName,
		vehicle.DriverPushID,
		vehicle.CustomerID,
		vehicle.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert vehicle: %w", err)
	}
	return nil
}

// CountByCustomer 统计客户名下车辆数
func (r *VehicleRepository) CountByCustomer(ctx context.Context, customerID string) (int64, error) {
	var count int64
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM vehicles WHERE customer_id = $1`, customerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count vehicles: %w", err)
	}
	return count, nil
}
