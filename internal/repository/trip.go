package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/fleethealth/internal/models"
)

// TripRepository 行程数据仓库
type TripRepository struct {
	q Querier
}

// Create 创建行程
func (r *TripRepository) Create(ctx context.Context, trip *models.Trip) error {
	query := `
		INSERT INTO trips (id, vehicle_id, trip_started_at, trip_ended_at, last_lat, last_lng, last_address, mileage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.q.Exec(ctx, query,
		trip.ID,
		trip.VehicleID,
		trip.TripStartedAt,
		trip.TripEndedAt,
		trip.LastLat,
		trip.LastLng,
		trip.LastAddress,
		trip.Mileage,
	)
	if err != nil {
		return fmt.Errorf("insert trip: %w", err)
	}
	return nil
}

// OpenByVehicle 获取车辆所有进行中的行程
func (r *TripRepository) OpenByVehicle(ctx context.Context, vehicleID string) ([]*models.Trip, error) {
	query := `
		SELECT id, vehicle_id, trip_started_at, trip_ended_at, last_lat, last_lng, last_address, mileage
		FROM trips WHERE vehicle_id = $1 AND trip_ended_at IS NULL
		ORDER BY trip_started_at DESC
	`
	rows, err := r.q.Query(ctx, query, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("list open trips: %w", err)
	}
	defer rows.Close()

	var trips []*models.Trip
	for rows.Next() {
		trip := &models.Trip{}
		err := rows.Scan(
			&trip.ID,
			&trip.VehicleID,
			&trip.TripStartedAt,
			&trip.TripEndedAt,
			&trip.LastLat,
			&trip.LastLng,
			&trip.LastAddress,
			&trip.Mileage,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		trips = append(trips, trip)
	}

	return trips, nil
}

// LatestByVehicle 获取最近开始的行程（不论是否已结束），没有时返回 (nil, nil)
func (r *TripRepository) LatestByVehicle(ctx context.Context, vehicleID string) (*models.Trip, error) {
	query := `
		SELECT id, vehicle_id, trip_started_at, trip_ended_at, last_lat, last_lng, last_address, mileage
		FROM trips WHERE vehicle_id = $1
		ORDER BY trip_started_at DESC LIMIT 1
	`
	trip := &models.Trip{}
	err := r.q.QueryRow(ctx, query, vehicleID).Scan(
		&trip.ID,
		&trip.VehicleID,
		&trip.TripStartedAt,
		&trip.TripEndedAt,
		&trip.LastLat,
		&trip.LastLng,
		&trip.LastAddress,
		&trip.Mileage,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest trip: %w", err)
	}
	return trip, nil
}

// UpdateOpenLocation 更新进行中行程的最后位置，nil 字段保持不变
func (r *TripRepository) UpdateOpenLocation(ctx context.Context, vehicleID string, lat, lng *float64, address *string) error {
	query := `
		UPDATE trips SET
			last_lat = COALESCE($2, last_lat),
			last_lng = COALESCE($3, last_lng),
			last_address = COALESCE($4, last_address)
		WHERE vehicle_id = $1 AND trip_ended_at IS NULL
	`
	_, err := r.q.Exec(ctx, query, vehicleID, lat, lng, address)
	if err != nil {
		return fmt.Errorf("update trip location: %w", err)
	}
	return nil
}

// CloseOpen 结束车辆所有进行中的行程
func (r *TripRepository) CloseOpen(ctx context.Context, vehicleID string, endedAt time.Time, mileage *float64) error {
	query := `
		UPDATE trips SET
			trip_ended_at = $2,
			mileage = COALESCE($3, mileage)
		WHERE vehicle_id = $1 AND trip_ended_at IS NULL
	`
	_, err := r.q.Exec(ctx, query, vehicleID, endedAt, mileage)
	if err != nil {
		return fmt.Errorf("close trips: %w", err)
	}
	return nil
}
