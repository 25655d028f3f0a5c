package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/fleethealth/internal/models"
)

// AppointmentRepository 预约数据仓库
type AppointmentRepository struct {
	q Querier
}

// Create 创建预约
func (r *AppointmentRepository) Create(ctx context.Context, appointment *models.Appointment) error {
	query := `
		INSERT INTO appointments (id, vehicle_id, customer_id, fault_codes, status, booked_by, booking_link, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	appointment.CreatedAt = time.Now()
	_, err := r.q.Exec(ctx, query,
		appointment.ID,
		appointment.VehicleID,
		appointment.CustomerID,
		appointment.FaultCodes,
		appointment.Status,
		appointment.BookedBy,
		appointment.BookingLink,
		appointment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

// CountByCustomerSince 统计窗口内客户新增的预约数
func (r *AppointmentRepository) CountByCustomerSince(ctx context.Context, customerID string, since time.Time) (int64, error) {
	var count int64
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE customer_id = $1 AND created_at >= $2`,
		customerID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count appointments: %w", err)
	}
	return count, nil
}
