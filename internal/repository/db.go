package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier pgx 查询接口，*pgxpool.Pool 和 pgx.Tx 均满足
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB 数据库连接池封装
type DB struct {
	Pool *pgxpool.Pool
}

// New 创建数据库连接
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// 连接池配置
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// 测试连接
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close 关闭连接池
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate 执行数据库迁移
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationCreateCustomers,
		migrationCreateVehicles,
		migrationCreateTrips,
		migrationCreateDeviceEvents,
		migrationCreateFaultCodes,
		migrationCreateNotificationLogs,
		migrationCreateAppointments,
	}

	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// 数据库迁移 SQL
const migrationCreateCustomers = `
CREATE TABLE IF NOT EXISTS customers (
    id TEXT PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    admin_email VARCHAR(255) NOT NULL,
    admin_phone VARCHAR(50),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migrationCreateVehicles = `
CREATE TABLE IF NOT EXISTS vehicles (
    id TEXT PRIMARY KEY,
    vin VARCHAR(64) NOT NULL,
    label VARCHAR(255) NOT NULL,
    driver_name VARCHAR(255) NOT NULL DEFAULT '',
    driver_push_id TEXT,
    customer_id TEXT NOT NULL REFERENCES customers(id),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_vehicles_customer_id ON vehicles(customer_id);
`

const migrationCreateTrips = `
CREATE TABLE IF NOT EXISTS trips (
    id TEXT PRIMARY KEY,
    vehicle_id TEXT NOT NULL REFERENCES vehicles(id),
    trip_started_at TIMESTAMP WITH TIME ZONE NOT NULL,
    trip_ended_at TIMESTAMP WITH TIME ZONE,
    last_lat DOUBLE PRECISION,
    last_lng DOUBLE PRECISION,
    last_address TEXT,
    mileage DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS idx_trips_vehicle_id ON trips(vehicle_id);
CREATE INDEX IF NOT EXISTS idx_trips_started_at ON trips(trip_started_at);
`

const migrationCreateDeviceEvents = `
CREATE TABLE IF NOT EXISTS device_events (
    id TEXT PRIMARY KEY,
    vehicle_id TEXT NOT NULL REFERENCES vehicles(id),
    event_type VARCHAR(20) NOT NULL,
    payload JSONB NOT NULL DEFAULT '{}'::jsonb,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_device_events_vehicle_id ON device_events(vehicle_id);
CREATE INDEX IF NOT EXISTS idx_device_events_occurred_at ON device_events(occurred_at);
`

const migrationCreateFaultCodes = `
CREATE TABLE IF NOT EXISTS fault_codes (
    id TEXT PRIMARY KEY,
    vehicle_id TEXT NOT NULL REFERENCES vehicles(id),
    trip_id TEXT REFERENCES trips(id),
    code VARCHAR(32) NOT NULL,
    description TEXT,
    severity VARCHAR(32),
    detected_at TIMESTAMP WITH TIME ZONE NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fault_codes_vehicle_id ON fault_codes(vehicle_id);
CREATE INDEX IF NOT EXISTS idx_fault_codes_detected_at ON fault_codes(detected_at);
`

const migrationCreateNotificationLogs = `
CREATE TABLE IF NOT EXISTS notification_logs (
    id TEXT PRIMARY KEY,
    fault_code_id TEXT NOT NULL REFERENCES fault_codes(id),
    channel VARCHAR(32) NOT NULL,
    success BOOLEAN NOT NULL,
    message TEXT,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_notification_logs_fault_code ON notification_logs(fault_code_id, channel);
`

const migrationCreateAppointments = `
CREATE TABLE IF NOT EXISTS appointments (
    id TEXT PRIMARY KEY,
    vehicle_id TEXT NOT NULL REFERENCES vehicles(id),
    customer_id TEXT NOT NULL REFERENCES customers(id),
    fault_codes TEXT NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
    booked_by VARCHAR(64) NOT NULL,
    booking_link TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_appointments_customer_id ON appointments(customer_id);
CREATE INDEX IF NOT EXISTS idx_appointments_created_at ON appointments(created_at);
`
