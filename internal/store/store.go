// Package store 定义持久层能力接口
// 业务服务只依赖这些接口，由 repository 包提供 PostgreSQL 实现
package store

import (
	"context"
	"time"

	"github.com/langchou/fleethealth/internal/models"
)

// CustomerStore 客户存取
type CustomerStore interface {
	// Find 查找客户，不存在时返回 (nil, nil)
	Find(ctx context.Context, id string) (*models.Customer, error)
	Create(ctx context.Context, customer *models.Customer) error
	// Ensure 确保客户存在（已存在则不做任何修改）
	Ensure(ctx context.Context, customer *models.Customer) error
}

// VehicleStore 车辆存取
type VehicleStore interface {
	// Find 查找车辆，不存在时返回 (nil, nil)
	Find(ctx context.Context, id string) (*models.Vehicle, error)
	Create(ctx context.Context, vehicle *models.Vehicle) error
	CountByCustomer(ctx context.Context, customerID string) (int64, error)
}

// TripStore 行程存取
type TripStore interface {
	Create(ctx context.Context, trip *models.Trip) error
	// OpenByVehicle 返回车辆所有进行中的行程（trip_ended_at 为空）
	OpenByVehicle(ctx context.Context, vehicleID string) ([]*models.Trip, error)
	// LatestByVehicle 返回最近一次开始的行程（不论是否已结束），没有时返回 (nil, nil)
	LatestByVehicle(ctx context.Context, vehicleID string) (*models.Trip, error)
	// UpdateOpenLocation 更新所有进行中行程的最后位置，nil 字段保持不变
	UpdateOpenLocation(ctx context.Context, vehicleID string, lat, lng *float64, address *string) error
	// CloseOpen 结束所有进行中的行程；mileage 为 nil 时不修改里程
	CloseOpen(ctx context.Context, vehicleID string, endedAt time.Time, mileage *float64) error
}

// DeviceEventStore 遥测事件存取
type DeviceEventStore interface {
	Create(ctx context.Context, event *models.DeviceEvent) error
	// ListRecent 按发生时间倒序返回最近的事件，customerID 为空时不过滤
	ListRecent(ctx context.Context, limit int, customerID string) ([]*models.DeviceEvent, error)
}

// FaultCodeStore 故障码存取
type FaultCodeStore interface {
	Create(ctx context.Context, fault *models.FaultCode) error
	// ListUnnotified 返回 since 之后检测到、且指定渠道没有任何通知记录的故障码
	ListUnnotified(ctx context.Context, since time.Time, channel string) ([]*models.FaultCode, error)
	// CountVehiclesWithFaults 统计窗口内上报过故障码的去重车辆数
	CountVehiclesWithFaults(ctx context.Context, customerID string, since time.Time) (int64, error)
}

// NotificationLogStore 通知审计记录存取（只追加）
type NotificationLogStore interface {
	Create(ctx context.Context, log *models.NotificationLog) error
	ListByFaultCode(ctx context.Context, faultCodeID string) ([]*models.NotificationLog, error)
}

// AppointmentStore 预约存取
type AppointmentStore interface {
	Create(ctx context.Context, appointment *models.Appointment) error
	CountByCustomerSince(ctx context.Context, customerID string, since time.Time) (int64, error)
}

// Store 聚合持久层入口
type Store interface {
	Customers() CustomerStore
	Vehicles() VehicleStore
	Trips() TripStore
	Events() DeviceEventStore
	FaultCodes() FaultCodeStore
	NotificationLogs() NotificationLogStore
	Appointments() AppointmentStore

	// InTx 在一个数据库事务内执行 fn，fn 返回错误时回滚
	InTx(ctx context.Context, fn func(Store) error) error
}
