package models

import (
	"time"
)

// NotificationChannel 通知渠道
const (
	ChannelWeeklyEmail = "weekly-email" // 管理员周报邮件
	ChannelDriverPush  = "driver-push"  // 司机推送
)

// AppointmentStatus 预约状态
const (
	AppointmentPending   = "PENDING"
	AppointmentConfirmed = "CONFIRMED"
	AppointmentCancelled = "CANCELLED"
)

// Customer 车队客户
type Customer struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	AdminEmail string    `json:"admin_email" db:"admin_email"`
	AdminPhone *string   `json:"admin_phone,omitempty" db:"admin_phone"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Vehicle 车辆信息
// ID 由车载设备上报，不由系统生成
type Vehicle struct {
	ID           string    `json:"id" db:"id"`
	VIN          string    `json:"vin" db:"vin"`
	Label        string    `json:"label" db:"label"`
	DriverName   string    `json:"driver_name" db:"driver_name"`
	DriverPushID *string   `json:"driver_push_id,omitempty" db:"driver_push_id"`
	CustomerID   string    `json:"customer_id" db:"customer_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Trip 行程记录
// TripEndedAt 为空表示行程进行中
type Trip struct {
	ID            string     `json:"id" db:"id"`
	VehicleID     string     `json:"vehicle_id" db:"vehicle_id"`
	TripStartedAt time.Time  `json:"trip_started_at" db:"trip_started_at"`
	TripEndedAt   *time.Time `json:"trip_ended_at,omitempty" db:"trip_ended_at"`
	LastLat       *float64   `json:"last_lat,omitempty" db:"last_lat"`
	LastLng       *float64   `json:"last_lng,omitempty" db:"last_lng"`
	LastAddress   *string    `json:"last_address,omitempty" db:"last_address"`
	Mileage       *float64   `json:"mileage,omitempty" db:"mileage"`
}

// FaultCode 故障码 (DTC)，创建后不可变
type FaultCode struct {
	ID          string    `json:"id" db:"id"`
	VehicleID   string    `json:"vehicle_id" db:"vehicle_id"`
	TripID      *string   `json:"trip_id,omitempty" db:"trip_id"`
	Code        string    `json:"code" db:"code"`
	Description *string   `json:"description,omitempty" db:"description"`
	Severity    *string   `json:"severity,omitempty" db:"severity"`
	DetectedAt  time.Time `json:"detected_at" db:"detected_at"`
}

// DeviceEvent 设备遥测事件原始记录
type DeviceEvent struct {
	ID         string         `json:"id" db:"id"`
	VehicleID  string         `json:"vehicle_id" db:"vehicle_id"`
	EventType  EventType      `json:"event_type" db:"event_type"`
	Payload    map[string]any `json:"payload" db:"payload"`
	OccurredAt time.Time      `json:"occurred_at" db:"occurred_at"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// NotificationLog 通知审计记录
// 每次 (故障码, 渠道) 的发送尝试追加一行，不做原地更新
type NotificationLog struct {
	ID          string    `json:"id" db:"id"`
	FaultCodeID string    `json:"fault_code_id" db:"fault_code_id"`
	Channel     string    `json:"channel" db:"channel"`
	Success     bool      `json:"success" db:"success"`
	Message     *string   `json:"message,omitempty" db:"message"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Appointment 服务预约
// 仅在外部预约服务不可用时由兜底路径创建
type Appointment struct {
	ID          string    `json:"id" db:"id"`
	VehicleID   string    `json:"vehicle_id" db:"vehicle_id"`
	CustomerID  string    `json:"customer_id" db:"customer_id"`
	FaultCodes  string    `json:"fault_codes" db:"fault_codes"` // 逗号拼接的故障码列表
	Status      string    `json:"status" db:"status"`
	BookedBy    string    `json:"booked_by" db:"booked_by"`
	BookingLink string    `json:"booking_link" db:"booking_link"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
