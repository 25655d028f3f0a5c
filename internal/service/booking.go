package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langchou/fleethealth/internal/api/booking"
	"github.com/langchou/fleethealth/internal/models"
	"github.com/langchou/fleethealth/internal/store"
)

// BookingAPI 外部预约服务能力
type BookingAPI interface {
	CreateBooking(ctx context.Context, request booking.Request) (*booking.Response, error)
}

// Booking 预约结果，Link 保证非空
type Booking struct {
	ID   string
	Link string
}

// BookingResolver 预约兜底解析器
// 外部预约失败时在本地合成一条 PENDING 预约，保证调用方总能拿到可用链接
type BookingResolver struct {
	client        BookingAPI
	store         store.Store
	baseClientURL string
	logger        *zap.Logger
	now           func() time.Time
}

// NewBookingResolver 创建预约解析器
func NewBookingResolver(client BookingAPI, st store.Store, baseClientURL string, logger *zap.Logger) *BookingResolver {
	return &BookingResolver{
		client:        client,
		store:         st,
		baseClientURL: baseClientURL,
		logger:        logger,
		now:           time.Now,
	}
}

// Resolve 尝试外部预约，任何失败都走本地兜底
// 对外只可能因兜底预约落库失败而报错
func (r *BookingResolver) Resolve(ctx context.Context, vehicleID, customerID string, faultCodes []string) (*Booking, error) {
	response, err := r.client.CreateBooking(ctx, booking.Request{
		VehicleID:  vehicleID,
		CustomerID: customerID,
		FaultCodes: faultCodes,
	})
	if err == nil {
		link := response.DeepLink
		if link == "" {
			link = fmt.Sprintf("%s/bookings/%s", r.baseClientURL, response.BookingID)
		}
		return &Booking{ID: response.BookingID, Link: link}, nil
	}

	r.logger.Warn("Booking API failed, falling back to internal link",
		zap.String("vehicle_id", vehicleID),
		zap.Error(err))

	fallbackID := fmt.Sprintf("local-%d", r.now().UnixMilli())
	link := fmt.Sprintf("%s/bookings/%s", r.baseClientURL, fallbackID)

	appointment := &models.Appointment{
		ID:          uuid.NewString(),
		VehicleID:   vehicleID,
		CustomerID:  customerID,
		FaultCodes:  strings.Join(faultCodes, ","),
		Status:      models.AppointmentPending,
		BookedBy:    "system",
		BookingLink: link,
	}
	if err := r.store.Appointments().Create(ctx, appointment); err != nil {
		return nil, fmt.Errorf("create fallback appointment: %w", err)
	}

	return &Booking{ID: fallbackID, Link: link}, nil
}
