package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langchou/fleethealth/internal/api/mailer"
	"github.com/langchou/fleethealth/internal/api/push"
	"github.com/langchou/fleethealth/internal/models"
	"github.com/langchou/fleethealth/internal/store"
)

// notifyWindow 候选故障码的回溯窗口
const notifyWindow = 7 * 24 * time.Hour

// Mailer 告警邮件发送能力
type Mailer interface {
	SendAlert(ctx context.Context, email mailer.AlertEmail) error
}

// PushSender 司机推送能力
type PushSender interface {
	Send(ctx context.Context, message push.Message) (push.Result, error)
}

// Booker 预约解析能力
type Booker interface {
	Resolve(ctx context.Context, vehicleID, customerID string, faultCodes []string) (*Booking, error)
}

// NotificationService 故障码通知编排器
// 扫描未通知的故障码，逐个完成 预约 → 邮件 → 推送 → 审计记录
type NotificationService struct {
	store   store.Store
	booking Booker
	mailer  Mailer
	push    PushSender
	logger  *zap.Logger
	now     func() time.Time
}

// NewNotificationService 创建通知编排器
func NewNotificationService(st store.Store, booker Booker, mail Mailer, pusher PushSender, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		store:   st,
		booking: booker,
		mailer:  mail,
		push:    pusher,
		logger:  logger,
		now:     time.Now,
	}
}

// RunWeeklyNotification 执行一轮通知
// 返回本轮纳入处理的故障码数量，单个渠道的发送失败不计入错误
// 候选逐个串行处理，存储错误会中止本轮剩余候选
func (s *NotificationService) RunWeeklyNotification(ctx context.Context) (int, error) {
	since := s.now().Add(-notifyWindow)

	faults, err := s.store.FaultCodes().ListUnnotified(ctx, since, models.ChannelWeeklyEmail)
	if err != nil {
		return 0, fmt.Errorf("list candidates: %w", err)
	}

	for i, fault := range faults {
		if err := s.processFault(ctx, fault); err != nil {
			return i, fmt.Errorf("process fault code %s: %w", fault.ID, err)
		}
	}

	s.logger.Info("Notification run finished", zap.Int("processed", len(faults)))
	return len(faults), nil
}

// processFault 处理单个故障码：预约、邮件、推送各自独立，逐渠道留痕
func (s *NotificationService) processFault(ctx context.Context, fault *models.FaultCode) error {
	vehicle, err := s.store.Vehicles().Find(ctx, fault.VehicleID)
	if err != nil {
		return err
	}
	if vehicle == nil {
		return fmt.Errorf("vehicle %s not found", fault.VehicleID)
	}

	customer, err := s.store.Customers().Find(ctx, vehicle.CustomerID)
	if err != nil {
		return err
	}
	if customer == nil {
		return fmt.Errorf("customer %s not found", vehicle.CustomerID)
	}

	lastTrip, err := s.store.Trips().LatestByVehicle(ctx, fault.VehicleID)
	if err != nil {
		return err
	}

	booked, err := s.booking.Resolve(ctx, vehicle.ID, customer.ID, []string{fault.Code})
	if err != nil {
		return err
	}

	// 邮件渠道
	if err := s.attemptAndLog(ctx, fault.ID, models.ChannelWeeklyEmail, func() (bool, string) {
		email := composeAlertEmail(customer, vehicle, fault, lastTrip, booked.Link)
		if err := s.mailer.SendAlert(ctx, email); err != nil {
			s.logger.Error("Failed to send fault email",
				zap.String("fault_code_id", fault.ID),
				zap.Error(err))
			return false, err.Error()
		}
		return true, ""
	}); err != nil {
		return err
	}

	// 推送渠道，邮件结果不影响本渠道
	if err := s.attemptAndLog(ctx, fault.ID, models.ChannelDriverPush, func() (bool, string) {
		result, err := s.push.Send(ctx, push.Message{
			PushToken: vehicle.DriverPushID,
			Title:     "Vehicle health alert",
			Body:      fmt.Sprintf("%s reported fault code %s. Tap to view details", vehicle.Label, fault.Code),
			Data: map[string]string{
				"vehicleId":   vehicle.ID,
				"faultCodeId": fault.ID,
			},
		})
		if err != nil {
			s.logger.Warn("Failed to push notification",
				zap.String("fault_code_id", fault.ID),
				zap.Error(err))
			return false, err.Error()
		}
		return result.Delivered, result.Detail
	}); err != nil {
		return err
	}

	return nil
}

// attemptAndLog 执行一次渠道发送并追加审计记录
// 所有渠道共用，保证每次尝试恰好留下一行记录
func (s *NotificationService) attemptAndLog(ctx context.Context, faultCodeID, channel string, attempt func() (bool, string)) error {
	delivered, detail := attempt()

	log := &models.NotificationLog{
		ID:          uuid.NewString(),
		FaultCodeID: faultCodeID,
		Channel:     channel,
		Success:     delivered,
	}
	if !delivered {
		if detail == "" {
			detail = "Unknown error"
		}
		log.Message = &detail
	}

	return s.store.NotificationLogs().Create(ctx, log)
}

// composeAlertEmail 组装告警邮件内容
// 位置信息仅在最近行程确实携带时附带
func composeAlertEmail(
	customer *models.Customer,
	vehicle *models.Vehicle,
	fault *models.FaultCode,
	lastTrip *models.Trip,
	bookingLink string,
) mailer.AlertEmail {
	email := mailer.AlertEmail{
		AdminEmail:   customer.AdminEmail,
		CustomerName: customer.Name,
		VehicleLabel: vehicle.Label,
		VIN:          vehicle.VIN,
		FaultCodes: []mailer.FaultDetail{{
			Code:        fault.Code,
			Description: fault.Description,
			Severity:    fault.Severity,
		}},
		BookingLink: bookingLink,
	}

	if lastTrip != nil && (lastTrip.LastLat != nil || lastTrip.LastLng != nil || lastTrip.LastAddress != nil) {
		email.LastLocation = &mailer.Location{
			Lat:     lastTrip.LastLat,
			Lng:     lastTrip.LastLng,
			Address: lastTrip.LastAddress,
		}
	}

	return email
}
