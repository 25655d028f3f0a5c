package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langchou/fleethealth/internal/config"
	"github.com/langchou/fleethealth/internal/models"
	"github.com/langchou/fleethealth/internal/state"
	"github.com/langchou/fleethealth/internal/store"
)

// 未登记车辆自动归属的演示客户
const (
	demoCustomerID    = "demo-customer"
	demoCustomerName  = "Demo Customer"
	demoCustomerEmail = "admin@example.com"
)

// Geocoder 逆地理编码能力（可选注入）
type Geocoder interface {
	IsConfigured() bool
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// DeviceEventInput 设备上报的遥测事件
// 字段校验（事件类型、时间戳格式）在 HTTP 边界完成
type DeviceEventInput struct {
	VehicleID string
	EventType models.EventType
	Timestamp time.Time
	Payload   map[string]any
}

// IngestService 遥测事件接入服务
// 将单条遥测事件转换为车辆/行程/故障码的状态变更
type IngestService struct {
	store      store.Store
	logger     *zap.Logger
	tripPolicy string
	geocoder   Geocoder
	states     *state.Manager
	onState    func(*state.VehicleState)
}

// NewIngestService 创建接入服务
// geocoder、states、onState 均可为 nil
func NewIngestService(
	st store.Store,
	logger *zap.Logger,
	tripPolicy string,
	geocoder Geocoder,
	states *state.Manager,
	onState func(*state.VehicleState),
) *IngestService {
	return &IngestService{
		store:      st,
		logger:     logger,
		tripPolicy: tripPolicy,
		geocoder:   geocoder,
		states:     states,
		onState:    onState,
	}
}

// Ingest 接入一条遥测事件
// 事件记录与状态变更在同一事务内落库；存储错误直接上抛，不做重试
func (s *IngestService) Ingest(ctx context.Context, input DeviceEventInput) (*models.DeviceEvent, error) {
	vehicle, err := s.ensureVehicle(ctx, input.VehicleID)
	if err != nil {
		return nil, err
	}

	if input.Payload == nil {
		input.Payload = map[string]any{}
	}

	event := &models.DeviceEvent{
		ID:         uuid.NewString(),
		VehicleID:  input.VehicleID,
		EventType:  input.EventType,
		Payload:    input.Payload,
		OccurredAt: input.Timestamp,
	}

	err = s.store.InTx(ctx, func(tx store.Store) error {
		if err := tx.Events().Create(ctx, event); err != nil {
			return err
		}
		return s.applyMutation(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	s.updateLiveState(vehicle, event)

	return event, nil
}

// ensureVehicle 确保车辆存在
// 现场设备可能在开通流程完成前就开始上报，未知车辆不报错，自动建 stub 记录
func (s *IngestService) ensureVehicle(ctx context.Context, vehicleID string) (*models.Vehicle, error) {
	vehicle, err := s.store.Vehicles().Find(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if vehicle != nil {
		return vehicle, nil
	}

	if err := s.store.Customers().Ensure(ctx, &models.Customer{
		ID:         demoCustomerID,
		Name:       demoCustomerName,
		AdminEmail: demoCustomerEmail,
	}); err != nil {
		return nil, err
	}

	vehicle = &models.Vehicle{
		ID:         vehicleID,
		VIN:        fmt.Sprintf("VIN-%s", vehicleID),
		Label:      fmt.Sprintf("Vehicle %s", vehicleID),
		CustomerID: demoCustomerID,
	}
	if err := s.store.Vehicles().Create(ctx, vehicle); err != nil {
		return nil, err
	}

	s.logger.Info("Created stub vehicle",
		zap.String("vehicle_id", vehicleID))

	return vehicle, nil
}

// applyMutation 按事件类型执行状态变更
func (s *IngestService) applyMutation(ctx context.Context, tx store.Store, event *models.DeviceEvent) error {
	switch event.EventType {
	case models.EventTripStart:
		return s.startTrip(ctx, tx, event)
	case models.EventGPS:
		return s.updateLocation(ctx, tx, event)
	case models.EventFault:
		return s.recordFault(ctx, tx, event)
	case models.EventTripEnd:
		return tx.Trips().CloseOpen(ctx, event.VehicleID, event.OccurredAt, payloadFloat(event.Payload, "mileage"))
	default:
		return fmt.Errorf("%w: %q", models.ErrUnknownEventType, event.EventType)
	}
}

// startTrip 开启新行程，按配置策略处理已有进行中行程的情况
func (s *IngestService) startTrip(ctx context.Context, tx store.Store, event *models.DeviceEvent) error {
	switch s.tripPolicy {
	case config.TripPolicyReject:
		open, err := tx.Trips().OpenByVehicle(ctx, event.VehicleID)
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return fmt.Errorf("%w: vehicle %s", models.ErrTripAlreadyOpen, event.VehicleID)
		}
	case config.TripPolicyAutoClose:
		if err := tx.Trips().CloseOpen(ctx, event.VehicleID, event.OccurredAt, nil); err != nil {
			return err
		}
	}

	return tx.Trips().Create(ctx, &models.Trip{
		ID:            uuid.NewString(),
		VehicleID:     event.VehicleID,
		TripStartedAt: event.OccurredAt,
		Mileage:       payloadFloat(event.Payload, "mileage"),
	})
}

// updateLocation 更新进行中行程的最后位置
// 没有进行中行程时是 no-op
func (s *IngestService) updateLocation(ctx context.Context, tx store.Store, event *models.DeviceEvent) error {
	lat := payloadFloat(event.Payload, "lat")
	lng := payloadFloat(event.Payload, "lng")
	address := payloadString(event.Payload, "address")

	if lat == nil && lng == nil && address == nil {
		return nil
	}

	// 有坐标没地址时尝试逆地理编码，失败不影响接入
	if address == nil && lat != nil && lng != nil && s.geocoder != nil && s.geocoder.IsConfigured() {
		if resolved, err := s.geocoder.ReverseGeocode(ctx, *lat, *lng); err == nil && resolved != "" {
			address = &resolved
		} else if err != nil {
			s.logger.Debug("Reverse geocode failed", zap.Error(err))
		}
	}

	return tx.Trips().UpdateOpenLocation(ctx, event.VehicleID, lat, lng, address)
}

// recordFault 记录故障码，关联最近一次开始的行程（不论是否已结束）
func (s *IngestService) recordFault(ctx context.Context, tx store.Store, event *models.DeviceEvent) error {
	code := payloadString(event.Payload, "code")
	if code == nil {
		return fmt.Errorf("fault event missing code")
	}

	var tripID *string
	latest, err := tx.Trips().LatestByVehicle(ctx, event.VehicleID)
	if err != nil {
		return err
	}
	if latest != nil {
		tripID = &latest.ID
	}

	return tx.FaultCodes().Create(ctx, &models.FaultCode{
		ID:          uuid.NewString(),
		VehicleID:   event.VehicleID,
		TripID:      tripID,
		Code:        *code,
		Description: payloadString(event.Payload, "description"),
		Severity:    payloadString(event.Payload, "severity"),
		DetectedAt:  event.OccurredAt,
	})
}

// updateLiveState 推进内存中的车辆实时状态并对外广播
// 派生视图，失败只记日志，不影响已落库的数据
func (s *IngestService) updateLiveState(vehicle *models.Vehicle, event *models.DeviceEvent) {
	if s.states == nil {
		return
	}

	machine := s.states.GetOrCreate(vehicle.ID, "")
	machine.UpdateState(func(v *state.VehicleState) {
		v.Label = vehicle.Label
	})

	switch event.EventType {
	case models.EventTripStart:
		if err := machine.Trigger(state.EventTripStart); err != nil {
			s.logger.Debug("State transition skipped", zap.Error(err))
		}
	case models.EventTripEnd:
		if err := machine.Trigger(state.EventTripEnd); err != nil {
			s.logger.Debug("State transition skipped", zap.Error(err))
		}
	case models.EventGPS:
		machine.UpdateState(func(v *state.VehicleState) {
			if lat := payloadFloat(event.Payload, "lat"); lat != nil {
				v.LastLat = lat
			}
			if lng := payloadFloat(event.Payload, "lng"); lng != nil {
				v.LastLng = lng
			}
			if address := payloadString(event.Payload, "address"); address != nil {
				v.LastAddress = address
			}
		})
	case models.EventFault:
		machine.UpdateState(func(v *state.VehicleState) {
			if code := payloadString(event.Payload, "code"); code != nil {
				v.LastFaultCode = code
				occurredAt := event.OccurredAt
				v.LastFaultAt = &occurredAt
			}
		})
	}

	if s.onState != nil {
		s.onState(machine.GetState())
	}
}

// payloadFloat 从 payload 中提取数值字段，缺失或类型不符时返回 nil
func payloadFloat(payload map[string]any, key string) *float64 {
	switch v := payload[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	default:
		return nil
	}
}

// payloadString 从 payload 中提取非空字符串字段
func payloadString(payload map[string]any, key string) *string {
	if v, ok := payload[key].(string); ok && v != "" {
		return &v
	}
	return nil
}
