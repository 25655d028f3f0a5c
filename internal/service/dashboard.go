package service

import (
	"context"
	"time"

	"github.com/langchou/fleethealth/internal/store"
)

// DashboardSummary 客户车队概览
type DashboardSummary struct {
	TotalVehicles       int64 `json:"totalVehicles"`
	ProblematicVehicles int64 `json:"problematicVehicles"`
	HealthyVehicles     int64 `json:"healthyVehicles"`
	AppointmentsBooked  int64 `json:"appointmentsBooked"`
}

// DashboardService 概览统计查询
type DashboardService struct {
	store store.Store
	now   func() time.Time
}

// NewDashboardService 创建概览服务
func NewDashboardService(st store.Store) *DashboardService {
	return &DashboardService{store: st, now: time.Now}
}

// Summary 统计客户最近 7 天的车队健康概况
func (s *DashboardService) Summary(ctx context.Context, customerID string) (*DashboardSummary, error) {
	windowStart := s.now().Add(-notifyWindow)

	total, err := s.store.Vehicles().CountByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	problematic, err := s.store.FaultCodes().CountVehiclesWithFaults(ctx, customerID, windowStart)
	if err != nil {
		return nil, err
	}

	appointments, err := s.store.Appointments().CountByCustomerSince(ctx, customerID, windowStart)
	if err != nil {
		return nil, err
	}

	healthy := total - problematic
	if healthy < 0 {
		healthy = 0
	}

	return &DashboardSummary{
		TotalVehicles:       total,
		ProblematicVehicles: problematic,
		HealthyVehicles:     healthy,
		AppointmentsBooked:  appointments,
	}, nil
}
