package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/fleethealth/internal/config"
	"github.com/langchou/fleethealth/internal/models"
)

func newIngestService(st *fakeStore, policy string) *IngestService {
	return NewIngestService(st, zap.NewNop(), policy, nil, nil, nil)
}

func seedVehicle(st *fakeStore, vehicleID, customerID string) *models.Vehicle {
	if _, ok := st.customers[customerID]; !ok {
		st.customers[customerID] = &models.Customer{
			ID:         customerID,
			Name:       "Acme Logistics",
			AdminEmail: "fleet@acme.example",
		}
	}
	vehicle := &models.Vehicle{
		ID:         vehicleID,
		VIN:        "VIN-" + vehicleID,
		Label:      "Vehicle " + vehicleID,
		CustomerID: customerID,
	}
	st.vehicles[vehicleID] = vehicle
	return vehicle
}

func TestIngestCreatesStubVehicle(t *testing.T) {
	st := newFakeStore()
	svc := newIngestService(st, config.TripPolicyPermissive)

	event, err := svc.Ingest(context.Background(), DeviceEventInput{
		VehicleID: "VH-901",
		EventType: models.EventTripStart,
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	require.NotNil(t, event)

	vehicle := st.vehicles["VH-901"]
	require.NotNil(t, vehicle, "stub vehicle should be created")
	assert.Equal(t, "VIN-VH-901", vehicle.VIN)
	assert.Equal(t, "Vehicle VH-901", vehicle.Label)
	assert.Equal(t, "demo-customer", vehicle.CustomerID)
	require.NotNil(t, st.customers["demo-customer"])
	assert.Equal(t, "Demo Customer", st.customers["demo-customer"].Name)
}

func TestIngestAlwaysRecordsEvent(t *testing.T) {
	st := newFakeStore()
	seedVehicle(st, "VH-1", "cust-1")
	svc := newIngestService(st, config.TripPolicyPermissive)

	// gps 事件没有进行中行程：状态变更是 no-op，但事件仍要落库
	_, err := svc.Ingest(context.Background(), DeviceEventInput{
		VehicleID: "VH-1",
		EventType: models.EventGPS,
		Timestamp: time.Now(),
		Payload:   map[string]any{"lat": 10.0, "lng": 20.0},
	})
	require.NoError(t, err)
	require.Len(t, st.events, 1)
	assert.Equal(t, models.EventGPS, st.events[0].EventType)
	assert.Empty(t, st.trips)
}

func TestTripStartCreatesTrip(t *testing.T) {
	st := newFakeStore()
	seedVehicle(st, "VH-1", "cust-1")
	svc := newIngestService(st, config.TripPolicyPermissive)

	startedAt := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	_, err := svc.Ingest(context.Background(), DeviceEventInput{
		VehicleID: "VH-1",
		EventType: models.EventTripStart,
		Timestamp: startedAt,
		Payload:   map[string]any{"mileage": 4832.0},
	})
	require.NoError(t, err)

	require.Len(t, st.trips, 1)
	trip := st.trips[0]
	assert.Equal(t, startedAt, trip.TripStartedAt)
	assert.Nil(t, trip.TripEndedAt)
	require.NotNil(t, trip.Mileage)
	assert.Equal(t, 4832.0, *trip.Mileage)
}

func TestTripStartIgnoresMalformedMileage(t *testing.T) {
	st := newFakeStore()
	seedVehicle(st, "VH-1", "cust-1")
	svc := newIngestService(st, config.TripPolicyPermissive)

	_, err := svc.Ingest(context.Background(), DeviceEventInput{
		VehicleID: "VH-1",
		EventType: models.EventTripStart,
		Timestamp: time.Now(),
		Payload:   map[string]any{"mileage": "not-a-number"},
	})
	require.NoError(t, err)
	require.Len(t, st.trips, 1)
	assert.Nil(t, st.trips[0].Mileage)
}

func TestTripPolicies(t *testing.T) {
	start := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	t.Run("permissive allows overlapping trips", func(t *testing.T) {
		st := newFakeStore()
		seedVehicle(st, "VH-1", "cust-1")
		svc := newIngestService(st, config.TripPolicyPermissive)

		for i := 0; i < 2; i++ {
			_, err := svc.Ingest(context.Background(), DeviceEventInput{
				VehicleID: "VH-1",
				EventType: models.EventTripStart,
				Timestamp: start.Add(time.Duration(i) * time.Minute),
			})
			require.NoError(t, err)
		}

		open, _ := st.Trips().OpenByVehicle(context.Background(), "VH-1")
		assert.Len(t, open, 2)
	})

	t.Run("reject refuses second trip-start", func(t *testing.T) {
		st := newFakeStore()
		seedVehicle(st, "VH-1", "cust-1")
		svc := newIngestService(st, config.TripPolicyReject)

		_, err := svc.Ingest(context.Background(), DeviceEventInput{
			VehicleID: "VH-1", EventType: models.EventTripStart, Timestamp: start,
		})
		require.NoError(t, err)

		_, err = svc.Ingest(context.Background(), DeviceEventInput{
			VehicleID: "VH-1", EventType: models.EventTripStart, Timestamp: start.Add(time.Minute),
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrTripAlreadyOpen))

		open, _ := st.Trips().OpenByVehicle(context.Background(), "VH-1")
		assert.Len(t, open, 1)
	})

	t.Run("autoclose closes prior trip", func(t *testing.T) {
		st := newFakeStore()
		seedVehicle(st, "VH-1", "cust-1")
		svc := newIngestService(st, config.TripPolicyAutoClose)

		_, err := svc.Ingest(context.Background(), DeviceEventInput{
			VehicleID: "VH-1", EventType: models.EventTripStart, Timestamp: start,
		})
		require.NoError(t, err)

		_, err = svc.Ingest(context.Background(), DeviceEventInput{
			VehicleID: "VH-1", EventType: models.EventTripStart, Timestamp: start.Add(time.Minute),
		})
		require.NoError(t, err)

		open, _ := st.Trips().OpenByVehicle(context.Background(), "VH-1")
		require.Len(t, open, 1)
		assert.Equal(t, start.Add(time.Minute), open[0].TripStartedAt)
	})
}

func TestGPSUpdatesOpenTrip(t *testing.T) {
	st := newFakeStore()
	seedVehicle(st, "VH-1", "cust-1")
	svc := newIngestService(st, config.TripPolicyPermissive)

	start := time.Now()
	_, err := svc.Ingest(context.Background(), DeviceEventInput{
		VehicleID: "VH-1", EventType: models.EventTripStart, Timestamp: start,
	})
	require.NoError(t, err)

	_, err = svc.Ingest(context.Background(), DeviceEventInput{
		VehicleID: "VH-1",
		EventType: models.EventGPS,
		Timestamp: start.Add(5 * time.Minute),
		Payload:   map[string]any{"lat": 10.0, "lng": 20.0},
	})
	require.NoError(t, err)

	trip := st.trips[0]
	require.NotNil(t, trip.LastLat)
	require.NotNil(t, trip.LastLng)
	assert.Equal(t, 10.0, *trip.LastLat)
	assert.Equal(t, 20.0, *trip.LastLng)
	assert.Nil(t, trip.LastAddress)

	// 部分字段更新：只带地址时坐标保持不变
	_, err = svc.Ingest(context.Background(), DeviceEventInput{
		VehicleID: "VH-1",
		EventType: models.EventGPS,
		Timestamp: start.Add(6 * time.Minute),
		Payload:   map[string]any{"address": "Boyds Depot, MD"},
	})
	require.NoError(t, err)
	assert.Equal(t, 10.0, *trip.LastLat)
	require.NotNil(t, trip.LastAddress)
	assert.Equal(t, "Boyds Depot, MD", *trip.LastAddress)
}

func TestGPSWithoutOpenTripIsNoOp(t *testing.T) {
	st := newFakeStore()
	seedVehicle(st, "VH-1", "cust-1")
	svc := newIngestService(st, config.TripPolicyPermissive)

	start := time.Now()
	_, err := svc.Ingest(context.Background(), DeviceEventInput{
		VehicleID: "VH-1", EventType: models.EventTripStart, Timestamp: start,
	})
	require.NoError(t, err)
	_, err = svc.Ingest(context.Background(), DeviceEventInput{
		VehicleID: "VH-1", EventType: models.EventTripEnd, Timestamp: start.Add(time.Minute),
	})
	require.NoError(t, err)

	_, err = svc.Ingest(context.Background(), DeviceEventInput{
		VehicleID: "VH-1",
		EventType: models.EventGPS,
		Timestamp: start.Add(2 * time.Minute),
		Payload:   map[string]any{"lat": 10.0, "lng": 20.0},
	})
	require.NoError(t, err)

	// 已结束的行程不受影响
	assert.Nil(t, st.trips[0].LastLat)
	assert.Nil(t, st.trips[0].LastLng)
}

func TestFaultLinksMostRecentTrip(t *testing.T) {
	st := newFakeStore()
	seedVehicle(st, "VH-1", "cust-1")
	svc := newIngestService(st, config.TripPolicyPermissive)

	start := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	_, err := svc.Ingest(context.Background(), DeviceEventInput{
		VehicleID: "VH-1", EventType: models.EventTripStart, Timestamp: start,
	})
	require.NoError(t, err)
	_, err = svc.Ingest(context.Background(), DeviceEventInput{
		VehicleID: "VH-1", EventType: models.EventTripEnd, Timestamp: start.Add(10 * time.Minute),
	})
	require.NoError(t, err)

	// 行程已结束，故障码仍应关联这条最近开始的行程
	_, err = svc.Ingest(context.Background(), DeviceEventInput{
		VehicleID: "VH-1",
		EventType: models.EventFault,
		Timestamp: start.Add(11 * time.Minute),
		Payload:   map[string]any{"code": "P0420", "severity": "High", "description": "Catalyst efficiency below threshold"},
	})
	require.NoError(t, err)

	require.Len(t, st.faults, 1)
	fault := st.faults[0]
	require.NotNil(t, fault.TripID)
	assert.Equal(t, st.trips[0].ID, *fault.TripID)
	assert.Equal(t, "P0420", fault.Code)
	require.NotNil(t, fault.Severity)
	assert.Equal(t, "High", *fault.Severity)
	assert.Equal(t, start.Add(11*time.Minute), fault.DetectedAt)
}

func TestFaultWithoutAnyTrip(t *testing.T) {
	st := newFakeStore()
	seedVehicle(st, "VH-1", "cust-1")
	svc := newIngestService(st, config.TripPolicyPermissive)

	_, err := svc.Ingest(context.Background(), DeviceEventInput{
		VehicleID: "VH-1",
		EventType: models.EventFault,
		Timestamp: time.Now(),
		Payload:   map[string]any{"code": "P0171"},
	})
	require.NoError(t, err)
	require.Len(t, st.faults, 1)
	assert.Nil(t, st.faults[0].TripID)
}

func TestFaultRequiresCode(t *testing.T) {
	st := newFakeStore()
	seedVehicle(st, "VH-1", "cust-1")
	svc := newIngestService(st, config.TripPolicyPermissive)

	_, err := svc.Ingest(context.Background(), DeviceEventInput{
		VehicleID: "VH-1",
		EventType: models.EventFault,
		Timestamp: time.Now(),
	})
	require.Error(t, err)
	assert.Empty(t, st.faults)
}

func TestTripEndClosesAllOpenTrips(t *testing.T) {
	st := newFakeStore()
	seedVehicle(st, "VH-1", "cust-1")
	svc := newIngestService(st, config.TripPolicyPermissive)

	start := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		_, err := svc.Ingest(context.Background(), DeviceEventInput{
			VehicleID: "VH-1", EventType: models.EventTripStart, Timestamp: start.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	endedAt := start.Add(20 * time.Minute)
	_, err := svc.Ingest(context.Background(), DeviceEventInput{
		VehicleID: "VH-1",
		EventType: models.EventTripEnd,
		Timestamp: endedAt,
		Payload:   map[string]any{"mileage": 4848.0},
	})
	require.NoError(t, err)

	for _, trip := range st.trips {
		require.NotNil(t, trip.TripEndedAt)
		assert.Equal(t, endedAt, *trip.TripEndedAt)
		require.NotNil(t, trip.Mileage)
		assert.Equal(t, 4848.0, *trip.Mileage)
	}
}

func TestTripEndWithoutMileageKeepsExisting(t *testing.T) {
	st := newFakeStore()
	seedVehicle(st, "VH-1", "cust-1")
	svc := newIngestService(st, config.TripPolicyPermissive)

	start := time.Now()
	_, err := svc.Ingest(context.Background(), DeviceEventInput{
		VehicleID: "VH-1",
		EventType: models.EventTripStart,
		Timestamp: start,
		Payload:   map[string]any{"mileage": 100.0},
	})
	require.NoError(t, err)

	_, err = svc.Ingest(context.Background(), DeviceEventInput{
		VehicleID: "VH-1", EventType: models.EventTripEnd, Timestamp: start.Add(20 * time.Minute),
	})
	require.NoError(t, err)

	require.NotNil(t, st.trips[0].Mileage)
	assert.Equal(t, 100.0, *st.trips[0].Mileage)
}

func TestIngestRejectsUnknownEventType(t *testing.T) {
	st := newFakeStore()
	seedVehicle(st, "VH-1", "cust-1")
	svc := newIngestService(st, config.TripPolicyPermissive)

	_, err := svc.Ingest(context.Background(), DeviceEventInput{
		VehicleID: "VH-1",
		EventType: models.EventType("ENGINE_WASH"),
		Timestamp: time.Now(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnknownEventType))
}

func TestIngestPropagatesStorageError(t *testing.T) {
	st := newFakeStore()
	seedVehicle(st, "VH-1", "cust-1")
	st.eventCreateErr = errors.New("disk full")
	svc := newIngestService(st, config.TripPolicyPermissive)

	_, err := svc.Ingest(context.Background(), DeviceEventInput{
		VehicleID: "VH-1", EventType: models.EventTripStart, Timestamp: time.Now(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
