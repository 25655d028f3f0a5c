package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/langchou/fleethealth/internal/api/booking"
	"github.com/langchou/fleethealth/internal/api/mailer"
	"github.com/langchou/fleethealth/internal/api/push"
	"github.com/langchou/fleethealth/internal/models"
	"github.com/langchou/fleethealth/internal/store"
)

// -------- in-memory store fake --------

type fakeStore struct {
	customers    map[string]*models.Customer
	vehicles     map[string]*models.Vehicle
	trips        []*models.Trip
	events       []*models.DeviceEvent
	faults       []*models.FaultCode
	logs         []*models.NotificationLog
	appointments []*models.Appointment

	// 错误注入
	eventCreateErr error
	tripCreateErr  error
	logCreateErr   error
	apptCreateErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		customers: make(map[string]*models.Customer),
		vehicles:  make(map[string]*models.Vehicle),
	}
}

func (f *fakeStore) Customers() store.CustomerStore           { return fakeCustomers{f} }
func (f *fakeStore) Vehicles() store.VehicleStore             { return fakeVehicles{f} }
func (f *fakeStore) Trips() store.TripStore                   { return fakeTrips{f} }
func (f *fakeStore) Events() store.DeviceEventStore           { return fakeEvents{f} }
func (f *fakeStore) FaultCodes() store.FaultCodeStore         { return fakeFaults{f} }
func (f *fakeStore) NotificationLogs() store.NotificationLogStore { return fakeLogs{f} }
func (f *fakeStore) Appointments() store.AppointmentStore     { return fakeAppointments{f} }

func (f *fakeStore) InTx(ctx context.Context, fn func(store.Store) error) error {
	return fn(f)
}

type fakeCustomers struct{ *fakeStore }

func (f fakeCustomers) Find(_ context.Context, id string) (*models.Customer, error) {
	return f.customers[id], nil
}

func (f fakeCustomers) Create(_ context.Context, customer *models.Customer) error {
	if _, ok := f.customers[customer.ID]; ok {
		return fmt.Errorf("duplicate customer %s", customer.ID)
	}
	f.customers[customer.ID] = customer
	return nil
}

func (f fakeCustomers) Ensure(_ context.Context, customer *models.Customer) error {
	if _, ok := f.customers[customer.ID]; !ok {
		f.customers[customer.ID] = customer
	}
	return nil
}

type fakeVehicles struct{ *fakeStore }

func (f fakeVehicles) Find(_ context.Context, id string) (*models.Vehicle, error) {
	return f.vehicles[id], nil
}

func (f fakeVehicles) Create(_ context.Context, vehicle *models.Vehicle) error {
	if _, ok := f.vehicles[vehicle.ID]; ok {
		return fmt.Errorf("duplicate vehicle %s", vehicle.ID)
	}
	f.vehicles[vehicle.ID] = vehicle
	return nil
}

func (f fakeVehicles) CountByCustomer(_ context.Context, customerID string) (int64, error) {
	var count int64
	for _, v := range f.vehicles {
		if v.CustomerID == customerID {
			count++
		}
	}
	return count, nil
}

type fakeTrips struct{ *fakeStore }

func (f fakeTrips) Create(_ context.Context, trip *models.Trip) error {
	if f.tripCreateErr != nil {
		return f.tripCreateErr
	}
	f.fakeStore.trips = append(f.fakeStore.trips, trip)
	return nil
}

func (f fakeTrips) OpenByVehicle(_ context.Context, vehicleID string) ([]*models.Trip, error) {
	var open []*models.Trip
	for _, t := range f.fakeStore.trips {
		if t.VehicleID == vehicleID && t.TripEndedAt == nil {
			open = append(open, t)
		}
	}
	return open, nil
}

func (f fakeTrips) LatestByVehicle(_ context.Context, vehicleID string) (*models.Trip, error) {
	var latest *models.Trip
	for _, t := range f.fakeStore.trips {
		if t.VehicleID != vehicleID {
			continue
		}
		if latest == nil || t.TripStartedAt.After(latest.TripStartedAt) {
			latest = t
		}
	}
	return latest, nil
}

func (f fakeTrips) UpdateOpenLocation(_ context.Context, vehicleID string, lat, lng *float64, address *string) error {
	for _, t := range f.fakeStore.trips {
		if t.VehicleID != vehicleID || t.TripEndedAt != nil {
			continue
		}
		if lat != nil {
			t.LastLat = lat
		}
		if lng != nil {
			t.LastLng = lng
		}
		if address != nil {
			t.LastAddress = address
		}
	}
	return nil
}

func (f fakeTrips) CloseOpen(_ context.Context, vehicleID string, endedAt time.Time, mileage *float64) error {
	for _, t := range f.fakeStore.trips {
		if t.VehicleID != vehicleID || t.TripEndedAt != nil {
			continue
		}
		ended := endedAt
		t.TripEndedAt = &ended
		if mileage != nil {
			t.Mileage = mileage
		}
	}
	return nil
}

type fakeEvents struct{ *fakeStore }

func (f fakeEvents) Create(_ context.Context, event *models.DeviceEvent) error {
	if f.eventCreateErr != nil {
		return f.eventCreateErr
	}
	event.CreatedAt = time.Now()
	f.fakeStore.events = append(f.fakeStore.events, event)
	return nil
}

func (f fakeEvents) ListRecent(_ context.Context, limit int, customerID string) ([]*models.DeviceEvent, error) {
	var events []*models.DeviceEvent
	for _, e := range f.fakeStore.events {
		if customerID != "" {
			vehicle := f.vehicles[e.VehicleID]
			if vehicle == nil || vehicle.CustomerID != customerID {
				continue
			}
		}
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].OccurredAt.After(events[j].OccurredAt)
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

type fakeFaults struct{ *fakeStore }

func (f fakeFaults) Create(_ context.Context, fault *models.FaultCode) error {
	f.fakeStore.faults = append(f.fakeStore.faults, fault)
	return nil
}

func (f fakeFaults) ListUnnotified(_ context.Context, since time.Time, channel string) ([]*models.FaultCode, error) {
	var candidates []*models.FaultCode
	for _, fault := range f.fakeStore.faults {
		if fault.DetectedAt.Before(since) {
			continue
		}
		notified := false
		for _, log := range f.fakeStore.logs {
			if log.FaultCodeID == fault.ID && log.Channel == channel {
				notified = true
				break
			}
		}
		if !notified {
			candidates = append(candidates, fault)
		}
	}
	return candidates, nil
}

func (f fakeFaults) CountVehiclesWithFaults(_ context.Context, customerID string, since time.Time) (int64, error) {
	seen := make(map[string]bool)
	for _, fault := range f.fakeStore.faults {
		if fault.DetectedAt.Before(since) {
			continue
		}
		vehicle := f.vehicles[fault.VehicleID]
		if vehicle == nil || vehicle.CustomerID != customerID {
			continue
		}
		seen[fault.VehicleID] = true
	}
	return int64(len(seen)), nil
}

type fakeLogs struct{ *fakeStore }

func (f fakeLogs) Create(_ context.Context, log *models.NotificationLog) error {
	if f.logCreateErr != nil {
		return f.logCreateErr
	}
	log.CreatedAt = time.Now()
	f.fakeStore.logs = append(f.fakeStore.logs, log)
	return nil
}

func (f fakeLogs) ListByFaultCode(_ context.Context, faultCodeID string) ([]*models.NotificationLog, error) {
	var logs []*models.NotificationLog
	for _, log := range f.fakeStore.logs {
		if log.FaultCodeID == faultCodeID {
			logs = append(logs, log)
		}
	}
	return logs, nil
}

type fakeAppointments struct{ *fakeStore }

func (f fakeAppointments) Create(_ context.Context, appointment *models.Appointment) error {
	if f.apptCreateErr != nil {
		return f.apptCreateErr
	}
	appointment.CreatedAt = time.Now()
	f.fakeStore.appointments = append(f.fakeStore.appointments, appointment)
	return nil
}

func (f fakeAppointments) CountByCustomerSince(_ context.Context, customerID string, since time.Time) (int64, error) {
	var count int64
	for _, a := range f.fakeStore.appointments {
		if a.CustomerID == customerID && !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// logsFor 按渠道过滤某个故障码的通知记录
func (f *fakeStore) logsFor(faultCodeID, channel string) []*models.NotificationLog {
	var logs []*models.NotificationLog
	for _, log := range f.logs {
		if log.FaultCodeID == faultCodeID && log.Channel == channel {
			logs = append(logs, log)
		}
	}
	return logs
}

// -------- external collaborator fakes --------

type fakeBookingAPI struct {
	response *booking.Response
	err      error
	requests []booking.Request
}

func (f *fakeBookingAPI) CreateBooking(_ context.Context, request booking.Request) (*booking.Response, error) {
	f.requests = append(f.requests, request)
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

type fakeMailer struct {
	err  error
	sent []mailer.AlertEmail
}

func (f *fakeMailer) SendAlert(_ context.Context, email mailer.AlertEmail) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, email)
	return nil
}

type fakePush struct {
	result   push.Result
	err      error
	messages []push.Message
}

func (f *fakePush) Send(_ context.Context, message push.Message) (push.Result, error) {
	f.messages = append(f.messages, message)
	if f.err != nil {
		return push.Result{}, f.err
	}
	return f.result, nil
}

type fakeBooker struct {
	booking *Booking
	err     error
	calls   int
}

func (f *fakeBooker) Resolve(_ context.Context, vehicleID, customerID string, faultCodes []string) (*Booking, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.booking, nil
}
