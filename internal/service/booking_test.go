package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/fleethealth/internal/api/booking"
	"github.com/langchou/fleethealth/internal/models"
)

const baseClientURL = "https://fleet.example.com"

func TestResolveUsesDeepLink(t *testing.T) {
	st := newFakeStore()
	api := &fakeBookingAPI{response: &booking.Response{
		BookingID: "bk-100",
		DeepLink:  "https://garage.example.com/slots/bk-100",
	}}
	resolver := NewBookingResolver(api, st, baseClientURL, zap.NewNop())

	booked, err := resolver.Resolve(context.Background(), "VH-1", "cust-1", []string{"P0420"})
	require.NoError(t, err)
	assert.Equal(t, "bk-100", booked.ID)
	assert.Equal(t, "https://garage.example.com/slots/bk-100", booked.Link)

	require.Len(t, api.requests, 1)
	assert.Equal(t, "VH-1", api.requests[0].VehicleID)
	assert.Equal(t, []string{"P0420"}, api.requests[0].FaultCodes)
	assert.Empty(t, st.appointments, "no fallback appointment on success")
}

func TestResolveBuildsLinkWhenDeepLinkMissing(t *testing.T) {
	st := newFakeStore()
	api := &fakeBookingAPI{response: &booking.Response{BookingID: "bk-200"}}
	resolver := NewBookingResolver(api, st, baseClientURL, zap.NewNop())

	booked, err := resolver.Resolve(context.Background(), "VH-1", "cust-1", []string{"P0171"})
	require.NoError(t, err)
	assert.Equal(t, "https://fleet.example.com/bookings/bk-200", booked.Link)
}

func TestResolveFallsBackOnAPIFailure(t *testing.T) {
	st := newFakeStore()
	api := &fakeBookingAPI{err: errors.New("connection refused")}
	resolver := NewBookingResolver(api, st, baseClientURL, zap.NewNop())

	fixed := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	resolver.now = func() time.Time { return fixed }

	booked, err := resolver.Resolve(context.Background(), "VH-1", "cust-1", []string{"P0420", "P0171"})
	require.NoError(t, err)

	wantID := fmt.Sprintf("local-%d", fixed.UnixMilli())
	assert.Equal(t, wantID, booked.ID)
	assert.Equal(t, "https://fleet.example.com/bookings/"+wantID, booked.Link)

	require.Len(t, st.appointments, 1)
	appointment := st.appointments[0]
	assert.Equal(t, "VH-1", appointment.VehicleID)
	assert.Equal(t, "cust-1", appointment.CustomerID)
	assert.Equal(t, "P0420,P0171", appointment.FaultCodes)
	assert.Equal(t, models.AppointmentPending, appointment.Status)
	assert.Equal(t, "system", appointment.BookedBy)
	assert.Equal(t, booked.Link, appointment.BookingLink)
}

func TestResolveFallbackStorageErrorPropagates(t *testing.T) {
	st := newFakeStore()
	st.apptCreateErr = errors.New("disk full")
	api := &fakeBookingAPI{err: errors.New("timeout")}
	resolver := NewBookingResolver(api, st, baseClientURL, zap.NewNop())

	_, err := resolver.Resolve(context.Background(), "VH-1", "cust-1", []string{"P0420"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create fallback appointment")
}
