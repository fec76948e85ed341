package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
	"github.com/fleetwatch/fleetwatch/internal/datastore/repository"
)

func TestCreateDevice(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.request(t, http.MethodPost, "/api/v1/devices",
		entities.Device{Name: "cam-01", Address: "10.0.0.12", Enabled: true})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.request(t, http.MethodPost, "/api/v1/devices",
		entities.Device{Name: "cam-01"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.request(t, http.MethodPost, "/api/v1/devices", entities.Device{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateDevice(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	device := entities.Device{Name: "cam-01", Enabled: true}
	require.NoError(t, f.devices.CreateDevice(context.Background(), &device))

	rec := f.request(t, http.MethodPut, "/api/v1/devices/1",
		entities.Device{Name: "cam-01", Location: "north gate", Enabled: false})
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := f.devices.GetDevice(context.Background(), "cam-01")
	require.NoError(t, err)
	assert.Equal(t, "north gate", stored.Location)
	assert.False(t, stored.Enabled)

	rec = f.request(t, http.MethodPut, "/api/v1/devices/42",
		entities.Device{Name: "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteDevice(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	device := entities.Device{Name: "cam-01"}
	require.NoError(t, f.devices.CreateDevice(context.Background(), &device))

	rec := f.request(t, http.MethodDelete, "/api/v1/devices/1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.request(t, http.MethodDelete, "/api/v1/devices/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGroupEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.request(t, http.MethodPost, "/api/v1/groups", entities.DeviceGroup{
		Name: "perimeter",
		Members: []entities.DeviceGroupMember{
			{DeviceName: "cam-01"},
			{DeviceName: "cam-02"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/v1/groups/1/members", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["members"], 2)

	rec = f.request(t, http.MethodGet, "/api/v1/groups/9/members", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.request(t, http.MethodDelete, "/api/v1/groups/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestListDowntime(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	end := time.Date(2026, 8, 20, 11, 0, 0, 0, time.UTC)
	f.downtime.intervals = []entities.DowntimeInterval{
		{DeviceName: "cam-01", StartTime: end.Add(-time.Hour), EndTime: &end, DurationMinutes: 60},
		{DeviceName: "cam-02", StartTime: end.Add(-time.Hour), EndTime: &end},
	}

	rec := f.request(t, http.MethodGet,
		"/api/v1/devices/cam-01/downtime?since=2026-08-20T00:00:00Z&until=2026-08-21T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])

	rec = f.request(t, http.MethodGet,
		"/api/v1/devices/cam-01/downtime?since=2026-08-21T00:00:00Z&until=2026-08-20T00:00:00Z", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "inverted window rejected")
}

func TestGetDowntimeStats(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.downtime.stats = &repository.DowntimeStats{
		DeviceName:           "cam-01",
		TotalIncidents:       3,
		TotalDowntimeMinutes: 90,
		AvgDowntimeMinutes:   30,
		MaxDowntimeMinutes:   45,
	}

	rec := f.request(t, http.MethodGet, "/api/v1/devices/cam-01/downtime/stats?window_days=30", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(3), body["total_incidents"])
	assert.Equal(t, float64(45), body["max_downtime_minutes"])
}

func TestGetUptime(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.calc.uptime["cam-01"] = 99.4
	f.calc.errs["cam-02"] = repository.ErrNoData

	rec := f.request(t, http.MethodGet, "/api/v1/devices/cam-01/uptime?hours=48", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, 99.4, body["uptime_percent"])
	assert.Equal(t, float64(48), body["window_hours"])

	rec = f.request(t, http.MethodGet, "/api/v1/devices/cam-02/uptime", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/v1/devices/cam-01/uptime?hours=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSLACompliance(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for _, name := range []string{"cam-01", "cam-02", "cam-03"} {
		require.NoError(t, f.devices.CreateDevice(context.Background(), &entities.Device{Name: name, Enabled: true}))
	}
	f.calc.uptime["cam-01"] = 99.9
	f.calc.uptime["cam-02"] = 80.0
	f.calc.errs["cam-03"] = repository.ErrNoData

	rec := f.request(t, http.MethodGet, "/api/v1/sla?hours=24&target=95", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["compliant"])
	assert.Equal(t, float64(3), body["total"])

	devices, ok := body["devices"].([]any)
	require.True(t, ok)
	require.Len(t, devices, 3)
	noData, ok := devices[2].(map[string]any)
	require.True(t, ok)
	assert.Nil(t, noData["uptime_percent"], "devices without history report null uptime")
}
