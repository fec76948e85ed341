package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
)

func testWindow() entities.MaintenanceWindow {
	start := time.Date(2026, 9, 1, 2, 0, 0, 0, time.UTC)
	return entities.MaintenanceWindow{
		DeviceName:     "cam-01",
		ScheduledStart: start,
		ScheduledEnd:   start.Add(2 * time.Hour),
		SuppressAlerts: true,
		Technician:     "j.doe",
	}
}

func TestCreateMaintenanceWindow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.request(t, http.MethodPost, "/api/v1/maintenance", testWindow())

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, entities.MaintenanceScheduled, body["status"], "status defaults to scheduled")
	assert.Equal(t, []string{"cam-01"}, f.registry.names(), "suppression cache invalidated")
}

func TestCreateMaintenanceWindowRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*entities.MaintenanceWindow)
	}{
		{"missing device", func(w *entities.MaintenanceWindow) { w.DeviceName = "" }},
		{"missing start", func(w *entities.MaintenanceWindow) { w.ScheduledStart = time.Time{} }},
		{"end before start", func(w *entities.MaintenanceWindow) {
			w.ScheduledEnd = w.ScheduledStart.Add(-time.Hour)
		}},
		{"bad status", func(w *entities.MaintenanceWindow) { w.Status = "paused" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			window := testWindow()
			tt.mutate(&window)
			rec := f.request(t, http.MethodPost, "/api/v1/maintenance", window)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, f.registry.names())
		})
	}
}

func TestUpdateMaintenanceWindowInvalidatesBothDevices(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	window := testWindow()
	require.NoError(t, f.maintenance.CreateWindow(context.Background(), &window))

	moved := testWindow()
	moved.DeviceName = "cam-02"
	moved.Status = entities.MaintenanceInProgress
	rec := f.request(t, http.MethodPut, "/api/v1/maintenance/1", moved)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"cam-01", "cam-02"}, f.registry.names())

	stored, err := f.maintenance.GetWindow(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "cam-02", stored.DeviceName)
	assert.Equal(t, entities.MaintenanceInProgress, stored.Status)
}

func TestDeleteMaintenanceWindow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	window := testWindow()
	require.NoError(t, f.maintenance.CreateWindow(context.Background(), &window))

	rec := f.request(t, http.MethodDelete, "/api/v1/maintenance/1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"cam-01"}, f.registry.names())

	rec = f.request(t, http.MethodDelete, "/api/v1/maintenance/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMaintenanceWindowsByDevice(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	first := testWindow()
	second := testWindow()
	second.DeviceName = "cam-02"
	require.NoError(t, f.maintenance.CreateWindow(context.Background(), &first))
	require.NoError(t, f.maintenance.CreateWindow(context.Background(), &second))

	rec := f.request(t, http.MethodGet, "/api/v1/maintenance?device=cam-02", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["count"])
}
