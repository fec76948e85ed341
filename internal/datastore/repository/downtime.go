package repository

import (
	"context"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
)

// DowntimeRepository persists downtime intervals. The Downtime Tracker is
// the only writer; readers are the availability calculator, the alert
// engine, and the reporting API.
type DowntimeRepository interface {
	// OpenInterval inserts a new interval with a NULL end.
	OpenInterval(ctx context.Context, interval *entities.DowntimeInterval) error
	// CloseInterval sets end/duration/recovery on the open interval for the
	// device. Returns ErrNoOpenInterval when none is open.
	CloseInterval(ctx context.Context, deviceName string, end time.Time, recoveryMethod string) error
	// GetOpenInterval returns the open interval for the device, or
	// ErrNoOpenInterval.
	GetOpenInterval(ctx context.Context, deviceName string) (*entities.DowntimeInterval, error)
	// ListOverlapping returns intervals that overlap [since, until]. Open
	// intervals overlap any window that extends past their start.
	ListOverlapping(ctx context.Context, deviceName string, since, until time.Time) ([]entities.DowntimeInterval, error)
	// LastClosedSince returns the most recently closed interval whose end is
	// at or after since, or ErrNoData when there is none.
	LastClosedSince(ctx context.Context, deviceName string, since time.Time) (*entities.DowntimeInterval, error)
	// DeviceStats aggregates closed intervals since the given time.
	DeviceStats(ctx context.Context, deviceName string, since time.Time) (*DowntimeStats, error)
}

// DowntimeStats summarizes closed downtime intervals for one device.
type DowntimeStats struct {
	DeviceName           string  `json:"device_name"`
	TotalIncidents       int64   `json:"total_incidents"`
	TotalDowntimeMinutes float64 `json:"total_downtime_minutes"`
	AvgDowntimeMinutes   float64 `json:"avg_downtime_minutes"`
	MaxDowntimeMinutes   float64 `json:"max_downtime_minutes"`
}
