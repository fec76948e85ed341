package repository

import (
	"context"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
)

// MaintenanceRepository persists maintenance windows. The scheduling
// frontend owns the lifecycle; the Maintenance Registry reads suppressions.
type MaintenanceRepository interface {
	ListWindows(ctx context.Context, deviceName string, upcomingOnly bool) ([]entities.MaintenanceWindow, error)
	GetWindow(ctx context.Context, id uint) (*entities.MaintenanceWindow, error)
	CreateWindow(ctx context.Context, window *entities.MaintenanceWindow) error
	UpdateWindow(ctx context.Context, window *entities.MaintenanceWindow) error
	DeleteWindow(ctx context.Context, id uint) error
	// ActiveSuppressions returns windows that could suppress alerts for the
	// device at the given instant (status scheduled/in-progress,
	// suppress_alerts set, instant within bounds inclusive).
	ActiveSuppressions(ctx context.Context, deviceName string, at time.Time) ([]entities.MaintenanceWindow, error)
}
