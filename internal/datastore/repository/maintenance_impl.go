package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
)

// maintenanceRepository implements MaintenanceRepository.
type maintenanceRepository struct {
	db *gorm.DB
}

// NewMaintenanceRepository creates a new MaintenanceRepository.
func NewMaintenanceRepository(db *gorm.DB) MaintenanceRepository {
	return &maintenanceRepository{db: db}
}

func (r *maintenanceRepository) ListWindows(ctx context.Context, deviceName string, upcomingOnly bool) ([]entities.MaintenanceWindow, error) {
	query := r.db.WithContext(ctx)
	if deviceName != "" {
		query = query.Where("device_name = ?", deviceName)
	}
	if upcomingOnly {
		query = query.Where("scheduled_end >= ? AND status IN ?", time.Now(),
			[]string{entities.MaintenanceScheduled, entities.MaintenanceInProgress})
	}

	var windows []entities.MaintenanceWindow
	if err := query.Order("scheduled_start ASC").Find(&windows).Error; err != nil {
		return nil, fmt.Errorf("failed to list maintenance windows: %w", err)
	}
	return windows, nil
}

func (r *maintenanceRepository) GetWindow(ctx context.Context, id uint) (*entities.MaintenanceWindow, error) {
	var window entities.MaintenanceWindow
	if err := r.db.WithContext(ctx).First(&window, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWindowNotFound
		}
		return nil, fmt.Errorf("failed to get maintenance window %d: %w", id, err)
	}
	return &window, nil
}

func (r *maintenanceRepository) CreateWindow(ctx context.Context, window *entities.MaintenanceWindow) error {
	if err := r.db.WithContext(ctx).Create(window).Error; err != nil {
		return fmt.Errorf("failed to create maintenance window: %w", err)
	}
	return nil
}

func (r *maintenanceRepository) UpdateWindow(ctx context.Context, window *entities.MaintenanceWindow) error {
	if window.ID == 0 {
		return fmt.Errorf("failed to update maintenance window: missing ID")
	}
	if err := r.db.WithContext(ctx).Save(window).Error; err != nil {
		return fmt.Errorf("failed to update maintenance window %d: %w", window.ID, err)
	}
	return nil
}

func (r *maintenanceRepository) DeleteWindow(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.MaintenanceWindow{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete maintenance window %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrWindowNotFound
	}
	return nil
}

func (r *maintenanceRepository) ActiveSuppressions(ctx context.Context, deviceName string, at time.Time) ([]entities.MaintenanceWindow, error) {
	var windows []entities.MaintenanceWindow
	err := r.db.WithContext(ctx).
		Where("device_name = ? AND suppress_alerts = ? AND status IN ? AND scheduled_start <= ? AND scheduled_end >= ?",
			deviceName, true,
			[]string{entities.MaintenanceScheduled, entities.MaintenanceInProgress},
			at, at).
		Find(&windows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query active suppressions for %s: %w", deviceName, err)
	}
	return windows, nil
}
