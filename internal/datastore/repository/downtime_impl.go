package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
)

// downtimeRepository implements DowntimeRepository.
type downtimeRepository struct {
	db *gorm.DB
}

// NewDowntimeRepository creates a new DowntimeRepository.
func NewDowntimeRepository(db *gorm.DB) DowntimeRepository {
	return &downtimeRepository{db: db}
}

func (r *downtimeRepository) OpenInterval(ctx context.Context, interval *entities.DowntimeInterval) error {
	if err := r.db.WithContext(ctx).Create(interval).Error; err != nil {
		return fmt.Errorf("failed to open downtime interval for %s: %w", interval.DeviceName, err)
	}
	return nil
}

func (r *downtimeRepository) CloseInterval(ctx context.Context, deviceName string, end time.Time, recoveryMethod string) error {
	open, err := r.GetOpenInterval(ctx, deviceName)
	if err != nil {
		return err
	}

	duration := end.Sub(open.StartTime).Minutes()
	result := r.db.WithContext(ctx).Model(&entities.DowntimeInterval{}).
		Where("id = ? AND end_time IS NULL", open.ID).
		Updates(map[string]any{
			"end_time":         end,
			"duration_minutes": duration,
			"recovery_method":  recoveryMethod,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to close downtime interval for %s: %w", deviceName, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNoOpenInterval
	}
	return nil
}

func (r *downtimeRepository) GetOpenInterval(ctx context.Context, deviceName string) (*entities.DowntimeInterval, error) {
	var interval entities.DowntimeInterval
	err := r.db.WithContext(ctx).
		Where("device_name = ? AND end_time IS NULL", deviceName).
		Order("start_time DESC").
		First(&interval).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoOpenInterval
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open interval for %s: %w", deviceName, err)
	}
	return &interval, nil
}

func (r *downtimeRepository) ListOverlapping(ctx context.Context, deviceName string, since, until time.Time) ([]entities.DowntimeInterval, error) {
	var intervals []entities.DowntimeInterval
	err := r.db.WithContext(ctx).
		Where("device_name = ? AND start_time <= ? AND (end_time IS NULL OR end_time >= ?)", deviceName, until, since).
		Order("start_time ASC").
		Find(&intervals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list downtime intervals for %s: %w", deviceName, err)
	}
	return intervals, nil
}

func (r *downtimeRepository) LastClosedSince(ctx context.Context, deviceName string, since time.Time) (*entities.DowntimeInterval, error) {
	var interval entities.DowntimeInterval
	err := r.db.WithContext(ctx).
		Where("device_name = ? AND end_time IS NOT NULL AND end_time >= ?", deviceName, since).
		Order("end_time DESC").
		First(&interval).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last closed interval for %s: %w", deviceName, err)
	}
	return &interval, nil
}

func (r *downtimeRepository) DeviceStats(ctx context.Context, deviceName string, since time.Time) (*DowntimeStats, error) {
	stats := DowntimeStats{DeviceName: deviceName}
	row := r.db.WithContext(ctx).Model(&entities.DowntimeInterval{}).
		Select("COUNT(*), COALESCE(SUM(duration_minutes), 0), COALESCE(AVG(duration_minutes), 0), COALESCE(MAX(duration_minutes), 0)").
		Where("device_name = ? AND end_time IS NOT NULL AND start_time >= ?", deviceName, since).
		Row()
	if err := row.Scan(&stats.TotalIncidents, &stats.TotalDowntimeMinutes, &stats.AvgDowntimeMinutes, &stats.MaxDowntimeMinutes); err != nil {
		return nil, fmt.Errorf("failed to aggregate downtime stats for %s: %w", deviceName, err)
	}
	return &stats, nil
}
