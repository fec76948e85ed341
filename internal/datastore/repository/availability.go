package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
)

// AvailabilitySource answers "what fraction of [start, end] was the device
// online" from whichever health data a deployment has. Two variants exist
// behind this one interface so the engine's logic is unaffected by which is
// active: the downtime interval ledger (full deployments) and raw health
// check sampling (minimal deployments without the ledger).
type AvailabilitySource interface {
	// UptimeRatio returns the online fraction in [0, 1]. Open downtime is
	// clipped at now. Returns ErrNoData when the source has nothing for the
	// device in the window.
	UptimeRatio(ctx context.Context, deviceName string, start, end, now time.Time) (float64, error)
}

// intervalSource computes availability from the downtime interval ledger.
type intervalSource struct {
	downtime DowntimeRepository
}

// NewIntervalAvailabilitySource creates the ledger-backed variant.
func NewIntervalAvailabilitySource(downtime DowntimeRepository) AvailabilitySource {
	return &intervalSource{downtime: downtime}
}

func (s *intervalSource) UptimeRatio(ctx context.Context, deviceName string, start, end, now time.Time) (float64, error) {
	intervals, err := s.downtime.ListOverlapping(ctx, deviceName, start, end)
	if err != nil {
		return 0, err
	}

	var downtime time.Duration
	for i := range intervals {
		clipStart, clipEnd, ok := intervals[i].ClippedBounds(start, end, now)
		if !ok {
			continue
		}
		downtime += clipEnd.Sub(clipStart)
	}

	window := end.Sub(start)
	ratio := 1 - downtime.Seconds()/window.Seconds()
	if ratio < 0 {
		ratio = 0
	}
	return ratio, nil
}

// checkSource computes availability as the online fraction of raw health
// check rows in the window.
type checkSource struct {
	db *gorm.DB
}

// NewCheckAvailabilitySource creates the health-check-log variant.
func NewCheckAvailabilitySource(db *gorm.DB) AvailabilitySource {
	return &checkSource{db: db}
}

func (s *checkSource) UptimeRatio(ctx context.Context, deviceName string, start, end, _ time.Time) (float64, error) {
	var total, online int64
	base := s.db.WithContext(ctx).Model(&entities.HealthCheck{}).
		Where("device_name = ? AND checked_at >= ? AND checked_at <= ?", deviceName, start, end)

	if err := base.Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count health checks for %s: %w", deviceName, err)
	}
	if total == 0 {
		return 0, ErrNoData
	}

	err := s.db.WithContext(ctx).Model(&entities.HealthCheck{}).
		Where("device_name = ? AND checked_at >= ? AND checked_at <= ? AND status = ?",
			deviceName, start, end, entities.StatusOnline).
		Count(&online).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count online checks for %s: %w", deviceName, err)
	}

	return float64(online) / float64(total), nil
}
