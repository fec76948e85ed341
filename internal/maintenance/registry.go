// Package maintenance answers suppression queries against the maintenance
// window schedule.
package maintenance

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/fleetwatch/fleetwatch/internal/datastore/repository"
	"github.com/fleetwatch/fleetwatch/internal/logger"
)

const (
	// cacheTTL keeps suppression answers for a short period. Windows change
	// rarely relative to engine ticks, and a minute of staleness is within
	// the schedule's own granularity.
	cacheTTL     = time.Minute
	cacheSweep   = 5 * time.Minute
	minuteBucket = time.Minute
)

// Registry resolves whether alerts for a device are suppressed at a given
// instant. Answers are cached per device and minute bucket so a tick over a
// large fleet does not repeat the same schedule query per rule.
type Registry struct {
	repo   repository.MaintenanceRepository
	cache  *gocache.Cache
	logger logger.Logger
}

// NewRegistry creates a Registry over the given repository.
func NewRegistry(repo repository.MaintenanceRepository, log logger.Logger) *Registry {
	return &Registry{
		repo:   repo,
		cache:  gocache.New(cacheTTL, cacheSweep),
		logger: log,
	}
}

// IsSuppressed reports whether any maintenance window suppresses alerts for
// the device at the given instant: status scheduled or in-progress,
// suppress_alerts set, and the instant within the window bounds inclusive.
// Overlapping windows OR together. A store failure is returned to the
// caller; suppression is never guessed.
func (r *Registry) IsSuppressed(ctx context.Context, deviceName string, at time.Time) (bool, error) {
	key := cacheKey(deviceName, at)
	if cached, found := r.cache.Get(key); found {
		if suppressed, ok := cached.(bool); ok {
			return suppressed, nil
		}
	}

	windows, err := r.repo.ActiveSuppressions(ctx, deviceName, at)
	if err != nil {
		return false, fmt.Errorf("failed to check maintenance suppression for %s: %w", deviceName, err)
	}

	suppressed := len(windows) > 0
	r.cache.Set(key, suppressed, cacheTTL)

	if suppressed {
		r.logger.Debug("alerts suppressed by maintenance window",
			logger.String("device", deviceName),
			logger.Int("windows", len(windows)))
	}
	return suppressed, nil
}

// Invalidate drops cached answers for a device after its schedule changes.
func (r *Registry) Invalidate(deviceName string) {
	// go-cache has no prefix delete, so drop the bucket keys around now.
	now := time.Now().UTC().Truncate(minuteBucket)
	for offset := -time.Minute; offset <= cacheTTL; offset += minuteBucket {
		r.cache.Delete(cacheKey(deviceName, now.Add(offset)))
	}
}

func cacheKey(deviceName string, at time.Time) string {
	return deviceName + "|" + at.UTC().Truncate(minuteBucket).Format(time.RFC3339)
}
