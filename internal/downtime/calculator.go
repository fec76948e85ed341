package downtime

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/datastore/repository"
)

// ErrInvalidWindow is returned when a measurement window does not end after
// it starts.
var ErrInvalidWindow = errors.New("window end must be after window start")

// Calculator turns health data into an uptime percentage. It is agnostic to
// which availability source backs it.
type Calculator struct {
	source repository.AvailabilitySource
}

// NewCalculator creates a Calculator over the given source.
func NewCalculator(source repository.AvailabilitySource) *Calculator {
	return &Calculator{source: source}
}

// UptimePercentage returns the device's uptime over [windowStart, windowEnd]
// as a percentage rounded to two decimals and clamped to [0, 100]. Open
// downtime is clipped at now. Propagates repository.ErrNoData from sources
// that have nothing to measure.
func (c *Calculator) UptimePercentage(ctx context.Context, deviceName string, windowStart, windowEnd, now time.Time) (float64, error) {
	if !windowEnd.After(windowStart) {
		return 0, ErrInvalidWindow
	}

	ratio, err := c.source.UptimeRatio(ctx, deviceName, windowStart, windowEnd, now)
	if err != nil {
		return 0, err
	}

	pct := math.Round(ratio*100*100) / 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, nil
}
