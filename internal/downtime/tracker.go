// Package downtime maintains the per-device downtime interval ledger and
// computes availability over it.
package downtime

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
	"github.com/fleetwatch/fleetwatch/internal/datastore/repository"
	"github.com/fleetwatch/fleetwatch/internal/logger"
)

// ErrStaleEvent is returned when a status event carries a timestamp earlier
// than the start of the interval it would modify. Stale events are rejected
// rather than silently rewriting history.
var ErrStaleEvent = errors.New("status event predates the open downtime interval")

// shardCount is the fixed number of mutex shards guarding device state.
// Writes for one device always hit the same shard, so the single-open-interval
// invariant holds without a table lock.
const shardCount = 32

// Tracker is the sole writer of downtime intervals. Status transitions come
// in from ingest; everything else reads the ledger through the repository.
type Tracker struct {
	repo   repository.DowntimeRepository
	logger logger.Logger
	shards [shardCount]sync.Mutex
}

// NewTracker creates a Tracker over the given repository.
func NewTracker(repo repository.DowntimeRepository, log logger.Logger) *Tracker {
	return &Tracker{repo: repo, logger: log}
}

func (t *Tracker) shard(deviceName string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(deviceName))
	return &t.shards[h.Sum32()%shardCount]
}

// RecordStatusChange applies one device status transition to the ledger:
//
//   - leaving online with no open interval opens one at ts
//   - leaving online with an interval already open is a no-op (duplicate
//     offline reports are expected from flapping monitors)
//   - returning online closes the open interval at ts with an auto recovery
//   - returning online with nothing open is a no-op
//
// Events timestamped before the open interval's start return ErrStaleEvent.
func (t *Tracker) RecordStatusChange(ctx context.Context, deviceName, prevStatus, newStatus string, ts time.Time) error {
	if deviceName == "" {
		return fmt.Errorf("failed to record status change: empty device name")
	}

	mu := t.shard(deviceName)
	mu.Lock()
	defer mu.Unlock()

	open, err := t.repo.GetOpenInterval(ctx, deviceName)
	if err != nil && !errors.Is(err, repository.ErrNoOpenInterval) {
		return fmt.Errorf("failed to look up open interval for %s: %w", deviceName, err)
	}
	hasOpen := err == nil

	if newStatus == entities.StatusOnline {
		if !hasOpen {
			return nil
		}
		if ts.Before(open.StartTime) {
			return fmt.Errorf("%w: %s recovery at %s before start %s",
				ErrStaleEvent, deviceName, ts.Format(time.RFC3339), open.StartTime.Format(time.RFC3339))
		}
		if err := t.repo.CloseInterval(ctx, deviceName, ts, entities.RecoveryAuto); err != nil {
			return fmt.Errorf("failed to close interval for %s: %w", deviceName, err)
		}
		t.logger.Info("downtime interval closed",
			logger.String("device", deviceName),
			logger.Float64("duration_minutes", ts.Sub(open.StartTime).Minutes()))
		return nil
	}

	if hasOpen {
		if ts.Before(open.StartTime) {
			return fmt.Errorf("%w: %s event at %s before start %s",
				ErrStaleEvent, deviceName, ts.Format(time.RFC3339), open.StartTime.Format(time.RFC3339))
		}
		// Already tracking this outage.
		return nil
	}

	interval := &entities.DowntimeInterval{
		DeviceName:   deviceName,
		StartTime:    ts,
		StatusBefore: prevStatus,
		StatusDuring: newStatus,
	}
	if err := t.repo.OpenInterval(ctx, interval); err != nil {
		return fmt.Errorf("failed to open interval for %s: %w", deviceName, err)
	}
	t.logger.Info("downtime interval opened",
		logger.String("device", deviceName),
		logger.String("status", newStatus))
	return nil
}

// CurrentOpenInterval returns the ongoing outage for the device, or
// repository.ErrNoOpenInterval when the device is not down.
func (t *Tracker) CurrentOpenInterval(ctx context.Context, deviceName string) (*entities.DowntimeInterval, error) {
	return t.repo.GetOpenInterval(ctx, deviceName)
}

// Interval is a downtime row with its bounds clipped to a query window.
type Interval struct {
	entities.DowntimeInterval
	ClippedStart time.Time `json:"clipped_start"`
	ClippedEnd   time.Time `json:"clipped_end"`
}

// Intervals returns the downtime rows overlapping [since, until] with bounds
// clipped to the window. An open interval's end is treated as now.
func (t *Tracker) Intervals(ctx context.Context, deviceName string, since, until, now time.Time) ([]Interval, error) {
	rows, err := t.repo.ListOverlapping(ctx, deviceName, since, until)
	if err != nil {
		return nil, err
	}

	out := make([]Interval, 0, len(rows))
	for i := range rows {
		start, end, ok := rows[i].ClippedBounds(since, until, now)
		if !ok {
			continue
		}
		out = append(out, Interval{DowntimeInterval: rows[i], ClippedStart: start, ClippedEnd: end})
	}
	return out, nil
}
