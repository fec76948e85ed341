package observability

import (
	"sync"
	"time"
)

// Health is the shared degraded-state flag. The engine raises it when the
// store is unreachable at pass level and clears it on the next good pass;
// the healthz endpoint reports it.
type Health struct {
	mu       sync.RWMutex
	degraded bool
	reason   string
	since    time.Time
}

// NewHealth creates a healthy Health.
func NewHealth() *Health {
	return &Health{}
}

// SetDegraded raises the degraded flag with a reason. The since timestamp is
// kept from the first raise until the flag clears.
func (h *Health) SetDegraded(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.degraded {
		h.since = time.Now()
	}
	h.degraded = true
	h.reason = reason
}

// ClearDegraded returns the system to healthy.
func (h *Health) ClearDegraded() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.degraded = false
	h.reason = ""
	h.since = time.Time{}
}

// Status is a point-in-time health snapshot.
type Status struct {
	Degraded bool      `json:"degraded"`
	Reason   string    `json:"reason,omitzero"`
	Since    time.Time `json:"since,omitzero"`
}

// Snapshot returns the current health state.
func (h *Health) Snapshot() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Status{Degraded: h.degraded, Reason: h.reason, Since: h.since}
}
