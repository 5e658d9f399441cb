package pitch

import (
	"sync"
	"time"
)

// HealthStatus summarises how a capture device is behaving.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusFailed   HealthStatus = "failed"
)

// DefaultFailureThreshold is the number of consecutive failures after which
// a capture is reported degraded (block errors) or failed (start errors).
const DefaultFailureThreshold = 3

// HealthSnapshot is a point-in-time copy safe to serialise.
type HealthSnapshot struct {
	Status        HealthStatus `json:"status"`
	StartFailures int          `json:"start_failures"`
	BlockFailures int          `json:"block_failures"`
	LastError     string       `json:"last_error,omitempty"`
	LastErrorAt   *time.Time   `json:"last_error_at,omitempty"`
}

// Health tracks consecutive failure counts for a capture source. The capture
// goroutine records; HTTP handlers and the session read.
type Health struct {
	mu                sync.Mutex
	threshold         int
	startFailures     int
	blockFailures     int
	lastErr           string
	lastFail          time.Time
	lastEmittedStatus HealthStatus
}

func NewHealth(threshold int) *Health {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	return &Health{
		threshold:         threshold,
		lastEmittedStatus: StatusHealthy,
	}
}

func (h *Health) RecordStartSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.startFailures = 0
}

func (h *Health) RecordStartFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.startFailures++
	h.lastErr = err.Error()
	h.lastFail = time.Now()
}

func (h *Health) RecordBlockSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.blockFailures = 0
}

func (h *Health) RecordBlockFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.blockFailures++
	h.lastErr = err.Error()
	h.lastFail = time.Now()
}

// Status computes the current status.
func (h *Health) Status() HealthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statusLocked()
}

// Snapshot returns a consistent copy of all fields.
func (h *Health) Snapshot() HealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

// Transition returns the current snapshot and whether the status changed
// since the last call that reported a change.
func (h *Health) Transition() (HealthSnapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	snap := h.snapshotLocked()
	changed := snap.Status != h.lastEmittedStatus
	if changed {
		h.lastEmittedStatus = snap.Status
	}
	return snap, changed
}

// statusLocked computes health status. Caller must hold h.mu.
func (h *Health) statusLocked() HealthStatus {
	if h.startFailures >= h.threshold {
		return StatusFailed
	}
	if h.startFailures > 0 || h.blockFailures >= h.threshold {
		return StatusDegraded
	}
	return StatusHealthy
}

func (h *Health) snapshotLocked() HealthSnapshot {
	snap := HealthSnapshot{
		Status:        h.statusLocked(),
		StartFailures: h.startFailures,
		BlockFailures: h.blockFailures,
		LastError:     h.lastErr,
	}
	if !h.lastFail.IsZero() {
		at := h.lastFail
		snap.LastErrorAt = &at
	}
	return snap
}
