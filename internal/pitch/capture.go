package pitch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pitchcast/pitchcast/internal/metrics"
)

// Sink receives detector output from a capture device. Report may be called
// from the device's own goroutine at any rate.
type Sink interface {
	Report(hz float64)
	Fail(err error)
}

// Capturer is an audio input device paired with a pitch detector. Start must
// not block; detection runs on the capturer's own goroutine until Stop or
// ctx cancellation.
type Capturer interface {
	Start(ctx context.Context, sink Sink) error
	Stop() error
}

// Capture is the device-backed Source. The device writes into a Slot after
// band filtering; the broadcast tick reads the slot.
type Capture struct {
	device Capturer
	slot   Slot
	health *Health
	log    *slog.Logger

	mu      sync.Mutex
	running bool
}

func NewCapture(device Capturer, logger *slog.Logger) *Capture {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capture{
		device: device,
		health: NewHealth(DefaultFailureThreshold),
		log:    logger.With("component", "capture"),
	}
}

func (c *Capture) CurrentFrequency() float64 {
	return c.slot.Load()
}

// Health exposes the capture's failure tracker.
func (c *Capture) Health() *Health {
	return c.health
}

func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	if err := c.device.Start(ctx, c); err != nil {
		c.health.RecordStartFailure(err)
		metrics.CaptureFailures.WithLabelValues("start").Inc()
		c.logTransition()
		return fmt.Errorf("start capture: %w", err)
	}
	c.health.RecordStartSuccess()
	c.logTransition()
	c.running = true
	c.log.Info("capture started")
	return nil
}

func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil
	}
	c.running = false

	// The device may still report until its Stop returns.
	err := c.device.Stop()
	c.slot.Store(0)
	if err != nil {
		return fmt.Errorf("stop capture: %w", err)
	}
	c.log.Info("capture stopped")
	return nil
}

// Report stores hz, or silence when hz is outside the vocal band.
func (c *Capture) Report(hz float64) {
	c.slot.Store(BandFilter(hz))
	c.health.RecordBlockSuccess()
	c.logTransition()
}

// Fail records a detector or device error. The last good value is dropped
// so listeners see silence rather than a stale note.
func (c *Capture) Fail(err error) {
	c.slot.Store(0)
	c.health.RecordBlockFailure(err)
	metrics.CaptureFailures.WithLabelValues("block").Inc()
	c.logTransition()
}

func (c *Capture) logTransition() {
	snap, changed := c.health.Transition()
	if !changed {
		return
	}
	if snap.Status == StatusHealthy {
		c.log.Info("capture recovered")
		return
	}
	c.log.Warn("capture health changed", "status", snap.Status, "error", snap.LastError)
}
