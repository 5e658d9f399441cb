// Package pitch provides the frequency sources a broadcast session samples:
// device capture, a synthetic random walk, and client-pushed values. Every
// source exposes the same single capability, CurrentFrequency.
package pitch

import (
	"context"
	"math"
	"sync/atomic"
)

// Vocal band bounds in Hz. Anything outside is treated as noise.
const (
	VocalMin = 80.0
	VocalMax = 2000.0
)

// Source yields the most recent frequency sample in Hz. Zero means silence.
type Source interface {
	CurrentFrequency() float64
}

// Lifecycle is implemented by sources that hold resources only while a
// session is broadcasting.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop() error
}

// Simulated marks sources whose readings are synthetic.
type Simulated interface {
	Simulated() bool
}

// IsSimulated reports whether src declares itself synthetic.
func IsSimulated(src Source) bool {
	s, ok := src.(Simulated)
	return ok && s.Simulated()
}

// InVocalBand reports whether hz lies within [VocalMin, VocalMax].
func InVocalBand(hz float64) bool {
	return hz >= VocalMin && hz <= VocalMax
}

// BandFilter maps out-of-band samples to silence. It never clamps.
func BandFilter(hz float64) float64 {
	if !InVocalBand(hz) {
		return 0
	}
	return hz
}

// Slot is a last-value-wins register for one float64. One goroutine writes,
// any number read; there is no queue and no backpressure.
type Slot struct {
	bits atomic.Uint64
}

func (s *Slot) Store(hz float64) {
	s.bits.Store(math.Float64bits(hz))
}

func (s *Slot) Load() float64 {
	return math.Float64frombits(s.bits.Load())
}
