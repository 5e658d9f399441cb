package pitch

import (
	"context"
	"errors"
	"sync"
)

// ErrMicUnavailable is returned by MicCapturer.Start in builds without the
// portaudio tag.
var ErrMicUnavailable = errors.New("microphone capture not built in (rebuild with -tags portaudio)")

const DefaultSampleRate = 44100

// MicCapturer reads the default input device and runs the Estimator over a
// sliding block, advancing a quarter block at a time.
type MicCapturer struct {
	sampleRate int
	blockSize  int
	estimator  Estimator

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type MicOption func(*MicCapturer)

func WithMicBlockSize(n int) MicOption {
	return func(m *MicCapturer) {
		if n > 0 {
			m.blockSize = n
		}
	}
}

func WithSampleRate(rate int) MicOption {
	return func(m *MicCapturer) {
		if rate > 0 {
			m.sampleRate = rate
		}
	}
}

func WithMicEstimator(e Estimator) MicOption {
	return func(m *MicCapturer) { m.estimator = e }
}

func NewMicCapturer(opts ...MicOption) *MicCapturer {
	m := &MicCapturer{
		sampleRate: DefaultSampleRate,
		blockSize:  DefaultBlockSize,
		estimator:  FFTEstimator{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MicCapturer) hop() int {
	return max(1, m.blockSize/hopDivisor)
}

// slide shifts window left by len(fresh) and appends fresh. fresh must not
// be longer than window.
func slide(window []float64, fresh []float32) {
	n := copy(window, window[len(fresh):])
	for i, s := range fresh {
		window[n+i] = float64(s)
	}
}

func (m *MicCapturer) Stop() error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
