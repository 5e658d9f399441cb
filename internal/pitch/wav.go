package pitch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"
	"github.com/jonboulle/clockwork"
)

var ErrNotWAV = errors.New("not a valid WAV file")

const (
	DefaultBlockSize = 4096
	// hopDivisor matches a detector reading a full block every quarter block
	// of new audio.
	hopDivisor = 4
)

// WAVCapturer plays a PCM WAV file through an Estimator in real time, as if
// it were a microphone. It stands in for a live input device.
type WAVCapturer struct {
	path      string
	blockSize int
	loop      bool
	clock     clockwork.Clock
	estimator Estimator

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type WAVOption func(*WAVCapturer)

func WithBlockSize(n int) WAVOption {
	return func(w *WAVCapturer) {
		if n > 0 {
			w.blockSize = n
		}
	}
}

func WithLoop(loop bool) WAVOption {
	return func(w *WAVCapturer) { w.loop = loop }
}

func WithClock(clock clockwork.Clock) WAVOption {
	return func(w *WAVCapturer) { w.clock = clock }
}

func WithEstimator(e Estimator) WAVOption {
	return func(w *WAVCapturer) { w.estimator = e }
}

func NewWAVCapturer(path string, opts ...WAVOption) *WAVCapturer {
	w := &WAVCapturer{
		path:      path,
		blockSize: DefaultBlockSize,
		clock:     clockwork.NewRealClock(),
		estimator: FFTEstimator{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *WAVCapturer) Start(ctx context.Context, sink Sink) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return nil
	}

	samples, rate, err := ReadWAVMono(w.path)
	if err != nil {
		return err
	}
	if len(samples) < w.blockSize {
		return fmt.Errorf("%s: %d samples is shorter than one %d-sample block", w.path, len(samples), w.blockSize)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(runCtx, samples, rate, sink, w.done)
	return nil
}

func (w *WAVCapturer) Stop() error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (w *WAVCapturer) run(ctx context.Context, samples []float64, rate int, sink Sink, done chan struct{}) {
	defer close(done)

	hop := w.blockSize / hopDivisor
	if hop == 0 {
		hop = 1
	}
	interval := time.Duration(hop) * time.Second / time.Duration(rate)
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := w.clock.NewTicker(interval)
	defer ticker.Stop()

	pos := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		if pos+w.blockSize > len(samples) {
			if !w.loop {
				sink.Report(0)
				return
			}
			pos = 0
		}

		hz, err := w.estimator.Estimate(samples[pos:pos+w.blockSize], rate)
		if err != nil {
			sink.Fail(fmt.Errorf("estimate at sample %d: %w", pos, err))
		} else {
			sink.Report(hz)
		}
		pos += hop
	}
}

// ReadWAVMono decodes a PCM WAV file into mono samples normalised to
// [-1, 1], averaging channels. It returns the samples and the sample rate.
func ReadWAVMono(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%s: %w", path, ErrNotWAV)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}

	channels := int(dec.NumChans)
	if channels < 1 || dec.BitDepth == 0 {
		return nil, 0, fmt.Errorf("%s: %w", path, ErrNotWAV)
	}
	scale := float64(int(1) << (uint(dec.BitDepth) - 1))

	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch])
		}
		out[i] = sum / float64(channels) / scale
	}
	return out, int(dec.SampleRate), nil
}
