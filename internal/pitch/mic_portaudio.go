//go:build portaudio

package pitch

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// MicAvailable reports whether this build can open a real input device.
const MicAvailable = true

func (m *MicCapturer) Start(ctx context.Context, sink Sink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	fresh := make([]float32, m.hop())
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), len(fresh), fresh)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("open input: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("start input: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(runCtx, stream, fresh, sink, m.done)
	return nil
}

func (m *MicCapturer) run(ctx context.Context, stream *portaudio.Stream, fresh []float32, sink Sink, done chan struct{}) {
	defer close(done)
	defer portaudio.Terminate()
	defer stream.Close()
	defer stream.Stop()

	window := make([]float64, m.blockSize)
	filled := 0
	for ctx.Err() == nil {
		if err := stream.Read(); err != nil {
			// An overflow drops input but leaves the stream usable.
			sink.Fail(fmt.Errorf("read input: %w", err))
			if err != portaudio.InputOverflowed {
				return
			}
			continue
		}
		slide(window, fresh)
		if filled < len(window) {
			filled += len(fresh)
			continue
		}

		hz, err := m.estimator.Estimate(window, m.sampleRate)
		if err != nil {
			sink.Fail(err)
			continue
		}
		sink.Report(hz)
	}
}
