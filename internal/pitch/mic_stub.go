//go:build !portaudio

package pitch

import "context"

// MicAvailable reports whether this build can open a real input device.
const MicAvailable = false

func (m *MicCapturer) Start(ctx context.Context, sink Sink) error {
	return ErrMicUnavailable
}
