package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pitchcast/pitchcast/internal/config"
	"github.com/pitchcast/pitchcast/internal/pitch"
	"github.com/pitchcast/pitchcast/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSource(t *testing.T) {
	wav := filepath.Join(t.TempDir(), "voice.wav")
	require.NoError(t, os.WriteFile(wav, []byte("RIFF"), 0o644))

	tests := []struct {
		mode      string
		wantMode  session.Mode
		simulated bool
		push      bool
		health    bool
	}{
		{config.SourceDevice, session.ModePull, false, false, true},
		{config.SourceSimulated, session.ModePull, true, false, false},
		{config.SourceClient, session.ModePush, false, true, false},
		{config.SourceHybrid, session.ModeHybrid, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.Source.Mode = tt.mode
			cfg.Source.WAVPath = wav

			src, err := newSource(cfg, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, src.mode)
			assert.Equal(t, tt.simulated, pitch.IsSimulated(src.source))
			assert.Equal(t, tt.push, src.push != nil)
			assert.Equal(t, tt.health, src.health != nil)
		})
	}
}

func TestNewSourceErrors(t *testing.T) {
	cfg := config.Defaults()
	cfg.Source.Mode = config.SourceDevice
	cfg.Source.WAVPath = filepath.Join(t.TempDir(), "missing.wav")
	_, err := newSource(cfg, nil)
	assert.Error(t, err)

	cfg.Source.Mode = "microphone"
	_, err = newSource(cfg, nil)
	assert.Error(t, err)
}

func TestNewCapturerMic(t *testing.T) {
	src := config.Defaults().Source
	src.WAVPath = ""
	device, err := newCapturer(src)
	if pitch.MicAvailable {
		require.NoError(t, err)
		assert.IsType(t, &pitch.MicCapturer{}, device)
		return
	}
	assert.ErrorIs(t, err, pitch.ErrMicUnavailable)
}
