package pitch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlide(t *testing.T) {
	window := []float64{1, 2, 3, 4}
	slide(window, []float32{5, 6})
	assert.Equal(t, []float64{3, 4, 5, 6}, window)

	slide(window, []float32{7, 8, 9, 10})
	assert.Equal(t, []float64{7, 8, 9, 10}, window)

	slide(window, nil)
	assert.Equal(t, []float64{7, 8, 9, 10}, window)
}

func TestMicOptions(t *testing.T) {
	m := NewMicCapturer(WithMicBlockSize(2048), WithSampleRate(48000))
	assert.Equal(t, 2048, m.blockSize)
	assert.Equal(t, 48000, m.sampleRate)
	assert.Equal(t, 512, m.hop())

	m = NewMicCapturer(WithMicBlockSize(0), WithSampleRate(-1))
	assert.Equal(t, DefaultBlockSize, m.blockSize)
	assert.Equal(t, DefaultSampleRate, m.sampleRate)

	m = NewMicCapturer(WithMicBlockSize(2))
	assert.Equal(t, 1, m.hop())
}

func TestMicStopBeforeStart(t *testing.T) {
	assert.NoError(t, NewMicCapturer().Stop())
}
