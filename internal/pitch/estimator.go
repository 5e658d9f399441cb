package pitch

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

var (
	ErrEmptyBlock    = errors.New("empty sample block")
	ErrInvalidSample = errors.New("non-finite sample in block")
)

// peakRatio is how far the spectral peak must stand above the mean magnitude
// to count as a pitch rather than noise.
const peakRatio = 3.0

// Estimator turns one block of mono samples into a fundamental frequency.
// It returns 0 when no pitch is present.
type Estimator interface {
	Estimate(samples []float64, sampleRate int) (float64, error)
}

// FFTEstimator picks the strongest spectral peak of a Hann-windowed block and
// refines it by parabolic interpolation between neighbouring bins.
type FFTEstimator struct{}

func (FFTEstimator) Estimate(samples []float64, sampleRate int) (float64, error) {
	n := len(samples)
	if n < 4 || sampleRate <= 0 {
		return 0, ErrEmptyBlock
	}

	windowed := make([]float64, n)
	for i, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return 0, ErrInvalidSample
		}
		windowed[i] = s
	}
	window.Apply(windowed, window.Hann)

	spectrum := fft.FFTReal(windowed)
	half := n / 2
	mag := make([]float64, half)
	sum := 0.0
	for i := 0; i < half; i++ {
		mag[i] = cmplx.Abs(spectrum[i])
		sum += mag[i]
	}

	// Bin 0 is DC; never a pitch.
	peak := 1
	for i := 2; i < half; i++ {
		if mag[i] > mag[peak] {
			peak = i
		}
	}
	if mag[peak] == 0 || mag[peak] < (sum/float64(half))*peakRatio {
		return 0, nil
	}

	offset := 0.0
	if peak > 0 && peak < half-1 {
		a, b, c := mag[peak-1], mag[peak], mag[peak+1]
		if d := a - 2*b + c; d != 0 {
			offset = 0.5 * (a - c) / d
		}
	}

	hz := (float64(peak) + offset) * float64(sampleRate) / float64(n)
	return BandFilter(hz), nil
}
