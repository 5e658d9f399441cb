package note

import "math"

// Tuning classifies how far a sung pitch is from a target.
type Tuning int

const (
	InTune Tuning = iota
	Close
	Off
)

const (
	inTuneCents = 10
	closeCents  = 50
)

func (t Tuning) String() string {
	switch t {
	case InTune:
		return "in tune"
	case Close:
		return "close"
	default:
		return "off"
	}
}

// CentsBetween returns the signed distance from targetHz to hz in cents,
// rounded to the nearest cent. Either side being silent gives 0.
func CentsBetween(hz, targetHz float64) int {
	if hz <= 0 || targetHz <= 0 {
		return 0
	}
	return int(math.Round(1200 * math.Log2(hz/targetHz)))
}

// Classify buckets a signed cents distance.
func Classify(cents int) Tuning {
	if cents < 0 {
		cents = -cents
	}
	switch {
	case cents <= inTuneCents:
		return InTune
	case cents <= closeCents:
		return Close
	default:
		return Off
	}
}
