package pitch

import (
	"math/rand"
	"sync"
	"time"

	"github.com/pitchcast/pitchcast/internal/note"
)

const (
	walkStep      = 5.0
	walkLimit     = 30.0
	jumpChance    = 0.02
	startNote     = "A"
	startOctave   = 4
	simulatedBase = 440.0
)

var (
	jumpNotes   = []string{"C", "D", "E", "F", "G", "A", "B"}
	jumpOctaves = []int{3, 4, 5}
)

// Simulator produces a voice-like pitch: a random walk of up to ±30 Hz around
// a base note that occasionally jumps to another natural note in octaves 3–5.
// Every call to CurrentFrequency advances the walk by one step.
type Simulator struct {
	mu        sync.Mutex
	rng       *rand.Rand
	name      string
	octave    int
	base      float64
	variation float64
}

// NewSimulator seeds the walk from seed; zero seeds from the clock.
func NewSimulator(seed int64) *Simulator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return NewSimulatorRand(rand.New(rand.NewSource(seed)))
}

func NewSimulatorRand(rng *rand.Rand) *Simulator {
	return &Simulator{
		rng:    rng,
		name:   startNote,
		octave: startOctave,
		base:   simulatedBase,
	}
}

func (s *Simulator) Simulated() bool { return true }

func (s *Simulator) CurrentFrequency() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.variation += (s.rng.Float64()*2 - 1) * walkStep
	s.variation = clamp(s.variation, -walkLimit, walkLimit)
	hz := s.base + s.variation

	if s.rng.Float64() < jumpChance {
		s.name = jumpNotes[s.rng.Intn(len(jumpNotes))]
		s.octave = jumpOctaves[s.rng.Intn(len(jumpOctaves))]
		s.base = note.NoteToFrequency(s.name, s.octave)
		s.variation = 0
	}

	return clamp(hz, VocalMin, VocalMax)
}

// Target returns the note the walk is currently centred on.
func (s *Simulator) Target() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name, s.octave
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
