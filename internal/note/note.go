// Package note converts between frequencies in Hz and equal-tempered
// note names. Everything here is pure; A4 = 440 Hz is the reference.
package note

import (
	"fmt"
	"math"
)

const (
	ReferenceHz     = 440.0
	referenceOctave = 4
	referenceIndex  = 9 // A

	// snapTolerance absorbs the 2-decimal rounding done by NoteToFrequency so
	// a rounded note frequency never floors into the pitch class below it.
	// Half a cent, in semitones.
	snapTolerance = 0.005
)

// Names lists the pitch classes in index order, C = 0.
var Names = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var nameIndex = func() map[string]int {
	m := make(map[string]int, len(Names))
	for i, n := range Names {
		m[n] = i
	}
	return m
}()

// Note is the pitch class, octave and cents deviation of a frequency.
// Cents lies in [0,100): the distance above the lower pitch class, not a
// signed deviation from the nearest one.
type Note struct {
	Name      string  `json:"note"`
	Octave    int     `json:"octave"`
	Cents     int     `json:"cents"`
	Frequency float64 `json:"frequency"`
}

// Silent reports whether n is the silence sentinel.
func (n Note) Silent() bool {
	return n.Name == ""
}

func (n Note) String() string {
	if n.Silent() {
		return "-"
	}
	return fmt.Sprintf("%s%d", n.Name, n.Octave)
}

// Index returns the position of name in Names.
func Index(name string) (int, bool) {
	i, ok := nameIndex[name]
	return i, ok
}

// FrequencyToNote converts hz to a note. Zero, negative and non-finite
// input yields the zero Note (silence).
func FrequencyToNote(hz float64) Note {
	if hz <= 0 || math.IsNaN(hz) || math.IsInf(hz, 0) {
		return Note{}
	}

	exact := 12*math.Log2(hz/ReferenceHz) + referenceIndex
	if up := math.Round(exact); up > exact && up-exact < snapTolerance {
		exact = up
	}

	whole := math.Floor(exact)
	semis := int(whole)

	return Note{
		Name:      Names[mod(semis, 12)],
		Octave:    floorDiv(semis, 12) + referenceOctave,
		Cents:     int(math.Floor((exact - whole) * 100)),
		Frequency: round2(hz),
	}
}

// NoteToFrequency returns the frequency of name in octave, rounded to two
// decimals. Unknown names return 0.
func NoteToFrequency(name string, octave int) float64 {
	idx, ok := Index(name)
	if !ok {
		return 0
	}
	semis := (octave-referenceOctave)*12 + (idx - referenceIndex)
	return round2(ReferenceHz * math.Pow(2, float64(semis)/12))
}

// Entry is one row of the note table served to clients.
type Entry struct {
	Note      string  `json:"note"`
	Octave    int     `json:"octave"`
	Frequency float64 `json:"frequency"`
	Display   string  `json:"display"`
}

// All enumerates every pitch class for octaves minOctave..maxOctave inclusive,
// ordered by ascending frequency.
func All(minOctave, maxOctave int) []Entry {
	if maxOctave < minOctave {
		return nil
	}
	entries := make([]Entry, 0, (maxOctave-minOctave+1)*len(Names))
	for octave := minOctave; octave <= maxOctave; octave++ {
		for _, name := range Names {
			entries = append(entries, Entry{
				Note:      name,
				Octave:    octave,
				Frequency: NoteToFrequency(name, octave),
				Display:   fmt.Sprintf("%s%d", name, octave),
			})
		}
	}
	return entries
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}

func floorDiv(a, n int) int {
	q := a / n
	if a%n != 0 && (a < 0) != (n < 0) {
		q--
	}
	return q
}
