// Package meter renders the tuning needle: the sung note, its frequency and
// a cents bar whose needle follows the reading on a damped spring.
package meter

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/pitchcast/pitchcast/internal/note"
	"github.com/pitchcast/pitchcast/internal/tui/theme"
)

// FPS is the animation rate the owner should call Step at.
const FPS = 30

// needle range in cents either side of centre
const span = 50

// Model holds the meter state.
type Model struct {
	Width int

	spring harmonica.Spring
	pos    float64
	vel    float64
	goal   float64

	current note.Note
	target  *note.Entry
	label   string
	cents   int
}

// New creates a meter with a slightly underdamped needle.
func New() Model {
	return Model{spring: harmonica.NewSpring(harmonica.FPS(FPS), 8.0, 0.6)}
}

// Set updates the reading and optional target. With no target the needle
// shows the distance to the nearest equal-tempered note.
func (m *Model) Set(n note.Note, target *note.Entry) {
	m.current = n
	m.target = target
	if n.Silent() {
		m.label, m.cents, m.goal = "", 0, 0
		return
	}
	if target != nil {
		m.label = n.String()
		m.cents = note.CentsBetween(n.Frequency, target.Frequency)
	} else {
		m.label, m.cents = Nearest(n)
	}
	m.goal = math.Max(-span, math.Min(span, float64(m.cents)))
}

// Step advances the needle one frame.
func (m *Model) Step() {
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, m.goal)
}

// Settled reports whether the needle has come to rest on its goal.
func (m Model) Settled() bool {
	return math.Abs(m.pos-m.goal) < 0.05 && math.Abs(m.vel) < 0.05
}

// Needle returns the current needle position in cents.
func (m Model) Needle() float64 { return m.pos }

// Cents returns the signed deviation currently displayed.
func (m Model) Cents() int { return m.cents }

// Tuning classifies the current deviation.
func (m Model) Tuning() note.Tuning { return note.Classify(m.cents) }

// Nearest returns the equal-tempered note closest to n and the signed cents
// from it. Readings carry cents above the lower pitch class, so anything at
// 50 or more belongs to the next semitone up.
func Nearest(n note.Note) (string, int) {
	cents := note.CentsBetween(n.Frequency, note.NoteToFrequency(n.Name, n.Octave))
	if cents < 50 {
		return n.String(), cents
	}
	idx, _ := note.Index(n.Name)
	octave := n.Octave
	idx++
	if idx == len(note.Names) {
		idx = 0
		octave++
	}
	name := note.Names[idx]
	return fmt.Sprintf("%s%d", name, octave),
		note.CentsBetween(n.Frequency, note.NoteToFrequency(name, octave))
}

// View renders the meter.
func (m Model) View() string {
	width := m.Width
	if width < 30 {
		width = 30
	}
	barW := width - 6
	if barW%2 == 0 {
		barW--
	}

	var head, detail string
	if m.current.Silent() {
		head = theme.StyleDimmed.Render("· listening ·")
		detail = theme.StyleDimmed.Render("no pitch")
	} else {
		color := theme.TuningColor(m.Tuning())
		head = lipgloss.NewStyle().Bold(true).Foreground(color).Render(m.label)
		detail = fmt.Sprintf("%.2f Hz  %s", m.current.Frequency,
			lipgloss.NewStyle().Foreground(color).Render(fmt.Sprintf("%+d¢", m.cents)))
		if m.target != nil {
			detail += theme.StyleDimmed.Render(fmt.Sprintf("  target %s (%.2f Hz) %s",
				m.target.Display, m.target.Frequency, m.Tuning()))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		head,
		detail,
		"",
		m.bar(barW),
		scale(barW),
	)
	return theme.StyleBorder.Width(width - 2).Align(lipgloss.Center).Render(content)
}

func (m Model) bar(w int) string {
	mid := w / 2
	cells := []rune(strings.Repeat("─", w))
	cells[mid] = '┼'
	if m.current.Silent() {
		return theme.StyleDimmed.Render(string(cells))
	}

	at := mid + int(math.Round(m.pos/span*float64(mid)))
	at = max(0, min(w-1, at))
	needle := lipgloss.NewStyle().Foreground(theme.TuningColor(m.Tuning())).Render("█")
	left := theme.StyleDimmed.Render(string(cells[:at]))
	right := theme.StyleDimmed.Render(string(cells[at+1:]))
	return left + needle + right
}

func scale(w int) string {
	lo, mid, hi := fmt.Sprintf("-%d", span), "0", fmt.Sprintf("+%d", span)
	gap := (w - len(lo) - len(mid) - len(hi)) / 2
	if gap < 1 {
		gap = 1
	}
	pad := strings.Repeat(" ", gap)
	return theme.StyleDimmed.Render(lo + pad + mid + pad + hi)
}
