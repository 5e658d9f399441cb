// Package history keeps recent frequencies and draws them as a sparkline.
package history

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pitchcast/pitchcast/internal/tui/theme"
)

const defaultCapacity = 240

var blocks = []rune("▁▂▃▄▅▆▇█")

// Model is a ring of recent frequencies. Zero marks silence.
type Model struct {
	Width   int
	samples []float64
	cap     int
}

// New creates a history holding up to capacity samples.
func New(capacity int) Model {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return Model{cap: capacity}
}

// Push appends hz, dropping the oldest sample when full.
func (m *Model) Push(hz float64) {
	m.samples = append(m.samples, hz)
	if len(m.samples) > m.cap {
		m.samples = m.samples[len(m.samples)-m.cap:]
	}
}

// Len returns the number of samples held.
func (m Model) Len() int { return len(m.samples) }

// Range returns the lowest and highest voiced frequency held, or zeros if
// every sample is silent.
func (m Model) Range() (lo, hi float64) {
	lo = math.Inf(1)
	for _, v := range m.samples {
		if v <= 0 {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == 0 {
		return 0, 0
	}
	return lo, hi
}

// Sparkline renders the newest width samples on a log scale, one rune per
// sample. Silence renders as a space.
func (m Model) Sparkline(width int) string {
	if width <= 0 {
		return ""
	}
	samples := m.samples
	if len(samples) > width {
		samples = samples[len(samples)-width:]
	}

	lo, hi := m.Range()
	var b strings.Builder
	for _, v := range samples {
		if v <= 0 {
			b.WriteRune(' ')
			continue
		}
		level := len(blocks) - 1
		if hi > lo {
			frac := math.Log2(v/lo) / math.Log2(hi/lo)
			level = int(math.Round(frac * float64(len(blocks)-1)))
		}
		b.WriteRune(blocks[level])
	}
	return b.String()
}

// View renders the sparkline with its range.
func (m Model) View() string {
	width := m.Width - 4
	if width < 10 {
		width = 10
	}
	lo, hi := m.Range()
	label := theme.StyleDimmed.Render("history")
	if hi > 0 {
		label = theme.StyleDimmed.Render(fmt.Sprintf("history  %.0f-%.0f Hz", lo, hi))
	}
	line := lipgloss.NewStyle().Foreground(theme.ColorAccent).Render(m.Sparkline(width))
	return lipgloss.JoinVertical(lipgloss.Left, label, line)
}
