// Package picker selects a target note from the server's note table.
package picker

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pitchcast/pitchcast/internal/note"
	"github.com/pitchcast/pitchcast/internal/tui/theme"
)

const semitones = 12

// Model holds the note table and the cursor. Active is false until the user
// picks something, so the meter can fall back to the nearest note.
type Model struct {
	Width  int
	notes  []note.Entry
	cursor int
	active bool
}

// New creates an empty picker.
func New() Model {
	return Model{}
}

// SetNotes replaces the table, keeping the selection if it is still listed.
// The cursor otherwise starts on A4.
func (m *Model) SetNotes(notes []note.Entry) {
	prev := m.Selected()
	m.notes = notes
	m.cursor = max(0, m.find("A", 4))
	if prev == nil {
		return
	}
	if i := m.find(prev.Note, prev.Octave); i >= 0 {
		m.cursor = i
	} else {
		m.active = false
	}
}

func (m Model) find(name string, octave int) int {
	for i, e := range m.notes {
		if e.Note == name && e.Octave == octave {
			return i
		}
	}
	return -1
}

// Len returns the number of notes loaded.
func (m Model) Len() int { return len(m.notes) }

// Move shifts the cursor by n notes, clamped to the table, and activates
// the selection.
func (m *Model) Move(n int) {
	if len(m.notes) == 0 {
		return
	}
	m.cursor = max(0, min(len(m.notes)-1, m.cursor+n))
	m.active = true
}

// Octave shifts the cursor by whole octaves.
func (m *Model) Octave(n int) { m.Move(n * semitones) }

// Clear drops the target without moving the cursor.
func (m *Model) Clear() { m.active = false }

// Selected returns the target note, or nil when none is active.
func (m Model) Selected() *note.Entry {
	if !m.active || len(m.notes) == 0 {
		return nil
	}
	e := m.notes[m.cursor]
	return &e
}

// View renders one row of notes centred on the cursor.
func (m Model) View() string {
	if len(m.notes) == 0 {
		return theme.StyleDimmed.Render("  loading notes...")
	}

	cell := 5
	visible := max(1, (m.Width-4)/cell)
	start := max(0, m.cursor-visible/2)
	end := min(len(m.notes), start+visible)
	start = max(0, end-visible)

	var cells []string
	for i := start; i < end; i++ {
		style := lipgloss.NewStyle().Width(cell).Align(lipgloss.Center)
		switch {
		case i == m.cursor && m.active:
			style = theme.StyleSelected.Width(cell).Align(lipgloss.Center)
		case i == m.cursor:
			style = style.Foreground(theme.ColorBright)
		default:
			style = style.Foreground(theme.ColorDimmed)
		}
		cells = append(cells, style.Render(m.notes[i].Display))
	}

	label := theme.StyleDimmed.Render("target: none (nearest note)")
	if sel := m.Selected(); sel != nil {
		label = theme.StyleHeader.Render("target: " + sel.Display)
	}
	return lipgloss.JoinVertical(lipgloss.Left, label, strings.Join(cells, ""))
}
