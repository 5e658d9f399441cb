// Package theme provides the Lip Gloss color palette and reusable styles
// for the tuner TUI. It is a leaf package with no view imports to avoid
// import cycles.
package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pitchcast/pitchcast/internal/note"
)

// Tuning colors.
var (
	ColorInTune = lipgloss.Color("#22c55e")
	ColorClose  = lipgloss.Color("#d97706")
	ColorOff    = lipgloss.Color("#dc2626")
	ColorSilent = lipgloss.Color("#4b5563")
)

// Source colors.
var (
	ColorDemo = lipgloss.Color("#a855f7")
	ColorLive = lipgloss.Color("#06b6d4")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorAccent  = lipgloss.Color("#3b82f6")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// TuningColor returns the color for a tuning bucket.
func TuningColor(t note.Tuning) lipgloss.Color {
	switch t {
	case note.InTune:
		return ColorInTune
	case note.Close:
		return ColorClose
	default:
		return ColorOff
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright).
			Background(ColorAccent)
)
