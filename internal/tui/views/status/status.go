package status

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pitchcast/pitchcast/internal/tui/client"
	"github.com/pitchcast/pitchcast/internal/tui/theme"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	Attempts  int
	Demo      bool
	HaveData  bool
	LastPong  time.Time
	Server    *client.Status
	Err       string
	Width     int
}

// New creates a status bar model.
func New() Model {
	return Model{}
}

// View renders the status bar. now is passed in so the pong age is testable.
func (m Model) View(now time.Time) string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	switch {
	case m.Connected:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	case m.Attempts > 0:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render(
			fmt.Sprintf("○ Reconnecting (%d)", m.Attempts))
	default:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr

	if m.HaveData {
		if m.Demo {
			content += sep + lipgloss.NewStyle().Foreground(theme.ColorDemo).Render("DEMO")
		} else {
			content += sep + lipgloss.NewStyle().Foreground(theme.ColorLive).Render("LIVE")
		}
	}

	if m.Server != nil {
		content += sep + fmt.Sprintf("%s mode  %d listening", m.Server.Mode, m.Server.Connections)
	}

	if !m.LastPong.IsZero() {
		age := now.Sub(m.LastPong).Truncate(time.Second)
		content += sep + theme.StyleDimmed.Render(fmt.Sprintf("pong %s ago", age))
	}

	if m.Err != "" {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(m.Err)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
