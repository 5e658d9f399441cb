// Package help renders the key reference overlay from markdown.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/pitchcast/pitchcast/internal/tui/theme"
)

const intro = `# pitchcast tuner

Sing or play into the server's input. The meter shows the note you are
closest to and how many cents sharp (+) or flat (-) you are.

Pick a **target** note to tune against it instead. Within 10 cents is
*in tune*, within 50 is *close*.

## Keys

`

// Markdown builds the overlay source from the active bindings.
func Markdown(groups [][]key.Binding) string {
	var b strings.Builder
	b.WriteString(intro)
	b.WriteString("| key | action |\n|---|---|\n")
	for _, group := range groups {
		for _, k := range group {
			h := k.Help()
			if h.Key == "" {
				continue
			}
			fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
		}
	}
	return b.String()
}

// Model caches the rendered overlay for one width.
type Model struct {
	style    string
	width    int
	rendered string
	err      error
}

// New creates a help overlay rendered with the named glamour style
// ("dark", "light", "notty", ...).
func New(style string) Model {
	if style == "" {
		style = "dark"
	}
	return Model{style: style}
}

// Render re-renders md when the width changes.
func (m *Model) Render(md string, width int) {
	if width == m.width && m.rendered != "" {
		return
	}
	m.width = width
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithWordWrap(max(20, width-8)),
	)
	if err != nil {
		m.err = err
		return
	}
	m.rendered, m.err = r.Render(md)
}

// View returns the overlay panel.
func (m Model) View() string {
	body := m.rendered
	if m.err != nil {
		body = theme.StyleDimmed.Render("help unavailable: " + m.err.Error())
	}
	return lipgloss.NewStyle().
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(strings.TrimRight(body, "\n") + "\n" + theme.StyleDimmed.Render("esc/?: close"))
}
