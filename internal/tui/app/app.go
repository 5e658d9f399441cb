package app

import (
	"context"
	"time"

	bubbleshelp "github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pitchcast/pitchcast/internal/note"
	"github.com/pitchcast/pitchcast/internal/tui/client"
	"github.com/pitchcast/pitchcast/internal/tui/theme"
	"github.com/pitchcast/pitchcast/internal/tui/views/events"
		"github.com/pitchcast/pitchcast/internal/tui/views/help"
	"github.com/pitchcast/pitchcast/internal/tui/views/history"
	"github.com/pitchcast/pitchcast/internal/tui/views/meter"
	"github.com/pitchcast/pitchcast/internal/tui/views/picker"
	"github.com/pitchcast/pitchcast/internal/tui/views/status"
)

// frameMsg drives the meter animation.
type frameMsg time.Time

// Options tunes the root model.
type Options struct {
	HelpStyle string // glamour style for the help overlay
	History   int    // samples kept for the sparkline
}

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayHelp
	OverlayEvents
)

// Model is the root Bubble Tea model.
type Model struct {
	ws     *client.WSClient
	http   *client.HTTPClient
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	help   bubbleshelp.Model
	width  int
	height int

	// Sub-views.
	statusBar status.Model
	meter     meter.Model
	picker    picker.Model
	history   history.Model
	helpView  help.Model
	events    events.Log
	overlay   Overlay

	// Last reading, replayed into the meter when the target changes.
	last   note.Note
	target string

	connected bool
	now       func() time.Time
}

// New creates the root model.
func New(ws *client.WSClient, http *client.HTTPClient, opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		ws:        ws,
		http:      http,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		help:      bubbleshelp.New(),
		statusBar: status.New(),
		meter:     meter.New(),
		picker:    picker.New(),
		history:   history.New(opts.History),
		helpView:  help.New(opts.HelpStyle),
		events:    events.New(events.DefaultCapacity),
		now:       time.Now,
	}
}

// Init starts the WebSocket connection and loads the note table.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.ws.Listen(m.ctx),
		m.http.FetchNotes(m.ctx),
		m.http.FetchStatus(m.ctx),
		frame(),
	)
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/meter.FPS, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.meter.Width = msg.Width
		m.picker.Width = msg.Width
		m.history.Width = msg.Width
		m.help.Width = msg.Width
		if m.overlay == OverlayHelp {
			m.renderHelp()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case frameMsg:
		m.meter.Step()
		return m, frame()

	case client.WSConnectedMsg:
		m.connected = true
		m.statusBar.Connected = true
		m.statusBar.Attempts = 0
		m.events.Add(events.Link, "connected")
		return m, tea.Batch(m.ws.ReadLoop(m.ctx), m.http.FetchStatus(m.ctx))

	case client.WSDisconnectedMsg:
		m.connected = false
		m.statusBar.Connected = false
		m.statusBar.Attempts++
		m.events.Break()
		if msg.Err != nil {
			m.events.Add(events.Link, "disconnected: %v", msg.Err)
		} else {
			m.events.Add(events.Link, "disconnected")
		}
		return m, m.ws.Listen(m.ctx)

	case client.WSReadingMsg:
		r := msg.Reading
		m.last = r.Note
		m.meter.Set(r.Note, m.picker.Selected())
		m.history.Push(r.Frequency)
		m.statusBar.HaveData = true
		m.statusBar.Demo = r.Demo != nil && *r.Demo
		m.events.Observe(r)
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSPongMsg:
		m.statusBar.LastPong = msg.At
		m.events.Add(events.Link, "pong")
		return m, m.ws.ReadLoop(m.ctx)

	case client.NotesMsg:
		if msg.Err != nil {
			m.statusBar.Err = "notes: " + msg.Err.Error()
			m.events.Add(events.Error, "%s", m.statusBar.Err)
			return m, nil
		}
		m.statusBar.Err = ""
		m.events.Add(events.Fetch, "loaded %d notes", len(msg.Notes))
		m.picker.SetNotes(msg.Notes)
		m.retarget()
		return m, nil

	case client.StatusMsg:
		if msg.Err != nil {
			m.events.Add(events.Error, "status: %v", msg.Err)
			return m, nil
		}
		m.statusBar.Server = msg.Status
		m.events.Add(events.Fetch, "server %s in %s mode", msg.Status.State, msg.Status.Mode)
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cancel()
		if m.ws != nil {
			m.ws.Close()
		}
		return m, tea.Quit
	}

	switch m.overlay {
	case OverlayHelp:
		if key.Matches(msg, m.keys.Escape, m.keys.Help) {
			m.overlay = OverlayNone
		}
		return m, nil
	case OverlayEvents:
		switch {
		case key.Matches(msg, m.keys.Escape, m.keys.Events):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.OctaveUp):
			m.events.Scroll(1)
		case key.Matches(msg, m.keys.OctaveDown):
			m.events.Scroll(-1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.NextNote):
		m.picker.Move(1)
		m.retarget()

	case key.Matches(msg, m.keys.PrevNote):
		m.picker.Move(-1)
		m.retarget()

	case key.Matches(msg, m.keys.OctaveUp):
		m.picker.Octave(1)
		m.retarget()

	case key.Matches(msg, m.keys.OctaveDown):
		m.picker.Octave(-1)
		m.retarget()

	case key.Matches(msg, m.keys.Clear):
		m.picker.Clear()
		m.retarget()

	case key.Matches(msg, m.keys.Refresh):
		return m, tea.Batch(m.http.FetchNotes(m.ctx), m.http.FetchStatus(m.ctx))

	case key.Matches(msg, m.keys.Ping):
		if err := m.ws.Ping(); err != nil {
			m.statusBar.Err = "ping: " + err.Error()
			m.events.Add(events.Error, "%s", m.statusBar.Err)
		}

	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
		m.renderHelp()

	case key.Matches(msg, m.keys.Events):
		m.overlay = OverlayEvents
	}

	return m, nil
}

func (m *Model) retarget() {
	sel := m.picker.Selected()
	m.meter.Set(m.last, sel)

	label := ""
	if sel != nil {
		label = sel.Display
	}
	if label != m.target {
		m.target = label
		m.events.Retarget(label)
	}
}

func (m *Model) renderHelp() {
	m.helpView.Render(help.Markdown(m.keys.FullHelp()), m.width)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	bar := m.statusBar.View(m.now())

	switch m.overlay {
	case OverlayHelp:
		return m.place(bar, m.helpView.View())
	case OverlayEvents:
		return m.place(bar, m.events.View(m.width, m.height-lipgloss.Height(bar)))
	}

	if !m.connected {
		box := lipgloss.NewStyle().
			Padding(1, 4).
			BorderStyle(lipgloss.DoubleBorder()).
			BorderForeground(theme.ColorDanger).
			Render(lipgloss.JoinVertical(lipgloss.Center,
				lipgloss.NewStyle().Bold(true).Foreground(theme.ColorDanger).Render("DISCONNECTED"),
				theme.StyleDimmed.Render("Reconnecting to server...")))
		return m.place(bar, box)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		bar,
		m.meter.View(),
		"",
		m.picker.View(),
		"",
		m.history.View(),
		"",
		m.help.View(m.keys),
	)
}

// place centres panel below the status bar.
func (m Model) place(bar, panel string) string {
	return lipgloss.JoinVertical(lipgloss.Left, bar,
		lipgloss.Place(m.width, m.height-lipgloss.Height(bar),
			lipgloss.Center, lipgloss.Center, panel))
}
