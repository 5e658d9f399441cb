package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the TUI.
type KeyMap struct {
	NextNote   key.Binding
	PrevNote   key.Binding
	OctaveUp   key.Binding
	OctaveDown key.Binding
	Clear      key.Binding
	Refresh    key.Binding
	Ping       key.Binding
	Help       key.Binding
	Events     key.Binding
	Escape     key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		NextNote: key.NewBinding(
			key.WithKeys("l", "right"),
			key.WithHelp("l/→", "target up a semitone"),
		),
		PrevNote: key.NewBinding(
			key.WithKeys("h", "left"),
			key.WithHelp("h/←", "target down a semitone"),
		),
		OctaveUp: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "target up an octave"),
		),
		OctaveDown: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "target down an octave"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear target"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload notes and status"),
		),
		Ping: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "ping server"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Events: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "event log"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close overlay"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PrevNote, k.NextNote, k.Clear, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PrevNote, k.NextNote, k.OctaveUp, k.OctaveDown, k.Clear},
		{k.Refresh, k.Ping, k.Events, k.Help, k.Escape, k.Quit},
	}
}
