package client

import "github.com/pitchcast/pitchcast/internal/note"

// NoteEntry is one row of the /notes table.
type NoteEntry = note.Entry

// NotesResponse is the /notes body.
type NotesResponse struct {
	Notes []NoteEntry `json:"notes"`
}

// Status is the subset of /status the tuner displays.
type Status struct {
	Status      string `json:"status"`
	Mode        string `json:"mode"`
	Demo        bool   `json:"demo"`
	State       string `json:"state"`
	Connections int    `json:"connections"`
	Ticking     bool   `json:"ticking"`
}
