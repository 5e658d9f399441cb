package ws

import (
	"github.com/pitchcast/pitchcast/internal/note"
	"github.com/pitchcast/pitchcast/internal/pitch"
	"github.com/pitchcast/pitchcast/internal/procstat"
	"github.com/pitchcast/pitchcast/internal/session"
)

// HTTP response bodies. WebSocket frames are defined by the session package.

type NotesResponse struct {
	Notes []note.Entry `json:"notes"`
}

type Features struct {
	WebSocket      bool `json:"websocket"`
	PitchDetection bool `json:"pitch_detection"`
	AudioInput     bool `json:"audio_input"`
	SimulatedData  bool `json:"simulated_data"`
}

type StatusResponse struct {
	Status      string                `json:"status"`
	Mode        session.Mode          `json:"mode"`
	Demo        bool                  `json:"demo"`
	State       session.State         `json:"state"`
	Connections int                   `json:"connections"`
	Ticking     bool                  `json:"ticking"`
	Source      *pitch.HealthSnapshot `json:"source,omitempty"`
	Features    Features              `json:"features"`
	Process     *procstat.Stats       `json:"process,omitempty"`
}

type InfoResponse struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Mode      session.Mode      `json:"mode"`
	Endpoints map[string]string `json:"endpoints"`
}

var endpoints = map[string]string{
	"api":       "/api",
	"notes":     "/notes",
	"status":    "/status",
	"metrics":   "/metrics",
	"websocket": "/ws",
}

// Octave range listed by /notes.
const (
	notesMinOctave = 2
	notesMaxOctave = 6
)
