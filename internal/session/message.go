package session

import (
	"time"

	"github.com/pitchcast/pitchcast/internal/note"
)

type MessageType string

const (
	MsgPitchData MessageType = "pitch_data"
	MsgPong      MessageType = "pong"
	MsgPing      MessageType = "ping"
	MsgAudioData MessageType = "audio_data"
)

// Reading is one converted pitch sample as sent to clients. Pitch carries the
// raw source value; the embedded Note carries the rounded frequency.
type Reading struct {
	Pitch float64 `json:"pitch"`
	note.Note
	Timestamp float64  `json:"timestamp"`
	Demo      *bool    `json:"demo,omitempty"`
	Amplitude *float64 `json:"amplitude,omitempty"`
}

// NewReading converts hz and stamps it with at.
func NewReading(hz float64, at time.Time) Reading {
	return Reading{
		Pitch:     hz,
		Note:      note.FrequencyToNote(hz),
		Timestamp: unixSeconds(at),
	}
}

// PitchMessage is the pitch_data frame.
type PitchMessage struct {
	Type MessageType `json:"type"`
	Reading
}

func NewPitchMessage(r Reading) PitchMessage {
	return PitchMessage{Type: MsgPitchData, Reading: r}
}

// ControlMessage is any frame that carries only a type.
type ControlMessage struct {
	Type MessageType `json:"type"`
}

// Inbound is the union of client-to-server frames. Pointer fields are nil
// when the client omitted them.
type Inbound struct {
	Type      MessageType `json:"type"`
	Frequency *float64    `json:"frequency,omitempty"`
	Amplitude *float64    `json:"amplitude,omitempty"`
	Timestamp *float64    `json:"timestamp,omitempty"`
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func boolPtr(b bool) *bool { return &b }
