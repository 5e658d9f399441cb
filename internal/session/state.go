package session

import (
	"encoding/json"
	"fmt"
)

// State is the broadcast state of a session. A session is Broadcasting
// exactly when it has at least one client.
type State int

const (
	Idle State = iota
	Broadcasting
)

var stateNames = map[State]string{
	Idle:         "idle",
	Broadcasting: "broadcasting",
}

var stateFromName = map[string]State{
	"idle":         Idle,
	"broadcasting": Broadcasting,
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if v, ok := stateFromName[name]; ok {
		*s = v
	}
	return nil
}

// Mode selects where readings come from and whether a tick loop drives them.
type Mode string

const (
	// ModePull polls a device or simulated source on every tick.
	ModePull Mode = "pull"
	// ModePush never ticks; readings are echoed back from client audio_data.
	ModePush Mode = "push"
	// ModeHybrid ticks a simulated source until the first valid audio_data,
	// then hands over to the client until the session goes idle.
	ModeHybrid Mode = "hybrid"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModePull, ModePush, ModeHybrid:
		return m, nil
	}
	return "", fmt.Errorf("unknown session mode %q", s)
}

// ticks reports whether the mode runs a tick loop at all.
func (m Mode) ticks() bool {
	return m != ModePush
}
