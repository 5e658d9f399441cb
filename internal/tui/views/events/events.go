// Package events records what happened to the tuner's stream: link changes,
// HTTP loads, errors, and edges in the pitch data itself (demo/live switches,
// voice onsets and silences, target changes).
package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/pitchcast/pitchcast/internal/session"
	"github.com/pitchcast/pitchcast/internal/tui/theme"
)

// DefaultCapacity bounds the log when New is given a non-positive size.
const DefaultCapacity = 200

type Kind int

const (
	Link Kind = iota
	Fetch
	Error
	Source
	Target
	Voice
)

var kindLabels = map[Kind]string{
	Link:   "link",
	Fetch:  "http",
	Error:  "err",
	Source: "src",
	Target: "tgt",
	Voice:  "voice",
}

var kindColors = map[Kind]lipgloss.Color{
	Link:   theme.ColorAccent,
	Fetch:  theme.ColorDimmed,
	Error:  theme.ColorDanger,
	Source: theme.ColorDemo,
	Target: theme.ColorClose,
	Voice:  theme.ColorInTune,
}

func (k Kind) String() string {
	if s, ok := kindLabels[k]; ok {
		return s
	}
	return "?"
}

type Entry struct {
	At      time.Time
	Kind    Kind
	Message string
}

// Log is a bounded event history plus the stream state needed to detect
// edges between consecutive readings.
type Log struct {
	entries  []Entry
	capacity int
	offset   int // rows hidden below the viewport
	now      func() time.Time

	// stream edges
	streaming bool
	demo      bool
	voice     string // label of the current voiced note, "" while silent
}

func New(capacity int) Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return Log{capacity: capacity, now: time.Now}
}

// Add records an event and follows the newest entry.
func (l *Log) Add(kind Kind, format string, args ...any) {
	if l.now == nil {
		l.now = time.Now
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	l.entries = append(l.entries, Entry{At: l.now(), Kind: kind, Message: msg})
	if over := len(l.entries) - l.capacity; over > 0 {
		l.entries = append(l.entries[:0], l.entries[over:]...)
	}
	l.offset = 0
}

// Observe logs the edges a reading crosses: the first reading of a
// connection, demo/live switches, and voice onset or silence.
func (l *Log) Observe(r session.Reading) {
	demo := r.Demo != nil && *r.Demo
	switch {
	case !l.streaming:
		l.Add(Source, "receiving %s", sourceName(demo))
	case demo != l.demo:
		l.Add(Source, "switched to %s", sourceName(demo))
	}
	l.streaming = true
	l.demo = demo

	if r.Note.Silent() {
		if l.voice != "" {
			l.Add(Voice, "silence after %s", l.voice)
			l.voice = ""
		}
		return
	}
	if l.voice == "" {
		l.voice = r.Note.String()
		l.Add(Voice, "voice at %s (%.2f Hz)", l.voice, r.Frequency)
		return
	}
	l.voice = r.Note.String()
}

// Break forgets stream state so the next connection logs afresh.
func (l *Log) Break() {
	l.streaming = false
	l.voice = ""
}

// Retarget logs a change of target note. An empty label means the meter
// follows the nearest note.
func (l *Log) Retarget(label string) {
	if label == "" {
		l.Add(Target, "target cleared")
		return
	}
	l.Add(Target, "target %s", label)
}

// Scroll moves the viewport; positive n shows older entries.
func (l *Log) Scroll(n int) {
	l.offset = min(max(l.offset+n, 0), max(len(l.entries)-1, 0))
}

func (l Log) Len() int { return len(l.entries) }

func (l Log) Offset() int { return l.offset }

func (l Log) Entries() []Entry { return l.entries }

// Count returns how many retained entries have kind k.
func (l Log) Count(k Kind) int {
	n := 0
	for _, e := range l.entries {
		if e.Kind == k {
			n++
		}
	}
	return n
}

func sourceName(demo bool) string {
	if demo {
		return "demo data"
	}
	return "live input"
}

// View renders the log as an overlay panel of width x height cells.
func (l Log) View(width, height int) string {
	innerW := max(width-4, 24)
	rows := max(height-7, 3)

	title := theme.StyleHeader.Render(" EVENTS ")
	footer := theme.StyleDimmed.Render(l.tally() + "   j/k scroll  esc close")

	var body string
	if len(l.entries) == 0 {
		body = theme.StyleDimmed.Render("nothing yet")
	} else {
		end := len(l.entries) - l.offset
		start := max(end-rows, 0)
		t := table.New().
			Border(lipgloss.HiddenBorder()).
			BorderTop(false).
			BorderBottom(false).
			BorderLeft(false).
			BorderRight(false).
			Width(innerW)
		for _, e := range l.entries[start:end] {
			kind := lipgloss.NewStyle().Foreground(kindColors[e.Kind]).Render(e.Kind.String())
			t.Row(theme.StyleDimmed.Render(e.At.Format("15:04:05.000")), kind, e.Message)
		}
		body = t.Render()
		if l.offset > 0 {
			body += "\n" + theme.StyleDimmed.Render(fmt.Sprintf("%d newer", l.offset))
		}
	}

	return lipgloss.NewStyle().
		Width(innerW).
		Padding(1, 2).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", footer))
}

// tally summarises entry counts by kind, skipping kinds with none.
func (l Log) tally() string {
	var parts []string
	for k := Link; k <= Voice; k++ {
		if n := l.Count(k); n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", k, n))
		}
	}
	if len(parts) == 0 {
		return "0 events"
	}
	return strings.Join(parts, "  ")
}
