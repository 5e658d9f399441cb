package events

import (
	"strings"
	"testing"
	"time"

	"github.com/pitchcast/pitchcast/internal/session"
)

func reading(hz float64, demo bool) session.Reading {
	r := session.NewReading(hz, time.Unix(1700000000, 0))
	r.Demo = &demo
	return r
}

func messages(l Log, k Kind) []string {
	var out []string
	for _, e := range l.Entries() {
		if e.Kind == k {
			out = append(out, e.Message)
		}
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestObserveSourceSwitches(t *testing.T) {
	l := New(0)
	l.Observe(reading(440, true))
	l.Observe(reading(441, true))
	l.Observe(reading(262, false))
	l.Observe(reading(0, false))
	l.Observe(reading(330, true))

	want := []string{"receiving demo data", "switched to live input", "switched to demo data"}
	if got := messages(l, Source); !equal(got, want) {
		t.Errorf("source events = %q, want %q", got, want)
	}
}

func TestObserveVoiceEdges(t *testing.T) {
	l := New(0)
	for _, hz := range []float64{0, 0, 440, 445, 466.16, 0, 0, 261.63} {
		l.Observe(reading(hz, false))
	}

	want := []string{
		"voice at A4 (440.00 Hz)",
		"silence after A#4",
		"voice at C4 (261.63 Hz)",
	}
	if got := messages(l, Voice); !equal(got, want) {
		t.Errorf("voice events = %q, want %q", got, want)
	}
}

func TestBreakStartsFresh(t *testing.T) {
	l := New(0)
	l.Observe(reading(440, true))
	l.Break()
	l.Observe(reading(440, true))

	if n := l.Count(Source); n != 2 {
		t.Errorf("source events = %d, want 2 after a break", n)
	}
	if n := l.Count(Voice); n != 2 {
		t.Errorf("voice events = %d, want a new onset after a break", n)
	}
}

func TestRetarget(t *testing.T) {
	l := New(0)
	l.Retarget("A4")
	l.Retarget("")

	want := []string{"target A4", "target cleared"}
	if got := messages(l, Target); !equal(got, want) {
		t.Errorf("target events = %q, want %q", got, want)
	}
}

func TestCapacityKeepsNewest(t *testing.T) {
	l := New(3)
	for _, hz := range []float64{440, 0, 440, 0, 440} {
		l.Observe(reading(hz, false))
	}
	if l.Len() != 3 {
		t.Fatalf("len = %d, want 3", l.Len())
	}
	if l.Count(Source) != 0 {
		t.Error("the oldest source event should have been dropped")
	}
	if last := l.Entries()[2].Message; last != "voice at A4 (440.00 Hz)" {
		t.Errorf("newest = %q", last)
	}
}

func TestViewShowsKindsAndTally(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 5, 0, time.UTC)
	l := New(0)
	l.now = func() time.Time { return at }
	l.Add(Link, "connected")
	l.Observe(reading(196, false))
	l.Add(Error, "%s", "status: 503")

	v := l.View(100, 30)
	for _, want := range []string{"EVENTS", "12:30:05.000", "link", "voice at G3", "src", "err", "status: 503", "voice 1"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}

	if v := New(0).View(80, 20); !strings.Contains(v, "nothing yet") || !strings.Contains(v, "0 events") {
		t.Error("empty log should say so")
	}
}

func TestScrollStaysInRange(t *testing.T) {
	l := New(0)
	for i := 0; i < 4; i++ {
		l.Retarget("A4")
	}
	l.Scroll(10)
	if l.Offset() != 3 {
		t.Errorf("offset = %d, want 3", l.Offset())
	}
	if !strings.Contains(l.View(80, 20), "3 newer") {
		t.Error("scrolled view should count hidden entries")
	}
	l.Scroll(-10)
	if l.Offset() != 0 {
		t.Errorf("offset = %d, want 0", l.Offset())
	}
	l.Scroll(2)
	l.Add(Link, "connected")
	if l.Offset() != 0 {
		t.Error("a new entry should follow the tail")
	}
}
