package picker

import (
	"strings"
	"testing"

	"github.com/pitchcast/pitchcast/internal/note"
)

func TestSelectionStartsInactive(t *testing.T) {
	m := New()
	m.SetNotes(note.All(2, 6))
	if m.Selected() != nil {
		t.Fatal("no target should be selected before the user moves")
	}

	m.Move(0)
	sel := m.Selected()
	if sel == nil || sel.Display != "A4" {
		t.Fatalf("Selected() = %+v, want A4", sel)
	}
}

func TestMoveAndOctave(t *testing.T) {
	m := New()
	m.SetNotes(note.All(2, 6))

	m.Move(3)
	if got := m.Selected().Display; got != "C5" {
		t.Errorf("A4 + 3 = %s, want C5", got)
	}
	m.Octave(-1)
	if got := m.Selected().Display; got != "C4" {
		t.Errorf("C5 - octave = %s, want C4", got)
	}
	m.Octave(-10)
	if got := m.Selected().Display; got != "C2" {
		t.Errorf("clamped low = %s, want C2", got)
	}
	m.Octave(10)
	if got := m.Selected().Display; got != "B6" {
		t.Errorf("clamped high = %s, want B6", got)
	}
}

func TestClear(t *testing.T) {
	m := New()
	m.SetNotes(note.All(2, 6))
	m.Move(1)
	m.Clear()
	if m.Selected() != nil {
		t.Error("Clear() should drop the target")
	}
}

func TestSetNotesKeepsSelection(t *testing.T) {
	m := New()
	m.SetNotes(note.All(2, 6))
	m.Move(-9) // C4
	m.SetNotes(note.All(3, 5))
	if sel := m.Selected(); sel == nil || sel.Display != "C4" {
		t.Errorf("Selected() = %+v, want C4 kept", sel)
	}

	m.SetNotes(note.All(5, 6))
	if m.Selected() != nil {
		t.Error("selection no longer listed should be dropped")
	}
}

func TestMoveWithoutNotes(t *testing.T) {
	m := New()
	m.Move(1)
	if m.Selected() != nil {
		t.Error("empty picker should have no selection")
	}
	if !strings.Contains(m.View(), "loading") {
		t.Error("empty picker should show loading")
	}
}

func TestView(t *testing.T) {
	m := New()
	m.Width = 80
	m.SetNotes(note.All(2, 6))
	v := m.View()
	if !strings.Contains(v, "A4") || !strings.Contains(v, "none") {
		t.Errorf("view = %q", v)
	}
	m.Move(2)
	if !strings.Contains(m.View(), "target: B4") {
		t.Error("view should name the target")
	}
}
