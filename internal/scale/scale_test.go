package scale

import "testing"

func TestChromaticIsIdentity(t *testing.T) {
	s := ByID(0)
	if !s.IsChromatic {
		t.Fatal("scale 0 must be chromatic")
	}
	if got := s.NoteToVolts(0); got != 0 {
		t.Fatalf("NoteToVolts(0) = %v, want 0", got)
	}
	if got := s.NoteToVolts(12); got != 1.0 {
		t.Fatalf("NoteToVolts(12) = %v, want 1.0 (one octave up)", got)
	}
	if got := s.NoteToVolts(-12); got != -1.0 {
		t.Fatalf("NoteToVolts(-12) = %v, want -1.0", got)
	}
}

func TestUnknownScaleFallsBackToChromatic(t *testing.T) {
	s := ByID(999)
	if s.ID != 0 {
		t.Fatalf("expected fallback to scale 0, got %d", s.ID)
	}
	s = ByID(-1)
	if s.ID != 0 {
		t.Fatalf("expected fallback to scale 0, got %d", s.ID)
	}
}

func TestDiatonicOctaveRoundTrip(t *testing.T) {
	s := ByID(1) // Major
	n := s.NotesPerOctave
	v0 := s.NoteToVolts(0)
	vOct := s.NoteToVolts(n)
	if vOct-v0 != 1.0 {
		t.Fatalf("one scale-octave step should be 1V apart, got delta %v", vOct-v0)
	}
}

func TestNoteNameWraps(t *testing.T) {
	s := ByID(0)
	name := s.NoteName(0, 0)
	if name == "" {
		t.Fatal("expected non-empty note name")
	}
}
