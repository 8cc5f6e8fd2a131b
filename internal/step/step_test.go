package step

import "testing"

func TestStepFieldRoundTrip(t *testing.T) {
	var s Step
	s.SetGate(true)
	s.SetGateProbability(100)
	s.SetGateOffset(-2)
	s.SetRetrigger(3)
	s.SetLength(64)
	s.SetNote(-10)
	s.SetSlide(true)
	s.SetCondition(Condition{Kind: CondLoop, Base: 4, Offset: 1, Invert: false})
	s.SetStageRepeatMode(RepeatOdd)

	if !s.Gate() || s.GateProbability() != 100 || s.GateOffset() != -2 {
		t.Fatalf("base fields did not round-trip: gate=%v prob=%d offset=%d", s.Gate(), s.GateProbability(), s.GateOffset())
	}
	if s.Retrigger() != 3 || s.Length() != 64 || s.Note() != -10 || !s.Slide() {
		t.Fatalf("more fields did not round-trip")
	}
	c := s.Condition()
	if c.Kind != CondLoop || c.Base != 4 || c.Offset != 1 || c.Invert {
		t.Fatalf("condition did not round-trip: %+v", c)
	}
	if s.StageRepeatMode() != RepeatOdd {
		t.Fatalf("stage repeat mode did not round-trip")
	}
}

func TestStepClampsOnWrite(t *testing.T) {
	var s Step
	s.SetGateProbability(9999)
	if s.GateProbability() != ProbRange {
		t.Fatalf("expected clamp to %d, got %d", ProbRange, s.GateProbability())
	}
	s.SetNote(-999)
	if s.Note() != NoteMin {
		t.Fatalf("expected clamp to %d, got %d", NoteMin, s.Note())
	}
	s.SetNote(999)
	if s.Note() != NoteMax {
		t.Fatalf("expected clamp to %d, got %d", NoteMax, s.Note())
	}
}

func TestStepPackUnpackRoundTrip(t *testing.T) {
	var s Step
	s.SetGate(true)
	s.SetNote(12)
	s.SetGateOffset(-5)
	w0, w1 := s.Pack()

	s2 := Unpack(w0, w1)
	if s2.Gate() != s.Gate() || s2.Note() != s.Note() || s2.GateOffset() != s.GateOffset() {
		t.Fatalf("pack/unpack mismatch")
	}
}

func TestLogicStepModes(t *testing.T) {
	var l LogicStep
	l.SetGate(true)
	l.SetGateLogicMode(GateLogicXor)
	l.SetNoteLogicMode(NoteLogicMax)

	if !l.Gate() {
		t.Fatal("base field lost on LogicStep")
	}
	if l.GateLogicMode() != GateLogicXor || l.NoteLogicMode() != NoteLogicMax {
		t.Fatalf("logic modes did not round-trip: %v %v", l.GateLogicMode(), l.NoteLogicMode())
	}
}

func TestSequenceBaseClampEnforcesWindow(t *testing.T) {
	b := Base{FirstStep: 10, LastStep: 2}
	b.Clamp(64)
	if b.LastStep < b.FirstStep {
		t.Fatalf("lastStep must be >= firstStep after clamp, got first=%d last=%d", b.FirstStep, b.LastStep)
	}
}

func TestStochasticSequenceClampEnforcesOctaveAndWindow(t *testing.T) {
	var s StochasticSequence
	s.LowOctaveRange = 3
	s.HighOctaveRange = 1
	s.SequenceFirstStep = 5
	s.SequenceLastStep = 1
	s.Clamp(64)

	if s.HighOctaveRange < s.LowOctaveRange {
		t.Fatalf("octave range invariant violated: low=%d high=%d", s.LowOctaveRange, s.HighOctaveRange)
	}
	if s.SequenceLastStep < s.SequenceFirstStep {
		t.Fatalf("sequence window invariant violated: first=%d last=%d", s.SequenceFirstStep, s.SequenceLastStep)
	}
}
