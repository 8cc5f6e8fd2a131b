package engine

import (
	"math/rand"
	"testing"

	"github.com/najonda/stepseq-go/internal/scale"
	"github.com/najonda/stepseq-go/internal/step"
	"github.com/najonda/stepseq-go/internal/track"
)

func newArpSeq() *step.ArpSequence {
	seq := &step.ArpSequence{}
	seq.Divisor = 24
	seq.LastStep = 3
	for i := range seq.Steps {
		seq.Steps[i].SetGateProbability(step.ProbRange)
		seq.Steps[i].SetLength(step.LengthRange)
	}
	return seq
}

func TestArpEngineAddNoteKeepsAscendingOrder(t *testing.T) {
	e := NewArpEngine(newArpSeq(), &track.Track{}, scale.ByID(0), 0)
	e.AddNote(7, 0)
	e.AddNote(2, 1)
	e.AddNote(5, 2)
	for i := 1; i < len(e.held); i++ {
		if e.held[i].note < e.held[i-1].note {
			t.Fatalf("expected ascending pitch order, got %+v", e.held)
		}
	}
}

func TestArpEngineRemoveNoteRespectsHold(t *testing.T) {
	trk := &track.Track{Arp: track.ArpConfig{Hold: true}}
	e := NewArpEngine(newArpSeq(), trk, scale.ByID(0), 0)
	e.AddNote(3, 0)
	e.RemoveNote(3)
	if len(e.held) != 1 {
		t.Fatalf("expected Hold to keep the note, got %d held", len(e.held))
	}
	trk.Arp.Hold = false
	e.RemoveNote(3)
	if len(e.held) != 0 {
		t.Fatalf("expected RemoveNote to evict once Hold is off")
	}
}

func TestArpEngineCapsHeldNotesAtTwelve(t *testing.T) {
	e := NewArpEngine(newArpSeq(), &track.Track{}, scale.ByID(0), 0)
	for i := 0; i < 20; i++ {
		e.AddNote(i, 0)
	}
	if len(e.held) != 12 {
		t.Fatalf("expected at most 12 held notes, got %d", len(e.held))
	}
}

func TestArpEngineNoOpWithNoHeldNotes(t *testing.T) {
	e := NewArpEngine(newArpSeq(), &track.Track{}, scale.ByID(0), 0, WithRand(rand.New(rand.NewSource(1))))
	mask := e.OnTick(0)
	if mask&GateUpdate != 0 {
		t.Fatalf("expected no gate update with an empty held-note set")
	}
}

func TestArpEngineStageRepeatHoldsStepBeforeAdvancing(t *testing.T) {
	seq := newArpSeq()
	seq.Steps[0].SetStageRepeats(2) // repeats twice before advancing
	e := NewArpEngine(seq, &track.Track{}, scale.ByID(0), 0, WithRand(rand.New(rand.NewSource(1))))
	e.AddNote(3, 0)
	e.AddNote(5, 1)

	e.OnTick(0) // first hit on step 0, currentStageRepeat -> 2
	if e.arpStepIndex != 0 {
		t.Fatalf("expected to still be on step 0 after the first hit, got %d", e.arpStepIndex)
	}
	e.OnTick(24) // second hit on step 0 (repeat 2 of 3), currentStageRepeat -> 3
	if e.arpStepIndex != 0 {
		t.Fatalf("expected stage-repeat to hold step 0 for a second hit, got index %d", e.arpStepIndex)
	}
	e.OnTick(48) // stage-repeat budget exhausted: advances to step 1
	if e.arpStepIndex != 1 {
		t.Fatalf("expected advance to step 1 once stage repeats are exhausted, got %d", e.arpStepIndex)
	}
}

func TestArpEngineIterationIncrementsOnWrap(t *testing.T) {
	seq := newArpSeq()
	e := NewArpEngine(seq, &track.Track{}, scale.ByID(0), 0, WithRand(rand.New(rand.NewSource(1))))
	e.AddNote(3, 0)
	e.AddNote(5, 1)

	if e.iteration != 0 {
		t.Fatalf("expected iteration to start at 0, got %d", e.iteration)
	}
	e.OnTick(0)  // advances to note index 1
	e.OnTick(24) // wraps back to note index 0, iteration increments
	e.OnTick(48) // advances to note index 1
	if e.iteration != 1 {
		t.Fatalf("expected iteration to increment on wrap, got %d", e.iteration)
	}
}

func TestArpEngineLengthModifierPerturbsGateOffTick(t *testing.T) {
	makeEngine := func(modifier int) *ArpEngine {
		seq := newArpSeq()
		seq.LengthModifier = modifier
		e := NewArpEngine(seq, &track.Track{}, scale.ByID(0), 0, WithRand(rand.New(rand.NewSource(9))))
		e.AddNote(5, 0)
		return e
	}

	base := makeEngine(0)
	base.OnTick(0)
	baseOff := base.gateQueue.Drain(1 << 20)

	modified := makeEngine(50)
	modified.OnTick(0)
	modifiedOff := modified.gateQueue.Drain(1 << 20)

	if len(baseOff) == 0 || len(modifiedOff) == 0 {
		t.Fatalf("expected both runs to schedule a gate-off event, base=%d modified=%d", len(baseOff), len(modifiedOff))
	}
	if baseOff[0].Tick == modifiedOff[0].Tick {
		t.Fatalf("expected a non-zero LengthModifier to shift the gate-off tick, both landed at %d", baseOff[0].Tick)
	}
}

func TestArpEngineOctaveSpanTwoDirection(t *testing.T) {
	cfg := track.ArpConfig{Octaves: 7}
	span, twoDir := cfg.OctaveSpan()
	if span != 2 || !twoDir {
		t.Fatalf("expected span=2 two-direction=true for octaves=7, got span=%d twoDir=%v", span, twoDir)
	}
}
