package engine

import (
	"math/rand"
	"testing"

	"github.com/najonda/stepseq-go/internal/scale"
	"github.com/najonda/stepseq-go/internal/step"
	"github.com/najonda/stepseq-go/internal/track"
)

type fixedSource struct {
	s step.Step
}

func (f fixedSource) StepAt(absIndex int) step.Step { return f.s }

func TestCombineGateModes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cases := []struct {
		mode   step.GateLogicMode
		g1, g2 bool
		want   bool
	}{
		{step.GateLogicOne, true, false, true},
		{step.GateLogicTwo, true, false, false},
		{step.GateLogicAnd, true, true, true},
		{step.GateLogicAnd, true, false, false},
		{step.GateLogicOr, false, true, true},
		{step.GateLogicXor, true, true, false},
		{step.GateLogicXor, true, false, true},
		{step.GateLogicNand, true, true, false},
		{step.GateLogicNand, false, false, true},
	}
	for _, c := range cases {
		got := combineGate(c.mode, c.g1, c.g2, rng)
		if got != c.want {
			t.Errorf("mode=%v g1=%v g2=%v: got %v want %v", c.mode, c.g1, c.g2, got, c.want)
		}
	}
}

func TestCombineNoteMinMax(t *testing.T) {
	if got := combineNote(step.NoteLogicMin, 3, 7, nil); got != 3 {
		t.Fatalf("expected min=3, got %d", got)
	}
	if got := combineNote(step.NoteLogicMax, 3, 7, nil); got != 7 {
		t.Fatalf("expected max=7, got %d", got)
	}
	// Op1/Op2 default to Max per Open Question (b).
	if got := combineNote(step.NoteLogicOp1, 3, 7, nil); got != 7 {
		t.Fatalf("expected Op1 default to Max, got %d", got)
	}
	if got := combineNote(step.NoteLogicOp2, 3, 7, nil); got != 7 {
		t.Fatalf("expected Op2 default to Max, got %d", got)
	}
}

func TestLogicEngineFreeModeGatesOnStageRepeat(t *testing.T) {
	seq := &step.LogicSequence{}
	seq.Divisor = 4
	seq.LastStep = 1
	seq.Steps[0].SetGate(true)
	seq.Steps[0].SetGateProbability(step.ProbRange)
	seq.Steps[0].SetLength(step.LengthRange)
	seq.Steps[0].SetGateLogicMode(step.GateLogicAnd)
	seq.Steps[0].SetStageRepeats(1) // repeats once before Free mode advances

	in1 := fixedSource{s: plainStep(true, 0)}
	in2 := fixedSource{s: plainStep(true, 0)}
	trk := &track.Track{PlayMode: track.Free}
	e := NewLogicEngine(seq, trk, scale.ByID(0), 0, in1, in2, WithRand(rand.New(rand.NewSource(2))))

	for tick := uint32(1); tick <= 4; tick++ {
		e.OnTick(tick)
	}
	if e.State.Seq.Current != 0 {
		t.Fatalf("expected stage-repeat to hold step 0 through the first divisor boundary, got %d", e.State.Seq.Current)
	}
	for tick := uint32(5); tick <= 8; tick++ {
		e.OnTick(tick)
	}
	if e.State.Seq.Current == 0 && e.State.Seq.Iteration == 0 {
		t.Fatalf("expected Free mode to advance once the stage-repeat budget is exhausted")
	}
}

func TestLogicEngineANDOfTwoActiveGatesGates(t *testing.T) {
	seq := &step.LogicSequence{}
	seq.Divisor = 24
	seq.LastStep = 1
	seq.Steps[0].SetGate(true)
	seq.Steps[0].SetGateProbability(step.ProbRange)
	seq.Steps[0].SetLength(step.LengthRange)
	seq.Steps[0].SetGateLogicMode(step.GateLogicAnd)

	in1 := fixedSource{s: plainStep(true, 0)}
	in2 := fixedSource{s: plainStep(true, 0)}
	e := NewLogicEngine(seq, &track.Track{PlayMode: track.Aligned}, scale.ByID(0), 0, in1, in2, WithRand(rand.New(rand.NewSource(2))))

	mask := e.OnTick(0)
	if mask&GateUpdate == 0 {
		t.Fatalf("expected AND of two active gates to gate, mask=%v", mask)
	}
}
