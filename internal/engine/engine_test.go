package engine

import (
	"math/rand"
	"testing"

	"github.com/najonda/stepseq-go/internal/scale"
	"github.com/najonda/stepseq-go/internal/step"
	"github.com/najonda/stepseq-go/internal/track"
)

func plainStep(gate bool, note int) step.Step {
	var s step.Step
	s.SetGate(gate)
	s.SetGateProbability(step.ProbRange)
	s.SetNote(note)
	s.SetLength(step.LengthRange)
	return s
}

func TestTriggerStepPlainNoteGatesAndVoices(t *testing.T) {
	s := plainStep(true, 0)
	ctx := triggerContext{Tick: 0, Divisor: 24, Scale: scale.ByID(0), StageRepeat: 1}
	res := triggerStep(s, ctx)
	if !res.Gated {
		t.Fatalf("expected step to gate")
	}
	if len(res.GateEvents) != 2 || len(res.CVEvents) != 1 {
		t.Fatalf("expected one on/off gate pair and one CV event, got %+v", res)
	}
	if res.GateEvents[0].Tick != 0 || !res.GateEvents[0].Value {
		t.Fatalf("expected gate-on at tick 0, got %+v", res.GateEvents[0])
	}
}

func TestTriggerStepNegativeGateOffsetPreTriggers(t *testing.T) {
	s := plainStep(true, 0)
	s.SetGateOffset(-8) // half a divisor early
	ctx := triggerContext{Tick: 24, Divisor: 24, Scale: scale.ByID(0), StageRepeat: 1}
	res := triggerStep(s, ctx)
	if !res.Gated {
		t.Fatalf("expected gate")
	}
	if res.GateEvents[0].Tick >= 24 {
		t.Fatalf("expected pre-triggered tick before 24, got %d", res.GateEvents[0].Tick)
	}
}

func TestTriggerStepRetriggerProducesMultiplePulses(t *testing.T) {
	s := plainStep(true, 0)
	s.SetRetrigger(2) // retrig = 3 pulses
	s.SetRetriggerProbability(step.ProbRange)
	rng := rand.New(rand.NewSource(1))
	ctx := triggerContext{Tick: 0, Divisor: 24, Scale: scale.ByID(0), StageRepeat: 1, Rand: rng}
	res := triggerStep(s, ctx)
	if len(res.GateEvents) != 6 {
		t.Fatalf("expected 3 on/off pairs (6 events) for retrigger=3, got %d", len(res.GateEvents))
	}
}

func TestTriggerStepConditionLoopGatesEveryNthIteration(t *testing.T) {
	s := plainStep(true, 0)
	var cond step.Condition
	cond.Kind = step.CondLoop
	cond.Base = 4
	cond.Offset = 1
	s.SetCondition(cond)

	for it := uint32(0); it < 8; it++ {
		ctx := triggerContext{Tick: 0, Divisor: 24, Scale: scale.ByID(0), StageRepeat: 1, Iteration: it}
		res := triggerStep(s, ctx)
		want := it%4 == 1
		if res.Gated != want {
			t.Fatalf("iteration %d: gated=%v want=%v", it, res.Gated, want)
		}
	}
}

func TestTriggerStepGateProbabilityZeroGatesOnlyOnZeroRoll(t *testing.T) {
	s := plainStep(true, 0)
	s.SetGateProbability(0)
	// gate probability 0 only lets a roll of 0 through.
	for roll := int64(0); roll < 4; roll++ {
		ctx := triggerContext{Tick: 0, Divisor: 24, Scale: scale.ByID(0), StageRepeat: 1, Rand: rand.New(constRandSource{n: roll})}
		res := triggerStep(s, ctx)
		if res.Gated != (roll == 0) {
			t.Fatalf("roll %d: gated=%v want=%v", roll, res.Gated, roll == 0)
		}
	}
}

func TestTriggerStepBypassScaleUsesChromatic(t *testing.T) {
	s := plainStep(true, 7)
	s.SetBypassScale(true)
	major := scale.ByID(1)
	ctx := triggerContext{Tick: 0, Divisor: 24, Scale: major, StageRepeat: 1}
	res := triggerStep(s, ctx)
	chromatic := scale.ByID(0)
	want := chromatic.NoteToVolts(7)
	if res.CVEvents[0].Volts != want {
		t.Fatalf("expected bypass-scale volts %f, got %f", want, res.CVEvents[0].Volts)
	}
}

func TestEvalStageRepeatModes(t *testing.T) {
	cases := []struct {
		mode         step.StageRepeatMode
		current, tot int
		want         bool
	}{
		{step.RepeatEach, 2, 3, true},
		{step.RepeatFirst, 1, 3, true},
		{step.RepeatFirst, 2, 3, false},
		{step.RepeatLast, 3, 3, true},
		{step.RepeatMiddle, 2, 3, true},
		{step.RepeatMiddle, 1, 3, false},
		{step.RepeatOdd, 1, 4, true},
		{step.RepeatOdd, 2, 4, false},
		{step.RepeatEven, 2, 4, true},
		{step.RepeatTriplets, 1, 6, true},
		{step.RepeatTriplets, 2, 6, false},
	}
	for _, c := range cases {
		got := evalStageRepeat(c.mode, c.current, c.tot, nil)
		if got != c.want {
			t.Errorf("mode=%v current=%d total=%d: got %v want %v", c.mode, c.current, c.tot, got, c.want)
		}
	}
}

func TestResolveOptionsDefaultsRandWhenNil(t *testing.T) {
	o := resolveOptions(nil)
	if o.Rand == nil {
		t.Fatalf("expected a default Rand")
	}
}

func TestWithRandIsUsedVerbatim(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	o := resolveOptions([]Option{WithRand(r)})
	if o.Rand != r {
		t.Fatalf("expected injected Rand to be used as-is")
	}
}

func TestTriggerStepSwingDelaysOddStepsOnly(t *testing.T) {
	s := plainStep(true, 0)
	evenCtx := triggerContext{Tick: 0, Divisor: 24, Scale: scale.ByID(0), StageRepeat: 1, StepIndex: 0, SwingPercent: 50}
	oddCtx := triggerContext{Tick: 0, Divisor: 24, Scale: scale.ByID(0), StageRepeat: 1, StepIndex: 1, SwingPercent: 50}

	evenRes := triggerStep(s, evenCtx)
	oddRes := triggerStep(s, oddCtx)
	if evenRes.GateEvents[0].Tick != 0 {
		t.Fatalf("expected an even step index to land exactly on the grid, got tick %d", evenRes.GateEvents[0].Tick)
	}
	if oddRes.GateEvents[0].Tick == 0 {
		t.Fatalf("expected swing to push an odd step index's gate-on tick late")
	}
}

func TestTriggerStepLengthModifierPerturbsLengthDeterministically(t *testing.T) {
	s := plainStep(true, 0)
	ctx := triggerContext{Tick: 0, Divisor: 24, Scale: scale.ByID(0), StageRepeat: 1, LengthModifier: 50, Rand: rand.New(rand.NewSource(3))}
	res := triggerStep(s, ctx)
	base := plainStep(true, 0)
	baseCtx := triggerContext{Tick: 0, Divisor: 24, Scale: scale.ByID(0), StageRepeat: 1}
	baseRes := triggerStep(base, baseCtx)
	if res.GateEvents[1].Tick == baseRes.GateEvents[1].Tick {
		t.Fatalf("expected a non-zero LengthModifier to change the gate-off tick, both landed at %d", res.GateEvents[1].Tick)
	}
}

func TestCVUpdateAlwaysPublishesOnRestStep(t *testing.T) {
	s := plainStep(false, 3)
	trk := &track.Track{CVUpdateMode: track.CVUpdateAlways}
	ctx := triggerContext{Tick: 0, Divisor: 24, Scale: scale.ByID(0), Track: trk, StageRepeat: 1}
	res := triggerStep(s, ctx)
	if res.Gated {
		t.Fatalf("rest step should not gate")
	}
	if len(res.CVEvents) != 1 {
		t.Fatalf("expected CV republish on CVUpdateAlways even without a gate, got %d events", len(res.CVEvents))
	}
}
