package engine

import (
	"math/rand"

	"github.com/najonda/stepseq-go/internal/eventqueue"
	"github.com/najonda/stepseq-go/internal/scale"
	"github.com/najonda/stepseq-go/internal/seqstate"
	"github.com/najonda/stepseq-go/internal/step"
	"github.com/najonda/stepseq-go/internal/track"
)

// NoteSource is the read-only view of another track's current step the
// Logic engine reads its two inputs from (spec.md §4.5: "the input
// gates are read from the two referenced tracks at the same absolute
// step (rotated)").
type NoteSource interface {
	// StepAt returns the step at the given absolute index (already
	// rotated by the source track's own rotate setting).
	StepAt(absIndex int) step.Step
}

// noteEngineSource adapts *NoteEngine to NoteSource.
type noteEngineSource struct{ e *NoteEngine }

func (n noteEngineSource) StepAt(absIndex int) step.Step {
	return stepAt(n.e.Sequence, n.e.Track, absIndex)
}

// AsNoteSource exposes a NoteEngine as a Logic engine input.
func (e *NoteEngine) AsNoteSource() NoteSource { return noteEngineSource{e} }

// LogicEngine combines two referenced NoteTrack inputs through per-step
// gate/note logic (spec.md §4.5 "Logic Engine").
type LogicEngine struct {
	Sequence *step.LogicSequence
	Track    *track.Track
	Scale    scale.Scale
	RootNote int

	Input1, Input2 NoteSource

	State State

	gateQueue *eventqueue.GateQueue
	cvQueue   *eventqueue.CVQueue

	rnd    *rand.Rand
	logger logFn

	activity  bool
	cvTarget  float64
	cvCurrent float64
	slideFlag bool

	fillActive bool

	// octave/transpose/swingPercent are this tick's effective (possibly
	// routed) values, resolved once by the Dispatcher (spec.md §4.8).
	octave       int
	transpose    int
	swingPercent int
}

// NewLogicEngine builds a LogicEngine over seq/trk, reading input1/
// input2 for its gate and note logic.
func NewLogicEngine(seq *step.LogicSequence, trk *track.Track, scl scale.Scale, rootNote int, input1, input2 NoteSource, opts ...Option) *LogicEngine {
	o := resolveOptions(opts)
	e := &LogicEngine{
		Sequence: seq, Track: trk, Scale: scl, RootNote: rootNote,
		Input1: input1, Input2: input2,
		gateQueue: eventqueue.NewGateQueue(), cvQueue: eventqueue.NewCVQueue(),
		rnd: o.Rand, logger: o.logf,
	}
	if trk != nil {
		e.octave = trk.Octave
		e.transpose = trk.Transpose
	}
	e.State.Seq = seqstate.State{RunMode: seq.RunMode, FirstStep: seq.FirstStep, LastStep: seq.LastStep}
	e.State.Seq.Reset()
	e.State.CurrentStageRepeat = 1
	return e
}

// SetFillActive toggles the fill flag.
func (e *LogicEngine) SetFillActive(active bool) { e.fillActive = active }

// SetRoutedParams installs this tick's effective octave/transpose/swing
// percentage, resolved once by the Dispatcher (spec.md §4.8).
func (e *LogicEngine) SetRoutedParams(octave, transpose, swingPercent int) {
	e.octave = octave
	e.transpose = transpose
	e.swingPercent = swingPercent
}

// stepAt returns the (rotate-adjusted) Logic step at idx (spec.md §4.3
// step 2: "Rotate the step index by track rotate", applied identically
// here per §4.5 "the remainder ... is identical to the Note engine").
func (e *LogicEngine) stepAt(idx int) step.LogicStep {
	rotated := idx
	if e.Track != nil {
		rotated = e.Track.RotateIndex(idx, step.MaxSteps)
	}
	if rotated < 0 || rotated >= len(e.Sequence.Steps) {
		return step.LogicStep{}
	}
	return e.Sequence.Steps[rotated]
}

// combineGate implements spec.md §4.5's gate-logic table.
func combineGate(mode step.GateLogicMode, g1, g2 bool, rnd *rand.Rand) bool {
	switch mode {
	case step.GateLogicOne:
		return g1
	case step.GateLogicTwo:
		return g2
	case step.GateLogicAnd:
		return g1 && g2
	case step.GateLogicOr:
		return g1 || g2
	case step.GateLogicXor:
		return g1 != g2
	case step.GateLogicNand:
		return !(g1 && g2)
	case step.GateLogicRandomInput:
		if rnd == nil {
			return g1
		}
		if rnd.Intn(2) == 0 {
			return g1
		}
		return g2
	case step.GateLogicRandomLogic:
		if rnd == nil {
			return g1 && g2
		}
		switch rnd.Intn(4) {
		case 0:
			return g1 && g2
		case 1:
			return g1 || g2
		case 2:
			return g1 != g2
		default:
			return !(g1 && g2)
		}
	default:
		return g1
	}
}

// combineNote implements spec.md §4.5's note-logic table. Op1/Op2 are
// reserved per spec.md §9 Open Question (b); both default to Max.
func combineNote(mode step.NoteLogicMode, n1, n2 int, rnd *rand.Rand) int {
	switch mode {
	case step.NoteLogicOne:
		return n1
	case step.NoteLogicTwo:
		return n2
	case step.NoteLogicMin:
		if n1 < n2 {
			return n1
		}
		return n2
	case step.NoteLogicMax, step.NoteLogicOp1, step.NoteLogicOp2:
		if n1 > n2 {
			return n1
		}
		return n2
	case step.NoteLogicRandomInput:
		if rnd == nil {
			return n1
		}
		if rnd.Intn(2) == 0 {
			return n1
		}
		return n2
	case step.NoteLogicRandomLogic:
		if rnd == nil {
			return n1
		}
		if rnd.Intn(2) == 0 {
			if n1 < n2 {
				return n1
			}
			return n2
		}
		if n1 > n2 {
			return n1
		}
		return n2
	default:
		return n1
	}
}

// OnTick runs one tick of the Logic engine: same tick/queue contract as
// Note, with the step's gate and note replaced by the two-input
// combination before triggerStep evaluates conditions/retrigger/length
// (spec.md §4.5: "The remainder ... is identical to the Note engine").
func (e *LogicEngine) OnTick(tick uint32) UpdateMask {
	if e.Sequence == nil {
		return NoUpdate
	}
	divisor := resolveDivisor(e.Sequence.Divisor)
	resetDivisor := uint32(0)
	if e.Sequence.ResetMeasure > 0 {
		resetDivisor = uint32(e.Sequence.ResetMeasure) * divisor
	}
	relativeTick := tick
	if resetDivisor != 0 {
		relativeTick = tick % resetDivisor
	}
	if relativeTick == 0 {
		e.State.Seq.Reset()
		e.State.CurrentStageRepeat = 1
	}

	mask := NoUpdate
	if e.Track != nil && e.Track.PlayMode == track.Aligned {
		if relativeTick%divisor != 0 {
			return e.drain(tick)
		}
		abs := absoluteStep(relativeTick, divisor)
		e.State.Seq.AdvanceAligned(abs, e.rnd)
		if e.evaluate(tick, divisor, abs) {
			mask |= GateUpdate | CVUpdate
		}
	} else {
		e.State.FreeRelativeTick++
		if e.State.FreeRelativeTick < divisor {
			return e.drain(tick)
		}
		e.State.FreeRelativeTick = 0
		if e.State.CurrentStageRepeat >= e.stepAt(e.State.Seq.Current).StageRepeats()+1 {
			e.State.Seq.AdvanceFree(e.rnd)
			e.State.CurrentStageRepeat = 1
		} else {
			e.State.CurrentStageRepeat++
		}
		if e.evaluate(tick, divisor, e.State.Seq.Current) {
			mask |= GateUpdate | CVUpdate
		}
	}

	mask |= e.drain(tick)
	return mask
}

// evaluate reads the two inputs at abs, combines gate/note, and runs the
// shared trigger algorithm over the resulting step (spec.md §4.5),
// reporting whether the step gated.
func (e *LogicEngine) evaluate(tick uint32, divisor uint32, abs int) bool {
	s := e.stepAt(e.State.Seq.Current)

	var g1, g2 bool
	var n1, n2 int
	if e.Input1 != nil {
		in1 := e.Input1.StepAt(abs)
		g1, n1 = in1.Gate(), in1.Note()
	}
	if e.Input2 != nil {
		in2 := e.Input2.StepAt(abs)
		g2, n2 = in2.Gate(), in2.Note()
	}
	gate := combineGate(s.GateLogicMode(), g1, g2, e.rnd)
	note := combineNote(s.NoteLogicMode(), n1, n2, e.rnd)

	ctx := triggerContext{
		Tick: tick, Divisor: divisor, Track: e.Track, Scale: e.Scale, RootNote: e.RootNote,
		Rand: e.rnd, Iteration: e.State.Seq.Iteration, FillActive: e.fillActive,
		FillGates: e.Track != nil && e.Track.FillMode == track.FillGates && e.fillActive,
		PrevResult: e.State.PrevConditionResult, StageRepeat: e.State.CurrentStageRepeat,
		StepIndex: e.State.Seq.Current,
		Octave:    e.octave, Transpose: e.transpose, SwingPercent: e.swingPercent,
		GateOverrideActive: true, GateOverride: gate,
		NoteOverrideActive: true, NoteOverride: note,
	}
	res := triggerStep(s.Step, ctx)
	e.State.PrevConditionResult = res.ConditionHit
	for _, g := range res.GateEvents {
		e.gateQueue.PushReplace(g)
	}
	for _, c := range res.CVEvents {
		e.cvQueue.PushReplace(c)
	}
	return res.Gated
}

func (e *LogicEngine) drain(now uint32) UpdateMask {
	mask := NoUpdate
	for _, g := range e.gateQueue.Drain(now) {
		e.activity = g.Value
		mask |= GateUpdate
	}
	for _, c := range e.cvQueue.Drain(now) {
		e.cvTarget = c.Volts
		e.cvCurrent = c.Volts
		e.slideFlag = c.Slide
		mask |= CVUpdate
	}
	return mask
}

// GateOutput reports the engine's current gate level.
func (e *LogicEngine) GateOutput() bool { return e.activity }

// CVOutput reports the engine's current CV output.
func (e *LogicEngine) CVOutput() float64 { return e.cvCurrent }

// ClockStop drains in-flight queue entries immediately.
func (e *LogicEngine) ClockStop(resetCV bool) {
	e.gateQueue.Clear()
	e.cvQueue.Clear()
	if resetCV {
		e.cvTarget, e.cvCurrent = 0, 0
	}
}
