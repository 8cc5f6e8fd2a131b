package engine

import (
	"math/rand"

	"github.com/najonda/stepseq-go/internal/eventqueue"
	"github.com/najonda/stepseq-go/internal/recorder"
	"github.com/najonda/stepseq-go/internal/scale"
	"github.com/najonda/stepseq-go/internal/seqstate"
	"github.com/najonda/stepseq-go/internal/step"
	"github.com/najonda/stepseq-go/internal/track"
)

// NoteEngine drives a Note sequence: probabilities, retrigger, slide,
// conditions (spec.md §4.3 "Note Engine").
type NoteEngine struct {
	Sequence *step.NoteSequence
	Track    *track.Track
	Scale    scale.Scale
	RootNote int

	State State

	gateQueue *eventqueue.GateQueue
	cvQueue   *eventqueue.CVQueue

	rand   *rand.Rand
	logger logFn

	activity   bool
	cvTarget   float64
	slideFlag  bool
	slideTime  int
	cvCurrent  float64

	fillActive bool

	// octave/transpose/swingPercent are this tick's effective (possibly
	// routed) values, resolved once by the Dispatcher and pushed in via
	// SetRoutedParams (spec.md §4.8).
	octave       int
	transpose    int
	swingPercent int

	// history/stepRecorder/recording/recordMode/recordDelay/selected wire
	// the step-record input handler into the tick path (spec.md §4.3
	// "Recording").
	history      *recorder.History
	stepRecorder *recorder.StepRecorder
	recording    bool
	recordMode   recorder.Mode
	recordDelay  int
	selected     bool
}

// State is the tick-local bookkeeping every Note-like engine (Note,
// Stochastic, Arp) shares on top of seqstate.State: the stage-repeat
// counter, the free-running sub-divisor tick, and the previous
// condition result consulted by Pre/NotPre (spec.md §4.3 steps 3-5).
type State struct {
	Seq                  seqstate.State
	RelativeTick         uint32
	FreeRelativeTick     uint32
	CurrentStageRepeat   int
	PrevConditionResult  bool
	StepsSinceReset      int
}

type logFn func(format string, args ...interface{})

// NewNoteEngine builds a NoteEngine over seq/trk, voicing through scl.
func NewNoteEngine(seq *step.NoteSequence, trk *track.Track, scl scale.Scale, rootNote int, opts ...Option) *NoteEngine {
	o := resolveOptions(opts)
	e := &NoteEngine{
		Sequence:  seq,
		Track:     trk,
		Scale:     scl,
		RootNote:  rootNote,
		gateQueue: eventqueue.NewGateQueue(),
		cvQueue:   eventqueue.NewCVQueue(),
		rand:      o.Rand,
		logger:    o.logf,
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

// SetFillActive toggles the fill flag the engine's condition/gate
// evaluation reads (spec.md §4.3 step 4/5's Fill/NotFill handling).
func (e *NoteEngine) SetFillActive(active bool) { e.fillActive = active }

// SetRoutedParams installs this tick's effective octave/transpose/swing
// percentage, resolved once by the Dispatcher from track base values and
// any active Router binding (spec.md §4.8: "while a target is routed,
// reads return the routed value").
func (e *NoteEngine) SetRoutedParams(octave, transpose, swingPercent int) {
	e.octave = octave
	e.transpose = transpose
	e.swingPercent = swingPercent
}

// SetRecorder installs the shared record-history ring buffer this track
// reads during step recording (spec.md §6: "the engine borrows it
// read-only during recordStep").
func (e *NoteEngine) SetRecorder(h *recorder.History, marginTicks uint32, lengthRange int) {
	e.history = h
	e.stepRecorder = recorder.NewStepRecorder(h, marginTicks, lengthRange)
}

// SetRecording enables or disables step recording on this track and
// configures recordDelay's grace window (spec.md §4.3 "Recording";
// §9 Open Question (c)).
func (e *NoteEngine) SetRecording(enabled bool, mode recorder.Mode, recordDelay int) {
	e.recording = enabled
	e.recordMode = mode
	e.recordDelay = recordDelay
}

// SetSelected marks whether this is the UI-selected track, which gates
// Overwrite mode's clear-on-miss behavior (spec.md §4.3: "Overwrite mode
// clears the previous step if no note landed and the track is selected").
func (e *NoteEngine) SetSelected(selected bool) { e.selected = selected }

// absoluteStep computes the absolute-tick-derived step index used by
// Aligned play mode (spec.md §4.2 "advanceAligned").
func absoluteStep(relativeTick uint32, divisor uint32) int {
	if divisor == 0 {
		divisor = 1
	}
	return int(relativeTick / divisor)
}

// OnTick runs one tick of the Note engine's contract (spec.md §4.3
// steps 2-6) and returns which outputs changed.
func (e *NoteEngine) OnTick(tick uint32) UpdateMask {
	if e.Sequence == nil {
		return NoUpdate // spec.md §7 "Invalid sequence reference": tick is a no-op.
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
		e.State.StepsSinceReset = 0
	}

	mask := NoUpdate

	if e.Track != nil && e.Track.PlayMode == track.Aligned {
		if relativeTick%divisor == 0 {
			abs := absoluteStep(relativeTick, divisor)
			e.State.Seq.AdvanceAligned(abs, e.rand)
			e.trigger(tick, divisor, abs)
			e.maybeRecord(tick, tick+divisor-1, abs, e.State.Seq.Current)
			if stepAt(e.Sequence, e.Track, e.State.Seq.Current).GateOffset() < 0 {
				next := e.State.Seq.CalculateNextStepAligned(abs, e.rand)
				e.triggerIndex(tick+divisor, divisor, next, abs+1)
			}
			mask |= GateUpdate | CVUpdate
		}
	} else {
		e.State.FreeRelativeTick++
		if e.State.FreeRelativeTick >= divisor {
			e.State.FreeRelativeTick = 0
			if e.State.CurrentStageRepeat >= stepAt(e.Sequence, e.Track, e.State.Seq.Current).StageRepeats()+1 {
				e.State.Seq.AdvanceFree(e.rand)
				e.State.CurrentStageRepeat = 1
				e.State.StepsSinceReset++
			} else {
				e.State.CurrentStageRepeat++
			}
			e.trigger(tick, divisor, e.State.Seq.Current)
			e.maybeRecord(tick, tick+divisor-1, e.State.StepsSinceReset, e.State.Seq.Current)
			mask |= GateUpdate | CVUpdate
		}
	}

	mask |= e.drain(tick)
	return mask
}

// maybeRecord applies the step-record input handler at a step boundary
// (spec.md §4.3 "Recording"), gated by recordDelay's grace window
// (§9 Open Question (c): "a step record at absoluteStep is accepted
// when absoluteStep==0 || absoluteStep>=recordDelay+1").
func (e *NoteEngine) maybeRecord(stepStart, stepEnd uint32, absStep, stepIndex int) {
	if !e.recording || e.stepRecorder == nil || e.recordMode == recorder.ModeStepRecord {
		return
	}
	if !recorder.Due(absStep, e.recordDelay) {
		return
	}
	idx := stepIndex
	if e.Track != nil {
		idx = e.Track.RotateIndex(stepIndex, step.MaxSteps)
	}
	if idx < 0 || idx >= len(e.Sequence.Steps) {
		return
	}
	rec, ok := e.stepRecorder.Record(stepStart, stepEnd)
	if ok {
		e.Sequence.Steps[idx].SetGate(rec.Gate)
		e.Sequence.Steps[idx].SetLength(rec.Length)
		return
	}
	if e.recordMode == recorder.ModeOverwrite && e.selected {
		e.Sequence.Steps[idx].SetGate(false)
	}
}

// OnLinkedTick advances on the parent track's divisor boundaries rather
// than its own (spec.md §4.7 "Track-Link Dispatch": "a linked track
// advances its own sequence state only when the parent track crosses a
// divisor boundary, so the two stay in lock-step regardless of the
// linked track's own divisor setting").
func (e *NoteEngine) OnLinkedTick(tick uint32, parentBoundary bool) UpdateMask {
	if e.Sequence == nil || !parentBoundary {
		return e.drain(tick)
	}
	divisor := resolveDivisor(e.Sequence.Divisor)
	if e.Track != nil && e.Track.PlayMode == track.Aligned {
		abs := e.State.Seq.Current + 1
		e.State.Seq.AdvanceAligned(abs, e.rand)
	} else {
		e.State.Seq.AdvanceFree(e.rand)
	}
	e.trigger(tick, divisor, e.State.Seq.Current)
	mask := GateUpdate | CVUpdate
	mask |= e.drain(tick)
	return mask
}

func resolveDivisor(raw int) uint32 {
	if raw <= 0 {
		return 1
	}
	return uint32(raw)
}

func stepAt(seq *step.NoteSequence, trk *track.Track, idx int) step.Step {
	rotated := idx
	if trk != nil {
		rotated = trk.RotateIndex(idx, step.MaxSteps)
	}
	if rotated < 0 || rotated >= len(seq.Steps) {
		return step.Step{}
	}
	return seq.Steps[rotated]
}

func (e *NoteEngine) trigger(tick uint32, divisor uint32, absIdx int) {
	e.triggerIndex(tick, divisor, e.State.Seq.Current, absIdx)
}

func (e *NoteEngine) triggerIndex(tick uint32, divisor uint32, stepIndex int, absIdx int) {
	s := stepAt(e.Sequence, e.Track, stepIndex)
	ctx := triggerContext{
		Tick: tick, Divisor: divisor, Track: e.Track, Scale: e.Scale, RootNote: e.RootNote,
		Rand: e.rand, Iteration: e.State.Seq.Iteration, FillActive: e.fillActive,
		FillGates: e.Track != nil && e.Track.FillMode == track.FillGates && e.fillActive,
		PrevResult: e.State.PrevConditionResult, StageRepeat: e.State.CurrentStageRepeat,
		Octave: e.octave, Transpose: e.transpose, SwingPercent: e.swingPercent, StepIndex: stepIndex,
	}
	res := triggerStep(s, ctx)
	e.State.PrevConditionResult = res.ConditionHit
	for _, g := range res.GateEvents {
		if !e.gateQueue.PushReplace(g) && e.logger != nil {
			e.logger("note engine: gate queue full, dropped tick=%d", g.Tick)
		}
	}
	for _, c := range res.CVEvents {
		if !e.cvQueue.PushReplace(c) && e.logger != nil {
			e.logger("note engine: cv queue full, dropped tick=%d", c.Tick)
		}
	}
	_ = absIdx
}

// drain pops every due queue entry and updates GateOutput/CVOutput
// (spec.md §4.3 steps 5-6).
func (e *NoteEngine) drain(now uint32) UpdateMask {
	mask := NoUpdate
	for _, g := range e.gateQueue.Drain(now) {
		e.activity = g.Value
		mask |= GateUpdate
	}
	for _, c := range e.cvQueue.Drain(now) {
		updateAlways := e.Track != nil && e.Track.CVUpdateMode == track.CVUpdateAlways
		if !e.muted() || updateAlways {
			e.cvTarget = c.Volts
			e.slideFlag = c.Slide
			mask |= CVUpdate
		}
	}
	return mask
}

func (e *NoteEngine) muted() bool { return false } // play-state mute is applied by Dispatcher

// GateOutput reports the track's current gate level (spec.md §4.3 step
// 5: "gate output is (!mute OR fill) AND activity" — mute/fill are
// applied by the Dispatcher, which owns PlayState).
func (e *NoteEngine) GateOutput() bool { return e.activity }

// CVOutput reports the current (slew-applied) CV target.
func (e *NoteEngine) CVOutput() float64 { return e.cvCurrent }

// Slide reports whether the last CV update requested a slide.
func (e *NoteEngine) Slide() bool { return e.slideFlag }

// SetSlideTime configures the slew time constant (spec.md §4.3 step 7).
func (e *NoteEngine) SetSlideTime(ms int) { e.slideTime = ms }

// Update applies slide toward CVTarget over dt milliseconds (spec.md
// §4.3 step 7: "apply slide with a time-constant derived from
// slideTime to smoothly approach the CV target"), called outside the
// tick path.
func (e *NoteEngine) Update(dtMillis float64) {
	if e.slideTime <= 0 || !e.slideFlag {
		e.cvCurrent = e.cvTarget
		return
	}
	alpha := dtMillis / float64(e.slideTime)
	if alpha > 1 {
		alpha = 1
	}
	e.cvCurrent += (e.cvTarget - e.cvCurrent) * alpha
}

// ClockStop drains in-flight queue entries immediately (spec.md §5
// "Cancellation / timeout": clockStop stops advancement; in-flight
// entries are drained on resume).
func (e *NoteEngine) ClockStop(resetCV bool) {
	e.gateQueue.Clear()
	e.cvQueue.Clear()
	if resetCV {
		e.cvTarget = 0
		e.cvCurrent = 0
	}
}
