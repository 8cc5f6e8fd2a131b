package engine

import (
	"math/rand"
	"sort"

	"github.com/najonda/stepseq-go/internal/eventqueue"
	"github.com/najonda/stepseq-go/internal/scale"
	"github.com/najonda/stepseq-go/internal/seqstate"
	"github.com/najonda/stepseq-go/internal/step"
	"github.com/najonda/stepseq-go/internal/track"
)

// StochasticEngine emits weighted random pitches drawn from a 12-step
// pitch table, with optional rests and a locked-loop replay buffer
// (spec.md §4.4 "Stochastic Engine").
type StochasticEngine struct {
	Sequence *step.StochasticSequence
	Track    *track.Track
	Scale    scale.Scale
	RootNote int

	State State

	gateQueue *eventqueue.GateQueue
	cvQueue   *eventqueue.CVQueue

	rnd    *rand.Rand
	seedFn func() int64
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

	// memBuffer and lockedBuffer implement the locked-loop replay
	// feature (spec.md §4.4): memBuffer always records the most recent
	// N outcomes; lockedBuffer is a frozen snapshot replayed while
	// UseLoop is set.
	memBuffer    []int
	lockedBuffer []int
	replayPos    int

	skipRemaining int // steps to skip after a rest draw
}

// NewStochasticEngine builds a StochasticEngine over seq/trk.
func NewStochasticEngine(seq *step.StochasticSequence, trk *track.Track, scl scale.Scale, rootNote int, opts ...Option) *StochasticEngine {
	o := resolveOptions(opts)
	n := seq.LastStep
	if n < 16 {
		n = 16
	}
	e := &StochasticEngine{
		Sequence: seq, Track: trk, Scale: scl, RootNote: rootNote,
		gateQueue: eventqueue.NewGateQueue(), cvQueue: eventqueue.NewCVQueue(),
		rnd: o.Rand, seedFn: o.Seed, logger: o.logf,
		memBuffer: make([]int, 0, n+1),
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

// SetRoutedParams installs this tick's effective octave/transpose/swing
// percentage, resolved once by the Dispatcher (spec.md §4.8).
func (e *StochasticEngine) SetRoutedParams(octave, transpose, swingPercent int) {
	e.octave = octave
	e.transpose = transpose
	e.swingPercent = swingPercent
}

// SetReseed(true) reseeds the PRNG once from the configured seed hook
// (spec.md §9 Open Question (a)); SetReseed(false) does nothing. OnTick
// calls it when Sequence.Reseed is set and then clears that flag.
func (e *StochasticEngine) SetReseed(v bool) {
	if v {
		e.rnd = rand.New(rand.NewSource(e.seedFn()))
	}
}

// SetClearLoop atomically resets the locked buffer to the current
// memory buffer and enables UseLoop (spec.md §4.4: "setClearLoop(true)
// atomically resets the locked buffer to the current memory buffer and
// switches useLoop on").
func (e *StochasticEngine) SetClearLoop() {
	e.lockedBuffer = append([]int(nil), e.memBuffer...)
	e.replayPos = 0
	e.Sequence.UseLoop = true
}

// SetFillActive toggles the fill flag.
func (e *StochasticEngine) SetFillActive(active bool) { e.fillActive = active }

// selectRest optionally rolls a rest of 1/2/4/8 steps (spec.md §4.4:
// "Before selecting a pitch, optionally insert a rest: rest
// probabilities for 1/2/4/8-step rests are weighted-sampled").
func (e *StochasticEngine) selectRest() int {
	type option struct {
		steps  int
		weight int
	}
	opts := []option{
		{1, e.Sequence.RestProbability1},
		{2, e.Sequence.RestProbability2},
		{4, e.Sequence.RestProbability4},
		{8, e.Sequence.RestProbability8},
	}
	total := 0
	for _, o := range opts {
		total += o.weight
	}
	if total <= 0 || e.rnd == nil {
		return 0
	}
	r := e.rnd.Intn(total) + 1
	for _, o := range opts {
		if o.weight <= 0 {
			continue
		}
		if r <= o.weight {
			return o.steps
		}
		r -= o.weight
	}
	return 0
}

type weightedPitch struct {
	index  int
	weight int
}

// selectPitch implements spec.md §4.4's weighted draw: "build a vector
// of (index, weight) ... sort by weight descending. Draw r uniformly in
// [1, sum(weights)]; iterate in sorted order subtracting weight; the
// first entry with r <= weight && weight > 0 wins."
func (e *StochasticEngine) selectPitch() (idx int, ok bool) {
	bias := 0
	if e.Track != nil {
		bias = e.Track.Biases.NoteProbability
	}
	var candidates []weightedPitch
	total := 0
	for i, p := range e.Sequence.PitchTable {
		if !p.Gate {
			continue
		}
		w := clampProb(p.NoteVariationProbability + bias)
		if w <= 0 {
			continue
		}
		candidates = append(candidates, weightedPitch{index: i, weight: w})
		total += w
	}
	if total <= 0 || e.rnd == nil {
		return 0, false
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].weight > candidates[j].weight })
	r := e.rnd.Intn(total) + 1
	for _, c := range candidates {
		if r <= c.weight && c.weight > 0 {
			return c.index, true
		}
		r -= c.weight
	}
	return 0, false
}

// OnTick runs one tick of the Stochastic engine's contract: same tick/
// queue handling as Note, but step selection draws from the pitch table
// instead of a fixed step index (spec.md §4.4).
func (e *StochasticEngine) OnTick(tick uint32) UpdateMask {
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
	boundary := false
	if e.Track != nil && e.Track.PlayMode == track.Aligned {
		boundary = relativeTick%divisor == 0
	} else {
		e.State.FreeRelativeTick++
		if e.State.FreeRelativeTick >= divisor {
			e.State.FreeRelativeTick = 0
			boundary = true
		}
	}
	if !boundary {
		return e.drain(tick)
	}

	if e.Track != nil && e.Track.PlayMode == track.Aligned {
		e.State.Seq.AdvanceAligned(absoluteStep(relativeTick, divisor), e.rnd)
	} else {
		e.State.Seq.AdvanceFree(e.rnd)
	}

	if e.skipRemaining > 0 {
		e.skipRemaining--
		return e.drain(tick)
	}

	if e.Sequence.Reseed {
		e.SetReseed(true)
		e.Sequence.Reseed = false
	}
	if e.Sequence.ClearLoop {
		e.SetClearLoop()
		e.Sequence.ClearLoop = false
	}

	if rest := e.selectRest(); rest > 0 {
		e.skipRemaining = rest - 1
		return e.drain(tick)
	}
	pitchIdx := e.nextPitchIndex()
	if pitchIdx < 0 {
		return e.drain(tick)
	}

	entry := e.Sequence.PitchTable[pitchIdx]
	noteStep := e.Sequence.Steps[clampIndex(e.State.Seq.Current, len(e.Sequence.Steps))]
	noteStep.SetNote(pitchIdx) // scale-relative index into the pitch table acts as the note value

	ctx := triggerContext{
		Tick: tick, Divisor: divisor, Track: e.Track, Scale: e.Scale, RootNote: e.RootNote,
		Rand: e.rnd, Iteration: e.State.Seq.Iteration, FillActive: e.fillActive,
		FillGates: e.Track != nil && e.Track.FillMode == track.FillGates && e.fillActive,
		PrevResult: e.State.PrevConditionResult, StageRepeat: e.State.CurrentStageRepeat,
		StepIndex: e.State.Seq.Current, OctaveExtra: entry.Octave,
		Octave: e.octave, Transpose: e.transpose, SwingPercent: e.swingPercent,
		LengthModifier:     e.Sequence.LengthModifier,
		GateOverrideActive: true, GateOverride: entry.Gate,
	}
	res := triggerStep(noteStep, ctx)
	e.State.PrevConditionResult = res.ConditionHit
	for _, g := range res.GateEvents {
		e.gateQueue.PushReplace(g)
	}
	for _, c := range res.CVEvents {
		e.cvQueue.PushReplace(c)
	}
	if res.Gated {
		e.recordOutcome(pitchIdx)
		mask |= GateUpdate | CVUpdate
	}

	mask |= e.drain(tick)
	return mask
}

// nextPitchIndex consults the locked-loop replay buffer if active,
// otherwise performs a fresh weighted draw.
func (e *StochasticEngine) nextPitchIndex() int {
	if e.Sequence.UseLoop && len(e.lockedBuffer) > 0 {
		idx := e.lockedBuffer[e.replayPos%len(e.lockedBuffer)]
		e.replayPos++
		return idx
	}
	idx, ok := e.selectPitch()
	if !ok {
		return -1
	}
	return idx
}

func (e *StochasticEngine) recordOutcome(idx int) {
	limit := e.Sequence.LastStep
	if limit < 16 {
		limit = 16
	}
	e.memBuffer = append(e.memBuffer, idx)
	if len(e.memBuffer) > limit {
		e.memBuffer = e.memBuffer[len(e.memBuffer)-limit:]
	}
}

func clampIndex(i, n int) int {
	if n <= 0 {
		return 0
	}
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func (e *StochasticEngine) drain(now uint32) UpdateMask {
	mask := NoUpdate
	for _, g := range e.gateQueue.Drain(now) {
		e.activity = g.Value
		mask |= GateUpdate
	}
	for _, c := range e.cvQueue.Drain(now) {
		// mute is applied by the Dispatcher, which owns PlayState; this
		// engine always publishes its own target (spec.md §4.3 step 6).
		e.cvTarget = c.Volts
		e.slideFlag = c.Slide
		e.cvCurrent = c.Volts
		mask |= CVUpdate
	}
	return mask
}

// GateOutput reports the engine's current gate level.
func (e *StochasticEngine) GateOutput() bool { return e.activity }

// CVOutput reports the engine's current CV output.
func (e *StochasticEngine) CVOutput() float64 { return e.cvCurrent }

// ClockStop drains in-flight queue entries immediately.
func (e *StochasticEngine) ClockStop(resetCV bool) {
	e.gateQueue.Clear()
	e.cvQueue.Clear()
	if resetCV {
		e.cvTarget, e.cvCurrent = 0, 0
	}
}
