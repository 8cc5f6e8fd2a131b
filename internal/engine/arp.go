package engine

import (
	"math/rand"
	"sort"

	"github.com/najonda/stepseq-go/internal/eventqueue"
	"github.com/najonda/stepseq-go/internal/scale"
	"github.com/najonda/stepseq-go/internal/step"
	"github.com/najonda/stepseq-go/internal/track"
)

// heldNote is one entry in the Arp engine's sorted held-note set
// (spec.md §4.6: "tracks insertion order and source step index").
type heldNote struct {
	note      int
	stepIndex int
	order     uint64
}

// ArpEngine maintains a sorted held-note set and walks it in a chosen
// pattern with octave traversal (spec.md §4.6 "Arp Engine").
type ArpEngine struct {
	Sequence *step.ArpSequence
	Track    *track.Track
	Scale    scale.Scale
	RootNote int

	State State

	gateQueue *eventqueue.GateQueue
	cvQueue   *eventqueue.CVQueue

	rnd    *rand.Rand
	logger logFn

	activity  bool
	cvTarget  float64
	cvCurrent float64
	slideFlag bool

	held    []heldNote
	orderCt uint64

	arpStepIndex int
	octaveOffset int
	octaveDir    int

	// currentStageRepeat/iteration/prevConditionResult are the Arp
	// engine's counterparts to State.CurrentStageRepeat/Seq.Iteration/
	// PrevConditionResult (spec.md §4.3 steps 3-6, carried over verbatim
	// per SPEC_FULL.md §12: "included verbatim across all four engines").
	currentStageRepeat  int
	iteration           uint32
	prevConditionResult bool

	// octave/transpose/swingPercent are this tick's effective (possibly
	// routed) values, resolved once by the Dispatcher (spec.md §4.8).
	octave       int
	transpose    int
	swingPercent int

	fillActive bool
}

// NewArpEngine builds an ArpEngine over seq/trk.
func NewArpEngine(seq *step.ArpSequence, trk *track.Track, scl scale.Scale, rootNote int, opts ...Option) *ArpEngine {
	o := resolveOptions(opts)
	e := &ArpEngine{
		Sequence: seq, Track: trk, Scale: scl, RootNote: rootNote,
		gateQueue: eventqueue.NewGateQueue(), cvQueue: eventqueue.NewCVQueue(),
		rnd: o.Rand, logger: o.logf, octaveDir: 1,
		currentStageRepeat: 1,
	}
	if trk != nil {
		e.octave = trk.Octave
		e.transpose = trk.Transpose
	}
	return e
}

// SetRoutedParams installs this tick's effective octave/transpose/swing
// percentage, resolved once by the Dispatcher (spec.md §4.8).
func (e *ArpEngine) SetRoutedParams(octave, transpose, swingPercent int) {
	e.octave = octave
	e.transpose = transpose
	e.swingPercent = swingPercent
}

// AddNote inserts a note in ascending pitch order, recording its source
// step index and a monotonically increasing order stamp (spec.md §4.6:
// "addNote(note, index) inserts in ascending pitch order and tracks
// insertion order and source step index").
func (e *ArpEngine) AddNote(note, stepIndex int) {
	if len(e.held) >= 12 {
		return
	}
	e.orderCt++
	n := heldNote{note: note, stepIndex: stepIndex, order: e.orderCt}
	i := sort.Search(len(e.held), func(i int) bool { return e.held[i].note >= note })
	e.held = append(e.held, heldNote{})
	copy(e.held[i+1:], e.held[i:])
	e.held[i] = n
}

// RemoveNote drops a held note unless Hold is enabled, in which case the
// entry is kept alive (SPEC_FULL.md §12 / spec.md §4.6: "tracks the
// count ... but keeps the entry if hold mode is active").
func (e *ArpEngine) RemoveNote(note int) {
	if e.Track != nil && e.Track.Arp.Hold {
		return
	}
	for i, h := range e.held {
		if h.note == note {
			e.held = append(e.held[:i], e.held[i+1:]...)
			return
		}
	}
}

// advanceStep computes the next note index per spec.md §4.6 step 1's
// mode table, over [0, noteCount).
func (e *ArpEngine) advanceStep(noteCount int) int {
	if noteCount == 0 {
		return 0
	}
	mode := track.ArpPlayOrder
	if e.Track != nil {
		mode = e.Track.Arp.Mode
	}
	cur := e.arpStepIndex
	switch mode {
	case track.ArpPlayOrder, track.ArpUp:
		return (cur + 1) % noteCount
	case track.ArpDown:
		n := cur - 1
		if n < 0 {
			n = noteCount - 1
		}
		return n
	case track.ArpUpDown, track.ArpUpAndDown:
		n := cur + 1
		if n >= noteCount {
			return 0
		}
		return n
	case track.ArpDownUp, track.ArpDownAndUp:
		n := cur - 1
		if n < 0 {
			return noteCount - 1
		}
		return n
	case track.ArpConverge, track.ArpDiverge:
		// Converge and Diverge walk forward through the held notes like
		// Up; no outside-in or inside-out order is applied.
		return (cur + 1) % noteCount
	case track.ArpRandom:
		if e.rnd == nil {
			return cur
		}
		return e.rnd.Intn(noteCount)
	default:
		return (cur + 1) % noteCount
	}
}

// advanceOctave updates the octave offset and direction when the
// traversal wraps (spec.md §4.6 step 2: "signed -10..+10; magnitudes >5
// signal two-direction traversal by subtracting 5").
func (e *ArpEngine) advanceOctave() {
	cfg := track.ArpConfig{}
	if e.Track != nil {
		cfg = e.Track.Arp
	}
	span, twoDir := cfg.OctaveSpan()
	if span <= 0 {
		e.octaveOffset = 0
		return
	}
	if twoDir {
		e.octaveOffset += e.octaveDir
		if e.octaveOffset >= span || e.octaveOffset <= -span {
			e.octaveDir = -e.octaveDir
		}
	} else {
		e.octaveOffset = (e.octaveOffset + 1) % (span + 1)
	}
}

// OnTick runs one divisor-boundary pass of the Arp engine (spec.md
// §4.6): with no held notes, nothing fires.
func (e *ArpEngine) OnTick(tick uint32) UpdateMask {
	if e.Sequence == nil {
		return NoUpdate
	}
	divisor := resolveDivisor(e.Sequence.Divisor)
	if tick%divisor != 0 {
		return e.drain(tick)
	}
	if len(e.held) == 0 {
		return e.drain(tick)
	}

	held := e.held[clampIndex(e.arpStepIndex, len(e.held))]
	s := e.sequenceStep(held.stepIndex)

	if e.currentStageRepeat >= s.StageRepeats()+1 {
		nextIdx := e.advanceStep(len(e.held))
		if nextIdx == 0 {
			e.advanceOctave()
			e.iteration++
		}
		e.arpStepIndex = nextIdx
		e.currentStageRepeat = 1
		held = e.held[clampIndex(nextIdx, len(e.held))]
		s = e.sequenceStep(held.stepIndex)
	} else {
		e.currentStageRepeat++
	}

	ctx := triggerContext{
		Tick: tick, Divisor: divisor, Track: e.Track, Scale: e.Scale, RootNote: e.RootNote,
		Rand: e.rnd, Iteration: e.iteration, FillActive: e.fillActive,
		PrevResult: e.prevConditionResult, StageRepeat: e.currentStageRepeat, StepIndex: held.stepIndex,
		Octave: e.octave, Transpose: e.transpose, SwingPercent: e.swingPercent,
		OctaveExtra:        e.octaveOffset * e.Scale.NotesPerOctave,
		LengthModifier:     e.Sequence.LengthModifier,
		NoteOverrideActive: true, NoteOverride: held.note,
		GateOverrideActive: true, GateOverride: true,
	}
	res := triggerStep(s, ctx)
	e.prevConditionResult = res.ConditionHit
	for _, g := range res.GateEvents {
		e.gateQueue.PushReplace(g)
	}
	for _, c := range res.CVEvents {
		e.cvQueue.PushReplace(c)
	}

	mask := e.drain(tick)
	if res.Gated {
		mask |= GateUpdate | CVUpdate
	}
	return mask
}

func (e *ArpEngine) sequenceStep(idx int) step.Step {
	i := clampIndex(idx, len(e.Sequence.Steps))
	return e.Sequence.Steps[i]
}

func (e *ArpEngine) drain(now uint32) UpdateMask {
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
func (e *ArpEngine) GateOutput() bool { return e.activity }

// CVOutput reports the engine's current CV output.
func (e *ArpEngine) CVOutput() float64 { return e.cvCurrent }

// ClockStop drains in-flight queue entries immediately.
func (e *ArpEngine) ClockStop(resetCV bool) {
	e.gateQueue.Clear()
	e.cvQueue.Clear()
	if resetCV {
		e.cvTarget, e.cvCurrent = 0, 0
	}
}
