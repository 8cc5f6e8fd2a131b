package step

import (
	"github.com/najonda/stepseq-go/internal/seqstate"
	"github.com/najonda/stepseq-go/internal/xmath"
)

// MaxSteps is the largest step array any sequence variant allocates
// (spec.md §3 "Sequence": "A fixed-size array of steps (max 64)").
const MaxSteps = 64

// Base holds the sequence-level parameters common to every variant
// (spec.md §3 "Sequence"). ScaleID/RootNote of -1 mean "use the
// project default"; no engine in this module reads ScaleID or RootNote,
// since engines voice through the scale and root note passed to their
// constructors.
type Base struct {
	ScaleID      int
	RootNote     int
	Divisor      int
	ResetMeasure int
	RunMode      seqstate.RunMode
	FirstStep    int
	LastStep     int
}

// Clamp enforces firstStep <= lastStep <= maxStep-1 (spec.md §3
// invariant). Called after every write that could have moved the window.
func (b *Base) Clamp(maxStep int) {
	b.FirstStep = xmath.Clamp(b.FirstStep, 0, maxStep-1)
	b.LastStep = xmath.Clamp(b.LastStep, 0, maxStep-1)
	if b.LastStep < b.FirstStep {
		b.LastStep = b.FirstStep
	}
}

// NoteSequence is a Note-track sequence: a plain step array plus the
// per-pattern edit flag the source keeps alongside it (spec.md §3
// "Note has a per-pattern edit flag").
type NoteSequence struct {
	Base
	Steps          [MaxSteps]NoteStep
	PerPatternEdit bool
}

// LogicSequence is a Logic-track sequence: no extra sequence-level
// fields beyond Base (spec.md §3 "Logic adds no sequence-level extras
// beyond scale").
type LogicSequence struct {
	Base
	Steps [MaxSteps]LogicStep
}

// ArpSequence is an Arp-track sequence: step array plus the rest-
// probability and octave-bound fields shared with Stochastic (spec.md §3).
type ArpSequence struct {
	Base
	Steps [MaxSteps]ArpStep

	RestProbability1 int
	RestProbability2 int
	RestProbability4 int
	RestProbability8 int
	LowOctaveRange   int
	HighOctaveRange  int
	LengthModifier   int
}

// Clamp enforces the octave-range invariant in addition to Base's
// (spec.md §3 "Octave-range: lowOctaveRange <= highOctaveRange").
func (s *ArpSequence) Clamp(maxStep int) {
	s.Base.Clamp(maxStep)
	if s.HighOctaveRange < s.LowOctaveRange {
		s.HighOctaveRange = s.LowOctaveRange
	}
}

// StochasticSequence is a Stochastic-track sequence: the regular step
// array (gate/length/retrigger/condition, evaluated like Note) plus the
// 12-entry pitch table the Stochastic engine draws from, the rest
// probabilities, octave bounds, length modifier, and the three flags
// that drive the locked-loop replay feature (spec.md §4.4).
type StochasticSequence struct {
	Base
	Steps      [MaxSteps]StochasticStep
	PitchTable [12]PitchEntry

	RestProbability1 int
	RestProbability2 int
	RestProbability4 int
	RestProbability8 int
	LowOctaveRange   int
	HighOctaveRange  int
	LengthModifier   int
	Reseed           bool
	UseLoop          bool
	ClearLoop        bool

	// SequenceFirstStep/SequenceLastStep bound the pitch-table draw
	// window independently of Base's step-array window (spec.md §3:
	// "For Stochastic: sequenceFirstStep <= sequenceLastStep").
	SequenceFirstStep int
	SequenceLastStep  int
}

// Clamp enforces the octave-range and sequence-window invariants in
// addition to Base's.
func (s *StochasticSequence) Clamp(maxStep int) {
	s.Base.Clamp(maxStep)
	if s.HighOctaveRange < s.LowOctaveRange {
		s.HighOctaveRange = s.LowOctaveRange
	}
	s.SequenceFirstStep = xmath.Clamp(s.SequenceFirstStep, 0, len(s.PitchTable)-1)
	s.SequenceLastStep = xmath.Clamp(s.SequenceLastStep, 0, len(s.PitchTable)-1)
	if s.SequenceLastStep < s.SequenceFirstStep {
		s.SequenceLastStep = s.SequenceFirstStep
	}
}
