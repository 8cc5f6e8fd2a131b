// Package step implements the bit-packed per-step and per-sequence data
// model shared by the four track variants (Note, Stochastic, Logic, Arp).
// Each step is two 64-bit words addressed through explicit shift+mask
// getters/setters rather than native bitfields (spec.md §9 "Bit-packed
// step unions": "a language-neutral strategy is explicit getter/setter
// functions with shift+mask, keeping the raw word compact for storage
// and serialization parity").
package step

import "github.com/najonda/stepseq-go/internal/xmath"

// Field ranges shared by every variant (spec.md §3 "Step"). Probability
// and length fields are evaluated against these ranges; clamp-on-write is
// the only failure mode (spec.md §7 "Range-clamp (silent)").
const (
	ProbRange      = 127 // inclusive max for *Probability fields
	LengthRange    = 127 // inclusive max for the length field
	GateOffsetDiv  = 16  // denominator for gateOffset/(Max+1), spec.md §8 scenario 2
	GateOffsetMin  = -16
	GateOffsetMax  = 15
	NoteMin        = -64
	NoteMax        = 63
	VariationMin   = -8
	VariationMax   = 7
	RetriggerMax   = 7
	StageRepeatMax = 7
)

// StageRepeatMode selects which cycles of a repeated step actually gate
// (spec.md §4.3 step 6).
type StageRepeatMode int

const (
	RepeatEach StageRepeatMode = iota
	RepeatFirst
	RepeatMiddle
	RepeatLast
	RepeatOdd
	RepeatEven
	RepeatTriplets
	RepeatRandom
)

// ConditionKind is the step-trigger condition family (spec.md §4.3 step 5).
type ConditionKind int

const (
	CondOff ConditionKind = iota
	CondFill
	CondNotFill
	CondPre
	CondNotPre
	CondFirst
	CondNotFirst
	CondLoop
)

// Condition is CondLoop's parameters (base, offset, invert) alongside the
// other condition kinds, packed together in a step's second word.
type Condition struct {
	Kind   ConditionKind
	Base   int // Loop base, 1..15
	Offset int // Loop offset, 0..15
	Invert bool
}

// GateLogicMode combines two Logic-engine input gates (spec.md §4.5).
type GateLogicMode int

const (
	GateLogicOne GateLogicMode = iota
	GateLogicTwo
	GateLogicAnd
	GateLogicOr
	GateLogicXor
	GateLogicNand
	GateLogicRandomInput
	GateLogicRandomLogic
)

// NoteLogicMode combines two Logic-engine input notes (spec.md §4.5).
type NoteLogicMode int

const (
	NoteLogicOne NoteLogicMode = iota
	NoteLogicTwo
	NoteLogicMin
	NoteLogicMax
	NoteLogicOp1
	NoteLogicOp2
	NoteLogicRandomInput
	NoteLogicRandomLogic
)

// bit-field layout within word 0 (shift, width), common to every variant.
const (
	shGate                     = 0
	wGate                      = 1
	shGateProbability          = shGate + wGate
	wGateProbability           = 7
	shGateOffset               = shGateProbability + wGateProbability
	wGateOffset                = 5
	shRetrigger                = shGateOffset + wGateOffset
	wRetrigger                 = 3
	shRetriggerProbability     = shRetrigger + wRetrigger
	wRetriggerProbability      = 7
	shLength                   = shRetriggerProbability + wRetriggerProbability
	wLength                    = 7
	shLengthVariationRange     = shLength + wLength
	wLengthVariationRange      = 4
	shLengthVariationProb      = shLengthVariationRange + wLengthVariationRange
	wLengthVariationProb       = 7
	shNote                     = shLengthVariationProb + wLengthVariationProb
	wNote                      = 7
	shNoteVariationRange       = shNote + wNote
	wNoteVariationRange        = 4
	shNoteVariationProbability = shNoteVariationRange + wNoteVariationRange
	wNoteVariationProbability  = 7
	shSlide                    = shNoteVariationProbability + wNoteVariationProbability
	wSlide                     = 1
	shBypassScale              = shSlide + wSlide
	wBypassScale               = 1
	shStageRepeats             = shBypassScale + wBypassScale
	wStageRepeats              = 3
	// total: 64 bits exactly.
)

// bit-field layout within word 1: condition, stage-repeat mode, and
// Logic's two extra mode fields (all variants share the first 15 bits;
// Logic alone uses the next 6).
const (
	shCondKind   = 0
	wCondKind    = 3
	shCondBase   = shCondKind + wCondKind
	wCondBase    = 4
	shCondOffset = shCondBase + wCondBase
	wCondOffset  = 4
	shCondInvert = shCondOffset + wCondOffset
	wCondInvert  = 1
	shRepeatMode = shCondInvert + wCondInvert
	wRepeatMode  = 3
	shGateLogic  = shRepeatMode + wRepeatMode
	wGateLogic   = 3
	shNoteLogic  = shGateLogic + wGateLogic
	wNoteLogic   = 3
)

func mask(width uint) uint64 { return (uint64(1) << width) - 1 }

func getUint(w uint64, shift, width uint) uint64 {
	return (w >> shift) & mask(width)
}

func setUint(w uint64, shift, width uint, v uint64) uint64 {
	m := mask(width) << shift
	return (w &^ m) | ((v & mask(width)) << shift)
}

// getInt sign-extends a width-bit two's-complement field.
func getInt(w uint64, shift, width uint) int {
	v := getUint(w, shift, width)
	signBit := uint64(1) << (width - 1)
	if v&signBit != 0 {
		v -= uint64(1) << width
	}
	return int(int64(v))
}

func setInt(w uint64, shift, width uint, v int) uint64 {
	return setUint(w, shift, width, uint64(v)&mask(width))
}

// Step is the base layout shared by Note, Stochastic, and Arp steps: the
// gate/probability/retrigger/length/note fields plus the trigger
// condition and stage-repeat mode. Logic wraps Step and adds its own
// two mode fields (see LogicStep).
type Step struct {
	w0, w1 uint64
}

// Pack returns the two raw words, for storage/serialization.
func (s Step) Pack() (uint64, uint64) { return s.w0, s.w1 }

// Unpack restores a Step from its two raw words.
func Unpack(w0, w1 uint64) Step { return Step{w0: w0, w1: w1} }

func (s Step) Gate() bool { return getUint(s.w0, shGate, wGate) != 0 }
func (s *Step) SetGate(v bool) {
	u := uint64(0)
	if v {
		u = 1
	}
	s.w0 = setUint(s.w0, shGate, wGate, u)
}

func (s Step) GateProbability() int { return int(getUint(s.w0, shGateProbability, wGateProbability)) }
func (s *Step) SetGateProbability(v int) {
	v = xmath.Clamp(v, 0, ProbRange)
	s.w0 = setUint(s.w0, shGateProbability, wGateProbability, uint64(v))
}

func (s Step) GateOffset() int { return getInt(s.w0, shGateOffset, wGateOffset) }
func (s *Step) SetGateOffset(v int) {
	v = xmath.Clamp(v, GateOffsetMin, GateOffsetMax)
	s.w0 = setInt(s.w0, shGateOffset, wGateOffset, v)
}

func (s Step) Retrigger() int { return int(getUint(s.w0, shRetrigger, wRetrigger)) }
func (s *Step) SetRetrigger(v int) {
	v = xmath.Clamp(v, 0, RetriggerMax)
	s.w0 = setUint(s.w0, shRetrigger, wRetrigger, uint64(v))
}

func (s Step) RetriggerProbability() int {
	return int(getUint(s.w0, shRetriggerProbability, wRetriggerProbability))
}
func (s *Step) SetRetriggerProbability(v int) {
	v = xmath.Clamp(v, 0, ProbRange)
	s.w0 = setUint(s.w0, shRetriggerProbability, wRetriggerProbability, uint64(v))
}

func (s Step) Length() int { return int(getUint(s.w0, shLength, wLength)) }
func (s *Step) SetLength(v int) {
	v = xmath.Clamp(v, 0, LengthRange)
	s.w0 = setUint(s.w0, shLength, wLength, uint64(v))
}

func (s Step) LengthVariationRange() int { return getInt(s.w0, shLengthVariationRange, wLengthVariationRange) }
func (s *Step) SetLengthVariationRange(v int) {
	v = xmath.Clamp(v, VariationMin, VariationMax)
	s.w0 = setInt(s.w0, shLengthVariationRange, wLengthVariationRange, v)
}

func (s Step) LengthVariationProbability() int {
	return int(getUint(s.w0, shLengthVariationProb, wLengthVariationProb))
}
func (s *Step) SetLengthVariationProbability(v int) {
	v = xmath.Clamp(v, 0, ProbRange)
	s.w0 = setUint(s.w0, shLengthVariationProb, wLengthVariationProb, uint64(v))
}

func (s Step) Note() int { return getInt(s.w0, shNote, wNote) }
func (s *Step) SetNote(v int) {
	v = xmath.Clamp(v, NoteMin, NoteMax)
	s.w0 = setInt(s.w0, shNote, wNote, v)
}

func (s Step) NoteVariationRange() int { return getInt(s.w0, shNoteVariationRange, wNoteVariationRange) }
func (s *Step) SetNoteVariationRange(v int) {
	v = xmath.Clamp(v, VariationMin, VariationMax)
	s.w0 = setInt(s.w0, shNoteVariationRange, wNoteVariationRange, v)
}

func (s Step) NoteVariationProbability() int {
	return int(getUint(s.w0, shNoteVariationProbability, wNoteVariationProbability))
}
func (s *Step) SetNoteVariationProbability(v int) {
	v = xmath.Clamp(v, 0, ProbRange)
	s.w0 = setUint(s.w0, shNoteVariationProbability, wNoteVariationProbability, uint64(v))
}

func (s Step) Slide() bool { return getUint(s.w0, shSlide, wSlide) != 0 }
func (s *Step) SetSlide(v bool) {
	u := uint64(0)
	if v {
		u = 1
	}
	s.w0 = setUint(s.w0, shSlide, wSlide, u)
}

func (s Step) BypassScale() bool { return getUint(s.w0, shBypassScale, wBypassScale) != 0 }
func (s *Step) SetBypassScale(v bool) {
	u := uint64(0)
	if v {
		u = 1
	}
	s.w0 = setUint(s.w0, shBypassScale, wBypassScale, u)
}

func (s Step) StageRepeats() int { return int(getUint(s.w0, shStageRepeats, wStageRepeats)) }
func (s *Step) SetStageRepeats(v int) {
	v = xmath.Clamp(v, 0, StageRepeatMax)
	s.w0 = setUint(s.w0, shStageRepeats, wStageRepeats, uint64(v))
}

func (s Step) Condition() Condition {
	return Condition{
		Kind:   ConditionKind(getUint(s.w1, shCondKind, wCondKind)),
		Base:   int(getUint(s.w1, shCondBase, wCondBase)),
		Offset: int(getUint(s.w1, shCondOffset, wCondOffset)),
		Invert: getUint(s.w1, shCondInvert, wCondInvert) != 0,
	}
}

func (s *Step) SetCondition(c Condition) {
	inv := uint64(0)
	if c.Invert {
		inv = 1
	}
	s.w1 = setUint(s.w1, shCondKind, wCondKind, uint64(c.Kind))
	s.w1 = setUint(s.w1, shCondBase, wCondBase, uint64(xmath.Clamp(c.Base, 0, 15)))
	s.w1 = setUint(s.w1, shCondOffset, wCondOffset, uint64(xmath.Clamp(c.Offset, 0, 15)))
	s.w1 = setUint(s.w1, shCondInvert, wCondInvert, inv)
}

func (s Step) StageRepeatMode() StageRepeatMode {
	return StageRepeatMode(getUint(s.w1, shRepeatMode, wRepeatMode))
}
func (s *Step) SetStageRepeatMode(m StageRepeatMode) {
	s.w1 = setUint(s.w1, shRepeatMode, wRepeatMode, uint64(m))
}

// LogicStep extends Step with the two mode fields that select how a
// Logic track's effective gate and note are derived from its two input
// tracks (spec.md §4.5).
type LogicStep struct {
	Step
}

func (s LogicStep) GateLogicMode() GateLogicMode {
	return GateLogicMode(getUint(s.w1, shGateLogic, wGateLogic))
}
func (s *LogicStep) SetGateLogicMode(m GateLogicMode) {
	s.w1 = setUint(s.w1, shGateLogic, wGateLogic, uint64(m))
}

func (s LogicStep) NoteLogicMode() NoteLogicMode {
	return NoteLogicMode(getUint(s.w1, shNoteLogic, wNoteLogic))
}
func (s *LogicStep) SetNoteLogicMode(m NoteLogicMode) {
	s.w1 = setUint(s.w1, shNoteLogic, wNoteLogic, uint64(m))
}

// NoteStep and ArpStep are plain Steps: the Note and Arp engines evaluate
// them identically (spec.md §4.6: "the selected note's owning sequence
// step is evaluated as in the Note engine").
type NoteStep = Step
type ArpStep = Step

// StochasticStep is the regular per-step gate/length/retrigger layout a
// Stochastic sequence uses alongside its 12-entry PitchTable (spec.md
// §4.4: stage-repeat/condition/length/retrigger/slide follow the Note
// engine; pitch selection is driven separately by PitchEntry weights).
type StochasticStep = Step

// PitchEntry is one row of a Stochastic sequence's 12-entry pitch table:
// a candidate pitch with its own gate flag, selection weight, octave,
// and length (spec.md §4.4).
type PitchEntry struct {
	Gate                     bool
	NoteVariationProbability int
	Octave                   int
	Length                   int
}

// KnownVersions enumerates the persisted step bit-field layouts the core must
// still be able to read (spec.md §6 "Persistence": "Version gates known
// to the core"). The core only ever reads the current layout; older
// versions are fixed up by the (out-of-scope) deserializer before
// reaching this package.
var KnownVersions = []int{5, 7, 10, 12, 23, 27, 33, 36, 37, 38, 39}

// CurrentVersion is the bit-field layout this package implements.
const CurrentVersion = 39
