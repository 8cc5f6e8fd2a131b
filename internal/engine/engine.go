// Package engine implements the four per-track step engines (Note,
// Stochastic, Logic, Arp), the shared trigger-evaluation algorithm they
// all build on, and the track-link/tick-dispatch fan-out that drives
// them (spec.md §4 "Component Design").
package engine

import (
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/najonda/stepseq-go/internal/eventqueue"
	"github.com/najonda/stepseq-go/internal/groove"
	"github.com/najonda/stepseq-go/internal/scale"
	"github.com/najonda/stepseq-go/internal/step"
	"github.com/najonda/stepseq-go/internal/track"
)

// UpdateMask reports what OnTick did, the bitmask spec.md §9 calls for
// ("a single on_tick(tick: u32) method that returns a bitmask of updates
// performed: GateUpdate, CvUpdate, NoUpdate").
type UpdateMask int

const (
	NoUpdate   UpdateMask = 0
	GateUpdate UpdateMask = 1 << iota
	CVUpdate
)

// Options configures an engine (teacher's Options/NewWithOptions
// pattern, `sequencer.go`'s `Options`/`NewWithOptions`).
type Options struct {
	Rand   *rand.Rand
	Logger *log.Logger
	// Seed is consulted by StochasticEngine.SetReseed; it defaults to a
	// wall-clock-derived seed (spec.md §9 Open Question (a)) but tests
	// inject a fixed value for reproducibility.
	Seed func() int64
}

// Option mutates Options during construction.
type Option func(*Options)

// WithRand injects a deterministic PRNG (tests; spec.md §9 "Never rely
// on library-wide rand() because reproducibility matters").
func WithRand(r *rand.Rand) Option { return func(o *Options) { o.Rand = r } }

// WithLogger installs a logger for recoverable-failure log lines
// (queue overflow — spec.md §7); the Dispatcher's invalid-link message
// goes through WithDispatchLogger instead.
func WithLogger(l *log.Logger) Option { return func(o *Options) { o.Logger = l } }

// WithSeed overrides the reseed-time-source hook.
func WithSeed(fn func() int64) Option { return func(o *Options) { o.Seed = fn } }

func resolveOptions(opts []Option) Options {
	o := Options{Seed: func() int64 { return time.Now().UnixNano() }}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(o.Seed()))
	}
	return o
}

func (o Options) logf(format string, args ...interface{}) {
	if o.Logger != nil {
		o.Logger.Printf(format, args...)
	}
}

// evalCondition implements spec.md §4.3 step 5's condition table.
func evalCondition(c step.Condition, iteration uint32, fillActive bool, prevResult bool) bool {
	switch c.Kind {
	case step.CondOff:
		return true
	case step.CondFill:
		return fillActive
	case step.CondNotFill:
		return !fillActive
	case step.CondPre:
		return prevResult
	case step.CondNotPre:
		return !prevResult
	case step.CondFirst:
		return iteration == 0
	case step.CondNotFirst:
		return iteration != 0
	case step.CondLoop:
		base := c.Base
		if base <= 0 {
			base = 1
		}
		result := int(iteration)%base == c.Offset%base
		if c.Invert {
			return !result
		}
		return result
	default:
		return true
	}
}

// evalStageRepeat implements spec.md §4.3 step 6's repeat-mode predicate.
// current is 1-based (the cycle currently being evaluated); total is
// step.StageRepeats()+1.
func evalStageRepeat(mode step.StageRepeatMode, current, total int, rng *rand.Rand) bool {
	if total <= 1 {
		return true
	}
	switch mode {
	case step.RepeatEach:
		return true
	case step.RepeatFirst:
		return current == 1
	case step.RepeatLast:
		return current == total
	case step.RepeatMiddle:
		return current > 1 && current < total
	case step.RepeatOdd:
		return current%2 == 1
	case step.RepeatEven:
		return current%2 == 0
	case step.RepeatTriplets:
		return (current-1)%3 == 0
	case step.RepeatRandom:
		if rng == nil {
			return true
		}
		return rng.Intn(2) == 0
	default:
		return true
	}
}

// triggerContext bundles everything triggerStep needs beyond the step
// itself: the shared track bias/octave/transpose, the scale to voice
// through, and per-call overrides (Logic/Arp replace gate or note
// before calling in).
type triggerContext struct {
	Tick         uint32
	Divisor      uint32
	Track        *track.Track
	Scale        scale.Scale
	RootNote     int
	Rand         *rand.Rand
	Iteration    uint32
	FillActive   bool
	FillGates    bool // FillMode==Gates override per spec.md §4.3 step 4
	PrevResult   bool
	StageRepeat  int // current 1-based repeat cycle
	SwingPercent int
	StepIndex    int
	// Octave/Transpose are the effective (possibly routed) track values
	// the caller resolved this tick (spec.md §4.8 "while a target is
	// routed, reads return the routed value"); triggerStep never reads
	// ctx.Track.Octave/Transpose directly so routing only has to be
	// resolved once, by the caller.
	Octave    int
	Transpose int
	// LengthModifier perturbs stepLength by a Gaussian-rounded offset
	// (spec.md §4.4: "mean = modifier and sigma = 2"); zero is a no-op,
	// so Note/Logic (which have no such field) simply never set it.
	LengthModifier int
	// GateOverride/NoteOverride let Logic substitute its combined values
	// (spec.md §4.5); when Active is false the step's own gate/note is used.
	GateOverride      bool
	GateOverrideActive bool
	NoteOverride       int
	NoteOverrideActive bool
	// OctaveExtra adds to the voiced note before scale lookup (Arp's
	// traversal octave offset, spec.md §4.6 step 3).
	OctaveExtra int
}

// triggerResult is what triggerStep produced: the queue entries to push,
// the condition result (for the next step's Pre/NotPre), and whether the
// step ultimately gated.
type triggerResult struct {
	GateEvents    []eventqueue.GateEvent
	CVEvents      []eventqueue.CVEvent
	ConditionHit  bool
	Gated         bool
}

// triggerStep implements spec.md §4.3's step-evaluation algorithm
// (`triggerStep`), shared verbatim by Note, Stochastic, Arp, and (with
// gate/note already substituted) Logic.
func triggerStep(s step.Step, ctx triggerContext) triggerResult {
	stepTick := int64(ctx.Tick) + int64(ctx.Divisor)*int64(s.GateOffset())/int64(step.GateOffsetDiv)
	if stepTick < 0 {
		stepTick = 0
	}

	gate := s.Gate()
	if ctx.GateOverrideActive {
		gate = ctx.GateOverride
	}
	bias := 0
	if ctx.Track != nil {
		bias = ctx.Track.Biases.GateProbability
	}
	prob := clampProb(s.GateProbability() + bias)
	roll := 0
	if ctx.Rand != nil {
		roll = ctx.Rand.Intn(step.ProbRange + 1)
	}
	gate = gate && roll <= prob
	if ctx.FillGates {
		gate = true
	}

	condHit := evalCondition(s.Condition(), ctx.Iteration, ctx.FillActive, ctx.PrevResult)
	gate = gate && condHit

	gate = gate && evalStageRepeat(s.StageRepeatMode(), ctx.StageRepeat, s.StageRepeats()+1, ctx.Rand)

	res := triggerResult{ConditionHit: condHit, Gated: gate}

	if gate {
		lengthBias := 0
		if ctx.Track != nil {
			lengthBias = ctx.Track.Biases.Length
		}
		length := clampRange(s.Length() + lengthBias)
		if s.LengthVariationProbability() > 0 && ctx.Rand != nil {
			if ctx.Rand.Intn(step.ProbRange+1) <= s.LengthVariationProbability() {
				length += randSpread(ctx.Rand, s.LengthVariationRange())
				length = clampRange(length)
			}
		}
		stepLength := int64(ctx.Divisor) * int64(length) / int64(step.LengthRange)
		if ctx.LengthModifier != 0 {
			stepLength += int64(gaussianOffset(ctx.LengthModifier, 2, ctx.Rand))
			if stepLength < 0 {
				stepLength = 0
			}
		}

		retrig := 1
		if s.RetriggerProbability() > 0 && ctx.Rand != nil && ctx.Rand.Intn(step.ProbRange+1) <= s.RetriggerProbability() {
			retrig = s.Retrigger() + 1
		}

		if retrig > 1 {
			for k := 0; k < retrig; k++ {
				onTick := stepTick + int64(k)*int64(ctx.Divisor)/int64(retrig)
				offTick := onTick + int64(ctx.Divisor)/int64(2*retrig)
				on := groove.Apply(uint32(onTick), ctx.Divisor, ctx.StepIndex, ctx.SwingPercent)
				off := groove.Apply(uint32(offTick), ctx.Divisor, ctx.StepIndex, ctx.SwingPercent)
				if off <= on {
					off = on + 1
				}
				res.GateEvents = append(res.GateEvents, eventqueue.GateEvent{Tick: on, Value: true})
				res.GateEvents = append(res.GateEvents, eventqueue.GateEvent{Tick: off, Value: false})
			}
		} else {
			on := groove.Apply(uint32(stepTick), ctx.Divisor, ctx.StepIndex, ctx.SwingPercent)
			off := groove.Apply(uint32(stepTick+stepLength), ctx.Divisor, ctx.StepIndex, ctx.SwingPercent)
			if off <= on {
				off = on + 1
			}
			res.GateEvents = append(res.GateEvents, eventqueue.GateEvent{Tick: on, Value: true})
			res.GateEvents = append(res.GateEvents, eventqueue.GateEvent{Tick: off, Value: false})
		}
	}

	cvUpdateAlways := ctx.Track != nil && ctx.Track.CVUpdateMode == track.CVUpdateAlways
	if gate || cvUpdateAlways {
		note := s.Note()
		if ctx.NoteOverrideActive {
			note = ctx.NoteOverride
		}
		note += ctx.Octave*ctx.Scale.NotesPerOctave + ctx.Transpose + ctx.OctaveExtra

		if s.NoteVariationProbability() > 0 && ctx.Rand != nil {
			if ctx.Rand.Intn(step.ProbRange+1) <= s.NoteVariationProbability() {
				note += randSpread(ctx.Rand, s.NoteVariationRange())
			}
		}
		note = clampInt(note, step.NoteMin, step.NoteMax)

		scl := ctx.Scale
		if s.BypassScale() {
			scl = scale.ByID(0)
		}
		volts := scl.NoteToVolts(note)
		if scl.IsChromatic {
			volts += float64(ctx.RootNote) / 12.0
		}
		on := groove.Apply(uint32(stepTick), ctx.Divisor, ctx.StepIndex, ctx.SwingPercent)
		res.CVEvents = append(res.CVEvents, eventqueue.CVEvent{Tick: on, Volts: volts, Slide: s.Slide()})
	}

	return res
}

func clampProb(v int) int { return clampInt(v, 0, step.ProbRange) }
func clampRange(v int) int { return clampInt(v, 0, step.LengthRange) }
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// gaussianOffset draws round(mean + sigma*N(0,1)) (spec.md §4.4: "an
// additive length modifier ... perturbs stepLength by a
// Gaussian-rounded offset with mean = modifier and sigma = 2").
func gaussianOffset(mean int, sigma float64, r *rand.Rand) int {
	if r == nil {
		return mean
	}
	return int(math.Round(float64(mean) + sigma*r.NormFloat64()))
}

// randSpread draws a uniform offset in [-|rng|, |rng|] (spec.md §4.3
// step 8: "Note variation adds a uniform offset in [-|range|, |range|]").
func randSpread(r *rand.Rand, rng int) int {
	if rng == 0 {
		return 0
	}
	if rng < 0 {
		rng = -rng
	}
	return r.Intn(2*rng+1) - rng
}
