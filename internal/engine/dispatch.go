package engine

import (
	"github.com/najonda/stepseq-go/internal/project"
	"github.com/najonda/stepseq-go/internal/tick"
	"github.com/najonda/stepseq-go/internal/track"
)

// Engine is the common surface every per-track engine variant exposes to
// the Dispatcher (spec.md §9: "model tick handling as a single
// on_tick(tick: u32) method that returns a bitmask of updates performed").
type Engine interface {
	OnTick(tick uint32) UpdateMask
	GateOutput() bool
	CVOutput() float64
}

// LinkFollower is implemented by engines that can ride a parent track's
// timing instead of computing their own divisor boundaries (spec.md
// §4.7 "Track-Link Dispatch").
type LinkFollower interface {
	Engine
	// OnLinkedTick triggers only when parentBoundary reports that the
	// parent engine just crossed its own divisor boundary on this tick,
	// rather than computing an independent boundary from Sequence.Divisor.
	OnLinkedTick(tick uint32, parentBoundary bool) UpdateMask
}

// Output is the MIDI sink the Dispatcher mirrors gate/CV changes to
// (spec.md §6 "MIDI output"). Kept as a small local interface (rather
// than importing package midiio) so engine has no dependency on the
// concrete MIDI transport.
type Output interface {
	SendGate(trackIndex int, on bool)
	SendCV(trackIndex int, volts float64)
	SendSlide(trackIndex int, on bool)
}

// MIDIIndexer exposes a slide flag the Dispatcher should mirror
// alongside CV, if the engine tracks one.
type MIDIIndexer interface {
	Slide() bool
}

// ClockStopper is implemented by every engine variant; the Dispatcher
// invokes it uniformly when Project.StepsToStop is reached (spec.md
// §4.3 step 2: "If stepsToStop is set and reached, signal clock-stop").
type ClockStopper interface {
	ClockStop(resetCV bool)
}

// RoutedParamSetter receives this tick's effective (possibly routed)
// octave/transpose/swing values, resolved once by the Dispatcher so the
// shared trigger algorithm never has to consult the routing table
// itself (spec.md §4.8).
type RoutedParamSetter interface {
	SetRoutedParams(octave, transpose, swingPercent int)
}

// ticksPerSequenceStep converts a CONFIG_SEQUENCE_PPQN-resolution step
// into ticks (tick.DivisorTicks(1)): the unit StepsToStop and the
// sync-measure boundary are counted in.
const ticksPerSequenceStep = tick.ConfigPPQN / tick.ConfigSequencePPQN

// Dispatcher fans a single tick out to every track engine in index
// order, applies play-state mute/fill, handles track-link timing, and
// forwards the result to an Output (spec.md §4.7, §4.8, §6).
type Dispatcher struct {
	Project *project.Project
	Output  Output

	engines    [tick.ConfigTrackCount]Engine
	linkParent [tick.ConfigTrackCount]int // track.NoLink if unlinked

	stepsElapsed int
	stopped      bool

	logger logFn
}

// DispatchOption configures a Dispatcher.
type DispatchOption func(*Dispatcher)

// WithOutput installs the MIDI sink.
func WithOutput(o Output) DispatchOption { return func(d *Dispatcher) { d.Output = o } }

// WithDispatchLogger installs a logger for recoverable failures
// (spec.md §7 "Invalid link": falls back to independent timing, logged).
func WithDispatchLogger(fn func(format string, args ...interface{})) DispatchOption {
	return func(d *Dispatcher) { d.logger = fn }
}

// NewDispatcher builds a Dispatcher over proj.
func NewDispatcher(proj *project.Project, opts ...DispatchOption) *Dispatcher {
	d := &Dispatcher{Project: proj}
	for i := range d.linkParent {
		d.linkParent[i] = track.NoLink
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetEngine installs the engine driving trackIndex.
func (d *Dispatcher) SetEngine(trackIndex int, e Engine) {
	d.engines[trackIndex] = e
}

// SetLink configures trackIndex to ride parentIndex's timing (spec.md
// §4.7). An invalid or self-referential parent index falls back to
// independent timing (spec.md §7 "Invalid link").
func (d *Dispatcher) SetLink(trackIndex, parentIndex int) {
	if parentIndex < 0 || parentIndex >= len(d.engines) || parentIndex == trackIndex || d.engines[parentIndex] == nil {
		d.linkParent[trackIndex] = track.NoLink
		if d.logger != nil {
			d.logger("dispatcher: invalid link target %d for track %d, falling back to independent timing", parentIndex, trackIndex)
		}
		return
	}
	d.linkParent[trackIndex] = parentIndex
}

// OnTick fans one tick out to every configured engine in track-index
// order (so a link-follower's parent has already advanced by the time
// the follower runs, per spec.md §4.7), applies mute/fill, and mirrors
// the result to Output. It also advances the routing table, commits any
// pending Synced play-state requests at a sync-measure boundary, and
// halts the whole dispatcher once Project.StepsToStop is reached
// (spec.md §4.3 step 2, §4.8).
func (d *Dispatcher) OnTick(t uint32) {
	if d.stopped {
		return
	}

	if d.Project != nil {
		if d.Project.Router != nil {
			d.Project.Router.Tick()
		}
		if t > 0 && t%ticksPerSequenceStep == 0 {
			d.stepsElapsed++
			if d.Project.StepsToStop > 0 && d.stepsElapsed >= d.Project.StepsToStop {
				d.clockStop()
				return
			}
		}
		if measure := d.syncMeasureTicks(); measure > 0 && t%measure == 0 {
			d.Project.CommitSynced()
		}
	}

	var boundaryHit [tick.ConfigTrackCount]bool

	for i, e := range d.engines {
		if e == nil {
			continue
		}
		if rp, ok := e.(RoutedParamSetter); ok {
			octave, transpose, swing := d.resolveRouted(i)
			rp.SetRoutedParams(octave, transpose, swing)
		}
		var mask UpdateMask
		if parent := d.linkParent[i]; parent != track.NoLink {
			if lf, ok := e.(LinkFollower); ok {
				mask = lf.OnLinkedTick(t, boundaryHit[parent])
			} else {
				mask = e.OnTick(t)
			}
		} else {
			mask = e.OnTick(t)
		}
		boundaryHit[i] = mask&GateUpdate != 0
		if mask != NoUpdate {
			d.publish(i, e)
		}
	}
}

// syncMeasureTicks converts Project.SyncMeasure (measures) into ticks,
// using TimeSigNumerator steps per measure (spec.md §4.8: "synced
// requests apply at the next sync-measure boundary"). Zero means no
// sync boundary is configured.
func (d *Dispatcher) syncMeasureTicks() uint32 {
	if d.Project.SyncMeasure <= 0 {
		return 0
	}
	numerator := d.Project.TimeSigNumerator
	if numerator <= 0 {
		numerator = 4
	}
	return ticksPerSequenceStep * uint32(numerator) * uint32(d.Project.SyncMeasure)
}

// resolveRouted resolves trackIndex's effective octave/transpose/swing
// for this tick: the track/project base value, shadowed by an active
// Router binding if one targets it (spec.md §4.8).
func (d *Dispatcher) resolveRouted(trackIndex int) (octave, transpose, swingPercent int) {
	trk := &d.Project.Tracks[trackIndex]
	octave, transpose, swingPercent = trk.Octave, trk.Transpose, d.Project.Swing
	if d.Project.Router == nil {
		return
	}
	octave, _ = d.Project.Router.ReadRouted(trackIndex, project.TargetOctave, octave)
	transpose, _ = d.Project.Router.ReadRouted(trackIndex, project.TargetTranspose, transpose)
	swingPercent, _ = d.Project.Router.ReadRouted(trackIndex, project.TargetSwing, swingPercent)
	return
}

// clockStop invokes ClockStop on every engine that implements it and
// latches the dispatcher off until Resume (spec.md §5 "clockStop()
// immediately stops advancement").
func (d *Dispatcher) clockStop() {
	resetCV := d.Project != nil && d.Project.ResetCVOnStop
	for _, e := range d.engines {
		if e == nil {
			continue
		}
		if cs, ok := e.(ClockStopper); ok {
			cs.ClockStop(resetCV)
		}
	}
	d.stopped = true
}

// Resume clears the StepsToStop latch so subsequent OnTick calls
// dispatch again (spec.md §5: "in-flight queue entries are drained on
// resume").
func (d *Dispatcher) Resume() {
	d.stopped = false
	d.stepsElapsed = 0
}

func (d *Dispatcher) publish(trackIndex int, e Engine) {
	if d.Output == nil || d.Project == nil {
		return
	}
	ps := d.Project.PlayStates[trackIndex]
	fill := ps.FillActive
	gate := (!ps.Mute || fill) && e.GateOutput()
	d.Output.SendGate(trackIndex, gate)
	if !ps.Mute || d.cvUpdateAlways(trackIndex) {
		d.Output.SendCV(trackIndex, e.CVOutput())
		if mi, ok := e.(MIDIIndexer); ok {
			d.Output.SendSlide(trackIndex, mi.Slide())
		}
	}
}

func (d *Dispatcher) cvUpdateAlways(trackIndex int) bool {
	if d.Project == nil {
		return false
	}
	return d.Project.Tracks[trackIndex].CVUpdateMode == track.CVUpdateAlways
}
