// Package project implements the Project model: the eight-track
// container, global playback parameters, the routing table, and the
// play-state/mute/solo arbitration described in spec.md §3 "Project"
// and §4.8 "Play State & Routing".
package project

import (
	"sync"

	"github.com/najonda/stepseq-go/internal/tick"
	"github.com/najonda/stepseq-go/internal/track"
)

// EventKind enumerates the Observable notifications spec.md §9 asks for
// ("Cyclic model/UI links (watch/notify)").
type EventKind int

const (
	EventProjectCleared EventKind = iota
	EventProjectRead
	EventTrackModeChanged
	EventSelectedTrackIndexChanged
	EventSelectedPatternIndexChanged
)

// Event is sent on Project.Watch() whenever the project's externally
// visible state changes in a way the UI should react to.
type Event struct {
	Kind       EventKind
	TrackIndex int
}

// RequestKind classifies a mute/pattern change request's commit timing
// (spec.md §4.8 "Play State & Routing").
type RequestKind int

const (
	RequestImmediate RequestKind = iota
	RequestLatched
	RequestSynced
)

// PlayState is the per-track mute/solo/pattern arbitration state.
type PlayState struct {
	Mute             bool
	RequestedMute    bool
	MuteRequestKind  RequestKind
	Pattern          int
	RequestedPattern int
	PatternRequestKind RequestKind
	Solo             bool
	FillAmount       int
	FillActive       bool
}

// RoutingTarget enumerates the parameters a routing source can shadow
// (spec.md §4.8: "Targets enumerate sequence and track parameters").
type RoutingTarget int

const (
	TargetScale RoutingTarget = iota
	TargetRootNote
	TargetDivisor
	TargetFirstStep
	TargetLastStep
	TargetTempo
	TargetSwing
	TargetSlideTime
	TargetOctave
	TargetTranspose
	TargetGateProbabilityBias
	TargetRetriggerProbabilityBias
	TargetLengthBias
	TargetNoteProbabilityBias
	TargetRestProbability1
	TargetRestProbability2
	TargetRestProbability4
	TargetRestProbability8
	TargetLowOctaveRange
	TargetHighOctaveRange
	TargetLengthModifier
)

// RoutingSource is read once per tick by Router (spec.md §6 "CV inputs /
// routing sources": "Read once per tick as scalar values").
type RoutingSource interface {
	// ReadInt and ReadFloat return the source's current scalar value in
	// whichever domain the bound target expects.
	ReadInt() int
	ReadFloat() float64
}

// Binding is one source->target routing entry.
type Binding struct {
	Source     RoutingSource
	Track      int
	Target     RoutingTarget
	Active     bool
	RoutedInt  int
	RoutedFloat float64
}

// Router holds the project's routing table and writes routed shadows
// once per tick (spec.md §4.8: "On each tick the router writes the
// target via the model's writeRouted(target, intValue, floatValue).
// While a target is routed, reads return the routed value").
type Router struct {
	mu       sync.RWMutex
	bindings []*Binding
}

// NewRouter returns an empty routing table.
func NewRouter() *Router { return &Router{} }

// Bind installs a new routing binding and returns it so the caller can
// later Unbind via the same pointer.
func (r *Router) Bind(b Binding) *Binding {
	bp := &b
	bp.Active = true
	r.mu.Lock()
	r.bindings = append(r.bindings, bp)
	r.mu.Unlock()
	return bp
}

// Unbind deactivates a binding; ReadRouted falls back to the base value.
func (r *Router) Unbind(b *Binding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.bindings {
		if e == b {
			e.Active = false
		}
	}
}

// Tick reads every active binding's source once and stores the routed
// shadow value (spec.md §4.8 "read once per tick").
func (r *Router) Tick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bindings {
		if !b.Active || b.Source == nil {
			continue
		}
		b.RoutedInt = b.Source.ReadInt()
		b.RoutedFloat = b.Source.ReadFloat()
	}
}

// ReadRouted returns (value, true) if base is currently shadowed by an
// active binding on track/target, else (base, false) — the
// `read(p) == routed_value(p) iff a source is active` invariant from
// spec.md §8.
func (r *Router) ReadRouted(trackIndex int, target RoutingTarget, base int) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.bindings {
		if b.Active && b.Track == trackIndex && b.Target == target {
			return b.RoutedInt, true
		}
	}
	return base, false
}

// Options configures a new Project (teacher's functional-options
// pattern, `player.go`'s `PlayerOption`).
type Options struct {
	Scale  int
	Root   int
	Tempo  float64
	Swing  int
}

// Option mutates Options during construction.
type Option func(*Options)

// WithScale sets the project-wide default scale id.
func WithScale(id int) Option { return func(o *Options) { o.Scale = id } }

// WithRoot sets the project-wide default root note.
func WithRoot(note int) Option { return func(o *Options) { o.Root = note } }

// WithTempo sets the initial tempo in BPM.
func WithTempo(bpm float64) Option { return func(o *Options) { o.Tempo = bpm } }

// WithSwing sets the initial swing percentage.
func WithSwing(percent int) Option { return func(o *Options) { o.Swing = percent } }

// Project is the eight-track container plus global playback parameters,
// routing, and play state (spec.md §3 "Project"). The WriteLock/
// ConfigLock split mirrors spec.md §5 ("A coarse WriteLock gates
// structural model mutation... a finer ConfigLock covers project-wide
// reconfiguration").
type Project struct {
	writeMu  sync.RWMutex // structural mutation: pattern change, track-mode change
	configMu sync.RWMutex // project-wide reconfiguration

	Scale int
	Root  int
	Tempo float64
	Swing int

	TimeSigNumerator   int
	TimeSigDenominator int
	SyncMeasure        int

	SelectedTrack   int
	SelectedPattern int

	StepsToStop   int
	RecordDelay   int
	ResetCVOnStop bool

	Tracks     [tick.ConfigTrackCount]track.Track
	PlayStates [tick.ConfigTrackCount]PlayState

	Router *Router

	CVOutputTrack   [tick.ConfigTrackCount]int
	GateOutputTrack [tick.ConfigTrackCount]int

	eventCh chan Event
}

// New builds a Project with sane defaults, applying opts.
func New(opts ...Option) *Project {
	o := Options{Scale: 0, Root: 0, Tempo: 120, Swing: 0}
	for _, opt := range opts {
		opt(&o)
	}
	p := &Project{
		Scale:              o.Scale,
		Root:               o.Root,
		Tempo:              o.Tempo,
		Swing:              o.Swing,
		TimeSigNumerator:   4,
		TimeSigDenominator: 4,
		Router:             NewRouter(),
		eventCh:            make(chan Event, 8),
	}
	for i := range p.CVOutputTrack {
		p.CVOutputTrack[i] = i
		p.GateOutputTrack[i] = i
	}
	return p
}

// Watch returns a channel of Project lifecycle events (spec.md §9
// "Observable", teacher's `Player.Watch()`).
func (p *Project) Watch() <-chan Event { return p.eventCh }

func (p *Project) sendEvent(ev Event) {
	select {
	case p.eventCh <- ev:
	default:
	}
}

// SetSelectedTrack updates the UI-facing selected track index under the
// write lock and emits EventSelectedTrackIndexChanged.
func (p *Project) SetSelectedTrack(index int) {
	p.writeMu.Lock()
	p.SelectedTrack = index
	p.writeMu.Unlock()
	p.sendEvent(Event{Kind: EventSelectedTrackIndexChanged, TrackIndex: index})
}

// SetSelectedPattern updates the selected pattern index under the write
// lock and emits EventSelectedPatternIndexChanged.
func (p *Project) SetSelectedPattern(index int) {
	p.writeMu.Lock()
	p.SelectedPattern = index
	p.writeMu.Unlock()
	p.sendEvent(Event{Kind: EventSelectedPatternIndexChanged})
}

// RequestMute sets trackIndex's mute request at the given commit kind
// (spec.md §4.8: "Requests are classified Immediate | Latched |
// Synced"). Immediate requests apply straightaway; Latched/Synced stage
// RequestedMute for CommitLatched/CommitSynced to apply later.
func (p *Project) RequestMute(trackIndex int, mute bool, kind RequestKind) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	ps := &p.PlayStates[trackIndex]
	ps.RequestedMute = mute
	ps.MuteRequestKind = kind
	if kind == RequestImmediate {
		ps.Mute = mute
	}
}

// RequestPattern sets trackIndex's pattern-change request at the given
// commit kind (spec.md §4.8).
func (p *Project) RequestPattern(trackIndex int, pattern int, kind RequestKind) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	ps := &p.PlayStates[trackIndex]
	ps.RequestedPattern = pattern
	ps.PatternRequestKind = kind
	if kind == RequestImmediate {
		ps.Pattern = pattern
	}
}

// CommitLatched applies trackIndex's pending Latched mute/pattern
// requests (spec.md §4.8: "latched requests apply on explicit commit"),
// e.g. in response to a front-panel commit button.
func (p *Project) CommitLatched(trackIndex int) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	ps := &p.PlayStates[trackIndex]
	if ps.MuteRequestKind == RequestLatched {
		ps.Mute = ps.RequestedMute
	}
	if ps.PatternRequestKind == RequestLatched {
		ps.Pattern = ps.RequestedPattern
	}
}

// CommitSynced applies every track's pending Synced mute/pattern
// requests (spec.md §4.8: "synced requests apply at the next
// sync-measure boundary"); the Dispatcher calls this when the tick
// counter crosses a sync-measure boundary.
func (p *Project) CommitSynced() {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	for i := range p.PlayStates {
		ps := &p.PlayStates[i]
		if ps.MuteRequestKind == RequestSynced {
			ps.Mute = ps.RequestedMute
		}
		if ps.PatternRequestKind == RequestSynced {
			ps.Pattern = ps.RequestedPattern
		}
	}
}

// SetTrackPlayMode changes a track's play mode under the config lock
// (a project-wide reconfiguration per spec.md §5) and emits
// EventTrackModeChanged.
func (p *Project) SetTrackPlayMode(trackIndex int, mode track.PlayMode) {
	p.configMu.Lock()
	p.Tracks[trackIndex].PlayMode = mode
	p.configMu.Unlock()
	p.sendEvent(Event{Kind: EventTrackModeChanged, TrackIndex: trackIndex})
}

// Clear resets the project to its default parameters (keeping its
// identity: the same locks and the same Watch channel) and emits
// EventProjectCleared.
func (p *Project) Clear() {
	fresh := New()
	p.writeMu.Lock()
	p.Scale = fresh.Scale
	p.Root = fresh.Root
	p.Tempo = fresh.Tempo
	p.Swing = fresh.Swing
	p.TimeSigNumerator = fresh.TimeSigNumerator
	p.TimeSigDenominator = fresh.TimeSigDenominator
	p.SyncMeasure = fresh.SyncMeasure
	p.SelectedTrack = fresh.SelectedTrack
	p.SelectedPattern = fresh.SelectedPattern
	p.StepsToStop = fresh.StepsToStop
	p.RecordDelay = fresh.RecordDelay
	p.ResetCVOnStop = fresh.ResetCVOnStop
	p.Tracks = fresh.Tracks
	p.PlayStates = fresh.PlayStates
	p.Router = fresh.Router
	p.CVOutputTrack = fresh.CVOutputTrack
	p.GateOutputTrack = fresh.GateOutputTrack
	p.writeMu.Unlock()
	p.sendEvent(Event{Kind: EventProjectCleared})
}

// WithReadLock runs fn while holding the write lock for reading
// (structural reads that must not race a concurrent pattern/mode
// change, spec.md §5 "a separate UI thread reads model state ... under
// a write lock").
func (p *Project) WithReadLock(fn func()) {
	p.writeMu.RLock()
	defer p.writeMu.RUnlock()
	fn()
}
