// Package track implements the per-track settings that sit above a
// sequence: play mode, fill behavior, CV-update policy, performance
// biases, and the variant-specific extras Logic and Arp tracks carry
// (spec.md §3 "Track").
package track

import "github.com/najonda/stepseq-go/internal/xmath"

// PlayMode selects how a track's sequence state advances: Aligned derives
// the current step directly from the absolute tick, Free advances one
// step at a time on its own divisor-relative clock (spec.md §4.3 step 4).
type PlayMode int

const (
	Aligned PlayMode = iota
	Free
)

// FillMode selects what a track does while its fill flag is active
// (spec.md §3 "Track").
type FillMode int

const (
	FillNone FillMode = iota
	FillGates
	FillNextPattern
	FillCondition
)

// CVUpdateMode selects when a track republishes its CV output.
type CVUpdateMode int

const (
	CVUpdateOnGate CVUpdateMode = iota
	CVUpdateAlways
)

// PatternFollowMode is the supplemented pattern-follow behavior
// (SPEC_FULL.md §12, grounded on BaseTrackPatternFollow.h): a track can
// follow the project-wide selected pattern, or stay pinned to its own
// requested pattern independent of the project selection.
type PatternFollowMode int

const (
	FollowSong PatternFollowMode = iota
	FollowTrack
	FollowLink
)

// ArpMode is the Arp engine's held-note traversal order (spec.md §4.6).
type ArpMode int

const (
	ArpPlayOrder ArpMode = iota
	ArpUp
	ArpDown
	ArpUpDown
	ArpDownUp
	ArpUpAndDown
	ArpDownAndUp
	ArpConverge
	ArpDiverge
	ArpRandom
)

// Biases are the performance-time probability/length adjustments applied
// on top of a step's own stored values (spec.md §3 "parameter biases").
type Biases struct {
	GateProbability      int
	RetriggerProbability int
	Length               int
	NoteProbability      int
}

// Clamp keeps every bias within the shared probability/length range.
func (b *Biases) Clamp(probRange, lengthRange int) {
	b.GateProbability = xmath.Clamp(b.GateProbability, -probRange, probRange)
	b.RetriggerProbability = xmath.Clamp(b.RetriggerProbability, -probRange, probRange)
	b.Length = xmath.Clamp(b.Length, -lengthRange, lengthRange)
	b.NoteProbability = xmath.Clamp(b.NoteProbability, -probRange, probRange)
}

// ArpConfig is an Arp track's arpeggiator settings (spec.md §3 "Arp
// tracks additionally store an arpeggiator config").
type ArpConfig struct {
	Mode         ArpMode
	Hold         bool // SPEC_FULL.md §12: gates whether RemoveNote actually evicts
	Octaves      int  // signed -10..+10; |magnitude|>5 means two-direction traversal
	GateLength   int
	Divisor      int
	MIDIKeyboard bool
}

// OctaveSpan reports the traversal octave count and whether the
// configured octave range signals two-direction traversal (spec.md §4.6:
// "magnitudes >5 signal two-direction traversal by subtracting 5").
func (a ArpConfig) OctaveSpan() (count int, twoDirection bool) {
	mag := a.Octaves
	if mag < 0 {
		mag = -mag
	}
	if mag > 5 {
		return mag - 5, true
	}
	return mag, false
}

// Track is the per-track settings envelope. Logic tracks populate
// Input1/Input2; Arp tracks populate Arp. Other variants leave those
// fields at their zero value.
type Track struct {
	PlayMode       PlayMode
	FillMode       FillMode
	FillWhenMuted  bool
	CVUpdateMode   CVUpdateMode
	SlideTime      int
	Octave         int
	Transpose      int
	Rotate         int
	Biases         Biases
	PatternFollow  PatternFollowMode
	RequestedIndex int // pattern index requested under FollowTrack/FollowLink

	// LinkIndex names the parent track this one derives timing from
	// (spec.md §4.7 "Track-Link Dispatch"); -1 means unlinked.
	LinkIndex int

	// Logic-only.
	Input1 int
	Input2 int

	// Arp-only.
	Arp ArpConfig
}

// NoLink is the LinkIndex sentinel meaning "not linked to another track".
const NoLink = -1

// RotateIndex rotates a raw step index by the track's configured rotate
// amount within a window of size length (spec.md §4.3 step 2: "Rotate
// the step index by track rotate").
func (t Track) RotateIndex(stepIndex, length int) int {
	if length <= 0 {
		return stepIndex
	}
	return xmath.Wrap(stepIndex+t.Rotate, 0, length-1)
}
