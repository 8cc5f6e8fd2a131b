// Package scale maps a step's note index plus octave/transpose/root into
// a control voltage, and distinguishes chromatic from diatonic scales
// (spec.md §3 "Scale", §4.3 step 8 note-voltage formula).
package scale

import (
	"fmt"
)

// VoltsPerOctave is the conversion the whole module assumes: one octave
// of pitch is one volt, the modular-synth standard (spec.md §3 "Voltage
// domain": CV is volts, effectively -5..+5V).
const VoltsPerOctave = 1.0

// NoteMin and NoteMax bound a step's raw note field before scale lookup.
const (
	NoteMin = -64
	NoteMax = 63
)

// Scale is a read-only table: notes-per-octave, the note→volts mapping
// within one octave, whether it is the chromatic bypass scale, and a
// name formatter. Scale 0 is always the 12-tone chromatic scale.
type Scale struct {
	ID             int
	Name           string
	NotesPerOctave int
	IsChromatic    bool
	intervals      []int // semitone offsets from root, one octave's worth, ascending
}

// NoteToVolts converts a scale-relative note index (which may be negative
// or exceed one octave) to a CV value. The caller adds the root-note
// offset separately when the scale is chromatic (spec.md §4.3 step 8).
func (s Scale) NoteToVolts(note int) float64 {
	n := len(s.intervals)
	if n == 0 {
		return 0
	}
	// floor division so negative notes descend octaves correctly.
	oct := floorDiv(note, n)
	idx := note - oct*n
	semitone := s.intervals[idx]
	return float64(oct) + float64(semitone)/12.0*VoltsPerOctave
}

// NoteName renders a human-readable note name for UI/debug consumers.
// root is in semitones (0=C). The core never parses this back.
func (s Scale) NoteName(note int, root int) string {
	n := len(s.intervals)
	if n == 0 {
		return "-"
	}
	oct := floorDiv(note, n)
	idx := note - oct*n
	semitone := (s.intervals[idx] + root) % 12
	if semitone < 0 {
		semitone += 12
	}
	names := [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	return fmt.Sprintf("%s%d", names[semitone], oct+4)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Table is the read-only registry, keyed by scale id. Intervals are
// grounded on the interval tables used by the retrieved pack's own
// step-sequencer scale map (other_examples: grahamseamans/go-sequence
// sequencer/metropolix.go), restated here in semitone form.
var Table = buildTable()

func buildTable() map[int]Scale {
	defs := []struct {
		id        int
		name      string
		intervals []int
		chromatic bool
	}{
		{0, "Chromatic", []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, true},
		{1, "Major", []int{0, 2, 4, 5, 7, 9, 11}, false},
		{2, "Minor", []int{0, 2, 3, 5, 7, 8, 10}, false},
		{3, "Pentatonic", []int{0, 2, 4, 7, 9}, false},
		{4, "Dorian", []int{0, 2, 3, 5, 7, 9, 10}, false},
		{5, "Phrygian", []int{0, 1, 3, 5, 7, 8, 10}, false},
		{6, "Lydian", []int{0, 2, 4, 6, 7, 9, 11}, false},
		{7, "Mixolydian", []int{0, 2, 4, 5, 7, 9, 10}, false},
		{8, "Locrian", []int{0, 1, 3, 5, 6, 8, 10}, false},
		{9, "HarmonicMinor", []int{0, 2, 3, 5, 7, 8, 11}, false},
		{10, "MelodicMinor", []int{0, 2, 3, 5, 7, 9, 11}, false},
		{11, "Blues", []int{0, 3, 5, 6, 7, 10}, false},
		{12, "WholeTone", []int{0, 2, 4, 6, 8, 10}, false},
	}
	out := make(map[int]Scale, len(defs))
	for _, d := range defs {
		out[d.id] = Scale{
			ID:             d.id,
			Name:           d.name,
			NotesPerOctave: len(d.intervals),
			IsChromatic:    d.chromatic,
			intervals:      d.intervals,
		}
	}
	return out
}

// ByID returns a scale by id, falling back to the chromatic scale (id 0)
// for unknown or negative ids ("-1 = default from project" per spec.md §3).
func ByID(id int) Scale {
	if s, ok := Table[id]; ok {
		return s
	}
	return Table[0]
}
