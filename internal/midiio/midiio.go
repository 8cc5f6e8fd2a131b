// Package midiio bridges the sequencer's gate/CV/slide outputs to MIDI,
// the external interface spec.md §6 describes as "MIDI output: sendGate,
// sendCv, sendSlide". It never invents a driver of its own: message
// construction goes through gitlab.com/gomidi/midi/v2, the same package
// every MIDI-emitting repo in the retrieval pack imports.
package midiio

import (
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2"
)

// Output is the sink Dispatcher forwards per-track gate/CV/slide changes
// to (spec.md §6). Matches engine.Output's shape so a *GoMIDIOutput can
// be passed directly to engine.WithOutput.
type Output interface {
	SendGate(trackIndex int, on bool)
	SendCV(trackIndex int, volts float64)
	SendSlide(trackIndex int, on bool)
}

const (
	// portamentoCC is the standard MIDI CC number for portamento on/off,
	// used here to carry the slide flag (spec.md §6 "sendSlide").
	portamentoCC = 65
	// centerNote is the MIDI note sounded at 0V, matching the 1V/octave
	// convention internal/scale.NoteToVolts uses (middle C).
	centerNote  = 60
	defaultVelocity = uint8(100)
)

// Sender is the subset of gomidi's send function this package needs,
// satisfied by midi.SendTo's returned func or any drivers.Out wrapped
// with midi.SendTo.
type Sender func(msg midi.Message) error

// GoMIDIOutput implements Output over a gomidi Sender, one MIDI channel
// per track (spec.md §6: eight tracks map to eight channels 0-7).
type GoMIDIOutput struct {
	mu sync.Mutex

	send Sender

	lastNote [8]uint8
	noteOn   [8]bool
}

// NewGoMIDIOutput wraps send, an already-opened gomidi Sender (e.g. from
// midi.SendTo(out)).
func NewGoMIDIOutput(send Sender) *GoMIDIOutput {
	g := &GoMIDIOutput{send: send}
	for i := range g.lastNote {
		g.lastNote[i] = centerNote
	}
	return g
}

// OpenPort finds an output port by name substring and returns a Sender
// bound to it plus a close func (spec.md §6 "live MIDI output"; `cmd/
// seqdemo -midi-out` uses this to open a real port on request). The
// caller must blank-import a concrete driver package (e.g. gomidi's
// rtmididrv) so a backend is registered before calling this.
func OpenPort(name string) (Sender, func(), error) {
	out, err := midi.FindOutPort(name)
	if err != nil {
		return nil, nil, fmt.Errorf("midiio: no output port matching %q: %w", name, err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, nil, err
	}
	return send, func() { out.Close() }, nil
}

// channel returns the MIDI channel a track index maps to: the index
// itself, clamped to 0-15.
func channel(trackIndex int) uint8 {
	if trackIndex < 0 {
		return 0
	}
	if trackIndex > 15 {
		return 15
	}
	return uint8(trackIndex)
}

// SendCV stores the MIDI note volts maps to (spec.md §6: "sendCv(track,
// volts)"); the note is applied on the next SendGate(true).
func (g *GoMIDIOutput) SendCV(trackIndex int, volts float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if trackIndex < 0 || trackIndex >= len(g.lastNote) {
		return
	}
	note := centerNote + int(volts*12+0.5)
	if volts < 0 {
		note = centerNote + int(volts*12-0.5)
	}
	if note < 0 {
		note = 0
	}
	if note > 127 {
		note = 127
	}
	g.lastNote[trackIndex] = uint8(note)
}

// SendGate emits a NoteOn/NoteOff for the track's current note (spec.md
// §6: "sendGate(track, on)").
func (g *GoMIDIOutput) SendGate(trackIndex int, on bool) {
	g.mu.Lock()
	note := uint8(centerNote)
	wasOn := false
	if trackIndex >= 0 && trackIndex < len(g.lastNote) {
		note = g.lastNote[trackIndex]
		wasOn = g.noteOn[trackIndex]
		g.noteOn[trackIndex] = on
	}
	sender := g.send
	g.mu.Unlock()

	if sender == nil {
		return
	}
	ch := channel(trackIndex)
	if on {
		sender(midi.NoteOn(ch, note, defaultVelocity))
		return
	}
	if wasOn {
		sender(midi.NoteOff(ch, note))
	}
}

// SendSlide forwards the slide flag as portamento on/off (spec.md §6:
// "sendSlide(track, on)").
func (g *GoMIDIOutput) SendSlide(trackIndex int, on bool) {
	g.mu.Lock()
	sender := g.send
	g.mu.Unlock()
	if sender == nil {
		return
	}
	val := uint8(0)
	if on {
		val = 127
	}
	sender(midi.ControlChange(channel(trackIndex), portamentoCC, val))
}

