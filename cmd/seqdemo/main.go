// Command seqdemo builds a small built-in pattern, drives it with a
// real-time tick clock, and prints gate/CV/MIDI-trigger events to
// stdout, optionally mirroring them to a MIDI output port found through
// midiio.OpenPort (spec.md §6 "External Interfaces"). seqdemo imports no
// gomidi driver package, so it registers no driver for that lookup.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/najonda/stepseq-go/internal/engine"
	"github.com/najonda/stepseq-go/internal/midiio"
	"github.com/najonda/stepseq-go/internal/monitor"
	"github.com/najonda/stepseq-go/internal/project"
	"github.com/najonda/stepseq-go/internal/scale"
	"github.com/najonda/stepseq-go/internal/step"
)

func main() {
	var (
		tempo   = flag.Float64("tempo", 120, "playback tempo in BPM")
		ppqn    = flag.Int("ppqn", 24, "ticks per quarter note")
		trackIx = flag.Int("track", 0, "which track index to print (only track 0 has an engine)")
		seconds = flag.Float64("seconds", 8, "how long to run the demo")
		midiOut = flag.String("midi-out", "", "name of a MIDI output port to mirror events to (omitted = print only)")
	)
	flag.Parse()

	proj := project.New(project.WithScale(0), project.WithTempo(*tempo))
	seq := builtinPattern()
	eng := engine.NewNoteEngine(seq, &proj.Tracks[0], scale.ByID(proj.Scale), proj.Root)

	var out engine.Output
	if *midiOut != "" {
		send, closePort, err := midiio.OpenPort(*midiOut)
		if err != nil {
			log.Fatalf("seqdemo: %v", err)
		}
		defer closePort()
		out = midiio.NewGoMIDIOutput(send)
	}

	printer := &printingOutput{inner: out, track: *trackIx}
	disp := engine.NewDispatcher(proj, engine.WithOutput(printer))
	disp.SetEngine(0, eng)

	click := monitor.NewClickSource(48000, *tempo, *ppqn, func(tick uint32) {
		disp.OnTick(tick)
	})
	printer.click = click
	player, err := monitor.NewPlayer(48000, click)
	if err != nil {
		log.Fatalf("seqdemo: %v", err)
	}
	player.Play()
	defer player.Stop()

	time.Sleep(time.Duration(*seconds * float64(time.Second)))
}

// printingOutput prints every event for the watched track to stdout and
// forwards to an optional real MIDI Output, triggering the wall clock's
// audible click on every gate-on.
type printingOutput struct {
	inner engine.Output
	track int
	click *monitor.ClickSource
}

func (p *printingOutput) SendGate(trackIndex int, on bool) {
	if trackIndex == p.track {
		fmt.Printf("track %d gate=%v\n", trackIndex, on)
		if on && p.click != nil {
			p.click.RequestClick()
		}
	}
	if p.inner != nil {
		p.inner.SendGate(trackIndex, on)
	}
}

func (p *printingOutput) SendCV(trackIndex int, volts float64) {
	if trackIndex == p.track {
		fmt.Printf("track %d cv=%.3fV\n", trackIndex, volts)
	}
	if p.inner != nil {
		p.inner.SendCV(trackIndex, volts)
	}
}

func (p *printingOutput) SendSlide(trackIndex int, on bool) {
	if p.inner != nil {
		p.inner.SendSlide(trackIndex, on)
	}
}

// builtinPattern is a small fixed eight-step major-scale run, just
// enough to exercise gate/CV output without needing a file format.
func builtinPattern() *step.NoteSequence {
	seq := &step.NoteSequence{}
	seq.Divisor = 6
	seq.FirstStep = 0
	seq.LastStep = 7
	notes := []int{0, 2, 4, 5, 7, 9, 11, 12}
	for i, n := range notes {
		s := &seq.Steps[i]
		s.SetGate(true)
		s.SetGateProbability(step.ProbRange)
		s.SetLength(90)
		s.SetNote(n)
	}
	return seq
}
