// Package monitor adapts an ebiten audio player into a sample-accurate
// wall clock: it drives the sequencer's tick loop at the sample rate
// instead of rendering any synthesized audio, and drops a short
// (48-sample) click into the output buffer on every requested click so a
// demo listener can
// hear the sequencer step (spec.md's core never touches audio samples;
// this lives entirely in the demo layer, SPEC_FULL.md §11).
package monitor

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// TickFunc is called once per PPQN tick boundary, sample-accurately,
// from inside the audio render callback. It must not block.
type TickFunc func(tick uint32)

// ClickSource is a SampleSource-shaped tick driver: Process is called by
// the audio backend to fill an output buffer, and on each call it
// advances a sample counter, fires TickFunc at every tick boundary, and
// writes a short click transient whenever pendingClick is set.
type ClickSource struct {
	mu sync.Mutex

	sampleRate      int
	samplesPerTick  float64
	sampleAccum     float64
	tick            uint32
	onTick          TickFunc

	clickRemaining int // samples left in the current click's decay
	pendingClick   bool

	done bool
}

const clickDurationSamples = 48 // ~1ms at 48kHz, a short audible tick

// NewClickSource builds a ClickSource ticking at ppqn pulses per quarter
// note and bpm quarter notes per minute.
func NewClickSource(sampleRate int, bpm float64, ppqn int, onTick TickFunc) *ClickSource {
	if ppqn <= 0 {
		ppqn = 24
	}
	if bpm <= 0 {
		bpm = 120
	}
	ticksPerSecond := bpm / 60 * float64(ppqn)
	return &ClickSource{
		sampleRate:     sampleRate,
		samplesPerTick: float64(sampleRate) / ticksPerSecond,
		onTick:         onTick,
	}
}

// RequestClick schedules an audible click on the next Process call's
// first tick boundary (call this when a gate turns on).
func (c *ClickSource) RequestClick() {
	c.mu.Lock()
	c.pendingClick = true
	c.mu.Unlock()
}

// Finish marks the source as ended; the next Read returns io.EOF.
func (c *ClickSource) Finish() {
	c.mu.Lock()
	c.done = true
	c.mu.Unlock()
}

// Process fills dst (interleaved stereo float32 frames) with silence or
// click transients, firing onTick at every sample-accurate tick boundary
// it crosses (StreamReader.Read calls this once per output buffer).
func (c *ClickSource) Process(dst []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	frames := len(dst) / 2
	for i := 0; i < frames; i++ {
		c.sampleAccum++
		if c.sampleAccum >= c.samplesPerTick {
			c.sampleAccum -= c.samplesPerTick
			c.tick++
			if c.onTick != nil {
				c.onTick(c.tick)
			}
			if c.pendingClick {
				c.pendingClick = false
				c.clickRemaining = clickDurationSamples
			}
		}
		sample := float32(0)
		if c.clickRemaining > 0 {
			decay := float32(c.clickRemaining) / float32(clickDurationSamples)
			sample = decay * 0.6
			c.clickRemaining--
		}
		dst[i*2] = sample
		dst[i*2+1] = sample
	}
}

// Finished reports whether playback has ended (FinishingSource).
func (c *ClickSource) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// SampleSource is the minimal render interface StreamReader pulls from.
type SampleSource interface {
	Process(dst []float32)
}

// FinishingSource additionally reports end-of-stream.
type FinishingSource interface {
	SampleSource
	Finished() bool
}

// StreamReader adapts a SampleSource to io.Reader for ebiten's audio
// player.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
}

// NewStreamReader wraps source for ebiten's NewPlayerF32.
func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i := 0; i < need; i++ {
		u := math.Float32bits(r.buf[i])
		binary.LittleEndian.PutUint32(p[i*4:], u)
	}
	n := frames * 8
	if fs, ok := r.source.(FinishingSource); ok && fs.Finished() {
		return n, io.EOF
	}
	return n, nil
}

// Close is a no-op; the source has no resources of its own to release.
func (r *StreamReader) Close() error { return nil }

// Player drives a SampleSource through an ebiten audio.Context purely as
// a sample-accurate wall clock for the demo (spec.md's core stays
// audio-free; SPEC_FULL.md §11 "DOMAIN STACK").
type Player struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

var (
	contextOnce sync.Once
	context     *ebitaudio.Context
	contextErr  error
	contextRate int
)

func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		contextRate = sampleRate
		context = ebitaudio.NewContext(sampleRate)
	})
	if contextErr != nil {
		return nil, contextErr
	}
	if contextRate != sampleRate {
		return nil, fmt.Errorf("monitor: audio context already initialized at %d Hz (requested %d Hz)", contextRate, sampleRate)
	}
	return context, nil
}

// NewPlayer opens (or reuses) the shared ebiten audio context at
// sampleRate and starts driving source through it.
func NewPlayer(sampleRate int, source SampleSource) (*Player, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	return &Player{player: pl, reader: reader}, nil
}

// Play starts (or resumes) playback.
func (p *Player) Play() { p.player.Play() }

// Pause suspends playback without releasing resources.
func (p *Player) Pause() { p.player.Pause() }

// IsPlaying reports whether the player is currently advancing.
func (p *Player) IsPlaying() bool { return p.player.IsPlaying() }

// Position returns the wall-clock position actually reached so far.
func (p *Player) Position() time.Duration { return p.player.Position() }

// Stop halts playback and releases the underlying player.
func (p *Player) Stop() error {
	p.player.Pause()
	p.player.Close()
	return p.reader.Close()
}
