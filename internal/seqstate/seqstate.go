// Package seqstate implements the run-mode state machine shared by every
// track engine variant: it walks a [firstStep, lastStep] window in one of
// six run modes and exposes both the absolute-indexed ("Aligned") and
// free-running ("Free") advancement strategies a track's play mode
// selects between (spec.md §4 "Sequence State Machine").
package seqstate

import "math/rand"

// RunMode selects how the active step window is traversed.
type RunMode int

const (
	Forward RunMode = iota
	Backward
	PingPong
	PongPing
	Random
	RandomWalk
)

// State holds the traversal position for one sequence. prev/current/next
// mirror the firmware's look-ahead fields so negative gate-offsets can
// pre-trigger the following step (spec.md §4 "calculateNextStepAligned /
// calculateNextStepFree").
type State struct {
	RunMode   RunMode
	FirstStep int
	LastStep  int

	Prev      int
	Current   int
	Next      int
	Iteration uint32

	// dir is the PingPong/PongPing traversal direction: +1 or -1.
	dir int

	// freeRelativeTick is zeroed by Reset and not otherwise read or
	// advanced; engines keep their own Free-mode tick count.
	freeRelativeTick uint32
}

// Reset places the state at the start of its window. Forward/Random/
// RandomWalk start ascending; Backward/PongPing start descending;
// PingPong starts ascending (mirrored by PongPing, per spec.md §4
// "PongPing mirrors starting backward").
func (s *State) Reset() {
	s.Iteration = 0
	s.freeRelativeTick = 0
	switch s.RunMode {
	case Backward, PongPing:
		s.dir = -1
		s.Current = s.LastStep
	default:
		s.dir = 1
		s.Current = s.FirstStep
	}
	s.Prev = s.Current
	s.Next = s.peekNext(s.Current, s.dir, nil)
}

func (s *State) windowLen() int {
	if s.LastStep < s.FirstStep {
		return 1
	}
	return s.LastStep - s.FirstStep + 1
}

// peekNext computes the step that follows cur in direction dir without
// mutating state, used both by Reset's look-ahead and by the
// CalculateNextStep* functions. rng is only consulted for Random/RandomWalk.
func (s *State) peekNext(cur int, dir int, rng *rand.Rand) int {
	if s.FirstStep == s.LastStep {
		// spec.md §8: "firstStep == lastStep: advancement is a no-op."
		return s.FirstStep
	}
	switch s.RunMode {
	case Forward:
		n := cur + 1
		if n > s.LastStep {
			n = s.FirstStep
		}
		return n
	case Backward:
		n := cur - 1
		if n < s.FirstStep {
			n = s.LastStep
		}
		return n
	case PingPong, PongPing:
		n := cur + dir
		if n > s.LastStep || n < s.FirstStep {
			// reverse without repeating the endpoint just visited
			n = cur - dir
		}
		return n
	case Random:
		if rng == nil {
			return cur
		}
		return s.FirstStep + rng.Intn(s.windowLen())
	case RandomWalk:
		if rng == nil {
			return cur
		}
		step := 1
		if rng.Intn(2) == 0 {
			step = -1
		}
		n := cur + step
		if n > s.LastStep {
			n = s.FirstStep
		}
		if n < s.FirstStep {
			n = s.LastStep
		}
		return n
	default:
		return cur
	}
}

// advance moves to the precomputed Next, rolling Iteration when the
// window wraps back to its start, and recomputes the new look-ahead Next.
func (s *State) advance(rng *rand.Rand) {
	prev := s.Current
	s.Prev = prev
	next := s.Next

	if s.RunMode == PingPong || s.RunMode == PongPing {
		if next == prev {
			// first==last: stay put, no oscillation (spec.md §8).
		} else if (next > prev && s.dir < 0) || (next < prev && s.dir > 0) {
			s.dir = -s.dir
		}
	}

	wrapped := false
	switch s.RunMode {
	case Forward:
		wrapped = next <= prev && s.FirstStep != s.LastStep
	case Backward:
		wrapped = next >= prev && s.FirstStep != s.LastStep
	}
	if wrapped {
		s.Iteration++
	}

	s.Current = next
	s.Next = s.peekNext(s.Current, s.dir, rng)
}

// AdvanceAligned recomputes Current directly from an absolute tick-derived
// step index modulo the active window (spec.md §4 "advanceAligned") in
// Forward and Backward modes. PingPong, PongPing, Random and RandomWalk
// ignore absoluteStep and take one step from the current position, the
// last two consulting rng for their draw.
func (s *State) AdvanceAligned(absoluteStep int, rng *rand.Rand) {
	n := s.windowLen()
	if n <= 0 {
		return
	}
	switch s.RunMode {
	case Forward:
		idx := absoluteStep % n
		s.Prev = s.Current
		s.Current = s.FirstStep + idx
		if idx == 0 && absoluteStep != 0 {
			s.Iteration++
		}
	case Backward:
		idx := absoluteStep % n
		s.Prev = s.Current
		s.Current = s.LastStep - idx
		if idx == 0 && absoluteStep != 0 {
			s.Iteration++
		}
	case PingPong, PongPing:
		s.advance(rng)
	case Random, RandomWalk:
		s.advance(rng)
	}
	s.Next = s.peekNext(s.Current, s.dir, rng)
}

// AdvanceFree moves one traversal step in the engine's own divisor-relative
// time base. It advances on every call; the stage-repeat gating of spec.md
// §4 "Free" is left to the calling engine, which only calls AdvanceFree
// once its repeat counter allows an advance.
func (s *State) AdvanceFree(rng *rand.Rand) {
	s.advance(rng)
}

// CalculateNextStepAligned predicts the step that will be current after
// the next Aligned advancement, without mutating state (used to
// pre-trigger negative gate-offset steps, spec.md §4.3 step 2).
func (s *State) CalculateNextStepAligned(absoluteStep int, rng *rand.Rand) int {
	n := s.windowLen()
	if n <= 0 {
		return s.Current
	}
	switch s.RunMode {
	case Forward:
		idx := (absoluteStep + 1) % n
		return s.FirstStep + idx
	case Backward:
		idx := (absoluteStep + 1) % n
		return s.LastStep - idx
	default:
		return s.peekNext(s.Current, s.dir, rng)
	}
}

// CalculateNextStepFree predicts the step that follows Current in Free
// play mode without mutating state.
func (s *State) CalculateNextStepFree(rng *rand.Rand) int {
	return s.peekNext(s.Current, s.dir, rng)
}
