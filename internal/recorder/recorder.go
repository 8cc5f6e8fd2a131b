// Package recorder implements the live-recording ring buffer and the
// step-record input handler that scan it (spec.md §2 "Record history" /
// "Step recorder", §6 "MIDI input / RecordHistory").
package recorder

// EventType distinguishes the two kinds of MIDI note events the ring
// buffer stores.
type EventType int

const (
	NoteOn EventType = iota
	NoteOff
)

// NoteEvent is one entry in the History ring buffer (spec.md §6).
type NoteEvent struct {
	Tick     uint32
	Type     EventType
	Note     int
	Velocity int
}

// History is a fixed-capacity ring buffer of recent NoteEvents. The
// engine borrows it read-only during step recording (spec.md §6: "the
// engine borrows it read-only during recordStep").
type History struct {
	buf   []NoteEvent
	cap   int
	head  int // next write position
	count int
}

// NewHistory returns a History with room for capacity events.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{buf: make([]NoteEvent, capacity), cap: capacity}
}

// Push records ev, overwriting the oldest entry once the buffer is full.
func (h *History) Push(ev NoteEvent) {
	h.buf[h.head] = ev
	h.head = (h.head + 1) % h.cap
	if h.count < h.cap {
		h.count++
	}
}

// InWindow returns every NoteEvent whose tick falls in [start, end],
// oldest first (spec.md §4.3 "Recording": "scan the record-history ring
// for NoteOn events falling in a window [stepStart - margin, stepEnd]").
func (h *History) InWindow(start, end uint32) []NoteEvent {
	var out []NoteEvent
	// oldest entry is h.count steps behind head when full, otherwise at index 0.
	first := (h.head - h.count + h.cap) % h.cap
	for i := 0; i < h.count; i++ {
		idx := (first + i) % h.cap
		ev := h.buf[idx]
		if ev.Tick >= start && ev.Tick <= end {
			out = append(out, ev)
		}
	}
	return out
}

// Len reports how many events are currently stored.
func (h *History) Len() int { return h.count }

// Clear discards every stored event.
func (h *History) Clear() {
	h.head = 0
	h.count = 0
}

// RecordedStep is what StepRecorder writes into a step on a hit: gate
// on, and a length expressed in Length::Range units (spec.md §4.3).
type RecordedStep struct {
	Gate   bool
	Length int
}

// Mode classifies how a track treats recorded input (spec.md §4.3
// "Recording": "when recording is enabled and record mode is not
// StepRecord").
type Mode int

const (
	ModeLive Mode = iota
	ModeStepRecord
	ModeOverwrite
)

// Due reports whether a step record at absoluteStep is accepted given
// the configured recordDelay grace window. Resolves spec.md §9 Open
// Question (c): "specify Aligned: apply after absoluteStep == 0 ∨
// absoluteStep ≥ recordDelay+1"; Free play mode is documented in
// DESIGN.md as applying the same threshold to its own step counter.
func Due(absoluteStep, recordDelay int) bool {
	return absoluteStep == 0 || absoluteStep >= recordDelay+1
}

// StepRecorder is the step recorder of spec.md §2 "Step recorder": each
// call to Record covers one step's tick window and reports whether a note
// landed in it, widened by the margin before the step boundary. NoteEngine
// calls Record for each step it plays while recording in a mode other than
// ModeStepRecord.
type StepRecorder struct {
	history     *History
	marginTicks uint32
	lengthRange int
}

// NewStepRecorder builds a recorder over history, using marginTicks of
// look-back before a step's start and lengthRange as the unit Length is
// expressed in (step.LengthRange in this module).
func NewStepRecorder(history *History, marginTicks uint32, lengthRange int) *StepRecorder {
	return &StepRecorder{history: history, marginTicks: marginTicks, lengthRange: lengthRange}
}

// Record scans history for a NoteOn in [stepStart-margin, stepEnd] and
// reports the step to write. ok is false when overwrite-on-miss should
// clear the previous step (spec.md §4.3: "Overwrite mode clears the
// previous step if no note landed and the track is selected").
func (r *StepRecorder) Record(stepStart, stepEnd uint32) (rec RecordedStep, ok bool) {
	start := stepStart
	if start > r.marginTicks {
		start -= r.marginTicks
	} else {
		start = 0
	}
	for _, ev := range r.history.InWindow(start, stepEnd) {
		if ev.Type != NoteOn {
			continue
		}
		length := int(stepEnd-ev.Tick) * r.lengthRange / int(stepEnd-stepStart+1)
		if length < 0 {
			length = 0
		}
		if length > r.lengthRange {
			length = r.lengthRange
		}
		return RecordedStep{Gate: true, Length: length}, true
	}
	return RecordedStep{}, false
}
