package recorder

import "testing"

func TestHistoryRingOverwritesOldest(t *testing.T) {
	h := NewHistory(3)
	h.Push(NoteEvent{Tick: 1, Type: NoteOn, Note: 1})
	h.Push(NoteEvent{Tick: 2, Type: NoteOn, Note: 2})
	h.Push(NoteEvent{Tick: 3, Type: NoteOn, Note: 3})
	h.Push(NoteEvent{Tick: 4, Type: NoteOn, Note: 4})

	if h.Len() != 3 {
		t.Fatalf("expected capped length 3, got %d", h.Len())
	}
	events := h.InWindow(0, 100)
	if len(events) != 3 || events[0].Tick != 2 {
		t.Fatalf("expected oldest-dropped window starting at tick 2, got %+v", events)
	}
}

func TestHistoryInWindowFiltersByTick(t *testing.T) {
	h := NewHistory(8)
	h.Push(NoteEvent{Tick: 5, Type: NoteOn})
	h.Push(NoteEvent{Tick: 15, Type: NoteOn})
	h.Push(NoteEvent{Tick: 25, Type: NoteOn})

	got := h.InWindow(10, 20)
	if len(got) != 1 || got[0].Tick != 15 {
		t.Fatalf("expected single event at tick 15, got %+v", got)
	}
}

func TestStepRecorderFindsNoteInWindow(t *testing.T) {
	h := NewHistory(8)
	h.Push(NoteEvent{Tick: 8, Type: NoteOn, Note: 60})
	r := NewStepRecorder(h, 4, 127)

	rec, ok := r.Record(10, 22)
	if !ok || !rec.Gate {
		t.Fatalf("expected a hit, got rec=%+v ok=%v", rec, ok)
	}
}

func TestDueAcceptsStepZeroAndAfterDelay(t *testing.T) {
	if !Due(0, 4) {
		t.Fatal("expected absoluteStep 0 to always be accepted")
	}
	if Due(1, 4) || Due(4, 4) {
		t.Fatal("expected steps within the recordDelay grace window to be rejected")
	}
	if !Due(5, 4) {
		t.Fatal("expected absoluteStep == recordDelay+1 to be accepted")
	}
}

func TestStepRecorderReportsMissWithEmptyHistory(t *testing.T) {
	h := NewHistory(8)
	r := NewStepRecorder(h, 4, 127)

	_, ok := r.Record(10, 22)
	if ok {
		t.Fatal("expected no hit with empty history")
	}
}
