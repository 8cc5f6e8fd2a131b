package groove

import "testing"

func TestApplyNoSwingOnEvenStep(t *testing.T) {
	if got := Apply(100, 12, 0, 50); got != 100 {
		t.Fatalf("even step should be untouched, got %d", got)
	}
}

func TestApplyDelaysOddStep(t *testing.T) {
	got := Apply(100, 12, 1, 50)
	if got <= 100 {
		t.Fatalf("odd step with positive swing should be delayed, got %d", got)
	}
}

func TestApplyZeroSwingIsIdentity(t *testing.T) {
	if got := Apply(100, 12, 1, 0); got != 100 {
		t.Fatalf("zero swing should be identity, got %d", got)
	}
}
