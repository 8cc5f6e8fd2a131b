package track

import "testing"

func TestRotateIndexWraps(t *testing.T) {
	tr := Track{Rotate: 3}
	if got := tr.RotateIndex(14, 16); got != 1 {
		t.Fatalf("expected rotated index 1, got %d", got)
	}
}

func TestBiasesClamp(t *testing.T) {
	b := Biases{GateProbability: 999, Length: -999}
	b.Clamp(127, 127)
	if b.GateProbability != 127 {
		t.Fatalf("expected clamp to 127, got %d", b.GateProbability)
	}
	if b.Length != -127 {
		t.Fatalf("expected clamp to -127, got %d", b.Length)
	}
}

func TestArpConfigOctaveSpan(t *testing.T) {
	a := ArpConfig{Octaves: 7}
	count, twoDir := a.OctaveSpan()
	if count != 2 || !twoDir {
		t.Fatalf("expected count=2 twoDir=true, got count=%d twoDir=%v", count, twoDir)
	}

	a2 := ArpConfig{Octaves: -3}
	count2, twoDir2 := a2.OctaveSpan()
	if count2 != 3 || twoDir2 {
		t.Fatalf("expected count=3 twoDir=false, got count=%d twoDir=%v", count2, twoDir2)
	}
}
