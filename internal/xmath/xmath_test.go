package xmath

import "testing"

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 10); got != 5 {
		t.Fatalf("got %d", got)
	}
	if got := Clamp(-3, 0, 10); got != 0 {
		t.Fatalf("got %d", got)
	}
	if got := Clamp(99, 0, 10); got != 10 {
		t.Fatalf("got %d", got)
	}
	if got := Clamp(0.5, 0.0, 1.0); got != 0.5 {
		t.Fatalf("got %v", got)
	}
}

func TestWrap(t *testing.T) {
	cases := []struct{ v, lo, hi, want int }{
		{5, 0, 7, 5},
		{8, 0, 7, 0},
		{-1, 0, 7, 7},
		{-9, 0, 7, 7},
		{3, 2, 5, 3},
		{1, 2, 5, 5},
	}
	for _, c := range cases {
		if got := Wrap(c.v, c.lo, c.hi); got != c.want {
			t.Errorf("Wrap(%d,%d,%d) = %d, want %d", c.v, c.lo, c.hi, got, c.want)
		}
	}
}

func TestAbsMinMax(t *testing.T) {
	if AbsInt(-4) != 4 || AbsInt(4) != 4 {
		t.Fatal("AbsInt")
	}
	if MaxInt(2, 9) != 9 || MinInt(2, 9) != 2 {
		t.Fatal("MaxInt/MinInt")
	}
}
