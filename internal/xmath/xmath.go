// Package xmath collects the small clamp/wrap helpers that the original
// firmware keeps in ModelUtils.h and reaches for at nearly every field
// write in the step and sequence-state models.
package xmath

// Ordered is any type the clamp/wrap helpers below can compare.
type Ordered interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// Clamp restricts v to [lo, hi]. Callers are expected to pass lo <= hi;
// if they don't, the result is lo when v < lo and hi otherwise.
func Clamp[T Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Wrap folds v into [lo, hi] inclusive, wrapping around rather than
// clamping. Used for octave/step indices that cycle instead of saturate.
func Wrap(v, lo, hi int) int {
	span := hi - lo + 1
	if span <= 0 {
		return lo
	}
	v -= lo
	v %= span
	if v < 0 {
		v += span
	}
	return v + lo
}

// AbsInt returns the absolute value of v.
func AbsInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// MaxInt returns the larger of a and b.
func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// MinInt returns the smaller of a and b.
func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
