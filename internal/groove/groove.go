// Package groove applies a swing offset to a tick timestamp (spec.md §2
// "Groove / swing": "Applies swing offset to a tick timestamp").
package groove

// MaxSwing is the inclusive upper bound of the swing percentage. 50%
// delays every other (odd-indexed) sub-step by a quarter of its step
// duration, the conventional "full swing" feel.
const MaxSwing = 100

// Apply offsets tick by the swing amount for a step of the given
// divisor. Only odd-numbered sub-steps (stepIndex % 2 == 1) are pushed
// late; even sub-steps land exactly on the grid. Apply does not clamp
// swingPercent to MaxSwing, and no caller in this module clamps it either.
func Apply(tick uint32, divisor uint32, stepIndex int, swingPercent int) uint32 {
	if swingPercent <= 0 || divisor == 0 || stepIndex%2 == 0 {
		return tick
	}
	offset := uint32(int64(divisor) * int64(swingPercent) / 200)
	return tick + offset
}
