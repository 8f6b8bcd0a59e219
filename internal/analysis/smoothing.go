// SPDX-License-Identifier: MIT
package analysis

// smooth advances a single-pole exponential filter one step:
// s' = alpha*s + (1-alpha)*x. Higher alpha means more inertia. Volume,
// direction, and every band go through this one primitive so their response
// curves cannot drift apart.
func smooth(s, x, alpha float64) float64 {
	return alpha*s + (1-alpha)*x
}

// clamp limits v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
