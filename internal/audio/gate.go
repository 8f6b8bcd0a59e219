// SPDX-License-Identifier: MIT
package audio

import "math"

func (e *Engine) EnableGate() {
	e.gateEnabled = true
}

func (e *Engine) DisableGate() {
	e.gateEnabled = false
}

// SetGateThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (e *Engine) SetGateThreshold(threshold float64) {
	if threshold < 0.0 {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}

	e.gateThreshold = float32(threshold)
}

// GetGateThreshold returns the current noise gate threshold as a float64.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (e *Engine) GetGateThreshold() float64 {
	return float64(e.gateThreshold)
}

// gateBlocks reports whether the gate is enabled and the buffer's peak
// amplitude fails to clear the threshold. Blocked buffers are zeroed by
// the caller so the analyzer's smoothing still decays toward silence.
func (e *Engine) gateBlocks(buf []float32) bool {
	if !e.gateEnabled {
		return false
	}

	var peak float32
	for _, sample := range buf {
		// Absolute value without branching.
		amplitude := absSample(sample)
		if amplitude > peak {
			peak = amplitude
		}
	}
	return peak <= e.gateThreshold
}

// absSample returns |s| by clearing the sign bit.
func absSample(s float32) float32 {
	return math.Float32frombits(math.Float32bits(s) &^ (1 << 31))
}
