// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"time"
)

const (
	// spikeMinVolume gates detection: buffers quieter than this never
	// raise a spike no matter how large the relative jump is.
	spikeMinVolume = 0.1

	// spikeRefractory is the minimum spacing between raised spikes.
	spikeRefractory = 100 * time.Millisecond

	// spikeHold is how long a raised spike stays visible before it
	// clears on its own.
	spikeHold = 50 * time.Millisecond
)

// spikeDetector flags sudden jumps in output volume against a short
// rolling baseline of recent buffers. A spike raises when the current
// volume exceeds the baseline by the configured relative threshold,
// then self-clears after spikeHold unless the refractory window blocks
// a re-raise first.
type spikeDetector struct {
	history   [3]float64
	count     int
	idx       int
	active    bool
	lastRaise time.Time
}

// push records a finished buffer's volume into the rolling baseline.
func (d *spikeDetector) push(volume float64) {
	d.history[d.idx] = volume
	d.idx = (d.idx + 1) % len(d.history)
	if d.count < len(d.history) {
		d.count++
	}
}

// baseline returns the mean of the recorded volumes, or 0 before any
// buffer has been recorded.
func (d *spikeDetector) baseline() float64 {
	if d.count == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < d.count; i++ {
		sum += d.history[i]
	}
	return sum / float64(d.count)
}

// update advances the detector for one buffer and reports whether a
// spike is visible right now. Expiry runs before detection so a buffer
// arriving after the hold window sees a cleared flag even when no new
// spike raises.
func (d *spikeDetector) update(volume, threshold float64, now time.Time) bool {
	if d.active && now.Sub(d.lastRaise) >= spikeHold {
		d.active = false
	}

	if volume >= spikeMinVolume && now.Sub(d.lastRaise) >= spikeRefractory {
		avg := d.baseline()
		jump := math.Inf(1)
		if avg > 0 {
			jump = (volume - avg) / avg
		}
		if jump > threshold {
			d.active = true
			d.lastRaise = now
		}
	}
	return d.active
}

// reset clears the baseline and any visible spike.
func (d *spikeDetector) reset() {
	d.history = [3]float64{}
	d.count = 0
	d.idx = 0
	d.active = false
	d.lastRaise = time.Time{}
}
