// SPDX-License-Identifier: MIT
package analysis

import "math"

// Automatic gain control constants. The loop holds output volume near
// agcTarget by nudging the applied gain toward target/measured each buffer.
// Attack (gain falling on a loud transient) moves faster than release (gain
// recovering on quiet input) so sudden loudness is tamed quickly without the
// floor pumping up during short pauses.
const (
	agcTarget  = 0.5  // desired output level before clipping
	agcFloor   = 1e-6 // minimum signal considered valid
	agcAttack  = 0.30 // blend rate when gain must decrease
	agcRelease = 0.10 // blend rate when gain may increase

	// Absolute gain bounds, applied with or without AGC.
	MinGain = 0.1
	MaxGain = 5.0
)

// gainControl tracks the gain currently applied to raw volume.
type gainControl struct {
	current float64
}

// step advances the control loop for one buffer. rawVolume is the pre-gain
// volume estimate and baseGain the configured gain the loop scales around.
// Signals at or below agcFloor leave the gain untouched so silence does not
// wind the loop up.
func (g *gainControl) step(rawVolume, baseGain float64) float64 {
	if rawVolume > agcFloor {
		adjustment := agcTarget / math.Max(agcFloor, rawVolume*g.current)
		desired := baseGain * adjustment
		rate := agcRelease
		if desired < g.current {
			rate = agcAttack
		}
		g.current += rate * (desired - g.current)
		g.current = clamp(g.current, MinGain, MaxGain)
	}
	return g.current
}

// set overrides the applied gain directly, used when AGC is disabled and
// when state is reset.
func (g *gainControl) set(gain float64) {
	g.current = clamp(gain, MinGain, MaxGain)
}
