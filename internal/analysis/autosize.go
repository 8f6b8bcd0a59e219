// SPDX-License-Identifier: MIT
package analysis

import (
	"time"

	applog "github.com/imSoTn/audioreact/internal/log"
)

// autoSizeWindow is how many per-buffer timings feed one sizing decision.
const autoSizeWindow = 32

// DefaultSizeCooldown spaces size suggestions out so the transform
// workspace is not reallocated on every load hiccup.
const DefaultSizeCooldown = 3 * time.Second

// AutoSizer watches per-buffer processing cost and suggests a smaller
// transform size when the cost consistently crowds the delivery budget,
// or a larger one when there is ample headroom. Suggestions are advisory;
// the capture layer decides whether to apply them through UpdateConfig,
// which revalidates the size.
type AutoSizer struct {
	Cooldown time.Duration

	samples    [autoSizeWindow]time.Duration
	count      int
	idx        int
	lastChange time.Time
}

func NewAutoSizer() *AutoSizer {
	return &AutoSizer{Cooldown: DefaultSizeCooldown}
}

// Observe records the processing duration of one buffer.
func (s *AutoSizer) Observe(d time.Duration) {
	s.samples[s.idx] = d
	s.idx = (s.idx + 1) % autoSizeWindow
	if s.count < autoSizeWindow {
		s.count++
	}
}

// Suggest returns a new transform size when the rolling average cost
// warrants one: above half the budget the size halves, below a twentieth
// it doubles. ok is false while the window is cold, inside the cooldown,
// or when the current size already sits at its bound.
func (s *AutoSizer) Suggest(current int, budget time.Duration, now time.Time) (size int, ok bool) {
	if s.count < autoSizeWindow/2 || budget <= 0 {
		return current, false
	}
	if now.Sub(s.lastChange) < s.Cooldown {
		return current, false
	}

	var sum time.Duration
	for i := 0; i < s.count; i++ {
		sum += s.samples[i]
	}
	avg := sum / time.Duration(s.count)

	switch {
	case avg > budget/2 && current > MinFFTSize:
		size = current / 2
	case avg < budget/20 && current < MaxFFTSize:
		size = current * 2
	default:
		return current, false
	}

	// Timings taken at the old size say nothing about the new one.
	s.lastChange = now
	s.Reset()

	applog.Infof("Analysis: processing cost %s against %s budget, suggesting FFT size %d", avg, budget, size)
	return size, true
}

// Reset clears the observation window, used after a size change and when
// the capture session restarts.
func (s *AutoSizer) Reset() {
	s.count = 0
	s.idx = 0
}
