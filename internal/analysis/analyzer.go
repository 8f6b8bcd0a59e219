// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	applog "github.com/imSoTn/audioreact/internal/log"
	"github.com/imSoTn/audioreact/pkg/bitint"
)

var (
	// ErrClosed reports a mutating call on an analyzer after Close.
	ErrClosed = errors.New("analysis: analyzer is closed")

	// ErrBandMask reports a band mask whose length does not match NumBands.
	ErrBandMask = errors.New("analysis: band mask length mismatch")
)

const (
	// minProcessSamples is the fast-reject floor. Playback devices deliver
	// short or empty buffers during format changes; anything below this is
	// absorbed without touching analyzer state.
	minProcessSamples = 128

	// Raw volume mixes a time-domain and a spectral loudness estimate.
	// The scale factors compensate for their typical magnitude difference
	// and are fixed empirical values, not tuning knobs.
	rmsWeight      = 0.7
	rmsScale       = 4.0
	spectralWeight = 0.3
	spectralScale  = 0.25

	// spectralCeilingHz bounds the bins contributing to spectral power.
	spectralCeilingHz = 20000.0

	// directionFloor is the combined left+right magnitude below which the
	// balance snaps to center instead of dividing near-zero numbers.
	directionFloor = 1e-6

	// directionDecayAlpha recentres the balance at 10% per call while raw
	// volume sits below the direction threshold, so silence never parks
	// the indicator at a stale side value.
	directionDecayAlpha = 0.9
)

// Result is the per-buffer output tuple consumed by the dispatch layer.
// Bands is a value array so callers never alias analyzer state.
type Result struct {
	Bands     [NumBands]float64 `json:"bands"`
	Volume    float64           `json:"volume"`
	Direction float64           `json:"direction"`
	Spike     bool              `json:"spike"`
}

// neutralResult is what short, empty, or post-Close buffers produce:
// silence with the balance centered.
func neutralResult() Result {
	return Result{Direction: 0.5}
}

// SpectrumAnalyzer consumes one interleaved stereo buffer per call and
// derives smoothed volume, stereo direction, per-band spectral power, and
// a transient spike flag. It owns all of its scratch and smoothing state;
// one mutex serializes processing against the reconfiguration calls, the
// capture side is expected to deliver buffers from a single goroutine.
type SpectrumAnalyzer struct {
	mu sync.Mutex

	cfg Config
	ws  *spectrumWorkspace // nil once closed

	enabledBands  [NumBands]bool
	rawBands      [NumBands]float64
	smoothedBands [NumBands]float64

	gain  gainControl
	spike spikeDetector

	smoothedVolume    float64
	smoothedDirection float64
	currentRMS        float64

	closed bool

	// now is replaceable so spike timing can be driven in tests.
	now func() time.Time
}

// NewSpectrumAnalyzer validates the structural configuration and allocates
// transform scratch for the configured FFT size. bytesPerSample is the
// capture stride (4 for float32 streams). All bands start enabled and the
// balance starts centered.
func NewSpectrumAnalyzer(cfg Config, sampleRate float64, bytesPerSample int) (*SpectrumAnalyzer, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}
	if bytesPerSample <= 0 {
		return nil, fmt.Errorf("bytes per sample must be positive, got %d", bytesPerSample)
	}

	a := &SpectrumAnalyzer{
		cfg: cfg,
		ws:  newSpectrumWorkspace(cfg.FFTSize, sampleRate),
		now: time.Now,
	}
	for i := range a.enabledBands {
		a.enabledBands[i] = true
	}
	a.resetLocked()

	applog.Infof("Analysis: Initializing SpectrumAnalyzer (Size: %d, SampleRate: %.1f Hz, Bands: %d)", cfg.FFTSize, sampleRate, NumBands)
	return a, nil
}

// validateConfig rejects the structural fields the analyzer cannot clamp
// its way around. Numeric ranges (gain, smoothing factors) are the
// caller's responsibility.
func validateConfig(cfg Config) error {
	if !bitint.IsPowerOfTwo(cfg.FFTSize) || cfg.FFTSize < MinFFTSize || cfg.FFTSize > MaxFFTSize {
		return fmt.Errorf("fft size must be a power of two in [%d, %d], got %d", MinFFTSize, MaxFFTSize, cfg.FFTSize)
	}
	if cfg.BandCount != NumBands {
		return fmt.Errorf("band count is fixed at %d, got %d", NumBands, cfg.BandCount)
	}
	return nil
}

// ProcessAudioData analyzes one interleaved stereo buffer and returns the
// output tuple. Buffers shorter than minProcessSamples, and calls after
// Close, return a neutral result without mutating state. The call never
// panics outward; an unexpected internal failure degrades to the neutral
// result so the device callback thread survives a dropped frame.
func (a *SpectrumAnalyzer) ProcessAudioData(samples []float32, scaleWithVolume bool) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			applog.Errorf("Analysis: recovered processing panic: %v", r)
			res = neutralResult()
		}
	}()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || len(samples) < minProcessSamples {
		return neutralResult()
	}

	now := a.now()

	// --- 1. Resize check ---
	if a.ws.fftSize != a.cfg.FFTSize {
		a.ws.resize(a.cfg.FFTSize)
	}
	binWidth := a.ws.binWidth()
	numBins := a.ws.numBins()

	// --- 2. Deinterleave & pad ---
	a.ws.deinterleave(samples)

	// --- 3. Windowed transform x3 ---
	a.ws.transform(&a.ws.left)
	a.ws.transform(&a.ws.right)
	a.ws.transform(&a.ws.mono)

	// --- 4. Raw volume ---
	rawVolume := a.computeRawVolume(binWidth, numBins)

	// --- 5. Direction ---
	a.updateDirection(rawVolume, binWidth, numBins)

	// --- 6. Frequency bands ---
	a.updateBands(scaleWithVolume, binWidth, numBins)

	// --- 7. Spike detection ---
	spike := a.spike.update(a.smoothedVolume, a.cfg.SpikeThreshold, now)

	// --- 8. Gain ---
	var gain float64
	if a.cfg.EnableAGC {
		gain = a.gain.step(rawVolume, a.cfg.Gain)
	} else {
		a.gain.set(a.cfg.Gain)
		gain = a.gain.current
	}

	// --- 9. Final volume ---
	volume := rawVolume * gain
	if volume > 1.0 {
		// Soft-clip the excess above unity instead of hard limiting.
		volume = 1.0 - 1.0/volume
	}
	volume = clamp(volume, 0.0, 1.0)
	a.smoothedVolume = smooth(a.smoothedVolume, volume, a.cfg.Smoothing)

	// --- 10. History & result ---
	a.spike.push(a.smoothedVolume)

	return Result{
		Bands:     a.smoothedBands,
		Volume:    a.smoothedVolume,
		Direction: a.smoothedDirection,
		Spike:     spike,
	}
}

// computeRawVolume blends the padded mono RMS with a spectral power
// estimate taken over the bins below spectralCeilingHz.
func (a *SpectrumAnalyzer) computeRawVolume(binWidth float64, numBins int) float64 {
	sumSquares := 0.0
	for _, s := range a.ws.mono.samples {
		sumSquares += s * s
	}
	a.currentRMS = math.Sqrt(sumSquares / float64(a.ws.fftSize))

	limit := int(math.Ceil(spectralCeilingHz / binWidth))
	if limit > numBins {
		limit = numBins
	}
	power := 0.0
	for i := 0; i < limit; i++ {
		m := a.ws.mono.magnitude[i]
		power += m * m
	}
	spectralPower := 0.0
	if limit > 0 {
		spectralPower = math.Sqrt(power / float64(limit))
	}

	return rmsWeight*(a.currentRMS*rmsScale) + spectralWeight*(spectralPower*spectralScale)
}

// updateDirection derives the stereo balance from the enabled bands of the
// left and right spectra. Below the direction threshold the smoothed value
// decays toward center at a fixed rate instead of tracking the raw balance.
func (a *SpectrumAnalyzer) updateDirection(rawVolume, binWidth float64, numBins int) {
	leftPower, rightPower := 0.0, 0.0
	anyEnabled := false
	for b := range a.enabledBands {
		if !a.enabledBands[b] {
			continue
		}
		anyEnabled = true
		start, end := frequencyBands[b].binRange(binWidth, numBins)
		for i := start; i < end; i++ {
			leftPower += a.ws.left.magnitude[i]
			rightPower += a.ws.right.magnitude[i]
		}
	}

	direction := 0.5
	if anyEnabled && leftPower+rightPower >= directionFloor {
		direction = rightPower / (leftPower + rightPower)
	}

	if rawVolume >= a.cfg.DirectionThreshold {
		a.smoothedDirection = smooth(a.smoothedDirection, direction, a.cfg.Smoothing)
	} else {
		a.smoothedDirection = smooth(a.smoothedDirection, 0.5, directionDecayAlpha)
	}
}

// updateBands computes per-band power from the mono spectrum, scales it
// per the caller's mode, and folds it into the smoothed accumulators.
// Disabled bands are pinned to exactly zero, raw and smoothed alike.
func (a *SpectrumAnalyzer) updateBands(scaleWithVolume bool, binWidth float64, numBins int) {
	totalPower := 0.0
	for b := range frequencyBands {
		if !a.enabledBands[b] {
			a.rawBands[b] = 0
			continue
		}
		start, end := frequencyBands[b].binRange(binWidth, numBins)
		sum := 0.0
		for i := start; i < end; i++ {
			m := a.ws.mono.magnitude[i]
			sum += m * m
		}
		power := 0.0
		if end > start {
			power = math.Sqrt(sum / float64(end-start))
		}
		a.rawBands[b] = power
		totalPower += power
	}

	if scaleWithVolume {
		for b := range a.rawBands {
			a.rawBands[b] *= a.smoothedVolume
		}
	} else if totalPower > 0 {
		for b := range a.rawBands {
			a.rawBands[b] /= totalPower
		}
	}

	for b := range a.smoothedBands {
		if !a.enabledBands[b] {
			a.smoothedBands[b] = 0
			continue
		}
		a.smoothedBands[b] = smooth(a.smoothedBands[b], a.rawBands[b], a.cfg.FrequencySmoothing)
	}
}

// Reset re-zeroes all derived state: smoothing accumulators, gain loop,
// spike baseline, with the balance re-seeded to center. Configuration and
// the enabled-band mask survive. The capture layer calls this when buffers
// stop arriving so outputs do not freeze at stale values.
func (a *SpectrumAnalyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.resetLocked()
}

func (a *SpectrumAnalyzer) resetLocked() {
	a.rawBands = [NumBands]float64{}
	a.smoothedBands = [NumBands]float64{}
	a.smoothedVolume = 0
	a.smoothedDirection = 0.5
	a.currentRMS = 0
	a.gain.set(a.cfg.Gain)
	a.spike.reset()
}

// UpdateEnabledBands replaces the enabled-band mask. A mask whose length
// does not match NumBands is rejected and prior state kept.
func (a *SpectrumAnalyzer) UpdateEnabledBands(mask []bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if len(mask) != NumBands {
		return fmt.Errorf("%w: got %d, want %d", ErrBandMask, len(mask), NumBands)
	}
	copy(a.enabledBands[:], mask)
	return nil
}

// ConfigureFrequencyBands updates the band smoothing factor and the
// enabled-band mask together, the path settings changes arrive on.
func (a *SpectrumAnalyzer) ConfigureFrequencyBands(smoothing float64, mask []bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if len(mask) != NumBands {
		return fmt.Errorf("%w: got %d, want %d", ErrBandMask, len(mask), NumBands)
	}
	a.cfg.FrequencySmoothing = smoothing
	copy(a.enabledBands[:], mask)
	return nil
}

// UpdateGain sets the applied gain directly. It only takes effect while
// AGC is disabled; with AGC enabled the control loop owns the gain and
// the call is a no-op.
func (a *SpectrumAnalyzer) UpdateGain(gain float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if a.cfg.EnableAGC {
		return nil
	}
	a.cfg.Gain = clamp(gain, MinGain, MaxGain)
	a.gain.set(a.cfg.Gain)
	return nil
}

// UpdateConfig replaces the configuration wholesale. Equal configurations
// are a no-op. A changed FFT size takes effect on the next processing
// call, which reallocates scratch under the same lock.
func (a *SpectrumAnalyzer) UpdateConfig(next Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if err := validateConfig(next); err != nil {
		return err
	}
	if next.Equal(a.cfg) {
		return nil
	}
	a.cfg = next
	if !next.EnableAGC {
		a.gain.set(next.Gain)
	}
	applog.Debugf("Analysis: configuration updated (Size: %d, AGC: %v)", next.FFTSize, next.EnableAGC)
	return nil
}

// Close releases the transform scratch and marks the analyzer disposed.
// Further processing calls return the neutral result; further mutating
// calls return ErrClosed. Close is idempotent.
func (a *SpectrumAnalyzer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.ws = nil
	applog.Debugf("Analysis: SpectrumAnalyzer closed")
	return nil
}

// Config returns a copy of the current configuration.
func (a *SpectrumAnalyzer) Config() Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// CurrentGain returns the gain applied to the most recent buffer.
func (a *SpectrumAnalyzer) CurrentGain() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gain.current
}

// CurrentRMS returns the padded mono RMS of the most recent buffer.
func (a *SpectrumAnalyzer) CurrentRMS() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRMS
}

// EnabledBands returns a copy of the enabled-band mask.
func (a *SpectrumAnalyzer) EnabledBands() [NumBands]bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabledBands
}
