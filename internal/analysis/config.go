// SPDX-License-Identifier: MIT
package analysis

// NumBands is the number of frequency bands the analyzer reports. The band
// table is static application data, so the count is fixed rather than sized
// from configuration.
const NumBands = 7

// Allowed FFT sizes. Larger transforms trade latency for frequency
// resolution; 4096 is the floor below which the low bands collapse into a
// handful of bins at 48 kHz.
const (
	MinFFTSize     = 4096
	DefaultFFTSize = 8192
	MaxFFTSize     = 16384
)

// Default analyzer tuning. Values arriving from user-facing configuration
// are clamped into range before a Config is built; the analyzer itself does
// not re-validate them.
const (
	DefaultGain               = 1.0
	DefaultSmoothing          = 0.3
	DefaultDirectionThreshold = 0.01
	DefaultFrequencySmoothing = 0.3
	DefaultSpikeThreshold     = 2.0
)

// Config is the immutable analyzer parameter bundle. A settings change
// builds a new Config and hands it to the analyzer wholesale; instances are
// never mutated in place after construction.
//
// Expected ranges: Gain 0.1-5.0, Smoothing/DirectionThreshold/
// FrequencySmoothing 0-1, SpikeThreshold 0.5-5.0, FFTSize a power of two
// in [MinFFTSize, MaxFFTSize], BandCount == NumBands.
type Config struct {
	Gain               float64
	EnableAGC          bool
	Smoothing          float64
	DirectionThreshold float64
	FrequencySmoothing float64
	SpikeThreshold     float64
	FFTSize            int
	BandCount          int
}

// DefaultConfig returns the analyzer defaults: unity gain with AGC on,
// moderate smoothing, 8192-point transform.
func DefaultConfig() Config {
	return Config{
		Gain:               DefaultGain,
		EnableAGC:          true,
		Smoothing:          DefaultSmoothing,
		DirectionThreshold: DefaultDirectionThreshold,
		FrequencySmoothing: DefaultFrequencySmoothing,
		SpikeThreshold:     DefaultSpikeThreshold,
		FFTSize:            DefaultFFTSize,
		BandCount:          NumBands,
	}
}

// Equal reports whether two configurations match exactly. Float fields are
// compared with exact equality: callers use this to decide whether the
// analyzer needs reconfiguring, and any numeric drift means it does.
func (c Config) Equal(other Config) bool {
	return c == other
}
