// SPDX-License-Identifier: MIT
//
// Package config holds the application-level configuration: the YAML file
// shape, environment overrides, and validation. It produces the analyzer's
// own parameter bundle via EngineConfig; the analyzer never reads
// configuration from global state itself.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/imSoTn/audioreact/internal/analysis"
	"github.com/imSoTn/audioreact/pkg/bitint"
)

const (
	// MinDeviceID selects the system default capture device.
	MinDeviceID = -1

	DefaultSampleRate      = 48000.0
	DefaultChannels        = 2
	DefaultFramesPerBuffer = 1024

	DefaultUDPTarget     = "127.0.0.1:9090"
	DefaultUDPIntervalMs = 33 // ~30 Hz
	DefaultWSAddress     = ":8765"
	DefaultWSIntervalMs  = 100

	// Spike threshold bounds, the range the clamp in EngineConfig enforces.
	minSpikeThreshold = 0.5
	maxSpikeThreshold = 5.0
)

// Config is the full application configuration, merged from defaults, the
// YAML file, and AUDIOREACT_* environment overrides, in that order.
type Config struct {
	Debug    bool   `yaml:"debug" env:"AUDIOREACT_DEBUG"`
	LogLevel string `yaml:"log_level" env:"AUDIOREACT_LOG_LEVEL" validate:"omitempty,oneof=debug info warn warning error fatal"`

	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`

	// Set by the CLI, never from file or environment.
	Command string `yaml:"-"`
	TUIMode bool   `yaml:"-"`
}

// AudioConfig holds the capture stream settings.
type AudioConfig struct {
	DeviceID        int     `yaml:"device_id" env:"AUDIOREACT_DEVICE_ID"`
	SampleRate      float64 `yaml:"sample_rate" env:"AUDIOREACT_SAMPLE_RATE" validate:"gte=8000,lte=192000"`
	Channels        int     `yaml:"channels" validate:"gte=1,lte=2"`
	FramesPerBuffer int     `yaml:"frames_per_buffer" env:"AUDIOREACT_FRAMES_PER_BUFFER" validate:"gte=64,lte=8192"`
	LowLatency      bool    `yaml:"low_latency"`

	// GateThreshold is the capture-side noise gate, peak amplitude as a
	// fraction of full scale. Zero disables the gate.
	GateThreshold float64 `yaml:"gate_threshold" validate:"gte=0,lte=1"`
}

// AnalysisConfig holds the user-facing analyzer tuning. Values are clamped
// into the analyzer's accepted ranges by EngineConfig, so a hand-edited
// file cannot push the engine out of spec.
type AnalysisConfig struct {
	Gain               float64 `yaml:"gain" env:"AUDIOREACT_GAIN"`
	EnableAGC          bool    `yaml:"enable_agc" env:"AUDIOREACT_ENABLE_AGC"`
	Smoothing          float64 `yaml:"smoothing"`
	DirectionThreshold float64 `yaml:"direction_threshold"`
	FrequencySmoothing float64 `yaml:"frequency_smoothing"`
	SpikeThreshold     float64 `yaml:"spike_threshold"`
	FFTSize            int     `yaml:"fft_size" env:"AUDIOREACT_FFT_SIZE"`
	ScaleWithVolume    bool    `yaml:"scale_with_volume"`

	// EnabledBands selects which of the seven bands contribute to the
	// output. Empty means all enabled.
	EnabledBands []bool `yaml:"enabled_bands"`

	// AutoFFTSize lets the capture engine step the transform size when
	// processing cost crowds the buffer period.
	AutoFFTSize bool `yaml:"auto_fft_size"`
}

// RecordingConfig holds the raw capture WAV tap settings.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"output_file"`
}

// TransportConfig holds the result dispatch settings. Intervals are in
// milliseconds; both publishers rate-limit to them.
type TransportConfig struct {
	UDPEnabled       bool   `yaml:"udp_enabled" env:"AUDIOREACT_UDP_ENABLED"`
	UDPTargetAddress string `yaml:"udp_target_address" env:"AUDIOREACT_UDP_TARGET_ADDRESS" validate:"omitempty,hostname_port"`
	UDPIntervalMs    int    `yaml:"udp_interval_ms" env:"AUDIOREACT_UDP_INTERVAL_MS" validate:"gte=0,lte=10000"`

	WebSocketEnabled    bool   `yaml:"websocket_enabled" env:"AUDIOREACT_WEBSOCKET_ENABLED"`
	WebSocketAddress    string `yaml:"websocket_address" env:"AUDIOREACT_WEBSOCKET_ADDRESS"`
	WebSocketIntervalMs int    `yaml:"websocket_interval_ms" validate:"gte=0,lte=10000"`
}

// Default returns the built-in configuration: default capture device at
// 48 kHz stereo, analyzer defaults, all transports off.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			DeviceID:        MinDeviceID,
			SampleRate:      DefaultSampleRate,
			Channels:        DefaultChannels,
			FramesPerBuffer: DefaultFramesPerBuffer,
		},
		Analysis: AnalysisConfig{
			Gain:               analysis.DefaultGain,
			EnableAGC:          true,
			Smoothing:          analysis.DefaultSmoothing,
			DirectionThreshold: analysis.DefaultDirectionThreshold,
			FrequencySmoothing: analysis.DefaultFrequencySmoothing,
			SpikeThreshold:     analysis.DefaultSpikeThreshold,
			FFTSize:            analysis.DefaultFFTSize,
		},
		Recording: RecordingConfig{
			OutputFile: "recording.wav",
		},
		Transport: TransportConfig{
			UDPTargetAddress:    DefaultUDPTarget,
			UDPIntervalMs:       DefaultUDPIntervalMs,
			WebSocketAddress:    DefaultWSAddress,
			WebSocketIntervalMs: DefaultWSIntervalMs,
		},
	}
}

var validate = validator.New()

// Validate checks the struct tags plus the cross-field rules the tags
// cannot express. Range drift in the analysis block is not an error here;
// EngineConfig clamps it.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if !bitint.IsPowerOfTwo(c.Analysis.FFTSize) ||
		c.Analysis.FFTSize < analysis.MinFFTSize || c.Analysis.FFTSize > analysis.MaxFFTSize {
		return fmt.Errorf("analysis.fft_size must be a power of two in [%d, %d], got %d",
			analysis.MinFFTSize, analysis.MaxFFTSize, c.Analysis.FFTSize)
	}

	if n := len(c.Analysis.EnabledBands); n != 0 && n != analysis.NumBands {
		return fmt.Errorf("analysis.enabled_bands must have %d entries, got %d", analysis.NumBands, n)
	}

	if c.Transport.UDPEnabled && c.Transport.UDPTargetAddress == "" {
		return fmt.Errorf("transport.udp_target_address must be set when UDP is enabled")
	}
	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddress == "" {
		return fmt.Errorf("transport.websocket_address must be set when the WebSocket monitor is enabled")
	}

	return nil
}

// EngineConfig builds the analyzer parameter bundle, clamping every numeric
// field into the analyzer's accepted range. The analyzer does not
// re-validate ranges, so this is where out-of-range file values die.
func (c *Config) EngineConfig() analysis.Config {
	return analysis.Config{
		Gain:               clamp(c.Analysis.Gain, analysis.MinGain, analysis.MaxGain),
		EnableAGC:          c.Analysis.EnableAGC,
		Smoothing:          clamp(c.Analysis.Smoothing, 0, 1),
		DirectionThreshold: clamp(c.Analysis.DirectionThreshold, 0, 1),
		FrequencySmoothing: clamp(c.Analysis.FrequencySmoothing, 0, 1),
		SpikeThreshold:     clamp(c.Analysis.SpikeThreshold, minSpikeThreshold, maxSpikeThreshold),
		FFTSize:            c.Analysis.FFTSize,
		BandCount:          analysis.NumBands,
	}
}

// EnabledBands returns the configured band mask, or an all-enabled mask
// when the file left it empty.
func (c *Config) EnabledBands() []bool {
	mask := make([]bool, analysis.NumBands)
	if len(c.Analysis.EnabledBands) == analysis.NumBands {
		copy(mask, c.Analysis.EnabledBands)
		return mask
	}
	for i := range mask {
		mask[i] = true
	}
	return mask
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
