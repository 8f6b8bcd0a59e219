// SPDX-License-Identifier: MIT
//
// Package cmd parses the command line into the application configuration.
// Precedence, lowest to highest: built-in defaults, YAML file, AUDIOREACT_*
// environment, flags the user actually set.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/imSoTn/audioreact/internal/config"
	"github.com/imSoTn/audioreact/pkg/build"
)

const appDescription = "Real-time stereo spectral analysis for avatar control"

// flagValues collects flag destinations. Only flags marked changed
// override the loaded configuration, so file and environment settings
// survive unless the user says otherwise.
type flagValues struct {
	configPath string

	device          int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	gate            float64

	fftSize            int
	gain               float64
	agc                bool
	smoothing          float64
	directionThreshold float64
	frequencySmoothing float64
	spikeThreshold     float64
	scaleWithVolume    bool

	record    bool
	output    string
	udpTarget string

	noTUI   bool
	verbose bool
}

// ParseArgs builds the effective configuration from the command line.
// The returned config is nil without error when cobra already handled the
// invocation itself (--help, --version).
func ParseArgs() (*config.Config, error) {
	buildInfo := build.GetBuildFlags()

	var (
		cfg   *config.Config
		flags flagValues
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         appDescription,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.TUIMode = !flags.noTUI
			return nil
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	pf := rootCmd.PersistentFlags()

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return err
		}

		set := pf.Changed
		if set("device") {
			loaded.Audio.DeviceID = flags.device
		}
		if set("sample-rate") {
			loaded.Audio.SampleRate = flags.sampleRate
		}
		if set("frames-per-buffer") {
			loaded.Audio.FramesPerBuffer = flags.framesPerBuffer
		}
		if set("low-latency") {
			loaded.Audio.LowLatency = flags.lowLatency
		}
		if set("gate") {
			loaded.Audio.GateThreshold = flags.gate
		}
		if set("fft-size") {
			loaded.Analysis.FFTSize = flags.fftSize
		}
		if set("gain") {
			loaded.Analysis.Gain = flags.gain
		}
		if set("agc") {
			loaded.Analysis.EnableAGC = flags.agc
		}
		if set("smoothing") {
			loaded.Analysis.Smoothing = flags.smoothing
		}
		if set("direction-threshold") {
			loaded.Analysis.DirectionThreshold = flags.directionThreshold
		}
		if set("frequency-smoothing") {
			loaded.Analysis.FrequencySmoothing = flags.frequencySmoothing
		}
		if set("spike-threshold") {
			loaded.Analysis.SpikeThreshold = flags.spikeThreshold
		}
		if set("scale-with-volume") {
			loaded.Analysis.ScaleWithVolume = flags.scaleWithVolume
		}
		if set("record") {
			loaded.Recording.Enabled = flags.record
		}
		if set("output") {
			loaded.Recording.OutputFile = flags.output
		}
		if set("udp-target") {
			loaded.Transport.UDPTargetAddress = flags.udpTarget
			loaded.Transport.UDPEnabled = true
		}
		if flags.verbose {
			loaded.Debug = true
			loaded.LogLevel = "debug"
		}

		// Flags can push values past what the file layer accepted.
		if err := loaded.Validate(); err != nil {
			return err
		}

		cfg = loaded
		return nil
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Run: func(cmd *cobra.Command, args []string) {
			cfg.Command = "list"
			cfg.TUIMode = !flags.noTUI
		},
	}
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show build information",
		Run: func(cmd *cobra.Command, args []string) {
			cfg.Command = "version"
		},
	}
	rootCmd.AddCommand(listCmd, versionCmd)

	pf.StringVar(&flags.configPath, "config", "",
		"Path to a YAML configuration file")

	pf.IntVarP(&flags.device, "device", "d", config.MinDeviceID,
		"Input device ID, use the 'list' command to see available devices")
	pf.Float64VarP(&flags.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate in Hertz")
	pf.IntVarP(&flags.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"Frames per capture buffer (affects latency)")
	pf.BoolVarP(&flags.lowLatency, "low-latency", "l", false,
		"Request the device's low-latency mode")
	pf.Float64Var(&flags.gate, "gate", 0,
		"Noise gate threshold as a fraction of full scale, 0 disables")

	pf.IntVar(&flags.fftSize, "fft-size", 8192,
		"FFT transform size (4096, 8192, or 16384)")
	pf.Float64Var(&flags.gain, "gain", 1.0,
		"Manual gain, only applied while AGC is off")
	pf.BoolVar(&flags.agc, "agc", true,
		"Enable automatic gain control")
	pf.Float64Var(&flags.smoothing, "smoothing", 0.3,
		"Volume and direction smoothing factor [0,1]")
	pf.Float64Var(&flags.directionThreshold, "direction-threshold", 0.01,
		"Raw volume below which the direction decays to center")
	pf.Float64Var(&flags.frequencySmoothing, "frequency-smoothing", 0.3,
		"Per-band smoothing factor [0,1]")
	pf.Float64Var(&flags.spikeThreshold, "spike-threshold", 2.0,
		"Relative loudness jump that raises the spike flag [0.5,5]")
	pf.BoolVar(&flags.scaleWithVolume, "scale-with-volume", false,
		"Scale band output by volume instead of normalizing to 1.0")

	pf.BoolVarP(&flags.record, "record", "r", false,
		"Record the raw capture stream to a WAV file")
	pf.StringVarP(&flags.output, "output", "o", "",
		"Recording output file")
	pf.StringVar(&flags.udpTarget, "udp-target", "",
		"UDP dispatch target (host:port), enables the UDP publisher")

	pf.BoolVar(&flags.noTUI, "no-tui", false,
		"Run headless without the terminal meter")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false,
		"Enable debug logging")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return cfg, nil
}
