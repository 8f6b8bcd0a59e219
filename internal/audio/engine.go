// SPDX-License-Identifier: MIT
/*
Package audio implements the real-time capture side of the pipeline:
- Audio input using PortAudio float32 streams
- Noise gate that feeds silence downstream instead of dropping frames
- Fan-out of analysis results to transports and an optional TUI feed
- WAV recording with atomic state management
- Stall watchdog that resets the analyzer when callbacks stop arriving

Thread Safety:
- Uses atomic operations for state management
- Pre-allocates buffers to avoid GC in hot path
- Locks OS thread during audio processing
*/
package audio

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"

	"github.com/imSoTn/audioreact/internal/analysis"
	"github.com/imSoTn/audioreact/internal/config"
	applog "github.com/imSoTn/audioreact/internal/log"
	"github.com/imSoTn/audioreact/internal/transport"
)

// DefaultResetTimeout is how long the watchdog tolerates not seeing a
// stream callback before it resets the analyzer's smoothing state.
const DefaultResetTimeout = 2 * time.Second

type Engine struct {
	// Core configuration and wiring.
	config   *config.Config
	analyzer *analysis.SpectrumAnalyzer

	// Audio input handling.
	inputBuffer  []float32
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// Noise gate for signal conditioning.
	gateEnabled   bool
	gateThreshold float32 // Peak amplitude ratio of full scale (0.0-1.0)

	// Result dispatch.
	sinks           []transport.Transport
	results         chan<- analysis.Result // Non-blocking TUI feed, may be nil
	scaleWithVolume bool

	// Adaptive FFT sizing, nil unless enabled.
	sizer       *analysis.AutoSizer
	frameBudget time.Duration

	// Stall watchdog.
	resetTimeout time.Duration
	lastCallback atomic.Int64 // Unix nanos of the most recent callback
	watchdogStop chan struct{}
	watchdogDone chan struct{}

	// Recording state and buffers.
	isRecording int32 // Atomic flag for thread-safe state
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer // Reusable buffer for format conversion
}

// NewEngine resolves the configured capture device and wires an engine to
// the given analyzer. The stream itself is opened by StartInputStream.
func NewEngine(cfg *config.Config, analyzer *analysis.SpectrumAnalyzer) (*Engine, error) {
	inputDevice, err := InputDevice(cfg.Audio.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get input device: %w", err)
	}

	// Pre-allocate the callback buffer sized for frames x channels.
	inputSize := cfg.Audio.FramesPerBuffer * cfg.Audio.Channels

	engine := &Engine{
		config:          cfg,
		analyzer:        analyzer,
		inputBuffer:     make([]float32, inputSize),
		inputDevice:     inputDevice,
		scaleWithVolume: cfg.Analysis.ScaleWithVolume,
		resetTimeout:    DefaultResetTimeout,
	}

	if cfg.Audio.LowLatency {
		engine.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		engine.inputLatency = inputDevice.DefaultHighInputLatency
	}

	if cfg.Audio.GateThreshold > 0 {
		engine.EnableGate()
		engine.SetGateThreshold(cfg.Audio.GateThreshold)
	}

	if cfg.Analysis.AutoFFTSize {
		engine.sizer = analysis.NewAutoSizer()
		engine.frameBudget = time.Duration(float64(cfg.Audio.FramesPerBuffer) / cfg.Audio.SampleRate * float64(time.Second))
	}

	applog.Debugf("AudioEngine: using device %q (latency: %s, gate: %v)",
		inputDevice.Name, engine.inputLatency, engine.gateEnabled)
	return engine, nil
}

// AddTransport registers a dispatch sink for analysis results. Sinks must
// be registered before the stream starts.
func (e *Engine) AddTransport(t transport.Transport) {
	e.sinks = append(e.sinks, t)
}

// SetResultChannel registers a feed of analysis results for the TUI.
// Sends never block; when the channel is full the frame is dropped.
func (e *Engine) SetResultChannel(ch chan<- analysis.Result) {
	e.results = ch
}

// SetResetTimeout adjusts how long the watchdog waits without callbacks
// before resetting the analyzer. Non-positive values are ignored.
func (e *Engine) SetResetTimeout(d time.Duration) {
	if d > 0 {
		e.resetTimeout = d
	}
}

// StartInputStream opens and starts the PortAudio capture stream and the
// stall watchdog.
func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.config.Audio.Channels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.config.Audio.FramesPerBuffer,
		SampleRate:      e.config.Audio.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	e.startWatchdog()

	applog.Infof("AudioEngine: Input stream started (%s, %.0f Hz, %d ch, %d frames)",
		e.inputDevice.Name, e.config.Audio.SampleRate, e.config.Audio.Channels, e.config.Audio.FramesPerBuffer)
	return nil
}

// StopInputStream stops the watchdog and tears down the capture stream.
// Safe to call when no stream is running.
func (e *Engine) StopInputStream() error {
	e.stopWatchdog()

	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return fmt.Errorf("failed to stop input stream: %w", err)
		}

		if err := e.inputStream.Close(); err != nil {
			return fmt.Errorf("failed to close input stream: %w", err)
		}

		e.inputStream = nil
		applog.Infof("AudioEngine: Input stream stopped")
	}

	return nil
}

// Close stops any active recording and tears down the input stream. The
// analyzer and the transports are owned by the caller and closed there.
func (e *Engine) Close() error {
	if atomic.LoadInt32(&e.isRecording) == 1 {
		if err := e.StopRecording(); err != nil {
			return err
		}
	}

	return e.StopInputStream()
}

// processInputStream is the core audio processing callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
// - No dynamic allocations in the hot path
func (e *Engine) processInputStream(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.lastCallback.Store(time.Now().UnixNano())
	copy(e.inputBuffer, in)

	// The recording tap runs first; the gate may zero the scratch copy.
	if atomic.LoadInt32(&e.isRecording) == 1 {
		e.writeRecording(e.inputBuffer)
	}

	e.processBuffer(e.inputBuffer)
}

// processBuffer runs one captured buffer through the gate and the analyzer
// and fans the result out to the registered sinks. The buffer is mutated
// in-place when the gate blocks it.
func (e *Engine) processBuffer(buffer []float32) {
	if e.gateBlocks(buffer) {
		// Zeroed, not skipped, so the analyzer's smoothing still decays.
		for i := range buffer {
			buffer[i] = 0
		}
	}

	start := time.Now()
	result := e.analyzer.ProcessAudioData(buffer, e.scaleWithVolume)
	if e.sizer != nil {
		e.sizer.Observe(time.Since(start))
		e.applySizeSuggestion()
	}

	e.publish(result)
}

// applySizeSuggestion steps the analyzer's FFT size when the governor has
// seen enough samples to recommend a change.
func (e *Engine) applySizeSuggestion() {
	cfg := e.analyzer.Config()
	size, ok := e.sizer.Suggest(cfg.FFTSize, e.frameBudget, time.Now())
	if !ok {
		return
	}

	cfg.FFTSize = size
	if err := e.analyzer.UpdateConfig(cfg); err != nil {
		applog.Warnf("AudioEngine: failed to apply FFT size %d: %v", size, err)
	}
}

// publish forwards a result to every registered sink and, when set, the
// result channel.
func (e *Engine) publish(result analysis.Result) {
	for _, sink := range e.sinks {
		if err := sink.Send(result); err != nil {
			applog.Warnf("AudioEngine: transport send failed: %v", err)
		}
	}

	if e.results != nil {
		select {
		case e.results <- result:
		default:
		}
	}
}

func (e *Engine) startWatchdog() {
	e.watchdogStop = make(chan struct{})
	e.watchdogDone = make(chan struct{})
	go e.watchdog(e.watchdogStop, e.watchdogDone)
}

func (e *Engine) stopWatchdog() {
	if e.watchdogStop == nil {
		return
	}
	close(e.watchdogStop)
	<-e.watchdogDone
	e.watchdogStop = nil
	e.watchdogDone = nil
}

// watchdog resets the analyzer when callbacks stop arriving, so a stalled
// or unplugged device leaves centered silence instead of frozen values.
func (e *Engine) watchdog(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	poll := e.resetTimeout / 4
	if poll < time.Millisecond {
		poll = time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	resetDone := false
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			last := e.lastCallback.Load()
			if last == 0 {
				continue
			}
			if time.Since(time.Unix(0, last)) < e.resetTimeout {
				resetDone = false
				continue
			}
			if !resetDone {
				applog.Warnf("AudioEngine: no callback for %s, resetting analyzer", e.resetTimeout)
				e.analyzer.Reset()
				resetDone = true
			}
		}
	}
}
