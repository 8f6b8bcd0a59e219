// SPDX-License-Identifier: MIT
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/imSoTn/audioreact/cmd"
	"github.com/imSoTn/audioreact/internal/analysis"
	"github.com/imSoTn/audioreact/internal/audio"
	"github.com/imSoTn/audioreact/internal/config"
	applog "github.com/imSoTn/audioreact/internal/log"
	"github.com/imSoTn/audioreact/internal/transport"
	"github.com/imSoTn/audioreact/internal/transport/udp"
	"github.com/imSoTn/audioreact/internal/tui"
	"github.com/imSoTn/audioreact/pkg/build"
)

// bytesPerSample is the capture stride: PortAudio delivers float32 frames.
const bytesPerSample = 4

// main runs in three phases: cold startup (build info, PortAudio, CLI and
// config), the hot capture/analysis/dispatch loop, and cold shutdown on
// SIGINT/SIGTERM or when the TUI exits.
func main() {
	// ==================== STARTUP ====================

	if err := build.Initialize(); err != nil {
		applog.Fatalf("Main: %v", err)
	}

	// One thread for the capture callback, one for UI and dispatch.
	runtime.GOMAXPROCS(2)

	if err := audio.Initialize(); err != nil {
		applog.Fatalf("Main: %v", err)
	}
	defer audio.Terminate()

	cfg, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatalf("Main: %v", err)
	}
	if cfg == nil {
		// cobra already handled the invocation (--help, --version).
		return
	}

	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}
	if cfg.Debug {
		applog.SetLevel(applog.LevelDebug)
	}

	switch cfg.Command {
	case "list":
		if cfg.TUIMode {
			err = tui.StartDeviceListUI()
		} else {
			err = audio.ListDevices()
		}
		if err != nil {
			applog.Fatalf("Main: %v", err)
		}
		return
	case "version":
		info := build.GetBuildFlags()
		fmt.Printf("%s %s (%s, built %s)\n", info.Name, info.Version, info.Commit, info.Time)
		return
	}

	// ==================== HOT PATH ====================

	analyzer, err := analysis.NewSpectrumAnalyzer(cfg.EngineConfig(), cfg.Audio.SampleRate, bytesPerSample)
	if err != nil {
		applog.Fatalf("Main: %v", err)
	}
	defer analyzer.Close()

	if err := analyzer.UpdateEnabledBands(cfg.EnabledBands()); err != nil {
		applog.Fatalf("Main: %v", err)
	}

	engine, err := audio.NewEngine(cfg, analyzer)
	if err != nil {
		applog.Fatalf("Main: %v", err)
	}

	sinks := wireTransports(cfg, engine)
	defer func() {
		for _, sink := range sinks {
			if err := sink.Close(); err != nil {
				applog.Warnf("Main: transport close: %v", err)
			}
		}
	}()

	var results chan analysis.Result
	if cfg.TUIMode {
		results = make(chan analysis.Result, 8)
		engine.SetResultChannel(results)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	if err := engine.StartInputStream(); err != nil {
		applog.Fatalf("Main: %v", err)
	}

	if cfg.Recording.Enabled {
		if err := engine.StartRecording(cfg.Recording.OutputFile); err != nil {
			applog.Fatalf("Main: %v", err)
		}
	}

	if cfg.TUIMode {
		if err := tui.StartMeterUI(results); err != nil {
			applog.Errorf("Main: meter UI: %v", err)
		}
	} else {
		<-done
	}

	// ==================== SHUTDOWN ====================

	if cfg.Recording.Enabled {
		if err := engine.StopRecording(); err != nil {
			applog.Errorf("Main: stopping recording: %v", err)
		} else {
			applog.Infof("Main: recording saved to %s", cfg.Recording.OutputFile)
		}
	}

	if err := engine.Close(); err != nil {
		applog.Errorf("Main: closing audio engine: %v", err)
	}
}

// wireTransports builds the configured dispatch sinks and registers them
// with the capture engine. With nothing configured, a debug logging sink
// keeps the pipeline observable.
func wireTransports(cfg *config.Config, engine *audio.Engine) []transport.Transport {
	var sinks []transport.Transport

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			applog.Fatalf("Main: %v", err)
		}
		publisher, err := udp.NewPublisher(udpInterval(cfg), sender)
		if err != nil {
			applog.Fatalf("Main: %v", err)
		}
		publisher.Start()

		engine.AddTransport(publisher)
		sinks = append(sinks, publisher, senderCloser{sender})
	}

	if cfg.Transport.WebSocketEnabled {
		hub := transport.NewWebSocketHub(cfg.Transport.WebSocketAddress, wsInterval(cfg))
		engine.AddTransport(hub)
		sinks = append(sinks, hub)
	}

	if len(sinks) == 0 {
		sink := transport.NewResultLogger()
		engine.AddTransport(sink)
		sinks = append(sinks, sink)
	}

	return sinks
}

func udpInterval(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Transport.UDPIntervalMs) * time.Millisecond
}

func wsInterval(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Transport.WebSocketIntervalMs) * time.Millisecond
}

// senderCloser adapts the raw UDP socket into the sink list so shutdown
// closes it after its publisher.
type senderCloser struct {
	sender *udp.Sender
}

func (s senderCloser) Send(data any) error { return nil }
func (s senderCloser) Close() error        { return s.sender.Close() }
