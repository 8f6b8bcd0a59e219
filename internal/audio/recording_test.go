// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/imSoTn/audioreact/internal/config"
)

var testRecordingDir string

func init() {
	var err error
	testRecordingDir, err = os.MkdirTemp("", "test_recording")
	if err != nil {
		panic("Failed to create temp dir for recording tests: " + err.Error())
	}
}

func newTestEngine() *Engine {
	return &Engine{
		config: &config.Config{
			Audio: config.AudioConfig{
				SampleRate:      testSampleRate,
				Channels:        2,
				FramesPerBuffer: testFrameSize,
			},
		},
		resetTimeout: DefaultResetTimeout,
	}
}

func TestRecordingStartStopHotPath(t *testing.T) {
	filename := filepath.Join(testRecordingDir, "test_recording.wav")
	engine := newTestEngine()

	if err := engine.StartRecording(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}

	if atomic.LoadInt32(&engine.isRecording) != 1 {
		t.Error("Engine should be in recording state")
	}

	if engine.outputFile == nil {
		t.Error("Output file should be initialized")
	}

	if engine.wavEncoder == nil {
		t.Error("WAV encoder should be initialized")
	}

	if engine.sampleBuf == nil {
		t.Error("Sample buffer should be initialized")
	}

	if engine.sampleBuf.Format.NumChannels != engine.config.Audio.Channels {
		t.Errorf("Buffer channels mismatch: got %d, want %d",
			engine.sampleBuf.Format.NumChannels, engine.config.Audio.Channels)
	}

	if engine.sampleBuf.Format.SampleRate != int(engine.config.Audio.SampleRate) {
		t.Errorf("Buffer sample rate mismatch: got %d, want %d",
			engine.sampleBuf.Format.SampleRate, int(engine.config.Audio.SampleRate))
	}

	if len(engine.sampleBuf.Data) != engine.config.Audio.FramesPerBuffer*engine.config.Audio.Channels {
		t.Errorf("Buffer size mismatch: got %d, want %d",
			len(engine.sampleBuf.Data), engine.config.Audio.FramesPerBuffer*engine.config.Audio.Channels)
	}

	// Store reference to check file closure.
	outputFile := engine.outputFile

	if err := engine.StopRecording(); err != nil {
		t.Fatalf("Failed to stop recording: %v", err)
	}

	if atomic.LoadInt32(&engine.isRecording) != 0 {
		t.Error("Engine should not be in recording state after stopping")
	}

	if engine.outputFile != nil {
		t.Error("Output file should be nil after stopping")
	}

	if engine.wavEncoder != nil {
		t.Error("WAV encoder should be nil after stopping")
	}

	if err := outputFile.Close(); err == nil {
		t.Error("File should already be closed")
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		t.Error("Recording file was not created")
	}

	os.Remove(filename)
}

func TestRecordingErrorCases(t *testing.T) {
	tests := []struct {
		desc          string
		filename      string
		isRecording   int32
		expectError   bool
		errorContains string
	}{
		{"Already recording", "valid.wav", 1, true, "already recording"},
		{"Invalid path", "/nonexistent/path/file.wav", 0, true, ""},
		{"Valid path", "test.wav", 0, false, ""},
		{"Stop when not recording", "", 0, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			var err error
			engine := newTestEngine()

			atomic.StoreInt32(&engine.isRecording, tt.isRecording) // Set recording state

			if tt.desc == "Stop when not recording" {
				err = engine.StopRecording()
			} else {
				filename := tt.filename
				if tt.errorContains == "" && !tt.expectError {
					filename = filepath.Join(testRecordingDir, tt.filename)
				}

				err = engine.StartRecording(filename)
				if err == nil {
					_ = engine.StopRecording()
				}
			}

			if tt.expectError && err == nil {
				t.Errorf("Expected error but got none")
			}

			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}

			if tt.errorContains != "" && err != nil {
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Error %q does not contain %q", err.Error(), tt.errorContains)
				}
			}
		})
	}
}

func TestCloseEngineWithRecording(t *testing.T) {
	filename := filepath.Join(testRecordingDir, "test_close_engine.wav")
	engine := newTestEngine()

	if err := engine.StartRecording(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}

	if err := engine.Close(); err != nil {
		t.Fatalf("Failed to close engine: %v", err)
	}

	if atomic.LoadInt32(&engine.isRecording) != 0 {
		t.Error("Engine should not be in recording state after Close()")
	}

	if engine.outputFile != nil {
		t.Error("Output file should be nil after Close()")
	}

	if engine.wavEncoder != nil {
		t.Error("WAV encoder should be nil after Close()")
	}
}

func TestConvertSamples(t *testing.T) {
	fullScale := int(math.MaxInt32)
	src := []float32{0, 0.5, -0.5, 1.0, -1.0, 1.5, -1.5}
	want := []int{0, fullScale / 2, -(fullScale / 2), fullScale, -fullScale, fullScale, -fullScale}

	dst := make([]int, len(src))
	convertSamples(dst, src)

	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("convertSamples[%d] = %d, want %d", i, dst[i], want[i])
		}
	}
}

func TestConvertSamplesLengthMismatch(t *testing.T) {
	src := []float32{0.5, -0.5, 0.25, -0.25}

	// A short destination takes the prefix, without panicking.
	short := make([]int, 2)
	convertSamples(short, src)
	if short[0] != int(math.MaxInt32)/2 {
		t.Errorf("Short dst[0] = %d, want %d", short[0], int(math.MaxInt32)/2)
	}

	// A long destination leaves its tail untouched.
	long := make([]int, 6)
	long[5] = 42
	convertSamples(long, src)
	if long[5] != 42 {
		t.Errorf("Long dst tail = %d, want untouched 42", long[5])
	}
}

func TestRecordingNoAllocsHotPath(t *testing.T) {
	engine := newTestEngine()

	filename := filepath.Join(testRecordingDir, "test_alloc.wav")
	if err := engine.StartRecording(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	defer engine.StopRecording()

	// Test for zero allocations during the conversion tap.
	allocs := testing.AllocsPerRun(100, func() {
		if atomic.LoadInt32(&engine.isRecording) == 1 && engine.sampleBuf != nil {
			convertSamples(engine.sampleBuf.Data, testBuffer)
		}
	})

	if allocs > 0 {
		t.Errorf("Recording hot path allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func BenchmarkRecordingStartStopHotPath(b *testing.B) {
	engine := newTestEngine()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		filename := filepath.Join(testRecordingDir, "bench.wav")
		_ = os.Remove(filename) // Ensure clean state for each iteration
		_ = engine.StartRecording(filename)
		_ = engine.StopRecording()
	}
}

func BenchmarkRecordingConvertHotPath(b *testing.B) {
	engine := newTestEngine()

	filename := filepath.Join(testRecordingDir, "bench_convert.wav")
	if err := engine.StartRecording(filename); err != nil {
		b.Fatalf("Failed to start recording: %v", err)
	}
	defer engine.StopRecording()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		convertSamples(engine.sampleBuf.Data, testBuffer)
	}
}
