// SPDX-License-Identifier: MIT
package utils

import (
	"errors"
	"math"
	"os"
	"testing"
)

const (
	testFrames     = 1024
	testSampleRate = 48000
	testFrequency  = 440.0 // A4 note
)

var testMagnitudes []float64

func TestMain(m *testing.M) {
	testMagnitudes = make([]float64, testFrames)

	// Create a peaked distribution with a known peak.
	for i := range testMagnitudes {
		// Creates a "hill" with peak at position testFrames/4.
		testMagnitudes[i] = math.Exp(-0.01 * math.Pow(float64(i-testFrames/4), 2))
	}

	os.Exit(m.Run())
}

func TestMockTransport(t *testing.T) {
	mt := &MockTransport{}

	if mt.SendCount() != 0 {
		t.Errorf("New MockTransport send count = %d, want 0", mt.SendCount())
	}
	if mt.LastSent() != nil {
		t.Error("New MockTransport should have no last payload")
	}

	payloads := []any{"first", 42, []float64{0.1, 0.2}}
	for _, p := range payloads {
		if err := mt.Send(p); err != nil {
			t.Errorf("MockTransport.Send() error = %v", err)
		}
	}

	if mt.SendCount() != len(payloads) {
		t.Errorf("MockTransport send count = %d, want %d", mt.SendCount(), len(payloads))
	}
	if got, ok := mt.LastSent().([]float64); !ok || len(got) != 2 {
		t.Errorf("MockTransport last payload = %v, want the final slice", mt.LastSent())
	}

	if mt.Closed() {
		t.Error("MockTransport should not report closed before Close()")
	}
	if err := mt.Close(); err != nil {
		t.Errorf("MockTransport.Close() error = %v", err)
	}
	if !mt.Closed() {
		t.Error("MockTransport should report closed after Close()")
	}
}

func TestMockTransportInjectedError(t *testing.T) {
	sentinel := errors.New("send failed")
	mt := &MockTransport{Err: sentinel}

	if err := mt.Send("payload"); !errors.Is(err, sentinel) {
		t.Errorf("MockTransport.Send() error = %v, want %v", err, sentinel)
	}
	if mt.SendCount() != 0 {
		t.Errorf("Failed send should not be recorded, count = %d", mt.SendCount())
	}
}

func TestGenerateStereoSine(t *testing.T) {
	tests := []struct {
		name      string
		frames    int
		frequency float64
		leftAmp   float64
		rightAmp  float64
	}{
		{"A4 Note", 1024, 440.0, 0.5, 0.5},
		{"Middle C", 1024, 261.63, 0.8, 0.8},
		{"Right Only", 1024, 1000.0, 0.0, 0.5},
		{"Left Only", 1024, 1000.0, 0.5, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateStereoSine(tt.frames, testSampleRate, tt.frequency, tt.leftAmp, tt.rightAmp)

			if len(result) != 2*tt.frames {
				t.Errorf("GenerateStereoSine() buffer size = %d, want %d",
					len(result), 2*tt.frames)
			}

			// A zero-amplitude channel must be exactly silent.
			if tt.leftAmp == 0 {
				for i := 0; i < tt.frames; i++ {
					if result[2*i] != 0 {
						t.Fatalf("Left sample %d = %v, want 0", i, result[2*i])
					}
				}
			}
			if tt.rightAmp == 0 {
				for i := 0; i < tt.frames; i++ {
					if result[2*i+1] != 0 {
						t.Fatalf("Right sample %d = %v, want 0", i, result[2*i+1])
					}
				}
			}

			// Verify the tone period via zero crossings on a live channel.
			if tt.leftAmp > 0 {
				samplesPerCycle := testSampleRate / tt.frequency
				crossCount := 0
				for i := 1; i < tt.frames; i++ {
					prev, cur := result[2*(i-1)], result[2*i]
					if (prev < 0 && cur >= 0) || (prev >= 0 && cur < 0) {
						crossCount++
					}
				}
				expectedCrossings := float64(tt.frames) / (samplesPerCycle / 2)
				tolerance := 0.2 * expectedCrossings

				if math.Abs(float64(crossCount)-expectedCrossings) > tolerance {
					t.Errorf("GenerateStereoSine() zero crossings = %d, expected approximately %.1f±%.1f",
						crossCount, expectedCrossings, tolerance)
				}
			}
		})
	}
}

func TestGenerateStereoComplex(t *testing.T) {
	result := GenerateStereoComplex(testFrames, testSampleRate)

	if len(result) != 2*testFrames {
		t.Errorf("GenerateStereoComplex() buffer size = %d, want %d",
			len(result), 2*testFrames)
	}

	hasNonZero := false
	for i := 0; i < testFrames; i++ {
		if result[2*i] != result[2*i+1] {
			t.Fatalf("Frame %d differs between channels: %v vs %v",
				i, result[2*i], result[2*i+1])
		}
		if result[2*i] != 0 {
			hasNonZero = true
		}
	}

	if !hasNonZero {
		t.Error("GenerateStereoComplex() produced all zeros")
	}
}

func TestGenerateStereoNoise(t *testing.T) {
	a := GenerateStereoNoise(testFrames, 7)
	b := GenerateStereoNoise(testFrames, 7)
	c := GenerateStereoNoise(testFrames, 8)

	if len(a) != 2*testFrames {
		t.Errorf("GenerateStereoNoise() buffer size = %d, want %d", len(a), 2*testFrames)
	}

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Same seed diverged at sample %d: %v vs %v", i, a[i], b[i])
		}
		if a[i] < -0.5 || a[i] > 0.5 {
			t.Fatalf("Sample %d = %v outside [-0.5, 0.5]", i, a[i])
		}
	}

	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("Different seeds produced identical buffers")
	}
}

func TestFindPeakBin(t *testing.T) {
	tests := []struct {
		name     string
		mags     []float64
		start    int
		end      int
		expected int
	}{
		{"Full Range", testMagnitudes, 0, testFrames - 1, testFrames / 4},
		{"Partial Range Start", testMagnitudes, testFrames / 8, testFrames - 1, testFrames / 4},
		{"Partial Range End", testMagnitudes, 0, testFrames / 3, testFrames / 4},
		{"Negative Start", testMagnitudes, -10, testFrames - 1, testFrames / 4},
		{"Out of Range End", testMagnitudes, 0, testFrames * 2, testFrames / 4},
		{"Empty Slice", []float64{}, 0, 10, 0},
		{"Single Value", []float64{1.0}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FindPeakBin(tt.mags, tt.start, tt.end)

			if len(tt.mags) == 0 {
				return
			}

			if result != tt.expected {
				t.Errorf("FindPeakBin() = %d, want %d", result, tt.expected)
			}
		})
	}

	allocs := testing.AllocsPerRun(100, func() {
		FindPeakBin(testMagnitudes, 0, len(testMagnitudes)-1)
	})

	if allocs > 0 {
		t.Errorf("FindPeakBin allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func BenchmarkGenerateStereoSine(b *testing.B) {
	benchmarks := []struct {
		name   string
		frames int
	}{
		{"Small", 64},
		{"Standard", 1024},
		{"Large", 8192},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				GenerateStereoSine(bm.frames, testSampleRate, testFrequency, 0.5, 0.5)
			}
		})
	}
}

func BenchmarkFindPeakBin(b *testing.B) {
	benchmarks := []struct {
		name string
		size int
	}{
		{"Small", 64},
		{"Standard", 1024},
		{"Large", 8192},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			mags := make([]float64, bm.size)
			peakPos := bm.size / 2
			for i := range mags {
				mags[i] = math.Exp(-0.01 * math.Pow(float64(i-peakPos), 2))
			}

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				FindPeakBin(mags, 0, bm.size-1)
			}
		})
	}
}
