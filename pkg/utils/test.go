// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"math/rand"
	"sync"
)

// MockTransport implements the transport interface for testing. It records
// every payload instead of transmitting and can be told to fail. Senders
// may run on their own goroutines, so access is serialized.
type MockTransport struct {
	mu     sync.Mutex
	sent   []any
	closed bool

	// Err, when set, is returned by every subsequent Send.
	Err error
}

// Send records the payload for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, data)
	return nil
}

// Close marks the transport closed. Recorded payloads stay inspectable.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SendCount returns how many payloads Send has accepted.
func (m *MockTransport) SendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// LastSent returns the most recent payload, or nil before the first Send.
func (m *MockTransport) LastSent() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	return m.sent[len(m.sent)-1]
}

// Closed reports whether Close has been called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GenerateStereoSine returns an interleaved stereo buffer of frames frames
// carrying one sine tone, with independent amplitudes per channel. Setting
// one amplitude to zero produces a hard-panned signal.
func GenerateStereoSine(frames int, sampleRate, frequency, leftAmp, rightAmp float64) []float32 {
	buffer := make([]float32, 2*frames)
	for i := 0; i < frames; i++ {
		t := float64(i) / sampleRate
		s := math.Sin(2 * math.Pi * frequency * t)
		buffer[2*i] = float32(s * leftAmp)
		buffer[2*i+1] = float32(s * rightAmp)
	}
	return buffer
}

// GenerateStereoComplex returns an interleaved stereo buffer carrying a
// 440 Hz fundamental plus two harmonics, identical on both channels.
func GenerateStereoComplex(frames int, sampleRate float64) []float32 {
	buffer := make([]float32, 2*frames)
	for i := 0; i < frames; i++ {
		t := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*t)*0.5 +
			math.Sin(2*math.Pi*880*t)*0.3 +
			math.Sin(2*math.Pi*1320*t)*0.2
		s := float32(signal * 0.9)
		buffer[2*i] = s
		buffer[2*i+1] = s
	}
	return buffer
}

// GenerateStereoNoise returns an interleaved stereo buffer of uniform
// broadband noise in [-0.5, 0.5]. The same seed reproduces the same
// buffer, keeping tests deterministic.
func GenerateStereoNoise(frames int, seed int64) []float32 {
	rng := rand.New(rand.NewSource(seed))
	buffer := make([]float32, 2*frames)
	for i := range buffer {
		buffer[i] = float32(rng.Float64() - 0.5)
	}
	return buffer
}

// FindPeakBin returns the index of the largest magnitude in
// [startBin, endBin], clamping the range to the slice bounds.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
