// SPDX-License-Identifier: MIT
package analysis

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// channelScratch holds one channel's transform buffers. Each channel owns
// its scratch permanently so the three per-buffer transforms never share
// storage and the hot path stays lock-free.
type channelScratch struct {
	samples   []float64    // Raw time-domain input, zero-padded to the transform size.
	windowed  []float64    // samples multiplied by the window coefficients.
	coeffs    []complex128 // One-sided FFT output (N/2 + 1 values).
	magnitude []float64    // Corrected magnitudes, same length as coeffs.
}

func newChannelScratch(fftSize int) channelScratch {
	bins := fftSize/2 + 1
	return channelScratch{
		samples:   make([]float64, fftSize),
		windowed:  make([]float64, fftSize),
		coeffs:    make([]complex128, bins),
		magnitude: make([]float64, bins),
	}
}

// spectrumWorkspace bundles the transform plan, window coefficients, and
// the left/right/mono channel scratch for one transform size. Reallocation
// happens only through resize, which callers serialize externally.
type spectrumWorkspace struct {
	fftSize    int
	sampleRate float64
	fft        *fourier.FFT
	window     []float64

	left  channelScratch
	right channelScratch
	mono  channelScratch
}

func newSpectrumWorkspace(fftSize int, sampleRate float64) *spectrumWorkspace {
	w := &spectrumWorkspace{sampleRate: sampleRate}
	w.resize(fftSize)
	return w
}

// resize reallocates every size-dependent buffer for the new transform size
// and regenerates the window coefficients. Callers must hold the engine lock.
func (w *spectrumWorkspace) resize(fftSize int) {
	w.fftSize = fftSize
	w.fft = fourier.NewFFT(fftSize)
	w.window = hammingWindow(fftSize)
	w.left = newChannelScratch(fftSize)
	w.right = newChannelScratch(fftSize)
	w.mono = newChannelScratch(fftSize)
}

// numBins returns the one-sided spectrum length for the current size.
func (w *spectrumWorkspace) numBins() int {
	return w.fftSize/2 + 1
}

// binWidth returns the frequency resolution in Hz per bin.
func (w *spectrumWorkspace) binWidth() float64 {
	return w.sampleRate / float64(w.fftSize)
}

// deinterleave splits an interleaved stereo buffer into the left, right,
// and mono sample arrays, zero-padding past the available frames so the
// transform size stays constant regardless of the device buffer size.
func (w *spectrumWorkspace) deinterleave(samples []float32) {
	frames := len(samples) / 2
	for i := 0; i < w.fftSize; i++ {
		if i < frames {
			l := float64(samples[2*i])
			r := float64(samples[2*i+1])
			w.left.samples[i] = l
			w.right.samples[i] = r
			w.mono.samples[i] = (l + r) * 0.5
		} else {
			w.left.samples[i] = 0 // Zero-padding.
			w.right.samples[i] = 0
			w.mono.samples[i] = 0
		}
	}
}

// transform windows one channel's samples, runs the real-input FFT, and
// writes one-sided corrected magnitudes into the channel scratch. Interior
// bins are scaled by 2/N; DC and Nyquist appear once in the one-sided
// spectrum so their doubling is given back.
func (w *spectrumWorkspace) transform(ch *channelScratch) {
	for i := 0; i < w.fftSize; i++ {
		ch.windowed[i] = ch.samples[i] * w.window[i]
	}

	w.fft.Coefficients(ch.coeffs, ch.windowed)

	scale := 2.0 / float64(w.fftSize)
	for i, c := range ch.coeffs {
		ch.magnitude[i] = cmplx.Abs(c) * scale
	}
	ch.magnitude[0] *= 0.5
	ch.magnitude[len(ch.magnitude)-1] *= 0.5
}

// hammingWindow returns freshly allocated Hamming coefficients. The slice
// is seeded with 1.0 first because the gonum window functions multiply in
// place rather than assign.
func hammingWindow(n int) []float64 {
	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	return window.Hamming(coeffs)
}
