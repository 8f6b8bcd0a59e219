// SPDX-License-Identifier: MIT
package analysis

import "math"

// FrequencyBand is one named contiguous frequency range aggregated from
// multiple FFT bins.
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// frequencyBands is the canonical band table, ordered low to high. Adjacent
// bands share an edge; each bin lands in exactly one band because ranges are
// half-open [LowHz, HighHz). The Brilliance ceiling exceeds the 48 kHz
// Nyquist frequency and is clamped to it during bin mapping.
var frequencyBands = [NumBands]FrequencyBand{
	{Name: "Sub Bass", LowHz: 20, HighHz: 60},
	{Name: "Bass", LowHz: 60, HighHz: 250},
	{Name: "Low-Mid", LowHz: 250, HighHz: 500},
	{Name: "Mid", LowHz: 500, HighHz: 2000},
	{Name: "Upper-Mid", LowHz: 2000, HighHz: 4000},
	{Name: "Presence", LowHz: 4000, HighHz: 6000},
	{Name: "Brilliance", LowHz: 6000, HighHz: 25000},
}

// Bands returns a copy of the band table.
func Bands() [NumBands]FrequencyBand {
	return frequencyBands
}

// BandName returns the display name for a band index, or "" if the index is
// out of range.
func BandName(i int) string {
	if i < 0 || i >= NumBands {
		return ""
	}
	return frequencyBands[i].Name
}

// binRange maps the band onto FFT bin indices for the given bin width
// (sampleRate / fftSize). A bin belongs to the band when its center
// frequency falls in [LowHz, HighHz). The returned range is [start, end);
// end is clamped to numBins so the top band absorbs everything up to and
// including the Nyquist bin.
func (b FrequencyBand) binRange(binWidth float64, numBins int) (start, end int) {
	start = int(math.Ceil(b.LowHz / binWidth))
	end = int(math.Ceil(b.HighHz / binWidth))
	if start < 0 {
		start = 0
	}
	if end > numBins {
		end = numBins
	}
	if start > end {
		start = end
	}
	return start, end
}
