// SPDX-License-Identifier: MIT
package analysis

import "testing"

func TestBandTable(t *testing.T) {
	bands := Bands()

	wantNames := [NumBands]string{
		"Sub Bass", "Bass", "Low-Mid", "Mid", "Upper-Mid", "Presence", "Brilliance",
	}
	for i, band := range bands {
		if band.Name != wantNames[i] {
			t.Errorf("Band %d name = %q, want %q", i, band.Name, wantNames[i])
		}
		if band.LowHz >= band.HighHz {
			t.Errorf("Band %q range inverted: [%v, %v)", band.Name, band.LowHz, band.HighHz)
		}
	}

	// Adjacent bands share an edge, covering the spectrum without gaps.
	for i := 1; i < NumBands; i++ {
		if bands[i].LowHz != bands[i-1].HighHz {
			t.Errorf("Gap between %q and %q: %v != %v",
				bands[i-1].Name, bands[i].Name, bands[i-1].HighHz, bands[i].LowHz)
		}
	}

	if bands[0].LowHz != 20 {
		t.Errorf("Lowest bound = %v, want 20", bands[0].LowHz)
	}
	if bands[NumBands-1].HighHz != 25000 {
		t.Errorf("Highest bound = %v, want 25000", bands[NumBands-1].HighHz)
	}
}

func TestBandName(t *testing.T) {
	if got := BandName(0); got != "Sub Bass" {
		t.Errorf("BandName(0) = %q, want %q", got, "Sub Bass")
	}
	if got := BandName(3); got != "Mid" {
		t.Errorf("BandName(3) = %q, want %q", got, "Mid")
	}
	if got := BandName(-1); got != "" {
		t.Errorf("BandName(-1) = %q, want empty", got)
	}
	if got := BandName(NumBands); got != "" {
		t.Errorf("BandName(%d) = %q, want empty", NumBands, got)
	}
}

func TestBinRange(t *testing.T) {
	// 48 kHz at an 8192-point transform: 5.859375 Hz per bin, 4097 bins.
	const binWidth = 48000.0 / 8192.0
	const numBins = 8192/2 + 1

	tests := []struct {
		band      int
		wantStart int
		wantEnd   int
	}{
		{0, 4, 11},      // Sub Bass 20-60 Hz
		{1, 11, 43},     // Bass 60-250 Hz
		{2, 43, 86},     // Low-Mid 250-500 Hz
		{3, 86, 342},    // Mid 500-2000 Hz
		{4, 342, 683},   // Upper-Mid 2000-4000 Hz
		{5, 683, 1024},  // Presence 4000-6000 Hz
		{6, 1024, 4097}, // Brilliance 6000-25000 Hz, clamped to Nyquist
	}

	for _, tt := range tests {
		band := frequencyBands[tt.band]
		t.Run(band.Name, func(t *testing.T) {
			start, end := band.binRange(binWidth, numBins)
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("binRange() = [%d, %d), want [%d, %d)",
					start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestBinRangeContiguous(t *testing.T) {
	sizes := []int{MinFFTSize, DefaultFFTSize, MaxFFTSize}

	for _, size := range sizes {
		binWidth := 48000.0 / float64(size)
		numBins := size/2 + 1

		prevEnd := -1
		for i, band := range frequencyBands {
			start, end := band.binRange(binWidth, numBins)

			if start < 0 || end > numBins || start > end {
				t.Errorf("Size %d band %q: invalid range [%d, %d) of %d bins",
					size, band.Name, start, end, numBins)
			}
			if i > 0 && start != prevEnd {
				t.Errorf("Size %d: band %q starts at %d, previous ended at %d",
					size, band.Name, start, prevEnd)
			}
			prevEnd = end
		}
	}
}

func TestBinRangeClamped(t *testing.T) {
	// A tiny bin budget forces every band against the upper clamp.
	const binWidth = 48000.0 / 8192.0
	const numBins = 8

	for _, band := range frequencyBands {
		start, end := band.binRange(binWidth, numBins)
		if start < 0 || end > numBins || start > end {
			t.Errorf("Band %q: range [%d, %d) escapes [0, %d]",
				band.Name, start, end, numBins)
		}
	}
}
