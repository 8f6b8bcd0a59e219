// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"
)

func TestSmooth(t *testing.T) {
	tests := []struct {
		name  string
		state float64
		input float64
		alpha float64
		want  float64
	}{
		{"Zero alpha tracks input", 0.8, 0.2, 0.0, 0.2},
		{"Unity alpha holds state", 0.8, 0.2, 1.0, 0.8},
		{"Midpoint blend", 1.0, 0.0, 0.5, 0.5},
		{"Typical factor", 0.0, 1.0, 0.3, 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := smooth(tt.state, tt.input, tt.alpha)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("smooth(%v, %v, %v) = %v, want %v",
					tt.state, tt.input, tt.alpha, got, tt.want)
			}
		})
	}
}

func TestSmoothConvergence(t *testing.T) {
	s := 0.0
	for n := 0; n < 200; n++ {
		s = smooth(s, 1.0, 0.3)
	}
	if math.Abs(s-1.0) > 1e-9 {
		t.Errorf("Smoothed value should converge to the input, got %v", s)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v, lo, hi, want float64
	}{
		{-0.5, 0, 1, 0},
		{0, 0, 1, 0},
		{0.5, 0, 1, 0.5},
		{1, 0, 1, 1},
		{1.5, 0, 1, 1},
		{7.2, 0.1, 5.0, 5.0},
		{0.05, 0.1, 5.0, 0.1},
	}

	for _, tt := range tests {
		if got := clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("clamp(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}
