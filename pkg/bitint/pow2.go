// SPDX-License-Identifier: MIT
//
// Package bitint provides power-of-two predicates and rounding helpers
// used for transform and buffer sizing. All operations are constant-time
// and allocation-free, safe to call from the audio hot path.
package bitint

import "math/bits"

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NextPowerOfTwo returns the smallest power of two >= n. Powers of two map
// to themselves; values below 1 map to 1.
//
// The n-1 before the bit-length measurement keeps exact powers of two from
// doubling: Len(8-1)=3 gives 1<<3 = 8, while Len(8)=4 would give 16.
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// PrevPowerOfTwo returns the largest power of two <= n. Values below 1 map
// to 1.
func PrevPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << (bits.Len(uint(n)) - 1)
}
