// SPDX-License-Identifier: MIT
//
// Package bitint provides the power-of-two helpers used to size FFT
// transforms. Both functions are O(1) and allocation free.
//
//	n := bitint.NextPowerOfTwo(traceLen + replicaLen - 1) // linear correlation length
//	ok := bitint.IsPowerOfTwo(n)
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size, and 1 for
// size <= 0. Using size-1 keeps exact powers of two unchanged:
// bits.Len(7) = 3 gives 8, while bits.Len(8) = 4 would give 16.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. A power of two
// has exactly one bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
