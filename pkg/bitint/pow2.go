// SPDX-License-Identifier: MIT

// Package bitint holds the integer helpers used for FFT and codec buffer
// sizing. Nothing here allocates or blocks.
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size, and 1 for
// size <= 0. The size-1 keeps exact powers of 2 unchanged.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo uses n&(n-1), which clears the only set bit of a power of 2.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// AlignDown rounds n down to a multiple of m. m <= 0 returns n.
func AlignDown(n, m int) int {
	if m <= 0 {
		return n
	}
	return n - n%m
}

// AlignUp rounds n up to a multiple of m. m <= 0 returns n.
func AlignUp(n, m int) int {
	if m <= 0 {
		return n
	}
	if r := n % m; r != 0 {
		return n + m - r
	}
	return n
}
