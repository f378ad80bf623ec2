// SPDX-License-Identifier: MIT
package bitint

import (
	"fmt"
	"testing"
)

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{-10, 1},     // Negative number
		{0, 1},       // Zero
		{8, 8},       // Already power of two
		{10, 16},     // Not power of two
		{1000, 1024}, // Large number
		{3, 4},       // Small non-power
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%d", tt.n, tt.expected), func(t *testing.T) {
			result := NextPowerOfTwo(tt.n)
			if result != tt.expected {
				t.Errorf("NextPowerOfTwo(%d) = %d, expected %d", tt.n, result, tt.expected)
			}
		})
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for n, want := range map[int]bool{-8: false, 0: false, 1: true, 7: false, 8: true, 1152: false, 4096: true} {
		if got := IsPowerOfTwo(n); got != want {
			t.Errorf("IsPowerOfTwo(%d) = %v, want %v", n, got, want)
		}
	}
}

func TestAlign(t *testing.T) {
	tests := []struct {
		n, m     int
		down, up int
	}{
		{0, 4, 0, 0},
		{5, 4, 4, 8},
		{8, 4, 8, 8},
		{2305, 2304, 2304, 4608},
		{7, 0, 7, 7},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.n, tt.m), func(t *testing.T) {
			if got := AlignDown(tt.n, tt.m); got != tt.down {
				t.Errorf("AlignDown = %d, want %d", got, tt.down)
			}
			if got := AlignUp(tt.n, tt.m); got != tt.up {
				t.Errorf("AlignUp = %d, want %d", got, tt.up)
			}
		})
	}
}
