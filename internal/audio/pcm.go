package audio

import "encoding/binary"

// PutPCM16 writes samples as little-endian bytes and returns bytes written.
func PutPCM16(dst []byte, src []int16) int {
	n := min(len(dst)/2, len(src))
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(dst[2*i:], uint16(src[i]))
	}
	return 2 * n
}

// PCM16 reads little-endian bytes into samples and returns samples read.
func PCM16(dst []int16, src []byte) int {
	n := min(len(dst), len(src)/2)
	for i := 0; i < n; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(src[2*i:]))
	}
	return n
}
