// Package recorder turns rendered tuner PCM into a compressed recording on
// disk. A Recorder owns at most one live session; each session owns one
// SampleEncoder that feeds a Codec and a Muxer from its own goroutine.
package recorder

import (
	"fmt"
	"os"
	"strings"

	"fmradio/internal/audio"
)

// Packet is one unit of encoder output. PTS is in microseconds.
type Packet struct {
	Data []byte
	PTS  int64
	EOS  bool
}

// Codec compresses PCM. Encode may buffer internally and return no packets;
// Flush drains whatever is left and marks the final packet EOS.
type Codec interface {
	InputSize() int
	Encode(pcm []byte, pts int64) ([]Packet, error)
	Flush(pts int64) ([]Packet, error)
}

// Muxer writes codec packets into a container file. Close finalises the
// container and closes the file.
type Muxer interface {
	WriteSample(p Packet) error
	Close() error
}

// Container names.
const (
	ContainerMP3 = "mp3"
	ContainerWAV = "wav"
)

// NewContainer returns the codec/muxer pair for a container name.
func NewContainer(name string, f *os.File, pcm audio.Format) (Codec, Muxer, error) {
	switch strings.ToLower(name) {
	case "", ContainerMP3:
		return newMP3Codec(pcm), newStreamMuxer(f), nil
	case ContainerWAV:
		return newPCMCodec(pcm), newWAVMuxer(f, pcm), nil
	default:
		return nil, nil, fmt.Errorf("unsupported container %q", name)
	}
}

// Extension returns the file extension for a container name.
func Extension(name string) string {
	if strings.EqualFold(name, ContainerWAV) {
		return ContainerWAV
	}
	return ContainerMP3
}
