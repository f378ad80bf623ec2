// SPDX-License-Identifier: MIT

// Package audio moves tuner PCM from a capture endpoint to a playback
// endpoint. It owns the software render loop, the hardware patch model and
// the router that keeps the two mutually exclusive.
package audio

import (
	"errors"
	"time"
)

// Format describes interleaved little-endian signed PCM.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultFormat is what FM tuners deliver: 44.1 kHz stereo 16-bit.
var DefaultFormat = Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16}

// FrameBytes is the size of one sample across all channels.
func (f Format) FrameBytes() int {
	return f.Channels * f.BitsPerSample / 8
}

// BytesPerMicrosecond converts a byte position into a presentation time.
func (f Format) BytesPerMicrosecond() float64 {
	return float64(f.BitsPerSample*f.SampleRate*f.Channels) * 1e-6 / 8
}

// Duration of n bytes of audio.
func (f Format) Duration(n int) time.Duration {
	bpus := f.BytesPerMicrosecond()
	if bpus <= 0 {
		return 0
	}
	return time.Duration(float64(n)/bpus) * time.Microsecond
}

func (f Format) Validate() error {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return errors.New("sample rate and channels must be positive")
	}
	if f.BitsPerSample != 16 {
		return errors.New("only 16-bit PCM is supported")
	}
	return nil
}

// ErrEndpointStopped is returned by Read or Write on a stopped endpoint.
var ErrEndpointStopped = errors.New("endpoint stopped")

// Capture is a PCM source. Read blocks for at most one buffer period.
type Capture interface {
	Start() error
	Stop() error
	Active() bool
	Read(buf []byte) (int, error)
	Close() error
}

// Playback is a PCM sink.
type Playback interface {
	Start() error
	Stop() error
	Active() bool
	Write(buf []byte) (int, error)
	Close() error
}

// Endpoints creates a fresh capture/playback pair. The render loop calls it
// every time it is started so a routing change always gets new endpoints.
type Endpoints func(f Format) (Capture, Playback, error)
