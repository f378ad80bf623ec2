// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// PortAudioConfig selects host devices for the render loop.
type PortAudioConfig struct {
	InputDevice     int
	OutputDevice    int
	FramesPerBuffer int
	LowLatency      bool
}

// PortAudioEndpoints opens blocking PortAudio streams on each call.
func PortAudioEndpoints(cfg PortAudioConfig) Endpoints {
	return func(f Format) (Capture, Playback, error) {
		c, err := NewPortAudioCapture(cfg, f)
		if err != nil {
			return nil, nil, err
		}
		p, err := NewPortAudioPlayback(cfg, f)
		if err != nil {
			c.Close()
			return nil, nil, err
		}
		return c, p, nil
	}
}

// PortAudioCapture reads interleaved int16 frames from an input device.
type PortAudioCapture struct {
	stream  *portaudio.Stream
	samples []int16
	active  atomic.Bool
}

var _ Capture = (*PortAudioCapture)(nil)

func NewPortAudioCapture(cfg PortAudioConfig, f Format) (*PortAudioCapture, error) {
	dev, err := InputDevice(cfg.InputDevice)
	if err != nil {
		return nil, err
	}
	latency := dev.DefaultHighInputLatency
	if cfg.LowLatency {
		latency = dev.DefaultLowInputLatency
	}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: f.Channels,
			Latency:  latency,
		},
		SampleRate:      float64(f.SampleRate),
		FramesPerBuffer: cfg.FramesPerBuffer,
	}
	samples := make([]int16, cfg.FramesPerBuffer*f.Channels)
	stream, err := portaudio.OpenStream(params, samples)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture stream on %q: %w", dev.Name, err)
	}
	return &PortAudioCapture{stream: stream, samples: samples}, nil
}

func (c *PortAudioCapture) Start() error {
	if c.active.Load() {
		return nil
	}
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	c.active.Store(true)
	return nil
}

func (c *PortAudioCapture) Stop() error {
	if !c.active.Swap(false) {
		return nil
	}
	return c.stream.Stop()
}

func (c *PortAudioCapture) Active() bool { return c.active.Load() }

// Read blocks until one host buffer is available. Overflows are not errors;
// the frame is still delivered.
func (c *PortAudioCapture) Read(buf []byte) (int, error) {
	if !c.active.Load() {
		return 0, ErrEndpointStopped
	}
	if err := c.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return 0, err
	}
	return PutPCM16(buf, c.samples), nil
}

func (c *PortAudioCapture) Close() error {
	c.Stop()
	return c.stream.Close()
}

// PortAudioPlayback writes interleaved int16 frames to an output device.
type PortAudioPlayback struct {
	stream  *portaudio.Stream
	samples []int16
	active  atomic.Bool
}

var _ Playback = (*PortAudioPlayback)(nil)

func NewPortAudioPlayback(cfg PortAudioConfig, f Format) (*PortAudioPlayback, error) {
	dev, err := OutputDevice(cfg.OutputDevice)
	if err != nil {
		return nil, err
	}
	latency := dev.DefaultHighOutputLatency
	if cfg.LowLatency {
		latency = dev.DefaultLowOutputLatency
	}
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: f.Channels,
			Latency:  latency,
		},
		SampleRate:      float64(f.SampleRate),
		FramesPerBuffer: cfg.FramesPerBuffer,
	}
	samples := make([]int16, cfg.FramesPerBuffer*f.Channels)
	stream, err := portaudio.OpenStream(params, samples)
	if err != nil {
		return nil, fmt.Errorf("failed to open playback stream on %q: %w", dev.Name, err)
	}
	return &PortAudioPlayback{stream: stream, samples: samples}, nil
}

func (p *PortAudioPlayback) Start() error {
	if p.active.Load() {
		return nil
	}
	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}
	p.active.Store(true)
	return nil
}

func (p *PortAudioPlayback) Stop() error {
	if !p.active.Swap(false) {
		return nil
	}
	return p.stream.Stop()
}

func (p *PortAudioPlayback) Active() bool { return p.active.Load() }

// Write sends buf in host-buffer sized chunks; a short tail is zero padded.
func (p *PortAudioPlayback) Write(buf []byte) (int, error) {
	if !p.active.Load() {
		return 0, ErrEndpointStopped
	}
	written := 0
	for written < len(buf) {
		n := PCM16(p.samples, buf[written:])
		clear(p.samples[n:])
		if err := p.stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			return written, err
		}
		written += 2 * n
		if n == 0 {
			break
		}
	}
	return written, nil
}

func (p *PortAudioPlayback) Close() error {
	p.Stop()
	return p.stream.Close()
}
