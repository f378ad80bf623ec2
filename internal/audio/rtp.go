package audio

import (
	"fmt"
	"sync/atomic"
	"time"

	"fmradio/internal/transport/udp"
)

// RTPPlayback is a Playback that streams to a network peer instead of a
// local device. Write paces itself to real time so the render loop keeps
// its normal cadence when the capture side does not block.
type RTPPlayback struct {
	format     Format
	packetizer *udp.RTPPacketizer
	active     atomic.Bool
	next       time.Time
	pace       bool
}

var _ Playback = (*RTPPlayback)(nil)

func NewRTPPlayback(f Format, packetizer *udp.RTPPacketizer, pace bool) *RTPPlayback {
	return &RTPPlayback{format: f, packetizer: packetizer, pace: pace}
}

// RTPEndpoints pairs any capture source with an RTP sink.
func RTPEndpoints(capture func(Format) (Capture, error), packetizer *udp.RTPPacketizer) Endpoints {
	return func(f Format) (Capture, Playback, error) {
		c, err := capture(f)
		if err != nil {
			return nil, nil, err
		}
		return c, NewRTPPlayback(f, packetizer, false), nil
	}
}

func (r *RTPPlayback) Start() error {
	if r.active.Swap(true) {
		return nil
	}
	r.next = time.Now()
	r.packetizer.Discontinuity()
	return nil
}

func (r *RTPPlayback) Stop() error {
	r.active.Store(false)
	return nil
}

func (r *RTPPlayback) Active() bool { return r.active.Load() }

func (r *RTPPlayback) Write(buf []byte) (int, error) {
	if !r.active.Load() {
		return 0, ErrEndpointStopped
	}
	if r.pace {
		if wait := time.Until(r.next); wait > 0 {
			time.Sleep(wait)
		}
		r.next = r.next.Add(r.format.Duration(len(buf)))
	}
	if err := r.packetizer.WritePCM(buf); err != nil {
		return 0, fmt.Errorf("rtp write: %w", err)
	}
	return len(buf), nil
}

func (r *RTPPlayback) Close() error { return r.Stop() }
