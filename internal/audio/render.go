// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	applog "fmradio/internal/log"
)

var log = applog.For("render")

// IgnoredFrames buffers are dropped after every (re)enable; they carry the
// endpoint start-up transient that is heard as a pop.
const IgnoredFrames = 3

// RenderObserver is told about every frame the loop handles.
type RenderObserver interface {
	FrameRendered(bytes int)
	FrameIgnored()
}

// RenderOptions tunes a RenderLoop. Zero values take defaults.
type RenderOptions struct {
	BufferBytes   int
	IgnoredFrames int
	Observer      RenderObserver
}

// RenderLoop copies PCM from a capture endpoint to a playback endpoint on its
// own goroutine and hands every rendered buffer to a tap. It runs only while
// enabled and while its gate allows it; otherwise it stops both endpoints and
// parks on a condition variable. Only the router drives it.
type RenderLoop struct {
	format    Format
	endpoints Endpoints
	gate      func() bool
	tap       func([]byte)
	opts      RenderOptions

	mu       sync.Mutex
	cond     *sync.Cond
	enabled  bool
	closing  bool
	running  bool
	parked   bool
	capture  Capture
	playback Playback
	done     chan struct{}
}

// NewRenderLoop builds a stopped loop. gate is consulted on every iteration
// and must only read state snapshots. tap may be nil and must not retain the
// slice it is given.
func NewRenderLoop(f Format, endpoints Endpoints, gate func() bool, tap func([]byte), opts RenderOptions) *RenderLoop {
	if opts.BufferBytes <= 0 {
		opts.BufferBytes = 1024 * f.FrameBytes()
	}
	if opts.IgnoredFrames < 0 {
		opts.IgnoredFrames = 0
	} else if opts.IgnoredFrames == 0 {
		opts.IgnoredFrames = IgnoredFrames
	}
	if gate == nil {
		gate = func() bool { return true }
	}
	if tap == nil {
		tap = func([]byte) {}
	}
	l := &RenderLoop{format: f, endpoints: endpoints, gate: gate, tap: tap, opts: opts}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Start creates fresh endpoints and launches the goroutine, parked until
// Enable. It is a no-op while already running.
func (l *RenderLoop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return nil
	}
	capture, playback, err := l.endpoints(l.format)
	if err != nil {
		return fmt.Errorf("failed to create render endpoints: %w", err)
	}
	l.capture, l.playback = capture, playback
	l.running = true
	l.closing = false
	l.parked = false
	l.done = make(chan struct{})
	go l.run(capture, playback, l.done)
	log.Debugf("render loop started")
	return nil
}

// Enable lets the loop render once the gate also allows it.
func (l *RenderLoop) Enable() {
	l.mu.Lock()
	l.enabled = true
	l.cond.Broadcast()
	l.mu.Unlock()
}

// Disable parks the loop and returns once both endpoints are stopped.
func (l *RenderLoop) Disable() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = false
	l.cond.Broadcast()
	for l.running && !l.parked {
		l.cond.Wait()
	}
}

// Wake makes a parked loop re-check its gate.
func (l *RenderLoop) Wake() {
	l.mu.Lock()
	l.cond.Broadcast()
	l.mu.Unlock()
}

func (l *RenderLoop) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

func (l *RenderLoop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Close stops the goroutine, waits for it and closes the endpoints. The loop
// can be started again afterwards with new endpoints.
func (l *RenderLoop) Close() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.closing = true
	l.cond.Broadcast()
	done := l.done
	l.mu.Unlock()

	<-done

	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = false
	l.enabled = false
	errs := errors.Join(l.capture.Close(), l.playback.Close())
	l.capture, l.playback = nil, nil
	log.Debugf("render loop closed")
	return errs
}

func stopEndpoints(capture Capture, playback Playback) {
	if capture.Active() {
		if err := capture.Stop(); err != nil {
			log.Warnf("stop capture: %v", err)
		}
	}
	if playback.Active() {
		if err := playback.Stop(); err != nil {
			log.Warnf("stop playback: %v", err)
		}
	}
}

func (l *RenderLoop) run(capture Capture, playback Playback, done chan struct{}) {
	defer close(done)

	buf := make([]byte, l.opts.BufferBytes)
	frames := 0
	failing := false

	for {
		l.mu.Lock()
		for !l.closing && !(l.enabled && l.gate()) {
			stopEndpoints(capture, playback)
			frames = 0
			l.parked = true
			l.cond.Broadcast()
			l.cond.Wait()
		}
		if l.closing {
			stopEndpoints(capture, playback)
			l.parked = true
			l.cond.Broadcast()
			l.mu.Unlock()
			return
		}
		l.parked = false
		l.mu.Unlock()

		if err := startEndpoints(capture, playback); err != nil {
			if !failing {
				log.Errorf("%v", err)
				failing = true
			}
			time.Sleep(l.format.Duration(len(buf)))
			continue
		}

		n, err := capture.Read(buf)
		if err != nil || n <= 0 {
			if err != nil && !errors.Is(err, ErrEndpointStopped) && !failing {
				log.Warnf("capture read: %v", err)
				failing = true
			}
			continue
		}
		failing = false

		if frames < l.opts.IgnoredFrames {
			frames++
			if l.opts.Observer != nil {
				l.opts.Observer.FrameIgnored()
			}
			continue
		}

		l.mu.Lock()
		render := l.enabled && !l.closing
		l.mu.Unlock()
		if !render {
			continue
		}
		if _, err := playback.Write(buf[:n]); err != nil && !errors.Is(err, ErrEndpointStopped) {
			log.Warnf("playback write: %v", err)
		}
		l.tap(buf[:n])
		if l.opts.Observer != nil {
			l.opts.Observer.FrameRendered(n)
		}
	}
}

func startEndpoints(capture Capture, playback Playback) error {
	if !capture.Active() {
		if err := capture.Start(); err != nil {
			return fmt.Errorf("start capture: %w", err)
		}
	}
	if !playback.Active() {
		if err := playback.Start(); err != nil {
			return fmt.Errorf("start playback: %w", err)
		}
	}
	return nil
}
