package audio

import (
	"sync"
	"sync/atomic"
	"time"
)

// fakeCapture delivers numbered frames: every byte of frame k is k.
type fakeCapture struct {
	active atomic.Bool
	closed atomic.Bool
	next   atomic.Int32
	starts atomic.Int32
}

func (c *fakeCapture) Start() error { c.starts.Add(1); c.active.Store(true); return nil }
func (c *fakeCapture) Stop() error  { c.active.Store(false); return nil }
func (c *fakeCapture) Active() bool { return c.active.Load() }
func (c *fakeCapture) Close() error { c.closed.Store(true); return c.Stop() }

func (c *fakeCapture) Read(buf []byte) (int, error) {
	if !c.active.Load() {
		return 0, ErrEndpointStopped
	}
	time.Sleep(time.Millisecond)
	k := byte(c.next.Add(1))
	for i := range buf {
		buf[i] = k
	}
	return len(buf), nil
}

type fakePlayback struct {
	active atomic.Bool
	closed atomic.Bool

	mu     sync.Mutex
	frames []byte
}

func (p *fakePlayback) Start() error { p.active.Store(true); return nil }
func (p *fakePlayback) Stop() error  { p.active.Store(false); return nil }
func (p *fakePlayback) Active() bool { return p.active.Load() }
func (p *fakePlayback) Close() error { p.closed.Store(true); return p.Stop() }

func (p *fakePlayback) Write(buf []byte) (int, error) {
	if !p.active.Load() {
		return 0, ErrEndpointStopped
	}
	p.mu.Lock()
	p.frames = append(p.frames, buf[0])
	p.mu.Unlock()
	return len(buf), nil
}

func (p *fakePlayback) written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.frames...)
}

// fakeEndpoints records every pair it hands out.
type fakeEndpoints struct {
	mu    sync.Mutex
	pairs []*fakePair
	fail  error
}

type fakePair struct {
	capture  *fakeCapture
	playback *fakePlayback
}

func (e *fakeEndpoints) factory(Format) (Capture, Playback, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail != nil {
		return nil, nil, e.fail
	}
	p := &fakePair{capture: &fakeCapture{}, playback: &fakePlayback{}}
	e.pairs = append(e.pairs, p)
	return p.capture, p.playback, nil
}

func (e *fakeEndpoints) last() *fakePair {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pairs) == 0 {
		return nil
	}
	return e.pairs[len(e.pairs)-1]
}

func (e *fakeEndpoints) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pairs)
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
