package audio

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

type countingObserver struct {
	rendered atomic.Int32
	ignored  atomic.Int32
}

func (o *countingObserver) FrameRendered(int) { o.rendered.Add(1) }
func (o *countingObserver) FrameIgnored()     { o.ignored.Add(1) }

func newTestLoop(t *testing.T, eps *fakeEndpoints, gate func() bool, tap func([]byte), obs RenderObserver) *RenderLoop {
	t.Helper()
	l := NewRenderLoop(DefaultFormat, eps.factory, gate, tap, RenderOptions{BufferBytes: 64, Observer: obs})
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRenderLoop_DropsStartupFrames(t *testing.T) {
	eps := &fakeEndpoints{}
	l := newTestLoop(t, eps, nil, nil, nil)
	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	l.Enable()

	pb := eps.last().playback
	if !eventually(func() bool { return len(pb.written()) >= 5 }) {
		t.Fatal("playback received too few frames")
	}
	if first := pb.written()[0]; first != IgnoredFrames+1 {
		t.Errorf("first rendered frame = %d, want %d", first, IgnoredFrames+1)
	}
}

func TestRenderLoop_DisableStopsEndpoints(t *testing.T) {
	eps := &fakeEndpoints{}
	obs := &countingObserver{}
	l := newTestLoop(t, eps, nil, nil, obs)
	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	l.Enable()
	pair := eps.last()
	if !eventually(func() bool { return obs.rendered.Load() > 0 }) {
		t.Fatal("nothing rendered")
	}

	l.Disable()
	if pair.capture.Active() || pair.playback.Active() {
		t.Error("endpoints still active after Disable")
	}
	if !l.Running() {
		t.Error("Disable must not stop the goroutine")
	}

	// re-enabling drops the start-up frames again
	before := obs.ignored.Load()
	l.Enable()
	if !eventually(func() bool { return obs.ignored.Load() == before+IgnoredFrames }) {
		t.Errorf("ignored frames = %d, want %d", obs.ignored.Load(), before+IgnoredFrames)
	}
}

func TestRenderLoop_GateBlocksRendering(t *testing.T) {
	eps := &fakeEndpoints{}
	var open atomic.Bool
	obs := &countingObserver{}
	l := newTestLoop(t, eps, open.Load, nil, obs)
	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	l.Enable()
	l.Disable()
	l.Enable()

	pair := eps.last()
	if pair.capture.starts.Load() != 0 {
		t.Error("capture started while gate closed")
	}
	if len(pair.playback.written()) != 0 {
		t.Error("playback written while gate closed")
	}

	open.Store(true)
	l.Enable()
	if !eventually(func() bool { return obs.rendered.Load() > 0 }) {
		t.Fatal("nothing rendered after gate opened")
	}
}

func TestRenderLoop_TapReceivesRenderedFrames(t *testing.T) {
	eps := &fakeEndpoints{}
	var mu sync.Mutex
	var tapped []byte
	tap := func(b []byte) {
		mu.Lock()
		tapped = append(tapped, b[0])
		mu.Unlock()
	}
	l := newTestLoop(t, eps, nil, tap, nil)
	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	l.Enable()
	if !eventually(func() bool { mu.Lock(); defer mu.Unlock(); return len(tapped) >= 3 }) {
		t.Fatal("tap received too few frames")
	}
	mu.Lock()
	defer mu.Unlock()
	for _, k := range tapped {
		if k <= IgnoredFrames {
			t.Errorf("tap saw ignored frame %d", k)
		}
	}
}

func TestRenderLoop_CloseJoinsAndRestarts(t *testing.T) {
	eps := &fakeEndpoints{}
	l := newTestLoop(t, eps, nil, nil, nil)
	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	l.Enable()
	first := eps.last()

	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if l.Running() || l.Enabled() {
		t.Error("loop still running after Close")
	}
	if !first.capture.closed.Load() || !first.playback.closed.Load() {
		t.Error("endpoints not closed")
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	if err := l.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if eps.count() != 2 {
		t.Errorf("endpoint pairs = %d, want 2", eps.count())
	}
}

func TestRenderLoop_StartError(t *testing.T) {
	eps := &fakeEndpoints{fail: errors.New("no device")}
	l := newTestLoop(t, eps, nil, nil, nil)
	if err := l.Start(); err == nil {
		t.Fatal("expected error")
	}
	if l.Running() {
		t.Error("loop running after failed Start")
	}
	// Disable on a loop that never ran must not block
	l.Disable()
}
