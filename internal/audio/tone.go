package audio

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// ToneCapture is a Capture that synthesises a sine wave in real time. It
// stands in for tuner hardware in demos and on hosts without a line input.
type ToneCapture struct {
	format    Format
	frequency float64
	amplitude float64
	frames    int

	mu     sync.Mutex
	phase  float64
	next   time.Time
	active atomic.Bool
	buf    []int16
}

var _ Capture = (*ToneCapture)(nil)

func NewToneCapture(f Format, frequency float64, framesPerBuffer int) *ToneCapture {
	return &ToneCapture{
		format:    f,
		frequency: frequency,
		amplitude: 0.3,
		frames:    framesPerBuffer,
		buf:       make([]int16, framesPerBuffer*f.Channels),
	}
}

func (t *ToneCapture) Start() error {
	t.mu.Lock()
	t.next = time.Now()
	t.mu.Unlock()
	t.active.Store(true)
	return nil
}

func (t *ToneCapture) Stop() error {
	t.active.Store(false)
	return nil
}

func (t *ToneCapture) Active() bool { return t.active.Load() }

// Read paces delivery to one buffer period per call.
func (t *ToneCapture) Read(buf []byte) (int, error) {
	if !t.active.Load() {
		return 0, ErrEndpointStopped
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if wait := time.Until(t.next); wait > 0 {
		time.Sleep(wait)
	}
	t.next = t.next.Add(time.Duration(float64(t.frames) / float64(t.format.SampleRate) * float64(time.Second)))

	step := 2 * math.Pi * t.frequency / float64(t.format.SampleRate)
	for i := 0; i < t.frames; i++ {
		v := int16(math.Sin(t.phase) * t.amplitude * math.MaxInt16)
		for c := 0; c < t.format.Channels; c++ {
			t.buf[i*t.format.Channels+c] = v
		}
		t.phase = math.Mod(t.phase+step, 2*math.Pi)
	}
	return PutPCM16(buf, t.buf), nil
}

func (t *ToneCapture) Close() error { return t.Stop() }

// DiscardPlayback accepts and drops everything, for headless runs.
type DiscardPlayback struct {
	active atomic.Bool
}

var _ Playback = (*DiscardPlayback)(nil)

func (d *DiscardPlayback) Start() error { d.active.Store(true); return nil }
func (d *DiscardPlayback) Stop() error  { d.active.Store(false); return nil }
func (d *DiscardPlayback) Active() bool { return d.active.Load() }
func (d *DiscardPlayback) Close() error { return d.Stop() }

func (d *DiscardPlayback) Write(buf []byte) (int, error) {
	if !d.active.Load() {
		return 0, ErrEndpointStopped
	}
	return len(buf), nil
}
