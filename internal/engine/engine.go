// SPDX-License-Identifier: MIT

// Package engine is the tuner control engine. Every request becomes a
// Command on one FIFO queue and runs to completion on a single worker
// goroutine, which is the only owner of power, tuning, focus and routing
// state. The render loop, the RDS poller and the encoder run on their own
// goroutines and talk back to the engine only by queuing commands.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"fmradio/internal/audio"
	"fmradio/internal/event"
	applog "fmradio/internal/log"
	"fmradio/internal/metrics"
	"fmradio/internal/rds"
	"fmradio/internal/recorder"
	"fmradio/internal/station"
	"fmradio/internal/tuner"
)

var log = applog.For("engine")

// FocusManager grants and revokes the platform audio focus.
type FocusManager interface {
	Request() bool
	Abandon()
}

// WakeLock keeps the host awake while the tuner is powered.
type WakeLock interface {
	Acquire()
	Release()
}

// GrantedFocus always grants focus. It suits hosts with no focus arbiter.
type GrantedFocus struct{}

func (GrantedFocus) Request() bool { return true }
func (GrantedFocus) Abandon()      {}

type nopWakeLock struct{}

func (nopWakeLock) Acquire() {}
func (nopWakeLock) Release() {}

// Options wires the engine to its collaborators. Driver is required; every
// other field has a working default.
type Options struct {
	Driver tuner.Driver
	Band   tuner.Band
	Store  station.Store

	Format    audio.Format
	Endpoints audio.Endpoints
	// Patches is the hardware routing service; nil means always render.
	Patches audio.PatchService

	Recorder      recorder.Options
	RecordingRoot string

	RDSInterval time.Duration
	Focus       FocusManager
	WakeLock    WakeLock
	Bus         *event.Bus
	Registry    prometheus.Registerer
	// Foreground is the initial foreground flag.
	Foreground bool
	// Headset is the initial wired headset state.
	Headset bool
}

// Snapshot is the read-only view other goroutines get of engine state.
type Snapshot struct {
	Power     event.PowerState
	Frequency tuner.Frequency
	Focus     event.FocusState
	Seeking   bool
	Scanning  bool
	Muted     bool
	RDS       bool
	Speaker   bool
	Headset   bool
	Antenna   tuner.Antenna
	Recorder  event.RecorderState
	Route     audio.Mode
}

// Engine owns the tuner. Create it with New, then Start it.
type Engine struct {
	driver   tuner.Driver
	band     tuner.Band
	store    station.Store
	bus      *event.Bus
	focusMgr FocusManager
	wakeLock WakeLock
	metrics  *metrics.Metrics
	recRoot  string

	render   *audio.RenderLoop
	router   *audio.Router
	recorder *recorder.Recorder
	poller   *rds.Poller

	queue     *queue
	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	started   atomic.Bool
	snap      atomic.Pointer[Snapshot]

	// shared with StopScan callers
	nativeScanning atomic.Bool
	nativeSeeking  atomic.Bool
	stopScanCalled atomic.Bool

	// worker goroutine only
	power              event.PowerState
	freq               tuner.Frequency
	focus              event.FocusState
	pausedByTransient  bool
	speaker            bool
	speakerOnFocusLost bool
	headset            bool
	muted              bool
	rdsOn              bool
	antenna            tuner.Antenna
	foreground         bool
	lowPower           bool
	deviceOpen         bool
	wakeHeld           bool
	ducked             bool
	seeking            bool
	scanning           bool
	recordingMode      bool
	psCache            string
	rtCache            string
	location           *station.Coordinates
}

func New(opts Options) (*Engine, error) {
	if opts.Driver == nil {
		return nil, errors.New("engine: tuner driver is required")
	}
	if opts.Band == (tuner.Band{}) {
		opts.Band = tuner.DefaultBand
	}
	if err := opts.Band.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if opts.Store == nil {
		opts.Store = station.NewMemoryStore()
	}
	if opts.Format == (audio.Format{}) {
		opts.Format = audio.DefaultFormat
	}
	if err := opts.Format.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if opts.Endpoints == nil {
		opts.Endpoints = func(f audio.Format) (audio.Capture, audio.Playback, error) {
			return audio.NewToneCapture(f, 440, 1024), &audio.DiscardPlayback{}, nil
		}
	}
	if opts.Focus == nil {
		opts.Focus = GrantedFocus{}
	}
	if opts.WakeLock == nil {
		opts.WakeLock = nopWakeLock{}
	}
	if opts.Bus == nil {
		opts.Bus = event.NewBus()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	e := &Engine{
		driver:     opts.Driver,
		band:       opts.Band,
		store:      opts.Store,
		bus:        opts.Bus,
		focusMgr:   opts.Focus,
		wakeLock:   opts.WakeLock,
		metrics:    metrics.New(opts.Registry),
		recRoot:    opts.RecordingRoot,
		queue:      newQueue(),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		freq:       tuner.Invalid,
		foreground: opts.Foreground,
		headset:    opts.Headset,
		antenna:    tuner.AntennaShort,
		rdsOn:      true,
	}
	if opts.Headset {
		e.antenna = tuner.AntennaWired
	}
	if f, ok := opts.Store.Current(); ok && e.band.Contains(f) {
		e.freq = f
	}

	recOpts := opts.Recorder
	recOpts.Format = opts.Format
	recOpts.OnError = func(err error) { e.post(recorderFailure{err: err}) }
	e.recorder = recorder.New(recOpts)

	e.render = audio.NewRenderLoop(opts.Format, opts.Endpoints, e.renderGate, e.recorder.Encode,
		audio.RenderOptions{Observer: e.metrics})
	e.router = audio.NewRouter(opts.Patches, e.render, func() bool {
		return e.recorder.State() == event.RecorderRecording
	})
	e.router.OnChange(func(audio.Mode, audio.Patch) { e.publishRouting() })
	e.poller = rds.NewPoller(opts.Driver, rdsSink{e}, e.band, opts.RDSInterval)

	e.storeSnapshot()
	return e, nil
}

// Start launches the worker goroutine.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		e.started.Store(true)
		go e.run()
		log.Infof("engine started (band %s-%s)", e.band.Low, e.band.High)
	})
}

func (e *Engine) Bus() *event.Bus { return e.bus }

// Snapshot returns the state as of the last completed step on the worker.
func (e *Engine) Snapshot() Snapshot { return *e.snap.Load() }

// Recorder exposes elapsed time and size of the current recording.
func (e *Engine) Recorder() *recorder.Recorder { return e.recorder }

// Submit queues cmd. It never blocks.
func (e *Engine) Submit(cmd Command) error {
	dropped, err := e.queue.push(cmd)
	if err != nil {
		return err
	}
	if dropped > 0 {
		log.Debugf("%s superseded %d pending command(s)", cmd.Name(), dropped)
		e.metrics.CommandSuperseded(dropped)
	}
	return nil
}

func (e *Engine) post(cmd Command) {
	if err := e.Submit(cmd); err != nil {
		log.Debugf("dropped %s: %v", cmd.Name(), err)
	}
}

func (e *Engine) PowerUp(f tuner.Frequency) error { return e.Submit(PowerUp{Freq: f}) }
func (e *Engine) PowerDown() error                { return e.Submit(PowerDown{}) }
func (e *Engine) Tune(f tuner.Frequency) error    { return e.Submit(Tune{Freq: f}) }
func (e *Engine) Seek(up bool) error              { return e.Submit(Seek{Up: up}) }
func (e *Engine) Scan() error                     { return e.Submit(Scan{}) }
func (e *Engine) SetRDS(on bool) error            { return e.Submit(SetRDS{On: on}) }
func (e *Engine) SetMute(mute bool) error         { return e.Submit(SetMute{Mute: mute}) }
func (e *Engine) StartRecording() error           { return e.Submit(StartRecording{}) }
func (e *Engine) StopRecording() error            { return e.Submit(StopRecording{}) }
func (e *Engine) SaveRecording(name string) error { return e.Submit(SaveRecording{Title: name}) }
func (e *Engine) SetSpeaker(on bool) error        { return e.Submit(SetSpeaker{On: on}) }
func (e *Engine) SetForeground(fg bool) error     { return e.Submit(SetForeground{Foreground: fg}) }

func (e *Engine) SwitchAntenna(a tuner.Antenna) error {
	return e.Submit(SwitchAntenna{Antenna: a})
}

func (e *Engine) HeadsetPlugChanged(plugged bool) error {
	return e.Submit(HeadsetPlugChanged{Plugged: plugged})
}

func (e *Engine) PatchListChanged() error { return e.Submit(PatchListChanged{}) }

// AudioFocusChanged cuts any running seek or scan short before queuing the
// change, so losing focus never waits behind a long scan.
func (e *Engine) AudioFocusChanged(change FocusChange) error {
	if change != FocusGain {
		e.StopScan()
	}
	return e.Submit(AudioFocusChanged{Change: change})
}

// StopScan cancels a running seek or scan. It bypasses the queue and may be
// called from any goroutine.
func (e *Engine) StopScan() {
	if n := e.queue.purge(func(c Command) bool {
		switch c.(type) {
		case Scan, Seek:
			return true
		}
		return false
	}); n > 0 {
		log.Debugf("stop scan dropped %d pending command(s)", n)
	}
	if e.nativeScanning.Load() || e.nativeSeeking.Load() {
		e.stopScanCalled.Store(true)
		e.driver.StopScan()
	}
}

// Sync waits until every command queued before it has run.
func (e *Engine) Sync(ctx context.Context) error {
	b := barrier{done: make(chan struct{})}
	if err := e.Submit(b); err != nil {
		return err
	}
	select {
	case <-b.done:
		return nil
	case <-e.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close powers the tuner down, closes the driver and stops every
// goroutine. Pending commands are dropped.
func (e *Engine) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		e.StopScan()
		if n := e.queue.seal(exit{}); n > 0 {
			log.Debugf("exit dropped %d pending command(s)", n)
		}
		if !e.started.Load() {
			e.Start()
		}
	})
	select {
	case <-e.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	e.poller.Stop()
	return e.render.Close()
}

func (e *Engine) run() {
	defer close(e.done)
	for {
		cmd, ok := e.queue.next(e.stop)
		if !ok {
			return
		}
		e.execute(cmd)
	}
}

func (e *Engine) execute(cmd Command) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("command %s panicked: %v", cmd.Name(), r)
			e.metrics.CommandPanicked()
		}
		e.storeSnapshot()
		e.metrics.CommandExecuted(cmd.Name(), time.Since(start).Seconds())
	}()
	log.Debugf("run %s", cmd.Name())
	cmd.run(e)
}

func (e *Engine) handleExit() {
	e.handlePowerDown()
	if e.deviceOpen {
		if !e.driver.Close() {
			log.Warnf("tuner close failed")
		}
		e.deviceOpen = false
	}
	e.focusMgr.Abandon()
	e.setFocus(event.FocusNone)
	if err := e.recorder.Discard(); err != nil {
		log.Warnf("discard recording on exit: %v", err)
	}
	e.bus.Publish(event.Exited{})
	close(e.stop)
}

func (e *Engine) publish(ev event.Event) {
	e.bus.Publish(ev)
}

// storeSnapshot publishes worker state to other goroutines and lets the
// render loop re-check its gate.
func (e *Engine) storeSnapshot() {
	e.snap.Store(&Snapshot{
		Power:     e.power,
		Frequency: e.freq,
		Focus:     e.focus,
		Seeking:   e.seeking,
		Scanning:  e.scanning,
		Muted:     e.muted,
		RDS:       e.rdsOn,
		Speaker:   e.speaker,
		Headset:   e.headset,
		Antenna:   e.antenna,
		Recorder:  e.recorder.State(),
		Route:     e.router.Mode(),
	})
	e.render.Wake()

	e.metrics.SetPowerState(int(e.power))
	if e.freq != tuner.Invalid {
		e.metrics.SetFrequency(e.freq.MHz())
	}
	e.metrics.SetRecorderState(int(e.recorder.State()))
	e.metrics.SetRecorderBytes(e.recorder.Bytes())
}

// renderGate runs on the render goroutine.
func (e *Engine) renderGate() bool {
	s := e.snap.Load()
	return s.Power == event.PoweredUp && s.Focus == event.FocusHeld
}

// rdsSink adapts the engine to the poller without widening Engine's API.
type rdsSink struct{ e *Engine }

func (s rdsSink) RDSUpdate(kind rds.Kind, value string) {
	s.e.post(rdsUpdate{kind: kind, value: value, freq: s.e.Snapshot().Frequency})
}

func (s rdsSink) CanFollowAF() bool {
	snap := s.e.Snapshot()
	return snap.Power == event.PoweredUp && !snap.Seeking && !snap.Scanning
}

func (s rdsSink) Frequency() tuner.Frequency { return s.e.Snapshot().Frequency }

func (s rdsSink) AlternateFrequency(f tuner.Frequency) { s.e.post(Tune{Freq: f}) }
