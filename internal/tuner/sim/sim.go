// Package sim is an in-process tuner used by tests and the demo CLI. It knows
// a fixed set of stations, answers seek/scan from that set and can be told to
// fail or stall individual calls.
package sim

import (
	"sync"
	"sync/atomic"
	"time"

	applog "fmradio/internal/log"
	"fmradio/internal/tuner"
)

var log = applog.For("sim")

// Station is a transmitter the simulated tuner can receive.
type Station struct {
	Frequency      tuner.Frequency `yaml:"frequency"`
	ProgramService string          `yaml:"ps"`
	RadioText      string          `yaml:"rt"`
	// AF, when set, is announced as the alternate frequency for this station.
	AF tuner.Frequency `yaml:"af"`
}

// Failures makes the named calls report failure.
type Failures struct {
	Open, PowerUp, PowerDown, Tune, Scan bool
}

// Driver implements tuner.Driver.
type Driver struct {
	band tuner.Band

	mu        sync.Mutex
	stations  map[tuner.Frequency]Station
	fail      Failures
	delay     time.Duration
	open      bool
	powered   bool
	lowPower  bool
	current   tuner.Frequency
	rds       bool
	muted     bool
	antenna   tuner.Antenna
	calls     []string
	scanStart chan struct{}

	stop atomic.Bool
}

var _ tuner.Driver = (*Driver)(nil)

func New(band tuner.Band, stations ...Station) *Driver {
	d := &Driver{
		band:      band,
		stations:  make(map[tuner.Frequency]Station, len(stations)),
		current:   tuner.Invalid,
		scanStart: make(chan struct{}, 1),
	}
	for _, s := range stations {
		d.stations[s.Frequency] = s
	}
	return d
}

// SetFailures replaces the injected failures.
func (d *Driver) SetFailures(f Failures) {
	d.mu.Lock()
	d.fail = f
	d.mu.Unlock()
}

// SetDelay makes Seek and Scan take at least this long unless stopped.
func (d *Driver) SetDelay(delay time.Duration) {
	d.mu.Lock()
	d.delay = delay
	d.mu.Unlock()
}

// SetStation adds or replaces a station, e.g. to change its RDS text.
func (d *Driver) SetStation(s Station) {
	d.mu.Lock()
	d.stations[s.Frequency] = s
	d.mu.Unlock()
}

// ScanStarted fires once per Seek or Scan as soon as the call begins.
func (d *Driver) ScanStarted() <-chan struct{} { return d.scanStart }

// Calls returns the names of driver calls made so far.
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *Driver) Powered() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.powered
}

func (d *Driver) Muted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.muted
}

func (d *Driver) RDSEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rds
}

func (d *Driver) Current() tuner.Frequency {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

func (d *Driver) record(call string) {
	d.calls = append(d.calls, call)
}

func (d *Driver) Open() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("open")
	if d.fail.Open {
		return false
	}
	d.open = true
	return true
}

func (d *Driver) Close() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("close")
	d.open = false
	return true
}

func (d *Driver) PowerUp(f tuner.Frequency) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("powerup")
	if d.fail.PowerUp || !d.open || !d.band.Contains(f) {
		return false
	}
	d.powered = true
	d.current = f
	return true
}

func (d *Driver) PowerDown(kind int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("powerdown")
	d.powered = false
	d.rds = false
	return !d.fail.PowerDown
}

func (d *Driver) Tune(f tuner.Frequency) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("tune")
	if d.fail.Tune || !d.powered || !d.band.Contains(f) {
		return false
	}
	d.current = f
	return true
}

// wait sleeps for the configured delay, returning false if StopScan fired.
func (d *Driver) wait() bool {
	d.mu.Lock()
	delay := d.delay
	d.mu.Unlock()

	select {
	case d.scanStart <- struct{}{}:
	default:
	}
	deadline := time.Now().Add(delay)
	for time.Now().Before(deadline) {
		if d.stop.Load() {
			return false
		}
		time.Sleep(2 * time.Millisecond)
	}
	return !d.stop.Load()
}

// Seek parks the receiver on the station it finds while the delay runs, so
// RDS read mid-seek belongs to the new station. A stopped seek returns to
// the starting frequency.
func (d *Driver) Seek(f tuner.Frequency, up bool) tuner.Frequency {
	d.stop.Store(false)
	d.mu.Lock()
	d.record("seek")
	found := tuner.Invalid
	if d.powered {
		found = d.nextStationLocked(f, up)
	}
	if found != tuner.Invalid {
		d.current = found
	}
	d.mu.Unlock()
	if !d.wait() {
		d.mu.Lock()
		d.current = f
		d.mu.Unlock()
		return tuner.Invalid
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.powered {
		return tuner.Invalid
	}
	return found
}

func (d *Driver) nextStationLocked(f tuner.Frequency, up bool) tuner.Frequency {
	next := f
	for range d.band.Channels() {
		next = d.band.Next(next, up)
		if next == f {
			break
		}
		if _, ok := d.stations[next]; ok {
			return next
		}
	}
	return tuner.Invalid
}

func (d *Driver) Scan() []tuner.Frequency {
	d.stop.Store(false)
	d.mu.Lock()
	d.record("scan")
	d.mu.Unlock()
	if !d.wait() {
		return []tuner.Frequency{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail.Scan || !d.powered {
		return nil
	}
	found := make([]tuner.Frequency, 0, len(d.stations))
	for _, f := range d.band.Channels() {
		if _, ok := d.stations[f]; ok {
			found = append(found, f)
		}
	}
	return found
}

func (d *Driver) StopScan() bool {
	log.Debugf("stop scan requested")
	d.stop.Store(true)
	return true
}

func (d *Driver) SetRDS(on bool) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rds = on
	return 0
}

func (d *Driver) RDSSupported() bool { return true }

func (d *Driver) ReadRDSEvents() tuner.RDSEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.powered || !d.rds {
		return 0
	}
	s, ok := d.stations[d.current]
	if !ok {
		return 0
	}
	var ev tuner.RDSEvent
	if s.ProgramService != "" {
		ev |= tuner.RDSEventProgramService
	}
	if s.RadioText != "" {
		ev |= tuner.RDSEventRadioText
	}
	if s.AF != 0 {
		ev |= tuner.RDSEventAF
	}
	return ev
}

func (d *Driver) ProgramService() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return []byte(d.stations[d.current].ProgramService)
}

func (d *Driver) RadioText() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return []byte(d.stations[d.current].RadioText)
}

func (d *Driver) ActiveAF() tuner.Frequency {
	d.mu.Lock()
	defer d.mu.Unlock()
	if af := d.stations[d.current].AF; af != 0 {
		return af
	}
	return tuner.Invalid
}

func (d *Driver) SetMute(mute bool) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.muted = mute
	return 0
}

func (d *Driver) SwitchAntenna(a tuner.Antenna) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("antenna")
	d.antenna = a
	return 0
}

func (d *Driver) SetLowPowerMode(low bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lowPower = low
	return true
}
