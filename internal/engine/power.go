package engine

import (
	"fmradio/internal/event"
	"fmradio/internal/rds"
	"fmradio/internal/station"
	"fmradio/internal/tuner"
)

// validPowerEdge lists the only transitions the power state machine allows.
func validPowerEdge(from, to event.PowerState) bool {
	switch from {
	case event.PoweredDown:
		return to == event.PoweringUp
	case event.PoweringUp:
		return to == event.PoweredUp || to == event.PoweredDown
	case event.PoweredUp:
		return to == event.PoweredDown
	}
	return false
}

func (e *Engine) setPower(to event.PowerState) {
	from := e.power
	if from == to {
		return
	}
	if !validPowerEdge(from, to) {
		log.Errorf("refusing power transition %s -> %s", from, to)
		return
	}
	e.power = to
	log.Infof("power %s -> %s", from, to)
	e.storeSnapshot()
	e.publish(event.PowerStateChanged{From: from, To: to})
}

// resolveFrequency picks the station a bare PowerUp resumes.
func (e *Engine) resolveFrequency(f tuner.Frequency) tuner.Frequency {
	if f > 0 {
		return f
	}
	if cur, ok := e.store.Current(); ok && e.band.Contains(cur) {
		return cur
	}
	if e.band.Contains(e.freq) {
		return e.freq
	}
	if e.band.Contains(tuner.DefaultStation) {
		return tuner.DefaultStation
	}
	return e.band.Low
}

func (e *Engine) handlePowerUp(f tuner.Frequency) {
	if e.power == event.PoweredUp {
		e.publish(event.PowerUpFinished{OK: true, Frequency: e.freq})
		return
	}
	ok := e.powerUp(e.resolveFrequency(f))
	e.publish(event.PowerUpFinished{OK: ok, Frequency: e.freq})
}

// powerUp takes the tuner from PoweredDown to PoweredUp at f and starts
// audio. On any failure the engine is left powered down.
func (e *Engine) powerUp(f tuner.Frequency) bool {
	if !e.band.Contains(f) {
		log.Warnf("power up: %s is outside the band", f)
		return false
	}
	e.acquireWakeLock()
	if !e.requestFocus() {
		log.Warnf("power up: audio focus denied")
		e.releaseWakeLock()
		return false
	}
	if !e.deviceOpen {
		if !e.driver.Open() {
			log.Errorf("power up: tuner open failed")
			e.releaseWakeLock()
			return false
		}
		e.deviceOpen = true
	}

	e.setPower(event.PoweringUp)
	if !e.driver.PowerUp(f) {
		log.Errorf("power up at %s failed", f)
		e.setPower(event.PoweredDown)
		e.releaseWakeLock()
		return false
	}
	e.driverMute(true)
	e.setPower(event.PoweredUp)
	e.setFrequency(f)
	e.playFrequency()
	return true
}

// playFrequency starts RDS and audio for the tuned station and unmutes.
func (e *Engine) playFrequency() {
	e.clearRDSCache()
	if e.lowPower {
		e.driver.SetLowPowerMode(true)
	} else {
		e.applyRDS(e.rdsOn)
	}
	if err := e.router.Activate(); err != nil {
		log.Errorf("start audio: %v", err)
	}
	e.setMute(false)
}

func (e *Engine) handlePowerDown() {
	if e.power == event.PoweredDown {
		e.publish(event.PowerDownFinished{OK: true})
		return
	}
	ok := e.powerDown()
	e.publish(event.PowerDownFinished{OK: ok})
}

// powerDown always ends PoweredDown; a failing driver is only logged so
// audio is never left live.
func (e *Engine) powerDown() bool {
	if e.recorder.State() == event.RecorderRecording {
		e.stopRecording()
	}
	e.applyRDS(false)
	e.driverMute(true)
	e.router.Deactivate()
	ok := e.driver.PowerDown(tuner.PowerDownNormal)
	if !ok {
		log.Warnf("tuner power down reported failure")
	}
	e.setPower(event.PoweredDown)
	e.clearRDSCache()
	e.releaseWakeLock()
	return ok
}

func (e *Engine) handleTune(f tuner.Frequency) {
	if !e.band.Contains(f) {
		log.Warnf("tune: %s is outside the band", f)
		e.publish(event.TuneFinished{OK: false, Frequency: e.freq})
		return
	}
	var ok bool
	if e.power != event.PoweredUp {
		ok = e.powerUp(f)
		e.publish(event.PowerUpFinished{OK: ok, Frequency: e.freq})
	} else {
		ok = e.tune(f)
	}
	e.publish(event.TuneFinished{OK: ok, Frequency: e.freq})
}

// tune retunes a powered tuner. RDS is switched off around the driver call
// and back on whatever the outcome; a failed tune keeps the old frequency.
func (e *Engine) tune(f tuner.Frequency) bool {
	rdsWasOn := e.rdsOn && !e.lowPower
	if rdsWasOn {
		e.applyRDS(false)
	}
	ok := e.driver.Tune(f)
	if ok {
		e.setFrequency(f)
		e.clearRDSCache()
	} else {
		log.Warnf("tune to %s failed, staying on %s", f, e.freq)
	}
	if rdsWasOn {
		e.applyRDS(true)
	}
	if ok {
		e.setMute(false)
	}
	return ok
}

func (e *Engine) handleSeek(from tuner.Frequency, up bool) {
	if e.power != event.PoweredUp {
		log.Warnf("seek ignored while %s", e.power)
		e.publish(event.SeekFinished{OK: false, Frequency: e.freq})
		return
	}
	if !e.band.Contains(from) {
		from = e.freq
	}

	// RDS decoded mid-seek belongs to whatever the sweep passes
	rdsWasOn := e.rdsOn && !e.lowPower
	if rdsWasOn {
		e.applyRDS(false)
	}
	e.stopScanCalled.Store(false)
	e.seeking = true
	e.nativeSeeking.Store(true)
	e.storeSnapshot()
	found := e.driver.Seek(from, up)
	e.nativeSeeking.Store(false)
	e.seeking = false
	cancelled := e.stopScanCalled.Swap(false)
	if rdsWasOn {
		e.applyRDS(true)
	}

	ok := false
	switch {
	case cancelled:
		log.Infof("seek from %s cancelled", from)
	case found == tuner.Invalid || !e.band.Contains(found):
		log.Infof("seek from %s found nothing", from)
	default:
		ok = e.tune(found)
	}
	e.publish(event.SeekFinished{OK: ok, Frequency: e.freq})
}

func (e *Engine) handleScan() {
	if e.power != event.PoweredUp {
		log.Warnf("scan ignored while %s", e.power)
		e.publish(event.ScanFinished{OK: false})
		return
	}

	e.driverMute(true)
	rdsWasOn := e.rdsOn && !e.lowPower
	if rdsWasOn {
		e.applyRDS(false)
	}
	e.stopScanCalled.Store(false)
	e.scanning = true
	e.nativeScanning.Store(true)
	e.storeSnapshot()
	found := e.driver.Scan()
	e.nativeScanning.Store(false)
	e.scanning = false
	cancelled := e.stopScanCalled.Swap(false)

	result := event.ScanFinished{}
	switch {
	case cancelled:
		log.Infof("scan cancelled")
		result.Cancelled = true
	case found == nil:
		log.Warnf("scan failed")
	default:
		result = e.mergeScan(found)
	}

	// the scan leaves the tuner wherever it stopped
	if !e.driver.Tune(e.freq) {
		log.Warnf("retune to %s after scan failed", e.freq)
	}
	if rdsWasOn {
		e.applyRDS(true)
	}
	e.setMute(false)
	e.publish(result)
}

func (e *Engine) mergeScan(found []tuner.Frequency) event.ScanFinished {
	flush := false
	if e.location != nil {
		if prev, ok := e.store.LastScanLocation(); ok && station.DistanceExceeded(prev, *e.location) {
			log.Infof("moved more than %.0f m since the last scan, flushing stations", station.FlushDistance)
			flush = true
		}
	}
	count, err := station.Merge(e.store, found, e.band, flush)
	if err != nil {
		log.Errorf("merge scan result: %v", err)
		return event.ScanFinished{OK: false, Count: count}
	}
	if e.location != nil {
		if err := e.store.SetLastScanLocation(*e.location); err != nil {
			log.Warnf("save scan location: %v", err)
		}
	}
	stations := make([]tuner.Frequency, 0, count)
	for _, f := range found {
		if e.band.Contains(f) {
			stations = append(stations, f)
		}
	}
	if list, err := e.store.List(); err == nil {
		e.publish(event.StationsChanged{Stations: list})
	} else {
		log.Warnf("list stations: %v", err)
	}
	log.Infof("scan found %d station(s)", count)
	return event.ScanFinished{OK: true, Count: count, Stations: stations}
}

func (e *Engine) setFrequency(f tuner.Frequency) {
	e.freq = f
	if err := e.store.SetCurrent(f); err != nil {
		log.Warnf("save current station: %v", err)
	}
}

// driverMute changes the hardware mute without reporting it; used around
// power and scan transitions.
func (e *Engine) driverMute(mute bool) {
	if code := e.driver.SetMute(mute); code < 0 {
		log.Warnf("set mute %t: driver returned %d", mute, code)
	}
	e.muted = mute
}

func (e *Engine) setMute(mute bool) {
	was := e.muted
	if e.power == event.PoweredUp {
		if code := e.driver.SetMute(mute); code < 0 {
			log.Warnf("set mute %t: driver returned %d", mute, code)
			return
		}
	}
	e.muted = mute
	if was != mute {
		e.publish(event.MuteChanged{Muted: mute})
	}
}

func (e *Engine) setRDS(on bool) {
	if e.rdsOn == on {
		return
	}
	e.rdsOn = on
	if e.power == event.PoweredUp && !e.lowPower {
		e.applyRDS(on)
	}
	e.publish(event.RDSChanged{Enabled: on})
}

// applyRDS switches RDS in the driver and runs or stops the poller to match.
func (e *Engine) applyRDS(on bool) {
	if on && !e.driver.RDSSupported() {
		return
	}
	if on {
		if code := e.driver.SetRDS(true); code < 0 {
			log.Warnf("enable rds: driver returned %d", code)
			return
		}
		e.poller.Start()
		return
	}
	e.poller.Stop()
	if e.power == event.PoweredUp {
		e.driver.SetRDS(false)
	}
}

func (e *Engine) switchAntenna(a tuner.Antenna) {
	code := e.driver.SwitchAntenna(a)
	ok := code == 0
	if ok {
		e.antenna = a
	} else {
		log.Warnf("switch antenna to %s: driver returned %d", a, code)
	}
	e.publish(event.AntennaChanged{Antenna: e.antenna, OK: ok})
}

func (e *Engine) clearRDSCache() {
	e.psCache, e.rtCache = "", ""
}

// handleRDSUpdate stores and reports a decoded value only when it differs
// from the cached one. Values read before a retune are dropped.
func (e *Engine) handleRDSUpdate(kind rds.Kind, value string, freq tuner.Frequency) {
	if e.power != event.PoweredUp || freq != e.freq || value == "" {
		return
	}
	switch kind {
	case rds.ProgramService:
		if value == e.psCache {
			return
		}
		e.psCache = value
		if err := e.store.SetProgramService(freq, value); err != nil {
			log.Warnf("save program service: %v", err)
		}
	case rds.RadioText:
		if value == e.rtCache {
			return
		}
		e.rtCache = value
		if err := e.store.SetRadioText(freq, value); err != nil {
			log.Warnf("save radio text: %v", err)
		}
	}
	e.metrics.RDSUpdate(kind.String())
	if !e.foreground {
		return
	}
	if kind == rds.ProgramService {
		e.publish(event.ProgramServiceChanged{Frequency: freq, ProgramService: value})
	} else {
		e.publish(event.RadioTextChanged{Frequency: freq, RadioText: value})
	}
}

func (e *Engine) acquireWakeLock() {
	if !e.wakeHeld {
		e.wakeLock.Acquire()
		e.wakeHeld = true
	}
}

func (e *Engine) releaseWakeLock() {
	if e.wakeHeld {
		e.wakeLock.Release()
		e.wakeHeld = false
	}
}
