package engine

import (
	"fmradio/internal/audio"
	"fmradio/internal/event"
	"fmradio/internal/station"
	"fmradio/internal/tuner"
)

func (e *Engine) setFocus(s event.FocusState) {
	if e.focus == s {
		return
	}
	e.focus = s
	e.storeSnapshot()
	e.publish(event.FocusChanged{State: s})
}

// requestFocus asks the platform for focus unless it is already held, and
// restores the speaker choice saved when focus was last lost.
func (e *Engine) requestFocus() bool {
	if e.focus == event.FocusHeld {
		return true
	}
	if !e.focusMgr.Request() {
		return false
	}
	if e.speakerOnFocusLost {
		e.speakerOnFocusLost = false
		e.applySpeaker(true)
	}
	e.setFocus(event.FocusHeld)
	return true
}

func (e *Engine) handleFocusChange(c FocusChange) {
	log.Infof("audio focus %s (power %s, focus %s)", c, e.power, e.focus)
	switch c {
	case FocusGain:
		e.gainFocus()
	case FocusLoss:
		e.pausedByTransient = false
		e.loseFocus(event.FocusNone)
		e.focusMgr.Abandon()
	case FocusLossTransient:
		if e.power == event.PoweredUp {
			e.pausedByTransient = true
		}
		e.loseFocus(event.FocusTransientlyLost)
	case FocusLossTransientCanDuck:
		if e.power == event.PoweredUp {
			e.ducked = true
			e.setMute(true)
		}
	}
}

func (e *Engine) gainFocus() {
	if e.ducked {
		e.ducked = false
		if e.power == event.PoweredUp {
			e.setMute(false)
		}
	}
	if e.focus == event.FocusTransientlyLost && e.pausedByTransient {
		e.pausedByTransient = false
		if e.power == event.PoweredDown {
			ok := e.powerUp(e.resolveFrequency(e.freq))
			e.publish(event.PowerUpFinished{OK: ok, Frequency: e.freq})
			return
		}
	}
	if e.focus == event.FocusTransientlyLost {
		e.setFocus(event.FocusNone)
	}
}

// loseFocus mutes, ends any recording for good and powers down. Routing
// falls back to the headset so the next session never starts on the
// speaker by surprise.
func (e *Engine) loseFocus(next event.FocusState) {
	if e.power == event.PoweredUp {
		e.setMute(true)
	}
	if e.recorder.State() == event.RecorderRecording {
		e.discardRecording()
	}
	if e.power != event.PoweredDown {
		ok := e.powerDown()
		e.publish(event.PowerDownFinished{OK: ok})
	}
	e.forceToHeadsetMode()
	e.ducked = false
	e.setFocus(next)
}

func (e *Engine) forceToHeadsetMode() {
	if !e.speaker {
		return
	}
	e.speakerOnFocusLost = true
	e.applySpeaker(false)
}

func (e *Engine) setSpeaker(on bool) {
	if e.speaker == on {
		return
	}
	e.speakerOnFocusLost = false
	e.applySpeaker(on)
}

func (e *Engine) applySpeaker(on bool) {
	if err := e.router.SetForceSpeaker(on); err != nil {
		log.Warnf("force speaker %t: %v", on, err)
		return
	}
	e.speaker = on
	e.publish(event.SpeakerModeChanged{Speaker: on})
	if e.power == event.PoweredUp {
		if err := e.router.Reroute(); err != nil {
			log.Errorf("reroute audio: %v", err)
		}
	}
	e.publishRouting()
}

func (e *Engine) handleHeadset(plugged bool) {
	if e.headset == plugged {
		return
	}
	e.headset = plugged
	log.Infof("headset plugged %t", plugged)

	antenna := tuner.AntennaShort
	if plugged {
		antenna = tuner.AntennaWired
	}
	if e.antenna != antenna {
		e.switchAntenna(antenna)
	}

	switch {
	case e.power == event.PoweredUp:
		if err := e.router.Reroute(); err != nil {
			log.Errorf("reroute audio: %v", err)
		}
		e.publishRouting()
	case plugged && e.foreground && !e.pausedByTransient:
		ok := e.powerUp(e.resolveFrequency(0))
		e.publish(event.PowerUpFinished{OK: ok, Frequency: e.freq})
	default:
		e.publishRouting()
	}
}

func (e *Engine) handlePatchListChanged() {
	if e.power != event.PoweredUp {
		return
	}
	if err := e.router.OnPatchListChanged(); err != nil {
		log.Errorf("re-evaluate routing: %v", err)
	}
}

func (e *Engine) publishRouting() {
	mode := event.RouteSpeaker
	if e.headset && !e.speaker {
		mode = event.RouteHeadset
	}
	patch := e.router.Mode() == audio.ModePatch
	if patch && !e.headset {
		mode = event.RouteOtherPatch
	}
	e.publish(event.RoutingChanged{Mode: mode, Patch: patch})
}

// setLowPowerMode follows the display: RDS and full tuner power only while
// someone can see them.
func (e *Engine) setLowPowerMode(low bool) {
	if e.lowPower == low {
		return
	}
	e.lowPower = low
	if e.power != event.PoweredUp {
		return
	}
	if low {
		e.applyRDS(false)
		if !e.driver.SetLowPowerMode(true) {
			log.Warnf("enter low power mode failed")
		}
		return
	}
	if !e.driver.SetLowPowerMode(false) {
		log.Warnf("leave low power mode failed")
	}
	e.applyRDS(e.rdsOn)
}

func (e *Engine) setLocation(lat, lon float64) {
	e.location = &station.Coordinates{Latitude: lat, Longitude: lon}
}
