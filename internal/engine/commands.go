package engine

import (
	"fmradio/internal/rds"
	"fmradio/internal/tuner"
)

// Command is a request executed on the engine worker. Commands are plain
// values; results are reported through the event bus.
type Command interface {
	Name() string
	run(e *Engine)
}

// FocusChange is what the platform focus manager reports.
type FocusChange int

const (
	FocusGain FocusChange = iota
	FocusLoss
	FocusLossTransient
	FocusLossTransientCanDuck
)

func (f FocusChange) String() string {
	switch f {
	case FocusGain:
		return "gain"
	case FocusLoss:
		return "loss"
	case FocusLossTransient:
		return "loss_transient"
	case FocusLossTransientCanDuck:
		return "loss_transient_can_duck"
	default:
		return "unknown"
	}
}

// PowerUp powers the tuner and starts playing Freq. A zero Freq resumes the
// last station.
type PowerUp struct{ Freq tuner.Frequency }

type PowerDown struct{}

// Tune powers up first when needed.
type Tune struct{ Freq tuner.Frequency }

// Seek searches from Freq (zero means the current frequency).
type Seek struct {
	Freq tuner.Frequency
	Up   bool
}

type Scan struct{}

type SetRDS struct{ On bool }

type SetMute struct{ Mute bool }

type SwitchAntenna struct{ Antenna tuner.Antenna }

type StartRecording struct{}

type StopRecording struct{}

// SaveRecording keeps the last recording under Title; an empty Title
// discards it.
type SaveRecording struct{ Title string }

type SetRecordingMode struct{ On bool }

type AudioFocusChanged struct{ Change FocusChange }

type HeadsetPlugChanged struct{ Plugged bool }

type SetSpeaker struct{ On bool }

// PatchListChanged is posted when the routing service reports a new
// topology.
type PatchListChanged struct{}

// SetLowPowerMode mirrors the display turning off and on.
type SetLowPowerMode struct{ Low bool }

// SetForeground gates RDS notifications and headset auto power-up.
type SetForeground struct{ Foreground bool }

type StorageChanged struct {
	Path    string
	Mounted bool
}

type SetLocation struct{ Latitude, Longitude float64 }

// internal commands
type (
	rdsUpdate struct {
		kind  rds.Kind
		value string
		freq  tuner.Frequency
	}
	recorderFailure struct{ err error }
	barrier         struct{ done chan struct{} }
	exit            struct{}
)

func (PowerUp) Name() string            { return "power_up" }
func (PowerDown) Name() string          { return "power_down" }
func (Tune) Name() string               { return "tune" }
func (Seek) Name() string               { return "seek" }
func (Scan) Name() string               { return "scan" }
func (SetRDS) Name() string             { return "set_rds" }
func (SetMute) Name() string            { return "set_mute" }
func (SwitchAntenna) Name() string      { return "switch_antenna" }
func (StartRecording) Name() string     { return "start_recording" }
func (StopRecording) Name() string      { return "stop_recording" }
func (SaveRecording) Name() string      { return "save_recording" }
func (SetRecordingMode) Name() string   { return "set_recording_mode" }
func (AudioFocusChanged) Name() string  { return "audio_focus_changed" }
func (HeadsetPlugChanged) Name() string { return "headset_plug_changed" }
func (SetSpeaker) Name() string         { return "set_speaker" }
func (PatchListChanged) Name() string   { return "patch_list_changed" }
func (SetLowPowerMode) Name() string    { return "set_low_power_mode" }
func (SetForeground) Name() string      { return "set_foreground" }
func (StorageChanged) Name() string     { return "storage_changed" }
func (SetLocation) Name() string        { return "set_location" }
func (rdsUpdate) Name() string          { return "rds_update" }
func (recorderFailure) Name() string    { return "recorder_failure" }
func (barrier) Name() string            { return "sync" }
func (exit) Name() string               { return "exit" }

func (c PowerUp) run(e *Engine)            { e.handlePowerUp(c.Freq) }
func (PowerDown) run(e *Engine)            { e.handlePowerDown() }
func (c Tune) run(e *Engine)               { e.handleTune(c.Freq) }
func (c Seek) run(e *Engine)               { e.handleSeek(c.Freq, c.Up) }
func (Scan) run(e *Engine)                 { e.handleScan() }
func (c SetRDS) run(e *Engine)             { e.setRDS(c.On) }
func (c SetMute) run(e *Engine)            { e.setMute(c.Mute) }
func (c SwitchAntenna) run(e *Engine)      { e.switchAntenna(c.Antenna) }
func (StartRecording) run(e *Engine)       { e.startRecording() }
func (StopRecording) run(e *Engine)        { e.stopRecording() }
func (c SaveRecording) run(e *Engine)      { e.saveRecording(c.Title) }
func (c SetRecordingMode) run(e *Engine)   { e.setRecordingMode(c.On) }
func (c AudioFocusChanged) run(e *Engine)  { e.handleFocusChange(c.Change) }
func (c HeadsetPlugChanged) run(e *Engine) { e.handleHeadset(c.Plugged) }
func (c SetSpeaker) run(e *Engine)         { e.setSpeaker(c.On) }
func (PatchListChanged) run(e *Engine)     { e.handlePatchListChanged() }
func (c SetLowPowerMode) run(e *Engine)    { e.setLowPowerMode(c.Low) }
func (c SetForeground) run(e *Engine)      { e.foreground = c.Foreground }
func (c StorageChanged) run(e *Engine)     { e.handleStorageChanged(c.Path, c.Mounted) }
func (c SetLocation) run(e *Engine)        { e.setLocation(c.Latitude, c.Longitude) }
func (c rdsUpdate) run(e *Engine)          { e.handleRDSUpdate(c.kind, c.value, c.freq) }
func (c recorderFailure) run(e *Engine)    { e.handleRecorderFailure(c.err) }
func (c barrier) run(*Engine)              { close(c.done) }
func (exit) run(e *Engine)                 { e.handleExit() }

// coalesced commands keep only the newest pending instance.
var coalesced = map[string]bool{
	Tune{}.Name():             true,
	Seek{}.Name():             true,
	Scan{}.Name():             true,
	SetRDS{}.Name():           true,
	SetMute{}.Name():          true,
	SwitchAntenna{}.Name():    true,
	SetRecordingMode{}.Name(): true,
	SetSpeaker{}.Name():       true,
	SetLowPowerMode{}.Name():  true,
}

// supersedes reports whether queuing next drops the pending command.
func supersedes(next, pending Command) bool {
	switch n := next.(type) {
	case rdsUpdate:
		p, ok := pending.(rdsUpdate)
		return ok && p.kind == n.kind
	case PowerUp, PowerDown:
		switch pending.(type) {
		case PowerUp, PowerDown, Tune, Seek, Scan:
			return true
		}
		return false
	}
	return coalesced[next.Name()] && next.Name() == pending.Name()
}
