// Package event holds the closed set of notifications the engine publishes
// and the fan-out bus that delivers them.
package event

import (
	"fmradio/internal/station"
	"fmradio/internal/tuner"
)

// Event is implemented only by the types in this package.
type Event interface {
	// Name is the stable wire name used by transports.
	Name() string
	isEvent()
}

// PowerState mirrors the engine's power state machine.
type PowerState int

const (
	PoweredDown PowerState = iota
	PoweringUp
	PoweredUp
)

func (p PowerState) String() string {
	switch p {
	case PoweredDown:
		return "powered_down"
	case PoweringUp:
		return "powering_up"
	case PoweredUp:
		return "powered_up"
	default:
		return "unknown"
	}
}

func (p PowerState) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// RecorderState mirrors the recorder state machine.
type RecorderState int

const (
	RecorderIdle RecorderState = iota
	RecorderRecording
	RecorderPlayback
)

func (r RecorderState) String() string {
	switch r {
	case RecorderIdle:
		return "idle"
	case RecorderRecording:
		return "recording"
	case RecorderPlayback:
		return "playback"
	default:
		return "unknown"
	}
}

func (r RecorderState) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// ErrorKind classifies recorder failures so a UI can show a specific reason.
type ErrorKind int

const (
	StorageUnavailable ErrorKind = iota + 1
	StorageInsufficient
	StorageWriteFailed
	EncoderInternalError
	InvalidRecordingName
)

func (k ErrorKind) String() string {
	switch k {
	case StorageUnavailable:
		return "storage_unavailable"
	case StorageInsufficient:
		return "storage_insufficient"
	case StorageWriteFailed:
		return "storage_write_failed"
	case EncoderInternalError:
		return "encoder_internal_error"
	case InvalidRecordingName:
		return "invalid_recording_name"
	default:
		return "unknown"
	}
}

func (k ErrorKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// FocusState is the audio focus the engine currently holds.
type FocusState int

const (
	FocusNone FocusState = iota
	FocusHeld
	FocusTransientlyLost
)

func (f FocusState) String() string {
	switch f {
	case FocusNone:
		return "none"
	case FocusHeld:
		return "held"
	case FocusTransientlyLost:
		return "transiently_lost"
	default:
		return "unknown"
	}
}

func (f FocusState) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// RoutingMode is where tuner audio is currently going.
type RoutingMode int

const (
	RouteSpeaker RoutingMode = iota
	RouteHeadset
	RouteOtherPatch
)

func (r RoutingMode) String() string {
	switch r {
	case RouteSpeaker:
		return "speaker"
	case RouteHeadset:
		return "headset"
	case RouteOtherPatch:
		return "other"
	default:
		return "unknown"
	}
}

func (r RoutingMode) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

type PowerStateChanged struct {
	From PowerState `json:"from"`
	To   PowerState `json:"to"`
}

type PowerUpFinished struct {
	OK        bool            `json:"ok"`
	Frequency tuner.Frequency `json:"frequency"`
}

type PowerDownFinished struct {
	OK bool `json:"ok"`
}

type TuneFinished struct {
	OK        bool            `json:"ok"`
	Frequency tuner.Frequency `json:"frequency"`
}

type SeekFinished struct {
	OK        bool            `json:"ok"`
	Frequency tuner.Frequency `json:"frequency"`
}

type ScanFinished struct {
	OK        bool              `json:"ok"`
	Cancelled bool              `json:"cancelled"`
	Count     int               `json:"count"`
	Stations  []tuner.Frequency `json:"stations,omitempty"`
}

type ProgramServiceChanged struct {
	Frequency      tuner.Frequency `json:"frequency"`
	ProgramService string          `json:"program_service"`
}

type RadioTextChanged struct {
	Frequency tuner.Frequency `json:"frequency"`
	RadioText string          `json:"radio_text"`
}

type MuteChanged struct {
	Muted bool `json:"muted"`
}

type RDSChanged struct {
	Enabled bool `json:"enabled"`
}

type RecorderStateChanged struct {
	State RecorderState `json:"state"`
}

type RecorderError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

type RecordingSaved struct {
	Path string `json:"path"`
}

type AntennaChanged struct {
	Antenna tuner.Antenna `json:"antenna"`
	OK      bool          `json:"ok"`
}

type SpeakerModeChanged struct {
	Speaker bool `json:"speaker"`
}

type RoutingChanged struct {
	Mode  RoutingMode `json:"mode"`
	Patch bool        `json:"patch"`
}

type FocusChanged struct {
	State FocusState `json:"state"`
}

type StationsChanged struct {
	Stations []station.Station `json:"stations"`
}

type Exited struct{}

func (PowerStateChanged) Name() string     { return "power_state_changed" }
func (PowerUpFinished) Name() string       { return "power_up_finished" }
func (PowerDownFinished) Name() string     { return "power_down_finished" }
func (TuneFinished) Name() string          { return "tune_finished" }
func (SeekFinished) Name() string          { return "seek_finished" }
func (ScanFinished) Name() string          { return "scan_finished" }
func (ProgramServiceChanged) Name() string { return "program_service_changed" }
func (RadioTextChanged) Name() string      { return "radio_text_changed" }
func (MuteChanged) Name() string           { return "mute_changed" }
func (RDSChanged) Name() string            { return "rds_changed" }
func (RecorderStateChanged) Name() string  { return "recorder_state_changed" }
func (RecorderError) Name() string         { return "recorder_error" }
func (RecordingSaved) Name() string        { return "recording_saved" }
func (AntennaChanged) Name() string        { return "antenna_changed" }
func (SpeakerModeChanged) Name() string    { return "speaker_mode_changed" }
func (RoutingChanged) Name() string        { return "routing_changed" }
func (FocusChanged) Name() string          { return "focus_changed" }
func (StationsChanged) Name() string       { return "stations_changed" }
func (Exited) Name() string                { return "exited" }

func (PowerStateChanged) isEvent()     {}
func (PowerUpFinished) isEvent()       {}
func (PowerDownFinished) isEvent()     {}
func (TuneFinished) isEvent()          {}
func (SeekFinished) isEvent()          {}
func (ScanFinished) isEvent()          {}
func (ProgramServiceChanged) isEvent() {}
func (RadioTextChanged) isEvent()      {}
func (MuteChanged) isEvent()           {}
func (RDSChanged) isEvent()            {}
func (RecorderStateChanged) isEvent()  {}
func (RecorderError) isEvent()         {}
func (RecordingSaved) isEvent()        {}
func (AntennaChanged) isEvent()        {}
func (SpeakerModeChanged) isEvent()    {}
func (RoutingChanged) isEvent()        {}
func (FocusChanged) isEvent()          {}
func (StationsChanged) isEvent()       {}
func (Exited) isEvent()                {}
