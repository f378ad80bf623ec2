// Package tuner describes the FM tuner hardware boundary. Drivers are opaque
// synchronous calls; failures are reported as sentinel values, never errors,
// so the engine can revert state and report without unwinding.
package tuner

import (
	"bytes"
	"strings"
)

// RDSEvent is the bitmask returned by Driver.ReadRDSEvents.
type RDSEvent uint16

const (
	RDSEventProgramService RDSEvent = 0x0008
	RDSEventRadioText      RDSEvent = 0x0040
	RDSEventAF             RDSEvent = 0x0080
)

func (e RDSEvent) Has(bit RDSEvent) bool { return e&bit != 0 }

// Antenna selects the tuner input.
type Antenna int

const (
	// AntennaWired uses the headset cable.
	AntennaWired Antenna = 0
	// AntennaShort uses the built-in short antenna.
	AntennaShort Antenna = 1
)

func (a Antenna) String() string {
	switch a {
	case AntennaWired:
		return "wired"
	case AntennaShort:
		return "short"
	default:
		return "unknown"
	}
}

// PowerDownNormal is the only power-down kind the engine uses.
const PowerDownNormal = 0

// Driver is the tuner hardware surface. The engine worker is the only caller
// except for StopScan, which may be called from any goroutine to cut a running
// Seek or Scan short, and the RDS read calls, which the RDS poller makes from
// its own goroutine. A Seek or Scan that never returns blocks the engine.
type Driver interface {
	Open() bool
	Close() bool
	PowerUp(f Frequency) bool
	PowerDown(kind int) bool
	Tune(f Frequency) bool
	// Seek returns the next station from f, or Invalid.
	Seek(f Frequency, up bool) Frequency
	// Scan returns every station found, or nil on failure.
	Scan() []Frequency
	StopScan() bool
	SetRDS(on bool) int
	RDSSupported() bool
	ReadRDSEvents() RDSEvent
	ProgramService() []byte
	RadioText() []byte
	ActiveAF() Frequency
	SetMute(mute bool) int
	SwitchAntenna(a Antenna) int
	SetLowPowerMode(low bool) bool
}

// TrimRDS decodes a NUL-padded RDS string.
func TrimRDS(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}
