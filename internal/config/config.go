package config

import (
	"time"

	"fmradio/internal/tuner"
	"fmradio/internal/tuner/sim"
)

// Defaults and limits for the runtime configuration.
const (
	DefaultLogLevel        = "info"
	DefaultDriver          = DriverSim
	DefaultBackend         = BackendTone
	DefaultSampleRate      = 44100
	DefaultChannels        = 2
	DefaultFramesPerBuffer = 1024
	DefaultContainer       = "mp3"
	DefaultQueueDepth      = 64
	DefaultRDSInterval     = 500 * time.Millisecond
	DefaultMountInterval   = 5 * time.Second
	DefaultMetricsPath     = "/metrics"
	DefaultMQTTPrefix      = "fmradio"
	DefaultRTPMaxPayload   = 1200

	MinDeviceID     = -1 // system default device
	MinSampleRate   = 8000
	MaxSampleRate   = 192000
	MaxBufferFrames = 8192
)

// Tuner drivers.
const (
	DriverSim    = "sim"
	DriverRTLSDR = "rtlsdr"
)

// Audio backends for the render loop.
const (
	BackendTone      = "tone"
	BackendPortAudio = "portaudio"
	BackendRTP       = "rtp"
)

// defaultSimStations gives the simulator something to find.
var defaultSimStations = []sim.Station{
	{Frequency: 889, ProgramService: "JAZZ FM", RadioText: "Late night jazz"},
	{Frequency: 935, ProgramService: "NEWS 93", RadioText: "News on the hour"},
	{Frequency: 1000, ProgramService: "CITY100", RadioText: "Your city station"},
	{Frequency: 1047, ProgramService: "CITY100", RadioText: "Your city station"},
	{Frequency: 1061, ProgramService: "CLASSIC"},
}

func defaultBand() tuner.Band { return tuner.DefaultBand }
