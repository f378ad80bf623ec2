// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	applog "fmradio/internal/log"
	"fmradio/internal/recorder"
	"fmradio/internal/transport"
	"fmradio/internal/tuner"
	"fmradio/internal/tuner/rtlsdr"
	"fmradio/internal/tuner/sim"
	"fmradio/pkg/bitint"
)

var log = applog.For("config")

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel  string          `yaml:"log_level"` // debug, info, warn or error
	Tuner     TunerConfig     `yaml:"tuner"`
	Audio     AudioConfig     `yaml:"audio"`
	Recording RecordingConfig `yaml:"recording"`
	RDS       RDSConfig       `yaml:"rds"`
	Stations  StationsConfig  `yaml:"stations"`
	Transport TransportConfig `yaml:"transport"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// TunerConfig selects and configures the tuner driver.
type TunerConfig struct {
	Driver      string        `yaml:"driver"` // sim or rtlsdr
	Band        tuner.Band    `yaml:"band"`
	RTLSDR      rtlsdr.Config `yaml:"rtlsdr"`
	SimStations []sim.Station `yaml:"sim_stations"`
}

// AudioConfig holds the render loop format and endpoints.
type AudioConfig struct {
	Backend         string `yaml:"backend"`           // tone, portaudio or rtp
	InputDevice     int    `yaml:"input_device"`      // PortAudio device index (-1 for default)
	OutputDevice    int    `yaml:"output_device"`     // PortAudio device index (-1 for default)
	SampleRate      int    `yaml:"sample_rate"`       // Hz
	Channels        int    `yaml:"channels"`          // 1 or 2
	FramesPerBuffer int    `yaml:"frames_per_buffer"` // power of two
	LowLatency      bool   `yaml:"low_latency"`
	// HardwarePatch routes tuner audio through an in-process patch service
	// so a plugged headset bypasses the render loop.
	HardwarePatch bool `yaml:"hardware_patch"`
}

// RecordingConfig holds settings for the recorder.
type RecordingConfig struct {
	Root          string        `yaml:"root"`      // storage root; recordings go to <root>/FM Recording
	Container     string        `yaml:"container"` // mp3 or wav
	QueueDepth    int           `yaml:"queue_depth"`
	WatchMounts   bool          `yaml:"watch_mounts"`
	MountInterval time.Duration `yaml:"mount_interval"`
}

type RDSConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// StationsConfig locates the station list. An empty path keeps it in memory.
type StationsConfig struct {
	Path string `yaml:"path"`
}

// TransportConfig holds the outbound event and audio transports. Empty
// addresses disable them.
type TransportConfig struct {
	WebSocketAddr string               `yaml:"websocket_addr"`
	MQTT          transport.MQTTConfig `yaml:"mqtt"`
	RTP           RTPConfig            `yaml:"rtp"`
}

// RTPConfig streams rendered audio as L16 over RTP when the rtp backend is
// selected.
type RTPConfig struct {
	Target     string `yaml:"target"`
	MaxPayload int    `yaml:"max_payload"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Tuner: TunerConfig{
			Driver:      DefaultDriver,
			Band:        defaultBand(),
			RTLSDR:      rtlsdr.DefaultConfig(),
			SimStations: append([]sim.Station(nil), defaultSimStations...),
		},
		Audio: AudioConfig{
			Backend:         DefaultBackend,
			InputDevice:     MinDeviceID,
			OutputDevice:    MinDeviceID,
			SampleRate:      DefaultSampleRate,
			Channels:        DefaultChannels,
			FramesPerBuffer: DefaultFramesPerBuffer,
		},
		Recording: RecordingConfig{
			Root:          ".",
			Container:     DefaultContainer,
			QueueDepth:    DefaultQueueDepth,
			WatchMounts:   true,
			MountInterval: DefaultMountInterval,
		},
		RDS: RDSConfig{Enabled: true, Interval: DefaultRDSInterval},
		Transport: TransportConfig{
			MQTT: transport.MQTTConfig{TopicPrefix: DefaultMQTTPrefix},
			RTP:  RTPConfig{MaxPayload: DefaultRTPMaxPayload},
		},
		Metrics: MetricsConfig{Path: DefaultMetricsPath},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("fmradio.yaml", "config.yaml"). If no file is found,
// it uses built-in defaults. After loading defaults or from file, it applies environment
// variable overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{"fmradio.yaml", "config.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Environment overrides win over the file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}

	switch c.Tuner.Driver {
	case DriverSim, DriverRTLSDR:
	default:
		errs = append(errs, fmt.Errorf("tuner.driver %q must be %s or %s", c.Tuner.Driver, DriverSim, DriverRTLSDR))
	}
	if err := c.Tuner.Band.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tuner.band: %w", err))
	}

	switch c.Audio.Backend {
	case BackendTone, BackendPortAudio:
	case BackendRTP:
		if c.Transport.RTP.Target == "" {
			errs = append(errs, errors.New("transport.rtp.target is required for the rtp backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("audio.backend %q must be tone, portaudio or rtp", c.Audio.Backend))
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d out of range [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate))
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		errs = append(errs, fmt.Errorf("audio.channels must be 1 or 2, got %d", c.Audio.Channels))
	}
	if fpb := c.Audio.FramesPerBuffer; fpb <= 0 || fpb > MaxBufferFrames || !bitint.IsPowerOfTwo(fpb) {
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer %d must be a power of two up to %d", fpb, MaxBufferFrames))
	}
	if c.Audio.InputDevice < MinDeviceID || c.Audio.OutputDevice < MinDeviceID {
		errs = append(errs, fmt.Errorf("audio device ids must be >= %d", MinDeviceID))
	}

	switch c.Recording.Container {
	case recorder.ContainerMP3, recorder.ContainerWAV:
	default:
		errs = append(errs, fmt.Errorf("recording.container %q must be mp3 or wav", c.Recording.Container))
	}
	if c.Recording.QueueDepth < 1 {
		errs = append(errs, fmt.Errorf("recording.queue_depth must be positive, got %d", c.Recording.QueueDepth))
	}
	if c.Recording.WatchMounts && c.Recording.MountInterval <= 0 {
		errs = append(errs, errors.New("recording.mount_interval must be positive when watching mounts"))
	}
	if c.RDS.Interval <= 0 {
		errs = append(errs, errors.New("rds.interval must be positive"))
	}
	if c.Transport.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("transport.mqtt.qos must be 0, 1 or 2, got %d", c.Transport.MQTT.QoS))
	}
	if c.Metrics.Addr != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path))
	}
	return errors.Join(errs...)
}

// applyEnvOverrides reads ENV_* variables. Unparseable values are ignored
// with a warning.
func (c *Config) applyEnvOverrides() {
	str := func(name string, dst *string) {
		if val, ok := os.LookupEnv(name); ok {
			*dst = val
			log.Infof("overriding %s from env: %s", name, val)
		}
	}
	boolean := func(name string, dst *bool) {
		if val, ok := os.LookupEnv(name); ok {
			b, err := strconv.ParseBool(val)
			if err != nil {
				log.Warnf("ignoring %s=%q: %v", name, val, err)
				return
			}
			*dst = b
			log.Infof("overriding %s from env: %t", name, b)
		}
	}

	// ENV_LOG_LEVEL
	str("ENV_LOG_LEVEL", &c.LogLevel)
	// ENV_TUNER_DRIVER
	str("ENV_TUNER_DRIVER", &c.Tuner.Driver)
	// ENV_AUDIO_BACKEND
	str("ENV_AUDIO_BACKEND", &c.Audio.Backend)
	// ENV_AUDIO_HARDWARE_PATCH
	boolean("ENV_AUDIO_HARDWARE_PATCH", &c.Audio.HardwarePatch)
	// ENV_RECORDING_ROOT
	str("ENV_RECORDING_ROOT", &c.Recording.Root)
	// ENV_RECORDING_CONTAINER
	str("ENV_RECORDING_CONTAINER", &c.Recording.Container)
	// ENV_STATIONS_PATH
	str("ENV_STATIONS_PATH", &c.Stations.Path)
	// ENV_RDS_ENABLED
	boolean("ENV_RDS_ENABLED", &c.RDS.Enabled)

	// ENV_{WEBSOCKET,MQTT,RTP,METRICS}_{...}
	// These are specific to the transport layer.
	str("ENV_WEBSOCKET_ADDR", &c.Transport.WebSocketAddr)
	str("ENV_MQTT_BROKER", &c.Transport.MQTT.Broker)
	str("ENV_MQTT_TOPIC_PREFIX", &c.Transport.MQTT.TopicPrefix)
	str("ENV_RTP_TARGET", &c.Transport.RTP.Target)
	str("ENV_METRICS_ADDR", &c.Metrics.Addr)
}
