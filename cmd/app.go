// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"fmradio/internal/audio"
	"fmradio/internal/config"
	"fmradio/internal/engine"
	applog "fmradio/internal/log"
	"fmradio/internal/metrics"
	"fmradio/internal/recorder"
	"fmradio/internal/station"
	"fmradio/internal/transport"
	"fmradio/internal/transport/udp"
	"fmradio/internal/tuner"
	"fmradio/internal/tuner/rtlsdr"
	"fmradio/internal/tuner/sim"
)

var log = applog.For("app")

// app is one fully wired engine plus everything hanging off it.
type app struct {
	cfg     *config.Config
	engine  *engine.Engine
	store   station.Store
	patches *audio.MemoryPatchService // nil unless audio.hardware_patch
	cleanup []func() error
}

// Seams so wiring can be tested without hardware.
var (
	openDriver = func(cfg config.TunerConfig) (tuner.Driver, error) {
		switch cfg.Driver {
		case config.DriverRTLSDR:
			d, err := rtlsdr.New(cfg.RTLSDR, cfg.Band)
			if err != nil {
				return nil, err
			}
			return d, nil
		default:
			return sim.New(cfg.Band, cfg.SimStations...), nil
		}
	}
	portAudioInit = audio.Initialize
	portAudioTerm = audio.Terminate
)

func openStore(cfg *config.Config) (station.Store, error) {
	if cfg.Stations.Path == "" {
		return station.NewMemoryStore(), nil
	}
	return station.OpenFileStore(cfg.Stations.Path)
}

// newApp builds the engine from cfg. The engine is not started.
func newApp(cfg *config.Config) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.shutdown(context.Background())
			a = nil
		}
	}()

	if a.store, err = openStore(cfg); err != nil {
		return a, err
	}
	driver, err := openDriver(cfg.Tuner)
	if err != nil {
		return a, fmt.Errorf("open tuner: %w", err)
	}

	format := audio.Format{SampleRate: cfg.Audio.SampleRate, Channels: cfg.Audio.Channels, BitsPerSample: 16}
	endpoints, err := a.endpoints(format)
	if err != nil {
		return a, err
	}

	reg := prometheus.NewRegistry()
	opts := engine.Options{
		Driver:    driver,
		Band:      cfg.Tuner.Band,
		Store:     a.store,
		Format:    format,
		Endpoints: endpoints,
		Recorder: recorder.Options{
			Format:     format,
			Container:  cfg.Recording.Container,
			QueueDepth: cfg.Recording.QueueDepth,
		},
		RecordingRoot: cfg.Recording.Root,
		RDSInterval:   cfg.RDS.Interval,
		Registry:      reg,
		Foreground:    true,
	}
	if cfg.Audio.HardwarePatch {
		a.patches = audio.NewMemoryPatchService()
		opts.Patches = a.patches
	}
	if a.engine, err = engine.New(opts); err != nil {
		return a, err
	}
	if a.patches != nil {
		e := a.engine
		a.patches.OnChange(func() {
			if err := e.PatchListChanged(); err != nil {
				log.Debugf("patch list change dropped: %v", err)
			}
		})
	}

	if err := a.transports(reg); err != nil {
		return a, err
	}

	if cfg.Recording.WatchMounts && cfg.Recording.Root != "" {
		e := a.engine
		w := recorder.NewMountWatcher(cfg.Recording.MountInterval, []string{cfg.Recording.Root}, func(path string, mounted bool) {
			if err := e.Submit(engine.StorageChanged{Path: path, Mounted: mounted}); err != nil {
				log.Debugf("storage change dropped: %v", err)
			}
		})
		w.Start()
		a.onShutdown(func() error { w.Stop(); return nil })
	}
	return a, nil
}

func (a *app) onShutdown(fn func() error) { a.cleanup = append(a.cleanup, fn) }

func (a *app) endpoints(format audio.Format) (audio.Endpoints, error) {
	cfg := a.cfg.Audio
	tone := func(f audio.Format) (audio.Capture, error) {
		return audio.NewToneCapture(f, 440, cfg.FramesPerBuffer), nil
	}

	switch cfg.Backend {
	case config.BackendPortAudio:
		if err := portAudioInit(); err != nil {
			return nil, err
		}
		a.onShutdown(portAudioTerm)
		return audio.PortAudioEndpoints(audio.PortAudioConfig{
			InputDevice:     cfg.InputDevice,
			OutputDevice:    cfg.OutputDevice,
			FramesPerBuffer: cfg.FramesPerBuffer,
			LowLatency:      cfg.LowLatency,
		}), nil

	case config.BackendRTP:
		sender, err := udp.NewUDPSender(a.cfg.Transport.RTP.Target)
		if err != nil {
			return nil, fmt.Errorf("rtp sender: %w", err)
		}
		a.onShutdown(sender.Close)
		packetizer, err := udp.NewRTPPacketizer(sender, uuid.New().ID(), format.Channels, a.cfg.Transport.RTP.MaxPayload)
		if err != nil {
			return nil, err
		}
		log.Infof("streaming L16 audio over RTP to %s", a.cfg.Transport.RTP.Target)
		return audio.RTPEndpoints(tone, packetizer), nil

	default:
		return func(f audio.Format) (audio.Capture, audio.Playback, error) {
			c, _ := tone(f)
			return c, &audio.DiscardPlayback{}, nil
		}, nil
	}
}

// transports attaches every configured event sink to the engine bus and
// starts the metrics endpoint.
func (a *app) transports(reg *prometheus.Registry) error {
	cfg := a.cfg
	sinks := transport.Multi{transport.NewLoggingTransport()}

	var wsMux *http.ServeMux
	if cfg.Transport.WebSocketAddr != "" {
		wsMux = http.NewServeMux()
		if cfg.Metrics.Addr == cfg.Transport.WebSocketAddr {
			wsMux.Handle(cfg.Metrics.Path, metrics.Handler(reg))
		}
		ws, err := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddr, wsMux)
		if err != nil {
			return fmt.Errorf("websocket: %w", err)
		}
		sinks = append(sinks, ws)
	}
	if cfg.Transport.MQTT.Broker != "" {
		mq, err := transport.NewMQTTTransport(cfg.Transport.MQTT)
		if err != nil {
			log.Errorf("mqtt disabled: %v", err)
		} else {
			sinks = append(sinks, mq)
		}
	}

	bus := a.engine.Bus()
	h := transport.Attach(bus, sinks)
	a.onShutdown(func() error {
		bus.Unsubscribe(h)
		return sinks.Close()
	})

	if cfg.Metrics.Addr != "" && cfg.Metrics.Addr != cfg.Transport.WebSocketAddr {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler(reg))
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Infof("metrics on %s%s", cfg.Metrics.Addr, cfg.Metrics.Path)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("metrics server: %v", err)
			}
		}()
		a.onShutdown(srv.Close)
	}
	return nil
}

// start runs the worker and applies the startup RDS preference.
func (a *app) start() error {
	a.engine.Start()
	if !a.cfg.RDS.Enabled {
		return a.engine.SetRDS(false)
	}
	return nil
}

// shutdown closes the engine first so the bus goes quiet before the
// transports are torn down.
func (a *app) shutdown(ctx context.Context) error {
	var errs []error
	if a.engine != nil {
		if err := a.engine.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close engine: %w", err))
		}
	}
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		if err := a.cleanup[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanup = nil
	return errors.Join(errs...)
}
