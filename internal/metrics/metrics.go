// Package metrics exposes engine, render, recorder and RDS counters to
// Prometheus. Each engine gets its own registry so tests never collide.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fmradio"

// Metrics holds every collector the engine updates.
type Metrics struct {
	commands        *prometheus.CounterVec   // executed commands by name
	commandDuration *prometheus.HistogramVec // handler latency by name
	superseded      prometheus.Counter       // pending commands dropped by a newer one
	panics          prometheus.Counter       // recovered handler panics

	powerState   prometheus.Gauge
	frequencyMHz prometheus.Gauge

	renderFrames  prometheus.Counter
	renderBytes   prometheus.Counter
	renderIgnored prometheus.Counter

	recorderState  prometheus.Gauge
	recorderBytes  prometheus.Gauge
	recorderErrors *prometheus.CounterVec

	rdsUpdates *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands executed by the engine worker",
		}, []string{"command"}),
		commandDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent executing one engine command",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 30},
		}, []string{"command"}),
		superseded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_superseded_total",
			Help:      "Pending commands dropped in favour of a newer one",
		}),
		panics: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_panics_total",
			Help:      "Command handlers that panicked and were recovered",
		}),
		powerState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "power_state",
			Help:      "Tuner power state (0 down, 1 powering up, 2 up)",
		}),
		frequencyMHz: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frequency_mhz",
			Help:      "Currently tuned frequency in MHz",
		}),
		renderFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_frames_total",
			Help:      "PCM buffers copied from capture to playback",
		}),
		renderBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_bytes_total",
			Help:      "PCM bytes copied from capture to playback",
		}),
		renderIgnored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_frames_ignored_total",
			Help:      "Start-up buffers dropped after the render loop was enabled",
		}),
		recorderState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recorder_state",
			Help:      "Recorder state (0 idle, 1 recording)",
		}),
		recorderBytes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recorder_bytes",
			Help:      "Bytes written by the current or last recording",
		}),
		recorderErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recorder_errors_total",
			Help:      "Recorder failures by kind",
		}, []string{"kind"}),
		rdsUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rds_updates_total",
			Help:      "RDS values that changed and were stored",
		}, []string{"kind"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) CommandExecuted(name string, seconds float64) {
	m.commands.WithLabelValues(name).Inc()
	m.commandDuration.WithLabelValues(name).Observe(seconds)
}

func (m *Metrics) CommandSuperseded(n int) { m.superseded.Add(float64(n)) }
func (m *Metrics) CommandPanicked()        { m.panics.Inc() }

func (m *Metrics) SetPowerState(state int)    { m.powerState.Set(float64(state)) }
func (m *Metrics) SetFrequency(mhz float64)   { m.frequencyMHz.Set(mhz) }
func (m *Metrics) SetRecorderState(state int) { m.recorderState.Set(float64(state)) }
func (m *Metrics) SetRecorderBytes(n int64)   { m.recorderBytes.Set(float64(n)) }

func (m *Metrics) RecorderError(kind string) { m.recorderErrors.WithLabelValues(kind).Inc() }
func (m *Metrics) RDSUpdate(kind string)     { m.rdsUpdates.WithLabelValues(kind).Inc() }

// FrameRendered and FrameIgnored make Metrics a render loop observer.
func (m *Metrics) FrameRendered(bytes int) {
	m.renderFrames.Inc()
	m.renderBytes.Add(float64(bytes))
}

func (m *Metrics) FrameIgnored() { m.renderIgnored.Inc() }
