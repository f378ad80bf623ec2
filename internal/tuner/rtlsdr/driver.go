// Package rtlsdr drives an RTL2832U dongle as an FM tuner. Tuning sets the
// dongle's centre frequency; seek and scan sweep the band and test each
// channel for a carrier. Audio demodulation and RDS are not done here, so the
// driver reports RDS as unsupported and treats mute and antenna selection as
// accepted no-ops.
package rtlsdr

import (
	"fmt"
	"sync"
	"sync/atomic"

	applog "fmradio/internal/log"
	"fmradio/internal/tuner"
	"fmradio/internal/tuner/carrier"
	"fmradio/pkg/bitint"

	rtl "github.com/jpoirier/gortlsdr"
)

var log = applog.For("rtlsdr")

// Config holds the dongle settings.
type Config struct {
	DeviceIndex int     `yaml:"device_index"`
	SampleRate  int     `yaml:"sample_rate"`
	Gain        int     `yaml:"gain"` // tenths of a dB, 0 for automatic gain
	ThresholdDB float64 `yaml:"threshold_db"`
	FFTSize     int     `yaml:"fft_size"`
	Window      string  `yaml:"window"`
}

// DefaultConfig returns settings that work for most R820T dongles.
func DefaultConfig() Config {
	return Config{
		SampleRate:  1_024_000,
		ThresholdDB: 10,
		FFTSize:     1024,
		Window:      "hann",
	}
}

const (
	// The dongle is tuned this far above the channel so the carrier stays
	// clear of the zero-IF DC spike.
	offsetHz    = 250_000
	halfWidthHz = 100_000
	blocks      = 8
)

// Driver implements tuner.Driver.
type Driver struct {
	cfg  Config
	band tuner.Band

	mu       sync.Mutex
	dev      *rtl.Context
	detector *carrier.Detector
	iq       []byte
	current  tuner.Frequency
	powered  bool

	stop atomic.Bool
}

var _ tuner.Driver = (*Driver)(nil)

func New(cfg Config, band tuner.Band) (*Driver, error) {
	w, err := carrier.ParseWindowFunc(cfg.Window)
	if err != nil {
		return nil, err
	}
	size := bitint.NextPowerOfTwo(cfg.FFTSize)
	det, err := carrier.NewDetector(size, float64(cfg.SampleRate), w)
	if err != nil {
		return nil, fmt.Errorf("failed to build carrier detector: %w", err)
	}
	return &Driver{
		cfg:      cfg,
		band:     band,
		detector: det,
		iq:       make([]byte, 2*size*blocks),
		current:  tuner.Invalid,
	}, nil
}

func (d *Driver) Open() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev != nil {
		return true
	}
	if n := rtl.GetDeviceCount(); n <= d.cfg.DeviceIndex {
		log.Warnf("device %d requested, %d present", d.cfg.DeviceIndex, n)
		return false
	}
	dev, err := rtl.Open(d.cfg.DeviceIndex)
	if err != nil {
		log.Warnf("open failed: %v", err)
		return false
	}
	if err := dev.SetSampleRate(d.cfg.SampleRate); err != nil {
		log.Warnf("set sample rate failed: %v", err)
		dev.Close()
		return false
	}
	manual := d.cfg.Gain != 0
	if err := dev.SetTunerGainMode(manual); err != nil {
		log.Warnf("set gain mode failed: %v", err)
	}
	if manual {
		if err := dev.SetTunerGain(d.cfg.Gain); err != nil {
			log.Warnf("set gain failed: %v", err)
		}
	}
	d.dev = dev
	return true
}

func (d *Driver) Close() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return true
	}
	err := d.dev.Close()
	d.dev = nil
	d.powered = false
	if err != nil {
		log.Warnf("close failed: %v", err)
		return false
	}
	return true
}

// setFrequency must be called with mu held.
func (d *Driver) setFrequency(f tuner.Frequency) bool {
	if d.dev == nil || !d.band.Contains(f) {
		return false
	}
	if err := d.dev.SetCenterFreq(f.Hz() + offsetHz); err != nil {
		log.Warnf("set centre frequency %s failed: %v", f, err)
		return false
	}
	if err := d.dev.ResetBuffer(); err != nil {
		log.Warnf("reset buffer failed: %v", err)
	}
	return true
}

func (d *Driver) PowerUp(f tuner.Frequency) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.setFrequency(f) {
		return false
	}
	d.current = f
	d.powered = true
	return true
}

func (d *Driver) PowerDown(kind int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.powered = false
	return true
}

func (d *Driver) Tune(f tuner.Frequency) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.powered || !d.setFrequency(f) {
		return false
	}
	d.current = f
	return true
}

// hasCarrier must be called with mu held.
func (d *Driver) hasCarrier(f tuner.Frequency) bool {
	if !d.setFrequency(f) {
		return false
	}
	n, err := d.dev.ReadSync(d.iq, len(d.iq))
	if err != nil {
		log.Warnf("read at %s failed: %v", f, err)
		return false
	}
	snr, err := d.detector.ChannelSNR(d.iq[:n], -offsetHz, halfWidthHz)
	if err != nil {
		log.Debugf("measure %s: %v", f, err)
		return false
	}
	log.Debugf("%s snr %.1f dB", f, snr)
	return snr >= d.cfg.ThresholdDB
}

func (d *Driver) Seek(f tuner.Frequency, up bool) tuner.Frequency {
	d.stop.Store(false)
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.powered {
		return tuner.Invalid
	}
	found := tuner.Invalid
	next := f
	for range d.band.Channels() {
		next = d.band.Next(next, up)
		if next == f || d.stop.Load() {
			break
		}
		if d.hasCarrier(next) {
			found = next
			break
		}
	}
	d.setFrequency(d.current)
	return found
}

func (d *Driver) Scan() []tuner.Frequency {
	d.stop.Store(false)
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.powered {
		return nil
	}
	var found []tuner.Frequency
	for _, ch := range d.band.Channels() {
		if d.stop.Load() {
			break
		}
		if d.hasCarrier(ch) {
			found = append(found, ch)
		}
	}
	d.setFrequency(d.current)
	if found == nil {
		found = []tuner.Frequency{}
	}
	return found
}

func (d *Driver) StopScan() bool {
	d.stop.Store(true)
	return true
}

func (d *Driver) SetRDS(on bool) int { return -1 }
func (d *Driver) RDSSupported() bool { return false }
func (d *Driver) ReadRDSEvents() tuner.RDSEvent { return 0 }
func (d *Driver) ProgramService() []byte { return nil }
func (d *Driver) RadioText() []byte { return nil }
func (d *Driver) ActiveAF() tuner.Frequency { return tuner.Invalid }
func (d *Driver) SetMute(mute bool) int { return 0 }
func (d *Driver) SwitchAntenna(a tuner.Antenna) int { return 0 }
func (d *Driver) SetLowPowerMode(low bool) bool { return true }
