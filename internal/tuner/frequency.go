package tuner

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Frequency is an FM station in tenths of a MHz: 875 is 87.5 MHz.
type Frequency int

// Invalid marks a failed seek or an unset frequency.
const Invalid Frequency = -1

const (
	DefaultLow     Frequency = 875
	DefaultHigh    Frequency = 1080
	DefaultStep    Frequency = 1
	DefaultStation Frequency = 1000
)

// FromMHz rounds a MHz value to the nearest tenth.
func FromMHz(mhz float64) Frequency {
	return Frequency(math.Round(mhz * 10))
}

// ParseFrequency accepts "87.5" style MHz values.
func ParseFrequency(s string) (Frequency, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return Invalid, fmt.Errorf("invalid frequency %q: %w", s, err)
	}
	return FromMHz(v), nil
}

func (f Frequency) MHz() float64 {
	return float64(f) / 10
}

// Hz is used by drivers that tune a synthesiser directly.
func (f Frequency) Hz() int {
	return int(f) * 100_000
}

func (f Frequency) String() string {
	if f < 0 {
		return "invalid"
	}
	return fmt.Sprintf("%d.%d", f/10, f%10)
}

// Band is the regional FM band a tuner is allowed to use.
type Band struct {
	Low  Frequency `yaml:"low"`
	High Frequency `yaml:"high"`
	Step Frequency `yaml:"step"`
}

// DefaultBand is 87.5 - 108.0 MHz in 100 kHz steps.
var DefaultBand = Band{Low: DefaultLow, High: DefaultHigh, Step: DefaultStep}

// Contains reports whether f is inside the band and on its raster.
func (b Band) Contains(f Frequency) bool {
	if f < b.Low || f > b.High {
		return false
	}
	if b.Step <= 1 {
		return true
	}
	return (f-b.Low)%b.Step == 0
}

// Next returns the adjacent channel, wrapping at the band edges.
func (b Band) Next(f Frequency, up bool) Frequency {
	step := b.Step
	if step <= 0 {
		step = 1
	}
	if up {
		f += step
		if f > b.High {
			return b.Low
		}
		return f
	}
	f -= step
	if f < b.Low {
		return b.High
	}
	return f
}

// Channels enumerates every channel of the band in ascending order.
func (b Band) Channels() []Frequency {
	step := b.Step
	if step <= 0 {
		step = 1
	}
	out := make([]Frequency, 0, int((b.High-b.Low)/step)+1)
	for f := b.Low; f <= b.High; f += step {
		out = append(out, f)
	}
	return out
}

func (b Band) Validate() error {
	if b.Low <= 0 || b.High <= b.Low {
		return fmt.Errorf("band %s-%s is empty", b.Low, b.High)
	}
	if b.Step <= 0 {
		return fmt.Errorf("band step must be positive, got %d", b.Step)
	}
	return nil
}
