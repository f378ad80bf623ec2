// SPDX-License-Identifier: MIT

// Package carrier decides whether an FM carrier is present in a block of
// 8-bit IQ samples, the way an SDR-backed tuner implements seek and scan.
package carrier

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"
	"strings"

	"fmradio/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// WindowFunc selects the window applied before each FFT.
type WindowFunc int

const (
	Hann WindowFunc = iota
	Hamming
	Blackman
	BlackmanNuttall
	Nuttall
)

// ParseWindowFunc converts a case-insensitive name to a WindowFunc, returning
// Hann and an error for unknown names.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "", "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown window function %q", name)
	}
}

func windowCoefficients(n int, w WindowFunc) []float64 {
	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1
	}
	switch w {
	case Hamming:
		window.Hamming(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		window.Hann(coeffs)
	}
	return coeffs
}

// Detector measures the power inside one channel relative to the noise floor
// of the rest of the captured bandwidth. A Detector is not safe for
// concurrent use; each tuner owns one.
type Detector struct {
	fft        *fourier.CmplxFFT
	size       int
	sampleRate float64
	window     []float64

	input    []complex128
	spectrum []complex128
	power    []float64
	noise    []float64
}

// NewDetector builds a detector with an FFT of size points. size must be a
// power of two.
func NewDetector(size int, sampleRate float64, w WindowFunc) (*Detector, error) {
	if !bitint.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", size)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}
	return &Detector{
		fft:        fourier.NewCmplxFFT(size),
		size:       size,
		sampleRate: sampleRate,
		window:     windowCoefficients(size, w),
		input:      make([]complex128, size),
		spectrum:   make([]complex128, size),
		power:      make([]float64, size),
		noise:      make([]float64, 0, size),
	}, nil
}

func (d *Detector) Size() int { return d.size }

// binFrequency returns the baseband frequency of FFT bin k in Hz.
func (d *Detector) binFrequency(k int) float64 {
	if k >= d.size/2 {
		k -= d.size
	}
	return float64(k) * d.sampleRate / float64(d.size)
}

// ChannelSNR averages the power spectrum over every full FFT block in iq
// (interleaved unsigned 8-bit I/Q) and returns the ratio, in dB, of the mean
// power within halfWidth Hz of offset to the median power outside it.
// Bins within halfWidth of DC are excluded from the noise estimate because
// zero-IF tuners leak a DC spike there.
func (d *Detector) ChannelSNR(iq []byte, offset, halfWidth float64) (float64, error) {
	blocks := len(iq) / (2 * d.size)
	if blocks == 0 {
		return 0, fmt.Errorf("need %d IQ bytes, got %d", 2*d.size, len(iq))
	}

	for i := range d.power {
		d.power[i] = 0
	}
	for b := 0; b < blocks; b++ {
		base := b * 2 * d.size
		for i := 0; i < d.size; i++ {
			re := (float64(iq[base+2*i]) - 127.5) / 127.5
			im := (float64(iq[base+2*i+1]) - 127.5) / 127.5
			d.input[i] = complex(re*d.window[i], im*d.window[i])
		}
		d.fft.Coefficients(d.spectrum, d.input)
		for k, c := range d.spectrum {
			a := cmplx.Abs(c)
			d.power[k] += a * a
		}
	}
	floats.Scale(1/float64(blocks), d.power)

	var inBand float64
	var inBandBins int
	d.noise = d.noise[:0]
	for k, p := range d.power {
		f := d.binFrequency(k)
		switch {
		case math.Abs(f-offset) <= halfWidth:
			inBand += p
			inBandBins++
		case math.Abs(f) <= halfWidth:
		default:
			d.noise = append(d.noise, p)
		}
	}
	if inBandBins == 0 || len(d.noise) == 0 {
		return 0, fmt.Errorf("channel at %.0f Hz does not fit in %.0f Hz of bandwidth", offset, d.sampleRate)
	}
	sort.Float64s(d.noise)
	floor := d.noise[len(d.noise)/2]
	if floor <= 0 {
		floor = math.SmallestNonzeroFloat64
	}
	mean := inBand / float64(inBandBins)
	return 10 * math.Log10(mean/floor), nil
}
