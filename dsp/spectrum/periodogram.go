package spectrum

import (
	"errors"
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-ephys/dsp/window"
)

var (
	errEmptyInput = errors.New("spectrum: input must not be empty")
	errBadRate    = errors.New("spectrum: sample rate must be > 0")
)

// PSD is a one-sided power spectral density.
type PSD struct {
	Frequencies []float64
	Power       []float64
}

// Len returns the number of bins.
func (p *PSD) Len() int { return len(p.Power) }

// Band returns the bin indices with lo < f < hi.
func (p *PSD) Band(lo, hi float64) []int {
	var idx []int
	for k, f := range p.Frequencies {
		if f > lo && f < hi {
			idx = append(idx, k)
		}
	}
	return idx
}

// Nearest returns the bin index whose frequency is closest to f. Ties go to
// the lower bin.
func (p *PSD) Nearest(f float64) int {
	best, bestDist := -1, math.Inf(1)
	for k, fk := range p.Frequencies {
		if d := math.Abs(fk - f); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

// PeriodogramOption configures Periodogram.
type PeriodogramOption func(*periodogramConfig)

type periodogramConfig struct {
	window  window.Type
	detrend bool
	scale   float64
}

// WithWindow selects the taper. The default is rectangular.
func WithWindow(t window.Type) PeriodogramOption {
	return func(c *periodogramConfig) { c.window = t }
}

// WithoutDetrend keeps the mean in the signal before transforming.
func WithoutDetrend() PeriodogramOption {
	return func(c *periodogramConfig) { c.detrend = false }
}

// WithScale multiplies the input by s before transforming, e.g. to express a
// trace in mV or pA.
func WithScale(s float64) PeriodogramOption {
	return func(c *periodogramConfig) { c.scale = s }
}

// Periodogram estimates the one-sided power spectral density of x sampled at
// sampleRate Hz.
func Periodogram(x []float64, sampleRate float64, opts ...PeriodogramOption) (*PSD, error) {
	if len(x) == 0 {
		return nil, errEmptyInput
	}
	if !(sampleRate > 0) {
		return nil, fmt.Errorf("%w: %f", errBadRate, sampleRate)
	}

	cfg := periodogramConfig{window: window.TypeRectangular, detrend: true, scale: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	n := len(x)
	buf := make([]float64, n)
	vecmath.ScaleBlock(buf, x, cfg.scale)
	if cfg.detrend {
		mean := 0.0
		for _, v := range buf {
			mean += v
		}
		mean /= float64(n)
		for i := range buf {
			buf[i] -= mean
		}
	}

	coeffs := window.Generate(cfg.window, n, window.WithPeriodic())
	wpow, err := window.PowerSum(coeffs)
	if err != nil {
		return nil, err
	}
	window.Apply(cfg.window, buf, window.WithPeriodic())

	// n-point transform; algo-fft plans non-power-of-two lengths itself.
	fftSize := n
	inData := make([]complex128, fftSize)
	for i, v := range buf {
		inData[i] = complex(v, 0)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("spectrum: fft plan: %w", err)
	}

	out := make([]complex128, fftSize)
	if err := plan.Forward(out, inData); err != nil {
		return nil, fmt.Errorf("spectrum: fft: %w", err)
	}

	bins := fftSize/2 + 1
	if fftSize == 1 {
		bins = 1
	}

	raw := Power(out[:bins])
	psd := &PSD{
		Frequencies: make([]float64, bins),
		Power:       make([]float64, bins),
	}
	vecmath.ScaleBlock(psd.Power, raw, 1/(sampleRate*wpow))

	for k := range bins {
		psd.Frequencies[k] = float64(k) * sampleRate / float64(fftSize)
		// Fold negative frequencies except DC and Nyquist.
		if k > 0 && !(fftSize%2 == 0 && k == fftSize/2) {
			psd.Power[k] *= 2
		}
	}

	return psd, nil
}
