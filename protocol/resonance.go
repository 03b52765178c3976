package protocol

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/cwbudde/algo-ephys/dsp/spectrum"
	"github.com/cwbudde/algo-ephys/dsp/trace"
	"github.com/cwbudde/algo-ephys/dsp/window"
	"github.com/cwbudde/algo-ephys/stats/nanstat"
)

// ResonanceFrame is the impedance profile of one chirp sweep.
type ResonanceFrame struct {
	frameBase

	Voltage *trace.Signal
	Current *trace.Signal
	Config  ResonanceConfig

	// Amplitude is half the peak-to-peak stimulus in pA, rounded to a
	// multiple of 5.
	Amplitude int
	// Signal and Reference are the voltage (mV²/Hz) and current (pA²/Hz)
	// power spectra.
	Signal    *spectrum.PSD
	Reference *spectrum.PSD
	// Impedance is Signal/Reference per bin.
	Impedance []float64

	// ResonanceFrequency is the frequency of maximal impedance in the band.
	ResonanceFrequency float64
	ResonanceImpedance float64
	// ReferenceImpedance is read at Config.ReferenceFrequency.
	ReferenceImpedance float64

	Err error

	env    *env
	window window.Type
}

// Process computes both spectra and locates the impedance maximum.
func (f *ResonanceFrame) Process() {
	c := f.Config
	sr := f.Voltage.SampleRate()
	nan := math.NaN()
	f.ResonanceFrequency, f.ResonanceImpedance, f.ReferenceImpedance = nan, nan, nan
	f.Err = nil

	start, stop := 0, f.Voltage.Len()
	if c.Start > 0 {
		start = f.Voltage.Index(c.Start)
	}
	if c.Stop > 0 {
		stop = f.Voltage.Index(c.Stop)
	}
	volts := f.Voltage.Slice(start, stop)
	ref := f.Current.Slice(start, stop)

	f.Amplitude = int(5 * math.RoundToEven((nanstat.Max(ref)-nanstat.Min(ref))*1e11))
	if !slices.Contains(c.Amplitudes, f.Amplitude) {
		f.env.logger.Warn("unexpected stimulus amplitude", slog.Int("amplitude", f.Amplitude), slog.Any("expected", c.Amplitudes))
	}

	var err error
	if f.Signal, err = spectrum.Periodogram(volts, sr, spectrum.WithWindow(f.window), spectrum.WithScale(1e3)); err != nil {
		f.Err = err
		return
	}
	if f.Reference, err = spectrum.Periodogram(ref, f.Current.SampleRate(), spectrum.WithWindow(f.window), spectrum.WithScale(1e12)); err != nil {
		f.Err = err
		return
	}

	all := make([]int, f.Signal.Len())
	for k := range all {
		all[k] = k
	}
	f.Impedance = spectrum.Ratio(f.Signal.Power, f.Reference.Power, all)

	band := f.Signal.Band(c.LowBand, c.HighBand)
	imp := spectrum.Ratio(f.Signal.Power, f.Reference.Power, band)
	best := nanstat.ArgMax(imp)
	if best < 0 {
		f.Err = fmt.Errorf("%w: %g-%g Hz", ErrEmptyBand, c.LowBand, c.HighBand)
		f.env.logger.Warn("impedance band is empty", slog.Float64("low", c.LowBand), slog.Float64("high", c.HighBand))
		return
	}
	f.ResonanceFrequency = f.Signal.Frequencies[band[best]]
	f.ResonanceImpedance = imp[best]
	if k := f.Signal.Nearest(c.ReferenceFrequency); k >= 0 {
		f.ReferenceImpedance = f.Impedance[k]
	}
}

// Resonance analyzes the impedance of a neuron under a chirp (ZAP)
// stimulus.
type Resonance struct {
	env    *env
	frames []*ResonanceFrame
}

// NewResonance analyzes the first voltage sweep against the first current
// sweep of in. Both must have the same length and sample rate.
func NewResonance(in Input, cfg Config, opts ...Option) (*Resonance, error) {
	if err := requireVoltage(KindResonance, in); err != nil {
		return nil, err
	}
	if len(in.Current) == 0 || in.Current[0] == nil {
		return nil, fmt.Errorf("%w: resonance needs the injected current", ErrConfig)
	}
	v, i := in.Voltage[0], in.Current[0]
	if v.Len() != i.Len() || v.SampleRate() != i.SampleRate() {
		return nil, fmt.Errorf("%w: voltage and current sweeps differ in length or rate", ErrConfig)
	}
	c := cfg.Resonance
	w, err := window.ParseType(c.Window)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	e := newEnv(KindResonance, cfg, opts)
	f := &ResonanceFrame{
		Voltage: v,
		Current: i,
		Config:  c,
		env:     e,
		window:  w,
	}
	f.Process()
	return &Resonance{env: e, frames: []*ResonanceFrame{f}}, nil
}

func (p *Resonance) Kind() Kind { return KindResonance }

func (p *Resonance) Frames() []Frame { return frames(p.frames) }

// Sweeps returns the typed frames.
func (p *Resonance) Sweeps() []*ResonanceFrame { return p.frames }

func (p *Resonance) Process() { processAll(p.frames) }

func (p *Resonance) Provides() Schema { return resonanceSchema(p.env.cfg) }

// Results reports the first frame under keys carrying its detected stimulus
// amplitude. Impedances are converted from mV/pA to ohm before scaling.
func (p *Resonance) Results() Results {
	r := newResults()
	f := p.frames[0]
	if !f.Enabled() || f.Err != nil {
		return r
	}
	ohm := p.env.cfg.Scale.Ohm
	r.set(resonanceKey(f.Amplitude), f.ResonanceFrequency)
	r.set(impedanceKey(f.Amplitude), 1e9*f.ResonanceImpedance/ohm)
	r.set(referenceImpedanceKey(f.Amplitude), 1e9*f.ReferenceImpedance/ohm)
	return r
}

func resonanceKey(amp int) string { return fmt.Sprintf("RES_resonnance_%dpA", amp) }

func impedanceKey(amp int) string { return fmt.Sprintf("RES_impedance_%dpA", amp) }

func referenceImpedanceKey(amp int) string { return fmt.Sprintf("RES_impedance_05Hz_%dpA", amp) }

func resonanceSchema(cfg Config) Schema {
	s := Schema{}
	for _, amp := range cfg.Resonance.Amplitudes {
		s[resonanceKey(amp)] = "resonance frequency"
		s[impedanceKey(amp)] = "impedance at the resonance frequency"
		s[referenceImpedanceKey(amp)] = fmt.Sprintf("impedance at %gHz", cfg.Resonance.ReferenceFrequency)
	}
	return s
}
