package protocol

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/algo-ephys/dsp/fit"
	"github.com/cwbudde/algo-ephys/dsp/trace"
)

// RampFrame holds the current slopes of one voltage-clamp ramp sweep.
type RampFrame struct {
	frameBase

	Current *trace.Signal
	// Voltage is the command trace; it may be nil.
	Voltage *trace.Signal
	Config  RampConfig

	// Early and Late are linear fits of the current in pA over FitSpan after
	// the first boundary and before the second.
	Early fit.Result
	Late  fit.Result

	env *env
}

// Process fits both ramp segments.
func (f *RampFrame) Process() {
	c := f.Config
	b0, b1 := c.Boundaries[0], c.Boundaries[1]
	f.Early = f.fitSegment(b0, b0+c.FitSpan)
	f.Late = f.fitSegment(b1-c.FitSpan, b1)
	if !f.Early.Success || !f.Late.Success {
		f.env.logger.Debug("ramp fit failed", slog.Int("sweep", f.idx))
	}
}

func (f *RampFrame) fitSegment(t0, t1 float64) fit.Result {
	pA := f.Current.Between(t0, t1)
	for k := range pA {
		pA[k] *= 1e12
	}
	return f.env.fitter(fit.OrderLinear, true, nil).Fit(f.Current.Times(t0, t1), pA)
}

// Ramp analyzes current ramps recorded in voltage clamp.
type Ramp struct {
	env    *env
	frames []*RampFrame
}

// NewRamp analyzes each current sweep of in, paired with the voltage sweep
// of the same index when present.
func NewRamp(in Input, cfg Config, opts ...Option) (*Ramp, error) {
	if len(in.Current) == 0 {
		return nil, fmt.Errorf("%w: %s needs at least one current sweep", ErrConfig, KindRamp)
	}
	c := cfg.Ramp
	if len(c.Boundaries) < 2 || c.FitSpan <= 0 {
		return nil, fmt.Errorf("%w: ramp needs two boundaries and a positive fit span", ErrConfig)
	}

	e := newEnv(KindRamp, cfg, opts)
	p := &Ramp{env: e}
	for i, cur := range in.Current {
		if cur == nil {
			return nil, fmt.Errorf("%w: %s current sweep %d is nil", ErrConfig, KindRamp, i)
		}
		f := &RampFrame{
			frameBase: frameBase{idx: i},
			Current:   cur,
			Config:    c,
			env:       e,
		}
		if i < len(in.Voltage) {
			f.Voltage = in.Voltage[i]
		}
		f.Process()
		p.frames = append(p.frames, f)
	}
	return p, nil
}

func (p *Ramp) Kind() Kind { return KindRamp }

func (p *Ramp) Frames() []Frame { return frames(p.frames) }

// Sweeps returns the typed frames.
func (p *Ramp) Sweeps() []*RampFrame { return p.frames }

func (p *Ramp) Process() { processAll(p.frames) }

func (p *Ramp) Provides() Schema { return rampSchema() }

// Results reports slopes in pA/s.
func (p *Ramp) Results() Results {
	r := newResults()
	r.set("RAMP_slope_-40", enabledMean(p.frames, nil, func(f *RampFrame) float64 { return f.Early.Slope }))
	r.set("RAMP_slope_-120", enabledMean(p.frames, nil, func(f *RampFrame) float64 { return f.Late.Slope }))
	r.set("RAMP_iorect_40_over_120", enabledMean(p.frames, nil, func(f *RampFrame) float64 {
		if f.Late.Slope == 0 {
			return math.NaN()
		}
		return f.Early.Slope / f.Late.Slope
	}))
	return r
}

func rampSchema() Schema {
	return Schema{
		"RAMP_slope_-40":          "current slope at Vhold=-40mV (pA/s)",
		"RAMP_slope_-120":         "current slope at Vhold=-120mV (pA/s)",
		"RAMP_iorect_40_over_120": "ratio of the two slopes",
	}
}
