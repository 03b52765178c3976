package protocol

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/algo-ephys/dsp/fit"
	"github.com/cwbudde/algo-ephys/dsp/trace"
	"github.com/cwbudde/algo-ephys/stats/nanstat"
)

// StepFrame is one sweep under a single known current step. Resistance
// frames fit the membrane time constant; sag frames do not.
type StepFrame struct {
	frameBase

	Voltage *trace.Signal
	// Current is the injected step in pA.
	Current float64
	Config  ResistanceConfig

	Baseline    float64
	SteadyState float64
	// SagPeak is the voltage averaged 10 ms around the trace minimum.
	SagPeak    float64
	SagRatio   float64
	Resistance float64

	// Fit is nil for sag frames.
	Fit *fit.Result

	env    *env
	fitted bool
}

// Process measures the step response.
func (f *StepFrame) Process() {
	c, v := f.Config, f.Voltage
	mid := 0.66 * (c.Start + c.Stop)

	f.Baseline = nanstat.Mean(v.Between(0, c.Start))
	f.SteadyState = nanstat.Mean(v.Between(mid, c.Stop))
	f.Resistance = math.Abs((f.Baseline - f.SteadyState) / f.Current * 1e12)

	f.SagPeak = math.NaN()
	if i := nanstat.ArgMin(v.Values()); i >= 0 {
		t := v.Time(i)
		f.SagPeak = nanstat.Mean(v.Between(t-0.01, t+0.01))
	}
	f.SagRatio = (f.Baseline - f.SteadyState) / (f.Baseline - f.SagPeak)

	f.Fit = nil
	if f.fitted {
		res := f.env.fitter(c.FitOrder, c.FitWeighted, c.FitInitialGuess).Fit(v.Times(c.FitStart, c.FitStop), v.Between(c.FitStart, c.FitStop))
		if !res.Success {
			f.env.logger.Debug("time constant fit failed", slog.Int("sweep", f.idx), slog.Any("err", res.Err))
		}
		f.Fit = &res
	}
}

func (f *StepFrame) fitSucceeded() bool { return f.Fit != nil && f.Fit.Success }

func (f *StepFrame) tc() float64 {
	if !f.fitSucceeded() {
		return math.NaN()
	}
	return f.Fit.TC
}

// Resistance analyzes repeated sweeps of one hyperpolarizing step.
type Resistance struct {
	env    *env
	frames []*StepFrame
}

// NewResistance analyzes the sweeps of in. With Average set they are
// collapsed into their mean first.
func NewResistance(in Input, cfg Config, opts ...Option) (*Resistance, error) {
	if err := requireVoltage(KindResistance, in); err != nil {
		return nil, err
	}
	c := cfg.Resistance
	if c.CurrentStep == 0 {
		return nil, fmt.Errorf("%w: resistance current step must not be zero", ErrConfig)
	}
	if err := c.checkGuess(); err != nil {
		return nil, err
	}
	sweeps := in.Voltage
	if c.Average && len(sweeps) > 1 {
		avg, err := trace.Average(sweeps...)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		sweeps = []*trace.Signal{avg}
	}

	e := newEnv(KindResistance, cfg, opts)
	p := &Resistance{env: e}
	for i, v := range sweeps {
		f := &StepFrame{
			frameBase: frameBase{idx: i},
			Voltage:   v,
			Current:   c.CurrentStep,
			Config:    c,
			env:       e,
			fitted:    true,
		}
		f.Process()
		p.frames = append(p.frames, f)
	}
	return p, nil
}

func (p *Resistance) Kind() Kind { return KindResistance }

func (p *Resistance) Frames() []Frame { return frames(p.frames) }

// Sweeps returns the typed frames.
func (p *Resistance) Sweeps() []*StepFrame { return p.frames }

func (p *Resistance) Process() { processAll(p.frames) }

func (p *Resistance) Provides() Schema { return resistanceSchema() }

func (p *Resistance) Results() Results {
	sc := p.env.cfg.Scale
	fitted := (*StepFrame).fitSucceeded
	r := newResults()
	r.set("INPUTR_res", enabledMean(p.frames, nil, func(f *StepFrame) float64 { return f.Resistance })/sc.Ohm)
	r.set("INPUTR_tc", enabledMean(p.frames, fitted, (*StepFrame).tc)/sc.Second)
	r.set("INPUTR_baseline", enabledMean(p.frames, fitted, func(f *StepFrame) float64 { return f.Baseline })/sc.Volt)
	r.set("INPUTR_sagratio", enabledMean(p.frames, fitted, func(f *StepFrame) float64 { return f.SagRatio }))
	return r
}

func resistanceSchema() Schema {
	return Schema{
		"INPUTR_res":      "average input resistance",
		"INPUTR_tc":       "average time constant",
		"INPUTR_baseline": "average baseline before the current step",
		"INPUTR_sagratio": "average sag ratio",
	}
}
