package protocol

import (
	"log/slog"
	"math"

	"github.com/cwbudde/algo-ephys/dsp/fit"
	"github.com/cwbudde/algo-ephys/dsp/trace"
)

// TCFrame is one short current pulse fitted for the membrane time constant.
type TCFrame struct {
	frameBase

	Voltage *trace.Signal
	// Negative reports whether the pulse hyperpolarized the cell.
	Negative bool
	Config   TimeConstantConfig
	Fit      fit.Result

	env *env
}

// Process fits the configured window.
func (f *TCFrame) Process() {
	c, v := f.Config, f.Voltage
	f.Fit = f.env.fitter(c.Order, c.Weighted, c.InitialGuess).Fit(v.Times(c.FitStart, c.FitStop), v.Between(c.FitStart, c.FitStop))
	if !f.Fit.Success {
		f.env.logger.Debug("time constant fit failed", slog.Int("sweep", f.idx), slog.Any("err", f.Fit.Err))
	}
}

func (f *TCFrame) tc() float64 {
	if !f.Fit.Success {
		return math.NaN()
	}
	return f.Fit.TC
}

// TimeConstant analyzes a series of positive and negative current pulses.
type TimeConstant struct {
	env    *env
	frames []*TCFrame
}

// NewTimeConstant fits every sweep of in.
func NewTimeConstant(in Input, cfg Config, opts ...Option) (*TimeConstant, error) {
	if err := requireVoltage(KindTimeConstant, in); err != nil {
		return nil, err
	}
	c := cfg.TimeConstant
	if err := c.checkGuess(); err != nil {
		return nil, err
	}
	n := len(in.Voltage)
	bySteps := len(c.CurrentSteps) >= n

	e := newEnv(KindTimeConstant, cfg, opts)
	p := &TimeConstant{env: e}
	for i, v := range in.Voltage {
		neg := 2*i < n
		if bySteps {
			neg = c.CurrentSteps[i] < 0
		}
		f := &TCFrame{
			frameBase: frameBase{idx: i},
			Voltage:   v,
			Negative:  neg,
			Config:    c,
			env:       e,
		}
		f.Process()
		p.frames = append(p.frames, f)
	}
	return p, nil
}

func (p *TimeConstant) Kind() Kind { return KindTimeConstant }

func (p *TimeConstant) Frames() []Frame { return frames(p.frames) }

// Sweeps returns the typed frames.
func (p *TimeConstant) Sweeps() []*TCFrame { return p.frames }

func (p *TimeConstant) Process() { processAll(p.frames) }

func (p *TimeConstant) Provides() Schema { return timeConstantSchema() }

func (p *TimeConstant) Results() Results {
	s := p.env.cfg.Scale.Second
	r := newResults()
	r.set("TC_tc_neg", enabledMean(p.frames, func(f *TCFrame) bool { return f.Negative }, (*TCFrame).tc)/s)
	r.set("TC_tc_pos", enabledMean(p.frames, func(f *TCFrame) bool { return !f.Negative }, (*TCFrame).tc)/s)
	return r
}

func timeConstantSchema() Schema {
	return Schema{
		"TC_tc_neg": "average time constant of the negative current pulses",
		"TC_tc_pos": "average time constant of the positive current pulses",
	}
}
