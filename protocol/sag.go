package protocol

import (
	"fmt"

	"github.com/cwbudde/algo-ephys/dsp/trace"
)

// Sag analyzes the sag ratio over a series of hyperpolarizing steps.
type Sag struct {
	env    *env
	frames []*StepFrame
}

// NewSag analyzes the sweeps of in. With AverageCount above one, each run of
// that many consecutive sweeps is averaged into one frame; frame i is then
// assigned CurrentSteps[i].
func NewSag(in Input, cfg Config, opts ...Option) (*Sag, error) {
	if err := requireVoltage(KindSag, in); err != nil {
		return nil, err
	}
	c := cfg.Sag
	sweeps := in.Voltage
	if c.AverageCount > 1 {
		avg, err := trace.GroupAverage(sweeps, c.AverageCount)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		sweeps = avg
	}
	if len(c.CurrentSteps) < len(sweeps) {
		return nil, fmt.Errorf("%w: %d current steps for %d sag frames", ErrConfig, len(c.CurrentSteps), len(sweeps))
	}

	e := newEnv(KindSag, cfg, opts)
	window := ResistanceConfig{Start: c.Start, Stop: c.Stop}
	p := &Sag{env: e}
	for i, v := range sweeps {
		f := &StepFrame{
			frameBase: frameBase{idx: i},
			Voltage:   v,
			Current:   c.CurrentSteps[i],
			Config:    window,
			env:       e,
		}
		f.Process()
		p.frames = append(p.frames, f)
	}
	return p, nil
}

func (p *Sag) Kind() Kind { return KindSag }

func (p *Sag) Frames() []Frame { return frames(p.frames) }

// Sweeps returns the typed, possibly averaged, frames.
func (p *Sag) Sweeps() []*StepFrame { return p.frames }

func (p *Sag) Process() { processAll(p.frames) }

func (p *Sag) Provides() Schema { return sagSchema(p.env.cfg) }

// Results reports the sag ratio of every enabled frame.
func (p *Sag) Results() Results {
	r := newResults()
	for _, f := range p.frames {
		if f.Enabled() {
			r.set(sagKey(f.Current), f.SagRatio)
		}
	}
	return r
}

func sagKey(current float64) string {
	return fmt.Sprintf("SAG_ratio_%gpA", current)
}

func sagSchema(cfg Config) Schema {
	s := Schema{}
	for _, cur := range cfg.Sag.CurrentSteps {
		s[sagKey(cur)] = fmt.Sprintf("sag ratio (base-ss)/(base-peak) for the %gpA step", cur)
	}
	return s
}
