package protocol

import (
	"log/slog"
	"math"

	"github.com/cwbudde/algo-ephys/stats/nanstat"
)

// Rheobase analyzes a series of short steps of increasing amplitude. It
// reuses the IV frame machinery with the rheobase timing; sweep i is taken
// to inject i times the configured increment.
type Rheobase struct {
	env    *env
	frames []*IVFrame
}

// NewRheobase analyzes the sweeps of in.
func NewRheobase(in Input, cfg Config, opts ...Option) (*Rheobase, error) {
	if err := requireVoltage(KindRheobase, in); err != nil {
		return nil, err
	}
	if err := cfg.IV.checkGuess(); err != nil {
		return nil, err
	}
	e := newEnv(KindRheobase, cfg, opts)
	ivc := cfg.Rheobase.ivConfig(cfg.IV)
	p := &Rheobase{env: e}
	for i, v := range in.Voltage {
		p.frames = append(p.frames, newIVFrame(e, i, v, cfg.Rheobase.CurrentIncrement*float64(i), ivc))
	}
	return p, nil
}

func (p *Rheobase) Kind() Kind { return KindRheobase }

func (p *Rheobase) Frames() []Frame { return frames(p.frames) }

// Sweeps returns the typed frames.
func (p *Rheobase) Sweeps() []*IVFrame { return p.frames }

func (p *Rheobase) Process() { processAll(p.frames) }

func (p *Rheobase) Provides() Schema { return rheobaseSchema() }

func (p *Rheobase) Results() Results {
	sc, rc := p.env.cfg.Scale, p.env.cfg.Rheobase
	fs := p.frames
	r := newResults()

	r.set("RHEO_baseline", enabledMean(fs, nil, func(f *IVFrame) float64 { return f.Baseline })/sc.Volt)
	if i := firstEnabled(fs, func(f *IVFrame) bool { return f.Current >= 0 && f.evokedCount() > 0 }); i >= 0 {
		r.set("RHEO_rheobase", fs[i].Current/1e12/sc.Ampere)
	}

	i := firstEnabled(fs, func(f *IVFrame) bool { return f.evokedCount() == 1 })
	if i < 0 {
		return r
	}
	s := fs[i].Evoked()[0]
	setSpike(r, "RHEO_spike_", s, sc)

	// The preceding sweep did not fire; subtracting it isolates the spike
	// and its afterhyperpolarization from the passive response.
	ahp := math.NaN()
	if i > 0 {
		if diff, err := fs[i].Voltage.Sub(fs[i-1].Voltage); err == nil {
			ahp = nanstat.Min(diff.Between(s.Time-rc.AHPPre, s.Time+rc.AHPPost)) / sc.Volt
		} else {
			p.env.logger.Warn("cannot subtract preceding sweep", slog.Int("sweep", i), slog.Any("err", err))
		}
	}
	r.set("RHEO_spike_ahp", ahp)
	return r
}

func rheobaseSchema() Schema {
	const ref = ", computed on the first frame with exactly one evoked spike"
	return Schema{
		"RHEO_baseline":             "average baseline (all frames)",
		"RHEO_rheobase":             "smallest current evoking a spike during the step",
		"RHEO_spike_threshold":      "spike threshold" + ref,
		"RHEO_spike_peak":           "spike peak" + ref,
		"RHEO_spike_amplitude":      "spike amplitude (peak - threshold)" + ref,
		"RHEO_spike_half_width":     "spike width at half amplitude" + ref,
		"RHEO_spike_max_rise_slope": "maximum rise slope" + ref,
		"RHEO_spike_max_fall_slope": "maximum fall slope" + ref,
		"RHEO_spike_ahp":            "minimum of the difference to the preceding sweep after the spike" + ref,
	}
}
