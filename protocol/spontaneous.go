package protocol

import (
	"github.com/cwbudde/algo-ephys/dsp/trace"
	"github.com/cwbudde/algo-ephys/measure/spike"
)

// Spontaneous analyzes recordings without stimulation. Every sweep is
// treated as a zero-current step spanning the whole trace, so all spikes
// count as evoked. Results come from the first enabled sweep.
type Spontaneous struct {
	env    *env
	frames []*IVFrame
}

// NewSpontaneous analyzes the sweeps of in.
func NewSpontaneous(in Input, cfg Config, opts ...Option) (*Spontaneous, error) {
	if err := requireVoltage(KindSpontaneous, in); err != nil {
		return nil, err
	}
	e := newEnv(KindSpontaneous, cfg, opts)
	p := &Spontaneous{env: e}
	for i, v := range in.Voltage {
		ivc := cfg.IV.Retime(0, lastSampleTime(v))
		ivc.FitEnabled = false
		p.frames = append(p.frames, newIVFrame(e, i, v, 0, ivc))
	}
	return p, nil
}

func lastSampleTime(v *trace.Signal) float64 { return v.Time(v.Len() - 1) }

func (p *Spontaneous) Kind() Kind { return KindSpontaneous }

func (p *Spontaneous) Frames() []Frame { return frames(p.frames) }

// Sweeps returns the typed frames.
func (p *Spontaneous) Sweeps() []*IVFrame { return p.frames }

func (p *Spontaneous) Process() { processAll(p.frames) }

func (p *Spontaneous) Provides() Schema { return spontaneousSchema() }

func (p *Spontaneous) Results() Results {
	sc := p.env.cfg.Scale
	r := newResults()
	i := firstEnabled(p.frames, nil)
	if i < 0 {
		return r
	}
	f := p.frames[i]
	c := f.Config

	r.set("SPON_baseline", f.AHPBaseline/sc.Volt)
	r.set("SPON_frequency", float64(len(f.Spikes))/(c.Stop-c.Start))
	if len(f.Spikes) == 0 {
		return r
	}
	setSpikeAverages(r, "SPON_avg_spike_", f.Spikes, sc)
	r.set("SPON_avg_spike_ahp", spike.Mean(completeSpikes(f.Spikes), func(s spike.Spike) float64 { return s.AHP })/sc.Volt)
	r.set("SPON_fano", f.Adaptation.Fano)
	return r
}

func spontaneousSchema() Schema {
	return Schema{
		"SPON_baseline":                 "average membrane potential between spikes",
		"SPON_frequency":                "average firing frequency",
		"SPON_avg_spike_threshold":      "spike threshold",
		"SPON_avg_spike_peak":           "spike peak",
		"SPON_avg_spike_amplitude":      "spike amplitude (peak - threshold)",
		"SPON_avg_spike_half_width":     "spike width at half amplitude",
		"SPON_avg_spike_max_rise_slope": "maximum rise slope",
		"SPON_avg_spike_max_fall_slope": "maximum fall slope",
		"SPON_avg_spike_ahp":            "minimum voltage after each spike",
		"SPON_fano":                     "interval std/mean",
	}
}
