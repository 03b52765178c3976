package protocol

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/algo-ephys/dsp/trace"
	"github.com/cwbudde/algo-ephys/measure/spike"
	"github.com/cwbudde/algo-ephys/stats/nanstat"
)

// AHPFrame is one spike train followed by its afterhyperpolarization.
// Voltages are relative to the pre-train baseline, positive when
// hyperpolarized.
type AHPFrame struct {
	frameBase

	Voltage *trace.Signal
	Config  AHPConfig

	Baseline float64
	// Peaks are the sample positions of the detected (or synthesized)
	// spikes.
	Peaks     []int
	PeakCount int
	// Frequency is the train frequency in Hz, measured or given.
	Frequency float64

	// AHP is the averaged minimum after the last spike, AHPPosition its
	// sample or -1.
	AHP         float64
	AHPPosition int

	// AHP1s is the averaged voltage 1 s after the last spike.
	AHP1s   float64
	ADP5ms  float64
	ADP10ms float64

	// Err is set when the frame was rejected.
	Err error

	env        *env
	autoFreq   bool
	apCount    int
	simplified bool
}

// Process detects the train and measures the voltages following it.
func (f *AHPFrame) Process() {
	c, v := f.Config, f.Voltage
	sr := v.SampleRate()
	nan := math.NaN()
	log := f.env.logger.With(slog.Int("sweep", f.idx))

	f.Baseline = nanstat.Mean(v.Between(c.BaselineStart, c.BaselineStop))
	f.AHP, f.AHPPosition, f.AHP1s, f.ADP5ms, f.ADP10ms = nan, -1, nan, nan, nan
	f.Err = nil

	if c.CheckNone && !f.simplified {
		f.Peaks = make([]int, f.apCount)
		for n := range f.Peaks {
			f.Peaks[n] = int((c.SpikeStart + float64(n)/f.Frequency) * sr)
		}
	} else {
		f.Peaks = spike.FindPeaks(v.Values(), spike.PeakCriteria{
			Height:     c.MinPeak,
			Prominence: c.MinProminence,
			Distance:   spike.MinDistance(c.MinInterval, sr),
		})
	}
	f.PeakCount = len(f.Peaks)
	if f.simplified {
		f.PeakCount = f.apCount
	}

	if f.autoFreq {
		f.Frequency = nan
		if n := len(f.Peaks); n > 1 {
			freq := float64(n-1) / (v.Time(f.Peaks[n-1]) - v.Time(f.Peaks[0]))
			freq = 10 * math.Round(freq/10)
			if c.NearestFrequency {
				freq = c.nearestFrequency(freq)
			}
			f.Frequency = freq
		}
	}

	if len(f.Peaks) == 0 {
		f.Err = ErrNoSpikes
		log.Warn("no spike detected in AHP sweep")
		return
	}
	if !f.simplified {
		if f.PeakCount < c.MinSpikeCount {
			log.Warn("fewer spikes than expected", slog.Int("count", f.PeakCount), slog.Int("min", c.MinSpikeCount))
		}
		if c.CheckSpikeCount && !c.validCount(f.PeakCount) {
			f.Err = fmt.Errorf("%w: %d", ErrSpikeCount, f.PeakCount)
			log.Warn("unexpected spike count", slog.Int("count", f.PeakCount))
			return
		}
		if c.CheckSpikeFreq && !c.validFrequency(f.Frequency) {
			f.Err = fmt.Errorf("%w: %g Hz", ErrSpikeFrequency, f.Frequency)
			log.Warn("unexpected spike frequency", slog.Float64("frequency", f.Frequency))
			return
		}
	}

	last := f.Peaks[len(f.Peaks)-1]
	seg := v.Slice(last, last+int(c.MaxDelay*sr))
	if idx := nanstat.ArgMin(seg); idx >= 0 {
		f.AHPPosition = last + idx
		f.AHP = f.Baseline - f.averageAround(f.AHPPosition)
	}
	f.ADP5ms = f.Baseline - v.At(last+int(5e-3*sr))
	f.ADP10ms = f.Baseline - v.At(last+int(10e-3*sr))
	f.AHP1s = f.Baseline - f.averageAround(last+int(sr))
}

// averageAround returns the mean voltage within AverageWindow of sample p,
// or NaN when the window leaves the trace.
func (f *AHPFrame) averageAround(p int) float64 {
	w := f.Config.AverageWindow * f.Voltage.SampleRate()
	start, stop := int(float64(p)-w), int(float64(p)+w)
	if start < 0 || stop > f.Voltage.Len() {
		return math.NaN()
	}
	return nanstat.Mean(f.Voltage.Slice(start, stop))
}

// AHP analyzes spike-train afterhyperpolarization recordings.
type AHP struct {
	env    *env
	frames []*AHPFrame
}

// NewAHP analyzes the sweeps of in. A known train frequency and count may be
// passed in Input; CheckNone requires both.
func NewAHP(in Input, cfg Config, opts ...Option) (*AHP, error) {
	if err := requireVoltage(KindAHP, in); err != nil {
		return nil, err
	}
	c := cfg.AHP
	if c.CheckNone && (in.Frequency <= 0 || in.APCount <= 0) {
		return nil, fmt.Errorf("%w: AHP check_none needs the train frequency and spike count", ErrConfig)
	}
	if c.MinInterval <= 0 {
		c.MinInterval = DefaultAHPConfig().MinInterval
	}

	e := newEnv(KindAHP, cfg, opts)
	simplified := c.Simplified && c.validCombo(in.APCount, in.Frequency)
	p := &AHP{env: e}
	for i, v := range in.Voltage {
		f := &AHPFrame{
			frameBase:  frameBase{idx: i},
			Voltage:    v,
			Config:     c.Refine(v),
			Frequency:  in.Frequency,
			env:        e,
			autoFreq:   in.Frequency <= 0,
			apCount:    in.APCount,
			simplified: simplified,
		}
		f.Process()
		p.frames = append(p.frames, f)
	}
	return p, nil
}

func (p *AHP) Kind() Kind { return KindAHP }

func (p *AHP) Frames() []Frame { return frames(p.frames) }

// Sweeps returns the typed frames.
func (p *AHP) Sweeps() []*AHPFrame { return p.frames }

func (p *AHP) Process() { processAll(p.frames) }

func (p *AHP) Provides() Schema { return ahpSchema(p.env.cfg) }

// Results reports the first enabled frame. Keys carry its spike count and
// frequency; nothing is reported when the frequency is unknown.
func (p *AHP) Results() Results {
	r := newResults()
	i := firstEnabled(p.frames, nil)
	if i < 0 {
		return r
	}
	f := p.frames[i]
	if math.IsNaN(f.Frequency) || f.PeakCount == 0 {
		return r
	}

	sign := 1.0
	if p.env.cfg.AHP.CorrectSigns {
		sign = -1
	}
	scale := sign / p.env.cfg.Scale.Volt
	prefix := ahpPrefix(f.PeakCount, f.Frequency)
	r.set(prefix+"_min", f.AHP*scale)
	if slowTrain(f.PeakCount) {
		r.set(prefix+"_1s", f.AHP1s*scale)
	}
	r.set(prefix+"_adp_5ms", f.ADP5ms*scale)
	r.set(prefix+"_adp_10ms", f.ADP10ms*scale)
	return r
}

// slowTrain reports whether a train of n spikes also reports the late AHP.
func slowTrain(n int) bool { return n > 5 }

func ahpPrefix(count int, freq float64) string {
	return fmt.Sprintf("AHP_%d_%gHz", count, freq)
}

func ahpSchema(cfg Config) Schema {
	s := Schema{}
	for _, cb := range cfg.AHP.ValidCombos {
		prefix := ahpPrefix(cb.Count, cb.Frequency)
		s[prefix+"_min"] = "maximal hyperpolarization after the last spike"
		if slowTrain(cb.Count) {
			s[prefix+"_1s"] = "hyperpolarization 1 s after the last spike"
		}
		s[prefix+"_adp_5ms"] = "baseline minus voltage 5 ms after the last spike"
		s[prefix+"_adp_10ms"] = "baseline minus voltage 10 ms after the last spike"
	}
	return s
}
