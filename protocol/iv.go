package protocol

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/algo-ephys/dsp/fit"
	"github.com/cwbudde/algo-ephys/dsp/trace"
	"github.com/cwbudde/algo-ephys/measure/firing"
	"github.com/cwbudde/algo-ephys/measure/spike"
	"github.com/cwbudde/algo-ephys/stats/nanstat"
)

// IVFrame is one current step of an IV curve.
type IVFrame struct {
	frameBase

	Voltage *trace.Signal
	// Current is the injected step in pA.
	Current float64
	// Config is the refined snapshot the frame is processed with.
	Config IVConfig

	Baseline float64
	SagPeak  float64
	SagSS    float64
	// SagRatio and SagRatioPct are NaN for non-negative currents.
	SagRatio    float64
	SagRatioPct float64
	// Resistance is NaN for a zero current.
	Resistance       float64
	ResistanceInterp float64

	// Fit is nil when the frame is not fitted.
	Fit *fit.Result

	Spikes      []spike.Spike
	AHPBaseline float64
	Pattern     firing.Pattern
	Adaptation  firing.Adaptation

	env *env
}

func newIVFrame(e *env, idx int, v *trace.Signal, current float64, cfg IVConfig) *IVFrame {
	f := &IVFrame{
		frameBase: frameBase{idx: idx},
		Voltage:   v,
		Current:   current,
		Config:    cfg.Refine(v),
		env:       e,
	}
	f.Process()
	return f
}

// Stimulus returns the step the frame was recorded under.
func (f *IVFrame) Stimulus() spike.Stimulus { return f.Config.Stimulus(f.Current) }

// Evoked returns the spikes evoked by the step.
func (f *IVFrame) Evoked() []spike.Spike { return spike.Evoked(f.Spikes) }

// Rebound returns the spikes fired after a hyperpolarizing step.
func (f *IVFrame) Rebound() []spike.Spike { return spike.Rebound(f.Spikes) }

// Process measures the passive properties, fits the membrane time constant
// of sufficiently hyperpolarizing steps and extracts the spikes.
func (f *IVFrame) Process() {
	c, v := f.Config, f.Voltage
	nan := math.NaN()

	f.Baseline = nanstat.Mean(v.Between(c.BaselineStart, c.BaselineStop))
	f.SagPeak = nanstat.Min(v.Between(c.SagPeakStart, c.SagPeakStop))
	f.SagSS = nanstat.Mean(v.Between(c.SagSSStart, c.SagSSStop))

	f.SagRatio, f.SagRatioPct = nan, nan
	if f.Current < 0 {
		f.SagRatio = (f.Baseline - f.SagSS) / (f.Baseline - f.SagPeak)
		f.SagRatioPct = (f.SagSS - f.SagPeak) / (f.Baseline - f.SagSS) * 100
	}
	f.Resistance = nan
	if f.Current != 0 {
		f.Resistance = (f.Baseline - f.SagPeak) / f.Current * 1e12
	}

	f.Fit, f.ResistanceInterp = nil, nan
	if c.FitEnabled && f.Current <= c.FitThreshold {
		f.processFit()
	}

	f.processSpikes()
}

func (f *IVFrame) processFit() {
	c, v := f.Config, f.Voltage
	res := f.env.fitter(c.FitOrder, c.FitWeighted, c.FitInitialGuess).Fit(v.Times(c.FitStart, c.FitStop), v.Between(c.FitStart, c.FitStop))
	f.Fit = &res
	if !res.Success {
		f.env.logger.Debug("time constant fit failed", slog.Int("sweep", f.idx), slog.Any("err", res.Err))
		return
	}
	// extrapolate the fitted curve to the end of the step
	if times := v.Times(c.Start, c.Stop); len(times) > 0 {
		f.ResistanceInterp = (res.Eval(times[len(times)-1]) - f.Baseline) / f.Current * 1e12
	}
}

func (f *IVFrame) processSpikes() {
	c, v := f.Config, f.Voltage
	spikes := f.env.extractor(c.Spike).Extract(v)
	f.AHPBaseline = spike.AHPBaseline(v, spikes, c.Start, c.Stop, c.Spike.PreTime, c.Spike.PostTime)
	stim := f.Stimulus()
	f.Spikes = spike.Annotate(v, spikes, stim)

	evoked := f.Evoked()
	f.Pattern = f.env.classifier.Classify(evoked, stim)
	f.Adaptation = firing.MeasureAdaptation(evoked, c.MinSpikesForAdaptation)
}

func (f *IVFrame) tc() float64 {
	if f.Fit == nil || !f.Fit.Success {
		return math.NaN()
	}
	return f.Fit.TC
}

func (f *IVFrame) evokedCount() int {
	n := 0
	for _, s := range f.Spikes {
		if s.Evoked {
			n++
		}
	}
	return n
}

// IV analyzes a current-step series.
type IV struct {
	env    *env
	frames []*IVFrame
}

// NewIV analyzes the sweeps of in, one per entry of cfg.IV.CurrentSteps.
func NewIV(in Input, cfg Config, opts ...Option) (*IV, error) {
	if err := requireVoltage(KindIV, in); err != nil {
		return nil, err
	}
	if err := cfg.IV.checkGuess(); err != nil {
		return nil, err
	}
	steps := cfg.IV.CurrentSteps
	if len(steps) < len(in.Voltage) {
		return nil, fmt.Errorf("%w: %d current steps for %d sweeps", ErrConfig, len(steps), len(in.Voltage))
	}
	e := newEnv(KindIV, cfg, opts)
	p := &IV{env: e}
	for i, v := range in.Voltage {
		p.frames = append(p.frames, newIVFrame(e, i, v, steps[i], cfg.IV))
	}
	return p, nil
}

func (p *IV) Kind() Kind { return KindIV }

func (p *IV) Frames() []Frame { return frames(p.frames) }

// Sweeps returns the typed frames.
func (p *IV) Sweeps() []*IVFrame { return p.frames }

func (p *IV) Process() { processAll(p.frames) }

func (p *IV) Results() Results { return ivResults(p.env.cfg, p.frames) }

func (p *IV) Provides() Schema { return ivSchema(p.env.cfg) }

// Reference returns the index of the first enabled frame with at least
// minSpikes evoked spikes, or -1.
func (p *IV) Reference(minSpikes int) int {
	return firstEnabled(p.frames, func(f *IVFrame) bool { return f.evokedCount() >= minSpikes })
}

func processAll[F Frame](fs []F) {
	for _, f := range fs {
		f.Process()
	}
}

func ivResults(cfg Config, fs []*IVFrame) Results {
	c, sc := cfg.IV, cfg.Scale
	r := newResults()

	r.set("IV_baseline", enabledMean(fs, nil, func(f *IVFrame) float64 { return f.Baseline })/sc.Volt)
	r.set("IV_resistance", enabledMean(fs,
		func(f *IVFrame) bool { return f.Current < 0 && f.SagRatio > c.ResistanceMinSagRatio },
		func(f *IVFrame) float64 { return f.Resistance })/sc.Ohm)
	r.set("IV_resistance_interp", enabledMean(fs,
		func(f *IVFrame) bool { return f.Current < 0 },
		func(f *IVFrame) float64 { return f.ResistanceInterp })/sc.Ohm)
	r.set("IV_tc", enabledMean(fs,
		func(f *IVFrame) bool { return f.Current < c.FitThreshold },
		(*IVFrame).tc)/sc.Second)

	atTarget := func(f *IVFrame) bool { return f.Current == c.SagTargetCurrent }
	r.set(sagCurrentKey(c), enabledMean(fs, atTarget, func(f *IVFrame) float64 { return f.SagRatio }))
	r.set(sagCurrentKey(c)+"_pct", enabledMean(fs, atTarget, func(f *IVFrame) float64 { return f.SagRatioPct }))
	if i := closestEnabled(fs, c.SagTargetVoltage, func(f *IVFrame) float64 { return f.Baseline - f.SagSS }); i >= 0 {
		r.set(sagVoltageKey(c), fs[i].SagRatio)
		r.set(sagVoltageKey(c)+"_pct", fs[i].SagRatioPct)
	}

	if i := firstEnabled(fs, func(f *IVFrame) bool { return f.Current >= 0 && f.evokedCount() > 0 }); i >= 0 {
		r.set("IV_rheobase", fs[i].Current/1e12/sc.Ampere)
	}

	if i := firstEnabled(fs, func(f *IVFrame) bool { return f.evokedCount() >= c.MinSpikesForMeasure }); i >= 0 {
		f := fs[i]
		evoked := f.Evoked()
		complete := completeSpikes(evoked)
		setSpikeAverages(r, "IV_avg_spike_", evoked, sc)
		r.set("IV_avg_spike_ahp", spike.Mean(complete, func(s spike.Spike) float64 { return f.AHPBaseline - s.AHP })/sc.Volt)
		r.set("IV_avg_spike_thr2ahp", spike.Mean(complete, func(s spike.Spike) float64 { return s.Threshold - s.AHP })/sc.Volt)

		first := evoked[0]
		setSpike(r, "IV_first_spike_", first, sc)
		ahp, thr2ahp := math.NaN(), math.NaN()
		if first.Complete {
			ahp = (f.AHPBaseline - first.AHP) / sc.Volt
			thr2ahp = (first.Threshold - first.AHP) / sc.Volt
		}
		r.set("IV_first_spike_ahp", ahp)
		r.set("IV_first_spike_thr2ahp", thr2ahp)
		r.set("IV_first_spike_delay", (first.Time-c.Start)/sc.Second)
	}

	// intervals need a spike after the one timed from step onset
	if i := firstEnabled(fs, func(f *IVFrame) bool { return f.evokedCount() >= max(3, c.MinSpikesForMeasure) }); i >= 0 {
		evoked := fs[i].Evoked()
		first := evoked[1].ISI / sc.Second
		last := evoked[len(evoked)-1].ISI / sc.Second
		r.set("IV_first_spike_interval", first)
		r.set("IV_last_spike_interval", last)
		r.set("IV_first_div_last_spike_interval", first/last)
	}

	if i := maxEnabled(fs, func(f *IVFrame) bool { return f.evokedCount() > c.MinSpikesForAdaptation }, (*IVFrame).evokedCount); i >= 0 {
		a := fs[i].Adaptation
		r.set("IV_sfa_freq_lin", a.FreqLin)
		r.set("IV_sfa_freq_log", a.FreqLog)
		r.set("IV_sfa_freq_div", a.FreqDiv)
		r.set("IV_sfa_peak_lin", a.PeakLin)
		r.set("IV_sfa_peak_log", a.PeakLog)
		r.set("IV_sfa_peak_div", a.PeakDiv)
	}

	if i := firstEnabled(fs, func(f *IVFrame) bool { return f.evokedCount() > 2 }); i >= 0 {
		evoked := fs[i].Evoked()
		r.set("IV_half_width_ratio_3/1", evoked[2].HalfWidth/evoked[0].HalfWidth)
		r.set("IV_third_spike_half_width", evoked[2].HalfWidth/sc.Second)
	}

	maxSpikes := 0
	for _, f := range fs {
		if f.Enabled() {
			maxSpikes = max(maxSpikes, f.evokedCount())
		}
	}
	r.set("IV_max_nb_spikes", float64(maxSpikes))
	r.set("IV_max_freq", float64(maxSpikes)/(c.Stop-c.Start))

	for _, f := range fs {
		if !f.Enabled() {
			continue
		}
		r.set(evokedKey(f.Current), float64(f.evokedCount()))
		r.set(reboundKey(f.Current), float64(len(f.Rebound())))
	}

	if i := maxEnabled(fs, nil, (*IVFrame).evokedCount); i >= 0 {
		if p := fs[i].Pattern; p != firing.PatternNone {
			r.setLabel("IV_firing_pattern", string(p))
		}
		r.set("IV_fano", fs[i].Adaptation.Fano)
	}

	return r
}

func completeSpikes(spikes []spike.Spike) []spike.Spike {
	var out []spike.Spike
	for _, s := range spikes {
		if s.Complete {
			out = append(out, s)
		}
	}
	return out
}

// setSpikeAverages stores the mean shape features of spikes under prefix.
func setSpikeAverages(r Results, prefix string, spikes []spike.Spike, sc Scale) {
	r.set(prefix+"threshold", spike.Mean(spikes, func(s spike.Spike) float64 { return s.Threshold })/sc.Volt)
	r.set(prefix+"peak", spike.Mean(spikes, func(s spike.Spike) float64 { return s.Peak })/sc.Volt)
	r.set(prefix+"amplitude", spike.Mean(spikes, func(s spike.Spike) float64 { return s.Amplitude })/sc.Volt)
	r.set(prefix+"half_width", spike.Mean(spikes, func(s spike.Spike) float64 { return s.HalfWidth })/sc.Second)
	r.set(prefix+"max_rise_slope", spike.Mean(spikes, func(s spike.Spike) float64 { return s.MaxRiseSlope })/sc.Volt)
	r.set(prefix+"max_fall_slope", spike.Mean(spikes, func(s spike.Spike) float64 { return s.MaxFallSlope })/sc.Volt)
}

// setSpike stores the shape features of s under prefix.
func setSpike(r Results, prefix string, s spike.Spike, sc Scale) {
	setSpikeAverages(r, prefix, []spike.Spike{s}, sc)
}

func sagCurrentKey(c IVConfig) string {
	return fmt.Sprintf("IV_sagratio_I=%gpA", c.SagTargetCurrent)
}

func sagVoltageKey(c IVConfig) string {
	return fmt.Sprintf("IV_sagratio_tgt=%gV", c.SagTargetVoltage)
}

func evokedKey(current float64) string {
	return fmt.Sprintf("IV_evoked_spikes_(%g)pA", current)
}

func reboundKey(current float64) string {
	return fmt.Sprintf("IV_rebound_spikes_(%g)pA", current)
}

const (
	byFirstFrame = "computed on the first frame with at least the minimum number of evoked spikes"
	byFirstSpike = "computed on the first spike of the first frame with at least the minimum number of evoked spikes"
	byMaxSpikes  = "computed on the frame with the most evoked spikes"
)

var spikeFeatureDocs = map[string]string{
	"threshold":      "spike threshold",
	"peak":           "spike peak",
	"amplitude":      "spike amplitude (peak - threshold)",
	"half_width":     "spike width at half amplitude",
	"max_rise_slope": "maximum rise slope",
	"max_fall_slope": "maximum fall slope",
	"ahp":            "afterhyperpolarization relative to the AHP baseline",
	"thr2ahp":        "difference between threshold and AHP (fast AHP)",
}

func ivSchema(cfg Config) Schema {
	c := cfg.IV
	s := Schema{
		"IV_baseline":                      "average baseline (all frames)",
		"IV_resistance_interp":             "input resistance extrapolated from the time constant fit",
		"IV_rheobase":                      "smallest non-negative current evoking a spike during the step",
		"IV_first_spike_delay":             "delay of the first evoked spike from step onset, " + byFirstFrame,
		"IV_first_spike_interval":          "interval between the first two evoked spikes",
		"IV_last_spike_interval":           "interval between the last two evoked spikes",
		"IV_first_div_last_spike_interval": "ratio of the first and last spike intervals",
		"IV_sfa_freq_lin":                  "spike frequency adaptation of intervals, linear fit, " + byMaxSpikes,
		"IV_sfa_freq_log":                  "spike frequency adaptation of intervals, log fit, " + byMaxSpikes,
		"IV_sfa_freq_div":                  "spike frequency adaptation of intervals, quotient, " + byMaxSpikes,
		"IV_sfa_peak_lin":                  "spike peak adaptation, linear fit, " + byMaxSpikes,
		"IV_sfa_peak_log":                  "spike peak adaptation, log fit, " + byMaxSpikes,
		"IV_sfa_peak_div":                  "spike peak adaptation, quotient, " + byMaxSpikes,
		"IV_half_width_ratio_3/1":          "ratio of third and first spike half widths",
		"IV_third_spike_half_width":        "third spike half width",
		"IV_max_nb_spikes":                 "maximal number of evoked spikes",
		"IV_max_freq":                      "maximal firing frequency",
		"IV_firing_pattern":                "firing pattern label, " + byMaxSpikes + " (heuristic)",
		"IV_fano":                          "interval std/mean, " + byMaxSpikes,
	}
	s["IV_resistance"] = fmt.Sprintf("average resistance (hyperpolarizing frames with sag ratio > %g)", c.ResistanceMinSagRatio)
	s["IV_tc"] = fmt.Sprintf("average time constant (frames with injected current < %gpA)", c.FitThreshold)
	s[sagCurrentKey(c)] = fmt.Sprintf("sag ratio (base-ss)/(base-peak) at %gpA", c.SagTargetCurrent)
	s[sagCurrentKey(c)+"_pct"] = fmt.Sprintf("(ss-peak)/(base-ss)*100 at %gpA", c.SagTargetCurrent)
	s[sagVoltageKey(c)] = fmt.Sprintf("sag ratio (base-ss)/(base-peak) for the frame with base-ss closest to %gV", c.SagTargetVoltage)
	s[sagVoltageKey(c)+"_pct"] = fmt.Sprintf("(ss-peak)/(base-ss)*100 for the frame with base-ss closest to %gV", c.SagTargetVoltage)
	for name, doc := range spikeFeatureDocs {
		s["IV_avg_spike_"+name] = "average " + doc + ", " + byFirstFrame
		s["IV_first_spike_"+name] = doc + ", " + byFirstSpike
	}
	for _, cur := range c.CurrentSteps {
		s[evokedKey(cur)] = fmt.Sprintf("number of evoked spikes at %gpA", cur)
		s[reboundKey(cur)] = fmt.Sprintf("number of rebound spikes at %gpA", cur)
	}
	return s
}
