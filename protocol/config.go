package protocol

import (
	"fmt"
	"math"
	"slices"

	"github.com/cwbudde/algo-ephys/dsp/fit"
	"github.com/cwbudde/algo-ephys/dsp/trace"
	"github.com/cwbudde/algo-ephys/measure/spike"
	"github.com/cwbudde/algo-ephys/stats/nanstat"
)

// Config is the frozen configuration snapshot for every protocol kind.
// Times are in seconds, voltages in volts and currents in pA.
type Config struct {
	Scale Scale `yaml:"scale" envconfig:"SCALE"`
	// FitMaxEvaluations bounds every curve fit.
	FitMaxEvaluations int `yaml:"fit_max_evaluations" envconfig:"FIT_MAX_EVALUATIONS" validate:"gt=0"`

	IV           IVConfig           `yaml:"iv" envconfig:"IV"`
	AHP          AHPConfig          `yaml:"ahp" envconfig:"AHP"`
	Resistance   ResistanceConfig   `yaml:"resistance" envconfig:"RESISTANCE"`
	Sag          SagConfig          `yaml:"sag" envconfig:"SAG"`
	Resonance    ResonanceConfig    `yaml:"resonance" envconfig:"RESONANCE"`
	Ramp         RampConfig         `yaml:"ramp" envconfig:"RAMP"`
	Rheobase     RheobaseConfig     `yaml:"rheobase" envconfig:"RHEOBASE"`
	TimeConstant TimeConstantConfig `yaml:"time_constant" envconfig:"TIME_CONSTANT"`
}

// DefaultConfig returns the defaults for cortical current-clamp recordings.
func DefaultConfig() Config {
	return Config{
		Scale:             DefaultScale(),
		FitMaxEvaluations: fit.DefaultMaxEvaluations,
		IV:                DefaultIVConfig(),
		AHP:               DefaultAHPConfig(),
		Resistance:        DefaultResistanceConfig(),
		Sag:               DefaultSagConfig(),
		Resonance:         DefaultResonanceConfig(),
		Ramp:              DefaultRampConfig(),
		Rheobase:          DefaultRheobaseConfig(),
		TimeConstant:      DefaultTimeConstantConfig(),
	}
}

// Scale holds the divisors applied to SI values before they are reported.
type Scale struct {
	Volt   float64 `yaml:"volt" envconfig:"VOLT" validate:"gt=0"`
	Ohm    float64 `yaml:"ohm" envconfig:"OHM" validate:"gt=0"`
	Second float64 `yaml:"second" envconfig:"SECOND" validate:"gt=0"`
	Ampere float64 `yaml:"ampere" envconfig:"AMPERE" validate:"gt=0"`
}

// DefaultScale reports mV, MOhm, ms and pA.
func DefaultScale() Scale {
	return Scale{Volt: 1e-3, Ohm: 1e6, Second: 1e-3, Ampere: 1e-12}
}

// IVConfig configures current-step (IV curve) analysis. The measurement
// windows are absolute times; Retime derives them from the step timing.
type IVConfig struct {
	// Start and Stop bound the current injection.
	Start float64 `yaml:"start" envconfig:"START" validate:"gte=0"`
	Stop  float64 `yaml:"stop" envconfig:"STOP" validate:"gtfield=Start"`

	BaselineStart float64 `yaml:"baseline_start" envconfig:"BASELINE_START"`
	BaselineStop  float64 `yaml:"baseline_stop" envconfig:"BASELINE_STOP"`
	SagPeakStart  float64 `yaml:"sag_peak_start" envconfig:"SAG_PEAK_START"`
	SagPeakStop   float64 `yaml:"sag_peak_stop" envconfig:"SAG_PEAK_STOP"`
	SagSSStart    float64 `yaml:"sag_ss_start" envconfig:"SAG_SS_START"`
	SagSSStop     float64 `yaml:"sag_ss_stop" envconfig:"SAG_SS_STOP"`

	// SagTargetVoltage selects the frame whose baseline minus steady
	// state is closest to it for the target-voltage sag ratio.
	SagTargetVoltage float64 `yaml:"sag_target_voltage" envconfig:"SAG_TARGET_VOLTAGE"`
	SagTargetCurrent float64 `yaml:"sag_target_current" envconfig:"SAG_TARGET_CURRENT"`

	FitEnabled bool    `yaml:"fit_enabled" envconfig:"FIT_ENABLED"`
	FitStart   float64 `yaml:"fit_start" envconfig:"FIT_START"`
	FitStop    float64 `yaml:"fit_stop" envconfig:"FIT_STOP"`
	// FitAutoStop replaces FitStop per frame with an estimate derived from
	// the time of the maximal hyperpolarization. See Refine.
	FitAutoStop bool      `yaml:"fit_auto_stop" envconfig:"FIT_AUTO_STOP"`
	FitOrder    fit.Order `yaml:"fit_order" envconfig:"FIT_ORDER" validate:"gte=0,lte=2"`
	FitWeighted bool      `yaml:"fit_weighted" envconfig:"FIT_WEIGHTED"`

	// FitInitialGuess overrides fit.DefaultInitialGuess for FitOrder.
	FitInitialGuess []float64 `yaml:"fit_initial_guess" envconfig:"FIT_INITIAL_GUESS"`

	// Frames are fitted when the injected current is at or below
	// FitThreshold.
	FitThreshold float64 `yaml:"fit_threshold" envconfig:"FIT_THRESHOLD"`

	// CurrentSteps lists the injected current of each sweep in pA.
	CurrentSteps []float64 `yaml:"current_steps" envconfig:"CURRENT_STEPS"`

	// ResistanceMinSagRatio excludes frames with pronounced sag from the
	// averaged input resistance.
	ResistanceMinSagRatio float64 `yaml:"resistance_min_sag_ratio" envconfig:"RESISTANCE_MIN_SAG_RATIO"`

	EvokedThreshold        float64 `yaml:"evoked_threshold" envconfig:"EVOKED_THRESHOLD"`
	MaxAHPDelay            float64 `yaml:"max_ahp_delay" envconfig:"MAX_AHP_DELAY" validate:"gte=0"`
	MinSpikesForMeasure    int     `yaml:"min_spikes_for_measure" envconfig:"MIN_SPIKES_FOR_MEASURE" validate:"gte=1"`
	MinSpikesForAdaptation int     `yaml:"min_spikes_for_adaptation" envconfig:"MIN_SPIKES_FOR_ADAPTATION" validate:"gte=2"`

	Spike spike.Config `yaml:"spike" envconfig:"SPIKE"`
}

// DefaultIVConfig returns the IV defaults for a 0.1 s to 0.9 s step.
func DefaultIVConfig() IVConfig {
	steps := make([]float64, 0, 39)
	for c := -95.0; c < 100; c += 5 {
		steps = append(steps, c)
	}
	c := IVConfig{
		SagTargetVoltage:       0.015,
		SagTargetCurrent:       -90,
		FitEnabled:             true,
		FitAutoStop:            true,
		FitOrder:               fit.OrderDouble,
		FitWeighted:            true,
		FitThreshold:           -25,
		CurrentSteps:           steps,
		ResistanceMinSagRatio:  0.90,
		EvokedThreshold:        0,
		MaxAHPDelay:            0.05,
		MinSpikesForMeasure:    1,
		MinSpikesForAdaptation: 4,
		Spike:                  spike.DefaultConfig(),
	}
	return c.Retime(0.1, 0.9)
}

// Retime returns a copy of c for a step from start to stop, with every
// window anchored to the step edges moved along.
func (c IVConfig) Retime(start, stop float64) IVConfig {
	c.Start, c.Stop = start, stop
	c.BaselineStart = 0
	c.BaselineStop = start - 0.01
	c.SagPeakStart = start + 0.01
	c.SagPeakStop = start + 0.20
	c.SagSSStart = stop - 0.3
	c.SagSSStop = stop - 0.01
	c.FitStart = start + 0.00025
	c.FitStop = start + 0.2
	c.CurrentSteps = slices.Clone(c.CurrentSteps)
	return c
}

// Refine returns the configuration a frame recorded as v is processed
// with. When FitAutoStop is set the fit stops at 80% of the delay to the
// voltage minimum within the step, capped at 1.2 times the configured fit
// span; the returned copy has FitAutoStop cleared.
func (c IVConfig) Refine(v *trace.Signal) IVConfig {
	if !c.FitAutoStop {
		return c
	}
	c.FitAutoStop = false
	seg := v.Between(c.Start, c.Stop)
	idx := nanstat.ArgMin(seg)
	if idx < 0 {
		return c
	}
	tmin := float64(idx)/v.SampleRate() + c.Start
	stop := c.Start + (tmin-c.Start)*0.8
	c.FitStop = math.Min(stop, c.Start+(c.FitStop-c.FitStart)*1.2)
	return c
}

// Stimulus returns the step description for a sweep injecting current pA.
func (c IVConfig) Stimulus(current float64) spike.Stimulus {
	return spike.Stimulus{
		Start:           c.Start,
		Stop:            c.Stop,
		Current:         current,
		EvokedThreshold: c.EvokedThreshold,
		MaxAHPDelay:     c.MaxAHPDelay,
	}
}

func (c IVConfig) checkGuess() error {
	return checkGuess("iv", c.FitOrder, c.FitInitialGuess)
}

// Combo is a valid (spike count, train frequency) pair of an AHP protocol.
type Combo struct {
	Count     int     `yaml:"count" validate:"gt=0"`
	Frequency float64 `yaml:"frequency" validate:"gt=0"`
}

// AHPConfig configures afterhyperpolarization analysis of spike trains.
type AHPConfig struct {
	BaselineStart float64 `yaml:"baseline_start" envconfig:"BASELINE_START"`
	BaselineStop  float64 `yaml:"baseline_stop" envconfig:"BASELINE_STOP"`

	MinPeak       float64 `yaml:"min_peak" envconfig:"MIN_PEAK"`
	MinProminence float64 `yaml:"min_prominence" envconfig:"MIN_PROMINENCE" validate:"gte=0"`
	// AutoThreshold derives MinPeak and MinProminence from the voltage
	// range of each sweep. See Refine.
	AutoThreshold bool `yaml:"auto_threshold" envconfig:"AUTO_THRESHOLD"`
	// MinInterval is the refractory spacing between detected peaks.
	MinInterval float64 `yaml:"min_interval" envconfig:"MIN_INTERVAL" validate:"gte=0"`

	MinSpikeCount int     `yaml:"min_spike_count" envconfig:"MIN_SPIKE_COUNT" validate:"gte=0"`
	MaxDelay      float64 `yaml:"max_delay" envconfig:"MAX_DELAY" validate:"gt=0"`
	// AverageWindow is the half-width of the window averaged around the
	// AHP minimum.
	AverageWindow float64 `yaml:"average_window" envconfig:"AVERAGE_WINDOW" validate:"gte=0"`

	CheckSpikeCount bool `yaml:"check_spike_count" envconfig:"CHECK_SPIKE_COUNT"`
	CheckSpikeFreq  bool `yaml:"check_spike_freq" envconfig:"CHECK_SPIKE_FREQ"`
	// CheckNone skips detection and places Input.APCount peaks at
	// Input.Frequency starting at SpikeStart.
	CheckNone  bool    `yaml:"check_none" envconfig:"CHECK_NONE"`
	SpikeStart float64 `yaml:"spike_start" envconfig:"SPIKE_START"`
	// NearestFrequency snaps a measured frequency to the closest valid one.
	NearestFrequency bool `yaml:"nearest_frequency" envconfig:"NEAREST_FREQUENCY"`
	// CorrectSigns reports hyperpolarizations as negative values.
	CorrectSigns bool `yaml:"correct_signs" envconfig:"CORRECT_SIGNS"`
	// Simplified trusts the input count and frequency when they form a
	// valid combination and skips all checks.
	Simplified bool `yaml:"simplified" envconfig:"SIMPLIFIED"`

	ValidCombos []Combo `yaml:"valid_combos" ignored:"true" validate:"dive"`
}

// DefaultAHPConfig returns the AHP defaults.
func DefaultAHPConfig() AHPConfig {
	return AHPConfig{
		BaselineStart:    0,
		BaselineStop:     0.05,
		MinPeak:          0.1,
		MinProminence:    0.05,
		AutoThreshold:    true,
		MinInterval:      0.0004,
		MinSpikeCount:    3,
		MaxDelay:         0.5,
		AverageWindow:    0.0002,
		SpikeStart:       0.1,
		NearestFrequency: true,
		ValidCombos:      []Combo{{Count: 5, Frequency: 10}},
	}
}

// Refine returns the detection settings for a sweep recorded as v. With
// AutoThreshold the peak height is the middle of the voltage range and the
// prominence 35% of it; the copy has AutoThreshold cleared.
func (c AHPConfig) Refine(v *trace.Signal) AHPConfig {
	c.ValidCombos = slices.Clone(c.ValidCombos)
	if !c.AutoThreshold {
		return c
	}
	c.AutoThreshold = false
	data := v.Values()
	lo, hi := nanstat.Min(data), nanstat.Max(data)
	if math.IsNaN(lo) {
		return c
	}
	delta := hi - lo
	c.MinPeak = lo + delta*0.5
	c.MinProminence = delta * 0.35
	return c
}

func (c AHPConfig) validCount(n int) bool {
	return slices.ContainsFunc(c.ValidCombos, func(cb Combo) bool { return cb.Count == n })
}

func (c AHPConfig) validFrequency(f float64) bool {
	return slices.ContainsFunc(c.ValidCombos, func(cb Combo) bool { return cb.Frequency == f })
}

func (c AHPConfig) validCombo(n int, f float64) bool {
	return slices.Contains(c.ValidCombos, Combo{Count: n, Frequency: f})
}

// nearestFrequency returns the valid frequency closest to f, preferring the
// lower one on ties.
func (c AHPConfig) nearestFrequency(f float64) float64 {
	freqs := make([]float64, 0, len(c.ValidCombos))
	for _, cb := range c.ValidCombos {
		freqs = append(freqs, cb.Frequency)
	}
	slices.Sort(freqs)
	best, dist := math.NaN(), math.Inf(1)
	for _, v := range freqs {
		if d := math.Abs(v - f); d < dist {
			best, dist = v, d
		}
	}
	return best
}

// ResistanceConfig configures input resistance analysis of a single
// repeated current step.
type ResistanceConfig struct {
	Start float64 `yaml:"start" envconfig:"START" validate:"gte=0"`
	Stop  float64 `yaml:"stop" envconfig:"STOP" validate:"gtfield=Start"`
	// CurrentStep is the injected current in pA.
	CurrentStep float64   `yaml:"current_step" envconfig:"CURRENT_STEP" validate:"ne=0"`
	FitStart    float64   `yaml:"fit_start" envconfig:"FIT_START"`
	FitStop     float64   `yaml:"fit_stop" envconfig:"FIT_STOP"`
	FitOrder    fit.Order `yaml:"fit_order" envconfig:"FIT_ORDER" validate:"gte=0,lte=2"`
	FitWeighted bool      `yaml:"fit_weighted" envconfig:"FIT_WEIGHTED"`

	// FitInitialGuess overrides fit.DefaultInitialGuess for FitOrder.
	FitInitialGuess []float64 `yaml:"fit_initial_guess" envconfig:"FIT_INITIAL_GUESS"`

	// Average collapses all sweeps into their mean before analysis.
	Average bool `yaml:"average" envconfig:"AVERAGE"`
}

// DefaultResistanceConfig returns the defaults for a -20 pA step from 0.2 s
// to 0.7 s.
func DefaultResistanceConfig() ResistanceConfig {
	c := ResistanceConfig{
		CurrentStep: -20,
		FitOrder:    fit.OrderDouble,
		FitWeighted: true,
		Average:     true,
	}
	return c.Retime(0.2, 0.7)
}

// Retime returns a copy of c for a step from start to stop, with the fit
// window 10 ms inside the step edges.
func (c ResistanceConfig) Retime(start, stop float64) ResistanceConfig {
	c.Start, c.Stop = start, stop
	c.FitStart = start + 0.01
	c.FitStop = stop - 0.01
	return c
}

func (c ResistanceConfig) checkGuess() error {
	return checkGuess("resistance", c.FitOrder, c.FitInitialGuess)
}

// SagConfig configures sag-ratio analysis.
type SagConfig struct {
	Start float64 `yaml:"start" envconfig:"START" validate:"gte=0"`
	Stop  float64 `yaml:"stop" envconfig:"STOP" validate:"gtfield=Start"`
	// CurrentSteps lists the current of each (averaged) frame in pA.
	CurrentSteps []float64 `yaml:"current_steps" envconfig:"CURRENT_STEPS"`
	// AverageCount groups consecutive sweeps recorded at the same step.
	// Values below 2 disable averaging.
	AverageCount int `yaml:"average_count" envconfig:"AVERAGE_COUNT" validate:"gte=0"`
}

// DefaultSagConfig returns the sag defaults: -200 pA to 0 pA in 20 pA
// steps, three repeats each.
func DefaultSagConfig() SagConfig {
	steps := make([]float64, 0, 11)
	for c := -200.0; c <= 0; c += 20 {
		steps = append(steps, c)
	}
	return SagConfig{Start: 0.1, Stop: 0.9, CurrentSteps: steps, AverageCount: 3}
}

// ResonanceConfig configures impedance analysis of a chirp (ZAP) stimulus.
type ResonanceConfig struct {
	LowBand  float64 `yaml:"low_band" envconfig:"LOW_BAND" validate:"gte=0"`
	HighBand float64 `yaml:"high_band" envconfig:"HIGH_BAND" validate:"gtfield=LowBand"`
	// Amplitudes lists the stimulus amplitudes in pA the protocol is run
	// with.
	Amplitudes []int `yaml:"amplitudes" envconfig:"AMPLITUDES"`
	// ReferenceFrequency is where the secondary impedance is read.
	ReferenceFrequency float64 `yaml:"reference_frequency" envconfig:"REFERENCE_FREQUENCY" validate:"gt=0"`
	// Start and Stop restrict the analyzed span; a zero Stop means the end
	// of the trace.
	Start float64 `yaml:"start" envconfig:"START" validate:"gte=0"`
	Stop  float64 `yaml:"stop" envconfig:"STOP" validate:"gte=0"`
	// Window names the periodogram taper, see window.ParseType.
	Window string `yaml:"window" envconfig:"WINDOW"`
}

// DefaultResonanceConfig returns the resonance defaults.
func DefaultResonanceConfig() ResonanceConfig {
	return ResonanceConfig{
		LowBand:            0.01,
		HighBand:           10,
		Amplitudes:         []int{30, 50},
		ReferenceFrequency: 0.5,
		Window:             "boxcar",
	}
}

// RampConfig configures current-ramp slope analysis in voltage clamp.
type RampConfig struct {
	// Boundaries are the ramp segment edges. The first segment is fitted
	// over FitSpan after its start and FitSpan before its end.
	Boundaries []float64 `yaml:"boundaries" envconfig:"BOUNDARIES" validate:"min=2"`
	FitSpan    float64   `yaml:"fit_span" envconfig:"FIT_SPAN" validate:"gt=0"`
}

// DefaultRampConfig returns the ramp defaults.
func DefaultRampConfig() RampConfig {
	return RampConfig{Boundaries: []float64{0.13, 1.13, 1.21, 2.21}, FitSpan: 0.2}
}

// RheobaseConfig configures rheobase analysis: short steps of increasing
// amplitude analyzed with the IV machinery.
type RheobaseConfig struct {
	Start float64 `yaml:"start" envconfig:"START" validate:"gte=0"`
	Stop  float64 `yaml:"stop" envconfig:"STOP" validate:"gtfield=Start"`
	// Grace extends the evoked window past Stop for spikes that fire
	// shortly after the step.
	Grace         float64 `yaml:"grace" envconfig:"GRACE" validate:"gte=0"`
	BaselineStart float64 `yaml:"baseline_start" envconfig:"BASELINE_START"`
	BaselineStop  float64 `yaml:"baseline_stop" envconfig:"BASELINE_STOP"`
	// CurrentIncrement is the step amplitude added per sweep in pA.
	CurrentIncrement float64 `yaml:"current_increment" envconfig:"CURRENT_INCREMENT" validate:"gt=0"`
	// AHPPre and AHPPost bound the window, relative to the spike, where
	// the difference to the preceding sweep is searched for the AHP.
	AHPPre  float64 `yaml:"ahp_pre" envconfig:"AHP_PRE" validate:"gte=0"`
	AHPPost float64 `yaml:"ahp_post" envconfig:"AHP_POST" validate:"gt=0"`
}

// DefaultRheobaseConfig returns the rheobase defaults.
func DefaultRheobaseConfig() RheobaseConfig {
	return RheobaseConfig{
		Start:            0.20775,
		Stop:             0.25775,
		Grace:            0.05,
		BaselineStart:    0,
		BaselineStop:     0.2,
		CurrentIncrement: 5,
		AHPPre:           0.005,
		AHPPost:          0.05,
	}
}

// ivConfig returns the IV settings rheobase frames are processed with.
func (c RheobaseConfig) ivConfig(iv IVConfig) IVConfig {
	out := iv.Retime(c.Start, c.Stop+c.Grace)
	out.BaselineStart, out.BaselineStop = c.BaselineStart, c.BaselineStop
	return out
}

// TimeConstantConfig configures membrane time constant analysis of the
// relaxation after short pulses.
type TimeConstantConfig struct {
	FitStart float64   `yaml:"fit_start" envconfig:"FIT_START" validate:"gte=0"`
	FitStop  float64   `yaml:"fit_stop" envconfig:"FIT_STOP" validate:"gtfield=FitStart"`
	Order    fit.Order `yaml:"order" envconfig:"ORDER" validate:"gte=0,lte=2"`
	Weighted bool      `yaml:"weighted" envconfig:"WEIGHTED"`

	// InitialGuess overrides fit.DefaultInitialGuess for Order.
	InitialGuess []float64 `yaml:"initial_guess" envconfig:"INITIAL_GUESS"`
	// CurrentSteps lists the pulse current of each sweep; its signs split
	// the frames into the positive and negative averages. When it does not
	// cover every sweep, the first half of the sweeps counts as negative.
	CurrentSteps []float64 `yaml:"current_steps" envconfig:"CURRENT_STEPS"`
}

// DefaultTimeConstantConfig returns the time constant defaults.
func DefaultTimeConstantConfig() TimeConstantConfig {
	return TimeConstantConfig{
		FitStart:     0.051,
		FitStop:      0.091,
		Order:        fit.OrderDouble,
		Weighted:     true,
		CurrentSteps: []float64{-400, -400, -400, 400, 400, 400},
	}
}

func (c TimeConstantConfig) checkGuess() error {
	return checkGuess("time constant", c.Order, c.InitialGuess)
}

// checkGuess reports a non-empty guess whose length does not match order.
func checkGuess(section string, order fit.Order, guess []float64) error {
	if len(guess) == 0 || len(guess) == order.NumParams() {
		return nil
	}
	return fmt.Errorf("%w: %s initial guess has %d parameters, %s fit needs %d",
		ErrConfig, section, len(guess), order, order.NumParams())
}
