package protocol

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/cwbudde/algo-ephys/dsp/fit"
	"github.com/cwbudde/algo-ephys/dsp/trace"
	"github.com/cwbudde/algo-ephys/internal/testutil"
)

// ivRecording renders one 1 s sweep per current, each through resistance
// r[i] and firing spikes[i].
func ivRecording(t *testing.T, currents, r []float64, spikes [][]float64) (Input, Config) {
	t.Helper()
	var in Input
	for i, c := range currents {
		var times []float64
		if i < len(spikes) {
			times = spikes[i]
		}
		in.Voltage = append(in.Voltage, stepSweep(t, 1.0, passiveStep(0.1, 0.9, c, r[i], 0.02), times...))
	}
	cfg := DefaultConfig()
	cfg.IV.CurrentSteps = currents
	cfg.IV.FitOrder = fit.OrderSingle
	return in, cfg
}

func uniform(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestIVEndToEnd(t *testing.T) {
	currents := []float64{-100, -50, 0, 50, 100}
	in, cfg := ivRecording(t, currents, uniform(5, 1e8), [][]float64{
		nil, nil, nil,
		{0.2, 0.4},
		spikeTimes(0.15, 0.1, 5),
	})
	p, err := NewIV(in, cfg, quiet())
	if err != nil {
		t.Fatal(err)
	}
	r := p.Results()

	testutil.RequireNearlyEqual(t, "IV_rheobase", requireValue(t, r, "IV_rheobase"), 50, 1e-9)
	testutil.RequireNearlyEqual(t, "IV_max_nb_spikes", requireValue(t, r, "IV_max_nb_spikes"), 5, 0)
	testutil.RequireNearlyEqual(t, "IV_baseline", requireValue(t, r, "IV_baseline"), -65, 1e-9)
	testutil.RequireRelative(t, "IV_resistance", requireValue(t, r, "IV_resistance"), -100, 0.01)
	testutil.RequireRelative(t, "IV_tc", requireValue(t, r, "IV_tc"), 20, 0.05)

	for i, want := range []float64{0, 0, 0, 2, 5} {
		key := evokedKey(currents[i])
		if got := requireValue(t, r, key); got != want {
			t.Fatalf("%s = %v, want %v", key, got, want)
		}
	}

	// only the hyperpolarizing sweeps are fitted
	for i, f := range p.Sweeps() {
		if fitted := f.Fit != nil; fitted != (i < 2) {
			t.Fatalf("sweep %d fitted = %v", i, fitted)
		}
	}
	if _, ok := r.Label("IV_firing_pattern"); !ok {
		t.Fatal("missing firing pattern label")
	}
	testutil.RequireRelative(t, "IV_first_spike_amplitude", requireValue(t, r, "IV_first_spike_amplitude"), 80, 1e-3)
	testutil.RequireNearlyEqual(t, "IV_first_spike_delay", requireValue(t, r, "IV_first_spike_delay"), 100, 1e-9)
	requireCovered(t, p)
}

func TestIVReferenceFrame(t *testing.T) {
	currents := []float64{-20, 0, 20, 40, 60}
	in, cfg := ivRecording(t, currents, uniform(5, 1e8), [][]float64{
		nil, nil,
		spikeTimes(0.15, 0.1, 3),
		spikeTimes(0.15, 0.1, 5),
		spikeTimes(0.15, 0.1, 7),
	})
	p, err := NewIV(in, cfg, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Reference(3); got != 2 {
		t.Fatalf("Reference(3) = %d, want 2", got)
	}
	p.Frames()[2].SetEnabled(false)
	if got := p.Reference(3); got != 3 {
		t.Fatalf("Reference(3) with sweep 2 disabled = %d, want 3", got)
	}
	if got := p.Reference(8); got != -1 {
		t.Fatalf("Reference(8) = %d, want -1", got)
	}
}

func TestIVDisabledSweepsAreExcluded(t *testing.T) {
	in, cfg := ivRecording(t, []float64{-100, -50}, []float64{1e8, 8e7}, nil)
	p, err := NewIV(in, cfg, quiet())
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireRelative(t, "IV_resistance", requireValue(t, p.Results(), "IV_resistance"), -90, 0.01)

	p.Frames()[0].SetEnabled(false)
	r := p.Results()
	testutil.RequireRelative(t, "IV_resistance", requireValue(t, r, "IV_resistance"), -80, 0.01)
	if _, ok := r.Value(evokedKey(-100)); ok {
		t.Fatal("evoked count reported for a disabled sweep")
	}
	if _, ok := r.Value(reboundKey(-100)); ok {
		t.Fatal("rebound count reported for a disabled sweep")
	}
	if v := requireValue(t, r, evokedKey(-50)); v != 0 {
		t.Fatalf("%s = %v, want 0", evokedKey(-50), v)
	}

	for _, f := range p.Frames() {
		f.SetEnabled(false)
	}
	r = p.Results()
	if v := requireValue(t, r, "IV_resistance"); !math.IsNaN(v) {
		t.Fatalf("IV_resistance with every sweep disabled = %v, want NaN", v)
	}
	if _, ok := r.Value("IV_rheobase"); ok {
		t.Fatal("IV_rheobase reported without enabled sweeps")
	}
}

func TestIVProcessIsIdempotent(t *testing.T) {
	in, cfg := ivRecording(t, []float64{-100, 50}, uniform(2, 1e8), [][]float64{nil, {0.2, 0.3, 0.45}})
	p, err := NewIV(in, cfg, quiet())
	if err != nil {
		t.Fatal(err)
	}
	before := fmt.Sprint(p.Results())
	p.Process()
	p.Process()
	if after := fmt.Sprint(p.Results()); after != before {
		t.Fatalf("results changed after reprocessing:\n%s\n%s", before, after)
	}
}

func TestIVRefinedConfigIsPerFrame(t *testing.T) {
	in, cfg := ivRecording(t, []float64{-100}, uniform(1, 1e8), nil)
	p, err := NewIV(in, cfg, quiet())
	if err != nil {
		t.Fatal(err)
	}
	got := p.Sweeps()[0].Config
	if got.FitAutoStop {
		t.Fatal("refined config still requests an automatic fit stop")
	}
	if limit := cfg.IV.Start + (cfg.IV.FitStop-cfg.IV.FitStart)*1.2; got.FitStop > limit+1e-12 {
		t.Fatalf("FitStop = %v, above cap %v", got.FitStop, limit)
	}
	if !cfg.IV.FitAutoStop {
		t.Fatal("refinement mutated the shared configuration")
	}
}

func TestNewIVConfigErrors(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := NewIV(Input{}, cfg); !errors.Is(err, ErrConfig) {
		t.Fatalf("empty input: err = %v, want ErrConfig", err)
	}

	cfg.IV.CurrentSteps = []float64{-100}
	sweep := newSweep(t, testutil.DC(testRest, 1000), trace.KindVoltage)
	if _, err := NewIV(Input{Voltage: []*trace.Signal{sweep, sweep}}, cfg); !errors.Is(err, ErrConfig) {
		t.Fatalf("too few steps: err = %v, want ErrConfig", err)
	}

	cfg.IV.CurrentSteps = []float64{-100, -50}
	cfg.IV.FitInitialGuess = []float64{1, 0.01, 1, 0.002, -0.07, 0}
	if _, err := NewIV(Input{Voltage: []*trace.Signal{sweep, sweep}}, cfg); !errors.Is(err, ErrConfig) {
		t.Fatalf("long initial guess: err = %v, want ErrConfig", err)
	}
}
