package protocol

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-ephys/dsp/trace"
	"github.com/cwbudde/algo-ephys/internal/testutil"
)

func TestRheobase(t *testing.T) {
	cfg := DefaultConfig()
	rc := cfg.Rheobase
	spikes := [][]float64{nil, nil, {0.23}, {0.22, 0.24}}
	var in Input
	for i, times := range spikes {
		s := passiveStep(rc.Start, rc.Stop, rc.CurrentIncrement*float64(i), 4e8, 0.005)
		in.Voltage = append(in.Voltage, stepSweep(t, 0.5, s, times...))
	}
	p, err := NewRheobase(in, cfg, quiet())
	if err != nil {
		t.Fatal(err)
	}

	r := p.Results()
	testutil.RequireNearlyEqual(t, "RHEO_rheobase", requireValue(t, r, "RHEO_rheobase"), 10, 1e-9)
	testutil.RequireNearlyEqual(t, "RHEO_baseline", requireValue(t, r, "RHEO_baseline"), -65, 1e-9)
	testutil.RequireRelative(t, "RHEO_spike_amplitude", requireValue(t, r, "RHEO_spike_amplitude"), 80, 1e-3)
	testutil.RequireFinite(t, []float64{requireValue(t, r, "RHEO_spike_ahp")})
	requireCovered(t, p)

	for i, f := range p.Sweeps() {
		if want := rc.CurrentIncrement * float64(i); f.Current != want {
			t.Fatalf("sweep %d current = %v, want %v", i, f.Current, want)
		}
		if f.Config.Stop != rc.Stop+rc.Grace || f.Config.BaselineStop != rc.BaselineStop {
			t.Fatalf("sweep %d not retimed: %+v", i, f.Config)
		}
	}
}

func TestRheobaseFirstSweepHasNoAHP(t *testing.T) {
	cfg := DefaultConfig()
	s := passiveStep(cfg.Rheobase.Start, cfg.Rheobase.Stop, 0, 4e8, 0.005)
	p, err := NewRheobase(Input{Voltage: []*trace.Signal{stepSweep(t, 0.5, s, 0.23)}}, cfg, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if v := requireValue(t, p.Results(), "RHEO_spike_ahp"); !math.IsNaN(v) {
		t.Fatalf("RHEO_spike_ahp = %v, want NaN without a preceding sweep", v)
	}
}

func TestSpontaneous(t *testing.T) {
	times := []float64{0.2, 0.5, 0.9, 1.4}
	sweep := stepSweep(t, 2.0, testutil.Step{Rest: testRest, Start: 3, Stop: 4, TauFast: 1, TauSlow: 1, FastFraction: 1}, times...)
	p, err := NewSpontaneous(Input{Voltage: []*trace.Signal{sweep}}, DefaultConfig(), quiet())
	if err != nil {
		t.Fatal(err)
	}
	r := p.Results()
	testutil.RequireRelative(t, "SPON_frequency", requireValue(t, r, "SPON_frequency"), 2, 1e-3)
	testutil.RequireNearlyEqual(t, "SPON_baseline", requireValue(t, r, "SPON_baseline"), -65, 1e-9)
	testutil.RequireRelative(t, "SPON_avg_spike_amplitude", requireValue(t, r, "SPON_avg_spike_amplitude"), 80, 1e-6)
	testutil.RequireNearlyEqual(t, "SPON_avg_spike_ahp", requireValue(t, r, "SPON_avg_spike_ahp"), -65, 1e-9)
	requireCovered(t, p)

	if f := p.Sweeps()[0]; f.Fit != nil || len(f.Evoked()) != len(times) {
		t.Fatalf("fit = %v, evoked = %d", f.Fit, len(f.Evoked()))
	}
}
