package protocol

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-ephys/dsp/trace"
	"github.com/cwbudde/algo-ephys/internal/testutil"
)

// ahpTrain renders 5 spikes at 10 Hz from 0.1 s followed by a 5 mV
// hyperpolarization reached linearly 50 ms after the last spike.
func ahpTrain(t *testing.T) *trace.Signal {
	t.Helper()
	n := int(2.0 * testRate)
	buf := make([]float64, n)
	for i := range buf {
		tt := float64(i) / testRate
		switch {
		case tt <= 0.5:
			buf[i] = testRest
		case tt <= 0.55:
			buf[i] = testRest - 0.005*(tt-0.5)/0.05
		default:
			buf[i] = testRest - 0.005*math.Exp(-(tt-0.55)/0.2)
		}
	}
	for _, tp := range spikeTimes(0.1, 0.1, 5) {
		testutil.AddSpike(buf, testRate, tp, 0.1, 0.0005, 0.001)
	}
	return newSweep(t, buf, trace.KindVoltage)
}

func TestAHPMeasuresTrain(t *testing.T) {
	p, err := NewAHP(Input{Voltage: []*trace.Signal{ahpTrain(t)}}, DefaultConfig(), quiet())
	if err != nil {
		t.Fatal(err)
	}
	f := p.Sweeps()[0]
	if f.Err != nil {
		t.Fatalf("frame error: %v", f.Err)
	}
	if f.PeakCount != 5 || f.Frequency != 10 {
		t.Fatalf("train = %d spikes at %v Hz, want 5 at 10 Hz", f.PeakCount, f.Frequency)
	}
	if want := int(0.55 * testRate); f.AHPPosition != want {
		t.Fatalf("AHP position = %d, want %d", f.AHPPosition, want)
	}

	r := p.Results()
	testutil.RequireNearlyEqual(t, "min", requireValue(t, r, "AHP_5_10Hz_min"), 5, 0.02)
	testutil.RequireNearlyEqual(t, "adp 5ms", requireValue(t, r, "AHP_5_10Hz_adp_5ms"), 0.5, 1e-6)
	testutil.RequireNearlyEqual(t, "adp 10ms", requireValue(t, r, "AHP_5_10Hz_adp_10ms"), 1, 1e-6)
	if _, ok := r.Value("AHP_5_10Hz_1s"); ok {
		t.Fatal("1 s value reported for a 5-spike train")
	}
	requireCovered(t, p)
}

func TestAHPCorrectSigns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AHP.CorrectSigns = true
	p, err := NewAHP(Input{Voltage: []*trace.Signal{ahpTrain(t)}}, cfg, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if v := requireValue(t, p.Results(), "AHP_5_10Hz_min"); v >= 0 {
		t.Fatalf("corrected AHP = %v, want negative", v)
	}
}

func TestAHPSpikeCountGate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AHP.CheckSpikeCount = true
	cfg.AHP.ValidCombos = []Combo{{Count: 15, Frequency: 50}}
	p, err := NewAHP(Input{Voltage: []*trace.Signal{ahpTrain(t)}}, cfg, quiet())
	if err != nil {
		t.Fatal(err)
	}
	f := p.Sweeps()[0]
	if !errors.Is(f.Err, ErrSpikeCount) {
		t.Fatalf("Err = %v, want ErrSpikeCount", f.Err)
	}
	if !math.IsNaN(f.AHP) {
		t.Fatalf("rejected frame AHP = %v, want NaN", f.AHP)
	}
	// the measured 10 Hz snaps to the only valid frequency
	if f.Frequency != 50 {
		t.Fatalf("Frequency = %v, want 50", f.Frequency)
	}
}

func TestAHPSynthesizedPeaks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AHP.CheckNone = true
	sweep := ahpTrain(t)
	if _, err := NewAHP(Input{Voltage: []*trace.Signal{sweep}}, cfg, quiet()); !errors.Is(err, ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig without a known train", err)
	}

	p, err := NewAHP(Input{Voltage: []*trace.Signal{sweep}, Frequency: 10, APCount: 5}, cfg, quiet())
	if err != nil {
		t.Fatal(err)
	}
	f := p.Sweeps()[0]
	if len(f.Peaks) != 5 || f.Frequency != 10 {
		t.Fatalf("peaks = %v at %v Hz", f.Peaks, f.Frequency)
	}
	if last := f.Peaks[4]; math.Abs(float64(last)-0.5*testRate) > 1 {
		t.Fatalf("last synthesized peak at %d, want %d", last, int(0.5*testRate))
	}
}

func TestAHPNoSpikes(t *testing.T) {
	sweep := newSweep(t, testutil.DC(testRest, int(testRate)), trace.KindVoltage)
	p, err := NewAHP(Input{Voltage: []*trace.Signal{sweep}}, DefaultConfig(), quiet())
	if err != nil {
		t.Fatal(err)
	}
	if f := p.Sweeps()[0]; !errors.Is(f.Err, ErrNoSpikes) {
		t.Fatalf("Err = %v, want ErrNoSpikes", f.Err)
	}
	if n := p.Results().Len(); n != 0 {
		t.Fatalf("results = %d keys, want none", n)
	}
}

func TestAHPNearestFrequency(t *testing.T) {
	c := AHPConfig{ValidCombos: []Combo{{5, 50}, {5, 10}, {15, 100}}}
	tests := []struct{ in, want float64 }{
		{10, 10},
		{20, 10},
		{30, 10},
		{70, 50},
		{80, 100},
		{75, 50},
	}
	for _, tt := range tests {
		if got := c.nearestFrequency(tt.in); got != tt.want {
			t.Fatalf("nearestFrequency(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
