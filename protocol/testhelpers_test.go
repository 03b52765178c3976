package protocol

import (
	"io"
	"log/slog"
	"testing"

	"github.com/cwbudde/algo-ephys/dsp/trace"
	"github.com/cwbudde/algo-ephys/internal/testutil"
)

const (
	testRate = 20000.0
	testRest = -0.065
)

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newSweep(t *testing.T, buf []float64, kind trace.Kind) *trace.Signal {
	t.Helper()
	sig, err := trace.New(buf, testRate, kind)
	if err != nil {
		t.Fatal(err)
	}
	return sig
}

// passiveStep is a single-exponential response to current pA through r
// ohms between start and stop.
func passiveStep(start, stop, current, r, tau float64) testutil.Step {
	return testutil.Step{
		Rest:         testRest,
		Start:        start,
		Stop:         stop,
		Deflection:   current * 1e-12 * r,
		TauFast:      tau,
		TauSlow:      tau,
		FastFraction: 1,
	}
}

// stepSweep renders s over duration seconds with triangular spikes at the
// given peak times.
func stepSweep(t *testing.T, duration float64, s testutil.Step, spikes ...float64) *trace.Signal {
	t.Helper()
	buf := s.Trace(testRate, int(duration*testRate))
	for _, tp := range spikes {
		testutil.AddSpike(buf, testRate, tp, 0.08, 0.0005, 0.001)
	}
	return newSweep(t, buf, trace.KindVoltage)
}

func spikeTimes(first, interval float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = first + interval*float64(i)
	}
	return out
}

func requireValue(t *testing.T, r Results, key string) float64 {
	t.Helper()
	v, ok := r.Value(key)
	if !ok {
		t.Fatalf("missing result %q in %v", key, r.Keys())
	}
	return v
}

func requireCovered(t *testing.T, p Protocol) {
	t.Helper()
	schema := p.Provides()
	for _, k := range p.Results().Keys() {
		if _, ok := schema[k]; !ok {
			t.Fatalf("%s: result %q not in schema", p.Kind(), k)
		}
	}
}
