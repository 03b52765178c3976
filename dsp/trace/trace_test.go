package trace

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-ephys/internal/testutil"
)

func TestNewRejectsBadRate(t *testing.T) {
	for _, rate := range []float64{0, -1, math.NaN()} {
		if _, err := New([]float64{1}, rate, KindVoltage); err == nil {
			t.Fatalf("New(rate=%v) error = nil, want error", rate)
		}
	}
}

func TestNewCopiesInput(t *testing.T) {
	data := []float64{1, 2, 3}
	s, err := New(data, 10, KindVoltage)
	if err != nil {
		t.Fatal(err)
	}
	data[0] = 99
	if got := s.At(0); got != 1 {
		t.Fatalf("At(0) = %v, want 1", got)
	}

	v := s.Values()
	v[1] = 99
	if got := s.At(1); got != 2 {
		t.Fatalf("At(1) after Values mutation = %v, want 2", got)
	}
}

func TestIndexRounds(t *testing.T) {
	s, _ := New(make([]float64, 100), 1000, KindVoltage)
	tests := []struct {
		t    float64
		want int
	}{
		{0, 0},
		{0.0104, 10},
		{0.0106, 11},
		{0.05, 50},
	}
	for _, tt := range tests {
		if got := s.Index(tt.t); got != tt.want {
			t.Fatalf("Index(%v) = %d, want %d", tt.t, got, tt.want)
		}
	}
}

func TestBetweenHalfOpenAndClamped(t *testing.T) {
	data := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	s, _ := New(data, 10, KindVoltage)

	testutil.RequireSliceNearlyEqual(t, s.Between(0.2, 0.5), []float64{2, 3, 4}, 0)
	testutil.RequireSliceNearlyEqual(t, s.Between(-1, 0.2), []float64{0, 1}, 0)
	testutil.RequireSliceNearlyEqual(t, s.Between(0.8, 5), []float64{8, 9}, 0)
	if got := s.Between(0.5, 0.2); len(got) != 0 {
		t.Fatalf("inverted Between len = %d, want 0", len(got))
	}
	testutil.RequireSliceNearlyEqual(t, s.Times(0.2, 0.5), []float64{0.2, 0.3, 0.4}, 1e-12)
}

func TestAtOutOfRange(t *testing.T) {
	s, _ := New([]float64{1}, 10, KindCurrent)
	if !math.IsNaN(s.At(-1)) || !math.IsNaN(s.At(1)) {
		t.Fatal("At out of range should be NaN")
	}
	if s.Kind() != KindCurrent || s.Kind().String() != "current" {
		t.Fatalf("Kind = %v, want current", s.Kind())
	}
}

func TestAverageAndSub(t *testing.T) {
	a, _ := New([]float64{1, 2, 3}, 10, KindVoltage)
	b, _ := New([]float64{3, 4, 5}, 10, KindVoltage)

	avg, err := Average(a, b)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireSliceNearlyEqual(t, avg.Values(), []float64{2, 3, 4}, 1e-12)

	diff, err := b.Sub(a)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireSliceNearlyEqual(t, diff.Values(), []float64{2, 2, 2}, 1e-12)

	c, _ := New([]float64{1, 2}, 10, KindVoltage)
	if _, err := Average(a, c); err == nil {
		t.Fatal("Average with mismatched length: error = nil")
	}
	if _, err := Average(); err == nil {
		t.Fatal("Average() error = nil")
	}
}

func TestGroupAverage(t *testing.T) {
	var sigs []*Signal
	for i := range 4 {
		s, _ := New(testutil.DC(float64(i), 5), 10, KindVoltage)
		sigs = append(sigs, s)
	}

	groups, err := GroupAverage(sigs, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	testutil.RequireSliceNearlyEqual(t, groups[0].Values(), testutil.DC(0.5, 5), 1e-12)
	testutil.RequireSliceNearlyEqual(t, groups[1].Values(), testutil.DC(2.5, 5), 1e-12)

	if _, err := GroupAverage(sigs, 3); err == nil {
		t.Fatal("GroupAverage(size=3) error = nil")
	}
}

func TestGradient(t *testing.T) {
	got := Gradient([]float64{1, 2, 4, 7, 11})
	testutil.RequireSliceNearlyEqual(t, got, []float64{1, 1.5, 2.5, 3.5, 4}, 1e-12)

	if got := Gradient([]float64{3}); len(got) != 1 || got[0] != 0 {
		t.Fatalf("Gradient single = %v, want [0]", got)
	}
}
