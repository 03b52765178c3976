package window

import (
	"math"
	"testing"
)

func TestGenerateHannSymmetric(t *testing.T) {
	w := Generate(TypeHann, 5)
	want := []float64{0, 0.5, 1, 0.5, 0}
	for i := range w {
		if math.Abs(w[i]-want[i]) > 1e-12 {
			t.Fatalf("w[%d] = %v, want %v", i, w[i], want[i])
		}
	}
}

func TestGeneratePeriodic(t *testing.T) {
	w := Generate(TypeHann, 4, WithPeriodic())
	want := []float64{0, 0.5, 1, 0.5}
	for i := range w {
		if math.Abs(w[i]-want[i]) > 1e-12 {
			t.Fatalf("w[%d] = %v, want %v", i, w[i], want[i])
		}
	}
}

func TestRectangularIsOnes(t *testing.T) {
	buf := []float64{1, 2, 3}
	Apply(TypeRectangular, buf)
	if buf[0] != 1 || buf[1] != 2 || buf[2] != 3 {
		t.Fatalf("Apply(rectangular) changed buffer: %v", buf)
	}
	sum, err := PowerSum(Generate(TypeRectangular, 8))
	if err != nil || sum != 8 {
		t.Fatalf("PowerSum = %v, %v; want 8", sum, err)
	}
}

func TestApplyHann(t *testing.T) {
	buf := []float64{2, 2, 2, 2, 2}
	Apply(TypeHann, buf)
	if buf[0] != 0 || math.Abs(buf[2]-2) > 1e-12 {
		t.Fatalf("Apply(hann) = %v", buf)
	}
}

func TestPowerSumErrors(t *testing.T) {
	if _, err := PowerSum(nil); err == nil {
		t.Fatal("PowerSum(nil) error = nil")
	}
	if _, err := PowerSum([]float64{0, 0}); err == nil {
		t.Fatal("PowerSum(zeros) error = nil")
	}
}

func TestParseType(t *testing.T) {
	for in, want := range map[string]Type{"boxcar": TypeRectangular, "Hann": TypeHann, "blackman": TypeBlackman} {
		got, err := ParseType(in)
		if err != nil || got != want {
			t.Fatalf("ParseType(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseType("kaiser"); err == nil {
		t.Fatal("ParseType(kaiser) error = nil")
	}
}
