package testutil

import (
	"math"
	"testing"
)

func TestRequireSliceNearlyEqualNaN(t *testing.T) {
	RequireSliceNearlyEqual(t, []float64{math.NaN(), 1}, []float64{math.NaN(), 1 + 1e-9}, 1e-6)
}

func TestRequireRelative(t *testing.T) {
	RequireRelative(t, "x", 1.01, 1, 0.02)
	RequireNearlyEqual(t, "y", -2.0005, -2, 1e-3)
}
