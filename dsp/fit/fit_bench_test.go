package fit

import (
	"testing"

	"github.com/cwbudde/algo-ephys/internal/testutil"
)

func BenchmarkDoubleExponential(b *testing.B) {
	x, y := testutil.ExpDecay(-0.01, 0.02, -0.07, 0.1, 20000, 4000)
	f := NewFitter(OrderDouble)
	b.ResetTimer()
	for range b.N {
		_ = f.Fit(x, y)
	}
}
