package fit_test

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-ephys/dsp/fit"
)

func ExampleFitter_Fit() {
	const sampleRate = 10000
	x := make([]float64, 2000)
	y := make([]float64, 2000)
	for i := range x {
		x[i] = float64(i) / sampleRate
		y[i] = -0.01*math.Exp(-x[i]/0.025) - 0.07
	}

	res := fit.NewFitter(fit.OrderSingle).Fit(x, y)
	fmt.Printf("success=%v tc=%.1f ms\n", res.Success, res.TC*1e3)
	// Output: success=true tc=25.0 ms
}
