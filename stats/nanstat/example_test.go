package nanstat_test

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-ephys/stats/nanstat"
)

func ExampleMean() {
	// The second sweep was disabled and contributes NaN.
	resistances := []float64{120e6, math.NaN(), 140e6}
	fmt.Printf("%.0f MOhm\n", nanstat.Mean(resistances)/1e6)
	// Output: 130 MOhm
}
