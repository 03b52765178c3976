package nanstat

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Valid returns the non-NaN entries of x in order.
func Valid(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Count returns the number of non-NaN entries.
func Count(x []float64) int {
	n := 0
	for _, v := range x {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Mean returns the mean of the non-NaN entries.
func Mean(x []float64) float64 {
	// Kahan summation for numerical stability.
	var sum, c float64
	n := 0
	for _, v := range x {
		if math.IsNaN(v) {
			continue
		}
		y := v - c
		t := sum + y
		c = (t - sum) - y
		sum = t
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// Min returns the smallest non-NaN entry.
func Min(x []float64) float64 {
	if i := ArgMin(x); i >= 0 {
		return x[i]
	}
	return math.NaN()
}

// Max returns the largest non-NaN entry.
func Max(x []float64) float64 {
	if i := ArgMax(x); i >= 0 {
		return x[i]
	}
	return math.NaN()
}

// ArgMin returns the index of the first smallest non-NaN entry, or -1.
func ArgMin(x []float64) int {
	idx := -1
	for i, v := range x {
		if math.IsNaN(v) {
			continue
		}
		if idx < 0 || v < x[idx] {
			idx = i
		}
	}
	return idx
}

// ArgMax returns the index of the first largest non-NaN entry, or -1.
func ArgMax(x []float64) int {
	idx := -1
	for i, v := range x {
		if math.IsNaN(v) {
			continue
		}
		if idx < 0 || v > x[idx] {
			idx = i
		}
	}
	return idx
}

// Std returns the population standard deviation of the non-NaN entries.
func Std(x []float64) float64 {
	v := Valid(x)
	if len(v) == 0 {
		return math.NaN()
	}
	_, std := stat.PopMeanStdDev(v, nil)
	return std
}

// SEM returns the standard error of the mean (sample deviation, n-1) of
// the non-NaN entries. Fewer than two entries yield NaN.
func SEM(x []float64) float64 {
	v := Valid(x)
	if len(v) < 2 {
		return math.NaN()
	}
	return stat.StdErr(stat.StdDev(v, nil), float64(len(v)))
}

// Slope returns the least-squares slope of y against x over the pairs where
// both are non-NaN. Fewer than two pairs, or constant x, yield NaN.
func Slope(x, y []float64) float64 {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range min(len(x), len(y)) {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 || stat.Variance(xs, nil) == 0 {
		return math.NaN()
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	return beta
}
