package spike

import (
	"math"
	"sort"
)

// PeakCriteria gates the local maxima accepted by FindPeaks.
type PeakCriteria struct {
	// Height is the minimum peak value. Use math.Inf(-1) to disable.
	Height float64
	// Prominence is the minimum vertical drop from the peak to the higher
	// of its two surrounding bases. Zero disables the check.
	Prominence float64
	// Distance is the minimum spacing in samples between accepted peaks;
	// lower peaks inside the spacing of a higher one are removed. Values
	// below 1 disable the check.
	Distance int
}

// FindPeaks returns the sample indices of the local maxima of x that pass
// c, in ascending order. Flat maxima report their middle sample.
func FindPeaks(x []float64, c PeakCriteria) []int {
	peaks := localMaxima(x)

	if !math.IsInf(c.Height, -1) && !math.IsNaN(c.Height) {
		kept := peaks[:0]
		for _, p := range peaks {
			if x[p] >= c.Height {
				kept = append(kept, p)
			}
		}
		peaks = kept
	}

	if c.Distance > 1 && len(peaks) > 1 {
		peaks = selectByDistance(x, peaks, c.Distance)
	}

	if c.Prominence > 0 {
		kept := peaks[:0]
		for _, p := range peaks {
			if Prominence(x, p) >= c.Prominence {
				kept = append(kept, p)
			}
		}
		peaks = kept
	}

	return peaks
}

// MinDistance converts a refractory interval in seconds to the peak
// spacing in samples at sampleRate, rounding up.
func MinDistance(interval, sampleRate float64) int {
	return int(math.Ceil(interval * sampleRate))
}

func localMaxima(x []float64) []int {
	var peaks []int
	n := len(x)
	for i := 1; i < n-1; {
		if !(x[i-1] < x[i]) {
			i++
			continue
		}
		ahead := i + 1
		for ahead < n-1 && x[ahead] == x[i] {
			ahead++
		}
		if x[ahead] < x[i] {
			peaks = append(peaks, (i+ahead-1)/2)
			i = ahead
			continue
		}
		i++
	}
	return peaks
}

// selectByDistance keeps the highest peaks and removes every lower peak
// closer than distance samples to a kept one.
func selectByDistance(x []float64, peaks []int, distance int) []int {
	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return x[peaks[order[a]]] < x[peaks[order[b]]]
	})

	keep := make([]bool, len(peaks))
	for i := range keep {
		keep[i] = true
	}

	for i := len(order) - 1; i >= 0; i-- {
		j := order[i]
		if !keep[j] {
			continue
		}
		for k := j - 1; k >= 0 && peaks[j]-peaks[k] < distance; k-- {
			keep[k] = false
		}
		for k := j + 1; k < len(peaks) && peaks[k]-peaks[j] < distance; k++ {
			keep[k] = false
		}
	}

	out := make([]int, 0, len(peaks))
	for i, p := range peaks {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

// Prominence returns the prominence of the peak at index p: its height above
// the higher of the lowest points on either side before a higher sample or
// the trace edge is reached.
func Prominence(x []float64, p int) float64 {
	leftMin := x[p]
	for i := p; i >= 0 && x[i] <= x[p]; i-- {
		leftMin = math.Min(leftMin, x[i])
	}

	rightMin := x[p]
	for i := p; i < len(x) && x[i] <= x[p]; i++ {
		rightMin = math.Min(rightMin, x[i])
	}

	return x[p] - math.Max(leftMin, rightMin)
}
