package protocol

import (
	"math"
	"slices"

	"github.com/cwbudde/algo-ephys/stats/nanstat"
)

// enabledMean returns the NaN-tolerant mean of value over the enabled
// frames that satisfy keep. A nil keep accepts every enabled frame.
func enabledMean[F Frame](fs []F, keep func(F) bool, value func(F) float64) float64 {
	vals := make([]float64, 0, len(fs))
	for _, f := range fs {
		if f.Enabled() && (keep == nil || keep(f)) {
			vals = append(vals, value(f))
		}
	}
	return nanstat.Mean(vals)
}

// firstEnabled returns the index of the first enabled frame, in acquisition
// order, that satisfies keep, or -1.
func firstEnabled[F Frame](fs []F, keep func(F) bool) int {
	for i, f := range fs {
		if f.Enabled() && (keep == nil || keep(f)) {
			return i
		}
	}
	return -1
}

// maxEnabled returns the index of the enabled frame with the largest key,
// or -1. Ties resolve to the last frame in acquisition order.
func maxEnabled[F Frame](fs []F, keep func(F) bool, key func(F) int) int {
	idx := make([]int, 0, len(fs))
	for i, f := range fs {
		if f.Enabled() && (keep == nil || keep(f)) {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return -1
	}
	slices.SortStableFunc(idx, func(a, b int) int { return key(fs[a]) - key(fs[b]) })
	return idx[len(idx)-1]
}

// closestEnabled returns the index of the enabled frame minimizing
// |value - target|, or -1. Ties resolve to the first frame. Frames whose
// value is NaN are never selected.
func closestEnabled[F Frame](fs []F, target float64, value func(F) float64) int {
	best, dist := -1, 0.0
	for i, f := range fs {
		if !f.Enabled() {
			continue
		}
		d := math.Abs(value(f) - target)
		if math.IsNaN(d) {
			continue
		}
		if best < 0 || d < dist {
			best, dist = i, d
		}
	}
	return best
}
