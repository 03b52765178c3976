package firing

import (
	"math"

	"github.com/cwbudde/algo-ephys/measure/spike"
	"github.com/cwbudde/algo-ephys/stats/nanstat"
)

// DefaultMinSpikesForAdaptation is the evoked spike count below which
// adaptation is not measured.
const DefaultMinSpikesForAdaptation = 4

// Adaptation summarizes spike-frequency adaptation over an evoked train,
// computed on the intervals and peaks of every spike after the first.
type Adaptation struct {
	// Valid is false when the train had too few spikes; all fields are
	// then NaN.
	Valid bool

	FreqLin float64 // slope of ISI against spike index
	FreqLog float64 // slope of log(ISI) against spike index
	FreqDiv float64 // last ISI over second ISI
	PeakLin float64
	PeakLog float64
	PeakDiv float64
	// Fano is std(ISI)/mean(ISI).
	Fano float64
}

// MeasureAdaptation returns the adaptation of evoked, or an invalid result
// when fewer than minSpikes are given.
func MeasureAdaptation(evoked []spike.Spike, minSpikes int) Adaptation {
	nan := math.NaN()
	a := Adaptation{
		FreqLin: nan, FreqLog: nan, FreqDiv: nan,
		PeakLin: nan, PeakLog: nan, PeakDiv: nan,
		Fano: nan,
	}
	if len(evoked) < max(minSpikes, 2) {
		return a
	}

	rest := evoked[1:]
	idx := make([]float64, len(rest))
	isi := make([]float64, len(rest))
	logISI := make([]float64, len(rest))
	peak := make([]float64, len(rest))
	logPeak := make([]float64, len(rest))
	for i, s := range rest {
		idx[i] = float64(i)
		isi[i] = s.ISI
		logISI[i] = logOrNaN(s.ISI)
		peak[i] = s.Peak
		logPeak[i] = logOrNaN(s.Peak)
	}

	last := evoked[len(evoked)-1]
	a.Valid = true
	a.FreqLin = nanstat.Slope(idx, isi)
	a.FreqLog = nanstat.Slope(idx, logISI)
	a.FreqDiv = last.ISI / evoked[1].ISI
	a.Fano = nanstat.Std(isi) / nanstat.Mean(isi)
	a.PeakLin = nanstat.Slope(idx, peak)
	a.PeakLog = nanstat.Slope(idx, logPeak)
	a.PeakDiv = last.Peak / evoked[1].Peak
	return a
}

func logOrNaN(v float64) float64 {
	if !(v > 0) {
		return math.NaN()
	}
	return math.Log(v)
}
