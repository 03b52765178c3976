package firing

import (
	"math"

	"github.com/cwbudde/algo-ephys/measure/spike"
	"github.com/cwbudde/algo-ephys/stats/nanstat"
)

// Pattern is a firing-pattern label.
type Pattern string

const (
	// PatternNone is reported for non-depolarizing steps without evoked spikes.
	PatternNone           Pattern = ""
	PatternUndetermined   Pattern = "Undetermined"
	PatternSilent         Pattern = "silent"
	PatternSingle         Pattern = "single"
	PatternDelayed        Pattern = "delayed"
	PatternTransient      Pattern = "transient"
	PatternGap            Pattern = "gap"
	PatternTonicIrregular Pattern = "tonic_irregular"
	PatternTonic          Pattern = "tonic"
)

// Classifier assigns a firing pattern to the evoked spikes of one sweep.
type Classifier interface {
	Classify(evoked []spike.Spike, stim spike.Stimulus) Pattern
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(evoked []spike.Spike, stim spike.Stimulus) Pattern

// Classify calls f.
func (f ClassifierFunc) Classify(evoked []spike.Spike, stim spike.Stimulus) Pattern {
	return f(evoked, stim)
}

// DecisionTable is the ordered rule table after Tadros et al. (2012) and
// Graham et al. (2004). Latencies are measured from step onset in seconds.
type DecisionTable struct {
	SingleMaxSpikes   int
	SingleMaxLatency  float64
	DelayedMinSpikes  int
	DelayedMinLatency float64
	TransientMinCount int
	TransientMaxLat   float64
	GapMinLatency     float64
	GapMaxFrequency   float64 // Hz over the first 8 spikes
	TonicSEMLimit     float64 // s, SEM of the first 3 intervals
}

// DefaultDecisionTable returns the published thresholds.
func DefaultDecisionTable() DecisionTable {
	return DecisionTable{
		SingleMaxSpikes:   2,
		SingleMaxLatency:  0.125,
		DelayedMinSpikes:  5,
		DelayedMinLatency: 0.1,
		TransientMinCount: 3,
		TransientMaxLat:   1.0,
		GapMinLatency:     0.095,
		GapMaxFrequency:   8.0,
		TonicSEMLimit:     2,
	}
}

// Classify evaluates the rules in order; the first matching row wins.
//
// The silent and delayed rows match without relabeling, so sweeps they
// catch keep the Undetermined (or None) label. Existing datasets were
// produced with this behavior and the labels are compared across them.
func (d DecisionTable) Classify(evoked []spike.Spike, stim spike.Stimulus) Pattern {
	pattern := PatternUndetermined
	if stim.Current <= 0 {
		pattern = PatternNone
	}

	n := len(evoked)
	if n == 0 {
		return pattern
	}

	minLat, maxLat := math.Inf(1), math.Inf(-1)
	for _, s := range evoked {
		lat := s.Time - stim.Start
		minLat = math.Min(minLat, lat)
		maxLat = math.Max(maxLat, lat)
	}

	switch {
	case n <= d.SingleMaxSpikes && maxLat < d.SingleMaxLatency:
		return PatternSingle
	case n >= d.DelayedMinSpikes && minLat > d.DelayedMinLatency:
		return pattern
	case n >= d.TransientMinCount && maxLat < d.TransientMaxLat:
		return PatternTransient
	case n >= d.TransientMinCount && minLat > d.GapMinLatency && frequency(evoked[:min(n, 8)]) < d.GapMaxFrequency:
		return PatternGap
	}

	if n >= d.TransientMinCount {
		sem := intervalSEM(evoked[:min(n, 4)])
		switch {
		case sem > d.TonicSEMLimit:
			return PatternTonicIrregular
		case sem < d.TonicSEMLimit:
			return PatternTonic
		}
	}
	return pattern
}

// frequency returns (n-1)/(t_last-t_first).
func frequency(spikes []spike.Spike) float64 {
	if len(spikes) < 2 {
		return math.NaN()
	}
	return float64(len(spikes)-1) / (spikes[len(spikes)-1].Time - spikes[0].Time)
}

func intervalSEM(spikes []spike.Spike) float64 {
	diffs := make([]float64, 0, len(spikes))
	for i := 1; i < len(spikes); i++ {
		diffs = append(diffs, spikes[i].Time-spikes[i-1].Time)
	}
	return nanstat.SEM(diffs)
}
