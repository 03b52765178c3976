package spike

import (
	"math"

	"github.com/cwbudde/algo-ephys/dsp/trace"
	"github.com/cwbudde/algo-ephys/stats/nanstat"
)

// Stimulus describes the current step a sweep was recorded under.
type Stimulus struct {
	Start, Stop float64 // s
	// Current is the injected step amplitude in pA.
	Current float64
	// EvokedThreshold is the minimum current in pA for a spike inside the
	// step to count as evoked.
	EvokedThreshold float64
	// MaxAHPDelay caps the AHP search span after each evoked spike, in s.
	MaxAHPDelay float64
}

// Annotate returns a copy of spikes with the evoked and rebound flags set
// and, for evoked spikes, the inter-spike interval and afterhyperpolarization
// measured on v.
//
// A spike is evoked when its peak lies strictly inside the step and the
// current is at least the evoked threshold, and rebound when it follows the
// step offset of a hyperpolarizing current. The first evoked interval is
// measured from step onset. The AHP of an evoked spike is the minimum
// voltage between its peak and the next evoked peak, or the step offset for
// the last one, at most MaxAHPDelay later.
func Annotate(v *trace.Signal, spikes []Spike, stim Stimulus) []Spike {
	out := make([]Spike, len(spikes))
	copy(out, spikes)

	var evoked []int
	for i := range out {
		s := &out[i]
		s.Evoked = s.Time > stim.Start && s.Time < stim.Stop && stim.Current >= stim.EvokedThreshold
		s.Rebound = s.Time > stim.Stop && stim.Current < 0
		s.ISI, s.AHP, s.AHPPosition = math.NaN(), math.NaN(), -1
		if s.Evoked {
			evoked = append(evoked, i)
		}
	}

	for k, i := range evoked {
		s := &out[i]
		end := stim.Stop
		if k == 0 {
			s.ISI = s.Time - stim.Start
		} else {
			s.ISI = s.Time - out[evoked[k-1]].Time
		}
		if k+1 < len(evoked) {
			end = out[evoked[k+1]].Time
		}
		if stim.MaxAHPDelay > 0 {
			end = math.Min(end, s.Time+stim.MaxAHPDelay)
		}

		start, _ := v.Bounds(s.Time, end)
		seg := v.Between(s.Time, end)
		if idx := nanstat.ArgMin(seg); idx >= 0 {
			s.AHP = seg[idx]
			s.AHPPosition = start + idx
		}
	}

	return out
}

// Evoked returns the evoked spikes in order.
func Evoked(spikes []Spike) []Spike {
	var out []Spike
	for _, s := range spikes {
		if s.Evoked {
			out = append(out, s)
		}
	}
	return out
}

// Rebound returns the rebound spikes in order.
func Rebound(spikes []Spike) []Spike {
	var out []Spike
	for _, s := range spikes {
		if s.Rebound {
			out = append(out, s)
		}
	}
	return out
}

// AHPBaseline estimates the membrane potential the AHP is measured against:
// the mean voltage in [start, stop) with every spike's [t-pre, t+post]
// window masked out.
func AHPBaseline(v *trace.Signal, spikes []Spike, start, stop, pre, post float64) float64 {
	lo, hi := v.Bounds(start, stop)
	seg := v.Slice(lo, hi)
	for _, s := range spikes {
		a, b := v.Bounds(s.Time-pre, s.Time+post)
		for i := max(a, lo); i < min(b, hi); i++ {
			seg[i-lo] = math.NaN()
		}
	}
	return nanstat.Mean(seg)
}

// Mean returns the NaN-tolerant mean of field over spikes.
func Mean(spikes []Spike, field func(Spike) float64) float64 {
	vals := make([]float64, len(spikes))
	for i, s := range spikes {
		vals[i] = field(s)
	}
	return nanstat.Mean(vals)
}
