package testutil

import (
	"math"
	"math/rand"
)

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}

// Chirp generates a linear frequency sweep from f0 to f1 Hz over length samples.
func Chirp(f0, f1, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	duration := float64(length) / sampleRate
	k := (f1 - f0) / duration
	for i := range out {
		t := float64(i) / sampleRate
		out[i] = amplitude * math.Sin(2*math.Pi*(f0*t+0.5*k*t*t))
	}
	return out
}

// ExpDecay samples a*exp(-(t-o)/tc) + c at sampleRate for length samples,
// starting at time o.
func ExpDecay(a, tc, c, o, sampleRate float64, length int) (x, y []float64) {
	x = make([]float64, length)
	y = make([]float64, length)
	for i := range x {
		x[i] = o + float64(i)/sampleRate
		y[i] = a*math.Exp(-(x[i]-o)/tc) + c
	}
	return x, y
}

// AddSpike adds a triangular action potential to buf. The waveform rises
// linearly over rise seconds, peaks at peakTime with the given amplitude
// above the underlying trace, and falls back linearly over fall seconds.
// The peak lands exactly on sample round(peakTime*sampleRate).
func AddSpike(buf []float64, sampleRate, peakTime, amplitude, rise, fall float64) {
	p := int(math.Round(peakTime * sampleRate))
	riseN := max(int(math.Round(rise*sampleRate)), 1)
	fallN := max(int(math.Round(fall*sampleRate)), 1)

	for k := 0; k <= riseN; k++ {
		if i := p - riseN + k; i >= 0 && i < len(buf) {
			buf[i] += amplitude * float64(k) / float64(riseN)
		}
	}
	for k := 1; k <= fallN; k++ {
		if i := p + k; i >= 0 && i < len(buf) {
			buf[i] += amplitude * (1 - float64(k)/float64(fallN))
		}
	}
}

// Step describes a passive membrane response to a current step.
//
// During the step the voltage relaxes from Rest by Deflection with a fast
// and a slow exponential component; Sag adds a slower opposite-going
// relaxation. After the step the trace decays back to Rest with TauFast.
type Step struct {
	Rest         float64
	Start, Stop  float64
	Deflection   float64
	TauFast      float64
	TauSlow      float64
	FastFraction float64
	Sag          float64
	TauSag       float64
}

// Trace renders the step response.
func (s Step) Trace(sampleRate float64, length int) []float64 {
	out := make([]float64, length)
	at := func(tau float64) float64 {
		v := s.Rest + s.Deflection*(s.FastFraction*(1-math.Exp(-tau/s.TauFast))+
			(1-s.FastFraction)*(1-math.Exp(-tau/s.TauSlow)))
		if s.TauSag > 0 {
			v += s.Sag * (1 - math.Exp(-tau/s.TauSag))
		}
		return v
	}

	end := at(s.Stop - s.Start)
	for i := range out {
		t := float64(i) / sampleRate
		switch {
		case t < s.Start:
			out[i] = s.Rest
		case t < s.Stop:
			out[i] = at(t - s.Start)
		default:
			out[i] = s.Rest + (end-s.Rest)*math.Exp(-(t-s.Stop)/s.TauFast)
		}
	}
	return out
}
