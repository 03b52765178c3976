package trace

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// Kind tags the physical quantity carried by a [Signal].
type Kind int

const (
	// KindVoltage marks a membrane potential trace in volts.
	KindVoltage Kind = iota
	// KindCurrent marks an injected current trace in amperes.
	KindCurrent
)

// String returns the quantity name.
func (k Kind) String() string {
	switch k {
	case KindVoltage:
		return "voltage"
	case KindCurrent:
		return "current"
	default:
		return "unknown"
	}
}

// Signal is an immutable uniformly sampled trace.
type Signal struct {
	data []float64
	rate float64
	kind Kind
}

// New returns a Signal holding a copy of data sampled at sampleRate Hz.
func New(data []float64, sampleRate float64, kind Kind) (*Signal, error) {
	if err := validateRate(sampleRate); err != nil {
		return nil, err
	}

	samples := make([]float64, len(data))
	copy(samples, data)

	return &Signal{data: samples, rate: sampleRate, kind: kind}, nil
}

// Len returns the number of samples.
func (s *Signal) Len() int { return len(s.data) }

// SampleRate returns the sample rate in Hz.
func (s *Signal) SampleRate() float64 { return s.rate }

// Kind returns the quantity kind.
func (s *Signal) Kind() Kind { return s.kind }

// Duration returns the trace length in seconds.
func (s *Signal) Duration() float64 { return float64(len(s.data)) / s.rate }

// Index maps a time in seconds to a sample index using round(t * rate).
// The result is not clamped.
func (s *Signal) Index(t float64) int {
	return int(math.Round(t * s.rate))
}

// Time returns the time in seconds of sample i.
func (s *Signal) Time(i int) float64 {
	return float64(i) / s.rate
}

// At returns sample i, or NaN when i is out of range.
func (s *Signal) At(i int) float64 {
	if i < 0 || i >= len(s.data) {
		return math.NaN()
	}
	return s.data[i]
}

// Values returns a copy of all samples.
func (s *Signal) Values() []float64 {
	out := make([]float64, len(s.data))
	copy(out, s.data)
	return out
}

// Slice returns a copy of samples in [start, stop). Bounds are clamped to
// the trace; an inverted range yields an empty slice.
func (s *Signal) Slice(start, stop int) []float64 {
	start, stop = s.clamp(start, stop)
	out := make([]float64, stop-start)
	copy(out, s.data[start:stop])
	return out
}

// Between returns a copy of samples in [Index(t0), Index(t1)).
func (s *Signal) Between(t0, t1 float64) []float64 {
	return s.Slice(s.Index(t0), s.Index(t1))
}

// Times returns the sample times of [Index(t0), Index(t1)), matching
// the samples returned by Between.
func (s *Signal) Times(t0, t1 float64) []float64 {
	start, stop := s.clamp(s.Index(t0), s.Index(t1))
	out := make([]float64, stop-start)
	for i := range out {
		out[i] = s.Time(start + i)
	}
	return out
}

// Bounds returns the clamped sample range that Between(t0, t1) covers.
func (s *Signal) Bounds(t0, t1 float64) (start, stop int) {
	return s.clamp(s.Index(t0), s.Index(t1))
}

// Sub returns s - o as a new signal.
func (s *Signal) Sub(o *Signal) (*Signal, error) {
	if err := compatible(s, o); err != nil {
		return nil, err
	}

	out := make([]float64, len(s.data))
	for i := range out {
		out[i] = s.data[i] - o.data[i]
	}

	return &Signal{data: out, rate: s.rate, kind: s.kind}, nil
}

func (s *Signal) clamp(start, stop int) (int, int) {
	n := len(s.data)
	start = min(max(start, 0), n)
	stop = min(max(stop, 0), n)
	if stop < start {
		stop = start
	}
	return start, stop
}

// Average returns the sample-wise mean of sigs.
func Average(sigs ...*Signal) (*Signal, error) {
	if len(sigs) == 0 {
		return nil, errEmptySet
	}

	for _, sig := range sigs[1:] {
		if err := compatible(sigs[0], sig); err != nil {
			return nil, err
		}
	}

	sum := make([]float64, sigs[0].Len())
	for _, sig := range sigs {
		vecmath.AddBlockInPlace(sum, sig.data)
	}

	out := make([]float64, len(sum))
	vecmath.ScaleBlock(out, sum, 1/float64(len(sigs)))

	return &Signal{data: out, rate: sigs[0].rate, kind: sigs[0].kind}, nil
}

// GroupAverage averages consecutive groups of size sweeps. The number of
// signals must be a multiple of size.
func GroupAverage(sigs []*Signal, size int) ([]*Signal, error) {
	if size <= 0 || len(sigs)%size != 0 {
		return nil, errGroupSize(len(sigs), size)
	}

	out := make([]*Signal, 0, len(sigs)/size)
	for i := 0; i < len(sigs); i += size {
		avg, err := Average(sigs[i : i+size]...)
		if err != nil {
			return nil, err
		}
		out = append(out, avg)
	}

	return out, nil
}

// Gradient returns the sample-spaced derivative of x using central
// differences in the interior and one-sided differences at the edges.
func Gradient(x []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n < 2 {
		return out
	}

	out[0] = x[1] - x[0]
	out[n-1] = x[n-1] - x[n-2]
	for i := 1; i < n-1; i++ {
		out[i] = (x[i+1] - x[i-1]) / 2
	}

	return out
}
