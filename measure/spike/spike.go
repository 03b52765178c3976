package spike

import (
	"log/slog"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/algo-ephys/dsp/trace"
)

// DefaultParallelThreshold is the candidate count above which spikes are
// measured concurrently.
const DefaultParallelThreshold = 100

// Spike is one detected action potential. Positions are sample indices into
// the analyzed trace; -1 marks an undefined position.
type Spike struct {
	Position int
	Time     float64
	Peak     float64

	ThresholdPosition int
	Threshold         float64
	Amplitude         float64

	HalfWidth      float64
	HalfWidthStart int
	HalfWidthStop  int

	MaxRiseSlope    float64 // V/s
	MaxRisePosition int
	MaxFallSlope    float64 // V/s
	MaxFallPosition int

	// Complete is false when threshold or half-width detection failed; Err
	// then holds the reason.
	Complete bool
	Err      error

	// Set by Annotate.
	Evoked      bool
	Rebound     bool
	ISI         float64
	AHP         float64
	AHPPosition int
}

// Config holds detection and measurement parameters. Voltages are in volts,
// times in seconds.
type Config struct {
	MinPeak       float64 `yaml:"min_peak" envconfig:"MIN_PEAK"`
	MinProminence float64 `yaml:"min_prominence" envconfig:"MIN_PROMINENCE" validate:"gte=0"`
	MinInterval   float64 `yaml:"min_interval" envconfig:"MIN_INTERVAL" validate:"gte=0"`
	PreTime       float64 `yaml:"pre_time" envconfig:"PRE_TIME" validate:"gt=0"`
	PostTime      float64 `yaml:"post_time" envconfig:"POST_TIME" validate:"gt=0"`
	// DerivativeThreshold is compared against sample-differenced first and
	// second derivatives of the spike window (volts per sample).
	DerivativeThreshold float64 `yaml:"derivative_threshold" envconfig:"DERIVATIVE_THRESHOLD"`
	// LowestThreshold reports the earlier of the two threshold estimates.
	// Otherwise the second-derivative estimate is used, falling back to the
	// first-derivative one.
	LowestThreshold bool `yaml:"lowest_threshold" envconfig:"LOWEST_THRESHOLD"`
}

// DefaultConfig returns detection settings for cortical neurons recorded in
// current clamp.
func DefaultConfig() Config {
	return Config{
		MinPeak:             -0.01,
		MinProminence:       0.02,
		MinInterval:         0.005,
		PreTime:             0.005,
		PostTime:            0.01,
		DerivativeThreshold: 0.0002,
		LowestThreshold:     true,
	}
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithWorkers bounds the number of concurrent spike measurements. Values
// below 1 select runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(e *Extractor) {
		if n < 1 {
			n = runtime.GOMAXPROCS(0)
		}
		e.workers = n
	}
}

// WithParallelThreshold sets the candidate count above which measurement is
// parallelized.
func WithParallelThreshold(n int) Option {
	return func(e *Extractor) { e.parallelThreshold = n }
}

// WithLogger sets the logger for per-spike diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// Extractor detects spikes and measures their features.
type Extractor struct {
	cfg               Config
	workers           int
	parallelThreshold int
	logger            *slog.Logger
}

// NewExtractor returns an Extractor for cfg.
func NewExtractor(cfg Config, opts ...Option) *Extractor {
	e := &Extractor{
		cfg:               cfg,
		workers:           runtime.GOMAXPROCS(0),
		parallelThreshold: DefaultParallelThreshold,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the detection settings.
func (e *Extractor) Config() Config { return e.cfg }

// Candidates returns the peak positions that pass detection and carry a
// full analysis window.
func (e *Extractor) Candidates(v *trace.Signal) []int {
	sr := v.SampleRate()
	peaks := FindPeaks(v.Values(), PeakCriteria{
		Height:     e.cfg.MinPeak,
		Prominence: e.cfg.MinProminence,
		Distance:   MinDistance(e.cfg.MinInterval, sr),
	})

	lo := e.cfg.PreTime * sr
	hi := float64(v.Len()) - e.cfg.PostTime*sr
	kept := peaks[:0]
	for _, p := range peaks {
		if float64(p) > lo && float64(p) < hi {
			kept = append(kept, p)
		}
	}
	return kept
}

// Extract detects and measures all spikes in v, ordered by position.
func (e *Extractor) Extract(v *trace.Signal) []Spike {
	peaks := e.Candidates(v)
	spikes := make([]Spike, len(peaks))
	if len(peaks) == 0 {
		return spikes
	}

	data := v.Values()
	if len(peaks) > e.parallelThreshold && e.workers > 1 {
		var g errgroup.Group
		g.SetLimit(e.workers)
		for i, p := range peaks {
			g.Go(func() error {
				spikes[i] = e.measure(v, data, p)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, p := range peaks {
			spikes[i] = e.measure(v, data, p)
		}
	}

	for i := range spikes {
		if !spikes[i].Complete {
			e.logger.Debug("incomplete spike",
				slog.Int("position", spikes[i].Position),
				slog.String("reason", spikes[i].Err.Error()))
		}
	}

	return spikes
}

// measure computes the features of the spike peaking at sample p. It reads
// only data and never writes shared state.
func (e *Extractor) measure(v *trace.Signal, data []float64, p int) Spike {
	sr := v.SampleRate()
	nan := math.NaN()
	s := Spike{
		Position:          p,
		Time:              v.Time(p),
		Peak:              data[p],
		ThresholdPosition: -1,
		Threshold:         nan,
		Amplitude:         nan,
		HalfWidth:         nan,
		HalfWidthStart:    -1,
		HalfWidthStop:     -1,
		MaxRiseSlope:      nan,
		MaxRisePosition:   -1,
		MaxFallSlope:      nan,
		MaxFallPosition:   -1,
		ISI:               nan,
		AHP:               nan,
		AHPPosition:       -1,
	}

	start, stop := v.Bounds(s.Time-e.cfg.PreTime, s.Time+e.cfg.PostTime)
	w := data[start:stop]
	if len(w) < 3 {
		s.Err = ErrNoThreshold
		return s
	}

	d1 := trace.Gradient(w)
	rise, fall := floats.MaxIdx(d1), floats.MinIdx(d1)
	s.MaxRiseSlope, s.MaxRisePosition = d1[rise]*sr, start+rise
	s.MaxFallSlope, s.MaxFallPosition = d1[fall]*sr, start+fall

	idx := e.pickThreshold(
		firstCrossing(trace.Gradient(d1), e.cfg.DerivativeThreshold),
		firstCrossing(d1, e.cfg.DerivativeThreshold),
	)
	if idx < 0 {
		s.Err = ErrNoThreshold
		return s
	}

	s.ThresholdPosition = start + idx
	s.Threshold = data[s.ThresholdPosition]
	s.Amplitude = s.Peak - s.Threshold

	half := s.Peak - s.Amplitude/2
	c0 := firstCrossing(w, half)
	c1 := -1
	if c0 >= 0 {
		if c := firstCrossing(w[c0+1:], half); c >= 0 {
			c1 = c0 + 1 + c
		}
	}
	if c1 < 0 {
		s.Err = ErrNoHalfWidth
		return s
	}

	s.HalfWidthStart, s.HalfWidthStop = start+c0, start+c1
	s.HalfWidth = float64(c1-c0) / sr
	s.Complete = true
	return s
}

func (e *Extractor) pickThreshold(second, first int) int {
	if e.cfg.LowestThreshold {
		switch {
		case second < 0:
			return first
		case first < 0:
			return second
		default:
			return min(first, second)
		}
	}
	if second >= 0 {
		return second
	}
	return first
}

// firstCrossing returns the first index i where x[i]-level and x[i+1]-level
// differ in sign bit, or -1.
func firstCrossing(x []float64, level float64) int {
	for i := 0; i+1 < len(x); i++ {
		if math.Signbit(x[i]-level) != math.Signbit(x[i+1]-level) {
			return i
		}
	}
	return -1
}
