package protocol

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/cwbudde/algo-ephys/dsp/fit"
	"github.com/cwbudde/algo-ephys/dsp/trace"
	"github.com/cwbudde/algo-ephys/measure/firing"
	"github.com/cwbudde/algo-ephys/measure/spike"
)

// Protocol is the analysis of one recording under one stimulation
// protocol. It owns its frames.
type Protocol interface {
	Kind() Kind
	// Frames returns the analyzed sweeps in acquisition order.
	Frames() []Frame
	// Process re-analyzes every frame with its stored configuration.
	Process()
	// Results aggregates the enabled frames.
	Results() Results
	// Provides returns the metric schema of the configuration.
	Provides() Schema
}

// Frame is one analyzed sweep.
type Frame interface {
	Index() int
	// Enabled reports whether the frame takes part in aggregation.
	Enabled() bool
	SetEnabled(bool)
	// Process recomputes the frame. Repeated calls yield identical state.
	Process()
}

type frameBase struct {
	idx      int
	disabled bool
}

func (f *frameBase) Index() int { return f.idx }
func (f *frameBase) Enabled() bool { return !f.disabled }
func (f *frameBase) SetEnabled(on bool) { f.disabled = !on }

// Input carries the decoded sweeps of one recording.
type Input struct {
	// Voltage holds one trace per sweep. Ramp recordings may omit it.
	Voltage []*trace.Signal
	// Current holds the recorded or reference stimulus for resonance
	// (one trace) and ramp (one trace per sweep) recordings.
	Current []*trace.Signal
	// Frequency and APCount describe the expected AHP spike train when
	// known, in Hz and spikes. Zero means unknown.
	Frequency float64
	APCount   int
}

// Option configures New.
type Option func(*env)

// WithLogger sets the logger for warnings and per-spike diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *env) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithWorkers bounds concurrent spike measurement within a sweep.
func WithWorkers(n int) Option {
	return func(e *env) {
		if n < 1 {
			n = runtime.GOMAXPROCS(0)
		}
		e.workers = n
	}
}

// WithParallelThreshold sets the candidate count above which spikes are
// measured concurrently.
func WithParallelThreshold(n int) Option {
	return func(e *env) { e.parallelThreshold = n }
}

// WithClassifier replaces the firing-pattern classifier.
func WithClassifier(c firing.Classifier) Option {
	return func(e *env) {
		if c != nil {
			e.classifier = c
		}
	}
}

// env is the read-only analysis context shared by the frames of one
// protocol.
type env struct {
	cfg               Config
	logger            *slog.Logger
	workers           int
	parallelThreshold int
	classifier        firing.Classifier
}

func newEnv(kind Kind, cfg Config, opts []Option) *env {
	e := &env{
		cfg:               cfg,
		logger:            slog.Default(),
		workers:           runtime.GOMAXPROCS(0),
		parallelThreshold: spike.DefaultParallelThreshold,
		classifier:        firing.DefaultDecisionTable(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(slog.String("protocol", kind.String()))
	return e
}

func (e *env) extractor(sc spike.Config) *spike.Extractor {
	return spike.NewExtractor(sc,
		spike.WithWorkers(e.workers),
		spike.WithParallelThreshold(e.parallelThreshold),
		spike.WithLogger(e.logger))
}

func (e *env) fitter(order fit.Order, weighted bool, guess []float64) *fit.Fitter {
	return fit.NewFitter(order,
		fit.WithWeighted(weighted),
		fit.WithInitialGuess(guess...),
		fit.WithMaxEvaluations(e.cfg.FitMaxEvaluations))
}

// New analyzes in under the configuration snapshot cfg. It fails with an
// error wrapping ErrConfig when the input layout does not match what kind
// requires; every sweep is processed before it returns.
func New(kind Kind, in Input, cfg Config, opts ...Option) (Protocol, error) {
	var (
		p   Protocol
		err error
	)
	switch kind {
	case KindIV:
		p, err = NewIV(in, cfg, opts...)
	case KindAHP:
		p, err = NewAHP(in, cfg, opts...)
	case KindResistance:
		p, err = NewResistance(in, cfg, opts...)
	case KindSag:
		p, err = NewSag(in, cfg, opts...)
	case KindResonance:
		p, err = NewResonance(in, cfg, opts...)
	case KindRamp:
		p, err = NewRamp(in, cfg, opts...)
	case KindRheobase:
		p, err = NewRheobase(in, cfg, opts...)
	case KindTimeConstant:
		p, err = NewTimeConstant(in, cfg, opts...)
	case KindSpontaneous:
		p, err = NewSpontaneous(in, cfg, opts...)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
	// A typed nil must not escape as a non-nil Protocol.
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Provides returns the metric schema of kind under cfg. It does not need
// any recorded data.
func Provides(kind Kind, cfg Config) (Schema, error) {
	switch kind {
	case KindIV:
		return ivSchema(cfg), nil
	case KindAHP:
		return ahpSchema(cfg), nil
	case KindResistance:
		return resistanceSchema(), nil
	case KindSag:
		return sagSchema(cfg), nil
	case KindResonance:
		return resonanceSchema(cfg), nil
	case KindRamp:
		return rampSchema(), nil
	case KindRheobase:
		return rheobaseSchema(), nil
	case KindTimeConstant:
		return timeConstantSchema(), nil
	case KindSpontaneous:
		return spontaneousSchema(), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
}

func requireVoltage(kind Kind, in Input) error {
	if len(in.Voltage) == 0 {
		return fmt.Errorf("%w: %s needs at least one voltage sweep", ErrConfig, kind)
	}
	for i, v := range in.Voltage {
		if v == nil {
			return fmt.Errorf("%w: %s voltage sweep %d is nil", ErrConfig, kind, i)
		}
	}
	return nil
}

func frames[F Frame](fs []F) []Frame {
	out := make([]Frame, len(fs))
	for i, f := range fs {
		out[i] = f
	}
	return out
}
