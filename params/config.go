package params

import (
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/cwbudde/algo-ephys/dsp/fit"
	"github.com/cwbudde/algo-ephys/protocol"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EPHYS"

// window holds the optional stimulus edges of one protocol section.
type window struct {
	Start *float64 `yaml:"start"`
	Stop  *float64 `yaml:"stop"`
}

// windowHint is decoded ahead of the full file to find retimed stimuli.
type windowHint struct {
	IV         window `yaml:"iv"`
	Resistance window `yaml:"resistance"`
}

// Load returns the configuration for path. An empty path skips the file.
// Environment variables take precedence over the file, which takes
// precedence over the defaults.
func Load(path string) (protocol.Config, error) {
	cfg := protocol.DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := Decode(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Decode overlays the YAML document data onto cfg. Stimulus edges are
// applied first so that windows derived from them follow, then the whole
// document is decoded so explicit window values win. Unknown keys are
// rejected.
func Decode(data []byte, cfg *protocol.Config) error {
	var hint windowHint
	if err := yaml.Unmarshal(data, &hint); err != nil {
		return err
	}

	if hint.IV.Start != nil || hint.IV.Stop != nil {
		start, stop := hint.IV.edges(cfg.IV.Start, cfg.IV.Stop)
		cfg.IV = cfg.IV.Retime(start, stop)
	}
	if hint.Resistance.Start != nil || hint.Resistance.Stop != nil {
		start, stop := hint.Resistance.edges(cfg.Resistance.Start, cfg.Resistance.Stop)
		cfg.Resistance = cfg.Resistance.Retime(start, stop)
	}

	return yaml.UnmarshalStrict(data, cfg)
}

func (w window) edges(start, stop float64) (float64, float64) {
	if w.Start != nil {
		start = *w.Start
	}
	if w.Stop != nil {
		stop = *w.Stop
	}
	return start, stop
}

// Validate checks cfg against its validate struct tags and checks that
// every configured initial guess fits its fit order.
func Validate(cfg protocol.Config) error {
	return newValidator().Struct(cfg)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		c := sl.Current().Interface().(protocol.IVConfig)
		reportGuess(sl, "FitInitialGuess", c.FitOrder, c.FitInitialGuess)
	}, protocol.IVConfig{})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		c := sl.Current().Interface().(protocol.ResistanceConfig)
		reportGuess(sl, "FitInitialGuess", c.FitOrder, c.FitInitialGuess)
	}, protocol.ResistanceConfig{})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		c := sl.Current().Interface().(protocol.TimeConstantConfig)
		reportGuess(sl, "InitialGuess", c.Order, c.InitialGuess)
	}, protocol.TimeConstantConfig{})
	return v
}

// reportGuess flags a non-empty guess whose length differs from the
// parameter count of order.
func reportGuess(sl validator.StructLevel, field string, order fit.Order, guess []float64) {
	if len(guess) == 0 || len(guess) == order.NumParams() {
		return
	}
	sl.ReportError(guess, field, field, "guess_len", order.String())
}

// AdjustStepUnits rescales current-step tables that were written in fA
// instead of pA. The IV and sag tables are divided by 1000 when every
// non-zero entry is at least 2000 in magnitude, the input resistance step
// when it exceeds 1000. Values are floor divided. Each rescale is logged.
// It reports whether anything changed.
func AdjustStepUnits(cfg *protocol.Config, logger *slog.Logger) bool {
	if logger == nil {
		logger = slog.Default()
	}
	changed := false

	if rescaleTable(cfg.IV.CurrentSteps) {
		logger.Warn("rescaling current steps from fA to pA", slog.String("protocol", protocol.KindIV.String()))
		changed = true
	}
	if rescaleTable(cfg.Sag.CurrentSteps) {
		logger.Warn("rescaling current steps from fA to pA", slog.String("protocol", protocol.KindSag.String()))
		changed = true
	}
	if math.Abs(cfg.Resistance.CurrentStep) > 1000 {
		logger.Warn("rescaling current step from fA to pA",
			slog.String("protocol", protocol.KindResistance.String()),
			slog.Float64("step", cfg.Resistance.CurrentStep))
		cfg.Resistance.CurrentStep = math.Floor(cfg.Resistance.CurrentStep / 1000)
		changed = true
	}

	return changed
}

// rescaleTable divides steps in place when all its non-zero entries look
// like fA. A table without non-zero entries is left alone.
func rescaleTable(steps []float64) bool {
	nonZero := 0
	for _, s := range steps {
		if s == 0 {
			continue
		}
		if math.Abs(s) < 2000 {
			return false
		}
		nonZero++
	}
	if nonZero == 0 {
		return false
	}
	for i, s := range steps {
		steps[i] = math.Floor(s / 1000)
	}
	return true
}
