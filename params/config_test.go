package params

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-ephys/protocol"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ephys.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, protocol.DefaultConfig(), cfg)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		env         map[string]string
		wantErr     string
		validateCfg func(*testing.T, protocol.Config)
	}{
		{
			name: "iv stimulus retimes derived windows",
			file: "iv:\n  start: 0.2\n  stop: 1.0\n",
			validateCfg: func(t *testing.T, cfg protocol.Config) {
				assert.InDelta(t, 0.2, cfg.IV.Start, 1e-12)
				assert.InDelta(t, 1.0, cfg.IV.Stop, 1e-12)
				assert.InDelta(t, 0.19, cfg.IV.BaselineStop, 1e-12)
				assert.InDelta(t, 0.21, cfg.IV.SagPeakStart, 1e-12)
				assert.InDelta(t, 0.7, cfg.IV.SagSSStart, 1e-12)
				assert.InDelta(t, 0.99, cfg.IV.SagSSStop, 1e-12)
				assert.InDelta(t, 0.20025, cfg.IV.FitStart, 1e-12)
			},
		},
		{
			name: "explicit window wins over retiming",
			file: "iv:\n  start: 0.2\n  stop: 1.0\n  sag_ss_start: 0.5\n",
			validateCfg: func(t *testing.T, cfg protocol.Config) {
				assert.InDelta(t, 0.5, cfg.IV.SagSSStart, 1e-12)
				assert.InDelta(t, 0.99, cfg.IV.SagSSStop, 1e-12)
			},
		},
		{
			name: "only stop keeps default start",
			file: "resistance:\n  stop: 0.5\n",
			validateCfg: func(t *testing.T, cfg protocol.Config) {
				assert.InDelta(t, 0.2, cfg.Resistance.Start, 1e-12)
				assert.InDelta(t, 0.21, cfg.Resistance.FitStart, 1e-12)
				assert.InDelta(t, 0.49, cfg.Resistance.FitStop, 1e-12)
			},
		},
		{
			name: "file leaves other sections at defaults",
			file: "sag:\n  average_count: 2\nahp:\n  valid_combos:\n    - {count: 5, frequency: 50}\n    - {count: 10, frequency: 100}\n",
			validateCfg: func(t *testing.T, cfg protocol.Config) {
				assert.Equal(t, 2, cfg.Sag.AverageCount)
				assert.Equal(t, protocol.DefaultSagConfig().CurrentSteps, cfg.Sag.CurrentSteps)
				assert.Equal(t, []protocol.Combo{{Count: 5, Frequency: 50}, {Count: 10, Frequency: 100}}, cfg.AHP.ValidCombos)
				assert.Equal(t, protocol.DefaultIVConfig(), cfg.IV)
			},
		},
		{
			name: "environment overrides file",
			file: "sag:\n  average_count: 2\n",
			env: map[string]string{
				"EPHYS_SAG_AVERAGE_COUNT": "4",
				"EPHYS_SAG_CURRENT_STEPS": "-100,-50,0",
				"EPHYS_IV_SPIKE_MIN_PEAK": "-0.02",
				"EPHYS_SCALE_OHM":         "1e9",
			},
			validateCfg: func(t *testing.T, cfg protocol.Config) {
				assert.Equal(t, 4, cfg.Sag.AverageCount)
				assert.Equal(t, []float64{-100, -50, 0}, cfg.Sag.CurrentSteps)
				assert.InDelta(t, -0.02, cfg.IV.Spike.MinPeak, 1e-12)
				assert.InDelta(t, 1e9, cfg.Scale.Ohm, 1)
			},
		},
		{
			name:    "stop before start",
			file:    "iv:\n  stop: 0.05\n",
			wantErr: "config validation failed",
		},
		{
			name: "initial guess from file and env",
			file: "iv:\n  fit_order: 1\n  fit_initial_guess: [1, 0.01, -0.07]\n",
			env:  map[string]string{"EPHYS_TIME_CONSTANT_INITIAL_GUESS": "1,0.01,1,0.001,-0.07"},
			validateCfg: func(t *testing.T, cfg protocol.Config) {
				assert.Equal(t, []float64{1, 0.01, -0.07}, cfg.IV.FitInitialGuess)
				assert.Equal(t, []float64{1, 0.01, 1, 0.001, -0.07}, cfg.TimeConstant.InitialGuess)
			},
		},
		{
			name:    "initial guess too short for order",
			file:    "resistance:\n  fit_order: 2\n  fit_initial_guess: [1, 0.01, -0.07]\n",
			wantErr: "config validation failed",
		},
		{
			name:    "invalid combo",
			file:    "ahp:\n  valid_combos:\n    - {count: 0, frequency: 10}\n",
			wantErr: "config validation failed",
		},
		{
			name:    "unknown key",
			file:    "iv:\n  strat: 0.2\n",
			wantErr: "failed to load config from file",
		},
		{
			name:    "malformed yaml",
			file:    "iv: [\n",
			wantErr: "failed to load config from file",
		},
		{
			name:    "unparsable env",
			env:     map[string]string{"EPHYS_RAMP_FIT_SPAN": "wide"},
			wantErr: "failed to load config from env",
		},
		{
			name:    "invalid env value",
			env:     map[string]string{"EPHYS_FIT_MAX_EVALUATIONS": "0"},
			wantErr: "config validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}

			cfg, err := Load(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestValidateReportsFields(t *testing.T) {
	cfg := protocol.DefaultConfig()
	cfg.Resistance.CurrentStep = 0
	cfg.Ramp.Boundaries = []float64{0.1}
	cfg.TimeConstant.InitialGuess = []float64{1, 0.02}

	err := Validate(cfg)
	require.Error(t, err)

	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	assert.ElementsMatch(t, []string{"CurrentStep", "Boundaries", "InitialGuess"}, fields)
}

func TestAdjustStepUnits(t *testing.T) {
	tests := []struct {
		name        string
		iv, sag     []float64
		step        float64
		wantIV      []float64
		wantSag     []float64
		wantStep    float64
		wantChanged bool
	}{
		{
			name:   "picoampere tables untouched",
			iv:     []float64{-100, -50, 0, 50, 100},
			sag:    []float64{-200, 0},
			step:   -20,
			wantIV: []float64{-100, -50, 0, 50, 100}, wantSag: []float64{-200, 0}, wantStep: -20,
		},
		{
			name:   "femtoampere iv table",
			iv:     []float64{-100000, -50000, 0, 50000, 2500},
			sag:    []float64{-200, 0},
			step:   -20,
			wantIV: []float64{-100, -50, 0, 50, 2}, wantSag: []float64{-200, 0}, wantStep: -20,
			wantChanged: true,
		},
		{
			name:   "mixed iv table untouched",
			iv:     []float64{-100000, -50},
			sag:    []float64{-2500, -200000},
			step:   -20000,
			wantIV: []float64{-100000, -50}, wantSag: []float64{-3, -200}, wantStep: -20,
			wantChanged: true,
		},
		{
			name:   "all zero table untouched",
			iv:     []float64{0, 0},
			sag:    nil,
			step:   1000,
			wantIV: []float64{0, 0}, wantSag: nil, wantStep: 1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := protocol.DefaultConfig()
			cfg.IV.CurrentSteps = tt.iv
			cfg.Sag.CurrentSteps = tt.sag
			cfg.Resistance.CurrentStep = tt.step

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			changed := AdjustStepUnits(&cfg, logger)

			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantIV, cfg.IV.CurrentSteps)
			assert.Equal(t, tt.wantSag, cfg.Sag.CurrentSteps)
			assert.Equal(t, tt.wantStep, cfg.Resistance.CurrentStep)
			if changed {
				assert.Contains(t, buf.String(), "level=WARN")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}
