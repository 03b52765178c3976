package fit

import (
	"fmt"
	"strings"
)

// Order selects the fitted model.
type Order int

const (
	// OrderLinear fits a*x + b.
	OrderLinear Order = iota
	// OrderSingle fits a single exponential.
	OrderSingle
	// OrderDouble fits a sum of two exponentials.
	OrderDouble
)

// DefaultMaxEvaluations bounds residual evaluations per fit.
const DefaultMaxEvaluations = 10000

// String returns the model name.
func (o Order) String() string {
	switch o {
	case OrderLinear:
		return "linear"
	case OrderSingle:
		return "single-exponential"
	case OrderDouble:
		return "double-exponential"
	default:
		return fmt.Sprintf("order(%d)", int(o))
	}
}

// ParseOrder accepts 0/1/2 or the model names returned by String.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "linear":
		return OrderLinear, nil
	case "1", "single", "single-exponential":
		return OrderSingle, nil
	case "2", "double", "double-exponential":
		return OrderDouble, nil
	}
	return 0, fmt.Errorf("fit: unknown order %q", s)
}

// NumParams returns the length of the parameter vector of o, and so of
// its initial guess.
func (o Order) NumParams() int { return o.numParams() }

func (o Order) numParams() int {
	switch o {
	case OrderSingle:
		return 3
	case OrderDouble:
		return 5
	default:
		return 2
	}
}

// DefaultInitialGuess returns the starting parameters tuned for membrane
// voltage responses in volts and seconds.
//
//	linear: [a, b]
//	single: [a, tc, c]
//	double: [a, tc1, c, tc2, e]
func DefaultInitialGuess(o Order) []float64 {
	switch o {
	case OrderSingle:
		return []float64{1.0, 0.02, -0.07}
	case OrderDouble:
		return []float64{1.0, 0.02, 1.0, 0.0015, -0.07}
	default:
		return []float64{1.0, 0.0}
	}
}

// Config holds fitter parameters.
type Config struct {
	Order          Order
	Weighted       bool
	MaxEvaluations int
	InitialGuess   []float64
}

// DefaultConfig returns the default configuration for o.
func DefaultConfig(o Order) Config {
	return Config{
		Order:          o,
		Weighted:       true,
		MaxEvaluations: DefaultMaxEvaluations,
		InitialGuess:   DefaultInitialGuess(o),
	}
}

// Option mutates a Config.
type Option func(*Config)

// WithWeighted selects the weighted (true) or arithmetic (false) average of
// the two time constants as the reported tc of a double-exponential fit.
func WithWeighted(weighted bool) Option {
	return func(c *Config) { c.Weighted = weighted }
}

// WithMaxEvaluations sets the residual evaluation budget.
func WithMaxEvaluations(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxEvaluations = n
		}
	}
}

// WithInitialGuess overrides the starting parameters. The vector layout is
// the one documented on DefaultInitialGuess.
func WithInitialGuess(p ...float64) Option {
	return func(c *Config) {
		if len(p) > 0 {
			c.InitialGuess = append([]float64(nil), p...)
		}
	}
}
