package fit

import "errors"

var (
	// ErrLengthMismatch reports x and y windows of different lengths.
	ErrLengthMismatch = errors.New("fit: x and y must have the same length")
	// ErrInsufficientData reports fewer samples than model parameters.
	ErrInsufficientData = errors.New("fit: not enough samples for model")
	// ErrNonFinite reports NaN or Inf in the input window.
	ErrNonFinite = errors.New("fit: input contains non-finite values")
	// ErrInitialGuess reports a missing or non-positive time constant guess.
	ErrInitialGuess = errors.New("fit: invalid initial guess")
	// ErrDegenerate reports a model that cannot be evaluated, e.g. constant x.
	ErrDegenerate = errors.New("fit: degenerate problem")
	// ErrNotConverged reports an exhausted evaluation budget.
	ErrNotConverged = errors.New("fit: did not converge within evaluation budget")
)
