package trace

import (
	"errors"
	"fmt"
)

var (
	errEmptySet       = errors.New("signal set must not be empty")
	errLengthMismatch = errors.New("signals must have the same length")
	errRateMismatch   = errors.New("signals must have the same sample rate")
	errKindMismatch   = errors.New("signals must have the same kind")
)

func validateRate(rate float64) error {
	if !(rate > 0) {
		return fmt.Errorf("sample rate must be > 0: %f", rate)
	}
	return nil
}

func compatible(a, b *Signal) error {
	switch {
	case a.Len() != b.Len():
		return fmt.Errorf("%w: %d vs %d", errLengthMismatch, a.Len(), b.Len())
	case a.rate != b.rate:
		return fmt.Errorf("%w: %g vs %g", errRateMismatch, a.rate, b.rate)
	case a.kind != b.kind:
		return fmt.Errorf("%w: %s vs %s", errKindMismatch, a.kind, b.kind)
	}
	return nil
}

func errGroupSize(n, size int) error {
	return fmt.Errorf("group size %d must be > 0 and divide signal count %d", size, n)
}
