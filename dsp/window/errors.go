package window

import "errors"

var (
	errEmptyCoeffs = errors.New("window coefficients must not be empty")
	errZeroPower   = errors.New("window power sum is zero")
)
