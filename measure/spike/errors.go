package spike

import "errors"

var (
	// ErrNoThreshold reports that neither derivative criterion crossed.
	ErrNoThreshold = errors.New("spike: threshold not detected")
	// ErrNoHalfWidth reports a missing falling half-amplitude crossing.
	ErrNoHalfWidth = errors.New("spike: half-width not detected")
	// ErrNoAHPWindow reports an empty span for the AHP search.
	ErrNoAHPWindow = errors.New("spike: empty AHP search window")
)
