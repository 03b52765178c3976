package protocol

import "errors"

var (
	// ErrConfig reports a configuration or input layout that cannot be
	// analyzed. It is returned by New before any sweep is processed.
	ErrConfig = errors.New("protocol: invalid configuration")

	// ErrUnknownKind reports a Kind outside the supported set.
	ErrUnknownKind = errors.New("protocol: unknown kind")

	// ErrNoSpikes marks a frame whose analysis needed at least one spike.
	ErrNoSpikes = errors.New("protocol: no spikes detected")

	// ErrSpikeCount marks an AHP frame whose spike count is not a valid
	// combination.
	ErrSpikeCount = errors.New("protocol: unexpected spike count")

	// ErrSpikeFrequency marks an AHP frame whose train frequency is not a
	// valid combination.
	ErrSpikeFrequency = errors.New("protocol: unexpected spike frequency")

	// ErrEmptyBand marks a resonance frame without spectral bins in the
	// configured band.
	ErrEmptyBand = errors.New("protocol: no frequency bins in band")
)
