// Package params loads the analysis configuration.
//
// Load starts from protocol.DefaultConfig, overlays a YAML file and then
// EPHYS_* environment variables, and validates the result against the
// struct tags of the protocol configuration types. Keys follow the yaml
// tags; environment names join the envconfig tags of the enclosing
// structs with underscores:
//
//	EPHYS_IV_START=0.2
//	EPHYS_IV_SPIKE_MIN_PEAK=-0.02
//	EPHYS_SAG_CURRENT_STEPS=-200,-150,-100
//
// Changing iv.start, iv.stop, resistance.start or resistance.stop in the
// file moves the windows derived from them, unless the file sets those
// windows explicitly.
package params
