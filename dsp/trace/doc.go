// Package trace provides the sampled-signal abstraction consumed by the
// electrophysiology analyzers.
//
// A [Signal] is a uniformly sampled, unit-tagged trace (voltage in volts or
// current in amperes) with an implicit time origin at sample 0. Every
// consumer maps time to samples with the same rule, sample = round(t * rate),
// and every slice of a signal is a half-open sample range [start, stop).
//
// Signals are never mutated in place. Accessors return copies, and derived
// signals (averages, differences) are new values.
package trace
