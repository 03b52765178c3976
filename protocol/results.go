package protocol

import (
	"maps"
	"slices"
)

// Results is the metric mapping of one recording. Most metrics are
// scalars; classification labels such as the firing pattern are kept
// apart.
type Results struct {
	Values map[string]float64
	Labels map[string]string
}

func newResults() Results {
	return Results{Values: map[string]float64{}, Labels: map[string]string{}}
}

// Len returns the number of metrics.
func (r Results) Len() int { return len(r.Values) + len(r.Labels) }

// Keys returns every metric name, sorted.
func (r Results) Keys() []string {
	keys := slices.Collect(maps.Keys(r.Values))
	keys = slices.AppendSeq(keys, maps.Keys(r.Labels))
	slices.Sort(keys)
	return keys
}

// Value returns the scalar metric named key.
func (r Results) Value(key string) (float64, bool) {
	v, ok := r.Values[key]
	return v, ok
}

// Label returns the label metric named key.
func (r Results) Label(key string) (string, bool) {
	v, ok := r.Labels[key]
	return v, ok
}

func (r Results) set(key string, v float64) { r.Values[key] = v }
func (r Results) setLabel(key, v string) { r.Labels[key] = v }

// Schema maps metric names to human-readable descriptions.
type Schema map[string]string

// Keys returns the metric names, sorted.
func (s Schema) Keys() []string {
	keys := slices.Collect(maps.Keys(s))
	slices.Sort(keys)
	return keys
}
