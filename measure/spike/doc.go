// Package spike detects action potentials in voltage traces and measures
// their shape.
//
// Detection is a height-, prominence- and distance-gated local maximum
// search ([FindPeaks]). For every accepted peak an [Extractor] measures
// threshold, amplitude, half-width and rise/fall slopes within a local
// window around the peak. Candidates too close to the trace edges to carry
// a full window are discarded.
//
// Spike construction reads only its own window, so large candidate sets are
// built concurrently by a bounded worker pool; the output order is the
// candidate order regardless of scheduling.
//
// Stimulus-dependent attributes (evoked and rebound flags, inter-spike
// intervals, afterhyperpolarization) are assigned in a second pass by
// [Annotate].
package spike
