// Package firing classifies evoked spike trains and measures spike-frequency
// adaptation.
//
// Firing-pattern classification is heuristic. It lives behind the
// [Classifier] interface so that the default [DecisionTable] can be
// replaced without touching the analyzers that report its label.
package firing
