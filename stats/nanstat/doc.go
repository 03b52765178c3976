// Package nanstat provides NaN-tolerant summary statistics.
//
// Every function ignores NaN entries, so a missing or invalid value
// contributes nothing instead of poisoning the result. A reduction over a
// set with no valid entry returns NaN (or -1 for index functions).
package nanstat
