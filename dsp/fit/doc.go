// Package fit provides least-squares curve fitting for membrane responses.
//
// Three models are supported:
//
//	linear:             f(x) = a*x + b
//	single exponential: f(x) = a*exp(-(x-o)/tc) + c
//	double exponential: f(x) = a*exp(-(x-o)/tc1) + c*exp(-(x-o)/tc2) + e
//
// Exponential fits recenter x so that o is the first sample of the fit
// window; [Result.Eval] applies the same origin. Amplitudes and offsets are
// linear in the model and are solved exactly for every candidate set of time
// constants (variable projection), while the time constants themselves are
// refined by a Levenberg-Marquardt iteration in log space.
//
// A fit never panics or returns an error to the caller. Failure is reported
// through [Result.Success] and [Result.Err], with NaN derived outputs.
package fit
