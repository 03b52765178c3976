// Package spectrum provides power spectral density estimation for
// impedance and resonance analysis.
//
// [Periodogram] computes a one-sided density estimate (units^2/Hz) with
// optional mean removal and tapering. The FFT is delegated to algo-fft and
// runs over exactly the input length, so the bins are spaced
// sampleRate/len(x) apart.
package spectrum
