// Package window generates taper coefficients for spectral estimation.
//
// Only the tapers used by the electrophysiology periodogram are provided:
// rectangular (boxcar), Hann, Hamming and Blackman. All follow the
// symmetric definition unless [WithPeriodic] is given.
package window
