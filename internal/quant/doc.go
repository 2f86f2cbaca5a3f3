// Package quant implements the numerical core of the absorbance engine:
// wavelength window resolution, burst resampling, MAD-based robust
// aggregation, pseudo double-beam absorbance, OLS/WLS calibration fitting
// and first-order uncertainty propagation.
//
// Every function here is pure. Degenerate input is reported as an error
// classified with spectro.ErrComputation.
package quant
