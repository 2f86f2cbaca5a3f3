package quant

import (
	"math"

	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// ResolveWindow returns the column indices in [0, n) whose mapped wavelength
// lies within windowNm/2 of lambdaNm. When no column qualifies (degenerate
// mapping, or lambda outside the sensor range) it falls back to the single
// column closest to lambdaNm, so the result is non-empty whenever n > 0.
// A non-positive windowNm uses spectro.DefaultWindowNm.
func ResolveWindow(n int, poly spectro.Polynomial, lambdaNm, windowNm float64) []int {
	if n <= 0 {
		return nil
	}
	if !(windowNm > 0) {
		windowNm = spectro.DefaultWindowNm
	}
	half := windowNm / 2

	var idx []int
	best := 0
	bestDist := math.Inf(1)
	for x := 0; x < n; x++ {
		d := math.Abs(poly.At(float64(x)) - lambdaNm)
		if d <= half {
			idx = append(idx, x)
		}
		if d < bestDist {
			bestDist = d
			best = x
		}
	}
	if len(idx) == 0 {
		return []int{best}
	}
	return idx
}

// RescalePolynomial re-expresses a column→wavelength polynomial defined over
// fromCols columns for a burst resampled to toCols points. Column x′ of the
// resampled burst sits at x = s·x′ with s = (fromCols−1)/(toCols−1), so the
// new coefficients are (a0, a1·s, a2·s²).
func RescalePolynomial(poly spectro.Polynomial, fromCols, toCols int) spectro.Polynomial {
	if fromCols < 2 || toCols < 2 || fromCols == toCols {
		return poly
	}
	s := float64(fromCols-1) / float64(toCols-1)
	return spectro.Polynomial{
		A0: poly.A0,
		A1: poly.A1 * s,
		A2: poly.A2 * s * s,
	}
}
