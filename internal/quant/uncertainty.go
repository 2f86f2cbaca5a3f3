package quant

import (
	"math"

	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// z95 is the two-sided 95% normal quantile.
const z95 = 1.96

// Concentration is an inverted curve reading with its uncertainty.
type Concentration struct {
	C    float64
	SD   float64
	CI95 spectro.Interval
}

// InvertCurve converts an absorbance reading to concentration, C = (A−b)/m,
// and propagates first-order variance treating A, m and b as independent:
//
//	Var(C) = (1/m)²·Var(A) + ((A−b)/m²)²·Var(m) + (1/m)²·Var(b)
//
// The m/b covariance is ignored; this slightly misstates the interval for
// readings far from the standards' centroid. Missing s_m or s_b count as 0.
func InvertCurve(aMean, aSD float64, curve *spectro.CalibrationCurve) (Concentration, error) {
	if !curve.Valid() {
		return Concentration{}, spectro.Errorf(spectro.ErrComputation, "invert curve", "invalid calibration curve")
	}
	if !finite(aMean) || !finite(aSD) {
		return Concentration{}, spectro.Errorf(spectro.ErrComputation, "invert curve", "non-finite absorbance")
	}
	m, b := curve.M, curve.B
	c := (aMean - b) / m

	var sm, sb float64
	if curve.SM != nil {
		sm = *curve.SM
	}
	if curve.SB != nil {
		sb = *curve.SB
	}
	inv := 1 / m
	dm := (aMean - b) / (m * m)
	variance := inv*inv*aSD*aSD + dm*dm*sm*sm + inv*inv*sb*sb
	sd := math.Sqrt(variance)

	return Concentration{
		C:    c,
		SD:   sd,
		CI95: spectro.Interval{Low: c - z95*sd, High: c + z95*sd},
	}, nil
}
