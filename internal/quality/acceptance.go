package quality

import (
	"fmt"

	"github.com/banshee-data/absorbance.report/internal/quant"
	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// Acceptance is the outcome of the calibration gate. Curve is set whenever
// the fit itself succeeded, even if the gate rejected it.
type Acceptance struct {
	OK          bool
	Issues      []string
	Curve       *spectro.CalibrationCurve
	WeightsUsed bool
}

// Err returns nil for an accepted curve, else an ErrCalibrationRejected error
// carrying the issues.
func (a Acceptance) Err() error {
	if a.OK {
		return nil
	}
	return spectro.Rejected("accept calibration", a.Issues)
}

// bandTolerance absorbs −log10 rounding at the absorbance band edges.
const bandTolerance = 1e-9

// AcceptCalibration fits the standards and applies the acceptance gate: at
// least MinStandards points, every standard absorbance within
// [AbsorbanceMin, AbsorbanceMax], and R² at least R2Min. Each violation
// becomes one issue; OK is true only with no issues.
func AcceptCalibration(points []spectro.StandardsPoint, opts quant.FitOptions, lim Limits) Acceptance {
	var acc Acceptance
	if len(points) < lim.MinStandards {
		acc.Issues = append(acc.Issues, fmt.Sprintf("too few points (%d < %d)", len(points), lim.MinStandards))
	}
	for _, p := range points {
		if p.AMean < lim.AbsorbanceMin-bandTolerance || p.AMean > lim.AbsorbanceMax+bandTolerance {
			acc.Issues = append(acc.Issues, fmt.Sprintf("standard absorbance out of range [%g, %g] at C=%g (A=%.4f)",
				lim.AbsorbanceMin, lim.AbsorbanceMax, p.C, p.AMean))
		}
	}

	fit, err := quant.FitCurve(points, opts)
	if err != nil {
		acc.Issues = append(acc.Issues, "curve fit failed: "+err.Error())
		return acc
	}
	curve := fit.Curve
	acc.Curve = &curve
	acc.WeightsUsed = fit.WeightsUsed
	if curve.R2 == nil || *curve.R2 < lim.R2Min {
		r2 := 0.0
		if curve.R2 != nil {
			r2 = *curve.R2
		}
		acc.Issues = append(acc.Issues, fmt.Sprintf("R² below %g (%.4f)", lim.R2Min, r2))
	}
	acc.OK = len(acc.Issues) == 0
	return acc
}
