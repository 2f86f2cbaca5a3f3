package analysis

import (
	"github.com/banshee-data/absorbance.report/internal/quant"
	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// MeasureStandards turns one burst per standard into standards points, each
// measured against the session dark and reference. concentrations[i] belongs
// to bursts[i].
//
// A zero concentration standard is a calibration point like any other and
// is also the blank whose noise sets LOD/LOQ. Without one the reference
// burst stands in. A nil sigma means no usable blank noise could be measured.
func (e *Engine) MeasureStandards(p spectro.AnalysisParams, profile *spectro.DeviceProfile, dark, ref spectro.Matrix, bursts []spectro.Matrix, concentrations []float64) ([]spectro.StandardsPoint, *float64, error) {
	const op = "measure standards"
	if profile == nil {
		return nil, nil, spectro.Errorf(spectro.ErrDeviceProfileMissing, op, "no device profile")
	}
	if len(bursts) != len(concentrations) {
		return nil, nil, spectro.Errorf(spectro.ErrValidation, op, "%d bursts for %d concentrations", len(bursts), len(concentrations))
	}
	if len(bursts) == 0 {
		return nil, nil, spectro.Errorf(spectro.ErrComputation, op, "no standards captured")
	}

	d, err := e.Resample(dark)
	if err != nil {
		return nil, nil, err
	}
	r, err := e.Resample(ref)
	if err != nil {
		return nil, nil, err
	}
	window := e.Window(p, profile, r.Points())

	var points []spectro.StandardsPoint
	blank := r
	for i, b := range bursts {
		s, err := e.Resample(b)
		if err != nil {
			return nil, nil, err
		}
		if concentrations[i] == 0 {
			blank = s
		}
		abs, err := quant.ComputeAbsorbance(quant.Bursts{Dark: d, RefBefore: r, Sample: s}, window, e.robust)
		if err != nil {
			return nil, nil, err
		}
		points = append(points, spectro.StandardsPoint{
			C:     concentrations[i],
			AMean: abs.AMean,
			ASD:   spectro.Float(abs.ASD),
		})
	}

	sigma, err := quant.BlankSigma(d, r, blank, window, e.robust)
	if err != nil {
		return points, nil, nil
	}
	return points, &sigma, nil
}

// FitStandards fits a curve to the points with the engine's heuristics.
func (e *Engine) FitStandards(points []spectro.StandardsPoint, sigmaBlank *float64) (quant.Fit, error) {
	opts := e.fit
	opts.SigmaBlank = sigmaBlank
	return quant.FitCurve(points, opts)
}
