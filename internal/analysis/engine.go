// Package analysis is the local quantification core: it turns the bursts of
// one acquisition session into a LocalQuantResult without any network or
// storage access.
package analysis

import (
	"fmt"

	"github.com/banshee-data/absorbance.report/internal/config"
	"github.com/banshee-data/absorbance.report/internal/quality"
	"github.com/banshee-data/absorbance.report/internal/quant"
	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// Acquisition holds the bursts captured for one measurement. Every matrix is
// normalised intensity in [0, 1]. Saturated is set by a capturer that detected
// clipping on its own.
type Acquisition struct {
	DarkNoise  spectro.Matrix `json:"dark_noise"`
	WhiteNoise spectro.Matrix `json:"white_noise,omitempty"`
	Ref1       spectro.Matrix `json:"ref1"`
	Sample     spectro.Matrix `json:"sample"`
	Ref2       spectro.Matrix `json:"ref2,omitempty"`
	Saturated  bool           `json:"saturated,omitempty"`
}

// Clone returns a deep copy of the acquisition.
func (a Acquisition) Clone() Acquisition {
	return Acquisition{
		DarkNoise:  a.DarkNoise.Clone(),
		WhiteNoise: a.WhiteNoise.Clone(),
		Ref1:       a.Ref1.Clone(),
		Sample:     a.Sample.Clone(),
		Ref2:       a.Ref2.Clone(),
		Saturated:  a.Saturated,
	}
}

// Input is everything a quantification needs. It is also the request body of
// the remote quantification endpoint.
type Input struct {
	Params        spectro.AnalysisParams    `json:"params"`
	DeviceProfile *spectro.DeviceProfile    `json:"device_profile"`
	Acquisition   Acquisition               `json:"acquisition"`
	Curve         *spectro.CalibrationCurve `json:"curve"`
}

// Output is the local core result plus the intermediate values callers may
// want for diagnostics.
type Output struct {
	Result     spectro.LocalQuantResult
	Absorbance quant.AbsorbanceResult
	Window     []int
	Actions    []string
}

// Engine runs the local pipeline with a fixed set of heuristics.
type Engine struct {
	robust     quant.RobustOptions
	fit        quant.FitOptions
	limits     quality.Limits
	resample   int
	saturation float64
}

// NewEngine builds an engine from cfg; nil uses every default.
func NewEngine(cfg *config.AnalysisConfig) *Engine {
	if cfg == nil {
		cfg = config.EmptyAnalysisConfig()
	}
	return &Engine{
		robust:     quant.RobustOptionsFromConfig(cfg),
		fit:        quant.FitOptionsFromConfig(cfg),
		limits:     quality.LimitsFromConfig(cfg),
		resample:   cfg.GetResamplePoints(),
		saturation: cfg.GetSaturationLevel(),
	}
}

// Limits returns the acceptance thresholds the engine applies.
func (e *Engine) Limits() quality.Limits { return e.limits }

// FitOptions returns the curve fitting heuristics the engine applies.
func (e *Engine) FitOptions() quant.FitOptions { return e.fit }

// Quantify runs resample → window → absorbance → curve inversion → QA for one
// acquisition.
func (e *Engine) Quantify(in Input) (Output, error) {
	const op = "quantify"
	if err := in.Params.Validate(); err != nil {
		return Output{}, err
	}
	if in.DeviceProfile == nil {
		return Output{}, spectro.Errorf(spectro.ErrDeviceProfileMissing, op, "no device profile")
	}
	if !in.Curve.Valid() {
		return Output{}, spectro.Errorf(spectro.ErrComputation, op, "no valid calibration curve")
	}

	acq, err := e.prepare(in.Acquisition)
	if err != nil {
		return Output{}, err
	}
	window := e.Window(in.Params, in.DeviceProfile, acq.Sample.Points())

	abs, err := quant.ComputeAbsorbance(quant.Bursts{
		Dark:      acq.DarkNoise,
		RefBefore: acq.Ref1,
		Sample:    acq.Sample,
		RefAfter:  acq.Ref2,
	}, window, e.robust)
	if err != nil {
		return Output{}, err
	}

	conc, err := quant.InvertCurve(abs.AMean, abs.ASD, in.Curve)
	if err != nil {
		return Output{}, err
	}

	saturated := acq.Saturated || e.saturated(window, acq.WhiteNoise, acq.Ref1, acq.Sample, acq.Ref2)
	var notes []string
	if abs.Invalid > 0 {
		notes = append(notes, fmt.Sprintf("%d sample frames rejected (transmittance outside (0,1])", abs.Invalid))
	}
	if in.Curve.WeightsUsed {
		notes = append(notes, "weighted calibration fit")
	}
	flags := quality.BuildQAFlags(quality.QAInput{
		Saturation: saturated,
		Removed:    abs.Removed,
		C:          conc.C,
		Range:      in.Curve.Range,
		IRefBefore: abs.IRefBefore,
		IRefAfter:  abs.IRefAfter,
		Notes:      notes,
	}, e.limits)
	actions := quality.ActionMessages(quality.ActionInput{
		AMean:        abs.AMean,
		DynamicRange: abs.IRefBefore - abs.IDark,
		Flags:        flags,
	}, e.limits)
	flags.Notes = append(flags.Notes, actions...)

	ci := conc.CI95
	return Output{
		Result: spectro.LocalQuantResult{
			AMean: abs.AMean,
			ASD:   abs.ASD,
			CV:    abs.CV,
			C:     conc.C,
			CI95:  &ci,
			QA:    flags,
			Calib: in.Curve.Clone(),
		},
		Absorbance: abs,
		Window:     window,
		Actions:    actions,
	}, nil
}

// Window resolves the integration columns for a burst of points samples. The
// profile polynomial is defined over the native ROI width and is rescaled
// when the burst was resampled.
func (e *Engine) Window(p spectro.AnalysisParams, profile *spectro.DeviceProfile, points int) []int {
	poly := profile.PixelToWavelength
	if profile.ROI.W > 0 {
		poly = quant.RescalePolynomial(poly, profile.ROI.W, points)
	}
	return quant.ResolveWindow(points, poly, p.LambdaNm, p.Window())
}

// Resample brings a captured burst to the configured point count.
func (e *Engine) Resample(m spectro.Matrix) (spectro.Matrix, error) {
	return quant.Resample(m, e.resample)
}

// prepare resamples every present burst so they share a point count.
func (e *Engine) prepare(a Acquisition) (Acquisition, error) {
	out := Acquisition{Saturated: a.Saturated}
	for _, f := range []struct {
		name string
		src  spectro.Matrix
		dst  *spectro.Matrix
		need bool
	}{
		{"dark_noise", a.DarkNoise, &out.DarkNoise, true},
		{"white_noise", a.WhiteNoise, &out.WhiteNoise, false},
		{"ref1", a.Ref1, &out.Ref1, true},
		{"sample", a.Sample, &out.Sample, true},
		{"ref2", a.Ref2, &out.Ref2, false},
	} {
		if len(f.src) == 0 {
			if f.need {
				return Acquisition{}, spectro.Errorf(spectro.ErrComputation, "quantify", "%s burst is empty", f.name)
			}
			continue
		}
		m, err := e.Resample(f.src)
		if err != nil {
			return Acquisition{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = m
	}
	return out, nil
}

// saturated reports whether any windowed sample of the given bursts reaches
// the saturation level.
func (e *Engine) saturated(window []int, bursts ...spectro.Matrix) bool {
	for _, m := range bursts {
		for _, frame := range m {
			for _, x := range window {
				if x < len(frame) && frame[x] >= e.saturation {
					return true
				}
			}
		}
	}
	return false
}
