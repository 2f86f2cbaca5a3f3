package quant

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/absorbance.report/internal/config"
	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// DefaultHeteroscedasticityCorr is the |correlation| between centred
// concentration and absolute OLS residuals above which the fit switches to
// WLS. Empirical; overridable through config.
const DefaultHeteroscedasticityCorr = 0.3

// sxxEpsilon guards the concentration spread against division by zero.
const sxxEpsilon = 1e-12

// FitOptions tunes FitCurve.
type FitOptions struct {
	HeteroscedasticityCorr float64
	// SigmaBlank is the sd of a blank absorbance series. LOD/LOQ are
	// omitted when nil.
	SigmaBlank *float64
}

// DefaultFitOptions returns the standard fitting heuristics.
func DefaultFitOptions() FitOptions {
	return FitOptions{HeteroscedasticityCorr: DefaultHeteroscedasticityCorr}
}

// FitOptionsFromConfig reads the fitting heuristics from cfg.
func FitOptionsFromConfig(cfg *config.AnalysisConfig) FitOptions {
	if cfg == nil {
		return DefaultFitOptions()
	}
	return FitOptions{HeteroscedasticityCorr: cfg.GetHeteroscedasticityCorr()}
}

// Fit is the outcome of FitCurve.
type Fit struct {
	Curve       spectro.CalibrationCurve
	WeightsUsed bool
	Weights     []float64 // nil for OLS
	Residuals   []float64 // of the final fit, in input order
	// Correlation is the centred-concentration vs |OLS residual| correlation
	// used for the heteroscedasticity decision (NaN when not evaluated).
	Correlation float64
	SDTrend     bool // A_sd increases with concentration
}

// FitCurve fits A = m·C + b to the standards. An OLS fit is computed first;
// if its absolute residuals correlate with concentration beyond the
// threshold, or at least three A_sd values rise with concentration, the
// curve is refitted by WLS with weights 1/A_sd². Points without A_sd get the
// mean of the available ones; with no A_sd at all the OLS fit stands.
func FitCurve(points []spectro.StandardsPoint, opts FitOptions) (Fit, error) {
	const op = "fit curve"
	if len(points) < 2 {
		return Fit{}, spectro.Errorf(spectro.ErrComputation, op, "need at least 2 standards, got %d", len(points))
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		if !finite(p.C) || !finite(p.AMean) {
			return Fit{}, spectro.Errorf(spectro.ErrComputation, op, "standard %d is not finite", i)
		}
		xs[i] = p.C
		ys[i] = p.AMean
	}

	ols, err := linearFit(xs, ys, nil)
	if err != nil {
		return Fit{}, err
	}
	fit := Fit{Curve: ols.curve, Residuals: ols.residuals, Correlation: math.NaN()}

	hetero := false
	if !negligible(ols.residuals, ys) {
		centred := make([]float64, len(xs))
		xbar := stat.Mean(xs, nil)
		absRes := make([]float64, len(xs))
		for i := range xs {
			centred[i] = xs[i] - xbar
			absRes[i] = math.Abs(ols.residuals[i])
		}
		fit.Correlation = stat.Correlation(centred, absRes, nil)
		if finite(fit.Correlation) && math.Abs(fit.Correlation) > opts.HeteroscedasticityCorr {
			hetero = true
		}
	}

	var sdC, sds []float64
	for _, p := range points {
		if p.ASD != nil && finite(*p.ASD) {
			sdC = append(sdC, p.C)
			sds = append(sds, *p.ASD)
		}
	}
	if len(sds) >= 3 && spread(sdC) > sxxEpsilon {
		_, trend := stat.LinearRegression(sdC, sds, nil, false)
		if trend > 1e-12 {
			fit.SDTrend = true
			hetero = true
		}
	}

	if hetero {
		if w := inverseVarianceWeights(points); w != nil {
			wls, err := linearFit(xs, ys, w)
			if err != nil {
				return Fit{}, err
			}
			fit.Curve = wls.curve
			fit.Residuals = wls.residuals
			fit.Weights = w
			fit.WeightsUsed = true
		}
	}
	fit.Curve.WeightsUsed = fit.WeightsUsed

	m := fit.Curve.M
	if !fit.Curve.Valid() {
		return Fit{}, spectro.Errorf(spectro.ErrComputation, op, "degenerate slope %v", m)
	}
	if opts.SigmaBlank != nil && finite(*opts.SigmaBlank) && *opts.SigmaBlank >= 0 && math.Abs(m) > sxxEpsilon {
		lod := 3.3 * *opts.SigmaBlank / math.Abs(m)
		loq := 10 * *opts.SigmaBlank / math.Abs(m)
		fit.Curve.LOD = &lod
		fit.Curve.LOQ = &loq
	}
	return fit, nil
}

type linearResult struct {
	curve     spectro.CalibrationCurve
	residuals []float64
}

// linearFit runs a (weighted) least-squares line fit and derives the fit
// statistics. weights may be nil for OLS.
func linearFit(xs, ys, weights []float64) (linearResult, error) {
	const op = "fit curve"
	n := len(xs)

	sw := float64(n)
	if weights != nil {
		sw = floats.Sum(weights)
	}
	xbar := stat.Mean(xs, weights)
	var sxx float64
	for i, x := range xs {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		sxx += w * (x - xbar) * (x - xbar)
	}
	if sxx < sxxEpsilon {
		return linearResult{}, spectro.Errorf(spectro.ErrComputation, op, "standards have no concentration spread")
	}

	b, m := stat.LinearRegression(xs, ys, weights, false)

	residuals := make([]float64, n)
	var sse float64
	for i := range xs {
		r := ys[i] - (m*xs[i] + b)
		residuals[i] = r
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		sse += w * r * r
	}
	dof := n - 2
	if dof < 1 {
		dof = 1
	}
	see := math.Sqrt(sse / float64(dof))

	r2 := stat.RSquared(xs, ys, weights, b, m)
	if !finite(r2) {
		// Flat response: a perfect fit of a constant is still R² = 1.
		r2 = 0
		if sse < sxxEpsilon {
			r2 = 1
		}
	}

	sxxSafe := math.Max(sxx, sxxEpsilon)
	sm := see / math.Sqrt(sxxSafe)
	sb := see * math.Sqrt(1/sw+xbar*xbar/sxxSafe)

	return linearResult{
		curve: spectro.CalibrationCurve{
			M:     m,
			B:     b,
			R2:    &r2,
			SEE:   &see,
			SM:    &sm,
			SB:    &sb,
			Range: &spectro.Range{CMin: floats.Min(xs), CMax: floats.Max(xs)},
		},
		residuals: residuals,
	}, nil
}

// inverseVarianceWeights returns 1/A_sd² per point, filling missing or
// non-positive A_sd with the mean of the positive ones. Returns nil when no
// point has a usable A_sd.
func inverseVarianceWeights(points []spectro.StandardsPoint) []float64 {
	var known []float64
	for _, p := range points {
		if p.ASD != nil && finite(*p.ASD) && *p.ASD > 0 {
			known = append(known, *p.ASD)
		}
	}
	if len(known) == 0 {
		return nil
	}
	fill := stat.Mean(known, nil)
	w := make([]float64, len(points))
	for i, p := range points {
		sd := fill
		if p.ASD != nil && finite(*p.ASD) && *p.ASD > 0 {
			sd = *p.ASD
		}
		w[i] = 1 / (sd * sd)
	}
	return w
}

// negligible reports whether residuals are at floating-point noise level
// relative to the response, where their correlation carries no information.
func negligible(residuals, ys []float64) bool {
	scale := 1.0
	for _, y := range ys {
		scale = math.Max(scale, math.Abs(y))
	}
	for _, r := range residuals {
		if math.Abs(r) > 1e-12*scale {
			return false
		}
	}
	return true
}

func spread(xs []float64) float64 {
	return floats.Max(xs) - floats.Min(xs)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
