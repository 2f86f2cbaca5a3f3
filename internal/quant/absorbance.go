package quant

import (
	"fmt"
	"math"

	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// Bursts are the captures needed for one absorbance measurement. RefAfter is
// optional; when absent the reference is assumed not to drift.
type Bursts struct {
	Dark      spectro.Matrix
	RefBefore spectro.Matrix
	Sample    spectro.Matrix
	RefAfter  spectro.Matrix
}

// AbsorbanceResult is the outcome of ComputeAbsorbance.
type AbsorbanceResult struct {
	AMean float64
	ASD   float64
	CV    float64 // percent; NaN when AMean ≈ 0

	PerFrame []float64 // absorbance of each valid sample frame, in capture order
	Valid    int
	Invalid  int // frames rejected by the transmittance validity check
	Removed  int // valid frames dropped by robust aggregation

	IDark      float64
	IRefBefore float64
	IRefAfter  float64
}

// ComputeAbsorbance implements the pseudo double-beam measurement:
//
//  1. each frame is integrated over the window (mean of the selected columns);
//  2. dark, reference-before and reference-after are robustly aggregated;
//  3. sample frame i of N sees the reference interpolated with w = i/(N−1)
//     (0.5 when N = 1) between the before and after levels;
//  4. T = (I − I_dark)/(I_ref − I_dark) must have positive numerator and
//     denominator and satisfy 0 < T ≤ 1, otherwise the frame is invalid;
//  5. A = −log10(T) per valid frame, robustly aggregated.
func ComputeAbsorbance(b Bursts, window []int, opts RobustOptions) (AbsorbanceResult, error) {
	const op = "absorbance"
	if len(window) == 0 {
		return AbsorbanceResult{}, spectro.Errorf(spectro.ErrComputation, op, "empty wavelength window")
	}

	dark, err := integrateBurst("dark", b.Dark, window)
	if err != nil {
		return AbsorbanceResult{}, spectro.NewError(spectro.ErrComputation, op, err)
	}
	refBefore, err := integrateBurst("ref_before", b.RefBefore, window)
	if err != nil {
		return AbsorbanceResult{}, spectro.NewError(spectro.ErrComputation, op, err)
	}
	sample, err := integrateBurst("sample", b.Sample, window)
	if err != nil {
		return AbsorbanceResult{}, spectro.NewError(spectro.ErrComputation, op, err)
	}

	darkAgg, err := Aggregate(dark, opts)
	if err != nil {
		return AbsorbanceResult{}, err
	}
	beforeAgg, err := Aggregate(refBefore, opts)
	if err != nil {
		return AbsorbanceResult{}, err
	}
	iDark := darkAgg.Mean
	iBefore := beforeAgg.Mean
	iAfter := iBefore
	if len(b.RefAfter) > 0 {
		refAfter, err := integrateBurst("ref_after", b.RefAfter, window)
		if err != nil {
			return AbsorbanceResult{}, spectro.NewError(spectro.ErrComputation, op, err)
		}
		afterAgg, err := Aggregate(refAfter, opts)
		if err != nil {
			return AbsorbanceResult{}, err
		}
		iAfter = afterAgg.Mean
	}

	res := AbsorbanceResult{
		IDark:      iDark,
		IRefBefore: iBefore,
		IRefAfter:  iAfter,
	}

	n := len(sample)
	for i, s := range sample {
		w := 0.5
		if n > 1 {
			w = float64(i) / float64(n-1)
		}
		iRef := iBefore + (iAfter-iBefore)*w
		num := s - iDark
		den := iRef - iDark
		if !(num > 0) || !(den > 0) {
			res.Invalid++
			continue
		}
		t := num / den
		if !(t > 0) || t > 1 {
			res.Invalid++
			continue
		}
		res.PerFrame = append(res.PerFrame, -math.Log10(t))
	}
	res.Valid = len(res.PerFrame)
	if res.Valid == 0 {
		return res, spectro.Errorf(spectro.ErrComputation, op, "no valid sample frames (%d rejected)", res.Invalid)
	}

	agg, err := Aggregate(res.PerFrame, opts)
	if err != nil {
		return res, err
	}
	res.AMean = agg.Mean
	res.ASD = agg.SD
	res.Removed = agg.Removed
	res.CV = CoefficientOfVariation(agg.Mean, agg.SD)
	return res, nil
}

// CoefficientOfVariation returns |sd/mean|·100, or NaN when mean ≈ 0.
func CoefficientOfVariation(mean, sd float64) float64 {
	if math.Abs(mean) < 1e-12 {
		return math.NaN()
	}
	return math.Abs(sd/mean) * 100
}

// BlankSigma estimates the absorbance noise of a blank burst measured against
// the reference: the robust sd of −log10((I_blank − I_dark)/(I_ref − I_dark)).
// Unlike ComputeAbsorbance, frames with T > 1 are kept because a blank
// legitimately scatters around zero absorbance.
func BlankSigma(dark, ref, blank spectro.Matrix, window []int, opts RobustOptions) (float64, error) {
	const op = "blank sigma"
	d, err := integrateBurst("dark", dark, window)
	if err != nil {
		return 0, spectro.NewError(spectro.ErrComputation, op, err)
	}
	r, err := integrateBurst("ref", ref, window)
	if err != nil {
		return 0, spectro.NewError(spectro.ErrComputation, op, err)
	}
	bl, err := integrateBurst("blank", blank, window)
	if err != nil {
		return 0, spectro.NewError(spectro.ErrComputation, op, err)
	}
	dAgg, err := Aggregate(d, opts)
	if err != nil {
		return 0, err
	}
	rAgg, err := Aggregate(r, opts)
	if err != nil {
		return 0, err
	}
	den := rAgg.Mean - dAgg.Mean
	if !(den > 0) {
		return 0, spectro.Errorf(spectro.ErrComputation, op, "reference not above dark (%.6g)", den)
	}

	var as []float64
	for _, v := range bl {
		num := v - dAgg.Mean
		if num > 0 {
			as = append(as, -math.Log10(num/den))
		}
	}
	if len(as) == 0 {
		return 0, spectro.Errorf(spectro.ErrComputation, op, "no usable blank frames")
	}
	agg, err := Aggregate(as, opts)
	if err != nil {
		return 0, err
	}
	return agg.SD, nil
}

// integrateBurst reduces each frame to the mean of the window columns.
func integrateBurst(name string, m spectro.Matrix, window []int) ([]float64, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s burst: %w", name, err)
	}
	if len(window) == 0 {
		return nil, fmt.Errorf("%s burst: empty window", name)
	}
	n := m.Points()
	for _, x := range window {
		if x < 0 || x >= n {
			return nil, fmt.Errorf("%s burst: window index %d outside [0,%d)", name, x, n)
		}
	}
	out := make([]float64, len(m))
	for i, frame := range m {
		var sum float64
		for _, x := range window {
			sum += frame[x]
		}
		out[i] = sum / float64(len(window))
	}
	return out, nil
}

// Integrate reduces each frame of m to the mean of the window columns.
func Integrate(m spectro.Matrix, window []int) ([]float64, error) {
	out, err := integrateBurst("burst", m, window)
	if err != nil {
		return nil, spectro.NewError(spectro.ErrComputation, "integrate", err)
	}
	return out, nil
}
