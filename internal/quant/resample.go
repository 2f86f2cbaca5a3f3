package quant

import (
	"gonum.org/v1/gonum/interp"

	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// Resample linearly interpolates every frame of m onto points evenly spaced
// samples spanning the original columns, so bursts from sensors of different
// resolution share a point count. points <= 0 or equal to the current count
// returns a copy.
func Resample(m spectro.Matrix, points int) (spectro.Matrix, error) {
	if err := m.Validate(); err != nil {
		return nil, spectro.NewError(spectro.ErrComputation, "resample", err)
	}
	n := m.Points()
	if points <= 0 || points == n {
		return m.Clone(), nil
	}

	out := make(spectro.Matrix, len(m))
	if n == 1 {
		for i, f := range m {
			row := make([]float64, points)
			for j := range row {
				row[j] = f[0]
			}
			out[i] = row
		}
		return out, nil
	}

	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	step := 0.0
	if points > 1 {
		step = float64(n-1) / float64(points-1)
	}

	for i, f := range m {
		var pl interp.PiecewiseLinear
		if err := pl.Fit(xs, f); err != nil {
			return nil, spectro.Errorf(spectro.ErrComputation, "resample", "frame %d: %v", i, err)
		}
		row := make([]float64, points)
		for j := range row {
			row[j] = pl.Predict(float64(j) * step)
		}
		out[i] = row
	}
	return out, nil
}
