package quant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/absorbance.report/internal/spectro"
)

func linearStandards(m, b float64, cs []float64, sds []float64) []spectro.StandardsPoint {
	pts := make([]spectro.StandardsPoint, len(cs))
	for i, c := range cs {
		pts[i] = spectro.StandardsPoint{C: c, AMean: m*c + b}
		if sds != nil {
			pts[i].ASD = spectro.Float(sds[i])
		}
	}
	return pts
}

func TestFitCurve_ExactLine(t *testing.T) {
	pts := linearStandards(0.2, 0.05, []float64{0, 1, 2, 3, 4, 5}, nil)
	fit, err := FitCurve(pts, DefaultFitOptions())
	require.NoError(t, err)

	assert.InDelta(t, 0.2, fit.Curve.M, 1e-9)
	assert.InDelta(t, 0.05, fit.Curve.B, 1e-9)
	require.NotNil(t, fit.Curve.R2)
	assert.InDelta(t, 1.0, *fit.Curve.R2, 1e-9)
	assert.InDelta(t, 0, *fit.Curve.SEE, 1e-9)
	assert.False(t, fit.WeightsUsed)
	assert.Nil(t, fit.Weights)
	assert.Equal(t, &spectro.Range{CMin: 0, CMax: 5}, fit.Curve.Range)
	assert.Nil(t, fit.Curve.LOD, "no blank sigma, no detection limits")
}

func TestFitCurve_RoundTripThroughInversion(t *testing.T) {
	pts := linearStandards(0.37, -0.02, []float64{0.5, 1, 2, 4, 8}, nil)
	fit, err := FitCurve(pts, DefaultFitOptions())
	require.NoError(t, err)

	for _, c := range []float64{0.5, 1.7, 3, 7.9} {
		conc, err := InvertCurve(0.37*c-0.02, 0, &fit.Curve)
		require.NoError(t, err)
		assert.InDelta(t, c, conc.C, 1e-6)
	}
}

func TestFitCurve_RisingSDTriggersWLS(t *testing.T) {
	pts := linearStandards(0.2, 0.05, []float64{0, 1, 2, 3, 4}, []float64{0.001, 0.002, 0.003, 0.004, 0.005})
	fit, err := FitCurve(pts, DefaultFitOptions())
	require.NoError(t, err)
	assert.True(t, fit.SDTrend)
	assert.True(t, fit.WeightsUsed)
	assert.True(t, fit.Curve.WeightsUsed)
	require.Len(t, fit.Weights, 5)
	assert.InDelta(t, 1e6, fit.Weights[0], 1e-3)
	assert.InDelta(t, 0.2, fit.Curve.M, 1e-9)
	assert.InDelta(t, 0.05, fit.Curve.B, 1e-9)
}

func TestFitCurve_FlatSDStaysOLS(t *testing.T) {
	pts := linearStandards(0.2, 0.05, []float64{0, 1, 2, 3, 4}, []float64{0.002, 0.002, 0.002, 0.002, 0.002})
	fit, err := FitCurve(pts, DefaultFitOptions())
	require.NoError(t, err)
	assert.False(t, fit.SDTrend)
	assert.False(t, fit.WeightsUsed)
}

func TestFitCurve_DetectionLimits(t *testing.T) {
	pts := linearStandards(0.2, 0.05, []float64{0, 1, 2, 3, 4}, nil)
	opts := DefaultFitOptions()
	opts.SigmaBlank = spectro.Float(0.01)
	fit, err := FitCurve(pts, opts)
	require.NoError(t, err)
	require.NotNil(t, fit.Curve.LOD)
	require.NotNil(t, fit.Curve.LOQ)
	assert.InDelta(t, 0.165, *fit.Curve.LOD, 1e-9)
	assert.InDelta(t, 0.5, *fit.Curve.LOQ, 1e-9)
}

func TestFitCurve_Uncertainties(t *testing.T) {
	pts := []spectro.StandardsPoint{
		{C: 0, AMean: 0.051},
		{C: 1, AMean: 0.248},
		{C: 2, AMean: 0.452},
		{C: 3, AMean: 0.649},
		{C: 4, AMean: 0.851},
	}
	fit, err := FitCurve(pts, DefaultFitOptions())
	require.NoError(t, err)
	assert.InDelta(t, 0.2, fit.Curve.M, 0.005)
	assert.InDelta(t, 0.05, fit.Curve.B, 0.005)
	assert.Greater(t, *fit.Curve.SM, 0.0)
	assert.Greater(t, *fit.Curve.SB, *fit.Curve.SM, "intercept is less certain than slope here")
	assert.Greater(t, *fit.Curve.R2, 0.999)
	assert.Len(t, fit.Residuals, 5)
}

func TestFitCurve_Errors(t *testing.T) {
	tests := []struct {
		name string
		pts  []spectro.StandardsPoint
	}{
		{"too few", linearStandards(0.2, 0, []float64{1}, nil)},
		{"no spread", linearStandards(0.2, 0, []float64{2, 2, 2}, nil)},
		{"zero slope", []spectro.StandardsPoint{{C: 0, AMean: 0.3}, {C: 1, AMean: 0.3}, {C: 2, AMean: 0.3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FitCurve(tt.pts, DefaultFitOptions())
			assert.True(t, errors.Is(err, spectro.ErrComputation), "got %v", err)
		})
	}
}

func TestInverseVarianceWeights_FillsMissing(t *testing.T) {
	pts := []spectro.StandardsPoint{
		{C: 0, ASD: spectro.Float(0.1)},
		{C: 1},
		{C: 2, ASD: spectro.Float(0.3)},
	}
	w := inverseVarianceWeights(pts)
	require.Len(t, w, 3)
	assert.InDelta(t, 100, w[0], 1e-9)
	assert.InDelta(t, 25, w[1], 1e-9)
	assert.Nil(t, inverseVarianceWeights([]spectro.StandardsPoint{{C: 0}, {C: 1}}))
}
