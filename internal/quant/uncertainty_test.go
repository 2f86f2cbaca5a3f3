package quant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/absorbance.report/internal/spectro"
)

func TestInvertCurve(t *testing.T) {
	curve := &spectro.CalibrationCurve{M: 0.2, B: 0.05}
	conc, err := InvertCurve(0.45, 0.01, curve)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, conc.C, 1e-12)
	assert.InDelta(t, 0.05, conc.SD, 1e-12)
	assert.InDelta(t, 2-1.96*0.05, conc.CI95.Low, 1e-12)
	assert.InDelta(t, 2+1.96*0.05, conc.CI95.High, 1e-12)
}

func TestInvertCurve_IntervalWidensWithASD(t *testing.T) {
	curve := &spectro.CalibrationCurve{M: 0.2, B: 0.05, SM: spectro.Float(0.002), SB: spectro.Float(0.003)}
	prev := -1.0
	for _, sd := range []float64{0, 0.001, 0.01, 0.05} {
		conc, err := InvertCurve(0.45, sd, curve)
		require.NoError(t, err)
		width := conc.CI95.High - conc.CI95.Low
		assert.Greater(t, width, prev)
		assert.LessOrEqual(t, conc.CI95.Low, conc.C)
		assert.GreaterOrEqual(t, conc.CI95.High, conc.C)
		prev = width
	}
}

func TestInvertCurve_Errors(t *testing.T) {
	_, err := InvertCurve(0.4, 0.01, &spectro.CalibrationCurve{M: 0, B: 0.1})
	assert.True(t, errors.Is(err, spectro.ErrComputation))

	_, err = InvertCurve(0.4, 0.01, nil)
	assert.True(t, errors.Is(err, spectro.ErrComputation))
}
