package quant

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/absorbance.report/internal/spectro"
	"github.com/banshee-data/absorbance.report/internal/testutil"
)

func TestComputeAbsorbance_ConstantBursts(t *testing.T) {
	b := Bursts{
		Dark:      testutil.ConstantBurst(10, 8, 0.01),
		RefBefore: testutil.ConstantBurst(10, 8, 0.5),
		Sample:    testutil.ConstantBurst(20, 8, 0.25),
	}
	res, err := ComputeAbsorbance(b, []int{3, 4, 5}, DefaultRobustOptions())
	require.NoError(t, err)

	want := -math.Log10(0.24 / 0.49)
	assert.InDelta(t, want, res.AMean, 1e-9)
	assert.InDelta(t, 0.31, res.AMean, 0.001)
	assert.InDelta(t, 0, res.ASD, 1e-12)
	assert.InDelta(t, 0, res.CV, 1e-9)
	assert.Equal(t, 20, res.Valid)
	assert.Zero(t, res.Invalid)
	assert.Equal(t, res.IRefBefore, res.IRefAfter, "missing ref_after means no drift")
}

func TestComputeAbsorbance_InterpolatesReference(t *testing.T) {
	dark, before, after := 0.0, 0.5, 0.6
	a := 0.4
	// Sample frames that track the drifting reference read a constant A.
	n := 5
	series := make([]float64, n)
	for i := range series {
		ref := before + (after-before)*float64(i)/float64(n-1)
		series[i] = testutil.SampleLevel(dark, ref, a)
	}
	b := Bursts{
		Dark:      testutil.ConstantBurst(4, 3, dark),
		RefBefore: testutil.ConstantBurst(4, 3, before),
		Sample:    testutil.BurstFromSeries(series, 3),
		RefAfter:  testutil.ConstantBurst(4, 3, after),
	}
	res, err := ComputeAbsorbance(b, []int{1}, DefaultRobustOptions())
	require.NoError(t, err)
	assert.InDelta(t, a, res.AMean, 1e-9)
	assert.InDelta(t, 0, res.ASD, 1e-9)
	assert.Equal(t, after, res.IRefAfter)
}

func TestComputeAbsorbance_InvalidFrames(t *testing.T) {
	series := []float64{0.25, 0.25, 0.6, 0.005, 0.25}
	b := Bursts{
		Dark:      testutil.ConstantBurst(3, 2, 0.01),
		RefBefore: testutil.ConstantBurst(3, 2, 0.5),
		Sample:    testutil.BurstFromSeries(series, 2),
	}
	res, err := ComputeAbsorbance(b, []int{0, 1}, DefaultRobustOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Valid)
	assert.Equal(t, 2, res.Invalid, "T > 1 and I below dark are rejected")
	assert.Len(t, res.PerFrame, 3)
}

func TestComputeAbsorbance_NoValidFrames(t *testing.T) {
	b := Bursts{
		Dark:      testutil.ConstantBurst(3, 2, 0.01),
		RefBefore: testutil.ConstantBurst(3, 2, 0.5),
		Sample:    testutil.ConstantBurst(3, 2, 0.7),
	}
	_, err := ComputeAbsorbance(b, []int{0}, DefaultRobustOptions())
	assert.True(t, errors.Is(err, spectro.ErrComputation))
}

func TestComputeAbsorbance_ReferenceBelowDark(t *testing.T) {
	b := Bursts{
		Dark:      testutil.ConstantBurst(3, 2, 0.5),
		RefBefore: testutil.ConstantBurst(3, 2, 0.4),
		Sample:    testutil.ConstantBurst(3, 2, 0.45),
	}
	_, err := ComputeAbsorbance(b, []int{0}, DefaultRobustOptions())
	assert.True(t, errors.Is(err, spectro.ErrComputation))
}

func TestComputeAbsorbance_BadInput(t *testing.T) {
	good := testutil.ConstantBurst(3, 2, 0.5)
	_, err := ComputeAbsorbance(Bursts{Dark: good, RefBefore: good, Sample: good}, nil, DefaultRobustOptions())
	assert.True(t, errors.Is(err, spectro.ErrComputation))

	_, err = ComputeAbsorbance(Bursts{Dark: good, RefBefore: good, Sample: good}, []int{5}, DefaultRobustOptions())
	assert.True(t, errors.Is(err, spectro.ErrComputation))

	_, err = ComputeAbsorbance(Bursts{Dark: nil, RefBefore: good, Sample: good}, []int{0}, DefaultRobustOptions())
	assert.True(t, errors.Is(err, spectro.ErrComputation))
}

func TestCoefficientOfVariation(t *testing.T) {
	assert.InDelta(t, 10.0, CoefficientOfVariation(0.5, 0.05), 1e-12)
	assert.InDelta(t, 10.0, CoefficientOfVariation(-0.5, 0.05), 1e-12)
	assert.True(t, math.IsNaN(CoefficientOfVariation(0, 0.01)))
}

func TestBlankSigma(t *testing.T) {
	dark := testutil.ConstantBurst(4, 2, 0.01)
	ref := testutil.ConstantBurst(4, 2, 0.5)

	sigma, err := BlankSigma(dark, ref, testutil.ConstantBurst(6, 2, 0.5), []int{0}, DefaultRobustOptions())
	require.NoError(t, err)
	assert.InDelta(t, 0, sigma, 1e-12)

	// A blank scattering either side of the reference keeps its T > 1 frames.
	blank := testutil.BurstFromSeries([]float64{0.49, 0.51, 0.49, 0.51}, 2)
	sigma, err = BlankSigma(dark, ref, blank, []int{0}, DefaultRobustOptions())
	require.NoError(t, err)
	assert.Greater(t, sigma, 0.0)

	_, err = BlankSigma(ref, dark, blank, []int{0}, DefaultRobustOptions())
	assert.True(t, errors.Is(err, spectro.ErrComputation))
}

func TestIntegrate(t *testing.T) {
	m := spectro.Matrix{{1, 2, 3, 4}, {2, 4, 6, 8}}
	got, err := Integrate(m, []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 5}, got)

	_, err = Integrate(m, []int{-1})
	assert.True(t, errors.Is(err, spectro.ErrComputation))
}
