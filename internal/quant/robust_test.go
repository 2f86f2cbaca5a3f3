package quant

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/absorbance.report/internal/config"
	"github.com/banshee-data/absorbance.report/internal/spectro"
)

func TestAggregate_NoOutliersMatchesArithmeticMean(t *testing.T) {
	r, err := Aggregate([]float64{1, 2, 3, 4, 5}, DefaultRobustOptions())
	require.NoError(t, err)
	assert.InDelta(t, 3.0, r.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(2.5), r.SD, 1e-12)
	assert.Equal(t, 5, r.Kept)
	assert.Zero(t, r.Removed)
}

func TestAggregate_DropsSingleOutlier(t *testing.T) {
	values := []float64{1, 1.1, 0.9, 1, 1.05, 0.95, 1, 1, 1, 10}
	r, err := Aggregate(values, DefaultRobustOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Removed)
	assert.Equal(t, 9, r.Kept)
	assert.InDelta(t, 1.0, r.Mean, 1e-12)
	assert.InDelta(t, 1.0, r.Median, 1e-12)
}

func TestAggregate_ZeroMADRejectsDeviants(t *testing.T) {
	t.Run("within reject cap", func(t *testing.T) {
		values := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1.0001}
		r, err := Aggregate(values, DefaultRobustOptions())
		require.NoError(t, err)
		assert.Zero(t, r.Sigma)
		assert.Equal(t, 1, r.Removed)
		assert.Equal(t, 9, r.Kept)
		assert.InDelta(t, 1.0, r.Mean, 1e-12)
		assert.Zero(t, r.SD)
	})

	t.Run("over reject cap keeps all", func(t *testing.T) {
		values := []float64{1, 1, 1, 1, 1, 1, 1, 1.5, 1.5, 1.5}
		r, err := Aggregate(values, DefaultRobustOptions())
		require.NoError(t, err)
		assert.Zero(t, r.Sigma)
		assert.Zero(t, r.Removed)
		assert.Equal(t, 10, r.Kept)
		assert.InDelta(t, 1.15, r.Mean, 1e-12)
	})

	t.Run("rounding noise is not a deviation", func(t *testing.T) {
		values := []float64{1, 1, 1, 1, 1 + 1e-15}
		r, err := Aggregate(values, DefaultRobustOptions())
		require.NoError(t, err)
		assert.Zero(t, r.Removed)
	})
}

func TestAggregate_TooManyOutliersRevertsToAll(t *testing.T) {
	values := []float64{1, 1, 1, 1, 1, 1, 1, 5, 6, 7}
	r, err := Aggregate(values, DefaultRobustOptions())
	require.NoError(t, err)
	assert.Zero(t, r.Removed, "three of ten flagged exceeds the reject cap")
	assert.Equal(t, 10, r.Kept)
	assert.InDelta(t, 2.5, r.Mean, 1e-12)
}

func TestAggregate_SingleValue(t *testing.T) {
	r, err := Aggregate([]float64{0.42}, DefaultRobustOptions())
	require.NoError(t, err)
	assert.Equal(t, 0.42, r.Mean)
	assert.Zero(t, r.SD)
}

func TestAggregate_Errors(t *testing.T) {
	_, err := Aggregate(nil, DefaultRobustOptions())
	assert.True(t, errors.Is(err, spectro.ErrComputation))

	_, err = Aggregate([]float64{1, math.NaN()}, DefaultRobustOptions())
	assert.True(t, errors.Is(err, spectro.ErrComputation))
}

func TestRobustOptionsFromConfig(t *testing.T) {
	assert.Equal(t, DefaultRobustOptions(), RobustOptionsFromConfig(nil))

	z := 2.0
	got := RobustOptionsFromConfig(&config.AnalysisConfig{OutlierZ: &z})
	assert.Equal(t, 2.0, got.OutlierZ)
	assert.Equal(t, DefaultMADScale, got.MADScale)
	assert.Equal(t, DefaultMaxRejectFraction, got.MaxRejectFraction)
}

func TestMedian(t *testing.T) {
	in := []float64{3, 1, 2, 4}
	assert.Equal(t, 2.5, median(in))
	assert.Equal(t, []float64{3, 1, 2, 4}, in, "input must not be reordered")
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
}
