package quant

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/absorbance.report/internal/config"
	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// Robust aggregation heuristics. They are empirical and overridable through
// config.AnalysisConfig.
const (
	DefaultOutlierZ          = 3.5
	DefaultMADScale          = 1.4826
	DefaultMaxRejectFraction = 0.2
)

// RobustOptions tunes Aggregate.
type RobustOptions struct {
	OutlierZ          float64
	MADScale          float64
	MaxRejectFraction float64
}

// DefaultRobustOptions returns the standard heuristics.
func DefaultRobustOptions() RobustOptions {
	return RobustOptions{
		OutlierZ:          DefaultOutlierZ,
		MADScale:          DefaultMADScale,
		MaxRejectFraction: DefaultMaxRejectFraction,
	}
}

// RobustOptionsFromConfig reads the aggregation heuristics from cfg.
func RobustOptionsFromConfig(cfg *config.AnalysisConfig) RobustOptions {
	if cfg == nil {
		return DefaultRobustOptions()
	}
	return RobustOptions{
		OutlierZ:          cfg.GetOutlierZ(),
		MADScale:          cfg.GetMADScale(),
		MaxRejectFraction: cfg.GetMaxRejectFraction(),
	}
}

// Robust is the outlier-resistant summary of a series.
type Robust struct {
	Mean    float64
	SD      float64
	Median  float64
	Sigma   float64 // MAD × scale
	Kept    int
	Removed int
}

// Aggregate computes an outlier-resistant mean and sample standard deviation.
// Values further than OutlierZ robust sigmas from the median are dropped,
// unless that would drop more than MaxRejectFraction of the series, in which
// case every value is kept. The sd denominator is max(n−1, 1).
func Aggregate(values []float64, opts RobustOptions) (Robust, error) {
	if len(values) == 0 {
		return Robust{}, spectro.Errorf(spectro.ErrComputation, "aggregate", "empty series")
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Robust{}, spectro.Errorf(spectro.ErrComputation, "aggregate", "non-finite value at %d", i)
		}
	}

	med := median(values)
	devs := make([]float64, len(values))
	for i, v := range values {
		devs[i] = math.Abs(v - med)
	}
	sigma := median(devs) * opts.MADScale

	kept := values
	removed := 0
	filtered := make([]float64, 0, len(values))
	for i, v := range values {
		if !isOutlier(devs[i], sigma, med, opts.OutlierZ) {
			filtered = append(filtered, v)
		}
	}
	if r := len(values) - len(filtered); r > 0 {
		if float64(r)/float64(len(values)) <= opts.MaxRejectFraction {
			kept = filtered
			removed = r
		}
	}

	mean := stat.Mean(kept, nil)
	sd := 0.0
	if len(kept) > 1 {
		sd = stat.StdDev(kept, nil)
	}
	return Robust{
		Mean:    mean,
		SD:      sd,
		Median:  med,
		Sigma:   sigma,
		Kept:    len(kept),
		Removed: removed,
	}, nil
}

// isOutlier applies |v−median|/sigma > z. A zero sigma (over half the series
// identical) flags anything measurably away from the median.
func isOutlier(dev, sigma, med, z float64) bool {
	if sigma > 0 {
		return dev/sigma > z
	}
	return dev > 1e-12*math.Max(1, math.Abs(med))
}

// median returns the middle value, averaging the two central values of an
// even-length series. values is not modified.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
