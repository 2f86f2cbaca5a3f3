// Package quality implements the pass/fail gates around an absorbance
// measurement: device preflight, calibration acceptance, post-analysis QA
// flags and the operator remediation messages derived from them.
package quality

import "github.com/banshee-data/absorbance.report/internal/config"

// Limits are the acceptance thresholds shared by every gate in this package.
type Limits struct {
	MinStandards    int
	AbsorbanceMin   float64
	AbsorbanceMax   float64
	R2Min           float64
	MaxRMSENm       float64
	DriftThreshold  float64
	MinDynamicRange float64
}

// DefaultLimits returns the standard thresholds.
func DefaultLimits() Limits {
	return LimitsFromConfig(config.EmptyAnalysisConfig())
}

// LimitsFromConfig reads the thresholds from cfg, falling back to defaults
// for unset fields.
func LimitsFromConfig(cfg *config.AnalysisConfig) Limits {
	if cfg == nil {
		cfg = config.EmptyAnalysisConfig()
	}
	return Limits{
		MinStandards:    cfg.GetMinStandards(),
		AbsorbanceMin:   cfg.GetAbsorbanceMin(),
		AbsorbanceMax:   cfg.GetAbsorbanceMax(),
		R2Min:           cfg.GetR2Min(),
		MaxRMSENm:       cfg.GetMaxRMSENm(),
		DriftThreshold:  cfg.GetDriftThreshold(),
		MinDynamicRange: cfg.GetMinDynamicRange(),
	}
}
