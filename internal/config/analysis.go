package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
const DefaultConfigPath = "config/analysis.defaults.json"

// AnalysisConfig holds the statistical heuristics, acceptance limits and
// service settings. Every field is optional; the Get* methods supply the
// default for anything left unset, so partial files are safe.
type AnalysisConfig struct {
	// Robust aggregation
	OutlierZ          *float64 `json:"outlier_z,omitempty"`
	MADScale          *float64 `json:"mad_scale,omitempty"`
	MaxRejectFraction *float64 `json:"max_reject_fraction,omitempty"`

	// Curve fitting
	HeteroscedasticityCorr *float64 `json:"heteroscedasticity_corr,omitempty"`

	// Calibration acceptance
	MinStandards  *int     `json:"min_standards,omitempty"`
	AbsorbanceMin *float64 `json:"absorbance_min,omitempty"`
	AbsorbanceMax *float64 `json:"absorbance_max,omitempty"`
	R2Min         *float64 `json:"r2_min,omitempty"`

	// Preflight and QA
	MaxRMSENm       *float64 `json:"max_rmse_nm,omitempty"`
	DriftThreshold  *float64 `json:"drift_threshold,omitempty"`
	MinDynamicRange *float64 `json:"min_dynamic_range,omitempty"`
	SaturationLevel *float64 `json:"saturation_level,omitempty"`

	// Acquisition
	ResamplePoints  *int     `json:"resample_points,omitempty"`
	DefaultWindowNm *float64 `json:"default_window_nm,omitempty"`

	// Service
	RemoteURL     *string `json:"remote_url,omitempty"`
	RemoteTimeout *string `json:"remote_timeout,omitempty"` // duration string like "15s"
	DBPath        *string `json:"db_path,omitempty"`
	Listen        *string `json:"listen,omitempty"`
}

// EmptyAnalysisConfig returns a config with every field unset.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file. The file must
// have a .json extension and be under 1MB.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *AnalysisConfig) Validate() error {
	positive := map[string]*float64{
		"outlier_z":         c.OutlierZ,
		"mad_scale":         c.MADScale,
		"max_rmse_nm":       c.MaxRMSENm,
		"default_window_nm": c.DefaultWindowNm,
	}
	for name, v := range positive {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be > 0, got %f", name, *v)
		}
	}

	fractions := map[string]*float64{
		"max_reject_fraction":     c.MaxRejectFraction,
		"heteroscedasticity_corr": c.HeteroscedasticityCorr,
		"r2_min":                  c.R2Min,
		"drift_threshold":         c.DriftThreshold,
	}
	for name, v := range fractions {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
	}

	if c.MinStandards != nil && *c.MinStandards < 2 {
		return fmt.Errorf("min_standards must be >= 2, got %d", *c.MinStandards)
	}
	if c.ResamplePoints != nil && *c.ResamplePoints < 0 {
		return fmt.Errorf("resample_points must be non-negative, got %d", *c.ResamplePoints)
	}
	if c.GetAbsorbanceMin() >= c.GetAbsorbanceMax() {
		return fmt.Errorf("absorbance_min (%f) must be below absorbance_max (%f)", c.GetAbsorbanceMin(), c.GetAbsorbanceMax())
	}
	if c.RemoteTimeout != nil && *c.RemoteTimeout != "" {
		if _, err := time.ParseDuration(*c.RemoteTimeout); err != nil {
			return fmt.Errorf("invalid remote_timeout '%s': %w", *c.RemoteTimeout, err)
		}
	}

	return nil
}

// GetOutlierZ returns the robust z-score rejection threshold.
func (c *AnalysisConfig) GetOutlierZ() float64 {
	if c.OutlierZ == nil {
		return 3.5
	}
	return *c.OutlierZ
}

// GetMADScale returns the MAD-to-sigma scale (normal-consistent).
func (c *AnalysisConfig) GetMADScale() float64 {
	if c.MADScale == nil {
		return 1.4826
	}
	return *c.MADScale
}

// GetMaxRejectFraction returns the fraction above which outlier rejection
// is abandoned.
func (c *AnalysisConfig) GetMaxRejectFraction() float64 {
	if c.MaxRejectFraction == nil {
		return 0.2
	}
	return *c.MaxRejectFraction
}

// GetHeteroscedasticityCorr returns the |correlation| that triggers a WLS refit.
func (c *AnalysisConfig) GetHeteroscedasticityCorr() float64 {
	if c.HeteroscedasticityCorr == nil {
		return 0.3
	}
	return *c.HeteroscedasticityCorr
}

// GetMinStandards returns the minimum number of standards for acceptance.
func (c *AnalysisConfig) GetMinStandards() int {
	if c.MinStandards == nil {
		return 5
	}
	return *c.MinStandards
}

// GetAbsorbanceMin returns the lowest acceptable standard absorbance.
func (c *AnalysisConfig) GetAbsorbanceMin() float64 {
	if c.AbsorbanceMin == nil {
		return 0.05
	}
	return *c.AbsorbanceMin
}

// GetAbsorbanceMax returns the highest acceptable absorbance.
func (c *AnalysisConfig) GetAbsorbanceMax() float64 {
	if c.AbsorbanceMax == nil {
		return 1.5
	}
	return *c.AbsorbanceMax
}

// GetR2Min returns the minimum acceptable coefficient of determination.
func (c *AnalysisConfig) GetR2Min() float64 {
	if c.R2Min == nil {
		return 0.995
	}
	return *c.R2Min
}

// GetMaxRMSENm returns the largest tolerated wavelength calibration RMSE.
func (c *AnalysisConfig) GetMaxRMSENm() float64 {
	if c.MaxRMSENm == nil {
		return 2.0
	}
	return *c.MaxRMSENm
}

// GetDriftThreshold returns the relative reference change flagged as drift.
func (c *AnalysisConfig) GetDriftThreshold() float64 {
	if c.DriftThreshold == nil {
		return 0.05
	}
	return *c.DriftThreshold
}

// GetMinDynamicRange returns the minimum reference-minus-dark intensity.
func (c *AnalysisConfig) GetMinDynamicRange() float64 {
	if c.MinDynamicRange == nil {
		return 0.12
	}
	return *c.MinDynamicRange
}

// GetSaturationLevel returns the normalised intensity treated as saturated.
func (c *AnalysisConfig) GetSaturationLevel() float64 {
	if c.SaturationLevel == nil {
		return 0.995
	}
	return *c.SaturationLevel
}

// GetResamplePoints returns the point count every captured burst is
// resampled to. Zero disables resampling.
func (c *AnalysisConfig) GetResamplePoints() int {
	if c.ResamplePoints == nil {
		return 256
	}
	return *c.ResamplePoints
}

// GetDefaultWindowNm returns the integration window used when params omit it.
func (c *AnalysisConfig) GetDefaultWindowNm() float64 {
	if c.DefaultWindowNm == nil {
		return 4
	}
	return *c.DefaultWindowNm
}

// GetRemoteURL returns the base URL of the remote quantification service.
// Empty means no remote is configured.
func (c *AnalysisConfig) GetRemoteURL() string {
	if c.RemoteURL == nil {
		return ""
	}
	return *c.RemoteURL
}

// GetRemoteTimeout parses and returns RemoteTimeout.
func (c *AnalysisConfig) GetRemoteTimeout() time.Duration {
	if c.RemoteTimeout == nil || *c.RemoteTimeout == "" {
		return 15 * time.Second
	}
	d, err := time.ParseDuration(*c.RemoteTimeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// GetDBPath returns the SQLite database path.
func (c *AnalysisConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "absorbance.db"
	}
	return *c.DBPath
}

// GetListen returns the HTTP listen address.
func (c *AnalysisConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8080"
	}
	return *c.Listen
}
