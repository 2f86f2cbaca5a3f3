package quality

import (
	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// PreflightReport lists non-blocking suggestions from a passing preflight.
type PreflightReport struct {
	Suggestions []string `json:"suggestions,omitempty"`
}

// Preflight checks that a device profile is usable before any frame is
// captured. A nil profile yields ErrDeviceProfileMissing; a degenerate ROI or
// a wavelength calibration worse than MaxRMSENm yields ErrValidation.
func Preflight(profile *spectro.DeviceProfile, lim Limits) (PreflightReport, error) {
	const op = "preflight"
	if profile == nil {
		return PreflightReport{}, spectro.Errorf(spectro.ErrDeviceProfileMissing, op, "no device profile")
	}

	var issues []string
	if profile.ROI.W <= 0 || profile.ROI.H <= 0 {
		issues = append(issues, "roi width and height must be positive")
	}
	if profile.RMSENm != nil && *profile.RMSENm > lim.MaxRMSENm {
		issues = append(issues, "wavelength calibration rmse_nm exceeds limit; recalibrate the device")
	}
	if len(issues) > 0 {
		return PreflightReport{}, &spectro.Error{Kind: spectro.ErrValidation, Op: op, Issues: issues}
	}

	var report PreflightReport
	if profile.Camera == nil {
		report.Suggestions = append(report.Suggestions, "camera metadata missing; record exposure and ISO for reproducibility")
	}
	if profile.RMSENm == nil {
		report.Suggestions = append(report.Suggestions, "wavelength calibration rmse unknown; consider recalibrating the device")
	}
	return report, nil
}
