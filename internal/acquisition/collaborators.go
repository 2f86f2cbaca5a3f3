package acquisition

import (
	"context"

	"github.com/banshee-data/absorbance.report/internal/hybrid"
	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// CaptureRequest describes one burst to capture.
type CaptureRequest struct {
	Stage   State
	Params  spectro.AnalysisParams
	Profile *spectro.DeviceProfile
	// Standard indexes Params.Standards during CALIB_CURVE.
	Standard      int
	Concentration float64
}

// Capturer acquires a burst of frames from the camera. Frames are captured
// one exposure at a time; the returned matrix holds normalised intensities.
type Capturer interface {
	Capture(ctx context.Context, req CaptureRequest) (spectro.Matrix, error)
}

// ProfileStore persists the device profile. Load returns nil, nil when no
// profile has been saved.
type ProfileStore interface {
	Load(ctx context.Context) (*spectro.DeviceProfile, error)
	Save(ctx context.Context, p *spectro.DeviceProfile) error
	Clear(ctx context.Context) error
}

// CurveStore persists calibration curves. LoadCurves returns the newest
// first, optionally filtered by device hash.
type CurveStore interface {
	AddCurve(ctx context.Context, c *spectro.CalibrationCurve) (string, error)
	LoadCurves(ctx context.Context, deviceHash string, limit int) ([]*spectro.CalibrationCurve, error)
}

// ReportStore persists completed analyses.
type ReportStore interface {
	SaveAnalysisReport(ctx context.Context, r *spectro.AnalysisReport) (string, error)
}

// Quantifier resolves the final result, locally or remotely.
type Quantifier interface {
	Quantify(ctx context.Context, in hybrid.Input, strategy hybrid.Strategy) (hybrid.Outcome, error)
}
