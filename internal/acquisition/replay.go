package acquisition

import (
	"context"
	"fmt"

	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// Recording is a previously captured session: the inputs an operator gave
// and every burst the camera produced, keyed by capture state.
type Recording struct {
	AnalysisType  string                    `json:"analysis_type,omitempty"`
	Params        spectro.AnalysisParams    `json:"params"`
	DeviceProfile *spectro.DeviceProfile    `json:"device_profile,omitempty"`
	Curve         *spectro.CalibrationCurve `json:"curve,omitempty"`
	Bursts        map[State]spectro.Matrix  `json:"bursts"`
	// Standards holds one burst per Params.Standards entry, in order.
	Standards []spectro.Matrix `json:"standards,omitempty"`
}

// ReplayCapturer serves the bursts of a Recording.
type ReplayCapturer struct {
	rec *Recording
}

// NewReplayCapturer creates a capturer over rec.
func NewReplayCapturer(rec *Recording) *ReplayCapturer {
	return &ReplayCapturer{rec: rec}
}

// Capture returns a copy of the recorded burst for req.
func (c *ReplayCapturer) Capture(ctx context.Context, req CaptureRequest) (spectro.Matrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Stage == StateCalibCurve {
		if req.Standard < 0 || req.Standard >= len(c.rec.Standards) {
			return nil, fmt.Errorf("no recorded burst for standard %d", req.Standard)
		}
		return c.rec.Standards[req.Standard].Clone(), nil
	}
	m, ok := c.rec.Bursts[req.Stage]
	if !ok {
		return nil, fmt.Errorf("no recorded burst for %s", req.Stage)
	}
	return m.Clone(), nil
}

// ReplayOptions selects the RESULTS actions taken before FINISH.
type ReplayOptions struct {
	SaveProfile bool
	SaveCurve   bool
}

// Replay drives o from CHOOSE_TYPE to DONE with rec's inputs. A missing
// device profile is supplied from rec when present and skipped otherwise.
// Persistence failures in RESULTS are logged and do not stop the run.
// The returned session is the last snapshot, also on error.
func Replay(ctx context.Context, o *Orchestrator, rec *Recording, opts ReplayOptions) (Session, error) {
	step := func(ev Event) (Session, error) {
		if err := o.Send(ev); err != nil {
			return o.Snapshot(), err
		}
		if err := o.Wait(ctx); err != nil {
			_ = o.Send(Reset())
			return o.Snapshot(), err
		}
		s := o.Snapshot()
		return s, s.Err
	}

	analysisType := rec.AnalysisType
	if analysisType == "" {
		analysisType = TypeQuantitative
		if rec.Params.Kinetic() {
			analysisType = TypeKinetic
		}
	}
	if s, err := step(ChooseType(analysisType)); err != nil {
		return s, err
	}
	s, err := step(SubmitParams(rec.Params, rec.Curve))
	if err != nil {
		return s, err
	}
	if s.State == StateCalibDevice {
		ev := Skip()
		if rec.DeviceProfile != nil {
			ev = SupplyProfile(rec.DeviceProfile)
		}
		if s, err = step(ev); err != nil {
			return s, err
		}
	}
	if s.State != StateResults {
		return s, fmt.Errorf("replay stopped in %s", s.State)
	}

	if opts.SaveProfile && s.DeviceProfile != nil {
		if _, err := step(SaveProfile()); err != nil {
			logf("replay: save profile: %v", err)
		}
	}
	if opts.SaveCurve && s.CurveBuilt {
		if _, err := step(SaveCurve()); err != nil {
			logf("replay: save curve: %v", err)
		}
	}
	return step(Finish())
}
