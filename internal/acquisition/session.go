package acquisition

import (
	"github.com/banshee-data/absorbance.report/internal/quality"
	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// Session is the context of one analysis. The orchestrator never mutates a
// published Session; every transition publishes a fresh copy.
type Session struct {
	State        State
	AnalysisType string
	Params       spectro.AnalysisParams

	DeviceProfile *spectro.DeviceProfile
	Preflight     *quality.PreflightReport

	DarkNoise  spectro.Matrix
	WhiteNoise spectro.Matrix
	Ref1       spectro.Matrix
	Sample     spectro.Matrix
	Ref2       spectro.Matrix
	Standards  []spectro.Matrix

	Points     []spectro.StandardsPoint
	SigmaBlank *float64
	Curve      *spectro.CalibrationCurve
	CurveBuilt bool

	Results  *spectro.LocalQuantResult
	Source   string
	ReportID string

	// Err is the failure of the last stage. In a task state it blocks every
	// event except RETRY and RESET.
	Err error
}

func newSession() *Session {
	return &Session{State: StateChooseType}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Params = s.Params.Clone()
	cp.DeviceProfile = s.DeviceProfile.Clone()
	if s.Preflight != nil {
		pf := quality.PreflightReport{Suggestions: append([]string(nil), s.Preflight.Suggestions...)}
		cp.Preflight = &pf
	}
	cp.DarkNoise = s.DarkNoise.Clone()
	cp.WhiteNoise = s.WhiteNoise.Clone()
	cp.Ref1 = s.Ref1.Clone()
	cp.Sample = s.Sample.Clone()
	cp.Ref2 = s.Ref2.Clone()
	if s.Standards != nil {
		cp.Standards = make([]spectro.Matrix, len(s.Standards))
		for i, m := range s.Standards {
			cp.Standards[i] = m.Clone()
		}
	}
	if s.Points != nil {
		cp.Points = make([]spectro.StandardsPoint, len(s.Points))
		for i, p := range s.Points {
			cp.Points[i] = p
			if p.ASD != nil {
				cp.Points[i].ASD = spectro.Float(*p.ASD)
			}
		}
	}
	if s.SigmaBlank != nil {
		cp.SigmaBlank = spectro.Float(*s.SigmaBlank)
	}
	cp.Curve = s.Curve.Clone()
	cp.Results = s.Results.Clone()
	return &cp
}

// Failed reports whether the session is in the error-bearing variant of a
// task state.
func (s *Session) Failed() bool {
	return s.Err != nil && taskState(s.State)
}
