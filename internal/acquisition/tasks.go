package acquisition

import (
	"context"

	"github.com/banshee-data/absorbance.report/internal/analysis"
	"github.com/banshee-data/absorbance.report/internal/hybrid"
	"github.com/banshee-data/absorbance.report/internal/quality"
	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// taskFor returns the entry task of s, or nil for a state that waits for an
// event. Collaborators are bound here, under o.mu.
func (o *Orchestrator) taskFor(s State) task {
	if next, ok := captureStages[s]; ok {
		return o.captureTask(s, next)
	}
	switch s {
	case StatePreflight:
		return o.preflightTask()
	case StateCalibCurve:
		return o.standardsTask()
	case StateBuildCurve:
		return o.buildCurveTask()
	case StateProcessing:
		return o.processingTask()
	case StateQASave:
		return o.qaSaveTask()
	}
	return nil
}

// classify tags an unclassified error with kind.
func classify(kind error, op string, err error) error {
	if spectro.KindOf(err) != nil {
		return err
	}
	return spectro.NewError(kind, op, err)
}

func (o *Orchestrator) preflightTask() task {
	profiles := o.profiles
	limits := o.engine.Limits()
	return func(ctx context.Context, s *Session) (*Session, error) {
		var profile *spectro.DeviceProfile
		if profiles != nil {
			p, err := profiles.Load(ctx)
			if err != nil {
				return nil, classify(spectro.ErrPersistence, "load profile", err)
			}
			profile = p
		}
		report, err := quality.Preflight(profile, limits)
		if err != nil {
			return nil, err
		}
		s.DeviceProfile = profile
		s.Preflight = &report
		s.State = StateDecideCalibDevice
		return s, nil
	}
}

// capture takes one burst and resamples it to the configured point count.
func (o *Orchestrator) capture(ctx context.Context, capturer Capturer, req CaptureRequest) (spectro.Matrix, error) {
	op := "capture " + string(req.Stage)
	if capturer == nil {
		return nil, spectro.Errorf(spectro.ErrAcquisition, op, "no capturer configured")
	}
	m, err := capturer.Capture(ctx, req)
	if err != nil {
		return nil, classify(spectro.ErrAcquisition, op, err)
	}
	if err := m.Validate(); err != nil {
		return nil, spectro.NewError(spectro.ErrAcquisition, op, err)
	}
	return o.engine.Resample(m)
}

func (o *Orchestrator) captureTask(stage, next State) task {
	capturer := o.capturer
	return func(ctx context.Context, s *Session) (*Session, error) {
		m, err := o.capture(ctx, capturer, CaptureRequest{Stage: stage, Params: s.Params, Profile: s.DeviceProfile})
		if err != nil {
			return nil, err
		}
		switch stage {
		case StateAcqDarkNoise:
			s.DarkNoise = m
		case StateAcqWhiteNoise:
			s.WhiteNoise = m
		case StateAcqRef1:
			s.Ref1 = m
		case StateAcqSample:
			s.Sample = m
		case StateAcqRef2:
			s.Ref2 = m
		}
		s.State = next
		return s, nil
	}
}

// standardsTask captures one burst per standard concentration, in order.
// Bursts already captured are kept, so a retry resumes at the standard that
// failed.
func (o *Orchestrator) standardsTask() task {
	capturer := o.capturer
	return func(ctx context.Context, s *Session) (*Session, error) {
		for i := len(s.Standards); i < len(s.Params.Standards); i++ {
			m, err := o.capture(ctx, capturer, CaptureRequest{
				Stage:         StateCalibCurve,
				Params:        s.Params,
				Profile:       s.DeviceProfile,
				Standard:      i,
				Concentration: s.Params.Standards[i],
			})
			if err != nil {
				return s, err
			}
			s.Standards = append(s.Standards, m)
		}
		s.State = StateBuildCurve
		return s, nil
	}
}

// buildCurveTask turns the standards into points and fits a curve. A fit
// failure is not fatal here: PROCESSING runs the acceptance gate, which
// reports it as an issue.
func (o *Orchestrator) buildCurveTask() task {
	engine := o.engine
	return func(ctx context.Context, s *Session) (*Session, error) {
		points, sigma, err := engine.MeasureStandards(s.Params, s.DeviceProfile, s.DarkNoise, s.Ref1, s.Standards, s.Params.Standards)
		if err != nil {
			return nil, err
		}
		s.Points = points
		s.SigmaBlank = sigma
		s.Curve = nil
		if fit, err := engine.FitStandards(points, sigma); err == nil {
			curve := fit.Curve
			s.Curve = &curve
		} else {
			logf("curve fit deferred to acceptance gate: %v", err)
		}
		s.CurveBuilt = true
		s.State = StateAcqSample
		return s, nil
	}
}

func (o *Orchestrator) processingTask() task {
	engine := o.engine
	curves := o.curves
	quantifier := o.quantifier
	return func(ctx context.Context, s *Session) (*Session, error) {
		const op = "processing"
		curve := s.Curve
		if s.CurveBuilt {
			opts := engine.FitOptions()
			opts.SigmaBlank = s.SigmaBlank
			acc := quality.AcceptCalibration(s.Points, opts, engine.Limits())
			if err := acc.Err(); err != nil {
				return nil, err
			}
			curve = acc.Curve
		} else if curve == nil && curves != nil {
			hash := ""
			if s.DeviceProfile != nil {
				hash = s.DeviceProfile.DeviceHash
			}
			latest, err := curves.LoadCurves(ctx, hash, 1)
			if err != nil {
				return nil, classify(spectro.ErrPersistence, "load curve", err)
			}
			if len(latest) > 0 {
				curve = latest[0]
			}
		}
		if curve == nil {
			return nil, spectro.Errorf(spectro.ErrComputation, op, "no calibration curve available")
		}
		curve = curve.Clone()
		if curve.LambdaNm == 0 {
			curve.LambdaNm = s.Params.LambdaNm
		}
		if curve.DeviceHash == "" && s.DeviceProfile != nil {
			curve.DeviceHash = s.DeviceProfile.DeviceHash
		}

		if quantifier == nil {
			return nil, spectro.Errorf(spectro.ErrComputation, op, "no quantifier configured")
		}
		strategy := hybrid.StrategyAuto
		if s.Params.UseLocalCore {
			strategy = hybrid.StrategyLocal
		}
		out, err := quantifier.Quantify(ctx, hybrid.Input{
			Params:        s.Params,
			DeviceProfile: s.DeviceProfile,
			Acquisition:   analysisAcquisition(s),
			Curve:         curve,
		}, strategy)
		if err != nil {
			return nil, classify(spectro.ErrComputation, op, err)
		}
		s.Curve = curve
		s.Results = &out.Result
		s.Source = out.Source
		s.State = StateResults
		return s, nil
	}
}

func (o *Orchestrator) qaSaveTask() task {
	reports := o.reports
	return func(ctx context.Context, s *Session) (*Session, error) {
		if reports != nil && s.Results != nil {
			report := &spectro.AnalysisReport{
				Params:    s.Params,
				Result:    *s.Results,
				Source:    s.Source,
				Curve:     s.Curve,
				Standards: s.Points,
			}
			if s.DeviceProfile != nil {
				report.DeviceHash = s.DeviceProfile.DeviceHash
			}
			id, err := reports.SaveAnalysisReport(ctx, report)
			if err != nil {
				return nil, classify(spectro.ErrPersistence, "save report", err)
			}
			s.ReportID = id
		}
		s.State = StateDone
		return s, nil
	}
}

func (o *Orchestrator) saveProfileTask() task {
	profiles := o.profiles
	return func(ctx context.Context, s *Session) (*Session, error) {
		if profiles == nil || s.DeviceProfile == nil {
			return nil, spectro.Errorf(spectro.ErrPersistence, "save profile", "no profile or profile store")
		}
		if err := profiles.Save(ctx, s.DeviceProfile); err != nil {
			return nil, classify(spectro.ErrPersistence, "save profile", err)
		}
		s.Err = nil
		return s, nil
	}
}

func (o *Orchestrator) saveCurveTask() task {
	curves := o.curves
	return func(ctx context.Context, s *Session) (*Session, error) {
		if curves == nil || s.Curve == nil {
			return nil, spectro.Errorf(spectro.ErrPersistence, "save curve", "no curve or curve store")
		}
		id, err := curves.AddCurve(ctx, s.Curve)
		if err != nil {
			return nil, classify(spectro.ErrPersistence, "save curve", err)
		}
		s.Curve.ID = id
		s.Err = nil
		return s, nil
	}
}

func analysisAcquisition(s *Session) analysis.Acquisition {
	return analysis.Acquisition{
		DarkNoise:  s.DarkNoise,
		WhiteNoise: s.WhiteNoise,
		Ref1:       s.Ref1,
		Sample:     s.Sample,
		Ref2:       s.Ref2,
	}
}
