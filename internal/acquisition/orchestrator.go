package acquisition

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/absorbance.report/internal/analysis"
	"github.com/banshee-data/absorbance.report/internal/monitoring"
	"github.com/banshee-data/absorbance.report/internal/quality"
	"github.com/banshee-data/absorbance.report/internal/spectro"
)

var logf = monitoring.Component("acquisition")

// task is the in-flight work of a state. It receives a private copy of the
// session and returns the session to publish. On failure the returned
// session, if any, keeps partial progress.
type task func(ctx context.Context, s *Session) (*Session, error)

// Orchestrator runs one acquisition session. Events are delivered with Send;
// stage work runs on its own goroutine, one stage at a time.
type Orchestrator struct {
	mu sync.Mutex

	session *Session
	busy    bool
	idle    chan struct{} // closed when no stage is in flight
	cancel  context.CancelFunc
	gen     uint64 // bumped by RESET so stale completions are discarded

	engine     *analysis.Engine
	capturer   Capturer
	quantifier Quantifier
	profiles   ProfileStore
	curves     CurveStore
	reports    ReportStore
}

// NewOrchestrator returns an orchestrator in CHOOSE_TYPE. Stores are
// optional and set with the Set* methods.
func NewOrchestrator(engine *analysis.Engine, capturer Capturer, quantifier Quantifier) *Orchestrator {
	if engine == nil {
		engine = analysis.NewEngine(nil)
	}
	idle := make(chan struct{})
	close(idle)
	return &Orchestrator{
		session:    newSession(),
		idle:       idle,
		engine:     engine,
		capturer:   capturer,
		quantifier: quantifier,
	}
}

// SetProfileStore sets the device profile store.
func (o *Orchestrator) SetProfileStore(s ProfileStore) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.profiles = s
}

// SetCurveStore sets the calibration curve store.
func (o *Orchestrator) SetCurveStore(s CurveStore) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.curves = s
}

// SetReportStore sets the analysis report store.
func (o *Orchestrator) SetReportStore(s ReportStore) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reports = s
}

// Snapshot returns a deep copy of the current session.
func (o *Orchestrator) Snapshot() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return *o.session.Clone()
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.State
}

// Busy reports whether a stage is in flight.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

// Wait blocks until no stage is in flight or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	for {
		o.mu.Lock()
		if !o.busy {
			o.mu.Unlock()
			return nil
		}
		ch := o.idle
		o.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Send delivers an event. It returns ErrBusy while a stage is in flight
// (except for RESET), ErrInvalidEvent when the state does not accept the
// event, and the validation error when submitted params or a supplied
// profile are rejected; that error is also stored on the session.
func (o *Orchestrator) Send(ev Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if ev.Type == EventReset {
		o.reset()
		return nil
	}
	if o.busy {
		return ErrBusy
	}

	cur := o.session
	if cur.Failed() {
		if ev.Type != EventRetry {
			return o.invalid(ev)
		}
		next := cur.Clone()
		next.Err = nil
		logf("retry %s", cur.State)
		o.enter(next)
		return nil
	}

	switch {
	case cur.State == StateChooseType && ev.Type == EventChooseType:
		if ev.AnalysisType != TypeQuantitative && ev.AnalysisType != TypeKinetic {
			return spectro.Errorf(spectro.ErrValidation, "choose type", "unknown analysis type %q", ev.AnalysisType)
		}
		next := cur.Clone()
		next.AnalysisType = ev.AnalysisType
		next.State = StateParams
		o.enter(next)

	case cur.State == StateParams && ev.Type == EventSubmitParams:
		next := cur.Clone()
		if ev.Params == nil {
			return spectro.Errorf(spectro.ErrValidation, "submit params", "missing params")
		}
		if err := o.checkParams(cur.AnalysisType, *ev.Params); err != nil {
			next.Err = err
			o.publish(next)
			return err
		}
		next.Params = ev.Params.Clone()
		if next.Params.WindowNm == 0 {
			next.Params.WindowNm = spectro.DefaultWindowNm
		}
		next.Curve = ev.Curve.Clone()
		next.CurveBuilt = false
		next.Err = nil
		next.State = StatePreflight
		o.enter(next)

	case cur.State == StateCalibDevice && ev.Type == EventSupplyProfile:
		next := cur.Clone()
		report, err := quality.Preflight(ev.Profile, o.engine.Limits())
		if err != nil {
			next.Err = err
			o.publish(next)
			return err
		}
		next.DeviceProfile = ev.Profile.Clone()
		next.Preflight = &report
		next.Err = nil
		next.State = StateAcqDarkNoise
		o.enter(next)

	case cur.State == StateCalibDevice && ev.Type == EventSkip:
		next := cur.Clone()
		next.Err = nil
		next.State = StateAcqDarkNoise
		o.enter(next)

	case cur.State == StateResults && ev.Type == EventSaveProfile:
		o.start(cur.Clone(), o.saveProfileTask())

	case cur.State == StateResults && ev.Type == EventSaveCurve:
		o.start(cur.Clone(), o.saveCurveTask())

	case cur.State == StateResults && ev.Type == EventFinish:
		next := cur.Clone()
		next.Err = nil
		next.State = StateQASave
		o.enter(next)

	default:
		return o.invalid(ev)
	}
	return nil
}

func (o *Orchestrator) invalid(ev Event) error {
	return fmt.Errorf("%w: %s in %s", ErrInvalidEvent, ev.Type, o.session.State)
}

func (o *Orchestrator) checkParams(analysisType string, p spectro.AnalysisParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if analysisType == TypeKinetic && (p.DurationSec == nil || p.IntervalSec == nil) {
		return spectro.Errorf(spectro.ErrValidation, "params", "kinetic analysis requires durationSec and intervalSec")
	}
	return nil
}

// reset cancels any in-flight stage and starts a fresh session.
func (o *Orchestrator) reset() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.gen++
	if o.busy {
		o.busy = false
		close(o.idle)
	}
	logf("reset from %s", o.session.State)
	o.session = newSession()
}

// publish swaps in the next session. Callers hold o.mu.
func (o *Orchestrator) publish(next *Session) {
	if next.State != o.session.State {
		logf("%s -> %s", o.session.State, next.State)
	}
	o.session = next
}

// enter publishes next, resolves decision states and starts the state's
// task, if it has one. Callers hold o.mu.
func (o *Orchestrator) enter(next *Session) {
	for next.State == StateDecideCalibDevice || next.State == StateDecideCurve {
		o.publish(next)
		next = next.Clone()
		switch {
		case next.State == StateDecideCalibDevice && next.DeviceProfile == nil:
			next.State = StateCalibDevice
		case next.State == StateDecideCalibDevice:
			next.State = StateAcqDarkNoise
		case next.Params.BuildCurve:
			next.State = StateCalibCurve
		default:
			next.State = StateAcqSample
		}
	}

	t := o.taskFor(next.State)
	if t == nil {
		o.publish(next)
		o.settle()
		return
	}
	o.start(next, t)
}

// start publishes s and runs t on a private copy. Callers hold o.mu.
func (o *Orchestrator) start(s *Session, t task) {
	o.publish(s)
	if !o.busy {
		o.busy = true
		o.idle = make(chan struct{})
	}
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	gen := o.gen
	work := s.Clone()
	state := s.State

	go func() {
		var (
			res *Session
			err error
		)
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = spectro.Errorf(spectro.ErrComputation, string(state), "panic: %v", r)
				}
			}()
			res, err = t(ctx, work)
		}()
		cancel()
		o.complete(gen, state, res, err)
	}()
}

// complete publishes a task outcome unless RESET superseded it.
func (o *Orchestrator) complete(gen uint64, state State, res *Session, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen {
		return
	}
	o.cancel = nil

	if err != nil {
		next := res
		if next == nil {
			next = o.session.Clone()
		}
		next.State = state
		next.Err = err
		if state == StatePreflight {
			if errors.Is(err, spectro.ErrDeviceProfileMissing) {
				next.Err = nil
				next.DeviceProfile = nil
				next.State = StateDecideCalibDevice
				o.enter(next)
				return
			}
			next.State = StateParams
		}
		logf("%s failed: %v", state, err)
		o.publish(next)
		o.settle()
		return
	}
	o.enter(res)
}

// settle marks the machine idle. Callers hold o.mu.
func (o *Orchestrator) settle() {
	if o.busy {
		o.busy = false
		close(o.idle)
	}
}
