// Package acquisition drives one absorbance analysis session as a finite
// state machine: device preflight, burst capture, optional calibration
// curve construction, quantification and persistence.
package acquisition

import (
	"errors"

	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// State names a node of the acquisition state machine.
type State string

const (
	StateChooseType        State = "CHOOSE_TYPE"
	StateParams            State = "PARAMS"
	StatePreflight         State = "PREFLIGHT"
	StateDecideCalibDevice State = "DECIDE_CALIB_DEVICE"
	StateCalibDevice       State = "CALIB_DEVICE"
	StateAcqDarkNoise      State = "ACQ_DARK_NOISE"
	StateAcqWhiteNoise     State = "ACQ_WHITE_NOISE"
	StateAcqRef1           State = "ACQ_REF1"
	StateDecideCurve       State = "DECIDE_CURVE"
	StateCalibCurve        State = "CALIB_CURVE"
	StateBuildCurve        State = "BUILD_CURVE"
	StateAcqSample         State = "ACQ_SAMPLE"
	StateAcqRef2           State = "ACQ_REF2"
	StateProcessing        State = "PROCESSING"
	StateResults           State = "RESULTS"
	StateQASave            State = "QA_SAVE"
	StateDone              State = "DONE"
)

// Analysis types accepted by CHOOSE_TYPE.
const (
	TypeQuantitative = "quantitative"
	TypeKinetic      = "kinetic"
)

// EventType names an input to the state machine.
type EventType string

const (
	EventChooseType    EventType = "CHOOSE_TYPE"
	EventSubmitParams  EventType = "SUBMIT_PARAMS"
	EventSupplyProfile EventType = "SUPPLY_PROFILE"
	EventSkip          EventType = "SKIP"
	EventRetry         EventType = "RETRY"
	EventSaveProfile   EventType = "SAVE_PROFILE"
	EventSaveCurve     EventType = "SAVE_CURVE"
	EventFinish        EventType = "FINISH"
	EventReset         EventType = "RESET"
)

// Event is an input to the state machine. Only the payload fields relevant
// to Type are read.
type Event struct {
	Type         EventType
	AnalysisType string
	Params       *spectro.AnalysisParams
	Curve        *spectro.CalibrationCurve
	Profile      *spectro.DeviceProfile
}

// ChooseType selects the analysis type.
func ChooseType(t string) Event { return Event{Type: EventChooseType, AnalysisType: t} }

// SubmitParams submits the analysis parameters. curve is used when the
// session does not build its own; it may be nil.
func SubmitParams(p spectro.AnalysisParams, curve *spectro.CalibrationCurve) Event {
	return Event{Type: EventSubmitParams, Params: &p, Curve: curve}
}

// SupplyProfile provides a device profile while in CALIB_DEVICE.
func SupplyProfile(p *spectro.DeviceProfile) Event {
	return Event{Type: EventSupplyProfile, Profile: p}
}

// Skip leaves CALIB_DEVICE without a profile.
func Skip() Event { return Event{Type: EventSkip} }

// Retry re-runs the failed stage with the same inputs.
func Retry() Event { return Event{Type: EventRetry} }

// SaveProfile persists the session device profile.
func SaveProfile() Event { return Event{Type: EventSaveProfile} }

// SaveCurve persists the session calibration curve.
func SaveCurve() Event { return Event{Type: EventSaveCurve} }

// Finish persists the analysis report and completes the session.
func Finish() Event { return Event{Type: EventFinish} }

// Reset abandons the session, cancelling any in-flight stage.
func Reset() Event { return Event{Type: EventReset} }

var (
	// ErrBusy is returned for any event other than RESET while a stage is
	// in flight.
	ErrBusy = errors.New("acquisition: stage in flight")
	// ErrInvalidEvent is returned for an event the current state does not
	// accept.
	ErrInvalidEvent = errors.New("acquisition: event not accepted in current state")
)

// captureStages maps each capture state to the state entered on success.
var captureStages = map[State]State{
	StateAcqDarkNoise:  StateAcqWhiteNoise,
	StateAcqWhiteNoise: StateAcqRef1,
	StateAcqRef1:       StateDecideCurve,
	StateAcqSample:     StateAcqRef2,
	StateAcqRef2:       StateProcessing,
}

// taskStates run an in-flight task on entry.
func taskState(s State) bool {
	if _, ok := captureStages[s]; ok {
		return true
	}
	switch s {
	case StatePreflight, StateCalibCurve, StateBuildCurve, StateProcessing, StateQASave:
		return true
	}
	return false
}
