package spectro

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Use errors.Is against these to classify a failure.
var (
	ErrValidation           = errors.New("validation error")
	ErrDeviceProfileMissing = errors.New("device profile missing")
	ErrAcquisition          = errors.New("acquisition failure")
	ErrCalibrationRejected  = errors.New("calibration rejected")
	ErrComputation          = errors.New("computation error")
	ErrPersistence          = errors.New("persistence error")
)

// Error is a classified failure. Kind is one of the Err* sentinels above.
// Issues carries the acceptance-gate findings for ErrCalibrationRejected.
type Error struct {
	Kind   error
	Op     string
	Issues []string
	Err    error
}

// NewError builds an *Error of the given kind wrapping err.
func NewError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error of the given kind with a formatted cause.
func Errorf(kind error, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Rejected builds an ErrCalibrationRejected error carrying the issue list.
func Rejected(op string, issues []string) *Error {
	cp := make([]string, len(issues))
	copy(cp, issues)
	return &Error{Kind: ErrCalibrationRejected, Op: op, Issues: cp}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if len(e.Issues) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Issues, "; "))
		b.WriteString("]")
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// KindOf returns the sentinel kind of err, or nil if err is unclassified.
func KindOf(err error) error {
	for _, k := range []error{
		ErrValidation,
		ErrDeviceProfileMissing,
		ErrAcquisition,
		ErrCalibrationRejected,
		ErrComputation,
		ErrPersistence,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// IssuesOf returns the calibration issues carried by err, if any.
func IssuesOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Issues
	}
	return nil
}
