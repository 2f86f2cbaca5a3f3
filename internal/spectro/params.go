package spectro

import (
	"bytes"
	"encoding/json"
	"math"
)

// DefaultWindowNm is the integration window width used when none is given.
const DefaultWindowNm = 4.0

// AnalysisParams configures one quantitative analysis. The JSON field names
// are the wire format shared with the remote quantification service.
type AnalysisParams struct {
	LambdaNm     float64   `json:"lambda_nm"`
	WindowNm     float64   `json:"window_nm,omitempty"`
	BuildCurve   bool      `json:"build_curve,omitempty"`
	UseLocalCore bool      `json:"useLocalCore,omitempty"`
	DurationSec  *float64  `json:"durationSec,omitempty"`
	IntervalSec  *float64  `json:"intervalSec,omitempty"`
	Standards    []float64 `json:"standards,omitempty"`
}

// Window returns WindowNm, or DefaultWindowNm when unset.
func (p AnalysisParams) Window() float64 {
	if p.WindowNm <= 0 {
		return DefaultWindowNm
	}
	return p.WindowNm
}

// Kinetic reports whether a kinetic (time-series) run was requested.
func (p AnalysisParams) Kinetic() bool {
	return p.DurationSec != nil || p.IntervalSec != nil
}

// Validate checks ranges and returns an ErrValidation error listing every
// problem found.
func (p AnalysisParams) Validate() error {
	var issues []string
	if !finite(p.LambdaNm) || p.LambdaNm <= 0 {
		issues = append(issues, "lambda_nm must be a finite number > 0")
	}
	if !finite(p.WindowNm) || p.WindowNm < 0 {
		issues = append(issues, "window_nm must be a finite number >= 0")
	}
	if p.DurationSec != nil && (!finite(*p.DurationSec) || *p.DurationSec <= 0) {
		issues = append(issues, "durationSec must be > 0")
	}
	if p.IntervalSec != nil {
		if !finite(*p.IntervalSec) || *p.IntervalSec <= 0 {
			issues = append(issues, "intervalSec must be > 0")
		} else if p.DurationSec != nil && *p.IntervalSec > *p.DurationSec {
			issues = append(issues, "intervalSec must not exceed durationSec")
		}
	}
	if p.BuildCurve {
		if len(p.Standards) < 2 {
			issues = append(issues, "build_curve requires at least 2 standard concentrations")
		}
		for _, c := range p.Standards {
			if !finite(c) || c < 0 {
				issues = append(issues, "standard concentrations must be finite and >= 0")
				break
			}
		}
	}
	if len(issues) > 0 {
		return &Error{Kind: ErrValidation, Op: "params", Issues: issues}
	}
	return nil
}

// Clone returns a deep copy of the params.
func (p AnalysisParams) Clone() AnalysisParams {
	cp := p
	cp.DurationSec = cloneFloat(p.DurationSec)
	cp.IntervalSec = cloneFloat(p.IntervalSec)
	cp.Standards = append([]float64(nil), p.Standards...)
	return cp
}

// DecodeParams parses and validates the JSON wire form of AnalysisParams,
// applying the default window. Unknown fields are rejected.
func DecodeParams(data []byte) (AnalysisParams, error) {
	var p AnalysisParams
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return AnalysisParams{}, NewError(ErrValidation, "params", err)
	}
	if err := p.Validate(); err != nil {
		return AnalysisParams{}, err
	}
	if p.WindowNm == 0 {
		p.WindowNm = DefaultWindowNm
	}
	return p, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
