// Package spectro holds the data model shared by the absorbance engine, the
// acquisition orchestrator and the persistence layer.
package spectro

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Matrix is a burst of frames; each frame is the per-column intensity
// profile extracted from the ROI. All frames of a burst share length.
type Matrix [][]float64

// Frames returns the number of frames in the burst.
func (m Matrix) Frames() int { return len(m) }

// Points returns the per-frame sample count, or 0 for an empty burst.
func (m Matrix) Points() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Validate checks that the burst is non-empty and rectangular.
func (m Matrix) Validate() error {
	if len(m) == 0 {
		return fmt.Errorf("burst has no frames")
	}
	n := len(m[0])
	if n == 0 {
		return fmt.Errorf("frame 0 has no points")
	}
	for i, f := range m {
		if len(f) != n {
			return fmt.Errorf("frame %d has %d points, want %d", i, len(f), n)
		}
	}
	return nil
}

// Clone returns a deep copy of the burst.
func (m Matrix) Clone() Matrix {
	if m == nil {
		return nil
	}
	out := make(Matrix, len(m))
	for i, f := range m {
		out[i] = append([]float64(nil), f...)
	}
	return out
}

// Polynomial maps a sensor column index to a wavelength in nanometers:
// λ(x) = A0 + A1·x + A2·x².
type Polynomial struct {
	A0 float64 `json:"a0"`
	A1 float64 `json:"a1"`
	A2 float64 `json:"a2"`
}

// At evaluates the polynomial at column x.
func (p Polynomial) At(x float64) float64 {
	return p.A0 + p.A1*x + p.A2*x*x
}

// ROI is the sensor sub-window used for spectral extraction.
type ROI struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// CameraMeta is optional camera metadata recorded during device calibration.
type CameraMeta struct {
	Model      string   `json:"model,omitempty"`
	ExposureMs *float64 `json:"exposure_ms,omitempty"`
	ISO        *int     `json:"iso,omitempty"`
	Width      int      `json:"width,omitempty"`
	Height     int      `json:"height,omitempty"`
}

// DeviceProfile is the wavelength calibration of one device. It is immutable
// for the duration of an acquisition session.
type DeviceProfile struct {
	SchemaVersion     int         `json:"schema_version"`
	DeviceHash        string      `json:"device_hash"`
	PixelToWavelength Polynomial  `json:"pixel_to_wavelength"`
	ROI               ROI         `json:"roi"`
	RMSENm            *float64    `json:"rmse_nm,omitempty"`
	Camera            *CameraMeta `json:"camera,omitempty"`
	UpdatedAt         int64       `json:"updated_at,omitempty"`
}

// Clone returns a deep copy of the profile.
func (p *DeviceProfile) Clone() *DeviceProfile {
	if p == nil {
		return nil
	}
	cp := *p
	if p.RMSENm != nil {
		v := *p.RMSENm
		cp.RMSENm = &v
	}
	if p.Camera != nil {
		cam := *p.Camera
		if cam.ExposureMs != nil {
			v := *cam.ExposureMs
			cam.ExposureMs = &v
		}
		if cam.ISO != nil {
			v := *cam.ISO
			cam.ISO = &v
		}
		cp.Camera = &cam
	}
	return &cp
}

// StandardsPoint is one calibration standard: known concentration and its
// measured absorbance.
type StandardsPoint struct {
	C     float64  `json:"C"`
	AMean float64  `json:"A_mean"`
	ASD   *float64 `json:"A_sd,omitempty"`
}

// Range bounds the concentrations where curve inversion is trustworthy.
type Range struct {
	CMin float64 `json:"cmin"`
	CMax float64 `json:"cmax"`
}

// Contains reports whether c lies within the closed range.
func (r Range) Contains(c float64) bool {
	return c >= r.CMin && c <= r.CMax
}

// CalibrationCurve is a linear absorbance-vs-concentration model A = M·C + B.
type CalibrationCurve struct {
	ID          string   `json:"id,omitempty"`
	DeviceHash  string   `json:"device_hash,omitempty"`
	LambdaNm    float64  `json:"lambda_nm,omitempty"`
	M           float64  `json:"m"`
	B           float64  `json:"b"`
	R2          *float64 `json:"R2,omitempty"`
	SEE         *float64 `json:"SEE,omitempty"`
	SM          *float64 `json:"s_m,omitempty"`
	SB          *float64 `json:"s_b,omitempty"`
	LOD         *float64 `json:"LOD,omitempty"`
	LOQ         *float64 `json:"LOQ,omitempty"`
	Range       *Range   `json:"range,omitempty"`
	WeightsUsed bool     `json:"weights_used,omitempty"`
	CreatedAt   int64    `json:"created_at,omitempty"`
}

// Valid reports whether the slope is finite and non-zero.
func (c *CalibrationCurve) Valid() bool {
	return c != nil && !math.IsNaN(c.M) && !math.IsInf(c.M, 0) && c.M != 0 &&
		!math.IsNaN(c.B) && !math.IsInf(c.B, 0)
}

// Clone returns a deep copy of the curve.
func (c *CalibrationCurve) Clone() *CalibrationCurve {
	if c == nil {
		return nil
	}
	cp := *c
	cp.R2 = cloneFloat(c.R2)
	cp.SEE = cloneFloat(c.SEE)
	cp.SM = cloneFloat(c.SM)
	cp.SB = cloneFloat(c.SB)
	cp.LOD = cloneFloat(c.LOD)
	cp.LOQ = cloneFloat(c.LOQ)
	if c.Range != nil {
		r := *c.Range
		cp.Range = &r
	}
	return &cp
}

// Interval is a closed confidence interval.
type Interval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// QAFlags summarises post-analysis quality checks.
type QAFlags struct {
	Saturation bool     `json:"saturation"`
	Outliers   int      `json:"outliers"`
	InRange    bool     `json:"in_range"`
	Drift      bool     `json:"drift"`
	Notes      []string `json:"notes,omitempty"`
}

// LocalQuantResult is the final analysis output. CV is NaN when the mean
// absorbance is ~0 and is encoded as JSON null.
type LocalQuantResult struct {
	AMean float64           `json:"A_mean"`
	ASD   float64           `json:"A_sd"`
	CV    float64           `json:"CV"`
	C     float64           `json:"C"`
	CI95  *Interval         `json:"CI95,omitempty"`
	QA    QAFlags           `json:"QA"`
	Calib *CalibrationCurve `json:"calib,omitempty"`
}

type localQuantResultJSON struct {
	AMean float64           `json:"A_mean"`
	ASD   float64           `json:"A_sd"`
	CV    *float64          `json:"CV"`
	C     float64           `json:"C"`
	CI95  *Interval         `json:"CI95,omitempty"`
	QA    QAFlags           `json:"QA"`
	Calib *CalibrationCurve `json:"calib,omitempty"`
}

// MarshalJSON encodes a NaN or infinite CV as null.
func (r LocalQuantResult) MarshalJSON() ([]byte, error) {
	out := localQuantResultJSON{
		AMean: r.AMean,
		ASD:   r.ASD,
		C:     r.C,
		CI95:  r.CI95,
		QA:    r.QA,
		Calib: r.Calib,
	}
	if !math.IsNaN(r.CV) && !math.IsInf(r.CV, 0) {
		cv := r.CV
		out.CV = &cv
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a null CV as NaN.
func (r *LocalQuantResult) UnmarshalJSON(data []byte) error {
	var in localQuantResultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = LocalQuantResult{
		AMean: in.AMean,
		ASD:   in.ASD,
		CV:    math.NaN(),
		C:     in.C,
		CI95:  in.CI95,
		QA:    in.QA,
		Calib: in.Calib,
	}
	if in.CV != nil {
		r.CV = *in.CV
	}
	return nil
}

// Clone returns a deep copy of the result.
func (r *LocalQuantResult) Clone() *LocalQuantResult {
	if r == nil {
		return nil
	}
	cp := *r
	if r.CI95 != nil {
		ci := *r.CI95
		cp.CI95 = &ci
	}
	cp.QA.Notes = append([]string(nil), r.QA.Notes...)
	cp.Calib = r.Calib.Clone()
	return &cp
}

// AnalysisReport is the persisted record of one completed analysis.
type AnalysisReport struct {
	ID         string            `json:"id"`
	CreatedAt  time.Time         `json:"created_at"`
	DeviceHash string            `json:"device_hash,omitempty"`
	Params     AnalysisParams    `json:"params"`
	Result     LocalQuantResult  `json:"result"`
	Source     string            `json:"source"`
	Curve      *CalibrationCurve `json:"curve,omitempty"`
	Standards  []StandardsPoint  `json:"standards,omitempty"`
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	x := *v
	return &x
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
