// Package testutil provides shared test assertions and synthetic burst
// fixtures for the absorbance packages.
package testutil

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertClose fails the test if got differs from want by more than tol.
func AssertClose(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > tol {
		t.Errorf("%s = %v, want %v ± %v", name, got, want, tol)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// ConstantBurst returns frames×points samples all equal to v.
func ConstantBurst(frames, points int, v float64) spectro.Matrix {
	m := make(spectro.Matrix, frames)
	for i := range m {
		row := make([]float64, points)
		for j := range row {
			row[j] = v
		}
		m[i] = row
	}
	return m
}

// BurstFromSeries returns a burst whose frame i has every point equal to
// series[i].
func BurstFromSeries(series []float64, points int) spectro.Matrix {
	m := make(spectro.Matrix, len(series))
	for i, v := range series {
		row := make([]float64, points)
		for j := range row {
			row[j] = v
		}
		m[i] = row
	}
	return m
}

// SampleLevel returns the raw intensity that yields absorbance a against the
// given dark and reference levels: I = dark + (ref−dark)·10^(−a).
func SampleLevel(dark, ref, a float64) float64 {
	return dark + (ref-dark)*math.Pow(10, -a)
}

// LinearProfile returns a device profile with λ(x) = a0 + a1·x over width
// columns.
func LinearProfile(a0, a1 float64, width int) *spectro.DeviceProfile {
	rmse := 0.5
	return &spectro.DeviceProfile{
		SchemaVersion:     spectro.CurrentProfileSchema,
		DeviceHash:        "test-device",
		PixelToWavelength: spectro.Polynomial{A0: a0, A1: a1},
		ROI:               spectro.ROI{W: width, H: 10},
		RMSENm:            &rmse,
		Camera:            &spectro.CameraMeta{Model: "test"},
	}
}
