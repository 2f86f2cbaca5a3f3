package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/banshee-data/absorbance.report/internal/monitoring"
	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error  string   `json:"error"`
	Kind   string   `json:"kind,omitempty"`
	Issues []string `json:"issues,omitempty"`
}

// WriteJSON writes data as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Logf("[api] failed to encode json response: %v", err)
	}
}

// WriteJSONError writes {"error": msg} with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorBody{Error: msg})
}

// WriteError maps a classified error to a status code and writes it with
// its kind and any calibration issues.
func WriteError(w http.ResponseWriter, err error) {
	kind := spectro.KindOf(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, spectro.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, spectro.ErrDeviceProfileMissing):
		status = http.StatusPreconditionFailed
	case errors.Is(err, spectro.ErrComputation), errors.Is(err, spectro.ErrCalibrationRejected):
		status = http.StatusUnprocessableEntity
	}
	body := ErrorBody{Error: err.Error(), Issues: spectro.IssuesOf(err)}
	if kind != nil {
		body.Kind = kind.Error()
	}
	WriteJSON(w, status, body)
}

// MethodNotAllowed writes a 405 Method Not Allowed response.
func MethodNotAllowed(w http.ResponseWriter) {
	WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// BadRequest writes a 400 Bad Request response with the given message.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusBadRequest, msg)
}

// NotFound writes a 404 Not Found response.
func NotFound(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusNotFound, msg)
}
