// Package api serves the HTTP JSON API: the remote quantification endpoint
// used by the hybrid "auto" strategy, plus read access to stored curves and
// analysis reports.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/absorbance.report/internal/analysis"
	"github.com/banshee-data/absorbance.report/internal/db"
	"github.com/banshee-data/absorbance.report/internal/hybrid"
	"github.com/banshee-data/absorbance.report/internal/monitoring"
	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// ANSI escape codes for request logging
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// maxRequestBytes bounds a quantify request body.
const maxRequestBytes = 32 << 20

// CurveStore is the curve access the API needs.
type CurveStore interface {
	LoadCurves(ctx context.Context, deviceHash string, limit int) ([]*spectro.CalibrationCurve, error)
	GetCurve(ctx context.Context, id string) (*spectro.CalibrationCurve, error)
	DeleteCurve(ctx context.Context, id string) error
}

// ReportStore is the report access the API needs.
type ReportStore interface {
	ListReports(ctx context.Context, limit int) ([]db.ReportSummary, error)
	GetReport(ctx context.Context, id string) (*spectro.AnalysisReport, error)
}

type Server struct {
	engine  *analysis.Engine
	curves  CurveStore
	reports ReportStore
}

// NewServer creates an API server around the local quantification engine.
// Stores are optional; their routes answer 503 until set.
func NewServer(engine *analysis.Engine) *Server {
	return &Server{engine: engine}
}

// SetCurveStore attaches the curve store.
func (s *Server) SetCurveStore(c CurveStore) { s.curves = c }

// SetReportStore attaches the report store.
func (s *Server) SetReportStore(r ReportStore) { s.reports = r }

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns a mux with every API route mounted.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(hybrid.QuantifyPath, s.handleQuantify)
	mux.HandleFunc("/api/v1/config", s.showConfig)
	mux.HandleFunc("/api/v1/version", showVersion)
	mux.HandleFunc("/api/v1/curves", s.handleCurves)
	mux.HandleFunc("/api/v1/curves/", s.handleCurveByID)
	mux.HandleFunc("/api/v1/reports", s.handleReports)
	mux.HandleFunc("/api/v1/reports/", s.handleReportByID)
	return mux
}

// queryLimit parses ?limit=, returning 0 (store default) when absent.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, spectro.Errorf(spectro.ErrValidation, "limit", "invalid limit %q", raw)
	}
	return n, nil
}

func decodeJSON(r *http.Request, w http.ResponseWriter, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return spectro.NewError(spectro.ErrValidation, "decode request", err)
	}
	return nil
}
