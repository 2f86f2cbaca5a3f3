package api

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/banshee-data/absorbance.report/internal/calplot"
	"github.com/banshee-data/absorbance.report/internal/db"
	"github.com/banshee-data/absorbance.report/internal/httputil"
	"github.com/banshee-data/absorbance.report/internal/monitoring"
)

const (
	curvesPrefix  = "/api/v1/curves/"
	reportsPrefix = "/api/v1/reports/"
	plotSuffix    = "/plot.png"
	chartSuffix   = "/chart.html"
)

// writeStoreError answers 404 for missing records and maps everything else
// through httputil.WriteError.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.WriteError(w, err)
}

func storeUnavailable(w http.ResponseWriter, what string) {
	httputil.WriteJSONError(w, http.StatusServiceUnavailable, what+" store not configured")
}

// handleCurves lists curves, newest first, optionally filtered by
// ?device_hash= and capped by ?limit=.
func (s *Server) handleCurves(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.curves == nil {
		storeUnavailable(w, "curve")
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	curves, err := s.curves.LoadCurves(r.Context(), r.URL.Query().Get("device_hash"), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"curves": curves,
		"count":  len(curves),
	})
}

// handleCurveByID handles get and delete for a specific curve.
func (s *Server) handleCurveByID(w http.ResponseWriter, r *http.Request) {
	if s.curves == nil {
		storeUnavailable(w, "curve")
		return
	}
	id := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, curvesPrefix))
	if id == "" || strings.Contains(id, "/") {
		httputil.BadRequest(w, "curve id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		c, err := s.curves.GetCurve(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, c)
	case http.MethodDelete:
		if err := s.curves.DeleteCurve(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		monitoring.Logf("[api] deleted curve %s", id)
		w.WriteHeader(http.StatusNoContent)
	default:
		httputil.MethodNotAllowed(w)
	}
}

// handleReports lists report summaries, newest first.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.reports == nil {
		storeUnavailable(w, "report")
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reports, err := s.reports.ListReports(r.Context(), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
		"count":   len(reports),
	})
}

// handleReportByID returns a full report, its calibration plot when the path
// ends in /plot.png, or an interactive chart page for /chart.html.
func (s *Server) handleReportByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.reports == nil {
		storeUnavailable(w, "report")
		return
	}
	rest := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, reportsPrefix))
	var suffix string
	for _, sfx := range []string{plotSuffix, chartSuffix} {
		if strings.HasSuffix(rest, sfx) {
			suffix = sfx
		}
	}
	id := strings.TrimSuffix(rest, suffix)
	if id == "" || strings.Contains(id, "/") {
		httputil.BadRequest(w, "report id is required")
		return
	}

	report, err := s.reports.GetReport(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if suffix == "" {
		httputil.WriteJSON(w, http.StatusOK, report)
		return
	}

	curve := report.Curve
	if curve == nil {
		curve = report.Result.Calib
	}
	if curve == nil {
		httputil.NotFound(w, "report has no calibration curve")
		return
	}
	plotOpts := calplot.Options{
		Sample: &calplot.SamplePoint{C: report.Result.C, A: report.Result.AMean},
	}
	if suffix == chartSuffix {
		var buf bytes.Buffer
		if err := calplot.RenderHTML(&buf, curve, report.Standards, plotOpts); err != nil {
			httputil.WriteError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
		return
	}
	png, err := calplot.RenderPNG(curve, report.Standards, plotOpts)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		monitoring.Logf("[api] write plot for report %s: %v", id, err)
	}
}
