package api

import (
	"net/http"

	"github.com/banshee-data/absorbance.report/internal/analysis"
	"github.com/banshee-data/absorbance.report/internal/httputil"
	"github.com/banshee-data/absorbance.report/internal/hybrid"
	"github.com/banshee-data/absorbance.report/internal/monitoring"
	"github.com/banshee-data/absorbance.report/internal/quality"
	"github.com/banshee-data/absorbance.report/internal/version"
)

// handleQuantify runs the local core on a posted analysis.Input and answers
// with a hybrid.Outcome whose source is "api". When the request carries no
// curve, the newest stored curve for the device is used.
func (s *Server) handleQuantify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var in analysis.Input
	if err := decodeJSON(r, w, &in); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if in.Curve == nil && s.curves != nil && in.DeviceProfile != nil {
		latest, err := s.curves.LoadCurves(r.Context(), in.DeviceProfile.DeviceHash, 1)
		if err != nil {
			monitoring.Logf("[api] load latest curve for %s: %v", in.DeviceProfile.DeviceHash, err)
		} else if len(latest) > 0 {
			in.Curve = latest[0]
		}
	}

	out, err := s.engine.Quantify(in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, hybrid.Outcome{Result: out.Result, Source: hybrid.SourceAPI})
}

type limitsResponse struct {
	MinStandards    int     `json:"min_standards"`
	AbsorbanceMin   float64 `json:"absorbance_min"`
	AbsorbanceMax   float64 `json:"absorbance_max"`
	R2Min           float64 `json:"r2_min"`
	MaxRMSENm       float64 `json:"max_rmse_nm"`
	DriftThreshold  float64 `json:"drift_threshold"`
	MinDynamicRange float64 `json:"min_dynamic_range"`
}

type configResponse struct {
	Limits                 limitsResponse `json:"limits"`
	HeteroscedasticityCorr float64        `json:"heteroscedasticity_corr"`
}

func newLimitsResponse(l quality.Limits) limitsResponse {
	return limitsResponse{
		MinStandards:    l.MinStandards,
		AbsorbanceMin:   l.AbsorbanceMin,
		AbsorbanceMax:   l.AbsorbanceMax,
		R2Min:           l.R2Min,
		MaxRMSENm:       l.MaxRMSENm,
		DriftThreshold:  l.DriftThreshold,
		MinDynamicRange: l.MinDynamicRange,
	}
}

// showConfig reports the acceptance thresholds the engine applies.
func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, configResponse{
		Limits:                 newLimitsResponse(s.engine.Limits()),
		HeteroscedasticityCorr: s.engine.FitOptions().HeteroscedasticityCorr,
	})
}

func showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, version.Get())
}
