package apiserver

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
)

const (
	defaultWindowMinutes = 60
	minWindowMinutes     = 1
	maxWindowMinutes     = 1440
)

// handleFleetBurn computes the current burn rate for every active service
// over one window. Services that cannot be computed are skipped so one bad
// apple never empties the fleet view.
func (s *Server) handleFleetBurn(w http.ResponseWriter, r *http.Request) {
	window, err := queryInt(r, "window_minutes", defaultWindowMinutes, minWindowMinutes, maxWindowMinutes)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	services, err := s.deps.Store.ActiveServices(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	results := make([]models.BurnRateComputation, 0, len(services))
	for i := range services {
		c, err := s.deps.Burn.Compute(r.Context(), services[i].ID, window)
		if err != nil {
			s.logger.Warn("Fleet burn view skipped a service",
				zap.String("service", services[i].Name),
				zap.Error(err),
			)
			continue
		}
		results = append(results, *c)
	}

	s.respondJSON(w, http.StatusOK, results)
}

func (s *Server) handleBurnCurrent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "serviceID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	window, err := queryInt(r, "window_minutes", defaultWindowMinutes, minWindowMinutes, maxWindowMinutes)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	c, err := s.deps.Burn.Compute(r.Context(), id, window)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleBurnHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "serviceID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	hours, err := queryInt(r, "hours", defaultHistoryHours, 1, maxHistoryHours)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	report, err := s.deps.Burn.HistoryReport(r.Context(), id, hours)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleBurnWeighted(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "serviceID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	weighted, err := s.deps.Burn.Weighted(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, weighted)
}

func (s *Server) handleBurnStatistics(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "serviceID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	hours, err := queryInt(r, "hours", defaultHistoryHours, 1, maxHistoryHours)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	stats, err := s.deps.Burn.Statistics(r.Context(), id, hours)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSLOStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "serviceID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	status, err := s.deps.SLO.ServiceStatus(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleGlobalCompliance(w http.ResponseWriter, r *http.Request) {
	compliance, err := s.deps.SLO.GlobalCompliance(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, compliance)
}

func (s *Server) handleAllForecasts(w http.ResponseWriter, r *http.Request) {
	forecasts, err := s.deps.Forecast.AllForecasts(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, forecasts)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "serviceID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	fc, err := s.deps.Forecast.Forecast(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, fc)
}

// handleNearestExhaustion keeps the "all clear" answer a 200: a fleet with
// no exhaustion in sight is a healthy result, not a missing resource.
func (s *Server) handleNearestExhaustion(w http.ResponseWriter, r *http.Request) {
	nearest, err := s.deps.Forecast.NearestExhaustion(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if nearest == nil {
		s.respondJSON(w, http.StatusOK, map[string]any{
			"message":                  "No services with imminent budget exhaustion",
			"service_name":             nil,
			"time_to_exhaustion_hours": nil,
		})
		return
	}
	s.respondJSON(w, http.StatusOK, nearest)
}
