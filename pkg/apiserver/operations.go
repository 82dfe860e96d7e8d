package apiserver

import (
	"net/http"
	"time"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/storage"
)

const (
	defaultFeedLimit   = 50
	maxFeedLimit       = 200
	defaultAlertsLimit = 100
	maxAlertsLimit     = 500
	defaultStatsDays   = 7
	maxStatsDays       = 90
	defaultGateLimit   = 50
	maxGateLimit       = 500
)

// handleReleaseCheck runs the gate. A blocked deployment is still a
// successful check; only a failure to persist the audit record errors.
func (s *Server) handleReleaseCheck(w http.ResponseWriter, r *http.Request) {
	var req models.ReleaseCheckRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.validateStruct(&req); err != nil {
		s.respondError(w, r, err)
		return
	}

	decision, err := s.deps.Gate.Check(r.Context(), &req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, decision)
}

func (s *Server) handleReleaseHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "serviceID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultGateLimit, 1, maxGateLimit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if _, err := s.deps.Store.ServiceByID(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}

	deployments, err := s.deps.Gate.History(r.Context(), &id, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, deployments)
}

func (s *Server) handleReleaseStatistics(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", defaultStatsDays, 1, maxStatsDays)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	stats, err := s.deps.Gate.Statistics(r.Context(), days)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	hours, err := queryInt(r, "hours", defaultHistoryHours, 1, maxHistoryHours)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultAlertsLimit, 1, maxAlertsLimit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	filter := storage.AlertFilter{
		Since: time.Now().UTC().Add(-time.Duration(hours) * time.Hour),
		Limit: limit,
	}

	if name := r.URL.Query().Get("service_name"); name != "" {
		svc, err := s.deps.Store.ServiceByName(r.Context(), name)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		filter.ServiceID = &svc.ID
	}
	if raw := r.URL.Query().Get("severity"); raw != "" {
		sev, err := models.ParseAlertSeverity(raw)
		if err != nil {
			s.respondError(w, r, models.InvalidInput("severity %q is not one of info, warning, critical, emergency", raw))
			return
		}
		filter.Severity = &sev
	}
	if raw := r.URL.Query().Get("acknowledged"); raw != "" {
		ack, err := queryBool(r, "acknowledged", false)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		filter.Acknowledged = &ack
	}

	alerts, err := s.deps.Alerts.List(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var unacknowledged int
	for i := range alerts {
		if !alerts[i].Acknowledged {
			unacknowledged++
		}
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"alerts":         alerts,
		"total":          len(alerts),
		"unacknowledged": unacknowledged,
	})
}

func (s *Server) handleAlertFeed(w http.ResponseWriter, r *http.Request) {
	hours, err := queryInt(r, "hours", defaultHistoryHours, 1, maxHistoryHours)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultFeedLimit, 1, maxFeedLimit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	feed, err := s.deps.Alerts.Feed(r.Context(), hours, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, feed)
}

func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "alertID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	by := r.URL.Query().Get("acknowledged_by")
	if by == "" {
		s.respondError(w, r, models.InvalidInput("acknowledged_by is required"))
		return
	}

	alert, err := s.deps.Alerts.Acknowledge(r.Context(), id, by)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"alert_id":        alert.ID,
		"acknowledged_by": alert.AcknowledgedBy,
		"acknowledged_at": alert.AcknowledgedAt,
	})
}

func (s *Server) handleAcknowledgeBulk(w http.ResponseWriter, r *http.Request) {
	by := r.URL.Query().Get("acknowledged_by")
	if by == "" {
		s.respondError(w, r, models.InvalidInput("acknowledged_by is required"))
		return
	}

	var ids []int64
	if err := decodeJSON(r, &ids); err != nil {
		s.respondError(w, r, err)
		return
	}
	if len(ids) == 0 {
		s.respondError(w, r, models.InvalidInput("at least one alert id is required"))
		return
	}

	updated, err := s.deps.Alerts.AcknowledgeBatch(r.Context(), ids, by)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"updated_count":   updated,
		"acknowledged_by": by,
	})
}

func (s *Server) handleAlertStatistics(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", defaultStatsDays, 1, maxStatsDays)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	stats, err := s.deps.Alerts.Statistics(r.Context(), days)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}
