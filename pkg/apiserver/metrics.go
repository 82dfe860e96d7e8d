package apiserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/simulator"
)

const (
	defaultHistoryHours  = 24
	maxHistoryHours      = 168
	defaultHistoryLimit  = 1000
	maxHistoryLimit      = 10000
	defaultRetentionDays = 30
	maxRetentionDays     = 365
	defaultChaosLevel    = 0.2
)

type ingestRequest struct {
	Metrics []models.MetricSnapshot `json:"metrics" validate:"required,min=1,dive"`
}

func (s *Server) handleIngestMetrics(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.validateStruct(&req); err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.deps.Ingest.Ingest(r.Context(), req.Metrics)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"processed": result.Processed,
		"errors":    result.Errors,
		"message":   fmt.Sprintf("Successfully ingested %d metrics", result.Processed),
	})
}

func (s *Server) handleMetricHistory(w http.ResponseWriter, r *http.Request) {
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
	limit, err := queryInt(r, "limit", defaultHistoryLimit, 1, maxHistoryLimit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	metrics, err := s.deps.Ingest.History(r.Context(), id, hours, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleMetricAggregated(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "serviceID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	window, err := queryInt(r, "window_minutes", 60, 1, 1440)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	agg, err := s.deps.Ingest.Aggregated(r.Context(), id, window)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, agg)
}

// handleSimulate synthesizes a roster history and pushes it through the
// regular ingestion path, so simulated data exercises exactly the pipeline
// real data would.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	hours, err := queryInt(r, "hours", 24, 1, 168)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	intervalSeconds, err := queryInt(r, "interval_seconds", 60, 10, 3600)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	chaos, err := queryFloat(r, "chaos_level", defaultChaosLevel, 0, 1)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	sim := simulator.New(chaos)
	snapshots := sim.GenerateHistorical(hours, intervalSeconds)

	result, err := s.deps.Ingest.Ingest(r.Context(), snapshots)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"message":           fmt.Sprintf("Generated %d hours of simulated data", hours),
		"metrics_generated": len(snapshots),
		"processed":         result.Processed,
		"errors":            result.Errors,
		"chaos_level":       chaos,
	})
}

func (s *Server) handleSimulateSnapshot(w http.ResponseWriter, r *http.Request) {
	chaos, err := queryFloat(r, "chaos_level", defaultChaosLevel, 0, 1)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	now := time.Now().UTC()
	sim := simulator.New(chaos)
	snapshots := sim.GenerateSnapshot(now)

	result, err := s.deps.Ingest.Ingest(r.Context(), snapshots)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"message":   "Snapshot generated",
		"services":  len(snapshots),
		"processed": result.Processed,
		"errors":    result.Errors,
		"timestamp": now,
	})
}

func (s *Server) handleCleanupMetrics(w http.ResponseWriter, r *http.Request) {
	retentionDays, err := queryInt(r, "retention_days", defaultRetentionDays, 1, maxRetentionDays)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	deleted, err := s.deps.Ingest.Cleanup(r.Context(), retentionDays)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"message":         "Cleanup completed",
		"deleted_records": deleted,
		"retention_days":  retentionDays,
	})
}
