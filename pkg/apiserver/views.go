package apiserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
)

func (s *Server) handleDashboardOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.deps.Dashboard.Overview(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, overview)
}

func (s *Server) handleDashboardHeatmap(w http.ResponseWriter, r *http.Request) {
	hours, err := queryInt(r, "hours", defaultHistoryHours, 1, maxHistoryHours)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	interval, err := queryInt(r, "interval_hours", 1, 1, 24)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	heatmap, err := s.deps.Dashboard.Heatmap(r.Context(), hours, interval)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, heatmap)
}

func (s *Server) handleExecutiveSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.Narrative.Summary(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleServiceNarrative(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "serviceID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	narrative, err := s.deps.Narrative.ServiceSummary(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, narrative)
}

func (s *Server) handleNarrativeReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "serviceID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	report, err := s.deps.Narrative.Report(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(report)) //nolint:errcheck
}

// handleGetConfig merges the live tunables snapshot with the persisted
// overrides so operators see both what the engines read now and what
// survives a restart.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	overrides, err := s.deps.Store.ListSystemConfig(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	t := s.deps.Runtime.Tunables()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"thresholds": map[string]float64{
			"burn_rate_safe":    t.Thresholds.BurnRateSafe,
			"burn_rate_observe": t.Thresholds.BurnRateObserve,
			"burn_rate_danger":  t.Thresholds.BurnRateDanger,
			"burn_rate_freeze":  t.Thresholds.BurnRateFreeze,
			"budget_observe":    t.Thresholds.BudgetObserve,
			"budget_danger":     t.Thresholds.BudgetDanger,
			"budget_freeze":     t.Thresholds.BudgetFreeze,
		},
		"release_gate": map[string]float64{
			"burn_rate_threshold": t.ReleaseGate.BurnRateThreshold,
			"budget_threshold":    t.ReleaseGate.BudgetThreshold,
		},
		"alert_cooldown_minutes": int(t.AlertCooldown.Minutes()),
		"overrides":              overrides,
	})
}

func (s *Server) handleRiskThresholds(w http.ResponseWriter, r *http.Request) {
	t := s.deps.Runtime.Tunables()

	type riskRow struct {
		Level             string  `json:"level"`
		MinBurnRate       float64 `json:"min_burn_rate"`
		MinBudgetConsumed float64 `json:"min_budget_consumed"`
		Color             string  `json:"color"`
		Action            string  `json:"action"`
	}
	rows := []riskRow{
		{models.RiskSafe.String(), 0, 0, models.RiskSafe.Color(), models.RiskSafe.Action()},
		{models.RiskObserve.String(), t.Thresholds.BurnRateObserve, t.Thresholds.BudgetObserve, models.RiskObserve.Color(), models.RiskObserve.Action()},
		{models.RiskDanger.String(), t.Thresholds.BurnRateDanger, t.Thresholds.BudgetDanger, models.RiskDanger.Color(), models.RiskDanger.Action()},
		{models.RiskFreeze.String(), t.Thresholds.BurnRateFreeze, t.Thresholds.BudgetFreeze, models.RiskFreeze.Color(), models.RiskFreeze.Action()},
	}

	s.respondJSON(w, http.StatusOK, map[string]any{"risk_levels": rows})
}

type patchConfigRequest struct {
	Value     string  `json:"value" validate:"required"`
	UpdatedBy *string `json:"updated_by,omitempty"`
}

// handlePatchConfig persists one override and applies it to the live
// snapshot when the key is hot-tunable. Keys read only at startup persist
// but report applied=false.
func (s *Server) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req patchConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.validateStruct(&req); err != nil {
		s.respondError(w, r, err)
		return
	}

	existing, err := s.deps.Store.SystemConfigByKey(r.Context(), key)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := checkValueType(existing.ValueType, req.Value); err != nil {
		s.respondError(w, r, err)
		return
	}

	updated, err := s.deps.Store.UpsertSystemConfig(r.Context(), key, req.Value, existing.ValueType, existing.Description, req.UpdatedBy)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	applied, err := s.deps.Runtime.ApplyOverride(key, req.Value)
	if err != nil {
		// The value already passed the type check; an apply failure
		// means the persisted row and the live snapshot disagree.
		s.respondError(w, r, models.Internal("", err))
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"config":  updated,
		"applied": applied,
	})
}

func checkValueType(valueType, value string) error {
	switch valueType {
	case "float":
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return models.InvalidInput("value %q is not a valid float", value)
		}
	case "int":
		if _, err := strconv.Atoi(value); err != nil {
			return models.InvalidInput("value %q is not a valid int", value)
		}
	case "bool":
		if _, err := strconv.ParseBool(value); err != nil {
			return models.InvalidInput("value %q is not a valid bool", value)
		}
	}
	return nil
}
