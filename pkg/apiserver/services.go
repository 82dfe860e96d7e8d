package apiserver

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/storage"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

type createServiceRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description *string `json:"description,omitempty"`
	Team        *string `json:"team,omitempty"`
	Tier        *int    `json:"tier,omitempty" validate:"omitempty,gte=1,lte=3"`
}

type patchServiceRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description,omitempty"`
	Team        *string `json:"team,omitempty"`
	Tier        *int    `json:"tier,omitempty" validate:"omitempty,gte=1,lte=3"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var req createServiceRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.validateStruct(&req); err != nil {
		s.respondError(w, r, err)
		return
	}

	tier := 2
	if req.Tier != nil {
		tier = *req.Tier
	}
	svc := &models.Service{
		Name:        req.Name,
		Description: req.Description,
		Team:        req.Team,
		Tier:        tier,
		IsActive:    true,
	}
	if err := s.deps.Store.CreateService(r.Context(), svc); err != nil {
		s.respondError(w, r, err)
		return
	}

	// A fresh service gets the default availability target so the next
	// computation cycle has something to score against. The service
	// itself is already committed; target seeding failing only logs.
	if _, err := s.deps.SLO.CreateDefaultTargets(r.Context(), svc.ID); err != nil {
		s.logger.Warn("Failed to seed default SLO targets",
			zap.Int64("service_id", svc.ID),
			zap.Error(err),
		)
	}

	s.respondJSON(w, http.StatusCreated, svc)
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	includeInactive, err := queryBool(r, "include_inactive", false)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	skip, err := queryInt(r, "skip", 0, 0, 1_000_000)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit, 1, maxListLimit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	activeOnly := !includeInactive
	services, err := s.deps.Store.ListServices(r.Context(), activeOnly, skip, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	total, err := s.deps.Store.CountServices(r.Context(), activeOnly)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"services": services,
		"total":    total,
	})
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "serviceID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	svc, err := s.deps.Store.ServiceByID(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, svc)
}

func (s *Server) handlePatchService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "serviceID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req patchServiceRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.validateStruct(&req); err != nil {
		s.respondError(w, r, err)
		return
	}

	svc, err := s.deps.Store.UpdateService(r.Context(), id, storage.ServicePatch{
		Name:        req.Name,
		Description: req.Description,
		Team:        req.Team,
		Tier:        req.Tier,
		IsActive:    req.IsActive,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, svc)
}

// handleDeleteService deactivates; rows are never destroyed so burn and
// alert history stays auditable.
func (s *Server) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "serviceID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	svc, err := s.deps.Store.ServiceByID(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.deps.Store.DeactivateService(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.ForgetService(svc.Name)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleServiceSLOTargets(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "serviceID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if _, err := s.deps.Store.ServiceByID(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	targets, err := s.deps.Store.SLOTargets(r.Context(), id, false)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, targets)
}
