package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
)

const sloTargetColumns = `id, service_id, name, target_value, window_days,
	error_budget_policy, burn_rate_threshold, critical_burn_rate,
	is_active, created_at, updated_at`

// SLOTargetPatch carries optional SLO target updates.
type SLOTargetPatch struct {
	TargetValue       *float64
	WindowDays        *int
	BurnRateThreshold *float64
	CriticalBurnRate  *float64
	IsActive          *bool
}

// CreateSLOTarget inserts a target. Only one active target per
// (service, name) pair may exist.
func (s *Store) CreateSLOTarget(ctx context.Context, t *models.SLOTarget) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const q = `
		INSERT INTO slo_targets
			(service_id, name, target_value, window_days, error_budget_policy,
			 burn_rate_threshold, critical_burn_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, is_active, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, q,
		t.ServiceID, t.Name, t.TargetValue, t.WindowDays, t.ErrorBudgetPolicy,
		t.BurnRateThreshold, t.CriticalBurnRate).
		Scan(&t.ID, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return &models.Error{
				Kind:    models.ErrKindConflict,
				Message: fmt.Sprintf("Active SLO target '%s' already exists for service %d", t.Name, t.ServiceID),
			}
		}
		return fmt.Errorf("failed to insert SLO target: %w", err)
	}
	return nil
}

// ActiveSLOTarget returns the active target of the given name for a service.
func (s *Store) ActiveSLOTarget(ctx context.Context, serviceID int64, name string) (*models.SLOTarget, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var t models.SLOTarget
	err := s.db.GetContext(ctx, &t,
		`SELECT `+sloTargetColumns+` FROM slo_targets
		 WHERE service_id = $1 AND name = $2 AND is_active`, serviceID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.Error{
			Kind:    models.ErrKindNotFound,
			Message: fmt.Sprintf("no active SLO target '%s' for service %d", name, serviceID),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch SLO target: %w", err)
	}
	return &t, nil
}

// SLOTargets lists a service's targets ordered by name.
func (s *Store) SLOTargets(ctx context.Context, serviceID int64, activeOnly bool) ([]models.SLOTarget, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	q := `SELECT ` + sloTargetColumns + ` FROM slo_targets WHERE service_id = $1`
	if activeOnly {
		q += ` AND is_active`
	}
	q += ` ORDER BY name`

	targets := []models.SLOTarget{}
	if err := s.db.SelectContext(ctx, &targets, q, serviceID); err != nil {
		return nil, fmt.Errorf("failed to list SLO targets: %w", err)
	}
	return targets, nil
}

// SLOTargetByID fetches one target.
func (s *Store) SLOTargetByID(ctx context.Context, id int64) (*models.SLOTarget, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var t models.SLOTarget
	err := s.db.GetContext(ctx, &t,
		`SELECT `+sloTargetColumns+` FROM slo_targets WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.Error{
			Kind:    models.ErrKindNotFound,
			Message: fmt.Sprintf("SLO target %d not found", id),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch SLO target %d: %w", id, err)
	}
	return &t, nil
}

// UpdateSLOTarget applies a partial update and returns the fresh row.
func (s *Store) UpdateSLOTarget(ctx context.Context, id int64, patch SLOTargetPatch) (*models.SLOTarget, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	sets := []string{"updated_at = now()"}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.TargetValue != nil {
		add("target_value", *patch.TargetValue)
	}
	if patch.WindowDays != nil {
		add("window_days", *patch.WindowDays)
	}
	if patch.BurnRateThreshold != nil {
		add("burn_rate_threshold", *patch.BurnRateThreshold)
	}
	if patch.CriticalBurnRate != nil {
		add("critical_burn_rate", *patch.CriticalBurnRate)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}

	args = append(args, id)
	q := fmt.Sprintf(`UPDATE slo_targets SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), sloTargetColumns)

	var t models.SLOTarget
	err := s.db.QueryRowxContext(ctx, q, args...).StructScan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.Error{
			Kind:    models.ErrKindNotFound,
			Message: fmt.Sprintf("SLO target %d not found", id),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update SLO target %d: %w", id, err)
	}
	return &t, nil
}
