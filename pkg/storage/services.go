package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
)

const serviceColumns = `id, name, description, team, tier, is_active, created_at, updated_at`

// ServicePatch carries optional field updates; nil fields are left unchanged.
type ServicePatch struct {
	Name        *string
	Description *string
	Team        *string
	Tier        *int
	IsActive    *bool
}

// CreateService inserts a new service and backfills its generated fields.
func (s *Store) CreateService(ctx context.Context, svc *models.Service) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const q = `
		INSERT INTO services (name, description, team, tier)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, q, svc.Name, svc.Description, svc.Team, svc.Tier).
		Scan(&svc.ID, &svc.IsActive, &svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return &models.Error{
				Kind:    models.ErrKindConflict,
				Service: svc.Name,
				Message: fmt.Sprintf("Service with name '%s' already exists", svc.Name),
			}
		}
		return fmt.Errorf("failed to insert service: %w", err)
	}
	return nil
}

// ServiceByID fetches one service by primary key.
func (s *Store) ServiceByID(ctx context.Context, id int64) (*models.Service, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var svc models.Service
	err := s.db.GetContext(ctx, &svc,
		`SELECT `+serviceColumns+` FROM services WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.UnknownServiceByID(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch service %d: %w", id, err)
	}
	return &svc, nil
}

// ServiceByName fetches one service by its unique name.
func (s *Store) ServiceByName(ctx context.Context, name string) (*models.Service, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var svc models.Service
	err := s.db.GetContext(ctx, &svc,
		`SELECT `+serviceColumns+` FROM services WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.UnknownServiceByName(name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch service %q: %w", name, err)
	}
	return &svc, nil
}

// ListServices returns services ordered by name, optionally restricted to
// active ones.
func (s *Store) ListServices(ctx context.Context, activeOnly bool, offset, limit int) ([]models.Service, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	q := `SELECT ` + serviceColumns + ` FROM services`
	if activeOnly {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY name OFFSET $1 LIMIT $2`

	services := []models.Service{}
	if err := s.db.SelectContext(ctx, &services, q, offset, limit); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

// CountServices reports how many services match the listing filter,
// ignoring pagination.
func (s *Store) CountServices(ctx context.Context, activeOnly bool) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	q := `SELECT COUNT(*) FROM services`
	if activeOnly {
		q += ` WHERE is_active`
	}

	var total int64
	if err := s.db.GetContext(ctx, &total, q); err != nil {
		return 0, fmt.Errorf("failed to count services: %w", err)
	}
	return total, nil
}

// ActiveServices returns every active service ordered by name.
func (s *Store) ActiveServices(ctx context.Context) ([]models.Service, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	services := []models.Service{}
	err := s.db.SelectContext(ctx, &services,
		`SELECT `+serviceColumns+` FROM services WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active services: %w", err)
	}
	return services, nil
}

// UpdateService applies a partial update and returns the fresh row.
func (s *Store) UpdateService(ctx context.Context, id int64, patch ServicePatch) (*models.Service, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	sets := []string{"updated_at = now()"}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Team != nil {
		add("team", *patch.Team)
	}
	if patch.Tier != nil {
		add("tier", *patch.Tier)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}

	args = append(args, id)
	q := fmt.Sprintf(`UPDATE services SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), serviceColumns)

	var svc models.Service
	err := s.db.QueryRowxContext(ctx, q, args...).StructScan(&svc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.UnknownServiceByID(id)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &models.Error{
				Kind:    models.ErrKindConflict,
				Message: fmt.Sprintf("Service with name '%s' already exists", *patch.Name),
			}
		}
		return nil, fmt.Errorf("failed to update service %d: %w", id, err)
	}
	return &svc, nil
}

// DeactivateService soft-deletes a service; history rows are preserved.
func (s *Store) DeactivateService(ctx context.Context, id int64) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE services SET is_active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate service %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.UnknownServiceByID(id)
	}
	return nil
}

// EnsureService returns the service named name, creating it when absent.
// Used by metric ingestion so unseen services register themselves.
func (s *Store) EnsureService(ctx context.Context, name string) (*models.Service, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const q = `
		INSERT INTO services (name, tier)
		VALUES ($1, 2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING ` + serviceColumns

	var svc models.Service
	if err := s.db.QueryRowxContext(ctx, q, name).StructScan(&svc); err != nil {
		return nil, fmt.Errorf("failed to ensure service %q: %w", name, err)
	}
	return &svc, nil
}
