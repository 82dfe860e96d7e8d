package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
)

const systemConfigColumns = `id, key, value, value_type, description, updated_at, updated_by`

// SystemConfigByKey fetches one tunable row.
func (s *Store) SystemConfigByKey(ctx context.Context, key string) (*models.SystemConfig, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var sc models.SystemConfig
	err := s.db.GetContext(ctx, &sc,
		`SELECT `+systemConfigColumns+` FROM system_config WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.Error{
			Kind:    models.ErrKindNotFound,
			Message: fmt.Sprintf("Config key '%s' not found", key),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch config key %q: %w", key, err)
	}
	return &sc, nil
}

// ListSystemConfig returns every tunable ordered by key.
func (s *Store) ListSystemConfig(ctx context.Context) ([]models.SystemConfig, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows := []models.SystemConfig{}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+systemConfigColumns+` FROM system_config ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list config: %w", err)
	}
	return rows, nil
}

// UpsertSystemConfig creates or replaces a tunable and returns the fresh row.
func (s *Store) UpsertSystemConfig(ctx context.Context, key, value, valueType string, description, updatedBy *string) (*models.SystemConfig, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const q = `
		INSERT INTO system_config (key, value, value_type, description, updated_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			value_type = EXCLUDED.value_type,
			description = COALESCE(EXCLUDED.description, system_config.description),
			updated_at = now(),
			updated_by = EXCLUDED.updated_by
		RETURNING ` + systemConfigColumns

	var sc models.SystemConfig
	err := s.db.QueryRowxContext(ctx, q, key, value, valueType, description, updatedBy).StructScan(&sc)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert config key %q: %w", key, err)
	}
	return &sc, nil
}
