package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
)

const deploymentColumns = `id, service_id, deployment_id, version, requested_at,
	requested_by, allowed, blocked_reason, risk_level_at_request,
	burn_rate_at_request, status, completed_at`

// GateAggregates summarize past release gate decisions.
type GateAggregates struct {
	Total            int64
	Blocked          int64
	RiskDistribution map[string]int64
}

// InsertDeployment records one release gate decision. The service id is
// null when the gate was asked about a service it does not know.
func (s *Store) InsertDeployment(ctx context.Context, d *models.Deployment) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const q = `
		INSERT INTO deployments
			(service_id, deployment_id, version, requested_by, allowed,
			 blocked_reason, risk_level_at_request, burn_rate_at_request, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, requested_at`

	err := s.db.QueryRowxContext(ctx, q,
		d.ServiceID, d.DeploymentID, d.Version, d.RequestedBy, d.Allowed,
		d.BlockedReason, d.RiskLevelAtRequest, d.BurnRateAtRequest, d.Status).
		Scan(&d.ID, &d.RequestedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return &models.Error{
				Kind:    models.ErrKindConflict,
				Message: fmt.Sprintf("deployment '%s' was already recorded", d.DeploymentID),
			}
		}
		return fmt.Errorf("failed to insert deployment: %w", err)
	}
	return nil
}

// Deployments lists recent gate decisions, newest first. A nil serviceID
// lists decisions across all services.
func (s *Store) Deployments(ctx context.Context, serviceID *int64, limit int) ([]models.Deployment, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	q := `SELECT ` + deploymentColumns + ` FROM deployments`
	args := []any{}
	if serviceID != nil {
		args = append(args, *serviceID)
		q += fmt.Sprintf(` WHERE service_id = $%d`, len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY requested_at DESC LIMIT $%d`, len(args))

	rows := []models.Deployment{}
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	return rows, nil
}

// GateAggregatesSince counts decisions and groups them by the risk level
// observed at request time.
func (s *Store) GateAggregatesSince(ctx context.Context, since time.Time) (*GateAggregates, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const q = `
		SELECT risk_level_at_request,
		       COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE NOT allowed) AS blocked
		FROM deployments
		WHERE requested_at >= $1
		GROUP BY risk_level_at_request`

	rows, err := s.db.QueryxContext(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate deployments: %w", err)
	}
	defer rows.Close()

	agg := &GateAggregates{RiskDistribution: map[string]int64{}}
	for rows.Next() {
		var risk string
		var total, blocked int64
		if err := rows.Scan(&risk, &total, &blocked); err != nil {
			return nil, fmt.Errorf("failed to scan deployment aggregate: %w", err)
		}
		agg.RiskDistribution[risk] = total
		agg.Total += total
		agg.Blocked += blocked
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read deployment aggregates: %w", err)
	}
	return agg, nil
}
