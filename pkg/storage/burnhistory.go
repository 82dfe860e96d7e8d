package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
)

const burnHistoryColumns = `id, service_id, timestamp, window_minutes, burn_rate,
	error_budget_consumed, error_budget_remaining, time_to_exhaustion_hours, risk_level`

// BurnHistoryQuery selects burn history rows. A zero WindowMinutes matches
// every window; a zero Limit is unbounded.
type BurnHistoryQuery struct {
	ServiceID     int64
	WindowMinutes int
	Since         time.Time
	Limit         int
	Ascending     bool
}

// BurnAggregates are SQL-side rollups over stored burn rates.
type BurnAggregates struct {
	AverageBurnRate       *float64 `db:"avg_burn_rate"`
	PeakBurnRate          *float64 `db:"peak_burn_rate"`
	MinBurnRate           *float64 `db:"min_burn_rate"`
	AverageBudgetConsumed *float64 `db:"avg_budget_consumed"`
	Samples               int64    `db:"samples"`
}

// InsertBurnHistory persists one computed burn rate row.
func (s *Store) InsertBurnHistory(ctx context.Context, h *models.BurnHistory) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const q = `
		INSERT INTO burn_history
			(service_id, timestamp, window_minutes, burn_rate,
			 error_budget_consumed, error_budget_remaining,
			 time_to_exhaustion_hours, risk_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := s.db.QueryRowxContext(ctx, q,
		h.ServiceID, h.Timestamp, h.WindowMinutes, h.BurnRate,
		h.ErrorBudgetConsumed, h.ErrorBudgetRemaining,
		h.TimeToExhaustionHours, h.RiskLevel).Scan(&h.ID)
	if err != nil {
		return fmt.Errorf("failed to insert burn history: %w", err)
	}
	return nil
}

// BurnHistory lists rows matching the query.
func (s *Store) BurnHistory(ctx context.Context, q BurnHistoryQuery) ([]models.BurnHistory, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	sqlq := `SELECT ` + burnHistoryColumns + ` FROM burn_history
		WHERE service_id = $1 AND timestamp >= $2`
	args := []any{q.ServiceID, q.Since}
	if q.WindowMinutes > 0 {
		args = append(args, q.WindowMinutes)
		sqlq += fmt.Sprintf(` AND window_minutes = $%d`, len(args))
	}
	if q.Ascending {
		sqlq += ` ORDER BY timestamp ASC`
	} else {
		sqlq += ` ORDER BY timestamp DESC`
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sqlq += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows := []models.BurnHistory{}
	if err := s.db.SelectContext(ctx, &rows, sqlq, args...); err != nil {
		return nil, fmt.Errorf("failed to list burn history: %w", err)
	}
	return rows, nil
}

// LatestBurnHistory returns the newest stored row for a service and window.
func (s *Store) LatestBurnHistory(ctx context.Context, serviceID int64, windowMinutes int) (*models.BurnHistory, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var h models.BurnHistory
	err := s.db.GetContext(ctx, &h,
		`SELECT `+burnHistoryColumns+` FROM burn_history
		 WHERE service_id = $1 AND window_minutes = $2
		 ORDER BY timestamp DESC LIMIT 1`, serviceID, windowMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.Error{
			Kind:    models.ErrKindNotFound,
			Message: fmt.Sprintf("no burn history for service %d window %dm", serviceID, windowMinutes),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest burn history: %w", err)
	}
	return &h, nil
}

// BurnAggregatesSince rolls up burn rates across every window since the
// given time. The cross-window mix is intentional: statistics describe the
// service's overall burn behavior, not a single window.
func (s *Store) BurnAggregatesSince(ctx context.Context, serviceID int64, since time.Time) (*BurnAggregates, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const q = `
		SELECT AVG(burn_rate) AS avg_burn_rate,
		       MAX(burn_rate) AS peak_burn_rate,
		       MIN(burn_rate) AS min_burn_rate,
		       AVG(error_budget_consumed) AS avg_budget_consumed,
		       COUNT(*) AS samples
		FROM burn_history
		WHERE service_id = $1 AND timestamp >= $2`

	var agg BurnAggregates
	if err := s.db.GetContext(ctx, &agg, q, serviceID, since); err != nil {
		return nil, fmt.Errorf("failed to aggregate burn history: %w", err)
	}
	return &agg, nil
}

// FleetBurnAverage returns the mean stored burn rate across all services
// for one window between from and to, or nil when the span holds no rows.
func (s *Store) FleetBurnAverage(ctx context.Context, windowMinutes int, from, to time.Time) (*float64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const q = `
		SELECT AVG(burn_rate) FROM burn_history
		WHERE window_minutes = $1 AND timestamp >= $2 AND timestamp < $3`

	var avg *float64
	if err := s.db.GetContext(ctx, &avg, q, windowMinutes, from, to); err != nil {
		return nil, fmt.Errorf("failed to average fleet burn rate: %w", err)
	}
	return avg, nil
}

// NearestBurnHistory returns the row closest to at within the tolerance,
// or a not-found error when the span holds nothing.
func (s *Store) NearestBurnHistory(ctx context.Context, serviceID int64, at time.Time, tolerance time.Duration) (*models.BurnHistory, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const q = `
		SELECT ` + burnHistoryColumns + ` FROM burn_history
		WHERE service_id = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY ABS(EXTRACT(EPOCH FROM (timestamp - $4::timestamptz)))
		LIMIT 1`

	var h models.BurnHistory
	err := s.db.GetContext(ctx, &h, q, serviceID, at.Add(-tolerance), at.Add(tolerance), at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.Error{
			Kind:    models.ErrKindNotFound,
			Message: fmt.Sprintf("no burn history near %s for service %d", at.Format(time.RFC3339), serviceID),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch nearest burn history: %w", err)
	}
	return &h, nil
}
