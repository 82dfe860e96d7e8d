package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
)

const metricColumns = `id, service_id, timestamp, total_requests, error_count,
	latency_p50, latency_p95, latency_p99, success_rate`

// MetricAggregates are SQL-side rollups over a time range.
type MetricAggregates struct {
	TotalRequests int64    `db:"total_requests"`
	ErrorCount    int64    `db:"error_count"`
	AvgLatencyP50 *float64 `db:"avg_latency_p50"`
	AvgLatencyP95 *float64 `db:"avg_latency_p95"`
	AvgLatencyP99 *float64 `db:"avg_latency_p99"`
	DataPoints    int64    `db:"data_points"`
}

// InsertMetric persists a single snapshot.
func (s *Store) InsertMetric(ctx context.Context, m *models.Metric) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const q = `
		INSERT INTO metrics
			(service_id, timestamp, total_requests, error_count,
			 latency_p50, latency_p95, latency_p99, success_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := s.db.QueryRowxContext(ctx, q,
		m.ServiceID, m.Timestamp, m.TotalRequests, m.ErrorCount,
		m.LatencyP50, m.LatencyP95, m.LatencyP99, m.SuccessRate).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to insert metric: %w", err)
	}
	return nil
}

// InsertMetrics persists a batch of snapshots in one transaction.
func (s *Store) InsertMetrics(ctx context.Context, rows []models.Metric) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin metric batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const q = `
		INSERT INTO metrics
			(service_id, timestamp, total_requests, error_count,
			 latency_p50, latency_p95, latency_p99, success_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	stmt, err := tx.PreparexContext(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare metric batch: %w", err)
	}
	defer stmt.Close()

	for i := range rows {
		m := &rows[i]
		if _, err := stmt.ExecContext(ctx,
			m.ServiceID, m.Timestamp, m.TotalRequests, m.ErrorCount,
			m.LatencyP50, m.LatencyP95, m.LatencyP99, m.SuccessRate); err != nil {
			return 0, fmt.Errorf("failed to insert metric %d of batch: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit metric batch: %w", err)
	}
	return len(rows), nil
}

// MetricTotals sums requests and errors for a service between from and to.
func (s *Store) MetricTotals(ctx context.Context, serviceID int64, from, to time.Time) (total, errCount int64, err error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const q = `
		SELECT COALESCE(SUM(total_requests), 0) AS total,
		       COALESCE(SUM(error_count), 0) AS errors
		FROM metrics
		WHERE service_id = $1 AND timestamp >= $2 AND timestamp <= $3`

	row := s.db.QueryRowxContext(ctx, q, serviceID, from, to)
	if err := row.Scan(&total, &errCount); err != nil {
		return 0, 0, fmt.Errorf("failed to sum metrics: %w", err)
	}
	return total, errCount, nil
}

// MetricsSince returns snapshots newer than since, newest first.
func (s *Store) MetricsSince(ctx context.Context, serviceID int64, since time.Time, limit int) ([]models.Metric, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows := []models.Metric{}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+metricColumns+` FROM metrics
		 WHERE service_id = $1 AND timestamp >= $2
		 ORDER BY timestamp DESC LIMIT $3`, serviceID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}
	return rows, nil
}

// LatestMetric returns the newest snapshot for a service, or a not-found
// error when the service has no metrics yet.
func (s *Store) LatestMetric(ctx context.Context, serviceID int64) (*models.Metric, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var m models.Metric
	err := s.db.GetContext(ctx, &m,
		`SELECT `+metricColumns+` FROM metrics
		 WHERE service_id = $1 ORDER BY timestamp DESC LIMIT 1`, serviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.Error{
			Kind:    models.ErrKindNotFound,
			Message: fmt.Sprintf("no metrics recorded for service %d", serviceID),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest metric: %w", err)
	}
	return &m, nil
}

// AggregateMetrics rolls up request counts and latency averages between
// from and to.
func (s *Store) AggregateMetrics(ctx context.Context, serviceID int64, from, to time.Time) (*MetricAggregates, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const q = `
		SELECT COALESCE(SUM(total_requests), 0) AS total_requests,
		       COALESCE(SUM(error_count), 0) AS error_count,
		       AVG(latency_p50) AS avg_latency_p50,
		       AVG(latency_p95) AS avg_latency_p95,
		       AVG(latency_p99) AS avg_latency_p99,
		       COUNT(*) AS data_points
		FROM metrics
		WHERE service_id = $1 AND timestamp >= $2 AND timestamp <= $3`

	var agg MetricAggregates
	if err := s.db.GetContext(ctx, &agg, q, serviceID, from, to); err != nil {
		return nil, fmt.Errorf("failed to aggregate metrics: %w", err)
	}
	return &agg, nil
}

// DeleteMetricsBefore removes snapshots older than cutoff and reports how
// many rows went away.
func (s *Store) DeleteMetricsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM metrics WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old metrics: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted metrics: %w", err)
	}
	return n, nil
}
