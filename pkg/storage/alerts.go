package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
)

const alertColumns = `a.id, a.service_id, a.timestamp, a.alert_type, a.severity,
	a.channel, a.title, a.message, a.metadata, a.dispatched, a.dispatched_at,
	a.acknowledged, a.acknowledged_by, a.acknowledged_at`

// AlertFilter narrows alert feed queries; nil fields match everything.
type AlertFilter struct {
	ServiceID    *int64
	Severity     *models.AlertSeverity
	Acknowledged *bool
	Since        time.Time
	Limit        int
}

// AlertBreakdown summarizes alert volume over a period.
type AlertBreakdown struct {
	Total          int64
	Unacknowledged int64
	BySeverity     map[string]int64
	ByType         map[string]int64
}

// InsertAlert persists a fired alert.
func (s *Store) InsertAlert(ctx context.Context, a *models.Alert) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const q = `
		INSERT INTO alerts
			(service_id, timestamp, alert_type, severity, channel, title,
			 message, metadata, dispatched, dispatched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err := s.db.QueryRowxContext(ctx, q,
		a.ServiceID, a.Timestamp, a.AlertType, a.Severity, a.Channel,
		a.Title, a.Message, a.Metadata, a.Dispatched, a.DispatchedAt).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// HasRecentAlert reports whether an alert of the given type fired for the
// service at or after since. Cooldown checks hinge on this.
func (s *Store) HasRecentAlert(ctx context.Context, serviceID int64, alertType string, since time.Time) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const q = `
		SELECT EXISTS (
			SELECT 1 FROM alerts
			WHERE service_id = $1 AND alert_type = $2 AND timestamp >= $3
		)`

	var exists bool
	if err := s.db.GetContext(ctx, &exists, q, serviceID, alertType, since); err != nil {
		return false, fmt.Errorf("failed to check recent alerts: %w", err)
	}
	return exists, nil
}

// Alerts lists alerts joined with their service names, newest first.
func (s *Store) Alerts(ctx context.Context, f AlertFilter) ([]models.AlertWithService, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	q := `SELECT ` + alertColumns + `, s.name AS service_name
		FROM alerts a
		JOIN services s ON s.id = a.service_id
		WHERE a.timestamp >= $1`
	args := []any{f.Since}
	if f.ServiceID != nil {
		args = append(args, *f.ServiceID)
		q += fmt.Sprintf(` AND a.service_id = $%d`, len(args))
	}
	if f.Severity != nil {
		args = append(args, *f.Severity)
		q += fmt.Sprintf(` AND a.severity = $%d`, len(args))
	}
	if f.Acknowledged != nil {
		args = append(args, *f.Acknowledged)
		q += fmt.Sprintf(` AND a.acknowledged = $%d`, len(args))
	}
	q += ` ORDER BY a.timestamp DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows := []models.AlertWithService{}
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return rows, nil
}

// AlertCounts returns total and unacknowledged counts since the given time,
// optionally scoped to one service.
func (s *Store) AlertCounts(ctx context.Context, serviceID *int64, since time.Time) (total, unacknowledged int64, err error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	q := `SELECT COUNT(*) AS total,
	             COUNT(*) FILTER (WHERE NOT acknowledged) AS unacknowledged
	      FROM alerts WHERE timestamp >= $1`
	args := []any{since}
	if serviceID != nil {
		args = append(args, *serviceID)
		q += fmt.Sprintf(` AND service_id = $%d`, len(args))
	}

	row := s.db.QueryRowxContext(ctx, q, args...)
	if err := row.Scan(&total, &unacknowledged); err != nil {
		return 0, 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return total, unacknowledged, nil
}

// AcknowledgeAlert marks one alert acknowledged and returns the fresh row.
func (s *Store) AcknowledgeAlert(ctx context.Context, id int64, by string) (*models.Alert, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const q = `
		UPDATE alerts
		SET acknowledged = TRUE, acknowledged_by = $2, acknowledged_at = now()
		WHERE id = $1
		RETURNING id, service_id, timestamp, alert_type, severity, channel,
		          title, message, metadata, dispatched, dispatched_at,
		          acknowledged, acknowledged_by, acknowledged_at`

	var a models.Alert
	err := s.db.QueryRowxContext(ctx, q, id, by).StructScan(&a)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.Error{
			Kind:    models.ErrKindNotFound,
			Message: fmt.Sprintf("Alert %d not found", id),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acknowledge alert %d: %w", id, err)
	}
	return &a, nil
}

// AcknowledgeAlerts marks a batch acknowledged and reports how many rows
// actually flipped.
func (s *Store) AcknowledgeAlerts(ctx context.Context, ids []int64, by string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const q = `
		UPDATE alerts
		SET acknowledged = TRUE, acknowledged_by = $2, acknowledged_at = now()
		WHERE id = ANY($1::bigint[]) AND NOT acknowledged`

	res, err := s.db.ExecContext(ctx, q, pq.Array(ids), by)
	if err != nil {
		return 0, fmt.Errorf("failed to acknowledge alerts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count acknowledged alerts: %w", err)
	}
	return n, nil
}

// AlertBreakdownSince groups alert counts by severity and type.
func (s *Store) AlertBreakdownSince(ctx context.Context, since time.Time) (*AlertBreakdown, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const q = `
		SELECT severity, alert_type,
		       COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE NOT acknowledged) AS unacknowledged
		FROM alerts
		WHERE timestamp >= $1
		GROUP BY severity, alert_type`

	rows, err := s.db.QueryxContext(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate alerts: %w", err)
	}
	defer rows.Close()

	breakdown := &AlertBreakdown{
		BySeverity: map[string]int64{},
		ByType:     map[string]int64{},
	}
	for rows.Next() {
		var severity, alertType string
		var total, unacknowledged int64
		if err := rows.Scan(&severity, &alertType, &total, &unacknowledged); err != nil {
			return nil, fmt.Errorf("failed to scan alert aggregate: %w", err)
		}
		breakdown.BySeverity[severity] += total
		breakdown.ByType[alertType] += total
		breakdown.Total += total
		breakdown.Unacknowledged += unacknowledged
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alert aggregates: %w", err)
	}
	return breakdown, nil
}
