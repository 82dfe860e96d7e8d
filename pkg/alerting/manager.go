// Package alerting generates, cooldown-suppresses, persists, and
// dispatches reliability alerts. Alert wording is template-keyed by alert
// type; the per-(service, alert_type) cooldown prevents alert fatigue when
// a condition persists across coordinator ticks.
package alerting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/config"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/storage"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/telemetry"
)

const (
	// burnRateHighTrigger fires the burn_rate_high alert; it matches the
	// danger boundary of the default risk ladder.
	burnRateHighTrigger = 2.0

	// budgetCriticalBelow fires budget_critical when the remaining budget
	// drops under it while still positive.
	budgetCriticalBelow = 15.0

	defaultFeedHours  = 24
	defaultFeedLimit  = 50
	defaultListLimit  = 100
	defaultStatsDays  = 7
	defaultListWindow = 24 * time.Hour
)

// Store is the persistence surface the manager needs.
type Store interface {
	InsertAlert(ctx context.Context, a *models.Alert) error
	HasRecentAlert(ctx context.Context, serviceID int64, alertType string, since time.Time) (bool, error)
	Alerts(ctx context.Context, f storage.AlertFilter) ([]models.AlertWithService, error)
	AlertCounts(ctx context.Context, serviceID *int64, since time.Time) (total, unacknowledged int64, err error)
	AcknowledgeAlert(ctx context.Context, id int64, by string) (*models.Alert, error)
	AcknowledgeAlerts(ctx context.Context, ids []int64, by string) (int64, error)
	AlertBreakdownSince(ctx context.Context, since time.Time) (*storage.AlertBreakdown, error)
}

// Forecaster supplies the exhaustion projection quoted in budget_critical
// messages.
type Forecaster interface {
	Forecast(ctx context.Context, serviceID int64) (*models.Forecast, error)
}

// Manager owns the alert lifecycle: evaluation, cooldown, persistence,
// and dispatch.
type Manager struct {
	store     Store
	forecast  Forecaster
	runtime   *config.Runtime
	metrics   *telemetry.Metrics
	logger    *zap.Logger
	notifiers []Notifier

	now func() time.Time
}

// NewManager wires the manager. Notifiers are optional; the dispatch log
// line is written regardless.
func NewManager(
	store Store,
	forecast Forecaster,
	runtime *config.Runtime,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
	notifiers ...Notifier,
) *Manager {
	return &Manager{
		store:     store,
		forecast:  forecast,
		runtime:   runtime,
		metrics:   metrics,
		logger:    logger.Named("alerting"),
		notifiers: notifiers,
		now:       time.Now,
	}
}

// Create instantiates the template for alertType, unless an alert of the
// same type fired for the service within the cooldown window. Suppressed
// creations return (nil, nil) and write nothing.
func (m *Manager) Create(ctx context.Context, svc *models.Service, alertType string, vars map[string]string, metadata models.JSONMap) (*models.Alert, error) {
	tmpl, ok := templates[alertType]
	if !ok {
		return nil, models.InvalidInput("Unknown alert type: %s", alertType)
	}

	cooldown := m.runtime.Tunables().AlertCooldown
	recent, err := m.store.HasRecentAlert(ctx, svc.ID, alertType, m.now().Add(-cooldown))
	if err != nil {
		return nil, err
	}
	if recent {
		m.metrics.AlertsSuppressedTotal.WithLabelValues(alertType).Inc()
		m.logger.Debug("Alert suppressed by cooldown",
			zap.String("service", svc.Name),
			zap.String("alert_type", alertType),
		)
		return nil, nil
	}

	now := m.now()
	alert := &models.Alert{
		ServiceID:    svc.ID,
		Timestamp:    now,
		AlertType:    alertType,
		Severity:     tmpl.severity,
		Channel:      tmpl.channel,
		Title:        interpolate(tmpl.title, vars),
		Message:      interpolate(tmpl.message, vars),
		Metadata:     metadata,
		Dispatched:   true,
		DispatchedAt: &now,
	}
	if err := m.store.InsertAlert(ctx, alert); err != nil {
		return nil, err
	}

	m.metrics.AlertsFiredTotal.WithLabelValues(alertType, tmpl.severity.String()).Inc()
	m.dispatch(ctx, alert)
	return alert, nil
}

// Evaluate inspects a service's 60-min burn computation and fires the
// alerts its state warrants: budget_exhausted when the budget is gone,
// otherwise budget_critical when it is nearly gone, plus burn_rate_high
// independently of either.
func (m *Manager) Evaluate(ctx context.Context, svc *models.Service, burn *models.BurnRateComputation) ([]models.Alert, error) {
	var fired []models.Alert

	switch {
	case burn.ErrorBudgetRemaining <= 0:
		alert, err := m.Create(ctx, svc, TypeBudgetExhausted,
			map[string]string{"service": svc.Name},
			models.JSONMap{"burn_rate": burn.BurnRate},
		)
		if err != nil {
			return fired, err
		}
		if alert != nil {
			fired = append(fired, *alert)
		}

	case burn.ErrorBudgetRemaining < budgetCriticalBelow:
		alert, err := m.budgetCritical(ctx, svc, burn)
		if err != nil {
			return fired, err
		}
		if alert != nil {
			fired = append(fired, *alert)
		}
	}

	if burn.BurnRate >= burnRateHighTrigger {
		alert, err := m.Create(ctx, svc, TypeBurnRateHigh,
			map[string]string{
				"service": svc.Name,
				"rate":    fmt.Sprintf("%.1f", burn.BurnRate),
				"risk":    strings.ToUpper(burn.RiskLevel.String()),
			},
			models.JSONMap{"burn_rate": burn.BurnRate, "risk_level": burn.RiskLevel.String()},
		)
		if err != nil {
			return fired, err
		}
		if alert != nil {
			fired = append(fired, *alert)
		}
	}

	return fired, nil
}

func (m *Manager) budgetCritical(ctx context.Context, svc *models.Service, burn *models.BurnRateComputation) (*models.Alert, error) {
	// A failed projection degrades the message, not the alert.
	var hours *float64
	if fc, err := m.forecast.Forecast(ctx, svc.ID); err != nil {
		m.logger.Warn("Forecast unavailable for budget_critical alert",
			zap.String("service", svc.Name),
			zap.Error(err),
		)
	} else {
		hours = fc.TimeToExhaustionHours
	}

	return m.Create(ctx, svc, TypeBudgetCritical,
		map[string]string{
			"service":   svc.Name,
			"remaining": fmt.Sprintf("%.1f", burn.ErrorBudgetRemaining),
			"time":      formatHours(hours),
		},
		models.JSONMap{"budget_remaining": burn.ErrorBudgetRemaining},
	)
}

// DeploymentBlocked raises the informational alert the release gate emits
// when it rejects a deployment. Failures are logged, never propagated.
func (m *Manager) DeploymentBlocked(ctx context.Context, svc *models.Service, deploymentID, reason string) {
	_, err := m.Create(ctx, svc, TypeDeploymentBlocked,
		map[string]string{
			"service":       svc.Name,
			"deployment_id": deploymentID,
			"reason":        reason,
		},
		models.JSONMap{"deployment_id": deploymentID},
	)
	if err != nil {
		m.logger.Warn("Failed to raise deployment-blocked alert",
			zap.String("service", svc.Name),
			zap.Error(err),
		)
	}
}

// RiskEscalated raises a risk_escalation alert for a level increase
// detected between coordinator ticks.
func (m *Manager) RiskEscalated(ctx context.Context, svc *models.Service, from, to models.RiskLevel) (*models.Alert, error) {
	return m.Create(ctx, svc, TypeRiskEscalation,
		map[string]string{
			"service":   svc.Name,
			"from_risk": strings.ToUpper(from.String()),
			"to_risk":   strings.ToUpper(to.String()),
		},
		models.JSONMap{"from_risk": from.String(), "to_risk": to.String()},
	)
}

// Recovered raises a recovery alert when a service returns to SAFE.
func (m *Manager) Recovered(ctx context.Context, svc *models.Service, to models.RiskLevel) (*models.Alert, error) {
	return m.Create(ctx, svc, TypeRecovery,
		map[string]string{
			"service": svc.Name,
			"risk":    strings.ToUpper(to.String()),
		},
		models.JSONMap{"risk": to.String()},
	)
}

// List returns alerts matching the filter, newest first. Zero-valued
// filter fields fall back to a 24-hour window and a 100-row cap.
func (m *Manager) List(ctx context.Context, f storage.AlertFilter) ([]models.AlertWithService, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Since.IsZero() {
		f.Since = m.now().Add(-defaultListWindow)
	}
	return m.store.Alerts(ctx, f)
}

// Feed assembles the UI feed: recent alerts plus rollup counters over the
// same window.
func (m *Manager) Feed(ctx context.Context, hours, limit int) (*models.AlertFeed, error) {
	if hours <= 0 {
		hours = defaultFeedHours
	}
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	since := m.now().Add(-time.Duration(hours) * time.Hour)

	alerts, err := m.store.Alerts(ctx, storage.AlertFilter{Since: since, Limit: limit})
	if err != nil {
		return nil, err
	}
	total, unacknowledged, err := m.store.AlertCounts(ctx, nil, since)
	if err != nil {
		return nil, err
	}
	return &models.AlertFeed{
		Alerts:         alerts,
		Total:          total,
		Unacknowledged: unacknowledged,
	}, nil
}

// Acknowledge marks one alert as acknowledged.
func (m *Manager) Acknowledge(ctx context.Context, id int64, by string) (*models.Alert, error) {
	return m.store.AcknowledgeAlert(ctx, id, by)
}

// AcknowledgeBatch acknowledges many alerts and reports how many rows
// actually changed.
func (m *Manager) AcknowledgeBatch(ctx context.Context, ids []int64, by string) (int64, error) {
	return m.store.AcknowledgeAlerts(ctx, ids, by)
}

// Statistics summarizes alert volume by severity over the trailing period.
func (m *Manager) Statistics(ctx context.Context, days int) (*models.AlertStatistics, error) {
	if days <= 0 {
		days = defaultStatsDays
	}
	b, err := m.store.AlertBreakdownSince(ctx, m.now().AddDate(0, 0, -days))
	if err != nil {
		return nil, err
	}
	return &models.AlertStatistics{
		PeriodDays:     days,
		BySeverity:     b.BySeverity,
		Total:          b.Total,
		Unacknowledged: b.Unacknowledged,
	}, nil
}

// dispatch writes the audit log line for a fired alert and hands it to
// the registered notifiers.
func (m *Manager) dispatch(ctx context.Context, a *models.Alert) {
	m.logger.Info("Alert dispatched",
		zap.String("channel", a.Channel.String()),
		zap.String("severity", a.Severity.String()),
		zap.String("title", a.Title),
		zap.String("message", a.Message),
	)
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, a); err != nil {
			m.logger.Warn("Notifier delivery failed",
				zap.String("notifier", n.Name()),
				zap.String("title", a.Title),
				zap.Error(err),
			)
		}
	}
}
