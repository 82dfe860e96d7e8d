// Package forecast projects error budget exhaustion from recent burn
// history and narrates the outlook.
package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/storage"
)

const (
	// trendLookback bounds how much burn history feeds the regression.
	trendLookback = 6 * time.Hour
	// trendWindowMinutes selects which stored window the trend reads.
	trendWindowMinutes = 60
	// slope cutoffs for calling a trend a trend.
	trendEpsilon = 0.1
	// nearestHorizonHours caps the nearest-exhaustion scan at 30 days.
	nearestHorizonHours = 720
)

// Store is the persistence surface the engine needs.
type Store interface {
	ServiceByID(ctx context.Context, id int64) (*models.Service, error)
	ActiveServices(ctx context.Context) ([]models.Service, error)
	ActiveSLOTarget(ctx context.Context, serviceID int64, name string) (*models.SLOTarget, error)
	BurnHistory(ctx context.Context, q storage.BurnHistoryQuery) ([]models.BurnHistory, error)
}

// BurnComputer supplies the current burn state; satisfied by the burn rate
// engine.
type BurnComputer interface {
	Compute(ctx context.Context, serviceID int64, windowMinutes int) (*models.BurnRateComputation, error)
}

// Engine builds exhaustion forecasts. Safe for concurrent use.
type Engine struct {
	store             Store
	burn              BurnComputer
	logger            *zap.Logger
	defaultWindowDays int
	now               func() time.Time
}

// NewEngine constructs a forecast engine.
func NewEngine(store Store, burn BurnComputer, defaultWindowDays int, logger *zap.Logger) *Engine {
	return &Engine{
		store:             store,
		burn:              burn,
		logger:            logger,
		defaultWindowDays: defaultWindowDays,
		now:               time.Now,
	}
}

// trend is the fitted burn-rate trajectory.
type trend struct {
	slope      float64
	direction  models.TrendDirection
	confidence models.ConfidenceLevel
}

// Forecast projects budget exhaustion for one service.
func (e *Engine) Forecast(ctx context.Context, serviceID int64) (*models.Forecast, error) {
	svc, err := e.store.ServiceByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	current, err := e.burn.Compute(ctx, serviceID, trendWindowMinutes)
	if err != nil {
		return nil, err
	}

	windowHours, err := e.sloWindowHours(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	tr, err := e.fitTrend(ctx, serviceID, now)
	if err != nil {
		return nil, err
	}

	f := &models.Forecast{
		ServiceID:            svc.ID,
		ServiceName:          svc.Name,
		ComputedAt:           now,
		CurrentBurnRate:      current.BurnRate,
		ErrorBudgetRemaining: current.ErrorBudgetRemaining,
		ConfidenceLevel:      tr.confidence,
		BurnRateTrend:        tr.direction,
		TrendSlope:           models.RoundTo(tr.slope, 4),
	}

	remaining := current.ErrorBudgetRemaining

	// Upward trends project one hour forward; downward trends do not get
	// credit. Conservative on the way up, skeptical on the way down.
	effectiveBurn := current.BurnRate
	if tr.direction == models.TrendIncreasing {
		effectiveBurn += tr.slope
	}

	switch {
	case remaining <= 0:
		zero := 0.0
		f.TimeToExhaustionHours = &zero
		f.ProjectedExhaustionTime = &now
		f.ForecastMessage = fmt.Sprintf(
			"%s has exhausted its error budget. Immediate action required.", svc.Name)

	case effectiveBurn <= 0:
		f.ForecastMessage = fmt.Sprintf(
			"%s error budget status is healthy with %.1f%% remaining.", svc.Name, remaining)

	default:
		hours := remaining / 100 * windowHours / effectiveBurn
		rounded := models.RoundTo(hours, 2)
		projected := now.Add(time.Duration(hours * float64(time.Hour)))
		f.TimeToExhaustionHours = &rounded
		f.ProjectedExhaustionTime = &projected
		f.ForecastMessage = e.narrate(svc.Name, effectiveBurn, hours, tr.direction)
	}

	return f, nil
}

// AllForecasts projects every active service, most urgent first. Services
// that fail to forecast are logged and skipped.
func (e *Engine) AllForecasts(ctx context.Context) ([]models.Forecast, error) {
	services, err := e.store.ActiveServices(ctx)
	if err != nil {
		return nil, err
	}

	forecasts := make([]models.Forecast, 0, len(services))
	for i := range services {
		f, err := e.Forecast(ctx, services[i].ID)
		if err != nil {
			e.logger.Warn("Skipping forecast",
				zap.String("service", services[i].Name), zap.Error(err))
			continue
		}
		forecasts = append(forecasts, *f)
	}

	sort.SliceStable(forecasts, func(i, j int) bool {
		return hoursOrInf(forecasts[i].TimeToExhaustionHours) <
			hoursOrInf(forecasts[j].TimeToExhaustionHours)
	})
	return forecasts, nil
}

// NearestExhaustion returns the service projected to exhaust first within
// the 30-day horizon, or nil when the whole fleet is clear.
func (e *Engine) NearestExhaustion(ctx context.Context) (*models.NearestExhaustion, error) {
	forecasts, err := e.AllForecasts(ctx)
	if err != nil {
		return nil, err
	}

	for i := range forecasts {
		f := &forecasts[i]
		if f.TimeToExhaustionHours == nil || *f.TimeToExhaustionHours >= nearestHorizonHours {
			continue
		}
		// Forecasts are sorted ascending; the first in-horizon hit wins.
		return &models.NearestExhaustion{
			ServiceName:             f.ServiceName,
			TimeToExhaustionHours:   *f.TimeToExhaustionHours,
			ProjectedExhaustionTime: f.ProjectedExhaustionTime,
			CurrentBurnRate:         f.CurrentBurnRate,
			BudgetRemaining:         f.ErrorBudgetRemaining,
		}, nil
	}
	return nil, nil
}

// fitTrend regresses the last six hours of hourly-window burn history.
// Fewer than three points yields a stable trend at medium confidence.
func (e *Engine) fitTrend(ctx context.Context, serviceID int64, now time.Time) (trend, error) {
	rows, err := e.store.BurnHistory(ctx, storage.BurnHistoryQuery{
		ServiceID:     serviceID,
		WindowMinutes: trendWindowMinutes,
		Since:         now.Add(-trendLookback),
		Ascending:     true,
	})
	if err != nil {
		return trend{}, err
	}
	if len(rows) < 3 {
		return trend{direction: models.TrendStable, confidence: models.ConfidenceMedium}, nil
	}

	xs := make([]float64, len(rows))
	ys := make([]float64, len(rows))
	first := rows[0].Timestamp
	for i, r := range rows {
		xs[i] = r.Timestamp.Sub(first).Hours()
		ys[i] = r.BurnRate
	}
	slope, _, r2 := linearRegression(xs, ys)

	t := trend{slope: slope}
	switch {
	case slope > trendEpsilon:
		t.direction = models.TrendIncreasing
	case slope < -trendEpsilon:
		t.direction = models.TrendDecreasing
	default:
		t.direction = models.TrendStable
	}
	switch {
	case r2 > 0.7 && len(rows) >= 5:
		t.confidence = models.ConfidenceHigh
	case r2 > 0.4 && len(rows) >= 3:
		t.confidence = models.ConfidenceMedium
	default:
		t.confidence = models.ConfidenceLow
	}
	return t, nil
}

// sloWindowHours returns the availability target's window in hours,
// defaulting when the service has no target.
func (e *Engine) sloWindowHours(ctx context.Context, serviceID int64) (float64, error) {
	target, err := e.store.ActiveSLOTarget(ctx, serviceID, models.SLOAvailability)
	if err != nil {
		if models.KindOf(err) == models.ErrKindNotFound {
			return float64(e.defaultWindowDays) * 24, nil
		}
		return 0, err
	}
	return float64(target.WindowDays) * 24, nil
}

// narrate renders the deterministic forecast message.
func (e *Engine) narrate(service string, burn, hours float64, direction models.TrendDirection) string {
	var severity, urgency string
	switch {
	case burn >= 3:
		severity = "critically fast"
		urgency = "Immediate intervention required."
	case burn >= 2:
		severity = fmt.Sprintf("%.1fx faster than allowed", burn)
		urgency = "Action recommended within the hour."
	case burn >= 1.5:
		severity = fmt.Sprintf("%.1fx normal rate", burn)
		urgency = "Monitor closely."
	case burn >= 1:
		severity = "at the allowed rate"
		urgency = "Consider investigation."
	default:
		severity = "below normal"
		urgency = "Budget is healthy."
	}

	trendMsg := ""
	switch direction {
	case models.TrendIncreasing:
		trendMsg = " Burn rate is trending upward."
	case models.TrendDecreasing:
		trendMsg = " Burn rate is trending downward."
	}

	return fmt.Sprintf("%s is burning error budget %s. Budget exhaustion projected in ~%s.%s %s",
		service, severity, FormatDuration(hours), trendMsg, urgency)
}

// FormatDuration renders hours the way operators read them: minutes under
// an hour, fractional hours under a day, fractional days under three days,
// whole days beyond.
func FormatDuration(hours float64) string {
	switch {
	case hours < 1:
		return fmt.Sprintf("%d minutes", int(hours*60))
	case hours < 24:
		return fmt.Sprintf("%.1f hours", hours)
	case hours < 72:
		return fmt.Sprintf("%.1f days", hours/24)
	default:
		return fmt.Sprintf("%d days", int(hours/24))
	}
}

func hoursOrInf(h *float64) float64 {
	if h == nil {
		return math.Inf(1)
	}
	return *h
}
