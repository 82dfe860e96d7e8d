// Package burnrate computes how fast services consume their error budgets
// across rolling windows and classifies the result on the risk ladder.
package burnrate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/config"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/storage"
)

// Fallback objective applied when a service has no active availability
// target yet.
const (
	DefaultSLOTarget        = 99.9
	DefaultCriticalBurnRate = 2.0
)

// Store is the persistence surface the engine needs.
type Store interface {
	ServiceByID(ctx context.Context, id int64) (*models.Service, error)
	ServiceByName(ctx context.Context, name string) (*models.Service, error)
	ActiveSLOTarget(ctx context.Context, serviceID int64, name string) (*models.SLOTarget, error)
	MetricTotals(ctx context.Context, serviceID int64, from, to time.Time) (int64, int64, error)
	InsertBurnHistory(ctx context.Context, h *models.BurnHistory) error
	BurnHistory(ctx context.Context, q storage.BurnHistoryQuery) ([]models.BurnHistory, error)
	BurnAggregatesSince(ctx context.Context, serviceID int64, since time.Time) (*storage.BurnAggregates, error)
}

// Engine evaluates burn rates. Stateless apart from its dependencies; safe
// for concurrent use.
type Engine struct {
	store             Store
	runtime           *config.Runtime
	logger            *zap.Logger
	defaultWindowDays int
	now               func() time.Time
}

// NewEngine constructs a burn rate engine.
func NewEngine(store Store, runtime *config.Runtime, defaultWindowDays int, logger *zap.Logger) *Engine {
	return &Engine{
		store:             store,
		runtime:           runtime,
		logger:            logger,
		defaultWindowDays: defaultWindowDays,
		now:               time.Now,
	}
}

// Classify places a burn rate and budget consumption on the risk ladder.
// Cutoffs are inclusive lower bounds; the more severe dimension wins.
func Classify(burnRate, budgetConsumed float64, t config.ThresholdConfig) models.RiskLevel {
	switch {
	case burnRate >= t.BurnRateFreeze || budgetConsumed >= t.BudgetFreeze:
		return models.RiskFreeze
	case burnRate >= t.BurnRateDanger || budgetConsumed >= t.BudgetDanger:
		return models.RiskDanger
	case burnRate >= t.BurnRateObserve || budgetConsumed >= t.BudgetObserve:
		return models.RiskObserve
	default:
		return models.RiskSafe
	}
}

// Compute evaluates one (service, window) pair.
func (e *Engine) Compute(ctx context.Context, serviceID int64, windowMinutes int) (*models.BurnRateComputation, error) {
	svc, err := e.store.ServiceByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return e.ComputeForService(ctx, svc, windowMinutes)
}

// ComputeForService evaluates one window for an already-loaded service.
func (e *Engine) ComputeForService(ctx context.Context, svc *models.Service, windowMinutes int) (*models.BurnRateComputation, error) {
	target, err := e.availabilityTarget(ctx, svc.ID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	windowStart := now.Add(-time.Duration(windowMinutes) * time.Minute)
	totalRequests, errorCount, err := e.store.MetricTotals(ctx, svc.ID, windowStart, now)
	if err != nil {
		return nil, err
	}

	allowedErrorRate := (100 - target.TargetValue) / 100

	c := &models.BurnRateComputation{
		ServiceID:        svc.ID,
		ServiceName:      svc.Name,
		Timestamp:        now,
		WindowMinutes:    windowMinutes,
		AllowedErrorRate: models.RoundTo(allowedErrorRate, 6),
	}

	// No traffic in the window reads as perfect availability, not an error.
	if totalRequests == 0 {
		c.ErrorBudgetRemaining = 100
		e.applyRisk(c)
		return c, nil
	}

	currentErrorRate := float64(errorCount) / float64(totalRequests)
	burnRate := 0.0
	if allowedErrorRate > 0 {
		burnRate = currentErrorRate / allowedErrorRate
	}

	totalBudget := float64(totalRequests) * allowedErrorRate
	consumed := 0.0
	if totalBudget > 0 {
		consumed = float64(errorCount) / totalBudget * 100
		if consumed > 100 {
			consumed = 100
		}
	}

	c.CurrentErrorRate = models.RoundTo(currentErrorRate, 6)
	c.BurnRate = models.RoundTo(burnRate, 3)
	c.ErrorBudgetConsumed = models.RoundTo(consumed, 2)
	c.ErrorBudgetRemaining = models.RoundTo(100-consumed, 2)
	e.applyRisk(c)
	return c, nil
}

// ComputeAllWindows evaluates every canonical window in order.
func (e *Engine) ComputeAllWindows(ctx context.Context, serviceID int64) ([]models.BurnRateComputation, error) {
	svc, err := e.store.ServiceByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return e.computeWindowsForService(ctx, svc)
}

// Weighted produces the composite multi-window signal for a service.
func (e *Engine) Weighted(ctx context.Context, serviceID int64) (*models.WeightedBurnRate, error) {
	svc, err := e.store.ServiceByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return e.WeightedForService(ctx, svc)
}

// WeightedForService produces the composite signal for an already-loaded
// service.
func (e *Engine) WeightedForService(ctx context.Context, svc *models.Service) (*models.WeightedBurnRate, error) {
	windows, err := e.computeWindowsForService(ctx, svc)
	if err != nil {
		return nil, err
	}
	return Composite(svc.ID, svc.Name, windows), nil
}

// Composite folds per-window computations into the weighted signal. The
// mean is normalized by the weight sum so a partial window set still yields
// a sane value; the composite risk is the most severe per-window
// classification. Callers that already hold fresh computations use this
// directly instead of re-querying through WeightedForService.
func Composite(serviceID int64, serviceName string, windows []models.BurnRateComputation) *models.WeightedBurnRate {
	var weightedSum, weightTotal float64
	composite := models.RiskSafe
	for _, w := range windows {
		weight := weightFor(w.WindowMinutes)
		weightedSum += w.BurnRate * weight
		weightTotal += weight
		composite = models.MaxRisk(composite, w.RiskLevel)
	}

	burnRate := 0.0
	if weightTotal > 0 {
		burnRate = weightedSum / weightTotal
	}

	return &models.WeightedBurnRate{
		ServiceID:     serviceID,
		ServiceName:   serviceName,
		BurnRate:      models.RoundTo(burnRate, 3),
		CompositeRisk: composite,
		Windows:       windows,
	}
}

// StoreComputation appends a computation to burn history. Exhaustion hours
// stay unset; the forecast engine owns that projection.
func (e *Engine) StoreComputation(ctx context.Context, c *models.BurnRateComputation) (*models.BurnHistory, error) {
	h := &models.BurnHistory{
		ServiceID:            c.ServiceID,
		Timestamp:            c.Timestamp,
		WindowMinutes:        c.WindowMinutes,
		BurnRate:             c.BurnRate,
		ErrorBudgetConsumed:  c.ErrorBudgetConsumed,
		ErrorBudgetRemaining: c.ErrorBudgetRemaining,
		RiskLevel:            c.RiskLevel,
	}
	if err := e.store.InsertBurnHistory(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// HistoryReport returns persisted hourly-window history plus rollups for
// the burn history endpoint.
func (e *Engine) HistoryReport(ctx context.Context, serviceID int64, hours int) (*models.BurnHistoryReport, error) {
	svc, err := e.store.ServiceByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	since := e.now().UTC().Add(-time.Duration(hours) * time.Hour)
	rows, err := e.store.BurnHistory(ctx, storage.BurnHistoryQuery{
		ServiceID:     serviceID,
		WindowMinutes: 60,
		Since:         since,
	})
	if err != nil {
		return nil, err
	}

	report := &models.BurnHistoryReport{
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		History:     rows,
	}
	if len(rows) == 0 {
		return report, nil
	}

	report.CurrentBurnRate = rows[0].BurnRate
	var sum, peak float64
	for _, r := range rows {
		sum += r.BurnRate
		if r.BurnRate > peak {
			peak = r.BurnRate
		}
	}
	report.AverageBurnRate24h = models.RoundTo(sum/float64(len(rows)), 3)
	report.PeakBurnRate24h = models.RoundTo(peak, 3)
	return report, nil
}

// Statistics summarizes stored burn rates across every window over the
// lookback period.
func (e *Engine) Statistics(ctx context.Context, serviceID int64, hours int) (*models.BurnStatistics, error) {
	if _, err := e.store.ServiceByID(ctx, serviceID); err != nil {
		return nil, err
	}

	since := e.now().UTC().Add(-time.Duration(hours) * time.Hour)
	agg, err := e.store.BurnAggregatesSince(ctx, serviceID, since)
	if err != nil {
		return nil, err
	}

	stats := &models.BurnStatistics{Hours: hours}
	if agg.Samples == 0 {
		return stats, nil
	}
	stats.AverageBurnRate = models.RoundTo(deref(agg.AverageBurnRate), 3)
	stats.PeakBurnRate = models.RoundTo(deref(agg.PeakBurnRate), 3)
	stats.MinBurnRate = models.RoundTo(deref(agg.MinBurnRate), 3)
	stats.AverageBudgetConsumed = models.RoundTo(deref(agg.AverageBudgetConsumed), 2)
	return stats, nil
}

// availabilityTarget loads the active availability objective, falling back
// to the stock 99.9% target when the service has none.
func (e *Engine) availabilityTarget(ctx context.Context, serviceID int64) (*models.SLOTarget, error) {
	target, err := e.store.ActiveSLOTarget(ctx, serviceID, models.SLOAvailability)
	if err == nil {
		return target, nil
	}
	if models.KindOf(err) != models.ErrKindNotFound {
		return nil, fmt.Errorf("failed to load availability target: %w", err)
	}
	return &models.SLOTarget{
		ServiceID:         serviceID,
		Name:              models.SLOAvailability,
		TargetValue:       DefaultSLOTarget,
		WindowDays:        e.defaultWindowDays,
		ErrorBudgetPolicy: 100,
		BurnRateThreshold: 1.0,
		CriticalBurnRate:  DefaultCriticalBurnRate,
	}, nil
}

func (e *Engine) computeWindowsForService(ctx context.Context, svc *models.Service) ([]models.BurnRateComputation, error) {
	windows := make([]models.BurnRateComputation, 0, len(WindowConfigs))
	for _, wc := range WindowConfigs {
		c, err := e.ComputeForService(ctx, svc, wc.Minutes)
		if err != nil {
			return nil, err
		}
		windows = append(windows, *c)
	}
	return windows, nil
}

func (e *Engine) applyRisk(c *models.BurnRateComputation) {
	risk := Classify(c.BurnRate, c.ErrorBudgetConsumed, e.runtime.Tunables().Thresholds)
	c.RiskLevel = risk
	c.RiskColor = risk.Color()
	c.RiskAction = risk.Action()
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
