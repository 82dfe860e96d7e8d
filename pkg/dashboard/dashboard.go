// Package dashboard assembles the fleet-level views served to the UI: the
// executive overview and the service-by-time risk heatmap. The overview is
// cache-backed; the coordinator refreshes it after every computation cycle
// so interactive reads stay cheap.
package dashboard

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/storage"
)

const (
	// overviewWindowMinutes is the burn window behind the risk distribution
	// and budget columns of the overview.
	overviewWindowMinutes = 60

	// alertLookback bounds the active/critical alert counters.
	alertLookback = 24 * time.Hour

	// complianceTrendDelta is the fleet burn-rate shift between the two
	// half-day spans that reads as a trend rather than noise.
	complianceTrendDelta   = 0.1
	complianceTrendSpan    = 12 * time.Hour
	complianceTrendWindow  = 60
	defaultHeatmapHours    = 24
	defaultHeatmapInterval = 1
	heatmapTolerance       = 30 * time.Minute
)

// Store is the persistence surface the assembler needs.
type Store interface {
	ActiveServices(ctx context.Context) ([]models.Service, error)
	AlertBreakdownSince(ctx context.Context, since time.Time) (*storage.AlertBreakdown, error)
	NearestBurnHistory(ctx context.Context, serviceID int64, at time.Time, tolerance time.Duration) (*models.BurnHistory, error)
	FleetBurnAverage(ctx context.Context, windowMinutes int, from, to time.Time) (*float64, error)
}

// SLOComputer supplies the fleet compliance rollup.
type SLOComputer interface {
	GlobalCompliance(ctx context.Context) (*models.GlobalCompliance, error)
}

// BurnComputer evaluates the hourly window per service.
type BurnComputer interface {
	ComputeForService(ctx context.Context, svc *models.Service, windowMinutes int) (*models.BurnRateComputation, error)
}

// Forecaster supplies the nearest projected exhaustion.
type Forecaster interface {
	NearestExhaustion(ctx context.Context) (*models.NearestExhaustion, error)
}

// Assembler builds dashboard views from the engines and the store.
type Assembler struct {
	store    Store
	slo      SLOComputer
	burn     BurnComputer
	forecast Forecaster
	cache    *storage.SnapshotCache
	logger   *zap.Logger

	now func() time.Time
}

// New wires the assembler. The cache may be nil; reads then always
// recompute.
func New(store Store, slo SLOComputer, burn BurnComputer, forecast Forecaster, cache *storage.SnapshotCache, logger *zap.Logger) *Assembler {
	return &Assembler{
		store:    store,
		slo:      slo,
		burn:     burn,
		forecast: forecast,
		cache:    cache,
		logger:   logger.Named("dashboard"),
		now:      time.Now,
	}
}

// Overview returns the executive overview, preferring the cached copy the
// coordinator wrote on its last cycle.
func (a *Assembler) Overview(ctx context.Context) (*models.DashboardOverview, error) {
	if cached := a.cache.Overview(ctx); cached != nil {
		return cached, nil
	}
	return a.RefreshOverview(ctx)
}

// RefreshOverview rebuilds the overview from live computations and writes
// it through to the cache. Per-service computation failures shrink the
// risk distribution instead of failing the whole view.
func (a *Assembler) RefreshOverview(ctx context.Context) (*models.DashboardOverview, error) {
	compliance, err := a.slo.GlobalCompliance(ctx)
	if err != nil {
		return nil, err
	}
	services, err := a.store.ActiveServices(ctx)
	if err != nil {
		return nil, err
	}

	distribution := map[string]int{
		models.RiskSafe.String():    0,
		models.RiskObserve.String(): 0,
		models.RiskDanger.String():  0,
		models.RiskFreeze.String():  0,
	}
	var budgets []float64
	var lowestService *string
	var lowestBudget *float64

	for i := range services {
		svc := &services[i]
		burn, err := a.burn.ComputeForService(ctx, svc, overviewWindowMinutes)
		if err != nil {
			a.logger.Warn("Overview skipped a service",
				zap.String("service", svc.Name),
				zap.Error(err),
			)
			continue
		}
		distribution[burn.RiskLevel.String()]++
		budgets = append(budgets, burn.ErrorBudgetRemaining)
		if lowestBudget == nil || burn.ErrorBudgetRemaining < *lowestBudget {
			remaining := burn.ErrorBudgetRemaining
			name := svc.Name
			lowestBudget = &remaining
			lowestService = &name
		}
	}

	// A failed projection leaves the exhaustion panel empty.
	var nearest *models.NearestExhaustion
	if n, err := a.forecast.NearestExhaustion(ctx); err != nil {
		a.logger.Warn("Nearest exhaustion unavailable for overview", zap.Error(err))
	} else {
		nearest = n
	}

	breakdown, err := a.store.AlertBreakdownSince(ctx, a.now().UTC().Add(-alertLookback))
	if err != nil {
		return nil, err
	}
	critical := breakdown.BySeverity[models.SeverityCritical.String()] +
		breakdown.BySeverity[models.SeverityEmergency.String()]

	// A fleet with no computable services reads as a full budget.
	average := 100.0
	if len(budgets) > 0 {
		var sum float64
		for _, b := range budgets {
			sum += b
		}
		average = sum / float64(len(budgets))
	}

	overview := &models.DashboardOverview{
		TotalServices:          compliance.TotalServices,
		ServicesMeetingSLO:     compliance.ServicesMeetingSLO,
		ServicesAtRisk:         len(compliance.ServicesAtRisk),
		GlobalCompliance:       compliance.GlobalCompliance,
		RiskDistribution:       distribution,
		AverageBudgetRemaining: models.RoundTo(average, 2),
		LowestBudgetService:    lowestService,
		LowestBudgetPercentage: lowestBudget,
		NearestExhaustion:      nearest,
		ActiveAlerts:           breakdown.Total,
		CriticalAlerts:         critical,
		ComplianceTrend24h:     a.complianceTrend(ctx),
	}

	a.cache.SetOverview(ctx, overview)
	return overview, nil
}

// complianceTrend compares the fleet's mean hourly burn over the last half
// day against the half day before it. Higher burn degrades compliance, so
// the comparison inverts. Missing history or a failed query reads as
// stable.
func (a *Assembler) complianceTrend(ctx context.Context) string {
	now := a.now().UTC()
	mid := now.Add(-complianceTrendSpan)

	recent, err := a.store.FleetBurnAverage(ctx, complianceTrendWindow, mid, now)
	if err != nil {
		a.logger.Warn("Compliance trend unavailable", zap.Error(err))
		return "stable"
	}
	prior, err := a.store.FleetBurnAverage(ctx, complianceTrendWindow, now.Add(-2*complianceTrendSpan), mid)
	if err != nil {
		a.logger.Warn("Compliance trend unavailable", zap.Error(err))
		return "stable"
	}
	if recent == nil || prior == nil {
		return "stable"
	}

	switch {
	case *recent < *prior-complianceTrendDelta:
		return "improving"
	case *recent > *prior+complianceTrendDelta:
		return "degrading"
	default:
		return "stable"
	}
}

// Heatmap builds the service-by-time risk matrix: active services ordered
// by name against hourly buckets over the lookback, each cell resolved to
// the stored hourly-window risk nearest the bucket. Buckets with no history
// within the tolerance render as safe.
func (a *Assembler) Heatmap(ctx context.Context, hours, intervalHours int) (*models.Heatmap, error) {
	if hours <= 0 {
		hours = defaultHeatmapHours
	}
	if intervalHours <= 0 {
		intervalHours = defaultHeatmapInterval
	}

	services, err := a.store.ActiveServices(ctx)
	if err != nil {
		return nil, err
	}

	heatmap := &models.Heatmap{
		Services:   []string{},
		Timestamps: []time.Time{},
		RiskMatrix: [][]string{},
	}
	if len(services) == 0 {
		return heatmap, nil
	}

	now := a.now().UTC()
	interval := time.Duration(intervalHours) * time.Hour
	for ts := now.Add(-time.Duration(hours) * time.Hour); !ts.After(now); ts = ts.Add(interval) {
		heatmap.Timestamps = append(heatmap.Timestamps, ts)
	}

	for i := range services {
		svc := &services[i]
		heatmap.Services = append(heatmap.Services, svc.Name)

		row := make([]string, 0, len(heatmap.Timestamps))
		for _, ts := range heatmap.Timestamps {
			h, err := a.store.NearestBurnHistory(ctx, svc.ID, ts, heatmapTolerance)
			switch {
			case err == nil:
				row = append(row, h.RiskLevel.String())
			case models.KindOf(err) == models.ErrKindNotFound:
				row = append(row, models.RiskSafe.String())
			default:
				return nil, err
			}
		}
		heatmap.RiskMatrix = append(heatmap.RiskMatrix, row)
	}

	return heatmap, nil
}
