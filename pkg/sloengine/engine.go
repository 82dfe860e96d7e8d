// Package sloengine measures SLO compliance and error budget consumption
// over each target's full window.
package sloengine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
)

// Default objectives registered for every new service.
const (
	DefaultAvailabilityTarget = 99.9
	DefaultLatencyTarget      = 99.0
)

// Store is the persistence surface the engine needs.
type Store interface {
	ServiceByID(ctx context.Context, id int64) (*models.Service, error)
	ActiveServices(ctx context.Context) ([]models.Service, error)
	SLOTargets(ctx context.Context, serviceID int64, activeOnly bool) ([]models.SLOTarget, error)
	CreateSLOTarget(ctx context.Context, t *models.SLOTarget) error
	MetricTotals(ctx context.Context, serviceID int64, from, to time.Time) (int64, int64, error)
}

// Engine computes SLO compliance. Safe for concurrent use.
type Engine struct {
	store             Store
	logger            *zap.Logger
	defaultWindowDays int
	now               func() time.Time
}

// NewEngine constructs an SLO engine.
func NewEngine(store Store, defaultWindowDays int, logger *zap.Logger) *Engine {
	return &Engine{
		store:             store,
		logger:            logger,
		defaultWindowDays: defaultWindowDays,
		now:               time.Now,
	}
}

// ComputeTarget evaluates one target over its window. Success counting is
// request-based for every objective kind; a window with no traffic reads
// as full compliance with an untouched budget.
func (e *Engine) ComputeTarget(ctx context.Context, svc *models.Service, target *models.SLOTarget) (*models.SLOComputation, error) {
	now := e.now().UTC()
	windowStart := now.Add(-time.Duration(target.WindowDays) * 24 * time.Hour)

	totalRequests, errorCount, err := e.store.MetricTotals(ctx, svc.ID, windowStart, now)
	if err != nil {
		return nil, err
	}

	c := &models.SLOComputation{
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		SLOName:     target.Name,
		TargetValue: target.TargetValue,
		WindowStart: windowStart,
		WindowEnd:   now,
		ComputedAt:  now,
	}

	allowedErrorRate := (100 - target.TargetValue) / 100

	if totalRequests == 0 {
		c.CurrentValue = 100
		c.IsMeetingSLO = true
		c.RemainingPercentage = 100
	} else {
		currentValue := (1 - float64(errorCount)/float64(totalRequests)) * 100
		c.CurrentValue = models.RoundTo(currentValue, 4)
		c.IsMeetingSLO = c.CurrentValue >= target.TargetValue

		totalBudget := float64(totalRequests) * allowedErrorRate
		c.TotalBudget = models.RoundTo(totalBudget, 2)
		c.ConsumedBudget = float64(errorCount)

		consumed := 0.0
		if totalBudget > 0 {
			consumed = float64(errorCount) / totalBudget * 100
			if consumed > 100 {
				consumed = 100
			}
		}
		c.ConsumedPercentage = models.RoundTo(consumed, 2)
		c.RemainingPercentage = models.RoundTo(100-consumed, 2)
	}

	for _, w := range []struct {
		dur  time.Duration
		dest **float64
	}{
		{5 * time.Minute, &c.Availability5m},
		{time.Hour, &c.Availability1h},
		{24 * time.Hour, &c.Availability24h},
	} {
		avail, err := e.availabilityOver(ctx, svc.ID, now, w.dur)
		if err != nil {
			return nil, err
		}
		*w.dest = avail
	}

	return c, nil
}

// ServiceStatus evaluates every active target of a service.
func (e *Engine) ServiceStatus(ctx context.Context, serviceID int64) (*models.ServiceSLOStatus, error) {
	svc, err := e.store.ServiceByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return e.ServiceStatusFor(ctx, svc)
}

// ServiceStatusFor evaluates an already-loaded service. With no active
// targets the service counts as fully compliant.
func (e *Engine) ServiceStatusFor(ctx context.Context, svc *models.Service) (*models.ServiceSLOStatus, error) {
	targets, err := e.store.SLOTargets(ctx, svc.ID, true)
	if err != nil {
		return nil, err
	}

	status := &models.ServiceSLOStatus{
		ServiceID:    svc.ID,
		ServiceName:  svc.Name,
		Computations: []models.SLOComputation{},
	}
	if len(targets) == 0 {
		status.OverallCompliance = 100
		status.IsHealthy = true
		return status, nil
	}

	var sum float64
	healthy := true
	for i := range targets {
		c, err := e.ComputeTarget(ctx, svc, &targets[i])
		if err != nil {
			return nil, err
		}
		status.Computations = append(status.Computations, *c)

		// Per-target compliance is the achievement ratio, capped at 100 so
		// overachieving one target cannot mask missing another.
		ratio := 100.0
		if targets[i].TargetValue > 0 {
			ratio = c.CurrentValue / targets[i].TargetValue * 100
			if ratio > 100 {
				ratio = 100
			}
		}
		sum += ratio
		if !c.IsMeetingSLO {
			healthy = false
		}
	}
	status.OverallCompliance = models.RoundTo(sum/float64(len(targets)), 2)
	status.IsHealthy = healthy
	return status, nil
}

// GlobalCompliance rolls the fleet up into one number. An empty fleet is
// fully compliant.
func (e *Engine) GlobalCompliance(ctx context.Context) (*models.GlobalCompliance, error) {
	services, err := e.store.ActiveServices(ctx)
	if err != nil {
		return nil, err
	}

	global := &models.GlobalCompliance{
		TotalServices:  len(services),
		ServicesAtRisk: []string{},
	}
	if len(services) == 0 {
		global.GlobalCompliance = 100
		return global, nil
	}

	var sum float64
	for i := range services {
		status, err := e.ServiceStatusFor(ctx, &services[i])
		if err != nil {
			return nil, err
		}
		sum += status.OverallCompliance
		if status.IsHealthy {
			global.ServicesMeetingSLO++
		} else {
			global.ServicesAtRisk = append(global.ServicesAtRisk, services[i].Name)
		}
	}
	global.GlobalCompliance = models.RoundTo(sum/float64(len(services)), 2)
	return global, nil
}

// CreateDefaultTargets registers the stock availability and latency
// objectives for a new service.
func (e *Engine) CreateDefaultTargets(ctx context.Context, serviceID int64) ([]models.SLOTarget, error) {
	targets := []models.SLOTarget{
		{
			ServiceID:         serviceID,
			Name:              models.SLOAvailability,
			TargetValue:       DefaultAvailabilityTarget,
			WindowDays:        e.defaultWindowDays,
			ErrorBudgetPolicy: 100,
			BurnRateThreshold: 1.0,
			CriticalBurnRate:  2.0,
		},
		{
			ServiceID:         serviceID,
			Name:              models.SLOLatencyP99,
			TargetValue:       DefaultLatencyTarget,
			WindowDays:        e.defaultWindowDays,
			ErrorBudgetPolicy: 100,
			BurnRateThreshold: 1.0,
			CriticalBurnRate:  2.0,
		},
	}
	for i := range targets {
		if err := e.store.CreateSLOTarget(ctx, &targets[i]); err != nil {
			return nil, err
		}
	}
	return targets, nil
}

// availabilityOver returns success percentage over the trailing duration,
// or nil when the span saw no traffic.
func (e *Engine) availabilityOver(ctx context.Context, serviceID int64, now time.Time, dur time.Duration) (*float64, error) {
	total, errCount, err := e.store.MetricTotals(ctx, serviceID, now.Add(-dur), now)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}
	avail := models.RoundTo((1-float64(errCount)/float64(total))*100, 4)
	return &avail, nil
}
