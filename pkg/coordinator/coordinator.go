// Package coordinator drives the periodic computation cycle: on every tick
// it recomputes and persists burn rates for all active services across the
// canonical windows, evaluates alert conditions, tracks risk transitions
// between ticks, and refreshes the snapshot cache.
package coordinator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/burnrate"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/storage"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/telemetry"
)

// alertWindowMinutes is the window whose computation feeds alert
// evaluation.
const alertWindowMinutes = 60

// Store is the persistence surface the coordinator needs.
type Store interface {
	ActiveServices(ctx context.Context) ([]models.Service, error)
}

// BurnComputer evaluates and persists per-window burn computations.
type BurnComputer interface {
	ComputeForService(ctx context.Context, svc *models.Service, windowMinutes int) (*models.BurnRateComputation, error)
	StoreComputation(ctx context.Context, c *models.BurnRateComputation) (*models.BurnHistory, error)
}

// AlertSink receives the per-tick alerting hooks.
type AlertSink interface {
	Evaluate(ctx context.Context, svc *models.Service, burn *models.BurnRateComputation) ([]models.Alert, error)
	RiskEscalated(ctx context.Context, svc *models.Service, from, to models.RiskLevel) (*models.Alert, error)
	Recovered(ctx context.Context, svc *models.Service, to models.RiskLevel) (*models.Alert, error)
}

// OverviewRefresher rebuilds the dashboard overview and writes it through
// to the cache. Optional; nil skips the refresh.
type OverviewRefresher interface {
	RefreshOverview(ctx context.Context) (*models.DashboardOverview, error)
}

// Coordinator owns the tick loop. Start launches the loop goroutine; Stop
// interrupts the sleep, lets the in-flight service finish, and waits for
// the goroutine to exit.
type Coordinator struct {
	store    Store
	burn     BurnComputer
	alerts   AlertSink
	overview OverviewRefresher
	cache    *storage.SnapshotCache
	metrics  *telemetry.Metrics
	logger   *zap.Logger
	interval time.Duration

	// lastRisk remembers each service's composite risk from the previous
	// tick so escalations and recoveries fire on transitions, not states.
	mu       sync.Mutex
	lastRisk map[int64]models.RiskLevel

	cancel context.CancelFunc
	done   chan struct{}
}

// New wires the coordinator. The overview refresher may be nil when no
// dashboard assembly is wanted (tests, one-shot tools).
func New(
	store Store,
	burn BurnComputer,
	alerts AlertSink,
	overview OverviewRefresher,
	cache *storage.SnapshotCache,
	metrics *telemetry.Metrics,
	interval time.Duration,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		store:    store,
		burn:     burn,
		alerts:   alerts,
		overview: overview,
		cache:    cache,
		metrics:  metrics,
		logger:   logger.Named("coordinator"),
		interval: interval,
		lastRisk: make(map[int64]models.RiskLevel),
	}
}

// Start launches the loop goroutine: an immediate tick, then one per
// interval until Stop is called or ctx is cancelled. Calling Start twice
// without an intervening Stop is a programming error.
func (c *Coordinator) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(runCtx)
}

// Stop interrupts the sleep and waits for the loop goroutine. The service
// being processed when Stop arrives runs to completion; remaining services
// are picked up on the next Start.
func (c *Coordinator) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel = nil
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.done)

	c.logger.Info("Coordinator started", zap.Duration("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Coordinator stopped")
			return
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Tick runs one computation cycle. Per-service failures are logged and
// counted but never abort the cycle; ctx cancellation stops the cycle
// between services.
func (c *Coordinator) Tick(ctx context.Context) {
	start := time.Now()

	services, err := c.store.ActiveServices(ctx)
	if err != nil {
		c.logger.Error("Failed to list active services", zap.Error(err))
		c.metrics.ObserveTick(time.Since(start), true)
		return
	}

	// Work proceeds on a cancellation-immune context so the in-flight
	// service finishes after Stop; storage deadlines still bound each call.
	workCtx := context.WithoutCancel(ctx)

	failures := 0
	for i := range services {
		if ctx.Err() != nil {
			c.logger.Info("Tick interrupted",
				zap.Int("processed", i),
				zap.Int("services", len(services)),
			)
			return
		}
		if err := c.processService(workCtx, &services[i]); err != nil {
			failures++
			c.logger.Error("Service computation failed",
				zap.String("service", services[i].Name),
				zap.Error(err),
			)
		}
	}

	if c.overview != nil {
		if _, err := c.overview.RefreshOverview(workCtx); err != nil {
			c.logger.Warn("Dashboard overview refresh failed", zap.Error(err))
		}
	}

	c.metrics.ObserveTick(time.Since(start), failures > 0)
	c.logger.Debug("Tick complete",
		zap.Int("services", len(services)),
		zap.Int("failures", failures),
		zap.Duration("duration", time.Since(start)),
	)
}

// processService computes and persists every canonical window for one
// service, evaluates alerts on the hourly window, and publishes the
// composite state.
func (c *Coordinator) processService(ctx context.Context, svc *models.Service) error {
	windows := make([]models.BurnRateComputation, 0, len(burnrate.WindowConfigs))
	var hourly *models.BurnRateComputation

	for _, wc := range burnrate.WindowConfigs {
		comp, err := c.burn.ComputeForService(ctx, svc, wc.Minutes)
		c.metrics.ObserveComputation(err)
		if err != nil {
			return err
		}
		if _, err := c.burn.StoreComputation(ctx, comp); err != nil {
			return err
		}
		windows = append(windows, *comp)
		if comp.WindowMinutes == alertWindowMinutes {
			hourly = comp
		}
	}

	// Alerting degrades independently of the persisted computations.
	if hourly != nil {
		if _, err := c.alerts.Evaluate(ctx, svc, hourly); err != nil {
			c.logger.Warn("Alert evaluation failed",
				zap.String("service", svc.Name),
				zap.Error(err),
			)
		}
	}

	composite := burnrate.Composite(svc.ID, svc.Name, windows)
	c.noteTransition(ctx, svc, composite.CompositeRisk)
	c.cache.SetLatestBurn(ctx, svc.ID, composite)
	c.metrics.RecordServiceState(composite)
	return nil
}

// noteTransition compares the composite risk with the previous tick's and
// raises escalation or recovery alerts on the edges. The first observation
// of a service only seeds the baseline.
func (c *Coordinator) noteTransition(ctx context.Context, svc *models.Service, current models.RiskLevel) {
	c.mu.Lock()
	previous, seen := c.lastRisk[svc.ID]
	c.lastRisk[svc.ID] = current
	c.mu.Unlock()

	if !seen || current == previous {
		return
	}

	switch {
	case current.Severity() > previous.Severity() && current.Severity() >= models.RiskDanger.Severity():
		if _, err := c.alerts.RiskEscalated(ctx, svc, previous, current); err != nil {
			c.logger.Warn("Risk escalation alert failed",
				zap.String("service", svc.Name),
				zap.Error(err),
			)
		}
	case current == models.RiskSafe:
		if _, err := c.alerts.Recovered(ctx, svc, current); err != nil {
			c.logger.Warn("Recovery alert failed",
				zap.String("service", svc.Name),
				zap.Error(err),
			)
		}
	}
}
