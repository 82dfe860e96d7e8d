// Package telemetry exposes the platform's Prometheus instrumentation on a
// private registry so the /metrics endpoint serves only what we own.
package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
)

const namespace = "reliability"

// Metrics owns every instrument the platform records.
type Metrics struct {
	registry *prometheus.Registry

	// Coordinator loop.
	TicksTotal      prometheus.Counter
	TickErrorsTotal prometheus.Counter
	TickDuration    prometheus.Histogram

	// Burn computations.
	ComputationsTotal *prometheus.CounterVec

	// Alerting.
	AlertsFiredTotal      *prometheus.CounterVec
	AlertsSuppressedTotal *prometheus.CounterVec

	// Release gate.
	GateDecisionsTotal *prometheus.CounterVec

	// HTTP serving.
	HTTPRequestDuration *prometheus.HistogramVec

	// Current state gauges, refreshed every coordinator tick.
	BurnRate        *prometheus.GaugeVec
	BudgetRemaining *prometheus.GaugeVec
	RiskLevel       *prometheus.GaugeVec
}

// New builds the instrument set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coordinator_ticks_total",
			Help:      "Completed coordinator computation cycles.",
		}),
		TickErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coordinator_tick_errors_total",
			Help:      "Coordinator cycles that failed for at least one service.",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "coordinator_tick_duration_seconds",
			Help:      "Wall time of one full computation cycle.",
			Buckets:   prometheus.DefBuckets,
		}),

		ComputationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "burn_computations_total",
			Help:      "Burn rate computations by outcome.",
		}, []string{"outcome"}),

		AlertsFiredTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_fired_total",
			Help:      "Alerts created, by type and severity.",
		}, []string{"alert_type", "severity"}),
		AlertsSuppressedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_suppressed_total",
			Help:      "Alerts suppressed by the cooldown window, by type.",
		}, []string{"alert_type"}),

		GateDecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_decisions_total",
			Help:      "Release gate decisions by outcome.",
		}, []string{"outcome"}),

		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route and status.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),

		BurnRate: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "burn_rate",
			Help:      "Latest burn rate per service and window.",
		}, []string{"service", "window"}),
		BudgetRemaining: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "error_budget_remaining_percent",
			Help:      "Latest 24h error budget remaining per service.",
		}, []string{"service"}),
		RiskLevel: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "risk_level",
			Help:      "Composite risk ordinal per service (0=safe .. 3=freeze).",
		}, []string{"service"}),
	}
}

// Gatherer exposes the private registry for the /metrics handler.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// ObserveComputation records one burn computation outcome.
func (m *Metrics) ObserveComputation(err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.ComputationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveTick records one coordinator cycle.
func (m *Metrics) ObserveTick(d time.Duration, failed bool) {
	m.TicksTotal.Inc()
	m.TickDuration.Observe(d.Seconds())
	if failed {
		m.TickErrorsTotal.Inc()
	}
}

// RecordServiceState refreshes the per-service gauges from a weighted
// computation.
func (m *Metrics) RecordServiceState(w *models.WeightedBurnRate) {
	for _, window := range w.Windows {
		m.BurnRate.WithLabelValues(w.ServiceName, strconv.Itoa(window.WindowMinutes)).
			Set(window.BurnRate)
		if window.WindowMinutes == 1440 {
			m.BudgetRemaining.WithLabelValues(w.ServiceName).
				Set(window.ErrorBudgetRemaining)
		}
	}
	m.RiskLevel.WithLabelValues(w.ServiceName).Set(float64(w.CompositeRisk.Severity()))
}

// ForgetService drops the gauges of a deactivated service so stale series
// do not linger on the scrape page.
func (m *Metrics) ForgetService(name string) {
	m.BurnRate.DeletePartialMatch(prometheus.Labels{"service": name})
	m.BudgetRemaining.DeleteLabelValues(name)
	m.RiskLevel.DeleteLabelValues(name)
}
