package models

import (
	"math"
	"time"
)

// BurnRateComputation is the result of evaluating one (service, window)
// pair against its availability target. Pure function of the metrics in the
// window, the target, and the risk thresholds.
type BurnRateComputation struct {
	ServiceID   int64     `json:"service_id"`
	ServiceName string    `json:"service_name"`
	Timestamp   time.Time `json:"timestamp"`

	WindowMinutes int `json:"window_minutes"`

	CurrentErrorRate float64 `json:"current_error_rate"` // 6 dp
	AllowedErrorRate float64 `json:"allowed_error_rate"` // 6 dp
	BurnRate         float64 `json:"burn_rate"`          // 3 dp

	ErrorBudgetConsumed  float64 `json:"error_budget_consumed"`  // %, 2 dp
	ErrorBudgetRemaining float64 `json:"error_budget_remaining"` // %, 2 dp

	RiskLevel  RiskLevel `json:"risk_level"`
	RiskColor  string    `json:"risk_color"`
	RiskAction string    `json:"risk_action"`
}

// WeightedBurnRate aggregates the canonical windows into a single signal.
// CompositeRisk is the most severe per-window classification.
type WeightedBurnRate struct {
	ServiceID     int64                 `json:"service_id"`
	ServiceName   string                `json:"service_name"`
	BurnRate      float64               `json:"burn_rate"`
	CompositeRisk RiskLevel             `json:"composite_risk"`
	Windows       []BurnRateComputation `json:"windows"`
}

// BurnStatistics summarizes persisted burn history over a lookback period.
type BurnStatistics struct {
	AverageBurnRate       float64 `json:"average_burn_rate"`
	PeakBurnRate          float64 `json:"peak_burn_rate"`
	MinBurnRate           float64 `json:"min_burn_rate"`
	AverageBudgetConsumed float64 `json:"average_budget_consumed"`
	Hours                 int     `json:"hours"`
}

// BurnHistoryReport is the burn endpoint response: persisted hourly-window
// history plus rollups, newest row first.
type BurnHistoryReport struct {
	ServiceID          int64         `json:"service_id"`
	ServiceName        string        `json:"service_name"`
	History            []BurnHistory `json:"history"`
	CurrentBurnRate    float64       `json:"current_burn_rate"`
	AverageBurnRate24h float64       `json:"average_burn_rate_24h"`
	PeakBurnRate24h    float64       `json:"peak_burn_rate_24h"`
}

// SLOComputation is the compliance report for one target over its window.
type SLOComputation struct {
	ServiceID    int64   `json:"service_id"`
	ServiceName  string  `json:"service_name"`
	SLOName      string  `json:"slo_name"`
	TargetValue  float64 `json:"target_value"`
	CurrentValue float64 `json:"current_value"` // 4 dp
	IsMeetingSLO bool    `json:"is_meeting_slo"`

	TotalBudget         float64 `json:"total_budget"`
	ConsumedBudget      float64 `json:"consumed_budget"`
	ConsumedPercentage  float64 `json:"consumed_percentage"`
	RemainingPercentage float64 `json:"remaining_percentage"`

	// Rolling availability context; nil when the window had no traffic.
	Availability5m  *float64 `json:"availability_5m"`
	Availability1h  *float64 `json:"availability_1h"`
	Availability24h *float64 `json:"availability_24h"`

	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	ComputedAt  time.Time `json:"computed_at"`
}

// ServiceSLOStatus bundles a service's computations with its mean compliance.
type ServiceSLOStatus struct {
	ServiceID         int64            `json:"service_id"`
	ServiceName       string           `json:"service_name"`
	Computations      []SLOComputation `json:"computations"`
	OverallCompliance float64          `json:"overall_compliance"`
	IsHealthy         bool             `json:"is_healthy"`
}

// SLOReport is the per-service SLO endpoint response.
type SLOReport struct {
	Service           Service          `json:"service"`
	Targets           []SLOTarget      `json:"targets"`
	Computations      []SLOComputation `json:"computations"`
	OverallCompliance float64          `json:"overall_compliance"`
	RiskLevel         RiskLevel        `json:"risk_level"`
}

// GlobalCompliance is the fleet-wide compliance rollup.
type GlobalCompliance struct {
	TotalServices      int      `json:"total_services"`
	ServicesMeetingSLO int      `json:"services_meeting_slo"`
	GlobalCompliance   float64  `json:"global_compliance"`
	ServicesAtRisk     []string `json:"services_at_risk"`
}

// TrendDirection classifies the regression slope of recent burn rates.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendStable     TrendDirection = "stable"
	TrendDecreasing TrendDirection = "decreasing"
)

// ConfidenceLevel grades how much the trend fit can be trusted.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Forecast projects when a service's error budget reaches zero.
type Forecast struct {
	ServiceID   int64     `json:"service_id"`
	ServiceName string    `json:"service_name"`
	ComputedAt  time.Time `json:"computed_at"`

	CurrentBurnRate      float64 `json:"current_burn_rate"`
	ErrorBudgetRemaining float64 `json:"error_budget_remaining"`

	TimeToExhaustionHours   *float64        `json:"time_to_exhaustion_hours"`
	ProjectedExhaustionTime *time.Time      `json:"projected_exhaustion_time"`
	ConfidenceLevel         ConfidenceLevel `json:"confidence_level"`

	BurnRateTrend TrendDirection `json:"burn_rate_trend"`
	TrendSlope    float64        `json:"trend_slope"` // burn-rate change per hour, 4 dp

	ForecastMessage string `json:"forecast_message"`
}

// NearestExhaustion identifies the service closest to budget exhaustion.
type NearestExhaustion struct {
	ServiceName             string     `json:"service_name"`
	TimeToExhaustionHours   float64    `json:"time_to_exhaustion_hours"`
	ProjectedExhaustionTime *time.Time `json:"projected_exhaustion_time"`
	CurrentBurnRate         float64    `json:"current_burn_rate"`
	BudgetRemaining         float64    `json:"budget_remaining"`
}

// ReleaseCheckRequest asks the gate whether a deployment may proceed.
type ReleaseCheckRequest struct {
	ServiceName    string  `json:"service_name" validate:"required"`
	DeploymentID   string  `json:"deployment_id"`
	Version        *string `json:"version,omitempty"`
	RequestedBy    *string `json:"requested_by,omitempty"`
	Override       bool    `json:"override"`
	OverrideReason *string `json:"override_reason,omitempty"`
}

// ReleaseCheckResponse is the gate's auditable decision.
type ReleaseCheckResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`

	ServiceName  string `json:"service_name"`
	DeploymentID string `json:"deployment_id"`

	CurrentRiskLevel      RiskLevel `json:"current_risk_level"`
	CurrentBurnRate       float64   `json:"current_burn_rate"`
	ErrorBudgetRemaining  float64   `json:"error_budget_remaining"`
	TimeToExhaustionHours *float64  `json:"time_to_exhaustion_hours"`

	Recommendations []string `json:"recommendations"`

	CheckedAt time.Time `json:"checked_at"`
	CheckedBy string    `json:"checked_by"`
}

// GateStatistics summarizes release-gate outcomes over a period.
type GateStatistics struct {
	PeriodDays         int              `json:"period_days"`
	TotalDeployments   int64            `json:"total_deployments"`
	BlockedDeployments int64            `json:"blocked_deployments"`
	AllowedDeployments int64            `json:"allowed_deployments"`
	BlockRate          float64          `json:"block_rate"` // %, 2 dp
	RiskDistribution   map[string]int64 `json:"risk_distribution"`
}

// AlertFeed is the feed response with rollup counters.
type AlertFeed struct {
	Alerts         []AlertWithService `json:"alerts"`
	Total          int64              `json:"total"`
	Unacknowledged int64              `json:"unacknowledged"`
}

// AlertStatistics counts alerts by severity over a period.
type AlertStatistics struct {
	PeriodDays     int              `json:"period_days"`
	BySeverity     map[string]int64 `json:"by_severity"`
	Total          int64            `json:"total"`
	Unacknowledged int64            `json:"unacknowledged"`
}

// MetricSnapshot is one ingestion payload item; service is referenced by
// name and created on first sight.
type MetricSnapshot struct {
	Service       string    `json:"service" validate:"required"`
	Timestamp     time.Time `json:"timestamp"`
	TotalRequests int64     `json:"total_requests" validate:"gte=0"`
	ErrorCount    int64     `json:"error_count" validate:"gte=0"`
	LatencyP50    *float64  `json:"latency_p50,omitempty"`
	LatencyP95    *float64  `json:"latency_p95,omitempty"`
	LatencyP99    *float64  `json:"latency_p99,omitempty"`
}

// IngestResult reports how a batch ingestion went.
type IngestResult struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

// AggregatedMetrics is the rolled-up view over a window.
type AggregatedMetrics struct {
	TotalRequests int64    `json:"total_requests"`
	ErrorCount    int64    `json:"error_count"`
	Availability  *float64 `json:"availability"`
	AvgLatencyP99 *float64 `json:"avg_latency_p99"`
	WindowMinutes int      `json:"window_minutes"`
	DataPoints    int      `json:"data_points"`
}

// Insight is one generated observation about a service.
type Insight struct {
	ServiceName string         `json:"service_name"`
	InsightType string         `json:"insight_type"` // "warning", "recommendation", "status"
	Message     string         `json:"message"`
	Severity    string         `json:"severity"`
	Data        map[string]any `json:"data,omitempty"`
}

// SummaryReport is the fleet-wide narrative summary.
type SummaryReport struct {
	GeneratedAt   time.Time `json:"generated_at"`
	OverallHealth string    `json:"overall_health"` // "healthy", "degraded", "critical"
	OverallScore  float64   `json:"overall_score"`  // 0-100

	ExecutiveSummary string    `json:"executive_summary"`
	Insights         []Insight `json:"insights"`
	ActionItems      []string  `json:"action_items"`
	ServicesAtRisk   []string  `json:"services_at_risk"`

	NearestBudgetExhaustion *NearestExhaustion `json:"nearest_budget_exhaustion"`
}

// ServiceNarrative is the health summary for a single service.
type ServiceNarrative struct {
	ServiceID   int64     `json:"service_id"`
	ServiceName string    `json:"service_name"`
	GeneratedAt time.Time `json:"generated_at"`
	HealthScore float64   `json:"health_score"` // 0-100
	Insights    []Insight `json:"insights"`
}

// DashboardOverview is the executive dashboard payload.
type DashboardOverview struct {
	TotalServices      int     `json:"total_services"`
	ServicesMeetingSLO int     `json:"services_meeting_slo"`
	ServicesAtRisk     int     `json:"services_at_risk"`
	GlobalCompliance   float64 `json:"global_compliance_score"`

	RiskDistribution map[string]int `json:"risk_distribution"`

	AverageBudgetRemaining float64  `json:"average_budget_remaining"`
	LowestBudgetService    *string  `json:"lowest_budget_service"`
	LowestBudgetPercentage *float64 `json:"lowest_budget_percentage"`

	NearestExhaustion *NearestExhaustion `json:"nearest_exhaustion"`

	ActiveAlerts   int64 `json:"active_alerts"`
	CriticalAlerts int64 `json:"critical_alerts"`

	ComplianceTrend24h string `json:"compliance_trend_24h"` // "improving", "stable", "degrading"
}

// Heatmap is the service-by-time risk matrix; RiskMatrix[i][j] is the level
// for Services[i] near Timestamps[j].
type Heatmap struct {
	Services   []string    `json:"services"`
	Timestamps []time.Time `json:"timestamps"`
	RiskMatrix [][]string  `json:"risk_matrix"`
}

// RoundTo rounds v to the given number of decimal places. Computation
// outputs round rates to 6 dp, burn rates to 3 dp, and percentages to 2 dp.
func RoundTo(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
