// Package narrative turns reliability state into prose: per-service
// health scores with insights, a fleet executive summary with prioritized
// action items, and a markdown report per service. All generation is
// deterministic templating over engine output.
package narrative

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/storage"
)

// Health score deductions. Burn penalties are exclusive (worst wins);
// the low-budget and trend penalties stack on top.
const (
	penaltyExhausted    = 50
	penaltyBurnCritical = 40
	penaltyBurnElevated = 20
	penaltyLowBudget    = 15
	penaltyTrend        = 5
)

// Overall health bands over the fleet-average score.
const (
	healthyFloor  = 90.0
	degradedFloor = 70.0
)

const reportAlertWindow = 24 * time.Hour

// Store is the persistence surface narrative generation needs.
type Store interface {
	ServiceByID(ctx context.Context, id int64) (*models.Service, error)
	ActiveServices(ctx context.Context) ([]models.Service, error)
	Alerts(ctx context.Context, f storage.AlertFilter) ([]models.AlertWithService, error)
}

// BurnComputer supplies fresh burn state.
type BurnComputer interface {
	ComputeForService(ctx context.Context, svc *models.Service, windowMinutes int) (*models.BurnRateComputation, error)
	WeightedForService(ctx context.Context, svc *models.Service) (*models.WeightedBurnRate, error)
}

// Forecaster supplies exhaustion projections.
type Forecaster interface {
	Forecast(ctx context.Context, serviceID int64) (*models.Forecast, error)
	NearestExhaustion(ctx context.Context) (*models.NearestExhaustion, error)
}

// Generator renders narratives. Safe for concurrent use.
type Generator struct {
	store    Store
	burn     BurnComputer
	forecast Forecaster
	logger   *zap.Logger
	now      func() time.Time
}

// NewGenerator constructs a narrative generator.
func NewGenerator(store Store, burn BurnComputer, forecast Forecaster, logger *zap.Logger) *Generator {
	return &Generator{
		store:    store,
		burn:     burn,
		forecast: forecast,
		logger:   logger.Named("narrative"),
		now:      time.Now,
	}
}

// Summary builds the fleet-wide reliability summary. Services that cannot
// be analyzed contribute an informational insight and a neutral score
// rather than failing the whole summary.
func (g *Generator) Summary(ctx context.Context) (*models.SummaryReport, error) {
	services, err := g.store.ActiveServices(ctx)
	if err != nil {
		return nil, err
	}

	insights := []models.Insight{}
	atRisk := []string{}
	atRiskSeen := map[string]bool{}
	criticalCount := 0
	totalScore := 0.0

	for i := range services {
		svc := &services[i]
		serviceInsights, score := g.analyze(ctx, svc)
		insights = append(insights, serviceInsights...)
		totalScore += score

		for _, in := range serviceInsights {
			if in.Severity == "critical" || in.Severity == "warning" {
				if !atRiskSeen[svc.Name] {
					atRiskSeen[svc.Name] = true
					atRisk = append(atRisk, svc.Name)
				}
			}
			if in.Severity == "critical" {
				criticalCount++
			}
		}
	}

	overallScore := 100.0
	if len(services) > 0 {
		overallScore = totalScore / float64(len(services))
	}

	overallHealth := "critical"
	switch {
	case overallScore >= healthyFloor:
		overallHealth = "healthy"
	case overallScore >= degradedFloor:
		overallHealth = "degraded"
	}

	nearest, err := g.forecast.NearestExhaustion(ctx)
	if err != nil {
		return nil, err
	}

	return &models.SummaryReport{
		GeneratedAt:             g.now().UTC(),
		OverallHealth:           overallHealth,
		OverallScore:            models.RoundTo(overallScore, 1),
		ExecutiveSummary:        executiveSummary(len(services), atRisk, overallScore, criticalCount, nearest),
		Insights:                insights,
		ActionItems:             actionItems(insights, atRisk),
		ServicesAtRisk:          atRisk,
		NearestBudgetExhaustion: nearest,
	}, nil
}

// ServiceSummary scores a single service and returns its insights.
func (g *Generator) ServiceSummary(ctx context.Context, serviceID int64) (*models.ServiceNarrative, error) {
	svc, err := g.store.ServiceByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	insights, score := g.analyze(ctx, svc)
	return &models.ServiceNarrative{
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		GeneratedAt: g.now().UTC(),
		HealthScore: score,
		Insights:    insights,
	}, nil
}

// Report renders the markdown reliability report for one service.
func (g *Generator) Report(ctx context.Context, serviceID int64) (string, error) {
	svc, err := g.store.ServiceByID(ctx, serviceID)
	if err != nil {
		return "", err
	}
	current, err := g.burn.ComputeForService(ctx, svc, 60)
	if err != nil {
		return "", err
	}
	weighted, err := g.burn.WeightedForService(ctx, svc)
	if err != nil {
		return "", err
	}
	fc, err := g.forecast.Forecast(ctx, svc.ID)
	if err != nil {
		return "", err
	}
	alerts, err := g.store.Alerts(ctx, storage.AlertFilter{
		ServiceID: &svc.ID,
		Since:     g.now().UTC().Add(-reportAlertWindow),
		Limit:     5,
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s Reliability Report\n\n", svc.Name)
	fmt.Fprintf(&b, "**Risk Level:** %s\n", strings.ToUpper(string(current.RiskLevel)))
	fmt.Fprintf(&b, "**Burn Rate:** %.2f× (1.0 = normal)\n", current.BurnRate)
	fmt.Fprintf(&b, "**Error Budget:** %.1f%% remaining\n", current.ErrorBudgetRemaining)

	b.WriteString("\n| Window | Burn Rate | Budget Consumed | Risk |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, w := range weighted.Windows {
		fmt.Fprintf(&b, "| %s | %.2f× | %.2f%% | %s |\n",
			windowLabel(w.WindowMinutes), w.BurnRate, w.ErrorBudgetConsumed, w.RiskLevel)
	}

	if fc.TimeToExhaustionHours != nil && *fc.TimeToExhaustionHours > 0 {
		fmt.Fprintf(&b, "\n**Forecast:** Budget exhaustion in ~%s\n", formatHours(fc.TimeToExhaustionHours))
	}
	fmt.Fprintf(&b, "**Trend:** %s\n", capitalize(string(fc.BurnRateTrend)))
	fmt.Fprintf(&b, "\n%s\n", fc.ForecastMessage)

	b.WriteString("\n### Recent Alerts\n")
	if len(alerts) == 0 {
		b.WriteString("No alerts in the last 24 hours.\n")
	}
	for _, a := range alerts {
		fmt.Fprintf(&b, "- %s (%s)\n", a.Title, a.Timestamp.UTC().Format("2006-01-02 15:04 UTC"))
	}

	b.WriteString("\n### Recommendations\n")
	fmt.Fprintf(&b, "- %s\n", weighted.CompositeRisk.Action())
	if current.ErrorBudgetRemaining < 15 {
		b.WriteString("- Review error budget status and consider deployment freeze for affected services\n")
	}
	if fc.BurnRateTrend == models.TrendIncreasing {
		b.WriteString("- Monitor trending services and prepare incident response\n")
	}

	return b.String(), nil
}

// analyze scores one service and collects its insights. Engine failures
// degrade to an informational insight with a neutral score.
func (g *Generator) analyze(ctx context.Context, svc *models.Service) ([]models.Insight, float64) {
	burn, err := g.burn.ComputeForService(ctx, svc, 60)
	var fc *models.Forecast
	if err == nil {
		fc, err = g.forecast.Forecast(ctx, svc.ID)
	}
	if err != nil {
		g.logger.Warn("Service analysis failed",
			zap.String("service", svc.Name), zap.Error(err))
		return []models.Insight{{
			ServiceName: svc.Name,
			InsightType: "status",
			Message:     fmt.Sprintf("Unable to analyze %s: insufficient data", svc.Name),
			Severity:    "info",
			Data:        map[string]any{"error": err.Error()},
		}}, 100
	}

	insights := []models.Insight{}
	score := 100.0

	switch {
	case burn.ErrorBudgetRemaining <= 0:
		insights = append(insights, models.Insight{
			ServiceName: svc.Name,
			InsightType: "warning",
			Message: fmt.Sprintf(
				"%s has EXHAUSTED its error budget. All non-critical deployments should be halted.",
				svc.Name),
			Severity: "critical",
			Data:     map[string]any{"budget_remaining": 0},
		})
		score -= penaltyExhausted

	case burn.BurnRate >= 3.0:
		insights = append(insights, models.Insight{
			ServiceName: svc.Name,
			InsightType: "warning",
			Message: fmt.Sprintf(
				"%s is burning error budget %.1f× faster than allowed. SLA breach likely in ~%s.",
				svc.Name, burn.BurnRate, formatHours(fc.TimeToExhaustionHours)),
			Severity: "critical",
			Data: map[string]any{
				"burn_rate":          burn.BurnRate,
				"time_to_exhaustion": fc.TimeToExhaustionHours,
			},
		})
		score -= penaltyBurnCritical

	case burn.BurnRate >= 1.5:
		insights = append(insights, models.Insight{
			ServiceName: svc.Name,
			InsightType: "warning",
			Message: fmt.Sprintf(
				"%s error budget consumption is elevated at %.1f× normal rate. %.1f%% budget remaining.",
				svc.Name, burn.BurnRate, burn.ErrorBudgetRemaining),
			Severity: "warning",
			Data:     map[string]any{"burn_rate": burn.BurnRate},
		})
		score -= penaltyBurnElevated
	}

	if burn.ErrorBudgetRemaining < 15 && burn.ErrorBudgetRemaining > 0 {
		insights = append(insights, models.Insight{
			ServiceName: svc.Name,
			InsightType: "warning",
			Message: fmt.Sprintf(
				"%s error budget is critically low at %.1f%%. Immediate attention required.",
				svc.Name, burn.ErrorBudgetRemaining),
			Severity: "warning",
			Data:     map[string]any{"budget_remaining": burn.ErrorBudgetRemaining},
		})
		score -= penaltyLowBudget
	}

	if fc.BurnRateTrend == models.TrendIncreasing {
		severity := "warning"
		if burn.RiskLevel == models.RiskSafe {
			severity = "info"
		}
		insights = append(insights, models.Insight{
			ServiceName: svc.Name,
			InsightType: "status",
			Message: fmt.Sprintf(
				"%s reliability is degrading. Burn rate has increased %.0f%% over the last hour.",
				svc.Name, math.Abs(fc.TrendSlope*100)),
			Severity: severity,
			Data:     map[string]any{"trend_slope": fc.TrendSlope},
		})
		score -= penaltyTrend
	}

	if len(insights) == 0 {
		insights = append(insights, models.Insight{
			ServiceName: svc.Name,
			InsightType: "status",
			Message: fmt.Sprintf(
				"%s is operating within error budget parameters. Current burn rate: %.2f×.",
				svc.Name, burn.BurnRate),
			Severity: "info",
			Data:     map[string]any{"burn_rate": burn.BurnRate},
		})
	}

	if score < 0 {
		score = 0
	}
	return insights, score
}

// executiveSummary composes the leading paragraph of the fleet summary.
func executiveSummary(totalServices int, atRisk []string, score float64, criticalCount int, nearest *models.NearestExhaustion) string {
	parts := []string{}

	switch {
	case score >= 95:
		parts = append(parts, fmt.Sprintf(
			"Platform reliability is excellent with %d services operating normally.", totalServices))
	case score >= 85:
		parts = append(parts, fmt.Sprintf(
			"Platform reliability is good. %d of %d services are healthy.",
			totalServices-len(atRisk), totalServices))
	case score >= 70:
		parts = append(parts, fmt.Sprintf(
			"Platform reliability requires attention. %d services showing elevated error rates.",
			len(atRisk)))
	default:
		parts = append(parts, fmt.Sprintf(
			"Platform reliability is degraded. %d services at risk, %d critical issues detected.",
			len(atRisk), criticalCount))
	}

	if len(atRisk) > 0 {
		if len(atRisk) <= 3 {
			parts = append(parts, fmt.Sprintf(
				"Services requiring attention: %s.", strings.Join(atRisk, ", ")))
		} else {
			parts = append(parts, fmt.Sprintf(
				"%d services require attention including %s.",
				len(atRisk), strings.Join(atRisk[:3], ", ")))
		}
	}

	if nearest != nil {
		parts = append(parts, fmt.Sprintf(
			"Nearest budget exhaustion: %s in ~%s.",
			nearest.ServiceName, formatHours(&nearest.TimeToExhaustionHours)))
	}

	return strings.Join(parts, " ")
}

// actionItems derives the prioritized to-do list from the collected
// insights. Critical investigations always lead.
func actionItems(insights []models.Insight, atRisk []string) []string {
	actions := []string{}

	critical := []string{}
	seen := map[string]bool{}
	exhausted := false
	degrading := false
	for _, in := range insights {
		if in.Severity == "critical" && !seen[in.ServiceName] {
			seen[in.ServiceName] = true
			critical = append(critical, in.ServiceName)
		}
		if strings.Contains(in.Message, "EXHAUSTED") {
			exhausted = true
		}
		if in.InsightType == "status" && strings.Contains(in.Message, "degrading") {
			degrading = true
		}
	}

	if len(critical) > 0 {
		actions = append(actions, fmt.Sprintf(
			"URGENT: Investigate critical issues in %s", strings.Join(critical, ", ")))
	}
	if exhausted {
		actions = append(actions, "Review error budget status and consider deployment freeze for affected services")
	}
	if degrading {
		actions = append(actions, "Monitor trending services and prepare incident response")
	}
	if len(atRisk) > 0 {
		actions = append(actions, "Review recent deployments to at-risk services for potential rollback")
	}
	if len(actions) == 0 {
		actions = append(actions, "Continue monitoring - all systems operating normally")
	}
	return actions
}

// formatHours renders a duration in hours as minutes, hours, or days.
func formatHours(hours *float64) string {
	if hours == nil {
		return "unknown"
	}
	h := *hours
	switch {
	case h < 1:
		return fmt.Sprintf("%d minutes", int(h*60))
	case h < 24:
		return fmt.Sprintf("%.1f hours", h)
	default:
		return fmt.Sprintf("%.1f days", h/24)
	}
}

func windowLabel(minutes int) string {
	switch minutes {
	case 5:
		return "5m"
	case 60:
		return "1h"
	case 1440:
		return "24h"
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
