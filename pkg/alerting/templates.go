package alerting

import (
	"fmt"
	"strings"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
)

// Alert type identifiers. Stored in the alerts.alert_type column and used
// as the cooldown key per service.
const (
	TypeBudgetExhausted   = "budget_exhausted"
	TypeBudgetCritical    = "budget_critical"
	TypeBurnRateHigh      = "burn_rate_high"
	TypeRiskEscalation    = "risk_escalation"
	TypeDeploymentBlocked = "deployment_blocked"
	TypeRecovery          = "recovery"
)

// template fixes the severity, default channel, and wording for one alert
// type. Title and message patterns interpolate {placeholder} variables.
type template struct {
	title    string
	message  string
	severity models.AlertSeverity
	channel  models.AlertChannel
}

var templates = map[string]template{
	TypeBudgetExhausted: {
		title:    "[CRITICAL] Error Budget Exhausted: {service}",
		message:  "Error budget for {service} has been completely exhausted. Deployment freeze recommended.",
		severity: models.SeverityEmergency,
		channel:  models.ChannelSlack,
	},
	TypeBudgetCritical: {
		title:    "[WARNING] Error Budget Critical: {service}",
		message:  "Error budget for {service} is critically low ({remaining}% remaining). Budget will be exhausted in ~{time}.",
		severity: models.SeverityCritical,
		channel:  models.ChannelSlack,
	},
	TypeBurnRateHigh: {
		title:    "[ALERT] High Burn Rate: {service}",
		message:  "{service} is burning error budget at {rate}x the allowed rate. Current risk level: {risk}.",
		severity: models.SeverityWarning,
		channel:  models.ChannelUI,
	},
	TypeRiskEscalation: {
		title:    "[NOTICE] Risk Level Changed: {service}",
		message:  "{service} risk level has escalated from {from_risk} to {to_risk}.",
		severity: models.SeverityWarning,
		channel:  models.ChannelUI,
	},
	TypeDeploymentBlocked: {
		title:    "[INFO] Deployment Blocked: {service}",
		message:  "Deployment {deployment_id} was blocked due to {reason}.",
		severity: models.SeverityInfo,
		channel:  models.ChannelUI,
	},
	TypeRecovery: {
		title:    "[RESOLVED] Service Recovered: {service}",
		message:  "{service} has recovered. Risk level is now {risk}.",
		severity: models.SeverityInfo,
		channel:  models.ChannelUI,
	},
}

// interpolate substitutes {name} placeholders in pattern with vars.
func interpolate(pattern string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(pattern)
}

// formatHours renders a time-to-exhaustion for alert messages. A nil
// projection reads "unknown".
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
