package models

import "fmt"

// RiskLevel classifies how aggressively a service is consuming its error
// budget. Levels form a total order: SAFE < OBSERVE < DANGER < FREEZE.
type RiskLevel string

const (
	RiskSafe    RiskLevel = "safe"
	RiskObserve RiskLevel = "observe"
	RiskDanger  RiskLevel = "danger"
	RiskFreeze  RiskLevel = "freeze"
)

// riskOrder maps each level to its ordinal for severity comparison.
var riskOrder = map[RiskLevel]int{
	RiskSafe:    0,
	RiskObserve: 1,
	RiskDanger:  2,
	RiskFreeze:  3,
}

// riskMeta carries the fixed presentation metadata for each risk level.
// Colors and action strings are part of the external contract.
var riskMeta = map[RiskLevel]struct {
	color  string
	action string
}{
	RiskSafe:    {"#22c55e", "Normal operations"},
	RiskObserve: {"#eab308", "Increased monitoring"},
	RiskDanger:  {"#f97316", "Limit non-critical changes"},
	RiskFreeze:  {"#ef4444", "Block all deployments"},
}

// Severity returns the ordinal position of the level in the risk order.
func (r RiskLevel) Severity() int {
	return riskOrder[r]
}

// Color returns the UI hex color associated with the level.
func (r RiskLevel) Color() string {
	return riskMeta[r].color
}

// Action returns the recommended operator action for the level.
func (r RiskLevel) Action() string {
	return riskMeta[r].action
}

func (r RiskLevel) String() string {
	return string(r)
}

// MaxRisk returns the more severe of two risk levels.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// ParseRiskLevel validates a lowercase wire identifier.
func ParseRiskLevel(s string) (RiskLevel, error) {
	r := RiskLevel(s)
	if _, ok := riskOrder[r]; !ok {
		return "", fmt.Errorf("invalid risk level %q", s)
	}
	return r, nil
}

// AlertSeverity ranks how urgently an alert needs operator attention.
type AlertSeverity string

const (
	SeverityInfo      AlertSeverity = "info"
	SeverityWarning   AlertSeverity = "warning"
	SeverityCritical  AlertSeverity = "critical"
	SeverityEmergency AlertSeverity = "emergency"
)

var validSeverities = map[AlertSeverity]bool{
	SeverityInfo:      true,
	SeverityWarning:   true,
	SeverityCritical:  true,
	SeverityEmergency: true,
}

func (s AlertSeverity) String() string {
	return string(s)
}

// ParseAlertSeverity validates a lowercase wire identifier.
func ParseAlertSeverity(s string) (AlertSeverity, error) {
	sev := AlertSeverity(s)
	if !validSeverities[sev] {
		return "", fmt.Errorf("invalid alert severity %q", s)
	}
	return sev, nil
}

// AlertChannel names the notification side-channel an alert targets.
// Delivery itself is delegated to notifier adapters.
type AlertChannel string

const (
	ChannelEmail     AlertChannel = "email"
	ChannelSlack     AlertChannel = "slack"
	ChannelUI        AlertChannel = "ui"
	ChannelPagerDuty AlertChannel = "pagerduty"
)

func (c AlertChannel) String() string {
	return string(c)
}

// DeploymentStatus tracks the lifecycle of a recorded deployment attempt.
// The release gate only ever writes approved or rejected.
type DeploymentStatus string

const (
	DeploymentPending    DeploymentStatus = "pending"
	DeploymentApproved   DeploymentStatus = "approved"
	DeploymentRejected   DeploymentStatus = "rejected"
	DeploymentCompleted  DeploymentStatus = "completed"
	DeploymentRolledBack DeploymentStatus = "rolled_back"
)

func (d DeploymentStatus) String() string {
	return string(d)
}
