package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Service is a monitored service registered with the platform.
type Service struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Team        *string   `db:"team" json:"team,omitempty"`
	Tier        int       `db:"tier" json:"tier"` // 1=critical, 2=standard, 3=low
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Well-known SLO objective names.
const (
	SLOAvailability = "availability"
	SLOLatencyP99   = "latency_p99"
)

// SLOTarget defines a reliability objective for a service. At most one
// active target may exist per (service, name).
type SLOTarget struct {
	ID                int64     `db:"id" json:"id"`
	ServiceID         int64     `db:"service_id" json:"service_id"`
	Name              string    `db:"name" json:"name"` // "availability", "latency_p99", ...
	TargetValue       float64   `db:"target_value" json:"target_value"`
	WindowDays        int       `db:"window_days" json:"window_days"`
	ErrorBudgetPolicy float64   `db:"error_budget_policy" json:"error_budget_policy"`
	BurnRateThreshold float64   `db:"burn_rate_threshold" json:"burn_rate_threshold"`
	CriticalBurnRate  float64   `db:"critical_burn_rate" json:"critical_burn_rate"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Metric is one append-only telemetry snapshot for a service.
type Metric struct {
	ID            int64     `db:"id" json:"id"`
	ServiceID     int64     `db:"service_id" json:"service_id"`
	Timestamp     time.Time `db:"timestamp" json:"timestamp"`
	TotalRequests int64     `db:"total_requests" json:"total_requests"`
	ErrorCount    int64     `db:"error_count" json:"error_count"`
	LatencyP50    *float64  `db:"latency_p50" json:"latency_p50,omitempty"`
	LatencyP95    *float64  `db:"latency_p95" json:"latency_p95,omitempty"`
	LatencyP99    *float64  `db:"latency_p99" json:"latency_p99,omitempty"`
	SuccessRate   *float64  `db:"success_rate" json:"success_rate,omitempty"`
}

// BurnHistory is one persisted burn-rate computation. Appended by the
// coordinator; read back by the forecast engine and the heatmap.
type BurnHistory struct {
	ID                    int64     `db:"id" json:"id"`
	ServiceID             int64     `db:"service_id" json:"service_id"`
	Timestamp             time.Time `db:"timestamp" json:"timestamp"`
	WindowMinutes         int       `db:"window_minutes" json:"window_minutes"`
	BurnRate              float64   `db:"burn_rate" json:"burn_rate"`
	ErrorBudgetConsumed   float64   `db:"error_budget_consumed" json:"error_budget_consumed"`
	ErrorBudgetRemaining  float64   `db:"error_budget_remaining" json:"error_budget_remaining"`
	TimeToExhaustionHours *float64  `db:"time_to_exhaustion_hours" json:"time_to_exhaustion_hours,omitempty"`
	RiskLevel             RiskLevel `db:"risk_level" json:"risk_level"`
}

// Deployment is the audit record for one release-gate decision.
// ServiceID is nil when the gate was asked about an unregistered service;
// the attempt is still recorded.
type Deployment struct {
	ID                 int64            `db:"id" json:"id"`
	ServiceID          *int64           `db:"service_id" json:"service_id,omitempty"`
	DeploymentID       string           `db:"deployment_id" json:"deployment_id"`
	Version            *string          `db:"version" json:"version,omitempty"`
	RequestedAt        time.Time        `db:"requested_at" json:"requested_at"`
	RequestedBy        *string          `db:"requested_by" json:"requested_by,omitempty"`
	Allowed            bool             `db:"allowed" json:"allowed"`
	BlockedReason      *string          `db:"blocked_reason" json:"blocked_reason,omitempty"`
	RiskLevelAtRequest RiskLevel        `db:"risk_level_at_request" json:"risk_level_at_request"`
	BurnRateAtRequest  float64          `db:"burn_rate_at_request" json:"burn_rate_at_request"`
	Status             DeploymentStatus `db:"status" json:"status"`
	CompletedAt        *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
}

// Alert is a persisted, cooldown-gated notification record.
type Alert struct {
	ID             int64         `db:"id" json:"id"`
	ServiceID      int64         `db:"service_id" json:"service_id"`
	Timestamp      time.Time     `db:"timestamp" json:"timestamp"`
	AlertType      string        `db:"alert_type" json:"alert_type"`
	Severity       AlertSeverity `db:"severity" json:"severity"`
	Channel        AlertChannel  `db:"channel" json:"channel"`
	Title          string        `db:"title" json:"title"`
	Message        string        `db:"message" json:"message"`
	Metadata       JSONMap       `db:"metadata" json:"metadata,omitempty"`
	Dispatched     bool          `db:"dispatched" json:"dispatched"`
	DispatchedAt   *time.Time    `db:"dispatched_at" json:"dispatched_at,omitempty"`
	Acknowledged   bool          `db:"acknowledged" json:"acknowledged"`
	AcknowledgedBy *string       `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time    `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
}

// AlertWithService joins an alert row with its service name for feeds.
type AlertWithService struct {
	Alert
	ServiceName string `db:"service_name" json:"service_name"`
}

// SystemConfig is a runtime-tunable setting stored in the database.
type SystemConfig struct {
	ID          int64     `db:"id" json:"id"`
	Key         string    `db:"key" json:"key"`
	Value       string    `db:"value" json:"value"`
	ValueType   string    `db:"value_type" json:"value_type"` // string, int, float, bool, json
	Description *string   `db:"description" json:"description,omitempty"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
	UpdatedBy   *string   `db:"updated_by" json:"updated_by,omitempty"`
}

// JSONMap stores arbitrary JSON context in a JSONB column.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", src)
	}
	return json.Unmarshal(raw, m)
}
