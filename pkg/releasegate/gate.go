// Package releasegate decides whether deployments may proceed given the
// target service's current reliability state. Every decision, including
// rejections for unknown services, is persisted as a Deployment record
// before the response is returned.
package releasegate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/config"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/storage"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/telemetry"
)

const (
	defaultHistoryLimit   = 50
	defaultStatisticsDays = 7

	// exhaustionWarnHours is the advisory boundary: deployments are still
	// allowed below it, but the response carries a warning.
	exhaustionWarnHours = 4.0

	internalBlockReason = "internal error"
)

// Store is the persistence surface the gate needs.
type Store interface {
	ServiceByName(ctx context.Context, name string) (*models.Service, error)
	InsertDeployment(ctx context.Context, d *models.Deployment) error
	Deployments(ctx context.Context, serviceID *int64, limit int) ([]models.Deployment, error)
	GateAggregatesSince(ctx context.Context, since time.Time) (*storage.GateAggregates, error)
}

// BurnComputer supplies the reliability state a decision is based on.
type BurnComputer interface {
	ComputeForService(ctx context.Context, svc *models.Service, windowMinutes int) (*models.BurnRateComputation, error)
	WeightedForService(ctx context.Context, svc *models.Service) (*models.WeightedBurnRate, error)
}

// Forecaster supplies the time-to-exhaustion projection.
type Forecaster interface {
	Forecast(ctx context.Context, serviceID int64) (*models.Forecast, error)
}

// BlockNotifier is told about blocked deployments so an informational
// alert can be raised. Implementations own their error handling; the gate
// never fails a check because a notification did.
type BlockNotifier interface {
	DeploymentBlocked(ctx context.Context, svc *models.Service, deploymentID, reason string)
}

// Gate evaluates release checks against the risk ladder and the hard
// burn-rate and budget thresholds.
type Gate struct {
	store    Store
	burn     BurnComputer
	forecast Forecaster
	runtime  *config.Runtime
	notifier BlockNotifier
	metrics  *telemetry.Metrics
	logger   *zap.Logger

	now func() time.Time
}

// NewGate wires the gate. notifier may be nil; blocked deployments are
// then only logged and persisted.
func NewGate(
	store Store,
	burn BurnComputer,
	forecast Forecaster,
	runtime *config.Runtime,
	notifier BlockNotifier,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *Gate {
	return &Gate{
		store:    store,
		burn:     burn,
		forecast: forecast,
		runtime:  runtime,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger.Named("releasegate"),
		now:      time.Now,
	}
}

// Check evaluates whether the requested deployment may proceed and records
// the decision. Unknown services and internal failures both produce a
// block decision rather than an error; only a failure to persist the
// audit record surfaces as an error.
func (g *Gate) Check(ctx context.Context, req *models.ReleaseCheckRequest) (*models.ReleaseCheckResponse, error) {
	deploymentID := req.DeploymentID
	if deploymentID == "" {
		deploymentID = uuid.NewString()
	}
	checkedBy := "system"
	if req.RequestedBy != nil && *req.RequestedBy != "" {
		checkedBy = *req.RequestedBy
	}

	svc, err := g.store.ServiceByName(ctx, req.ServiceName)
	if err != nil {
		if models.IsUnknownService(err) {
			return g.rejectUnknown(ctx, req, deploymentID, checkedBy, err)
		}
		return g.rejectInternal(ctx, nil, req, deploymentID, checkedBy, err)
	}

	// The 60-min window carries the budget figure shown in the response;
	// the decision itself keys off the weighted multi-window state.
	current, err := g.burn.ComputeForService(ctx, svc, 60)
	if err != nil {
		return g.rejectInternal(ctx, svc, req, deploymentID, checkedBy, err)
	}
	weighted, err := g.burn.WeightedForService(ctx, svc)
	if err != nil {
		return g.rejectInternal(ctx, svc, req, deploymentID, checkedBy, err)
	}
	fc, err := g.forecast.Forecast(ctx, svc.ID)
	if err != nil {
		return g.rejectInternal(ctx, svc, req, deploymentID, checkedBy, err)
	}

	allowed, reason, recommendations := decide(gateInputs{
		burnRate:        weighted.BurnRate,
		risk:            weighted.CompositeRisk,
		budgetRemaining: current.ErrorBudgetRemaining,
		hoursToExhaust:  fc.TimeToExhaustionHours,
		override:        req.Override,
		overrideReason:  req.OverrideReason,
	}, g.runtime.Tunables().ReleaseGate)

	if err := g.record(ctx, &svc.ID, req, deploymentID, allowed, reason, weighted.CompositeRisk, weighted.BurnRate); err != nil {
		return nil, models.Internal(svc.Name, err)
	}
	g.observe(allowed)

	if !allowed {
		g.logger.Warn("Deployment blocked",
			zap.String("service", svc.Name),
			zap.String("deployment_id", deploymentID),
			zap.String("reason", reason),
		)
		if g.notifier != nil {
			g.notifier.DeploymentBlocked(ctx, svc, deploymentID, reason)
		}
	}

	return &models.ReleaseCheckResponse{
		Allowed:               allowed,
		Reason:                reason,
		ServiceName:           svc.Name,
		DeploymentID:          deploymentID,
		CurrentRiskLevel:      weighted.CompositeRisk,
		CurrentBurnRate:       weighted.BurnRate,
		ErrorBudgetRemaining:  current.ErrorBudgetRemaining,
		TimeToExhaustionHours: fc.TimeToExhaustionHours,
		Recommendations:       recommendations,
		CheckedAt:             g.now(),
		CheckedBy:             checkedBy,
	}, nil
}

// History lists recent decisions, newest first.
func (g *Gate) History(ctx context.Context, serviceID *int64, limit int) ([]models.Deployment, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return g.store.Deployments(ctx, serviceID, limit)
}

// Statistics summarizes gate outcomes over the trailing period.
func (g *Gate) Statistics(ctx context.Context, days int) (*models.GateStatistics, error) {
	if days <= 0 {
		days = defaultStatisticsDays
	}
	agg, err := g.store.GateAggregatesSince(ctx, g.now().AddDate(0, 0, -days))
	if err != nil {
		return nil, err
	}

	blockRate := 0.0
	if agg.Total > 0 {
		blockRate = models.RoundTo(float64(agg.Blocked)/float64(agg.Total)*100, 2)
	}
	return &models.GateStatistics{
		PeriodDays:         days,
		TotalDeployments:   agg.Total,
		BlockedDeployments: agg.Blocked,
		AllowedDeployments: agg.Total - agg.Blocked,
		BlockRate:          blockRate,
		RiskDistribution:   agg.RiskDistribution,
	}, nil
}

// rejectUnknown blocks a check for a service the platform does not know.
// The attempt is still recorded, with a null service id.
func (g *Gate) rejectUnknown(ctx context.Context, req *models.ReleaseCheckRequest, deploymentID, checkedBy string, cause error) (*models.ReleaseCheckResponse, error) {
	reason := cause.Error()
	if err := g.record(ctx, nil, req, deploymentID, false, reason, models.RiskFreeze, 0); err != nil {
		return nil, models.Internal(req.ServiceName, err)
	}
	g.observe(false)

	return &models.ReleaseCheckResponse{
		Allowed:              false,
		Reason:               reason,
		ServiceName:          req.ServiceName,
		DeploymentID:         deploymentID,
		CurrentRiskLevel:     models.RiskFreeze,
		CurrentBurnRate:      0,
		ErrorBudgetRemaining: 0,
		Recommendations:      []string{"Register the service before deploying"},
		CheckedAt:            g.now(),
		CheckedBy:            checkedBy,
	}, nil
}

// rejectInternal fails closed when the reliability state cannot be
// computed. The rejected attempt is persisted on a best-effort basis.
func (g *Gate) rejectInternal(ctx context.Context, svc *models.Service, req *models.ReleaseCheckRequest, deploymentID, checkedBy string, cause error) (*models.ReleaseCheckResponse, error) {
	g.logger.Error("Release check failed, blocking deployment",
		zap.String("service", req.ServiceName),
		zap.String("deployment_id", deploymentID),
		zap.Error(cause),
	)

	var serviceID *int64
	if svc != nil {
		serviceID = &svc.ID
	}
	if err := g.record(ctx, serviceID, req, deploymentID, false, internalBlockReason, models.RiskFreeze, 0); err != nil {
		g.logger.Error("Failed to persist rejected deployment", zap.Error(err))
	}
	g.observe(false)

	return &models.ReleaseCheckResponse{
		Allowed:              false,
		Reason:               internalBlockReason,
		ServiceName:          req.ServiceName,
		DeploymentID:         deploymentID,
		CurrentRiskLevel:     models.RiskFreeze,
		CurrentBurnRate:      0,
		ErrorBudgetRemaining: 0,
		Recommendations:      []string{},
		CheckedAt:            g.now(),
		CheckedBy:            checkedBy,
	}, nil
}

func (g *Gate) record(ctx context.Context, serviceID *int64, req *models.ReleaseCheckRequest, deploymentID string, allowed bool, reason string, risk models.RiskLevel, burnRate float64) error {
	status := models.DeploymentApproved
	var blockedReason *string
	if !allowed {
		status = models.DeploymentRejected
		blockedReason = &reason
	}
	return g.store.InsertDeployment(ctx, &models.Deployment{
		ServiceID:          serviceID,
		DeploymentID:       deploymentID,
		Version:            req.Version,
		RequestedBy:        req.RequestedBy,
		Allowed:            allowed,
		BlockedReason:      blockedReason,
		RiskLevelAtRequest: risk,
		BurnRateAtRequest:  burnRate,
		Status:             status,
	})
}

func (g *Gate) observe(allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "blocked"
	}
	g.metrics.GateDecisionsTotal.WithLabelValues(outcome).Inc()
}

// gateInputs is the reliability state a single decision is made from.
type gateInputs struct {
	burnRate        float64
	risk            models.RiskLevel
	budgetRemaining float64
	hoursToExhaust  *float64
	override        bool
	overrideReason  *string
}

// decide runs the decision cascade; the first matching rule wins.
//
//  1. FREEZE blocks, override with a reason allows.
//  2. DANGER blocks, override with a reason allows.
//  3. Weighted burn rate above the gate threshold blocks, no override.
//  4. Budget consumption above the gate threshold blocks, no override.
//  5. Exhaustion within four hours allows with a warning.
//  6. OBSERVE allows with caution.
//  7. Otherwise allow.
func decide(in gateInputs, cfg config.ReleaseGateConfig) (allowed bool, reason string, recommendations []string) {
	recommendations = []string{}
	hasOverride := in.override && in.overrideReason != nil && *in.overrideReason != ""

	if in.risk == models.RiskFreeze {
		if hasOverride {
			return true,
				fmt.Sprintf("OVERRIDE: Deployment allowed despite FREEZE state. Reason: %s", *in.overrideReason),
				[]string{"Deployment approved via override - monitor closely"}
		}
		return false,
			"Deployment blocked: System is in FREEZE state due to critical reliability issues",
			[]string{
				"Investigate and resolve active incidents before deploying",
				"Error budget is critically low or exhausted",
				"Consider rolling back recent changes",
			}
	}

	if in.risk == models.RiskDanger {
		recommendations = append(recommendations, "System is in DANGER state - consider waiting")
		if hasOverride {
			return true,
				fmt.Sprintf("OVERRIDE: Deployment allowed despite DANGER state. Reason: %s", *in.overrideReason),
				append(recommendations, "Monitor deployment closely and be ready to rollback")
		}
		return false,
			"Deployment blocked: System is in DANGER state with elevated error rates",
			append(recommendations,
				"Error budget is running low",
				"Wait for system to stabilize or provide override with justification",
			)
	}

	if in.burnRate > cfg.BurnRateThreshold {
		return false,
			fmt.Sprintf("Deployment blocked: Burn rate (%.2fx) exceeds threshold (%sx)",
				in.burnRate, formatThreshold(cfg.BurnRateThreshold)),
			[]string{
				"Current error rate is too high for safe deployment",
				"Investigate recent changes that may have caused elevated errors",
			}
	}

	budgetConsumed := 100 - in.budgetRemaining
	if budgetConsumed > cfg.BudgetThreshold {
		return false,
			fmt.Sprintf("Deployment blocked: Error budget %.1f%% consumed exceeds threshold (%s%%)",
				budgetConsumed, formatThreshold(cfg.BudgetThreshold)),
			[]string{
				"Error budget is nearly exhausted",
				"Prioritize reliability improvements before new deployments",
			}
	}

	if in.hoursToExhaust != nil && *in.hoursToExhaust < exhaustionWarnHours {
		recommendations = append(recommendations,
			fmt.Sprintf("Warning: Error budget will be exhausted in ~%.1f hours", *in.hoursToExhaust))
	}

	if in.risk == models.RiskObserve {
		recommendations = append(recommendations,
			"System is in OBSERVE state - increased monitoring recommended",
			"Consider smaller deployment batches",
		)
		return true, "Deployment allowed with caution: System reliability is being observed", recommendations
	}

	if len(recommendations) == 0 {
		recommendations = []string{"System is operating normally"}
	}
	return true, "Deployment allowed: System reliability is healthy", recommendations
}

// formatThreshold renders a configured threshold with minimal digits while
// keeping at least one decimal, so defaults read "2.0" and "90.0".
func formatThreshold(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
