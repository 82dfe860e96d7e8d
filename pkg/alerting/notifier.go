package alerting

import (
	"context"
	"time"

	"github.com/slack-go/slack"
	"github.com/sony/gobreaker"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
)

// Notifier delivers a fired alert to an external channel. Delivery is best
// effort; the manager logs failures and moves on.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert *models.Alert) error
}

// SlackNotifier posts slack-channel alerts to an incoming webhook. A
// circuit breaker keeps a dead webhook from slowing down alert creation;
// while the breaker is open, deliveries fail fast.
type SlackNotifier struct {
	webhookURL string
	breaker    *gobreaker.CircuitBreaker
}

// NewSlackNotifier builds a notifier for the given incoming-webhook URL.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "slack-webhook",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

func (n *SlackNotifier) Name() string { return "slack" }

// Notify posts the alert. Alerts targeting other channels are ignored.
func (n *SlackNotifier) Notify(ctx context.Context, alert *models.Alert) error {
	if alert.Channel != models.ChannelSlack {
		return nil
	}
	msg := &slack.WebhookMessage{
		Text: alert.Title,
		Attachments: []slack.Attachment{{
			Color: severityColor(alert.Severity),
			Text:  alert.Message,
		}},
	}
	_, err := n.breaker.Execute(func() (interface{}, error) {
		return nil, slack.PostWebhookContext(ctx, n.webhookURL, msg)
	})
	return err
}

// severityColor maps severities onto the platform's risk palette for the
// Slack attachment sidebar.
func severityColor(s models.AlertSeverity) string {
	switch s {
	case models.SeverityEmergency, models.SeverityCritical:
		return "#ef4444"
	case models.SeverityWarning:
		return "#eab308"
	default:
		return "#22c55e"
	}
}
