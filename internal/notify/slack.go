// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/opsdeck/remedy/internal/core/models"
)

// tierColors maps risk tiers to Slack attachment colors
var tierColors = map[models.RiskTier]string{
	models.RiskVeryLow:  "#36a64f",
	models.RiskLow:      "#2eb886",
	models.RiskMedium:   "#daa038",
	models.RiskHigh:     "#e8912d",
	models.RiskCritical: "#a30200",
}

// SlackNotifier delivers alerts and results via Slack incoming
// webhooks. Escalated alerts go to a secondary webhook when one is
// configured.
type SlackNotifier struct {
	webhookURL           string
	escalationWebhookURL string
	channel              string
	escalationChannel    string
}

// NewSlackNotifier creates a Slack notifier. escalationURL may be empty,
// in which case escalated alerts fall back to the primary webhook.
func NewSlackNotifier(webhookURL, escalationURL, channel, escalationChannel string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL:           webhookURL,
		escalationWebhookURL: escalationURL,
		channel:              channel,
		escalationChannel:    escalationChannel,
	}
}

// SendAlert posts an approval or escalation alert
func (n *SlackNotifier) SendAlert(ctx context.Context, alert Alert) error {
	url := n.webhookURL
	channel := n.channel
	title := fmt.Sprintf("Remediation approval required: %s", alert.PlanTitle)
	if alert.Escalated {
		if n.escalationWebhookURL != "" {
			url = n.escalationWebhookURL
		}
		if n.escalationChannel != "" {
			channel = n.escalationChannel
		}
		title = fmt.Sprintf("ESCALATION - unapproved remediation: %s", alert.PlanTitle)
	}

	message := &slack.WebhookMessage{
		Channel: channel,
		Attachments: []slack.Attachment{{
			Color: tierColors[alert.RiskTier],
			Title: title,
			Text:  alert.Message,
			Fields: []slack.AttachmentField{
				{Title: "Execution", Value: alert.ExecutionID, Short: true},
				{Title: "Plan", Value: alert.PlanID, Short: true},
				{Title: "Status", Value: string(alert.Status), Short: true},
				{Title: "Risk tier", Value: alert.RiskTier.String(), Short: true},
			},
		}},
	}

	if err := slack.PostWebhookContext(ctx, url, message); err != nil {
		return fmt.Errorf("error posting slack alert: %w", err)
	}
	return nil
}

// SendRemediationResult posts the terminal outcome of an execution
func (n *SlackNotifier) SendRemediationResult(ctx context.Context, execution models.RemediationExecution, planTitle string) error {
	color := "#36a64f"
	if execution.Status != models.StatusCompleted {
		color = "#a30200"
	}

	text := fmt.Sprintf("%d executed, %d failed, %d rolled back",
		len(execution.ExecutedActions), len(execution.FailedActions), len(execution.RollbackActions))
	if len(execution.Log) > 0 {
		// Last log lines carry the terminal detail
		tail := execution.Log
		if len(tail) > 3 {
			tail = tail[len(tail)-3:]
		}
		text += "\n```" + strings.Join(tail, "\n") + "```"
	}

	message := &slack.WebhookMessage{
		Channel: n.channel,
		Attachments: []slack.Attachment{{
			Color: color,
			Title: fmt.Sprintf("Remediation %s: %s", strings.ToLower(string(execution.Status)), planTitle),
			Text:  text,
			Fields: []slack.AttachmentField{
				{Title: "Execution", Value: execution.ID, Short: true},
				{Title: "Plan", Value: execution.PlanID, Short: true},
			},
		}},
	}

	if err := slack.PostWebhookContext(ctx, n.webhookURL, message); err != nil {
		return fmt.Errorf("error posting slack result: %w", err)
	}
	return nil
}
