// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"log/slog"

	"github.com/opsdeck/remedy/internal/core/models"
)

// Alert is an approval-pending or escalation notification.
type Alert struct {
	ExecutionID string
	PlanID      string
	PlanTitle   string
	Status      models.ExecutionStatus
	RiskTier    models.RiskTier
	Message     string
	// Escalated routes the alert to the secondary recipient set
	Escalated bool
}

// Notifier delivers engine notifications. Delivery failures are logged
// by callers and never affect execution state.
type Notifier interface {
	SendAlert(ctx context.Context, alert Alert) error
	SendRemediationResult(ctx context.Context, execution models.RemediationExecution, planTitle string) error
}

// LogNotifier writes notifications to the structured log. It is the
// default when no delivery channel is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// SendAlert logs the alert
func (n *LogNotifier) SendAlert(ctx context.Context, alert Alert) error {
	n.logger.Info("remediation alert",
		"execution_id", alert.ExecutionID,
		"plan_id", alert.PlanID,
		"status", string(alert.Status),
		"risk_tier", alert.RiskTier.String(),
		"escalated", alert.Escalated,
		"message", alert.Message,
	)
	return nil
}

// SendRemediationResult logs the terminal outcome
func (n *LogNotifier) SendRemediationResult(ctx context.Context, execution models.RemediationExecution, planTitle string) error {
	n.logger.Info("remediation result",
		"execution_id", execution.ID,
		"plan_id", execution.PlanID,
		"plan_title", planTitle,
		"status", string(execution.Status),
		"executed", len(execution.ExecutedActions),
		"failed", len(execution.FailedActions),
		"rolled_back", len(execution.RollbackActions),
	)
	return nil
}
