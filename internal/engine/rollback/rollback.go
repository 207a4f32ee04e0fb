// SPDX-License-Identifier: Apache-2.0

package rollback

import (
	"context"
	"log/slog"

	"github.com/opsdeck/remedy/internal/core/models"
	"github.com/opsdeck/remedy/internal/engine/action"
)

// Manager executes a failed action's compensating command. Rollback is
// best-effort: a rollback failure is logged but never retried, and the
// owning execution is heading to FAILED regardless of the outcome here.
type Manager struct {
	dispatcher *action.Dispatcher
	logger     *slog.Logger
}

// NewManager creates a rollback manager sharing the engine's dispatcher
func NewManager(dispatcher *action.Dispatcher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dispatcher: dispatcher, logger: logger}
}

// Rollback synthesizes a transient pseudo-action (same type and timeout
// as the original, command swapped for the rollback command) and runs
// it through the dispatcher's normal timeout discipline.
func (m *Manager) Rollback(ctx context.Context, act models.RemediationAction, execContext map[string]interface{}) action.Result {
	if !act.HasRollback() {
		return action.Result{Success: false, Detail: "action defines no rollback command"}
	}

	compensating := act
	compensating.Command = act.RollbackCommand
	compensating.RollbackCommand = ""

	result := m.dispatcher.Run(ctx, compensating, execContext)
	if !result.Success {
		m.logger.Warn("rollback failed",
			"action_id", act.ID,
			"detail", result.Detail,
		)
	}

	return result
}
