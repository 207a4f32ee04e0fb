// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opsdeck/remedy/internal/core/models"
	"github.com/opsdeck/remedy/internal/core/template"
)

// Dispatcher renders an action's command from the execution context and
// routes it to the handler registered for the action's type, enforcing
// the action's timeout.
type Dispatcher struct {
	handlers map[models.ActionType]Handler
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher with no handlers registered
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handlers: make(map[models.ActionType]Handler),
		logger:   logger,
	}
}

// NewDefaultDispatcher creates a dispatcher with all standard handlers
// registered against a shared command runner
func NewDefaultDispatcher(logger *slog.Logger) *Dispatcher {
	runner := NewCommandRunner()

	dispatcher := NewDispatcher(logger)
	dispatcher.Register(NewShellHandler(runner))
	dispatcher.Register(NewOrchestratorHandler(runner, ""))
	dispatcher.Register(NewInfraHandler(runner, ""))
	dispatcher.Register(NewAPICallHandler(nil))
	return dispatcher
}

// Register adds or replaces the handler for a type
func (d *Dispatcher) Register(handler Handler) {
	d.handlers[handler.Type()] = handler
}

// Run dispatches one action. Context placeholders were validated at
// submission time, so a render failure here indicates a catalog bug and
// is reported as a failed result rather than a panic.
func (d *Dispatcher) Run(ctx context.Context, act models.RemediationAction, execContext map[string]interface{}) Result {
	handler, ok := d.handlers[act.Type]
	if !ok {
		return Result{Success: false, Detail: fmt.Sprintf("no handler registered for action type %q", act.Type)}
	}

	rendered, err := template.Render(act.Command, execContext)
	if err != nil {
		return Result{Success: false, Detail: fmt.Sprintf("error rendering command: %v", err)}
	}

	runCtx, cancel := context.WithTimeout(ctx, act.Timeout.Std())
	defer cancel()

	d.logger.Debug("dispatching action",
		"action_id", act.ID,
		"type", string(act.Type),
		"timeout", act.Timeout.String(),
	)

	return handler.Run(runCtx, rendered)
}
