// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opsdeck/remedy/internal/core/models"
	"github.com/opsdeck/remedy/internal/engine/action"
	"github.com/opsdeck/remedy/internal/engine/audit"
	"github.com/opsdeck/remedy/internal/engine/rollback"
	"github.com/opsdeck/remedy/internal/metrics"
	"github.com/opsdeck/remedy/internal/notify"
)

// Coordinator owns the state machine of running executions: it drives
// the dispatcher per action in plan order, invokes rollback on failure,
// and writes every transition to the audit trail.
type Coordinator struct {
	store      *executionStore
	dispatcher *action.Dispatcher
	rollback   *rollback.Manager
	trail      *audit.Trail
	recorder   *metrics.Recorder
	notifier   notify.Notifier
	logger     *slog.Logger
}

// NewCoordinator creates an execution coordinator
func NewCoordinator(store *executionStore, dispatcher *action.Dispatcher, rollbackManager *rollback.Manager,
	trail *audit.Trail, recorder *metrics.Recorder, notifier notify.Notifier, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:      store,
		dispatcher: dispatcher,
		rollback:   rollbackManager,
		trail:      trail,
		recorder:   recorder,
		notifier:   notifier,
		logger:     logger,
	}
}

// Runnable reports whether a queued execution may still start
func (c *Coordinator) Runnable(executionID string) bool {
	status, err := c.store.status(executionID)
	return err == nil && status == models.StatusApproved
}

// Execute runs one approved execution to a terminal state. Action
// failures and timeouts are recorded in the execution's log and the
// audit trail, never returned to the submitter.
func (c *Coordinator) Execute(ctx context.Context, executionID string) {
	var plan models.RemediationPlan
	var execContext map[string]interface{}

	err := c.store.mutate(executionID, func(record *executionRecord) error {
		if record.execution.Status != models.StatusApproved {
			return fmt.Errorf("%w: cannot execute from %s", ErrInvalidState, record.execution.Status)
		}
		record.execution.Status = models.StatusExecuting
		now := time.Now().UTC()
		record.execution.StartedAt = &now
		record.execution.Log = append(record.execution.Log,
			fmt.Sprintf("starting execution of plan %q", record.plan.Title))
		plan = record.plan
		execContext = record.execution.Context
		return nil
	})
	if err != nil {
		c.logger.Warn("execution not started", "execution_id", executionID, "error", err)
		return
	}
	c.trail.Append(executionID, audit.EventStateChanged, string(models.StatusExecuting))

	// Actions run strictly sequentially, in plan-declaration order
	for _, act := range plan.Actions {
		// Cooperative cancellation is observed only at action
		// boundaries; an in-flight action finishes or times out first.
		if c.store.cancelRequested(executionID) {
			c.appendLog(executionID, fmt.Sprintf("cancelled before action %q", act.Name))
			c.finish(ctx, executionID, models.StatusCancelled, "execution cancelled")
			return
		}

		c.trail.Append(executionID, audit.EventActionStarted, act.ID)
		c.appendLog(executionID, fmt.Sprintf("executing action %q", act.Name))

		started := time.Now()
		result := c.dispatcher.Run(ctx, act, execContext)
		c.recorder.ObserveActionDuration(string(act.Type), time.Since(started).Seconds())

		if result.Success {
			c.store.mutate(executionID, func(record *executionRecord) error {
				record.execution.ExecutedActions = append(record.execution.ExecutedActions, act.ID)
				record.execution.Log = append(record.execution.Log,
					fmt.Sprintf("action %q succeeded", act.Name))
				return nil
			})
			c.trail.Append(executionID, audit.EventActionSucceeded, act.ID)
			c.recorder.RecordRemediation(string(act.Type), "success")
			continue
		}

		// First failure stops the run; later actions are never attempted
		c.handleFailure(ctx, executionID, act, execContext, result)
		return
	}

	c.finish(ctx, executionID, models.StatusCompleted, "execution completed")
}

func (c *Coordinator) handleFailure(ctx context.Context, executionID string, act models.RemediationAction,
	execContext map[string]interface{}, result action.Result) {
	status := "failure"
	detail := result.Detail
	if result.TimedOut {
		status = "timeout"
		detail = fmt.Sprintf("timed out after %s", act.Timeout)
	}
	c.recorder.RecordRemediation(string(act.Type), status)

	c.store.mutate(executionID, func(record *executionRecord) error {
		record.execution.FailedActions = append(record.execution.FailedActions, act.ID)
		record.execution.Log = append(record.execution.Log,
			fmt.Sprintf("action %q failed: %s", act.Name, detail))
		return nil
	})
	c.trail.Append(executionID, audit.EventActionFailed, fmt.Sprintf("%s: %s", act.ID, detail))

	if act.HasRollback() {
		c.trail.Append(executionID, audit.EventRollbackStarted, act.ID)
		rollbackResult := c.rollback.Rollback(ctx, act, execContext)
		if rollbackResult.Success {
			c.store.mutate(executionID, func(record *executionRecord) error {
				record.execution.RollbackActions = append(record.execution.RollbackActions, act.ID)
				record.execution.Log = append(record.execution.Log,
					fmt.Sprintf("rollback of action %q succeeded", act.Name))
				return nil
			})
			c.trail.Append(executionID, audit.EventRollbackSucceeded, act.ID)
		} else {
			c.appendLog(executionID, fmt.Sprintf("rollback of action %q failed: %s", act.Name, rollbackResult.Detail))
			c.trail.Append(executionID, audit.EventRollbackFailed, fmt.Sprintf("%s: %s", act.ID, rollbackResult.Detail))
		}
	}

	c.finish(ctx, executionID, models.StatusFailed, "execution failed")
}

func (c *Coordinator) appendLog(executionID, line string) {
	c.store.mutate(executionID, func(record *executionRecord) error {
		record.execution.Log = append(record.execution.Log, line)
		return nil
	})
}

// finish drives the execution to a terminal state and sends the result
// notification
func (c *Coordinator) finish(ctx context.Context, executionID string, status models.ExecutionStatus, message string) {
	var execution models.RemediationExecution
	var planTitle string

	err := c.store.mutate(executionID, func(record *executionRecord) error {
		if !models.CanTransition(record.execution.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidState, record.execution.Status, status)
		}
		record.execution.Status = status
		now := time.Now().UTC()
		record.execution.CompletedAt = &now
		record.execution.Log = append(record.execution.Log, message)
		execution = copyExecution(record.execution)
		planTitle = record.plan.Title
		return nil
	})
	if err != nil {
		c.logger.Error("failed to finish execution", "execution_id", executionID, "error", err)
		return
	}

	c.trail.Append(executionID, audit.EventStateChanged, string(status))

	if err := c.notifier.SendRemediationResult(ctx, execution, planTitle); err != nil {
		c.logger.Warn("result notification failed", "execution_id", executionID, "error", err)
	}
}
