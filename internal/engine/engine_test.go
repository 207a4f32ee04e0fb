// SPDX-License-Identifier: Apache-2.0

package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/remedy/internal/core/catalog"
	"github.com/opsdeck/remedy/internal/core/config"
	"github.com/opsdeck/remedy/internal/core/models"
	"github.com/opsdeck/remedy/internal/engine"
	"github.com/opsdeck/remedy/internal/engine/audit"
	"github.com/opsdeck/remedy/internal/notify"
)

const benignPlan = `
id: benign
title: Benign plan
actions:
  - id: step-one
    name: First step
    type: shell_command
    command: "echo one"
    timeout: 10s
    risk_tier: very_low
  - id: step-two
    name: Second step
    type: shell_command
    command: "echo two"
    timeout: 10s
    risk_tier: very_low
`

const failingPlan = `
id: failing
title: Failing plan
actions:
  - id: action-a
    name: Action A
    type: shell_command
    command: "true"
    timeout: 10s
    risk_tier: very_low
  - id: action-b
    name: Action B
    type: shell_command
    command: "false"
    rollback_command: "true"
    timeout: 10s
    risk_tier: very_low
  - id: action-c
    name: Action C
    type: shell_command
    command: "echo never reached"
    timeout: 10s
    risk_tier: very_low
`

const gatedPlan = `
id: gated
title: Gated plan
approval_required: true
actions:
  - id: only
    name: Only step
    type: shell_command
    command: "true"
    timeout: 10s
    risk_tier: low
`

const slowPlan = `
id: slow
title: Slow plan
actions:
  - id: nap
    name: Nap
    type: shell_command
    command: "sleep 0.3"
    timeout: 10s
    risk_tier: very_low
  - id: after
    name: After the nap
    type: shell_command
    command: "echo after"
    timeout: 10s
    risk_tier: very_low
`

const paramPlan = `
id: parameterized
title: Parameterized plan
actions:
  - id: greet
    name: Greet
    type: shell_command
    command: "echo hello {{.name}}"
    timeout: 10s
    risk_tier: very_low
`

// recordingNotifier captures alerts for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	alerts []notify.Alert
}

func (n *recordingNotifier) SendAlert(ctx context.Context, alert notify.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return nil
}

func (n *recordingNotifier) SendRemediationResult(ctx context.Context, execution models.RemediationExecution, planTitle string) error {
	return nil
}

func (n *recordingNotifier) snapshot() []notify.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Alert(nil), n.alerts...)
}

func newTestEngine(t *testing.T, mutate func(*config.Config), opts ...engine.Option) *engine.Engine {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("Skipping test on Windows")
	}

	dir := t.TempDir()
	for name, content := range map[string]string{
		"benign.yaml":  benignPlan,
		"failing.yaml": failingPlan,
		"gated.yaml":   gatedPlan,
		"param.yaml":   paramPlan,
		"slow.yaml":    slowPlan,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}

	cfg := config.NewDefaultConfig()
	cfg.CatalogDir = dir
	cfg.QueuePollInterval = 10 * time.Millisecond
	cfg.EscalationDelay = time.Hour
	if mutate != nil {
		mutate(cfg)
	}

	cat, err := catalog.Load(dir)
	require.NoError(t, err)

	opts = append([]engine.Option{engine.WithRegisterer(prometheus.NewRegistry())}, opts...)
	eng, err := engine.New(cfg, cat, opts...)
	require.NoError(t, err)

	eng.Start(context.Background())
	t.Cleanup(eng.Stop)

	return eng
}

func waitForTerminal(t *testing.T, eng *engine.Engine, executionID string) models.RemediationExecution {
	t.Helper()

	var execution models.RemediationExecution
	require.Eventually(t, func() bool {
		var err error
		execution, err = eng.GetStatus(executionID)
		return err == nil && execution.Status.Terminal()
	}, 10*time.Second, 20*time.Millisecond, "execution did not reach a terminal state")

	return execution
}

func TestSubmitUnknownPlan(t *testing.T) {
	eng := newTestEngine(t, nil)

	_, err := eng.Submit(context.Background(), engine.SubmitRequest{PlanID: "nope"})
	assert.ErrorIs(t, err, engine.ErrPlanNotFound)
}

func TestSubmitWithMissingContextParameters(t *testing.T) {
	eng := newTestEngine(t, nil)

	_, err := eng.Submit(context.Background(), engine.SubmitRequest{
		PlanID:  "parameterized",
		Context: map[string]interface{}{},
	})
	require.ErrorIs(t, err, engine.ErrContextValidation)
	assert.Contains(t, err.Error(), "name")
}

func TestAutoApprovedExecutionCompletes(t *testing.T) {
	eng := newTestEngine(t, nil)

	result, err := eng.Submit(context.Background(), engine.SubmitRequest{
		PlanID:      "benign",
		SubmittedBy: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, result.Status, "low risk is auto-approved")
	assert.Equal(t, models.RiskVeryLow, result.Assessment.OverallTier)

	execution := waitForTerminal(t, eng, result.ExecutionID)

	assert.Equal(t, models.StatusCompleted, execution.Status)
	assert.Equal(t, []string{"step-one", "step-two"}, execution.ExecutedActions)
	assert.Empty(t, execution.FailedActions)
	assert.Empty(t, execution.RollbackActions)
	assert.Equal(t, "alice", execution.SubmittedBy)
	require.NotNil(t, execution.StartedAt)
	require.NotNil(t, execution.CompletedAt)

	// Audit trail covers the full lifecycle in order
	var types []audit.EventType
	for _, event := range eng.AuditTrail(result.ExecutionID) {
		types = append(types, event.Type)
	}
	assert.Equal(t, audit.EventSubmitted, types[0])
	assert.Contains(t, types, audit.EventActionStarted)
	assert.Contains(t, types, audit.EventActionSucceeded)
}

func TestFailureStopsExecutionAndRollsBack(t *testing.T) {
	eng := newTestEngine(t, nil)

	result, err := eng.Submit(context.Background(), engine.SubmitRequest{PlanID: "failing"})
	require.NoError(t, err)

	execution := waitForTerminal(t, eng, result.ExecutionID)

	assert.Equal(t, models.StatusFailed, execution.Status)
	assert.Equal(t, []string{"action-a"}, execution.ExecutedActions, "only the action before the failure ran")
	assert.Equal(t, []string{"action-b"}, execution.FailedActions)
	assert.Equal(t, []string{"action-b"}, execution.RollbackActions, "failed action was rolled back")

	var types []audit.EventType
	for _, event := range eng.AuditTrail(result.ExecutionID) {
		types = append(types, event.Type)
	}
	assert.Contains(t, types, audit.EventActionFailed)
	assert.Contains(t, types, audit.EventRollbackStarted)
	assert.Contains(t, types, audit.EventRollbackSucceeded)

	// The log tells the failure story in order: start, A success,
	// B attempt, B failure, rollback success, terminal failure
	assertLogOrder(t, execution.Log,
		"starting execution",
		`action "Action A" succeeded`,
		`executing action "Action B"`,
		`action "Action B" failed`,
		`rollback of action "Action B" succeeded`,
		"execution failed",
	)
}

// assertLogOrder checks that the expected fragments appear in the log
// as an ordered subsequence
func assertLogOrder(t *testing.T, log []string, fragments ...string) {
	t.Helper()

	i := 0
	for _, line := range log {
		if i < len(fragments) && strings.Contains(line, fragments[i]) {
			i++
		}
	}
	assert.Equal(t, len(fragments), i, "log %v missing fragment %q in order", log, fragments[min(i, len(fragments)-1)])
}

func TestApprovalGateAndApprove(t *testing.T) {
	eng := newTestEngine(t, nil)

	result, err := eng.Submit(context.Background(), engine.SubmitRequest{PlanID: "gated"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRequiresApproval, result.Status)

	// Nothing runs while approval is pending
	time.Sleep(100 * time.Millisecond)
	execution, err := eng.GetStatus(result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRequiresApproval, execution.Status)

	require.NoError(t, eng.Approve(context.Background(), result.ExecutionID, "bob", "looks safe"))

	execution = waitForTerminal(t, eng, result.ExecutionID)
	assert.Equal(t, models.StatusCompleted, execution.Status)
	assert.Equal(t, "bob", execution.ApprovedBy)
	assert.Equal(t, "looks safe", execution.ApprovalComment)

	// A second approval is illegal from a terminal state
	err = eng.Approve(context.Background(), result.ExecutionID, "carol", "")
	assert.ErrorIs(t, err, engine.ErrInvalidState)
}

func TestApproveUnknownExecution(t *testing.T) {
	eng := newTestEngine(t, nil)

	err := eng.Approve(context.Background(), "missing", "bob", "")
	assert.ErrorIs(t, err, engine.ErrExecutionNotFound)
}

func TestForceApprovalWaivesGate(t *testing.T) {
	eng := newTestEngine(t, nil)

	result, err := eng.Submit(context.Background(), engine.SubmitRequest{
		PlanID:        "gated",
		ForceApproval: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, result.Status)

	execution := waitForTerminal(t, eng, result.ExecutionID)
	assert.Equal(t, models.StatusCompleted, execution.Status)
}

func TestCancelWaitingExecution(t *testing.T) {
	eng := newTestEngine(t, nil)

	result, err := eng.Submit(context.Background(), engine.SubmitRequest{PlanID: "gated"})
	require.NoError(t, err)

	require.NoError(t, eng.Cancel(context.Background(), result.ExecutionID, "no longer needed"))

	execution, err := eng.GetStatus(result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, execution.Status)
	assert.Empty(t, execution.ExecutedActions)

	// Cancelled executions can be neither approved nor re-cancelled
	assert.ErrorIs(t, eng.Approve(context.Background(), result.ExecutionID, "bob", ""), engine.ErrInvalidState)
	assert.ErrorIs(t, eng.Cancel(context.Background(), result.ExecutionID, "again"), engine.ErrInvalidState)
}

func TestCancelDuringExecution(t *testing.T) {
	eng := newTestEngine(t, nil)

	result, err := eng.Submit(context.Background(), engine.SubmitRequest{PlanID: "slow"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		execution, err := eng.GetStatus(result.ExecutionID)
		return err == nil && execution.Status == models.StatusExecuting
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, eng.Cancel(context.Background(), result.ExecutionID, "operator abort"))

	execution := waitForTerminal(t, eng, result.ExecutionID)
	assert.Equal(t, models.StatusCancelled, execution.Status)
	assert.NotContains(t, execution.ExecutedActions, "after",
		"cancellation is honored at the next action boundary")
}

func TestCancelCompletedExecution(t *testing.T) {
	eng := newTestEngine(t, nil)

	result, err := eng.Submit(context.Background(), engine.SubmitRequest{PlanID: "benign"})
	require.NoError(t, err)
	waitForTerminal(t, eng, result.ExecutionID)

	err = eng.Cancel(context.Background(), result.ExecutionID, "too late")
	assert.ErrorIs(t, err, engine.ErrInvalidState)
}

func TestDisabledAutoApprovalStillWaivesBenignPlans(t *testing.T) {
	eng := newTestEngine(t, func(cfg *config.Config) {
		cfg.AutoApprovalEnabled = false
	})

	// Nothing about the plan or assessment demands review, so the gate
	// stays open even without auto-approval
	result, err := eng.Submit(context.Background(), engine.SubmitRequest{PlanID: "benign"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, result.Status)
}

func TestApprovalPolicyFailsClosed(t *testing.T) {
	eng := newTestEngine(t, func(cfg *config.Config) {
		cfg.ApprovalPolicies = []string{"assessment.confidence >= 0.95"}
	})

	// Confidence is 0.6 with no commentary source, so the policy fails
	// and auto-approval is disabled; the gate then requires approval
	// only if something else demands it. The benign plan demands
	// nothing, so it still passes the pure gate.
	result, err := eng.Submit(context.Background(), engine.SubmitRequest{PlanID: "benign"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, result.Status)
}

func TestEscalationAlert(t *testing.T) {
	notifier := &recordingNotifier{}
	eng := newTestEngine(t, func(cfg *config.Config) {
		cfg.EscalationDelay = 50 * time.Millisecond
	}, engine.WithNotifier(notifier))

	result, err := eng.Submit(context.Background(), engine.SubmitRequest{PlanID: "gated"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, alert := range notifier.snapshot() {
			if alert.Escalated && alert.ExecutionID == result.ExecutionID {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond, "unresolved approval should escalate")

	var types []audit.EventType
	for _, event := range eng.AuditTrail(result.ExecutionID) {
		types = append(types, event.Type)
	}
	assert.Contains(t, types, audit.EventEscalated)
}

func TestApprovalSuppressesEscalation(t *testing.T) {
	notifier := &recordingNotifier{}
	eng := newTestEngine(t, func(cfg *config.Config) {
		cfg.EscalationDelay = 200 * time.Millisecond
	}, engine.WithNotifier(notifier))

	result, err := eng.Submit(context.Background(), engine.SubmitRequest{PlanID: "gated"})
	require.NoError(t, err)

	require.NoError(t, eng.Approve(context.Background(), result.ExecutionID, "bob", ""))
	waitForTerminal(t, eng, result.ExecutionID)

	time.Sleep(400 * time.Millisecond)
	for _, alert := range notifier.snapshot() {
		assert.False(t, alert.Escalated, "resolved executions must not escalate")
	}
}

func TestListExecutions(t *testing.T) {
	eng := newTestEngine(t, nil)

	first, err := eng.Submit(context.Background(), engine.SubmitRequest{PlanID: "benign"})
	require.NoError(t, err)
	second, err := eng.Submit(context.Background(), engine.SubmitRequest{PlanID: "gated"})
	require.NoError(t, err)

	waitForTerminal(t, eng, first.ExecutionID)

	all := eng.List("", 0)
	require.Len(t, all, 2)
	assert.Equal(t, first.ExecutionID, all[0].ID, "submission order is preserved")
	assert.Equal(t, second.ExecutionID, all[1].ID)

	waiting := eng.List(models.StatusRequiresApproval, 0)
	require.Len(t, waiting, 1)
	assert.Equal(t, second.ExecutionID, waiting[0].ID)

	capped := eng.List("", 1)
	assert.Len(t, capped, 1)
}
