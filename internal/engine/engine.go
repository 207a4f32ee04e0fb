// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/opsdeck/remedy/internal/core/catalog"
	"github.com/opsdeck/remedy/internal/core/config"
	"github.com/opsdeck/remedy/internal/core/models"
	"github.com/opsdeck/remedy/internal/core/template"
	"github.com/opsdeck/remedy/internal/engine/action"
	"github.com/opsdeck/remedy/internal/engine/approval"
	"github.com/opsdeck/remedy/internal/engine/audit"
	"github.com/opsdeck/remedy/internal/engine/escalate"
	"github.com/opsdeck/remedy/internal/engine/risk"
	"github.com/opsdeck/remedy/internal/engine/rollback"
	"github.com/opsdeck/remedy/internal/engine/sched"
	"github.com/opsdeck/remedy/internal/metrics"
	"github.com/opsdeck/remedy/internal/notify"
)

var (
	// ErrPlanNotFound is returned when a submission names a plan the
	// catalog does not contain.
	ErrPlanNotFound = catalog.ErrPlanNotFound

	// ErrExecutionNotFound is returned for operations on unknown
	// execution IDs.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrInvalidState is returned when an operation is not legal from
	// the execution's current status.
	ErrInvalidState = errors.New("invalid execution state")

	// ErrContextValidation is returned when the submitted context does
	// not satisfy the plan's command placeholders.
	ErrContextValidation = errors.New("invalid execution context")
)

// SubmitRequest is one remediation submission.
type SubmitRequest struct {
	PlanID      string
	Context     map[string]interface{}
	SubmittedBy string
	// ForceApproval waives the approval gate entirely for this
	// submission.
	ForceApproval bool
}

// SubmitResult reports the outcome of a submission: the new execution's
// ID, the status it landed in (REQUIRES_APPROVAL or APPROVED), and the
// risk verdict that drove the gate decision.
type SubmitResult struct {
	ExecutionID string
	Status      models.ExecutionStatus
	Assessment  models.RiskAssessment
}

// Engine is the remediation engine facade: it owns the plan catalog,
// the risk assessor, the approval gate, the scheduler, and the audit
// trail, and exposes the submission lifecycle as its API.
type Engine struct {
	config      *config.Config
	catalog     *catalog.Catalog
	store       *executionStore
	assessor    *risk.Assessor
	policies    *approval.PolicyEvaluator
	trail       *audit.Trail
	scheduler   *sched.Scheduler
	escalator   *escalate.Timers
	coordinator *Coordinator
	notifier    notify.Notifier
	recorder    *metrics.Recorder
	logger      *slog.Logger
}

// Option customizes engine construction.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	notifier   notify.Notifier
	commentary risk.CommentaryGenerator
	dispatcher *action.Dispatcher
	registerer prometheus.Registerer
}

// WithLogger sets the engine's structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithNotifier overrides the notifier built from configuration
func WithNotifier(notifier notify.Notifier) Option {
	return func(o *options) { o.notifier = notifier }
}

// WithCommentary overrides the commentary generator built from
// configuration
func WithCommentary(generator risk.CommentaryGenerator) Option {
	return func(o *options) { o.commentary = generator }
}

// WithDispatcher overrides the default action dispatcher
func WithDispatcher(dispatcher *action.Dispatcher) Option {
	return func(o *options) { o.dispatcher = dispatcher }
}

// WithRegisterer sets the Prometheus registerer for engine metrics
func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(o *options) { o.registerer = registerer }
}

// New creates an engine over the given catalog
func New(cfg *config.Config, cat *catalog.Catalog, opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	if o.notifier == nil {
		if cfg.Notifications.SlackWebhookURL != "" {
			o.notifier = notify.NewSlackNotifier(
				cfg.Notifications.SlackWebhookURL,
				cfg.Notifications.EscalationWebhookURL,
				cfg.Notifications.Channel,
				cfg.Notifications.EscalationChannel,
			)
		} else {
			o.notifier = notify.NewLogNotifier(o.logger)
		}
	}

	if o.commentary == nil && cfg.Commentary.Enabled {
		o.commentary = risk.NewOpenAICommentary(cfg.Commentary.APIKey, cfg.Commentary.Model, cfg.Commentary.BaseURL)
	}

	if o.dispatcher == nil {
		o.dispatcher = action.NewDefaultDispatcher(o.logger)
	}

	policies, err := approval.NewPolicyEvaluator(cfg.ApprovalPolicies)
	if err != nil {
		return nil, fmt.Errorf("error loading approval policies: %w", err)
	}

	store := newExecutionStore()
	trail := audit.NewTrail(o.logger)
	recorder := metrics.NewRecorder(o.registerer)
	coordinator := NewCoordinator(store, o.dispatcher,
		rollback.NewManager(o.dispatcher, o.logger), trail, recorder, o.notifier, o.logger)

	engine := &Engine{
		config:      cfg,
		catalog:     cat,
		store:       store,
		assessor:    risk.NewAssessor(o.commentary, cfg.BusinessHours, cfg.Commentary.Timeout, o.logger),
		policies:    policies,
		trail:       trail,
		coordinator: coordinator,
		notifier:    o.notifier,
		recorder:    recorder,
		logger:      o.logger,
	}
	engine.scheduler = sched.NewScheduler(coordinator,
		cfg.MaxConcurrentExecutions, cfg.QueueSize, cfg.QueuePollInterval, o.logger)
	engine.escalator = escalate.NewTimers(cfg.EscalationDelay, engine.escalated, o.logger)

	return engine, nil
}

// Start launches the engine's scheduler
func (e *Engine) Start(ctx context.Context) {
	e.scheduler.Start(ctx)
	e.logger.Info("remediation engine started",
		"max_concurrent", e.config.MaxConcurrentExecutions,
		"queue_size", e.config.QueueSize,
		"plans", e.catalog.Len(),
	)
}

// Stop disarms pending escalations, halts the scheduler, and waits for
// in-flight executions to finish
func (e *Engine) Stop() {
	e.escalator.Stop()
	e.scheduler.Stop()
	e.logger.Info("remediation engine stopped")
}

// Submit validates a submission, assesses its risk, and routes it
// through the approval gate. It returns once the execution is parked in
// REQUIRES_APPROVAL or enqueued as APPROVED; it never waits for the
// execution to run.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	plan, err := e.catalog.Get(req.PlanID)
	if err != nil {
		return nil, err
	}

	if err := template.ValidateContext(plan, req.Context); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextValidation, err)
	}

	execution := models.RemediationExecution{
		ID:          uuid.NewString(),
		PlanID:      plan.ID,
		Status:      models.StatusPending,
		Context:     req.Context,
		SubmittedBy: req.SubmittedBy,
	}
	e.store.create(&executionRecord{execution: execution, plan: plan})
	e.trail.Append(execution.ID, audit.EventSubmitted,
		fmt.Sprintf("plan %s submitted by %s", plan.ID, req.SubmittedBy))

	assessment := e.assessor.Assess(ctx, plan, req.Context)

	autoApproval := e.config.AutoApprovalEnabled
	if autoApproval {
		allowed, err := e.policies.AutoApprovalAllowed(plan, assessment, req.Context)
		if err != nil {
			// Policy evaluation errors fail closed
			e.logger.Warn("approval policy evaluation failed, requiring approval",
				"execution_id", execution.ID, "error", err)
			allowed = false
		}
		autoApproval = allowed
	}

	needsApproval := approval.RequiresApproval(plan, assessment, req.ForceApproval, autoApproval)

	next := models.StatusApproved
	if needsApproval {
		next = models.StatusRequiresApproval
	}

	e.store.mutate(execution.ID, func(record *executionRecord) error {
		record.assessment = assessment
		record.execution.Status = next
		record.execution.Log = append(record.execution.Log,
			fmt.Sprintf("risk assessed as %s (confidence %.1f)", assessment.OverallTier, assessment.Confidence))
		return nil
	})
	e.trail.Append(execution.ID, audit.EventStateChanged, string(next))

	if needsApproval {
		e.escalator.Schedule(execution.ID)
		e.sendApprovalAlert(ctx, execution.ID, plan, assessment, false)
		return &SubmitResult{ExecutionID: execution.ID, Status: next, Assessment: assessment}, nil
	}

	if err := e.enqueue(execution.ID); err != nil {
		return nil, err
	}
	return &SubmitResult{ExecutionID: execution.ID, Status: next, Assessment: assessment}, nil
}

// Approve records a human approval and enqueues the execution. Only
// executions waiting in REQUIRES_APPROVAL can be approved; anything
// else, including a second approval, is ErrInvalidState.
func (e *Engine) Approve(ctx context.Context, executionID, approver, comment string) error {
	err := e.store.mutate(executionID, func(record *executionRecord) error {
		if record.execution.Status != models.StatusRequiresApproval {
			return fmt.Errorf("%w: cannot approve from %s", ErrInvalidState, record.execution.Status)
		}
		record.execution.Status = models.StatusApproved
		record.execution.ApprovedBy = approver
		record.execution.ApprovalComment = comment
		record.execution.Log = append(record.execution.Log,
			fmt.Sprintf("approved by %s", approver))
		return nil
	})
	if err != nil {
		return err
	}

	e.escalator.Cancel(executionID)
	e.trail.Append(executionID, audit.EventStateChanged, string(models.StatusApproved))

	return e.enqueue(executionID)
}

// Cancel stops an execution. Waiting executions (REQUIRES_APPROVAL or
// APPROVED) move to CANCELLED immediately; an EXECUTING one gets a
// cooperative cancellation request honored at the next action boundary.
// Terminal executions cannot be cancelled.
func (e *Engine) Cancel(ctx context.Context, executionID, reason string) error {
	var cancelledNow bool

	err := e.store.mutate(executionID, func(record *executionRecord) error {
		switch record.execution.Status {
		case models.StatusRequiresApproval, models.StatusApproved:
			record.execution.Status = models.StatusCancelled
			now := time.Now().UTC()
			record.execution.CompletedAt = &now
			record.execution.Log = append(record.execution.Log,
				fmt.Sprintf("cancelled: %s", reason))
			cancelledNow = true
			return nil

		case models.StatusExecuting:
			record.cancelRequested = true
			record.execution.Log = append(record.execution.Log,
				fmt.Sprintf("cancellation requested: %s", reason))
			return nil

		default:
			return fmt.Errorf("%w: cannot cancel from %s", ErrInvalidState, record.execution.Status)
		}
	})
	if err != nil {
		return err
	}

	e.escalator.Cancel(executionID)
	if cancelledNow {
		e.trail.Append(executionID, audit.EventStateChanged, string(models.StatusCancelled))
	}
	return nil
}

// GetStatus returns a snapshot of one execution
func (e *Engine) GetStatus(executionID string) (models.RemediationExecution, error) {
	return e.store.snapshot(executionID)
}

// GetAssessment returns the risk verdict stored for one execution
func (e *Engine) GetAssessment(executionID string) (models.RiskAssessment, error) {
	return e.store.assessment(executionID)
}

// List returns execution snapshots in submission order, optionally
// filtered by status, capped at limit (0 means no cap)
func (e *Engine) List(filter models.ExecutionStatus, limit int) []models.RemediationExecution {
	return e.store.list(filter, limit)
}

// AuditTrail returns the audit events recorded for one execution
func (e *Engine) AuditTrail(executionID string) []audit.Event {
	return e.trail.Events(executionID)
}

// Plans returns the catalog's plans
func (e *Engine) Plans() []models.RemediationPlan {
	return e.catalog.List()
}

// InFlight returns the number of currently running executions
func (e *Engine) InFlight() int {
	return e.scheduler.InFlight()
}

// enqueue hands an approved execution to the scheduler. A full queue
// cancels the execution so it cannot linger in APPROVED with no path to
// ever run.
func (e *Engine) enqueue(executionID string) error {
	err := e.scheduler.Submit(executionID)
	if err == nil {
		return nil
	}

	e.store.mutate(executionID, func(record *executionRecord) error {
		record.execution.Status = models.StatusCancelled
		now := time.Now().UTC()
		record.execution.CompletedAt = &now
		record.execution.Log = append(record.execution.Log, "cancelled: scheduler queue full")
		return nil
	})
	e.trail.Append(executionID, audit.EventStateChanged, string(models.StatusCancelled))

	return fmt.Errorf("error scheduling execution: %w", err)
}

// escalated fires when an approval sat unresolved past the escalation
// delay. The status is re-checked here: a timer racing a just-resolved
// execution must not escalate it.
func (e *Engine) escalated(executionID string) {
	status, err := e.store.status(executionID)
	if err != nil || status != models.StatusRequiresApproval {
		return
	}

	e.trail.Append(executionID, audit.EventEscalated,
		fmt.Sprintf("approval pending for more than %s", e.config.EscalationDelay))

	plan, err := e.store.plan(executionID)
	if err != nil {
		return
	}
	assessment, _ := e.store.assessment(executionID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	e.sendApprovalAlert(ctx, executionID, plan, assessment, true)
}

func (e *Engine) sendApprovalAlert(ctx context.Context, executionID string, plan models.RemediationPlan,
	assessment models.RiskAssessment, escalated bool) {
	message := assessment.Recommendation
	if escalated {
		message = fmt.Sprintf("approval pending for more than %s; %s", e.config.EscalationDelay, assessment.Recommendation)
	}

	alert := notify.Alert{
		ExecutionID: executionID,
		PlanID:      plan.ID,
		PlanTitle:   plan.Title,
		Status:      models.StatusRequiresApproval,
		RiskTier:    assessment.OverallTier,
		Message:     message,
		Escalated:   escalated,
	}

	if err := e.notifier.SendAlert(ctx, alert); err != nil {
		e.logger.Warn("alert delivery failed",
			"execution_id", executionID, "escalated", escalated, "error", err)
	}
}
