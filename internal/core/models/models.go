// SPDX-License-Identifier: Apache-2.0

package models

import (
	"fmt"
	"strings"
	"time"
)

// RiskTier is the ordered severity classification driving approval policy.
type RiskTier int

const (
	RiskVeryLow RiskTier = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

var riskTierNames = map[RiskTier]string{
	RiskVeryLow:  "very_low",
	RiskLow:      "low",
	RiskMedium:   "medium",
	RiskHigh:     "high",
	RiskCritical: "critical",
}

func (t RiskTier) String() string {
	if name, ok := riskTierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// ParseRiskTier converts a catalog string to a RiskTier
func ParseRiskTier(s string) (RiskTier, error) {
	for tier, name := range riskTierNames {
		if name == s {
			return tier, nil
		}
	}
	return RiskVeryLow, fmt.Errorf("unknown risk tier: %q", s)
}

// MarshalYAML serializes the tier as its catalog name
func (t RiskTier) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// UnmarshalYAML parses the tier from its catalog name
func (t *RiskTier) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	tier, err := ParseRiskTier(s)
	if err != nil {
		return err
	}
	*t = tier
	return nil
}

// Duration wraps time.Duration so catalog files can use human-readable
// values like "30s" or "5m" in both YAML and JSON.
type Duration time.Duration

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalYAML serializes the duration in its human-readable form
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML parses "30s"-style duration strings
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON serializes the duration in its human-readable form
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", d.String())), nil
}

// UnmarshalJSON parses "30s"-style duration strings
func (d *Duration) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// ActionType identifies which handler executes an action.
type ActionType string

const (
	ActionShell        ActionType = "shell_command"
	ActionOrchestrator ActionType = "orchestrator_cli"
	ActionInfraAsCode  ActionType = "infra_as_code"
	ActionAPICall      ActionType = "api_call"
)

// KnownActionTypes lists every registered action type
func KnownActionTypes() []ActionType {
	return []ActionType{ActionShell, ActionOrchestrator, ActionInfraAsCode, ActionAPICall}
}

// ValidActionType reports whether t is a registered action type
func ValidActionType(t ActionType) bool {
	for _, known := range KnownActionTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// RemediationAction is a single step in a plan. Immutable once the plan
// catalog is loaded.
type RemediationAction struct {
	ID               string     `yaml:"id" json:"id"`
	Name             string     `yaml:"name" json:"name"`
	Type             ActionType `yaml:"type" json:"type"`
	Command          string     `yaml:"command" json:"command"`
	Timeout          Duration   `yaml:"timeout" json:"timeout"`
	RollbackCommand  string     `yaml:"rollback_command,omitempty" json:"rollback_command,omitempty"`
	RiskTier         RiskTier   `yaml:"risk_tier" json:"risk_tier"`
	RequiresApproval bool       `yaml:"requires_approval,omitempty" json:"requires_approval,omitempty"`
}

// HasRollback reports whether the action defines a compensating command
func (a RemediationAction) HasRollback() bool {
	return a.RollbackCommand != ""
}

// RemediationPlan is a named, ordered sequence of actions with declared
// risk/approval policy. Plans come from a fixed catalog and are
// read-only at submission time.
type RemediationPlan struct {
	ID                string              `yaml:"id" json:"id"`
	Title             string              `yaml:"title" json:"title"`
	Description       string              `yaml:"description,omitempty" json:"description,omitempty"`
	Actions           []RemediationAction `yaml:"actions" json:"actions"`
	EstimatedDuration Duration            `yaml:"estimated_duration,omitempty" json:"estimated_duration,omitempty"`
	Resources         []string            `yaml:"resources,omitempty" json:"resources,omitempty"`
	ApprovalRequired  bool                `yaml:"approval_required,omitempty" json:"approval_required,omitempty"`
	AutoExecute       bool                `yaml:"auto_execute,omitempty" json:"auto_execute,omitempty"`
}

// AggregateRiskTier derives the plan-level tier from its actions.
// It is computed, never set independently.
func (p RemediationPlan) AggregateRiskTier() RiskTier {
	tier := RiskVeryLow
	for _, action := range p.Actions {
		if action.RiskTier > tier {
			tier = action.RiskTier
		}
	}
	return tier
}

// TouchesResource reports whether any of the plan's resource
// identifiers contains the given substring (case-insensitive)
func (p RemediationPlan) TouchesResource(substr string) bool {
	for _, res := range p.Resources {
		if strings.Contains(strings.ToLower(res), strings.ToLower(substr)) {
			return true
		}
	}
	return false
}

// ActionByID finds an action in the plan
func (p RemediationPlan) ActionByID(id string) (RemediationAction, bool) {
	for _, action := range p.Actions {
		if action.ID == id {
			return action, true
		}
	}
	return RemediationAction{}, false
}

// FactorClass weights a risk factor for tier computation.
type FactorClass int

const (
	FactorMedium FactorClass = iota
	FactorHigh
	FactorCritical
)

func (c FactorClass) String() string {
	switch c {
	case FactorCritical:
		return "critical"
	case FactorHigh:
		return "high"
	default:
		return "medium"
	}
}

// RiskFactor is one named contribution to an assessment.
type RiskFactor struct {
	Class       FactorClass `json:"class"`
	Description string      `json:"description"`
}

// RiskAssessment is produced per submission and recomputed every time;
// it is never persisted beyond the execution's lifetime.
type RiskAssessment struct {
	OverallTier          RiskTier     `json:"overall_tier"`
	Factors              []RiskFactor `json:"factors"`
	Mitigations          []string     `json:"mitigations,omitempty"`
	Confidence           float64      `json:"confidence"`
	Recommendation       string       `json:"recommendation"`
	ManualReviewRequired bool         `json:"manual_review_required"`
}

// ExecutionStatus is the state of one execution's state machine.
type ExecutionStatus string

const (
	StatusPending          ExecutionStatus = "PENDING"
	StatusRequiresApproval ExecutionStatus = "REQUIRES_APPROVAL"
	StatusApproved         ExecutionStatus = "APPROVED"
	StatusExecuting        ExecutionStatus = "EXECUTING"
	StatusCompleted        ExecutionStatus = "COMPLETED"
	StatusFailed           ExecutionStatus = "FAILED"
	StatusCancelled        ExecutionStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are allowed
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// validTransitions encodes the execution lifecycle:
// PENDING -> {REQUIRES_APPROVAL, APPROVED}
// REQUIRES_APPROVAL -> {APPROVED, CANCELLED}
// APPROVED -> {EXECUTING, CANCELLED}
// EXECUTING -> {COMPLETED, FAILED, CANCELLED}
var validTransitions = map[ExecutionStatus][]ExecutionStatus{
	StatusPending:          {StatusRequiresApproval, StatusApproved},
	StatusRequiresApproval: {StatusApproved, StatusCancelled},
	StatusApproved:         {StatusExecuting, StatusCancelled},
	StatusExecuting:        {StatusCompleted, StatusFailed, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal status change
func CanTransition(from, to ExecutionStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// RemediationExecution is the mutable record of one attempt to run a
// plan. It is mutated only by the coordinator owning it and by the
// approval/cancel entry points; it is never deleted, only driven to a
// terminal status.
type RemediationExecution struct {
	ID              string                 `json:"id"`
	PlanID          string                 `json:"plan_id"`
	Status          ExecutionStatus        `json:"status"`
	Context         map[string]interface{} `json:"context,omitempty"`
	StartedAt       *time.Time             `json:"started_at,omitempty"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`
	ExecutedActions []string               `json:"executed_actions"`
	FailedActions   []string               `json:"failed_actions"`
	RollbackActions []string               `json:"rollback_actions"`
	ApprovedBy      string                 `json:"approved_by,omitempty"`
	ApprovalComment string                 `json:"approval_comment,omitempty"`
	SubmittedBy     string                 `json:"submitted_by,omitempty"`
	Log             []string               `json:"log"`
}
