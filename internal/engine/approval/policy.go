// SPDX-License-Identifier: Apache-2.0

package approval

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opsdeck/remedy/internal/core/models"
)

// PolicyEvaluator evaluates configured CEL auto-approval policies.
// Every policy expression must evaluate true for auto-approval to stay
// enabled for a submission; an evaluation error fails closed.
type PolicyEvaluator struct {
	env      *cel.Env
	programs []cel.Program
}

// NewPolicyEvaluator compiles the given CEL expressions. Expressions
// see three variables: plan, assessment, and context.
func NewPolicyEvaluator(expressions []string) (*PolicyEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("plan", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("assessment", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("context", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating CEL environment: %w", err)
	}

	evaluator := &PolicyEvaluator{env: env}

	for _, expression := range expressions {
		ast, issues := env.Compile(expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("error compiling policy %q: %w", expression, issues.Err())
		}

		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("error building policy program %q: %w", expression, err)
		}

		evaluator.programs = append(evaluator.programs, program)
	}

	return evaluator, nil
}

// AutoApprovalAllowed evaluates every policy against the submission.
// It returns false as soon as any policy fails or errors.
func (e *PolicyEvaluator) AutoApprovalAllowed(plan models.RemediationPlan, assessment models.RiskAssessment, execContext map[string]interface{}) (bool, error) {
	if len(e.programs) == 0 {
		return true, nil
	}

	vars := map[string]interface{}{
		"plan": map[string]interface{}{
			"id":                plan.ID,
			"approval_required": plan.ApprovalRequired,
			"auto_execute":      plan.AutoExecute,
			"aggregate_tier":    plan.AggregateRiskTier().String(),
			"resources":         plan.Resources,
		},
		"assessment": map[string]interface{}{
			"tier":                   assessment.OverallTier.String(),
			"confidence":             assessment.Confidence,
			"manual_review_required": assessment.ManualReviewRequired,
			"factor_count":           len(assessment.Factors),
		},
		"context": execContext,
	}

	for _, program := range e.programs {
		result, _, err := program.Eval(vars)
		if err != nil {
			return false, fmt.Errorf("error evaluating approval policy: %w", err)
		}

		if result.Type() != types.BoolType {
			return false, fmt.Errorf("approval policy did not evaluate to a boolean")
		}

		if !result.Value().(bool) {
			return false, nil
		}
	}

	return true, nil
}
