// SPDX-License-Identifier: Apache-2.0

package risk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opsdeck/remedy/internal/core/config"
	"github.com/opsdeck/remedy/internal/core/models"
)

// hintClasses maps commentary hints to factor weight classes
var hintClasses = map[Hint]models.FactorClass{
	HintDataLoss: models.FactorCritical,
	HintHighRisk: models.FactorHigh,
	HintDowntime: models.FactorMedium,
	HintCaution:  models.FactorMedium,
}

// Assessor turns a plan plus execution context into a structured risk
// verdict. The tier is computed deterministically from factor counts;
// the LLM commentary contributes only through ExtractHints.
type Assessor struct {
	generator         CommentaryGenerator
	hours             config.BusinessHours
	commentaryTimeout time.Duration
	logger            *slog.Logger

	// now is swappable for business-hours tests
	now func() time.Time
}

// NewAssessor creates a risk assessor
func NewAssessor(generator CommentaryGenerator, hours config.BusinessHours, commentaryTimeout time.Duration, logger *slog.Logger) *Assessor {
	if generator == nil {
		generator = NopCommentary{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assessor{
		generator:         generator,
		hours:             hours,
		commentaryTimeout: commentaryTimeout,
		logger:            logger,
		now:               time.Now,
	}
}

// Assess produces the risk verdict for one submission. It never returns
// an error: a failed commentary call degrades to the fail-safe HIGH
// verdict instead of failing open to a low tier.
func (a *Assessor) Assess(ctx context.Context, plan models.RemediationPlan, execContext map[string]interface{}) models.RiskAssessment {
	var factors []models.RiskFactor
	var mitigations []string

	// (a) per-action risk tiers already declared on the plan
	for _, action := range plan.Actions {
		switch action.RiskTier {
		case models.RiskCritical:
			factors = append(factors, models.RiskFactor{
				Class:       models.FactorCritical,
				Description: fmt.Sprintf("action %q is tagged critical risk", action.Name),
			})
		case models.RiskHigh:
			factors = append(factors, models.RiskFactor{
				Class:       models.FactorHigh,
				Description: fmt.Sprintf("action %q is tagged high risk", action.Name),
			})
		}
		if action.RequiresApproval {
			factors = append(factors, models.RiskFactor{
				Class:       models.FactorMedium,
				Description: fmt.Sprintf("action %q is flagged for explicit approval", action.Name),
			})
		}
		if action.RiskTier >= models.RiskHigh && !action.HasRollback() {
			mitigations = append(mitigations, fmt.Sprintf("define a rollback command for action %q", action.Name))
		}
	}

	// (b) context signals
	production := isProduction(execContext)
	if production {
		factors = append(factors, models.RiskFactor{
			Class:       models.FactorHigh,
			Description: "target environment is production",
		})
	}
	if plan.TouchesResource("database") {
		factors = append(factors, models.RiskFactor{
			Class:       models.FactorMedium,
			Description: "plan touches database resources",
		})
		mitigations = append(mitigations, "take a backup before executing")
	}
	if production && a.hours.Contains(a.now()) {
		factors = append(factors, models.RiskFactor{
			Class:       models.FactorMedium,
			Description: "production change during business hours",
		})
		mitigations = append(mitigations, "consider scheduling outside business hours")
	}

	// (c) LLM commentary, bounded by its own timeout
	commentaryCtx, cancel := context.WithTimeout(ctx, a.commentaryTimeout)
	defer cancel()

	commentary, err := a.generator.Generate(commentaryCtx, plan, execContext)
	if err != nil {
		a.logger.Warn("risk commentary unavailable, failing safe",
			"plan_id", plan.ID, "error", err)
		return failSafeAssessment(factors, err)
	}

	for _, hint := range ExtractHints(commentary) {
		factors = append(factors, models.RiskFactor{
			Class:       hintClasses[hint],
			Description: fmt.Sprintf("risk commentary indicates %s", hint),
		})
	}

	tier := tierFromFactors(factors)
	confidence := 0.9
	if commentary == "" {
		confidence = 0.6
	}

	return models.RiskAssessment{
		OverallTier:          tier,
		Factors:              factors,
		Mitigations:          mitigations,
		Confidence:           confidence,
		Recommendation:       recommendationFor(tier),
		ManualReviewRequired: tier >= models.RiskHigh,
	}
}

// tierFromFactors computes the overall tier from factor counts, not
// from an opaque score:
// any critical factor forces CRITICAL; two or more high factors force
// HIGH; one high factor or three-plus medium factors force MEDIUM; any
// medium factor forces LOW; otherwise VERY_LOW.
func tierFromFactors(factors []models.RiskFactor) models.RiskTier {
	var critical, high, medium int
	for _, factor := range factors {
		switch factor.Class {
		case models.FactorCritical:
			critical++
		case models.FactorHigh:
			high++
		case models.FactorMedium:
			medium++
		}
	}

	switch {
	case critical >= 1:
		return models.RiskCritical
	case high >= 2:
		return models.RiskHigh
	case high == 1 || medium >= 3:
		return models.RiskMedium
	case medium >= 1:
		return models.RiskLow
	default:
		return models.RiskVeryLow
	}
}

// failSafeAssessment is the verdict when commentary cannot be obtained:
// HIGH tier, zero confidence, manual review required. Never fail open.
func failSafeAssessment(factors []models.RiskFactor, cause error) models.RiskAssessment {
	factors = append(factors, models.RiskFactor{
		Class:       models.FactorHigh,
		Description: fmt.Sprintf("risk assessment incomplete: %v", cause),
	})

	return models.RiskAssessment{
		OverallTier:          models.RiskHigh,
		Factors:              factors,
		Confidence:           0.0,
		Recommendation:       "risk commentary was unavailable; manual review required before execution",
		ManualReviewRequired: true,
	}
}

func recommendationFor(tier models.RiskTier) string {
	switch tier {
	case models.RiskCritical:
		return "do not execute without senior approval and a tested rollback path"
	case models.RiskHigh:
		return "manual review required before execution"
	case models.RiskMedium:
		return "review the listed risk factors before approving"
	case models.RiskLow:
		return "low risk; approval at the operator's discretion"
	default:
		return "safe to auto-execute under the configured policy"
	}
}

func isProduction(execContext map[string]interface{}) bool {
	env, ok := execContext["environment"].(string)
	return ok && env == "production"
}
