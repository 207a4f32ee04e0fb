// SPDX-License-Identifier: Apache-2.0

package approval

import (
	"github.com/opsdeck/remedy/internal/core/models"
)

// RequiresApproval decides whether human approval is needed before an
// execution may run. It is a pure function of the plan, the stored
// assessment, and the two policy inputs, so the decision can be
// re-derived later for audits.
//
// Approval is waived only when the caller forces it, or when
// auto-approval is enabled AND the assessed tier is VERY_LOW/LOW AND
// neither the plan nor the assessment demands review.
func RequiresApproval(plan models.RemediationPlan, assessment models.RiskAssessment, forceApproval, autoApprovalEnabled bool) bool {
	if forceApproval {
		return false
	}

	if autoApprovalEnabled &&
		assessment.OverallTier <= models.RiskLow &&
		!plan.ApprovalRequired &&
		!assessment.ManualReviewRequired {
		return false
	}

	return plan.ApprovalRequired ||
		assessment.ManualReviewRequired ||
		assessment.OverallTier >= models.RiskHigh
}
