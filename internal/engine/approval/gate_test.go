// SPDX-License-Identifier: Apache-2.0

package approval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsdeck/remedy/internal/core/models"
	"github.com/opsdeck/remedy/internal/engine/approval"
)

func TestRequiresApproval(t *testing.T) {
	lowAssessment := models.RiskAssessment{OverallTier: models.RiskLow}
	highAssessment := models.RiskAssessment{OverallTier: models.RiskHigh, ManualReviewRequired: true}

	tests := []struct {
		name          string
		plan          models.RemediationPlan
		assessment    models.RiskAssessment
		force         bool
		autoApproval  bool
		needsApproval bool
	}{
		{
			name:          "low risk with auto-approval is waived",
			assessment:    lowAssessment,
			autoApproval:  true,
			needsApproval: false,
		},
		{
			name:          "low risk without auto-approval still waived when nothing demands review",
			assessment:    lowAssessment,
			autoApproval:  false,
			needsApproval: false,
		},
		{
			name:          "high tier requires approval",
			assessment:    highAssessment,
			autoApproval:  true,
			needsApproval: true,
		},
		{
			name:          "medium tier with manual review requires approval",
			assessment:    models.RiskAssessment{OverallTier: models.RiskMedium, ManualReviewRequired: true},
			autoApproval:  true,
			needsApproval: true,
		},
		{
			name:          "plan-level approval flag wins over low tier",
			plan:          models.RemediationPlan{ApprovalRequired: true},
			assessment:    lowAssessment,
			autoApproval:  true,
			needsApproval: true,
		},
		{
			name:          "force waives everything",
			plan:          models.RemediationPlan{ApprovalRequired: true},
			assessment:    models.RiskAssessment{OverallTier: models.RiskCritical, ManualReviewRequired: true},
			force:         true,
			autoApproval:  false,
			needsApproval: false,
		},
		{
			name:          "critical tier requires approval",
			assessment:    models.RiskAssessment{OverallTier: models.RiskCritical, ManualReviewRequired: true},
			autoApproval:  true,
			needsApproval: true,
		},
		{
			name:          "medium tier without review flags does not require approval",
			assessment:    models.RiskAssessment{OverallTier: models.RiskMedium},
			autoApproval:  true,
			needsApproval: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := approval.RequiresApproval(tt.plan, tt.assessment, tt.force, tt.autoApproval)
			assert.Equal(t, tt.needsApproval, got)
		})
	}
}
