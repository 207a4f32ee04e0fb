// SPDX-License-Identifier: Apache-2.0

package risk_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/remedy/internal/core/config"
	"github.com/opsdeck/remedy/internal/core/models"
	"github.com/opsdeck/remedy/internal/engine/risk"
	"github.com/opsdeck/remedy/internal/testutil"
)

var testHours = config.BusinessHours{StartHour: 9, EndHour: 17}

func planWithTiers(tiers ...models.RiskTier) models.RemediationPlan {
	plan := models.RemediationPlan{ID: "p", Title: "Test plan"}
	for i, tier := range tiers {
		plan.Actions = append(plan.Actions, models.RemediationAction{
			ID:       string(rune('a' + i)),
			Name:     "action",
			Type:     models.ActionShell,
			Command:  "true",
			Timeout:  models.Duration(30 * time.Second),
			RiskTier: tier,
		})
	}
	return plan
}

func TestAssessTierFromActionTiers(t *testing.T) {
	tests := []struct {
		name     string
		tiers    []models.RiskTier
		expected models.RiskTier
	}{
		{"all benign", []models.RiskTier{models.RiskVeryLow, models.RiskVeryLow}, models.RiskVeryLow},
		{"single high action", []models.RiskTier{models.RiskHigh}, models.RiskMedium},
		{"two high actions", []models.RiskTier{models.RiskHigh, models.RiskHigh}, models.RiskHigh},
		{"critical action dominates", []models.RiskTier{models.RiskLow, models.RiskCritical}, models.RiskCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assessor := risk.NewAssessor(nil, testHours, time.Second, nil)
			assessment := assessor.Assess(context.Background(), planWithTiers(tt.tiers...), nil)

			assert.Equal(t, tt.expected, assessment.OverallTier)
			assert.Equal(t, 0.6, assessment.Confidence, "no-op commentary lowers confidence")
			assert.Equal(t, tt.expected >= models.RiskHigh, assessment.ManualReviewRequired)
		})
	}
}

func TestAssessRequiresApprovalFlagIsMediumFactor(t *testing.T) {
	plan := planWithTiers(models.RiskVeryLow)
	plan.Actions[0].RequiresApproval = true

	assessor := risk.NewAssessor(nil, testHours, time.Second, nil)
	assessment := assessor.Assess(context.Background(), plan, nil)

	// One medium factor lands on LOW
	assert.Equal(t, models.RiskLow, assessment.OverallTier)
	require.Len(t, assessment.Factors, 1)
	assert.Equal(t, models.FactorMedium, assessment.Factors[0].Class)
}

func TestAssessProductionContext(t *testing.T) {
	assessor := risk.NewAssessor(nil, testHours, time.Second, nil)
	assessment := assessor.Assess(context.Background(), planWithTiers(models.RiskVeryLow),
		map[string]interface{}{"environment": "production"})

	// One high factor (production) forces at least MEDIUM
	assert.Equal(t, models.RiskMedium, assessment.OverallTier)

	found := false
	for _, factor := range assessment.Factors {
		if factor.Class == models.FactorHigh {
			assert.Contains(t, factor.Description, "production")
			found = true
		}
	}
	assert.True(t, found, "expected a production risk factor")
}

func TestAssessDatabaseResourceMitigation(t *testing.T) {
	plan := planWithTiers(models.RiskVeryLow)
	plan.Resources = []string{"database/primary"}

	assessor := risk.NewAssessor(nil, testHours, time.Second, nil)
	assessment := assessor.Assess(context.Background(), plan, nil)

	assert.Equal(t, models.RiskLow, assessment.OverallTier, "database touch is a medium factor")
	assert.Contains(t, assessment.Mitigations, "take a backup before executing")
}

func TestAssessRollbackMitigationForHighRiskActions(t *testing.T) {
	plan := planWithTiers(models.RiskHigh)

	assessor := risk.NewAssessor(nil, testHours, time.Second, nil)
	assessment := assessor.Assess(context.Background(), plan, nil)

	require.Len(t, assessment.Mitigations, 1)
	assert.Contains(t, assessment.Mitigations[0], "rollback")
}

func TestAssessCommentaryHintsRaiseTier(t *testing.T) {
	commentary := &testutil.MockCommentary{}
	commentary.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return("This change is irreversible and risks data loss.", nil)

	assessor := risk.NewAssessor(commentary, testHours, time.Second, nil)
	assessment := assessor.Assess(context.Background(), planWithTiers(models.RiskVeryLow), nil)

	assert.Equal(t, models.RiskCritical, assessment.OverallTier, "data_loss hint is a critical factor")
	assert.Equal(t, 0.9, assessment.Confidence, "commentary was obtained")
	assert.True(t, assessment.ManualReviewRequired)
	commentary.AssertExpectations(t)
}

func TestAssessFailsSafeOnCommentaryError(t *testing.T) {
	commentary := &testutil.MockCommentary{}
	commentary.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return("", assert.AnError)

	assessor := risk.NewAssessor(commentary, testHours, time.Second, nil)
	assessment := assessor.Assess(context.Background(), planWithTiers(models.RiskVeryLow), nil)

	assert.Equal(t, models.RiskHigh, assessment.OverallTier)
	assert.Equal(t, 0.0, assessment.Confidence)
	assert.True(t, assessment.ManualReviewRequired)

	found := false
	for _, factor := range assessment.Factors {
		if factor.Class == models.FactorHigh {
			assert.Contains(t, factor.Description, "risk assessment incomplete")
			found = true
		}
	}
	assert.True(t, found)
}

// slowCommentary blocks until its context is cancelled.
type slowCommentary struct{}

func (slowCommentary) Generate(ctx context.Context, plan models.RemediationPlan, execContext map[string]interface{}) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestAssessFailsSafeOnCommentaryTimeout(t *testing.T) {
	assessor := risk.NewAssessor(slowCommentary{}, testHours, 20*time.Millisecond, nil)

	start := time.Now()
	assessment := assessor.Assess(context.Background(), planWithTiers(models.RiskVeryLow), nil)

	assert.Less(t, time.Since(start), 2*time.Second, "assessment must not hang on a slow generator")
	assert.Equal(t, models.RiskHigh, assessment.OverallTier)
	assert.Equal(t, 0.0, assessment.Confidence)
	assert.True(t, assessment.ManualReviewRequired)
}
