// SPDX-License-Identifier: Apache-2.0

package risk

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/opsdeck/remedy/internal/core/models"
)

// CommentaryGenerator produces natural-language risk commentary for a
// plan. It may be slow or unavailable; callers bound it with a timeout
// and must fail safe when it errors.
type CommentaryGenerator interface {
	Generate(ctx context.Context, plan models.RemediationPlan, execContext map[string]interface{}) (string, error)
}

// OpenAICommentary generates commentary through a hosted LLM.
type OpenAICommentary struct {
	client *openai.Client
	model  string
}

// NewOpenAICommentary creates a commentary generator backed by the
// OpenAI chat API. baseURL may be empty for the default endpoint.
func NewOpenAICommentary(apiKey, model, baseURL string) *OpenAICommentary {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICommentary{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Generate asks the model for a short risk commentary on the plan
func (g *OpenAICommentary) Generate(ctx context.Context, plan models.RemediationPlan, execContext map[string]interface{}) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Remediation plan %q (%s) with %d actions:\n", plan.Title, plan.AggregateRiskTier(), len(plan.Actions))
	for _, action := range plan.Actions {
		fmt.Fprintf(&sb, "- [%s/%s] %s\n", action.Type, action.RiskTier, action.Name)
	}
	if len(plan.Resources) > 0 {
		fmt.Fprintf(&sb, "Touches resources: %s\n", strings.Join(plan.Resources, ", "))
	}
	if env, ok := execContext["environment"].(string); ok {
		fmt.Fprintf(&sb, "Target environment: %s\n", env)
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You are an operations risk reviewer. In at most three sentences, " +
					"describe the operational risk of executing the following remediation plan. " +
					"Mention data loss, downtime, or irreversibility explicitly if applicable.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: sb.String(),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("error generating risk commentary: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("risk commentary response contained no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// NopCommentary is used when no LLM is configured. It returns empty
// commentary successfully, so the assessor's fail-safe path is reserved
// for a configured generator actually failing.
type NopCommentary struct{}

// Generate returns empty commentary
func (NopCommentary) Generate(ctx context.Context, plan models.RemediationPlan, execContext map[string]interface{}) (string, error) {
	return "", nil
}
