// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsdeck/remedy/internal/core/catalog"
	"github.com/opsdeck/remedy/internal/core/config"
	"github.com/opsdeck/remedy/internal/core/models"
	"github.com/opsdeck/remedy/internal/engine"
)

func getRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [plan-id]",
		Short: "Submit a remediation plan and wait for it to finish",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			configPath, _ := cmd.Flags().GetString("config")
			contextPairs, _ := cmd.Flags().GetStringArray("context")
			forceApproval, _ := cmd.Flags().GetBool("force-approval")
			yes, _ := cmd.Flags().GetBool("yes")
			submitter, _ := cmd.Flags().GetString("submitter")

			cfg, err := config.Load(configPath)
			if err != nil {
				fmt.Printf("Error loading config: %v\n", err)
				os.Exit(1)
			}

			cat, err := catalog.Load(cfg.CatalogDir)
			if err != nil {
				fmt.Printf("Error loading catalog: %v\n", err)
				os.Exit(1)
			}

			execContext, err := parseContext(contextPairs)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}

			eng, err := engine.New(cfg, cat)
			if err != nil {
				fmt.Printf("Error creating engine: %v\n", err)
				os.Exit(1)
			}

			ctx := cmd.Context()
			eng.Start(ctx)
			defer eng.Stop()

			result, err := eng.Submit(ctx, engine.SubmitRequest{
				PlanID:        args[0],
				Context:       execContext,
				SubmittedBy:   submitter,
				ForceApproval: forceApproval,
			})
			if err != nil {
				fmt.Printf("Error submitting plan: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("Execution %s submitted (status: %s)\n", result.ExecutionID, result.Status)
			printAssessment(result.Assessment)

			if result.Status == models.StatusRequiresApproval {
				if !yes && !confirm("Approve this execution?") {
					eng.Cancel(ctx, result.ExecutionID, "declined by operator")
					fmt.Println("Execution cancelled")
					os.Exit(1)
				}
				if err := eng.Approve(ctx, result.ExecutionID, submitter, "approved via CLI"); err != nil {
					fmt.Printf("Error approving execution: %v\n", err)
					os.Exit(1)
				}
				fmt.Println("Execution approved")
			}

			execution := waitForTerminal(eng, result.ExecutionID)

			fmt.Printf("\nExecution %s finished: %s\n", execution.ID, execution.Status)
			for _, line := range execution.Log {
				fmt.Printf("  %s\n", line)
			}

			if execution.Status != models.StatusCompleted {
				os.Exit(1)
			}
		},
	}

	// Configure flags
	runCmd.Flags().StringP("config", "c", "", "Path to the remedy config file")
	runCmd.Flags().StringArray("context", nil, "Execution context parameter as key=value (repeatable)")
	runCmd.Flags().Bool("force-approval", false, "Waive the approval gate for this submission")
	runCmd.Flags().BoolP("yes", "y", false, "Approve without prompting when approval is required")
	runCmd.Flags().String("submitter", os.Getenv("USER"), "Name recorded as the submitter")

	return runCmd
}

// parseContext turns repeated key=value flags into the execution context
func parseContext(pairs []string) (map[string]interface{}, error) {
	execContext := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid context parameter %q, expected key=value", pair)
		}
		execContext[key] = value
	}
	return execContext, nil
}

func printAssessment(assessment models.RiskAssessment) {
	fmt.Printf("Risk: %s (confidence %.1f)\n", assessment.OverallTier, assessment.Confidence)
	for _, factor := range assessment.Factors {
		fmt.Printf("  - [%s] %s\n", factor.Class, factor.Description)
	}
	for _, mitigation := range assessment.Mitigations {
		fmt.Printf("  mitigation: %s\n", mitigation)
	}
	fmt.Printf("Recommendation: %s\n", assessment.Recommendation)
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func waitForTerminal(eng *engine.Engine, executionID string) models.RemediationExecution {
	for {
		execution, err := eng.GetStatus(executionID)
		if err != nil {
			fmt.Printf("Error reading execution status: %v\n", err)
			os.Exit(1)
		}
		if execution.Status.Terminal() {
			return execution
		}
		time.Sleep(500 * time.Millisecond)
	}
}
