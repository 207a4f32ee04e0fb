// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsdeck/remedy/cmd/remedy/cmd/plan"
	"github.com/opsdeck/remedy/internal/version"
)

// Create the root command
var rootCmd = &cobra.Command{
	Use:   "remedy",
	Short: "Remedy - Remediation Execution Engine",
	Long: `Remedy assesses the risk of predefined remediation plans, gates them
behind approval when the risk warrants it, and executes their actions
with rollback on failure.`,
	Version: fmt.Sprintf("%s (commit: %s)", version.Version, version.Commit),
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(plan.GetPlanCmd())
	rootCmd.AddCommand(getRunCmd())
}
