// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Inspect the remediation plan catalog",
	Long:  `Commands for listing, showing, and validating remediation plans.`,
}

func GetPlanCmd() *cobra.Command {
	return planCmd
}

func init() {
	planCmd.PersistentFlags().StringP("config", "c", "", "Path to the remedy config file")

	planCmd.AddCommand(getListCmd())
	planCmd.AddCommand(getShowCmd())
	planCmd.AddCommand(getValidateCmd())
}
