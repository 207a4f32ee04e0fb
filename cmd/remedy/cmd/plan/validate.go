// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsdeck/remedy/internal/core/catalog"
)

func getValidateCmd() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate [plan-file]",
		Short: "Validate a plan definition file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			p, err := catalog.LoadPlanFile(args[0])
			if err != nil {
				fmt.Printf("Plan is invalid: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("Plan %q is valid: %d actions, aggregate risk %s\n",
				p.ID, len(p.Actions), p.AggregateRiskTier())
		},
	}

	return validateCmd
}
