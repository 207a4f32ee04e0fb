// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opsdeck/remedy/internal/core/catalog"
	"github.com/opsdeck/remedy/internal/core/config"
)

func getListCmd() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the plans in the catalog",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			configPath, _ := cmd.Flags().GetString("config")

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

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tACTIONS\tRISK\tAPPROVAL")
			for _, p := range cat.List() {
				approval := "auto"
				if p.ApprovalRequired {
					approval = "required"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					p.ID, p.Title, len(p.Actions), p.AggregateRiskTier(), approval)
			}
			w.Flush()
		},
	}

	return listCmd
}
