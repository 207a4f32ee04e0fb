// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsdeck/remedy/internal/core/catalog"
	"github.com/opsdeck/remedy/internal/core/config"
	"github.com/opsdeck/remedy/internal/core/format"
	"github.com/opsdeck/remedy/internal/core/template"
)

func getShowCmd() *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show [plan-id]",
		Short: "Show one plan's definition",
		Args:  cobra.ExactArgs(1),
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

			p, err := cat.Get(args[0])
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}

			out, err := format.FormatData(p, true)
			if err != nil {
				fmt.Printf("Error formatting plan: %v\n", err)
				os.Exit(1)
			}
			fmt.Print(out)

			// Surface the parameters a submission must supply
			if missing := template.MissingParameters(p, nil); len(missing) > 0 {
				fmt.Printf("\nRequired context parameters: %v\n", missing)
			}
		},
	}

	return showCmd
}
