package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"isoconvert/internal/config"
	"isoconvert/internal/preflight"
	"isoconvert/internal/services"
	"isoconvert/internal/worklist"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check [worklist]",
		Short: "Check tools, worklist, and output directories without converting",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				path, err := config.ExpandPath(strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				cfg.Paths.WorklistFile = path
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			var items []string
			if cfg.ValidateWorklist() == nil {
				list, err := worklist.Load(cfg.Paths.WorklistFile, logger)
				if err == nil {
					items = list.Items
				}
			}

			out := cmd.OutOrStdout()
			results := preflight.RunAll(cmd.Context(), cfg, items)
			fmt.Fprintln(out, renderPreflight(results, shouldColorize(out)))
			if failed := preflight.Failed(results); len(failed) > 0 {
				return services.Wrap(services.ErrConfiguration, "preflight", "", fmt.Sprintf("%d check(s) failed", len(failed)), nil)
			}
			fmt.Fprintf(out, "All checks passed (%d images)\n", len(items))
			return nil
		},
	}
}

func renderPreflight(results []preflight.Result, colorize bool) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{r.Name, passCell(r.Passed, r.Advisory, colorize), truncate(r.Detail, messageWidth)})
	}
	return renderTable([]string{"Check", "Status", "Detail"}, rows, nil)
}
