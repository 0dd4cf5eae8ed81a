package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"isoconvert/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					failed := strconv.Itoa(run.Failed)
					if run.Failed > 0 && colorize {
						failed = text.FgRed.Sprint(failed)
					}
					note := ""
					if run.Interrupted {
						note = "interrupted"
					}
					rows = append(rows, []string{
						shortID(run.ID),
						run.StartedAt.Local().Format("2006-01-02 15:04"),
						formatElapsed(run.Elapsed()),
						strconv.Itoa(run.Items),
						strconv.Itoa(run.Succeeded),
						failed,
						filepath.Base(run.Worklist),
						note,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Run", "Started", "Elapsed", "Images", "OK", "Failed", "Worklist", "Note"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 for all)")

	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))
	return historyCmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show per-image stage results and titles for one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				detail, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintf(out, "Run %s\n", detail.ID)
				fmt.Fprintf(out, "Worklist: %s\n", detail.Worklist)
				fmt.Fprintf(out, "Started:  %s (%s)\n", detail.StartedAt.Local().Format("2006-01-02 15:04:05"), formatElapsed(detail.Elapsed()))
				fmt.Fprintf(out, "Images:   %d (%d succeeded, %d failed)\n\n", detail.Items, detail.Succeeded, detail.Failed)

				stageRows := make([][]string, 0, len(detail.Stages))
				for _, s := range detail.Stages {
					stageRows = append(stageRows, []string{
						filepath.Base(s.Item),
						s.Stage,
						statusCell(s.Status, colorize),
						formatElapsed(s.Duration),
						truncate(s.Message, messageWidth),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Image", "Stage", "Status", "Elapsed", "Detail"}, stageRows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))

				if len(detail.Titles) == 0 {
					return nil
				}
				titleRows := make([][]string, 0, len(detail.Titles))
				for _, t := range detail.Titles {
					titleRows = append(titleRows, []string{
						filepath.Base(t.Item),
						strconv.Itoa(t.Ordinal),
						t.Length,
						statusCell(t.Status, colorize),
						formatElapsed(t.Duration),
						t.Output,
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Image", "Title", "Length", "Status", "Elapsed", "Output"}, titleRows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignRight, alignLeft}))
				return nil
			})
		},
	}
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s)\n", removed)
				return nil
			})
		},
	}
}

func withHistory(ctx *commandContext, fn func(*history.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
