package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"isoconvert/internal/config"
	"isoconvert/internal/history"
	"isoconvert/internal/logging"
	"isoconvert/internal/preflight"
	"isoconvert/internal/runlock"
	"isoconvert/internal/services"
	"isoconvert/internal/workflow"
	"isoconvert/internal/worklist"
)

// errRunFailed signals exit status 1 after the summary has been printed.
var errRunFailed = errors.New("one or more images failed")

func newRunCommand(ctx *commandContext) *cobra.Command {
	var parallelism int
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "run [worklist]",
		Short: "Preload, scan and convert every image in the worklist",
		Long: "Reads the worklist (argument, $" + config.EnvWorklist + " or paths.worklist_file) and runs\n" +
			"the preload, scan and convert stages over every image. Each stage finishes for all\n" +
			"images before the next begins. Exits 1 when any image failed.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				path, err := config.ExpandPath(strings.TrimSpace(args[0]))
				if err != nil {
					return services.Wrap(services.ErrConfiguration, "config", "worklist", "resolve worklist path", err)
				}
				cfg.Paths.WorklistFile = path
			}
			if cmd.Flags().Changed("parallelism") {
				cfg.Pipeline.Parallelism = parallelism
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			lock, err := runlock.Acquire(cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := lock.Release(); err != nil {
					logger.Warn("release run lock failed", logging.Error(err))
				}
			}()

			if skipPreflight {
				if err := cfg.ValidateEnvironment(); err != nil {
					return err
				}
			}

			list, err := worklist.Load(cfg.Paths.WorklistFile, logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list.Items) == 0 {
				fmt.Fprintf(out, "No usable images in %s\n", cfg.Paths.WorklistFile)
				return nil
			}

			if !skipPreflight {
				results := preflight.RunAll(cmd.Context(), cfg, list.Items)
				if failed := preflight.Failed(results); len(failed) > 0 {
					fmt.Fprintln(out, renderPreflight(results, shouldColorize(out)))
					return services.Wrap(services.ErrConfiguration, "preflight", "", fmt.Sprintf("%d check(s) failed", len(failed)), nil)
				}
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runID := uuid.NewString()
			pipeline, err := workflow.New(cfg, logger, workflow.WithRunID(runID))
			if err != nil {
				return err
			}
			report, runErr := pipeline.Run(runCtx, list.Items)
			if report == nil {
				return runErr
			}

			recordHistory(context.WithoutCancel(runCtx), cfg, logger, report)
			fmt.Fprint(out, renderReport(report, shouldColorize(out)))

			if runErr != nil {
				return runErr
			}
			if report.Failed() {
				return errRunFailed
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&parallelism, "parallelism", "j", 0, "Override pipeline.parallelism")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip output directory and free-space checks")
	return cmd
}

func recordHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger, report *workflow.Report) {
	store, err := history.Open(cfg)
	if errors.Is(err, history.ErrDisabled) {
		return
	}
	if err != nil {
		logging.WarnWithContext(logger, "history unavailable", "history_open",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check history.path or delete the ledger file"),
			logging.String(logging.FieldImpact, "this run will not appear in `isoconvert history`"),
		)
		return
	}
	defer store.Close()
	if err := store.Record(ctx, cfg.Paths.WorklistFile, report); err != nil {
		logging.WarnWithContext(logger, "history record failed", "history_record",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run will not appear in `isoconvert history`"),
		)
	}
}
