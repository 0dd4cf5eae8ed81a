package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"isoconvert/internal/config"
	"isoconvert/internal/disc"
	"isoconvert/internal/process"
	"isoconvert/internal/services"
	"isoconvert/internal/services/handbrake"
	"isoconvert/internal/stage"
	"isoconvert/internal/worklist"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var fromWorklist string

	cmd := &cobra.Command{
		Use:   "scan [image...]",
		Short: "List the titles HandBrake finds on disc images",
		Long: "Scans the given images, or every image in the worklist when none are given,\n" +
			"and prints each title's ordinal and duration. Nothing is preloaded or converted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if _, err := config.ResolveBinary(cfg.Tools.EncoderBinary); err != nil {
				return services.Wrap(services.ErrConfiguration, "config", "tools.encoder_binary", "", err)
			}

			images, err := scanTargets(cfg, args, fromWorklist, ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(images) == 0 {
				fmt.Fprintln(out, "No images to scan")
				return nil
			}

			client, err := handbrake.New(cfg.Tools.EncoderBinary,
				handbrake.WithRunner(process.New(logger)),
				handbrake.WithLogger(logger),
				handbrake.WithPreset(cfg.Encoding.Preset),
				handbrake.WithTimeouts(cfg.ScanTimeout(), cfg.ConvertTimeout()),
			)
			if err != nil {
				return err
			}
			results, err := stage.Run(cmd.Context(), images, cfg.Pipeline.Parallelism, func(ctx context.Context, image string) ([]disc.Title, error) {
				return client.Scan(services.WithItem(services.WithStage(ctx, "scan"), image), image)
			})
			if err != nil {
				return err
			}

			failed := 0
			rows := make([][]string, 0, len(images))
			for _, image := range images {
				res := results[image]
				label := disc.Label(image)
				if res.Err != nil {
					failed++
					rows = append(rows, []string{label, "-", "-", statusCell(services.Classify(res.Err), shouldColorize(out)) + ": " + truncate(res.Err.Error(), messageWidth)})
					continue
				}
				if len(res.Value) == 0 {
					rows = append(rows, []string{label, "-", "-", "no titles"})
					continue
				}
				for _, t := range res.Value {
					length := t.Duration
					if length == "" {
						length = "?"
					}
					rows = append(rows, []string{label, strconv.Itoa(t.Ordinal), length, ""})
				}
			}
			fmt.Fprintln(out, renderTable([]string{"Image", "Title", "Duration", "Note"}, rows, []columnAlignment{alignLeft, alignRight, alignRight, alignLeft}))
			if failed > 0 {
				return fmt.Errorf("%d of %d scans failed", failed, len(images))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&fromWorklist, "worklist", "w", "", "Scan every image listed in this worklist")
	return cmd
}

func scanTargets(cfg *config.Config, args []string, fromWorklist string, ctx *commandContext) ([]string, error) {
	if len(args) > 0 {
		images := make([]string, 0, len(args))
		seen := make(map[string]struct{}, len(args))
		for _, arg := range args {
			path, err := config.ExpandPath(strings.TrimSpace(arg))
			if err != nil {
				return nil, err
			}
			if _, dup := seen[path]; dup {
				continue
			}
			seen[path] = struct{}{}
			images = append(images, path)
		}
		return images, nil
	}
	if path := strings.TrimSpace(fromWorklist); path != "" {
		expanded, err := config.ExpandPath(path)
		if err != nil {
			return nil, err
		}
		cfg.Paths.WorklistFile = expanded
	}
	if err := cfg.ValidateWorklist(); err != nil {
		return nil, err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, err
	}
	list, err := worklist.Load(cfg.Paths.WorklistFile, logger)
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}
