package main

import (
	"encoding/json"
	"fmt"

	"github.com/querybench/querybench/pkg/report"
	"github.com/querybench/querybench/pkg/runpath"
	"github.com/querybench/querybench/pkg/runs"
	"github.com/querybench/querybench/pkg/scaling"
	"github.com/querybench/querybench/pkg/summary"
	"github.com/spf13/cobra"
)

var (
	scalingBase   string
	scalingFormat string
	scalingOutput string
)

var scalingCmd = &cobra.Command{
	Use:   "scaling [summary-file...]",
	Short: "Analyze throughput scaling across concurrency levels",
	Long: `Scaling compares the latest run of every concurrency level under one
engine/cluster/benchmark configuration against the lowest level and
reports per-level efficiency, degradation, and the recommended
concurrency ceiling.

Levels are discovered from storage with --base, or given explicitly as
local summary files.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var summaries []*summary.RunSummary

		switch {
		case scalingBase != "":
			rp, err := runpath.ParseConfig(scalingBase)
			if err != nil {
				return fmt.Errorf("%w: %v", errMalformedInput, err)
			}

			store, err := openStore(cfg, rp)
			if err != nil {
				return err
			}

			summaries, err = runs.NewRepository(log, store).DiscoverSeries(cmd.Context(), rp)
			if err != nil {
				return err
			}
		case len(args) > 0:
			for _, path := range args {
				sum, err := loadSummaryFrom(cmd.Context(), cfg, path)
				if err != nil {
					return fmt.Errorf("loading %s: %w", path, err)
				}

				summaries = append(summaries, sum)
			}
		default:
			return fmt.Errorf("%w: either --base or summary files are required", errMalformedInput)
		}

		profile, err := scaling.NewAnalyzer(log, cfg.Scaling).Analyze(summaries)
		if err != nil {
			return fmt.Errorf("%w: %v", errMalformedInput, err)
		}

		switch scalingFormat {
		case "markdown":
			return writeOutput(scalingOutput, []byte(report.ScalingMarkdown(profile)))
		case "json":
			data, err := json.MarshalIndent(profile, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding profile: %w", err)
			}

			return writeOutput(scalingOutput, append(data, '\n'))
		default:
			return fmt.Errorf("%w: unknown format %q", errMalformedInput, scalingFormat)
		}
	},
}

func init() {
	scalingCmd.Flags().StringVar(&scalingBase, "base", "",
		"configuration path (through benchmark=) to discover levels under")
	scalingCmd.Flags().StringVar(&scalingFormat, "format", "markdown", "output format (markdown, json)")
	scalingCmd.Flags().StringVar(&scalingOutput, "output", "", "output file (default stdout)")

	rootCmd.AddCommand(scalingCmd)
}
