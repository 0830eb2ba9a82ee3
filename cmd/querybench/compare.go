package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/querybench/querybench/pkg/compare"
	"github.com/querybench/querybench/pkg/config"
	"github.com/querybench/querybench/pkg/naming"
	"github.com/querybench/querybench/pkg/report"
	"github.com/querybench/querybench/pkg/runpath"
	"github.com/querybench/querybench/pkg/runs"
	"github.com/spf13/cobra"
)

var (
	compareMetrics     []string
	compareFormat      string
	compareOutput      string
	compareConsecutive bool
)

var compareCmd = &cobra.Command{
	Use:   "compare <run-a> <run-b>",
	Short: "Compare two run summaries",
	Long: `Compare diffs two run summaries metric by metric and aligns their
per-query statistics through name normalization. Each argument is a
partitioned run path or a local summary file.

With --consecutive a single run-type path is expected; the two newest
runs under it are compared and each metric's trend is classified.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if compareConsecutive {
			return cobra.ExactArgs(1)(cmd, args)
		}

		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		comparator, err := newComparator(cfg)
		if err != nil {
			return err
		}

		if compareConsecutive {
			return compareConsecutiveRuns(cmd, cfg, comparator, args[0])
		}

		a, err := loadSummaryFrom(cmd.Context(), cfg, args[0])
		if err != nil {
			return fmt.Errorf("loading run A: %w", err)
		}

		b, err := loadSummaryFrom(cmd.Context(), cfg, args[1])
		if err != nil {
			return fmt.Errorf("loading run B: %w", err)
		}

		res, err := comparator.Compare(a, b, compareMetrics)
		if err != nil {
			return fmt.Errorf("%w: %v", errMalformedInput, err)
		}

		return renderComparison(res)
	},
}

func init() {
	compareCmd.Flags().StringSliceVar(&compareMetrics, "metrics", nil,
		"metrics to compare (default all: "+joinMetricNames()+")")
	compareCmd.Flags().StringVar(&compareFormat, "format", "markdown",
		"output format (markdown, table, csv, json)")
	compareCmd.Flags().StringVar(&compareOutput, "output", "", "output file (default stdout)")
	compareCmd.Flags().BoolVar(&compareConsecutive, "consecutive", false,
		"compare the two newest runs under a single run-type path")

	rootCmd.AddCommand(compareCmd)
}

func joinMetricNames() string {
	return strings.Join(compare.MetricNames(), ", ")
}

func newComparator(cfg *config.Config) (*compare.Comparator, error) {
	normalizer, err := naming.NewNormalizer(cfg.Naming)
	if err != nil {
		return nil, fmt.Errorf("%w: building query normalizer: %v", errMalformedInput, err)
	}

	return compare.NewComparator(log, cfg.Compare, normalizer), nil
}

func compareConsecutiveRuns(
	cmd *cobra.Command,
	cfg *config.Config,
	comparator *compare.Comparator,
	location string,
) error {
	rp, err := runpath.Parse(location)
	if err != nil {
		return fmt.Errorf("%w: %v", errMalformedInput, err)
	}

	store, err := openStore(cfg, rp)
	if err != nil {
		return err
	}

	sums, err := runs.NewRepository(log, store).LatestSummaries(cmd.Context(), rp.Key(), 2)
	if err != nil {
		return err
	}

	if len(sums) < 2 {
		return fmt.Errorf("%w: only one summarized run under %s", runs.ErrSummaryNotFound, location)
	}

	res, err := comparator.CompareConsecutive(sums[0], sums[1])
	if err != nil {
		return fmt.Errorf("%w: %v", errMalformedInput, err)
	}

	switch compareFormat {
	case "json":
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}

		return writeOutput(compareOutput, append(data, '\n'))
	case "markdown":
		return writeOutput(compareOutput, []byte(report.TrendMarkdown(res)))
	default:
		return fmt.Errorf("%w: format %q not supported with --consecutive", errMalformedInput, compareFormat)
	}
}

func renderComparison(res *compare.Result) error {
	switch compareFormat {
	case "markdown":
		return writeOutput(compareOutput, []byte(report.ComparisonMarkdown(res)))
	case "table":
		return writeOutput(compareOutput, []byte(report.ComparisonTable(res)))
	case "csv":
		data, err := report.ComparisonCSV(res)
		if err != nil {
			return fmt.Errorf("encoding csv: %w", err)
		}

		return writeOutput(compareOutput, data)
	case "json":
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}

		return writeOutput(compareOutput, append(data, '\n'))
	default:
		return fmt.Errorf("%w: unknown format %q", errMalformedInput, compareFormat)
	}
}
