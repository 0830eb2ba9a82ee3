package main

import (
	"fmt"

	"github.com/querybench/querybench/pkg/report"
	"github.com/spf13/cobra"
)

var (
	analyzeOutput   string
	analyzeMaxChars int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <run-path-or-summary-file>",
	Short: "Render a single-run analysis report",
	Long: `Analyze renders a markdown report for one run summary. The argument
is either a partitioned run path (the latest run is used when no
run_id segment is present) or a local summary file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		sum, err := loadSummaryFrom(cmd.Context(), cfg, args[0])
		if err != nil {
			return fmt.Errorf("loading summary: %w", err)
		}

		md := report.RunMarkdown(sum, analyzeMaxChars)

		return writeOutput(analyzeOutput, []byte(md))
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeOutput, "output", "", "report output file (default stdout)")
	analyzeCmd.Flags().IntVar(&analyzeMaxChars, "max-chars", 0,
		"truncate the report at this many characters (0 = unlimited)")

	rootCmd.AddCommand(analyzeCmd)
}
