package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/querybench/querybench/pkg/compare"
)

// ComparisonMarkdown renders a comparison as an executive-summary
// markdown report.
func ComparisonMarkdown(res *compare.Result) string {
	var sb strings.Builder

	sb.Grow(4096)

	fmt.Fprintf(&sb, "# Run Comparison: %s vs %s\n\n",
		runLabel(res, true), runLabel(res, false))

	fmt.Fprintf(&sb, "**Overall winner**: %s (%d wins vs %d)\n\n",
		winnerLabel(res, res.OverallWinner), res.WinsA, res.WinsB)

	sb.WriteString("## Metrics\n\n")
	sb.WriteString("| Metric | Run A | Run B | Diff % | Winner |\n")
	sb.WriteString("|---|---|---|---|---|\n")

	for _, m := range res.Metrics {
		fmt.Fprintf(&sb, "| %s | %.3f | %.3f | %+.2f%% | %s |\n",
			m.Metric, m.RunA, m.RunB, m.PercentDiff,
			winnerLabel(res, m.Winner))
	}

	sb.WriteByte('\n')

	if len(res.Queries) > 0 {
		sb.WriteString("## Queries\n\n")
		sb.WriteString("| Query | Run A Avg | Run B Avg | Diff % | Winner |\n")
		sb.WriteString("|---|---|---|---|---|\n")

		for _, q := range res.Queries {
			fmt.Fprintf(&sb, "| %s | %.3fs | %.3fs | %+.2f%% | %s |\n",
				q.Query, q.RunAAvgSec, q.RunBAvgSec, q.PercentDiff,
				winnerLabel(res, q.Winner))
		}

		sb.WriteByte('\n')
	}

	writeUnmatched(&sb, "Only in run A", res.UnmatchedA)
	writeUnmatched(&sb, "Only in run B", res.UnmatchedB)
	writeUnmatched(&sb, "Unmapped labels in run A", res.UnmappedA)
	writeUnmatched(&sb, "Unmapped labels in run B", res.UnmappedB)

	return sb.String()
}

// TrendMarkdown renders a consecutive-run comparison, appending the
// per-metric trend classification to the standard comparison report.
func TrendMarkdown(res *compare.ConsecutiveResult) string {
	var sb strings.Builder

	sb.WriteString(ComparisonMarkdown(res.Result))

	sb.WriteString("## Trend\n\n")
	fmt.Fprintf(&sb, "**Overall**: %s\n\n", res.OverallTrend)

	sb.WriteString("| Metric | Trend |\n")
	sb.WriteString("|---|---|\n")

	names := make([]string, 0, len(res.Trends))
	for name := range res.Trends {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(&sb, "| %s | %s |\n", name, res.Trends[name])
	}

	sb.WriteByte('\n')

	return sb.String()
}

// ComparisonTable renders a comparison as an aligned plain-text table.
func ComparisonTable(res *compare.Result) string {
	var buf bytes.Buffer

	w := tabwriter.NewWriter(&buf, 2, 4, 2, ' ', 0)

	fmt.Fprintf(w, "Comparison: %s vs %s\n", runLabel(res, true), runLabel(res, false))
	fmt.Fprintf(w, "Overall winner: %s\n\n", winnerLabel(res, res.OverallWinner))
	fmt.Fprintln(w, "METRIC\tRUN A\tRUN B\tDIFF %\tWINNER")

	for _, m := range res.Metrics {
		fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%+.2f\t%s\n",
			m.Metric, m.RunA, m.RunB, m.PercentDiff,
			winnerLabel(res, m.Winner))
	}

	if len(res.Queries) > 0 {
		fmt.Fprintln(w, "\nQUERY\tRUN A AVG\tRUN B AVG\tDIFF %\tWINNER")

		for _, q := range res.Queries {
			fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%+.2f\t%s\n",
				q.Query, q.RunAAvgSec, q.RunBAvgSec, q.PercentDiff,
				winnerLabel(res, q.Winner))
		}
	}

	_ = w.Flush()

	return buf.String()
}

// ComparisonCSV renders a comparison as CSV: one row per query, then
// one row per summary metric.
func ComparisonCSV(res *compare.Result) ([]byte, error) {
	var buf bytes.Buffer

	w := csv.NewWriter(&buf)

	header := []string{"row_type", "name", "run_a", "run_b", "percent_diff", "winner"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}

	for _, q := range res.Queries {
		row := []string{
			"query",
			q.Query,
			formatFloat(q.RunAAvgSec),
			formatFloat(q.RunBAvgSec),
			formatFloat(q.PercentDiff),
			string(q.Winner),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing query row: %w", err)
		}
	}

	for _, m := range res.Metrics {
		row := []string{
			"metric",
			m.Metric,
			formatFloat(m.RunA),
			formatFloat(m.RunB),
			formatFloat(m.PercentDiff),
			string(m.Winner),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing metric row: %w", err)
		}
	}

	for _, id := range res.UnmatchedA {
		if err := w.Write([]string{"unmatched", id, "x", "", "", ""}); err != nil {
			return nil, fmt.Errorf("writing unmatched row: %w", err)
		}
	}

	for _, id := range res.UnmatchedB {
		if err := w.Write([]string{"unmatched", id, "", "x", "", ""}); err != nil {
			return nil, fmt.Errorf("writing unmatched row: %w", err)
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}

	return buf.Bytes(), nil
}

func writeUnmatched(sb *strings.Builder, title string, ids []string) {
	if len(ids) == 0 {
		return
	}

	fmt.Fprintf(sb, "**%s**: %s\n\n", title, strings.Join(ids, ", "))
}

// runLabel names one side of a comparison for report headers.
func runLabel(res *compare.Result, sideA bool) string {
	id := res.RunB
	if sideA {
		id = res.RunA
	}

	if id.RunID != "" {
		return fmt.Sprintf("%s/%s", id.Engine, id.RunID)
	}

	return id.Engine
}

// winnerLabel renders a winner value using the runs' engine names where
// they differ, falling back to run_a/run_b.
func winnerLabel(res *compare.Result, w compare.Winner) string {
	if res.RunA.Engine == res.RunB.Engine {
		return string(w)
	}

	switch w {
	case compare.WinnerA:
		return res.RunA.Engine
	case compare.WinnerB:
		return res.RunB.Engine
	default:
		return string(w)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
