// Package report renders run summaries, comparisons, and scaling
// profiles as markdown, plain-text tables, and CSV.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/querybench/querybench/pkg/summary"
)

// RunMarkdown generates a markdown analysis for a single run summary.
// The output is capped at maxChars characters; 0 disables the cap.
func RunMarkdown(sum *summary.RunSummary, maxChars int) string {
	var sb strings.Builder

	sb.Grow(4096)

	writeTitle(&sb, sum)
	writeIdentity(&sb, sum)

	if sum.NoData {
		sb.WriteString("**No data**: the run produced zero valid query records.\n")

		return sb.String()
	}

	writeTestResults(&sb, sum)
	writePerformance(&sb, sum)
	writeTimingDistribution(&sb, sum)
	writeWarmup(&sb, sum)
	writeTopSlowest(&sb, sum)

	// Failure detail is last so it absorbs any truncation.
	writeFailures(&sb, sum, maxChars)

	return sb.String()
}

func writeTitle(sb *strings.Builder, sum *summary.RunSummary) {
	runID := sum.Identity.RunID
	if runID == "" {
		runID = "unknown"
	}

	fmt.Fprintf(sb, "# Run Analysis: %s\n\n", runID)
}

func writeIdentity(sb *strings.Builder, sum *summary.RunSummary) {
	id := sum.Identity

	sb.WriteString("## Configuration\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|---|---|\n")

	if id.Engine != "" {
		fmt.Fprintf(sb, "| Engine | %s |\n", id.Engine)
	}

	if id.ClusterSize != "" {
		fmt.Fprintf(sb, "| Cluster Size | %s |\n", id.ClusterSize)
	}

	if id.Benchmark != "" {
		fmt.Fprintf(sb, "| Benchmark | %s |\n", id.Benchmark)
	}

	if id.RunType != "" {
		fmt.Fprintf(sb, "| Run Type | %s |\n", id.RunType)
	}

	if id.Concurrency > 0 {
		fmt.Fprintf(sb, "| Concurrency | %d |\n", id.Concurrency)
	}

	if sum.StartTimestampMs > 0 {
		t := time.UnixMilli(sum.StartTimestampMs).UTC()
		fmt.Fprintf(sb, "| Started | %s |\n",
			t.Format("2006-01-02 15:04:05 UTC"))
	}

	if sum.PerformanceMetrics.TotalTimeTakenSec > 0 {
		dur := time.Duration(sum.PerformanceMetrics.TotalTimeTakenSec * float64(time.Second))
		fmt.Fprintf(sb, "| Duration | %s |\n", formatDuration(dur))
	}

	sb.WriteByte('\n')
}

func writeTestResults(sb *strings.Builder, sum *summary.RunSummary) {
	tr := sum.TestResults
	qs := sum.QueryStatistics

	sb.WriteString("## Test Results\n\n")
	sb.WriteString("| Total | Success | Failed | Error % | Stability |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	fmt.Fprintf(sb, "| %d | %d | %d | %.2f%% | %.3f |\n\n",
		tr.TotalSamples, tr.TotalSuccess, tr.TotalFailed,
		tr.ErrorPercent, tr.StabilityScore)

	if qs.BootstrapQueries > 0 || qs.ControlSamplerQueries > 0 || qs.SkippedRows > 0 {
		sb.WriteString("| Real | Bootstrap | Control Samplers | Skipped Rows |\n")
		sb.WriteString("|---|---|---|---|\n")
		fmt.Fprintf(sb, "| %d | %d | %d | %d |\n\n",
			qs.RealQueries, qs.BootstrapQueries,
			qs.ControlSamplerQueries, qs.SkippedRows)
	}
}

func writePerformance(sb *strings.Builder, sum *summary.RunSummary) {
	pm := sum.PerformanceMetrics

	sb.WriteString("## Performance\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|---|---|\n")
	fmt.Fprintf(sb, "| Average | %.3fs |\n", pm.AvgTimeSec)
	fmt.Fprintf(sb, "| Median | %.3fs |\n", pm.MedianTimeSec)
	fmt.Fprintf(sb, "| Min / Max | %.3fs / %.3fs |\n", pm.MinTimeSec, pm.MaxTimeSec)
	fmt.Fprintf(sb, "| Std Dev | %.3fs |\n", pm.StdDevSec)
	fmt.Fprintf(sb, "| CV | %.3f |\n", pm.CoefficientOfVariation)
	fmt.Fprintf(sb, "| p25 / p50 / p75 | %.3fs / %.3fs / %.3fs |\n",
		pm.P25LatencySec, pm.P50LatencySec, pm.P75LatencySec)
	fmt.Fprintf(sb, "| p90 / p95 / p99 | %.3fs / %.3fs / %.3fs |\n",
		pm.P90LatencySec, pm.P95LatencySec, pm.P99LatencySec)
	fmt.Fprintf(sb, "| Outliers | %d (IQR %.3fs) |\n", pm.OutlierCount, pm.IQRSec)
	fmt.Fprintf(sb, "| Throughput | %.2f q/s (%.1f q/min) |\n",
		pm.ThroughputQPS, pm.QueriesPerMinute)
	sb.WriteByte('\n')
}

func writeTimingDistribution(sb *strings.Builder, sum *summary.RunSummary) {
	td := sum.TimingDistribution

	sb.WriteString("## Timing Distribution\n\n")
	sb.WriteString("| <1s | 1-5s | 5-10s | >=10s |\n")
	sb.WriteString("|---|---|---|---|\n")
	fmt.Fprintf(sb, "| %d | %d | %d | %d |\n\n",
		td.QueriesUnder1Sec, td.Queries1To5Sec,
		td.Queries5To10Sec, td.QueriesOver10Sec)
}

func writeWarmup(sb *strings.Builder, sum *summary.RunSummary) {
	wa := sum.WarmupAnalysis
	if wa.WarmupQueries == 0 && wa.SteadyStateQueries == 0 {
		return
	}

	sb.WriteString("## Warmup\n\n")
	sb.WriteString("| Warmup Queries | Warmup Avg | Warmup Duration | Steady Queries | Steady Avg |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	fmt.Fprintf(sb, "| %d | %.3fs | %.1fs | %d | %.3fs |\n\n",
		wa.WarmupQueries, wa.WarmupAvgSec, wa.WarmupDurationSec,
		wa.SteadyStateQueries, wa.SteadyStateAvgSec)
}

func writeTopSlowest(sb *strings.Builder, sum *summary.RunSummary) {
	slowest := sum.QueryStatistics.TopSlowestQueries
	if len(slowest) == 0 {
		return
	}

	sb.WriteString("## Slowest Queries\n\n")
	sb.WriteString("| Query | Avg |\n")
	sb.WriteString("|---|---|\n")

	for _, q := range slowest {
		fmt.Fprintf(sb, "| %s | %.3fs |\n", q.Query, q.AvgSec)
	}

	sb.WriteByte('\n')
}

func writeFailures(sb *strings.Builder, sum *summary.RunSummary, maxChars int) {
	fa := sum.FailureAnalysis
	if len(fa.FailedQueries) == 0 {
		return
	}

	sb.WriteString("## Failures\n\n")
	fmt.Fprintf(sb, "First failure at record %d; longest streak %d. ",
		fa.FirstFailureIndex, fa.LongestFailureStreak)
	fmt.Fprintf(sb, "Success rate %.1f%% first half, %.1f%% second half.\n\n",
		fa.FirstHalfSuccessRatePct, fa.SecondHalfSuccessRatePct)

	sb.WriteString("| Query | Code | Message |\n")
	sb.WriteString("|---|---|---|\n")

	// Reserve space for the truncation message.
	const reserveChars = 100

	for i, fq := range fa.FailedQueries {
		row := fmt.Sprintf("| %s | %s | %s |\n",
			fq.Query, fq.ResponseCode, fq.ResponseMessage)

		if maxChars > 0 && sb.Len()+len(row)+reserveChars > maxChars {
			remaining := len(fa.FailedQueries) - i
			fmt.Fprintf(sb,
				"\n*%d more failed quer(ies) not shown "+
					"(output truncated at %d chars)*\n",
				remaining, maxChars)

			return
		}

		sb.WriteString(row)
	}
}

// formatDuration formats a time.Duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.String()
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}

	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}

	return fmt.Sprintf("%ds", seconds)
}
