package report

import (
	"strings"
	"testing"
	"time"

	"github.com/querybench/querybench/pkg/compare"
	"github.com/querybench/querybench/pkg/scaling"
	"github.com/querybench/querybench/pkg/summary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRunSummary() *summary.RunSummary {
	return &summary.RunSummary{
		Identity: summary.RunIdentity{
			Engine:      "e6data",
			ClusterSize: "M",
			Benchmark:   "tpcds_1000",
			RunType:     "concurrency_4",
			Concurrency: 4,
			RunID:       "20250101-120000",
		},
		StartTimestampMs: 1735732800000,
		QueryStatistics: summary.QueryStatistics{
			TotalQueries:      102,
			BootstrapQueries:  1,
			RealQueries:       100,
			SkippedRows:       2,
			UniqueQueries:     99,
			TopSlowestQueries: []summary.SlowQuery{{Query: "TPCDS-72", AvgSec: 14.2}},
		},
		TestResults: summary.TestResults{
			TotalSamples:   100,
			TotalSuccess:   97,
			TotalFailed:    3,
			ErrorPercent:   3.0,
			StabilityScore: 0.95,
		},
		PerformanceMetrics: summary.PerformanceMetrics{
			MinTimeSec:        0.4,
			MaxTimeSec:        14.2,
			AvgTimeSec:        2.345,
			MedianTimeSec:     1.9,
			P95LatencySec:     6.1,
			P99LatencySec:     11.0,
			ThroughputQPS:     1.85,
			QueriesPerMinute:  111.0,
			TotalTimeTakenSec: 128.0,
		},
		TimingDistribution: summary.TimingDistribution{
			QueriesUnder1Sec: 12,
			Queries1To5Sec:   70,
			Queries5To10Sec:  13,
			QueriesOver10Sec: 2,
		},
		WarmupAnalysis: summary.WarmupAnalysis{
			WarmupQueries:      10,
			WarmupAvgSec:       3.8,
			WarmupDurationSec:  40.0,
			SteadyStateQueries: 90,
			SteadyStateAvgSec:  2.1,
		},
		FailureAnalysis: summary.FailureAnalysis{
			FailedQueries: []summary.FailedQuery{
				{Query: "TPCDS-14", ResponseCode: "500", ResponseMessage: "timeout"},
				{Query: "TPCDS-23", ResponseCode: "500", ResponseMessage: "timeout"},
				{Query: "TPCDS-95", ResponseCode: "503", ResponseMessage: "overloaded"},
			},
			FirstFailureIndex:        12,
			LongestFailureStreak:     2,
			FirstHalfSuccessRatePct:  96.0,
			SecondHalfSuccessRatePct: 98.0,
		},
	}
}

func TestRunMarkdown(t *testing.T) {
	md := RunMarkdown(testRunSummary(), 0)

	assert.Contains(t, md, "# Run Analysis: 20250101-120000")
	assert.Contains(t, md, "| Engine | e6data |")
	assert.Contains(t, md, "| Concurrency | 4 |")
	assert.Contains(t, md, "| 100 | 97 | 3 | 3.00% | 0.950 |")
	assert.Contains(t, md, "| Average | 2.345s |")
	assert.Contains(t, md, "| Throughput | 1.85 q/s (111.0 q/min) |")
	assert.Contains(t, md, "| 12 | 70 | 13 | 2 |")
	assert.Contains(t, md, "## Warmup")
	assert.Contains(t, md, "| TPCDS-72 | 14.200s |")
	assert.Contains(t, md, "| TPCDS-14 | 500 | timeout |")
	assert.Contains(t, md, "Skipped Rows")
}

func TestRunMarkdownNoData(t *testing.T) {
	sum := &summary.RunSummary{
		Identity: summary.RunIdentity{
			Engine:      "trino",
			ClusterSize: "S",
			Benchmark:   "tpcds_1000",
			RunID:       "20250101-120000",
		},
		NoData: true,
	}

	md := RunMarkdown(sum, 0)

	assert.Contains(t, md, "**No data**")
	assert.NotContains(t, md, "## Performance")
}

func TestRunMarkdownTruncation(t *testing.T) {
	sum := testRunSummary()

	// A cap small enough that not all failed queries fit.
	md := RunMarkdown(sum, len(RunMarkdown(sum, 0))-40)

	assert.Contains(t, md, "not shown")
	assert.Less(t, len(md), len(RunMarkdown(sum, 0)))
}

func testComparison() *compare.Result {
	return &compare.Result{
		RunA: summary.RunIdentity{Engine: "e6data", RunID: "20250101-120000"},
		RunB: summary.RunIdentity{Engine: "databricks", RunID: "20250101-130000"},
		Metrics: []compare.MetricDiff{
			{Metric: "avg", RunA: 2.0, RunB: 4.0, PercentDiff: 50.0, Winner: compare.WinnerA},
			{Metric: "p95", RunA: 5.0, RunB: 5.0, PercentDiff: 0.0, Winner: compare.WinnerComparable},
			{Metric: "throughput", RunA: 3.0, RunB: 2.0, PercentDiff: 50.0, Winner: compare.WinnerA},
		},
		OverallWinner: compare.WinnerA,
		WinsA:         2,
		WinsB:         0,
		Queries: []compare.QueryDiff{
			{Query: "TPCDS-1", RunAAvgSec: 1.0, RunBAvgSec: 2.0, PercentDiff: 50.0, Winner: compare.WinnerA},
			{Query: "TPCDS-2", RunAAvgSec: 3.0, RunBAvgSec: 1.5, PercentDiff: -100.0, Winner: compare.WinnerB},
		},
		UnmatchedA: []string{"TPCDS-9"},
		UnmappedA:  []string{"warmup-extra"},
	}
}

func TestComparisonMarkdown(t *testing.T) {
	md := ComparisonMarkdown(testComparison())

	assert.Contains(t, md, "# Run Comparison: e6data/20250101-120000 vs databricks/20250101-130000")
	assert.Contains(t, md, "**Overall winner**: e6data (2 wins vs 0)")
	assert.Contains(t, md, "| avg | 2.000 | 4.000 | +50.00% | e6data |")
	assert.Contains(t, md, "| p95 | 5.000 | 5.000 | +0.00% | comparable |")
	assert.Contains(t, md, "| TPCDS-2 | 3.000s | 1.500s | -100.00% | databricks |")
	assert.Contains(t, md, "**Only in run A**: TPCDS-9")
	assert.Contains(t, md, "**Unmapped labels in run A**: warmup-extra")
}

func TestComparisonMarkdownSameEngine(t *testing.T) {
	res := testComparison()
	res.RunB.Engine = "e6data"

	md := ComparisonMarkdown(res)

	// With identical engines, winner labels fall back to run_a/run_b.
	assert.Contains(t, md, "**Overall winner**: run_a")
}

func TestComparisonTable(t *testing.T) {
	out := ComparisonTable(testComparison())

	assert.Contains(t, out, "METRIC")
	assert.Contains(t, out, "avg")
	assert.Contains(t, out, "TPCDS-1")
	assert.Contains(t, out, "Overall winner: e6data")
}

func TestComparisonCSV(t *testing.T) {
	data, err := ComparisonCSV(testComparison())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")

	assert.Equal(t, "row_type,name,run_a,run_b,percent_diff,winner", lines[0])
	// Two query rows, three metric rows, one unmatched row.
	require.Len(t, lines, 7)
	assert.Equal(t, "query,TPCDS-1,1,2,50,run_a", lines[1])
	assert.Equal(t, "metric,avg,2,4,50,run_a", lines[3])
	assert.Equal(t, "unmatched,TPCDS-9,x,,,", lines[6])
}

func TestTrendMarkdown(t *testing.T) {
	res := &compare.ConsecutiveResult{
		Result: testComparison(),
		Trends: map[string]compare.Trend{
			"avg":        compare.TrendImproved,
			"p95":        compare.TrendStable,
			"throughput": compare.TrendImproved,
		},
		OverallTrend: compare.TrendImproved,
	}

	md := TrendMarkdown(res)

	assert.Contains(t, md, "## Trend")
	assert.Contains(t, md, "**Overall**: improved")
	assert.Contains(t, md, "| avg | improved |")
	assert.Contains(t, md, "| p95 | stable |")
}

func TestScalingMarkdown(t *testing.T) {
	p := &scaling.Profile{
		Engine:              "e6data",
		ClusterSize:         "M",
		Benchmark:           "tpcds_1000",
		BaselineConcurrency: 1,
		RecommendedCeiling:  5,
		Levels: []scaling.Level{
			{
				Concurrency: 1, RunID: "r1", ThroughputQPS: 1.0,
				ScalingFactor: 1.0, ThroughputRatio: 1.0,
				EfficiencyPct: 100.0, Band: scaling.BandExcellent,
				DegradationPct: map[string]float64{"avg": 0, "p95": 0},
			},
			{
				Concurrency: 5, RunID: "r5", ThroughputQPS: 4.0,
				ScalingFactor: 5.0, ThroughputRatio: 4.0,
				EfficiencyPct: 80.0, Band: scaling.BandAcceptable,
				DegradationPct: map[string]float64{"avg": 25.0, "p95": 40.0},
			},
		},
	}

	md := ScalingMarkdown(p)

	assert.Contains(t, md, "# Scaling Analysis: e6data M tpcds_1000")
	assert.Contains(t, md, "Recommended concurrency ceiling: **5**")
	assert.Contains(t, md, "| 1 | 1.00 q/s | 1.0x | 1.00x | 100.0% | excellent |")
	assert.Contains(t, md, "| 5 | 4.00 q/s | 5.0x | 4.00x | 80.0% | acceptable |")
	assert.Contains(t, md, "## Latency Degradation vs Baseline")
	assert.Contains(t, md, "| 5 | +25.0% | +40.0% |")
	assert.NotContains(t, md, "| 1 | +0.0% |")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{name: "sub-second", duration: 500 * time.Millisecond, expected: "500ms"},
		{name: "seconds only", duration: 45 * time.Second, expected: "45s"},
		{name: "minutes and seconds", duration: 2*time.Minute + 8*time.Second, expected: "2m 8s"},
		{name: "hours", duration: time.Hour + 30*time.Minute + 15*time.Second, expected: "1h 30m 15s"},
		{name: "zero", duration: 0, expected: "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatDuration(tt.duration))
		})
	}
}
