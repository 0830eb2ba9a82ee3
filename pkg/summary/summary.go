package summary

import (
	"errors"
	"fmt"
)

// ErrIdentityMissing indicates a summary lacks the identity fields
// required to group it for comparison or scaling analysis.
var ErrIdentityMissing = errors.New("run identity incomplete")

// RunIdentity identifies the configuration a run was executed under.
type RunIdentity struct {
	Engine      string `json:"engine"`
	ClusterSize string `json:"cluster_size"`
	Benchmark   string `json:"benchmark"`
	RunType     string `json:"run_type"`
	Concurrency int    `json:"concurrency"`
	RunID       string `json:"run_id"`
}

// Validate checks that the fields required for cross-run grouping are
// present. A summary without them can still be rendered on its own but
// cannot participate in comparison or scaling analysis.
func (id RunIdentity) Validate() error {
	if id.Engine == "" || id.ClusterSize == "" || id.Benchmark == "" {
		return fmt.Errorf(
			"%w: engine=%q cluster_size=%q benchmark=%q (run %q)",
			ErrIdentityMissing, id.Engine, id.ClusterSize, id.Benchmark, id.RunID,
		)
	}

	return nil
}

// String renders the identity the way reports reference runs.
func (id RunIdentity) String() string {
	return fmt.Sprintf("%s %s %s (%s)", id.Engine, id.ClusterSize, id.Benchmark, id.RunType)
}

// QueryStats holds the aggregated latency metrics for one query label.
// All durations are seconds.
type QueryStats struct {
	Samples   int     `json:"samples"`
	Errors    int     `json:"errors"`
	ErrorPct  float64 `json:"error_pct"`
	AvgSec    float64 `json:"avg_sec"`
	MedianSec float64 `json:"median_sec"`
	MinSec    float64 `json:"min_sec"`
	MaxSec    float64 `json:"max_sec"`
	P90Sec    float64 `json:"p90_sec"`
	P95Sec    float64 `json:"p95_sec"`
	P99Sec    float64 `json:"p99_sec"`
}

// SlowQuery is one entry of the top-N slowest query list.
type SlowQuery struct {
	Query  string  `json:"query"`
	AvgSec float64 `json:"avg_sec"`
}

// QueryStatistics groups per-role counts and per-query aggregates.
type QueryStatistics struct {
	TotalQueries          int                    `json:"total_queries"`
	BootstrapQueries      int                    `json:"bootstrap_queries"`
	ControlSamplerQueries int                    `json:"control_sampler_queries"`
	RealQueries           int                    `json:"real_queries"`
	SkippedRows           int                    `json:"skipped_rows"`
	UniqueQueries         int                    `json:"unique_queries"`
	TopSlowestQueries     []SlowQuery            `json:"top_slowest_queries"`
	Queries               map[string]*QueryStats `json:"queries,omitempty"`
}

// TestResults groups run-level success/failure accounting.
type TestResults struct {
	TotalSamples   int     `json:"total_samples"`
	TotalSuccess   int     `json:"total_success"`
	TotalFailed    int     `json:"total_failed"`
	ErrorPercent   float64 `json:"error_percent"`
	StabilityScore float64 `json:"stability_score"`
}

// PerformanceMetrics groups the latency distribution and throughput of
// successful real queries. All durations are seconds.
type PerformanceMetrics struct {
	MinTimeSec             float64 `json:"min_time_sec"`
	MaxTimeSec             float64 `json:"max_time_sec"`
	AvgTimeSec             float64 `json:"avg_time_sec"`
	MedianTimeSec          float64 `json:"median_time_sec"`
	StdDevSec              float64 `json:"stddev_sec"`
	CoefficientOfVariation float64 `json:"coefficient_of_variation"`
	P25LatencySec          float64 `json:"p25_latency_sec"`
	P50LatencySec          float64 `json:"p50_latency_sec"`
	P75LatencySec          float64 `json:"p75_latency_sec"`
	P90LatencySec          float64 `json:"p90_latency_sec"`
	P95LatencySec          float64 `json:"p95_latency_sec"`
	P99LatencySec          float64 `json:"p99_latency_sec"`
	IQRSec                 float64 `json:"iqr_sec"`
	OutlierCount           int     `json:"outlier_count"`
	ThroughputQPS          float64 `json:"throughput"`
	QueriesPerMinute       float64 `json:"queries_per_minute"`
	TotalTimeTakenSec      float64 `json:"total_time_taken_sec"`
}

// TimingDistribution buckets successful real-query latencies.
type TimingDistribution struct {
	QueriesUnder1Sec int `json:"queries_under_1sec"`
	Queries1To5Sec   int `json:"queries_1_to_5sec"`
	Queries5To10Sec  int `json:"queries_5_to_10sec"`
	QueriesOver10Sec int `json:"queries_over_10sec"`
}

// WarmupAnalysis splits the run into a warmup window and steady state.
type WarmupAnalysis struct {
	WarmupQueries      int     `json:"warmup_queries"`
	WarmupDurationSec  float64 `json:"warmup_duration_sec"`
	WarmupAvgSec       float64 `json:"warmup_avg_sec"`
	SteadyStateQueries int     `json:"steady_state_queries"`
	SteadyStateAvgSec  float64 `json:"steady_state_avg_sec"`
}

// FailedQuery records one failed execution.
type FailedQuery struct {
	Query           string `json:"query"`
	ResponseCode    string `json:"response_code"`
	ResponseMessage string `json:"response_message"`
}

// FailureAnalysis groups failure detail and reliability trend signals.
type FailureAnalysis struct {
	FailedQueries            []FailedQuery  `json:"failed_queries"`
	ResponseCodeHistogram    map[string]int `json:"response_code_histogram"`
	FirstFailureIndex        int            `json:"first_failure_index"` // -1 when no failures
	LongestFailureStreak     int            `json:"longest_failure_streak"`
	FirstHalfSuccessRatePct  float64        `json:"first_half_success_rate_pct"`
	SecondHalfSuccessRatePct float64        `json:"second_half_success_rate_pct"`
}

// RunSummary is the immutable statistical summary of one completed run.
// The section names and field names are a stable contract: external
// dashboard and analytics consumers bind to them by name.
type RunSummary struct {
	Identity RunIdentity `json:"identity"`

	StartTimestampMs int64 `json:"start_timestamp_ms"`
	EndTimestampMs   int64 `json:"end_timestamp_ms"`

	// NoData is set when the run produced zero valid real-query records.
	// Such a summary is valid and renderable, not an error.
	NoData bool `json:"no_data"`

	QueryStatistics    QueryStatistics    `json:"query_statistics"`
	TestResults        TestResults        `json:"test_results"`
	PerformanceMetrics PerformanceMetrics `json:"performance_metrics"`
	TimingDistribution TimingDistribution `json:"timing_distribution"`
	WarmupAnalysis     WarmupAnalysis     `json:"warmup_analysis"`
	FailureAnalysis    FailureAnalysis    `json:"failure_analysis"`
}
