package indexstore

import (
	"encoding/json"
	"time"

	"github.com/querybench/querybench/pkg/summary"
)

// Run is a single indexed run summary in the database. ConfigKey is the
// partitioned storage key of the run's configuration
// (engine=<e>/cluster_size=<c>/benchmark=<b>/<run type dir>).
type Run struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	ConfigKey string `gorm:"not null;uniqueIndex:idx_runs_ck_run" json:"config_key"`
	RunID     string `gorm:"not null;uniqueIndex:idx_runs_ck_run" json:"run_id"`

	Engine      string `gorm:"index" json:"engine"`
	ClusterSize string `json:"cluster_size"`
	Benchmark   string `gorm:"index" json:"benchmark"`
	RunType     string `json:"run_type"`
	Concurrency int    `json:"concurrency"`

	NoData bool `json:"no_data"`

	// Denormalized headline metrics.
	TotalSamples     int     `json:"total_samples"`
	FailedSamples    int     `json:"failed_samples"`
	ErrorPercent     float64 `json:"error_percent"`
	AvgTimeSec       float64 `json:"avg_time_sec"`
	MedianTimeSec    float64 `json:"median_time_sec"`
	P90Sec           float64 `json:"p90_sec"`
	P95Sec           float64 `json:"p95_sec"`
	P99Sec           float64 `json:"p99_sec"`
	ThroughputQPS    float64 `json:"throughput_qps"`
	QueriesPerMinute float64 `json:"queries_per_minute"`
	StabilityScore   float64 `json:"stability_score"`

	// Top slowest queries serialized as JSON.
	TopSlowestJSON string `gorm:"type:text" json:"-"`

	IndexedAt   time.Time  `json:"indexed_at"`
	ReindexedAt *time.Time `json:"reindexed_at,omitempty"`
}

// FromSummary builds an index row from a run summary discovered under
// configKey.
func FromSummary(configKey string, sum *summary.RunSummary) *Run {
	r := &Run{
		ConfigKey:   configKey,
		RunID:       sum.Identity.RunID,
		Engine:      sum.Identity.Engine,
		ClusterSize: sum.Identity.ClusterSize,
		Benchmark:   sum.Identity.Benchmark,
		RunType:     sum.Identity.RunType,
		Concurrency: sum.Identity.Concurrency,
		NoData:      sum.NoData,
		IndexedAt:   time.Now().UTC(),
	}

	if sum.NoData {
		return r
	}

	r.TotalSamples = sum.TestResults.TotalSamples
	r.FailedSamples = sum.TestResults.TotalFailed
	r.ErrorPercent = sum.TestResults.ErrorPercent
	r.StabilityScore = sum.TestResults.StabilityScore
	r.AvgTimeSec = sum.PerformanceMetrics.AvgTimeSec
	r.MedianTimeSec = sum.PerformanceMetrics.MedianTimeSec
	r.P90Sec = sum.PerformanceMetrics.P90LatencySec
	r.P95Sec = sum.PerformanceMetrics.P95LatencySec
	r.P99Sec = sum.PerformanceMetrics.P99LatencySec
	r.ThroughputQPS = sum.PerformanceMetrics.ThroughputQPS
	r.QueriesPerMinute = sum.PerformanceMetrics.QueriesPerMinute

	if len(sum.QueryStatistics.TopSlowestQueries) > 0 {
		if data, err := json.Marshal(sum.QueryStatistics.TopSlowestQueries); err == nil {
			r.TopSlowestJSON = string(data)
		}
	}

	return r
}

// TopSlowest decodes the serialized top-slowest query list.
func (r *Run) TopSlowest() []summary.SlowQuery {
	if r.TopSlowestJSON == "" {
		return nil
	}

	var slowest []summary.SlowQuery
	if err := json.Unmarshal([]byte(r.TopSlowestJSON), &slowest); err != nil {
		return nil
	}

	return slowest
}
