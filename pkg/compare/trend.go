package compare

import (
	"fmt"

	"github.com/querybench/querybench/pkg/summary"
)

// Trend classifies how a newer run moved relative to the run before it.
type Trend string

const (
	TrendImproved Trend = "improved"
	TrendDegraded Trend = "degraded"
	TrendStable   Trend = "stable"
)

// ConsecutiveResult is a comparison of the newest run (A) against the
// previous run of the same configuration (B), with per-metric trend
// classification.
type ConsecutiveResult struct {
	*Result

	// Trends classifies each headline metric at the configured trend
	// threshold.
	Trends map[string]Trend `json:"trends"`

	// OverallTrend is the trend of average latency, the headline most
	// consecutive-run monitoring watches.
	OverallTrend Trend `json:"overall_trend"`
}

// classifyTrend buckets a uniform-sign percent difference. Positive
// means the newer run was better.
func (c *Comparator) classifyTrend(pct float64) Trend {
	switch {
	case pct >= c.cfg.TrendThresholdPct:
		return TrendImproved
	case pct <= -c.cfg.TrendThresholdPct:
		return TrendDegraded
	default:
		return TrendStable
	}
}

// CompareConsecutive compares the newest run of a configuration against
// its predecessor. Both must belong to the same engine, cluster size
// and benchmark.
func (c *Comparator) CompareConsecutive(newest, previous *summary.RunSummary) (*ConsecutiveResult, error) {
	if newest.Identity.Engine != previous.Identity.Engine ||
		newest.Identity.ClusterSize != previous.Identity.ClusterSize ||
		newest.Identity.Benchmark != previous.Identity.Benchmark {
		return nil, fmt.Errorf(
			"consecutive runs must share a configuration: %s vs %s",
			newest.Identity, previous.Identity,
		)
	}

	res, err := c.Compare(newest, previous, nil)
	if err != nil {
		return nil, err
	}

	out := &ConsecutiveResult{
		Result: res,
		Trends: make(map[string]Trend, len(headlineMetrics)),
	}

	byName := make(map[string]MetricDiff, len(res.Metrics))
	for _, m := range res.Metrics {
		byName[m.Metric] = m
	}

	for _, name := range headlineMetrics {
		out.Trends[name] = c.classifyTrend(byName[name].PercentDiff)
	}

	out.OverallTrend = out.Trends["avg"]

	return out, nil
}
