// Package compare implements cross-run comparison of run summaries,
// per-metric and per-query, with a uniform sign convention: positive
// percent differences always mean run A performed better.
package compare

import (
	"fmt"
	"math"
	"sort"

	"github.com/querybench/querybench/pkg/naming"
	"github.com/querybench/querybench/pkg/summary"
	"github.com/sirupsen/logrus"
)

// Winner identifies which side of a comparison performed better.
type Winner string

const (
	WinnerA          Winner = "run_a"
	WinnerB          Winner = "run_b"
	WinnerComparable Winner = "comparable"
)

// Config holds comparison policy parameters.
type Config struct {
	// ComparableThresholdPct is the |percent_diff| band inside which a
	// metric is reported comparable rather than won.
	ComparableThresholdPct float64 `yaml:"comparable_threshold_pct"`

	// TrendThresholdPct is the band used when classifying consecutive
	// runs as improved/degraded/stable.
	TrendThresholdPct float64 `yaml:"trend_threshold_pct"`
}

// Defaults for Config.
const (
	DefaultComparableThresholdPct = 0.1
	DefaultTrendThresholdPct      = 2.0
)

func (c *Config) applyDefaults() {
	if c.ComparableThresholdPct == 0 {
		c.ComparableThresholdPct = DefaultComparableThresholdPct
	}

	if c.TrendThresholdPct == 0 {
		c.TrendThresholdPct = DefaultTrendThresholdPct
	}
}

// metricDef binds a metric name to its extractor and direction.
type metricDef struct {
	name         string
	higherBetter bool
	value        func(*summary.RunSummary) float64
}

// metricDefs is the full comparable metric set. Latency metrics are
// lower-is-better; throughput metrics are higher-is-better.
var metricDefs = []metricDef{
	{"avg", false, func(s *summary.RunSummary) float64 { return s.PerformanceMetrics.AvgTimeSec }},
	{"median", false, func(s *summary.RunSummary) float64 { return s.PerformanceMetrics.MedianTimeSec }},
	{"min", false, func(s *summary.RunSummary) float64 { return s.PerformanceMetrics.MinTimeSec }},
	{"max", false, func(s *summary.RunSummary) float64 { return s.PerformanceMetrics.MaxTimeSec }},
	{"stddev", false, func(s *summary.RunSummary) float64 { return s.PerformanceMetrics.StdDevSec }},
	{"p25", false, func(s *summary.RunSummary) float64 { return s.PerformanceMetrics.P25LatencySec }},
	{"p50", false, func(s *summary.RunSummary) float64 { return s.PerformanceMetrics.P50LatencySec }},
	{"p75", false, func(s *summary.RunSummary) float64 { return s.PerformanceMetrics.P75LatencySec }},
	{"p90", false, func(s *summary.RunSummary) float64 { return s.PerformanceMetrics.P90LatencySec }},
	{"p95", false, func(s *summary.RunSummary) float64 { return s.PerformanceMetrics.P95LatencySec }},
	{"p99", false, func(s *summary.RunSummary) float64 { return s.PerformanceMetrics.P99LatencySec }},
	{"error_percent", false, func(s *summary.RunSummary) float64 { return s.TestResults.ErrorPercent }},
	{"throughput", true, func(s *summary.RunSummary) float64 { return s.PerformanceMetrics.ThroughputQPS }},
	{"queries_per_minute", true, func(s *summary.RunSummary) float64 { return s.PerformanceMetrics.QueriesPerMinute }},
}

// headlineMetrics is the fixed set the overall winner vote runs over.
// Ties are broken by p95 so tail latency decides.
var headlineMetrics = []string{"avg", "p50", "p90", "p95", "p99", "throughput"}

// MetricDiff is one compared metric.
type MetricDiff struct {
	Metric      string  `json:"metric"`
	RunA        float64 `json:"run_a"`
	RunB        float64 `json:"run_b"`
	PercentDiff float64 `json:"percent_diff"`
	Winner      Winner  `json:"winner"`
}

// QueryDiff compares one canonical query present in both runs.
type QueryDiff struct {
	Query       string  `json:"query"`
	RunAAvgSec  float64 `json:"run_a_avg_sec"`
	RunBAvgSec  float64 `json:"run_b_avg_sec"`
	PercentDiff float64 `json:"percent_diff"`
	Winner      Winner  `json:"winner"`
}

// Result is a complete cross-run comparison, directly serializable.
type Result struct {
	RunA summary.RunIdentity `json:"run_a"`
	RunB summary.RunIdentity `json:"run_b"`

	Metrics       []MetricDiff `json:"metrics"`
	OverallWinner Winner       `json:"overall_winner"`
	WinsA         int          `json:"wins_run_a"`
	WinsB         int          `json:"wins_run_b"`

	Queries []QueryDiff `json:"queries,omitempty"`

	// UnmatchedA/B hold canonical ids present in only one run. They are
	// reported, never dropped.
	UnmatchedA []string `json:"unmatched_run_a,omitempty"`
	UnmatchedB []string `json:"unmatched_run_b,omitempty"`

	// UnmappedA/B hold raw labels no normalization rule applied to, so
	// alignment gaps are visible in the output.
	UnmappedA []string `json:"unmapped_run_a,omitempty"`
	UnmappedB []string `json:"unmapped_run_b,omitempty"`
}

// Comparator compares pairs of run summaries. It is stateless across
// calls and safe for concurrent use.
type Comparator struct {
	log        logrus.FieldLogger
	cfg        Config
	normalizer *naming.Normalizer
}

// NewComparator creates a Comparator using the given normalizer for
// per-query alignment.
func NewComparator(log logrus.FieldLogger, cfg Config, normalizer *naming.Normalizer) *Comparator {
	cfg.applyDefaults()

	return &Comparator{
		log:        log.WithField("component", "comparator"),
		cfg:        cfg,
		normalizer: normalizer,
	}
}

// MetricNames returns the comparable metric names, for input validation
// of metric subsets.
func MetricNames() []string {
	names := make([]string, 0, len(metricDefs))
	for _, d := range metricDefs {
		names = append(names, d.name)
	}

	return names
}

// Compare produces the comparison of runs A and B. The optional metrics
// subset restricts the reported metric list; the overall winner is
// always voted over the full headline set. An unknown metric name is an
// input error.
func (c *Comparator) Compare(a, b *summary.RunSummary, metrics []string) (*Result, error) {
	if err := a.Identity.Validate(); err != nil {
		return nil, fmt.Errorf("run A: %w", err)
	}

	if err := b.Identity.Validate(); err != nil {
		return nil, fmt.Errorf("run B: %w", err)
	}

	selected, err := selectMetrics(metrics)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunA: a.Identity,
		RunB: b.Identity,
	}

	diffs := make(map[string]MetricDiff, len(metricDefs))

	for _, def := range metricDefs {
		diffs[def.name] = c.diffMetric(def, a, b)
	}

	for _, def := range selected {
		res.Metrics = append(res.Metrics, diffs[def.name])
	}

	res.WinsA, res.WinsB, res.OverallWinner = c.vote(diffs)

	c.alignQueries(res, a, b)

	c.log.WithFields(logrus.Fields{
		"run_a":  a.Identity.RunID,
		"run_b":  b.Identity.RunID,
		"winner": res.OverallWinner,
	}).Info("Compared runs")

	return res, nil
}

func selectMetrics(names []string) ([]metricDef, error) {
	if len(names) == 0 {
		return metricDefs, nil
	}

	byName := make(map[string]metricDef, len(metricDefs))
	for _, d := range metricDefs {
		byName[d.name] = d
	}

	selected := make([]metricDef, 0, len(names))

	for _, name := range names {
		d, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown metric %q (known: %v)", name, MetricNames())
		}

		selected = append(selected, d)
	}

	return selected, nil
}

func (c *Comparator) diffMetric(def metricDef, a, b *summary.RunSummary) MetricDiff {
	va, vb := def.value(a), def.value(b)
	pct := percentDiff(va, vb, def.higherBetter)

	return MetricDiff{
		Metric:      def.name,
		RunA:        va,
		RunB:        vb,
		PercentDiff: pct,
		Winner:      c.winner(pct),
	}
}

// percentDiff computes the uniform-sign difference: positive means A
// performed better. Zero denominators yield 0 rather than NaN.
func percentDiff(a, b float64, higherBetter bool) float64 {
	if b == 0 {
		return 0
	}

	if higherBetter {
		return (a - b) / b * 100
	}

	return (b - a) / b * 100
}

func (c *Comparator) winner(pct float64) Winner {
	if math.Abs(pct) < c.cfg.ComparableThresholdPct {
		return WinnerComparable
	}

	if pct > 0 {
		return WinnerA
	}

	return WinnerB
}

// vote tallies headline-metric wins. A tie falls back to p95 so the
// tail decides; a p95 draw stays comparable.
func (c *Comparator) vote(diffs map[string]MetricDiff) (winsA, winsB int, overall Winner) {
	for _, name := range headlineMetrics {
		switch diffs[name].Winner {
		case WinnerA:
			winsA++
		case WinnerB:
			winsB++
		}
	}

	switch {
	case winsA > winsB:
		return winsA, winsB, WinnerA
	case winsB > winsA:
		return winsA, winsB, WinnerB
	default:
		return winsA, winsB, diffs["p95"].Winner
	}
}

// alignQueries matches per-query stats across both runs by canonical
// id. Ids on one side only are reported unmatched; labels no rule maps
// are reported unmapped.
func (c *Comparator) alignQueries(res *Result, a, b *summary.RunSummary) {
	qa, unmappedA := c.canonicalQueries(a)
	qb, unmappedB := c.canonicalQueries(b)

	res.UnmappedA = unmappedA
	res.UnmappedB = unmappedB

	ids := make([]string, 0, len(qa))
	for id := range qa {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		sb, ok := qb[id]
		if !ok {
			res.UnmatchedA = append(res.UnmatchedA, id)

			continue
		}

		sa := qa[id]
		pct := percentDiff(sa.AvgSec, sb.AvgSec, false)

		res.Queries = append(res.Queries, QueryDiff{
			Query:       id,
			RunAAvgSec:  sa.AvgSec,
			RunBAvgSec:  sb.AvgSec,
			PercentDiff: pct,
			Winner:      c.winner(pct),
		})
	}

	onlyB := make([]string, 0)
	for id := range qb {
		if _, ok := qa[id]; !ok {
			onlyB = append(onlyB, id)
		}
	}
	sort.Strings(onlyB)
	res.UnmatchedB = onlyB
}

// canonicalQueries maps a run's per-query stats to canonical ids using
// the run's engine. When two raw labels collapse to the same canonical
// id, the first in label order wins.
func (c *Comparator) canonicalQueries(s *summary.RunSummary) (map[string]*summary.QueryStats, []string) {
	labels := make([]string, 0, len(s.QueryStatistics.Queries))
	for label := range s.QueryStatistics.Queries {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := make(map[string]*summary.QueryStats, len(labels))

	var unmapped []string

	for _, label := range labels {
		canonical, isUnmapped := c.normalizer.Normalize(label, s.Identity.Engine)
		if isUnmapped {
			unmapped = append(unmapped, label)
		}

		if _, exists := out[canonical]; !exists {
			out[canonical] = s.QueryStatistics.Queries[label]
		}
	}

	return out, unmapped
}
