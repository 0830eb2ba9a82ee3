package scaling

import (
	"fmt"
	"testing"

	"github.com/querybench/querybench/pkg/summary"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkRun(concurrency int, throughput, avgSec float64) *summary.RunSummary {
	return &summary.RunSummary{
		Identity: summary.RunIdentity{
			Engine:      "e6data",
			ClusterSize: "M",
			Benchmark:   "tpcds_1000",
			RunType:     "concurrency",
			Concurrency: concurrency,
			RunID:       fmt.Sprintf("run-%d", concurrency),
		},
		PerformanceMetrics: summary.PerformanceMetrics{
			ThroughputQPS: throughput,
			AvgTimeSec:    avgSec,
			P50LatencySec: avgSec,
			P90LatencySec: avgSec * 2,
			P95LatencySec: avgSec * 2,
			P99LatencySec: avgSec * 3,
		},
	}
}

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()

	return NewAnalyzer(logrus.New(), Config{})
}

func TestBaselineSelfEfficiency(t *testing.T) {
	a := newTestAnalyzer(t)

	profile, err := a.Analyze([]*summary.RunSummary{
		mkRun(1, 10, 1.0),
		mkRun(5, 40, 1.5),
	})
	require.NoError(t, err)

	require.Len(t, profile.Levels, 2)
	base := profile.Levels[0]
	assert.Equal(t, 1, base.Concurrency)
	assert.InDelta(t, 100.0, base.EfficiencyPct, 1e-9)
	assert.InDelta(t, 1.0, base.ScalingFactor, 1e-9)
	assert.Equal(t, BandExcellent, base.Band)
	assert.Equal(t, 1, profile.BaselineConcurrency)
}

func TestEfficiencyAndBands(t *testing.T) {
	a := newTestAnalyzer(t)

	// Baseline 10 qps at c=1. c=2 doubles throughput (100%), c=5
	// reaches 40 qps (80%), c=10 reaches 50 qps (50%).
	profile, err := a.Analyze([]*summary.RunSummary{
		mkRun(1, 10, 1.0),
		mkRun(2, 20, 1.1),
		mkRun(5, 40, 1.5),
		mkRun(10, 50, 3.0),
	})
	require.NoError(t, err)

	require.Len(t, profile.Levels, 4)

	c2 := profile.Levels[1]
	assert.InDelta(t, 2.0, c2.ScalingFactor, 1e-9)
	assert.InDelta(t, 2.0, c2.ThroughputRatio, 1e-9)
	assert.InDelta(t, 100.0, c2.EfficiencyPct, 1e-9)
	assert.Equal(t, BandExcellent, c2.Band)

	c5 := profile.Levels[2]
	assert.InDelta(t, 80.0, c5.EfficiencyPct, 1e-9)
	assert.Equal(t, BandAcceptable, c5.Band)

	c10 := profile.Levels[3]
	assert.InDelta(t, 50.0, c10.EfficiencyPct, 1e-9)
	assert.Equal(t, BandDegrading, c10.Band)
}

func TestRecommendedCeiling(t *testing.T) {
	a := newTestAnalyzer(t)

	profile, err := a.Analyze([]*summary.RunSummary{
		mkRun(1, 10, 1.0),
		mkRun(2, 20, 1.1),
		mkRun(5, 40, 1.5),  // 80%, above floor
		mkRun(10, 50, 3.0), // 50%, below floor
	})
	require.NoError(t, err)

	assert.Equal(t, 5, profile.RecommendedCeiling)
}

func TestCeilingFloorConfigurable(t *testing.T) {
	a := NewAnalyzer(logrus.New(), Config{CeilingFloorPct: 45})

	profile, err := a.Analyze([]*summary.RunSummary{
		mkRun(1, 10, 1.0),
		mkRun(10, 50, 3.0), // 50% clears a 45% floor
	})
	require.NoError(t, err)

	assert.Equal(t, 10, profile.RecommendedCeiling)
}

func TestDegradationPct(t *testing.T) {
	a := newTestAnalyzer(t)

	profile, err := a.Analyze([]*summary.RunSummary{
		mkRun(1, 10, 1.0),
		mkRun(5, 40, 1.5),
	})
	require.NoError(t, err)

	c5 := profile.Levels[1]
	assert.InDelta(t, 50.0, c5.DegradationPct["avg"], 1e-9)
	assert.InDelta(t, 50.0, c5.DegradationPct["p90"], 1e-9)
	assert.InDelta(t, 50.0, c5.DegradationPct["p99"], 1e-9)

	base := profile.Levels[0]
	assert.InDelta(t, 0.0, base.DegradationPct["avg"], 1e-9)
}

func TestAnalyzeSortsByConcurrency(t *testing.T) {
	a := newTestAnalyzer(t)

	profile, err := a.Analyze([]*summary.RunSummary{
		mkRun(10, 50, 3.0),
		mkRun(1, 10, 1.0),
		mkRun(5, 40, 1.5),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, profile.BaselineConcurrency)
	assert.Equal(t, []int{1, 5, 10}, []int{
		profile.Levels[0].Concurrency,
		profile.Levels[1].Concurrency,
		profile.Levels[2].Concurrency,
	})
}

func TestAnalyzeRejectsMixedConfigurations(t *testing.T) {
	a := newTestAnalyzer(t)

	other := mkRun(5, 40, 1.5)
	other.Identity.Engine = "databricks"

	_, err := a.Analyze([]*summary.RunSummary{mkRun(1, 10, 1.0), other})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not belong")
}

func TestAnalyzeRejectsMissingIdentity(t *testing.T) {
	a := newTestAnalyzer(t)

	bad := mkRun(1, 10, 1.0)
	bad.Identity.Benchmark = ""

	_, err := a.Analyze([]*summary.RunSummary{bad})
	assert.ErrorIs(t, err, summary.ErrIdentityMissing)
}

func TestAnalyzeRejectsEmptySeries(t *testing.T) {
	a := newTestAnalyzer(t)

	_, err := a.Analyze(nil)
	assert.Error(t, err)
}

func TestAnalyzeRejectsZeroConcurrency(t *testing.T) {
	a := newTestAnalyzer(t)

	bad := mkRun(1, 10, 1.0)
	bad.Identity.Concurrency = 0

	_, err := a.Analyze([]*summary.RunSummary{bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrency")
}

func TestBaselineZeroThroughput(t *testing.T) {
	a := newTestAnalyzer(t)

	profile, err := a.Analyze([]*summary.RunSummary{
		mkRun(1, 0, 0),
		mkRun(5, 40, 1.5),
	})
	require.NoError(t, err)

	assert.InDelta(t, 100.0, profile.Levels[0].EfficiencyPct, 1e-9)
	assert.InDelta(t, 0.0, profile.Levels[1].EfficiencyPct, 1e-9)
	assert.Equal(t, BandDegrading, profile.Levels[1].Band)
}
