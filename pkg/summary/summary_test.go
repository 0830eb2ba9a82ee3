package summary

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/querybench/querybench/pkg/ingest"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity() RunIdentity {
	return RunIdentity{
		Engine:      "e6data",
		ClusterSize: "M",
		Benchmark:   "tpcds_1000",
		RunType:     "concurrency_5",
		Concurrency: 5,
		RunID:       "20250101-120000",
	}
}

// realBatch builds a batch of real records with the given elapsed times
// (milliseconds). Records start at t=1000ms and are spaced 1000ms
// apart. failed marks indexes that should be unsuccessful.
func realBatch(elapsed []int64, failed ...int) *ingest.Batch {
	failedSet := make(map[int]bool, len(failed))
	for _, i := range failed {
		failedSet[i] = true
	}

	b := &ingest.Batch{}

	for i, e := range elapsed {
		b.Records = append(b.Records, ingest.Record{
			Timestamp:    1000 + int64(i)*1000,
			Elapsed:      e,
			Label:        "TPCDS-1",
			ResponseCode: "200",
			Success:      !failedSet[i],
			Role:         ingest.RoleReal,
		})
		b.RealCount++
	}

	for i := range b.Records {
		if failedSet[i] {
			b.Records[i].ResponseCode = "500"
			b.Records[i].ResponseMessage = "internal error"
		}
	}

	return b
}

func newTestSummarizer(t *testing.T) *Summarizer {
	t.Helper()

	return NewSummarizer(logrus.New(), Config{})
}

func TestSummarizeNoData(t *testing.T) {
	s := newTestSummarizer(t)

	sum := s.Summarize(testIdentity(), &ingest.Batch{})

	require.NotNil(t, sum)
	assert.True(t, sum.NoData)
	assert.Equal(t, 0, sum.TestResults.TotalSamples)
	assert.Equal(t, float64(0), sum.PerformanceMetrics.ThroughputQPS)
	assert.Equal(t, -1, sum.FailureAnalysis.FirstFailureIndex)
	assert.Empty(t, sum.QueryStatistics.TopSlowestQueries)
}

func TestSummarizeNoDataIgnoresNonRealRecords(t *testing.T) {
	s := newTestSummarizer(t)

	b := &ingest.Batch{
		Records: []ingest.Record{
			{Timestamp: 1000, Elapsed: 50, Label: "BOOTSTRAP-1", Success: true, Role: ingest.RoleBootstrap},
			{Timestamp: 2000, Elapsed: 10, Label: "JSR223 Sampler", Success: true, Role: ingest.RoleControlSampler},
		},
		BootstrapCount:      1,
		ControlSamplerCount: 1,
	}

	sum := s.Summarize(testIdentity(), b)

	assert.True(t, sum.NoData)
	assert.Equal(t, 2, sum.QueryStatistics.TotalQueries)
	assert.Equal(t, 1, sum.QueryStatistics.BootstrapQueries)
	assert.Equal(t, 1, sum.QueryStatistics.ControlSamplerQueries)
	assert.Equal(t, 0, sum.QueryStatistics.RealQueries)
}

func TestSummarizeCounts(t *testing.T) {
	s := newTestSummarizer(t)

	sum := s.Summarize(testIdentity(), realBatch([]int64{100, 200, 300, 400}, 1))

	tr := sum.TestResults
	assert.Equal(t, 4, tr.TotalSamples)
	assert.Equal(t, 3, tr.TotalSuccess)
	assert.Equal(t, 1, tr.TotalFailed)
	assert.Equal(t, tr.TotalSamples, tr.TotalSuccess+tr.TotalFailed)
	assert.InDelta(t, 25.0, tr.ErrorPercent, 1e-9)
}

func TestErrorPercentBoundaries(t *testing.T) {
	s := newTestSummarizer(t)

	allGood := s.Summarize(testIdentity(), realBatch([]int64{100, 100, 100}))
	assert.Equal(t, float64(0), allGood.TestResults.ErrorPercent)

	allBad := s.Summarize(testIdentity(), realBatch([]int64{100, 100, 100}, 0, 1, 2))
	assert.Equal(t, float64(100), allBad.TestResults.ErrorPercent)
	assert.Equal(t, 0, allBad.TestResults.TotalSuccess)
}

func TestPercentileOrdering(t *testing.T) {
	s := newTestSummarizer(t)

	sum := s.Summarize(testIdentity(), realBatch([]int64{
		1200, 300, 4500, 800, 950, 12000, 2200, 60, 7500, 3100, 440, 5600,
	}))

	pm := sum.PerformanceMetrics
	assert.LessOrEqual(t, pm.MinTimeSec, pm.P25LatencySec)
	assert.LessOrEqual(t, pm.P25LatencySec, pm.P50LatencySec)
	assert.LessOrEqual(t, pm.P50LatencySec, pm.P75LatencySec)
	assert.LessOrEqual(t, pm.P75LatencySec, pm.P90LatencySec)
	assert.LessOrEqual(t, pm.P90LatencySec, pm.P95LatencySec)
	assert.LessOrEqual(t, pm.P95LatencySec, pm.P99LatencySec)
	assert.LessOrEqual(t, pm.P99LatencySec, pm.MaxTimeSec)
}

func TestOutlierDetection(t *testing.T) {
	s := newTestSummarizer(t)

	// Latencies in seconds: 1,2,2,3,3,3,4,4,5,100. The 100s execution
	// sits far above the upper Tukey fence.
	sum := s.Summarize(testIdentity(), realBatch([]int64{
		1000, 2000, 2000, 3000, 3000, 3000, 4000, 4000, 5000, 100000,
	}))

	pm := sum.PerformanceMetrics
	assert.InDelta(t, 2.0, pm.P25LatencySec, 1e-9)
	assert.InDelta(t, 4.0, pm.P75LatencySec, 1e-9)
	assert.InDelta(t, 2.0, pm.IQRSec, 1e-9)
	assert.Equal(t, 1, pm.OutlierCount)
	assert.InDelta(t, 3.0, pm.MedianTimeSec, 1e-9)
	assert.InDelta(t, 100.0, pm.MaxTimeSec, 1e-9)
}

func TestTimingDistributionBuckets(t *testing.T) {
	s := newTestSummarizer(t)

	sum := s.Summarize(testIdentity(), realBatch([]int64{
		500,   // <1s
		999,   // <1s
		1000,  // [1,5)
		4999,  // [1,5)
		5000,  // [5,10)
		9999,  // [5,10)
		10000, // >=10s
	}))

	td := sum.TimingDistribution
	assert.Equal(t, 2, td.QueriesUnder1Sec)
	assert.Equal(t, 2, td.Queries1To5Sec)
	assert.Equal(t, 2, td.Queries5To10Sec)
	assert.Equal(t, 1, td.QueriesOver10Sec)
}

func TestTimingDistributionExcludesFailures(t *testing.T) {
	s := newTestSummarizer(t)

	sum := s.Summarize(testIdentity(), realBatch([]int64{500, 500, 500}, 2))

	assert.Equal(t, 2, sum.TimingDistribution.QueriesUnder1Sec)
}

func TestThroughputSpansAllRealRecords(t *testing.T) {
	s := newTestSummarizer(t)

	// 10 records spaced 1s apart, each taking 1s: the run spans
	// exactly 10 seconds wall clock.
	sum := s.Summarize(testIdentity(), realBatch([]int64{
		1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000,
	}, 4))

	pm := sum.PerformanceMetrics
	assert.InDelta(t, 10.0, pm.TotalTimeTakenSec, 1e-9)
	assert.InDelta(t, 1.0, pm.ThroughputQPS, 1e-9)
	assert.InDelta(t, 60.0, pm.QueriesPerMinute, 1e-9)
}

func TestWarmupWindow(t *testing.T) {
	s := newTestSummarizer(t)

	elapsed := make([]int64, 20)
	for i := range elapsed {
		elapsed[i] = 1000
	}
	// Make the warmup window visibly slower.
	elapsed[0] = 5000
	elapsed[1] = 5000

	sum := s.Summarize(testIdentity(), realBatch(elapsed))

	wa := sum.WarmupAnalysis
	assert.Equal(t, 2, wa.WarmupQueries)
	assert.Equal(t, 18, wa.SteadyStateQueries)
	assert.InDelta(t, 5.0, wa.WarmupAvgSec, 1e-9)
	assert.InDelta(t, 1.0, wa.SteadyStateAvgSec, 1e-9)
}

func TestWarmupWindowMinimumOne(t *testing.T) {
	s := newTestSummarizer(t)

	sum := s.Summarize(testIdentity(), realBatch([]int64{1000, 2000, 3000}))

	assert.Equal(t, 1, sum.WarmupAnalysis.WarmupQueries)
	assert.Equal(t, 2, sum.WarmupAnalysis.SteadyStateQueries)
}

func TestFailureAnalysis(t *testing.T) {
	s := newTestSummarizer(t)

	// Failures at 2, 3, 4 form the longest streak; another at 7.
	sum := s.Summarize(testIdentity(), realBatch(
		[]int64{100, 100, 100, 100, 100, 100, 100, 100},
		2, 3, 4, 7,
	))

	fa := sum.FailureAnalysis
	assert.Equal(t, 2, fa.FirstFailureIndex)
	assert.Equal(t, 3, fa.LongestFailureStreak)
	assert.Len(t, fa.FailedQueries, 4)
	assert.Equal(t, 4, fa.ResponseCodeHistogram["500"])

	// First half (indexes 0-3) has 2 failures, second half (4-7) has 2.
	assert.InDelta(t, 50.0, fa.FirstHalfSuccessRatePct, 1e-9)
	assert.InDelta(t, 50.0, fa.SecondHalfSuccessRatePct, 1e-9)
}

func TestFailureAnalysisNoFailures(t *testing.T) {
	s := newTestSummarizer(t)

	sum := s.Summarize(testIdentity(), realBatch([]int64{100, 100}))

	fa := sum.FailureAnalysis
	assert.Equal(t, -1, fa.FirstFailureIndex)
	assert.Equal(t, 0, fa.LongestFailureStreak)
	assert.Empty(t, fa.FailedQueries)
	assert.InDelta(t, 100.0, fa.FirstHalfSuccessRatePct, 1e-9)
	assert.InDelta(t, 100.0, fa.SecondHalfSuccessRatePct, 1e-9)
}

func TestStabilityScore(t *testing.T) {
	s := newTestSummarizer(t)

	// Constant latency and zero failures: error term 1, CV term 1.
	perfect := s.Summarize(testIdentity(), realBatch([]int64{1000, 1000, 1000, 1000}))
	assert.InDelta(t, 1.0, perfect.TestResults.StabilityScore, 1e-9)

	// All failed: error term 0, CV term 1 (no successful samples).
	broken := s.Summarize(testIdentity(), realBatch([]int64{1000, 1000}, 0, 1))
	assert.InDelta(t, 0.4, broken.TestResults.StabilityScore, 1e-9)
}

func TestStabilityWeightsConfigurable(t *testing.T) {
	s := NewSummarizer(logrus.New(), Config{
		StabilityErrorWeight: 0.5,
		StabilityCVWeight:    0.5,
	})

	sum := s.Summarize(testIdentity(), realBatch([]int64{1000, 1000}, 0, 1))
	assert.InDelta(t, 0.5, sum.TestResults.StabilityScore, 1e-9)
}

func TestTopSlowestDeterministic(t *testing.T) {
	s := newTestSummarizer(t)

	b := &ingest.Batch{}
	add := func(label string, elapsed int64) {
		b.Records = append(b.Records, ingest.Record{
			Timestamp: 1000 + int64(len(b.Records))*1000,
			Elapsed:   elapsed,
			Label:     label,
			Success:   true,
			Role:      ingest.RoleReal,
		})
		b.RealCount++
	}

	add("TPCDS-10", 3000)
	add("TPCDS-2", 3000) // ties with TPCDS-10, label order breaks the tie
	add("TPCDS-5", 9000)
	add("TPCDS-7", 1000)

	sum := s.Summarize(testIdentity(), b)

	require.Len(t, sum.QueryStatistics.TopSlowestQueries, 3)
	assert.Equal(t, "TPCDS-5", sum.QueryStatistics.TopSlowestQueries[0].Query)
	assert.Equal(t, "TPCDS-10", sum.QueryStatistics.TopSlowestQueries[1].Query)
	assert.Equal(t, "TPCDS-2", sum.QueryStatistics.TopSlowestQueries[2].Query)
	assert.Equal(t, 4, sum.QueryStatistics.UniqueQueries)
}

func TestPerQueryStats(t *testing.T) {
	s := newTestSummarizer(t)

	b := &ingest.Batch{}
	for i, e := range []int64{1000, 2000, 3000} {
		b.Records = append(b.Records, ingest.Record{
			Timestamp: 1000 + int64(i)*1000,
			Elapsed:   e,
			Label:     "TPCDS-9",
			Success:   i != 2,
			Role:      ingest.RoleReal,
		})
		b.RealCount++
	}

	sum := s.Summarize(testIdentity(), b)

	qs := sum.QueryStatistics.Queries["TPCDS-9"]
	require.NotNil(t, qs)
	assert.Equal(t, 3, qs.Samples)
	assert.Equal(t, 1, qs.Errors)
	assert.InDelta(t, 2.0, qs.AvgSec, 1e-9)
	assert.InDelta(t, 2.0, qs.MedianSec, 1e-9)
	assert.InDelta(t, 1.0, qs.MinSec, 1e-9)
	assert.InDelta(t, 3.0, qs.MaxSec, 1e-9)
}

func TestSummarizeDeterministic(t *testing.T) {
	s := newTestSummarizer(t)
	b := realBatch([]int64{1200, 300, 4500, 800, 950, 12000}, 1, 4)

	first := s.Summarize(testIdentity(), b)
	second := s.Summarize(testIdentity(), b)

	assert.Equal(t, first, second)
}

func TestJSONRoundTrip(t *testing.T) {
	s := newTestSummarizer(t)

	sum := s.Summarize(testIdentity(), realBatch([]int64{1200, 300, 4500, 800}, 2))

	data, err := json.Marshal(sum)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, sum, decoded)
}

func TestWriteReadFile(t *testing.T) {
	s := newTestSummarizer(t)

	sum := s.Summarize(testIdentity(), realBatch([]int64{1200, 300}))

	path := filepath.Join(t.TempDir(), "nested", FileName)
	require.NoError(t, sum.WriteFile(path))

	loaded, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sum, loaded)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestIdentityValidate(t *testing.T) {
	tests := []struct {
		name     string
		identity RunIdentity
		wantErr  bool
	}{
		{name: "complete", identity: testIdentity(), wantErr: false},
		{name: "missing engine", identity: RunIdentity{ClusterSize: "M", Benchmark: "tpcds"}, wantErr: true},
		{name: "missing cluster size", identity: RunIdentity{Engine: "e6data", Benchmark: "tpcds"}, wantErr: true},
		{name: "missing benchmark", identity: RunIdentity{Engine: "e6data", ClusterSize: "M"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.identity.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrIdentityMissing)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSummarizeBatch(t *testing.T) {
	dir := t.TempDir()

	writeJTL := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		return path
	}

	header := "timeStamp,elapsed,label,responseCode,responseMessage,threadName,dataType,success,failureMessage,bytes,sentBytes,grpThreads,allThreads,URL,Latency,IdleTime,Connect\n"
	good := header +
		"1000,500,TPCDS-1,200,OK,tg 1-1,text,true,,100,50,1,1,null,400,0,10\n" +
		"2000,700,TPCDS-2,200,OK,tg 1-2,text,true,,100,50,1,1,null,600,0,10\n"

	okPath := writeJTL("ok.jtl", good)
	missingPath := filepath.Join(dir, "missing.jtl")

	s := newTestSummarizer(t)
	ing := ingest.NewIngestor(logrus.New(), ingest.ClassifierConfig{})

	inputs := []Input{
		{Identity: testIdentity(), ResultFile: okPath},
		{Identity: RunIdentity{Engine: "e6data", ClusterSize: "M", Benchmark: "tpcds_1000", RunID: "20250101-130000"}, ResultFile: missingPath},
	}

	result, err := s.SummarizeBatch(context.Background(), ing, inputs, 2)

	require.Error(t, err)
	require.NotNil(t, result)
	assert.Len(t, result.Summaries, 1)
	assert.Equal(t, []string{"20250101-130000"}, result.Failed)
	assert.Equal(t, 2, result.Summaries[0].TestResults.TotalSamples)
}

func TestSummarizeBatchAllSucceed(t *testing.T) {
	dir := t.TempDir()
	header := "timeStamp,elapsed,label,success\n"

	var inputs []Input

	for _, name := range []string{"a.jtl", "b.jtl", "c.jtl"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(header+"1000,100,TPCDS-1,true\n"), 0o644))

		id := testIdentity()
		id.RunID = name
		inputs = append(inputs, Input{Identity: id, ResultFile: path})
	}

	s := newTestSummarizer(t)
	ing := ingest.NewIngestor(logrus.New(), ingest.ClassifierConfig{})

	result, err := s.SummarizeBatch(context.Background(), ing, inputs, 0)

	require.NoError(t, err)
	assert.Len(t, result.Summaries, 3)
	assert.Empty(t, result.Failed)
}
