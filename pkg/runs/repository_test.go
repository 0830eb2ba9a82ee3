package runs

import (
	"context"
	"testing"

	"github.com/querybench/querybench/pkg/config"
	"github.com/querybench/querybench/pkg/runpath"
	"github.com/querybench/querybench/pkg/storage"
	"github.com/querybench/querybench/pkg/summary"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configKey = "jmeter-results/engine=e6data/cluster_size=M/benchmark=tpcds_1000"

func newTestRepo(t *testing.T) (*Repository, storage.Store) {
	t.Helper()

	store := storage.NewLocalStore(logrus.New(), &config.LocalStorageConfig{Root: t.TempDir()})

	return NewRepository(logrus.New(), store), store
}

func putSummary(t *testing.T, store storage.Store, runKey string, sum *summary.RunSummary) {
	t.Helper()

	data, err := sum.Encode()
	require.NoError(t, err)
	require.NoError(t, store.PutFile(context.Background(), runKey+"/"+summary.FileName, data))
}

func testSummary(runID string, avgSec float64) *summary.RunSummary {
	return &summary.RunSummary{
		Identity: summary.RunIdentity{
			Engine:      "e6data",
			ClusterSize: "M",
			Benchmark:   "tpcds_1000",
			RunType:     "concurrency_4",
			Concurrency: 4,
			RunID:       runID,
		},
		PerformanceMetrics: summary.PerformanceMetrics{AvgTimeSec: avgSec},
	}
}

func TestLoadSummary(t *testing.T) {
	repo, store := newTestRepo(t)
	ctx := context.Background()

	runKey := configKey + "/run_type=concurrency_4/run_id=20250101-120000"
	putSummary(t, store, runKey, testSummary("20250101-120000", 2.5))

	sum, err := repo.LoadSummary(ctx, runKey)
	require.NoError(t, err)
	assert.Equal(t, "20250101-120000", sum.Identity.RunID)
	assert.InDelta(t, 2.5, sum.PerformanceMetrics.AvgTimeSec, 1e-9)
}

func TestLoadSummaryNotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.LoadSummary(context.Background(), configKey+"/run_type=concurrency_4/run_id=missing")
	assert.ErrorIs(t, err, ErrSummaryNotFound)
}

func TestLoadSummaryCorrupt(t *testing.T) {
	repo, store := newTestRepo(t)
	ctx := context.Background()

	runKey := configKey + "/run_type=concurrency_4/run_id=20250101-120000"
	require.NoError(t, store.PutFile(ctx, runKey+"/"+summary.FileName, []byte("not json")))

	_, err := repo.LoadSummary(ctx, runKey)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSummaryNotFound)
}

func TestListRunTypesOrdered(t *testing.T) {
	repo, store := newTestRepo(t)
	ctx := context.Background()

	for _, rt := range []string{"run_type=concurrency_8", "run_type=sequential", "run_type=concurrency_2"} {
		putSummary(t, store, configKey+"/"+rt+"/run_id=20250101-120000", testSummary("20250101-120000", 1))
	}

	types, err := repo.ListRunTypes(ctx, configKey)
	require.NoError(t, err)

	values := make([]string, 0, len(types))
	for _, rt := range types {
		values = append(values, rt.Value)
	}

	assert.Equal(t, []string{"sequential", "concurrency_2", "concurrency_8"}, values)
}

func TestListRunTypesDirectLayout(t *testing.T) {
	repo, store := newTestRepo(t)
	ctx := context.Background()

	putSummary(t, store, configKey+"/concurrency_4/run_id=20250101-120000", testSummary("20250101-120000", 1))

	types, err := repo.ListRunTypes(ctx, configKey)
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "concurrency_4", types[0].Dir)
	assert.Equal(t, "concurrency_4", types[0].Value)
}

func TestLatestSummaries(t *testing.T) {
	repo, store := newTestRepo(t)
	ctx := context.Background()

	runTypeKey := configKey + "/run_type=concurrency_4"
	putSummary(t, store, runTypeKey+"/run_id=20250101-120000", testSummary("20250101-120000", 1))
	putSummary(t, store, runTypeKey+"/run_id=20250102-120000", testSummary("20250102-120000", 2))
	putSummary(t, store, runTypeKey+"/run_id=20250103-120000", testSummary("20250103-120000", 3))

	latest, err := repo.LatestSummaries(ctx, runTypeKey, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "20250103-120000", latest[0].Identity.RunID)
	assert.Equal(t, "20250102-120000", latest[1].Identity.RunID)
}

func TestLatestSummariesSkipsRunsWithoutSummary(t *testing.T) {
	repo, store := newTestRepo(t)
	ctx := context.Background()

	runTypeKey := configKey + "/run_type=concurrency_4"
	putSummary(t, store, runTypeKey+"/run_id=20250101-120000", testSummary("20250101-120000", 1))

	// Newer run directory exists but has no summary yet.
	require.NoError(t, store.PutFile(ctx, runTypeKey+"/run_id=20250102-120000/result.jtl", []byte("raw")))

	latest, err := repo.LatestSummaries(ctx, runTypeKey, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "20250101-120000", latest[0].Identity.RunID)
}

func TestLatestSummariesNoneFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.LatestSummaries(context.Background(), configKey+"/run_type=concurrency_4", 1)
	assert.ErrorIs(t, err, ErrSummaryNotFound)
}

func TestDiscoverSeries(t *testing.T) {
	repo, store := newTestRepo(t)
	ctx := context.Background()

	for _, tc := range []struct {
		runType string
		conc    int
		avg     float64
	}{
		{runType: "concurrency_1", conc: 1, avg: 1.0},
		{runType: "concurrency_4", conc: 4, avg: 1.5},
		{runType: "concurrency_8", conc: 8, avg: 2.0},
	} {
		sum := testSummary("20250101-120000", tc.avg)
		sum.Identity.RunType = tc.runType
		sum.Identity.Concurrency = tc.conc
		putSummary(t, store, configKey+"/run_type="+tc.runType+"/run_id=20250101-120000", sum)
	}

	base, err := runpath.Parse("s3://bkt/" + configKey + "/run_type=concurrency_1")
	require.NoError(t, err)

	series, err := repo.DiscoverSeries(ctx, base)
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, 1, series[0].Identity.Concurrency)
	assert.Equal(t, 8, series[2].Identity.Concurrency)
}

func TestDiscoverSeriesFillsIdentityFromPath(t *testing.T) {
	repo, store := newTestRepo(t)
	ctx := context.Background()

	// Persisted by an older tool version without identity fields.
	sum := &summary.RunSummary{
		PerformanceMetrics: summary.PerformanceMetrics{AvgTimeSec: 1.0},
	}
	putSummary(t, store, configKey+"/run_type=concurrency_4/run_id=20250101-120000", sum)

	base, err := runpath.Parse("s3://bkt/" + configKey + "/run_type=concurrency_4")
	require.NoError(t, err)

	series, err := repo.DiscoverSeries(ctx, base)
	require.NoError(t, err)
	require.Len(t, series, 1)

	id := series[0].Identity
	assert.Equal(t, "e6data", id.Engine)
	assert.Equal(t, "M", id.ClusterSize)
	assert.Equal(t, "tpcds_1000", id.Benchmark)
	assert.Equal(t, 4, id.Concurrency)
	require.NoError(t, id.Validate())
}

func TestDiscoverSeriesEmpty(t *testing.T) {
	repo, _ := newTestRepo(t)

	base, err := runpath.Parse("s3://bkt/" + configKey + "/run_type=concurrency_1")
	require.NoError(t, err)

	_, err = repo.DiscoverSeries(context.Background(), base)
	assert.ErrorIs(t, err, ErrSummaryNotFound)
}
