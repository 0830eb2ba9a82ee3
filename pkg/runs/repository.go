// Package runs discovers and loads persisted run summaries from the
// partitioned storage layout.
package runs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/querybench/querybench/pkg/runpath"
	"github.com/querybench/querybench/pkg/storage"
	"github.com/querybench/querybench/pkg/summary"
	"github.com/sirupsen/logrus"
)

// ErrSummaryNotFound indicates no persisted summary exists at the
// requested location. Callers treat it as a distinct outcome from
// malformed input.
var ErrSummaryNotFound = errors.New("run summary not found")

// Repository reads run summaries from a storage backend.
type Repository struct {
	log   logrus.FieldLogger
	store storage.Reader
}

// NewRepository creates a Repository over the given storage reader.
func NewRepository(log logrus.FieldLogger, store storage.Reader) *Repository {
	return &Repository{
		log:   log.WithField("component", "runs"),
		store: store,
	}
}

// RunTypeDir is one discovered run-type directory. Dir is the raw
// directory name; Value is the run type it carries. Both the run_type=
// layout and the older direct layout are accepted.
type RunTypeDir struct {
	Dir   string
	Value string
}

// ListRunTypes returns the run-type directories present under a
// configuration key (engine=.../cluster_size=.../benchmark=...),
// ordered by concurrency with sequential first.
func (r *Repository) ListRunTypes(ctx context.Context, configKey string) ([]RunTypeDir, error) {
	dirs, err := r.store.ListDirs(ctx, configKey)
	if err != nil {
		return nil, fmt.Errorf("listing run types under %q: %w", configKey, err)
	}

	var types []RunTypeDir

	for _, d := range dirs {
		switch {
		case strings.HasPrefix(d, "run_type="):
			types = append(types, RunTypeDir{Dir: d, Value: strings.TrimPrefix(d, "run_type=")})
		case strings.HasPrefix(d, "concurrency_") || d == runpath.RunTypeSequential:
			types = append(types, RunTypeDir{Dir: d, Value: d})
		}
	}

	sort.Slice(types, func(i, j int) bool {
		return runTypeOrder(types[i].Value) < runTypeOrder(types[j].Value)
	})

	return types, nil
}

// runTypeOrder maps run types to their concurrency for ordering;
// sequential sorts first.
func runTypeOrder(runType string) int {
	if runType == runpath.RunTypeSequential {
		return 0
	}

	n, err := strconv.Atoi(strings.TrimPrefix(runType, "concurrency_"))
	if err != nil {
		return int(^uint(0) >> 1)
	}

	return n
}

// ListRunIDs returns the run ids under a run-type key, oldest first.
// Run ids are timestamps (YYYYMMDD-HHMMSS) so lexical order is
// chronological.
func (r *Repository) ListRunIDs(ctx context.Context, runTypeKey string) ([]string, error) {
	dirs, err := r.store.ListDirs(ctx, runTypeKey)
	if err != nil {
		return nil, fmt.Errorf("listing runs under %q: %w", runTypeKey, err)
	}

	var ids []string

	for _, d := range dirs {
		if strings.HasPrefix(d, "run_id=") {
			ids = append(ids, strings.TrimPrefix(d, "run_id="))
		}
	}

	sort.Strings(ids)

	return ids, nil
}

// LoadSummary reads and decodes the summary stored under a run key.
// A missing summary yields ErrSummaryNotFound.
func (r *Repository) LoadSummary(ctx context.Context, runKey string) (*summary.RunSummary, error) {
	key := strings.TrimRight(runKey, "/") + "/" + summary.FileName

	data, err := r.store.GetFile(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading summary %q: %w", key, err)
	}

	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrSummaryNotFound, key)
	}

	sum, err := summary.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("summary %q: %w", key, err)
	}

	return sum, nil
}

// LatestSummaries loads the newest n run summaries under a run-type
// key, newest first. Runs without a persisted summary are skipped with
// a warning.
func (r *Repository) LatestSummaries(ctx context.Context, runTypeKey string, n int) ([]*summary.RunSummary, error) {
	ids, err := r.ListRunIDs(ctx, runTypeKey)
	if err != nil {
		return nil, err
	}

	summaries := make([]*summary.RunSummary, 0, n)

	for i := len(ids) - 1; i >= 0 && len(summaries) < n; i-- {
		runKey := runTypeKey + "/run_id=" + ids[i]

		sum, err := r.LoadSummary(ctx, runKey)
		if err != nil {
			if errors.Is(err, ErrSummaryNotFound) {
				r.log.WithField("run", runKey).Warn("Run has no summary; skipping")

				continue
			}

			return nil, err
		}

		summaries = append(summaries, sum)
	}

	if len(summaries) == 0 {
		return nil, fmt.Errorf("%w: no summarized runs under %s", ErrSummaryNotFound, runTypeKey)
	}

	return summaries, nil
}

// DiscoverSeries loads the newest summary of every concurrency level
// under a configuration key, for scaling analysis. Levels whose
// summary lacks a concurrency value inherit it from the path.
func (r *Repository) DiscoverSeries(ctx context.Context, base *runpath.RunPath) ([]*summary.RunSummary, error) {
	configKey := strings.Join([]string{
		"engine=" + base.Engine,
		"cluster_size=" + base.ClusterSize,
		"benchmark=" + base.Benchmark,
	}, "/")

	if base.Prefix != "" {
		configKey = base.Prefix + "/" + configKey
	}

	runTypes, err := r.ListRunTypes(ctx, configKey)
	if err != nil {
		return nil, err
	}

	if len(runTypes) == 0 {
		return nil, fmt.Errorf("%w: no run types under %s", ErrSummaryNotFound, configKey)
	}

	series := make([]*summary.RunSummary, 0, len(runTypes))

	for _, rt := range runTypes {
		runTypeKey := configKey + "/" + rt.Dir

		latest, err := r.LatestSummaries(ctx, runTypeKey, 1)
		if err != nil {
			if errors.Is(err, ErrSummaryNotFound) {
				r.log.WithField("run_type", rt.Value).Warn("No summarized runs for level; skipping")

				continue
			}

			return nil, err
		}

		sum := latest[0]
		applyPathIdentity(sum, base, rt.Value)

		series = append(series, sum)
	}

	if len(series) == 0 {
		return nil, fmt.Errorf("%w: no summarized levels under %s", ErrSummaryNotFound, configKey)
	}

	return series, nil
}

// applyPathIdentity fills identity fields the persisted summary lacks
// from the path it was discovered under.
func applyPathIdentity(sum *summary.RunSummary, base *runpath.RunPath, runType string) {
	id := &sum.Identity

	if id.Engine == "" {
		id.Engine = base.Engine
	}

	if id.ClusterSize == "" {
		id.ClusterSize = base.ClusterSize
	}

	if id.Benchmark == "" {
		id.Benchmark = base.Benchmark
	}

	if id.RunType == "" {
		id.RunType = runType
	}

	if id.Concurrency == 0 {
		if runType == runpath.RunTypeSequential {
			id.Concurrency = 1
		} else if n, err := strconv.Atoi(strings.TrimPrefix(runType, "concurrency_")); err == nil {
			id.Concurrency = n
		}
	}
}
