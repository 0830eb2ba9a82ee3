package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/querybench/querybench/pkg/indexstore"
	"github.com/querybench/querybench/pkg/runs"
	"github.com/querybench/querybench/pkg/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// defaultConcurrency is the number of runs indexed in parallel when
// no explicit concurrency value is configured.
const defaultConcurrency = 4

// Indexer is a background service that periodically scans result
// storage and upserts run summaries into the index store.
type Indexer interface {
	Start(ctx context.Context) error
	Stop() error

	// RunOnce performs a single synchronous indexing pass.
	RunOnce(ctx context.Context) error
}

// Compile-time interface check.
var _ Indexer = (*indexer)(nil)

type indexer struct {
	log         logrus.FieldLogger
	store       indexstore.Store
	reader      storage.Reader
	repo        *runs.Repository
	rootPrefix  string
	interval    time.Duration
	concurrency int
	done        chan struct{}
	wg          sync.WaitGroup
	dbMu        sync.Mutex // serializes DB writes to avoid SQLite contention
}

// NewIndexer creates a new background indexer scanning result storage
// under rootPrefix.
func NewIndexer(
	log logrus.FieldLogger,
	store indexstore.Store,
	reader storage.Reader,
	rootPrefix string,
	interval time.Duration,
	concurrency int,
) Indexer {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &indexer{
		log:         log.WithField("component", "indexer"),
		store:       store,
		reader:      reader,
		repo:        runs.NewRepository(log, reader),
		rootPrefix:  strings.Trim(rootPrefix, "/"),
		interval:    interval,
		concurrency: concurrency,
		done:        make(chan struct{}),
	}
}

// Start launches a background goroutine that runs an immediate indexing
// pass and then ticks at the configured interval. The first pass is
// asynchronous so the caller (the API server) is not blocked.
func (idx *indexer) Start(ctx context.Context) error {
	idx.log.WithFields(logrus.Fields{
		"interval":    idx.interval.String(),
		"concurrency": idx.concurrency,
	}).Info("Starting indexer")

	idx.wg.Add(1)

	go func() {
		defer idx.wg.Done()

		// Run one pass immediately.
		idx.runPass(ctx)

		ticker := time.NewTicker(idx.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				idx.runPass(ctx)
			case <-idx.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop signals the indexer goroutine to stop and waits for it.
func (idx *indexer) Stop() error {
	close(idx.done)
	idx.wg.Wait()

	idx.log.Info("Indexer stopped")

	return nil
}

// RunOnce performs a single synchronous indexing pass.
func (idx *indexer) RunOnce(ctx context.Context) error {
	configKeys, err := idx.discoverConfigKeys(ctx)
	if err != nil {
		return fmt.Errorf("discovering configurations: %w", err)
	}

	for _, ck := range configKeys {
		if err := idx.indexConfigKey(ctx, ck); err != nil {
			return fmt.Errorf("indexing %s: %w", ck, err)
		}
	}

	return nil
}

// runPass executes one full indexing pass across all configurations
// found in storage.
func (idx *indexer) runPass(ctx context.Context) {
	start := time.Now()

	configKeys, err := idx.discoverConfigKeys(ctx)
	if err != nil {
		idx.log.WithError(err).Warn("Indexing pass failed to discover configurations")

		return
	}

	idx.log.WithField("configurations", len(configKeys)).
		Info("Indexing pass started")

	for _, ck := range configKeys {
		select {
		case <-ctx.Done():
			return
		case <-idx.done:
			return
		default:
		}

		if err := idx.indexConfigKey(ctx, ck); err != nil {
			idx.log.WithError(err).
				WithField("config_key", ck).
				Warn("Indexing pass failed for configuration")
		}
	}

	idx.log.WithField("duration", time.Since(start).Round(time.Millisecond)).
		Info("Indexing pass completed")
}

// discoverConfigKeys walks the partitioned layout under the root prefix
// and returns one key per run-type directory
// (engine=<e>/cluster_size=<c>/benchmark=<b>/<run type dir>).
func (idx *indexer) discoverConfigKeys(ctx context.Context) ([]string, error) {
	var keys []string

	engines, err := idx.listPartition(ctx, idx.rootPrefix, "engine=")
	if err != nil {
		return nil, err
	}

	for _, engineDir := range engines {
		engineKey := idx.join(idx.rootPrefix, engineDir)

		clusters, err := idx.listPartition(ctx, engineKey, "cluster_size=")
		if err != nil {
			return nil, err
		}

		for _, clusterDir := range clusters {
			clusterKey := idx.join(engineKey, clusterDir)

			benchmarks, err := idx.listPartition(ctx, clusterKey, "benchmark=")
			if err != nil {
				return nil, err
			}

			for _, benchmarkDir := range benchmarks {
				benchmarkKey := idx.join(clusterKey, benchmarkDir)

				runTypes, err := idx.repo.ListRunTypes(ctx, benchmarkKey)
				if err != nil {
					return nil, err
				}

				for _, rt := range runTypes {
					keys = append(keys, idx.join(benchmarkKey, rt.Dir))
				}
			}
		}
	}

	return keys, nil
}

// listPartition returns child directories carrying a partition prefix.
func (idx *indexer) listPartition(
	ctx context.Context, key, partition string,
) ([]string, error) {
	dirs, err := idx.reader.ListDirs(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("listing %s under %s: %w", partition, key, err)
	}

	matched := make([]string, 0, len(dirs))

	for _, d := range dirs {
		if strings.HasPrefix(d, partition) {
			matched = append(matched, d)
		}
	}

	return matched, nil
}

func (idx *indexer) join(base, child string) string {
	if base == "" {
		return child
	}

	return base + "/" + child
}

// indexConfigKey performs incremental indexing for a single run-type
// configuration. New runs are indexed with a bounded worker pool;
// already-indexed runs are skipped.
func (idx *indexer) indexConfigKey(ctx context.Context, configKey string) error {
	storageIDs, err := idx.repo.ListRunIDs(ctx, configKey)
	if err != nil {
		return fmt.Errorf("listing storage run IDs: %w", err)
	}

	indexedIDs, err := idx.store.ListRunIDs(ctx, configKey)
	if err != nil {
		return fmt.Errorf("listing indexed run IDs: %w", err)
	}

	indexedSet := make(map[string]struct{}, len(indexedIDs))
	for _, id := range indexedIDs {
		indexedSet[id] = struct{}{}
	}

	var pending []string

	for _, id := range storageIDs {
		if _, ok := indexedSet[id]; !ok {
			pending = append(pending, id)
		}
	}

	ckLog := idx.log.WithField("config_key", configKey)

	ckLog.WithFields(logrus.Fields{
		"storage_runs": len(storageIDs),
		"indexed_runs": len(indexedIDs),
		"new_runs":     len(pending),
	}).Info("Scanning configuration")

	if len(pending) == 0 {
		return nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(idx.concurrency)

	var indexed atomic.Int64

	for _, runID := range pending {
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			case <-idx.done:
				return nil
			default:
			}

			if err := idx.indexRun(gCtx, configKey, runID); err != nil {
				if errors.Is(err, runs.ErrSummaryNotFound) {
					ckLog.WithField("run_id", runID).
						Debug("Run has no summary yet, skipping")

					return nil
				}

				ckLog.WithError(err).
					WithField("run_id", runID).
					Warn("Failed to index run")

				return nil //nolint:nilerr // log and continue
			}

			ckLog.WithField("run_id", runID).Info("Indexed run")

			indexed.Add(1)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("indexing runs: %w", err)
	}

	if count := indexed.Load(); count > 0 {
		ckLog.WithField("count", count).
			Info("Configuration indexing complete")
	}

	return nil
}

// indexRun loads a run's summary from storage and upserts its index row.
func (idx *indexer) indexRun(ctx context.Context, configKey, runID string) error {
	sum, err := idx.repo.LoadSummary(ctx, configKey+"/run_id="+runID)
	if err != nil {
		return err
	}

	if sum.Identity.RunID == "" {
		sum.Identity.RunID = runID
	}

	run := indexstore.FromSummary(configKey, sum)

	// Serialize DB writes to avoid SQLite BUSY errors under concurrency.
	idx.dbMu.Lock()
	defer idx.dbMu.Unlock()

	if err := idx.store.UpsertRun(ctx, run); err != nil {
		return fmt.Errorf("upserting run: %w", err)
	}

	return nil
}
