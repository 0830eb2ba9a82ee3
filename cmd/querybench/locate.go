package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/querybench/querybench/pkg/config"
	"github.com/querybench/querybench/pkg/runpath"
	"github.com/querybench/querybench/pkg/runs"
	"github.com/querybench/querybench/pkg/storage"
	"github.com/querybench/querybench/pkg/summary"
)

// isRunLocation reports whether a location refers to a run in the
// partitioned storage layout rather than a local summary file.
func isRunLocation(location string) bool {
	return strings.HasPrefix(location, "s3://") || strings.Contains(location, "engine=")
}

// openStore opens the configured storage backend. When no backend is
// configured and the run path names an s3:// bucket, a store for that
// bucket is built with default retry settings.
func openStore(cfg *config.Config, rp *runpath.RunPath) (storage.Store, error) {
	if cfg.Storage.S3 != nil || cfg.Storage.Local != nil {
		return storage.New(log, &cfg.Storage)
	}

	if rp != nil && rp.Bucket != "" {
		return storage.NewS3Store(log, &config.S3Config{
			Bucket:        rp.Bucket,
			RetryAttempts: config.DefaultRetryAttempts,
			RetryDelay:    config.DefaultRetryDelay,
		})
	}

	return nil, fmt.Errorf("no storage backend configured and no bucket in path")
}

// loadSummaryFrom loads a run summary from either a partitioned run
// location (latest run when no run_id is present) or a local summary
// file.
func loadSummaryFrom(ctx context.Context, cfg *config.Config, location string) (*summary.RunSummary, error) {
	if !isRunLocation(location) {
		sum, err := summary.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", runs.ErrSummaryNotFound, location, err)
		}

		return sum, nil
	}

	rp, err := runpath.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedInput, err)
	}

	store, err := openStore(cfg, rp)
	if err != nil {
		return nil, err
	}

	repo := runs.NewRepository(log, store)

	if rp.RunID != "" {
		return repo.LoadSummary(ctx, rp.Key())
	}

	sums, err := repo.LatestSummaries(ctx, rp.Key(), 1)
	if err != nil {
		return nil, err
	}

	return sums[0], nil
}
