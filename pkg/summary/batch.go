package summary

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/querybench/querybench/pkg/ingest"
	"golang.org/x/sync/errgroup"
)

// defaultBatchConcurrency bounds parallel summarization when no
// explicit value is configured.
const defaultBatchConcurrency = 4

// Input is one run to summarize in a batch.
type Input struct {
	Identity   RunIdentity
	ResultFile string
}

// BatchResult pairs each successfully summarized run with its summary.
// Failed runs are reported through the aggregated error; a partial
// failure never aborts the other runs in the batch.
type BatchResult struct {
	Summaries []*RunSummary
	Failed    []string
}

// SummarizeBatch parses and summarizes many runs in parallel. Each run
// is independent, so summaries are computed concurrently with bounded
// parallelism. The returned error aggregates per-run failures; the
// BatchResult still carries every summary that succeeded.
func (s *Summarizer) SummarizeBatch(
	ctx context.Context,
	ingestor *ingest.Ingestor,
	inputs []Input,
	concurrency int,
) (*BatchResult, error) {
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}

	var (
		mu     sync.Mutex
		merr   *multierror.Error
		result = &BatchResult{}
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, in := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			batch, err := ingestor.ParseFile(in.ResultFile)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				merr = multierror.Append(merr, fmt.Errorf("run %s: %w", in.Identity.RunID, err))
				result.Failed = append(result.Failed, in.Identity.RunID)

				// Per-run failures are collected, not propagated, so the
				// group keeps processing the remaining runs.
				return nil
			}

			result.Summaries = append(result.Summaries, s.Summarize(in.Identity, batch))

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	return result, merr.ErrorOrNil()
}
