package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency is the number of seeds crawled at once.
const DefaultBatchConcurrency = 2

// Factory builds the pipeline for one seed.
type Factory func(seed string) (*Pipeline, error)

// BatchProcessor crawls several seeds concurrently.
type BatchProcessor struct {
	factory     Factory
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor. factory is called once per
// seed so that every crawl gets a fresh pipeline.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch crawls seeds and returns one Run per seed, in seed order.
// A failed seed does not stop the others; its error is kept in Run.Err.
// The returned error is non-nil only when ctx ended the batch.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, seeds []string) ([]*Run, error) {
	runs := make([]*Run, len(seeds))
	err := bp.ProcessBatchWithCallback(ctx, seeds, func(run *Run, index int) {
		runs[index] = run
	})
	return runs, err
}

// ProcessBatchWithCallback crawls seeds and calls callback as each run
// completes. callback runs on the worker goroutine and must be safe for
// concurrent use. Seeds not started before cancellation get no callback.
func (bp *BatchProcessor) ProcessBatchWithCallback(ctx context.Context, seeds []string, callback func(run *Run, index int)) error {
	bp.logger.Debug("starting batch", "seeds", len(seeds), "concurrency", bp.concurrency)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			run := NewRun(seed)
			p, err := bp.factory(seed)
			if err != nil {
				bp.logger.Warn("failed to build pipeline", "seed", seed, "error", err)
				run.Err = err
				callback(run, i)
				return nil
			}

			if err := p.Execute(gctx, run); err != nil {
				bp.logger.Warn("crawl failed", "seed", seed, "error", err)
			}
			callback(run, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Debug("batch complete", "seeds", len(seeds), "elapsed", time.Since(start))
	if err == nil {
		err = ctx.Err()
	}
	return err
}
