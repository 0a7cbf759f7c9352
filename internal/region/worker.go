package region

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/swannekim/FURIOUS/internal/geometry"
	"github.com/swannekim/FURIOUS/internal/track"
)

// voJob is a unit of work for the worker pool: one target's contribution.
type voJob struct {
	index  int
	shipID track.ShipID
}

// voResult is the output of a single target's contribution.
type voResult struct {
	index        int
	contribution *Contribution
	err          error
}

// contributionFunc builds one target's contribution using the calling
// worker's geometry engine.
type contributionFunc func(ctx context.Context, eng *geometry.Engine, id track.ShipID) (*Contribution, error)

// WorkerPool manages a fixed number of goroutines for per-target VO
// construction.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// BuildBatch runs build for every id and returns the results indexed like
// ids. A nil contribution with a nil error means the target had no data in
// the window.
//
// On failure the error of the lowest failing index is returned. Jobs after
// that index are skipped; jobs before it always run, so the reported error
// does not depend on scheduling.
func (wp *WorkerPool) BuildBatch(ctx context.Context, ids []track.ShipID, build contributionFunc) ([]*Contribution, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	workers := min(wp.workers, len(ids))
	jobs := make(chan voJob, workers*2)
	results := make(chan voResult, workers*2)

	var firstFailed atomic.Int64
	firstFailed.Store(int64(len(ids)))
	markFailed := func(index int) {
		for {
			cur := firstFailed.Load()
			if int64(index) >= cur || firstFailed.CompareAndSwap(cur, int64(index)) {
				return
			}
		}
	}

	// Start workers. Each owns a geometry engine for its lifetime.
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eng := geometry.NewEngine()
			for job := range jobs {
				if int64(job.index) > firstFailed.Load() {
					continue
				}
				c, err := build(ctx, eng, job.shipID)
				if err != nil {
					markFailed(job.index)
				}
				results <- voResult{index: job.index, contribution: c, err: err}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobs)
		for i, id := range ids {
			if int64(i) > firstFailed.Load() {
				return
			}
			select {
			case jobs <- voJob{index: i, shipID: id}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]*Contribution, len(ids))
	errs := make([]error, len(ids))
	for r := range results {
		if r.err != nil {
			wp.logger.Warn("vo contribution failed",
				"ship_id", ids[r.index],
				"error", r.err,
			)
			errs[r.index] = r.err
			continue
		}
		out[r.index] = r.contribution
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	// The context may have ended before every job was fed.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
