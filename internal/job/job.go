// Package job runs split batches on a bounded pool of workers, reports
// aggregate progress, and tears everything down on the first failure or on
// cancellation.
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/silence-remover/internal/observe"
	"github.com/alnah/silence-remover/internal/schedule"
)

// Worker processes one batch and returns its output paths in interval order.
// It must return promptly once ctx is done, after its subprocess has exited.
type Worker interface {
	Run(ctx context.Context, batch schedule.Batch) ([]string, error)
}

// ProgressListener receives the completed fraction of a job, in [0, 1].
type ProgressListener interface {
	Progress(fraction float64)
}

// ProgressFunc adapts a function to ProgressListener.
type ProgressFunc func(fraction float64)

// Progress calls f(fraction).
func (f ProgressFunc) Progress(fraction float64) { f(fraction) }

// Controller submits jobs to a worker pool of fixed size.
type Controller struct {
	worker  Worker
	workers int
	logger  *slog.Logger
	metrics *observe.Metrics
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// NewController creates a Controller running at most workers batches at
// once. Values below 1 are treated as 1.
func NewController(w Worker, workers int, opts ...Option) *Controller {
	c := &Controller{
		worker:  w,
		workers: max(1, workers),
		logger:  slog.New(slog.DiscardHandler),
		metrics: observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit prepares a job over batches. Nothing runs until RunAndAwait.
// The job is canceled when ctx is.
func (c *Controller) Submit(ctx context.Context, batches []schedule.Batch) *Job {
	jctx, cancel := context.WithCancelCause(ctx)
	id := uuid.NewString()
	return &Job{
		ID:      id,
		batches: batches,
		workers: min(c.workers, max(1, len(batches))),
		worker:  c.worker,
		logger:  c.logger.With("job", id),
		metrics: c.metrics,
		ctx:     jctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Job is one submitted run. Its state is shared by the pool goroutines:
// counters and the failure slot are atomics, and the listener mutex never
// spans subprocess work.
type Job struct {
	ID string

	batches []schedule.Batch
	workers int
	worker  Worker
	logger  *slog.Logger
	metrics *observe.Metrics

	ctx    context.Context
	cancel context.CancelCauseFunc

	started   atomic.Bool
	completed atomic.Int64
	failure   atomic.Pointer[error]
	done      chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	listeners []ProgressListener
	reported  float64
	halted    bool
}

// AddProgressListener registers l. Values delivered to l never decrease,
// reach 1 only once every batch completed, and stop after the first
// failure. Intermediate values may be skipped.
func (j *Job) AddProgressListener(l ProgressListener) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.listeners = append(j.listeners, l)
}

// Cancel asks the job to stop. Running subprocesses are terminated and
// queued batches are skipped. Cancel does not wait; use Done or the
// return of RunAndAwait. Canceling a job that was never run closes Done
// at once, and a later RunAndAwait returns ErrCanceled without running.
func (j *Job) Cancel() {
	j.cancel(ErrCanceled)
	if !j.started.Load() {
		j.closeDone()
	}
}

// Done is closed once RunAndAwait has returned and every worker unwound,
// or when the job was canceled before it started.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Total returns the number of batches.
func (j *Job) Total() int {
	return len(j.batches)
}

// Completed returns the number of batches finished successfully so far.
func (j *Job) Completed() int {
	return int(j.completed.Load())
}

// RunAndAwait runs every batch and blocks until all of them finished or the
// job stopped and every worker returned. On success it returns the output
// paths of all batches in global interval order.
//
// The first batch failure is recorded, cancels the job, and is returned.
// Failures that follow it, or that happen after cancellation, are dropped.
// A job stopped without a failure returns an error matching ErrCanceled.
func (j *Job) RunAndAwait() ([]string, error) {
	if !j.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}
	defer j.closeDone()
	defer j.cancel(nil)

	if j.ctx.Err() != nil {
		return nil, j.canceledError()
	}

	total := len(j.batches)
	if total == 0 {
		j.report(1)
		return nil, nil
	}

	j.logger.Debug("job starting", "batches", total, "workers", j.workers)

	results := make([][]string, total)
	var g errgroup.Group
	g.SetLimit(j.workers)
	for i, b := range j.batches {
		if j.ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if j.ctx.Err() != nil {
				return nil
			}
			paths, err := j.runBatch(b)
			if err != nil {
				j.fail(err)
				return nil
			}
			results[i] = paths
			j.complete(total)
			return nil
		})
	}
	_ = g.Wait()

	if int(j.completed.Load()) == total {
		var out []string
		for _, paths := range results {
			out = append(out, paths...)
		}
		j.logger.Debug("job finished", "outputs", len(out))
		return out, nil
	}
	if f := j.failure.Load(); f != nil {
		return nil, *f
	}
	return nil, j.canceledError()
}

func (j *Job) runBatch(b schedule.Batch) ([]string, error) {
	mctx := context.WithoutCancel(j.ctx)
	j.metrics.ActiveWorkers.Add(mctx, 1)
	defer j.metrics.ActiveWorkers.Add(mctx, -1)

	start := time.Now()
	paths, err := j.worker.Run(j.ctx, b)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		j.metrics.RecordBatch(mctx, observe.StatusOK, elapsed)
		j.logger.Debug("batch done", "batch", b.Index, "elapsed", elapsed)
		return paths, nil
	case j.ctx.Err() != nil:
		j.metrics.RecordBatch(mctx, observe.StatusCanceled, elapsed)
	default:
		j.metrics.RecordBatch(mctx, observe.StatusError, elapsed)
	}
	return nil, fmt.Errorf("batch %d: %w", b.Index, err)
}

// fail records err as the job failure unless one is already recorded or the
// job is already stopping, in which case err is a consequence of it.
func (j *Job) fail(err error) {
	if j.ctx.Err() != nil {
		j.logger.Debug("batch stopped", "error", err)
		return
	}
	j.mu.Lock()
	if !j.failure.CompareAndSwap(nil, &err) {
		j.mu.Unlock()
		return
	}
	j.halted = true
	j.mu.Unlock()

	j.logger.Debug("job failing", "error", err)
	j.cancel(err)
}

func (j *Job) closeDone() {
	j.closeOnce.Do(func() { close(j.done) })
}

func (j *Job) complete(total int) {
	n := j.completed.Add(1)
	j.report(float64(n) / float64(total))
}

// report delivers fraction to the listeners if it advances the last value.
// Completions finishing out of order can call report with a stale value;
// holding the mutex across the check and the delivery keeps the sequence
// monotone.
func (j *Job) report(fraction float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.halted || fraction <= j.reported {
		return
	}
	j.reported = fraction
	for _, l := range j.listeners {
		l.Progress(fraction)
	}
}

func (j *Job) canceledError() error {
	cause := context.Cause(j.ctx)
	if cause == nil || errors.Is(cause, ErrCanceled) || cause == context.Canceled {
		return ErrCanceled
	}
	return fmt.Errorf("%w: %w", ErrCanceled, cause)
}
