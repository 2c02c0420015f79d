package job_test

// Notes:
// - Workers are in-process fakes synchronized with channels, so interleavings
//   are forced rather than hoped for
// - One test drives real sh/sleep children through ffmpeg.Runner to check
//   that cancellation terminates live subprocesses (skipped on Windows)
// - Metrics go to a private Stats provider so tests do not share the global one

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alnah/silence-remover/internal/ffmpeg"
	"github.com/alnah/silence-remover/internal/job"
	"github.com/alnah/silence-remover/internal/observe"
	"github.com/alnah/silence-remover/internal/schedule"
	"github.com/alnah/silence-remover/internal/silence"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type workerFunc func(ctx context.Context, b schedule.Batch) ([]string, error)

func (f workerFunc) Run(ctx context.Context, b schedule.Batch) ([]string, error) {
	return f(ctx, b)
}

// recorder collects progress values.
type recorder struct {
	mu     sync.Mutex
	values []float64
}

func (r *recorder) Progress(f float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, f)
}

func (r *recorder) Values() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.values)
}

func batches(n, perBatch int) []schedule.Batch {
	ivs := make([]silence.Interval, n*perBatch)
	for i := range ivs {
		ivs[i] = silence.Interval{Start: float64(i), End: float64(i) + 0.5}
	}
	return schedule.Plan(ivs, perBatch, n, func(i int, _ silence.Interval) string {
		return fmt.Sprintf("seg_%03d", i)
	}).Batches
}

func newController(t *testing.T, w job.Worker, workers int) *job.Controller {
	t.Helper()
	s, err := observe.NewStats("test")
	if err != nil {
		t.Fatalf("NewStats: %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return job.NewController(w, workers, job.WithMetrics(s.Metrics))
}

// echoWorker returns the batch paths after a short random delay, so batches
// complete out of order.
func echoWorker(seed uint64) workerFunc {
	var mu sync.Mutex
	rng := rand.New(rand.NewPCG(seed, seed))
	return func(ctx context.Context, b schedule.Batch) ([]string, error) {
		mu.Lock()
		d := time.Duration(rng.IntN(5)) * time.Millisecond
		mu.Unlock()
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return b.OutputPaths(), nil
	}
}

func assertMonotone(t *testing.T, values []float64) {
	t.Helper()
	for i, v := range values {
		if v < 0 || v > 1 {
			t.Errorf("progress[%d] = %v outside [0, 1]", i, v)
		}
		if i > 0 && v < values[i-1] {
			t.Errorf("progress decreased: %v after %v", v, values[i-1])
		}
	}
}

// ---------------------------------------------------------------------------
// Success path
// ---------------------------------------------------------------------------

func TestJob_RunAndAwait_OrdersOutputs(t *testing.T) {
	t.Parallel()

	bs := batches(12, 3)
	c := newController(t, echoWorker(7), 4)
	j := c.Submit(context.Background(), bs)
	rec := &recorder{}
	j.AddProgressListener(rec)

	got, err := j.RunAndAwait()
	if err != nil {
		t.Fatalf("RunAndAwait() error = %v", err)
	}
	want := schedule.Schedule{Batches: bs}.OutputPaths()
	if !slices.Equal(got, want) {
		t.Errorf("RunAndAwait() = %v, want %v", got, want)
	}
	if j.Completed() != j.Total() {
		t.Errorf("Completed() = %d, want %d", j.Completed(), j.Total())
	}

	values := rec.Values()
	assertMonotone(t, values)
	if len(values) == 0 || values[len(values)-1] != 1 {
		t.Errorf("progress = %v, want it to end at 1", values)
	}

	select {
	case <-j.Done():
	default:
		t.Error("Done() not closed after RunAndAwait returned")
	}
}

func TestJob_Progress_MonotoneUnderOutOfOrderCompletion(t *testing.T) {
	t.Parallel()

	for seed := range uint64(20) {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			t.Parallel()

			c := newController(t, echoWorker(seed), 8)
			j := c.Submit(context.Background(), batches(16, 1))
			rec := &recorder{}
			j.AddProgressListener(rec)

			if _, err := j.RunAndAwait(); err != nil {
				t.Fatalf("RunAndAwait() error = %v", err)
			}
			values := rec.Values()
			assertMonotone(t, values)
			if n := len(values); n == 0 || values[n-1] != 1 {
				t.Errorf("progress = %v, want final value 1", values)
			}
			if slices.Index(values, 1) != len(values)-1 {
				t.Errorf("progress reached 1 before the end: %v", values)
			}
		})
	}
}

func TestJob_ProgressFunc(t *testing.T) {
	t.Parallel()

	var last atomic.Value
	c := newController(t, echoWorker(1), 2)
	j := c.Submit(context.Background(), batches(3, 1))
	j.AddProgressListener(job.ProgressFunc(func(f float64) { last.Store(f) }))

	if _, err := j.RunAndAwait(); err != nil {
		t.Fatalf("RunAndAwait() error = %v", err)
	}
	if got := last.Load(); got != 1.0 {
		t.Errorf("last progress = %v, want 1", got)
	}
}

func TestJob_ZeroBatches(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	w := workerFunc(func(context.Context, schedule.Batch) ([]string, error) {
		calls.Add(1)
		return nil, nil
	})
	j := newController(t, w, 4).Submit(context.Background(), nil)
	rec := &recorder{}
	j.AddProgressListener(rec)

	got, err := j.RunAndAwait()
	if err != nil || got != nil {
		t.Errorf("RunAndAwait() = %v, %v; want nil, nil", got, err)
	}
	if calls.Load() != 0 {
		t.Errorf("worker calls = %d, want 0", calls.Load())
	}
	if values := rec.Values(); !slices.Equal(values, []float64{1}) {
		t.Errorf("progress = %v, want [1]", values)
	}
}

func TestJob_RunAndAwait_Twice(t *testing.T) {
	t.Parallel()

	j := newController(t, echoWorker(2), 1).Submit(context.Background(), batches(1, 1))
	if _, err := j.RunAndAwait(); err != nil {
		t.Fatalf("first RunAndAwait() error = %v", err)
	}
	if _, err := j.RunAndAwait(); !errors.Is(err, job.ErrAlreadyStarted) {
		t.Errorf("second RunAndAwait() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestJob_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	var active, peak atomic.Int32
	w := workerFunc(func(_ context.Context, b schedule.Batch) ([]string, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		active.Add(-1)
		return b.OutputPaths(), nil
	})

	j := newController(t, w, 3).Submit(context.Background(), batches(20, 1))
	if _, err := j.RunAndAwait(); err != nil {
		t.Fatalf("RunAndAwait() error = %v", err)
	}
	if p := peak.Load(); p > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", p)
	}
}

// ---------------------------------------------------------------------------
// Failure path
// ---------------------------------------------------------------------------

func TestJob_FirstFailureWins(t *testing.T) {
	t.Parallel()

	first := &ffmpeg.SubprocessError{ExitCode: 1, Output: "first"}
	started := make(chan struct{})
	var calls atomic.Int32

	w := workerFunc(func(ctx context.Context, b schedule.Batch) ([]string, error) {
		calls.Add(1)
		switch b.Index {
		case 0:
			<-started
			return nil, first
		case 1:
			close(started)
			<-ctx.Done()
			return nil, &ffmpeg.SubprocessError{ExitCode: -1, Output: "second", Err: ctx.Err()}
		default:
			return b.OutputPaths(), nil
		}
	})

	// Two workers: batches 0 and 1 run, the rest stay queued.
	j := newController(t, w, 2).Submit(context.Background(), batches(10, 1))
	rec := &recorder{}
	j.AddProgressListener(rec)

	_, err := j.RunAndAwait()

	var subErr *ffmpeg.SubprocessError
	if !errors.As(err, &subErr) || subErr.Output != "first" {
		t.Fatalf("RunAndAwait() error = %v, want the first SubprocessError", err)
	}
	if errors.Is(err, job.ErrCanceled) {
		t.Error("failure must not be reported as cancellation")
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("worker calls = %d, want 2 (queued batches skipped)", n)
	}
	if values := rec.Values(); len(values) != 0 {
		t.Errorf("progress = %v, want none", values)
	}
}

func TestJob_NoProgressAfterFailure(t *testing.T) {
	t.Parallel()

	w := workerFunc(func(ctx context.Context, b schedule.Batch) ([]string, error) {
		if b.Index == 0 {
			return nil, errors.New("boom")
		}
		// Completes successfully once the failure has canceled the job.
		<-ctx.Done()
		return b.OutputPaths(), nil
	})

	j := newController(t, w, 2).Submit(context.Background(), batches(2, 1))
	rec := &recorder{}
	j.AddProgressListener(rec)

	if _, err := j.RunAndAwait(); err == nil {
		t.Fatal("RunAndAwait() error = nil, want failure")
	}
	if values := rec.Values(); len(values) != 0 {
		t.Errorf("progress = %v, want none after failure", values)
	}
}

func TestJob_NoProgressOnceFailureRecorded(t *testing.T) {
	t.Parallel()

	// Successes race the failure; a listener must never run after the
	// failure is recorded.
	for round := range 50 {
		release := make(chan struct{})
		w := workerFunc(func(_ context.Context, b schedule.Batch) ([]string, error) {
			<-release
			if b.Index == 0 {
				return nil, errors.New("boom")
			}
			return b.OutputPaths(), nil
		})

		j := newController(t, w, 8).Submit(context.Background(), batches(8, 1))
		var late atomic.Int32
		j.AddProgressListener(job.ProgressFunc(func(float64) {
			if j.FailureRecorded() {
				late.Add(1)
			}
		}))
		close(release)

		if _, err := j.RunAndAwait(); err == nil {
			t.Fatalf("round %d: RunAndAwait() error = nil, want failure", round)
		}
		if n := late.Load(); n != 0 {
			t.Fatalf("round %d: %d progress updates after the failure was recorded", round, n)
		}
	}
}

// ---------------------------------------------------------------------------
// Cancellation
// ---------------------------------------------------------------------------

func TestJob_Cancel(t *testing.T) {
	t.Parallel()

	running := make(chan struct{}, 4)
	w := workerFunc(func(ctx context.Context, _ schedule.Batch) ([]string, error) {
		running <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	})

	j := newController(t, w, 2).Submit(context.Background(), batches(6, 1))
	go func() {
		<-running
		<-running
		j.Cancel()
	}()

	_, err := j.RunAndAwait()
	if !errors.Is(err, job.ErrCanceled) {
		t.Errorf("RunAndAwait() error = %v, want ErrCanceled", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunAndAwait() error = %v, want it to match context.Canceled", err)
	}
	if errors.Is(err, ffmpeg.ErrSubprocess) {
		t.Error("cancellation must not be reported as a subprocess failure")
	}
}

func TestJob_CancelBeforeRun(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	w := workerFunc(func(_ context.Context, b schedule.Batch) ([]string, error) {
		calls.Add(1)
		return b.OutputPaths(), nil
	})

	j := newController(t, w, 2).Submit(context.Background(), batches(3, 1))
	j.Cancel()

	select {
	case <-j.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() not closed after Cancel without RunAndAwait")
	}

	_, err := j.RunAndAwait()
	if !errors.Is(err, job.ErrCanceled) {
		t.Errorf("RunAndAwait() error = %v, want ErrCanceled", err)
	}
	if calls.Load() != 0 {
		t.Errorf("worker calls = %d, want 0", calls.Load())
	}
}

func TestJob_ParentContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	w := workerFunc(func(context.Context, schedule.Batch) ([]string, error) {
		calls.Add(1)
		return nil, nil
	})

	_, err := newController(t, w, 2).Submit(ctx, batches(3, 1)).RunAndAwait()
	if !errors.Is(err, job.ErrCanceled) {
		t.Errorf("RunAndAwait() error = %v, want ErrCanceled", err)
	}
	if calls.Load() != 0 {
		t.Errorf("worker calls = %d, want 0", calls.Load())
	}
}

func TestJob_ParentDeadlineCarriesCause(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	w := workerFunc(func(ctx context.Context, _ schedule.Batch) ([]string, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := newController(t, w, 1).Submit(ctx, batches(2, 1)).RunAndAwait()
	if !errors.Is(err, job.ErrCanceled) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RunAndAwait() error = %v, want ErrCanceled wrapping DeadlineExceeded", err)
	}
}

func TestJob_CancelTerminatesSubprocesses(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("uses sh and sleep")
	}

	runner := ffmpeg.NewRunner(ffmpeg.WithTerminateGrace(time.Second))
	var started atomic.Int32
	w := workerFunc(func(ctx context.Context, b schedule.Batch) ([]string, error) {
		started.Add(1)
		if _, err := runner.Run(ctx, "sleep", []string{"30"}); err != nil {
			return nil, err
		}
		return b.OutputPaths(), nil
	})

	j := newController(t, w, 3).Submit(context.Background(), batches(3, 1))
	time.AfterFunc(200*time.Millisecond, j.Cancel)

	start := time.Now()
	_, err := j.RunAndAwait()
	elapsed := time.Since(start)

	if !errors.Is(err, job.ErrCanceled) {
		t.Errorf("RunAndAwait() error = %v, want ErrCanceled", err)
	}
	if elapsed > 5*time.Second {
		t.Errorf("RunAndAwait() took %v, want prompt return after cancel", elapsed)
	}
	if started.Load() != 3 {
		t.Errorf("started = %d, want 3", started.Load())
	}
}
