package ffmpeg

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// DefaultTerminateGrace is how long a canceled FFmpeg child may take to exit
// after the terminate signal before it is killed.
const DefaultTerminateGrace = 5 * time.Second

// defaultOutputLimit caps the diagnostic output kept per invocation.
// FFmpeg prints the failure reason last, so the tail is what matters.
const defaultOutputLimit = 64 * 1024

// Runner launches FFmpeg subprocesses bound to a context.
// When the context is done the child receives a terminate signal and is
// killed if it has not exited after the grace period. Run and Stream only
// return once the child has been reaped.
type Runner struct {
	grace       time.Duration
	outputLimit int
	logger      *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTerminateGrace sets the delay between the terminate signal and Kill.
func WithTerminateGrace(d time.Duration) RunnerOption {
	return func(r *Runner) { r.grace = d }
}

// WithOutputLimit sets how many trailing bytes of output are kept for errors.
func WithOutputLimit(n int) RunnerOption {
	return func(r *Runner) { r.outputLimit = n }
}

// WithLogger sets the logger used for debug traces of each invocation.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner with the given options.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		grace:       DefaultTerminateGrace,
		outputLimit: defaultOutputLimit,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes path with args and returns the captured combined output.
// A launch failure or non-zero exit is returned as *SubprocessError.
func (r *Runner) Run(ctx context.Context, path string, args []string) ([]byte, error) {
	out := newTailBuffer(r.outputLimit)
	cmd := r.command(ctx, path, args)
	cmd.Stdout = out
	cmd.Stderr = out

	start := time.Now()
	err := cmd.Run()
	r.logger.Debug("ffmpeg finished",
		"args", args, "elapsed", time.Since(start), "exit", exitCode(cmd, err))
	if err != nil {
		return out.Bytes(), r.subprocessError(ctx, cmd, path, args, out.String(), err)
	}
	return out.Bytes(), nil
}

// Stream executes path with args and hands the live combined output to
// consume. Output that consume leaves unread is drained so the child never
// blocks on a full pipe. The consume error takes precedence over the
// subprocess error.
func (r *Runner) Stream(ctx context.Context, path string, args []string, consume func(io.Reader) error) error {
	pr, pw := io.Pipe()
	tail := newTailBuffer(r.outputLimit)
	cmd := r.command(ctx, path, args)
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		return r.subprocessError(ctx, cmd, path, args, "", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		_ = pw.Close()
		waitErr <- err
	}()

	src := io.TeeReader(pr, tail)
	consumeErr := consume(src)
	_, _ = io.Copy(io.Discard, src)
	err := <-waitErr

	if consumeErr != nil {
		return consumeErr
	}
	if err != nil {
		return r.subprocessError(ctx, cmd, path, args, tail.String(), err)
	}
	return nil
}

// command builds an exec.Cmd whose cancellation sends the platform
// terminate signal and escalates to Kill after the grace period.
func (r *Runner) command(ctx context.Context, path string, args []string) *exec.Cmd {
	// #nosec G204 -- path is the resolved ffmpeg binary, args are built internally
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Cancel = func() error { return terminate(cmd.Process) }
	cmd.WaitDelay = r.grace
	r.logger.Debug("ffmpeg start", "path", path, "args", args)
	return cmd
}

// subprocessError wraps err with the invocation details. When ctx is done
// the cancellation cause is joined so callers can tell a terminated child
// from a failing one.
func (r *Runner) subprocessError(ctx context.Context, cmd *exec.Cmd, path string, args []string, output string, err error) error {
	if cause := context.Cause(ctx); cause != nil && !errors.Is(err, cause) {
		err = errors.Join(err, cause)
	}
	return &SubprocessError{
		Path:     path,
		Args:     args,
		ExitCode: exitCode(cmd, err),
		Output:   output,
		Err:      err,
	}
}

// exitCode returns the child's exit status, or -1 if it never ran to a
// normal exit.
func exitCode(cmd *exec.Cmd, err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}

// ---------------------------------------------------------------------------
// tailBuffer - bounded output capture
// ---------------------------------------------------------------------------

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	if limit <= 0 {
		limit = defaultOutputLimit
	}
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(p)
	if n >= t.limit {
		t.buf = append(t.buf[:0], p[n-t.limit:]...)
		return n, nil
	}
	if overflow := len(t.buf) + n - t.limit; overflow > 0 {
		t.buf = append(t.buf[:0], t.buf[overflow:]...)
	}
	t.buf = append(t.buf, p...)
	return n, nil
}

func (t *tailBuffer) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.buf...)
}

func (t *tailBuffer) String() string {
	return string(t.Bytes())
}
