// Package remover runs the whole silence removal pipeline: detect, compute
// the audible intervals, split them in parallel, concatenate, clean up.
package remover

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/alnah/silence-remover/internal/config"
	"github.com/alnah/silence-remover/internal/encode"
	"github.com/alnah/silence-remover/internal/ffmpeg"
	"github.com/alnah/silence-remover/internal/job"
	"github.com/alnah/silence-remover/internal/observe"
	"github.com/alnah/silence-remover/internal/schedule"
	"github.com/alnah/silence-remover/internal/silence"
	"github.com/alnah/silence-remover/internal/storage"
)

type detector interface {
	Detect(ctx context.Context, input string) (silence.Detection, error)
}

type concatenator interface {
	Run(ctx context.Context, paths []string, output string) (string, error)
}

type publisher interface {
	Publish(ctx context.Context, localPath string) (string, error)
}

// Analysis is the outcome of silence detection on the input.
type Analysis struct {
	Duration  float64 // seconds
	Intervals []silence.Interval
}

// Kept returns the total audible duration in seconds.
func (a Analysis) Kept() float64 {
	return silence.TotalDuration(a.Intervals)
}

// Removed returns the total silent duration in seconds.
func (a Analysis) Removed() float64 {
	return max(0, a.Duration-a.Kept())
}

// Result describes a finished run.
type Result struct {
	Output   string
	URL      string // set when the output was published
	Analysis Analysis
	Batches  int
	Workers  int
	Elapsed  time.Duration
}

// Remover processes one input as described by a config.Project.
type Remover struct {
	cfg        config.Project
	ffmpegPath string

	detector  detector
	splitter  job.Worker
	concat    concatenator
	publisher publisher
	logger    *slog.Logger
	metrics   *observe.Metrics
	now       func() time.Time
}

// Option configures a Remover.
type Option func(*Remover)

// WithDetector replaces the silence detector.
func WithDetector(d detector) Option {
	return func(r *Remover) { r.detector = d }
}

// WithSplitter replaces the batch encoder.
func WithSplitter(w job.Worker) Option {
	return func(r *Remover) { r.splitter = w }
}

// WithConcatenator replaces the segment joiner.
func WithConcatenator(c concatenator) Option {
	return func(r *Remover) { r.concat = c }
}

// WithPublisher uploads the output after a successful run.
func WithPublisher(p publisher) Option {
	return func(r *Remover) { r.publisher = p }
}

// WithLogger sets the logger shared by every stage.
func WithLogger(l *slog.Logger) Option {
	return func(r *Remover) { r.logger = l }
}

// WithMetrics sets the metrics sink shared by every stage.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Remover) { r.metrics = m }
}

// WithNow sets the clock used for Result.Elapsed.
func WithNow(fn func() time.Time) Option {
	return func(r *Remover) { r.now = fn }
}

// New creates a Remover for cfg. ffmpegPath is the resolved executable.
// Stages not replaced by options run FFmpeg through one shared Runner.
func New(cfg config.Project, ffmpegPath string, opts ...Option) *Remover {
	r := &Remover{cfg: cfg, ffmpegPath: ffmpegPath}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	if r.now == nil {
		r.now = time.Now
	}

	runner := ffmpeg.NewRunner(ffmpeg.WithLogger(r.logger))
	if r.detector == nil {
		r.detector = silence.NewDetector(ffmpegPath,
			silence.WithNoiseDB(cfg.NoiseToleranceDB),
			silence.WithMaxVolume(cfg.MaxVolume),
			silence.WithMinSilence(cfg.MinSegmentLength),
			silence.WithStreamer(runner),
		)
	}
	if r.splitter == nil {
		r.splitter = encode.NewSplitter(ffmpegPath, cfg.InputFile,
			encode.WithThreads(cfg.ThreadsPerSegment),
			encode.WithAudioOnly(cfg.AudioOnly),
			encode.WithRunner(runner),
			encode.WithLogger(r.logger),
			encode.WithMetrics(r.metrics),
		)
	}
	if r.concat == nil {
		r.concat = encode.NewConcatenator(ffmpegPath,
			encode.WithConcatRunner(runner),
			encode.WithKeepInputs(cfg.KeepTemp),
			encode.WithConcatLogger(r.logger),
			encode.WithConcatMetrics(r.metrics),
		)
	}
	return r
}

// Analyze detects silences in the input and computes the intervals to keep.
func (r *Remover) Analyze(ctx context.Context) (Analysis, error) {
	det, err := r.detector.Detect(ctx, r.cfg.InputFile)
	if err != nil {
		return Analysis{}, err
	}

	a := Analysis{
		Duration:  det.Duration,
		Intervals: det.Intervals(r.cfg.MinSegmentLength, r.cfg.Padding),
	}
	r.logger.Debug("silences detected",
		"events", len(det.Events), "intervals", len(a.Intervals),
		"duration", a.Duration, "kept", a.Kept())
	return a, nil
}

// Process analyzes the input, then encodes and joins its audible
// intervals into the output. Listeners receive the split progress.
//
// Segments are written to a fresh workspace under the temp directory. The
// workspace is removed after a successful concat unless KeepTemp is set; on
// any failure it is left on disk and its path logged.
//
// When a publisher is configured and the upload fails, Process returns the
// Result together with an error wrapping ErrPublishFailed.
func (r *Remover) Process(ctx context.Context, listeners ...job.ProgressListener) (Result, error) {
	start := r.now()

	a, err := r.Analyze(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(a.Intervals) == 0 {
		return Result{}, ErrNothingAudible
	}

	ws, err := storage.NewWorkspace(r.cfg.TempDir, filepath.Ext(r.cfg.OutputFile))
	if err != nil {
		return Result{}, err
	}
	logger := r.logger.With("workspace", ws.Dir())

	plan := schedule.Plan(a.Intervals, r.cfg.SegmentsPerInstance, r.cfg.MaxWorkers(), ws.SegmentPath)
	logger.Info("splitting",
		"segments", plan.Len(), "batches", len(plan.Batches), "workers", plan.Workers)

	ctrl := job.NewController(r.splitter, plan.Workers, job.WithLogger(logger), job.WithMetrics(r.metrics))
	j := ctrl.Submit(ctx, plan.Batches)
	for _, l := range listeners {
		j.AddProgressListener(l)
	}

	paths, err := j.RunAndAwait()
	if err != nil {
		logger.Warn("split failed, temporary files kept", "error", err)
		return Result{}, err
	}

	output, err := r.concat.Run(ctx, paths, r.cfg.OutputFile)
	if err != nil {
		logger.Warn("concat failed, segments kept", "error", err)
		return Result{}, err
	}

	if r.cfg.KeepTemp {
		logger.Info("temporary files kept")
	} else if err := ws.Remove(); err != nil {
		logger.Warn("failed to remove workspace", "error", err)
	}

	r.metrics.RecordMedia(context.WithoutCancel(ctx), a.Kept(), a.Removed())

	res := Result{
		Output:   output,
		Analysis: a,
		Batches:  len(plan.Batches),
		Workers:  plan.Workers,
		Elapsed:  r.now().Sub(start),
	}
	if r.publisher == nil {
		return res, nil
	}

	url, err := r.publisher.Publish(ctx, output)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	res.URL = url
	logger.Info("output published", "url", url)
	return res, nil
}
