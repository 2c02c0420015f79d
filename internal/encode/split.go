// Package encode runs the FFmpeg passes that cut audible segments out of the
// source and join them back together.
package encode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/alnah/silence-remover/internal/ffmpeg"
	"github.com/alnah/silence-remover/internal/observe"
	"github.com/alnah/silence-remover/internal/schedule"
)

// Subprocess kinds reported to metrics.
const (
	kindSplit  = "split"
	kindConcat = "concat"
)

// Splitter extracts every segment of a batch in one FFmpeg invocation.
type Splitter struct {
	ffmpegPath string
	input      string
	threads    int
	audioOnly  bool

	runner  runner
	files   fileSystem
	logger  *slog.Logger
	metrics *observe.Metrics
}

// SplitterOption configures a Splitter.
type SplitterOption func(*Splitter)

// WithThreads sets the thread hint passed to FFmpeg per input and per output.
func WithThreads(n int) SplitterOption {
	return func(s *Splitter) { s.threads = max(1, n) }
}

// WithAudioOnly drops video streams from the segments.
func WithAudioOnly(on bool) SplitterOption {
	return func(s *Splitter) { s.audioOnly = on }
}

// WithRunner sets the subprocess runner.
func WithRunner(r runner) SplitterOption {
	return func(s *Splitter) { s.runner = r }
}

// WithSplitFileSystem sets the file operations used to confirm outputs.
func WithSplitFileSystem(fs fileSystem) SplitterOption {
	return func(s *Splitter) { s.files = fs }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) SplitterOption {
	return func(s *Splitter) { s.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observe.Metrics) SplitterOption {
	return func(s *Splitter) { s.metrics = m }
}

// NewSplitter creates a Splitter cutting segments out of input.
func NewSplitter(ffmpegPath, input string, opts ...SplitterOption) *Splitter {
	s := &Splitter{
		ffmpegPath: ffmpegPath,
		input:      input,
		threads:    1,
		runner:     ffmpeg.NewRunner(),
		files:      osFileSystem{},
		logger:     slog.New(slog.DiscardHandler),
		metrics:    observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Args returns the FFmpeg arguments that extract batch.
//
// FFmpeg needs a separate input reference per trimmed output, so the source
// is opened once per segment and input i is mapped to output i.
func (s *Splitter) Args(batch schedule.Batch) []string {
	threads := strconv.Itoa(s.threads)
	args := make([]string, 0, len(batch.Segments)*20)
	for range batch.Segments {
		args = append(args, "-threads", threads, "-i", s.input)
	}
	for i, seg := range batch.Segments {
		args = append(args,
			"-map", strconv.Itoa(i),
			"-ss", formatSeconds(seg.Interval.Start),
			"-to", formatSeconds(seg.Interval.End),
			"-vsync", "1",
			"-async", "1",
			"-safe", "0",
			"-threads", threads,
			"-ignore_unknown",
			"-y",
		)
		if s.audioOnly {
			args = append(args, "-vn")
		}
		args = append(args, seg.OutputPath)
	}
	return args
}

// Run extracts batch and returns its output paths in interval order.
// A failed invocation, or a zero exit that left an output missing, returns
// *ffmpeg.SubprocessError; files already written are left on disk.
func (s *Splitter) Run(ctx context.Context, batch schedule.Batch) ([]string, error) {
	if len(batch.Segments) == 0 {
		return nil, fmt.Errorf("batch %d: %w", batch.Index, ErrEmptyBatch)
	}

	s.logger.Debug("split batch starting",
		"batch", batch.Index, "segments", len(batch.Segments))

	args := s.Args(batch)
	out, err := s.runner.Run(ctx, s.ffmpegPath, args)
	if err != nil {
		s.metrics.RecordSubprocess(ctx, kindSplit, subprocessStatus(err))
		return nil, err
	}

	paths := batch.OutputPaths()
	for _, p := range paths {
		if err := s.confirmWritten(p); err != nil {
			s.metrics.RecordSubprocess(ctx, kindSplit, observe.StatusError)
			return nil, &ffmpeg.SubprocessError{
				Path:   s.ffmpegPath,
				Args:   args,
				Output: string(out),
				Err:    err,
			}
		}
	}
	s.metrics.RecordSubprocess(ctx, kindSplit, observe.StatusOK)
	return paths, nil
}

// confirmWritten checks that FFmpeg produced the segment at path.
func (s *Splitter) confirmWritten(path string) error {
	info, err := s.files.Stat(path)
	if err != nil {
		return fmt.Errorf("segment not written: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("segment not written: %s is a directory", path)
	}
	return nil
}

// subprocessStatus classifies a runner error for metrics.
func subprocessStatus(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return observe.StatusCanceled
	}
	return observe.StatusError
}

// formatSeconds renders seconds in the shortest form that round-trips.
func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
