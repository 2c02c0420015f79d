package encode

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/alnah/silence-remover/internal/ffmpeg"
	"github.com/alnah/silence-remover/internal/observe"
)

// listFileName is the concat demuxer input written next to the segments.
const listFileName = "concat.txt"

// Concatenator joins segment files into the final output with FFmpeg's
// concat demuxer, copying streams without re-encoding.
type Concatenator struct {
	ffmpegPath string
	keepInputs bool

	runner  runner
	files   fileSystem
	logger  *slog.Logger
	metrics *observe.Metrics
}

// ConcatOption configures a Concatenator.
type ConcatOption func(*Concatenator)

// WithConcatRunner sets the subprocess runner.
func WithConcatRunner(r runner) ConcatOption {
	return func(c *Concatenator) { c.runner = r }
}

// WithFileSystem sets the file operations used for the list file and
// segment cleanup.
func WithFileSystem(fs fileSystem) ConcatOption {
	return func(c *Concatenator) { c.files = fs }
}

// WithKeepInputs leaves the segment files and the list file on disk after
// a successful concat.
func WithKeepInputs(keep bool) ConcatOption {
	return func(c *Concatenator) { c.keepInputs = keep }
}

// WithConcatLogger sets the logger.
func WithConcatLogger(l *slog.Logger) ConcatOption {
	return func(c *Concatenator) { c.logger = l }
}

// WithConcatMetrics sets the metrics sink.
func WithConcatMetrics(m *observe.Metrics) ConcatOption {
	return func(c *Concatenator) { c.metrics = m }
}

// NewConcatenator creates a Concatenator.
func NewConcatenator(ffmpegPath string, opts ...ConcatOption) *Concatenator {
	c := &Concatenator{
		ffmpegPath: ffmpegPath,
		runner:     ffmpeg.NewRunner(),
		files:      osFileSystem{},
		logger:     slog.New(slog.DiscardHandler),
		metrics:    observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Args returns the FFmpeg arguments joining listPath into output.
// -n refuses to overwrite an existing output.
func (c *Concatenator) Args(listPath, output string) []string {
	return []string{
		"-hide_banner",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-n",
		output,
	}
}

// Run joins paths, in the given order, into output and returns output.
// On success the segment files and the list file are removed unless
// WithKeepInputs is set; removal failures are logged, not returned. On
// failure every file is kept so the split work can be recovered.
func (c *Concatenator) Run(ctx context.Context, paths []string, output string) (string, error) {
	if len(paths) == 0 {
		return "", ErrNothingToConcat
	}

	listPath := filepath.Join(filepath.Dir(paths[0]), listFileName)
	list, err := concatList(paths)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConcatFailed, err)
	}
	if err := c.files.WriteFile(listPath, list, 0o600); err != nil {
		return "", fmt.Errorf("%w: write list file: %w", ErrConcatFailed, err)
	}

	c.logger.Debug("concat starting", "segments", len(paths), "output", output)
	if _, err := c.runner.Run(ctx, c.ffmpegPath, c.Args(listPath, output)); err != nil {
		c.metrics.RecordSubprocess(ctx, kindConcat, subprocessStatus(err))
		return "", fmt.Errorf("%w: %w", ErrConcatFailed, err)
	}
	c.metrics.RecordSubprocess(ctx, kindConcat, observe.StatusOK)

	if c.keepInputs {
		return output, nil
	}
	for _, p := range paths {
		c.remove(p)
	}
	c.remove(listPath)
	return output, nil
}

func (c *Concatenator) remove(path string) {
	if err := c.files.Remove(path); err != nil {
		c.logger.Warn("failed to remove temp file", "path", path, "error", err)
	}
}

// concatList renders the concat demuxer script. Paths are made absolute
// because the demuxer resolves relative entries against the list file.
func concatList(paths []string) ([]byte, error) {
	var b strings.Builder
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, "file '%s'\n", escapeQuote(abs))
	}
	return []byte(b.String()), nil
}

// escapeQuote escapes single quotes for the concat script syntax.
func escapeQuote(s string) string {
	return strings.ReplaceAll(s, "'", `'\''`)
}
