package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/alnah/silence-remover/internal/config"
	"github.com/alnah/silence-remover/internal/observe"
	"github.com/alnah/silence-remover/internal/remover"
	"github.com/alnah/silence-remover/internal/storage"
)

// processFlags holds every flag of the process command.
type processFlags struct {
	detectionFlags

	output              string
	audioOnly           bool
	maxThreads          int
	threadsPerSegment   int
	segmentsPerInstance int
	tempDir             string
	keepTemp            bool
	s3Bucket            string
	s3Region            string
	s3Endpoint          string
	s3Prefix            string
	stats               bool
}

func (f *processFlags) register(fs *pflag.FlagSet) {
	f.detectionFlags.register(fs)
	fs.StringVarP(&f.output, "output", "o", "", "Output file (default: <input>-trimmed.<ext>)")
	fs.BoolVar(&f.audioOnly, "audio-only", false, "Drop the video stream")
	fs.IntVar(&f.maxThreads, "max-threads", 0, "Total encoder threads (default: half the CPUs)")
	fs.IntVar(&f.threadsPerSegment, "threads-per-segment", 0,
		"Threads per encoder process (default: half of --max-threads)")
	fs.IntVar(&f.segmentsPerInstance, "segments-per-instance", config.DefaultSegmentsPerInstance,
		"Segments extracted by one encoder process")
	fs.StringVar(&f.tempDir, "temp-dir", "", "Directory for intermediate segments (default: system temp)")
	fs.BoolVar(&f.keepTemp, "keep-temp", false, "Keep intermediate segments after success")
	fs.StringVar(&f.s3Bucket, "s3-bucket", "", "Upload the output to this S3 bucket")
	fs.StringVar(&f.s3Region, "s3-region", "", "S3 region (required with --s3-bucket)")
	fs.StringVar(&f.s3Endpoint, "s3-endpoint", "", "S3-compatible endpoint URL")
	fs.StringVar(&f.s3Prefix, "s3-prefix", "", "Key prefix for uploads")
	fs.BoolVar(&f.stats, "stats", false, "Print encoder statistics when done")
}

func (f *processFlags) overrides(fs *pflag.FlagSet) config.Overrides {
	o := f.detectionFlags.overrides(fs)
	o.AudioOnly = changed(fs, "audio-only", f.audioOnly)
	o.MaxThreads = changed(fs, "max-threads", f.maxThreads)
	o.ThreadsPerSegment = changed(fs, "threads-per-segment", f.threadsPerSegment)
	o.SegmentsPerInstance = changed(fs, "segments-per-instance", f.segmentsPerInstance)
	o.TempDir = changed(fs, "temp-dir", f.tempDir)
	o.KeepTemp = changed(fs, "keep-temp", f.keepTemp)
	o.S3Bucket = changed(fs, "s3-bucket", f.s3Bucket)
	o.S3Region = changed(fs, "s3-region", f.s3Region)
	o.S3Endpoint = changed(fs, "s3-endpoint", f.s3Endpoint)
	o.S3Prefix = changed(fs, "s3-prefix", f.s3Prefix)
	return o
}

// ProcessCmd creates the process command.
// The env parameter provides injectable dependencies for testing.
func ProcessCmd(env *Env) *cobra.Command {
	var flags processFlags

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Remove silences from a media file",
		Long: `Remove silent stretches from a media file.

Silences are detected with FFmpeg's silencedetect filter. The audible
segments are extracted by several FFmpeg processes in parallel, then joined
in their original order into the output file.

Settings not given as flags are read from SILENCE_REMOVER_* environment
variables, then from the settings file (see "silence-remover config").`,
		Example: `  silence-remover process -i talk.mp4 -o talk-short.mp4
  silence-remover process -i podcast.wav --noise-tolerance -40 --padding 0.1
  silence-remover process -i lecture.mkv --audio-only -o lecture.m4a
  silence-remover process -i talk.mp4 --s3-bucket media --s3-region eu-west-3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProcess(cmd.Context(), env, flags.input, flags.output, flags.overrides(cmd.Flags()), flags.stats)
		},
	}

	flags.register(cmd.Flags())
	return cmd
}

// runProcess executes the full pipeline.
// Validation order: input exists -> config -> output free -> dirs writable -> ffmpeg
func runProcess(ctx context.Context, env *Env, input, output string, over config.Overrides, withStats bool) error {
	// === VALIDATION (fail-fast) ===

	if err := checkInput(input); err != nil {
		return err
	}

	cfg, err := resolveProject(ctx, env, input, output, over)
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.OutputFile); err == nil {
		return fmt.Errorf("%w: %s", ErrOutputExists, cfg.OutputFile)
	}
	if err := config.WritableDir(filepath.Dir(cfg.OutputFile)); err != nil {
		return fmt.Errorf("output directory: %w", err)
	}
	if err := config.WritableDir(cfg.TempDir); err != nil {
		return fmt.Errorf("temp-dir: %w", err)
	}

	// === SETUP ===

	ffmpegPath, err := env.FFmpegResolver.Resolve(ctx, cfg.FFmpegPath)
	if err != nil {
		return err
	}
	env.FFmpegResolver.CheckVersion(ctx, ffmpegPath)

	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat, env.Stderr)
	opts := []remover.Option{remover.WithLogger(logger)}

	if cfg.S3Bucket != "" {
		pub, err := env.PublisherFactory.NewPublisher(ctx, storage.S3Config{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Prefix:   cfg.S3Prefix,
		})
		if err != nil {
			return err
		}
		opts = append(opts, remover.WithPublisher(pub))
	}

	var stats *observe.Stats
	if withStats {
		stats, err = observe.NewStats(env.Version)
		if err != nil {
			return err
		}
		defer func() { _ = stats.Shutdown(context.WithoutCancel(ctx)) }()
		opts = append(opts, remover.WithMetrics(stats.Metrics))
	}

	// === PROCESS ===

	fmt.Fprintf(env.Stderr, "Removing silences from %s (%d workers x %d threads)...\n",
		cfg.InputFile, cfg.MaxWorkers(), cfg.ThreadsPerSegment)

	r := env.RemoverFactory.NewRemover(cfg, ffmpegPath, opts...)
	res, err := r.Process(ctx, newProgressPrinter(env.Stderr))
	if err != nil && !errors.Is(err, remover.ErrPublishFailed) {
		return err
	}

	writeSummary(env.Stderr, res)
	if stats != nil {
		summary, sErr := stats.Summary(context.WithoutCancel(ctx))
		if sErr != nil {
			fmt.Fprintf(env.Stderr, "Warning: cannot read stats: %v\n", sErr)
		} else {
			summary.Write(env.Stderr)
		}
	}
	return err
}
