package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/alnah/silence-remover/internal/config"
)

// detectionFlags are shared by every command that runs silence detection.
type detectionFlags struct {
	input            string
	ffmpeg           string
	minSegmentLength float64
	noiseTolerance   float64
	maxVolume        float64
	padding          float64
	logLevel         string
	logFormat        string
}

func (f *detectionFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.input, "input", "i", "", "Input media file")
	fs.StringVar(&f.ffmpeg, "ffmpeg", "", "FFmpeg executable (default: FFMPEG_PATH, then PATH)")
	fs.Float64Var(&f.minSegmentLength, "min-segment-length", config.DefaultMinSegmentLength,
		"Shortest silence to remove, in seconds")
	fs.Float64Var(&f.noiseTolerance, "noise-tolerance", config.DefaultNoiseToleranceDB,
		"Silence threshold in dB; 0 uses --max-volume")
	fs.Float64Var(&f.maxVolume, "max-volume", config.DefaultMaxVolume,
		"Silence threshold as an amplitude ratio (0-1]")
	fs.Float64Var(&f.padding, "padding", config.DefaultPadding,
		"Audible margin kept around each segment, in seconds")
	fs.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", config.DefaultLogFormat, "Log format: text, json")
}

func (f *detectionFlags) overrides(fs *pflag.FlagSet) config.Overrides {
	return config.Overrides{
		FFmpegPath:       changed(fs, "ffmpeg", f.ffmpeg),
		MinSegmentLength: changed(fs, "min-segment-length", f.minSegmentLength),
		NoiseToleranceDB: changed(fs, "noise-tolerance", f.noiseTolerance),
		MaxVolume:        changed(fs, "max-volume", f.maxVolume),
		Padding:          changed(fs, "padding", f.padding),
		LogLevel:         changed(fs, "log-level", f.logLevel),
		LogFormat:        changed(fs, "log-format", f.logFormat),
	}
}

// changed returns &v when the flag was set on the command line, nil
// otherwise, so unset flags leave lower layers in effect.
func changed[T any](fs *pflag.FlagSet, name string, v T) *T {
	if !fs.Changed(name) {
		return nil
	}
	return &v
}

// resolveProject builds the run configuration from the settings file, the
// environment, and flags, in increasing precedence.
func resolveProject(ctx context.Context, env *Env, input, output string, flags config.Overrides) (config.Project, error) {
	file, err := env.Settings.Load()
	if err != nil {
		return config.Project{}, err
	}
	fromEnv, err := config.LoadEnv(ctx, env.LookupEnv)
	if err != nil {
		return config.Project{}, err
	}
	return config.Resolve(input, output, env.NumCPU(), file, fromEnv, flags)
}

// checkInput verifies that the input file exists.
func checkInput(path string) error {
	if path == "" {
		return fmt.Errorf("%w: input is required (use -i)", config.ErrInvalid)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("cannot access input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}
	return nil
}
