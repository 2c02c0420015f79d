package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// EnvPrefix prefixes every environment variable read by LoadEnv.
const EnvPrefix = "SILENCE_REMOVER_"

// Overrides is one layer of optional settings: the settings file, the
// environment, or command-line flags. A nil field leaves the value of the
// layer below unchanged.
type Overrides struct {
	FFmpegPath          *string  `yaml:"ffmpeg,omitempty" env:"FFMPEG, noinit"`
	MinSegmentLength    *float64 `yaml:"min-segment-length,omitempty" env:"MIN_SEGMENT_LENGTH, noinit" validate:"omitempty,gte=0"`
	NoiseToleranceDB    *float64 `yaml:"noise-tolerance,omitempty" env:"NOISE_TOLERANCE, noinit" validate:"omitempty,lte=0"`
	MaxVolume           *float64 `yaml:"max-volume,omitempty" env:"MAX_VOLUME, noinit" validate:"omitempty,gt=0,lte=1"`
	Padding             *float64 `yaml:"padding,omitempty" env:"PADDING, noinit" validate:"omitempty,gte=0"`
	AudioOnly           *bool    `yaml:"audio-only,omitempty" env:"AUDIO_ONLY, noinit"`
	MaxThreads          *int     `yaml:"max-threads,omitempty" env:"MAX_THREADS, noinit" validate:"omitempty,gte=0"`
	ThreadsPerSegment   *int     `yaml:"threads-per-segment,omitempty" env:"THREADS_PER_SEGMENT, noinit" validate:"omitempty,gte=0"`
	SegmentsPerInstance *int     `yaml:"segments-per-instance,omitempty" env:"SEGMENTS_PER_INSTANCE, noinit" validate:"omitempty,gte=1"`
	TempDir             *string  `yaml:"temp-dir,omitempty" env:"TEMP_DIR, noinit"`
	KeepTemp            *bool    `yaml:"keep-temp,omitempty" env:"KEEP_TEMP, noinit"`
	LogLevel            *string  `yaml:"log-level,omitempty" env:"LOG_LEVEL, noinit" validate:"omitempty,oneof=debug info warn warning error"`
	LogFormat           *string  `yaml:"log-format,omitempty" env:"LOG_FORMAT, noinit" validate:"omitempty,oneof=text json"`
	S3Bucket            *string  `yaml:"s3-bucket,omitempty" env:"S3_BUCKET, noinit"`
	S3Region            *string  `yaml:"s3-region,omitempty" env:"S3_REGION, noinit"`
	S3Endpoint          *string  `yaml:"s3-endpoint,omitempty" env:"S3_ENDPOINT, noinit"`
	S3Prefix            *string  `yaml:"s3-prefix,omitempty" env:"S3_PREFIX, noinit"`
}

// Merge returns o with every non-nil field of over applied on top.
func (o Overrides) Merge(over Overrides) Overrides {
	o.FFmpegPath = pick(o.FFmpegPath, over.FFmpegPath)
	o.MinSegmentLength = pick(o.MinSegmentLength, over.MinSegmentLength)
	o.NoiseToleranceDB = pick(o.NoiseToleranceDB, over.NoiseToleranceDB)
	o.MaxVolume = pick(o.MaxVolume, over.MaxVolume)
	o.Padding = pick(o.Padding, over.Padding)
	o.AudioOnly = pick(o.AudioOnly, over.AudioOnly)
	o.MaxThreads = pick(o.MaxThreads, over.MaxThreads)
	o.ThreadsPerSegment = pick(o.ThreadsPerSegment, over.ThreadsPerSegment)
	o.SegmentsPerInstance = pick(o.SegmentsPerInstance, over.SegmentsPerInstance)
	o.TempDir = pick(o.TempDir, over.TempDir)
	o.KeepTemp = pick(o.KeepTemp, over.KeepTemp)
	o.LogLevel = pick(o.LogLevel, over.LogLevel)
	o.LogFormat = pick(o.LogFormat, over.LogFormat)
	o.S3Bucket = pick(o.S3Bucket, over.S3Bucket)
	o.S3Region = pick(o.S3Region, over.S3Region)
	o.S3Endpoint = pick(o.S3Endpoint, over.S3Endpoint)
	o.S3Prefix = pick(o.S3Prefix, over.S3Prefix)
	return o
}

// Validate checks the values that are set.
func (o Overrides) Validate() error {
	return validateStruct(o)
}

func pick[T any](base, over *T) *T {
	if over != nil {
		return over
	}
	return base
}

// Ptr returns a pointer to v, for building Overrides literals.
func Ptr[T any](v T) *T {
	return &v
}

// lookupFunc adapts a function such as os.LookupEnv to envconfig.Lookuper.
type lookupFunc func(key string) (string, bool)

func (f lookupFunc) Lookup(key string) (string, bool) { return f(key) }

// LoadEnv reads the SILENCE_REMOVER_* variables through lookup.
// Unset variables leave their fields nil.
func LoadEnv(ctx context.Context, lookup func(string) (string, bool)) (Overrides, error) {
	var o Overrides
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &o,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, lookupFunc(lookup)),
	})
	if err != nil {
		return Overrides{}, fmt.Errorf("environment: %w", err)
	}
	if err := o.Validate(); err != nil {
		return Overrides{}, fmt.Errorf("environment: %w", err)
	}
	return o, nil
}
