package config

import "os"

// Built-in defaults. Durations are in seconds.
const (
	DefaultMinSegmentLength    = 0.4
	DefaultNoiseToleranceDB    = -50.0
	DefaultMaxVolume           = 0.3
	DefaultPadding             = 0.2
	DefaultSegmentsPerInstance = 4
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
)

// Project is the resolved configuration of one run. It is built once by
// Resolve and only read afterwards.
type Project struct {
	InputFile  string `flag:"input" validate:"required"`
	OutputFile string `flag:"output" validate:"required,nefield=InputFile"`
	FFmpegPath string `flag:"ffmpeg"`

	// MinSegmentLength is the shortest silence, in seconds, that is removed.
	// Shorter silences stay in the output.
	MinSegmentLength float64 `flag:"min-segment-length" validate:"gte=0"`
	// NoiseToleranceDB is the silence threshold. Zero selects MaxVolume.
	NoiseToleranceDB float64 `flag:"noise-tolerance" validate:"lte=0"`
	// MaxVolume is the silence threshold as an amplitude ratio.
	MaxVolume float64 `flag:"max-volume" validate:"gt=0,lte=1"`
	// Padding is the audible margin, in seconds, kept around each interval.
	Padding   float64 `flag:"padding" validate:"gte=0"`
	AudioOnly bool    `flag:"audio-only"`

	MaxThreads          int `flag:"max-threads" validate:"gte=1"`
	ThreadsPerSegment   int `flag:"threads-per-segment" validate:"gte=1,ltefield=MaxThreads"`
	SegmentsPerInstance int `flag:"segments-per-instance" validate:"gte=1"`

	TempDir  string `flag:"temp-dir"`
	KeepTemp bool   `flag:"keep-temp"`

	LogLevel  string `flag:"log-level" validate:"oneof=debug info warn warning error"`
	LogFormat string `flag:"log-format" validate:"oneof=text json"`

	S3Bucket   string `flag:"s3-bucket"`
	S3Region   string `flag:"s3-region" validate:"required_with=S3Bucket"`
	S3Endpoint string `flag:"s3-endpoint"`
	S3Prefix   string `flag:"s3-prefix"`
}

// DefaultMaxThreads returns half the available CPUs, at least 1.
func DefaultMaxThreads(cpus int) int {
	return max(1, cpus/2)
}

// DefaultThreadsPerSegment returns half of maxThreads, at least 1.
func DefaultThreadsPerSegment(maxThreads int) int {
	return max(1, maxThreads/2)
}

// Resolve builds and validates the Project for input and output. Layers
// are applied in order, so later layers win: pass the settings file, then
// the environment, then flags. A thread count of 0 in any layer means
// "derive from cpus".
func Resolve(input, output string, cpus int, layers ...Overrides) (Project, error) {
	var o Overrides
	for _, l := range layers {
		o = o.Merge(l)
	}

	p := Project{
		InputFile:           ExpandPath(input),
		OutputFile:          ExpandPath(output),
		FFmpegPath:          deref(o.FFmpegPath, ""),
		MinSegmentLength:    deref(o.MinSegmentLength, DefaultMinSegmentLength),
		NoiseToleranceDB:    deref(o.NoiseToleranceDB, DefaultNoiseToleranceDB),
		MaxVolume:           deref(o.MaxVolume, DefaultMaxVolume),
		Padding:             deref(o.Padding, DefaultPadding),
		AudioOnly:           deref(o.AudioOnly, false),
		MaxThreads:          deref(o.MaxThreads, 0),
		ThreadsPerSegment:   deref(o.ThreadsPerSegment, 0),
		SegmentsPerInstance: deref(o.SegmentsPerInstance, DefaultSegmentsPerInstance),
		TempDir:             ExpandPath(deref(o.TempDir, "")),
		KeepTemp:            deref(o.KeepTemp, false),
		LogLevel:            deref(o.LogLevel, DefaultLogLevel),
		LogFormat:           deref(o.LogFormat, DefaultLogFormat),
		S3Bucket:            deref(o.S3Bucket, ""),
		S3Region:            deref(o.S3Region, ""),
		S3Endpoint:          deref(o.S3Endpoint, ""),
		S3Prefix:            deref(o.S3Prefix, ""),
	}
	if p.OutputFile == "" && p.InputFile != "" {
		p.OutputFile = DefaultOutputPath(p.InputFile)
	}
	if p.MaxThreads <= 0 {
		p.MaxThreads = DefaultMaxThreads(cpus)
	}
	if p.ThreadsPerSegment <= 0 {
		p.ThreadsPerSegment = DefaultThreadsPerSegment(p.MaxThreads)
	}
	if p.TempDir == "" {
		p.TempDir = os.TempDir()
	}

	if err := p.Validate(); err != nil {
		return Project{}, err
	}
	return p, nil
}

// Validate checks every field against its allowed range.
func (p Project) Validate() error {
	return validateStruct(p)
}

// MaxWorkers is how many encoder subprocesses may run at once.
func (p Project) MaxWorkers() int {
	return max(1, p.MaxThreads/max(1, p.ThreadsPerSegment))
}

func deref[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}
