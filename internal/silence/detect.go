package silence

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/alnah/silence-remover/internal/ffmpeg"
)

// Default detection parameters.
const (
	// DefaultNoiseToleranceDB is the level below which audio counts as silence.
	DefaultNoiseToleranceDB = -50.0

	// DefaultMaxVolume is the amplitude ratio threshold, used only when the
	// dB tolerance is zero.
	DefaultMaxVolume = 0.3

	// DefaultMinSilence is the shortest silence, in seconds, worth removing.
	DefaultMinSilence = 0.4
)

// streamer runs a command and streams its combined output.
type streamer interface {
	Stream(ctx context.Context, path string, args []string, consume func(io.Reader) error) error
}

// Detection is the parsed result of one silencedetect pass.
type Detection struct {
	Events   []Event
	Duration float64 // media duration in seconds
}

// Intervals computes the audible intervals of the detection.
func (d Detection) Intervals(minSegmentLength, padding float64) []Interval {
	return Compute(slices.Values(d.Events), d.Duration, minSegmentLength, padding)
}

// Detector runs FFmpeg's silencedetect filter over a media file.
type Detector struct {
	ffmpegPath string
	noiseDB    float64
	maxVolume  float64
	minSilence float64
	runner     streamer
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithNoiseDB sets the silence threshold in dB. Zero switches the detector
// to the amplitude threshold set by WithMaxVolume.
func WithNoiseDB(db float64) DetectorOption {
	return func(d *Detector) { d.noiseDB = db }
}

// WithMaxVolume sets the amplitude ratio threshold.
func WithMaxVolume(ratio float64) DetectorOption {
	return func(d *Detector) { d.maxVolume = ratio }
}

// WithMinSilence sets the minimum silence duration in seconds.
func WithMinSilence(seconds float64) DetectorOption {
	return func(d *Detector) { d.minSilence = seconds }
}

// WithStreamer sets the subprocess runner.
func WithStreamer(r streamer) DetectorOption {
	return func(d *Detector) { d.runner = r }
}

// NewDetector creates a Detector with functional options.
func NewDetector(ffmpegPath string, opts ...DetectorOption) *Detector {
	d := &Detector{
		ffmpegPath: ffmpegPath,
		noiseDB:    DefaultNoiseToleranceDB,
		maxVolume:  DefaultMaxVolume,
		minSilence: DefaultMinSilence,
		runner:     ffmpeg.NewRunner(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Args returns the FFmpeg arguments of the detection pass.
func (d *Detector) Args(input string) []string {
	return []string{
		"-hide_banner",
		"-nostats",
		"-i", input,
		"-af", d.filter(),
		"-f", "null",
		"-",
	}
}

// filter builds the silencedetect filter expression.
func (d *Detector) filter() string {
	noise := formatFloat(d.noiseDB) + "dB"
	if d.noiseDB == 0 {
		noise = formatFloat(d.maxVolume)
	}
	return fmt.Sprintf("silencedetect=noise=%s:d=%s", noise, formatFloat(d.minSilence))
}

// Detect analyzes input and returns its silence events and duration.
func (d *Detector) Detect(ctx context.Context, input string) (Detection, error) {
	var det Detection
	var duration float64
	var hasDuration bool

	err := d.runner.Stream(ctx, d.ffmpegPath, d.Args(input), func(r io.Reader) error {
		sc := NewScanner(r)
		det.Events = slices.Collect(sc.Events())
		duration, hasDuration = sc.Duration()
		return sc.Err()
	})
	if err != nil {
		return Detection{}, fmt.Errorf("%w: %w", ErrDetectionFailed, err)
	}
	if !hasDuration {
		return Detection{}, fmt.Errorf("%w: %w", ErrDetectionFailed, ErrNoDuration)
	}

	det.Duration = duration
	return det, nil
}

// formatFloat renders v in the shortest decimal form that round-trips.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
