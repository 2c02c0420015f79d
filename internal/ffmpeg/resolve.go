package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
)

const (
	// binaryName is the base name of the ffmpeg binary.
	binaryName = "ffmpeg"

	// minFFmpegMajorVersion is the minimum supported ffmpeg version.
	// Older builds lack the -ignore_unknown and concat demuxer behavior we rely on.
	minFFmpegMajorVersion = 4
)

// Environment variable for custom ffmpeg path.
const envFFmpegPath = "FFMPEG_PATH"

// ---------------------------------------------------------------------------
// Resolver - testable FFmpeg resolution with dependency injection
// ---------------------------------------------------------------------------

// Resolver finds the FFmpeg executable.
type Resolver struct {
	files fileStatter
	env   envProvider
	goos  string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithFileStatter sets the file statter implementation.
func WithFileStatter(s fileStatter) ResolverOption {
	return func(res *Resolver) { res.files = s }
}

// WithEnvProvider sets the environment provider implementation.
func WithEnvProvider(e envProvider) ResolverOption {
	return func(res *Resolver) { res.env = e }
}

// WithPlatform sets the target OS (for testing cross-platform behavior).
func WithPlatform(goos string) ResolverOption {
	return func(res *Resolver) { res.goos = goos }
}

// NewResolver creates a Resolver with the given options.
// Uses production defaults if no options are provided.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		files: osFileStatter{},
		env:   osEnvProvider{},
		goos:  runtime.GOOS,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve finds ffmpeg using the following precedence:
//  1. explicit path (from --ffmpeg or the settings file)
//  2. FFMPEG_PATH environment variable
//  3. System PATH
//
// A configured path that does not exist is an error, never a silent fallback.
func (r *Resolver) Resolve(_ context.Context, explicit string) (string, error) {
	if explicit != "" {
		if _, err := r.files.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %q does not exist", ErrNotFound, explicit)
		}
		return explicit, nil
	}

	if envPath := r.env.Getenv(envFFmpegPath); envPath != "" {
		if _, err := r.files.Stat(envPath); err != nil {
			return "", fmt.Errorf("%w: %s is set to %q but binary not found",
				ErrNotFound, envFFmpegPath, envPath)
		}
		return envPath, nil
	}

	if path, err := r.env.LookPath(binaryName); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%w in PATH\n\n%s", ErrNotFound, r.manualInstallInstructions())
}

// manualInstallInstructions returns platform-specific instructions.
func (r *Resolver) manualInstallInstructions() string {
	switch r.goos {
	case "darwin":
		return `To install FFmpeg:
  brew install ffmpeg

Or set FFMPEG_PATH environment variable to your ffmpeg binary.`
	case "linux":
		return `To install FFmpeg:
  Ubuntu/Debian: sudo apt install ffmpeg
  Fedora:        sudo dnf install ffmpeg
  Arch:          sudo pacman -S ffmpeg

Or set FFMPEG_PATH environment variable to your ffmpeg binary.`
	case "windows":
		return `To install FFmpeg:
  winget install ffmpeg

Or set FFMPEG_PATH environment variable to your ffmpeg.exe.`
	default:
		return `To install FFmpeg, download it from https://ffmpeg.org/download.html
Or set FFMPEG_PATH environment variable to your ffmpeg binary.`
	}
}

// ---------------------------------------------------------------------------
// VersionChecker
// ---------------------------------------------------------------------------

// outputRunner runs a command and returns its combined output.
type outputRunner interface {
	Run(ctx context.Context, path string, args []string) ([]byte, error)
}

// VersionChecker verifies FFmpeg version requirements.
type VersionChecker struct {
	runner outputRunner
	stderr io.Writer
}

// VersionCheckerOption configures a VersionChecker.
type VersionCheckerOption func(*VersionChecker)

// WithVersionRunner sets the runner used to invoke ffmpeg -version.
func WithVersionRunner(r outputRunner) VersionCheckerOption {
	return func(vc *VersionChecker) { vc.runner = r }
}

// WithVersionStderr sets the writer for warning messages.
func WithVersionStderr(w io.Writer) VersionCheckerOption {
	return func(vc *VersionChecker) { vc.stderr = w }
}

// NewVersionChecker creates a VersionChecker with the given options.
func NewVersionChecker(opts ...VersionCheckerOption) *VersionChecker {
	vc := &VersionChecker{
		runner: getDefaultRunner(),
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(vc)
	}
	return vc
}

// Check verifies that ffmpeg meets minimum version requirements.
// Prints a warning to stderr if version is below minimum but doesn't fail.
// Returns true if version was successfully checked, false if parsing failed.
func (vc *VersionChecker) Check(ctx context.Context, ffmpegPath string) bool {
	output, err := vc.runner.Run(ctx, ffmpegPath, []string{"-version"})
	if err != nil && len(output) == 0 {
		return false
	}

	first, _, _ := strings.Cut(string(output), "\n")
	if first == "" {
		return false
	}

	var major int
	if _, err := fmt.Sscanf(first, "ffmpeg version %d", &major); err != nil {
		// Git builds print "ffmpeg version n6.1.1-..."
		if _, err := fmt.Sscanf(first, "ffmpeg version n%d", &major); err != nil {
			return false
		}
	}

	if major < minFFmpegMajorVersion {
		fmt.Fprintf(vc.stderr, "Warning: ffmpeg version %d detected, version %d+ recommended\n",
			major, minFFmpegMajorVersion)
	}
	return true
}

// ---------------------------------------------------------------------------
// Package-level functions
// ---------------------------------------------------------------------------

var (
	defaultRunner     *Runner
	defaultRunnerOnce sync.Once
)

// getDefaultRunner returns the lazily-initialized default runner.
func getDefaultRunner() *Runner {
	defaultRunnerOnce.Do(func() {
		defaultRunner = NewRunner()
	})
	return defaultRunner
}

// Resolve finds ffmpeg using a default Resolver.
func Resolve(ctx context.Context, explicit string) (string, error) {
	return NewResolver().Resolve(ctx, explicit)
}

// CheckVersion verifies that ffmpeg meets minimum version requirements.
func CheckVersion(ctx context.Context, ffmpegPath string) {
	NewVersionChecker().Check(ctx, ffmpegPath)
}
