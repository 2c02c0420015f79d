package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alnah/silence-remover/internal/cli"
	"github.com/alnah/silence-remover/internal/config"
	"github.com/alnah/silence-remover/internal/encode"
	"github.com/alnah/silence-remover/internal/ffmpeg"
	"github.com/alnah/silence-remover/internal/interrupt"
	"github.com/alnah/silence-remover/internal/remover"
	"github.com/alnah/silence-remover/internal/silence"
	"github.com/alnah/silence-remover/internal/storage"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	ExitOK         = 0
	ExitGeneral    = 1
	ExitUsage      = 2
	ExitSetup      = 3
	ExitValidation = 4
	ExitProcessing = 5
	ExitConcat     = 6
	ExitInterrupt  = interrupt.ExitInterrupt
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	handler, ctx := interrupt.NewHandler(context.Background())
	defer handler.Stop()

	env := cli.NewEnv(cli.WithVersion(version))
	rootCmd := newRootCmd(env)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		code := exitCode(err)
		if handler.WasInterrupted() {
			code = ExitInterrupt
		}
		fmt.Fprintln(os.Stderr, err)
		handler.Stop()
		os.Exit(code)
	}
}

func newRootCmd(env *cli.Env) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "silence-remover",
		Short:   "Cut silent stretches out of audio and video files with parallel FFmpeg workers",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		// Errors are printed by main with their exit code.
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.AddCommand(cli.ProcessCmd(env))
	rootCmd.AddCommand(cli.DetectCmd(env))
	rootCmd.AddCommand(cli.ConfigCmd(env))
	return rootCmd
}

// exitCode maps errors to exit codes. Sentinels are checked before the
// usage patterns because subprocess output can contain the same words.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, interrupt.ErrInterrupted) {
		return ExitInterrupt
	}

	// The output exists locally; only the upload failed.
	if errors.Is(err, remover.ErrPublishFailed) {
		return ExitGeneral
	}

	if errors.Is(err, ffmpeg.ErrNotFound) || errors.Is(err, storage.ErrS3NotConfigured) {
		return ExitSetup
	}

	if errors.Is(err, cli.ErrFileNotFound) || errors.Is(err, cli.ErrOutputExists) ||
		errors.Is(err, config.ErrInvalid) || errors.Is(err, config.ErrUnknownKey) ||
		errors.Is(err, remover.ErrNothingAudible) {
		return ExitValidation
	}

	// Concat wraps the subprocess error, so it is checked first.
	if errors.Is(err, encode.ErrConcatFailed) || errors.Is(err, encode.ErrNothingToConcat) {
		return ExitConcat
	}

	if errors.Is(err, ffmpeg.ErrSubprocess) || errors.Is(err, silence.ErrDetectionFailed) ||
		errors.Is(err, silence.ErrNoDuration) || errors.Is(err, encode.ErrEmptyBatch) {
		return ExitProcessing
	}

	if isCobraUsageError(err) {
		return ExitUsage
	}

	return ExitGeneral
}

// cobraUsageErrorPatterns contains error message substrings that indicate Cobra usage errors.
// Cobra doesn't expose typed errors, so string matching is the only reliable approach.
var cobraUsageErrorPatterns = []string{
	"required flag",             // Missing required flag
	"unknown flag",              // Flag doesn't exist
	"unknown shorthand",         // Short flag doesn't exist
	"unknown command",           // Subcommand doesn't exist
	"flag needs an argument",    // Flag provided without value
	"invalid argument",          // Invalid flag value type
	"if any flags in the group", // Mutually exclusive flag violation
	"accepts ",                  // Wrong number of arguments (e.g., "accepts 1 arg(s)")
	"requires at least",         // Too few arguments
	"requires at most",          // Too many arguments
}

// isCobraUsageError checks if an error is a Cobra usage/parsing error.
func isCobraUsageError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
