package ffmpeg

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates the FFmpeg binary could not be located.
var ErrNotFound = errors.New("ffmpeg not found")

// ErrSubprocess matches every *SubprocessError via errors.Is.
var ErrSubprocess = errors.New("ffmpeg subprocess failed")

// SubprocessError reports a failed FFmpeg invocation: a launch failure,
// an I/O failure while collecting its output, or a non-zero exit code.
// Output holds the tail of the combined stdout/stderr stream.
type SubprocessError struct {
	Path     string
	Args     []string
	ExitCode int // -1 when the process never started or was killed by a signal
	Output   string
	Err      error
}

func (e *SubprocessError) Error() string {
	var b strings.Builder
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, "ffmpeg exited with code %d", e.ExitCode)
	} else {
		b.WriteString("ffmpeg")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		fmt.Fprintf(&b, "\nOutput: %s", out)
	}
	return b.String()
}

func (e *SubprocessError) Unwrap() error { return e.Err }

// Is reports ErrSubprocess as a match so callers can test the category
// without a type assertion.
func (e *SubprocessError) Is(target error) bool { return target == ErrSubprocess }
