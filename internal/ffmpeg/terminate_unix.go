//go:build !windows

package ffmpeg

import (
	"os"
	"syscall"
)

// terminate asks the child to exit. FFmpeg finalizes its outputs on SIGTERM;
// WaitDelay escalates to Kill if it does not.
func terminate(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
