//go:build windows

package ffmpeg

import "os"

// terminate kills the child. Windows has no SIGTERM for console processes.
func terminate(p *os.Process) error {
	return p.Kill()
}
