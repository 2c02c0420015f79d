package encode

import (
	"context"
	"os"
)

// runner executes FFmpeg and returns its combined output.
// *ffmpeg.Runner satisfies it.
type runner interface {
	Run(ctx context.Context, path string, args []string) ([]byte, error)
}

// fileSystem is the subset of file operations the splitter and the
// concatenator need.
type fileSystem interface {
	Stat(name string) (os.FileInfo, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	Remove(name string) error
}

// --- Default implementations using real OS functions ---

// osFileSystem implements fileSystem with the os package.
type osFileSystem struct{}

func (osFileSystem) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (osFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (osFileSystem) Remove(name string) error {
	return os.Remove(name)
}
