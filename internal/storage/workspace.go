// Package storage manages the temporary segment workspace of a run and the
// optional upload of its final output to S3.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/alnah/silence-remover/internal/silence"
)

// workspacePrefix names every workspace directory.
const workspacePrefix = "silence-remover-"

// Workspace is a private directory holding the segments of one run.
type Workspace struct {
	dir string
	ext string
}

// NewWorkspace creates a unique directory under root. Segment files get the
// extension ext (".mp4" if empty). An empty root means os.TempDir().
func NewWorkspace(root, ext string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if ext == "" {
		ext = ".mp4"
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create temp root: %w", err)
	}

	dir := filepath.Join(root, workspacePrefix+uuid.NewString())
	if err := os.Mkdir(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{dir: dir, ext: ext}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// SegmentPath returns the file for the segment at index. Names sort in
// interval order.
func (w *Workspace) SegmentPath(index int, _ silence.Interval) string {
	return filepath.Join(w.dir, fmt.Sprintf("segment_%05d%s", index, w.ext))
}

// Remove deletes the workspace and everything in it.
func (w *Workspace) Remove() error {
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}
