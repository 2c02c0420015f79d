package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// appName is the directory name used under the user config directory.
const appName = "silence-remover"

// settingsFile is the name of the YAML settings file.
const settingsFile = "config.yaml"

// Dir returns the configuration directory path.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/silence-remover.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// ExpandPath expands a leading ~/ to the user's home directory.
func ExpandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[2:])
	}
	return p
}

// DefaultOutputPath derives an output path next to input:
// "talk.mp4" becomes "talk-trimmed.mp4".
func DefaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return filepath.Clean(strings.TrimSuffix(input, ext) + "-trimmed" + ext)
}

// WritableDir checks that d is a directory the process can write to,
// creating it when missing.
func WritableDir(d string) error {
	if d == "" {
		return fmt.Errorf("%w: directory cannot be empty", ErrInvalid)
	}
	d = ExpandPath(d)

	info, err := os.Stat(d)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("cannot access directory: %w", err)
		}
		if err := os.MkdirAll(d, 0o750); err != nil { // #nosec G301 -- user work dir
			return fmt.Errorf("cannot create directory: %w", err)
		}
		return nil
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: not a directory: %s", ErrInvalid, d)
	}

	f, err := os.CreateTemp(d, ".silence-remover-write-test-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %w", err)
	}
	name := f.Name()
	closeErr := f.Close()
	_ = os.Remove(name)
	if closeErr != nil {
		return fmt.Errorf("directory is not writable: %w", closeErr)
	}
	return nil
}
