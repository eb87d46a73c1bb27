package exporter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrExists is returned when a target file exists and force is off.
var ErrExists = errors.New("file exists")

// PlannedFile describes a file WriteArtifact writes.
type PlannedFile struct {
	Path string
	Size int
}

// Plan lists the files WriteArtifact would write for path: the source and,
// in module mode, go.mod next to it.
func Plan(path string, art *Artifact) []PlannedFile {
	planned := []PlannedFile{{Path: path, Size: len(art.Source)}}
	if art.GoMod != nil {
		planned = append(planned, PlannedFile{Path: filepath.Join(filepath.Dir(path), "go.mod"), Size: len(art.GoMod)})
	}
	return planned
}

// WriteArtifact writes the planned files and returns their paths. Without
// force it fails with ErrExists before writing anything if any target exists.
func WriteArtifact(path string, art *Artifact, force bool) ([]string, error) {
	if art == nil {
		return nil, fmt.Errorf("exporter: nil artifact")
	}
	planned := Plan(path, art)
	contents := [][]byte{art.Source, art.GoMod}
	if !force {
		for _, pf := range planned {
			if _, err := os.Stat(pf.Path); err == nil {
				return nil, fmt.Errorf("%w: %s (use --force to overwrite)", ErrExists, pf.Path)
			}
		}
	}
	written := make([]string, 0, len(planned))
	for i, pf := range planned {
		if err := WriteFile(pf.Path, contents[i]); err != nil {
			return nil, err
		}
		written = append(written, pf.Path)
	}
	return written, nil
}

// WriteFile writes data atomically via a temp file and rename.
func WriteFile(path string, data []byte) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := abs + ".tmp-" + time.Now().Format("20060102150405")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp %s: %w", path, err)
	}
	if err := os.Rename(tmp, abs); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
