// Package sessionstore provides a typed, crash-safe view of a session's
// on-disk state (spec.md 4.1). One Store instance serves one active
// session. The session directory itself — not internal/sessionstore/index's
// SQLite cache — remains the single source of truth; a Store never reads
// through the index.
package sessionstore

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	tasksFilename          = "tasks.json"
	plannerFilename        = "planner.md"
	rollingContextFilename = "rolling_context.json"
	taskFailsFilename      = "task-fails.json"
	projectInfoFilename    = "project-info.md"
	metaFilename           = "meta.json"
	metadataFilename       = "metadata.json"
)

// Store reads and writes the seven files of one session directory.
type Store struct {
	dir string
}

// Dir returns the absolute path of the session directory this Store serves.
func (s *Store) Dir() string { return s.dir }

// open wraps dir in a Store without touching the filesystem; initialize and
// openExisting are the only ways callers are meant to obtain one.
func open(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// writeFile does a full-file-replacement write (spec.md 4.1's only
// atomicity guarantee: whatever write+rename or plain write gives the OS).
func (s *Store) writeFile(name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("sessionstore: creating %s: %w", s.dir, err)
	}
	path := s.path(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("sessionstore: writing %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("sessionstore: replacing %s: %w", name, err)
	}
	return nil
}

// readFileOptional returns the file contents, or (nil, nil) if it doesn't
// exist, matching spec.md 4.1's "read of a missing optional file returns
// the empty equivalent" guarantee. Callers interpret nil per-field.
func (s *Store) readFileOptional(name string) ([]byte, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("sessionstore: reading %s: %w", name, err)
	}
	return data, nil
}
