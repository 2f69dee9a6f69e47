// Package storage provides whole-document JSON persistence for the
// agent's small data files (tasks, memory, history, poller state).
// Each document is owned by a single repository object with explicit
// Load/Save operations; concurrent writers are not a concern because
// the runtime is a single-threaded polling loop.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Document persists a single JSON value at a fixed path.
// Load falls back to a caller-supplied default when the file is
// missing or unreadable; a corrupt store must never take the agent down.
type Document[T any] struct {
	path string
	mu   sync.Mutex
}

// NewDocument creates a document store at the given path, creating the
// parent directory if it doesn't exist.
func NewDocument[T any](path string) (*Document[T], error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &Document[T]{path: path}, nil
}

// Path returns the backing file path.
func (d *Document[T]) Path() string {
	return d.path
}

// Load reads and parses the document. Missing or corrupt files yield
// the provided default value and no error.
func (d *Document[T]) Load(def T) T {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := os.ReadFile(d.path)
	if err != nil {
		return def
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return def
	}
	return v
}

// Save writes the document, replacing any previous content.
func (d *Document[T]) Save(v T) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling document: %w", err)
	}

	// Write to a sibling temp file and rename so a crash mid-write
	// can't leave a truncated document behind.
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing document: %w", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		return fmt.Errorf("replacing document: %w", err)
	}
	return nil
}

// Exists reports whether the backing file is present on disk.
func (d *Document[T]) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}
