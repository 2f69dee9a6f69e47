// Package scheduler – store.go persists the task list as a JSON file.
// Tasks are stored as an ordered array so firing order matches creation
// order across restarts.
package scheduler

import (
	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/storage"
)

// TaskStore is the persistence boundary for the scheduler.
type TaskStore interface {
	// Load returns all persisted tasks in stored order. A missing or
	// unreadable file yields an empty list.
	Load() []*Task

	// Save replaces the persisted task list.
	Save(tasks []*Task) error
}

// FileTaskStore persists tasks as a JSON array on disk.
type FileTaskStore struct {
	doc *storage.Document[[]*Task]
}

// NewFileTaskStore creates a file-backed task store at the given path.
func NewFileTaskStore(path string) (*FileTaskStore, error) {
	doc, err := storage.NewDocument[[]*Task](path)
	if err != nil {
		return nil, err
	}
	return &FileTaskStore{doc: doc}, nil
}

func (s *FileTaskStore) Load() []*Task {
	return s.doc.Load(nil)
}

func (s *FileTaskStore) Save(tasks []*Task) error {
	if tasks == nil {
		tasks = []*Task{}
	}
	return s.doc.Save(tasks)
}
