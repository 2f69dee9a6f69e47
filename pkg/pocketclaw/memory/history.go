// Package memory – history.go keeps the bounded conversation log.
// The file stores the most recent MaxStoredEntries; only the last
// ContextWindow entries are handed to the LLM as context.
package memory

import (
	"time"

	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/storage"
)

const (
	// MaxStoredEntries is how many history entries survive on disk.
	MaxStoredEntries = 30

	// ContextWindow is how many recent entries feed the LLM context.
	ContextWindow = 12
)

// HistoryEntry is one conversation message.
type HistoryEntry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryLog persists the rolling conversation history.
type HistoryLog struct {
	doc *storage.Document[[]HistoryEntry]
	now func() time.Time
}

// NewHistoryLog creates a history log backed by the given path.
func NewHistoryLog(path string) (*HistoryLog, error) {
	doc, err := storage.NewDocument[[]HistoryEntry](path)
	if err != nil {
		return nil, err
	}
	return &HistoryLog{doc: doc, now: time.Now}, nil
}

// SetClock overrides the log's time source. Test hook.
func (h *HistoryLog) SetClock(now func() time.Time) {
	h.now = now
}

// Append adds an entry and trims the log to MaxStoredEntries, dropping
// the oldest entries silently.
func (h *HistoryLog) Append(role, content string) error {
	entries := h.doc.Load(nil)
	entries = append(entries, HistoryEntry{
		Role:      role,
		Content:   content,
		Timestamp: h.now(),
	})
	if len(entries) > MaxStoredEntries {
		entries = entries[len(entries)-MaxStoredEntries:]
	}
	return h.doc.Save(entries)
}

// Recent returns the last ContextWindow entries, oldest first.
func (h *HistoryLog) Recent() []HistoryEntry {
	entries := h.doc.Load(nil)
	if len(entries) > ContextWindow {
		entries = entries[len(entries)-ContextWindow:]
	}
	return entries
}

// All returns every stored entry, oldest first.
func (h *HistoryLog) All() []HistoryEntry {
	return h.doc.Load(nil)
}
