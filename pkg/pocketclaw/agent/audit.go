// Package agent – audit.go provides a SQLite-backed audit log of tool
// executions. Every dispatch is recorded with its origin and a trimmed
// args/result summary; the maintenance routine prunes old entries.
package agent

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver.
)

// auditSchema is the DDL executed on open (idempotent).
const auditSchema = `
CREATE TABLE IF NOT EXISTS tool_audit (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    tool           TEXT NOT NULL,
    caller         TEXT DEFAULT '',
    args_summary   TEXT DEFAULT '',
    result_summary TEXT DEFAULT '',
    created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tool_audit_created ON tool_audit(created_at);
`

// auditSummaryLimit caps stored args/result summaries.
const auditSummaryLimit = 500

// AuditRetentionDays is how long audit entries are kept before the
// maintenance prune removes them.
const AuditRetentionDays = 30

// AuditLog records tool executions in a local SQLite database.
type AuditLog struct {
	db     *sql.DB
	now    func() time.Time
	logger *slog.Logger
}

// OpenAuditLog opens (or creates) the audit database at the given path.
func OpenAuditLog(path string, logger *slog.Logger) (*AuditLog, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	if _, err := db.Exec(auditSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLog{
		db:     db,
		now:    time.Now,
		logger: logger.With("component", "audit"),
	}, nil
}

// Record writes one tool execution. Failures are logged and swallowed;
// auditing must never break a dispatch.
func (a *AuditLog) Record(tool, caller string, args map[string]any, result string) {
	argsSummary := summarizeArgs(args)
	resultSummary := truncateSummary(result)

	_, err := a.db.Exec(`
		INSERT INTO tool_audit (tool, caller, args_summary, result_summary, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		tool, caller, argsSummary, resultSummary,
		a.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		a.logger.Warn("audit write failed", "tool", tool, "error", err)
	}
}

// Count returns the total number of audit entries.
func (a *AuditLog) Count() int {
	var count int
	_ = a.db.QueryRow("SELECT COUNT(*) FROM tool_audit").Scan(&count)
	return count
}

// Recent returns the last n audit entries as formatted strings,
// newest first.
func (a *AuditLog) Recent(n int) []string {
	rows, err := a.db.Query(`
		SELECT tool, caller, args_summary, result_summary, created_at
		FROM tool_audit
		ORDER BY id DESC
		LIMIT ?`, n)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var entries []string
	for rows.Next() {
		var tool, caller, argsSummary, resultSummary, createdAt string
		if err := rows.Scan(&tool, &caller, &argsSummary, &resultSummary, &createdAt); err != nil {
			continue
		}
		entries = append(entries, fmt.Sprintf("[%s] tool=%s caller=%s args=%s result=%s",
			createdAt, tool, caller, argsSummary, resultSummary))
	}
	return entries
}

// Prune deletes entries older than the retention window and returns
// how many were removed. Called from the maintenance routine.
func (a *AuditLog) Prune() (int64, error) {
	cutoff := a.now().AddDate(0, 0, -AuditRetentionDays).UTC().Format(time.RFC3339)
	result, err := a.db.Exec("DELETE FROM tool_audit WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning audit log: %w", err)
	}
	removed, _ := result.RowsAffected()
	if removed > 0 {
		a.logger.Info("audit log pruned", "removed", removed)
	}
	return removed, nil
}

// Close closes the underlying database.
func (a *AuditLog) Close() error {
	return a.db.Close()
}

func summarizeArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return truncateSummary(string(b))
}

func truncateSummary(s string) string {
	if len(s) > auditSummaryLimit {
		return s[:auditSummaryLimit] + "...[truncated]"
	}
	return s
}
