package agent

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestAudit(t *testing.T) *AuditLog {
	t.Helper()
	audit, err := OpenAuditLog(filepath.Join(t.TempDir(), "audit.db"), testLogger())
	if err != nil {
		t.Fatalf("OpenAuditLog: %v", err)
	}
	t.Cleanup(func() { audit.Close() })
	return audit
}

func TestAuditRecordAndRecent(t *testing.T) {
	audit := openTestAudit(t)

	audit.Record("send_sms", "conversation", map[string]any{"number": "+47"}, "SMS sent to +47")
	audit.Record("get_battery_status", "scheduler", nil, `{"percentage": 80}`)

	if got := audit.Count(); got != 2 {
		t.Errorf("Count = %d, want 2", got)
	}

	entries := audit.Recent(10)
	if len(entries) != 2 {
		t.Fatalf("Recent = %d entries, want 2", len(entries))
	}
	// Newest first.
	if !strings.Contains(entries[0], "get_battery_status") {
		t.Errorf("entry 0 = %q", entries[0])
	}
	if !strings.Contains(entries[1], "caller=conversation") {
		t.Errorf("entry 1 = %q", entries[1])
	}
}

func TestAuditPruneDropsOldEntries(t *testing.T) {
	audit := openTestAudit(t)

	old := time.Now().AddDate(0, 0, -(AuditRetentionDays + 5))
	audit.now = func() time.Time { return old }
	audit.Record("get_location", "scheduler", nil, "stale")

	audit.now = time.Now
	audit.Record("get_location", "scheduler", nil, "fresh")

	removed, err := audit.Prune()
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if got := audit.Count(); got != 1 {
		t.Errorf("Count after prune = %d, want 1", got)
	}
}

func TestExecutorWritesAudit(t *testing.T) {
	audit := openTestAudit(t)
	e := NewToolExecutor(testLogger())
	e.SetAuditLog(audit)
	e.Register(MakeToolDefinition("echo", "echo", nil),
		func(_ context.Context, args map[string]any) (any, error) {
			return args["text"], nil
		},
	)

	ctx := ContextWithCaller(context.Background(), "scheduler")
	e.Dispatch(ctx, "echo", map[string]any{"text": "hi"})
	// Unknown tools are audited too.
	e.Dispatch(ctx, "ghost", nil)

	if got := audit.Count(); got != 2 {
		t.Errorf("Count = %d, want 2", got)
	}
	entries := audit.Recent(2)
	if !strings.Contains(entries[0], "tool=ghost") {
		t.Errorf("entry 0 = %q", entries[0])
	}
}
