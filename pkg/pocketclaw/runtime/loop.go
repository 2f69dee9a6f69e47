// Package runtime drives the agent's single-threaded polling loop.
// Every tick runs the scheduler's due pass, then checks the inbox for
// an owner instruction, then fires the maintenance routine when its
// cron schedule comes around. Nothing in here runs concurrently: the
// JSON documents have exactly one writer at any moment.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/agent"
)

// TaskRunner is the scheduler surface the loop drives.
type TaskRunner interface {
	RunDuePass(ctx context.Context) int
	Prune() (int, error)
}

// CommandSource is the inbox surface the loop polls.
type CommandSource interface {
	SyncInbox(ctx context.Context)
	CheckForCommand(ctx context.Context) (string, bool)
}

// InstructionHandler runs one owner instruction to completion.
type InstructionHandler interface {
	ProcessInstruction(ctx context.Context, instruction string) string
}

// AuditPruner trims the audit log during maintenance.
type AuditPruner interface {
	Prune() (int64, error)
}

// DateRefresher pins the short-term memory to the current date during
// maintenance.
type DateRefresher interface {
	RefreshDate() error
}

// cronParser accepts standard 5-field cron expressions plus the
// @daily/@hourly descriptors.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Loop is the agent's main polling loop.
type Loop struct {
	tasks     TaskRunner
	inbox     CommandSource
	handler   InstructionHandler
	audit     AuditPruner
	refresher DateRefresher
	interval  time.Duration

	maintenance     cron.Schedule
	nextMaintenance time.Time

	now    func() time.Time
	logger *slog.Logger
}

// New creates the polling loop. maintenanceExpr is a cron expression
// evaluated inside the tick; audit may be nil.
func New(tasks TaskRunner, inbox CommandSource, handler InstructionHandler, audit AuditPruner, interval time.Duration, maintenanceExpr string, logger *slog.Logger) (*Loop, error) {
	schedule, err := cronParser.Parse(maintenanceExpr)
	if err != nil {
		return nil, fmt.Errorf("parsing maintenance schedule %q: %w", maintenanceExpr, err)
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}

	l := &Loop{
		tasks:       tasks,
		inbox:       inbox,
		handler:     handler,
		audit:       audit,
		interval:    interval,
		maintenance: schedule,
		now:         time.Now,
		logger:      logger.With("component", "runtime"),
	}
	l.nextMaintenance = schedule.Next(l.now())
	return l, nil
}

// SetDateRefresher adds a short-term memory date refresh to the
// maintenance routine.
func (l *Loop) SetDateRefresher(r DateRefresher) {
	l.refresher = r
}

// SetClock overrides the loop's time source and re-anchors the
// maintenance schedule. Test hook.
func (l *Loop) SetClock(now func() time.Time) {
	l.now = now
	l.nextMaintenance = l.maintenance.Next(now())
}

// Run syncs the inbox and ticks until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("agent waking up, syncing inbox to ignore old messages")
	l.inbox.SyncInbox(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("polling started", "interval", l.interval)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("polling stopped")
			return ctx.Err()
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick runs one full pass: due tasks, inbox, maintenance. Exported so
// tests and the CLI can single-step the loop.
func (l *Loop) Tick(ctx context.Context) {
	l.tasks.RunDuePass(agent.ContextWithCaller(ctx, "scheduler"))

	if instruction, ok := l.inbox.CheckForCommand(ctx); ok {
		l.logger.Info("processing instruction", "chars", len(instruction))
		l.handler.ProcessInstruction(ctx, instruction)
	}

	if now := l.now(); !now.Before(l.nextMaintenance) {
		l.runMaintenance()
		l.nextMaintenance = l.maintenance.Next(now)
	}
}

// runMaintenance prunes spent tasks and old audit entries.
func (l *Loop) runMaintenance() {
	l.logger.Info("maintenance starting")

	if removed, err := l.tasks.Prune(); err != nil {
		l.logger.Warn("task prune failed", "error", err)
	} else if removed > 0 {
		l.logger.Info("spent tasks removed", "count", removed)
	}

	if l.audit != nil {
		if _, err := l.audit.Prune(); err != nil {
			l.logger.Warn("audit prune failed", "error", err)
		}
	}

	if l.refresher != nil {
		if err := l.refresher.RefreshDate(); err != nil {
			l.logger.Warn("date refresh failed", "error", err)
		}
	}
}
