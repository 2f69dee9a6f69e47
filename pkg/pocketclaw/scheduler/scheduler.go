// Package scheduler – scheduler.go drives task creation, cancellation,
// and the due-pass that fires tasks from the runtime loop.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Dispatcher executes a single tool action on behalf of a firing task.
// The contract is fail-soft: whatever goes wrong, the dispatcher returns
// a result string so the action sequence continues.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args map[string]any) string
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, name string, args map[string]any) string

func (f DispatcherFunc) Dispatch(ctx context.Context, name string, args map[string]any) string {
	return f(ctx, name, args)
}

// ScheduleRequest carries the parameters for a new task.
type ScheduleRequest struct {
	Name            string
	ScheduleType    string
	IntervalMinutes int
	DailyTime       string
	RunAt           string
	Actions         []Action
}

// Scheduler owns the task list. All operations load the list from the
// store, mutate it, and write it back, so external edits to the file
// between operations are picked up rather than clobbered.
type Scheduler struct {
	store    TaskStore
	dispatch Dispatcher
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

// New creates a Scheduler over the given store and dispatcher.
func New(store TaskStore, dispatch Dispatcher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    store,
		dispatch: dispatch,
		now:      time.Now,
		newID:    func() string { return "task_" + uuid.NewString() },
		logger:   logger.With("component", "scheduler"),
	}
}

// SetClock overrides the scheduler's time source. Test hook.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// SetIDFunc overrides task ID generation. Test hook.
func (s *Scheduler) SetIDFunc(newID func() string) {
	s.newID = newID
}

// Schedule validates the request, computes the first due time, and
// appends the new task to the store.
func (s *Scheduler) Schedule(req ScheduleRequest) (*Task, error) {
	if len(req.Actions) == 0 {
		return nil, ErrNoActions
	}

	now := s.now()
	task := &Task{
		ID:           s.newID(),
		Name:         req.Name,
		ScheduleType: req.ScheduleType,
		Actions:      req.Actions,
		Enabled:      true,
	}
	if task.Name == "" {
		task.Name = task.ID
	}
	if task.ScheduleType == "" {
		task.ScheduleType = TypeInterval
	}

	switch task.ScheduleType {
	case TypeInterval:
		if req.IntervalMinutes <= 0 {
			return nil, ErrInvalidInterval
		}
		task.IntervalMinutes = req.IntervalMinutes
		next := now.Add(time.Duration(req.IntervalMinutes) * time.Minute)
		task.NextRun = &next

	case TypeDaily:
		hour, minute, err := ParseDailyTime(req.DailyTime)
		if err != nil {
			return nil, err
		}
		task.DailyTime = req.DailyTime
		next := nextDailyOccurrence(now, hour, minute)
		task.NextRun = &next

	case TypeOnce:
		if req.RunAt == "" {
			return nil, ErrInvalidTimestamp
		}
		next, err := ParseRunAt(req.RunAt)
		if err != nil {
			return nil, err
		}
		task.RunAt = req.RunAt
		task.NextRun = &next

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidScheduleType, task.ScheduleType)
	}

	tasks := s.store.Load()
	tasks = append(tasks, task)
	if err := s.store.Save(tasks); err != nil {
		return nil, fmt.Errorf("persisting task: %w", err)
	}

	s.logger.Info("task scheduled",
		"id", task.ID,
		"name", task.Name,
		"type", task.ScheduleType,
		"next_run", task.NextRun,
	)
	return task, nil
}

// List returns all persisted tasks, enabled or not, in stored order.
func (s *Scheduler) List() []*Task {
	return s.store.Load()
}

// Cancel disables every task matching the given ID. Returns whether
// anything matched. Tasks are never physically removed here; pruning
// spent entries is an administrative operation.
func (s *Scheduler) Cancel(taskID string) bool {
	tasks := s.store.Load()
	found := false
	for _, task := range tasks {
		if task.ID == taskID {
			task.Enabled = false
			found = true
		}
	}
	if found {
		if err := s.store.Save(tasks); err != nil {
			s.logger.Error("persisting cancel failed", "id", taskID, "error", err)
		}
		s.logger.Info("task cancelled", "id", taskID)
	}
	return found
}

// Prune removes disabled tasks from the store and returns how many
// were dropped.
func (s *Scheduler) Prune() (int, error) {
	tasks := s.store.Load()
	kept := make([]*Task, 0, len(tasks))
	for _, task := range tasks {
		if task.Enabled {
			kept = append(kept, task)
		}
	}
	removed := len(tasks) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := s.store.Save(kept); err != nil {
		return 0, fmt.Errorf("persisting prune: %w", err)
	}
	s.logger.Info("tasks pruned", "removed", removed)
	return removed, nil
}

// RunDuePass fires every enabled task whose NextRun is at or before now,
// in stored order, and reschedules each by its type. The store is
// written once at the end, and only if at least one task fired.
// Returns the number of tasks fired.
func (s *Scheduler) RunDuePass(ctx context.Context) int {
	tasks := s.store.Load()
	now := s.now()
	fired := 0

	for _, task := range tasks {
		if !task.Enabled || task.NextRun == nil || task.NextRun.After(now) {
			continue
		}

		s.logger.Info("task firing", "id", task.ID, "name", task.Name, "actions", len(task.Actions))
		s.runActions(ctx, task)

		lastRun := now
		task.LastRun = &lastRun
		s.reschedule(task, now)
		fired++
	}

	if fired > 0 {
		if err := s.store.Save(tasks); err != nil {
			s.logger.Error("persisting due pass failed", "error", err)
		}
	}
	return fired
}

// runActions executes the task's action sequence in order, threading
// each action's result into the next via the placeholder token. The
// first action always sees an empty previous result.
func (s *Scheduler) runActions(ctx context.Context, task *Task) {
	lastResult := ""
	for _, action := range task.Actions {
		args := resolveArgs(action.ToolArgs, lastResult)
		lastResult = s.dispatch.Dispatch(ctx, action.ToolName, args)
	}
}

// reschedule computes the task's next due time after a firing,
// anchored to the pass's "now" rather than the nominal due time.
// Tasks that can't be rescheduled are disabled rather than retried.
func (s *Scheduler) reschedule(task *Task, now time.Time) {
	switch task.ScheduleType {
	case TypeInterval:
		if task.IntervalMinutes <= 0 {
			task.Enabled = false
			s.logger.Warn("interval task without interval disabled", "id", task.ID)
			return
		}
		next := now.Add(time.Duration(task.IntervalMinutes) * time.Minute)
		task.NextRun = &next

	case TypeDaily:
		hour, minute, err := ParseDailyTime(task.DailyTime)
		if err != nil {
			task.Enabled = false
			s.logger.Warn("daily task with bad time disabled", "id", task.ID, "daily_time", task.DailyTime)
			return
		}
		next := nextDailyOccurrence(now, hour, minute)
		task.NextRun = &next

	case TypeOnce:
		task.Enabled = false

	default:
		task.Enabled = false
		s.logger.Warn("task with unknown schedule type disabled", "id", task.ID, "type", task.ScheduleType)
	}
}
