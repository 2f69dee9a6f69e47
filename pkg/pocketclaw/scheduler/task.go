// Package scheduler implements the agent's task scheduling system.
// Tasks carry an ordered action list and fire on interval, daily, or
// one-shot schedules; due tasks are executed from the runtime's polling
// loop rather than by background timers, so firing order and file
// ownership stay deterministic.
package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule types accepted by Schedule and honored at firing time.
const (
	TypeInterval = "interval"
	TypeDaily    = "daily"
	TypeOnce     = "once"
)

// LastResultPlaceholder is the reserved token in action arguments that
// resolves to the previous action's result within the same firing.
const LastResultPlaceholder = "{last_result}"

// Validation errors returned by Schedule.
var (
	ErrInvalidScheduleType = errors.New("invalid schedule type")
	ErrInvalidInterval     = errors.New("interval must be a positive number of minutes")
	ErrInvalidDailyTime    = errors.New("daily time must be HH:MM")
	ErrInvalidTimestamp    = errors.New("run_at must be an ISO 8601 timestamp")
	ErrNoActions           = errors.New("task needs at least one action")
)

// Action is a single tool invocation within a task.
type Action struct {
	ToolName string         `json:"tool_name"`
	ToolArgs map[string]any `json:"tool_args,omitempty"`
}

// Task is a persisted scheduled task.
type Task struct {
	// ID is the unique task identifier.
	ID string `json:"id"`

	// Name is the human-readable label, defaults to the ID.
	Name string `json:"name"`

	// ScheduleType is one of interval, daily, or once.
	ScheduleType string `json:"schedule_type"`

	// IntervalMinutes applies to interval tasks.
	IntervalMinutes int `json:"interval_minutes,omitempty"`

	// DailyTime is the HH:MM firing time for daily tasks.
	DailyTime string `json:"daily_time,omitempty"`

	// RunAt is the one-shot firing time as given by the caller.
	RunAt string `json:"run_at,omitempty"`

	// Actions is the ordered tool invocation sequence.
	Actions []Action `json:"actions"`

	// LastRun is the time of the most recent firing.
	LastRun *time.Time `json:"last_run"`

	// NextRun is when the task is next due. A nil NextRun never fires.
	NextRun *time.Time `json:"next_run"`

	// Enabled gates firing; cancelled and spent one-shot tasks stay on
	// disk with Enabled=false.
	Enabled bool `json:"enabled"`
}

// runAtLayouts are the timestamp formats accepted for one-shot tasks.
// RFC 3339 first, then the bare forms people actually type.
var runAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseRunAt parses a one-shot firing time.
func ParseRunAt(value string) (time.Time, error) {
	for _, layout := range runAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
}

// ParseDailyTime parses an HH:MM clock time into hour and minute.
func ParseDailyTime(value string) (hour, minute int, err error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidDailyTime, value)
	}
	hour, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidDailyTime, value)
	}
	minute, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidDailyTime, value)
	}
	return hour, minute, nil
}

// nextDailyOccurrence returns the next time the given HH:MM comes around:
// today if still ahead of now, otherwise tomorrow.
func nextDailyOccurrence(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// resolveArgs substitutes the last-result placeholder into every
// top-level string argument. Non-string values pass through untouched.
func resolveArgs(args map[string]any, lastResult string) map[string]any {
	resolved := make(map[string]any, len(args))
	for key, value := range args {
		if s, ok := value.(string); ok {
			resolved[key] = strings.ReplaceAll(s, LastResultPlaceholder, lastResult)
		} else {
			resolved[key] = value
		}
	}
	return resolved
}
