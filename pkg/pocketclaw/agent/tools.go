// Package agent – tools.go declares the fixed tool catalog: device
// getters and mutators, file inspection, the scheduler operations, and
// the memory operations. Definitions are advertised to the LLM verbatim;
// handlers delegate to the device gateway, the scheduler, and the
// memory store.
package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/device"
	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/memory"
	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/scheduler"
)

// readFileMaxLines caps how much of a file the read_file tool returns.
const readFileMaxLines = 200

// ToolDeps carries everything the tool handlers touch.
type ToolDeps struct {
	Gateway     device.Gateway
	Scheduler   *scheduler.Scheduler
	Memory      *memory.Store
	OwnerNumber string
	Now         func() time.Time
}

// RegisterTools wires the full tool catalog into the executor.
func RegisterTools(e *ToolExecutor, deps ToolDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	registerDeviceTools(e, deps)
	registerFileTools(e)
	registerSchedulerTools(e, deps)
	registerMemoryTools(e, deps)
}

// ---------- Device Tools ----------

func registerDeviceTools(e *ToolExecutor, deps ToolDeps) {
	gw := deps.Gateway

	e.Register(
		MakeToolDefinition("get_battery_status", "Get the phone's battery status", nil),
		func(ctx context.Context, _ map[string]any) (any, error) {
			return gw.BatteryStatus(ctx)
		},
	)

	e.Register(
		MakeToolDefinition("get_wifi_info", "Get info about the current WiFi connection", nil),
		func(ctx context.Context, _ map[string]any) (any, error) {
			return gw.WifiInfo(ctx)
		},
	)

	e.Register(
		MakeToolDefinition("get_location", "Get the phone's GPS position", nil),
		func(ctx context.Context, _ map[string]any) (any, error) {
			return gw.Location(ctx)
		},
	)

	e.Register(
		MakeToolDefinition("get_device_info", "Get telephony and device info", nil),
		func(ctx context.Context, _ map[string]any) (any, error) {
			return gw.DeviceInfo(ctx)
		},
	)

	e.Register(
		MakeToolDefinition("get_clipboard", "Read the clipboard contents", nil),
		func(ctx context.Context, _ map[string]any) (any, error) {
			return gw.ReadClipboard(ctx)
		},
	)

	e.Register(
		MakeToolDefinition("set_clipboard", "Replace the clipboard contents", objectSchema(map[string]any{
			"text": map[string]any{"type": "string", "description": "Text to place on the clipboard"},
		}, "text")),
		func(ctx context.Context, args map[string]any) (any, error) {
			if err := gw.WriteClipboard(ctx, stringArg(args, "text")); err != nil {
				return nil, err
			}
			return "Clipboard updated", nil
		},
	)

	e.Register(
		MakeToolDefinition("send_sms",
			"Send an SMS to a number. Use this for every final answer to the owner.",
			objectSchema(map[string]any{
				"number":  map[string]any{"type": "string", "description": "Recipient phone number, defaults to the owner"},
				"message": map[string]any{"type": "string", "description": "Message text"},
			}, "message")),
		func(ctx context.Context, args map[string]any) (any, error) {
			number := stringArg(args, "number")
			if number == "" {
				number = deps.OwnerNumber
			}
			if err := gw.SendSMS(ctx, number, stringArg(args, "message")); err != nil {
				return nil, err
			}
			return "SMS sent to " + number, nil
		},
	)

	e.Register(
		MakeToolDefinition("send_mms", "Send a message with a file attached", objectSchema(map[string]any{
			"number":    map[string]any{"type": "string", "description": "Recipient phone number, defaults to the owner"},
			"message":   map[string]any{"type": "string", "description": "Message text"},
			"file_path": map[string]any{"type": "string", "description": "Path of the file to attach"},
		}, "file_path")),
		func(ctx context.Context, args map[string]any) (any, error) {
			filePath := stringArg(args, "file_path")
			if filePath == "" {
				return nil, fmt.Errorf("file_path is required")
			}
			number := stringArg(args, "number")
			if number == "" {
				number = deps.OwnerNumber
			}
			if err := gw.SendSMSWithAttachment(ctx, number, stringArg(args, "message"), filePath); err != nil {
				return nil, err
			}
			return fmt.Sprintf("MMS sent to %s: %s", number, filePath), nil
		},
	)

	e.Register(
		MakeToolDefinition("take_photo", "Take a photo with the rear camera", nil),
		func(ctx context.Context, _ map[string]any) (any, error) {
			target := device.PhotoTargetPath(deps.Now())
			if err := gw.TakePhoto(ctx, target); err != nil {
				return nil, err
			}
			return target, nil
		},
	)
}

// ---------- File Tools ----------

func registerFileTools(e *ToolExecutor) {
	e.Register(
		MakeToolDefinition("list_files", "List files in a directory", objectSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "Directory to list"},
		})),
		func(_ context.Context, args map[string]any) (any, error) {
			path := stringArg(args, "path")
			if path == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return nil, err
				}
				path = filepath.Join(home, "storage")
			}
			return listDirectory(path)
		},
	)

	e.Register(
		MakeToolDefinition("read_file", "Read the first lines of a file", objectSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "File path"},
		}, "path")),
		func(_ context.Context, args map[string]any) (any, error) {
			path := stringArg(args, "path")
			if path == "" {
				return nil, fmt.Errorf("path is required")
			}
			return readFileHead(path, readFileMaxLines)
		},
	)
}

// listDirectory renders a directory listing with sizes and modes.
func listDirectory(path string) (string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("listing %s: %w", path, err)
	}
	if len(entries) == 0 {
		return "(empty directory)", nil
	}

	out := make([]byte, 0, len(entries)*40)
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		line := fmt.Sprintf("%s %10d %s %s\n",
			info.Mode(), info.Size(),
			info.ModTime().Format("2006-01-02 15:04"),
			entry.Name(),
		)
		out = append(out, line...)
	}
	return string(out), nil
}

// readFileHead returns at most maxLines lines from the start of a file.
func readFileHead(path string, maxLines int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var out []byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for lines := 0; lines < maxLines && scanner.Scan(); lines++ {
		out = append(out, scanner.Bytes()...)
		out = append(out, '\n')
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(out), nil
}

// ---------- Scheduler Tools ----------

func registerSchedulerTools(e *ToolExecutor, deps ToolDeps) {
	sched := deps.Scheduler

	e.Register(
		MakeToolDefinition("schedule_task",
			"Schedule a task. schedule_type: interval, daily, once. Daily tasks use "+
				"daily_time (HH:MM); one-shot tasks use run_at (ISO 8601). actions is "+
				"an ordered list of tool_name/tool_args pairs; use {last_result} in a "+
				"string argument to reference the previous action's result.",
			objectSchema(map[string]any{
				"name":             map[string]any{"type": "string", "description": "Task name"},
				"schedule_type":    map[string]any{"type": "string", "description": "interval, daily, or once"},
				"interval_minutes": map[string]any{"type": "integer", "description": "Firing interval in minutes"},
				"daily_time":       map[string]any{"type": "string", "description": "HH:MM for daily tasks"},
				"run_at":           map[string]any{"type": "string", "description": "ISO 8601 time for one-shot tasks"},
				"actions": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"tool_name": map[string]any{"type": "string"},
							"tool_args": map[string]any{"type": "object"},
						},
						"required": []string{"tool_name"},
					},
				},
			}, "name", "actions")),
		func(_ context.Context, args map[string]any) (any, error) {
			task, err := sched.Schedule(scheduler.ScheduleRequest{
				Name:            stringArg(args, "name"),
				ScheduleType:    stringArg(args, "schedule_type"),
				IntervalMinutes: intArg(args, "interval_minutes"),
				DailyTime:       stringArg(args, "daily_time"),
				RunAt:           stringArg(args, "run_at"),
				Actions:         parseActions(args["actions"]),
			})
			if err != nil {
				return nil, err
			}
			return "Task scheduled: " + task.ID, nil
		},
	)

	e.Register(
		MakeToolDefinition("list_tasks", "List scheduled tasks", nil),
		func(_ context.Context, _ map[string]any) (any, error) {
			tasks := sched.List()
			if len(tasks) == 0 {
				return "No scheduled tasks", nil
			}
			b, err := json.MarshalIndent(tasks, "", "  ")
			if err != nil {
				return nil, err
			}
			return string(b), nil
		},
	)

	e.Register(
		MakeToolDefinition("cancel_task", "Disable a scheduled task", objectSchema(map[string]any{
			"task_id": map[string]any{"type": "string", "description": "ID of the task"},
		}, "task_id")),
		func(_ context.Context, args map[string]any) (any, error) {
			taskID := stringArg(args, "task_id")
			if !sched.Cancel(taskID) {
				return nil, fmt.Errorf("no task with id %q", taskID)
			}
			return "Task disabled", nil
		},
	)
}

// parseActions converts the raw actions array from tool arguments into
// typed scheduler actions. Malformed entries are skipped.
func parseActions(raw any) []scheduler.Action {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	actions := make([]scheduler.Action, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["tool_name"].(string)
		if name == "" {
			continue
		}
		toolArgs, _ := entry["tool_args"].(map[string]any)
		actions = append(actions, scheduler.Action{ToolName: name, ToolArgs: toolArgs})
	}
	return actions
}

// ---------- Memory Tools ----------

func registerMemoryTools(e *ToolExecutor, deps ToolDeps) {
	store := deps.Memory

	e.Register(
		MakeToolDefinition("update_memory",
			"Store a permanent note about the owner in the profile",
			objectSchema(map[string]any{
				"note": map[string]any{"type": "string", "description": "What to remember"},
			}, "note")),
		func(_ context.Context, args map[string]any) (any, error) {
			if err := store.AddNote(stringArg(args, "note")); err != nil {
				return nil, err
			}
			return "Note saved", nil
		},
	)

	e.Register(
		MakeToolDefinition("add_or_update_contact",
			"Add or update a contact. Use this when you learn about new people or "+
				"get more context about existing contacts.",
			objectSchema(map[string]any{
				"number":          map[string]any{"type": "string", "description": "Phone number"},
				"name":            map[string]any{"type": "string", "description": "The person's name"},
				"relationship":    map[string]any{"type": "string", "description": "Relationship to the owner (e.g. 'son', 'boss', 'friend')"},
				"tone_preference": map[string]any{"type": "string", "description": "Preferred tone (formal, normal, casual)"},
				"context":         map[string]any{"type": "string", "description": "Extra context about the person"},
			}, "number")),
		func(_ context.Context, args map[string]any) (any, error) {
			contact := memory.Contact{
				Number:         stringArg(args, "number"),
				Name:           stringArg(args, "name"),
				Relationship:   stringArg(args, "relationship"),
				TonePreference: stringArg(args, "tone_preference"),
				Context:        stringArg(args, "context"),
			}
			created, err := store.UpsertContact(contact)
			if err != nil {
				return nil, err
			}
			label := contact.Name
			if label == "" {
				label = contact.Number
			}
			if created {
				return "Contact " + label + " added", nil
			}
			return "Contact " + label + " updated", nil
		},
	)

	e.Register(
		MakeToolDefinition("update_short_term_memory",
			"Update short-term memory with the owner's current context, activity, "+
				"and plans. Use this to remember important context from the conversation.",
			objectSchema(map[string]any{
				"context":  map[string]any{"type": "string", "description": "General context (e.g. 'the owner is at work')"},
				"date":     map[string]any{"type": "string", "description": "Date, if relevant"},
				"location": map[string]any{"type": "string", "description": "The owner's location"},
				"activity": map[string]any{"type": "string", "description": "What the owner is doing"},
				"plan":     map[string]any{"type": "string", "description": "Something planned for later"},
			})),
		func(_ context.Context, args map[string]any) (any, error) {
			update := memory.ShortTermUpdate{
				Context:  optionalStringArg(args, "context"),
				Date:     optionalStringArg(args, "date"),
				Location: optionalStringArg(args, "location"),
				Activity: optionalStringArg(args, "activity"),
				Plan:     optionalStringArg(args, "plan"),
			}
			if err := store.UpdateShortTerm(update); err != nil {
				return nil, err
			}
			return "Short-term memory updated", nil
		},
	)
}

// ---------- Argument Helpers ----------

// objectSchema builds a JSON Schema object with the given properties
// and required keys.
func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// stringArg extracts a string argument, empty when absent or not a string.
func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// optionalStringArg distinguishes "absent" from "present but empty".
func optionalStringArg(args map[string]any, key string) *string {
	v, ok := args[key]
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

// intArg extracts an integer argument, tolerating the float64 that
// JSON decoding produces and numeric strings the model sometimes sends.
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}
