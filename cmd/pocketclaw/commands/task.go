package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/scheduler"
)

// newTaskCmd creates the `pocketclaw task` command group for managing
// scheduled tasks from the terminal.
func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage scheduled tasks",
		Long: `Inspect and edit the task schedule directly, without going through
the assistant.

Examples:
  pocketclaw task list
  pocketclaw task add --type interval --interval 30 --action "get_battery_status"
  pocketclaw task cancel task_8400a27b
  pocketclaw task prune`,
	}

	cmd.AddCommand(
		newTaskAddCmd(),
		newTaskListCmd(),
		newTaskCancelCmd(),
		newTaskPruneCmd(),
	)
	return cmd
}

// openScheduler builds a scheduler over the task file for management
// commands. The dispatcher is inert: these commands never fire tasks.
func openScheduler(cmd *cobra.Command) (*scheduler.Scheduler, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}
	store, err := scheduler.NewFileTaskStore(filepath.Join(cfg.Agent.DataDir, tasksFile))
	if err != nil {
		return nil, fmt.Errorf("opening task store: %w", err)
	}
	noop := scheduler.DispatcherFunc(func(context.Context, string, map[string]any) string { return "" })
	return scheduler.New(store, noop, newLogger(cmd, cfg)), nil
}

func newTaskAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Schedule a new task",
		Long: `Schedule a task. Each --action is a tool name, optionally followed
by '=' and a JSON object of arguments. Actions run in order, and the
string {last_result} in an argument is replaced with the previous
action's output.

Examples:
  pocketclaw task add --type daily --daily 08:30 \
    --action 'get_battery_status' \
    --action 'send_sms={"message":"Morning battery: {last_result}"}'`,
		RunE: runTaskAdd,
	}

	cmd.Flags().String("name", "", "task name (defaults to the task ID)")
	cmd.Flags().String("type", "interval", "schedule type: interval, daily, or once")
	cmd.Flags().Int("interval", 0, "minutes between runs (interval type)")
	cmd.Flags().String("daily", "", "time of day as HH:MM (daily type)")
	cmd.Flags().String("at", "", "timestamp, RFC3339 or '2006-01-02 15:04' (once type)")
	cmd.Flags().StringArray("action", nil, "tool to run, as 'tool_name' or 'tool_name={json args}' (repeatable)")
	return cmd
}

func runTaskAdd(cmd *cobra.Command, _ []string) error {
	sched, err := openScheduler(cmd)
	if err != nil {
		return err
	}

	rawActions, _ := cmd.Flags().GetStringArray("action")
	actions, err := parseActionFlags(rawActions)
	if err != nil {
		return err
	}

	name, _ := cmd.Flags().GetString("name")
	scheduleType, _ := cmd.Flags().GetString("type")
	interval, _ := cmd.Flags().GetInt("interval")
	daily, _ := cmd.Flags().GetString("daily")
	at, _ := cmd.Flags().GetString("at")

	task, err := sched.Schedule(scheduler.ScheduleRequest{
		Name:            name,
		ScheduleType:    scheduleType,
		IntervalMinutes: interval,
		DailyTime:       daily,
		RunAt:           at,
		Actions:         actions,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Scheduled %s (%s)", task.ID, task.ScheduleType)
	if task.NextRun != nil {
		fmt.Printf(", next run %s", task.NextRun.Format("2006-01-02 15:04"))
	}
	fmt.Println()
	return nil
}

// parseActionFlags turns 'tool_name={json}' strings into actions.
func parseActionFlags(raw []string) ([]scheduler.Action, error) {
	actions := make([]scheduler.Action, 0, len(raw))
	for _, entry := range raw {
		name, argsJSON, hasArgs := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("empty tool name in action %q", entry)
		}
		action := scheduler.Action{ToolName: name}
		if hasArgs && strings.TrimSpace(argsJSON) != "" {
			if err := json.Unmarshal([]byte(argsJSON), &action.ToolArgs); err != nil {
				return nil, fmt.Errorf("arguments of action %q are not a JSON object: %w", name, err)
			}
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func newTaskListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sched, err := openScheduler(cmd)
			if err != nil {
				return err
			}
			tasks := sched.List()
			if len(tasks) == 0 {
				fmt.Println("No scheduled tasks.")
				return nil
			}
			for _, t := range tasks {
				status := "enabled"
				if !t.Enabled {
					status = "disabled"
				}
				next := "-"
				if t.NextRun != nil {
					next = t.NextRun.Format("2006-01-02 15:04")
				}
				tools := make([]string, 0, len(t.Actions))
				for _, a := range t.Actions {
					tools = append(tools, a.ToolName)
				}
				fmt.Printf("%s  %-10s %-8s next=%s  %s  [%s]\n",
					t.ID, t.ScheduleType, status, next, t.Name, strings.Join(tools, ", "))
			}
			return nil
		},
	}
}

func newTaskCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Disable a scheduled task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := openScheduler(cmd)
			if err != nil {
				return err
			}
			if !sched.Cancel(args[0]) {
				return fmt.Errorf("no task with ID %s", args[0])
			}
			fmt.Printf("Task %s disabled.\n", args[0])
			return nil
		},
	}
}

func newTaskPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove disabled tasks from the schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sched, err := openScheduler(cmd)
			if err != nil {
				return err
			}
			removed, err := sched.Prune()
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d disabled task(s).\n", removed)
			return nil
		},
	}
}
