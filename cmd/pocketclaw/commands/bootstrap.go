package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/agent"
	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/device"
	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/memory"
	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/scheduler"
	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/sms"
)

// Data files under the agent's data directory.
const (
	tasksFile   = "tasks.json"
	profileFile = "user_profile.json"
	historyFile = "history.json"
	stateFile   = "state.json"
	auditFile   = "audit.db"
)

// resolveConfig loads the config from the --config flag, an
// auto-discovered file, or defaults.
func resolveConfig(cmd *cobra.Command) (*agent.Config, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")

	if configPath == "" {
		configPath = agent.FindConfigFile()
	}
	if configPath == "" {
		return agent.DefaultConfig(), nil
	}

	cfg, err := agent.LoadConfigFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// newLogger builds the process logger from the logging config.
// --verbose forces the level down to debug.
func newLogger(cmd *cobra.Command, cfg *agent.Config) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")

	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// stack holds every wired component of a running assistant.
type stack struct {
	cfg       *agent.Config
	gateway   device.Gateway
	memory    *memory.Store
	history   *memory.HistoryLog
	scheduler *scheduler.Scheduler
	executor  *agent.ToolExecutor
	assistant *agent.Agent
	poller    *sms.Poller
	audit     *agent.AuditLog
}

// Close releases the stack's resources.
func (s *stack) Close() {
	if s.audit != nil {
		_ = s.audit.Close()
	}
}

// buildStack wires the full assistant: gateway, stores, scheduler,
// tool executor, LLM transport, agent loop and SMS poller.
func buildStack(cfg *agent.Config, logger *slog.Logger) (*stack, error) {
	if cfg.User.PhoneNumber == "" {
		return nil, fmt.Errorf("no owner phone number configured; run 'pocketclaw onboard' first")
	}

	dataDir := cfg.Agent.DataDir
	gateway := device.NewShellGateway(logger)

	mem, err := memory.NewStore(filepath.Join(dataDir, profileFile), cfg.User.PhoneNumber, logger)
	if err != nil {
		return nil, fmt.Errorf("opening memory store: %w", err)
	}
	history, err := memory.NewHistoryLog(filepath.Join(dataDir, historyFile))
	if err != nil {
		return nil, fmt.Errorf("opening history log: %w", err)
	}
	taskStore, err := scheduler.NewFileTaskStore(filepath.Join(dataDir, tasksFile))
	if err != nil {
		return nil, fmt.Errorf("opening task store: %w", err)
	}

	// The executor is the scheduler's dispatcher, and the scheduler is
	// one of the executor's tools, so wire the executor empty first.
	executor := agent.NewToolExecutor(logger)
	sched := scheduler.New(taskStore, executor, logger)
	agent.RegisterTools(executor, agent.ToolDeps{
		Gateway:     gateway,
		Scheduler:   sched,
		Memory:      mem,
		OwnerNumber: cfg.User.PhoneNumber,
		Now:         time.Now,
	})

	audit, err := agent.OpenAuditLog(filepath.Join(dataDir, auditFile), logger)
	if err != nil {
		logger.Warn("audit log unavailable, tool calls will not be recorded", "error", err)
	} else {
		executor.SetAuditLog(audit)
	}

	transport := agent.NewTransport(cfg, agent.LoadAPIKey(), logger)
	assistant := agent.NewAgent(cfg, transport, executor, mem, history, logger)

	poller, err := sms.NewPoller(gateway, mem, filepath.Join(dataDir, stateFile), cfg.User.PhoneNumber, cfg.Agent.InboxFetchLimit, logger)
	if err != nil {
		return nil, fmt.Errorf("creating sms poller: %w", err)
	}

	return &stack{
		cfg:       cfg,
		gateway:   gateway,
		memory:    mem,
		history:   history,
		scheduler: sched,
		executor:  executor,
		assistant: assistant,
		poller:    poller,
		audit:     audit,
	}, nil
}
