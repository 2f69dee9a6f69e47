package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/runtime"
)

// newServeCmd creates the `pocketclaw serve` command that starts the
// polling daemon.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the SMS polling daemon",
		Long: `Start PocketClaw as a daemon: poll the inbox, run due scheduled
tasks, and process owner instructions through the LLM.

Examples:
  pocketclaw serve
  pocketclaw serve --config ./config.yaml --verbose`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	if !cfg.Onboarding.Completed {
		logger.Warn("onboarding has not been completed, run 'pocketclaw onboard' for first-time setup")
	}

	st, err := buildStack(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.memory.EnsureExists(); err != nil {
		return fmt.Errorf("initializing memory: %w", err)
	}

	// A typed nil would still satisfy the interface, so only hand the
	// audit log over when it actually opened.
	var pruner runtime.AuditPruner
	if st.audit != nil {
		pruner = st.audit
	}

	loop, err := runtime.New(st.scheduler, st.poller, st.assistant, pruner,
		cfg.PollInterval(), cfg.Agent.MaintenanceSchedule, logger)
	if err != nil {
		return err
	}
	loop.SetDateRefresher(st.memory)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("PocketClaw running. Press Ctrl+C to stop.",
		"name", cfg.Agent.Name,
		"owner", cfg.User.PhoneNumber,
		"llm_mode", cfg.LLM.Mode,
	)

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
