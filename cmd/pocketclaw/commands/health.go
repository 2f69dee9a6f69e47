package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/agent"
	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/device"
)

// newHealthCmd creates the `pocketclaw health` command that probes
// the configuration, the data directory, and the termux-api bridge.
func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the assistant's health",
		Long: `Probe the pieces the daemon depends on: configuration, owner
number, data directory, audit log, and the termux-api bridge.

Examples:
  pocketclaw health`,
		RunE: runHealth,
	}
}

func runHealth(cmd *cobra.Command, _ []string) error {
	failed := false
	check := func(ok bool, label, detail string) {
		mark := "ok"
		if !ok {
			mark = "!!"
			failed = true
		}
		fmt.Printf("[%s] %-16s %s\n", mark, label, detail)
	}

	// Config.
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	if configPath == "" {
		configPath = agent.FindConfigFile()
	}
	cfg := agent.DefaultConfig()
	if configPath == "" {
		check(false, "config", "no config file found, run 'pocketclaw onboard'")
	} else if loaded, err := agent.LoadConfigFromFile(configPath); err != nil {
		check(false, "config", fmt.Sprintf("%s: %v", configPath, err))
	} else {
		cfg = loaded
		check(true, "config", configPath)
	}
	logger := newLogger(cmd, cfg)

	check(cfg.User.PhoneNumber != "", "owner", orUnset(cfg.User.PhoneNumber))
	check(cfg.Onboarding.Completed, "onboarding", fmt.Sprintf("completed=%v", cfg.Onboarding.Completed))

	// Data directory.
	if info, err := os.Stat(cfg.Agent.DataDir); err != nil || !info.IsDir() {
		check(false, "data dir", cfg.Agent.DataDir+" missing (created on first serve)")
	} else {
		check(true, "data dir", cfg.Agent.DataDir)
	}

	// Audit log.
	if audit, err := agent.OpenAuditLog(filepath.Join(cfg.Agent.DataDir, auditFile), logger); err != nil {
		check(false, "audit log", err.Error())
	} else {
		check(true, "audit log", fmt.Sprintf("%d tool calls recorded", audit.Count()))
		_ = audit.Close()
	}

	// Termux bridge.
	gateway := device.NewShellGateway(logger)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := gateway.BatteryStatus(ctx); err != nil {
		check(false, "termux bridge", fmt.Sprintf("termux-battery-status: %v", err))
	} else {
		check(true, "termux bridge", "termux-api answering")
		if _, err := gateway.ListSMS(ctx, 1); err != nil {
			check(false, "sms access", fmt.Sprintf("termux-sms-list: %v", err))
		} else {
			check(true, "sms access", "inbox readable")
		}
	}

	if failed {
		return fmt.Errorf("one or more health checks failed")
	}
	return nil
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
