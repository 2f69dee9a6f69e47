package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/agent"
	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/device"
	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/memory"
)

// newOnboardCmd creates the `pocketclaw onboard` first-run wizard.
func newOnboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "First-run setup wizard",
		Long: `Interactive first-run setup: owner phone number, assistant name,
LLM backend, and a short profile so the assistant knows who it is
talking to. The API key goes into the OS keyring, never into the
config file.

Examples:
  pocketclaw onboard`,
		RunE: runOnboard,
	}
}

func runOnboard(cmd *cobra.Command, _ []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("onboarding is interactive and needs a terminal")
	}

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	var (
		ownerNumber = cfg.User.PhoneNumber
		agentName   = cfg.Agent.Name
		userName    string
		userBio     string
		llmMode     = cfg.LLM.Mode
		serverURL   = cfg.LLM.HTTP.ServerURL
		model       = cfg.LLM.HTTP.Model
		apiKey      string
		mqttBroker  = cfg.LLM.MQTT.Broker
		mqttPort    = strconv.Itoa(cfg.LLM.MQTT.Port)
		fallback    = cfg.LLM.FallbackToHTTP
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Your phone number").
				Description("With country code, e.g. +4799887766. Only this number can give orders.").
				Value(&ownerNumber).
				Validate(validatePhone),
			huh.NewInput().
				Title("Your name").
				Description("How the assistant should address you.").
				Value(&userName),
			huh.NewInput().
				Title("About you (optional)").
				Description("A sentence or two of context, e.g. job, city, habits.").
				Value(&userBio),
			huh.NewInput().
				Title("Assistant name").
				Value(&agentName),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("LLM backend").
				Options(
					huh.NewOption("HTTP (OpenAI-compatible endpoint)", "http"),
					huh.NewOption("MQTT (home broker)", "mqtt"),
				).
				Value(&llmMode),
			huh.NewInput().
				Title("Chat completions URL").
				Description("Used directly in http mode, and as fallback in mqtt mode.").
				Value(&serverURL),
			huh.NewInput().
				Title("Model").
				Value(&model),
			huh.NewInput().
				Title("API key (optional)").
				Description("Stored in the OS keyring.").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("MQTT broker host").
				Value(&mqttBroker),
			huh.NewInput().
				Title("MQTT broker port").
				Value(&mqttPort).
				Validate(validatePort),
			huh.NewConfirm().
				Title("Fall back to HTTP when the broker is unreachable?").
				Value(&fallback),
		).WithHideFunc(func() bool { return llmMode != "mqtt" }),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("onboarding aborted: %w", err)
	}

	cfg.User.PhoneNumber = strings.ReplaceAll(strings.TrimSpace(ownerNumber), " ", "")
	if agentName != "" {
		cfg.Agent.Name = agentName
	}
	cfg.LLM.Mode = llmMode
	cfg.LLM.HTTP.ServerURL = serverURL
	cfg.LLM.HTTP.Model = model
	cfg.LLM.MQTT.Broker = mqttBroker
	if port, err := strconv.Atoi(mqttPort); err == nil {
		cfg.LLM.MQTT.Port = port
	}
	cfg.LLM.FallbackToHTTP = fallback
	cfg.Onboarding.Completed = true

	if apiKey != "" {
		if err := agent.StoreAPIKey(apiKey); err != nil {
			logger.Warn("keyring unavailable, set the key via environment instead",
				"env_var", agent.APIKeyEnvVar, "error", err)
		} else {
			fmt.Println("API key stored in the OS keyring.")
		}
	}

	// Seed the memory document so the assistant knows its owner from
	// the first message.
	if err := seedProfile(cfg, userName, userBio, logger); err != nil {
		return err
	}

	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	if configPath == "" {
		configPath = agent.DefaultConfigPath()
	}
	if err := agent.SaveConfigToFile(cfg, configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration written to %s\n", configPath)

	probeTermuxBridge(logger)

	fmt.Println()
	fmt.Println("Setup complete. Start the assistant with: pocketclaw serve")
	return nil
}

func seedProfile(cfg *agent.Config, userName, userBio string, logger *slog.Logger) error {
	store, err := memory.NewStore(filepath.Join(cfg.Agent.DataDir, profileFile), cfg.User.PhoneNumber, logger)
	if err != nil {
		return fmt.Errorf("opening memory store: %w", err)
	}
	mem := store.Load()
	if userName != "" {
		mem.Profile.Name = userName
	}
	if userBio != "" {
		mem.Profile.Bio = userBio
	}
	if len(mem.Contacts) > 0 && userName != "" {
		mem.Contacts[0].Name = userName
	}
	if err := store.Save(mem); err != nil {
		return fmt.Errorf("saving memory: %w", err)
	}
	return nil
}

// probeTermuxBridge checks that the termux-api bridge answers. A
// failure is not fatal: the user may be onboarding off-device.
func probeTermuxBridge(logger *slog.Logger) {
	gateway := device.NewShellGateway(logger)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := gateway.BatteryStatus(ctx); err != nil {
		fmt.Println()
		fmt.Println("[!] Could not reach the termux-api bridge.")
		fmt.Println("    On the phone, install the Termux:API app, then run:")
		fmt.Println("      pkg install termux-api")
		fmt.Println("      termux-setup-storage")
		return
	}
	if _, err := gateway.ListSMS(ctx, 1); err != nil {
		fmt.Println()
		fmt.Println("[!] termux-api answers, but reading SMS failed.")
		fmt.Println("    Grant the SMS permission to the Termux:API app in Android settings.")
		return
	}
	fmt.Println("Termux bridge OK: battery and SMS access verified.")
}

func validatePhone(s string) error {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	digits := strings.TrimPrefix(s, "+")
	if len(digits) < 8 {
		return fmt.Errorf("number seems too short, include the country code")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return fmt.Errorf("only digits and a leading + are allowed")
		}
	}
	return nil
}

func validatePort(s string) error {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("enter a port between 1 and 65535")
	}
	return nil
}
