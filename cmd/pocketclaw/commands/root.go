// Package commands implements the PocketClaw CLI commands using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pocketclaw",
		Short: "PocketClaw - SMS-driven phone assistant",
		Long: `PocketClaw is a personal assistant that lives on an Android phone
(under Termux) and takes its orders over SMS. It polls the inbox,
runs instructions through an LLM with a tool catalog, and texts the
answer back to the owner.

Examples:
  pocketclaw onboard
  pocketclaw serve
  pocketclaw chat "what's my battery level?"
  pocketclaw task list`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newOnboardCmd(),
		newTaskCmd(),
		newHealthCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}
