package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// newChatCmd creates the `pocketclaw chat` command for talking to the
// assistant from the terminal instead of over SMS.
func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the assistant from the terminal",
		Long: `Run an instruction through the assistant and print the answer
instead of texting it. With no arguments, starts an interactive REPL.

Examples:
  pocketclaw chat "what's my battery level?"
  pocketclaw chat`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	st, err := buildStack(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	// Answers go to stdout here, not through send_sms.
	st.assistant.SetDeliverAnswers(false)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Single-shot mode.
	if len(args) > 0 {
		answer := st.assistant.ProcessInstruction(ctx, args[0])
		if answer == "" {
			return fmt.Errorf("the assistant produced no answer")
		}
		fmt.Println(answer)
		return nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("interactive chat needs a terminal; pass the message as an argument instead")
	}

	rl, err := readline.New("you> ")
	if err != nil {
		return fmt.Errorf("starting readline: %w", err)
	}
	defer rl.Close()

	fmt.Printf("Chatting with %s. Type 'exit' or Ctrl+D to quit.\n", cfg.Agent.Name)
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		answer := st.assistant.ProcessInstruction(ctx, line)
		if answer == "" {
			fmt.Println("(no answer)")
			continue
		}
		fmt.Printf("%s> %s\n", cfg.Agent.Name, answer)
	}
}
