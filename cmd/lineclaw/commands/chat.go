package commands

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jholhewres/lineclaw/pkg/lineclaw/gemini"
	"github.com/jholhewres/lineclaw/pkg/lineclaw/memory"
	"github.com/spf13/cobra"
)

// chatUser keys the local REPL's slot in the conversation store.
const chatUser = "cli"

// newChatCmd creates the `lineclaw chat` command for talking to the model
// from the terminal, without LINE in the loop.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the model from the terminal",
		Long: `Send one message, or start an interactive session with the same
rolling history the bot keeps per LINE user.

Examples:
  lineclaw chat "Summarize the LINE Messaging API"
  lineclaw chat  # interactive`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}

	cmd.Flags().StringP("model", "m", "", "Gemini model to use (ex: gemini-1.5-pro)")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, _, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	// Answers go to stdout; keep the logger out of the way.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.Gemini.Model = model
	}

	ctx := context.Background()
	gem, err := gemini.New(ctx, cfg.Gemini, logger)
	if err != nil {
		return fmt.Errorf("creating Gemini client: %w", err)
	}
	history := memory.NewConversationStore(cfg.History.MaxTurns)

	// Single message mode.
	if len(args) > 0 {
		answer, err := gem.ChatWithHistory(ctx, nil, args[0])
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	}

	// Interactive mode.
	fmt.Printf("LineClaw chat (%s). Type 'exit' to quit.\n", gem.Model())
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			break
		}

		answer, err := gem.ChatWithHistory(ctx, history.History(chatUser), text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		history.AppendExchange(chatUser, text, answer)
		fmt.Printf("bot> %s\n\n", answer)
	}
	return scanner.Err()
}
