package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jholhewres/lineclaw/pkg/lineclaw/activity"
	"github.com/jholhewres/lineclaw/pkg/lineclaw/bot"
	"github.com/jholhewres/lineclaw/pkg/lineclaw/config"
	"github.com/jholhewres/lineclaw/pkg/lineclaw/gemini"
	"github.com/jholhewres/lineclaw/pkg/lineclaw/line"
	"github.com/jholhewres/lineclaw/pkg/lineclaw/memory"
	"github.com/jholhewres/lineclaw/pkg/lineclaw/scheduler"
	"github.com/jholhewres/lineclaw/pkg/lineclaw/server"
	"github.com/spf13/cobra"
)

// newServeCmd creates the `lineclaw serve` command that starts the daemon.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook daemon",
		Long: `Start LineClaw as a daemon: serve the LINE webhook, relay
messages to Gemini, and push the daily activity report to the admin.

Examples:
  lineclaw serve
  lineclaw serve --config ./config.yaml
  lineclaw serve --verbose`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── Load config ──
	cfg, configPath, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	// ── Configure logger ──
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logLevel := slog.LevelInfo
	if verbose || cfg.Logging.Level == "debug" {
		logLevel = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)

	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── Create context ──
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Connect LINE and Gemini ──
	lineClient := line.NewClient(cfg.Line, logger)

	gem, err := gemini.New(ctx, cfg.Gemini, logger)
	if err != nil {
		return fmt.Errorf("creating Gemini client: %w", err)
	}

	// ── Build shared state ──
	conversations := memory.NewConversationStore(cfg.History.MaxTurns)
	pending := memory.NewPendingStore()
	names := memory.NewNameCache(func(ctx context.Context, userID string) (string, error) {
		profile, err := lineClient.Profile(ctx, userID)
		if err != nil {
			return "", err
		}
		return profile.DisplayName, nil
	})
	log := activity.NewLog(cfg.Activity.SnapshotPath, cfg.Activity.RetentionWindow(), logger)

	// ── Wire the dispatcher ──
	dispatcher := bot.New(
		bot.Config{
			AdminID:       cfg.Admin.UserID,
			TriggerPhrase: cfg.Admin.Trigger,
			MaxChunkRunes: cfg.Report.MaxChunk,
			Zone:          cfg.Report.Zone(),
			Replies: bot.Replies{
				Apology:      cfg.Replies.Apology,
				ImageApology: cfg.Replies.ImageApology,
				ImagePrompt:  cfg.Replies.ImagePrompt,
			},
		},
		gem,
		lineClient,
		bot.Stores{
			Conversations: conversations,
			Pending:       pending,
			Names:         names,
			Activity:      log,
		},
		logger,
	)

	// ── Start webhook server ──
	srv := server.New(cfg.Server, cfg.Line.ChannelSecret, dispatcher, log, logger)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("starting webhook server: %w", err)
	}

	// ── Start daily reporter ──
	reporter, err := scheduler.NewDailyReporter(
		scheduler.Config{
			AdminID:       cfg.Admin.UserID,
			At:            cfg.Report.At,
			Timezone:      cfg.Report.Timezone,
			MaxChunkRunes: cfg.Report.MaxChunk,
		},
		log,
		lineClient,
		logger,
	)
	if err != nil {
		return err
	}
	go reporter.Run(ctx)

	// ── Wait for shutdown ──
	logger.Info("LineClaw running. Press Ctrl+C to stop.",
		"name", cfg.Name,
		"address", cfg.Server.Address,
		"model", gem.Model(),
		"report_at", cfg.Report.At,
		"config", configPath,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping...")

	// Graceful shutdown with timeout.
	done := make(chan struct{})
	go func() {
		cancel() // stops the daily reporter
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Error("server shutdown", "error", err)
		}
		stop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out after 10s, forcing exit")
	}

	return nil
}

// resolveConfig loads config from the --config flag or by discovery.
// Returns (config, configPath, error).
func resolveConfig(cmd *cobra.Command) (*config.Config, string, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")

	// Try explicit path first.
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, "", fmt.Errorf("loading config: %w", err)
		}
		return cfg, configPath, nil
	}

	// Auto-discover config file.
	if found := config.FindConfigFile(); found != "" {
		cfg, err := config.Load(found)
		if err != nil {
			return nil, "", fmt.Errorf("loading config from %s: %w", found, err)
		}
		slog.Info("config loaded", "path", found)
		return cfg, found, nil
	}

	return nil, "", fmt.Errorf("no configuration file found (looked for config.yaml and lineclaw.yaml; pass one with --config)")
}
