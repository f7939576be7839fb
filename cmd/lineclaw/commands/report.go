package commands

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jholhewres/lineclaw/pkg/lineclaw/activity"
	"github.com/jholhewres/lineclaw/pkg/lineclaw/report"
	"github.com/spf13/cobra"
)

// newReportCmd creates the `lineclaw report` command that renders the
// activity report from the snapshot on disk, without pushing anything.
func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the activity report from the local snapshot",
		Long: `Render the same report the daily push sends, from the activity
snapshot on disk. Useful to preview what the admin will receive.

Examples:
  lineclaw report
  lineclaw report --window 48h`,
		RunE: runReport,
	}

	cmd.Flags().Duration("window", 24*time.Hour, "how far back to report")
	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, _, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	window, _ := cmd.Flags().GetDuration("window")
	if window <= 0 {
		window = 24 * time.Hour
	}

	log := activity.NewLog(cfg.Activity.SnapshotPath, cfg.Activity.RetentionWindow(), logger)
	entries := log.EntriesSince(time.Now().Add(-window))

	title := fmt.Sprintf("📊 Daily report (last %dh)", int(window.Hours()))
	fmt.Println(report.Build(entries, title, cfg.Report.Zone()))
	return nil
}
