// Package scheduler pushes the daily activity report to the admin at a
// fixed local time. The trigger instant is computed per cycle from a cron
// schedule carrying the configured timezone, so a DST shift moves the
// fire time with the zone instead of drifting by an hour.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jholhewres/lineclaw/pkg/lineclaw/activity"
	"github.com/jholhewres/lineclaw/pkg/lineclaw/report"
)

const reportTitle = "📊 Daily report (last 24h)"

// DefaultWindow is how far back the daily report looks.
const DefaultWindow = 24 * time.Hour

// Clock abstracts wall-clock access so tests can drive the loop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Pusher delivers report chunks to the admin chat. *line.Client satisfies
// it.
type Pusher interface {
	Push(ctx context.Context, to, text string) error
}

// Config controls when and to whom the daily report goes.
type Config struct {
	AdminID       string
	At            string // "HH:MM" in Timezone
	Timezone      string // IANA zone name, e.g. "Asia/Tokyo"
	Window        time.Duration
	MaxChunkRunes int
}

// DailyReporter owns the daily report loop. Create it with
// NewDailyReporter and drive it with Run.
type DailyReporter struct {
	cfg      Config
	schedule cron.Schedule
	zone     *time.Location
	log      *activity.Log
	pusher   Pusher
	clock    Clock
	logger   *slog.Logger
}

// NewDailyReporter validates the trigger time and timezone and builds the
// reporter. Window and MaxChunkRunes fall back to their defaults when
// unset.
func NewDailyReporter(cfg Config, log *activity.Log, pusher Pusher, logger *slog.Logger) (*DailyReporter, error) {
	if cfg.AdminID == "" {
		return nil, fmt.Errorf("scheduler: admin user ID is not set")
	}
	at, err := time.Parse("15:04", cfg.At)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid trigger time %q: %w", cfg.At, err)
	}
	tz := cfg.Timezone
	if tz == "" {
		tz = "Local"
	}
	zone, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid timezone %q: %w", tz, err)
	}
	schedule, err := cron.ParseStandard(fmt.Sprintf("CRON_TZ=%s %d %d * * *", tz, at.Minute(), at.Hour()))
	if err != nil {
		return nil, fmt.Errorf("scheduler: build schedule: %w", err)
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxChunkRunes <= 0 {
		cfg.MaxChunkRunes = report.DefaultMaxChunkRunes
	}
	return &DailyReporter{
		cfg:      cfg,
		schedule: schedule,
		zone:     zone,
		log:      log,
		pusher:   pusher,
		clock:    systemClock{},
		logger:   logger.With("component", "scheduler"),
	}, nil
}

// Run blocks until ctx is canceled, firing the report at each trigger
// instant. A missed or failed delivery never stops the loop; the next
// trigger is always re-armed.
func (r *DailyReporter) Run(ctx context.Context) {
	for {
		now := r.clock.Now()
		next := r.schedule.Next(now)
		r.logger.Info("daily report armed", "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			r.logger.Info("daily report loop stopped")
			return
		case <-r.clock.After(next.Sub(now)):
			r.runOnce(ctx)
		}
	}
}

// runOnce builds the report over the trailing window and pushes its
// chunks in order. A failed chunk aborts the rest of this delivery so the
// admin never receives a fragment with a hole in the middle.
func (r *DailyReporter) runOnce(ctx context.Context) {
	now := r.clock.Now()
	entries := r.log.EntriesSince(now.Add(-r.cfg.Window))
	chunks := report.Split(report.Build(entries, reportTitle, r.zone), r.cfg.MaxChunkRunes)

	for i, chunk := range chunks {
		if err := r.pusher.Push(ctx, r.cfg.AdminID, chunk); err != nil {
			r.logger.Error("daily report push failed",
				"chunk", i+1,
				"chunks", len(chunks),
				"error", err,
			)
			return
		}
	}
	r.logger.Info("daily report delivered", "entries", len(entries), "chunks", len(chunks))
}
