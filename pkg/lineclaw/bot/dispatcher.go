// Package bot routes decoded webhook events through the conversation
// flow: park images, answer texts with the model, keep history and the
// activity log in step, and serve the admin's on-demand report.
package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/jholhewres/lineclaw/pkg/lineclaw/activity"
	"github.com/jholhewres/lineclaw/pkg/lineclaw/line"
	"github.com/jholhewres/lineclaw/pkg/lineclaw/memory"
	"github.com/jholhewres/lineclaw/pkg/lineclaw/report"
)

const (
	// DefaultTriggerPhrase asks for the on-demand report.
	DefaultTriggerPhrase = "/report"

	// DefaultReportWindow is how far back the on-demand report looks.
	DefaultReportWindow = 24 * time.Hour

	// previewRunes caps the reply preview stored in the activity log.
	previewRunes = 80

	onDemandTitle = "📊 Activity report (last 24h)"
)

// Default user-facing strings. The bot talks to a Japanese LINE audience;
// all three can be overridden in the config file.
const (
	defaultApology      = "すみません、いまはうまく応答できません。少し時間をおいてもう一度お試しください。"
	defaultImageApology = "画像をうまく受け取れませんでした。もう一度送ってみてください。"
	defaultImagePrompt  = "画像を受け取りました！この画像について何が知りたいですか？"
)

// Model is the generative capability the dispatcher calls.
type Model interface {
	ChatWithHistory(ctx context.Context, history []memory.Turn, text string) (string, error)
	ChatWithImage(ctx context.Context, image []byte, mimeType, text string) (string, error)
}

// Messenger is the messaging-platform surface the dispatcher talks to.
// *line.Client satisfies it.
type Messenger interface {
	Reply(ctx context.Context, replyToken, text string) error
	Push(ctx context.Context, to, text string) error
	Profile(ctx context.Context, userID string) (*line.Profile, error)
	MessageContent(ctx context.Context, messageID string) ([]byte, string, error)
	StartLoading(ctx context.Context, chatID string) error
}

// Replies are the fixed strings the bot sends outside of model answers.
type Replies struct {
	Apology      string
	ImageApology string
	ImagePrompt  string
}

// Config controls dispatch behavior. Zero values fall back to the
// package defaults.
type Config struct {
	AdminID       string
	TriggerPhrase string
	ReportWindow  time.Duration
	MaxChunkRunes int
	Zone          *time.Location
	Replies       Replies
}

// Stores bundles the shared state the dispatcher mutates. The composition
// root owns the instances; the activity log is shared with the daily
// scheduler.
type Stores struct {
	Conversations *memory.ConversationStore
	Pending       *memory.PendingStore
	Names         *memory.NameCache
	Activity      *activity.Log
}

// Dispatcher handles webhook events end to end.
type Dispatcher struct {
	cfg    Config
	model  Model
	msgr   Messenger
	stores Stores
	logger *slog.Logger
}

// New creates a dispatcher, filling unset config fields with defaults.
func New(cfg Config, model Model, msgr Messenger, stores Stores, logger *slog.Logger) *Dispatcher {
	if cfg.TriggerPhrase == "" {
		cfg.TriggerPhrase = DefaultTriggerPhrase
	}
	if cfg.ReportWindow <= 0 {
		cfg.ReportWindow = DefaultReportWindow
	}
	if cfg.MaxChunkRunes <= 0 {
		cfg.MaxChunkRunes = report.DefaultMaxChunkRunes
	}
	if cfg.Replies.Apology == "" {
		cfg.Replies.Apology = defaultApology
	}
	if cfg.Replies.ImageApology == "" {
		cfg.Replies.ImageApology = defaultImageApology
	}
	if cfg.Replies.ImagePrompt == "" {
		cfg.Replies.ImagePrompt = defaultImagePrompt
	}
	return &Dispatcher{
		cfg:    cfg,
		model:  model,
		msgr:   msgr,
		stores: stores,
		logger: logger.With("component", "bot"),
	}
}

// HandleEvents dispatches every event of a webhook delivery on its own
// goroutine and returns immediately. The HTTP handler must answer the
// platform fast; model latency stays off the request path.
func (d *Dispatcher) HandleEvents(ctx context.Context, events []line.Event) {
	for _, ev := range events {
		go d.handleEvent(ctx, ev)
	}
}

func (d *Dispatcher) handleEvent(ctx context.Context, ev line.Event) {
	if ev.Type != line.EventTypeMessage || ev.Message == nil {
		d.logger.Debug("event ignored", "type", ev.Type)
		return
	}
	if ev.Source.UserID == "" {
		d.logger.Debug("event without user source ignored", "source_type", ev.Source.Type)
		return
	}

	logger := d.logger.With(
		"user", ev.Source.UserID,
		"msg_id", ev.Message.ID,
	)

	switch ev.Message.Type {
	case line.MessageTypeImage:
		d.handleImage(ctx, ev, logger)
	case line.MessageTypeText:
		d.handleText(ctx, ev, logger)
	default:
		logger.Debug("message ignored", "msg_type", ev.Message.Type)
	}
}

// handleImage downloads the image and parks it for the user's next text.
// The model is not called yet; the bot asks what the user wants to know.
func (d *Dispatcher) handleImage(ctx context.Context, ev line.Event, logger *slog.Logger) {
	data, mime, err := d.msgr.MessageContent(ctx, ev.Message.ID)
	if err != nil {
		logger.Warn("image download failed", "error", err)
		d.reply(ctx, ev.ReplyToken, d.cfg.Replies.ImageApology, logger)
		return
	}

	d.stores.Pending.Put(ev.Source.UserID, memory.Attachment{Data: data, MIME: mime})
	logger.Info("image parked for follow-up", "bytes", len(data), "mime", mime)
	d.reply(ctx, ev.ReplyToken, d.cfg.Replies.ImagePrompt, logger)
}

// handleText runs the full text flow:
// trigger check → loading indicator → model call → record → reply.
func (d *Dispatcher) handleText(ctx context.Context, ev line.Event, logger *slog.Logger) {
	start := time.Now()
	userID := ev.Source.UserID
	text := ev.Message.Text

	logger.Info("incoming text", "preview", truncate(text, 50))

	// ── Step 1: Admin report trigger ──
	// The exact phrase from the admin short-circuits the model entirely.
	// The same phrase from anyone else is an ordinary message.
	if userID == d.cfg.AdminID && text == d.cfg.TriggerPhrase {
		d.replyOnDemandReport(ctx, ev, logger)
		return
	}

	// ── Step 2: Loading indicator ──
	// Cosmetic. A failure here never blocks the turn.
	if err := d.msgr.StartLoading(ctx, userID); err != nil {
		logger.Debug("loading indicator failed", "error", err)
	}

	// ── Step 3: Model call ──
	// A parked image is consumed before any network await, so two rapid
	// texts can never both claim it. Image answers skip the rolling
	// history; the picture stands on its own.
	att, withImage := d.stores.Pending.Take(userID)

	var answer string
	var err error
	if withImage {
		answer, err = d.model.ChatWithImage(ctx, att.Data, att.MIME, text)
	} else {
		answer, err = d.model.ChatWithHistory(ctx, d.stores.Conversations.History(userID), text)
	}
	if err != nil {
		logger.Warn("model call failed", "with_image", withImage, "error", err)
		d.reply(ctx, ev.ReplyToken, d.cfg.Replies.Apology, logger)
		return
	}

	// ── Step 4: Record the exchange ──
	// History and the activity log only learn about turns that produced
	// an answer; the failed path above leaves both untouched.
	d.stores.Conversations.AppendExchange(userID, text, answer)
	d.stores.Activity.Append(activity.Entry{
		UserID:       userID,
		DisplayName:  d.stores.Names.Resolve(ctx, userID),
		UserText:     text,
		ReplyPreview: truncate(answer, previewRunes),
	})

	// ── Step 5: Deliver ──
	d.reply(ctx, ev.ReplyToken, answer, logger)
	logger.Info("text handled",
		"with_image", withImage,
		"history_turns", d.stores.Conversations.Len(userID),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// replyOnDemandReport answers the admin trigger with the trailing-window
// report. A reply token carries one message, so only the first chunk
// goes out; the full report still arrives with the scheduled daily push.
func (d *Dispatcher) replyOnDemandReport(ctx context.Context, ev line.Event, logger *slog.Logger) {
	entries := d.stores.Activity.EntriesSince(time.Now().Add(-d.cfg.ReportWindow))
	chunks := report.Split(report.Build(entries, onDemandTitle, d.cfg.Zone), d.cfg.MaxChunkRunes)

	d.reply(ctx, ev.ReplyToken, chunks[0], logger)
	logger.Info("on-demand report sent", "entries", len(entries), "chunks_total", len(chunks))
}

// reply sends text on the event's reply token. Delivery is best effort:
// by the time we reply, the turn's state changes are already committed.
func (d *Dispatcher) reply(ctx context.Context, replyToken, text string, logger *slog.Logger) {
	if err := d.msgr.Reply(ctx, replyToken, text); err != nil {
		logger.Warn("reply failed", "error", err)
	}
}

// truncate caps s at max runes, marking a cut with an ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
