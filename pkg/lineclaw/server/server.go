// Package server hosts the HTTP surface of the bot: the LINE webhook
// callback and a health probe. Webhook deliveries are verified, decoded
// and acknowledged immediately; event processing runs detached from the
// request so the platform never waits on a model call.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jholhewres/lineclaw/pkg/lineclaw/activity"
	"github.com/jholhewres/lineclaw/pkg/lineclaw/line"
)

// maxBodyBytes bounds webhook bodies. Deliveries are small JSON; anything
// bigger is not a webhook.
const maxBodyBytes = 2 << 20

// Config holds the listener settings.
type Config struct {
	Address string `yaml:"address"`
}

// Dispatcher consumes the events of an accepted delivery. *bot.Dispatcher
// satisfies it.
type Dispatcher interface {
	HandleEvents(ctx context.Context, events []line.Event)
}

// Server is the webhook HTTP server.
type Server struct {
	cfg       Config
	secret    string
	dispatch  Dispatcher
	log       *activity.Log
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time

	// baseCtx outlives individual requests; detached event processing
	// hangs off it and is canceled by Stop.
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates the server. channelSecret is the LINE channel secret used
// to verify delivery signatures.
func New(cfg Config, channelSecret string, dispatch Dispatcher, log *activity.Log, logger *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	if cfg.Address == "" {
		cfg.Address = ":8080"
	}
	return &Server{
		cfg:       cfg,
		secret:    channelSecret,
		dispatch:  dispatch,
		log:       log,
		logger:    logger.With("component", "server"),
		startedAt: time.Now(),
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// Handler builds the full route and middleware chain. Exposed so tests
// can drive the server through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.handleCallback)
	mux.HandleFunc("/health", s.handleHealth)
	return s.recoverPanics(s.accessLog(securityHeaders(mux)))
}

// Start begins serving in the background. Listener errors after startup
// surface in the log, not as a return value.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Address,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server listening", "address", s.cfg.Address)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("webhook server failed", "error", err)
		}
	}()
	return nil
}

// Stop drains in-flight requests, then cancels detached event processing.
func (s *Server) Stop(ctx context.Context) error {
	defer s.cancel()
	if s.server == nil {
		return nil
	}
	s.logger.Info("webhook server stopping")
	return s.server.Shutdown(ctx)
}

// handleCallback verifies and decodes a webhook delivery. The platform
// expects a prompt 2xx; everything slow happens after the ack, detached
// from the request context.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	logger := s.logger.With("delivery", uuid.NewString())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		logger.Warn("webhook body unreadable", "error", err)
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	events, err := line.ParseWebhook(s.secret, body, r.Header.Get("X-Line-Signature"))
	if err != nil {
		if errors.Is(err, line.ErrInvalidSignature) {
			logger.Warn("webhook rejected", "reason", "invalid signature", "remote", r.RemoteAddr)
			writeError(w, http.StatusBadRequest, "invalid signature")
			return
		}
		logger.Warn("webhook rejected", "reason", "malformed body", "error", err)
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	logger.Info("webhook delivery accepted", "events", len(events))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	s.dispatch.HandleEvents(s.baseCtx, events)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"uptime_seconds":   int(time.Since(s.startedAt).Seconds()),
		"activity_entries": s.log.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
