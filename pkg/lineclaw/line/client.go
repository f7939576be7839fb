package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"
)

const (
	defaultAPIBase     = "https://api.line.me"
	defaultDataAPIBase = "https://api-data.line.me"

	// maxTextRunes is the hard text-message limit of the Messaging API.
	// Longer texts are rejected with 400, so outbound texts get clamped.
	maxTextRunes = 5000

	// maxContentBytes bounds media downloads; the platform caps image
	// payloads at 10 MB.
	maxContentBytes = 20 << 20
)

// Config carries the channel credentials issued in the LINE developers
// console. The base URLs exist for tests and stay empty in real configs.
type Config struct {
	ChannelSecret string `yaml:"channel_secret"`
	ChannelToken  string `yaml:"channel_token"`
	APIBase       string `yaml:"api_base,omitempty"`
	DataAPIBase   string `yaml:"data_api_base,omitempty"`
}

// Client is a minimal Messaging API client. All methods are safe for
// concurrent use.
type Client struct {
	cfg      Config
	client   *http.Client
	logger   *slog.Logger
	apiBase  string
	dataBase string
}

// NewClient creates a client for the given channel.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	dataBase := cfg.DataAPIBase
	if dataBase == "" {
		dataBase = defaultDataAPIBase
	}
	return &Client{
		cfg:      cfg,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With("component", "line"),
		apiBase:  apiBase,
		dataBase: dataBase,
	}
}

// ChannelSecret exposes the secret for webhook signature verification.
func (c *Client) ChannelSecret() string {
	return c.cfg.ChannelSecret
}

// Reply sends a text message consuming the given reply token. Tokens are
// single use and expire shortly after the webhook delivery.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	payload := struct {
		ReplyToken string        `json:"replyToken"`
		Messages   []textMessage `json:"messages"`
	}{
		ReplyToken: replyToken,
		Messages:   []textMessage{{Type: "text", Text: c.clampText(text)}},
	}
	return c.post(ctx, c.apiBase, "/v2/bot/message/reply", payload)
}

// Push sends a text message to a user outside any reply window. The
// daily report uses this; one call per chunk.
func (c *Client) Push(ctx context.Context, to, text string) error {
	payload := struct {
		To       string        `json:"to"`
		Messages []textMessage `json:"messages"`
	}{
		To:       to,
		Messages: []textMessage{{Type: "text", Text: c.clampText(text)}},
	}
	return c.post(ctx, c.apiBase, "/v2/bot/message/push", payload)
}

// Profile fetches the display profile of a user who has friended the bot.
func (c *Client) Profile(ctx context.Context, userID string) (*Profile, error) {
	resp, err := c.get(ctx, c.apiBase, "/v2/bot/profile/"+userID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("line: decode profile: %w", err)
	}
	return &profile, nil
}

// MessageContent downloads the binary payload of a media message from the
// data endpoint. It returns the bytes and the Content-Type reported by
// the platform.
func (c *Client) MessageContent(ctx context.Context, messageID string) ([]byte, string, error) {
	resp, err := c.get(ctx, c.dataBase, "/v2/bot/message/"+messageID+"/content")
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxContentBytes))
	if err != nil {
		return nil, "", fmt.Errorf("line: read message content: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "application/octet-stream"
	}
	c.logger.Debug("message content downloaded", "message_id", messageID, "bytes", len(data), "mime", mime)
	return data, mime, nil
}

// StartLoading shows the typing indicator in the user's chat for up to
// twenty seconds. Purely cosmetic; failures are the caller's to ignore.
func (c *Client) StartLoading(ctx context.Context, chatID string) error {
	payload := struct {
		ChatID         string `json:"chatId"`
		LoadingSeconds int    `json:"loadingSeconds"`
	}{
		ChatID:         chatID,
		LoadingSeconds: 20,
	}
	return c.post(ctx, c.apiBase, "/v2/bot/chat/loading/start", payload)
}

func (c *Client) post(ctx context.Context, base, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("line: marshal %s payload: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("line: build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.ChannelToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("line: %s: %w", path, err)
	}
	defer resp.Body.Close()
	return checkStatus(resp, path)
}

func (c *Client) get(ctx context.Context, base, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("line: build %s request: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.ChannelToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("line: %s: %w", path, err)
	}
	if err := checkStatus(resp, path); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// checkStatus turns a non-2xx response into an error carrying the API's
// own message when one is present.
func checkStatus(resp *http.Response, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var apiErr struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr)
	if apiErr.Message != "" {
		return fmt.Errorf("line: %s: status %d: %s", path, resp.StatusCode, apiErr.Message)
	}
	return fmt.Errorf("line: %s: status %d", path, resp.StatusCode)
}

// clampText caps outbound text at the API limit, marking the cut with an
// ellipsis.
func (c *Client) clampText(text string) string {
	if utf8.RuneCountInString(text) <= maxTextRunes {
		return text
	}
	c.logger.Warn("outbound text clamped", "runes", utf8.RuneCountInString(text), "limit", maxTextRunes)
	runes := []rune(text)
	return string(runes[:maxTextRunes-1]) + "…"
}
