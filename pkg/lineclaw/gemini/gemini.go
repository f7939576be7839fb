// Package gemini wraps the langchaingo Google AI provider behind the two
// calls the bot makes: a history-aware text chat and a single image
// question.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/schema"

	"github.com/jholhewres/lineclaw/pkg/lineclaw/memory"
)

// DefaultModel is used when the config leaves the model unset.
const DefaultModel = "gemini-1.5-flash"

// Config selects the model and carries the API key. The key is usually
// resolved from the environment or the OS keyring rather than written
// into the config file.
type Config struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// Client is a thin wrapper over the googleai LLM client.
type Client struct {
	llm    *googleai.GoogleAI
	model  string
	logger *slog.Logger
}

// New creates a Gemini client. The underlying SDK does not dial until the
// first generation call, so construction succeeds without network access.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is not set")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{
		llm:    llm,
		model:  model,
		logger: logger.With("component", "gemini"),
	}, nil
}

// Model reports the configured model name.
func (c *Client) Model() string {
	return c.model
}

// ChatWithHistory sends the user's message preceded by their rolling
// history and returns the model's text reply.
func (c *Client) ChatWithHistory(ctx context.Context, history []memory.Turn, text string) (string, error) {
	msgs := make([]llms.MessageContent, 0, len(history)+1)
	for _, turn := range history {
		role := schema.ChatMessageTypeHuman
		if turn.Role == memory.RoleModel {
			role = schema.ChatMessageTypeAI
		}
		msgs = append(msgs, llms.TextParts(role, turn.Text))
	}
	msgs = append(msgs, llms.TextParts(schema.ChatMessageTypeHuman, text))

	c.logger.Debug("generating reply", "model", c.model, "history_turns", len(history))
	return c.generate(ctx, msgs)
}

// ChatWithImage sends one image together with the user's question. The
// exchange is deliberately history-free: the image call stands on its
// own.
func (c *Client) ChatWithImage(ctx context.Context, image []byte, mimeType, text string) (string, error) {
	msg := llms.MessageContent{
		Role: schema.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{
			llms.BinaryPart(mimeType, image),
			llms.TextPart(text),
		},
	}
	c.logger.Debug("generating image reply", "model", c.model, "mime", mimeType, "bytes", len(image))
	return c.generate(ctx, []llms.MessageContent{msg})
}

func (c *Client) generate(ctx context.Context, msgs []llms.MessageContent) (string, error) {
	resp, err := c.llm.GenerateContent(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", errors.New("gemini: model returned an empty response")
	}
	return resp.Choices[0].Content, nil
}
