// Package openai serves provider commands and /switch classification through
// any OpenAI-compatible chat completion endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/delta5-hq/d5-sub001/internal/logging"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/delta5-hq/d5-sub001/pkg/ports"
	backend "github.com/sashabaranov/go-openai"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gpt-4o-mini"

const defaultSystemPrompt = "You are a helpful assistant. Answer as an indented markdown outline."

// ErrNoChoices is returned when the endpoint answers without any choice.
var ErrNoChoices = errors.New("openai returned no choices")

// Config holds the connection settings.
type Config struct {
	APIKey       string  `mapstructure:"api_key"`
	BaseURL      string  `mapstructure:"base_url"`
	Model        string  `mapstructure:"model"`
	SystemPrompt string  `mapstructure:"system_prompt"`
	Temperature  float32 `mapstructure:"temperature"`
}

// Client implements ports.Generator and ports.Classifier.
type Client struct {
	api    *backend.Client
	cfg    Config
	logger *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

var (
	_ ports.Generator  = (*Client)(nil)
	_ ports.Classifier = (*Client)(nil)
)

// New creates a client from cfg.
func New(cfg Config, opts ...Option) *Client {
	apiCfg := backend.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	c := &Client{
		api:    backend.NewClientWithConfig(apiCfg),
		cfg:    cfg,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// systemPrompt specializes the instruction for summarizing query types.
func (c *Client) systemPrompt(qt domain.QueryType) string {
	switch qt {
	case domain.QuerySummarize:
		return c.cfg.SystemPrompt + " Summarize the given outline."
	case domain.QueryMemorize:
		return c.cfg.SystemPrompt + " Extract the facts worth remembering from the given outline."
	default:
		return c.cfg.SystemPrompt
	}
}

// Generate sends req.Prompt as the user message.
// The "model" and "temperature" flags override the configured values.
func (c *Client) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	chat := backend.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Messages: []backend.ChatCompletionMessage{
			{Role: backend.ChatMessageRoleSystem, Content: c.systemPrompt(req.QueryType)},
			{Role: backend.ChatMessageRoleUser, Content: req.Prompt},
		},
		User: req.UserID,
	}
	if m := req.Flags["model"]; m != "" {
		chat.Model = m
	}
	if raw := req.Flags["temperature"]; raw != "" {
		t, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return "", fmt.Errorf("invalid temperature %q: %w", raw, err)
		}
		chat.Temperature = float32(t)
	}

	c.logger.Debug("generating", "query_type", req.QueryType, "model", chat.Model, "workflow_id", req.WorkflowID)
	return c.complete(ctx, chat)
}

// Classify asks the model to pick one option. The raw answer is returned;
// callers normalize it.
func (c *Client) Classify(ctx context.Context, question string, options []string) (string, error) {
	system := "Answer with exactly one of the following options and nothing else: " + strings.Join(options, ", ")
	return c.complete(ctx, backend.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []backend.ChatCompletionMessage{
			{Role: backend.ChatMessageRoleSystem, Content: system},
			{Role: backend.ChatMessageRoleUser, Content: question},
		},
	})
}

func (c *Client) complete(ctx context.Context, chat backend.ChatCompletionRequest) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, chat)
	if err != nil {
		return "", fmt.Errorf("openai call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	c.logger.Debug("completion received", "model", chat.Model, "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}
