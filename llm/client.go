// Package llm implements the summarization and assessment collaborators on
// the DashScope OpenAI-compatible chat completion API.
package llm

import (
	"context"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ZhuYizhou2333/Market-insight-bot/analyzer"
	"github.com/ZhuYizhou2333/Market-insight-bot/errors"
	"github.com/ZhuYizhou2333/Market-insight-bot/event"
)

// DefaultBaseURL is DashScope's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

// DefaultModel is the production model.
const DefaultModel = "qwen-plus-latest"

// Config holds the API binding.
type Config struct {
	APIKey  string
	BaseURL string        // DefaultBaseURL when empty
	Model   string        // DefaultModel when empty
	Timeout time.Duration // per-call budget, 0 means no timeout
}

// Client implements analyzer.Summarizer and analyzer.Assessor.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// Interface guards
var (
	_ analyzer.Summarizer = (*Client)(nil)
	_ analyzer.Assessor   = (*Client)(nil)
)

// NewClient creates a Client. The API key is required.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "llm", "NewClient", "api key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL

	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger.With("component", "llm", "model", cfg.Model),
	}, nil
}

// complete runs one chat completion and returns the first choice's content.
func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", errors.WrapTransient(err, "llm", "complete", "chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", errors.WrapInvalid(errors.ErrNoSummary, "llm", "complete", "empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Summarize implements analyzer.Summarizer.
func (c *Client) Summarize(ctx context.Context, events []event.StreamEvent, category event.Category) (string, error) {
	if len(events) == 0 {
		return "", nil
	}
	system, user := summaryPrompts(events)
	summary, err := c.complete(ctx, system, user)
	if err != nil {
		return "", errors.Wrap(err, "llm", "Summarize", string(category)+" summary")
	}
	return summary, nil
}

// Assess implements analyzer.Assessor. The model is instructed to answer
// with bare JSON; anything that does not parse into the full assessment
// shape is rejected.
func (c *Client) Assess(ctx context.Context, events []event.StreamEvent) (analyzer.Assessment, error) {
	if len(events) == 0 {
		return analyzer.Assessment{}, errors.WrapInvalid(errors.ErrInvalidData, "llm", "Assess", "empty sample")
	}
	system, user := assessmentPrompts(events)
	raw, err := c.complete(ctx, system, user)
	if err != nil {
		return analyzer.Assessment{}, errors.Wrap(err, "llm", "Assess", "assessment")
	}
	assessment, err := ParseAssessment(raw)
	if err != nil {
		c.logger.Error("failed to parse assessment response", "response", raw, "error", err)
		return analyzer.Assessment{}, err
	}
	return assessment, nil
}
