package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/synapse/pkg/ports"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// Config holds Anthropic client settings
type Config struct {
	APIKey         string
	RequestTimeout time.Duration
	// BaseURL overrides the API endpoint. Empty uses the SDK default.
	BaseURL string
	// MaxRetries overrides the SDK retry count when non-negative.
	MaxRetries int
}

// Client implements LLMClient using the Anthropic Messages API
type Client struct {
	client  anthropic.Client
	metrics ports.MetricsCollector
	logger  *zap.Logger
}

// NewClient creates a new Anthropic client. metrics may be nil.
func NewClient(cfg Config, metrics ports.MetricsCollector, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	return &Client{
		client:  anthropic.NewClient(opts...),
		metrics: metrics,
		logger:  logger,
	}, nil
}

// GenerateCompletion sends a single-turn message and returns the text reply
func (c *Client) GenerateCompletion(ctx context.Context, req *ports.LLMRequest) (*ports.LLMResponse, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	start := time.Now()
	msg, err := c.client.Messages.New(ctx, params)
	latency := time.Since(start)
	if err != nil {
		c.logger.Error("anthropic request failed",
			zap.String("model", req.Model),
			zap.Duration("latency", latency),
			zap.Error(err))
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	resp := &ports.LLMResponse{
		Text:         text.String(),
		Model:        string(msg.Model),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}

	if c.metrics != nil {
		c.metrics.RecordLLMCall(resp.Model, resp.InputTokens, resp.OutputTokens, latency)
	}

	c.logger.Debug("anthropic request completed",
		zap.String("model", resp.Model),
		zap.Int64("input_tokens", resp.InputTokens),
		zap.Int64("output_tokens", resp.OutputTokens),
		zap.Duration("latency", latency))

	return resp, nil
}
