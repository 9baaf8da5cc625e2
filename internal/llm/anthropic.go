package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/radiusdt/adsight/internal/config"
)

// AnthropicClient implements Client using the Anthropic API.
type AnthropicClient struct {
	client anthropic.Client
	model  anthropic.Model
	logger *zap.Logger
}

// NewAnthropicClient creates a new Anthropic-based LLM client.
func NewAnthropicClient(cfg config.LLMConfig, logger *zap.Logger) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithMaxRetries(cfg.MaxRetries),
			option.WithRequestTimeout(cfg.Timeout),
		),
		model:  anthropic.Model(cfg.Model),
		logger: logger,
	}
}

// Complete sends the conversation to Claude and returns the first text block.
func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	start := time.Now()

	turns := conversation(req.History, req.Prompt)
	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		if t.user {
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(t.text)))
		} else {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.text)))
		}
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: req.MaxTokens,
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: req.System},
		},
		Messages: messages,
	})

	duration := time.Since(start)
	if err != nil {
		c.logger.Error("Anthropic API call failed", zap.Duration("duration", duration), zap.Error(err))
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	c.logger.Debug("Anthropic API call completed",
		zap.String("model", string(c.model)),
		zap.Duration("duration", duration),
		zap.String("stop_reason", string(msg.StopReason)),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}

	return "", fmt.Errorf("no text content in response")
}
