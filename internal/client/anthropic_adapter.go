package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"review-reply-automation/internal/llm"
	"review-reply-automation/internal/types"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicAdapter implements llm.Client over the Anthropic Messages API.
type AnthropicAdapter struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicAdapter creates a new Anthropic adapter
func NewAnthropicAdapter(client *anthropic.Client, model string) *AnthropicAdapter {
	return &AnthropicAdapter{client: client, model: model}
}

// Name returns the model name
func (a *AnthropicAdapter) Name() string {
	return "anthropic-" + a.model
}

// Complete sends one message and concatenates the text blocks of the answer.
func (a *AnthropicAdapter) Complete(ctx context.Context, req llm.Request) (string, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && isRetryableStatus(apiErr.StatusCode) {
			return "", types.NewRetryableError(fmt.Errorf("anthropic request: %w", err))
		}
		return "", fmt.Errorf("anthropic request: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no anthropic response")
	}
	return sb.String(), nil
}
