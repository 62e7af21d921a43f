package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"

	"review-reply-automation/internal/llm"
	"review-reply-automation/internal/types"
)

// OpenAIAdapter implements llm.Client using the official OpenAI client.
// It also serves OpenAI-compatible endpoints through the base URL.
type OpenAIAdapter struct {
	client *openai.Client
	model  string
}

// NewOpenAIAdapter creates a new OpenAI adapter
func NewOpenAIAdapter(client *openai.Client, model string) *OpenAIAdapter {
	return &OpenAIAdapter{client: client, model: model}
}

// Name returns the model name
func (a *OpenAIAdapter) Name() string {
	return "openai-" + a.model
}

// Ping sends a minimal request to verify connection
func (a *OpenAIAdapter) Ping(ctx context.Context) error {
	slog.Debug("checking llm connection", "model", a.model)
	_, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("hello"),
		},
		MaxTokens: openai.Int(1),
	})
	if err != nil {
		return fmt.Errorf("llm ping failed: %w", err)
	}
	return nil
}

// Complete sends one chat completion and returns the first choice.
func (a *OpenAIAdapter) Complete(ctx context.Context, req llm.Request) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(a.model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", a.wrapError(fmt.Errorf("openai request: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no openai response")
	}
	return resp.Choices[0].Message.Content, nil
}

// wrapError wraps openai errors into RetryableError if applicable
func (a *OpenAIAdapter) wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && isRetryableStatus(apiErr.StatusCode) {
		return types.NewRetryableError(err)
	}
	return err
}

// isRetryableStatus treats 429 (rate limit) and 5xx as transient.
func isRetryableStatus(code int) bool {
	return code == 429 || (code >= 500 && code < 600)
}
