package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"

	"review-reply-automation/internal/llm"
	"review-reply-automation/internal/types"
)

// OllamaAdapter implements llm.Client over a local Ollama server.
type OllamaAdapter struct {
	client *api.Client
	model  string
}

// NewOllamaAdapter creates a new Ollama adapter
func NewOllamaAdapter(client *api.Client, model string) *OllamaAdapter {
	return &OllamaAdapter{client: client, model: model}
}

// Name returns the model name
func (a *OllamaAdapter) Name() string {
	return "ollama-" + a.model
}

// Complete runs one non-streaming chat request.
func (a *OllamaAdapter) Complete(ctx context.Context, req llm.Request) (string, error) {
	var messages []api.Message
	if req.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.User})

	options := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	stream := false

	var content strings.Builder
	err := a.client.Chat(ctx, &api.ChatRequest{
		Model:    a.model,
		Messages: messages,
		Options:  options,
		Stream:   &stream,
	}, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		var statusErr api.StatusError
		if errors.As(err, &statusErr) && isRetryableStatus(statusErr.StatusCode) {
			return "", types.NewRetryableError(fmt.Errorf("ollama request: %w", err))
		}
		return "", fmt.Errorf("ollama request: %w", err)
	}
	if content.Len() == 0 {
		return "", fmt.Errorf("no ollama response")
	}
	return content.String(), nil
}
