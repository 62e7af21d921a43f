package client

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"review-reply-automation/internal/llm"
)

// LangChainAdapter implements llm.Client over any langchaingo model.
type LangChainAdapter struct {
	model llms.Model
	name  string
}

// NewLangChainAdapter creates a new LangChain adapter
func NewLangChainAdapter(m llms.Model, name string) *LangChainAdapter {
	return &LangChainAdapter{model: m, name: name}
}

// Name returns the model name
func (a *LangChainAdapter) Name() string {
	return "langchain-" + a.name
}

// Complete sends the system and user prompts as a two-message conversation.
func (a *LangChainAdapter) Complete(ctx context.Context, req llm.Request) (string, error) {
	var msgs []llms.MessageContent
	if req.System != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, req.User))

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	resp, err := a.model.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		return "", fmt.Errorf("langchain request: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("no langchain response")
	}
	return resp.Choices[0].Content, nil
}
