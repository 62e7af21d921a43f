package client

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"review-reply-automation/internal/llm"
	"review-reply-automation/internal/types"
)

// GeminiAdapter implements llm.Client on top of an adk model.LLM.
type GeminiAdapter struct {
	model model.LLM
}

// NewGeminiAdapter wraps an adk model, usually built with gemini.NewModel.
func NewGeminiAdapter(m model.LLM) *GeminiAdapter {
	return &GeminiAdapter{model: m}
}

// Name returns the model name
func (a *GeminiAdapter) Name() string {
	return "gemini-" + a.model.Name()
}

// Complete runs one non-streaming generation and joins the text parts.
func (a *GeminiAdapter) Complete(ctx context.Context, req llm.Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	llmReq := &model.LLMRequest{
		Model:    a.model.Name(),
		Contents: []*genai.Content{genai.NewContentFromText(req.User, genai.RoleUser)},
		Config:   cfg,
	}

	var sb strings.Builder
	for resp, err := range a.model.GenerateContent(ctx, llmReq, false) {
		if err != nil {
			return "", types.NewRetryableError(fmt.Errorf("gemini request: %w", err))
		}
		if resp == nil {
			continue
		}
		if resp.Content == nil {
			continue
		}
		for _, part := range resp.Content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no gemini response")
	}
	return sb.String(), nil
}
