package pipeline

import (
	"context"
	"fmt"

	"review-reply-automation/internal/llm"
	"review-reply-automation/internal/prompt"
)

const (
	generateTemperature = 0.7
	generateMaxTokens   = 600
)

// Generator writes one reply candidate per call.
type Generator struct {
	llm      llm.Client
	prompts  *prompt.Loader
	language string
}

// NewGenerator creates a generator writing in language.
func NewGenerator(client llm.Client, prompts *prompt.Loader, language string) *Generator {
	return &Generator{llm: client, prompts: prompts, language: language}
}

// Generate makes exactly one model call and returns the sanitized candidate
// with the closing phrase in place.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	p, err := g.prompts.Render(req.Review.Platform, prompt.Generate, g.promptData(req))
	if err != nil {
		return "", err
	}

	raw, err := g.llm.Complete(ctx, llm.Request{
		System:      p.System,
		User:        p.User,
		MaxTokens:   generateMaxTokens,
		Temperature: generateTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}

	text := Sanitize(raw)
	if text == "" {
		return "", nil
	}
	return EnsureClosing(text, req.Policy.ClosingPhrase), nil
}

func (g *Generator) promptData(req GenerateRequest) map[string]any {
	text := req.Review.Text
	return map[string]any{
		"Language":       g.language,
		"StoreName":      req.Review.StoreName,
		"StoreType":      req.Policy.StoreTypeLabel(),
		"Tone":           req.Policy.Tone,
		"OpeningPhrase":  req.Policy.OpeningPhrase,
		"ClosingPhrase":  req.Policy.ClosingPhrase,
		"ForbiddenWords": req.ForbiddenWords(),
		"Budget":         req.Budget,
		"NoQuote":        req.NoQuote,
		"Author":         req.AddressedAs(),
		"Rating":         req.Review.Rating,
		"Text":           text,
		"OrderMenu":      req.Review.OrderMenu,
		"DeliveryNote":   req.Review.DeliveryNote,
	}
}
