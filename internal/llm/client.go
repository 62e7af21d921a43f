package llm

import "context"

// Request is a single-turn completion request.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Client is the text-generation service used by the analyzer, generator and scorer.
// Implementations must be safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
