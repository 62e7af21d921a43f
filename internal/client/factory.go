package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"

	"review-reply-automation/internal/config"
	"review-reply-automation/internal/llm"
)

const defaultOllamaEndpoint = "http://localhost:11434"

// NewLLM creates the configured text-generation client, wrapped with the
// shared timeout, rate limit and concurrency cap.
// The returned client is safe for concurrent use.
func NewLLM(ctx context.Context, cfg config.LLMConfig) (llm.Client, error) {
	var inner llm.Client

	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
		if cfg.Endpoint != "" {
			opts = append(opts, option.WithBaseURL(cfg.Endpoint))
		}
		c := openai.NewClient(opts...)
		inner = NewOpenAIAdapter(&c, cfg.Model)

	case config.ProviderAnthropic:
		opts := []anthropicoption.RequestOption{anthropicoption.WithAPIKey(cfg.APIKey)}
		if cfg.Endpoint != "" {
			opts = append(opts, anthropicoption.WithBaseURL(cfg.Endpoint))
		}
		c := anthropic.NewClient(opts...)
		inner = NewAnthropicAdapter(&c, cfg.Model)

	case config.ProviderGemini:
		m, err := gemini.NewModel(ctx, cfg.Model, &genai.ClientConfig{APIKey: cfg.APIKey})
		if err != nil {
			return nil, fmt.Errorf("create gemini model: %w", err)
		}
		inner = NewGeminiAdapter(m)

	case config.ProviderLangChain:
		opts := []lcopenai.Option{lcopenai.WithModel(cfg.Model), lcopenai.WithToken(cfg.APIKey)}
		if cfg.Endpoint != "" {
			opts = append(opts, lcopenai.WithBaseURL(cfg.Endpoint))
		}
		m, err := lcopenai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create langchain model: %w", err)
		}
		inner = NewLangChainAdapter(m, cfg.Model)

	case config.ProviderOllama:
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOllamaEndpoint
		}
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama endpoint: %w", err)
		}
		inner = NewOllamaAdapter(api.NewClient(u, http.DefaultClient), cfg.Model)

	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}

	return NewLimitedClient(inner, cfg.Provider, LimitOptions{
		Timeout:        cfg.Timeout,
		RatePerSecond:  cfg.RatePerSecond,
		Burst:          cfg.Burst,
		MaxConcurrency: cfg.MaxConcurrency,
	}), nil
}
