package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-reply-automation/internal/llm"
	"review-reply-automation/internal/types"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIAdapter {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	c := openai.NewClient(
		option.WithBaseURL(ts.URL),
		option.WithAPIKey("test-key"),
		option.WithMaxRetries(0),
	)
	return NewOpenAIAdapter(&c, "gpt-4o")
}

func TestOpenAIAdapter_Complete(t *testing.T) {
	var reqBody map[string]any
	adapter := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path /chat/completions, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-123",
			"object":  "chat.completion",
			"created": 1677652288,
			"model":   "gpt-4o",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "Thanks for the order!"},
				"finish_reason": "stop",
			}},
		})
	})

	out, err := adapter.Complete(context.Background(), llm.Request{
		System:      "You write replies.",
		User:        "Reply to: tasty",
		MaxTokens:   600,
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "Thanks for the order!", out)

	msgs, ok := reqBody["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
	assert.EqualValues(t, 600, reqBody["max_tokens"])
	assert.InDelta(t, 0.7, reqBody["temperature"], 1e-9)
}

func TestOpenAIAdapter_RateLimitIsRetryable(t *testing.T) {
	adapter := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	})

	_, err := adapter.Complete(context.Background(), llm.Request{User: "hi"})
	require.Error(t, err)
	assert.True(t, types.IsRetryable(err))
}

func TestOpenAIAdapter_BadRequestNotRetryable(t *testing.T) {
	adapter := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad","type":"invalid_request_error"}}`))
	})

	_, err := adapter.Complete(context.Background(), llm.Request{User: "hi"})
	require.Error(t, err)
	assert.False(t, types.IsRetryable(err))
}
