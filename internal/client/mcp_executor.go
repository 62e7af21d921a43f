package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"review-reply-automation/internal/filter"
	"review-reply-automation/internal/metrics"
)

// ToolError is returned when the server executed the tool and reported a failure.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed: %s", e.Tool, e.Message)
}

// CallTool calls a tool on a registered server and returns the JSON payload
// of the result after the server's response filter.
//
// Connection failures are retried on a fresh session; a failure reported by
// the tool itself is returned as *ToolError without retry.
func (c *MCPClient) CallTool(ctx context.Context, serverName, toolName string, args map[string]any) ([]byte, error) {
	return c.call(ctx, serverName, toolName, args, true)
}

// CallToolOnce is CallTool for tools with side effects. The request is sent at
// most once: a failure after it went out is returned, since the server may
// already have acted on it. Only failures to open a session are retried.
func (c *MCPClient) CallToolOnce(ctx context.Context, serverName, toolName string, args map[string]any) ([]byte, error) {
	return c.call(ctx, serverName, toolName, args, false)
}

func (c *MCPClient) call(ctx context.Context, serverName, toolName string, args map[string]any, resend bool) ([]byte, error) {
	logger := slog.With("server", serverName, "tool", toolName)
	logger.Debug("call tool")

	var lastErr error
	for attempt := range c.cfg.Retry.Attempts {
		if attempt > 0 {
			c.markStale(serverName)
			c.wait(ctx, attempt-1)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		session, err := c.session(serverName)
		if err != nil {
			lastErr = err
			continue
		}

		result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: toolName, Arguments: args})
		if err != nil {
			lastErr = err
			if errors.Is(err, context.Canceled) {
				break
			}
			logger.Warn("call tool failed", "attempt", attempt, "error", err)
			if !resend {
				c.markStale(serverName)
				break
			}
			continue
		}

		payload := resultPayload(result)
		if result.IsError {
			metrics.MCPToolCalls.WithLabelValues(serverName, toolName, "tool_error").Inc()
			return nil, &ToolError{Tool: toolName, Message: string(payload)}
		}
		metrics.MCPToolCalls.WithLabelValues(serverName, toolName, "success").Inc()
		return c.filtered(serverName, toolName, payload), nil
	}

	metrics.MCPToolCalls.WithLabelValues(serverName, toolName, "error").Inc()
	return nil, fmt.Errorf("call tool %s/%s: %w", serverName, toolName, lastErr)
}

func (c *MCPClient) filtered(serverName, toolName string, payload []byte) []byte {
	c.mu.RLock()
	var f filter.ResponseFilter
	if s, ok := c.servers[serverName]; ok {
		f = s.filter
	}
	c.mu.RUnlock()
	if f == nil {
		return payload
	}
	return f.Filter(toolName, payload)
}

// resultPayload prefers structured content and falls back to the joined text
// content blocks.
func resultPayload(result *mcp.CallToolResult) []byte {
	if result == nil {
		return nil
	}
	if result.StructuredContent != nil {
		if b, err := json.Marshal(result.StructuredContent); err == nil {
			return b
		}
	}
	var parts []string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return []byte(strings.Join(parts, "\n"))
}
