package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"review-reply-automation/internal/metrics"
)

// breaker counts consecutive connection failures of one server and rejects
// connection attempts for a while once the threshold is reached.
type breaker struct {
	failures  int
	openUntil time.Time
}

func (b *breaker) open(now time.Time) bool {
	return now.Before(b.openUntil)
}

// fail records a failure and reports whether the breaker opened on it.
func (b *breaker) fail(now time.Time, threshold int, d time.Duration) bool {
	b.failures++
	if b.failures < threshold || b.open(now) {
		return false
	}
	b.openUntil = now.Add(d)
	return true
}

func (b *breaker) reset() {
	*b = breaker{}
}

// IsHealthy reports whether every registered server is connected or can be
// reconnected on next use.
func (c *MCPClient) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	for _, s := range c.servers {
		if s.breaker.open(now) {
			return false
		}
		if !s.stale && s.session == nil {
			return false
		}
	}
	return true
}

// session returns the live session of name, reconnecting when it is stale.
func (c *MCPClient) session(name string) (*mcp.ClientSession, error) {
	c.mu.RLock()
	s, ok := c.servers[name]
	var (
		live      *mcp.ClientSession
		openUntil time.Time
	)
	if ok {
		if !s.stale {
			live = s.session
		}
		if s.breaker.open(time.Now()) {
			openUntil = s.breaker.openUntil
		}
	}
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("storefront server not configured: %s", name)
	}
	if !openUntil.IsZero() {
		metrics.MCPToolCalls.WithLabelValues(name, "connect", "rejected").Inc()
		return nil, fmt.Errorf("circuit open: %s, retry after %v", name, time.Until(openUntil).Round(time.Second))
	}
	if live != nil {
		return live, nil
	}

	v, err, _ := c.connects.Do(name, func() (any, error) {
		c.mu.RLock()
		s := c.servers[name]
		var live *mcp.ClientSession
		if s != nil && !s.stale {
			live = s.session
		}
		c.mu.RUnlock()
		if live != nil {
			return live, nil
		}
		return c.connect(name)
	})
	if err != nil {
		c.connectFailed(name)
		return nil, err
	}
	return v.(*mcp.ClientSession), nil
}

func (c *MCPClient) connectFailed(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.servers[name]
	if !ok {
		return
	}
	if s.breaker.fail(time.Now(), c.cfg.CircuitBreaker.FailureThreshold, c.cfg.CircuitBreaker.OpenDuration) {
		slog.Warn("circuit breaker opened", "server", name, "failures", s.breaker.failures, "open_until", s.breaker.openUntil)
		metrics.MCPToolCalls.WithLabelValues(name, "connect", "opened").Inc()
	}
}

// markStale forces a reconnect on next use.
func (c *MCPClient) markStale(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.servers[name]; ok {
		s.stale = true
	}
}

// wait sleeps for the attempt's exponential backoff or until ctx is done.
func (c *MCPClient) wait(ctx context.Context, attempt int) {
	d := c.cfg.Retry.Backoff << attempt
	if c.cfg.Retry.MaxBackoff > 0 && d > c.cfg.Retry.MaxBackoff {
		d = c.cfg.Retry.MaxBackoff
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
