package client

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"review-reply-automation/internal/llm"
	"review-reply-automation/internal/metrics"
	"review-reply-automation/internal/types"
)

// LimitedClient decorates an llm.Client with a per-call timeout, a rate
// limiter and a concurrency cap shared by every caller.
type LimitedClient struct {
	inner    llm.Client
	provider string
	timeout  time.Duration
	limiter  *rate.Limiter // nil means unlimited
	sem      chan struct{} // nil means unlimited
}

// LimitOptions configures a LimitedClient.
type LimitOptions struct {
	Timeout        time.Duration
	RatePerSecond  float64
	Burst          int
	MaxConcurrency int
}

// NewLimitedClient wraps inner. Zero options disable the matching limit.
func NewLimitedClient(inner llm.Client, provider string, opts LimitOptions) *LimitedClient {
	c := &LimitedClient{
		inner:    inner,
		provider: provider,
		timeout:  opts.Timeout,
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	if opts.MaxConcurrency > 0 {
		c.sem = make(chan struct{}, opts.MaxConcurrency)
	}
	return c
}

// Complete waits for the limiter and a concurrency slot, then calls inner.
func (c *LimitedClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	if c.sem != nil {
		select {
		case c.sem <- struct{}{}:
			defer func() { <-c.sem }()
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := c.inner.Complete(ctx, req)
	metrics.LLMDuration.WithLabelValues(c.provider).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.LLMRequests.WithLabelValues(c.provider, "success").Inc()
	case types.IsRetryable(err):
		metrics.LLMRequests.WithLabelValues(c.provider, "retryable").Inc()
	default:
		metrics.LLMRequests.WithLabelValues(c.provider, "error").Inc()
	}
	return out, err
}
