// Package runner wires configuration into store sessions and runs them.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"review-reply-automation/internal/analyzer"
	"review-reply-automation/internal/client"
	"review-reply-automation/internal/config"
	"review-reply-automation/internal/escalation"
	"review-reply-automation/internal/filter"
	"review-reply-automation/internal/filter/storefront"
	"review-reply-automation/internal/identity"
	"review-reply-automation/internal/llm"
	"review-reply-automation/internal/pipeline"
	"review-reply-automation/internal/processor"
	"review-reply-automation/internal/prompt"
	"review-reply-automation/internal/storage"
	sf "review-reply-automation/internal/storefront"
	"review-reply-automation/internal/validator"
)

// StoreRunner runs one store session.
type StoreRunner interface {
	RunStore(ctx context.Context, code string) (processor.RunStats, error)
}

// Result is the outcome of one store within a run.
type Result struct {
	Stats processor.RunStats
	Err   error
}

// Runner holds the components shared by every store session.
type Runner struct {
	cfg  *config.Config
	orch *processor.Orchestrator
	mcp  *client.MCPClient
}

// New builds the shared components. The caller owns repo and model.
func New(cfg *config.Config, repo storage.Repository, model llm.Client) (*Runner, error) {
	slang, err := validator.CompilePatterns(cfg.Reply.SlangPatterns)
	if err != nil {
		return nil, err
	}

	prompts := prompt.NewLoader(cfg.Prompts.Dir)
	loop := pipeline.NewLoop(
		pipeline.NewGenerator(model, prompts, cfg.Reply.Language),
		pipeline.NewScorer(model, prompts, cfg.Reply.Language, cfg.Reply.Scoring.Threshold, cfg.Reply.Scoring.FailOpen),
		pipeline.LoopConfig{
			MaxAttempts:       cfg.Reply.MaxAttempts,
			DisallowedScripts: cfg.Reply.DisallowedScripts,
			SlangPatterns:     slang,
		},
	)
	orch := processor.NewOrchestrator(repo, analyzer.New(model, prompts), loop, cfg.Reply.MitigationRetries)

	mcpClient := client.NewMCPClient(cfg.Storefront)
	respFilter := filter.NewFilterChain(storefront.NewResponseFilter(
		cfg.Storefront.ResponseFilter.MaxStringLen,
		cfg.Storefront.ResponseFilter.DropFields,
	))
	for _, s := range cfg.ActiveStores() {
		p := cfg.Platforms[s.Platform]
		mcpClient.AddServer(s.Code, client.ServerInfo{
			Endpoint:   p.Endpoint,
			Store:      s.Code,
			Token:      s.Token,
			AuthHeader: p.AuthHeader,
		})
		mcpClient.SetResponseFilter(s.Code, respFilter)
	}

	return &Runner{cfg: cfg, orch: orch, mcp: mcpClient}, nil
}

// Healthy reports whether no storefront circuit is open.
func (r *Runner) Healthy() bool {
	return r.mcp.IsHealthy()
}

// Warmup opens the storefront session of every active store. Failures are
// logged and retried lazily by the next run.
func (r *Runner) Warmup(codes []string) int {
	ok := 0
	for _, code := range codes {
		if err := r.mcp.Connect(code); err != nil {
			slog.Warn("storefront warmup failed", "store", code, "error", err)
			continue
		}
		ok++
	}
	return ok
}

// Close releases the storefront connections.
func (r *Runner) Close() error {
	return r.mcp.Close()
}

// Session builds the store session for code.
func (r *Runner) Session(code string) (processor.StoreSession, error) {
	s, ok := r.cfg.Store(code)
	if !ok {
		return processor.StoreSession{}, fmt.Errorf("unknown store: %s", code)
	}
	p, ok := r.cfg.Platforms[s.Platform]
	if !ok {
		return processor.StoreSession{}, fmt.Errorf("store %s: unknown platform %s", code, s.Platform)
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return processor.StoreSession{}, fmt.Errorf("store %s: load timezone: %w", code, err)
	}

	return processor.StoreSession{
		Code:       s.Code,
		Name:       s.Name,
		Platform:   s.Platform,
		Location:   loc,
		Policy:     s.Policy,
		Escalation: escalation.New(p.DelayDays, p.HumanDelayDays, r.cfg.Reply.ReanswerOnIntegrityMismatch),
		Resolver:   identity.NewResolver(p.IdentityFields),
		Adapter:    sf.NewMCPAdapter(r.mcp, s.Code, s.Code, p.Tools, loc),
	}, nil
}

// RunStore runs one store session under the configured run timeout.
func (r *Runner) RunStore(ctx context.Context, code string) (processor.RunStats, error) {
	session, err := r.Session(code)
	if err != nil {
		return processor.RunStats{Store: code}, err
	}
	if r.cfg.Schedule.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Schedule.RunTimeout)
		defer cancel()
	}
	return r.orch.RunStore(ctx, session)
}

// RunAll runs the selected stores (all active stores when codes is empty)
// with at most parallel sessions at a time. A failing store does not stop
// the others.
func RunAll(ctx context.Context, sr StoreRunner, codes []string, parallel int) map[string]Result {
	if parallel <= 0 {
		parallel = 1
	}
	results := make([]Result, len(codes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, code := range codes {
		g.Go(func() error {
			stats, err := sr.RunStore(gctx, code)
			if err != nil {
				slog.Error("store run failed", "store", code, "error", err)
			}
			stats.Store = code
			results[i] = Result{Stats: stats, Err: err}
			return nil
		})
	}
	g.Wait()

	out := make(map[string]Result, len(codes))
	for i, code := range codes {
		out[code] = results[i]
	}
	return out
}

// StoreCodes returns the codes of the active stores matching filter.
func StoreCodes(cfg *config.Config, only ...string) []string {
	var codes []string
	for _, s := range cfg.ActiveStores(only...) {
		codes = append(codes, s.Code)
	}
	return codes
}
