package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"review-reply-automation/internal/domain"
	"review-reply-automation/internal/metrics"
	"review-reply-automation/internal/validator"
)

const (
	// DefaultMaxAttempts bounds generation attempts per loop run.
	DefaultMaxAttempts = 3
	// closingMargin is reserved on top of the closing phrase length.
	closingMargin = 10
	// minBudget is the smallest initial length request.
	minBudget = 40
	// shrinkFactor is applied to the budget after a TOO_LONG candidate.
	shrinkFactor = 0.85
	// minShrunkBudget stops repeated shrinking from collapsing the budget.
	minShrunkBudget = 10
)

// ReplyGenerator produces one reply candidate.
type ReplyGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// ReplyScorer grades one reply candidate.
type ReplyScorer interface {
	Score(ctx context.Context, candidate string, req GenerateRequest) (Score, error)
	Threshold() int
}

// LoopConfig holds the loop's rule settings.
type LoopConfig struct {
	MaxAttempts       int
	DisallowedScripts []string
	SlangPatterns     []*regexp.Regexp
}

// Loop runs generate, validate and score until a candidate is accepted or the
// attempt bound is reached.
type Loop struct {
	gen    ReplyGenerator
	scorer ReplyScorer
	cfg    LoopConfig
}

// NewLoop creates a loop.
func NewLoop(gen ReplyGenerator, scorer ReplyScorer, cfg LoopConfig) *Loop {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Loop{gen: gen, scorer: scorer, cfg: cfg}
}

// InitialBudget is the first length request for a store policy.
func InitialBudget(p domain.StorePolicy) int {
	budget := p.EffectiveMaxLength() - utf8.RuneCountInString(strings.TrimSpace(p.ClosingPhrase)) - closingMargin
	return max(budget, minBudget)
}

// Run never panics and never returns an error; failures are described by
// the returned Outcome.
func (l *Loop) Run(ctx context.Context, req GenerateRequest) Outcome {
	rules := validator.Rules{
		MaxLength:         req.Policy.EffectiveMaxLength(),
		ClosingPhrase:     req.Policy.ClosingPhrase,
		ForbiddenWords:    req.ForbiddenWords(),
		DisallowedScripts: l.cfg.DisallowedScripts,
		SlangPatterns:     l.cfg.SlangPatterns,
	}
	threshold := l.scorer.Threshold()
	budget := InitialBudget(req.Policy)

	var out Outcome
	best := -1
	for n := 1; n <= l.cfg.MaxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			out.Attempts = append(out.Attempts, Attempt{N: n, Budget: budget, Reason: fmt.Sprintf("%s: %v", CodeCancelled, err)})
			break
		}

		req.Budget = budget
		att := l.attempt(ctx, n, req, rules)
		if att.Validation.Code == validator.CodeTooLong {
			budget = max(int(float64(budget)*shrinkFactor), minShrunkBudget)
		}

		if att.Score != nil && att.Score.Total >= threshold {
			metrics.GenerationAttempts.WithLabelValues("accepted").Inc()
			out.Attempts = append(out.Attempts, att)
			out.Status = OutcomeAccepted
			out.Reply = att.Candidate
			out.Score = *att.Score
			return out
		}

		if att.Score != nil {
			att.Reason = fmt.Sprintf("%s: %d < %d", CodeBelowThreshold, att.Score.Total, threshold)
			metrics.GenerationAttempts.WithLabelValues("below_threshold").Inc()
		}
		out.Attempts = append(out.Attempts, att)
		if att.Score != nil && (best < 0 || att.Score.Total > out.Attempts[best].Score.Total) {
			best = len(out.Attempts) - 1
		}
		slog.Debug("reply attempt rejected", "attempt", n, "reason", att.Reason)
	}

	if best >= 0 {
		out.Status = OutcomeBestEffort
		out.Reply = out.Attempts[best].Candidate
		out.Score = *out.Attempts[best].Score
		return out
	}
	out.Status = OutcomeExhausted
	out.Code = CodeGenerationExhausted
	return out
}

func (l *Loop) attempt(ctx context.Context, n int, req GenerateRequest, rules validator.Rules) Attempt {
	att := Attempt{N: n, Budget: req.Budget}

	text, err := l.gen.Generate(ctx, req)
	if err != nil {
		att.Reason = fmt.Sprintf("%s: %v", CodeGenerationError, err)
		metrics.GenerationAttempts.WithLabelValues("error").Inc()
		return att
	}
	att.Candidate = text

	att.Validation = validator.Validate(text, rules)
	if !att.Validation.Valid {
		att.Reason = att.Validation.String()
		metrics.GenerationAttempts.WithLabelValues("invalid").Inc()
		return att
	}

	score, err := l.scorer.Score(ctx, text, req)
	if err != nil {
		att.Reason = CodeScoringUnavailable
		metrics.GenerationAttempts.WithLabelValues("error").Inc()
		return att
	}
	metrics.ReplyScore.Observe(float64(score.Total))
	att.Score = &score
	return att
}
