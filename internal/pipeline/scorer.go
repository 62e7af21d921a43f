package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"review-reply-automation/internal/llm"
	"review-reply-automation/internal/metrics"
	"review-reply-automation/internal/prompt"
	"review-reply-automation/internal/types"
)

const (
	scoreTemperature = 0.2
	scoreMaxTokens   = 300
)

// DefaultThreshold is the minimum total score to accept a reply.
const DefaultThreshold = 80

// ErrScoringUnavailable is returned when scoring failed and fail-open is off.
var ErrScoringUnavailable = errors.New("scoring unavailable")

// dimension is one weighted rubric axis.
type dimension struct {
	key    string
	weight int
}

var rubric = []dimension{
	{"contextual_accuracy", 30},
	{"domain_specificity", 20},
	{"formatting", 20},
	{"tone", 15},
	{"language_quality", 15},
}

// Score is a rubric result on a 0..100 scale.
type Score struct {
	Total      int
	Dimensions map[string]int
	Feedback   string
	// FailedOpen is set when the scorer could not score and passed the
	// candidate at the threshold instead.
	FailedOpen bool
}

// Scorer grades reply candidates against the rubric.
type Scorer struct {
	llm       llm.Client
	prompts   *prompt.Loader
	language  string
	threshold int
	failOpen  bool
}

// NewScorer creates a scorer. threshold outside 0..100 falls back to the default.
func NewScorer(client llm.Client, prompts *prompt.Loader, language string, threshold int, failOpen bool) *Scorer {
	if threshold < 0 || threshold > 100 {
		threshold = DefaultThreshold
	}
	return &Scorer{llm: client, prompts: prompts, language: language, threshold: threshold, failOpen: failOpen}
}

// Threshold returns the acceptance threshold.
func (s *Scorer) Threshold() int {
	return s.threshold
}

// Score grades candidate. It returns ErrScoringUnavailable only when the
// scorer failed and fail-open is disabled.
func (s *Scorer) Score(ctx context.Context, candidate string, req GenerateRequest) (Score, error) {
	score, err := s.score(ctx, candidate, req)
	if err == nil {
		return score, nil
	}
	if !s.failOpen {
		slog.Warn("reply scoring failed", "error", err)
		return Score{}, fmt.Errorf("%w: %v", ErrScoringUnavailable, err)
	}
	slog.Warn("reply scoring failed, passing at threshold", "error", err, "threshold", s.threshold)
	metrics.ScoringFailOpen.Inc()
	return Score{Total: s.threshold, FailedOpen: true}, nil
}

func (s *Scorer) score(ctx context.Context, candidate string, req GenerateRequest) (Score, error) {
	p, err := s.prompts.Render(req.Review.Platform, prompt.Score, map[string]any{
		"Language":      s.language,
		"Reply":         candidate,
		"Rating":        req.Review.Rating,
		"Text":          req.Review.Text,
		"OrderMenu":     req.Review.OrderMenu,
		"ClosingPhrase": req.Policy.ClosingPhrase,
		"MaxLength":     req.Policy.EffectiveMaxLength(),
	})
	if err != nil {
		return Score{}, err
	}

	raw, err := s.llm.Complete(ctx, llm.Request{
		System:      p.System,
		User:        p.User,
		MaxTokens:   scoreMaxTokens,
		Temperature: scoreTemperature,
	})
	if err != nil {
		return Score{}, fmt.Errorf("score reply: %w", err)
	}
	return ParseScore(raw)
}

// ParseScore reads a rubric result. The total field wins when present;
// otherwise dimensions are summed, each clamped to its weight.
func ParseScore(raw string) (Score, error) {
	obj := types.ExtractJSONObject(raw)
	if obj == "" || !gjson.Valid(obj) {
		return Score{}, fmt.Errorf("parse score: no json object")
	}
	v := gjson.Parse(obj)

	score := Score{Dimensions: make(map[string]int, len(rubric)), Feedback: v.Get("feedback").String()}
	sum, found := 0, 0
	for _, d := range rubric {
		r := v.Get(d.key)
		if !r.Exists() {
			continue
		}
		n := clamp(int(r.Float()+0.5), 0, d.weight)
		score.Dimensions[d.key] = n
		sum += n
		found++
	}

	if t := v.Get("total"); t.Exists() && t.Type != gjson.Null {
		score.Total = clamp(int(t.Float()+0.5), 0, 100)
		return score, nil
	}
	if found == 0 {
		return Score{}, fmt.Errorf("parse score: no total and no dimensions")
	}
	score.Total = sum
	return score, nil
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
