// Package analyzer classifies a review before any reply is attempted.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"review-reply-automation/internal/domain"
	"review-reply-automation/internal/llm"
	"review-reply-automation/internal/metrics"
	"review-reply-automation/internal/prompt"
	"review-reply-automation/internal/types"
)

// Synthetic categories for analyses that could not be obtained from the model.
const (
	CategoryParseError   = "PARSE_ERROR"
	CategoryServiceError = "SERVICE_ERROR"
	CategoryNoText       = "NO_TEXT"
)

const (
	temperature = 0.1
	maxTokens   = 300
)

// Sentiment bounds applied after the model verdict.
const (
	promoteSentiment  = 0.5
	highRatingFloor   = 0.4
	lowRatingCeiling  = 0.6
	highRatingMinimum = 4
	lowRatingMaximum  = 2
)

var errNoJSON = errors.New("no json object in response")

// Input is the review content the analyzer sees.
type Input struct {
	Platform     string
	Rating       int
	Text         string
	OrderMenu    string
	DeliveryNote string
	StoreType    string
}

// Analyzer produces an auto-reply eligibility verdict for a review.
type Analyzer struct {
	llm     llm.Client
	prompts *prompt.Loader
}

// New creates an analyzer.
func New(client llm.Client, prompts *prompt.Loader) *Analyzer {
	return &Analyzer{llm: client, prompts: prompts}
}

// Analyze never fails: service and parse errors yield a HIGH severity
// verdict that is not eligible for auto-reply.
func (a *Analyzer) Analyze(ctx context.Context, in Input) domain.Analysis {
	var res domain.Analysis
	if strings.TrimSpace(in.Text) == "" {
		res = ratingOnly(in.Rating)
	} else {
		res = a.analyzeText(ctx, in)
	}

	metrics.AnalyzerResults.WithLabelValues(string(res.Severity), strconv.FormatBool(res.AutoReply)).Inc()
	return res
}

// ratingOnly decides reviews without text from the star rating alone.
func ratingOnly(rating int) domain.Analysis {
	res := domain.Analysis{Category: CategoryNoText}
	switch {
	case rating >= highRatingMinimum:
		res.AutoReply, res.Severity, res.Sentiment = true, domain.SeverityLow, 0.8
		res.Reason = "positive rating without text"
	case rating <= lowRatingMaximum:
		res.AutoReply, res.Severity, res.Sentiment = false, domain.SeverityHigh, 0.2
		res.Reason = "low rating without text"
	default:
		res.AutoReply, res.Severity, res.Sentiment = true, domain.SeverityMedium, 0.5
		res.Reason = "neutral rating without text"
	}
	return res
}

func (a *Analyzer) analyzeText(ctx context.Context, in Input) domain.Analysis {
	p, err := a.prompts.Render(in.Platform, prompt.Analyze, map[string]any{
		"Rating":       in.Rating,
		"Text":         in.Text,
		"OrderMenu":    in.OrderMenu,
		"DeliveryNote": in.DeliveryNote,
		"StoreType":    in.StoreType,
	})
	if err != nil {
		slog.Error("render analysis prompt failed", "error", err)
		return synthetic(CategoryServiceError, err)
	}

	raw, err := a.llm.Complete(ctx, llm.Request{
		System:      p.System,
		User:        p.User,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		slog.Warn("content analysis failed", "error", err, "retryable", types.IsRetryable(err))
		return synthetic(CategoryServiceError, err)
	}

	res, err := Parse(raw)
	if err != nil {
		slog.Warn("content analysis unparseable", "error", err, "raw", truncate(raw, 200))
		return synthetic(CategoryParseError, err)
	}
	return adjust(res, in.Rating)
}

func synthetic(category string, err error) domain.Analysis {
	return domain.Analysis{
		AutoReply: false,
		Sentiment: 0,
		Category:  category,
		Severity:  domain.SeverityHigh,
		Reason:    err.Error(),
	}
}

// Parse reads a model verdict, tolerating markdown fences, surrounding prose
// and loosely typed fields.
func Parse(raw string) (domain.Analysis, error) {
	obj := types.ExtractJSONObject(raw)
	if obj == "" || !gjson.Valid(obj) {
		return domain.Analysis{}, errNoJSON
	}
	v := gjson.Parse(obj)
	if !v.Get("ai_reply").Exists() && !v.Get("severity").Exists() {
		return domain.Analysis{}, fmt.Errorf("missing ai_reply and severity")
	}

	res := domain.Analysis{
		AutoReply:   boolValue(v.Get("ai_reply")),
		Sentiment:   clamp01(v.Get("sentiment_score").Float()),
		Category:    v.Get("category").String(),
		SubCategory: v.Get("sub_category").String(),
		Keywords:    stringList(v.Get("keywords")),
		Severity:    domain.ParseSeverity(strings.TrimSpace(v.Get("severity").String())),
		Reason:      v.Get("reason").String(),
		Actions:     stringList(v.Get("actions")),
	}
	return res, nil
}

// adjust applies the rating-based corrections. The HIGH severity override
// runs last so nothing can re-enable auto-reply after it.
func adjust(res domain.Analysis, rating int) domain.Analysis {
	if res.Sentiment >= promoteSentiment {
		res.AutoReply = true
	}
	if rating >= highRatingMinimum && res.Sentiment < highRatingFloor {
		res.Sentiment = highRatingFloor
	}
	if rating >= 1 && rating <= lowRatingMaximum && res.Sentiment > lowRatingCeiling {
		res.Sentiment = lowRatingCeiling
	}
	if res.Severity == domain.SeverityHigh {
		res.AutoReply = false
	}
	return res
}

func boolValue(r gjson.Result) bool {
	if r.Type == gjson.String {
		switch strings.ToLower(strings.TrimSpace(r.Str)) {
		case "true", "yes", "y", "1":
			return true
		}
		return false
	}
	return r.Bool()
}

func stringList(r gjson.Result) []string {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	var out []string
	if r.IsArray() {
		r.ForEach(func(_, item gjson.Result) bool {
			if s := strings.TrimSpace(item.String()); s != "" {
				out = append(out, s)
			}
			return true
		})
		return out
	}
	for _, s := range strings.Split(r.String(), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
