package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-reply-automation/internal/domain"
	"review-reply-automation/internal/validator"
)

type fakeGenerator struct {
	replies []string
	errs    []error
	budgets []int
	calls   int
}

func (f *fakeGenerator) Generate(_ context.Context, req GenerateRequest) (string, error) {
	i := f.calls
	f.calls++
	f.budgets = append(f.budgets, req.Budget)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return f.replies[len(f.replies)-1], nil
}

type fakeScorer struct {
	totals    map[string]int
	err       error
	threshold int
	calls     int
}

func (f *fakeScorer) Score(_ context.Context, candidate string, _ GenerateRequest) (Score, error) {
	f.calls++
	if f.err != nil {
		return Score{}, f.err
	}
	return Score{Total: f.totals[candidate]}, nil
}

func (f *fakeScorer) Threshold() int { return f.threshold }

var testPolicy = domain.StorePolicy{ClosingPhrase: "감사합니다.", MaxLength: 100}

func TestLoop_AcceptsFirstPassing(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"별로예요. 감사합니다.", "맛있게 드셔서 기뻐요. 감사합니다."}}
	scorer := &fakeScorer{threshold: 80, totals: map[string]int{
		"별로예요. 감사합니다.":        60,
		"맛있게 드셔서 기뻐요. 감사합니다.": 90,
	}}

	out := NewLoop(gen, scorer, LoopConfig{}).Run(context.Background(), GenerateRequest{Policy: testPolicy})
	assert.Equal(t, OutcomeAccepted, out.Status)
	assert.Equal(t, "맛있게 드셔서 기뻐요. 감사합니다.", out.Reply)
	assert.Equal(t, 90, out.Score.Total)
	assert.Len(t, out.Attempts, 2)
	assert.Equal(t, 2, gen.calls)
}

func TestLoop_BestEffort(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"하나. 감사합니다.", "둘. 감사합니다.", "셋. 감사합니다."}}
	scorer := &fakeScorer{threshold: 80, totals: map[string]int{
		"하나. 감사합니다.": 50,
		"둘. 감사합니다.":  72,
		"셋. 감사합니다.":  65,
	}}

	out := NewLoop(gen, scorer, LoopConfig{MaxAttempts: 3}).Run(context.Background(), GenerateRequest{Policy: testPolicy})
	assert.Equal(t, OutcomeBestEffort, out.Status)
	assert.True(t, out.OK())
	assert.Equal(t, "둘. 감사합니다.", out.Reply)
	assert.Equal(t, 72, out.Score.Total)
	assert.Len(t, out.Reasons(), 3)
}

func TestLoop_Exhausted(t *testing.T) {
	gen := &fakeGenerator{
		replies: []string{"", "", "ㅋㅋㅋ 감사합니다."},
		errs:    []error{errors.New("timeout")},
	}
	scorer := &fakeScorer{threshold: 80}

	out := NewLoop(gen, scorer, LoopConfig{MaxAttempts: 3}).Run(context.Background(), GenerateRequest{Policy: testPolicy})
	assert.Equal(t, OutcomeExhausted, out.Status)
	assert.False(t, out.OK())
	assert.Equal(t, CodeGenerationExhausted, out.Code)
	require.Len(t, out.Attempts, 3)
	assert.Contains(t, out.Attempts[0].Reason, CodeGenerationError)
	assert.Equal(t, validator.CodeEmpty, out.Attempts[1].Validation.Code)
	assert.Equal(t, validator.CodeExcessiveSlang, out.Attempts[2].Validation.Code)
	assert.Zero(t, scorer.calls)
}

func TestLoop_AttemptBound(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5} {
		gen := &fakeGenerator{replies: []string{"나쁨. 감사합니다."}}
		scorer := &fakeScorer{threshold: 80}
		out := NewLoop(gen, scorer, LoopConfig{MaxAttempts: n}).Run(context.Background(), GenerateRequest{Policy: testPolicy})
		assert.Equal(t, n, gen.calls)
		assert.Len(t, out.Attempts, n)
	}
}

func TestLoop_TooLongShrinksBudget(t *testing.T) {
	long := strings.Repeat("가", 120) + ". 감사합니다."
	gen := &fakeGenerator{replies: []string{long, long, "좋아요. 감사합니다."}}
	scorer := &fakeScorer{threshold: 80, totals: map[string]int{"좋아요. 감사합니다.": 85}}

	out := NewLoop(gen, scorer, LoopConfig{}).Run(context.Background(), GenerateRequest{Policy: testPolicy})
	assert.Equal(t, OutcomeAccepted, out.Status)
	require.Len(t, gen.budgets, 3)
	assert.Equal(t, 100-6-10, gen.budgets[0])
	assert.Equal(t, int(float64(84)*0.85), gen.budgets[1])
	assert.Less(t, gen.budgets[2], gen.budgets[1])
}

func TestLoop_OnlyTooLongShrinksBudget(t *testing.T) {
	tests := []struct {
		name    string
		first   string
		code    validator.Code
		extra   []string
		initial int
	}{
		{"forbidden word", "배달비 죄송해요. 감사합니다.", validator.CodeForbiddenWord, []string{"배달비"}, 84},
		{"low score", "별로예요. 감사합니다.", validator.CodeOK, nil, 84},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{replies: []string{tt.first, "좋아요. 감사합니다."}}
			scorer := &fakeScorer{threshold: 80, totals: map[string]int{"좋아요. 감사합니다.": 85}}

			out := NewLoop(gen, scorer, LoopConfig{}).Run(context.Background(), GenerateRequest{
				Policy:         testPolicy,
				ExtraForbidden: tt.extra,
			})
			assert.Equal(t, OutcomeAccepted, out.Status)
			assert.Equal(t, tt.code, out.Attempts[0].Validation.Code)
			assert.Equal(t, []int{tt.initial, tt.initial}, gen.budgets)
		})
	}
}

func TestLoop_ScoringUnavailable(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"좋아요. 감사합니다."}}
	scorer := &fakeScorer{threshold: 80, err: ErrScoringUnavailable}

	out := NewLoop(gen, scorer, LoopConfig{MaxAttempts: 2}).Run(context.Background(), GenerateRequest{Policy: testPolicy})
	assert.Equal(t, OutcomeExhausted, out.Status)
	assert.Equal(t, []string{CodeScoringUnavailable, CodeScoringUnavailable}, out.Reasons())
}

func TestLoop_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &fakeGenerator{replies: []string{"좋아요. 감사합니다."}}
	out := NewLoop(gen, &fakeScorer{threshold: 80}, LoopConfig{}).Run(ctx, GenerateRequest{Policy: testPolicy})
	assert.Equal(t, OutcomeExhausted, out.Status)
	assert.Zero(t, gen.calls)
	require.Len(t, out.Attempts, 1)
	assert.Contains(t, out.Attempts[0].Reason, CodeCancelled)
}

func TestLoop_LearnedForbiddenWords(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"배달비 죄송해요. 감사합니다.", "늦어서 죄송해요. 감사합니다."}}
	scorer := &fakeScorer{threshold: 80, totals: map[string]int{"늦어서 죄송해요. 감사합니다.": 90}}

	out := NewLoop(gen, scorer, LoopConfig{}).Run(context.Background(), GenerateRequest{
		Policy:         testPolicy,
		ExtraForbidden: []string{"배달비"},
	})
	assert.Equal(t, OutcomeAccepted, out.Status)
	assert.Equal(t, validator.CodeForbiddenWord, out.Attempts[0].Validation.Code)
}

func TestInitialBudget(t *testing.T) {
	assert.Equal(t, 300-6-10, InitialBudget(domain.StorePolicy{ClosingPhrase: "감사합니다."}))
	assert.Equal(t, 290, InitialBudget(domain.StorePolicy{}))
	assert.Equal(t, minBudget, InitialBudget(domain.StorePolicy{MaxLength: 30, ClosingPhrase: "감사합니다."}))
}
