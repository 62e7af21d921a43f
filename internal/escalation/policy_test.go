package escalation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"review-reply-automation/internal/domain"
)

func record(status domain.Status, retries int) *domain.ReviewRecord {
	return &domain.ReviewRecord{Identity: "abc", Status: status, RetryCount: retries}
}

func analysis(auto bool) *domain.Analysis {
	return &domain.Analysis{AutoReply: auto, Severity: domain.SeverityLow}
}

func TestDecide(t *testing.T) {
	p := New(1, 2, false)
	disabled2 := domain.StorePolicy{RatingReplies: map[int]bool{2: false}}

	tests := []struct {
		name   string
		in     Input
		action Action
		status domain.Status
	}{
		{"new auto-replyable fresh", Input{Rating: 5, ElapsedDays: 0, Analysis: analysis(true)}, ActionDefer, domain.StatusPendingDelay},
		{"new auto-replyable aged", Input{Rating: 5, ElapsedDays: 1, Analysis: analysis(true)}, ActionProceed, ""},
		{"new not auto-replyable", Input{Rating: 1, ElapsedDays: 5, Analysis: analysis(false)}, ActionEscalate, domain.StatusNeedsHuman},
		{"new without analysis", Input{Rating: 4, ElapsedDays: 5}, ActionEscalate, domain.StatusNeedsHuman},
		{"new rating disabled", Input{Rating: 2, Analysis: analysis(true), Store: disabled2}, ActionExclude, domain.StatusExcludedByRating},
		{"new unknown rating", Input{Rating: 0, Analysis: analysis(true)}, ActionEscalate, domain.StatusNeedsHuman},
		{"new out of range rating", Input{Rating: 7, ElapsedDays: 5}, ActionEscalate, domain.StatusNeedsHuman},
		{"pending delay unknown rating", Input{Record: record(domain.StatusPendingDelay, 0), Rating: 0, ElapsedDays: 5}, ActionEscalate, domain.StatusNeedsHuman},
		{"needs human unknown rating after T2", Input{Record: record(domain.StatusNeedsHuman, 0), Rating: 0, ElapsedDays: 9}, ActionDefer, domain.StatusNeedsHuman},
		{"excluded unknown rating", Input{Record: record(domain.StatusExcludedByRating, 0), Rating: 0, ElapsedDays: 9}, ActionSkip, ""},
		{"pending delay still young", Input{Record: record(domain.StatusPendingDelay, 0), Rating: 4, ElapsedDays: 0}, ActionDefer, domain.StatusPendingDelay},
		{"pending delay aged", Input{Record: record(domain.StatusPendingDelay, 0), Rating: 4, ElapsedDays: 1}, ActionProceed, ""},
		{"needs human before T2", Input{Record: record(domain.StatusNeedsHuman, 0), Rating: 2, ElapsedDays: 1}, ActionDefer, domain.StatusNeedsHuman},
		{"needs human after T2", Input{Record: record(domain.StatusNeedsHuman, 0), Rating: 2, ElapsedDays: 2}, ActionProceed, ""},
		{"failed aged", Input{Record: record(domain.StatusFailed, 3), Rating: 5, ElapsedDays: 4}, ActionProceed, ""},
		{"submission error young", Input{Record: record(domain.StatusSubmissionError, 1), Rating: 5, ElapsedDays: 0}, ActionDefer, domain.StatusSubmissionError},
		{"answered", Input{Record: record(domain.StatusAnswered, 1), Rating: 5, ElapsedDays: 9}, ActionIntegrity, domain.StatusAnswered},
		{"excluded", Input{Record: record(domain.StatusExcludedByRating, 0), Rating: 5, ElapsedDays: 9}, ActionSkip, ""},
		{"ceiling reached", Input{Record: record(domain.StatusFailed, 10), Rating: 5, ElapsedDays: 9}, ActionSkip, ""},
		{"ceiling beats needs human", Input{Record: record(domain.StatusNeedsHuman, 10), Rating: 5, ElapsedDays: 9}, ActionSkip, ""},
		{"existing record rating disabled", Input{Record: record(domain.StatusFailed, 1), Rating: 2, ElapsedDays: 9, Store: disabled2}, ActionExclude, domain.StatusExcludedByRating},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Decide(tt.in)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.status, d.Status)
		})
	}
}

func TestDecide_CustomCeiling(t *testing.T) {
	p := New(1, 2, false)
	store := domain.StorePolicy{RetryCeiling: 2}

	d := p.Decide(Input{Record: record(domain.StatusFailed, 1), Rating: 5, ElapsedDays: 3, Store: store})
	assert.Equal(t, ActionProceed, d.Action)

	d = p.Decide(Input{Record: record(domain.StatusFailed, 2), Rating: 5, ElapsedDays: 3, Store: store})
	assert.Equal(t, ActionSkip, d.Action)
}

func TestDecide_ReanswerOverride(t *testing.T) {
	p := New(1, 2, true)
	store := domain.StorePolicy{RetryCeiling: 3}

	tests := []struct {
		name    string
		retries int
		action  Action
	}{
		{"below ceiling", 1, ActionProceed},
		{"at ceiling", 3, ActionSkip},
		{"above ceiling", 7, ActionSkip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Decide(Input{Record: record(domain.StatusAnswered, tt.retries), Rating: 5, ElapsedDays: 3, Store: store})
			assert.Equal(t, tt.action, d.Action)
		})
	}
}

func TestDecide_AnsweredWithoutOverrideIgnoresCeiling(t *testing.T) {
	p := New(1, 2, false)
	d := p.Decide(Input{Record: record(domain.StatusAnswered, 10), Rating: 5, ElapsedDays: 3})
	assert.Equal(t, ActionIntegrity, d.Action)
}

func TestDecide_DeferIsMonotonic(t *testing.T) {
	p := New(3, 5, false)
	statuses := []*domain.ReviewRecord{
		nil,
		record(domain.StatusPendingDelay, 0),
		record(domain.StatusNeedsHuman, 0),
		record(domain.StatusFailed, 1),
	}

	for _, rec := range statuses {
		proceeded := false
		for days := 0; days <= 10; days++ {
			d := p.Decide(Input{Record: rec, Rating: 5, ElapsedDays: days, Analysis: analysis(true)})
			if proceeded {
				assert.NotEqual(t, ActionDefer, d.Action, "deferred after proceeding at day %d", days)
			}
			if d.Action == ActionProceed {
				proceeded = true
			}
		}
		assert.True(t, proceeded)
	}
}

func TestNew_Defaults(t *testing.T) {
	p := New(0, -1, false)
	assert.Equal(t, DefaultDelayDays, p.DelayDays)
	assert.Equal(t, DefaultHumanDelayDays, p.HumanDelayDays)
}
