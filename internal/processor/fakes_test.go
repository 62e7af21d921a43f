package processor

import (
	"context"
	"slices"
	"sync"
	"time"

	"review-reply-automation/internal/domain"
	"review-reply-automation/internal/llm"
	"review-reply-automation/internal/storage"
	"review-reply-automation/internal/storefront"
)

// memRepo mirrors the write guards of the SQL repositories.
type memRepo struct {
	mu        sync.Mutex
	records   map[string]*domain.ReviewRecord
	errors    []*storage.ErrorEntry
	upserts   int
	upsertErr error
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]*domain.ReviewRecord)}
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.ReviewRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *memRepo) Upsert(_ context.Context, rec *domain.ReviewRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	next := rec.Clone()
	if old, ok := m.records[rec.Identity]; ok {
		if old.Status == domain.StatusAnswered {
			next.Status = old.Status
			next.AIReply = old.AIReply
		}
		next.RetryCount = max(old.RetryCount, next.RetryCount)
		if !old.ReviewDate.IsZero() {
			next.ReviewDate = old.ReviewDate
		}
		if old.AnsweredAt != nil {
			next.AnsweredAt = old.AnsweredAt
		}
	}
	m.records[rec.Identity] = next
	return nil
}

func (m *memRepo) ListByStatus(_ context.Context, storeCode string, status domain.Status, limit int) ([]*domain.ReviewRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ReviewRecord
	for _, r := range m.records {
		if r.StoreCode == storeCode && r.Status == status {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *memRepo) ClearRetries(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return storage.ErrNotFound
	}
	rec.RetryCount = 0
	return nil
}

func (m *memRepo) AppendError(_ context.Context, e *storage.ErrorEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, e)
	return nil
}

func (m *memRepo) ListRecentErrors(_ context.Context, limit int) ([]*storage.ErrorEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.errors), nil
}

func (m *memRepo) Close() error { return nil }

func (m *memRepo) only() *domain.ReviewRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		return r.Clone()
	}
	return nil
}

type fakeAdapter struct {
	reviews   []domain.RawReview
	listErr   error
	extracted map[string]domain.RawReview
	outcomes  []storefront.SubmitOutcome
	submitErr error
	submitted []string
	// afterSubmit runs once the storefront has accepted a reply.
	afterSubmit func()
}

func (f *fakeAdapter) ListPendingReviews(context.Context) ([]domain.RawReview, error) {
	return f.reviews, f.listErr
}

func (f *fakeAdapter) ExtractFields(_ context.Context, ref string) (domain.RawReview, error) {
	r, ok := f.extracted[ref]
	if !ok {
		return domain.RawReview{}, storage.ErrNotFound
	}
	return r, nil
}

func (f *fakeAdapter) SubmitReply(_ context.Context, _ string, text string) (storefront.SubmitOutcome, error) {
	f.submitted = append(f.submitted, text)
	if f.submitErr != nil {
		return storefront.SubmitOutcome{}, f.submitErr
	}
	i := len(f.submitted) - 1
	if i < len(f.outcomes) {
		return f.outcomes[i], nil
	}
	if f.afterSubmit != nil {
		f.afterSubmit()
	}
	return storefront.SubmitOutcome{Kind: storefront.OutcomeSuccess}, nil
}

// scriptedLLM answers by request kind, told apart by temperature.
type scriptedLLM struct {
	mu       sync.Mutex
	analysis string
	replies  []string
	score    string
	analyzes int
	genReqs  []llm.Request
	scores   int
}

func (s *scriptedLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch req.Temperature {
	case 0.1:
		s.analyzes++
		return s.analysis, nil
	case 0.7:
		i := len(s.genReqs)
		s.genReqs = append(s.genReqs, req)
		if i < len(s.replies) {
			return s.replies[i], nil
		}
		return s.replies[len(s.replies)-1], nil
	default:
		s.scores++
		if s.score == "" {
			return `{"total": 90}`, nil
		}
		return s.score, nil
	}
}

func (s *scriptedLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analyzes + len(s.genReqs) + s.scores
}

func (s *scriptedLLM) lastGenerate() llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.genReqs[len(s.genReqs)-1]
}

var kst = time.FixedZone("KST", 9*60*60)

func daysAgo(now time.Time, n int) time.Time {
	d := now.In(kst)
	return time.Date(d.Year(), d.Month(), d.Day()-n, 0, 0, 0, 0, kst)
}
