// Package processor drives one store session: it lists unanswered reviews,
// decides what to do with each, answers the eligible ones and records the
// outcome.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"review-reply-automation/internal/analyzer"
	"review-reply-automation/internal/domain"
	"review-reply-automation/internal/escalation"
	"review-reply-automation/internal/identity"
	"review-reply-automation/internal/metrics"
	"review-reply-automation/internal/pipeline"
	"review-reply-automation/internal/storage"
	"review-reply-automation/internal/storefront"
)

// Error log categories.
const (
	CategoryExtraction = "extraction"
	CategoryStorage    = "storage"
	CategoryIntegrity  = "integrity"
	CategoryGeneration = "generation"
	CategorySubmission = "submission"
)

// DefaultWriteTimeout bounds one record or error-log write.
const DefaultWriteTimeout = 10 * time.Second

// ErrorTypeAnsweredRelisted marks an ANSWERED review found in the unanswered listing.
const ErrorTypeAnsweredRelisted = "ANSWERED_RELISTED"

// ContentAnalyzer classifies a review.
type ContentAnalyzer interface {
	Analyze(ctx context.Context, in analyzer.Input) domain.Analysis
}

// StoreSession is everything needed to process one store.
type StoreSession struct {
	Code       string
	Name       string
	Platform   string
	Location   *time.Location
	Policy     domain.StorePolicy
	Escalation escalation.Policy
	Resolver   *identity.Resolver
	Adapter    storefront.Adapter
}

// Orchestrator is the sole caller of the other components.
type Orchestrator struct {
	repo           storage.Repository
	analyzer       ContentAnalyzer
	loop           ReplyLoop
	maxMitigations int
	writeTimeout   time.Duration
	now            func() time.Time
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(repo storage.Repository, a ContentAnalyzer, loop ReplyLoop, maxMitigations int) *Orchestrator {
	return &Orchestrator{
		repo:           repo,
		analyzer:       a,
		loop:           loop,
		maxMitigations: maxMitigations,
		writeTimeout:   DefaultWriteTimeout,
		now:            time.Now,
	}
}

// run holds the state of one RunStore call. The handled set lives here so
// that it never outlives the run.
type run struct {
	*Orchestrator
	session   StoreSession
	submitter *Submitter
	handled   map[string]struct{}
	stats     RunStats
	log       *slog.Logger
	today     time.Time
}

// RunStore processes the store's pending reviews sequentially. An error is
// returned only when the listing itself fails or ctx is done; per-review
// failures are recorded and counted.
func (o *Orchestrator) RunStore(ctx context.Context, s StoreSession) (RunStats, error) {
	start := time.Now()
	if s.Location == nil {
		s.Location = time.UTC
	}
	r := &run{
		Orchestrator: o,
		session:      s,
		submitter:    NewSubmitter(s.Adapter, o.loop, o.maxMitigations),
		handled:      make(map[string]struct{}),
		stats:        RunStats{Store: s.Code},
		log:          slog.With("store", s.Code, "platform", s.Platform),
		today:        calendarDate(o.now().In(s.Location)),
	}

	err := r.execute(ctx)
	r.stats.Duration = time.Since(start)

	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.StoreRuns.WithLabelValues(s.Code, result).Inc()
	metrics.RunDuration.WithLabelValues(result).Observe(r.stats.Duration.Seconds())
	r.log.Info("store run finished", "result", result, "stats", r.stats.String(), "duration", r.stats.Duration)
	return r.stats, err
}

func (r *run) execute(ctx context.Context) error {
	reviews, err := r.session.Adapter.ListPendingReviews(ctx)
	if err != nil {
		return fmt.Errorf("list pending reviews: %w", err)
	}
	r.stats.Listed = len(reviews)
	r.log.Info("pending reviews listed", "count", len(reviews))

	for _, raw := range reviews {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome := r.process(ctx, raw)
		metrics.ReviewsTotal.WithLabelValues(r.session.Code, outcome).Inc()
	}
	return ctx.Err()
}

// process handles one review and returns the outcome label.
func (r *run) process(ctx context.Context, raw domain.RawReview) string {
	if raw.StoreCode == "" {
		raw.StoreCode = r.session.Code
	}

	if raw.Partial {
		full, err := r.session.Adapter.ExtractFields(ctx, raw.Ref)
		if err != nil {
			r.log.Warn("extract review fields failed", "ref", raw.Ref, "error", err)
			r.appendError(ctx, CategoryExtraction, "EXTRACTION_FAILED", err.Error(), "", raw, nil)
			r.stats.Failed++
			return "failed"
		}
		if full.StoreCode == "" {
			full.StoreCode = raw.StoreCode
		}
		raw = full
	}

	id := r.session.Resolver.Fingerprint(raw)
	log := r.log.With("identity", identity.Short(id))
	if _, seen := r.handled[id]; seen {
		log.Debug("review already handled in this run")
		r.stats.Duplicates++
		return "duplicate"
	}
	r.handled[id] = struct{}{}

	rec, err := r.repo.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		rec, err = nil, nil
	}
	if err != nil {
		log.Error("load review record failed", "error", err)
		r.stats.Failed++
		return "failed"
	}

	if !domain.KnownRating(raw.Rating) && rec != nil && domain.KnownRating(rec.Rating) {
		raw.Rating = rec.Rating
	}

	reviewDate := r.firstDate(rec, raw)
	elapsed := elapsedDays(reviewDate, r.today)

	var analysis *domain.Analysis
	if rec == nil && r.session.Policy.RepliesToRating(raw.Rating) {
		a := r.analyzer.Analyze(ctx, analyzer.Input{
			Platform:     r.session.Platform,
			Rating:       raw.Rating,
			Text:         raw.Text,
			OrderMenu:    raw.OrderMenu,
			DeliveryNote: raw.DeliveryNote,
			StoreType:    r.session.Policy.StoreTypeLabel(),
		})
		analysis = &a
	}

	d := r.session.Escalation.Decide(escalation.Input{
		Record:      rec,
		Rating:      raw.Rating,
		ElapsedDays: elapsed,
		Analysis:    analysis,
		Store:       r.session.Policy,
	})
	log.Debug("review decision", "action", d.Action, "elapsed_days", elapsed, "reason", d.Reason)

	switch d.Action {
	case escalation.ActionSkip:
		r.stats.Skipped++
		return "skipped"

	case escalation.ActionIntegrity:
		log.Warn("answered review listed as unanswered")
		r.appendError(ctx, CategoryIntegrity, ErrorTypeAnsweredRelisted, d.Reason, id, raw, nil)
		r.stats.Integrity++
		return "integrity"

	case escalation.ActionExclude:
		next := r.nextRecord(id, rec, raw, reviewDate)
		next.Status = domain.StatusExcludedByRating
		next.Reason = d.Reason
		r.save(ctx, log, next)
		r.stats.Excluded++
		return "excluded"

	case escalation.ActionEscalate:
		next := r.nextRecord(id, rec, raw, reviewDate)
		next.Status = domain.StatusNeedsHuman
		next.Reason = d.Reason
		applyAnalysis(next, analysis)
		r.save(ctx, log, next)
		r.stats.Escalated++
		return "escalated"

	case escalation.ActionDefer:
		if rec == nil {
			next := r.nextRecord(id, rec, raw, reviewDate)
			next.Status = d.Status
			next.Reason = d.Reason
			applyAnalysis(next, analysis)
			r.save(ctx, log, next)
		}
		r.stats.Deferred++
		return "deferred"

	case escalation.ActionProceed:
		next := r.nextRecord(id, rec, raw, reviewDate)
		applyAnalysis(next, analysis)
		return r.answer(ctx, log, next, raw)
	}

	log.Error("unknown decision", "action", d.Action)
	r.stats.Failed++
	return "failed"
}

// answer generates and submits a reply. retry_count grows by one here and
// nowhere else.
func (r *run) answer(ctx context.Context, log *slog.Logger, next *domain.ReviewRecord, raw domain.RawReview) string {
	next.RetryCount++

	gen := pipeline.GenerateRequest{
		Review: pipeline.ReviewContext{
			Platform:     r.session.Platform,
			StoreName:    r.session.Name,
			Author:       raw.Author,
			Rating:       raw.Rating,
			Text:         raw.Text,
			OrderMenu:    raw.OrderMenu,
			DeliveryNote: raw.DeliveryNote,
		},
		Policy: r.session.Policy,
	}

	outcome := r.loop.Run(ctx, gen)
	if ctx.Err() != nil {
		log.Warn("reply generation interrupted", "error", ctx.Err())
		return "interrupted"
	}
	if !outcome.OK() {
		reasons := outcome.Reasons()
		next.Status = domain.StatusFailed
		next.Category = outcome.Code
		next.Reason = strings.Join(reasons, "; ")
		log.Warn("reply generation exhausted", "attempts", len(outcome.Attempts))
		r.save(ctx, log, next)
		r.appendError(ctx, CategoryGeneration, outcome.Code, next.Reason, next.Identity, raw, reasons)
		r.stats.Failed++
		return "failed"
	}
	if outcome.Status == pipeline.OutcomeBestEffort {
		log.Info("submitting best effort reply", "score", outcome.Score.Total)
	}

	res := r.submitter.Submit(ctx, SubmitRequest{Ref: raw.Ref, Reply: outcome.Reply, Generate: gen})
	next.Status = res.Status
	next.AIReply = res.Reply
	next.Reason = res.Reason

	if res.Status == domain.StatusAnswered {
		answeredAt := r.now()
		next.AnsweredAt = &answeredAt
		if !r.save(ctx, log, next) {
			log.Error("answered reply not recorded", "ref", raw.Ref)
			r.stats.Failed++
			return "failed"
		}
		log.Info("review answered", "score", outcome.Score.Total, "mitigations", res.Mitigations)
		r.stats.Answered++
		return "answered"
	}

	log.Warn("reply submission failed", "status", res.Status, "reason", res.Reason)
	r.save(ctx, log, next)
	outcomes := make([]string, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		outcomes = append(outcomes, o.String())
	}
	r.appendError(ctx, CategorySubmission, string(res.Status), res.Reason, next.Identity, raw, outcomes)
	r.stats.Failed++
	return "failed"
}

// nextRecord starts the record to write from the stored one, or from the
// listing for a new review.
func (r *run) nextRecord(id string, rec *domain.ReviewRecord, raw domain.RawReview, reviewDate time.Time) *domain.ReviewRecord {
	var next *domain.ReviewRecord
	if rec != nil {
		next = rec.Clone()
	} else {
		next = &domain.ReviewRecord{Identity: id}
	}
	next.StoreCode = r.session.Code
	next.PlatformCode = r.session.Platform
	next.StoreName = r.session.Name
	next.Author = raw.Author
	next.Rating = raw.Rating
	next.ReviewText = raw.Text
	next.OrderMenu = raw.OrderMenu
	next.DeliveryNote = raw.DeliveryNote
	next.ReviewDate = reviewDate
	next.UpdatedAt = r.now()
	return next
}

// firstDate is the stored review date, else the listed one, else today.
func (r *run) firstDate(rec *domain.ReviewRecord, raw domain.RawReview) time.Time {
	if rec != nil && !rec.ReviewDate.IsZero() {
		return calendarDate(rec.ReviewDate)
	}
	if !raw.Date.IsZero() {
		return calendarDate(raw.Date.In(r.session.Location))
	}
	return r.today
}

// writeContext detaches a write from run cancellation: once the storefront
// has accepted a reply the record must still land.
func (r *run) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.writeTimeout)
}

// save upserts rec and reports whether it was stored.
func (r *run) save(ctx context.Context, log *slog.Logger, rec *domain.ReviewRecord) bool {
	wctx, cancel := r.writeContext(ctx)
	defer cancel()
	if err := r.repo.Upsert(wctx, rec); err != nil {
		log.Error("save review record failed", "status", rec.Status, "error", err)
		r.appendError(ctx, CategoryStorage, "UPSERT_FAILED", err.Error(), rec.Identity, domain.RawReview{
			Author: rec.Author,
			Rating: rec.Rating,
		}, nil)
		return false
	}
	return true
}

func (r *run) appendError(ctx context.Context, category, errorType, message, id string, raw domain.RawReview, attempts []string) {
	detail, _ := sjson.Set("{}", "fingerprint", id)
	detail, _ = sjson.Set(detail, "ref", raw.Ref)
	detail, _ = sjson.Set(detail, "author", raw.Author)
	detail, _ = sjson.Set(detail, "rating", raw.Rating)
	if len(attempts) > 0 {
		detail, _ = sjson.Set(detail, "attempts", attempts)
	}

	entry := &storage.ErrorEntry{
		ID:        uuid.NewString(),
		Category:  category,
		Platform:  r.session.Platform,
		StoreCode: r.session.Code,
		Identity:  id,
		ErrorType: errorType,
		Message:   message,
		Detail:    detail,
		CreatedAt: r.now(),
	}
	wctx, cancel := r.writeContext(ctx)
	defer cancel()
	if err := r.repo.AppendError(wctx, entry); err != nil {
		r.log.Error("append error log failed", "error_type", errorType, "error", err)
		return
	}
	metrics.ErrorLogWrites.WithLabelValues(errorType).Inc()
}

func applyAnalysis(rec *domain.ReviewRecord, a *domain.Analysis) {
	if a == nil {
		return
	}
	rec.Category = a.Category
	if rec.Reason == "" {
		rec.Reason = a.Reason
	}
}

// calendarDate keeps only the wall-clock date of t, as UTC midnight.
func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// elapsedDays counts calendar days between two calendar dates, never negative.
func elapsedDays(from, today time.Time) int {
	days := int(today.Sub(from).Hours() / 24)
	return max(days, 0)
}
