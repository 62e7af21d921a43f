// Package escalation decides what to do with a review given its record,
// its age and the store policy.
package escalation

import (
	"fmt"

	"review-reply-automation/internal/domain"
)

// Action is the orchestrator's next step for one review.
type Action string

const (
	// ActionDefer leaves the review for a later run.
	ActionDefer Action = "DEFER"
	// ActionEscalate hands the review to a human.
	ActionEscalate Action = "ESCALATE"
	// ActionProceed generates and submits a reply.
	ActionProceed Action = "PROCEED"
	// ActionSkip does nothing and writes nothing.
	ActionSkip Action = "SKIP"
	// ActionExclude records the review as excluded by its rating.
	ActionExclude Action = "EXCLUDE"
	// ActionIntegrity reports an answered review that is still listed as unanswered.
	ActionIntegrity Action = "INTEGRITY"
)

// Default delay thresholds in calendar days.
const (
	DefaultDelayDays      = 1
	DefaultHumanDelayDays = 2
)

// Policy holds the platform delay thresholds.
type Policy struct {
	// DelayDays (T1) is how long a fresh review waits before an automatic reply.
	DelayDays int
	// HumanDelayDays (T2) is how long an escalated review waits for a human
	// before the automatic reply takes over.
	HumanDelayDays int
	// ReanswerAnswered lets an ANSWERED record that is still listed as
	// unanswered be replied to again instead of being reported.
	ReanswerAnswered bool
}

// Input is everything Decide looks at.
type Input struct {
	// Record is nil for a review never seen before.
	Record      *domain.ReviewRecord
	Rating      int
	ElapsedDays int
	// Analysis is required for new reviews and ignored otherwise.
	Analysis *domain.Analysis
	Store    domain.StorePolicy
}

// Decision is the outcome of Decide. Status is the status the record should
// hold after the action; it is empty for ActionProceed and ActionSkip.
type Decision struct {
	Action Action
	Status domain.Status
	Reason string
}

// New builds a Policy, replacing non-positive thresholds with defaults.
func New(delayDays, humanDelayDays int, reanswer bool) Policy {
	if delayDays <= 0 {
		delayDays = DefaultDelayDays
	}
	if humanDelayDays <= 0 {
		humanDelayDays = DefaultHumanDelayDays
	}
	return Policy{DelayDays: delayDays, HumanDelayDays: humanDelayDays, ReanswerAnswered: reanswer}
}

// Decide applies the rules in a fixed order; the first match wins.
func (p Policy) Decide(in Input) Decision {
	rec := in.Record

	if rec != nil {
		switch rec.Status {
		case domain.StatusAnswered:
			if !p.ReanswerAnswered {
				return Decision{Action: ActionIntegrity, Status: domain.StatusAnswered, Reason: "answered review listed as unanswered"}
			}
		case domain.StatusExcludedByRating:
			return Decision{Action: ActionSkip, Reason: "excluded by rating"}
		}

		if ceiling := in.Store.EffectiveRetryCeiling(); rec.RetryCount >= ceiling {
			return Decision{Action: ActionSkip, Reason: fmt.Sprintf("retry ceiling reached (%d/%d)", rec.RetryCount, ceiling)}
		}
		if rec.Status == domain.StatusAnswered {
			return Decision{Action: ActionProceed, Reason: "re-answering integrity mismatch"}
		}
	}

	// An unknown rating cannot be checked against the store's rating switches.
	if !domain.KnownRating(in.Rating) {
		if rec != nil && rec.Status == domain.StatusNeedsHuman {
			return Decision{Action: ActionDefer, Status: domain.StatusNeedsHuman, Reason: "rating unknown"}
		}
		return Decision{Action: ActionEscalate, Status: domain.StatusNeedsHuman, Reason: "rating unknown"}
	}

	if !in.Store.RepliesToRating(in.Rating) {
		return Decision{
			Action: ActionExclude,
			Status: domain.StatusExcludedByRating,
			Reason: fmt.Sprintf("auto-reply disabled for rating %d", in.Rating),
		}
	}

	if rec == nil {
		if in.Analysis == nil || !in.Analysis.AutoReply {
			reason := "analysis unavailable"
			if in.Analysis != nil {
				reason = in.Analysis.Reason
				if reason == "" {
					reason = "not suitable for auto-reply"
				}
			}
			return Decision{Action: ActionEscalate, Status: domain.StatusNeedsHuman, Reason: reason}
		}
		if in.ElapsedDays < p.DelayDays {
			return p.deferUntil(domain.StatusPendingDelay, in.ElapsedDays, p.DelayDays)
		}
		return Decision{Action: ActionProceed}
	}

	if rec.Status == domain.StatusNeedsHuman {
		if in.ElapsedDays < p.HumanDelayDays {
			return p.deferUntil(domain.StatusNeedsHuman, in.ElapsedDays, p.HumanDelayDays)
		}
		return Decision{Action: ActionProceed, Reason: "human delay elapsed"}
	}

	if in.ElapsedDays < p.DelayDays {
		return p.deferUntil(rec.Status, in.ElapsedDays, p.DelayDays)
	}
	return Decision{Action: ActionProceed}
}

func (p Policy) deferUntil(status domain.Status, elapsed, threshold int) Decision {
	return Decision{
		Action: ActionDefer,
		Status: status,
		Reason: fmt.Sprintf("waiting %d/%d days", max(elapsed, 0), threshold),
	}
}
