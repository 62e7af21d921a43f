// Package pipeline turns a review into an accepted reply: generation,
// validation, scoring and the bounded retry loop around them.
package pipeline

import (
	"review-reply-automation/internal/domain"
	"review-reply-automation/internal/validator"
)

// Failure codes reported by the loop.
const (
	CodeGenerationExhausted = "GENERATION_EXHAUSTED"
	CodeScoringUnavailable  = "SCORING_UNAVAILABLE"
	CodeGenerationError     = "GENERATION_ERROR"
	CodeBelowThreshold      = "BELOW_THRESHOLD"
	CodeCancelled           = "CANCELLED"
)

// ReviewContext is the review content a reply is written for.
type ReviewContext struct {
	Platform     string
	StoreName    string
	Author       string
	Rating       int
	Text         string
	OrderMenu    string
	DeliveryNote string
}

// GenerateRequest is one reply request. The loop owns Budget; callers set the
// mitigation fields.
type GenerateRequest struct {
	Review ReviewContext
	Policy domain.StorePolicy
	// Budget is the requested reply length in runes.
	Budget int
	// ExtraForbidden are words learned from storefront rejections.
	ExtraForbidden []string
	// NoQuote asks the model not to repeat the review verbatim.
	NoQuote bool
	// AuthorSubstitute replaces the customer's name when set.
	AuthorSubstitute string
}

// ForbiddenWords is the store list plus learned words.
func (r GenerateRequest) ForbiddenWords() []string {
	words := make([]string, 0, len(r.Policy.ForbiddenWords)+len(r.ExtraForbidden))
	words = append(words, r.Policy.ForbiddenWords...)
	return append(words, r.ExtraForbidden...)
}

// AddressedAs is the name the reply addresses.
func (r GenerateRequest) AddressedAs() string {
	if r.AuthorSubstitute != "" {
		return r.AuthorSubstitute
	}
	if r.Review.Author != "" {
		return r.Review.Author
	}
	return r.Policy.EffectiveHonorific()
}

// OutcomeStatus is how the loop ended.
type OutcomeStatus string

const (
	// OutcomeAccepted means a candidate reached the score threshold.
	OutcomeAccepted OutcomeStatus = "ACCEPTED"
	// OutcomeBestEffort means no candidate passed; Reply is the best valid one.
	OutcomeBestEffort OutcomeStatus = "BEST_EFFORT"
	// OutcomeExhausted means no valid candidate was produced.
	OutcomeExhausted OutcomeStatus = "EXHAUSTED"
)

// Attempt records one pass through generate, validate and score.
type Attempt struct {
	N          int
	Budget     int
	Candidate  string
	Validation validator.Result
	Score      *Score
	Reason     string
}

// Outcome is the loop result. Code is set only for OutcomeExhausted.
type Outcome struct {
	Status   OutcomeStatus
	Reply    string
	Score    Score
	Code     string
	Attempts []Attempt
}

// OK reports whether Reply can be submitted.
func (o Outcome) OK() bool {
	return o.Status == OutcomeAccepted || o.Status == OutcomeBestEffort
}

// Reasons lists why each unaccepted attempt failed.
func (o Outcome) Reasons() []string {
	var out []string
	for _, a := range o.Attempts {
		if a.Reason != "" {
			out = append(out, a.Reason)
		}
	}
	return out
}
