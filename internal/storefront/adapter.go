// Package storefront defines the page automation contract the orchestrator
// drives, and its implementation over MCP automation servers.
package storefront

import (
	"context"
	"fmt"

	"review-reply-automation/internal/domain"
)

// OutcomeKind classifies a reply submission.
type OutcomeKind string

const (
	OutcomeSuccess          OutcomeKind = "SUCCESS"
	OutcomeAPIError         OutcomeKind = "API_ERROR"
	OutcomeForbiddenName    OutcomeKind = "FORBIDDEN_NAME"
	OutcomeForbiddenContent OutcomeKind = "FORBIDDEN_CONTENT"
	OutcomeOtherFailure     OutcomeKind = "OTHER_FAILURE"
)

// SubmitOutcome is the storefront's verdict on a submitted reply.
type SubmitOutcome struct {
	Kind OutcomeKind
	// Word is the offending word for OutcomeForbiddenContent, when reported.
	Word    string
	Message string
}

func (o SubmitOutcome) String() string {
	if o.Word != "" {
		return fmt.Sprintf("%s(%s)", o.Kind, o.Word)
	}
	return string(o.Kind)
}

// Adapter is the page automation contract for one store session.
// Implementations are not required to be safe for concurrent use; a store
// session drives its adapter from a single goroutine.
type Adapter interface {
	// ListPendingReviews returns the reviews currently shown as unanswered.
	ListPendingReviews(ctx context.Context) ([]domain.RawReview, error)
	// SubmitReply posts text as the reply to the referenced review card.
	SubmitReply(ctx context.Context, ref, text string) (SubmitOutcome, error)
	// ExtractFields reads every field of one review card.
	ExtractFields(ctx context.Context, ref string) (domain.RawReview, error)
}
