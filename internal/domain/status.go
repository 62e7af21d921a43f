package domain

import (
	"fmt"
	"slices"
)

// Status is the lifecycle state of a review record.
type Status string

const (
	StatusPendingDelay     Status = "PENDING_DELAY"
	StatusNeedsHuman       Status = "NEEDS_HUMAN"
	StatusAnswered         Status = "ANSWERED"
	StatusFailed           Status = "FAILED"
	StatusExcludedByRating Status = "EXCLUDED_BY_RATING"
	StatusForbiddenContent Status = "FORBIDDEN_CONTENT"
	StatusSubmissionError  Status = "SUBMISSION_ERROR"
)

var allStatuses = []Status{
	StatusPendingDelay,
	StatusNeedsHuman,
	StatusAnswered,
	StatusFailed,
	StatusExcludedByRating,
	StatusForbiddenContent,
	StatusSubmissionError,
}

// IsTerminal reports whether no automatic transition leaves this status.
func (s Status) IsTerminal() bool {
	return s == StatusAnswered || s == StatusExcludedByRating
}

// IsFailure reports whether the status records an abandoned attempt.
func (s Status) IsFailure() bool {
	switch s {
	case StatusFailed, StatusForbiddenContent, StatusSubmissionError:
		return true
	}
	return false
}

// Statuses returns every known status.
func Statuses() []Status {
	return slices.Clone(allStatuses)
}

// ParseStatus converts a stored string back into a Status.
func ParseStatus(s string) (Status, error) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}
