package types

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestRetryableError(t *testing.T) {
	baseErr := errors.New("base error")
	retryErr := NewRetryableError(baseErr)

	expectedMsg := "retryable error: base error"
	if retryErr.Error() != expectedMsg {
		t.Errorf("expected error message %q, got %q", expectedMsg, retryErr.Error())
	}

	if !errors.Is(retryErr, baseErr) {
		t.Error("expected errors.Is to match base error")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad request"), false},
		{"wrapped retryable", fmt.Errorf("call: %w", NewRetryableError(errors.New("429"))), true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
