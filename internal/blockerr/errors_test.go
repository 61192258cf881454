package blockerr

import (
	"errors"
	"testing"
)

func TestNewExternalErrorRecoverability(t *testing.T) {
	timeoutErr := NewExternalError(true, "http", errors.New("dial tcp: timeout"))
	if timeoutErr.Code != ExternalTimeout {
		t.Fatalf("code = %v, want EXTERNAL_TIMEOUT", timeoutErr.Code)
	}
	if !timeoutErr.Recoverable {
		t.Fatalf("expected timeout error to be recoverable")
	}

	rateLimit := New(ExternalRateLimit, "too many requests")
	if rateLimit.Recoverable {
		t.Fatalf("EXTERNAL_RATE_LIMIT must default to non-recoverable")
	}
}

func TestNewInputErrorDetails(t *testing.T) {
	err := NewInputError("amount", "number", "abc")
	if err.Code != InputValidationFailed {
		t.Fatalf("code = %v", err.Code)
	}
	if err.Details["field"] != "amount" {
		t.Fatalf("details missing field: %v", err.Details)
	}
	if err.Recoverable {
		t.Fatalf("input errors are not recoverable by default")
	}
}

func TestWrapPreservesOriginalType(t *testing.T) {
	cause := errors.New("boom")
	wrapped := Wrap(cause, BlockExecutionFailed, map[string]any{"n": 1})
	if wrapped.Message != "boom" {
		t.Fatalf("message = %q", wrapped.Message)
	}
	if wrapped.InputSnapshot["n"] != "int" {
		t.Fatalf("snapshot = %v", wrapped.InputSnapshot)
	}
}

func TestErrorImplementsError(t *testing.T) {
	var err error = New(ConfigMissing, "no config found")
	if err.Error() == "" {
		t.Fatalf("expected non-empty message")
	}
}
