package httpclient

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetryableError_Error(t *testing.T) {
	err := &RetryableError{
		StatusCode: 429,
		Message:    "rate limited",
		RetryAfter: 30 * time.Second,
	}

	got := err.Error()
	want := "HTTP 429: rate limited (retry after 30s)"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestRetryableError_Error_NoRetryAfter(t *testing.T) {
	err := &RetryableError{
		StatusCode: 500,
		Message:    "server error",
	}

	got := err.Error()
	want := "HTTP 500: server error"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestRetryableError_Unwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := &RetryableError{
		StatusCode: 503,
		Message:    "unavailable",
		Err:        inner,
	}

	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to find the wrapped error")
	}

	wrapped := fmt.Errorf("search failed: %w", err)
	var retryErr *RetryableError
	if !errors.As(wrapped, &retryErr) {
		t.Error("expected errors.As to find RetryableError through wrapping")
	}
}

func TestRetryableError_IsRetryable(t *testing.T) {
	err := &RetryableError{}
	if !err.IsRetryable() {
		t.Error("RetryableError must report retryable")
	}
}
