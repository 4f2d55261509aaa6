package httpclient

import (
	"net/http"
	"testing"
	"time"
)

func TestParseOpenAIHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("Retry-After", "15")
	headers.Set("x-ratelimit-remaining-requests", "42")
	headers.Set("x-ratelimit-remaining-tokens", "10000")

	info := ParseOpenAIHeaders(headers)

	if info.RetryAfter != 15*time.Second {
		t.Errorf("RetryAfter = %v, want 15s", info.RetryAfter)
	}
	if info.RequestsRemaining != 42 {
		t.Errorf("RequestsRemaining = %d, want 42", info.RequestsRemaining)
	}
	if info.TokensRemaining != 10000 {
		t.Errorf("TokensRemaining = %d, want 10000", info.TokensRemaining)
	}
}

func TestParseOpenAIHeaders_Empty(t *testing.T) {
	info := ParseOpenAIHeaders(http.Header{})

	if info.RetryAfter != 0 || info.ResetTime != 0 || info.RequestsRemaining != 0 {
		t.Errorf("expected zero info for empty headers, got %+v", info)
	}
}

func TestParseOpenAIHeaders_ResetTime(t *testing.T) {
	headers := http.Header{}
	headers.Set("x-ratelimit-reset-requests", "1700000000")

	info := ParseOpenAIHeaders(headers)
	if info.ResetTime != 1700000000 {
		t.Errorf("ResetTime = %d, want 1700000000", info.ResetTime)
	}
}

func TestParseStandardHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("Retry-After", "7")

	info := ParseStandardHeaders(headers)
	if info.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", info.RetryAfter)
	}
}

func TestParseStandardHeaders_Invalid(t *testing.T) {
	headers := http.Header{}
	headers.Set("Retry-After", "not-a-number")

	info := ParseStandardHeaders(headers)
	if info.RetryAfter != 0 {
		t.Errorf("RetryAfter = %v, want 0 for unparseable header", info.RetryAfter)
	}
}
