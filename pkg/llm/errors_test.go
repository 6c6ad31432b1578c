package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestError_Error_IncludesStatusAndModel(t *testing.T) {
	err := &Error{
		Type:       ErrorTypeRateLimit,
		Message:    "rate limited, quota exhausted",
		StatusCode: 429,
		Model:      "llama-3.3-70b-versatile",
	}

	result := err.Error()
	for _, want := range []string{"rate_limit", "HTTP 429", "model=llama-3.3-70b-versatile", "quota exhausted"} {
		if !strings.Contains(result, want) {
			t.Errorf("expected %q in error message, got: %s", want, result)
		}
	}
}

func TestError_Error_RedactsCause(t *testing.T) {
	err := NewError(ErrorTypeAuth, "authentication failed", false,
		errors.New("invalid key gsk_0123456789abcdefghijklmnop"))

	result := err.Error()
	if strings.Contains(result, "0123456789abcdefghijklmnop") {
		t.Errorf("expected key to be redacted, got: %s", result)
	}
	if !strings.Contains(result, "[REDACTED]") {
		t.Errorf("expected redaction marker, got: %s", result)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewError(ErrorTypeUnknown, "wrapped", false, cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		wantRetry bool
		wantCode  int
	}{
		{
			name:      "openai 429",
			err:       &openai.APIError{HTTPStatusCode: 429, Message: "slow down"},
			wantType:  ErrorTypeRateLimit,
			wantRetry: true,
			wantCode:  429,
		},
		{
			name:     "openai 402",
			err:      &openai.APIError{HTTPStatusCode: 402, Message: "payment required"},
			wantType: ErrorTypeCredits,
			wantCode: 402,
		},
		{
			name:     "request error 401",
			err:      &openai.RequestError{HTTPStatusCode: 401, Err: errors.New("bad key")},
			wantType: ErrorTypeAuth,
			wantCode: 401,
		},
		{
			name:     "credits in message",
			err:      errors.New("Insufficient credits on account"),
			wantType: ErrorTypeCredits,
		},
		{
			name:      "deadline",
			err:       fmt.Errorf("post: %w", context.DeadlineExceeded),
			wantType:  ErrorTypeTimeout,
			wantRetry: true,
		},
		{
			name:     "model missing",
			err:      errors.New("the model foo does not exist"),
			wantType: ErrorTypeModel,
		},
		{
			name:      "connection refused",
			err:       errors.New("dial tcp 127.0.0.1:1: connect: connection refused"),
			wantType:  ErrorTypeEndpoint,
			wantRetry: true,
		},
		{
			name:      "server error",
			err:       &openai.APIError{HTTPStatusCode: 502, Message: "bad gateway"},
			wantType:  ErrorTypeEndpoint,
			wantRetry: true,
			wantCode:  502,
		},
		{
			name:     "canceled",
			err:      context.Canceled,
			wantType: ErrorTypeUnknown,
		},
		{
			name:     "anything else",
			err:      errors.New("weird"),
			wantType: ErrorTypeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if got.Type != tt.wantType {
				t.Errorf("type: expected %s, got %s", tt.wantType, got.Type)
			}
			if got.Retryable != tt.wantRetry {
				t.Errorf("retryable: expected %v, got %v", tt.wantRetry, got.Retryable)
			}
			if tt.wantCode != 0 && got.StatusCode != tt.wantCode {
				t.Errorf("status: expected %d, got %d", tt.wantCode, got.StatusCode)
			}
		})
	}
}

func TestStatusCodeOf_MessageFallback(t *testing.T) {
	tests := []struct {
		msg  string
		want int
	}{
		{"error, status code: 503, message: overloaded", 503},
		{"upstream returned 429 Too Many Requests", 429},
		{"prompt uses 1500 tokens", 0},
		{"retry after 4290ms", 0},
		{"order 5000 rejected", 0},
		{"no code here", 0},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := statusCodeOf(errors.New(tt.msg)); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}

	got := ClassifyError(errors.New("prompt uses 4290 tokens of 1500 allowed"))
	if got.Type != ErrorTypeUnknown || got.Retryable {
		t.Errorf("expected unknown non-retryable, got %s retryable=%v", got.Type, got.Retryable)
	}
}

func TestClassifyError_PassesThroughStructured(t *testing.T) {
	orig := &Error{Type: ErrorTypeEmpty, Message: "empty"}
	if got := ClassifyError(fmt.Errorf("wrap: %w", orig)); got != orig {
		t.Errorf("expected the original *Error, got %v", got)
	}
	if ClassifyError(nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestGetErrorTypeAndIsRetryable(t *testing.T) {
	if GetErrorType(errors.New("plain")) != ErrorTypeUnknown {
		t.Error("plain errors are unknown")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("plain errors are not retryable")
	}
	rl := NewError(ErrorTypeRateLimit, "rl", true, nil)
	if GetErrorType(rl) != ErrorTypeRateLimit || !IsRetryable(rl) {
		t.Errorf("unexpected classification for %v", rl)
	}
}
