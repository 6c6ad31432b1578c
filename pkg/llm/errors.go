package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"github.com/ekaya-inc/visibility-engine/pkg/logging"
)

// ErrorType classifies a provider failure.
type ErrorType string

const (
	ErrorTypeNone          ErrorType = ""
	ErrorTypeNotConfigured ErrorType = "not_configured"
	ErrorTypeEndpoint      ErrorType = "endpoint"
	ErrorTypeAuth          ErrorType = "auth"
	ErrorTypeModel         ErrorType = "model"
	ErrorTypeRateLimit     ErrorType = "rate_limit"
	ErrorTypeCredits       ErrorType = "credits"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeEmpty         ErrorType = "empty_response"
	ErrorTypeCircuitOpen   ErrorType = "circuit_open"
	ErrorTypeUnknown       ErrorType = "unknown"
)

// Error represents a structured provider error with classification.
type Error struct {
	Type       ErrorType // Classification of the error
	Message    string    // Human-readable message
	Retryable  bool      // Whether the operation can be retried later
	Cause      error     // Underlying error
	StatusCode int       // HTTP status code if applicable
	Provider   string    // Provider id if known
	Model      string    // Model name if known
}

// Error implements the error interface. Credentials echoed by upstream
// services are redacted from the cause.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Type))

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}

	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", strings.Join(parts, " "), logging.SanitizeError(e.Cause))
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements the retry.RetryableError interface.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError creates a new structured provider error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// anthropicErrorStatus maps Anthropic error types to the HTTP status they are served with.
var anthropicErrorStatus = map[string]int{
	"invalid_request_error": 400,
	"authentication_error":  401,
	"permission_error":      403,
	"not_found_error":       404,
	"rate_limit_error":      429,
	"api_error":             500,
	"overloaded_error":      503,
}

// statusInMessage matches a standalone 4xx/5xx code in an error message.
var statusInMessage = regexp.MustCompile(`\b([45]\d\d)\b`)

// statusCodeOf extracts an HTTP status code from the typed errors of the
// provider SDKs, falling back to scanning the message.
func statusCodeOf(err error) int {
	var oaiAPIErr *openai.APIError
	if errors.As(err, &oaiAPIErr) && oaiAPIErr.HTTPStatusCode > 0 {
		return oaiAPIErr.HTTPStatusCode
	}
	var oaiReqErr *openai.RequestError
	if errors.As(err, &oaiReqErr) && oaiReqErr.HTTPStatusCode > 0 {
		return oaiReqErr.HTTPStatusCode
	}
	var antReqErr *anthropic.RequestError
	if errors.As(err, &antReqErr) && antReqErr.StatusCode > 0 {
		return antReqErr.StatusCode
	}
	var antAPIErr *anthropic.APIError
	if errors.As(err, &antAPIErr) {
		if code, ok := anthropicErrorStatus[string(antAPIErr.Type)]; ok {
			return code
		}
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) && genaiErr.Code > 0 {
		return genaiErr.Code
	}

	if m := statusInMessage.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}

// ClassifyError categorizes an error and returns a structured Error.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	// Check if already an *Error
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	lower := strings.ToLower(err.Error())
	statusCode := statusCodeOf(err)

	classified := func(t ErrorType, msg string, retryable bool) *Error {
		e := NewError(t, msg, retryable, err)
		e.StatusCode = statusCode
		return e
	}

	switch {
	// Rate limiting: free-tier quota exhausted or burst limit
	case statusCode == 429 || strings.Contains(lower, "rate limit"):
		return classified(ErrorTypeRateLimit, "rate limited, quota exhausted", true)

	// Payment required: account out of credits
	case statusCode == 402 || strings.Contains(lower, "insufficient credits") ||
		strings.Contains(lower, "credit balance"):
		return classified(ErrorTypeCredits, "credits exhausted", false)

	// Timeout and deadline exceeded
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "deadline exceeded"):
		return classified(ErrorTypeTimeout, "request timed out", true)

	// Authentication errors (not retryable)
	case statusCode == 401 || statusCode == 403 || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key"):
		return classified(ErrorTypeAuth, "authentication failed", false)

	// Model not found (not retryable without config change)
	case strings.Contains(lower, "model") && (strings.Contains(lower, "not found") ||
		strings.Contains(lower, "does not exist")):
		return classified(ErrorTypeModel, "model not found", false)

	// Endpoint not found (not retryable without config change)
	case statusCode == 404:
		return classified(ErrorTypeEndpoint, "endpoint not found", false)

	// Connection errors (may be retryable)
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host"):
		return classified(ErrorTypeEndpoint, "connection failed", true)

	// 5xx server errors (retryable)
	case statusCode >= 500:
		return classified(ErrorTypeEndpoint, "server error", true)

	case errors.Is(err, context.Canceled):
		return classified(ErrorTypeUnknown, "request canceled", false)
	}

	return classified(ErrorTypeUnknown, "provider error", false)
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// GetErrorType extracts the ErrorType from an error.
func GetErrorType(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}
