package logging

import (
	"regexp"
	"unicode/utf8"
)

const (
	// MaxSnippetLength is the maximum length of untrusted provider output quoted in logs and errors.
	MaxSnippetLength = 200
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Bearer credentials echoed back in upstream error bodies
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-_.~+/=]+`)

	// Pattern to match potential API keys in key=value form
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9\-_]{20,}`)

	// Provider-issued secret keys (OpenAI/OpenRouter/Anthropic "sk-", Groq "gsk_")
	providerKeyPattern = regexp.MustCompile(`\b(?:sk-or-v1|sk-ant|sk|gsk)[-_][A-Za-z0-9\-_]{16,}`)

	// Resend keys: "re_" then an alphanumeric run, optionally split as id_secret
	resendKeyPattern = regexp.MustCompile(`\bre_(?:[A-Za-z0-9]{16,}|[A-Za-z0-9]{8,}_[A-Za-z0-9]{16,})`)

	// Google API keys
	googleKeyPattern = regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`)
)

// SanitizeError sanitizes error messages that might contain credentials.
// Use this before logging or aggregating any error from an upstream provider.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error())
}

// SanitizeString removes credentials from an arbitrary string.
func SanitizeString(s string) string {
	if s == "" {
		return ""
	}

	sanitized := bearerPattern.ReplaceAllString(s, "Bearer "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = providerKeyPattern.ReplaceAllString(sanitized, RedactedText)
	sanitized = resendKeyPattern.ReplaceAllString(sanitized, RedactedText)
	sanitized = googleKeyPattern.ReplaceAllString(sanitized, RedactedText)

	return sanitized
}

// Snippet returns a bounded, credential-free excerpt of untrusted text.
func Snippet(s string) string {
	return SanitizeString(TruncateString(s, MaxSnippetLength))
}

// TruncateString truncates a string to maxLen runes and adds ellipsis if needed.
// It never splits a multi-byte character.
func TruncateString(s string, maxLen int) string {
	if maxLen < 0 {
		maxLen = 0
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
