package llm

import (
	"context"
	"time"

	"github.com/ekaya-inc/visibility-engine/pkg/apperrors"
	"github.com/ekaya-inc/visibility-engine/pkg/models"
)

// Provider ids.
const (
	ProviderOpenRouter = "openrouter"
	ProviderGroq       = "groq"
	ProviderGemini     = "gemini"
	ProviderAnthropic  = "anthropic"
)

// GenerateOptions tunes a single generation call.
type GenerateOptions struct {
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	// Engine lets multi-backend providers pick the model that best imitates the engine.
	Engine models.Engine
	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}

// Provider is one upstream text-generation capability.
// Implementations are stateless and safe for concurrent use.
type Provider interface {
	// ID returns the stable provider id used in logs, errors and metrics.
	ID() string

	// IsConfigured reports whether a credential is present. Must not make network calls.
	IsConfigured() bool

	// Timeout is the per-call bound the router applies.
	Timeout() time.Duration

	// Generate returns the generated text. An empty response is an error.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// ProviderCallResult is the successful output of a router chain.
// ProviderID is provenance metadata only.
type ProviderCallResult struct {
	Text       string `json:"text"`
	ProviderID string `json:"provider_id"`
}

// ProviderStatus reports whether a provider is configured.
type ProviderStatus struct {
	ID         string `json:"id"`
	Configured bool   `json:"configured"`
}

func notConfiguredError(providerID string) *Error {
	return &Error{
		Type:     ErrorTypeNotConfigured,
		Message:  "missing API key",
		Cause:    apperrors.ErrProviderNotConfigured,
		Provider: providerID,
	}
}
