package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/visibility-engine/pkg/apperrors"
	"github.com/ekaya-inc/visibility-engine/pkg/logging"
	"github.com/ekaya-inc/visibility-engine/pkg/metrics"
	"github.com/ekaya-inc/visibility-engine/pkg/models"
)

// Router operations.
const (
	OperationSimulate = "simulate"
	OperationAnalyze  = "analyze"
)

// Default chains. OpenRouter leads simulation because it can pick a back-end
// per engine; Groq leads analysis because it is fast at structured output.
var (
	DefaultSimulateChain = []string{ProviderOpenRouter, ProviderGemini, ProviderGroq, ProviderAnthropic}
	DefaultAnalyzeChain  = []string{ProviderGroq, ProviderGemini, ProviderOpenRouter, ProviderAnthropic}
)

const (
	simulateTemperature = 0.7
	simulateMaxTokens   = 1024
	analyzeTemperature  = 0.1
	analyzeMaxTokens    = 1500
)

const analyzeSystemPrompt = "You are a precise brand-visibility analyst. Respond with a single JSON object and nothing else."

// RouterConfig selects the chains and breaker policy.
type RouterConfig struct {
	SimulateChain []string
	AnalyzeChain  []string
	Breaker       BreakerConfig
}

// DefaultRouterConfig returns the default chains with the breaker disabled.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		SimulateChain: DefaultSimulateChain,
		AnalyzeChain:  DefaultAnalyzeChain,
	}
}

// ProviderAttempt is one provider's failure within a chain.
type ProviderAttempt struct {
	ProviderID string
	Reason     string
	Err        error // nil when the provider was skipped as not configured
}

// ChainError is returned when every provider in a chain failed or was skipped.
// Attempts are listed in chain order.
type ChainError struct {
	Operation string
	Attempts  []ProviderAttempt
}

func (e *ChainError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "all providers failed for %s:", e.Operation)
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "\n  - %s: %s", a.ProviderID, a.Reason)
	}
	return b.String()
}

// Unwrap lets callers match apperrors.ErrAllProvidersFailed.
func (e *ChainError) Unwrap() error {
	return apperrors.ErrAllProvidersFailed
}

// Router runs the simulate and analyze fallback chains.
// Chains are fixed at construction; the router is safe for concurrent use.
type Router struct {
	providers     map[string]Provider
	order         []string
	simulateChain []Provider
	analyzeChain  []Provider
	breakers      map[string]*ProviderBreaker
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewRouter builds a router over the given providers. Every id named in a
// chain must belong to a provider; provider ids must be unique.
func NewRouter(providers []Provider, cfg RouterConfig, m *metrics.Metrics, logger *zap.Logger) (*Router, error) {
	r := &Router{
		providers: make(map[string]Provider, len(providers)),
		breakers:  make(map[string]*ProviderBreaker, len(providers)),
		metrics:   m,
		logger:    logger.Named("router"),
	}

	for _, p := range providers {
		id := p.ID()
		if _, dup := r.providers[id]; dup {
			return nil, fmt.Errorf("duplicate provider id %q", id)
		}
		r.providers[id] = p
		r.order = append(r.order, id)
		r.breakers[id] = NewProviderBreaker(id, cfg.Breaker)
	}

	var err error
	if r.simulateChain, err = r.resolveChain(OperationSimulate, cfg.SimulateChain); err != nil {
		return nil, err
	}
	if r.analyzeChain, err = r.resolveChain(OperationAnalyze, cfg.AnalyzeChain); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Router) resolveChain(operation string, ids []string) ([]Provider, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%s chain is empty", operation)
	}
	chain := make([]Provider, 0, len(ids))
	for _, id := range ids {
		p, ok := r.providers[id]
		if !ok {
			return nil, fmt.Errorf("%s chain references unknown provider %q", operation, id)
		}
		chain = append(chain, p)
	}
	return chain, nil
}

// Simulate asks the simulate chain to role-play an engine answering prompt.
func (r *Router) Simulate(ctx context.Context, prompt string, engine models.Engine) (*ProviderCallResult, error) {
	return r.run(ctx, OperationSimulate, r.simulateChain, prompt, GenerateOptions{
		Temperature: simulateTemperature,
		MaxTokens:   simulateMaxTokens,
		Engine:      engine,
	})
}

// Analyze asks the analyze chain for a JSON analysis of prompt.
func (r *Router) Analyze(ctx context.Context, prompt string) (*ProviderCallResult, error) {
	return r.run(ctx, OperationAnalyze, r.analyzeChain, prompt, GenerateOptions{
		SystemPrompt: analyzeSystemPrompt,
		Temperature:  analyzeTemperature,
		MaxTokens:    analyzeMaxTokens,
		JSON:         true,
	})
}

func (r *Router) run(ctx context.Context, operation string, chain []Provider, prompt string, opts GenerateOptions) (*ProviderCallResult, error) {
	attempts := make([]ProviderAttempt, 0, len(chain))

	for _, p := range chain {
		id := p.ID()

		if !p.IsConfigured() {
			attempts = append(attempts, ProviderAttempt{ProviderID: id, Reason: "not configured"})
			r.metrics.ObserveProviderCall(id, operation, metrics.OutcomeSkipped, 0)
			continue
		}

		if err := ctx.Err(); err != nil {
			attempts = append(attempts, ProviderAttempt{ProviderID: id, Reason: err.Error(), Err: err})
			r.metrics.ObserveProviderCall(id, operation, metrics.OutcomeSkipped, 0)
			continue
		}

		breaker := r.breakers[id]
		if err := breaker.Allow(); err != nil {
			attempts = append(attempts, ProviderAttempt{ProviderID: id, Reason: err.Error(), Err: err})
			r.metrics.ObserveProviderCall(id, operation, metrics.OutcomeSkipped, 0)
			continue
		}

		start := time.Now()
		text, err := r.call(ctx, p, prompt, opts)
		elapsed := time.Since(start)

		if err != nil {
			// A cancelled caller says nothing about provider health.
			if ctx.Err() == nil {
				breaker.RecordFailure()
			}
			reason := logging.SanitizeError(err)
			attempts = append(attempts, ProviderAttempt{ProviderID: id, Reason: reason, Err: err})
			r.metrics.ObserveProviderCall(id, operation, metrics.OutcomeFailure, elapsed)
			r.logger.Warn("Provider failed, trying next",
				zap.String("operation", operation),
				zap.String("provider", id),
				zap.String("error_type", string(GetErrorType(err))),
				zap.String("error", reason),
				zap.Duration("elapsed", elapsed))
			continue
		}

		breaker.RecordSuccess()
		r.metrics.ObserveProviderCall(id, operation, metrics.OutcomeSuccess, elapsed)
		r.logger.Debug("Provider succeeded",
			zap.String("operation", operation),
			zap.String("provider", id),
			zap.Duration("elapsed", elapsed))
		return &ProviderCallResult{Text: text, ProviderID: id}, nil
	}

	r.metrics.IncChainFailure(operation)
	chainErr := &ChainError{Operation: operation, Attempts: attempts}
	r.logger.Error("All providers failed",
		zap.String("operation", operation),
		zap.Int("attempts", len(attempts)))
	return nil, chainErr
}

// call invokes one provider under its own timeout and rejects blank output.
func (r *Router) call(ctx context.Context, p Provider, prompt string, opts GenerateOptions) (string, error) {
	callCtx := ctx
	if timeout := p.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	text, err := p.Generate(callCtx, prompt, opts)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", &Error{
				Type:      ErrorTypeTimeout,
				Message:   fmt.Sprintf("no response within %v", p.Timeout()),
				Retryable: true,
				Cause:     err,
				Provider:  p.ID(),
			}
		}
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", &Error{Type: ErrorTypeEmpty, Message: "empty response", Provider: p.ID()}
	}
	return text, nil
}

// ProviderStatus reports every known provider's configuration without
// making network calls.
func (r *Router) ProviderStatus() []ProviderStatus {
	statuses := make([]ProviderStatus, 0, len(r.order))
	for _, id := range r.order {
		statuses = append(statuses, ProviderStatus{ID: id, Configured: r.providers[id].IsConfigured()})
	}
	return statuses
}

// Chain returns the provider ids of an operation's chain in order.
func (r *Router) Chain(operation string) []string {
	var chain []Provider
	switch operation {
	case OperationSimulate:
		chain = r.simulateChain
	case OperationAnalyze:
		chain = r.analyzeChain
	}
	ids := make([]string, len(chain))
	for i, p := range chain {
		ids[i] = p.ID()
	}
	return ids
}
