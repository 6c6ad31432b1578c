package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ekaya-inc/visibility-engine/pkg/models"
)

// DefaultOpenRouterEngineModels maps each engine to the OpenRouter back-end
// closest to the real product.
var DefaultOpenRouterEngineModels = map[models.Engine]string{
	models.EngineChatGPT:    "openai/gpt-4o-mini",
	models.EnginePerplexity: "perplexity/sonar",
	models.EngineGemini:     "google/gemini-2.0-flash-001",
	models.EngineClaude:     "anthropic/claude-3.5-haiku",
	models.EngineCopilot:    "openai/gpt-4o",
}

// OpenAIProviderConfig holds configuration for an OpenAI-compatible provider.
type OpenAIProviderConfig struct {
	ID      string        // Provider id, e.g. "openrouter"
	BaseURL string        // Base URL, e.g. "https://openrouter.ai/api/v1"
	APIKey  string        // Empty means not configured
	Model   string        // Default model
	Timeout time.Duration // Per-call bound applied by the router

	// EngineModels overrides Model per simulated engine.
	EngineModels map[models.Engine]string

	// Headers are added to every request (e.g. OpenRouter attribution).
	Headers map[string]string

	// HTTPClient is optional; tests inject mock transports here.
	HTTPClient *http.Client
}

// OpenAIProvider calls a chat-completions endpoint:
// POST {base}/chat/completions {model, messages, temperature, max_tokens} with bearer auth.
type OpenAIProvider struct {
	client       *openai.Client
	id           string
	model        string
	timeout      time.Duration
	configured   bool
	engineModels map[models.Engine]string
	logger       *zap.Logger
}

// NewOpenAIProvider creates an OpenAI-compatible provider.
// A missing API key yields an unconfigured provider rather than an error.
func NewOpenAIProvider(cfg *OpenAIProviderConfig, logger *zap.Logger) (*OpenAIProvider, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("provider id is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s: base URL is required", cfg.ID)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%s: model is required", cfg.ID)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if len(cfg.Headers) > 0 {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		wrapped := *httpClient
		wrapped.Transport = &headerTransport{base: base, headers: cfg.Headers}
		httpClient = &wrapped
	}
	clientConfig.HTTPClient = httpClient

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientConfig),
		id:           cfg.ID,
		model:        cfg.Model,
		timeout:      cfg.Timeout,
		configured:   cfg.APIKey != "",
		engineModels: cfg.EngineModels,
		logger:       logger.Named(cfg.ID),
	}, nil
}

// ID implements Provider.
func (p *OpenAIProvider) ID() string { return p.id }

// IsConfigured implements Provider.
func (p *OpenAIProvider) IsConfigured() bool { return p.configured }

// Timeout implements Provider.
func (p *OpenAIProvider) Timeout() time.Duration { return p.timeout }

// ModelFor returns the model used for the given engine.
func (p *OpenAIProvider) ModelFor(engine models.Engine) string {
	if m, ok := p.engineModels[engine]; ok && m != "" {
		return m
	}
	return p.model
}

// Generate implements Provider.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if !p.configured {
		return "", notConfiguredError(p.ID())
	}

	model := p.ModelFor(opts.Engine)

	var messages []openai.ChatCompletionMessage
	if opts.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: opts.SystemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	p.logger.Debug("Provider request",
		zap.String("model", model),
		zap.String("engine", string(opts.Engine)),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		classified := ClassifyError(err)
		classified.Provider = p.id
		classified.Model = model
		return "", classified
	}

	if len(resp.Choices) == 0 {
		return "", &Error{Type: ErrorTypeEmpty, Message: "no choices in response", Provider: p.id, Model: model}
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", &Error{Type: ErrorTypeEmpty, Message: "empty message content", Provider: p.id, Model: model}
	}

	p.logger.Debug("Provider request completed",
		zap.String("model", model),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return content, nil
}

// headerTransport adds static headers to every outgoing request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		if v != "" {
			clone.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(clone)
}

var _ Provider = (*OpenAIProvider)(nil)
