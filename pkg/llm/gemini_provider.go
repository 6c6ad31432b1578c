package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiProviderConfig holds configuration for the Gemini provider.
type GeminiProviderConfig struct {
	APIKey     string
	Model      string
	Timeout    time.Duration
	BaseURL    string       // Optional override
	HTTPClient *http.Client // Optional; tests inject mock transports here
}

// GeminiProvider calls the Gemini generateContent API.
type GeminiProvider struct {
	client  *genai.Client // nil when not configured
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewGeminiProvider creates the Gemini provider.
// A missing API key yields an unconfigured provider; the SDK client is only
// built when a key is present so it never falls back to ambient credentials.
func NewGeminiProvider(ctx context.Context, cfg *GeminiProviderConfig, logger *zap.Logger) (*GeminiProvider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%s: model is required", ProviderGemini)
	}

	p := &GeminiProvider{
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger.Named(ProviderGemini),
	}
	if cfg.APIKey == "" {
		return p, nil
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	p.client = client
	return p, nil
}

// ID implements Provider.
func (p *GeminiProvider) ID() string { return ProviderGemini }

// IsConfigured implements Provider.
func (p *GeminiProvider) IsConfigured() bool { return p.client != nil }

// Timeout implements Provider.
func (p *GeminiProvider) Timeout() time.Duration { return p.timeout }

// Generate implements Provider.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if p.client == nil {
		return "", notConfiguredError(p.ID())
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
	}
	if opts.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.SystemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(opts.SystemPrompt, genai.RoleUser)
	}
	if opts.JSON {
		genConfig.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), genConfig)
	if err != nil {
		classified := ClassifyError(err)
		classified.Provider = ProviderGemini
		classified.Model = p.model
		return "", classified
	}

	content := resp.Text()
	if strings.TrimSpace(content) == "" {
		return "", &Error{Type: ErrorTypeEmpty, Message: "empty response text", Provider: ProviderGemini, Model: p.model}
	}

	p.logger.Debug("Provider request completed",
		zap.String("model", p.model),
		zap.Duration("elapsed", time.Since(start)))

	return content, nil
}

var _ Provider = (*GeminiProvider)(nil)
