package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// defaultAnthropicMaxTokens is required by the Messages API when the caller sets none.
const defaultAnthropicMaxTokens = 1024

// AnthropicProviderConfig holds configuration for the Anthropic provider.
type AnthropicProviderConfig struct {
	APIKey     string
	Model      string
	Timeout    time.Duration
	BaseURL    string       // Optional override
	HTTPClient *http.Client // Optional; tests inject mock transports here
}

// AnthropicProvider calls the Anthropic Messages API.
type AnthropicProvider struct {
	client     *anthropic.Client
	model      string
	timeout    time.Duration
	configured bool
	logger     *zap.Logger
}

// NewAnthropicProvider creates the Anthropic provider.
// A missing API key yields an unconfigured provider rather than an error.
func NewAnthropicProvider(cfg *AnthropicProviderConfig, logger *zap.Logger) (*AnthropicProvider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%s: model is required", ProviderAnthropic)
	}

	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, anthropic.WithHTTPClient(cfg.HTTPClient))
	}

	return &AnthropicProvider{
		client:     anthropic.NewClient(cfg.APIKey, opts...),
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		configured: cfg.APIKey != "",
		logger:     logger.Named(ProviderAnthropic),
	}, nil
}

// ID implements Provider.
func (p *AnthropicProvider) ID() string { return ProviderAnthropic }

// IsConfigured implements Provider.
func (p *AnthropicProvider) IsConfigured() bool { return p.configured }

// Timeout implements Provider.
func (p *AnthropicProvider) Timeout() time.Duration { return p.timeout }

// Generate implements Provider.
func (p *AnthropicProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if !p.configured {
		return "", notConfiguredError(p.ID())
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	temperature := float32(opts.Temperature)

	start := time.Now()
	resp, err := p.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(p.model),
		System:      opts.SystemPrompt,
		Messages:    []anthropic.Message{anthropic.NewUserTextMessage(prompt)},
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		classified := ClassifyError(err)
		classified.Provider = ProviderAnthropic
		classified.Model = p.model
		return "", classified
	}

	content := resp.GetFirstContentText()
	if strings.TrimSpace(content) == "" {
		return "", &Error{Type: ErrorTypeEmpty, Message: "empty message content", Provider: ProviderAnthropic, Model: p.model}
	}

	p.logger.Debug("Provider request completed",
		zap.String("model", p.model),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return content, nil
}

var _ Provider = (*AnthropicProvider)(nil)
