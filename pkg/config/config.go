package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read from the working directory when present.
const DefaultConfigFile = "config.yaml"

// Config holds all configuration for visibility-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// DashboardURL is the public dashboard origin used for deep links in notifications.
	// Falls back to BaseURL when empty.
	DashboardURL string `yaml:"dashboard_url" env:"DASHBOARD_URL" env-default:""`

	Providers      ProvidersConfig      `yaml:"providers"`
	Email          EmailConfig          `yaml:"email"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Monitoring     MonitoringConfig     `yaml:"monitoring"`
}

// ProvidersConfig holds credentials and tuning for each upstream text-generation service.
type ProvidersConfig struct {
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Groq       GroqConfig       `yaml:"groq"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	Anthropic  AnthropicConfig  `yaml:"anthropic"`
}

// OpenRouterConfig configures the multi-backend provider used first for simulation.
type OpenRouterConfig struct {
	APIKey  string        `yaml:"-" env:"OPENROUTER_API_KEY"` // Secret - not in YAML
	BaseURL string        `yaml:"base_url" env:"OPENROUTER_BASE_URL" env-default:"https://openrouter.ai/api/v1"`
	Timeout time.Duration `yaml:"timeout" env:"OPENROUTER_TIMEOUT" env-default:"45s"`
	// Referer and Title are sent as attribution headers.
	Referer string `yaml:"referer" env:"OPENROUTER_REFERER" env-default:""`
	Title   string `yaml:"title" env:"OPENROUTER_TITLE" env-default:"visibility-engine"`
}

// GroqConfig configures the fast structured-output provider used first for analysis.
type GroqConfig struct {
	APIKey  string        `yaml:"-" env:"GROQ_API_KEY"` // Secret - not in YAML
	BaseURL string        `yaml:"base_url" env:"GROQ_BASE_URL" env-default:"https://api.groq.com/openai/v1"`
	Model   string        `yaml:"model" env:"GROQ_MODEL" env-default:"llama-3.3-70b-versatile"`
	Timeout time.Duration `yaml:"timeout" env:"GROQ_TIMEOUT" env-default:"20s"`
}

// GeminiConfig configures the Google Gemini provider.
type GeminiConfig struct {
	APIKey  string        `yaml:"-" env:"GEMINI_API_KEY"` // Secret - not in YAML
	Model   string        `yaml:"model" env:"GEMINI_MODEL" env-default:"gemini-2.0-flash"`
	Timeout time.Duration `yaml:"timeout" env:"GEMINI_TIMEOUT" env-default:"30s"`
}

// AnthropicConfig configures the Anthropic provider, the last resort in both chains.
type AnthropicConfig struct {
	APIKey  string        `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML
	Model   string        `yaml:"model" env:"ANTHROPIC_MODEL" env-default:"claude-3-5-haiku-latest"`
	Timeout time.Duration `yaml:"timeout" env:"ANTHROPIC_TIMEOUT" env-default:"45s"`
}

// EmailConfig configures the transactional-mail API used by the email alert channel.
type EmailConfig struct {
	APIKey  string `yaml:"-" env:"RESEND_API_KEY"` // Secret - not in YAML
	BaseURL string `yaml:"base_url" env:"RESEND_BASE_URL" env-default:"https://api.resend.com"`
	From    string `yaml:"from" env:"ALERT_EMAIL_FROM" env-default:"Visibility Alerts <alerts@visibility.local>"`
}

// IsConfigured returns true if an email credential is present.
func (c *EmailConfig) IsConfigured() bool {
	return c.APIKey != ""
}

// RateLimitConfig configures the fixed-window limiter guarding monitoring entry points.
type RateLimitConfig struct {
	Limit         int           `yaml:"limit" env:"RATE_LIMIT" env-default:"10"`
	Window        time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW" env-default:"1m"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"RATE_LIMIT_SWEEP_INTERVAL" env-default:"5m"`
}

// CircuitBreakerConfig configures the per-provider circuit breaker.
// A threshold of 0 disables tripping.
type CircuitBreakerConfig struct {
	Threshold  int           `yaml:"threshold" env:"CIRCUIT_BREAKER_THRESHOLD" env-default:"5"`
	ResetAfter time.Duration `yaml:"reset_after" env:"CIRCUIT_BREAKER_RESET_AFTER" env-default:"30s"`
}

// MonitoringConfig holds settings for engine fan-out.
type MonitoringConfig struct {
	MaxConcurrentEngines int `yaml:"max_concurrent_engines" env:"MONITORING_MAX_CONCURRENT_ENGINES" env-default:"4"`
}

// Load reads configuration from config.yaml (if present) with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFile(DefaultConfigFile, version)
}

// LoadFile reads configuration from the given YAML path with environment variable overrides.
// A missing file is not an error; configuration then comes from the environment alone.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}
	if cfg.DashboardURL == "" {
		cfg.DashboardURL = cfg.BaseURL
	}
	cfg.DashboardURL = strings.TrimSuffix(cfg.DashboardURL, "/")

	return cfg, nil
}

// validate rejects values that would make the limiter or provider calls misbehave.
func (c *Config) validate() error {
	if c.RateLimit.Limit < 1 {
		return fmt.Errorf("rate_limit.limit must be positive, got %d", c.RateLimit.Limit)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive, got %s", c.RateLimit.Window)
	}
	if c.CircuitBreaker.Threshold < 0 {
		return fmt.Errorf("circuit_breaker.threshold must not be negative, got %d", c.CircuitBreaker.Threshold)
	}

	timeouts := map[string]time.Duration{
		"openrouter": c.Providers.OpenRouter.Timeout,
		"groq":       c.Providers.Groq.Timeout,
		"gemini":     c.Providers.Gemini.Timeout,
		"anthropic":  c.Providers.Anthropic.Timeout,
	}
	for name, timeout := range timeouts {
		if timeout <= 0 {
			return fmt.Errorf("providers.%s.timeout must be positive, got %s", name, timeout)
		}
	}
	return nil
}

// Warnings returns startup-time notices about missing credentials.
// Missing credentials are not fatal: the router skips unconfigured providers.
func (c *Config) Warnings() []string {
	var warnings []string
	p := c.Providers
	if p.OpenRouter.APIKey == "" && p.Groq.APIKey == "" && p.Gemini.APIKey == "" && p.Anthropic.APIKey == "" {
		warnings = append(warnings, "no provider credentials configured; every monitoring run will fail")
	}
	if !c.Email.IsConfigured() {
		warnings = append(warnings, "RESEND_API_KEY not set; email alert channel disabled")
	}
	return warnings
}

// EffectiveYAML renders the loaded configuration in config.yaml form.
// Secrets are tagged yaml:"-" and never appear in the output.
func (c *Config) EffectiveYAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
