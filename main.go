package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/visibility-engine/pkg/config"
	"github.com/ekaya-inc/visibility-engine/pkg/handlers"
	"github.com/ekaya-inc/visibility-engine/pkg/llm"
	"github.com/ekaya-inc/visibility-engine/pkg/logging"
	"github.com/ekaya-inc/visibility-engine/pkg/metrics"
	"github.com/ekaya-inc/visibility-engine/pkg/middleware"
	"github.com/ekaya-inc/visibility-engine/pkg/ratelimit"
	"github.com/ekaya-inc/visibility-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	defaultOpenRouterModel = "openai/gpt-4o-mini"
	shutdownTimeout        = 15 * time.Second
)

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("dashboard_url", cfg.DashboardURL),
		zap.Int("rate_limit", cfg.RateLimit.Limit),
		zap.Duration("rate_limit_window", cfg.RateLimit.Window),
		zap.Int("circuit_breaker_threshold", cfg.CircuitBreaker.Threshold))
	if dump, err := cfg.EffectiveYAML(); err == nil {
		logger.Debug("Effective configuration", zap.ByteString("config", dump))
	}
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	providers, err := buildProviders(ctx, cfg, logger)
	if err != nil {
		return err
	}

	routerCfg := llm.DefaultRouterConfig()
	routerCfg.Breaker = llm.BreakerConfig{
		FailureThreshold: cfg.CircuitBreaker.Threshold,
		CoolDown:         cfg.CircuitBreaker.ResetAfter,
	}
	router, err := llm.NewRouter(providers, routerCfg, m, logger)
	if err != nil {
		return fmt.Errorf("create provider router: %w", err)
	}

	pool := llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: cfg.Monitoring.MaxConcurrentEngines}, logger)
	monitoring := services.NewMonitoringService(router, pool, logger)

	email := services.NewResendClient(services.ResendConfig{
		APIKey:  cfg.Email.APIKey,
		BaseURL: cfg.Email.BaseURL,
		From:    cfg.Email.From,
	})
	dispatcher := services.NewAlertDispatcher(services.AlertDispatcherConfig{
		DashboardURL: cfg.DashboardURL,
	}, email, m, logger)
	alerts := services.NewAlertProcessor(dispatcher, logger)

	limiter := ratelimit.New(cfg.RateLimit.SweepInterval)
	checkLimit := middleware.RateLimit(limiter, middleware.RateLimitConfig{
		Route:  "monitoring_check",
		Limit:  cfg.RateLimit.Limit,
		Window: cfg.RateLimit.Window,
	}, m, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, router, logger).RegisterRoutes(mux)
	handlers.NewProvidersHandler(router, logger).RegisterRoutes(mux)
	handlers.NewMonitoringHandler(monitoring, alerts, logger).RegisterRoutes(mux, checkLimit)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger.Named("http"))(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting visibility-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.Strings("simulate_chain", router.Chain(llm.OperationSimulate)),
			zap.Strings("analyze_chain", router.Chain(llm.OperationAnalyze)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// buildProviders creates every provider client. Providers without credentials
// are still created; the router skips them as not configured.
func buildProviders(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]llm.Provider, error) {
	p := cfg.Providers

	openRouterHeaders := map[string]string{"X-Title": p.OpenRouter.Title}
	if p.OpenRouter.Referer != "" {
		openRouterHeaders["HTTP-Referer"] = p.OpenRouter.Referer
	}
	openRouter, err := llm.NewOpenAIProvider(&llm.OpenAIProviderConfig{
		ID:           llm.ProviderOpenRouter,
		BaseURL:      p.OpenRouter.BaseURL,
		APIKey:       p.OpenRouter.APIKey,
		Model:        defaultOpenRouterModel,
		Timeout:      p.OpenRouter.Timeout,
		EngineModels: llm.DefaultOpenRouterEngineModels,
		Headers:      openRouterHeaders,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create openrouter provider: %w", err)
	}

	groq, err := llm.NewOpenAIProvider(&llm.OpenAIProviderConfig{
		ID:      llm.ProviderGroq,
		BaseURL: p.Groq.BaseURL,
		APIKey:  p.Groq.APIKey,
		Model:   p.Groq.Model,
		Timeout: p.Groq.Timeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create groq provider: %w", err)
	}

	gemini, err := llm.NewGeminiProvider(ctx, &llm.GeminiProviderConfig{
		APIKey:  p.Gemini.APIKey,
		Model:   p.Gemini.Model,
		Timeout: p.Gemini.Timeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create gemini provider: %w", err)
	}

	anthropic, err := llm.NewAnthropicProvider(&llm.AnthropicProviderConfig{
		APIKey:  p.Anthropic.APIKey,
		Model:   p.Anthropic.Model,
		Timeout: p.Anthropic.Timeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create anthropic provider: %w", err)
	}

	return []llm.Provider{openRouter, groq, gemini, anthropic}, nil
}
