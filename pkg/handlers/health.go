package handlers

import (
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/ekaya-inc/visibility-engine/pkg/config"
	"github.com/ekaya-inc/visibility-engine/pkg/llm"
)

// ProviderStatusSource reports provider configuration without network calls.
type ProviderStatusSource interface {
	ProviderStatus() []llm.ProviderStatus
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status              string `json:"status"`
	ProvidersConfigured int    `json:"providers_configured"`
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg       *config.Config
	providers ProviderStatusSource
	logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. providers may be nil.
func NewHealthHandler(cfg *config.Config, providers ProviderStatusSource, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, providers: providers, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
// The service is healthy even with no providers configured; the count lets
// operators spot a deployment that is missing credentials.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.providers != nil {
		for _, s := range h.providers.ProviderStatus() {
			if s.Configured {
				resp.ProvidersConfigured++
			}
		}
	}

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "visibility-engine",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
