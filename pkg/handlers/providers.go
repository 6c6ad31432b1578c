package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/visibility-engine/pkg/llm"
)

// ProviderRouter is the read-only view of llm.Router the handler exposes.
type ProviderRouter interface {
	ProviderStatusSource
	Chain(operation string) []string
}

// ProvidersStatusResponse lists provider configuration and fallback order.
type ProvidersStatusResponse struct {
	Providers []llm.ProviderStatus `json:"providers"`
	Chains    map[string][]string  `json:"chains"`
}

// ProvidersHandler serves provider configuration status.
type ProvidersHandler struct {
	router ProviderRouter
	logger *zap.Logger
}

func NewProvidersHandler(router ProviderRouter, logger *zap.Logger) *ProvidersHandler {
	return &ProvidersHandler{router: router, logger: logger}
}

// RegisterRoutes registers the providers handler's routes on the given mux.
func (h *ProvidersHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/providers/status", h.Status)
}

// Status handles GET /api/providers/status
func (h *ProvidersHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := ProvidersStatusResponse{
		Providers: h.router.ProviderStatus(),
		Chains: map[string][]string{
			llm.OperationSimulate: h.router.Chain(llm.OperationSimulate),
			llm.OperationAnalyze:  h.router.Chain(llm.OperationAnalyze),
		},
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: resp}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
