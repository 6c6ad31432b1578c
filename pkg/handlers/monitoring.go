package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/visibility-engine/pkg/apperrors"
	"github.com/ekaya-inc/visibility-engine/pkg/logging"
	"github.com/ekaya-inc/visibility-engine/pkg/models"
	"github.com/ekaya-inc/visibility-engine/pkg/services"
)

const maxCheckRequestBytes = 1 << 20

// MonitoringCheckRoute is the path of the monitoring entry point.
const MonitoringCheckRoute = "/api/monitoring/check"

type monitoringCheckRequest struct {
	Brand   models.Brand  `json:"brand"`
	Prompt  models.Prompt `json:"prompt"`
	Engines []string      `json:"engines"`
	// Rules and PreviousResults are optional; when rules are given, every
	// successful result is evaluated against them and fired alerts dispatched.
	Rules           []*models.AlertRule                        `json:"rules"`
	PreviousResults map[models.Engine]*models.MonitoringResult `json:"previous_results"`
}

// EngineFailure reports why one engine produced no result.
type EngineFailure struct {
	Engine models.Engine `json:"engine"`
	Kind   string        `json:"kind"`
	Error  string        `json:"error"`
}

// MonitoringCheckResponse is the body of a monitoring check.
type MonitoringCheckResponse struct {
	Results     []*models.MonitoringResult `json:"results"`
	Failures    []EngineFailure            `json:"failures"`
	HealthScore *models.BrandHealthScore   `json:"health_score,omitempty"`
	Alerts      []*models.AlertEvent       `json:"alerts"`
}

// MonitoringHandler runs monitoring checks on demand.
type MonitoringHandler struct {
	monitoring services.MonitoringService
	alerts     services.AlertProcessor
	logger     *zap.Logger
	now        func() time.Time
}

// NewMonitoringHandler creates a MonitoringHandler. alerts may be nil, in
// which case rules in the request are ignored.
func NewMonitoringHandler(monitoring services.MonitoringService, alerts services.AlertProcessor, logger *zap.Logger) *MonitoringHandler {
	return &MonitoringHandler{
		monitoring: monitoring,
		alerts:     alerts,
		logger:     logger,
		now:        time.Now,
	}
}

// RegisterRoutes registers the check route, wrapped in the given middleware
// (typically the rate limiter).
func (h *MonitoringHandler) RegisterRoutes(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	var handler http.Handler = http.HandlerFunc(h.Check)
	if wrap != nil {
		handler = wrap(handler)
	}
	mux.Handle("POST "+MonitoringCheckRoute, handler)
}

// Check handles POST /api/monitoring/check
func (h *MonitoringHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req monitoringCheckRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCheckRequestBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Brand.Name) == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_brand", "brand.name is required")
		return
	}
	if strings.TrimSpace(req.Prompt.Text) == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_prompt", "prompt.text is required")
		return
	}
	if req.Prompt.BrandID == uuid.Nil {
		req.Prompt.BrandID = req.Brand.ID
	}

	engines := make([]models.Engine, 0, len(req.Engines))
	for _, raw := range req.Engines {
		engine, ok := models.ParseEngine(raw)
		if !ok {
			h.writeError(w, http.StatusBadRequest, "unknown_engine", "Unknown engine: "+raw)
			return
		}
		engines = append(engines, engine)
	}

	outcomes := h.monitoring.RunEngines(r.Context(), &req.Prompt, &req.Brand, engines)

	resp := MonitoringCheckResponse{
		Results:  services.SuccessfulResults(outcomes),
		Failures: []EngineFailure{},
		Alerts:   []*models.AlertEvent{},
	}
	for _, o := range outcomes {
		if o.Err != nil {
			resp.Failures = append(resp.Failures, EngineFailure{
				Engine: o.Engine,
				Kind:   failureKind(o.Err),
				Error:  logging.SanitizeError(o.Err),
			})
		}
	}

	if len(resp.Results) == 0 {
		if err := WriteJSON(w, http.StatusBadGateway, ApiResponse{
			Success: false,
			Error:   "all_engines_failed",
			Message: "No engine produced a result",
			Data:    resp,
		}); err != nil {
			h.logger.Error("Failed to write response", zap.Error(err))
		}
		return
	}

	resp.HealthScore = services.BuildHealthScore(req.Brand.ID, h.now(), resp.Results)

	if h.alerts != nil && len(req.Rules) > 0 {
		for _, result := range resp.Results {
			fired := h.alerts.Process(r.Context(), services.ProcessInput{
				Rules:          req.Rules,
				Result:         result,
				PreviousResult: req.PreviousResults[result.Engine],
				Brand:          &req.Brand,
			})
			resp.Alerts = append(resp.Alerts, fired...)
		}
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: resp}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *MonitoringHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

// failureKind lets clients tell unreachable providers from unusable output.
func failureKind(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrAllProvidersFailed):
		return "providers_unavailable"
	case errors.Is(err, apperrors.ErrInvalidAnalysis):
		return "invalid_analysis"
	case errors.Is(err, apperrors.ErrUnknownEngine):
		return "unknown_engine"
	default:
		return "internal"
	}
}
