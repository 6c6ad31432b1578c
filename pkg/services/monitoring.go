package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/visibility-engine/pkg/apperrors"
	"github.com/ekaya-inc/visibility-engine/pkg/llm"
	"github.com/ekaya-inc/visibility-engine/pkg/logging"
	"github.com/ekaya-inc/visibility-engine/pkg/models"
	"github.com/ekaya-inc/visibility-engine/pkg/prompts"
)

// MaxStoredResponseChars bounds MonitoringResult.ResponseText.
const MaxStoredResponseChars = 5000

// ProviderRouter is the part of llm.Router the pipeline depends on.
type ProviderRouter interface {
	Simulate(ctx context.Context, prompt string, engine models.Engine) (*llm.ProviderCallResult, error)
	Analyze(ctx context.Context, prompt string) (*llm.ProviderCallResult, error)
}

// MonitoringService runs simulate → analyze → validate for brand prompts.
type MonitoringService interface {
	// Simulate returns an engine-styled answer to the request's prompt.
	Simulate(ctx context.Context, req models.SimulationRequest) (*llm.ProviderCallResult, error)

	// RunCheck produces one result for a (prompt, engine) pair.
	RunCheck(ctx context.Context, prompt *models.Prompt, brand *models.Brand, engine models.Engine) (*models.MonitoringResult, error)

	// RunEngines runs RunCheck for each engine concurrently. Outcomes are
	// returned in the order of engines; one failure never affects another.
	RunEngines(ctx context.Context, prompt *models.Prompt, brand *models.Brand, engines []models.Engine) []EngineOutcome
}

// EngineOutcome is one engine's result or failure from RunEngines.
type EngineOutcome struct {
	Engine models.Engine
	Result *models.MonitoringResult
	Err    error
}

type monitoringService struct {
	router ProviderRouter
	pool   *llm.WorkerPool
	logger *zap.Logger
	now    func() time.Time
}

func NewMonitoringService(router ProviderRouter, pool *llm.WorkerPool, logger *zap.Logger) MonitoringService {
	return &monitoringService{
		router: router,
		pool:   pool,
		logger: logger.Named("monitoring"),
		now:    time.Now,
	}
}

var _ MonitoringService = (*monitoringService)(nil)

func (s *monitoringService) Simulate(ctx context.Context, req models.SimulationRequest) (*llm.ProviderCallResult, error) {
	if !req.Engine.Valid() {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownEngine, req.Engine)
	}
	return s.router.Simulate(ctx, prompts.BuildSimulationPrompt(req.Engine, req.PromptText), req.Engine)
}

func (s *monitoringService) RunCheck(ctx context.Context, prompt *models.Prompt, brand *models.Brand, engine models.Engine) (*models.MonitoringResult, error) {
	if prompt == nil || brand == nil {
		return nil, fmt.Errorf("prompt and brand are required")
	}

	sim, err := s.Simulate(ctx, models.SimulationRequest{PromptText: prompt.Text, Engine: engine})
	if err != nil {
		return nil, fmt.Errorf("simulate %s: %w", engine, err)
	}

	analysisPrompt := prompts.BuildAnalysisPrompt(prompts.NewAnalysisContext(brand, prompt.Text, sim.Text))
	analysis, err := s.router.Analyze(ctx, analysisPrompt)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", engine, err)
	}

	out, err := ValidateAnalysis(analysis.Text, analysis.ProviderID)
	if err != nil {
		s.logger.Warn("Rejected analysis output",
			zap.String("engine", string(engine)),
			zap.String("provider", analysis.ProviderID),
			zap.Error(err))
		return nil, fmt.Errorf("validate %s: %w", engine, err)
	}

	sentiment := clamp(out.SentimentScore, models.MinSentimentScore, models.MaxSentimentScore)
	result := &models.MonitoringResult{
		ID:                 uuid.New(),
		PromptID:           prompt.ID,
		BrandID:            brand.ID,
		Engine:             engine,
		ResponseText:       logging.TruncateString(sim.Text, MaxStoredResponseChars),
		BrandMentioned:     out.BrandMentioned,
		MentionPosition:    out.MentionPosition,
		MentionCount:       out.MentionCount,
		MentionType:        out.MentionType,
		VisibilityScore:    clamp(out.VisibilityScore, models.MinVisibilityScore, models.MaxVisibilityScore),
		Sentiment:          out.Sentiment,
		SentimentScore:     &sentiment,
		CitedURLs:          out.CitedURLs,
		CompetitorMentions: out.CompetitorMentions,
		HasHallucination:   out.HasHallucination,
		HallucinationFlags: out.HallucinationFlags,
		CreatedAt:          s.now().UTC(),
	}

	s.logger.Info("Monitoring check completed",
		zap.String("brand_id", brand.ID.String()),
		zap.String("prompt_id", prompt.ID.String()),
		zap.String("engine", string(engine)),
		zap.String("simulate_provider", sim.ProviderID),
		zap.String("analyze_provider", analysis.ProviderID),
		zap.Bool("mentioned", result.BrandMentioned),
		zap.Float64("visibility", result.VisibilityScore))

	return result, nil
}

func (s *monitoringService) RunEngines(ctx context.Context, prompt *models.Prompt, brand *models.Brand, engines []models.Engine) []EngineOutcome {
	if len(engines) == 0 {
		engines = models.AllEngines
	}

	items := make([]llm.WorkItem[*models.MonitoringResult], len(engines))
	for i, engine := range engines {
		items[i] = llm.WorkItem[*models.MonitoringResult]{
			ID: string(engine),
			Execute: func(ctx context.Context) (*models.MonitoringResult, error) {
				return s.RunCheck(ctx, prompt, brand, engine)
			},
		}
	}

	results := llm.Process(ctx, s.pool, items, nil)

	outcomes := make([]EngineOutcome, len(results))
	failed := 0
	for i, r := range results {
		outcomes[i] = EngineOutcome{Engine: engines[i], Result: r.Result, Err: r.Err}
		if r.Err != nil {
			failed++
			s.logger.Error("Monitoring check failed",
				zap.String("engine", r.ID),
				zap.String("error", logging.SanitizeError(r.Err)))
		}
	}

	if failed > 0 {
		s.logger.Warn("Monitoring batch finished with failures",
			zap.Int("engines", len(engines)),
			zap.Int("failed", failed))
	}
	return outcomes
}

// SuccessfulResults returns the results of outcomes that succeeded.
func SuccessfulResults(outcomes []EngineOutcome) []*models.MonitoringResult {
	results := make([]*models.MonitoringResult, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil && o.Result != nil {
			results = append(results, o.Result)
		}
	}
	return results
}
