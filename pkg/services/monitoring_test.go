package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/visibility-engine/pkg/apperrors"
	"github.com/ekaya-inc/visibility-engine/pkg/llm"
	"github.com/ekaya-inc/visibility-engine/pkg/models"
	"github.com/ekaya-inc/visibility-engine/pkg/prompts"
)

// mockRouter implements ProviderRouter for testing.
type mockRouter struct {
	mu              sync.Mutex
	simulateFunc    func(ctx context.Context, prompt string, engine models.Engine) (*llm.ProviderCallResult, error)
	analyzeFunc     func(ctx context.Context, prompt string) (*llm.ProviderCallResult, error)
	simulatePrompts []string
	analyzePrompts  []string
}

func (m *mockRouter) Simulate(ctx context.Context, prompt string, engine models.Engine) (*llm.ProviderCallResult, error) {
	m.mu.Lock()
	m.simulatePrompts = append(m.simulatePrompts, prompt)
	m.mu.Unlock()
	if m.simulateFunc != nil {
		return m.simulateFunc(ctx, prompt, engine)
	}
	return &llm.ProviderCallResult{Text: "Acme is the top pick.", ProviderID: llm.ProviderOpenRouter}, nil
}

func (m *mockRouter) Analyze(ctx context.Context, prompt string) (*llm.ProviderCallResult, error) {
	m.mu.Lock()
	m.analyzePrompts = append(m.analyzePrompts, prompt)
	m.mu.Unlock()
	if m.analyzeFunc != nil {
		return m.analyzeFunc(ctx, prompt)
	}
	return &llm.ProviderCallResult{Text: fullAnalysis, ProviderID: llm.ProviderGroq}, nil
}

func newTestMonitoringService(router ProviderRouter) *monitoringService {
	svc := NewMonitoringService(router, llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: 3}, zap.NewNop()), zap.NewNop()).(*monitoringService)
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func testBrandAndPrompt() (*models.Brand, *models.Prompt) {
	brand := &models.Brand{ID: uuid.New(), Name: "Acme", Aliases: []string{"Acme Corp"}, Domain: "acme.com", Competitors: []string{"Globex"}}
	prompt := &models.Prompt{ID: uuid.New(), BrandID: brand.ID, Text: "What is the best CRM?"}
	return brand, prompt
}

func TestMonitoringService_RunCheck(t *testing.T) {
	router := &mockRouter{}
	svc := newTestMonitoringService(router)
	brand, prompt := testBrandAndPrompt()

	result, err := svc.RunCheck(context.Background(), prompt, brand, models.EngineChatGPT)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, result.ID)
	assert.Equal(t, prompt.ID, result.PromptID)
	assert.Equal(t, brand.ID, result.BrandID)
	assert.Equal(t, models.EngineChatGPT, result.Engine)
	assert.Equal(t, "Acme is the top pick.", result.ResponseText)
	assert.True(t, result.BrandMentioned)
	assert.Equal(t, 72.5, result.VisibilityScore)
	require.NotNil(t, result.SentimentScore)
	assert.Equal(t, 0.6, *result.SentimentScore)
	assert.Len(t, result.CompetitorMentions, 2)
	assert.Equal(t, time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC), result.CreatedAt)

	require.Len(t, router.simulatePrompts, 1)
	assert.True(t, strings.HasPrefix(router.simulatePrompts[0], prompts.EnginePersona(models.EngineChatGPT)))
	assert.Contains(t, router.simulatePrompts[0], "What is the best CRM?")

	require.Len(t, router.analyzePrompts, 1)
	assert.Contains(t, router.analyzePrompts[0], "Name: Acme")
	assert.Contains(t, router.analyzePrompts[0], "Acme is the top pick.")
}

func TestMonitoringService_RunCheck_TruncatesText(t *testing.T) {
	long := strings.Repeat("a", 2500) + strings.Repeat("b", 3500)
	router := &mockRouter{
		simulateFunc: func(context.Context, string, models.Engine) (*llm.ProviderCallResult, error) {
			return &llm.ProviderCallResult{Text: long, ProviderID: llm.ProviderGemini}, nil
		},
	}
	svc := newTestMonitoringService(router)
	brand, prompt := testBrandAndPrompt()

	result, err := svc.RunCheck(context.Background(), prompt, brand, models.EngineGemini)

	require.NoError(t, err)
	assert.Equal(t, long[:MaxStoredResponseChars]+"...", result.ResponseText)
	assert.NotContains(t, router.analyzePrompts[0], long[:prompts.MaxAnalyzedResponseChars+1], "analysis sees at most 3000 chars")
	assert.Contains(t, router.analyzePrompts[0], long[:prompts.MaxAnalyzedResponseChars])
}

func TestMonitoringService_RunCheck_UnknownEngine(t *testing.T) {
	router := &mockRouter{}
	svc := newTestMonitoringService(router)
	brand, prompt := testBrandAndPrompt()

	_, err := svc.RunCheck(context.Background(), prompt, brand, models.Engine("altavista"))

	assert.ErrorIs(t, err, apperrors.ErrUnknownEngine)
	assert.Empty(t, router.simulatePrompts)
}

func TestMonitoringService_RunCheck_ChainFailure(t *testing.T) {
	router := &mockRouter{
		analyzeFunc: func(context.Context, string) (*llm.ProviderCallResult, error) {
			return nil, &llm.ChainError{Operation: llm.OperationAnalyze, Attempts: []llm.ProviderAttempt{{ProviderID: llm.ProviderGroq, Reason: "not configured"}}}
		},
	}
	svc := newTestMonitoringService(router)
	brand, prompt := testBrandAndPrompt()

	_, err := svc.RunCheck(context.Background(), prompt, brand, models.EngineClaude)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAllProvidersFailed)
	assert.Contains(t, err.Error(), "analyze claude")
}

func TestMonitoringService_RunCheck_InvalidAnalysis(t *testing.T) {
	router := &mockRouter{
		analyzeFunc: func(context.Context, string) (*llm.ProviderCallResult, error) {
			return &llm.ProviderCallResult{Text: `{"brandMentioned": "maybe"}`, ProviderID: llm.ProviderAnthropic}, nil
		},
	}
	svc := newTestMonitoringService(router)
	brand, prompt := testBrandAndPrompt()

	_, err := svc.RunCheck(context.Background(), prompt, brand, models.EngineCopilot)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, llm.ProviderAnthropic, vErr.ProviderID)
	assert.False(t, errors.Is(err, apperrors.ErrAllProvidersFailed), "garbage is distinguishable from unreachable")
}

func TestMonitoringService_RunEngines_IsolatesFailures(t *testing.T) {
	router := &mockRouter{
		simulateFunc: func(_ context.Context, _ string, engine models.Engine) (*llm.ProviderCallResult, error) {
			if engine == models.EnginePerplexity {
				return nil, &llm.ChainError{Operation: llm.OperationSimulate}
			}
			return &llm.ProviderCallResult{Text: "answer from " + string(engine), ProviderID: llm.ProviderOpenRouter}, nil
		},
	}
	svc := newTestMonitoringService(router)
	brand, prompt := testBrandAndPrompt()

	outcomes := svc.RunEngines(context.Background(), prompt, brand, nil)

	require.Len(t, outcomes, len(models.AllEngines))
	for i, o := range outcomes {
		assert.Equal(t, models.AllEngines[i], o.Engine, "outcomes keep engine order")
		if o.Engine == models.EnginePerplexity {
			assert.Error(t, o.Err)
			assert.Nil(t, o.Result)
			assert.Contains(t, o.Err.Error(), "simulate perplexity")
			continue
		}
		require.NoError(t, o.Err)
		assert.Equal(t, "answer from "+string(o.Engine), o.Result.ResponseText)
	}

	assert.Len(t, SuccessfulResults(outcomes), len(models.AllEngines)-1)
}

func TestMonitoringService_RunCheck_ClampsScores(t *testing.T) {
	tests := []struct {
		name           string
		raw            string
		wantVisibility float64
		wantSentiment  float64
	}{
		{"below range", `{"brandMentioned": false, "visibilityScore": -5, "sentimentScore": -3}`, 0, -1},
		{"above range", `{"brandMentioned": true, "visibilityScore": 140, "sentimentScore": 2.5}`, 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := &mockRouter{
				analyzeFunc: func(context.Context, string) (*llm.ProviderCallResult, error) {
					return &llm.ProviderCallResult{Text: tt.raw, ProviderID: llm.ProviderGroq}, nil
				},
			}
			svc := newTestMonitoringService(router)
			brand, prompt := testBrandAndPrompt()

			result, err := svc.RunCheck(context.Background(), prompt, brand, models.EngineClaude)

			require.NoError(t, err)
			assert.Equal(t, tt.wantVisibility, result.VisibilityScore)
			require.NotNil(t, result.SentimentScore)
			assert.Equal(t, tt.wantSentiment, *result.SentimentScore)
		})
	}
}
