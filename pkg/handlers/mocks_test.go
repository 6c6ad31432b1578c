package handlers

import (
	"context"

	"github.com/ekaya-inc/visibility-engine/pkg/llm"
	"github.com/ekaya-inc/visibility-engine/pkg/models"
	"github.com/ekaya-inc/visibility-engine/pkg/services"
)

type mockRouter struct {
	statuses []llm.ProviderStatus
	chains   map[string][]string
}

func (m *mockRouter) ProviderStatus() []llm.ProviderStatus { return m.statuses }
func (m *mockRouter) Chain(operation string) []string      { return m.chains[operation] }

type mockMonitoringService struct {
	outcomes    []services.EngineOutcome
	gotPrompt   *models.Prompt
	gotBrand    *models.Brand
	gotEngines  []models.Engine
	runEngineFn func(engines []models.Engine) []services.EngineOutcome
}

func (m *mockMonitoringService) Simulate(context.Context, models.SimulationRequest) (*llm.ProviderCallResult, error) {
	return &llm.ProviderCallResult{}, nil
}

func (m *mockMonitoringService) RunCheck(context.Context, *models.Prompt, *models.Brand, models.Engine) (*models.MonitoringResult, error) {
	return nil, nil
}

func (m *mockMonitoringService) RunEngines(_ context.Context, prompt *models.Prompt, brand *models.Brand, engines []models.Engine) []services.EngineOutcome {
	m.gotPrompt = prompt
	m.gotBrand = brand
	m.gotEngines = engines
	if m.runEngineFn != nil {
		return m.runEngineFn(engines)
	}
	return m.outcomes
}

type mockAlertProcessor struct {
	inputs []services.ProcessInput
	fire   bool
}

func (m *mockAlertProcessor) Process(_ context.Context, in services.ProcessInput) []*models.AlertEvent {
	m.inputs = append(m.inputs, in)
	if !m.fire {
		return []*models.AlertEvent{}
	}
	return []*models.AlertEvent{{Type: in.Rules[0].Type, BrandID: in.Brand.ID, ChannelsSent: []string{}}}
}
