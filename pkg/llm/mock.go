package llm

import (
	"context"
	"sync"
	"time"
)

// MockProvider is a configurable Provider for tests.
// Set GenerateFunc to control behavior; when nil, Generate returns Response.
type MockProvider struct {
	ProviderID   string
	Configured   bool
	CallTimeout  time.Duration
	Response     string
	GenerateFunc func(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	mu      sync.Mutex
	calls   int
	prompts []string
	opts    []GenerateOptions
}

// NewMockProvider creates a configured mock that answers with response.
func NewMockProvider(id, response string) *MockProvider {
	return &MockProvider{
		ProviderID: id,
		Configured: true,
		Response:   response,
	}
}

// NewFailingMockProvider creates a configured mock that always returns err.
func NewFailingMockProvider(id string, err error) *MockProvider {
	return &MockProvider{
		ProviderID: id,
		Configured: true,
		GenerateFunc: func(context.Context, string, GenerateOptions) (string, error) {
			return "", err
		},
	}
}

// ID implements Provider.
func (m *MockProvider) ID() string { return m.ProviderID }

// IsConfigured implements Provider.
func (m *MockProvider) IsConfigured() bool { return m.Configured }

// Timeout implements Provider.
func (m *MockProvider) Timeout() time.Duration { return m.CallTimeout }

// Generate implements Provider.
func (m *MockProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.opts = append(m.opts, opts)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, opts)
	}
	return m.Response, nil
}

// Calls returns how many times Generate was invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPrompt returns the most recent prompt, or "" if never called.
func (m *MockProvider) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// LastOptions returns the most recent options.
func (m *MockProvider) LastOptions() GenerateOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.opts) == 0 {
		return GenerateOptions{}
	}
	return m.opts[len(m.opts)-1]
}

var _ Provider = (*MockProvider)(nil)
