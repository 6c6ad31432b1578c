package llm

import (
	"fmt"
	"sync"
	"time"
)

// BreakerState is the position of a provider's circuit breaker.
type BreakerState int

const (
	// BreakerClosed lets calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen short-circuits calls until the cool-down elapses.
	BreakerOpen
	// BreakerProbing lets a single trial call through after the cool-down.
	BreakerProbing
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a ProviderBreaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Zero or negative disables the breaker entirely.
	FailureThreshold int
	// CoolDown is how long an open breaker waits before probing.
	CoolDown time.Duration
}

// ProviderBreaker stops the router from hammering a provider that keeps failing.
// It only ever skips a provider; the fallback chain still moves on to the next one.
type ProviderBreaker struct {
	provider string
	cfg      BreakerConfig
	now      func() time.Time

	mu       sync.Mutex
	failures int
	openedAt time.Time
	state    BreakerState
}

// NewProviderBreaker creates a closed breaker for the given provider.
func NewProviderBreaker(provider string, cfg BreakerConfig) *ProviderBreaker {
	return &ProviderBreaker{
		provider: provider,
		cfg:      cfg,
		now:      time.Now,
		state:    BreakerClosed,
	}
}

func (b *ProviderBreaker) disabled() bool {
	return b == nil || b.cfg.FailureThreshold <= 0
}

// Allow reports whether a call to the provider may proceed. The returned
// error is the failure reason recorded against the provider when it may not.
func (b *ProviderBreaker) Allow() error {
	if b.disabled() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		since := b.now().Sub(b.openedAt)
		if since < b.cfg.CoolDown {
			return &Error{
				Type:     ErrorTypeCircuitOpen,
				Message:  fmt.Sprintf("circuit open after %d consecutive failures, retry in %v", b.failures, (b.cfg.CoolDown - since).Round(time.Second)),
				Provider: b.provider,
			}
		}
		b.state = BreakerProbing
		return nil
	case BreakerProbing:
		return &Error{
			Type:     ErrorTypeCircuitOpen,
			Message:  "circuit probing, trial call in flight",
			Provider: b.provider,
		}
	default:
		return nil
	}
}

// RecordSuccess closes the breaker.
func (b *ProviderBreaker) RecordSuccess() {
	if b.disabled() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = BreakerClosed
}

// RecordFailure counts a failure and opens the breaker once the threshold is reached.
// A failed probe reopens it immediately.
func (b *ProviderBreaker) RecordFailure() {
	if b.disabled() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.state == BreakerProbing || b.failures >= b.cfg.FailureThreshold {
		b.state = BreakerOpen
		b.openedAt = b.now()
	}
}

// State returns the current breaker state.
func (b *ProviderBreaker) State() BreakerState {
	if b.disabled() {
		return BreakerClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current consecutive failure count.
func (b *ProviderBreaker) Failures() int {
	if b.disabled() {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
