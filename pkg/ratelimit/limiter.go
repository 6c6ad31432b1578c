// Package ratelimit implements an in-process fixed-window request limiter.
package ratelimit

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultSweepInterval is how often expired windows are evicted.
const DefaultSweepInterval = 5 * time.Minute

// Result is the outcome of one Check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// ResetAtEpochMs returns ResetAt as milliseconds since the Unix epoch.
func (r Result) ResetAtEpochMs() int64 {
	return r.ResetAt.UnixMilli()
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter counts requests per identifier in fixed windows. The first request
// for an identifier opens a window of the requested length; the counter resets
// when that window ends. Safe for concurrent use.
type Limiter struct {
	mu    sync.Mutex
	store *cache.Cache
	now   func() time.Time
}

// New creates a Limiter whose expired windows are swept every sweepInterval.
func New(sweepInterval time.Duration) *Limiter {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &Limiter{
		store: cache.New(cache.NoExpiration, sweepInterval),
		now:   time.Now,
	}
}

// Check records one request for identifier and reports whether it fits in
// the current window. A limit below 1 rejects every request.
func (l *Limiter) Check(identifier string, limit int, windowLen time.Duration) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.current(identifier, now)
	if w == nil {
		w = &window{resetAt: now.Add(windowLen)}
		l.store.Set(identifier, w, windowLen)
	}

	if w.count >= limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: w.resetAt}
	}
	w.count++
	return Result{Allowed: true, Remaining: limit - w.count, ResetAt: w.resetAt}
}

// current returns the live window for identifier, or nil if none is open at now.
func (l *Limiter) current(identifier string, now time.Time) *window {
	v, ok := l.store.Get(identifier)
	if !ok {
		return nil
	}
	w := v.(*window)
	if !now.Before(w.resetAt) {
		l.store.Delete(identifier)
		return nil
	}
	return w
}

// Len returns the number of tracked identifiers, including windows that have
// ended but not yet been swept.
func (l *Limiter) Len() int {
	return l.store.ItemCount()
}
