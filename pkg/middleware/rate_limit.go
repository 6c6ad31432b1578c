package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/visibility-engine/pkg/metrics"
	"github.com/ekaya-inc/visibility-engine/pkg/ratelimit"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset" // epoch milliseconds
)

// Checker is the part of ratelimit.Limiter the middleware uses.
type Checker interface {
	Check(identifier string, limit int, window time.Duration) ratelimit.Result
}

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	Route  string // key prefix and metric label, e.g. "monitoring_check"
	Limit  int
	Window time.Duration
	// TrustForwardedFor keys clients by the first X-Forwarded-For entry.
	// Only enable behind a proxy that overwrites the header.
	TrustForwardedFor bool
}

// RateLimit returns middleware that rejects requests over cfg.Limit per
// client IP per window with 429 and a Retry-After header.
func RateLimit(limiter Checker, cfg RateLimitConfig, m *metrics.Metrics, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := ClientIP(r, cfg.TrustForwardedFor)
			res := limiter.Check(cfg.Route+":"+client, cfg.Limit, cfg.Window)

			w.Header().Set(HeaderRateLimitLimit, strconv.Itoa(cfg.Limit))
			w.Header().Set(HeaderRateLimitRemaining, strconv.Itoa(res.Remaining))
			w.Header().Set(HeaderRateLimitReset, strconv.FormatInt(res.ResetAtEpochMs(), 10))

			if !res.Allowed {
				m.IncRateLimitRejection(cfg.Route)
				logger.Info("Rate limit exceeded",
					zap.String("route", cfg.Route),
					zap.String("client", client))

				retryAfter := int(time.Until(res.ResetAt).Seconds() + 0.999)
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":    "rate_limited",
					"message":  "Too many requests, try again later",
					"reset_at": res.ResetAtEpochMs(),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the requesting client's IP address.
func ClientIP(r *http.Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
