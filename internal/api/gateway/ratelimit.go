// Package gateway guards the HTTP front door. Starting an investigation
// fans out to scrape-prone upstream sources, so the API enforces a
// per-client budget before any collector runs.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config configures the rate limiter.
type Config struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	IncludeHeaders    bool `yaml:"include_headers"`
}

// DefaultConfig returns the rate limiter defaults. The budget is low:
// one investigation triggers up to eight collector calls.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		RequestsPerMinute: 10,
		IncludeHeaders:    true,
	}
}

// Result is the outcome of one limit check.
type Result struct {
	Allowed    bool
	Remaining  int
	Limit      int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// incrScript counts a request and starts the window on first use.
var incrScript = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return current
`)

// Limiter is a Redis-backed fixed-window rate limiter. Redis keeps the
// counters shared across replicas; when Redis is unreachable checks
// fail open so a cache outage never takes the API down with it.
type Limiter struct {
	rdb    *redis.Client
	cfg    Config
	logger *zap.Logger
}

// NewLimiter wraps an existing Redis client.
func NewLimiter(rdb *redis.Client, cfg Config, logger *zap.Logger) *Limiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{rdb: rdb, cfg: cfg, logger: logger}
}

// Check counts one request against the client's minute window.
func (l *Limiter) Check(ctx context.Context, clientID string) *Result {
	key := fmt.Sprintf("numintel:ratelimit:%s:minute", clientID)
	now := time.Now()

	count, err := incrScript.Run(ctx, l.rdb, []string{key}, 60000).Int()
	if err != nil {
		l.logger.Warn("rate limit check failed, allowing request",
			zap.String("client", clientID),
			zap.Error(err))
		return &Result{Allowed: true, Limit: l.cfg.RequestsPerMinute}
	}

	remaining := l.cfg.RequestsPerMinute - count
	if remaining < 0 {
		remaining = 0
	}
	ttl, _ := l.rdb.TTL(ctx, key).Result()

	res := &Result{
		Allowed:   count <= l.cfg.RequestsPerMinute,
		Remaining: remaining,
		Limit:     l.cfg.RequestsPerMinute,
		ResetAt:   now.Add(ttl),
	}
	if !res.Allowed {
		res.RetryAfter = ttl
	}
	return res
}

// Middleware enforces the limit per client IP.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := l.Check(r.Context(), clientIP(r))

		if l.cfg.IncludeHeaders {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
		}

		if !res.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprintf(w, `{"error":"rate_limit_exceeded","retry_after":%d}`,
				int(res.RetryAfter.Seconds()))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP resolves the address the limit is keyed on. X-Forwarded-For
// may carry a proxy chain; only the originating address counts, or a
// client could rotate buckets by appending hops.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.Index(xff, ","); i >= 0 {
			xff = xff[:i]
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
