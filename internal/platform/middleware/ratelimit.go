package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RateLimitConfig holds token bucket settings for MemoryLimiter.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		BurstSize:         40,
	}
}

type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func newTokenBucket(rate float64, burst int) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: rate,
		lastRefill: time.Now(),
	}
}

func (b *tokenBucket) take(now time.Time) (ok bool, remaining int, retryAfter time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens += now.Sub(b.lastRefill).Seconds() * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, int(b.tokens), 0
	}
	if b.refillRate <= 0 {
		return false, 0, time.Second
	}
	wait := time.Duration((1 - b.tokens) / b.refillRate * float64(time.Second))
	return false, 0, wait
}

// MemoryLimiter keeps one token bucket per key in process memory. Buckets are
// never evicted; keys are client IPs, which stay bounded for a clinic API.
type MemoryLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*tokenBucket
	cfg     RateLimitConfig
	now     func() time.Time
}

func NewMemoryLimiter(cfg RateLimitConfig) *MemoryLimiter {
	if cfg.RequestsPerSecond <= 0 || cfg.BurstSize <= 0 {
		cfg = DefaultRateLimitConfig()
	}
	return &MemoryLimiter{
		buckets: make(map[string]*tokenBucket),
		cfg:     cfg,
		now:     time.Now,
	}
}

func (l *MemoryLimiter) bucket(key string) *tokenBucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[key]; ok {
		return b
	}
	b = newTokenBucket(l.cfg.RequestsPerSecond, l.cfg.BurstSize)
	l.buckets[key] = b
	return b
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	ok, remaining, wait := l.bucket(key).take(l.now())
	return Decision{
		Allowed:    ok,
		Limit:      l.cfg.BurstSize,
		Remaining:  remaining,
		RetryAfter: wait,
	}, nil
}

// RateLimitOptions tunes the RateLimit middleware.
type RateLimitOptions struct {
	// Scope prefixes every key so several limiters can share one backend.
	Scope string
	// KeyFunc extracts the client key. Defaults to the real client IP.
	KeyFunc func(c echo.Context) string
	Logger  zerolog.Logger
}

// RateLimit rejects requests with 429 once limiter denies them. Backend
// errors are logged and the request is let through.
func RateLimit(limiter Limiter, opts RateLimitOptions) echo.MiddlewareFunc {
	keyFn := opts.KeyFunc
	if keyFn == nil {
		keyFn = func(c echo.Context) string { return c.RealIP() }
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := keyFn(c)
			if opts.Scope != "" {
				key = opts.Scope + ":" + key
			}

			d, err := limiter.Allow(c.Request().Context(), key)
			if err != nil {
				opts.Logger.Warn().Err(err).Str("scope", opts.Scope).Msg("rate limiter unavailable")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			if !d.Allowed {
				retry := int(d.RetryAfter.Seconds())
				if d.RetryAfter%time.Second != 0 || retry < 1 {
					retry++
				}
				h.Set("Retry-After", strconv.Itoa(retry))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			return next(c)
		}
	}
}
