package middleware

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// limiterStore keeps one token bucket per client key.
type limiterStore struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	cfg      RateLimitConfig
}

func newLimiterStore(cfg RateLimitConfig) *limiterStore {
	return &limiterStore{
		limiters: make(map[string]*rate.Limiter),
		cfg:      cfg,
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.RLock()
	lim, ok := s.limiters[key]
	s.mu.RUnlock()
	if ok {
		return lim
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Double-check after acquiring write lock
	if lim, ok := s.limiters[key]; ok {
		return lim
	}
	lim = rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), s.cfg.BurstSize)
	s.limiters[key] = lim
	return lim
}

// retryAfter estimates how many seconds until the next token is available.
func (s *limiterStore) retryAfter(lim *rate.Limiter) int {
	if s.cfg.RequestsPerSecond <= 0 {
		return 1
	}
	need := 1 - lim.Tokens()
	if need <= 0 {
		return 1
	}
	return int(need/s.cfg.RequestsPerSecond) + 1
}

// RateLimit returns a token bucket rate limiting middleware. Buckets are
// keyed by client IP.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	store := newLimiterStore(cfg)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			lim := store.get(c.RealIP())
			c.Response().Header().Set("X-RateLimit-Limit", strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64))

			if !lim.Allow() {
				c.Response().Header().Set("Retry-After", strconv.Itoa(store.retryAfter(lim)))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}

			return next(c)
		}
	}
}
