package services

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/fintrust/identity/internal/cache"
	"github.com/fintrust/identity/internal/metrics"
)

// rateLimitWindow is the fixed window length. Counters expire at an absolute
// deadline, so a burst straddling a window boundary can see up to 2x the
// quota; that trade-off is accepted for the simplicity of fixed windows.
const rateLimitWindow = time.Minute

// RateLimitConfig holds configuration for per-endpoint rate limiting
type RateLimitConfig struct {
	Enabled          bool
	RequestsPerMinute int
}

// RateLimitService enforces a fixed-window request quota per
// (endpoint, identity) pair on top of the counter store.
type RateLimitService struct {
	store  cache.CounterStore
	config RateLimitConfig
	logger *slog.Logger
}

// NewRateLimitService creates a new RateLimitService
func NewRateLimitService(store cache.CounterStore, config RateLimitConfig, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		store:  store,
		config: config,
		logger: logger,
	}
}

// IsLimited reports whether the identity has exhausted its quota for the
// endpoint in the current window. Store errors deny the request: a broken
// limiter must not become an open gate.
func (s *RateLimitService) IsLimited(ctx context.Context, endpoint, identity string) bool {
	if !s.config.Enabled {
		return false
	}

	count, err := s.store.Count(ctx, cache.RateLimitKey(endpoint, identity))
	if err != nil {
		s.logger.Error("rate limit counter read failed, denying request",
			slog.String("endpoint", endpoint),
			slog.Any("error", err))
		return true
	}

	limited := count >= s.config.RequestsPerMinute
	if limited {
		metrics.RateLimitRejections.WithLabelValues(endpoint).Inc()
		s.logger.Warn("rate limit exceeded",
			slog.String("endpoint", endpoint),
			slog.String("identity", identity),
			slog.Int("count", count))
	}
	return limited
}

// RecordRequest counts a request against the identity's quota. The counter
// is created with a one-minute absolute TTL; later requests never extend it.
func (s *RateLimitService) RecordRequest(ctx context.Context, endpoint, identity string) error {
	if !s.config.Enabled {
		return nil
	}

	_, err := s.store.Increment(ctx, cache.RateLimitKey(endpoint, identity), rateLimitWindow)
	if err != nil {
		s.logger.Error("failed to record rate limit request",
			slog.String("endpoint", endpoint),
			slog.Any("error", err))
	}
	return err
}

// RemainingQuota returns how many requests the identity has left in the
// current window, floored at 0.
func (s *RateLimitService) RemainingQuota(ctx context.Context, endpoint, identity string) int {
	if !s.config.Enabled {
		return math.MaxInt
	}

	count, err := s.store.Count(ctx, cache.RateLimitKey(endpoint, identity))
	if err != nil {
		return 0
	}

	remaining := s.config.RequestsPerMinute - count
	if remaining < 0 {
		return 0
	}
	return remaining
}
