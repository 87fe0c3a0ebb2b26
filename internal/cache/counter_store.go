package cache

import (
	"context"
	"fmt"
	"time"
)

// Key formats shared with existing deployments. Do not change.
const (
	rateLimitKeyPrefix      = "rate_limit"
	failedAttemptsKeyPrefix = "failed_attempts"
)

// RateLimitKey builds the counter key for a (endpoint, identity) pair.
func RateLimitKey(endpoint, identity string) string {
	return fmt.Sprintf("%s:%s:%s", rateLimitKeyPrefix, endpoint, identity)
}

// FailedAttemptsKey builds the counter key for a normalized account identity.
func FailedAttemptsKey(normalizedEmail string) string {
	return fmt.Sprintf("%s:%s", failedAttemptsKeyPrefix, normalizedEmail)
}

// CounterStore is a time-windowed key -> count cache with per-key expiry.
// Increment must be atomic with respect to concurrent callers on the same
// key; the interface exists so the in-process implementation can be swapped
// for a distributed cache without changing call sites.
type CounterStore interface {
	// Increment atomically increments the counter for key, creating it with
	// an absolute expiry of now+ttl if absent, and returns the new count.
	// The TTL is fixed at creation and never extended by later increments.
	Increment(ctx context.Context, key string, ttl time.Duration) (int, error)

	// Count returns the current count, or 0 if the key is absent or expired.
	Count(ctx context.Context, key string) (int, error)

	// Reset removes the counter for key.
	Reset(ctx context.Context, key string) error
}
