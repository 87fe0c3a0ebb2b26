package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-sufficiently-long-test-secret")
	t.Setenv("DB_PASSWORD", "postgres")
}

func TestLoad_SecurityDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Security.MaxFailedAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Security.LockoutDuration)
	assert.Equal(t, 5, cfg.Security.RateLimitPerMinute)
	assert.True(t, cfg.Security.RateLimitEnabled)
	assert.True(t, cfg.Security.BruteForceEnabled)
	assert.Equal(t, int64(25_000), cfg.Security.ClientDailyCeiling)
}

func TestLoad_SecurityOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAX_FAILED_ATTEMPTS", "3")
	t.Setenv("LOCKOUT_DURATION", "10m")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Security.MaxFailedAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Security.LockoutDuration)
	assert.False(t, cfg.Security.RateLimitEnabled)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsWeakJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("DB_PASSWORD", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidThreshold(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAX_FAILED_ATTEMPTS", "0")

	_, err := Load()
	assert.Error(t, err)
}
