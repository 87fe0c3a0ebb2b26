package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenManager() *TokenManager {
	return NewTokenManager("test-secret-with-enough-length", 15*time.Minute, 7*24*time.Hour)
}

func TestTokenRoundTrip(t *testing.T) {
	tm := newTestTokenManager()
	accountID := uuid.New()

	access, err := tm.GenerateAccessToken(accountID, "client@example.com")
	require.NoError(t, err)
	refresh, err := tm.GenerateRefreshToken(accountID, "client@example.com")
	require.NoError(t, err)

	claims, err := tm.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, "access", claims.Type)
	assert.Equal(t, accountID.String(), claims.AccountID)
	assert.Equal(t, "client@example.com", claims.Email)

	claims, err = tm.ValidateToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, "refresh", claims.Type)
}

func TestValidateToken_RejectsWrongSecret(t *testing.T) {
	tm := newTestTokenManager()
	other := NewTokenManager("a-different-secret-entirely!", 15*time.Minute, time.Hour)

	token, err := tm.GenerateAccessToken(uuid.New(), "client@example.com")
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_RejectsExpired(t *testing.T) {
	tm := NewTokenManager("test-secret-with-enough-length", -time.Minute, -time.Minute)

	token, err := tm.GenerateAccessToken(uuid.New(), "client@example.com")
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_RejectsGarbage(t *testing.T) {
	tm := newTestTokenManager()

	_, err := tm.ValidateToken("not.a.token")
	assert.Error(t, err)
}
