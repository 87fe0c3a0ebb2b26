package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_ValidAccessToken(t *testing.T) {
	tm := newTestTokenManager()
	accountID := uuid.New()
	token, err := tm.GenerateAccessToken(accountID, "client@example.com")
	require.NoError(t, err)

	var claims *Claims
	handler := Middleware(tm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims = ClaimsFromRequest(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, claims)
	assert.Equal(t, accountID.String(), claims.AccountID)
}

func TestMiddleware_Rejections(t *testing.T) {
	tm := newTestTokenManager()
	refresh, err := tm.GenerateRefreshToken(uuid.New(), "client@example.com")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not.a.token"},
		{"refresh token is not an access token", "Bearer " + refresh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := Middleware(tm)(okHandler(&called))

			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.False(t, called)
		})
	}
}

type permissionCheckerFunc func(ctx context.Context, accountID uuid.UUID, permission string) (bool, error)

func (f permissionCheckerFunc) HasPermission(ctx context.Context, accountID uuid.UUID, permission string) (bool, error) {
	return f(ctx, accountID, permission)
}

func requestWithClaims(accountID uuid.UUID) *http.Request {
	req := httptest.NewRequest("GET", "/", nil)
	claims := &Claims{Type: "access", AccountID: accountID.String(), Email: "client@example.com"}
	return req.WithContext(ContextWithClaims(req.Context(), claims))
}

func TestRequirePermission(t *testing.T) {
	accountID := uuid.New()

	t.Run("allowed", func(t *testing.T) {
		checker := permissionCheckerFunc(func(ctx context.Context, id uuid.UUID, permission string) (bool, error) {
			assert.Equal(t, accountID, id)
			assert.Equal(t, "security.manage", permission)
			return true, nil
		})
		called := false
		handler := RequirePermission(checker, "security.manage")(okHandler(&called))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestWithClaims(accountID))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, called)
	})

	t.Run("denied", func(t *testing.T) {
		checker := permissionCheckerFunc(func(ctx context.Context, id uuid.UUID, permission string) (bool, error) {
			return false, nil
		})
		called := false
		handler := RequirePermission(checker, "security.manage")(okHandler(&called))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestWithClaims(accountID))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.False(t, called)
	})

	t.Run("lookup failure denies", func(t *testing.T) {
		checker := permissionCheckerFunc(func(ctx context.Context, id uuid.UUID, permission string) (bool, error) {
			return false, assert.AnError
		})
		called := false
		handler := RequirePermission(checker, "security.manage")(okHandler(&called))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestWithClaims(accountID))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.False(t, called)
	})

	t.Run("no claims", func(t *testing.T) {
		checker := permissionCheckerFunc(func(ctx context.Context, id uuid.UUID, permission string) (bool, error) {
			t.Fatal("checker must not run without claims")
			return false, nil
		})
		called := false
		handler := RequirePermission(checker, "security.manage")(okHandler(&called))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, called)
	})
}
