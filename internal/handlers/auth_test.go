package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fintrust/identity/internal/handlers"
	"github.com/fintrust/identity/internal/models"
	"github.com/fintrust/identity/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestLoginHandler_Success(t *testing.T) {
	account := &models.Account{ID: uuid.New(), Email: "client@example.com"}
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, totpCode, ip, userAgent string) (*services.AuthResult, error) {
			return &services.AuthResult{
				Success:      true,
				AccessToken:  "access_token_123",
				RefreshToken: "refresh_token_123",
				Account:      account,
			}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "client@example.com",
		Password: "Str0ng&Secret!",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp handlers.LoginResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "access_token_123", resp.AccessToken)
	assert.Equal(t, "refresh_token_123", resp.RefreshToken)
	assert.Equal(t, account.ID.String(), resp.AccountID)
}

func TestLoginHandler_FailureStatuses_AntiEnumeration(t *testing.T) {
	// Unknown account, wrong password, disabled and restricted accounts all
	// map to 401 with the service-provided generic message.
	cases := []struct {
		err     error
		message string
	}{
		{models.ErrInvalidCredentials, "invalid email or password"},
		{models.ErrAccountDisabled, "account is deactivated, contact support"},
		{models.ErrRiskRestricted, "account access is restricted, contact support"},
	}

	for _, tc := range cases {
		mockAuth := &handlers.MockAuthService{
			LoginFunc: func(ctx context.Context, email, password, totpCode, ip, userAgent string) (*services.AuthResult, error) {
				return &services.AuthResult{Message: tc.message}, tc.err
			},
		}

		handler := handlers.NewAuthHandler(mockAuth, nil, nil)
		req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
			Email:    "client@example.com",
			Password: "whatever1234!",
		})

		w := httptest.NewRecorder()
		handler.Login(w, req)

		handlers.AssertErrorResponse(t, w, 401, "unauthorized")
	}
}

func TestLoginHandler_RateLimitedSetsRetryAfter(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, totpCode, ip, userAgent string) (*services.AuthResult, error) {
			return &services.AuthResult{
				Message:    "too many attempts, please try again later",
				RetryAfter: time.Minute,
			}, models.ErrRateLimited
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "client@example.com",
		Password: "whatever1234!",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 429, "rate_limit_exceeded")
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestLoginHandler_LockedSetsRetryAfter(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, totpCode, ip, userAgent string) (*services.AuthResult, error) {
			return &services.AuthResult{
				Message:       "account temporarily locked due to repeated failures",
				AccountLocked: true,
				RetryAfter:    30 * time.Minute,
			}, models.ErrAccountLocked
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "client@example.com",
		Password: "whatever1234!",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 429, "rate_limit_exceeded")
	assert.Equal(t, "1800", w.Header().Get("Retry-After"))
}

func TestLoginHandler_InvalidBody(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email: "not-an-email",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestRefreshHandler(t *testing.T) {
	account := &models.Account{ID: uuid.New(), Email: "client@example.com"}
	mockAuth := &handlers.MockAuthService{
		RefreshFunc: func(ctx context.Context, refreshToken string) (*services.AuthResult, error) {
			if refreshToken != "good-token" {
				return &services.AuthResult{Message: "invalid refresh token"}, models.ErrUnauthorized
			}
			return &services.AuthResult{
				Success:      true,
				AccessToken:  "new_access",
				RefreshToken: "new_refresh",
				Account:      account,
			}, nil
		},
	}
	handler := handlers.NewAuthHandler(mockAuth, nil, nil)

	w := httptest.NewRecorder()
	handler.Refresh(w, handlers.NewTestRequest(t, "POST", "/auth/refresh", handlers.RefreshRequest{RefreshToken: "good-token"}))
	var resp handlers.LoginResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "new_access", resp.AccessToken)

	w = httptest.NewRecorder()
	handler.Refresh(w, handlers.NewTestRequest(t, "POST", "/auth/refresh", handlers.RefreshRequest{RefreshToken: "stale"}))
	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestRegisterHandler_AlwaysAcceptedOnDuplicate(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RegisterFunc: func(ctx context.Context, email, password, ip string) (*models.Account, error) {
			return nil, models.ErrEmailTaken
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Email:    "taken@example.com",
		Password: "Str0ng&Secret!",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	// A taken email is indistinguishable from a fresh registration.
	var resp map[string]string
	handlers.AssertJSONResponse(t, w, 202, &resp)
	assert.NotEmpty(t, resp["message"])
}

func TestRegisterHandler_WeakPassword(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RegisterFunc: func(ctx context.Context, email, password, ip string) (*models.Account, error) {
			return nil, models.ErrBadRequest
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Email:    "new@example.com",
		Password: "weakpassword1!",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestVerifyEmailHandler(t *testing.T) {
	accountID := uuid.New()
	verification := &handlers.MockEmailVerificationService{
		VerifyEmailFunc: func(ctx context.Context, plainToken string) (uuid.UUID, error) {
			if plainToken == "valid" {
				return accountID, nil
			}
			return uuid.Nil, models.ErrUnauthorized
		},
	}
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, verification, nil)

	w := httptest.NewRecorder()
	handler.VerifyEmail(w, handlers.NewTestRequest(t, "POST", "/auth/verify-email", handlers.VerifyEmailRequest{Token: "valid"}))
	var resp map[string]string
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, accountID.String(), resp["account_id"])

	// Unknown, used and expired tokens are indistinguishable.
	w = httptest.NewRecorder()
	handler.VerifyEmail(w, handlers.NewTestRequest(t, "POST", "/auth/verify-email", handlers.VerifyEmailRequest{Token: "bogus"}))
	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestResendVerificationHandler_AlwaysAccepted(t *testing.T) {
	verification := &handlers.MockEmailVerificationService{
		ResendVerificationFunc: func(ctx context.Context, email string) error {
			return models.ErrNotFound
		},
	}
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, verification, nil)

	w := httptest.NewRecorder()
	handler.ResendVerification(w, handlers.NewTestRequest(t, "POST", "/auth/resend-verification", handlers.ResendVerificationRequest{Email: "ghost@example.com"}))

	var resp map[string]string
	handlers.AssertJSONResponse(t, w, 202, &resp)
	assert.NotEmpty(t, resp["message"])
}
