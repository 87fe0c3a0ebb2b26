package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fintrust/identity/internal/auth"
	"github.com/fintrust/identity/internal/models"
	"github.com/fintrust/identity/internal/services"
	pkghttp "github.com/fintrust/identity/pkg/http"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds account claims to the request context for testing
// authenticated endpoints
func WithAuthContext(req *http.Request, accountID uuid.UUID, email string) *http.Request {
	claims := &auth.Claims{
		Type:      "access",
		AccountID: accountID.String(),
		Email:     email,
	}
	return req.WithContext(auth.ContextWithClaims(req.Context(), claims))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc    func(ctx context.Context, email, password, totpCode, ip, userAgent string) (*services.AuthResult, error)
	RefreshFunc  func(ctx context.Context, refreshToken string) (*services.AuthResult, error)
	RegisterFunc func(ctx context.Context, email, password, ip string) (*models.Account, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password, totpCode, ip, userAgent string) (*services.AuthResult, error) {
	if m.LoginFunc == nil {
		return &services.AuthResult{}, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, email, password, totpCode, ip, userAgent)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*services.AuthResult, error) {
	if m.RefreshFunc == nil {
		return &services.AuthResult{}, models.ErrUnauthorized
	}
	return m.RefreshFunc(ctx, refreshToken)
}

func (m *MockAuthService) Register(ctx context.Context, email, password, ip string) (*models.Account, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrEmailTaken
	}
	return m.RegisterFunc(ctx, email, password, ip)
}

// MockEmailVerificationService implements EmailVerificationServiceInterface for testing
type MockEmailVerificationService struct {
	VerifyEmailFunc        func(ctx context.Context, plainToken string) (uuid.UUID, error)
	ResendVerificationFunc func(ctx context.Context, email string) error
}

func (m *MockEmailVerificationService) VerifyEmail(ctx context.Context, plainToken string) (uuid.UUID, error) {
	if m.VerifyEmailFunc == nil {
		return uuid.Nil, models.ErrUnauthorized
	}
	return m.VerifyEmailFunc(ctx, plainToken)
}

func (m *MockEmailVerificationService) ResendVerification(ctx context.Context, email string) error {
	if m.ResendVerificationFunc == nil {
		return nil
	}
	return m.ResendVerificationFunc(ctx, email)
}

// MockRiskService implements RiskServiceInterface for testing
type MockRiskService struct {
	SetRiskLevelFunc  func(ctx context.Context, accountID uuid.UUID, level models.RiskLevel, assessedBy, notes string) error
	FlagForReviewFunc func(ctx context.Context, accountID uuid.UUID, reason, flaggedBy string) error
	ClearFlagFunc     func(ctx context.Context, accountID uuid.UUID, clearedBy string) error
	CanTransactFunc   func(ctx context.Context, account *models.Account, amount int64) (bool, error)
}

func (m *MockRiskService) SetRiskLevel(ctx context.Context, accountID uuid.UUID, level models.RiskLevel, assessedBy, notes string) error {
	if m.SetRiskLevelFunc == nil {
		return nil
	}
	return m.SetRiskLevelFunc(ctx, accountID, level, assessedBy, notes)
}

func (m *MockRiskService) FlagForReview(ctx context.Context, accountID uuid.UUID, reason, flaggedBy string) error {
	if m.FlagForReviewFunc == nil {
		return nil
	}
	return m.FlagForReviewFunc(ctx, accountID, reason, flaggedBy)
}

func (m *MockRiskService) ClearFlag(ctx context.Context, accountID uuid.UUID, clearedBy string) error {
	if m.ClearFlagFunc == nil {
		return nil
	}
	return m.ClearFlagFunc(ctx, accountID, clearedBy)
}

func (m *MockRiskService) CanTransact(ctx context.Context, account *models.Account, amount int64) (bool, error) {
	if m.CanTransactFunc == nil {
		return false, nil
	}
	return m.CanTransactFunc(ctx, account, amount)
}

// MockAuthorizationService implements AuthorizationServiceInterface for testing
type MockAuthorizationService struct {
	AssignRoleFunc           func(ctx context.Context, accountID uuid.UUID, roleName, assignedBy string, expiresAt *time.Time) error
	RevokeRoleFunc           func(ctx context.Context, accountID uuid.UUID, roleName, revokedBy string) error
	PrimaryRoleFunc          func(ctx context.Context, accountID uuid.UUID) (*models.Role, error)
	EffectivePermissionsFunc func(ctx context.Context, accountID uuid.UUID) ([]string, error)
}

func (m *MockAuthorizationService) AssignRole(ctx context.Context, accountID uuid.UUID, roleName, assignedBy string, expiresAt *time.Time) error {
	if m.AssignRoleFunc == nil {
		return nil
	}
	return m.AssignRoleFunc(ctx, accountID, roleName, assignedBy, expiresAt)
}

func (m *MockAuthorizationService) RevokeRole(ctx context.Context, accountID uuid.UUID, roleName, revokedBy string) error {
	if m.RevokeRoleFunc == nil {
		return nil
	}
	return m.RevokeRoleFunc(ctx, accountID, roleName, revokedBy)
}

func (m *MockAuthorizationService) PrimaryRole(ctx context.Context, accountID uuid.UUID) (*models.Role, error) {
	if m.PrimaryRoleFunc == nil {
		return &models.Role{Name: models.RoleClient, Category: models.RoleCategoryClient}, nil
	}
	return m.PrimaryRoleFunc(ctx, accountID)
}

func (m *MockAuthorizationService) EffectivePermissions(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	if m.EffectivePermissionsFunc == nil {
		return nil, nil
	}
	return m.EffectivePermissionsFunc(ctx, accountID)
}
