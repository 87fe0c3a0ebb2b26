package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fintrust/identity/internal/handlers"
	"github.com/fintrust/identity/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withAccountIDParam plants the accountID URL parameter chi would populate
func withAccountIDParam(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("accountID", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestSetRiskLevelHandler(t *testing.T) {
	accountID := uuid.New()
	var gotLevel models.RiskLevel
	var gotBy string
	risk := &handlers.MockRiskService{
		SetRiskLevelFunc: func(ctx context.Context, id uuid.UUID, level models.RiskLevel, assessedBy, notes string) error {
			assert.Equal(t, accountID, id)
			gotLevel = level
			gotBy = assessedBy
			return nil
		},
	}
	handler := handlers.NewSecurityHandler(risk, nil, nil, nil, nil, nil)

	req := handlers.NewTestRequest(t, "PUT", "/accounts/"+accountID.String()+"/risk", handlers.SetRiskLevelRequest{
		Level: "high",
		Notes: "suspicious transfer pattern",
	})
	req = handlers.WithAuthContext(req, uuid.New(), "compliance@fintrust.example")
	req = withAccountIDParam(req, accountID.String())

	w := httptest.NewRecorder()
	handler.SetRiskLevel(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, models.RiskHigh, gotLevel)
	assert.Equal(t, "compliance@fintrust.example", gotBy, "actor comes from the token claims")
}

func TestSetRiskLevelHandler_UnknownLevel(t *testing.T) {
	handler := handlers.NewSecurityHandler(&handlers.MockRiskService{}, nil, nil, nil, nil, nil)

	req := handlers.NewTestRequest(t, "PUT", "/accounts/x/risk", handlers.SetRiskLevelRequest{Level: "catastrophic"})
	req = withAccountIDParam(req, uuid.New().String())

	w := httptest.NewRecorder()
	handler.SetRiskLevel(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestSetRiskLevelHandler_BadAccountID(t *testing.T) {
	handler := handlers.NewSecurityHandler(&handlers.MockRiskService{}, nil, nil, nil, nil, nil)

	req := handlers.NewTestRequest(t, "PUT", "/accounts/nope/risk", handlers.SetRiskLevelRequest{Level: "low"})
	req = withAccountIDParam(req, "nope")

	w := httptest.NewRecorder()
	handler.SetRiskLevel(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestFlagAndClearFlagHandlers(t *testing.T) {
	accountID := uuid.New()
	flagged, cleared := false, false
	risk := &handlers.MockRiskService{
		FlagForReviewFunc: func(ctx context.Context, id uuid.UUID, reason, flaggedBy string) error {
			flagged = true
			assert.Equal(t, "structuring pattern", reason)
			return nil
		},
		ClearFlagFunc: func(ctx context.Context, id uuid.UUID, clearedBy string) error {
			cleared = true
			return nil
		},
	}
	handler := handlers.NewSecurityHandler(risk, nil, nil, nil, nil, nil)

	req := handlers.NewTestRequest(t, "POST", "/accounts/x/flag", handlers.FlagRequest{Reason: "structuring pattern"})
	req = withAccountIDParam(req, accountID.String())
	w := httptest.NewRecorder()
	handler.FlagForReview(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, flagged)

	req = handlers.NewTestRequest(t, "DELETE", "/accounts/x/flag", nil)
	req = withAccountIDParam(req, accountID.String())
	w = httptest.NewRecorder()
	handler.ClearFlag(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, cleared)
}

func TestFlagHandler_NotFound(t *testing.T) {
	risk := &handlers.MockRiskService{
		FlagForReviewFunc: func(ctx context.Context, id uuid.UUID, reason, flaggedBy string) error {
			return models.ErrNotFound
		},
	}
	handler := handlers.NewSecurityHandler(risk, nil, nil, nil, nil, nil)

	req := handlers.NewTestRequest(t, "POST", "/accounts/x/flag", handlers.FlagRequest{Reason: "r"})
	req = withAccountIDParam(req, uuid.New().String())
	w := httptest.NewRecorder()
	handler.FlagForReview(w, req)

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}

type stubAccountReader struct {
	account *models.Account
}

func (s *stubAccountReader) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	if s.account == nil {
		return nil, models.ErrNotFound
	}
	return s.account, nil
}

func TestCanTransactHandler(t *testing.T) {
	account := &models.Account{ID: uuid.New(), RiskLevel: models.RiskMedium}
	risk := &handlers.MockRiskService{
		CanTransactFunc: func(ctx context.Context, a *models.Account, amount int64) (bool, error) {
			return amount <= 10_000, nil
		},
	}
	handler := handlers.NewSecurityHandler(risk, nil, &stubAccountReader{account: account}, nil, nil, nil)

	req := handlers.NewTestRequest(t, "POST", "/accounts/x/can-transact", handlers.CanTransactRequest{Amount: 9_000})
	req = withAccountIDParam(req, account.ID.String())
	w := httptest.NewRecorder()
	handler.CanTransact(w, req)

	var resp map[string]any
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, true, resp["allowed"])
	assert.Equal(t, "medium", resp["risk_level"])
}

func TestAssignRoleHandler(t *testing.T) {
	accountID := uuid.New()
	var gotRole string
	var gotExpiry *time.Time
	authz := &handlers.MockAuthorizationService{
		AssignRoleFunc: func(ctx context.Context, id uuid.UUID, roleName, assignedBy string, expiresAt *time.Time) error {
			gotRole = roleName
			gotExpiry = expiresAt
			return nil
		},
	}
	handler := handlers.NewSecurityHandler(nil, authz, nil, nil, nil, nil)

	expiry := time.Now().Add(90 * 24 * time.Hour).UTC().Truncate(time.Second)
	req := handlers.NewTestRequest(t, "POST", "/accounts/x/roles", handlers.AssignRoleRequest{
		Role:      models.RoleInvestor,
		ExpiresAt: &expiry,
	})
	req = withAccountIDParam(req, accountID.String())
	w := httptest.NewRecorder()
	handler.AssignRole(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, models.RoleInvestor, gotRole)
	require.NotNil(t, gotExpiry)
	assert.True(t, expiry.Equal(*gotExpiry))
}

func TestAssignRoleHandler_Forbidden(t *testing.T) {
	authz := &handlers.MockAuthorizationService{
		AssignRoleFunc: func(ctx context.Context, id uuid.UUID, roleName, assignedBy string, expiresAt *time.Time) error {
			return models.ErrForbidden
		},
	}
	handler := handlers.NewSecurityHandler(nil, authz, nil, nil, nil, nil)

	req := handlers.NewTestRequest(t, "POST", "/accounts/x/roles", handlers.AssignRoleRequest{Role: models.RoleAdministrator})
	req = withAccountIDParam(req, uuid.New().String())
	w := httptest.NewRecorder()
	handler.AssignRole(w, req)

	handlers.AssertErrorResponse(t, w, 403, "forbidden")
}

func TestPermissionsHandler(t *testing.T) {
	authz := &handlers.MockAuthorizationService{
		PrimaryRoleFunc: func(ctx context.Context, id uuid.UUID) (*models.Role, error) {
			return &models.Role{Name: models.RoleComplianceOfficer, Category: models.RoleCategoryCompliance}, nil
		},
		EffectivePermissionsFunc: func(ctx context.Context, id uuid.UUID) ([]string, error) {
			return []string{"audit.read", "security.manage"}, nil
		},
	}
	handler := handlers.NewSecurityHandler(nil, authz, nil, nil, nil, nil)

	req := handlers.NewTestRequest(t, "GET", "/accounts/x/permissions", nil)
	req = withAccountIDParam(req, uuid.New().String())
	w := httptest.NewRecorder()
	handler.Permissions(w, req)

	var resp struct {
		PrimaryRole string   `json:"primary_role"`
		Category    string   `json:"category"`
		Permissions []string `json:"permissions"`
	}
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, models.RoleComplianceOfficer, resp.PrimaryRole)
	assert.Equal(t, models.RoleCategoryCompliance, resp.Category)
	assert.Equal(t, []string{"audit.read", "security.manage"}, resp.Permissions)
}
