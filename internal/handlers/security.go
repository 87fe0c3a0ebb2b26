package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fintrust/identity/internal/auth"
	"github.com/fintrust/identity/internal/models"
	pkghttp "github.com/fintrust/identity/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// RiskServiceInterface defines the risk engine operations exposed over HTTP
type RiskServiceInterface interface {
	SetRiskLevel(ctx context.Context, accountID uuid.UUID, level models.RiskLevel, assessedBy, notes string) error
	FlagForReview(ctx context.Context, accountID uuid.UUID, reason, flaggedBy string) error
	ClearFlag(ctx context.Context, accountID uuid.UUID, clearedBy string) error
	CanTransact(ctx context.Context, account *models.Account, amount int64) (bool, error)
}

// AuthorizationServiceInterface defines the role operations exposed over HTTP
type AuthorizationServiceInterface interface {
	AssignRole(ctx context.Context, accountID uuid.UUID, roleName, assignedBy string, expiresAt *time.Time) error
	RevokeRole(ctx context.Context, accountID uuid.UUID, roleName, revokedBy string) error
	PrimaryRole(ctx context.Context, accountID uuid.UUID) (*models.Role, error)
	EffectivePermissions(ctx context.Context, accountID uuid.UUID) ([]string, error)
}

// AccountReader loads accounts for admin views
type AccountReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// AttemptReader lists audit-trail entries for admin views
type AttemptReader interface {
	ListRecentByEmail(ctx context.Context, email string, since time.Time, limit int) ([]*models.LoginAttempt, error)
}

// TOTPEnroller provisions a second-factor secret for an account
type TOTPEnroller interface {
	GenerateEnrollment(email string) (*auth.Enrollment, error)
}

// AccountSecretWriter stores a confirmed second-factor secret
type AccountSecretWriter interface {
	SetTwoFactorSecret(ctx context.Context, id uuid.UUID, secret *string) error
}

// SecurityHandler exposes the risk engine, role administration and
// second-factor enrollment.
type SecurityHandler struct {
	risk     RiskServiceInterface
	authz    AuthorizationServiceInterface
	accounts AccountReader
	attempts AttemptReader
	totp     TOTPEnroller
	secrets  AccountSecretWriter
}

// NewSecurityHandler creates a new SecurityHandler
func NewSecurityHandler(
	risk RiskServiceInterface,
	authz AuthorizationServiceInterface,
	accounts AccountReader,
	attempts AttemptReader,
	totp TOTPEnroller,
	secrets AccountSecretWriter,
) *SecurityHandler {
	return &SecurityHandler{
		risk:     risk,
		authz:    authz,
		accounts: accounts,
		attempts: attempts,
		totp:     totp,
		secrets:  secrets,
	}
}

// SetRiskLevelRequest represents the request body for a risk re-assessment
type SetRiskLevelRequest struct {
	Level string `json:"level" validate:"required,oneof=low medium high restricted"`
	Notes string `json:"notes" validate:"max=1000"`
}

// FlagRequest represents the request body for flagging an account
type FlagRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// AssignRoleRequest represents the request body for a role grant
type AssignRoleRequest struct {
	Role      string     `json:"role" validate:"required"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CanTransactRequest represents the request body for a transaction check
type CanTransactRequest struct {
	Amount int64 `json:"amount" validate:"gte=0"`
}

func accountIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "accountID"))
}

func actorFromRequest(r *http.Request) string {
	if claims := auth.ClaimsFromRequest(r); claims != nil {
		return claims.Email
	}
	return "system"
}

// SetRiskLevel handles an explicit administrative risk re-assessment
func (h *SecurityHandler) SetRiskLevel(w http.ResponseWriter, r *http.Request) {
	accountID, err := accountIDParam(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "invalid account id")
		return
	}

	var req SetRiskLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	level, err := models.ParseRiskLevel(req.Level)
	if err != nil {
		pkghttp.WriteBadRequest(w, "unknown risk level")
		return
	}

	if err := h.risk.SetRiskLevel(r.Context(), accountID, level, actorFromRequest(r), req.Notes); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FlagForReview handles flagging an account for manual review
func (h *SecurityHandler) FlagForReview(w http.ResponseWriter, r *http.Request) {
	accountID, err := accountIDParam(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "invalid account id")
		return
	}

	var req FlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.risk.FlagForReview(r.Context(), accountID, req.Reason, actorFromRequest(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearFlag handles clearing a review flag
func (h *SecurityHandler) ClearFlag(w http.ResponseWriter, r *http.Request) {
	accountID, err := accountIDParam(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "invalid account id")
		return
	}

	if err := h.risk.ClearFlag(r.Context(), accountID, actorFromRequest(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CanTransact reports whether the account may execute a transaction today
func (h *SecurityHandler) CanTransact(w http.ResponseWriter, r *http.Request) {
	accountID, err := accountIDParam(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "invalid account id")
		return
	}

	var req CanTransactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}

	account, err := h.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	allowed, err := h.risk.CanTransact(r.Context(), account, req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"allowed":    allowed,
		"risk_level": account.RiskLevel.String(),
	})
}

// AssignRole handles granting a role to an account
func (h *SecurityHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	accountID, err := accountIDParam(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "invalid account id")
		return
	}

	var req AssignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.authz.AssignRole(r.Context(), accountID, req.Role, actorFromRequest(r), req.ExpiresAt); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeRole handles revoking a role from an account
func (h *SecurityHandler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	accountID, err := accountIDParam(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "invalid account id")
		return
	}

	roleName := chi.URLParam(r, "roleName")
	if roleName == "" {
		pkghttp.WriteBadRequest(w, "missing role name")
		return
	}

	if err := h.authz.RevokeRole(r.Context(), accountID, roleName, actorFromRequest(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Permissions returns the account's primary role and permission union
func (h *SecurityHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	accountID, err := accountIDParam(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "invalid account id")
		return
	}

	primary, err := h.authz.PrimaryRole(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	permissions, err := h.authz.EffectivePermissions(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"primary_role": primary.Name,
		"category":     primary.Category,
		"permissions":  permissions,
	})
}

// LoginHistory lists the recent login attempts recorded for an email
func (h *SecurityHandler) LoginHistory(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		pkghttp.WriteBadRequest(w, "missing email parameter")
		return
	}

	attempts, err := h.attempts.ListRecentByEmail(r.Context(), email, time.Now().Add(-30*24*time.Hour), 100)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	type attemptView struct {
		IPAddress     string    `json:"ip_address"`
		DeviceSummary string    `json:"device_summary"`
		Reason        string    `json:"reason,omitempty"`
		AttemptNumber int       `json:"attempt_number"`
		Success       bool      `json:"success"`
		CreatedAt     time.Time `json:"created_at"`
	}
	views := make([]attemptView, 0, len(attempts))
	for _, a := range attempts {
		views = append(views, attemptView{
			IPAddress:     a.IPAddress,
			DeviceSummary: a.DeviceSummary,
			Reason:        a.Reason,
			AttemptNumber: a.AttemptNumber,
			Success:       a.Success,
			CreatedAt:     a.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"attempts": views})
}

// EnrollTOTP provisions a second-factor secret for the authenticated account
func (h *SecurityHandler) EnrollTOTP(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}
	claims := auth.ClaimsFromRequest(r)

	enrollment, err := h.totp.GenerateEnrollment(claims.Email)
	if err != nil {
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	if err := h.secrets.SetTwoFactorSecret(r.Context(), accountID, &enrollment.Secret); err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"secret":  enrollment.Secret,
		"qr_code": enrollment.QRDataURL,
	})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "account not found")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "operation not allowed")
	default:
		pkghttp.WriteInternalError(w, "internal server error")
	}
}
