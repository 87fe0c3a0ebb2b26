package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fintrust/identity/internal/models"
	pkglogger "github.com/fintrust/identity/pkg/logger"
	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger())
}

// MockAccountRepository implements the account interfaces for testing
type MockAccountRepository struct {
	GetByIDFunc            func(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByEmailFunc         func(ctx context.Context, email string) (*models.Account, error)
	CreateSerializableFunc func(ctx context.Context, account *models.Account) (*models.Account, error)
	RecordFailedLoginFunc  func(ctx context.Context, email string, threshold int, lockedUntil time.Time) (*models.Account, error)
	ResetFailedLoginsFunc  func(ctx context.Context, email string) error
	UpdateLastLoginFunc    func(ctx context.Context, id uuid.UUID, ip, userAgent string) error
	SetRiskLevelFunc       func(ctx context.Context, id uuid.UUID, level models.RiskLevel, limits models.TransactionLimits, assessedBy string, notes *string) error
	EscalateRiskFunc       func(ctx context.Context, id uuid.UUID, floor models.RiskLevel, limits models.TransactionLimits, by string, notes *string) error
	SetReviewFlagFunc      func(ctx context.Context, id uuid.UUID, reason, flaggedBy string) error
	ClearReviewFlagFunc    func(ctx context.Context, id uuid.UUID) error
	MarkEmailVerifiedFunc  func(ctx context.Context, id uuid.UUID) error
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) CreateSerializable(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.CreateSerializableFunc != nil {
		return m.CreateSerializableFunc(ctx, account)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) RecordFailedLogin(ctx context.Context, email string, threshold int, lockedUntil time.Time) (*models.Account, error) {
	if m.RecordFailedLoginFunc != nil {
		return m.RecordFailedLoginFunc(ctx, email, threshold, lockedUntil)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) ResetFailedLogins(ctx context.Context, email string) error {
	if m.ResetFailedLoginsFunc != nil {
		return m.ResetFailedLoginsFunc(ctx, email)
	}
	return nil
}

func (m *MockAccountRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, ip, userAgent string) error {
	if m.UpdateLastLoginFunc != nil {
		return m.UpdateLastLoginFunc(ctx, id, ip, userAgent)
	}
	return nil
}

func (m *MockAccountRepository) SetRiskLevel(ctx context.Context, id uuid.UUID, level models.RiskLevel, limits models.TransactionLimits, assessedBy string, notes *string) error {
	if m.SetRiskLevelFunc != nil {
		return m.SetRiskLevelFunc(ctx, id, level, limits, assessedBy, notes)
	}
	return nil
}

func (m *MockAccountRepository) EscalateRisk(ctx context.Context, id uuid.UUID, floor models.RiskLevel, limits models.TransactionLimits, by string, notes *string) error {
	if m.EscalateRiskFunc != nil {
		return m.EscalateRiskFunc(ctx, id, floor, limits, by, notes)
	}
	return nil
}

func (m *MockAccountRepository) SetReviewFlag(ctx context.Context, id uuid.UUID, reason, flaggedBy string) error {
	if m.SetReviewFlagFunc != nil {
		return m.SetReviewFlagFunc(ctx, id, reason, flaggedBy)
	}
	return nil
}

func (m *MockAccountRepository) ClearReviewFlag(ctx context.Context, id uuid.UUID) error {
	if m.ClearReviewFlagFunc != nil {
		return m.ClearReviewFlagFunc(ctx, id)
	}
	return nil
}

func (m *MockAccountRepository) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	if m.MarkEmailVerifiedFunc != nil {
		return m.MarkEmailVerifiedFunc(ctx, id)
	}
	return nil
}

// MockAttemptRepository implements BruteForceAttemptRepository for testing
type MockAttemptRepository struct {
	RecordFunc               func(ctx context.Context, attempt *models.LoginAttempt) error
	CountFailuresByEmailFunc func(ctx context.Context, email string, since time.Time) (int, error)
	CountFailuresByIPFunc    func(ctx context.Context, ip string, since time.Time) (int, error)
}

func (m *MockAttemptRepository) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, attempt)
	}
	return nil
}

func (m *MockAttemptRepository) CountFailuresByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	if m.CountFailuresByEmailFunc != nil {
		return m.CountFailuresByEmailFunc(ctx, email, since)
	}
	return 0, nil
}

func (m *MockAttemptRepository) CountFailuresByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	if m.CountFailuresByIPFunc != nil {
		return m.CountFailuresByIPFunc(ctx, ip, since)
	}
	return 0, nil
}

// MockRiskEscalator implements RiskEscalator for testing
type MockRiskEscalator struct {
	EscalateToFunc func(ctx context.Context, accountID uuid.UUID, floor models.RiskLevel, by string, notes string) error
}

func (m *MockRiskEscalator) EscalateTo(ctx context.Context, accountID uuid.UUID, floor models.RiskLevel, by string, notes string) error {
	if m.EscalateToFunc != nil {
		return m.EscalateToFunc(ctx, accountID, floor, by, notes)
	}
	return nil
}

// MockRoleRepository implements AuthzRoleRepository for testing
type MockRoleRepository struct {
	ListAssignmentsFunc         func(ctx context.Context, accountID uuid.UUID) ([]*models.RoleAssignment, error)
	PermissionNamesForRolesFunc func(ctx context.Context, roleIDs []uuid.UUID) ([]string, error)
	GetRoleByNameFunc           func(ctx context.Context, name string) (*models.Role, error)
	AssignRoleFunc              func(ctx context.Context, accountID, roleID uuid.UUID, assignedBy string, expiresAt *time.Time) error
	DeactivateAssignmentFunc    func(ctx context.Context, accountID, roleID uuid.UUID) error
}

func (m *MockRoleRepository) ListAssignments(ctx context.Context, accountID uuid.UUID) ([]*models.RoleAssignment, error) {
	if m.ListAssignmentsFunc != nil {
		return m.ListAssignmentsFunc(ctx, accountID)
	}
	return []*models.RoleAssignment{}, nil
}

func (m *MockRoleRepository) PermissionNamesForRoles(ctx context.Context, roleIDs []uuid.UUID) ([]string, error) {
	if m.PermissionNamesForRolesFunc != nil {
		return m.PermissionNamesForRolesFunc(ctx, roleIDs)
	}
	return []string{}, nil
}

func (m *MockRoleRepository) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	if m.GetRoleByNameFunc != nil {
		return m.GetRoleByNameFunc(ctx, name)
	}
	return nil, models.ErrNotFound
}

func (m *MockRoleRepository) AssignRole(ctx context.Context, accountID, roleID uuid.UUID, assignedBy string, expiresAt *time.Time) error {
	if m.AssignRoleFunc != nil {
		return m.AssignRoleFunc(ctx, accountID, roleID, assignedBy, expiresAt)
	}
	return nil
}

func (m *MockRoleRepository) DeactivateAssignment(ctx context.Context, accountID, roleID uuid.UUID) error {
	if m.DeactivateAssignmentFunc != nil {
		return m.DeactivateAssignmentFunc(ctx, accountID, roleID)
	}
	return nil
}

// MockPrimaryRoleResolver implements PrimaryRoleResolver for testing
type MockPrimaryRoleResolver struct {
	PrimaryRoleFunc func(ctx context.Context, accountID uuid.UUID) (*models.Role, error)
}

func (m *MockPrimaryRoleResolver) PrimaryRole(ctx context.Context, accountID uuid.UUID) (*models.Role, error) {
	if m.PrimaryRoleFunc != nil {
		return m.PrimaryRoleFunc(ctx, accountID)
	}
	return &models.Role{Name: models.RoleClient, Category: models.RoleCategoryClient, Priority: 10}, nil
}

// MockRateLimiter implements LoginRateLimiter for testing
type MockRateLimiter struct {
	IsLimitedFunc     func(ctx context.Context, endpoint, identity string) bool
	RecordRequestFunc func(ctx context.Context, endpoint, identity string) error
}

func (m *MockRateLimiter) IsLimited(ctx context.Context, endpoint, identity string) bool {
	if m.IsLimitedFunc != nil {
		return m.IsLimitedFunc(ctx, endpoint, identity)
	}
	return false
}

func (m *MockRateLimiter) RecordRequest(ctx context.Context, endpoint, identity string) error {
	if m.RecordRequestFunc != nil {
		return m.RecordRequestFunc(ctx, endpoint, identity)
	}
	return nil
}

// MockLockoutGuard implements LockoutGuard for testing
type MockLockoutGuard struct {
	IsLockedFunc      func(ctx context.Context, identity string) bool
	RecordFailureFunc func(ctx context.Context, identity, ip, userAgent, reason string) (int, error)
	RecordSuccessFunc func(ctx context.Context, accountID uuid.UUID, identity, ip, userAgent string)
	ResetFunc         func(ctx context.Context, identity string) error
}

func (m *MockLockoutGuard) IsLocked(ctx context.Context, identity string) bool {
	if m.IsLockedFunc != nil {
		return m.IsLockedFunc(ctx, identity)
	}
	return false
}

func (m *MockLockoutGuard) RecordFailure(ctx context.Context, identity, ip, userAgent, reason string) (int, error) {
	if m.RecordFailureFunc != nil {
		return m.RecordFailureFunc(ctx, identity, ip, userAgent, reason)
	}
	return 1, nil
}

func (m *MockLockoutGuard) RecordSuccess(ctx context.Context, accountID uuid.UUID, identity, ip, userAgent string) {
	if m.RecordSuccessFunc != nil {
		m.RecordSuccessFunc(ctx, accountID, identity, ip, userAgent)
	}
}

func (m *MockLockoutGuard) Reset(ctx context.Context, identity string) error {
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, identity)
	}
	return nil
}

// MockVerificationSender implements VerificationSender for testing
type MockVerificationSender struct {
	SendVerificationFunc func(ctx context.Context, account *models.Account) error
}

func (m *MockVerificationSender) SendVerification(ctx context.Context, account *models.Account) error {
	if m.SendVerificationFunc != nil {
		return m.SendVerificationFunc(ctx, account)
	}
	return nil
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendVerificationEmailFunc func(ctx context.Context, email, token string, expiresAt time.Time) error
}

func (m *MockEmailService) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendVerificationEmailFunc != nil {
		return m.SendVerificationEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}
