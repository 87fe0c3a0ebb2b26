package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fintrust/identity/internal/models"
	"github.com/google/uuid"
)

// AuthzRoleRepository defines the role storage operations the resolver needs
type AuthzRoleRepository interface {
	ListAssignments(ctx context.Context, accountID uuid.UUID) ([]*models.RoleAssignment, error)
	PermissionNamesForRoles(ctx context.Context, roleIDs []uuid.UUID) ([]string, error)
	GetRoleByName(ctx context.Context, name string) (*models.Role, error)
	AssignRole(ctx context.Context, accountID, roleID uuid.UUID, assignedBy string, expiresAt *time.Time) error
	DeactivateAssignment(ctx context.Context, accountID, roleID uuid.UUID) error
}

// AuthorizationService resolves roles and permissions for accounts. The
// resolution rules live in pure functions over assignment slices; the
// service wraps them with repository access.
type AuthorizationService struct {
	roles  AuthzRoleRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewAuthorizationService creates a new AuthorizationService
func NewAuthorizationService(roles AuthzRoleRepository, logger *slog.Logger) *AuthorizationService {
	return &AuthorizationService{
		roles:  roles,
		logger: logger,
		now:    time.Now,
	}
}

// ActiveAssignments filters a slice down to assignments granting their role
// at the given time: is_active and not expired. Inactive and expired rows are
// kept in storage for history but never grant anything.
func ActiveAssignments(assignments []*models.RoleAssignment, now time.Time) []*models.RoleAssignment {
	active := make([]*models.RoleAssignment, 0, len(assignments))
	for _, a := range assignments {
		if a.ActiveAt(now) {
			active = append(active, a)
		}
	}
	return active
}

// PrimaryRoleOf picks the highest-priority role among active assignments.
// Equal priorities tie-break on ascending lexical role name so the result is
// deterministic regardless of assignment order. Returns nil with no active
// assignments.
func PrimaryRoleOf(assignments []*models.RoleAssignment, now time.Time) *models.Role {
	var primary *models.Role
	for _, a := range ActiveAssignments(assignments, now) {
		r := a.Role
		if r == nil {
			continue
		}
		if primary == nil ||
			r.Priority > primary.Priority ||
			(r.Priority == primary.Priority && r.Name < primary.Name) {
			primary = r
		}
	}
	return primary
}

// HasRole reports whether the account holds the named role through an
// active assignment.
func (s *AuthorizationService) HasRole(ctx context.Context, accountID uuid.UUID, roleName string) (bool, error) {
	assignments, err := s.roles.ListAssignments(ctx, accountID)
	if err != nil {
		return false, fmt.Errorf("failed to list role assignments: %w", err)
	}

	for _, a := range ActiveAssignments(assignments, s.now()) {
		if a.Role != nil && a.Role.Name == roleName {
			return true, nil
		}
	}
	return false, nil
}

// HasAnyRole reports whether the account holds at least one of the named roles.
func (s *AuthorizationService) HasAnyRole(ctx context.Context, accountID uuid.UUID, roleNames ...string) (bool, error) {
	assignments, err := s.roles.ListAssignments(ctx, accountID)
	if err != nil {
		return false, fmt.Errorf("failed to list role assignments: %w", err)
	}

	held := heldRoleNames(assignments, s.now())
	for _, name := range roleNames {
		if held[name] {
			return true, nil
		}
	}
	return false, nil
}

// HasAllRoles reports whether the account holds every one of the named roles.
func (s *AuthorizationService) HasAllRoles(ctx context.Context, accountID uuid.UUID, roleNames ...string) (bool, error) {
	assignments, err := s.roles.ListAssignments(ctx, accountID)
	if err != nil {
		return false, fmt.Errorf("failed to list role assignments: %w", err)
	}

	held := heldRoleNames(assignments, s.now())
	for _, name := range roleNames {
		if !held[name] {
			return false, nil
		}
	}
	return true, nil
}

func heldRoleNames(assignments []*models.RoleAssignment, now time.Time) map[string]bool {
	held := make(map[string]bool)
	for _, a := range ActiveAssignments(assignments, now) {
		if a.Role != nil {
			held[a.Role.Name] = true
		}
	}
	return held
}

// PrimaryRole resolves the account's most privileged active role. Accounts
// with no active assignments default to the baseline Client role.
func (s *AuthorizationService) PrimaryRole(ctx context.Context, accountID uuid.UUID) (*models.Role, error) {
	assignments, err := s.roles.ListAssignments(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role assignments: %w", err)
	}

	if primary := PrimaryRoleOf(assignments, s.now()); primary != nil {
		return primary, nil
	}

	defaultRole, err := s.roles.GetRoleByName(ctx, models.RoleClient)
	if err != nil {
		return nil, fmt.Errorf("failed to load default role: %w", err)
	}
	return defaultRole, nil
}

// EffectivePermissions returns the union of permission names granted through
// the account's active roles.
func (s *AuthorizationService) EffectivePermissions(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	assignments, err := s.roles.ListAssignments(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role assignments: %w", err)
	}

	active := ActiveAssignments(assignments, s.now())
	roleIDs := make([]uuid.UUID, 0, len(active))
	for _, a := range active {
		roleIDs = append(roleIDs, a.RoleID)
	}

	names, err := s.roles.PermissionNamesForRoles(ctx, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve permissions: %w", err)
	}
	return names, nil
}

// HasPermission reports whether any of the account's active roles grants the
// named permission.
func (s *AuthorizationService) HasPermission(ctx context.Context, accountID uuid.UUID, permission string) (bool, error) {
	permissions, err := s.EffectivePermissions(ctx, accountID)
	if err != nil {
		return false, err
	}
	for _, p := range permissions {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}

// InCategory reports whether the account holds any active role in the given
// category.
func (s *AuthorizationService) InCategory(ctx context.Context, accountID uuid.UUID, category string) (bool, error) {
	assignments, err := s.roles.ListAssignments(ctx, accountID)
	if err != nil {
		return false, fmt.Errorf("failed to list role assignments: %w", err)
	}

	for _, a := range ActiveAssignments(assignments, s.now()) {
		if a.Role != nil && a.Role.Category == category {
			return true, nil
		}
	}
	return false, nil
}

// AssignRole grants a role to an account, validating that the role allows
// assignment.
func (s *AuthorizationService) AssignRole(ctx context.Context, accountID uuid.UUID, roleName, assignedBy string, expiresAt *time.Time) error {
	role, err := s.roles.GetRoleByName(ctx, roleName)
	if err != nil {
		return fmt.Errorf("failed to load role %q: %w", roleName, err)
	}
	if !role.CanBeAssigned {
		return fmt.Errorf("%w: role %q cannot be assigned", models.ErrForbidden, roleName)
	}

	if err := s.roles.AssignRole(ctx, accountID, role.ID, assignedBy, expiresAt); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	s.logger.Info("role assigned",
		slog.String("account_id", accountID.String()),
		slog.String("role", roleName),
		slog.String("assigned_by", assignedBy))
	return nil
}

// RevokeRole deactivates an account's assignment of the named role. The
// assignment row stays behind for the audit history.
func (s *AuthorizationService) RevokeRole(ctx context.Context, accountID uuid.UUID, roleName, revokedBy string) error {
	role, err := s.roles.GetRoleByName(ctx, roleName)
	if err != nil {
		return fmt.Errorf("failed to load role %q: %w", roleName, err)
	}

	if err := s.roles.DeactivateAssignment(ctx, accountID, role.ID); err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}

	s.logger.Info("role revoked",
		slog.String("account_id", accountID.String()),
		slog.String("role", roleName),
		slog.String("revoked_by", revokedBy))
	return nil
}
