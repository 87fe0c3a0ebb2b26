package services

import (
	"context"
	"testing"
	"time"

	"github.com/fintrust/identity/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assignment(name string, priority int, category string, active bool, expiresAt *time.Time) *models.RoleAssignment {
	return &models.RoleAssignment{
		AccountID: uuid.New(),
		RoleID:    uuid.New(),
		IsActive:  active,
		ExpiresAt: expiresAt,
		Role: &models.Role{
			ID:       uuid.New(),
			Name:     name,
			Priority: priority,
			Category: category,
		},
	}
}

func TestPrimaryRoleOf_HighestPriorityWins(t *testing.T) {
	now := time.Now()
	assignments := []*models.RoleAssignment{
		assignment(models.RoleClient, 10, models.RoleCategoryClient, true, nil),
		assignment(models.RoleAdministrator, 100, models.RoleCategoryStaff, true, nil),
		assignment(models.RoleInvestor, 20, models.RoleCategoryClient, true, nil),
	}

	primary := PrimaryRoleOf(assignments, now)
	require.NotNil(t, primary)
	assert.Equal(t, models.RoleAdministrator, primary.Name)
}

func TestPrimaryRoleOf_TieBreaksOnLexicalName(t *testing.T) {
	now := time.Now()
	a := assignment("Support", 40, models.RoleCategoryStaff, true, nil)
	b := assignment("Auditor", 40, models.RoleCategoryStaff, true, nil)

	// Deterministic regardless of slice order.
	assert.Equal(t, "Auditor", PrimaryRoleOf([]*models.RoleAssignment{a, b}, now).Name)
	assert.Equal(t, "Auditor", PrimaryRoleOf([]*models.RoleAssignment{b, a}, now).Name)
}

func TestPrimaryRoleOf_IgnoresInactiveAndExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	assignments := []*models.RoleAssignment{
		assignment(models.RoleAdministrator, 100, models.RoleCategoryStaff, false, nil),
		assignment(models.RoleComplianceOfficer, 50, models.RoleCategoryCompliance, true, &past),
		assignment(models.RoleInvestor, 20, models.RoleCategoryClient, true, nil),
	}

	primary := PrimaryRoleOf(assignments, now)
	require.NotNil(t, primary)
	assert.Equal(t, models.RoleInvestor, primary.Name)
}

func TestPrimaryRoleOf_EmptyReturnsNil(t *testing.T) {
	assert.Nil(t, PrimaryRoleOf(nil, time.Now()))
}

func TestPrimaryRole_DefaultsToClient(t *testing.T) {
	roles := &MockRoleRepository{
		ListAssignmentsFunc: func(ctx context.Context, accountID uuid.UUID) ([]*models.RoleAssignment, error) {
			return []*models.RoleAssignment{}, nil
		},
		GetRoleByNameFunc: func(ctx context.Context, name string) (*models.Role, error) {
			require.Equal(t, models.RoleClient, name)
			return &models.Role{Name: models.RoleClient, Category: models.RoleCategoryClient, Priority: 10}, nil
		},
	}
	svc := NewAuthorizationService(roles, testLogger())

	primary, err := svc.PrimaryRole(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, models.RoleClient, primary.Name)
}

func TestHasRoleFamily(t *testing.T) {
	now := time.Now()
	roles := &MockRoleRepository{
		ListAssignmentsFunc: func(ctx context.Context, accountID uuid.UUID) ([]*models.RoleAssignment, error) {
			return []*models.RoleAssignment{
				assignment(models.RoleInvestor, 20, models.RoleCategoryClient, true, nil),
				assignment(models.RoleSupport, 40, models.RoleCategoryStaff, true, nil),
				assignment(models.RoleAdministrator, 100, models.RoleCategoryStaff, false, nil),
			}, nil
		},
	}
	svc := NewAuthorizationService(roles, testLogger())
	svc.now = func() time.Time { return now }
	ctx := context.Background()
	accountID := uuid.New()

	has, err := svc.HasRole(ctx, accountID, models.RoleInvestor)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = svc.HasRole(ctx, accountID, models.RoleAdministrator)
	require.NoError(t, err)
	assert.False(t, has, "deactivated assignment grants nothing")

	has, err = svc.HasAnyRole(ctx, accountID, models.RoleAdministrator, models.RoleSupport)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = svc.HasAllRoles(ctx, accountID, models.RoleInvestor, models.RoleSupport)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = svc.HasAllRoles(ctx, accountID, models.RoleInvestor, models.RoleAdministrator)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestEffectivePermissions_UnionOverActiveRoles(t *testing.T) {
	active := assignment(models.RoleInvestor, 20, models.RoleCategoryClient, true, nil)
	inactive := assignment(models.RoleAdministrator, 100, models.RoleCategoryStaff, false, nil)

	roles := &MockRoleRepository{
		ListAssignmentsFunc: func(ctx context.Context, accountID uuid.UUID) ([]*models.RoleAssignment, error) {
			return []*models.RoleAssignment{active, inactive}, nil
		},
		PermissionNamesForRolesFunc: func(ctx context.Context, roleIDs []uuid.UUID) ([]string, error) {
			require.Len(t, roleIDs, 1, "only active roles feed the permission union")
			assert.Equal(t, active.RoleID, roleIDs[0])
			return []string{"portfolio.read", "trade.execute"}, nil
		},
	}
	svc := NewAuthorizationService(roles, testLogger())

	permissions, err := svc.EffectivePermissions(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"portfolio.read", "trade.execute"}, permissions)

	has, err := svc.HasPermission(context.Background(), uuid.New(), "trade.execute")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = svc.HasPermission(context.Background(), uuid.New(), "accounts.manage")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestInCategory(t *testing.T) {
	roles := &MockRoleRepository{
		ListAssignmentsFunc: func(ctx context.Context, accountID uuid.UUID) ([]*models.RoleAssignment, error) {
			return []*models.RoleAssignment{
				assignment(models.RoleComplianceOfficer, 50, models.RoleCategoryCompliance, true, nil),
			}, nil
		},
	}
	svc := NewAuthorizationService(roles, testLogger())
	ctx := context.Background()

	in, err := svc.InCategory(ctx, uuid.New(), models.RoleCategoryCompliance)
	require.NoError(t, err)
	assert.True(t, in)

	in, err = svc.InCategory(ctx, uuid.New(), models.RoleCategoryClient)
	require.NoError(t, err)
	assert.False(t, in)
}

func TestAssignRole_RejectsUnassignableRole(t *testing.T) {
	roles := &MockRoleRepository{
		GetRoleByNameFunc: func(ctx context.Context, name string) (*models.Role, error) {
			return &models.Role{ID: uuid.New(), Name: name, CanBeAssigned: false}, nil
		},
		AssignRoleFunc: func(ctx context.Context, accountID, roleID uuid.UUID, assignedBy string, expiresAt *time.Time) error {
			t.Fatal("unassignable role must not reach the repository")
			return nil
		},
	}
	svc := NewAuthorizationService(roles, testLogger())

	err := svc.AssignRole(context.Background(), uuid.New(), models.RoleAdministrator, "admin", nil)
	assert.ErrorIs(t, err, models.ErrForbidden)
}
