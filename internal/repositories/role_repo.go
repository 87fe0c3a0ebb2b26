package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/fintrust/identity/internal/database"
	"github.com/fintrust/identity/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// RoleRepository handles database operations for roles, assignments and
// permission grants.
type RoleRepository struct {
	pool *pgxpool.Pool
}

func NewRoleRepository(db *database.DB) *RoleRepository {
	return &RoleRepository{pool: db.Pool}
}

func scanRoleRow(scanner rowScanner) (*models.Role, error) {
	var role models.Role
	err := scanner.Scan(
		&role.ID, &role.Name, &role.Description, &role.Category,
		&role.IsSystemRole, &role.CanBeAssigned, &role.Priority,
		&role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &role, nil
}

// GetRoleByName looks up a role by its unique name.
func (r *RoleRepository) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	query := `
		SELECT id, name, description, category, is_system_role, can_be_assigned, priority, created_at, updated_at
		FROM roles
		WHERE name = $1
	`
	return scanRoleRow(r.pool.QueryRow(ctx, query, name))
}

// ListAssignments returns every role assignment for an account with the role
// populated, including deactivated and expired ones. Filtering to the active
// set is the resolver's job; the history itself is never deleted.
func (r *RoleRepository) ListAssignments(ctx context.Context, accountID uuid.UUID) ([]*models.RoleAssignment, error) {
	query := `
		SELECT ra.account_id, ra.role_id, ra.assigned_at, ra.assigned_by, ra.expires_at, ra.is_active,
		       r.id, r.name, r.description, r.category, r.is_system_role, r.can_be_assigned, r.priority, r.created_at, r.updated_at
		FROM role_assignments ra
		JOIN roles r ON r.id = ra.role_id
		WHERE ra.account_id = $1
		ORDER BY ra.assigned_at
	`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	assignments := make([]*models.RoleAssignment, 0)
	for rows.Next() {
		var ra models.RoleAssignment
		var role models.Role
		err := rows.Scan(
			&ra.AccountID, &ra.RoleID, &ra.AssignedAt, &ra.AssignedBy, &ra.ExpiresAt, &ra.IsActive,
			&role.ID, &role.Name, &role.Description, &role.Category,
			&role.IsSystemRole, &role.CanBeAssigned, &role.Priority,
			&role.CreatedAt, &role.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role assignment: %w", err)
		}
		ra.Role = &role
		assignments = append(assignments, &ra)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating role assignment rows: %w", err)
	}
	return assignments, nil
}

// PermissionNamesForRoles returns the distinct permission names granted to
// any of the given roles.
func (r *RoleRepository) PermissionNamesForRoles(ctx context.Context, roleIDs []uuid.UUID) ([]string, error) {
	if len(roleIDs) == 0 {
		return []string{}, nil
	}

	ids := make([]string, len(roleIDs))
	for i, id := range roleIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT DISTINCT p.name
		FROM role_permission_grants g
		JOIN permissions p ON p.id = g.permission_id
		WHERE g.role_id = ANY($1)
		ORDER BY p.name
	`

	rows, err := r.pool.Query(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan permission name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating permission rows: %w", err)
	}
	return names, nil
}

// AssignRole creates an assignment, reactivating an existing row for the
// same (account, role) pair instead of inserting a duplicate.
func (r *RoleRepository) AssignRole(ctx context.Context, accountID, roleID uuid.UUID, assignedBy string, expiresAt *time.Time) error {
	query := `
		INSERT INTO role_assignments (account_id, role_id, assigned_by, expires_at, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (account_id, role_id)
		DO UPDATE SET is_active = TRUE, assigned_at = NOW(), assigned_by = $3, expires_at = $4
	`

	_, err := r.pool.Exec(ctx, query, accountID, roleID, assignedBy, expiresAt)
	return database.MapPostgresError(err)
}

// DeactivateAssignment revokes a role without deleting the row.
func (r *RoleRepository) DeactivateAssignment(ctx context.Context, accountID, roleID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE role_assignments SET is_active = FALSE WHERE account_id = $1 AND role_id = $2 AND is_active = TRUE
	`, accountID, roleID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeactivateExpired flips is_active off for assignments past their expiry.
// The rows stay behind for the audit trail.
func (r *RoleRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE role_assignments
		SET is_active = FALSE
		WHERE is_active = TRUE AND expires_at IS NOT NULL AND expires_at <= CURRENT_TIMESTAMP
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired role assignments: %w", err)
	}
	return tag.RowsAffected(), nil
}
