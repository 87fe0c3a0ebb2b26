package models

import (
	"time"

	"github.com/google/uuid"
)

// Well-known role names seeded by the migrations
const (
	RoleClient            = "Client"
	RoleInvestor          = "Investor"
	RolePremiumInvestor   = "PremiumInvestor"
	RoleSupport           = "Support"
	RoleComplianceOfficer = "ComplianceOfficer"
	RoleFinancialAdvisor  = "FinancialAdvisor"
	RoleAdministrator     = "Administrator"
)

// Role categories
const (
	RoleCategoryClient     = "client"
	RoleCategoryStaff      = "staff"
	RoleCategoryCompliance = "compliance"
)

// Role is a named bundle of permissions with a priority ordering.
// Higher priority means more privileged.
type Role struct {
	ID            uuid.UUID
	Name          string
	Description   string
	Category      string
	IsSystemRole  bool
	CanBeAssigned bool
	Priority      int
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

// Permission is a named capability a role can grant.
type Permission struct {
	ID          uuid.UUID
	Name        string
	Description string
	Category    string
	IsSensitive bool
	CreatedAt   time.Time
}

// RoleAssignment links an account to a role. Assignments are deactivated or
// expire, never deleted, so the membership history stays auditable.
type RoleAssignment struct {
	AccountID  uuid.UUID
	RoleID     uuid.UUID
	AssignedAt time.Time
	AssignedBy string
	ExpiresAt  *time.Time
	IsActive   bool

	Role *Role // populated by the repository on resolution queries
}

// ActiveAt reports whether the assignment grants its role at the given time.
func (ra *RoleAssignment) ActiveAt(now time.Time) bool {
	if !ra.IsActive {
		return false
	}
	return ra.ExpiresAt == nil || ra.ExpiresAt.After(now)
}

// RolePermissionGrant links a role to a permission.
type RolePermissionGrant struct {
	RoleID       uuid.UUID
	PermissionID uuid.UUID
	GrantedAt    time.Time
	GrantedBy    string
	CanDelegate  bool
}
