package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoleAssignmentActiveAt(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name       string
		assignment RoleAssignment
		want       bool
	}{
		{"active without expiry", RoleAssignment{IsActive: true}, true},
		{"active with future expiry", RoleAssignment{IsActive: true, ExpiresAt: &future}, true},
		{"expired", RoleAssignment{IsActive: true, ExpiresAt: &past}, false},
		{"deactivated", RoleAssignment{IsActive: false}, false},
		{"deactivated with future expiry", RoleAssignment{IsActive: false, ExpiresAt: &future}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.assignment.ActiveAt(now))
		})
	}
}
