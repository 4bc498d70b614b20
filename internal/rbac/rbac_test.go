package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionsForUnionsRoles(t *testing.T) {
	got := PermissionsFor([]string{"manager", "finance"})
	want := []Permission{PermManageProjects, PermManageClients, PermManageStaffing, PermManageBilling}
	assert.Len(t, got, len(want))
	for _, p := range want {
		assert.Contains(t, got, p)
	}
}

func TestUnknownRolesContributeNothing(t *testing.T) {
	assert.Empty(t, PermissionsFor([]string{"nonsense", "intern"}))
	assert.False(t, HasPermission([]string{"nonsense"}, PermManageBilling))

	// A known role mixed with unknown ones keeps exactly its own grants.
	got := PermissionsFor([]string{"finance", "nonsense"})
	assert.Len(t, got, 1)
	assert.Contains(t, got, PermManageBilling)
}

func TestAdminShortcutGrantsEverything(t *testing.T) {
	roles := []string{"employee", RoleAdmin}
	for _, p := range []Permission{
		PermManage2FA, PermManageUsers, PermManageProjects, PermManageClients,
		PermManageEmployees, PermManageStaffing, PermManageBilling,
		PermManageRecruitment, PermViewAuditLog, PermViewFailureLog,
	} {
		assert.True(t, HasPermission(roles, p), "admin must hold %s", p)
	}
	// Including permissions absent from the static table entirely.
	assert.True(t, HasPermission(roles, Permission("NOT_IN_TABLE")))
	assert.True(t, HasAny(roles, Permission("NOT_IN_TABLE")))
	assert.True(t, HasAll(roles, Permission("NOT_IN_TABLE"), PermManage2FA))
}

func TestHasPermissionMatchesTable(t *testing.T) {
	assert.True(t, HasPermission([]string{"hr"}, PermManageEmployees))
	assert.True(t, HasPermission([]string{"hr"}, PermManageRecruitment))
	assert.False(t, HasPermission([]string{"hr"}, PermManageBilling))
	assert.False(t, HasPermission([]string{"employee"}, PermManageClients))
	assert.False(t, HasPermission(nil, PermManageClients))
}

func TestHasAnyHasAll(t *testing.T) {
	roles := []string{"auditor"}
	assert.True(t, HasAny(roles, PermManageBilling, PermViewAuditLog))
	assert.False(t, HasAny(roles, PermManageBilling, PermManageStaffing))
	assert.True(t, HasAll(roles, PermViewAuditLog, PermViewFailureLog))
	assert.False(t, HasAll(roles, PermViewAuditLog, PermManageBilling))
	assert.True(t, HasAll(roles))
}

func TestResolverIsPure(t *testing.T) {
	roles := []string{"manager", "hr"}
	first := PermissionsFor(roles)
	second := PermissionsFor(roles)
	assert.Equal(t, first, second)
	// Role order must not matter.
	assert.Equal(t, first, PermissionsFor([]string{"hr", "manager"}))
}
