// Package rbac maps role names to an effective permission set through a
// static table. The resolver is a pure function of that table and its
// inputs; the table is read-only after process start.
package rbac

// Permission is an atomic capability name from a closed vocabulary.
type Permission string

const (
	PermManage2FA         Permission = "MANAGE_2FA"
	PermManageUsers       Permission = "MANAGE_USERS"
	PermManageProjects    Permission = "MANAGE_PROJECTS"
	PermManageClients     Permission = "MANAGE_CLIENTS"
	PermManageEmployees   Permission = "MANAGE_EMPLOYEES"
	PermManageStaffing    Permission = "MANAGE_STAFFING"
	PermManageBilling     Permission = "MANAGE_BILLING"
	PermManageRecruitment Permission = "MANAGE_RECRUITMENT"
	PermViewAuditLog      Permission = "VIEW_AUDIT_LOG"
	PermViewFailureLog    Permission = "VIEW_FAILURE_LOG"
)

// RoleAdmin grants every permission unconditionally, bypassing the table.
const RoleAdmin = "admin"

var rolePermissions = map[string][]Permission{
	"manager":  {PermManageProjects, PermManageClients, PermManageStaffing},
	"hr":       {PermManageEmployees, PermManageRecruitment},
	"finance":  {PermManageBilling},
	"security": {PermManage2FA, PermManageUsers},
	"auditor":  {PermViewAuditLog, PermViewFailureLog},
	"employee": {},
}

// PermissionsFor returns the union of the table's entries for the given
// roles. Unknown role names contribute nothing; they are not an error.
func PermissionsFor(roles []string) map[Permission]struct{} {
	out := make(map[Permission]struct{})
	for _, r := range roles {
		for _, p := range rolePermissions[r] {
			out[p] = struct{}{}
		}
	}
	return out
}

// HasPermission reports whether the role set grants the permission. The
// admin role short-circuits to true for any permission, including names
// outside the table.
func HasPermission(roles []string, perm Permission) bool {
	if isAdmin(roles) {
		return true
	}
	_, ok := PermissionsFor(roles)[perm]
	return ok
}

// HasAny reports whether at least one of the listed permissions is granted.
func HasAny(roles []string, perms ...Permission) bool {
	if isAdmin(roles) {
		return true
	}
	granted := PermissionsFor(roles)
	for _, p := range perms {
		if _, ok := granted[p]; ok {
			return true
		}
	}
	return false
}

// HasAll reports whether every listed permission is granted.
func HasAll(roles []string, perms ...Permission) bool {
	if isAdmin(roles) {
		return true
	}
	granted := PermissionsFor(roles)
	for _, p := range perms {
		if _, ok := granted[p]; !ok {
			return false
		}
	}
	return true
}

func isAdmin(roles []string) bool {
	for _, r := range roles {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}
