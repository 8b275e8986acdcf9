package users

import "strings"

// All checks below are nil-safe: a nil user has no role and no permissions.

// IsAdmin reports whether the user's role is the admin role
func (u *UserProfile) IsAdmin() bool {
	return u.RoleName() == AdminRoleName
}

// HasRole checks the user's single role by exact name
func (u *UserProfile) HasRole(roleName string) bool {
	if u.IsAdmin() {
		return true
	}
	name := u.RoleName()
	return name != "" && name == roleName
}

// HasPermission checks membership of a trimmed, lower-cased permission name
func (u *UserProfile) HasPermission(permissionName string) bool {
	if u.IsAdmin() {
		return true
	}
	name := normalize(permissionName)
	if name == "" {
		return false
	}
	_, ok := u.permissionSet()[name]
	return ok
}

// HasAnyPermission is true when at least one name is held. No names means deny.
func (u *UserProfile) HasAnyPermission(permissionNames ...string) bool {
	if u.IsAdmin() {
		return true
	}
	if len(permissionNames) == 0 {
		return false
	}
	set := u.permissionSet()
	for _, p := range permissionNames {
		if _, ok := set[normalize(p)]; ok {
			return true
		}
	}
	return false
}

// HasAllPermissions is true when every name is held. No names means deny.
func (u *UserProfile) HasAllPermissions(permissionNames ...string) bool {
	if u.IsAdmin() {
		return true
	}
	if len(permissionNames) == 0 {
		return false
	}
	set := u.permissionSet()
	for _, p := range permissionNames {
		if _, ok := set[normalize(p)]; !ok {
			return false
		}
	}
	return true
}

func (u *UserProfile) permissionSet() map[string]struct{} {
	if u == nil || u.Role == nil {
		return nil
	}
	set := make(map[string]struct{}, len(u.Role.Permissions))
	for _, p := range u.Role.Permissions {
		if name := normalize(p.Name); name != "" {
			set[name] = struct{}{}
		}
	}
	return set
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Requirement is a declarative access rule. Supplied criteria are OR-ed together;
// an unsupplied criterion never grants access.
type Requirement struct {
	Role       string   `json:"role,omitempty"`
	Permission string   `json:"permission,omitempty"`
	AnyOf      []string `json:"anyOf,omitempty"`
	AllOf      []string `json:"allOf,omitempty"`
}

// Allowed evaluates a Requirement against a user. Admins always pass.
func Allowed(u *UserProfile, req Requirement) bool {
	if u.IsAdmin() {
		return true
	}
	if req.Role != "" && u.HasRole(req.Role) {
		return true
	}
	if req.Permission != "" && u.HasPermission(req.Permission) {
		return true
	}
	if len(req.AnyOf) > 0 && u.HasAnyPermission(req.AnyOf...) {
		return true
	}
	if len(req.AllOf) > 0 && u.HasAllPermissions(req.AllOf...) {
		return true
	}
	return false
}
