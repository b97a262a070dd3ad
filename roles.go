package session

import "strings"

// UserRole is the role of an identity. The set is closed: values outside of it
// are never trusted.
type UserRole string

const (
	// RolePending is an account awaiting administrator approval
	RolePending UserRole = "pending"
	// RoleUser is an approved account
	RoleUser UserRole = "user"
	// RoleAdmin can manage other accounts
	RoleAdmin UserRole = "admin"
)

var roleHierarchy = map[UserRole]int{
	RolePending: 0,
	RoleUser:    1,
	RoleAdmin:   2,
}

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	_, ok := roleHierarchy[r]
	return ok
}

// IsAtLeast checks if this role meets the minimum required level. Unknown
// roles on either side never match.
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// IsPending is true for accounts that are authenticated but not approved
func (r UserRole) IsPending() bool {
	return r == RolePending
}

func (r UserRole) String() string {
	return string(r)
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RolePending,
		RoleUser,
		RoleAdmin,
	}
}

// HighestRole is the most privileged role in the hierarchy
func HighestRole() UserRole {
	return RoleAdmin
}

// ParseRole maps roleStr to a known role. Unknown or empty values resolve to
// RolePending and ok is false, so a typo or a future role is never treated as
// privileged.
func ParseRole(roleStr string) (role UserRole, ok bool) {
	role = UserRole(strings.ToLower(strings.TrimSpace(roleStr)))
	if role.IsValid() {
		return role, true
	}
	return RolePending, false
}
