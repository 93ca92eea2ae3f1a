package enums

import (
	"slices"
	"strings"
)

// UserRole is the operator role stored on users.role and in access tokens.
type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRoleManager UserRole = "manager"
	UserRoleCashier UserRole = "cashier"
)

var userRoles = []UserRole{UserRoleAdmin, UserRoleManager, UserRoleCashier}

func (r UserRole) String() string { return string(r) }

func (r UserRole) IsValid() bool { return slices.Contains(userRoles, r) }

// ParseUserRole trims and lowercases before matching.
func ParseUserRole(value string) (UserRole, error) {
	return parse(userRoles, value, "user role", func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
}
