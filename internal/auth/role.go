// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

package auth

import "github.com/samber/oops"

// Role is a principal's authorization level. Roles form a total order
// (RoleUser < RoleManager < RoleAdmin) so authorization checks are rank
// comparisons rather than set membership, keeping policy monotonic as
// elevated roles are added.
type Role int

// Role levels, ascending.
const (
	RoleUser Role = iota + 1
	RoleManager
	RoleAdmin
)

// roleNames maps roles to their persisted text form.
var roleNames = map[Role]string{
	RoleUser:    "user",
	RoleManager: "manager",
	RoleAdmin:   "admin",
}

// String returns the persisted text form of the role.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	_, ok := roleNames[r]
	return ok
}

// AtLeast reports whether r ranks at or above min.
func (r Role) AtLeast(min Role) bool {
	return r >= min
}

// ParseRole converts a stored text value back into a Role.
func ParseRole(s string) (Role, error) {
	for role, name := range roleNames {
		if name == s {
			return role, nil
		}
	}
	return 0, oops.Code("AUTH_INVALID_ROLE").
		With("role", s).
		Errorf("unknown role %q", s)
}
