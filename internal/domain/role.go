package domain

import "fmt"

// Role determines visibility and permitted actions for an account.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleDeveloper Role = "DEVELOPER"
	RoleEndUser   Role = "END_USER"
)

// Roles lists every valid role.
func Roles() []Role {
	return []Role{RoleAdmin, RoleDeveloper, RoleEndUser}
}

// ParseRole validates a raw role value.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleAdmin, RoleDeveloper, RoleEndUser:
		return Role(raw), nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}
